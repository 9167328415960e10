package utils

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is shared by every package. Before InitLogger runs it logs text to
// stderr at info.
var Logger = logrus.New()

// serviceHook stamps each entry with the service name unless the caller set
// one, so ledger and gateway lines stay attributable once shipped.
type serviceHook struct{ service string }

func (serviceHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h serviceHook) Fire(e *logrus.Entry) error {
	if _, ok := e.Data["service"]; !ok {
		e.Data["service"] = h.service
	}
	return nil
}

// InitLogger reads LOG_LEVEL (default info) and LOG_FORMAT ("json", or text
// otherwise) and writes to stdout.
func InitLogger(service string) {
	configureLogger(os.Stdout, service, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"))
}

func configureLogger(out io.Writer, service, level, format string) {
	Logger.SetOutput(out)

	lvl := logrus.InfoLevel
	if level = strings.TrimSpace(level); level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			Logger.Warnf("LOG_LEVEL %q not recognised, using info", level)
		} else {
			lvl = parsed
		}
	}
	Logger.SetLevel(lvl)

	if strings.EqualFold(strings.TrimSpace(format), "json") {
		Logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		Logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	Logger.ReplaceHooks(make(logrus.LevelHooks))
	Logger.AddHook(serviceHook{service: service})
}
