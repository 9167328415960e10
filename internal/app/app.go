package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sendgrid/sendgrid-go"
	"github.com/twilio/twilio-go"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Ndunguuu01/kodipay/internal/config"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

const (
	maxRetries     = 5
	connectTimeout = 5 * time.Second
	initialBackoff = 500 * time.Millisecond
)

// App owns the process-wide connections. Mongo, Redis, SendGrid and Twilio
// are optional; the matching field stays nil when not configured.
type App struct {
	Config *config.Config
	DB     *pgxpool.Pool
	Mongo  *mongo.Client
	Redis  *redis.Client

	SendGrid *sendgrid.Client
	Twilio   *twilio.RestClient

	StartedAt time.Time
}

func NewApp(cfg *config.Config) (*App, error) {
	dbPool, err := withRetry("database", func(ctx context.Context) (*pgxpool.Pool, error) {
		return newDBPool(ctx, cfg.DBUrl)
	})
	if err != nil {
		return nil, err
	}

	a := &App{Config: cfg, DB: dbPool, StartedAt: time.Now()}

	if cfg.MongoURI != "" {
		a.Mongo, err = withRetry("mongo", func(ctx context.Context) (*mongo.Client, error) {
			return newMongoClient(ctx, cfg.MongoURI)
		})
		if err != nil {
			a.Close()
			return nil, err
		}
	} else {
		utils.Logger.Warn("MONGO_URI not set; messaging endpoints are disabled")
	}

	if cfg.RedisURL != "" {
		a.Redis, err = newRedisClient(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
	} else {
		utils.Logger.Info("REDIS_URL not set; realtime fan-out is local to this instance")
	}

	if cfg.SendGridAPIKey != "" {
		a.SendGrid = sendgrid.NewSendClient(cfg.SendGridAPIKey)
	} else {
		utils.Logger.Warn("SENDGRID_API_KEY not set; email delivery will fail")
	}
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		a.Twilio = twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: cfg.TwilioAccountSID,
			Password: cfg.TwilioAuthToken,
		})
	} else {
		utils.Logger.Warn("Twilio credentials not set; SMS delivery will fail")
	}

	return a, nil
}

// MongoDatabase is nil when Mongo is not configured.
func (a *App) MongoDatabase() *mongo.Database {
	if a.Mongo == nil {
		return nil
	}
	return a.Mongo.Database(a.Config.MongoDB)
}

func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		defer cancel()
		_ = a.Mongo.Disconnect(ctx)
	}
	if a.DB != nil {
		a.DB.Close()
		utils.Logger.Info("Database connection closed.")
	}
}

// withRetry makes up to maxRetries connection attempts with exponential backoff.
func withRetry[T any](what string, connect func(ctx context.Context) (T, error)) (T, error) {
	var (
		conn    T
		err     error
		backoff = initialBackoff
	)
	for i := 1; i <= maxRetries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
		conn, err = connect(ctx)
		cancel()
		if err == nil {
			utils.Logger.Infof("Successfully connected to %s on attempt %d", what, i)
			return conn, nil
		}

		utils.Logger.WithError(err).Warnf(
			"Failed to connect to %s on attempt %d/%d. Retrying in %v...",
			what, i, maxRetries, backoff,
		)
		if i == maxRetries {
			break
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return conn, fmt.Errorf("unable to connect to %s after %d attempts: %w", what, maxRetries, err)
}

// newDBPool constructs the pgx pool. Idle sockets are retired before
// intermediary proxies drop them, and every connection is health-checked.
func newDBPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	cfg.MaxConnIdleTime = 2 * time.Minute
	cfg.HealthCheckPeriod = 30 * time.Second

	return pgxpool.ConnectConfig(ctx, cfg)
}

func newMongoClient(ctx context.Context, uri string) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
