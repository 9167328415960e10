package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	ld "github.com/launchdarkly/go-server-sdk/v7"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"

	"github.com/Ndunguuu01/kodipay/internal/constants"
	"github.com/Ndunguuu01/kodipay/internal/utils"
)

// Config holds all application configuration, including secrets, flags, etc.
type Config struct {
	AppName     string
	AppPort     string
	Env         string
	DBUrl       string
	MongoURI    string
	MongoDB     string
	RedisURL    string
	FrontendURL string

	JWTSecret           []byte
	AccessTokenExpiry   time.Duration
	RefreshTokenExpiry  time.Duration
	PasswordResetExpiry time.Duration
	PasswordResetURL    string

	MpesaConsumerKey    string
	MpesaConsumerSecret string
	MpesaShortcode      string
	MpesaPasskey        string
	MpesaCallbackURL    string
	MpesaBaseURL        string
	GatewayTimeout      time.Duration

	SendGridAPIKey    string
	SendGridFromEmail string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromPhone   string

	// Static flags fetched once from LaunchDarkly
	LDFlag_SendgridSandboxMode     bool
	LDFlag_ValidatePhoneWithTwilio bool
	LDFlag_CORSHighSecurity        bool
	LDFlag_ShortTokenTTL           bool
	LDFlag_OverdueSweepEnabled     bool
}

const (
	EnvDevelopment = "development"
	EnvTest        = "test"
	EnvProduction  = "production"

	LDConnectionTimeout = 5 * time.Second
	LDServerContextKind = "service"
	LDServerContextKey  = "kodipay-backend"

	// insecureDevSecret is only ever accepted when ENV is development or test.
	insecureDevSecret = "kodipay-insecure-development-secret-do-not-use"
)

var (
	ErrMissingEnv       = errors.New("ENV is required (development, test, production or a staging name)")
	ErrMissingJWTSecret = errors.New("JWT_SECRET is required outside development")
	ErrWeakJWTSecret    = fmt.Errorf("JWT_SECRET must be at least %d bytes", constants.MinJWTSecretLength)
)

// LoadConfig reads the environment (after .env has been loaded by the CLI),
// fetches static LaunchDarkly flags, and returns a *Config.
func LoadConfig() *Config {
	utils.Logger.Info("Loading config for app: ", constants.AppName)

	//----------------------------------------------------------------------
	// Load environment variables.
	//----------------------------------------------------------------------
	env, err := ResolveEnv(os.Getenv("ENV"))
	if err != nil {
		utils.Logger.WithError(err).Fatal("Refusing to start without a deployment environment")
	}
	dbUrl := os.Getenv("DATABASE_URL")
	if dbUrl == "" {
		utils.Logger.Fatal("DATABASE_URL env var is missing")
	}

	secret, err := ResolveJWTSecret(env, os.Getenv("JWT_SECRET"))
	if err != nil {
		utils.Logger.WithError(err).Fatalf("Refusing to start with ENV=%s", env)
	}

	mpesaBase := os.Getenv("MPESA_BASE_URL")
	if mpesaBase == "" {
		mpesaBase = constants.MpesaSandboxBaseURL
		if strings.EqualFold(os.Getenv("MPESA_ENV"), EnvProduction) {
			mpesaBase = constants.MpesaProductionBaseURL
		}
	}

	gatewayTimeout := constants.DefaultGatewayTimeout
	if v := os.Getenv("GATEWAY_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			utils.Logger.WithError(err).Fatal("GATEWAY_TIMEOUT is not a valid duration")
		}
		gatewayTimeout = d
	}

	cfg := &Config{
		AppName:     constants.AppName,
		AppPort:     getEnv("APP_PORT", "5000"),
		Env:         env,
		DBUrl:       dbUrl,
		MongoURI:    os.Getenv("MONGO_URI"),
		MongoDB:     getEnv("MONGO_DB", "kodipay"),
		RedisURL:    os.Getenv("REDIS_URL"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		JWTSecret:           secret,
		AccessTokenExpiry:   constants.DefaultAccessTokenExpiry,
		RefreshTokenExpiry:  constants.DefaultRefreshTokenExpiry,
		PasswordResetExpiry: constants.PasswordResetExpiry,

		MpesaConsumerKey:    os.Getenv("MPESA_CONSUMER_KEY"),
		MpesaConsumerSecret: os.Getenv("MPESA_CONSUMER_SECRET"),
		MpesaShortcode:      os.Getenv("MPESA_SHORTCODE"),
		MpesaPasskey:        os.Getenv("MPESA_PASSKEY"),
		MpesaCallbackURL:    os.Getenv("MPESA_CALLBACK_URL"),
		MpesaBaseURL:        mpesaBase,
		GatewayTimeout:      gatewayTimeout,

		SendGridAPIKey:    os.Getenv("SENDGRID_API_KEY"),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", "no-reply@kodipay.app"),
		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFromPhone:   os.Getenv("TWILIO_FROM_PHONE"),

		LDFlag_SendgridSandboxMode: env != EnvProduction,
		LDFlag_CORSHighSecurity:    env == EnvProduction,
		LDFlag_OverdueSweepEnabled: true,
	}
	cfg.PasswordResetURL = getEnv("PASSWORD_RESET_URL", strings.TrimRight(cfg.FrontendURL, "/")+"/reset-password")

	if sdkKey := os.Getenv("LD_SDK_KEY"); sdkKey != "" {
		loadFlags(cfg, sdkKey)
	} else {
		utils.Logger.Info("LD_SDK_KEY not set; using default feature flags")
	}

	//----------------------------------------------------------------------
	// If shortTokenTTLFlag is true, override expiries.
	//----------------------------------------------------------------------
	if cfg.LDFlag_ShortTokenTTL {
		cfg.AccessTokenExpiry = constants.TestShortAccessTokenExpiry
		cfg.RefreshTokenExpiry = constants.TestShortRefreshTokenExpiry
	}

	utils.ExposeDevErrors = env == EnvDevelopment
	return cfg
}

// ResolveEnv normalises ENV. There is no default: the relaxed secret policy
// of development and test must be asked for by name.
func ResolveEnv(v string) (string, error) {
	env := strings.ToLower(strings.TrimSpace(v))
	if env == "" {
		return "", ErrMissingEnv
	}
	return env, nil
}

// ResolveJWTSecret applies the signing secret policy. Outside development
// and test a missing or short secret is an error; in those two modes a
// missing secret falls back to a fixed value with a loud warning.
func ResolveJWTSecret(env, secret string) ([]byte, error) {
	relaxed := env == EnvDevelopment || env == EnvTest
	switch {
	case secret == "" && relaxed:
		utils.Logger.Warn("JWT_SECRET is not set; using the INSECURE development secret. Never run like this in production.")
		return []byte(insecureDevSecret), nil
	case secret == "":
		return nil, ErrMissingJWTSecret
	case len(secret) < constants.MinJWTSecretLength && !relaxed:
		return nil, ErrWeakJWTSecret
	}
	return []byte(secret), nil
}

func loadFlags(cfg *Config, sdkKey string) {
	//----------------------------------------------------------------------
	// Initialize the LaunchDarkly client with the LD_SDK_KEY.
	//----------------------------------------------------------------------
	ldClient, err := ld.MakeClient(sdkKey, LDConnectionTimeout)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to create LaunchDarkly client")
	}
	defer ldClient.Close()
	if !ldClient.Initialized() {
		utils.Logger.Fatal("LaunchDarkly client failed to initialize")
	}

	//----------------------------------------------------------------------
	// Fetch the static flags.
	//----------------------------------------------------------------------
	context := ldcontext.NewWithKind(ldcontext.Kind(LDServerContextKind), LDServerContextKey)

	boolFlag := func(key string, def bool) bool {
		v, err := ldClient.BoolVariation(key, context, def)
		if err != nil {
			utils.Logger.WithError(err).Fatalf("Error retrieving %s flag", key)
		}
		utils.Logger.Debugf("%s flag: %t", key, v)
		return v
	}

	cfg.LDFlag_SendgridSandboxMode = boolFlag("sendgrid_sandbox_mode", cfg.LDFlag_SendgridSandboxMode)
	cfg.LDFlag_ValidatePhoneWithTwilio = boolFlag("validate_phone_with_twilio", false)
	cfg.LDFlag_CORSHighSecurity = boolFlag("cors_high_security", cfg.Env == EnvProduction)
	cfg.LDFlag_ShortTokenTTL = boolFlag("short_token_ttl", false)
	cfg.LDFlag_OverdueSweepEnabled = boolFlag("overdue_sweep_enabled", true)
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
