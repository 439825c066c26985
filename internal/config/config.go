package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration required by the API process.
// All values must come from env (or env-file loaded by the process runner).
// No business logic should depend on raw environment variables.
type Config struct {
	App       AppConfig
	DB        DBConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Voice     VoiceProviderConfig
	Messaging MessagingProviderConfig
	Engine    EngineConfig
}

type AppConfig struct {
	Env  string
	Port int
}

type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string

	// SSLMode is kept explicit. Accepts: disable, require, verify-ca, verify-full
	SSLMode string
}

type RedisConfig struct {
	Host string
	Port int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// VoiceProviderConfig configures the voice provider REST client (JSON API).
type VoiceProviderConfig struct {
	BaseURL           string
	APIKey            string
	StatusCallbackURL string
	DefaultRegion     string
}

// MessagingProviderConfig configures the messaging provider REST client
// (form-encoded API).
type MessagingProviderConfig struct {
	BaseURL           string
	AccountSID        string
	AuthToken         string
	StatusCallbackURL string
	DefaultRegion     string
}

// EngineConfig tunes the session lifecycle engine.
type EngineConfig struct {
	// PlaceTimeout bounds the synchronous provider round trip on initiation.
	PlaceTimeout time.Duration

	// CallOriginNumber / MessageOriginNumber are our owned E.164 numbers.
	CallOriginNumber    string
	MessageOriginNumber string

	// MaxInFlightPerOwner caps concurrent outbound placements per owner
	// (0 disables the cap).
	MaxInFlightPerOwner int
}

func Load() (Config, error) {
	c := Config{}
	var parseErrs []error

	c.App.Env = strings.TrimSpace(os.Getenv("APP_ENV"))
	{
		n, err := mustInt("APP_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.App.Port = n
	}

	c.DB.Host = strings.TrimSpace(os.Getenv("DB_HOST"))
	{
		n, err := mustInt("DB_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.DB.Port = n
	}
	c.DB.User = strings.TrimSpace(os.Getenv("DB_USER"))
	c.DB.Password = os.Getenv("DB_PASSWORD")
	c.DB.Name = strings.TrimSpace(os.Getenv("DB_NAME"))
	c.DB.SSLMode = strings.TrimSpace(os.Getenv("DB_SSLMODE"))

	c.Redis.Host = strings.TrimSpace(os.Getenv("REDIS_HOST"))
	{
		n, err := mustInt("REDIS_PORT")
		n, parseErrs = appendParseErr(parseErrs, n, err)
		c.Redis.Port = n
	}

	c.Auth.JWTSecret = os.Getenv("JWT_SECRET")
	c.Auth.JWTIssuer = strings.TrimSpace(os.Getenv("JWT_ISSUER"))
	c.Auth.JWTAudience = strings.TrimSpace(os.Getenv("JWT_AUDIENCE"))
	// Duration env vars are optional; defaults applied in Validate() based on env.
	c.Auth.AccessTokenTTL = mustDuration("JWT_ACCESS_TTL")
	c.Auth.RefreshTokenTTL = mustDuration("JWT_REFRESH_TTL")

	c.Voice.BaseURL = strings.TrimSpace(os.Getenv("VOICE_API_URL"))
	c.Voice.APIKey = os.Getenv("VOICE_API_KEY")
	c.Voice.StatusCallbackURL = strings.TrimSpace(os.Getenv("VOICE_STATUS_CALLBACK_URL"))
	c.Voice.DefaultRegion = strings.TrimSpace(os.Getenv("VOICE_DEFAULT_REGION"))

	c.Messaging.BaseURL = strings.TrimSpace(os.Getenv("MESSAGING_API_URL"))
	c.Messaging.AccountSID = strings.TrimSpace(os.Getenv("MESSAGING_ACCOUNT_SID"))
	c.Messaging.AuthToken = os.Getenv("MESSAGING_AUTH_TOKEN")
	c.Messaging.StatusCallbackURL = strings.TrimSpace(os.Getenv("MESSAGING_STATUS_CALLBACK_URL"))
	c.Messaging.DefaultRegion = strings.TrimSpace(os.Getenv("MESSAGING_DEFAULT_REGION"))

	c.Engine.PlaceTimeout = mustDuration("ENGINE_PLACE_TIMEOUT")
	c.Engine.CallOriginNumber = strings.TrimSpace(os.Getenv("ENGINE_CALL_ORIGIN"))
	c.Engine.MessageOriginNumber = strings.TrimSpace(os.Getenv("ENGINE_MESSAGE_ORIGIN"))
	{
		v := strings.TrimSpace(os.Getenv("ENGINE_MAX_INFLIGHT_PER_OWNER"))
		if v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				parseErrs = append(parseErrs, fmt.Errorf("ENGINE_MAX_INFLIGHT_PER_OWNER must be an integer, got %q", v))
			} else {
				c.Engine.MaxInFlightPerOwner = n
			}
		}
	}

	if err := joinErrors(parseErrs); err != nil {
		return Config{}, err
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) Validate() error {
	var errs []error

	if c.App.Env == "" {
		errs = append(errs, errors.New("APP_ENV is required"))
	} else if !isValidEnv(c.App.Env) {
		errs = append(errs, fmt.Errorf("APP_ENV must be one of local, dev, staging, production, got %q", c.App.Env))
	}
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("APP_PORT must be a valid port, got %d", c.App.Port))
	}

	if c.DB.Host == "" {
		errs = append(errs, errors.New("DB_HOST is required"))
	}
	if c.DB.Port <= 0 || c.DB.Port > 65535 {
		errs = append(errs, fmt.Errorf("DB_PORT must be a valid port, got %d", c.DB.Port))
	}
	if c.DB.User == "" {
		errs = append(errs, errors.New("DB_USER is required"))
	}
	if c.DB.Name == "" {
		errs = append(errs, errors.New("DB_NAME is required"))
	}
	if strings.TrimSpace(c.DB.SSLMode) == "" {
		if c.IsProduction() {
			errs = append(errs, errors.New("DB_SSLMODE is required in production"))
		} else {
			// Local-friendly default; production must be explicit.
			c.DB.SSLMode = "disable"
		}
	}
	if c.DB.SSLMode != "" && !isValidSSLMode(c.DB.SSLMode) {
		errs = append(errs, fmt.Errorf("DB_SSLMODE must be one of disable, require, verify-ca, verify-full, got %q", c.DB.SSLMode))
	}

	if c.Redis.Host == "" {
		errs = append(errs, errors.New("REDIS_HOST is required"))
	}
	if c.Redis.Port <= 0 || c.Redis.Port > 65535 {
		errs = append(errs, fmt.Errorf("REDIS_PORT must be a valid port, got %d", c.Redis.Port))
	}

	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.IsProduction() {
		if c.Auth.JWTIssuer == "" {
			errs = append(errs, errors.New("JWT_ISSUER is required in production"))
		}
		if c.Auth.JWTAudience == "" {
			errs = append(errs, errors.New("JWT_AUDIENCE is required in production"))
		}
	}

	if c.Auth.AccessTokenTTL <= 0 {
		// Default: short-lived access tokens.
		c.Auth.AccessTokenTTL = 15 * time.Minute
	}
	if c.Auth.RefreshTokenTTL <= 0 {
		// Default: longer-lived refresh tokens.
		c.Auth.RefreshTokenTTL = 30 * 24 * time.Hour
	}
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		errs = append(errs, errors.New("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL"))
	}

	if c.Voice.BaseURL == "" {
		errs = append(errs, errors.New("VOICE_API_URL is required"))
	}
	if c.Voice.APIKey == "" {
		errs = append(errs, errors.New("VOICE_API_KEY is required"))
	}
	if c.Messaging.BaseURL == "" {
		errs = append(errs, errors.New("MESSAGING_API_URL is required"))
	}
	if c.Messaging.AccountSID == "" {
		errs = append(errs, errors.New("MESSAGING_ACCOUNT_SID is required"))
	}
	if c.Messaging.AuthToken == "" {
		errs = append(errs, errors.New("MESSAGING_AUTH_TOKEN is required"))
	}

	if c.Engine.PlaceTimeout <= 0 {
		c.Engine.PlaceTimeout = 10 * time.Second
	}
	if c.Engine.CallOriginNumber == "" {
		errs = append(errs, errors.New("ENGINE_CALL_ORIGIN is required"))
	}
	if c.Engine.MessageOriginNumber == "" {
		errs = append(errs, errors.New("ENGINE_MESSAGE_ORIGIN is required"))
	}
	if c.Engine.MaxInFlightPerOwner < 0 {
		errs = append(errs, fmt.Errorf("ENGINE_MAX_INFLIGHT_PER_OWNER must be >= 0, got %d", c.Engine.MaxInFlightPerOwner))
	}

	return joinErrors(errs)
}

func (c Config) IsProduction() bool {
	return c.App.Env == "production"
}

func (c Config) HTTPAddr() string {
	return fmt.Sprintf(":%d", c.App.Port)
}

func (c Config) PostgresDSN() string {
	// Avoid logging this string; it contains secrets.
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host,
		c.DB.Port,
		c.DB.User,
		c.DB.Password,
		c.DB.Name,
		c.DB.SSLMode,
	)
}

func (c Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

func mustInt(key string) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", key, v)
	}
	return n, nil
}

func mustDuration(key string) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0
	}
	return d
}

func appendParseErr(errs []error, n int, err error) (int, []error) {
	if err != nil {
		errs = append(errs, err)
	}
	return n, errs
}

func isValidEnv(v string) bool {
	switch v {
	case "local", "dev", "staging", "production":
		return true
	default:
		return false
	}
}

func isValidSSLMode(v string) bool {
	switch v {
	case "disable", "require", "verify-ca", "verify-full":
		return true
	default:
		return false
	}
}

func joinErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	var b strings.Builder
	b.WriteString("config errors:\n")
	for _, e := range errs {
		b.WriteString("- ")
		b.WriteString(e.Error())
		b.WriteString("\n")
	}
	return errors.New(strings.TrimSpace(b.String()))
}
