package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Config is read once at process start from the environment (the CLI may first load a .env file).
// Packages receive the sub-struct they need and never call os.Getenv themselves.
type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	Auth     AuthConfig
	Twilio   TwilioConfig
	ATS      ATSConfig
	TTS      TTSConfig
	Calling  CallingConfig
	Blob     BlobConfig
	Queue    QueueConfig
	Campaign CampaignConfig
	Phone    PhoneConfig
}

type AppConfig struct {
	Env  string
	Port int
}

// DBConfig is either a full DATABASE_URL or its discrete parts.
type DBConfig struct {
	URL      string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret       string
	JWTIssuer       string
	JWTAudience     string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// TwilioConfig is the platform account. Organizations with a subaccount in
// twilio_subaccounts send with their own credentials instead.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	BaseURL    string
	Timeout    time.Duration
}

// ATSConfig configures the JobAdder integration. Per-organization tokens live in
// the organization_platforms table; the OAuth client is shared.
type ATSConfig struct {
	ClientID       string
	ClientSecret   string
	TokenURL       string
	RequestTimeout time.Duration
	StatusTimeout  time.Duration
	RatePerSecond  float64
	Burst          int
	RefreshLockTTL time.Duration
}

type TTSConfig struct {
	APIKey         string
	URL            string
	ModelID        string
	DefaultVoiceID string
	Timeout        time.Duration
}

type CallingConfig struct {
	BaseURL        string
	Timeout        time.Duration
	CallbackSecret string
}

type BlobConfig struct {
	Dir       string
	PublicURL string
}

type QueueConfig struct {
	Key          string
	Workers      int
	PollInterval time.Duration
	TaskTimeout  time.Duration
}

type CampaignConfig struct {
	Stagger  time.Duration
	Interval time.Duration
}

type PhoneConfig struct {
	DialCode string
}

// env reads variables and remembers every malformed one, so Load reports them together.
type env struct{ errs []error }

func (e *env) str(key string) string { return strings.TrimSpace(os.Getenv(key)) }

// secret is not trimmed; whitespace may be part of it.
func (e *env) secret(key string) string { return os.Getenv(key) }

func (e *env) integer(key string, fallback int) int {
	v := e.str(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s must be an integer, got %q", key, v))
	}
	return n
}

func (e *env) number(key string) float64 {
	v := e.str(key)
	if v == "" {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s must be a number, got %q", key, v))
	}
	return f
}

// duration returns 0 when unset; Validate substitutes the default.
func (e *env) duration(key string) time.Duration {
	v := e.str(key)
	if v == "" {
		return 0
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s must be a duration like 30s, got %q", key, v))
	}
	return d
}

func Load() (Config, error) {
	e := &env{}
	c := Config{
		App: AppConfig{Env: e.str("APP_ENV"), Port: e.integer("APP_PORT", 8080)},
		DB: DBConfig{
			URL:      e.secret("DATABASE_URL"),
			Host:     e.str("DB_HOST"),
			Port:     e.integer("DB_PORT", 5432),
			User:     e.str("DB_USER"),
			Password: e.secret("DB_PASSWORD"),
			Name:     e.str("DB_NAME"),
			SSLMode:  e.str("DB_SSLMODE"),
		},
		Redis: RedisConfig{
			Host:     e.str("REDIS_HOST"),
			Port:     e.integer("REDIS_PORT", 6379),
			Password: e.secret("REDIS_PASSWORD"),
			DB:       e.integer("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret:       e.secret("JWT_SECRET"),
			JWTIssuer:       e.str("JWT_ISSUER"),
			JWTAudience:     e.str("JWT_AUDIENCE"),
			AccessTokenTTL:  e.duration("JWT_ACCESS_TTL"),
			RefreshTokenTTL: e.duration("JWT_REFRESH_TTL"),
		},
		Twilio: TwilioConfig{
			AccountSID: e.str("TWILIO_ACCOUNT_SID"),
			AuthToken:  e.secret("TWILIO_AUTH_TOKEN"),
			BaseURL:    e.str("TWILIO_BASE_URL"),
			Timeout:    e.duration("TWILIO_TIMEOUT"),
		},
		ATS: ATSConfig{
			ClientID:       e.str("JOBADDER_CLIENT_ID"),
			ClientSecret:   e.secret("JOBADDER_CLIENT_SECRET"),
			TokenURL:       e.str("JOBADDER_TOKEN_URL"),
			RequestTimeout: e.duration("JOBADDER_REQUEST_TIMEOUT"),
			StatusTimeout:  e.duration("JOBADDER_STATUS_TIMEOUT"),
			RatePerSecond:  e.number("JOBADDER_RATE_PER_SECOND"),
			Burst:          e.integer("JOBADDER_RATE_BURST", 0),
			RefreshLockTTL: e.duration("JOBADDER_REFRESH_LOCK_TTL"),
		},
		TTS: TTSConfig{
			APIKey:         e.secret("ELEVENLABS_API_KEY"),
			URL:            e.str("ELEVENLABS_API_URL"),
			ModelID:        e.str("ELEVENLABS_MODEL_ID"),
			DefaultVoiceID: e.str("ELEVENLABS_DEFAULT_VOICE_ID"),
			Timeout:        e.duration("ELEVENLABS_TIMEOUT"),
		},
		Calling: CallingConfig{
			BaseURL:        e.str("CALLING_BASE_URL"),
			Timeout:        e.duration("CALLING_TIMEOUT"),
			CallbackSecret: e.secret("CALLING_CALLBACK_SECRET"),
		},
		Blob: BlobConfig{Dir: e.str("MEDIA_DIR"), PublicURL: e.str("MEDIA_PUBLIC_URL")},
		Queue: QueueConfig{
			Key:          e.str("QUEUE_KEY"),
			Workers:      e.integer("QUEUE_WORKERS", 0),
			PollInterval: e.duration("QUEUE_POLL_INTERVAL"),
			TaskTimeout:  e.duration("QUEUE_TASK_TIMEOUT"),
		},
		Campaign: CampaignConfig{Stagger: e.duration("CAMPAIGN_STAGGER"), Interval: e.duration("CAMPAIGN_INTERVAL")},
		Phone:    PhoneConfig{DialCode: strings.TrimPrefix(e.str("PHONE_DEFAULT_DIAL_CODE"), "+")},
	}
	if len(e.errs) > 0 {
		return Config{}, fmt.Errorf("config: %w", errors.Join(e.errs...))
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

var (
	validEnvs     = []string{"local", "dev", "staging", "production"}
	validSSLModes = []string{"disable", "require", "verify-ca", "verify-full"}
)

// Validate reports every missing or invalid value at once and fills in defaults for optional ones.
// Production refuses insecure fallbacks: database TLS mode, JWT issuer/audience and vendor secrets must be set.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) { errs = append(errs, fmt.Errorf(format, args...)) }
	port := func(key string, p int) {
		if p <= 0 || p > 65535 {
			fail("%s must be a valid port, got %d", key, p)
		}
	}
	prod := c.IsProduction()

	switch {
	case c.App.Env == "":
		fail("APP_ENV is required")
	case !slices.Contains(validEnvs, c.App.Env):
		fail("APP_ENV must be one of %s, got %q", strings.Join(validEnvs, ", "), c.App.Env)
	}
	port("APP_PORT", c.App.Port)

	if c.DB.URL == "" {
		for key, v := range map[string]string{"DB_HOST": c.DB.Host, "DB_USER": c.DB.User, "DB_NAME": c.DB.Name} {
			if v == "" {
				fail("%s is required (or set DATABASE_URL)", key)
			}
		}
		port("DB_PORT", c.DB.Port)
		if c.DB.SSLMode == "" && !prod {
			c.DB.SSLMode = "disable"
		}
		switch {
		case c.DB.SSLMode == "":
			fail("DB_SSLMODE is required in production")
		case !slices.Contains(validSSLModes, c.DB.SSLMode):
			fail("DB_SSLMODE must be one of %s, got %q", strings.Join(validSSLModes, ", "), c.DB.SSLMode)
		}
	} else if _, err := url.Parse(c.DB.URL); err != nil {
		fail("DATABASE_URL is not a valid URL")
	}

	if c.Redis.Host == "" {
		fail("REDIS_HOST is required")
	}
	port("REDIS_PORT", c.Redis.Port)

	if c.Auth.JWTSecret == "" {
		fail("JWT_SECRET is required")
	}
	setDuration(&c.Auth.AccessTokenTTL, 15*time.Minute)
	setDuration(&c.Auth.RefreshTokenTTL, 30*24*time.Hour)
	if c.Auth.RefreshTokenTTL <= c.Auth.AccessTokenTTL {
		fail("JWT_REFRESH_TTL must be greater than JWT_ACCESS_TTL")
	}

	if prod {
		required := map[string]string{
			"JWT_ISSUER":              c.Auth.JWTIssuer,
			"JWT_AUDIENCE":            c.Auth.JWTAudience,
			"JOBADDER_CLIENT_ID":      c.ATS.ClientID,
			"JOBADDER_CLIENT_SECRET":  c.ATS.ClientSecret,
			"ELEVENLABS_API_KEY":      c.TTS.APIKey,
			"CALLING_CALLBACK_SECRET": c.Calling.CallbackSecret,
		}
		for key, v := range required {
			if v == "" {
				fail("%s is required in production", key)
			}
		}
	}

	setString(&c.Twilio.BaseURL, "https://api.twilio.com")
	setDuration(&c.Twilio.Timeout, 15*time.Second)

	setString(&c.ATS.TokenURL, "https://id.jobadder.com/connect/token")
	setDuration(&c.ATS.RequestTimeout, 30*time.Second)
	setDuration(&c.ATS.StatusTimeout, 10*time.Second)
	setDuration(&c.ATS.RefreshLockTTL, 15*time.Second)
	if c.ATS.RatePerSecond < 0 {
		fail("JOBADDER_RATE_PER_SECOND must be >= 0, got %v", c.ATS.RatePerSecond)
	} else if c.ATS.RatePerSecond == 0 {
		c.ATS.RatePerSecond = 2
	}
	if c.ATS.Burst <= 0 {
		c.ATS.Burst = 1
	}

	setString(&c.TTS.URL, "https://api.elevenlabs.io/v1/text-to-speech")
	setString(&c.TTS.ModelID, "eleven_turbo_v2")
	setString(&c.TTS.DefaultVoiceID, "SQ1QAX1hsTZ1d6O0dCWA")
	setDuration(&c.TTS.Timeout, 30*time.Second)

	setString(&c.Calling.BaseURL, "http://localhost:5050")
	setDuration(&c.Calling.Timeout, 30*time.Second)

	setString(&c.Blob.Dir, "./media")
	setString(&c.Blob.PublicURL, fmt.Sprintf("http://localhost:%d/media", c.App.Port))

	setString(&c.Queue.Key, "callpilot:tasks")
	if c.Queue.Workers < 0 {
		fail("QUEUE_WORKERS must be >= 0, got %d", c.Queue.Workers)
	} else if c.Queue.Workers == 0 {
		c.Queue.Workers = 4
	}
	setDuration(&c.Queue.PollInterval, time.Second)
	setDuration(&c.Queue.TaskTimeout, 10*time.Minute)

	setDuration(&c.Campaign.Stagger, 120*time.Second)
	setDuration(&c.Campaign.Interval, 5*time.Minute)

	setString(&c.Phone.DialCode, "44")
	if _, err := strconv.ParseUint(c.Phone.DialCode, 10, 16); err != nil {
		fail("PHONE_DEFAULT_DIAL_CODE must be digits, got %q", c.Phone.DialCode)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("config: %w", errors.Join(errs...))
}

func (c Config) IsProduction() bool { return c.App.Env == "production" }

func (c Config) HTTPAddr() string { return ":" + strconv.Itoa(c.App.Port) }

// PostgresDSN returns a pgx connection URL. It embeds the password; never log it.
func (c Config) PostgresDSN() string {
	if c.DB.URL != "" {
		return c.DB.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DB.User, c.DB.Password),
		Host:     net.JoinHostPort(c.DB.Host, strconv.Itoa(c.DB.Port)),
		Path:     "/" + c.DB.Name,
		RawQuery: url.Values{"sslmode": {c.DB.SSLMode}}.Encode(),
	}
	return u.String()
}

func (c Config) RedisAddr() string {
	return net.JoinHostPort(c.Redis.Host, strconv.Itoa(c.Redis.Port))
}

func setString(dst *string, fallback string) {
	if *dst == "" {
		*dst = fallback
	}
}

func setDuration(dst *time.Duration, fallback time.Duration) {
	if *dst <= 0 {
		*dst = fallback
	}
}

