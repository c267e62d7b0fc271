package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	Server       ServerConfig
	Database     DatabaseConfig
	Auth         AuthConfig
	Mail         MailConfig
	Media        MediaConfig
	Realtime     RealtimeConfig
	Log          LogConfig
	Housekeeping HousekeepingConfig
}

type ServerConfig struct {
	Port      string `env:"PORT,default=5000"`
	BaseURL   string `env:"BASE_URL,default=http://localhost:3000"`
	ClientURL string `env:"CLIENT_URL,default=*"`
}

type DatabaseConfig struct {
	Path string `env:"DATABASE_PATH,default=./socialhub.db"`
}

type AuthConfig struct {
	JWTSecret     string        `env:"JWT_SECRET,required"`
	JWTTTL        time.Duration `env:"JWT_TTL,default=360h"`
	CookieSecure  bool          `env:"COOKIE_SECURE,default=false"`
	OTPTTL        time.Duration `env:"OTP_TTL,default=10m"`
	ResetTokenTTL time.Duration `env:"RESET_TOKEN_TTL,default=1h"`
	RateLimit     int           `env:"AUTH_RATE_LIMIT,default=5"`
	RateBurst     int           `env:"AUTH_RATE_BURST,default=10"`
}

type MailConfig struct {
	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     string `env:"SMTP_PORT,default=587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	From         string `env:"MAIL_FROM,default=no-reply@socialhub.local"`
	FeedbackTo   string `env:"FEEDBACK_TO"`
}

// Enabled reports whether enough SMTP settings are present to send real mail.
func (m MailConfig) Enabled() bool {
	return m.SMTPHost != "" && m.SMTPUsername != ""
}

type MediaConfig struct {
	UploadDir string `env:"UPLOAD_DIR,default=./uploads"`
	UploadURL string `env:"UPLOAD_URL,default=/uploads"`
}

type RealtimeConfig struct {
	DeliveryDelay time.Duration `env:"DELIVERY_DELAY,default=1s"`
	EventBus      string        `env:"EVENT_BUS,default=local"`
	RedisAddr     string        `env:"REDIS_ADDR,default=localhost:6379"`
	RedisChannel  string        `env:"REDIS_CHANNEL,default=socialhub:events"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL,default=info"`
	Format string `env:"LOG_FORMAT,default=text"`
}

type HousekeepingConfig struct {
	Schedule string `env:"CLEANUP_SCHEDULE,default=@every 5m"`
}

// Load reads an optional .env file and decodes the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.WithError(err).Debug("no .env file loaded")
	}

	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Realtime.EventBus {
	case "local", "redis":
	default:
		return fmt.Errorf("unsupported EVENT_BUS %q", c.Realtime.EventBus)
	}
	if c.Auth.OTPTTL <= 0 || c.Auth.ResetTokenTTL <= 0 || c.Auth.JWTTTL <= 0 {
		return errors.New("token lifetimes must be positive")
	}
	return nil
}

func (c *Config) Addr() string {
	return ":" + c.Server.Port
}
