// internal/config/config.go
package config

import (
	"net"
	"net/url"
	"time"

	"github.com/caarlos0/env"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	ResolverModePreferences  = "preferences"
	ResolverModeAllCustomers = "all-customers"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	DBUser      string `env:"DB_USER"`
	DBPassword  string `env:"DB_PASSWORD"`
	DBHost      string `env:"DB_HOST" envDefault:"localhost"`
	DBPort      string `env:"DB_PORT" envDefault:"5432"`
	DBName      string `env:"DB_NAME" envDefault:"reminders"`
	DBSSLMode   string `env:"DB_SSLMODE" envDefault:"disable"`

	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	AMQPURL  string `env:"AMQP_URL"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	SchedulerIntervalSeconds int    `env:"SCHEDULER_INTERVAL_SECONDS" envDefault:"300"`
	SchedulerWorkers         int    `env:"SCHEDULER_WORKERS" envDefault:"1"`
	SchedulerActorID         int64  `env:"SCHEDULER_ACTOR_ID" envDefault:"0"`
	RunLockTTLSeconds        int    `env:"RUN_LOCK_TTL_SECONDS" envDefault:"900"`
	ResolverMode             string `env:"RESOLVER_MODE" envDefault:"preferences"`
	TransportTimeoutSeconds  int    `env:"TRANSPORT_TIMEOUT_SECONDS" envDefault:"15"`

	MailProvider  string `env:"MAIL_PROVIDER" envDefault:"log"`
	MailFrom      string `env:"MAIL_FROM" envDefault:"reminders@localhost"`
	SMTPHost      string `env:"SMTP_HOST"`
	SMTPPort      int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUsername  string `env:"SMTP_USERNAME"`
	SMTPPassword  string `env:"SMTP_PASSWORD"`
	AWSRegion     string `env:"AWS_REGION" envDefault:"eu-west-1"`
	MailgunDomain string `env:"MAILGUN_DOMAIN"`
	MailgunAPIKey string `env:"MAILGUN_API_KEY"`

	SMSProvider    string `env:"SMS_PROVIDER" envDefault:"log"`
	SMSAPIURL      string `env:"SMS_API_URL"`
	SMSAPIUser     string `env:"SMS_API_USER"`
	SMSAPIPassword string `env:"SMS_API_PASSWORD"`
	SMSSenderID    string `env:"SMS_SENDER_ID"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	LogFile   string `env:"LOG_FILE"`
}

// Load reads an optional .env file and then the process environment.
func Load(files ...string) (*Config, error) {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load(files...)

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.ResolverMode {
	case ResolverModePreferences, ResolverModeAllCustomers:
	default:
		return errors.Errorf("RESOLVER_MODE must be %q or %q, got %q", ResolverModePreferences, ResolverModeAllCustomers, c.ResolverMode)
	}
	if c.SchedulerWorkers < 1 {
		c.SchedulerWorkers = 1
	}
	if c.SchedulerIntervalSeconds < 60 {
		c.SchedulerIntervalSeconds = 60
	}
	return nil
}

// DSN prefers DATABASE_URL and otherwise assembles one from the DB_* parts.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     net.JoinHostPort(c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.DBSSLMode}}.Encode(),
	}
	return u.String()
}

func (c *Config) SchedulerInterval() time.Duration {
	return time.Duration(c.SchedulerIntervalSeconds) * time.Second
}

func (c *Config) TransportTimeout() time.Duration {
	return time.Duration(c.TransportTimeoutSeconds) * time.Second
}

func (c *Config) RunLockTTL() time.Duration {
	return time.Duration(c.RunLockTTLSeconds) * time.Second
}
