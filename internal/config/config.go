package config

import (
	"errors"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
)

var ErrMissingSecret = errors.New("SECRET_KEY must be set")

type Config struct {
	Env        string `yaml:"env" env:"ENV" env-default:"local"`
	Storage    string `yaml:"storage" env:"STORAGE" env-default:"postgres"`
	SecretKey  string `yaml:"-" env:"SECRET_KEY" env-required:"true"`
	PublicURL  string `yaml:"public_url" env:"PUBLIC_URL" env-default:"http://localhost:8080"`
	Tokens     `yaml:"tokens"`
	Password   `yaml:"password"`
	TOTP       `yaml:"totp"`
	Cache      `yaml:"cache"`
	RabbitMQ   `yaml:"rabbitmq"`
	Postgres   `yaml:"postgres"`
	HTTPServer `yaml:"http_server"`
	Email      `yaml:"email"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	MetricsPath string        `yaml:"metrics_path" env-default:"/metrics"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"postgres"`
	Port     int    `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB"`
	SSLMode  string `yaml:"sslmode" env-default:"disable"`
}

type Tokens struct {
	AccessTokenTTL  time.Duration `yaml:"access_token_ttl" env-default:"15m"`
	RefreshTokenTTL time.Duration `yaml:"refresh_token_ttl" env-default:"168h"`
	EmailTokenTTL   time.Duration `yaml:"email_token_ttl" env-default:"168h"`
	ResetTokenTTL   time.Duration `yaml:"reset_token_ttl" env-default:"168h"`
}

// Password holds argon2id cost parameters. Memory is in KiB.
type Password struct {
	Time        uint32 `yaml:"time" env-default:"6"`
	Memory      uint32 `yaml:"memory" env-default:"102400"`
	Parallelism uint8  `yaml:"parallelism" env-default:"8"`
}

type TOTP struct {
	Issuer string `yaml:"issuer" env-default:"Messenger"`
}

type Cache struct {
	Address  string        `yaml:"address" env:"REDIS_ADDRESS" env-default:"localhost:6379"`
	Password string        `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int           `yaml:"db" env-default:"0"`
	TTL      time.Duration `yaml:"ttl" env-default:"1h"`
}

type RabbitMQ struct {
	URL       string `yaml:"url" env:"RABBITMQ_URL" env-required:"true"`
	QueueName string `yaml:"queue_name" env-default:"emails"`
}

type Email struct {
	Host     string `yaml:"host" env:"MAIL_SERVER"`
	Port     int    `yaml:"port" env:"MAIL_PORT" env-default:"2525"`
	Username string `yaml:"username" env:"MAIL_USERNAME"`
	Password string `yaml:"password" env:"MAIL_PASSWORD"`
	From     string `yaml:"from" env:"MAIL_FROM" env-default:"noreply@example.com"`
}

// MustLoad reads the config file at CONFIG_PATH (or configPath when the
// variable is unset) and panics on any error, including a missing SECRET_KEY.
func MustLoad(configPath string) *Config {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		configPath = p
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("Config file does not exist: " + configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		panic("Failed to read config: " + err.Error())
	}

	return cfg
}

func Load(configPath string) (*Config, error) {
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, err
	}

	if cfg.SecretKey == "" {
		return nil, ErrMissingSecret
	}

	return &cfg, nil
}

// MailerConfig is the subset used by the email worker, which never signs tokens.
type MailerConfig struct {
	Env       string `yaml:"env" env:"ENV" env-default:"local"`
	PublicURL string `yaml:"public_url" env:"PUBLIC_URL" env-default:"http://localhost:8080"`
	RabbitMQ  `yaml:"rabbitmq"`
	Email     `yaml:"email"`
}

func MustLoadMailer(configPath string) *MailerConfig {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		configPath = p
	}

	var cfg MailerConfig

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("Failed to read config: " + err.Error())
	}

	return &cfg
}
