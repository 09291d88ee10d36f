package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageMemory   = "memory"
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"

	TransportRabbitMQ = "rabbitmq"
	TransportSMTP     = "smtp"
	TransportLog      = "log"
)

type Config struct {
	Env          string `yaml:"env" env:"ENV" env-default:"local"`
	HTTPServer   `yaml:"http_server"`
	Storage      `yaml:"storage"`
	Postgres     `yaml:"postgres"`
	Mongo        `yaml:"mongo"`
	Redis        `yaml:"redis"`
	Tokens       `yaml:"tokens"`
	Verification `yaml:"verification"`
	Notifier     `yaml:"notifier"`
	RabbitMQ     `yaml:"rabbitmq"`
	Email        `yaml:"email"`
	Sweep        `yaml:"sweep"`
	S3           `yaml:"s3"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
	RateLimit   bool          `yaml:"rate_limit" env:"HTTP_RATE_LIMIT" env-default:"true"`
}

type Storage struct {
	Driver string `yaml:"driver" env:"STORAGE_DRIVER" env-default:"postgres"`
}

type Postgres struct {
	Host     string `yaml:"host" env:"POSTGRES_HOST" env-default:"postgres"`
	Port     int    `yaml:"port" env:"POSTGRES_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"POSTGRES_USER"`
	Password string `yaml:"password" env:"POSTGRES_PASSWORD"`
	DBName   string `yaml:"dbname" env:"POSTGRES_DB"`
	SSLMode  string `yaml:"sslmode" env:"POSTGRES_SSLMODE" env-default:"disable"`
}

type Mongo struct {
	URI      string `yaml:"uri" env:"MONGO_URI"`
	Database string `yaml:"database" env:"MONGO_DATABASE" env-default:"lockify"`
}

// Redis is optional. An empty address disables the sweep lease.
type Redis struct {
	Address  string `yaml:"address" env:"REDIS_ADDRESS"`
	Password string `yaml:"password" env:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

type Tokens struct {
	Secret         string        `yaml:"secret" env:"JWT_SECRET" env-required:"true"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl" env:"JWT_EXPIRES_IN" env-default:"1h"`
}

type Verification struct {
	BaseURL string `yaml:"base_url" env:"VERIFICATION_URL" env-default:"http://localhost:8080"`
}

type Notifier struct {
	Transport string        `yaml:"transport" env:"NOTIFIER_TRANSPORT" env-default:"rabbitmq"`
	Timeout   time.Duration `yaml:"timeout" env-default:"10s"`
}

type RabbitMQ struct {
	URL       string `yaml:"url" env:"RABBITMQ_URL"`
	QueueName string `yaml:"queue_name" env:"RABBITMQ_QUEUE" env-default:"verification_emails"`
}

type Email struct {
	Host     string `yaml:"host" env:"EMAIL_HOST"`
	Port     int    `yaml:"port" env:"EMAIL_PORT" env-default:"465"`
	Username string `yaml:"username" env:"EMAIL_USER"`
	Password string `yaml:"password" env:"EMAIL_PASS"`
}

type Sweep struct {
	Interval  time.Duration `yaml:"interval" env:"SWEEP_INTERVAL" env-default:"60s"`
	Retention time.Duration `yaml:"retention" env:"SWEEP_RETENTION" env-default:"1h"`
}

// S3 is optional. An empty bucket disables attachment presigning.
type S3 struct {
	Region     string        `yaml:"region" env:"S3_REGION" env-default:"us-east-1"`
	Endpoint   string        `yaml:"endpoint" env:"S3_ENDPOINT"`
	AccessKey  string        `yaml:"access_key" env:"S3_ACCESS_KEY"`
	SecretKey  string        `yaml:"secret_key" env:"S3_SECRET_KEY"`
	Bucket     string        `yaml:"bucket" env:"S3_BUCKET"`
	PresignTTL time.Duration `yaml:"presign_ttl" env-default:"15m"`
}

func MustLoad() *Config {
	cfg, err := Load(fetchConfigPath())
	if err != nil {
		panic(err.Error())
	}

	return cfg
}

func Load(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case StoragePostgres:
		if c.Postgres.User == "" || c.Postgres.DBName == "" {
			return errors.New("postgres storage requires user and dbname")
		}
	case StorageMongo:
		if c.Mongo.URI == "" {
			return errors.New("mongo storage requires uri")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Notifier.Transport {
	case TransportRabbitMQ:
		if c.RabbitMQ.URL == "" {
			return errors.New("rabbitmq transport requires rabbitmq.url")
		}
	case TransportSMTP:
		if c.Email.Host == "" {
			return errors.New("smtp transport requires email.host")
		}
	case TransportLog:
	default:
		return fmt.Errorf("unknown notifier transport %q", c.Notifier.Transport)
	}

	if c.Sweep.Interval <= 0 || c.Sweep.Retention <= 0 {
		return errors.New("sweep interval and retention must be positive")
	}

	return nil
}

// fetchConfigPath reads the config path from the -config flag or CONFIG_PATH.
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	if res == "" {
		res = "./config/config.yaml"
	}

	return res
}

// MailSender is the configuration of the mail_sender consumer process.
type MailSender struct {
	Env      string `yaml:"env" env:"ENV" env-default:"local"`
	RabbitMQ `yaml:"rabbitmq"`
	Email    `yaml:"email"`
}

func MustLoadMailSender() *MailSender {
	cfg, err := LoadMailSender(fetchConfigPath())
	if err != nil {
		panic(err.Error())
	}

	return cfg
}

func LoadMailSender(configPath string) (*MailSender, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	var cfg MailSender

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if cfg.RabbitMQ.URL == "" || cfg.Email.Host == "" {
		return nil, errors.New("mail sender requires rabbitmq.url and email.host")
	}

	return &cfg, nil
}
