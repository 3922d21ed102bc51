package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the booking service.
type Config struct {
	Port     string   `yaml:"port" env:"PORT" env-default:":8080"`
	AppEnv   string   `yaml:"app_env" env:"APP_ENV" env-default:"development"`
	Database Database `yaml:"database"`
	Redis    Redis    `yaml:"redis"`
	Kafka    Kafka    `yaml:"kafka"`
	SMTP     SMTP     `yaml:"smtp"`
	Auth     Auth     `yaml:"auth"`
}

// Database holds PostgreSQL connection settings.
type Database struct {
	Host     string `yaml:"host" env:"DB_HOST" env-default:"localhost"`
	Port     string `yaml:"port" env:"DB_PORT" env-default:"5432"`
	User     string `yaml:"user" env:"DB_USER" env-required:"true"`
	Password string `yaml:"password" env:"DB_PASSWORD" env-required:"true"`
	Name     string `yaml:"name" env:"DB_NAME" env-default:"busbook"`
	SSLMode  string `yaml:"ssl_mode" env:"DB_SSL_MODE" env-default:"disable"`
}

// DSN returns the GORM PostgreSQL connection string.
func (d *Database) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

// Redis holds connection settings for the OTP store.
type Redis struct {
	Addr     string `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	Password string `yaml:"password" env:"REDIS_PASSWORD" env-default:""`
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Kafka holds event publishing settings.
type Kafka struct {
	Brokers      []string `yaml:"brokers" env:"KAFKA_BROKERS" env-default:"localhost:9092" env-separator:","`
	BookingTopic string   `yaml:"booking_topic" env:"KAFKA_BOOKING_TOPIC" env-default:"booking.events"`
	GroupPrefix  string   `yaml:"group_prefix" env:"KAFKA_GROUP_PREFIX" env-default:"busbook-"`
}

// SMTP holds outgoing mail settings.
type SMTP struct {
	Host     string `yaml:"host" env:"SMTP_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"SMTP_PORT" env-default:"587"`
	Username string `yaml:"username" env:"SMTP_USERNAME" env-default:""`
	Password string `yaml:"password" env:"SMTP_PASSWORD" env-default:""`
	From     string `yaml:"from" env:"SMTP_FROM" env-default:"BusBook <no-reply@busbook.local>"`
}

// Auth holds JWT and admin settings.
type Auth struct {
	JWTSecret     string `yaml:"jwt_secret" env:"JWT_SECRET" env-required:"true"`
	AdminContacts string `yaml:"admin_contacts" env:"ADMIN_CONTACTS" env-default:""`
}

// AdminContactList splits the comma-separated admin contacts.
func (a *Auth) AdminContactList() []string {
	if a.AdminContacts == "" {
		return nil
	}
	parts := strings.Split(a.AdminContacts, ",")
	contacts := make([]string, 0, len(parts))
	for _, p := range parts {
		if c := strings.TrimSpace(p); c != "" {
			contacts = append(contacts, c)
		}
	}
	return contacts
}

// Load reads configuration from an optional YAML file with environment
// variable overrides. When the file is absent, environment variables alone
// are used.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			if err := cleanenv.ReadConfig(configPath, cfg); err != nil {
				return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
			}
			return cfg, nil
		}
	}

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment variables: %w", err)
	}
	return cfg, nil
}
