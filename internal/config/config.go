package config

import (
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the process configuration, read from the environment.
type Config struct {
	AppPort  string
	AppEnv   string
	LogLevel string

	DBDriver    string
	DatabaseDSN string

	JWTSecret string
	TokenTTL  time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RabbitMQURL string

	AdminUsername string
	AdminEmail    string
	AdminPassword string

	UnknownProductPolicy string
	SeedData             bool
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DATABASE_DSN", "bookstore.db")
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("TOKEN_TTL", "24h")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("ADMIN_USERNAME", "")
	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("ORDER_UNKNOWN_PRODUCTS", "reject")
	v.SetDefault("SEED_DATA", false)
}

// Load reads a .env file when one exists, then the environment.
// Variables already set in the environment win over the file.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	// A missing .env file is normal outside local development.
	_ = godotenv.Load(envFiles...)

	v := viper.New()
	SetDefaults(v)
	v.AutomaticEnv()
	return FromViper(v)
}

// FromViper builds and validates a Config from v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		AppPort:              v.GetString("APP_PORT"),
		AppEnv:               v.GetString("APP_ENV"),
		LogLevel:             v.GetString("LOG_LEVEL"),
		DBDriver:             strings.ToLower(v.GetString("DB_DRIVER")),
		DatabaseDSN:          v.GetString("DATABASE_DSN"),
		JWTSecret:            v.GetString("JWT_SECRET"),
		TokenTTL:             v.GetDuration("TOKEN_TTL"),
		RedisAddr:            v.GetString("REDIS_ADDR"),
		RedisPassword:        v.GetString("REDIS_PASSWORD"),
		RedisDB:              v.GetInt("REDIS_DB"),
		RabbitMQURL:          v.GetString("RABBITMQ_URL"),
		AdminUsername:        v.GetString("ADMIN_USERNAME"),
		AdminEmail:           v.GetString("ADMIN_EMAIL"),
		AdminPassword:        v.GetString("ADMIN_PASSWORD"),
		UnknownProductPolicy: v.GetString("ORDER_UNKNOWN_PRODUCTS"),
		SeedData:             v.GetBool("SEED_DATA"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings that cannot be defaulted.
func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	switch c.DBDriver {
	case "sqlite", "postgres", "mysql":
	default:
		return errors.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}
	if c.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN must be set")
	}
	if c.TokenTTL <= 0 {
		return errors.Errorf("TOKEN_TTL must be positive, got %s", c.TokenTTL)
	}
	if (c.AdminUsername == "") != (c.AdminPassword == "") {
		return errors.New("ADMIN_USERNAME and ADMIN_PASSWORD must be set together")
	}
	return nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
