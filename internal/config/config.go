package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

// Config holds every process-level setting read from the environment
type Config struct {
	Env        string
	ServerPort string

	StoreDriver   string
	DB            *DBConfig
	MongoURI      string
	MongoDatabase string

	JWTSecret  string
	SessionTTL time.Duration
	ResetTTL   time.Duration

	ResetURLBase string
	Mail         MailConfig
	Redis        RedisConfig

	InitialAdminPhone string
	RouteEditPublic   bool
}

// MailConfig holds SMTP credentials. An empty Host selects the log mailer.
type MailConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// RedisConfig points at the consumed reset-token ledger. An empty Addr
// selects the in-process ledger.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load reads the configuration from environment variables. The caller is
// expected to have loaded any .env file beforehand.
func Load() (*Config, error) {
	cfg := &Config{
		Env:               getEnv("APP_ENV", "development"),
		ServerPort:        getEnv("SERVER_PORT", "5000"),
		StoreDriver:       getEnv("STORE_DRIVER", DriverPostgres),
		MongoURI:          os.Getenv("MONGO_URI"),
		MongoDatabase:     getEnv("MONGO_DATABASE", "Bus-Ticket"),
		JWTSecret:         os.Getenv("JWT_SECRET_KEY"),
		SessionTTL:        time.Duration(getEnvInt("JWT_EXPIRATION_HOURS", 1)) * time.Hour,
		ResetTTL:          time.Duration(getEnvInt("RESET_TOKEN_TTL_MINUTES", 5)) * time.Minute,
		ResetURLBase:      getEnv("RESET_URL_BASE", "http://localhost:5173/reset-password/"),
		InitialAdminPhone: os.Getenv("INITIAL_ADMIN_PHONE"),
		RouteEditPublic:   getEnvBool("ROUTE_EDIT_PUBLIC", false),
		Mail: MailConfig{
			Host:     os.Getenv("MAIL_HOST"),
			Port:     getEnvInt("MAIL_PORT", 587),
			User:     os.Getenv("MAIL_USER"),
			Password: os.Getenv("MAIL_PASSWORD"),
			From:     os.Getenv("MAIL_FROM"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY not set in environment")
	}
	if cfg.SessionTTL <= 0 {
		return nil, fmt.Errorf("JWT_EXPIRATION_HOURS must be positive")
	}
	if cfg.ResetTTL <= 0 {
		return nil, fmt.Errorf("RESET_TOKEN_TTL_MINUTES must be positive")
	}
	if cfg.Mail.From == "" {
		cfg.Mail.From = cfg.Mail.User
	}

	switch cfg.StoreDriver {
	case DriverPostgres:
		dbCfg, err := LoadDBConfig()
		if err != nil {
			return nil, err
		}
		cfg.DB = dbCfg
	case DriverMongo:
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("MONGO_URI not set in environment")
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q (want postgres, mongo or memory)", cfg.StoreDriver)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
