package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrMissingSecret is returned when no session signing secret is configured.
var ErrMissingSecret = errors.New("JWT_SECRET_KEY environment variable is required")

const EnvProduction = "production"

type Config struct {
	Env       string
	LogLevel  string
	Server    ServerConfig
	UserStore string
	DynamoDB  DynamoDBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	OTP       OTPConfig
	SMS       SMSConfig
	CORS      CORSConfig
}

type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type DynamoDBConfig struct {
	Endpoint  string
	Region    string
	TableName string
}

type RedisConfig struct {
	Endpoint string
	Password string
	DB       int
}

type JWTConfig struct {
	SecretKey     string
	SessionExpiry time.Duration
}

type OTPConfig struct {
	Length         int
	Expiry         time.Duration
	MaxAttempts    int
	ResendCooldown time.Duration
	SweepInterval  time.Duration
}

type SMSConfig struct {
	APIKey  string
	APIURL  string
	Timeout time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

// IsProduction reports whether SMS provider failures must surface to callers.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

// Load reads configuration from the environment. A .env file in the working
// directory is applied first when present; variables already set win.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{
		Env:      getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		},
		UserStore: strings.ToLower(getEnv("USER_STORE", "memory")),
		DynamoDB: DynamoDBConfig{
			Endpoint:  getEnv("DYNAMODB_ENDPOINT", ""),
			Region:    getEnv("DYNAMODB_REGION", "us-east-1"),
			TableName: getEnv("DYNAMODB_TABLE_NAME", "HomeServeUsers"),
		},
		Redis: RedisConfig{
			Endpoint: getEnv("REDIS_ENDPOINT", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			SecretKey:     getEnv("JWT_SECRET_KEY", ""),
			SessionExpiry: getEnvAsDuration("SESSION_EXPIRY", 30*24*time.Hour),
		},
		OTP: OTPConfig{
			Length:         getEnvAsInt("OTP_LENGTH", 6),
			Expiry:         getEnvAsDuration("OTP_EXPIRY", 5*time.Minute),
			MaxAttempts:    getEnvAsInt("OTP_MAX_ATTEMPTS", 3),
			ResendCooldown: getEnvAsDuration("OTP_RESEND_COOLDOWN", 30*time.Second),
			SweepInterval:  getEnvAsDuration("OTP_SWEEP_INTERVAL", time.Minute),
		},
		SMS: SMSConfig{
			APIKey:  getEnv("SMS_API_KEY", ""),
			APIURL:  getEnv("SMS_API_URL", "https://www.fast2sms.com/dev/bulkV2"),
			Timeout: getEnvAsDuration("SMS_TIMEOUT", 10*time.Second),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
	}

	if cfg.JWT.SecretKey == "" {
		return nil, ErrMissingSecret
	}

	if len(cfg.JWT.SecretKey) < 32 {
		return nil, fmt.Errorf("JWT_SECRET_KEY must be at least 32 bytes (256 bits)")
	}

	if cfg.JWT.SessionExpiry <= 0 {
		return nil, fmt.Errorf("SESSION_EXPIRY must be positive, got %s", cfg.JWT.SessionExpiry)
	}

	if err := cfg.OTP.validate(); err != nil {
		return nil, err
	}

	switch cfg.UserStore {
	case "memory", "dynamodb", "redis":
	default:
		return nil, fmt.Errorf("unsupported USER_STORE %q", cfg.UserStore)
	}

	return cfg, nil
}

func (c *OTPConfig) validate() error {
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("OTP_MAX_ATTEMPTS must be positive, got %d", c.MaxAttempts)
	}
	if c.Expiry <= 0 {
		return fmt.Errorf("OTP_EXPIRY must be positive, got %s", c.Expiry)
	}
	if c.ResendCooldown <= 0 {
		return fmt.Errorf("OTP_RESEND_COOLDOWN must be positive, got %s", c.ResendCooldown)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("OTP_SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
