package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config holds all configuration for the application.
type Config struct {
	AppEnv                string
	DBPath                string
	DBDriver              string
	RedisAddr             string
	RedisEnabled          bool
	GRPCPort              int
	GRPCReflectionEnabled bool

	OracleBaseURL       string
	OracleAPIKey        string
	OracleModel         string
	OracleTimeout       time.Duration
	OracleMaxConcurrent int64

	RetryMaxAttempts int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration

	GroupConcurrency  int
	EntryConcurrency  int
	AllowedModels     []string
	GateMaxTurnLength int
	RubricPath        string
	OutputDir         string

	S3Endpoint  string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
	S3Region    string
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() *Config {
	return &Config{
		AppEnv:                getEnv("APP_ENV", "development"),
		DBPath:                getEnv("DB_PATH", "./data/insighter.db"),
		DBDriver:              getEnv("DB_DRIVER", "sqlite3"),
		RedisAddr:             getEnv("REDIS_ADDR", "localhost:6379"),
		RedisEnabled:          getBool("REDIS_ENABLED", true),
		GRPCPort:              getInt("GRPC_PORT", 50051),
		GRPCReflectionEnabled: getBool("GRPC_REFLECTION_ENABLED", false),

		OracleBaseURL:       getEnv("ORACLE_BASE_URL", "https://api.openai.com/v1"),
		OracleAPIKey:        getEnv("ORACLE_API_KEY", ""),
		OracleModel:         getEnv("ORACLE_MODEL", "gpt-4"),
		OracleTimeout:       getDuration("ORACLE_TIMEOUT", 120*time.Second),
		OracleMaxConcurrent: int64(getInt("ORACLE_MAX_CONCURRENT", 8)),

		RetryMaxAttempts: getInt("RETRY_MAX_ATTEMPTS", 10),
		RetryBaseDelay:   getDuration("RETRY_BASE_DELAY", time.Second),
		RetryMaxDelay:    getDuration("RETRY_MAX_DELAY", 16*time.Second),

		GroupConcurrency:  getInt("GROUP_CONCURRENCY", 2),
		EntryConcurrency:  getInt("ENTRY_CONCURRENCY", 4),
		AllowedModels:     getList("ALLOWED_MODELS"),
		GateMaxTurnLength: getInt("GATE_MAX_TURN_LENGTH", 1500),
		RubricPath:        getEnv("RUBRIC_PATH", ""),
		OutputDir:         getEnv("OUTPUT_DIR", "./output"),

		S3Endpoint:  getEnv("S3_ENDPOINT", ""),
		S3Bucket:    getEnv("S3_BUCKET", ""),
		S3AccessKey: getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey: getEnv("S3_SECRET_KEY", ""),
		S3Region:    getEnv("S3_REGION", "us-east-1"),
	}
}

// NewLogger creates a new Zap logger based on the config.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	if cfg.AppEnv == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return v
}

func getList(key string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, ""), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
