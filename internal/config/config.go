package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application's configuration values.
type Config struct {
	ServerPort string
	LogLevel   string
	LogFormat  string

	Database *DBConfig

	GeminiAPIKey   string
	GeneratorModel string
	EmbedderModel  string

	ParserServiceURL string

	ResendAPIKey    string
	EmailFrom       string
	DigestDefaultCC string

	MaxWorkers        int
	ReviewConcurrency int
	UpsertBatchSize   int
	DispatchBatchSize int
	RetrievalTopK     int
	WeeklyCronSpec    string
}

// DBConfig holds the Postgres connection settings.
type DBConfig struct {
	Host            string
	Port            int
	Username        string
	Password        string
	Database        string
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// LoadConfig reads configuration from environment variables and a .env
// file, sets sensible defaults, and validates required fields. It uses
// the Viper library to handle loading and precedence.
func LoadConfig() (*Config, error) {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LOG_FORMAT", "text")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", 5432)
	viper.SetDefault("DB_USER", "reviewloop")
	viper.SetDefault("DB_NAME", "reviewloop")
	viper.SetDefault("GENERATOR_MODEL_NAME", "googleai/gemini-2.5-flash")
	viper.SetDefault("EMBEDDER_MODEL_NAME", "text-embedding-004")
	viper.SetDefault("EMAIL_FROM", "noreply@notifications.reviewloop.dev")
	viper.SetDefault("MAX_WORKERS", 5)
	viper.SetDefault("REVIEW_CONCURRENCY", 5)
	viper.SetDefault("UPSERT_BATCH_SIZE", 100)
	viper.SetDefault("DISPATCH_BATCH_SIZE", 50)
	viper.SetDefault("RETRIEVAL_TOP_K", 10)
	viper.SetDefault("WEEKLY_CRON_SPEC", "0 10 * * 1")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", "error", err)
		}
	}

	if viper.GetString("GEMINI_API_KEY") == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY must be set")
	}
	if viper.GetString("RESEND_API_KEY") == "" {
		return nil, fmt.Errorf("RESEND_API_KEY must be set")
	}
	if viper.GetString("PARSER_SERVICE_URL") == "" {
		return nil, fmt.Errorf("PARSER_SERVICE_URL must be set")
	}

	return &Config{
		ServerPort: viper.GetString("SERVER_PORT"),
		LogLevel:   viper.GetString("LOG_LEVEL"),
		LogFormat:  viper.GetString("LOG_FORMAT"),
		Database: &DBConfig{
			Host:            viper.GetString("DB_HOST"),
			Port:            viper.GetInt("DB_PORT"),
			Username:        viper.GetString("DB_USER"),
			Password:        viper.GetString("DB_PASSWORD"),
			Database:        viper.GetString("DB_NAME"),
			ConnMaxLifetime: 30 * time.Minute,
			ConnMaxIdleTime: 5 * time.Minute,
		},
		GeminiAPIKey:      viper.GetString("GEMINI_API_KEY"),
		GeneratorModel:    viper.GetString("GENERATOR_MODEL_NAME"),
		EmbedderModel:     viper.GetString("EMBEDDER_MODEL_NAME"),
		ParserServiceURL:  viper.GetString("PARSER_SERVICE_URL"),
		ResendAPIKey:      viper.GetString("RESEND_API_KEY"),
		EmailFrom:         viper.GetString("EMAIL_FROM"),
		DigestDefaultCC:   viper.GetString("DIGEST_DEFAULT_CC"),
		MaxWorkers:        viper.GetInt("MAX_WORKERS"),
		ReviewConcurrency: viper.GetInt("REVIEW_CONCURRENCY"),
		UpsertBatchSize:   viper.GetInt("UPSERT_BATCH_SIZE"),
		DispatchBatchSize: viper.GetInt("DISPATCH_BATCH_SIZE"),
		RetrievalTopK:     viper.GetInt("RETRIEVAL_TOP_K"),
		WeeklyCronSpec:    viper.GetString("WEEKLY_CRON_SPEC"),
	}, nil
}
