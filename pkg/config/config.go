package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/client"
	"github.com/smbilal1/Huts-And-Farms-AI-sub002/pkg/logger"
)

// Verification modes controlling how much autonomy the reconciliation engine has.
const (
	ModeAutomated = "automated"
	ModeManual    = "manual"
	ModeHybrid    = "hybrid"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	// DefaultVerificationMode is the fallback when the env var is unset or
	// invalid. Read the live value through VerificationMode().
	DefaultMode string

	BookingTTL          time.Duration
	IngestionInterval   time.Duration
	IngestionBatchSize  int
	EmailProviderFilter string
	ExpirationInterval  time.Duration
	ExpirationBatchSize int

	NotificationTopic    string
	NotificationDLQTopic string

	ScreenshotExtractorURL string

	RequestTimeout time.Duration
	IdempotencyTTL time.Duration
	MaxRequestSize int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		DefaultMode: getEnvStr(EnvVerificationMode, DefaultVerificationMode),

		BookingTTL:          getEnvDuration(EnvBookingTTL, DefaultBookingTTL),
		IngestionInterval:   getEnvDuration(EnvIngestionInterval, DefaultIngestionInterval),
		IngestionBatchSize:  getEnvNum(EnvIngestionBatchSize, DefaultIngestionBatchSize),
		EmailProviderFilter: getEnvStr(EnvEmailProviderFilter, DefaultEmailProviderFilter),
		ExpirationInterval:  getEnvDuration(EnvExpirationInterval, DefaultExpirationInterval),
		ExpirationBatchSize: getEnvNum(EnvExpirationBatchSize, DefaultExpirationBatchSize),

		NotificationTopic:    getEnvStr(EnvNotificationTopic, DefaultNotificationTopic),
		NotificationDLQTopic: getEnvStr(EnvNotificationDLQTopic, DefaultNotificationDLQTopic),

		ScreenshotExtractorURL: getEnvStr(EnvScreenshotExtractorURL, DefaultScreenshotExtractorURL),

		RequestTimeout: getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL: getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize: getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

// VerificationMode re-reads the mode from the environment on every call so an
// operator can flip it without a restart. An unknown value falls back to the
// loaded default; the caller decides how to treat an invalid default.
func (cfg *Config) VerificationMode() string {
	mode := strings.ToLower(strings.TrimSpace(os.Getenv(EnvVerificationMode)))
	if mode == "" {
		return cfg.DefaultMode
	}
	return mode
}

func ValidMode(mode string) bool {
	switch mode {
	case ModeAutomated, ModeManual, ModeHybrid:
		return true
	}
	return false
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	if cfg.MongoURI == "" {
		errors = append(errors, "MongoURI cannot be empty")
	} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
		errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
	}

	if cfg.MongoDatabaseName == "" {
		errors = append(errors, "MongoDatabaseName cannot be empty")
	}
	if cfg.MongoConnTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
	}

	if !ValidMode(cfg.DefaultMode) {
		errors = append(errors, fmt.Sprintf("VerificationMode must be one of [automated, manual, hybrid], got: %s", cfg.DefaultMode))
	}

	if cfg.BookingTTL <= 0 {
		errors = append(errors, fmt.Sprintf("BookingTTL must be positive, got: %s", cfg.BookingTTL))
	}
	if cfg.IngestionInterval <= 0 {
		errors = append(errors, fmt.Sprintf("IngestionInterval must be positive, got: %s", cfg.IngestionInterval))
	}
	if cfg.IngestionBatchSize <= 0 {
		errors = append(errors, fmt.Sprintf("IngestionBatchSize must be positive, got: %d", cfg.IngestionBatchSize))
	}
	if cfg.ExpirationInterval <= 0 {
		errors = append(errors, fmt.Sprintf("ExpirationInterval must be positive, got: %s", cfg.ExpirationInterval))
	}
	if cfg.ExpirationBatchSize <= 0 {
		errors = append(errors, fmt.Sprintf("ExpirationBatchSize must be positive, got: %d", cfg.ExpirationBatchSize))
	}

	if cfg.NotificationTopic == "" {
		errors = append(errors, "NotificationTopic cannot be empty")
	}

	if cfg.ScreenshotExtractorURL == "" {
		errors = append(errors, "ScreenshotExtractorURL cannot be empty")
	}

	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactMongoURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"verification_mode", cfg.DefaultMode,
		"booking_ttl", cfg.BookingTTL,
		"ingestion_interval", cfg.IngestionInterval,
		"ingestion_batch_size", cfg.IngestionBatchSize,
		"email_provider_filter", cfg.EmailProviderFilter,
		"expiration_interval", cfg.ExpirationInterval,
		"expiration_batch_size", cfg.ExpirationBatchSize,
		"notification_topic", cfg.NotificationTopic,
		"notification_dlq_topic", cfg.NotificationDLQTopic,
		"screenshot_extractor_url", cfg.ScreenshotExtractorURL,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
	)
}

func redactMongoURI(uri string) string {
	credentialRegex := regexp.MustCompile(`(mongodb(\+srv)?://)[^:]+:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func NormalizePaginationLimit(limit int) int {
	if limit <= 0 {
		limit = 10
	} else if limit > DefaultPaginationLimit {
		limit = DefaultPaginationLimit
	}
	return limit
}

func NormalizeOffset(offset int64) int64 {
	return max(0, offset)
}
