package config

import "time"

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "hutsandfarms"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort = "8080"

	DefaultVerificationMode = ModeHybrid

	// A pending booking that has not seen payment evidence within the TTL is
	// swept to expired; the same window bounds match-candidate eligibility.
	DefaultBookingTTL          = 15 * time.Minute
	DefaultIngestionInterval   = 2 * time.Minute
	DefaultIngestionBatchSize  = 25
	DefaultEmailProviderFilter = "" // empty means all providers

	DefaultScreenshotExtractorURL = "http://localhost:8090"

	DefaultExpirationInterval  = 5 * time.Minute
	DefaultExpirationBatchSize = 100

	DefaultNotificationTopic    = "booking-notifications"
	DefaultNotificationDLQTopic = "booking-notifications-dlq"

	DefaultRequestTimeout = 30 * time.Second
	DefaultIdempotencyTTL = 24 * time.Hour
	DefaultMaxRequestSize = 1 * 1024 * 1024 // 1MB

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultPaginationLimit = 100
	DefaultLogLevel        = "info"
)
