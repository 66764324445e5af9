package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvVerificationMode = "VERIFICATION_MODE"

	EnvBookingTTL          = "BOOKING_TTL"
	EnvIngestionInterval   = "INGESTION_INTERVAL"
	EnvIngestionBatchSize  = "INGESTION_BATCH_SIZE"
	EnvEmailProviderFilter = "EMAIL_PROVIDER_FILTER"

	EnvScreenshotExtractorURL = "SCREENSHOT_EXTRACTOR_URL"
	EnvExpirationInterval  = "EXPIRATION_INTERVAL"
	EnvExpirationBatchSize = "EXPIRATION_BATCH_SIZE"

	EnvNotificationTopic    = "NOTIFICATION_TOPIC"
	EnvNotificationDLQTopic = "NOTIFICATION_DLQ_TOPIC"

	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize = "MAX_REQUEST_SIZE"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"
)
