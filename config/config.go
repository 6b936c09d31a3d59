package config

import "time"

type Config struct {
	AppName                       string   `env:"APP_NAME" env-default:"aster"`
	Port                          int      `env:"PORT" env-default:"3005"`
	LogLevel                      string   `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs                    bool     `env:"PRETTY_LOGS" env-default:"false"`
	HttpServerWriteTimeoutSeconds int      `env:"HTTP_SERVER_WRITE_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerReadTimeoutSeconds  int      `env:"HTTP_SERVER_READ_TIMEOUT_SECONDS" env-default:"10"`
	HttpServerIdleTimeoutSeconds  int      `env:"HTTP_SERVER_IDLE_TIMEOUT_SECONDS" env-default:"10"`
	AllowOrigins                  []string `env:"HTTP_SERVER_ALLOW_ORIGINS" env-default:"*"`
	StartupMaxAttempts            int      `env:"STARTUP_MAX_ATTEMPTS" env-default:"5"`

	// PostgreSQL (Aster mapping database)
	DatabaseDriver                string        `env:"DB_DRIVER" env-default:"postgres"`
	DatabaseHost                  string        `env:"DB_HOST" env-default:"" validate:"required"`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"aster"`
	DatabaseSSLMode               string        `env:"DB_SQL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// PostgreSQL (case-management source store, read only)
	SourceDatabaseHost     string `env:"SOURCE_DB_HOST" env-default:"" validate:"required"`
	SourceDatabasePort     string `env:"SOURCE_DB_PORT" env-default:"5432"`
	SourceDatabaseUserName string `env:"SOURCE_DB_USER_NAME" env-default:""`
	SourceDatabasePassword string `env:"SOURCE_DB_PASSWORD" env-default:""`
	SourceDatabaseName     string `env:"SOURCE_DB_NAME" env-default:"casestore"`
	SourceDatabaseSSLMode  string `env:"SOURCE_DB_SQL_MODE" env-default:"disable"`

	// Remote collaboration board
	BoardBaseURL        string        `env:"BOARD_BASE_URL" env-default:"" validate:"required,url"`
	BoardAPIToken       string        `env:"BOARD_API_TOKEN" env-default:""`
	BoardID             int64         `env:"BOARD_ID" env-default:"0" validate:"required"`
	BoardGroupID        string        `env:"BOARD_GROUP_ID" env-default:"new_cases"`
	BoardRequestTimeout time.Duration `env:"BOARD_REQUEST_TIMEOUT" env-default:"30s"`

	// Column ids on the remote board
	CaseNumberColumnID     string `env:"CASE_NUMBER_COLUMN_ID" env-default:"case_number"`
	CaseStageColumnID      string `env:"CASE_STAGE_COLUMN_ID" env-default:"stage"`
	HearingStatusColumnID  string `env:"HEARING_STATUS_COLUMN_ID" env-default:"hearing_status"`
	CourtroomColumnID      string `env:"COURTROOM_COLUMN_ID" env-default:"courtroom"`
	HearingOfficerColumnID string `env:"HEARING_OFFICER_COLUMN_ID" env-default:"hearing_officer"`
	HearingDateColumnID    string `env:"HEARING_DATE_COLUMN_ID" env-default:"hearing_date"`
	HearingTimeColumnID    string `env:"HEARING_TIME_COLUMN_ID" env-default:"hearing_time"`

	// Redis (scheduler lock)
	RedisHost     string `env:"REDIS_HOST" env-default:"localhost"`
	RedisPort     int    `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int    `env:"REDIS_DB" env-default:"0"`

	// Kafka producer (sync events)
	KafkaEnabled      bool     `env:"KAFKA_ENABLED" env-default:"true"`
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:"localhost:9092"`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"case-sync-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Reconciliation
	SyncInterval         time.Duration `env:"SYNC_INTERVAL" env-default:"5m"`
	SyncOverlap          time.Duration `env:"SYNC_OVERLAP" env-default:"2m"`
	SyncFirstRunLookback time.Duration `env:"SYNC_FIRST_RUN_LOOKBACK" env-default:"5m"`
	SyncBatchSize        int           `env:"SYNC_BATCH_SIZE" env-default:"200"`
	SyncLockTTL          time.Duration `env:"SYNC_LOCK_TTL" env-default:"10m"`
	WriteDedupWindow     time.Duration `env:"WRITE_DEDUP_WINDOW" env-default:"10m"`

	// Alerting
	AlertQueueSize      int           `env:"ALERT_QUEUE_SIZE" env-default:"100"`
	AlertDedupWindow    time.Duration `env:"ALERT_DEDUP_WINDOW" env-default:"30m"`
	AlertMaxPerMinute   int           `env:"ALERT_MAX_PER_MINUTE" env-default:"10"`
	AlertMaxPerProcess  int           `env:"ALERT_MAX_PER_PROCESS" env-default:"200"`
	AlertDigestInterval time.Duration `env:"ALERT_DIGEST_INTERVAL" env-default:"1h"`

	// Tracing
	TracingEnabled      bool   `env:"TRACING_ENABLED" env-default:"false"`
	TracingOTLPEndpoint string `env:"TRACING_OTLP_ENDPOINT" env-default:"localhost:4317"`
	TracingOTLPProtocol string `env:"TRACING_OTLP_PROTOCOL" env-default:"grpc"`
}
