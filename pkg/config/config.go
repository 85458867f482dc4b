package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database      DatabaseConfig
	Redis         RedisConfig
	CORS          CORSConfig
	Log           LogConfig
	Classifier    ClassifierConfig
	Moderation    ModerationConfig
	Retry         RetryConfig
	Storage       StorageConfig
	Notifications NotificationsConfig
	Retention     RetentionConfig
	Events        EventsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ClassifierConfig points at the external content-classification service.
type ClassifierConfig struct {
	BaseURL        string
	CallbackURL    string
	RequestTimeout time.Duration
}

// ModerationConfig tunes the verdict state machine.
type ModerationConfig struct {
	ScoreThreshold     float64
	StaleSubmissionAge time.Duration
	JWTSecret          string
}

// RetryConfig governs the durable work queue.
type RetryConfig struct {
	MaxAttempts  int
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	CapExponent  int
	BatchSize    int
	PassInterval time.Duration
	LeaseTimeout time.Duration
}

// StorageConfig selects and configures the tier storage backend.
type StorageConfig struct {
	Backend    string // "local" or "s3"
	BaseDir    string
	KeepBackup bool

	S3Endpoint  string
	S3Region    string
	S3Bucket    string
	S3AccessKey string
	S3SecretKey string
}

// NotificationsConfig tunes the admin notification hub.
type NotificationsConfig struct {
	RealtimeEnabled bool
	EmailEnabled    bool
	WebhookEnabled  bool
	HourlyCap       int
	FlushInterval   time.Duration
	SessionBuffer   int
	EmailFrom       string
	EmailRecipients []string
	SMTPAddr        string
	WebhookURL      string
}

// RetentionConfig holds the cleanup windows for each durable store.
type RetentionConfig struct {
	Notifications time.Duration
	RetryOps      time.Duration
	MediaLogs     time.Duration
	StorageFiles  time.Duration
}

// EventsConfig enables the optional NATS mirror for persisted notifications.
type EventsConfig struct {
	NATSURL string
	Subject string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Classifier = ClassifierConfig{
		BaseURL:        v.GetString("CLASSIFIER_BASE_URL"),
		CallbackURL:    v.GetString("CLASSIFIER_CALLBACK_URL"),
		RequestTimeout: parseDuration(v.GetString("CLASSIFIER_REQUEST_TIMEOUT"), 10*time.Second),
	}

	cfg.Moderation = ModerationConfig{
		ScoreThreshold:     v.GetFloat64("MODERATION_SCORE_THRESHOLD"),
		StaleSubmissionAge: parseDuration(v.GetString("MODERATION_STALE_AGE"), 24*time.Hour),
		JWTSecret:          v.GetString("ADMIN_JWT_SECRET"),
	}

	cfg.Retry = RetryConfig{
		MaxAttempts:  v.GetInt("RETRY_MAX_ATTEMPTS"),
		BaseDelay:    parseDuration(v.GetString("RETRY_BASE_DELAY"), 30*time.Second),
		MaxDelay:     parseDuration(v.GetString("RETRY_MAX_DELAY"), time.Hour),
		CapExponent:  v.GetInt("RETRY_CAP_EXPONENT"),
		BatchSize:    v.GetInt("RETRY_BATCH_SIZE"),
		PassInterval: parseDuration(v.GetString("RETRY_PASS_INTERVAL"), 5*time.Second),
		LeaseTimeout: parseDuration(v.GetString("RETRY_LEASE_TIMEOUT"), 5*time.Minute),
	}

	cfg.Storage = StorageConfig{
		Backend:     v.GetString("STORAGE_BACKEND"),
		BaseDir:     v.GetString("STORAGE_BASE_DIR"),
		KeepBackup:  v.GetBool("STORAGE_KEEP_BACKUP"),
		S3Endpoint:  v.GetString("STORAGE_S3_ENDPOINT"),
		S3Region:    v.GetString("STORAGE_S3_REGION"),
		S3Bucket:    v.GetString("STORAGE_S3_BUCKET"),
		S3AccessKey: v.GetString("STORAGE_S3_ACCESS_KEY"),
		S3SecretKey: v.GetString("STORAGE_S3_SECRET_KEY"),
	}

	cfg.Notifications = NotificationsConfig{
		RealtimeEnabled: v.GetBool("NOTIFY_REALTIME_ENABLED"),
		EmailEnabled:    v.GetBool("NOTIFY_EMAIL_ENABLED"),
		WebhookEnabled:  v.GetBool("NOTIFY_WEBHOOK_ENABLED"),
		HourlyCap:       v.GetInt("NOTIFY_HOURLY_CAP"),
		FlushInterval:   parseDuration(v.GetString("NOTIFY_FLUSH_INTERVAL"), 5*time.Second),
		SessionBuffer:   v.GetInt("NOTIFY_SESSION_BUFFER"),
		EmailFrom:       v.GetString("NOTIFY_EMAIL_FROM"),
		EmailRecipients: splitAndTrim(v.GetString("NOTIFY_EMAIL_RECIPIENTS")),
		SMTPAddr:        v.GetString("NOTIFY_SMTP_ADDR"),
		WebhookURL:      v.GetString("NOTIFY_WEBHOOK_URL"),
	}

	cfg.Retention = RetentionConfig{
		Notifications: parseDuration(v.GetString("RETENTION_NOTIFICATIONS"), 30*24*time.Hour),
		RetryOps:      parseDuration(v.GetString("RETENTION_RETRY_OPS"), 7*24*time.Hour),
		MediaLogs:     parseDuration(v.GetString("RETENTION_MEDIA_LOGS"), 30*24*time.Hour),
		StorageFiles:  parseDuration(v.GetString("RETENTION_STORAGE_FILES"), 30*24*time.Hour),
	}

	cfg.Events = EventsConfig{
		NATSURL: v.GetString("NATS_URL"),
		Subject: v.GetString("NATS_SUBJECT"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "media_moderation")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CLASSIFIER_BASE_URL", "http://localhost:5000")
	v.SetDefault("CLASSIFIER_CALLBACK_URL", "http://localhost:8080/api/v1/moderation/callback")
	v.SetDefault("CLASSIFIER_REQUEST_TIMEOUT", "10s")

	v.SetDefault("MODERATION_SCORE_THRESHOLD", 30)
	v.SetDefault("MODERATION_STALE_AGE", "24h")
	v.SetDefault("ADMIN_JWT_SECRET", "dev_secret")

	v.SetDefault("RETRY_MAX_ATTEMPTS", 5)
	v.SetDefault("RETRY_BASE_DELAY", "30s")
	v.SetDefault("RETRY_MAX_DELAY", "1h")
	v.SetDefault("RETRY_CAP_EXPONENT", 6)
	v.SetDefault("RETRY_BATCH_SIZE", 25)
	v.SetDefault("RETRY_PASS_INTERVAL", "5s")
	v.SetDefault("RETRY_LEASE_TIMEOUT", "5m")

	v.SetDefault("STORAGE_BACKEND", "local")
	v.SetDefault("STORAGE_BASE_DIR", "./media")
	v.SetDefault("STORAGE_KEEP_BACKUP", true)
	v.SetDefault("STORAGE_S3_ENDPOINT", "")
	v.SetDefault("STORAGE_S3_REGION", "us-east-1")
	v.SetDefault("STORAGE_S3_BUCKET", "media-moderation")
	v.SetDefault("STORAGE_S3_ACCESS_KEY", "")
	v.SetDefault("STORAGE_S3_SECRET_KEY", "")

	v.SetDefault("NOTIFY_REALTIME_ENABLED", true)
	v.SetDefault("NOTIFY_EMAIL_ENABLED", false)
	v.SetDefault("NOTIFY_WEBHOOK_ENABLED", false)
	v.SetDefault("NOTIFY_HOURLY_CAP", 100)
	v.SetDefault("NOTIFY_FLUSH_INTERVAL", "5s")
	v.SetDefault("NOTIFY_SESSION_BUFFER", 16)
	v.SetDefault("NOTIFY_EMAIL_FROM", "moderation@localhost")
	v.SetDefault("NOTIFY_EMAIL_RECIPIENTS", "")
	v.SetDefault("NOTIFY_SMTP_ADDR", "localhost:25")
	v.SetDefault("NOTIFY_WEBHOOK_URL", "")

	v.SetDefault("RETENTION_NOTIFICATIONS", "720h")
	v.SetDefault("RETENTION_RETRY_OPS", "168h")
	v.SetDefault("RETENTION_MEDIA_LOGS", "720h")
	v.SetDefault("RETENTION_STORAGE_FILES", "720h")

	v.SetDefault("NATS_URL", "")
	v.SetDefault("NATS_SUBJECT", "moderation.notifications")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
