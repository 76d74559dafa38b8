package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

const (
	PaymentProviderMidtrans    = "midtrans"
	PaymentProviderMercadoPago = "mercadopago"

	StorageDriverLocal = "local"
	StorageDriverS3    = "s3"
)

type Config struct {
	Env             string
	Port            int
	APIPrefix       string
	ShutdownTimeout time.Duration

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	Payment       PaymentConfig
	Booking       BookingConfig
	Cache         CacheConfig
	Notifications NotificationConfig
	Storage       StorageConfig
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
	AutoMigrate  bool
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds the shared secret used to verify identity tokens issued upstream.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// PaymentConfig selects and configures the checkout provider.
type PaymentConfig struct {
	Provider   string
	Currency   string
	Timeout    time.Duration
	SuccessURL string
	CancelURL  string
	SessionTTL time.Duration

	MidtransServerKey  string
	MidtransProduction bool

	MercadoPagoAccessToken     string
	MercadoPagoWebhookSecret   string
	MercadoPagoNotificationURL string
}

// BookingConfig tunes enrollment and booking lifecycle rules.
type BookingConfig struct {
	AbsenceBufferDefault int
	ScheduleTimezone     string
	ReaperSchedule       string
	PendingTTL           time.Duration
}

// CacheConfig governs read-model caching.
type CacheConfig struct {
	Enabled       bool
	EnrollmentTTL time.Duration
	EventMarkTTL  time.Duration
}

// NotificationConfig sizes the notification worker pool.
type NotificationConfig struct {
	Workers    int
	MaxRetries int
}

// StorageConfig controls where session attachments are written.
type StorageConfig struct {
	Driver           string
	LocalDir         string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
	MaxFileSizeBytes int64
	AllowedMIMEs     []string

	S3Bucket   string
	S3Region   string
	S3Endpoint string
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
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")
	cfg.ShutdownTimeout = parseDuration(v.GetString("SHUTDOWN_TIMEOUT"), 15*time.Second)

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Payment = PaymentConfig{
		Provider:                   strings.ToLower(v.GetString("PAYMENT_PROVIDER")),
		Currency:                   strings.ToLower(v.GetString("PAYMENT_CURRENCY")),
		Timeout:                    parseDuration(v.GetString("PAYMENT_TIMEOUT"), 15*time.Second),
		SuccessURL:                 v.GetString("PAYMENT_SUCCESS_URL"),
		CancelURL:                  v.GetString("PAYMENT_CANCEL_URL"),
		SessionTTL:                 parseDuration(v.GetString("PAYMENT_SESSION_TTL"), 23*time.Hour),
		MidtransServerKey:          v.GetString("MIDTRANS_SERVER_KEY"),
		MidtransProduction:         v.GetBool("MIDTRANS_PRODUCTION"),
		MercadoPagoAccessToken:     v.GetString("MERCADOPAGO_ACCESS_TOKEN"),
		MercadoPagoWebhookSecret:   v.GetString("MERCADOPAGO_WEBHOOK_SECRET"),
		MercadoPagoNotificationURL: v.GetString("MERCADOPAGO_NOTIFICATION_URL"),
	}

	buffer := v.GetInt("ABSENCE_BUFFER_DEFAULT")
	if buffer < 0 {
		buffer = 2
	}
	cfg.Booking = BookingConfig{
		AbsenceBufferDefault: buffer,
		ScheduleTimezone:     v.GetString("SCHEDULE_TIMEZONE"),
		ReaperSchedule:       v.GetString("BOOKING_REAPER_SCHEDULE"),
		PendingTTL:           parseDuration(v.GetString("BOOKING_PENDING_TTL"), 24*time.Hour),
	}

	cfg.Payment.SessionTTL = checkoutWindow(cfg.Payment.SessionTTL, cfg.Booking.PendingTTL)

	cfg.Cache = CacheConfig{
		Enabled:       v.GetBool("CACHE_ENABLED"),
		EnrollmentTTL: parseDuration(v.GetString("ENROLLMENT_CACHE_TTL"), 2*time.Minute),
		EventMarkTTL:  parseDuration(v.GetString("WEBHOOK_EVENT_MARK_TTL"), 72*time.Hour),
	}

	cfg.Notifications = NotificationConfig{
		Workers:    v.GetInt("NOTIFY_WORKERS"),
		MaxRetries: v.GetInt("NOTIFY_RETRIES"),
	}

	maxFileSize := v.GetInt64("STORAGE_MAX_FILE_SIZE")
	if maxFileSize <= 0 {
		maxFileSize = 10 * 1024 * 1024
	}
	cfg.Storage = StorageConfig{
		Driver:           strings.ToLower(v.GetString("STORAGE_DRIVER")),
		LocalDir:         v.GetString("STORAGE_LOCAL_DIR"),
		SignedURLSecret:  v.GetString("STORAGE_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("STORAGE_SIGNED_URL_TTL"), 30*time.Minute),
		MaxFileSizeBytes: maxFileSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("STORAGE_ALLOWED_MIME_TYPES")),
		S3Bucket:         v.GetString("S3_BUCKET"),
		S3Region:         v.GetString("S3_REGION"),
		S3Endpoint:       v.GetString("S3_ENDPOINT"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate refuses production settings that would accept unsigned webhooks.
func (c *Config) validate() error {
	if c.Env != EnvProduction {
		return nil
	}
	switch c.Payment.Provider {
	case PaymentProviderMidtrans:
		if c.Payment.MidtransServerKey == "" {
			return errors.New("MIDTRANS_SERVER_KEY is required in production")
		}
	case PaymentProviderMercadoPago:
		if c.Payment.MercadoPagoWebhookSecret == "" {
			return errors.New("MERCADOPAGO_WEBHOOK_SECRET is required in production")
		}
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")
	v.SetDefault("SHUTDOWN_TIMEOUT", "15s")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "course_booking")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_AUTO_MIGRATE", true)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("PAYMENT_PROVIDER", PaymentProviderMidtrans)
	v.SetDefault("PAYMENT_CURRENCY", "thb")
	v.SetDefault("PAYMENT_TIMEOUT", "15s")
	v.SetDefault("PAYMENT_SUCCESS_URL", "http://localhost:3000/payment/success")
	v.SetDefault("PAYMENT_CANCEL_URL", "http://localhost:3000/payment/cancel")
	v.SetDefault("PAYMENT_SESSION_TTL", "23h")
	v.SetDefault("MIDTRANS_SERVER_KEY", "")
	v.SetDefault("MIDTRANS_PRODUCTION", false)
	v.SetDefault("MERCADOPAGO_ACCESS_TOKEN", "")
	v.SetDefault("MERCADOPAGO_WEBHOOK_SECRET", "")
	v.SetDefault("MERCADOPAGO_NOTIFICATION_URL", "")

	v.SetDefault("ABSENCE_BUFFER_DEFAULT", 2)
	v.SetDefault("SCHEDULE_TIMEZONE", "Asia/Bangkok")
	v.SetDefault("BOOKING_REAPER_SCHEDULE", "@every 10m")
	v.SetDefault("BOOKING_PENDING_TTL", "24h")

	v.SetDefault("CACHE_ENABLED", true)
	v.SetDefault("ENROLLMENT_CACHE_TTL", "2m")
	v.SetDefault("WEBHOOK_EVENT_MARK_TTL", "72h")

	v.SetDefault("NOTIFY_WORKERS", 2)
	v.SetDefault("NOTIFY_RETRIES", 3)

	v.SetDefault("STORAGE_DRIVER", StorageDriverLocal)
	v.SetDefault("STORAGE_LOCAL_DIR", "./uploads")
	v.SetDefault("STORAGE_SIGNED_URL_SECRET", "dev_storage_secret")
	v.SetDefault("STORAGE_SIGNED_URL_TTL", "30m")
	v.SetDefault("STORAGE_MAX_FILE_SIZE", 10*1024*1024)
	v.SetDefault("STORAGE_ALLOWED_MIME_TYPES", "image/jpeg,image/png,image/webp,video/mp4")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_REGION", "ap-southeast-1")
	v.SetDefault("S3_ENDPOINT", "")
}

// checkoutWindow keeps provider sessions closing before the reaper fails
// their bookings, leaving a margin for late webhooks.
func checkoutWindow(session, pending time.Duration) time.Duration {
	if session > 0 && session < pending {
		return session
	}
	return pending - pending/24
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
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
