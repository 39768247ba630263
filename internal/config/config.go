package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // APP_TIMEZONE must resolve in minimal images

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Database configuration
	Database DatabaseConfig

	// Token verification
	Auth AuthConfig

	// Optional cache
	Redis RedisConfig

	// Outbound email
	Mail MailConfig

	// Import/Export configuration
	Import ImportConfig
	Export ExportConfig

	// Photo storage
	Storage StorageConfig

	// Organization defaults
	Org OrgConfig

	// Public endpoint throttling
	RateLimit RateLimitConfig

	// Logging configuration
	Log LogConfig
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  string
	MigrationsPath  string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration

	// URL takes precedence over the individual fields when set
	URL            string
	ConnectTimeout time.Duration
}

// AuthConfig holds JWT settings
type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

// RedisConfig holds the cache connection; an empty URL disables caching
type RedisConfig struct {
	URL      string
	StatsTTL time.Duration
}

// MailConfig holds Resend settings
type MailConfig struct {
	ResendAPIKey        string
	FromNotifications   string
	FromBroadcast       string
	FromContact         string
	AdminInbox          string
	ContactBatchSize    int
	AffiliateBatchSize  int
	SendsPerSecond      float64
	SideEffectTimeout   time.Duration
	MaxSideEffectWorker int
}

// ImportConfig holds import job settings
type ImportConfig struct {
	MaxUploadSize int64 // in bytes
	UploadDir     string
	PollInterval  time.Duration
	ResultsTTL    time.Duration

	// Workers caps concurrently running import jobs; 0 sizes the pool from the CPU count
	Workers int
}

// ExportConfig holds spreadsheet export settings
type ExportConfig struct {
	FilePrefix  string
	SheetName   string
	HeaderColor string
}

// StorageConfig holds photo storage settings
type StorageConfig struct {
	PhotoDir      string
	PublicBaseURL string
	MaxPhotoSize  int64
}

// OrgConfig holds organization-wide defaults
type OrgConfig struct {
	DefaultSeccional string
	PhoneCountryCode string
	Timezone         string
}

// RateLimitConfig holds limits for unauthenticated endpoints
type RateLimitConfig struct {
	ContactPerSecond float64
	ContactBurst     int
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string
	Format string // "json" or "pretty"
}

// Load reads configuration from environment variables, after an optional .env file
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "8080"),
			ReadTimeout:     getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDurationEnv("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			AllowedOrigins:  getEnv("CORS_ALLOWED_ORIGINS", "*"),
			MigrationsPath:  getEnv("MIGRATIONS_PATH", "./migrations"),
		},
		Database: DatabaseConfig{
			Host:           getEnv("DB_HOST", "localhost"),
			Port:           getEnv("DB_PORT", "5432"),
			User:           getEnv("DB_USER", "postgres"),
			Password:       getEnv("DB_PASSWORD", "postgres"),
			Name:           getEnv("DB_NAME", "crm_electoral"),
			SSLMode:        getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:   getIntEnv("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:   getIntEnv("DB_MAX_IDLE_CONNS", 5),
			MaxLifetime:    getDurationEnv("DB_MAX_LIFETIME", 5*time.Minute),
			URL:            getEnv("DATABASE_URL", ""),
			ConnectTimeout: getDurationEnv("DB_CONNECT_TIMEOUT", 5*time.Second),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  getDurationEnv("JWT_TTL", 12*time.Hour),
		},
		Redis: RedisConfig{
			URL:      getEnv("REDIS_URL", ""),
			StatsTTL: getDurationEnv("STATS_CACHE_TTL", 60*time.Second),
		},
		Mail: MailConfig{
			ResendAPIKey:        getEnv("RESEND_API_KEY", ""),
			FromNotifications:   getEnv("MAIL_FROM", "Fuerza del Pueblo Europa <no-reply@centinelaelectoralsaeeuropa.com>"),
			FromBroadcast:       getEnv("MAIL_FROM_BROADCAST", "Secretaría Asuntos Electorales <info@centinelaelectoralsaeeuropa.com>"),
			FromContact:         getEnv("MAIL_FROM_CONTACT", "Secretaría Asuntos Electorales <noreply@centinelaelectoralsaeeuropa.com>"),
			AdminInbox:          getEnv("MAIL_ADMIN_INBOX", "info@centinelaelectoralsaeeuropa.com"),
			ContactBatchSize:    getIntEnv("MAIL_CONTACT_BATCH_SIZE", 50),
			AffiliateBatchSize:  getIntEnv("MAIL_AFFILIATE_BATCH_SIZE", 100),
			SendsPerSecond:      getFloatEnv("MAIL_SENDS_PER_SECOND", 2),
			SideEffectTimeout:   getDurationEnv("SIDE_EFFECT_TIMEOUT", 30*time.Second),
			MaxSideEffectWorker: getIntEnv("SIDE_EFFECT_WORKERS", 8),
		},
		Import: ImportConfig{
			MaxUploadSize: getInt64Env("MAX_UPLOAD_SIZE", 20*1024*1024), // 20MB
			UploadDir:     getEnv("UPLOAD_DIR", "./data/uploads"),
			PollInterval:  getDurationEnv("IMPORT_POLL_INTERVAL", 2*time.Second),
			ResultsTTL:    getDurationEnv("IMPORT_RESULTS_TTL", time.Hour),
			Workers:       getIntEnv("IMPORT_WORKERS", 0),
		},
		Export: ExportConfig{
			FilePrefix:  getEnv("EXPORT_FILE_PREFIX", "Afiliados_FP_Europa"),
			SheetName:   getEnv("EXPORT_SHEET_NAME", "Afiliados"),
			HeaderColor: getEnv("EXPORT_HEADER_COLOR", "005C2B"),
		},
		Storage: StorageConfig{
			PhotoDir:      getEnv("PHOTO_DIR", "./data/fotos_afiliados"),
			PublicBaseURL: getEnv("PHOTO_PUBLIC_URL", "/fotos_afiliados"),
			MaxPhotoSize:  getInt64Env("MAX_PHOTO_SIZE", 5*1024*1024),
		},
		Org: OrgConfig{
			DefaultSeccional: getEnv("DEFAULT_SECCIONAL", "Madrid"),
			PhoneCountryCode: getEnv("PHONE_COUNTRY_CODE", "34"),
			Timezone:         getEnv("APP_TIMEZONE", "Europe/Madrid"),
		},
		RateLimit: RateLimitConfig{
			ContactPerSecond: getFloatEnv("CONTACT_RATE_PER_SECOND", 0.2),
			ContactBurst:     getIntEnv("CONTACT_RATE_BURST", 3),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate required configuration
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET must be at least 32 bytes")
	}
	if c.Mail.ContactBatchSize <= 0 || c.Mail.AffiliateBatchSize <= 0 {
		return fmt.Errorf("mail batch sizes must be positive")
	}
	if _, err := time.LoadLocation(c.Org.Timezone); err != nil {
		return fmt.Errorf("APP_TIMEZONE: %w", err)
	}
	return nil
}

// MailEnabled reports whether a usable Resend key is configured
func (c *MailConfig) MailEnabled() bool {
	return c.ResendAPIKey != "" && !strings.Contains(c.ResendAPIKey, "PLACEHOLDER")
}

// Location returns the organization timezone, falling back to UTC
func (c *OrgConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GetDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) GetDSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s application_name=crm-electoral-api",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getInt64Env(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
