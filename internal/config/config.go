package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"time"
	_ "time/tzdata" // TIME_ZONE must resolve on hosts without zoneinfo

	"github.com/adhocore/gronx"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	// Environment
	RunMode  string // Set via flag, not env
	LogLevel string

	// MongoDB
	MongoURI    string
	MongoDbName string

	// Redis
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// JWT
	JwtSecret string
	JwtTTL    time.Duration

	// Server
	ApiPort        string
	ServiceApiPort string

	// AWS S3
	AwsAccessKeyID     string
	AwsSecretAccessKey string
	AwsRegion          string
	AwsS3Bucket        string
	FileBaseURL        string // Public base URL for objects; presigned GET when empty
	FileURLTTL         time.Duration
	ImageMaxDimension  int
	ImageMaxSizeMB     int
	UploadMaxSizeMB    int

	// App Defaults
	AppName          string
	CurrencyCode     string
	TimeZone         string // IANA name; calendar buckets are cut in this zone
	PasswordRegexp   string
	GetCacheTTL      time.Duration
	DefaultPageSize  int
	PromoRefreshCron string

	// Rate Limiting Defaults
	RateLimitBucketSize int
	RateLimitRefillRate int // tokens per second
}

// Load configuration from environment variables (and .env when present).
// RunMode comes from the command line.
func Load(runMode string) (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{RunMode: runMode}
	var err error

	getEnv := func(key, defaultValue string) string {
		if value, exists := os.LookupEnv(key); exists {
			return value
		}
		return defaultValue
	}
	getRequiredEnv := func(key string) (string, error) {
		value, exists := os.LookupEnv(key)
		if !exists || value == "" {
			return "", fmt.Errorf("missing required environment variable: %s", key)
		}
		return value, nil
	}
	getInt := func(key, defaultValue string) (int, error) {
		v, err := strconv.Atoi(getEnv(key, defaultValue))
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return v, nil
	}
	getSeconds := func(key, defaultValue string) (time.Duration, error) {
		v, err := strconv.ParseInt(getEnv(key, defaultValue), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid %s: %w", key, err)
		}
		return time.Duration(v) * time.Second, nil
	}

	cfg.MongoURI, err = getRequiredEnv("MONGO_URI")
	if err != nil {
		return nil, err
	}
	cfg.JwtSecret, err = getRequiredEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}
	cfg.MongoDbName = getEnv("MONGO_DB_NAME", "sellerhub")
	cfg.RedisAddr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = getEnv("REDIS_PASSWORD", "")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.ApiPort = getEnv("API_PORT", "8080")
	cfg.ServiceApiPort = getEnv("SERVICE_API_PORT", "12345")
	cfg.AwsAccessKeyID = getEnv("AWS_ACCESS_KEY_ID", "")
	cfg.AwsSecretAccessKey = getEnv("AWS_SECRET_ACCESS_KEY", "")
	cfg.AwsRegion = getEnv("AWS_REGION", "ap-southeast-1")
	cfg.AwsS3Bucket = getEnv("AWS_S3_BUCKET", "")
	cfg.FileBaseURL = getEnv("FILE_BASE_URL", "")
	cfg.AppName = getEnv("APP_NAME", "SellerHub")
	cfg.CurrencyCode = getEnv("CURRENCY_CODE", "PHP")
	cfg.TimeZone = getEnv("TIME_ZONE", "Asia/Manila")
	cfg.PasswordRegexp = getEnv("PASSWORD_REGEXP", "^.{8,}$")
	cfg.PromoRefreshCron = getEnv("PROMO_REFRESH_CRON", "*/5 * * * *")

	if cfg.RedisDB, err = getInt("REDIS_DB", "0"); err != nil {
		return nil, err
	}
	if cfg.JwtTTL, err = getSeconds("JWT_TTL_SECONDS", "3600"); err != nil {
		return nil, err
	}
	if cfg.FileURLTTL, err = getSeconds("FILE_URL_TTL_SECONDS", "900"); err != nil {
		return nil, err
	}
	if cfg.GetCacheTTL, err = getSeconds("GET_CACHE_TTL_SECONDS", "60"); err != nil {
		return nil, err
	}
	if cfg.ImageMaxDimension, err = getInt("IMAGE_MAX_DIMENSION", "2048"); err != nil {
		return nil, err
	}
	if cfg.ImageMaxSizeMB, err = getInt("IMAGE_MAX_SIZE_MB", "10"); err != nil {
		return nil, err
	}
	if cfg.UploadMaxSizeMB, err = getInt("UPLOAD_MAX_SIZE_MB", "15"); err != nil {
		return nil, err
	}
	if cfg.DefaultPageSize, err = getInt("DEFAULT_PAGE_SIZE", "10"); err != nil {
		return nil, err
	}
	if cfg.RateLimitBucketSize, err = getInt("RATE_LIMIT_BUCKET_SIZE", "20"); err != nil {
		return nil, err
	}
	if cfg.RateLimitRefillRate, err = getInt("RATE_LIMIT_REFILL_RATE", "10"); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Location resolves TimeZone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Validate checks cross-field constraints that plain parsing cannot.
func (c *Config) Validate() error {
	if _, err := regexp.Compile(c.PasswordRegexp); err != nil {
		return fmt.Errorf("invalid PASSWORD_REGEXP: %w", err)
	}
	if !gronx.IsValid(c.PromoRefreshCron) {
		return fmt.Errorf("invalid PROMO_REFRESH_CRON: %q", c.PromoRefreshCron)
	}
	if _, err := time.LoadLocation(c.TimeZone); err != nil {
		return fmt.Errorf("invalid TIME_ZONE: %w", err)
	}
	if c.DefaultPageSize <= 0 {
		return fmt.Errorf("DEFAULT_PAGE_SIZE must be positive, got %d", c.DefaultPageSize)
	}
	if c.JwtTTL <= 0 {
		return fmt.Errorf("JWT_TTL_SECONDS must be positive")
	}
	return nil
}
