package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds every setting the service reads from the environment.
type Config struct {
	Port string

	MongoURI string
	MongoDB  string

	JWTSecret string
	JWTTTL    time.Duration
	OTPTTL    time.Duration

	RedisURL string

	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	MailFrom string

	BlobBackend    string // "disk" or "s3"
	UploadDir      string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3AccessKey    string
	S3SecretKey    string

	AllowedOrigins []string

	EnforceListingOwnership bool
	MaxUploadBytes          int64

	Log LogConfig
}

// LogConfig controls the zap logger built by NewLogger.
type LogConfig struct {
	Level string
	Dev   bool
	File  string
}

// SMTPConfigured reports whether enough SMTP settings exist to send real mail.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPPort != "" && c.SMTPUser != "" && c.SMTPPass != ""
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// best-effort: a missing .env just means real env vars are used
	_ = godotenv.Load()

	cfg := &Config{
		Port:     getEnv("PORT", "3001"),
		MongoURI: getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:  getEnv("MONGO_DB", "rentals"),

		JWTSecret: os.Getenv("JWT_SECRET"),
		JWTTTL:    time.Duration(getEnvInt("JWT_EXP_MIN", 60)) * time.Minute,
		OTPTTL:    time.Duration(getEnvInt("OTP_TTL_MIN", 10)) * time.Minute,

		RedisURL: os.Getenv("REDIS_URL"),

		SMTPHost: os.Getenv("SMTP_HOST"),
		SMTPPort: os.Getenv("SMTP_PORT"),
		SMTPUser: os.Getenv("SMTP_USER"),
		SMTPPass: os.Getenv("SMTP_PASS"),

		BlobBackend:    strings.ToLower(getEnv("BLOB_BACKEND", "disk")),
		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		S3Bucket:       os.Getenv("S3_BUCKET"),
		S3Region:       getEnv("S3_REGION", "us-east-1"),
		S3BaseEndpoint: os.Getenv("S3_BASE_ENDPOINT"),
		S3AccessKey:    os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:    os.Getenv("S3_SECRET_KEY"),

		AllowedOrigins: allowedOrigins(),

		EnforceListingOwnership: getEnvBool("ENFORCE_LISTING_OWNERSHIP", false),
		MaxUploadBytes:          int64(getEnvInt("MAX_UPLOAD_MB", 8)) << 20,

		Log: LogConfig{
			Level: os.Getenv("LOG_LEVEL"),
			Dev:   os.Getenv("LOG_DEV") == "1",
			File:  os.Getenv("LOG_FILE"),
		},
	}
	cfg.MailFrom = getEnv("MAIL_FROM", cfg.SMTPUser)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET not configured")
	}
	switch c.BlobBackend {
	case "disk":
	case "s3":
		if c.S3Bucket == "" {
			return errors.New("S3_BUCKET is required when BLOB_BACKEND=s3")
		}
	default:
		return errors.New("BLOB_BACKEND must be disk or s3")
	}
	return nil
}

// allowedOrigins merges ALLOWED_ORIGINS (comma separated) with the older
// ALLOWED_SITE1..3 variables.
func allowedOrigins() []string {
	var out []string
	for _, o := range strings.Split(os.Getenv("ALLOWED_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	for _, k := range []string{"ALLOWED_SITE1", "ALLOWED_SITE2", "ALLOWED_SITE3"} {
		if o := strings.TrimSpace(os.Getenv(k)); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
