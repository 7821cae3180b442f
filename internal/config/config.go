package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// TrackingConfig controls what the activity recorder captures.
type TrackingConfig struct {
	Enabled         bool
	AnonymizeIPs    bool
	TrackLocation   bool
	TrackedPrefixes []string
	DeniedPrefixes  []string
}

// RetentionConfig holds the age thresholds, in days, for the retention
// policies.
type RetentionConfig struct {
	RetentionDays        int // primary window, all records
	FailedRetentionDays  int // shorter window for failed records
	SessionRetentionDays int // login/logout session sweep
	AnonymizeAfterDays   int // weekly anonymization threshold
	ArchiveAfterDays     int // monthly archive threshold
	PageSize             int64
}

// Config is the full service configuration, loaded once at startup.
type Config struct {
	Port        string
	MongoURI    string
	MongoDB     string
	JWTSecret   string
	LogLevel    string
	ArchiveDir  string
	NATSURL     string
	CORSOrigins []string
	Tracking    TrackingConfig
	Retention   RetentionConfig
}

// Administrative and telemetry paths are always excluded so that
// recording activity cannot generate more activity.
var alwaysDenied = []string{"/admin", "/metrics", "/health"}

// LoadConfig reads .env (when present) and the environment.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, relying on environment variables")
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		MongoURI:    getEnv("MONGO_URI", ""),
		MongoDB:     getEnv("MONGO_DB", "direct_commerce"),
		JWTSecret:   getEnv("JWT_SECRET", ""),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		ArchiveDir:  getEnv("ARCHIVE_DIR", "./archive"),
		NATSURL:     getEnv("NATS_URL", ""),
		CORSOrigins: getEnvCSV("CORS_ORIGINS", []string{"http://localhost:3000"}),
		Tracking: TrackingConfig{
			Enabled:       getEnvBool("TRACKING_ENABLED", true),
			AnonymizeIPs:  getEnvBool("TRACKING_ANONYMIZE_IPS", false),
			TrackLocation: getEnvBool("TRACKING_LOCATION", true),
			TrackedPrefixes: getEnvCSV("TRACKING_PREFIXES", []string{
				"/auth", "/users", "/user-preferences", "/privacy-settings",
				"/products", "/cart", "/orders", "/wishlist",
			}),
			DeniedPrefixes: getEnvCSV("TRACKING_DENIED_PREFIXES", nil),
		},
		Retention: RetentionConfig{
			RetentionDays:        getEnvInt("RETENTION_DAYS", 90),
			FailedRetentionDays:  getEnvInt("RETENTION_FAILED_DAYS", 30),
			SessionRetentionDays: getEnvInt("RETENTION_SESSION_DAYS", 7),
			AnonymizeAfterDays:   getEnvInt("RETENTION_ANONYMIZE_DAYS", 180),
			ArchiveAfterDays:     getEnvInt("RETENTION_ARCHIVE_DAYS", 365),
			PageSize:             int64(getEnvInt("RETENTION_PAGE_SIZE", 500)),
		},
	}

	cfg.Tracking.DeniedPrefixes = mergeDenied(cfg.Tracking.DeniedPrefixes)
	return cfg
}

func mergeDenied(extra []string) []string {
	denied := make([]string, 0, len(alwaysDenied)+len(extra))
	denied = append(denied, alwaysDenied...)
	for _, p := range extra {
		if p != "" && !contains(denied, p) {
			denied = append(denied, p)
		}
	}
	return denied
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.WithFields(log.Fields{"key": key, "value": v}).Warn("Invalid integer env value, using default")
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.WithFields(log.Fields{"key": key, "value": v}).Warn("Invalid boolean env value, using default")
		return fallback
	}
	return b
}

func getEnvCSV(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
