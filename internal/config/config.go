package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds application configuration.
type Config struct {
	Port string

	MongoURI string
	MongoDB  string

	JWTSecret string
	JWTExpiry time.Duration

	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string

	ForecastInterval time.Duration

	LogLevel  log.Level
	LogFormat string

	RateLimitRequests      int
	RateLimitWindowSeconds int
	TrustedProxies         []string

	Location *time.Location
}

// Load loads configuration from environment variables and an optional .env
// file. Values that fail to parse fall back to their defaults.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Port:                   getenv("PORT", "8080"),
		MongoURI:               getenv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:                getenv("MONGO_DB", "fleet_maintenance"),
		JWTSecret:              strings.TrimSpace(getenv("JWT_SECRET", "")),
		JWTExpiry:              getenvDuration("JWT_EXPIRY", 24*time.Hour),
		MQTTBroker:             strings.TrimSpace(getenv("MQTT_BROKER", "")),
		MQTTClientID:           getenv("MQTT_CLIENT_ID", "fleet-maintenance"),
		MQTTTopicPrefix:        strings.Trim(getenv("MQTT_TOPIC_PREFIX", "fleet"), "/"),
		ForecastInterval:       getenvDuration("FORECAST_INTERVAL", time.Hour),
		LogLevel:               getenvLevel("LOG_LEVEL", log.InfoLevel),
		LogFormat:              strings.ToLower(getenv("LOG_FORMAT", "text")),
		RateLimitRequests:      getenvInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindowSeconds: getenvInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		TrustedProxies:         getenvList("TRUSTED_PROXIES"),
		Location:               getenvLocation("TIMEZONE", time.UTC),
	}
}

// ConfigureLogger applies the level and format to the standard logrus logger.
func (c Config) ConfigureLogger() {
	log.SetLevel(c.LogLevel)
	if c.LogFormat == "json" {
		log.SetFormatter(&log.JSONFormatter{})
		return
	}
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getenvList splits a comma-separated value, dropping empty items.
func getenvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// getenvInt only accepts positive values.
func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

func getenvLevel(key string, def log.Level) log.Level {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	level, err := log.ParseLevel(value)
	if err != nil {
		return def
	}
	return level
}

func getenvLocation(key string, def *time.Location) *time.Location {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	loc, err := time.LoadLocation(value)
	if err != nil {
		return def
	}
	return loc
}
