package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerPort  string
	Environment string

	FirebaseProject        string
	FirebaseServiceAccount string
	FirebaseAccountPath    string
	StorageBucket          string
	StoreDriver            string

	RedisURL     string
	RedisChannel string

	KafkaBrokers          []string
	KafkaRemediationTopic string

	FollowUpWorkers     int
	FollowUpMaxAttempts int
	FollowUpBackoff     time.Duration

	RateLimitPerMinute int
	WSSendBuffer       int
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerPort:  getEnv("SERVER_PORT", "8080"),
		Environment: getEnv("ENVIRONMENT", "development"),

		FirebaseProject:        getEnv("FIREBASE_PROJECT_ID", ""),
		FirebaseServiceAccount: getEnv("FIREBASE_SERVICE_ACCOUNT_JSON", ""),
		FirebaseAccountPath:    getEnv("FIREBASE_SERVICE_ACCOUNT_PATH", ""),
		StorageBucket:          getEnv("STORAGE_BUCKET", ""),
		StoreDriver:            getEnv("STORE_DRIVER", "firestore"),

		RedisURL:     getEnv("REDIS_URL", ""),
		RedisChannel: getEnv("REDIS_CHANNEL", "tradehub:notifications"),

		KafkaBrokers:          getEnvAsList("KAFKA_BROKERS"),
		KafkaRemediationTopic: getEnv("KAFKA_REMEDIATION_TOPIC", "tradehub.followup-failures"),

		FollowUpWorkers:     getEnvAsInt("FOLLOWUP_WORKERS", 4),
		FollowUpMaxAttempts: getEnvAsInt("FOLLOWUP_MAX_ATTEMPTS", 3),
		FollowUpBackoff:     time.Duration(getEnvAsInt("FOLLOWUP_BACKOFF_MS", 200)) * time.Millisecond,

		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 60),
		WSSendBuffer:       getEnvAsInt("WS_SEND_BUFFER", 256),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "firestore":
		if c.FirebaseProject == "" {
			return fmt.Errorf("FIREBASE_PROJECT_ID is required for the firestore store driver")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.FollowUpWorkers <= 0 {
		return fmt.Errorf("FOLLOWUP_WORKERS must be positive")
	}
	if c.FollowUpMaxAttempts <= 0 {
		return fmt.Errorf("FOLLOWUP_MAX_ATTEMPTS must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	value, exists := os.LookupEnv(key)
	if !exists || strings.TrimSpace(value) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
