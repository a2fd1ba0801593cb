package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	PostgresDSN   string
	Redis         RedisConfig
	Kafka         KafkaConfig
	Points        PointsConfig
	Badges        BadgesConfig

	// BatchParallelism bounds how many submissions a batch apply mutates
	// concurrently. Distinct ids are independent; this only caps fan-out.
	BatchParallelism int

	ShutdownTimeout time.Duration
}

// RedisConfig holds connection settings for the optional Redis fan-out bridge.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig holds settings for the optional domain-event mirror.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// PointsConfig holds the award values for the point ledger. The exact values
// were never contractual in the product docs, so they are configurable.
type PointsConfig struct {
	BaseSubmission int
	ApprovalBonus  int
	VerifierReward int
}

// BadgesConfig holds the thresholds badge rules evaluate against.
type BadgesConfig struct {
	ApprovedCount int
	Points        int
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:          envOr("CITELINE_ADDR", ":8080"),
		JWTSigningKey: envOr("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		PostgresDSN:   os.Getenv("POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envIntOr("REDIS_POOL_SIZE", 10),
			MinIdleConns: envIntOr("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("KAFKA_BROKERS")),
			Topic:   envOr("KAFKA_EVENTS_TOPIC", "citeline.events"),
		},
		Points: PointsConfig{
			BaseSubmission: envIntOr("POINTS_BASE_SUBMISSION", 10),
			ApprovalBonus:  envIntOr("POINTS_APPROVAL_BONUS", 20),
			VerifierReward: envIntOr("POINTS_VERIFIER_REWARD", 5),
		},
		Badges: BadgesConfig{
			ApprovedCount: envIntOr("BADGE_APPROVED_COUNT", 5),
			Points:        envIntOr("BADGE_POINTS", 100),
		},
		BatchParallelism: envIntOr("BATCH_PARALLELISM", 8),
		ShutdownTimeout:  10 * time.Second,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
