package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	AWS       AWSConfig
	Engine    EngineConfig
	Scheduler SchedulerConfig
	Gateway   GatewayConfig
	Worker    WorkerConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	// Driver is "postgres" or "memory". The memory store keeps nothing across restarts.
	Driver   string
	URL      string // if set, used as-is (e.g. postgres://localhost:5432/challenges?sslmode=disable)
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings. An empty Addr runs without the notify
// bus and job queues.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// JWTConfig holds JWT signing and validation settings.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// AWSConfig holds AWS credentials and the evidence archive bucket.
type AWSConfig struct {
	Region               string
	AccessKeyID          string
	SecretAccessKey      string
	EvidenceBucket       string
	PresignExpireMinutes int
}

// EngineConfig tunes the challenge engines.
type EngineConfig struct {
	BronzeRolls   int
	SilverRolls   int
	GoldRolls     int
	WeightStep    float64
	WeightFloor   float64
	WeightCeiling float64
	EventDuration time.Duration
	// CounterRetries bounds retries of event counter writes while the store is unavailable.
	CounterRetries int
	CatalogSeed    string // optional YAML seed applied at startup
}

// SchedulerConfig locates the cadence file and controls the trigger loop.
type SchedulerConfig struct {
	Enabled  bool
	Path     string
	Interval time.Duration
}

// GatewayConfig is where the worker delivers direct messages.
type GatewayConfig struct {
	DMURL   string
	DMRate  float64 // messages per second
	DMBurst int
}

// WorkerConfig holds settings of the background worker process.
type WorkerConfig struct {
	MetricsPort   string   // empty disables the worker's /metrics listener
	EvidenceHosts []string // hosts evidence may be downloaded from; empty allows any
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()      // .env
	_ = godotenv.Load("env") // env (no leading dot)

	cfg := &Config{
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173"),
		},
		Database: DatabaseConfig{
			Driver:   strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
			URL:      os.Getenv("DATABASE_URL"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "challenges"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("DB_MAX_CONNS", 10),
		},
		Redis: RedisConfig{
			Addr:     lookupEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			PoolSize: getEnvInt("REDIS_POOL_SIZE", 20),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		AWS: AWSConfig{
			Region:               getEnv("AWS_REGION", ""),
			AccessKeyID:          getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey:      getEnv("AWS_SECRET_ACCESS_KEY", ""),
			EvidenceBucket:       getEnv("AWS_S3_EVIDENCE_BUCKET", "challenge-evidence"),
			PresignExpireMinutes: getEnvInt("AWS_PRESIGN_EXPIRE_MINUTES", 15),
		},
		Engine: EngineConfig{
			BronzeRolls:    getEnvInt("TIER_ROLLS_BRONZE", 1),
			SilverRolls:    getEnvInt("TIER_ROLLS_SILVER", 2),
			GoldRolls:      getEnvInt("TIER_ROLLS_GOLD", 3),
			WeightStep:     getEnvFloat("WEIGHT_STEP", 0.1),
			WeightFloor:    getEnvFloat("WEIGHT_FLOOR", 0.1),
			WeightCeiling:  getEnvFloat("WEIGHT_CEILING", 10),
			EventDuration:  getEnvDuration("EVENT_DURATION", 7*24*time.Hour),
			CounterRetries: getEnvInt("COUNTER_RETRIES", 4),
			CatalogSeed:    getEnv("CATALOG_SEED_PATH", ""),
		},
		Scheduler: SchedulerConfig{
			Enabled:  getEnvBool("SCHEDULER_ENABLED", true),
			Path:     getEnv("SCHEDULE_PATH", "schedule.yaml"),
			Interval: getEnvDuration("SCHEDULER_INTERVAL", 15*time.Second),
		},
		Gateway: GatewayConfig{
			DMURL:   getEnv("GATEWAY_DM_URL", "http://localhost:8090/dm"),
			DMRate:  getEnvFloat("DM_RATE", 5),
			DMBurst: getEnvInt("DM_BURST", 5),
		},
		Worker: WorkerConfig{
			MetricsPort:   getEnv("WORKER_METRICS_PORT", "9091"),
			EvidenceHosts: getEnvList("EVIDENCE_ALLOWED_HOSTS"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Database.Driver {
	case "postgres", "memory":
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or memory, got %q", c.Database.Driver)
	}
	e := c.Engine
	if e.BronzeRolls <= 0 || e.SilverRolls < e.BronzeRolls || e.GoldRolls < e.SilverRolls {
		return fmt.Errorf("tier rolls must be positive and non-decreasing, got %d/%d/%d", e.BronzeRolls, e.SilverRolls, e.GoldRolls)
	}
	if e.WeightStep <= 0 || e.WeightFloor <= 0 {
		return fmt.Errorf("WEIGHT_STEP and WEIGHT_FLOOR must be positive")
	}
	if e.WeightCeiling > 0 && e.WeightCeiling < e.WeightFloor {
		return fmt.Errorf("WEIGHT_CEILING %.2f below WEIGHT_FLOOR %.2f", e.WeightCeiling, e.WeightFloor)
	}
	if e.EventDuration <= 0 {
		return fmt.Errorf("EVENT_DURATION must be positive")
	}
	return nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// lookupEnv is getEnv for settings where an explicit empty value disables the feature.
func lookupEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}
