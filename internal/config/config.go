package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App      AppConfig
	Database DatabaseConfig
	Redis    RedisConfig
	ETL      ETLConfig
}

type AppConfig struct {
	AppName     string
	Environment string
}

type DatabaseConfig struct {
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	ConnectTimeout        time.Duration
	PoolMaxConns          int32
	PoolMinConns          int32
	PoolMaxConnLifetime   time.Duration
	PoolMaxConnIdleTime   time.Duration
	PoolHealthCheckPeriod time.Duration
}

// RedisConfig is optional: an empty Addr disables the registry cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

type ETLConfig struct {
	DataDir string

	NormalizeWorkers int

	LoadMaxRetries      int
	LoadInitialInterval time.Duration
	LoadMaxInterval     time.Duration
}

var errMissingRequiredEnv = errors.New("missing required environment variables")

func Load() (Config, error) {
	// Local runs keep credentials in a .env next to the binary, like the
	// original deployment did. Absence is not an error.
	_ = godotenv.Load()

	cfg := Config{}

	var missing []string
	req := func(key string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}
	opt := func(key, def string) string {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return def
		}
		return v
	}

	cfg.App = AppConfig{
		AppName:     opt("APP_NAME", "empleo-dw"),
		Environment: opt("APP_ENV", "development"),
	}

	cfg.Database = DatabaseConfig{
		DBHost:     req("DB_HOST"),
		DBPort:     opt("DB_PORT", "5432"),
		DBName:     req("DB_NAME"),
		DBUser:     req("DB_USER"),
		DBPassword: req("DB_PASSWORD"),
		DBSSLMode:  opt("DB_SSL_MODE", "require"),

		ConnectTimeout:        durationEnv("DB_CONNECT_TIMEOUT", 10*time.Second),
		PoolMaxConns:          int32(intEnv("DB_POOL_MAX_CONNS", 4)),
		PoolMinConns:          int32(intEnv("DB_POOL_MIN_CONNS", 0)),
		PoolMaxConnLifetime:   durationEnv("DB_POOL_MAX_CONN_LIFETIME", 30*time.Minute),
		PoolMaxConnIdleTime:   durationEnv("DB_POOL_MAX_CONN_IDLE_TIME", 5*time.Minute),
		PoolHealthCheckPeriod: durationEnv("DB_POOL_HEALTH_CHECK_PERIOD", time.Minute),
	}

	cfg.Redis = RedisConfig{
		Addr:     opt("REDIS_ADDR", ""),
		Password: opt("REDIS_PASSWORD", ""),
		DB:       intEnv("REDIS_DB", 0),
		TTL:      durationEnv("REDIS_TTL", 24*time.Hour),
	}

	cfg.ETL = ETLConfig{
		DataDir:             opt("DATA_DIR", "data/cleaned"),
		NormalizeWorkers:    intEnv("NORMALIZE_WORKERS", 3),
		LoadMaxRetries:      intEnv("LOAD_MAX_RETRIES", 3),
		LoadInitialInterval: durationEnv("LOAD_RETRY_INITIAL_INTERVAL", 2*time.Second),
		LoadMaxInterval:     durationEnv("LOAD_RETRY_MAX_INTERVAL", time.Minute),
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", errMissingRequiredEnv, strings.Join(missing, ", "))
	}

	return cfg, nil
}

func intEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func durationEnv(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
