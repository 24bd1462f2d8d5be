package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Jira     JiraConfig
	Storage  StorageConfig
	Timeline TimelineConfig
	Sync     SyncConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	CORSOrigins           string
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Disabled bool
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines operator authentication parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	BcryptCost            int
	OperatorUsername      string
	OperatorPasswordHash  string
}

// JiraFields maps tracker custom field ids.
type JiraFields struct {
	RepairSummary string
	BoardModel    string
	Frequency     string
	HashRate      string
}

// JiraConfig holds issue tracker connection values.
type JiraConfig struct {
	BaseURL               string
	Email                 string
	APIToken              string
	Project               string
	EpicPrefix            string
	PageSize              int
	MaxRetries            int
	RequestsPerSecond     float64
	RequestTimeoutSeconds int
	Fields                JiraFields
	BoardModels           []string
}

// StorageConfig controls where raw payloads live when Postgres is not configured.
type StorageConfig struct {
	DumpDir       string
	EpicPruneList []string
}

// TimelineConfig controls timeline reconstruction.
type TimelineConfig struct {
	RulesFile       string
	Holidays        []string
	CacheTTLSeconds int
}

// SyncConfig bounds bulk refreshes.
type SyncConfig struct {
	Concurrency int
}

var defaultBoardModels = []string{
	"NBS1906", "BHB42831", "NBP1901", "BHB42603", "BHB42631",
	"BHB42841", "BHB42601", "BHB56801", "BHB42621", "BHB42651",
	"BHB56903", "BHB68606", "BHB68603", "A3HB70601", "BHB68701",
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	rps, err := strconv.ParseFloat(getEnv("JIRA_REQUESTS_PER_SECOND", "1"), 64)
	if err != nil || rps <= 0 {
		return nil, fmt.Errorf("invalid JIRA_REQUESTS_PER_SECOND: %q", os.Getenv("JIRA_REQUESTS_PER_SECOND"))
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "repair-tracker"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
			CORSOrigins:           getEnv("HTTP_CORS_ORIGINS", "*"),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
			Disabled: getEnvAsBool("REDIS_DISABLED", false),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 60),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			OperatorUsername:      getEnv("AUTH_OPERATOR_USERNAME", "operator"),
			OperatorPasswordHash:  os.Getenv("AUTH_OPERATOR_PASSWORD_HASH"),
		},
		Jira: JiraConfig{
			BaseURL:               os.Getenv("JIRA_SERVER"),
			Email:                 os.Getenv("JIRA_EMAIL"),
			APIToken:              os.Getenv("JIRA_TOKEN"),
			Project:               getEnv("JIRA_PROJECT", "RT"),
			EpicPrefix:            getEnv("JIRA_EPIC_PREFIX", "RT-"),
			PageSize:              getEnvAsInt("JIRA_PAGE_SIZE", 100),
			MaxRetries:            getEnvAsInt("JIRA_MAX_RETRIES", 10),
			RequestsPerSecond:     rps,
			RequestTimeoutSeconds: getEnvAsInt("JIRA_REQUEST_TIMEOUT_SECONDS", 60),
			Fields: JiraFields{
				RepairSummary: getEnv("JIRA_FIELD_REPAIR_SUMMARY", "customfield_10245"),
				BoardModel:    getEnv("JIRA_FIELD_BOARD_MODEL", "customfield_10230"),
				Frequency:     getEnv("JIRA_FIELD_FREQUENCY", "customfield_10229"),
				HashRate:      getEnv("JIRA_FIELD_HASHRATE", "customfield_10153"),
			},
			BoardModels: getEnvAsList("JIRA_BOARD_MODELS", defaultBoardModels),
		},
		Storage: StorageConfig{
			DumpDir:       getEnv("STORAGE_DUMP_DIR", "jira_dumps"),
			EpicPruneList: getEnvAsList("EPIC_PRUNE_LIST", nil),
		},
		Timeline: TimelineConfig{
			RulesFile:       os.Getenv("TIMELINE_RULES_FILE"),
			Holidays:        getEnvAsList("HOLIDAYS", nil),
			CacheTTLSeconds: getEnvAsInt("TIMELINE_CACHE_TTL_SECONDS", 900),
		},
		Sync: SyncConfig{
			Concurrency: getEnvAsInt("SYNC_CONCURRENCY", 2),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// RequestTimeout returns the per-request timeout for tracker calls.
func (j JiraConfig) RequestTimeout() time.Duration {
	if j.RequestTimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(j.RequestTimeoutSeconds) * time.Second
}

// CacheTTL returns how long built timelines stay cached.
func (t TimelineConfig) CacheTTL() time.Duration {
	if t.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(t.CacheTTLSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
