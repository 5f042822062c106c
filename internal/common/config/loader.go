// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like WORKER_ORIGIN_BASE_URL
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	// Environment-specific overlay, ignored when absent
	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig()

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from multiple possible locations so binaries and
// tests work regardless of working directory.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
		"../../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

// overrideEmptyConfig applies flat env vars for values still empty after
// expansion. These are the names the worker deployment actually sets.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Worker.OriginBaseURL == "" {
		if val := os.Getenv("ORIGIN_BASE_URL"); val != "" {
			cfg.Worker.OriginBaseURL = val
		}
	}
	if val := os.Getenv("POLL_INTERVAL_MS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Worker.PollInterval = n
		}
	}
	if val := os.Getenv("MAX_CONCURRENT_JOBS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Worker.MaxConcurrentJobs = n
		}
	}
	if val := os.Getenv("MAX_RETRIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Worker.MaxRetries = n
		}
	}
	if val := os.Getenv("RETRY_DELAY_MS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Worker.RetryDelay = n
		}
	}
	if val := os.Getenv("CONSECUTIVE_TIMEOUT_LIMIT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Worker.ConsecutiveTimeoutMax = n
		}
	}
	if val := os.Getenv("CONSECUTIVE_404_LIMIT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.Worker.Consecutive404Max = n
		}
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}

	// Broker overrides
	if cfg.Database.Redis.Address == "" {
		host := os.Getenv("REDIS_HOST")
		port := os.Getenv("REDIS_PORT")
		if host != "" {
			if port == "" {
				port = "6379"
			}
			cfg.Database.Redis.Address = fmt.Sprintf("%s:%s", host, port)
		}
	}
	if cfg.Database.Redis.Password == "" {
		if val := os.Getenv("REDIS_PASSWORD"); val != "" {
			cfg.Database.Redis.Password = val
		}
	}

	// Database overrides
	if cfg.Database.Postgres.User == "" {
		if val := os.Getenv("DB_USER"); val != "" {
			cfg.Database.Postgres.User = val
		}
	}
	if cfg.Database.Postgres.Password == "" {
		if val := os.Getenv("DB_PASSWORD"); val != "" {
			cfg.Database.Postgres.Password = val
		}
	}

	// GenAI API
	if cfg.APIs.GenAI.APIKey == "" {
		if val := os.Getenv("GENAI_API_KEY"); val != "" {
			cfg.APIs.GenAI.APIKey = val
		}
	}
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	viper.SetConfigFile(path)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadWorker builds the polling worker configuration from environment
// variables only. The worker deploys separately from the origin service and
// carries no database or broker credentials.
func LoadWorker() *Config {
	loadEnvFile()

	var cfg Config
	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	return &cfg
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 3001
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}

	// Queue defaults
	if cfg.Queue.KeyPrefix == "" {
		cfg.Queue.KeyPrefix = "applyflow:queue"
	}
	if cfg.Queue.PeekTimeout == 0 {
		cfg.Queue.PeekTimeout = 3000
	}
	if cfg.Queue.ClaimDeadline == 0 {
		cfg.Queue.ClaimDeadline = 4000
	}
	if cfg.Queue.EnqueueRetries == 0 {
		cfg.Queue.EnqueueRetries = 3
	}
	if cfg.Queue.EnqueueBackoff == 0 {
		cfg.Queue.EnqueueBackoff = 2000
	}

	// Worker defaults
	if cfg.Worker.OriginBaseURL == "" {
		cfg.Worker.OriginBaseURL = "http://localhost:3001"
	}
	if cfg.Worker.PollInterval == 0 {
		cfg.Worker.PollInterval = 5000
	}
	if cfg.Worker.MaxConcurrentJobs == 0 {
		cfg.Worker.MaxConcurrentJobs = 1
	}
	if cfg.Worker.MaxRetries == 0 {
		cfg.Worker.MaxRetries = 3
	}
	if cfg.Worker.RetryDelay == 0 {
		cfg.Worker.RetryDelay = 5000
	}
	if cfg.Worker.RequestTimeout == 0 {
		cfg.Worker.RequestTimeout = 10000
	}
	if cfg.Worker.ConsecutiveTimeoutMax == 0 {
		cfg.Worker.ConsecutiveTimeoutMax = 10
	}
	if cfg.Worker.Consecutive404Max == 0 {
		cfg.Worker.Consecutive404Max = 5
	}

	// Database defaults
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	// Elasticsearch URL fallback
	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}
	if cfg.Database.Elasticsearch.JobsIndex == "" {
		cfg.Database.Elasticsearch.JobsIndex = "jobs"
	}

	// Automation defaults
	if cfg.Automation.CronSpec == "" {
		cfg.Automation.CronSpec = "0 9 * * *"
	}
	if cfg.Automation.MinMatchScore == 0 {
		cfg.Automation.MinMatchScore = 7
	}

	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Logging.Output == "" {
		cfg.Logging.Output = "stdout"
	}

	// API timeout defaults
	if cfg.APIs.GenAI.Timeout == 0 {
		cfg.APIs.GenAI.Timeout = 60000
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required")
	}

	if cfg.Database.Postgres.Host == "" {
		return fmt.Errorf("database.postgres.host is required")
	}
	if cfg.Database.Postgres.Database == "" {
		return fmt.Errorf("database.postgres.database is required")
	}
	if cfg.Database.Postgres.User == "" {
		return fmt.Errorf("database.postgres.user is required")
	}

	if cfg.Worker.OriginBaseURL == "" {
		return fmt.Errorf("worker.origin_base_url is required")
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}
