// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Queue         QueueConfig        `mapstructure:"queue"`
	Worker        WorkerConfig       `mapstructure:"worker"`
	Database      DatabaseConfig     `mapstructure:"database"`
	APIs          APIsConfig         `mapstructure:"apis"`
	Automation    AutomationConfig   `mapstructure:"automation"`
	Logging       LoggingConfig      `mapstructure:"logging"`
	Notifications NotificationConfig `mapstructure:"notifications"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

// ServerConfig holds the origin HTTP server settings.
type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	MetricsPort int    `mapstructure:"metrics_port"`
}

// Address returns the listen address for the HTTP server.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// QueueConfig holds the application job queue settings.
type QueueConfig struct {
	KeyPrefix      string `mapstructure:"key_prefix"`
	PeekTimeout    int    `mapstructure:"peek_timeout"`    // milliseconds
	ClaimDeadline  int    `mapstructure:"claim_deadline"`  // milliseconds, poll endpoint budget
	EnqueueRetries int    `mapstructure:"enqueue_retries"` // broker-level attempts
	EnqueueBackoff int    `mapstructure:"enqueue_backoff"` // milliseconds, initial
}

// WorkerConfig holds the polling worker settings, all overridable from env.
type WorkerConfig struct {
	OriginBaseURL         string `mapstructure:"origin_base_url"`
	PollInterval          int    `mapstructure:"poll_interval"` // milliseconds
	MaxConcurrentJobs     int    `mapstructure:"max_concurrent_jobs"`
	MaxRetries            int    `mapstructure:"max_retries"`             // per-job apply attempts
	RetryDelay            int    `mapstructure:"retry_delay"`             // milliseconds
	RequestTimeout        int    `mapstructure:"request_timeout"`         // milliseconds
	ConsecutiveTimeoutMax int    `mapstructure:"consecutive_timeout_max"` // stop threshold
	Consecutive404Max     int    `mapstructure:"consecutive_404_max"`     // startup grace threshold
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"` // Single URL for backwards compatibility
	JobsIndex  string   `mapstructure:"jobs_index"`
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// APIsConfig holds settings for external API integrations.
type APIsConfig struct {
	GenAI struct {
		BaseURL string `mapstructure:"base_url"`
		APIKey  string `mapstructure:"api_key"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"genai"`
}

// AutomationConfig holds the daily auto-apply scheduler settings.
type AutomationConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	CronSpec      string `mapstructure:"cron_spec"`
	MinMatchScore int    `mapstructure:"min_match_score"`
}

// NotificationConfig holds settings for terminal-status notifications.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
