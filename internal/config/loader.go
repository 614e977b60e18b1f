package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Backend  BackendConfig  `mapstructure:"backend"`
	Push     PushConfig     `mapstructure:"push"`
	Console  ConsoleConfig  `mapstructure:"console"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Auth     AuthConfig     `mapstructure:"auth"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type BackendConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type PushConfig struct {
	URL          string        `mapstructure:"url"`
	Enabled      bool          `mapstructure:"enabled"`
	MinBackoff   time.Duration `mapstructure:"min_backoff"`
	MaxBackoff   time.Duration `mapstructure:"max_backoff"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

type ConsoleConfig struct {
	DefaultWorkspace     string        `mapstructure:"default_workspace"`
	LogCapacity          int           `mapstructure:"log_capacity"`
	TaskCapacity         int           `mapstructure:"task_capacity"`
	PollInterval         time.Duration `mapstructure:"poll_interval"`
	PollFailureThreshold int           `mapstructure:"poll_failure_threshold"`
	CancelTimeout        time.Duration `mapstructure:"cancel_timeout"`
	HistoryLimit         int           `mapstructure:"history_limit"`
	HistoryPageSize      int           `mapstructure:"history_page_size"`
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Driver          string        `mapstructure:"driver"`
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) DSN() string {
	if d.Driver == "" || d.Driver == "sqlite" {
		return d.Path
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

type LoggerConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
	File             string   `mapstructure:"file"`
	MaxSizeMB        int      `mapstructure:"max_size_mb"`
	MaxBackups       int      `mapstructure:"max_backups"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

type AuthConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 8090)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)

	v.SetDefault("backend.url", "http://127.0.0.1:8000")
	v.SetDefault("backend.timeout", 30*time.Second)

	v.SetDefault("push.enabled", true)
	v.SetDefault("push.min_backoff", time.Second)
	v.SetDefault("push.max_backoff", 30*time.Second)
	v.SetDefault("push.ping_interval", 25*time.Second)

	v.SetDefault("console.default_workspace", "default")
	v.SetDefault("console.log_capacity", 1000)
	v.SetDefault("console.task_capacity", 50)
	v.SetDefault("console.poll_interval", 3*time.Second)
	v.SetDefault("console.poll_failure_threshold", 5)
	v.SetDefault("console.cancel_timeout", 10*time.Second)
	v.SetDefault("console.history_limit", 500)
	v.SetDefault("console.history_page_size", 100)

	v.SetDefault("database.enabled", true)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "scanconsole.db")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.conn_max_lifetime", time.Hour)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.encoding", "console")
	v.SetDefault("logger.output_paths", []string{"stdout"})
	v.SetDefault("logger.error_output_paths", []string{"stderr"})
	v.SetDefault("logger.max_size_mb", 50)
	v.SetDefault("logger.max_backups", 3)

	v.SetDefault("auth.allowed_origins", []string{"http://localhost:3000"})
}

// Load reads the YAML file at path (optional) and SCANCONSOLE_* env overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("SCANCONSOLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Console.PollInterval = clampPollInterval(cfg.Console.PollInterval)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

const (
	minPollInterval = 2 * time.Second
	maxPollInterval = 5 * time.Second
)

// clampPollInterval keeps reconciliation polling between 2 and 5 seconds.
func clampPollInterval(d time.Duration) time.Duration {
	if d < minPollInterval {
		return minPollInterval
	}
	if d > maxPollInterval {
		return maxPollInterval
	}
	return d
}

func (c *Config) Validate() error {
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	if c.Console.LogCapacity <= 0 {
		return fmt.Errorf("console.log_capacity must be positive")
	}
	if c.Console.TaskCapacity <= 0 {
		return fmt.Errorf("console.task_capacity must be positive")
	}
	if c.Database.Enabled && c.Database.Driver != "sqlite" && c.Database.Driver != "postgres" {
		return fmt.Errorf("database.driver must be one of: sqlite, postgres")
	}
	return nil
}
