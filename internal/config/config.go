package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "GAMEWARDEN_CONFIG"

var defaultConfigPaths = []string{
	"gamewarden.yaml",
	"gamewarden.yml",
	"/etc/gamewarden/config.yaml",
}

type Config struct {
	ListenAddr   string `koanf:"listen_addr"`
	DatabasePath string `koanf:"database_path"`
	DataDir      string `koanf:"data_dir"`
	LogLevel     string `koanf:"log_level"`

	DefaultUser string `koanf:"default_user"`
	DefaultPass string `koanf:"default_pass"`

	RCON    RCONConfig    `koanf:"rcon"`
	Tail    TailConfig    `koanf:"tail"`
	Router  RouterConfig  `koanf:"router"`
	Webhook WebhookConfig `koanf:"webhook"`
}

// RCONConfig controls the connection manager.
type RCONConfig struct {
	CommandTimeout  time.Duration `koanf:"command_timeout"`
	DialTimeout     time.Duration `koanf:"dial_timeout"`
	BackoffBase     time.Duration `koanf:"backoff_base"`
	BackoffCap      time.Duration `koanf:"backoff_cap"`
	MaxDialFailures int           `koanf:"max_dial_failures"`
}

// TailConfig controls the log tailing workers.
type TailConfig struct {
	PollInterval time.Duration `koanf:"poll_interval"`
	LeaseTTL     time.Duration `koanf:"lease_ttl"`
	DialTimeout  time.Duration `koanf:"dial_timeout"`
}

// RouterConfig controls event delivery retries.
type RouterConfig struct {
	RetryBase    time.Duration `koanf:"retry_base"`
	RetryCap     time.Duration `koanf:"retry_cap"`
	ChatAttempts int           `koanf:"chat_attempts"`
}

// WebhookConfig points the default channel poster at an outbound endpoint.
type WebhookConfig struct {
	PostURL   string        `koanf:"post_url"`
	AuthToken string        `koanf:"auth_token"`
	Timeout   time.Duration `koanf:"timeout"`
}

func defaults() *Config {
	return &Config{
		ListenAddr:   ":8080",
		DatabasePath: "", // derived from DataDir when empty
		DataDir:      "./data",
		LogLevel:     "info",
		DefaultUser:  "admin",
		DefaultPass:  "admin",
		RCON: RCONConfig{
			CommandTimeout:  10 * time.Second,
			DialTimeout:     5 * time.Second,
			BackoffBase:     2 * time.Second,
			BackoffCap:      60 * time.Second,
			MaxDialFailures: 5,
		},
		Tail: TailConfig{
			PollInterval: 30 * time.Second,
			LeaseTTL:     60 * time.Second,
			DialTimeout:  10 * time.Second,
		},
		Router: RouterConfig{
			RetryBase:    time.Second,
			RetryCap:     30 * time.Second,
			ChatAttempts: 3,
		},
		Webhook: WebhookConfig{
			Timeout: 10 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file and
// GAMEWARDEN_* environment variables, in that order of precedence.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// GAMEWARDEN_RCON__COMMAND_TIMEOUT -> rcon.command_timeout
	err := k.Load(env.Provider("GAMEWARDEN_", ".", func(s string) string {
		s = strings.TrimPrefix(s, "GAMEWARDEN_")
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Docker bind mounts require absolute paths
	cfg.DataDir, err = filepath.Abs(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, err
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = filepath.Join(cfg.DataDir, "gamewarden.db")
	}

	return &cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range defaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
