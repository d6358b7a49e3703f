package infra

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like "30s"
// as well as bare nanosecond integers.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := node.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value %q", node.Value)
	}
	*d = Duration(n)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds every setting for a trading session. Loaded from YAML, then
// environment variables override the sensitive parts.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Trading struct {
		Mode    string   `yaml:"mode"` // "paper" or "live"
		Symbols []string `yaml:"symbols"`
	} `yaml:"trading"`

	Bridge struct {
		RestURL string `yaml:"rest_url"`
		WSURL   string `yaml:"ws_url"`
		APIKey  string `yaml:"api_key"`
		Login   string `yaml:"login"`
		Server  string `yaml:"server"`
		// REST budget against the bridge, requests per second.
		RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
		RateLimitBurst  int     `yaml:"rate_limit_burst"`
	} `yaml:"bridge"`

	Risk struct {
		// MinRiskRewardMilli is the mandatory minimum reward/risk ratio in
		// thousandths; 1500 means take-profit distance must be at least
		// 1.5x the stop-loss distance.
		MinRiskRewardMilli int64 `yaml:"min_risk_reward_milli"`
		// PipMultiplier is the per-lot pip value in account currency.
		PipMultiplier int64 `yaml:"pip_multiplier"`
		// CommissionPerLotMicros is the flat fee charged once at open.
		CommissionPerLotMicros int64 `yaml:"commission_per_lot_micros"`
		// DefaultTrailingStopMicros is applied to orders that do not set
		// their own trailing distance. 0 disables trailing.
		DefaultTrailingStopMicros int64 `yaml:"default_trailing_stop_micros"`
	} `yaml:"risk"`

	Retry struct {
		Attempts          int      `yaml:"attempts"`
		BaseDelay         Duration `yaml:"base_delay"`
		MaxDelay          Duration `yaml:"max_delay"`
		BackoffMultiplier int      `yaml:"backoff_multiplier"`
		Timeout           Duration `yaml:"timeout"`
		BreakerThreshold  int      `yaml:"breaker_threshold"`
	} `yaml:"retry"`

	Supervisor struct {
		HeartbeatInterval    Duration `yaml:"heartbeat_interval"`
		ReconnectBaseDelay   Duration `yaml:"reconnect_base_delay"`
		MaxReconnectAttempts int      `yaml:"max_reconnect_attempts"`
	} `yaml:"supervisor"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// secretOverrides are the environment-sourced values that take precedence
// over the config file. Secrets in YAML work but are discouraged.
type secretOverrides struct {
	BridgeAPIKey string `envconfig:"FXGO_BRIDGE_API_KEY"`
	BridgeLogin  string `envconfig:"FXGO_BRIDGE_LOGIN"`
	BridgeServer string `envconfig:"FXGO_BRIDGE_SERVER"`
	Mode         string `envconfig:"FXGO_MODE"`
}

// LoadConfig reads and parses the config file, applies environment
// overrides, fills defaults, and validates.
func LoadConfig(path string) (*Config, error) {
	// .env is optional; absence is not an error.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	var sec secretOverrides
	if err := envconfig.Process("", &sec); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}
	if sec.BridgeAPIKey != "" {
		cfg.Bridge.APIKey = sec.BridgeAPIKey
	}
	if sec.BridgeLogin != "" {
		cfg.Bridge.Login = sec.BridgeLogin
	}
	if sec.BridgeServer != "" {
		cfg.Bridge.Server = sec.BridgeServer
	}
	if sec.Mode != "" {
		cfg.Trading.Mode = sec.Mode
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// applyDefaults fills zero values with the observed defaults.
func (c *Config) applyDefaults() {
	if c.Trading.Mode == "" {
		c.Trading.Mode = "paper"
	}
	if c.Risk.MinRiskRewardMilli == 0 {
		c.Risk.MinRiskRewardMilli = 1500
	}
	if c.Risk.PipMultiplier == 0 {
		c.Risk.PipMultiplier = 10
	}
	if c.Risk.CommissionPerLotMicros == 0 {
		c.Risk.CommissionPerLotMicros = 7_000_000
	}
	if c.Retry.Attempts == 0 {
		c.Retry.Attempts = 3
	}
	if c.Retry.BaseDelay == 0 {
		c.Retry.BaseDelay = Duration(time.Second)
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = Duration(10 * time.Second)
	}
	if c.Retry.BackoffMultiplier == 0 {
		c.Retry.BackoffMultiplier = 2
	}
	if c.Retry.Timeout == 0 {
		c.Retry.Timeout = Duration(30 * time.Second)
	}
	if c.Retry.BreakerThreshold == 0 {
		c.Retry.BreakerThreshold = 5
	}
	if c.Supervisor.HeartbeatInterval == 0 {
		c.Supervisor.HeartbeatInterval = Duration(30 * time.Second)
	}
	if c.Supervisor.ReconnectBaseDelay == 0 {
		c.Supervisor.ReconnectBaseDelay = Duration(time.Second)
	}
	if c.Supervisor.MaxReconnectAttempts == 0 {
		c.Supervisor.MaxReconnectAttempts = 5
	}
	if c.Bridge.RateLimitPerSec == 0 {
		c.Bridge.RateLimitPerSec = 10
	}
	if c.Bridge.RateLimitBurst == 0 {
		c.Bridge.RateLimitBurst = 5
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	mode := strings.ToLower(c.Trading.Mode)
	if mode != "paper" && mode != "live" {
		return fmt.Errorf("unknown trading mode: %s", c.Trading.Mode)
	}

	if mode == "live" {
		if c.Bridge.RestURL == "" || (!strings.HasPrefix(c.Bridge.RestURL, "http://") && !strings.HasPrefix(c.Bridge.RestURL, "https://")) {
			return fmt.Errorf("invalid bridge REST URL: %s", c.Bridge.RestURL)
		}
		if c.Bridge.WSURL == "" || (!strings.HasPrefix(c.Bridge.WSURL, "ws://") && !strings.HasPrefix(c.Bridge.WSURL, "wss://")) {
			return fmt.Errorf("invalid bridge WS URL: %s", c.Bridge.WSURL)
		}
	}

	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("at least one trading symbol is required")
	}
	if c.Risk.MinRiskRewardMilli < 0 {
		return fmt.Errorf("min risk/reward must not be negative")
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry attempts must be at least 1")
	}

	return nil
}
