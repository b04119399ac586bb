package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Contract identifies one watched contract and its role on the network.
type Contract struct {
	Address string `mapstructure:"address"`
	Role    string `mapstructure:"role"`
}

// Network is one per-network ingestion profile. Two networks never share a
// profile; everything the loop needs to differ per chain lives here.
type Network struct {
	Name              string        `mapstructure:"name"`
	RPCURL            string        `mapstructure:"rpc"`
	Contracts         []Contract    `mapstructure:"contracts"`
	StartBlock        uint64        `mapstructure:"start_block"`
	ConfirmationDepth uint64        `mapstructure:"confirmation_depth"`
	BatchSize         uint64        `mapstructure:"batch_size"`
	BatchDelay        time.Duration `mapstructure:"batch_delay"`
	ResumeDelay       time.Duration `mapstructure:"resume_delay"`
	LegacyTopics      []string      `mapstructure:"legacy_topics"`
}

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	PostgresDSN       string
	MetricsAddr       string
	LogLevel          string
	MaxRetries        int
	RetryBackoff      time.Duration
	AggregateInterval time.Duration
	Networks          []Network
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SHIELDSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("metrics-addr", ":9090")
	v.SetDefault("log-level", "info")
	v.SetDefault("max-retries", 5)
	v.SetDefault("retry-backoff", 500*time.Millisecond)
	v.SetDefault("aggregate-interval", 0)

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var networks []Network
	if err := v.UnmarshalKey("networks", &networks); err != nil {
		return Config{}, fmt.Errorf("parse networks: %w", err)
	}
	for i := range networks {
		applyNetworkDefaults(&networks[i])
	}

	cfg := Config{
		PostgresDSN:       v.GetString("pg-dsn"),
		MetricsAddr:       v.GetString("metrics-addr"),
		LogLevel:          v.GetString("log-level"),
		MaxRetries:        v.GetInt("max-retries"),
		RetryBackoff:      v.GetDuration("retry-backoff"),
		AggregateInterval: v.GetDuration("aggregate-interval"),
		Networks:          networks,
	}

	return cfg, nil
}

// Validate checks the parts every command needs.
func (c Config) Validate() error {
	if c.PostgresDSN == "" {
		return fmt.Errorf("pg-dsn is required")
	}
	return nil
}

// ValidateNetworks checks the ingestion profiles.
func (c Config) ValidateNetworks() error {
	if len(c.Networks) == 0 {
		return fmt.Errorf("at least one network is required")
	}
	seen := make(map[string]struct{}, len(c.Networks))
	for _, n := range c.Networks {
		if n.Name == "" {
			return fmt.Errorf("network name is required")
		}
		if _, ok := seen[n.Name]; ok {
			return fmt.Errorf("duplicate network name: %s", n.Name)
		}
		seen[n.Name] = struct{}{}
		if n.RPCURL == "" {
			return fmt.Errorf("network %s: rpc url is required", n.Name)
		}
		if len(n.Contracts) == 0 {
			return fmt.Errorf("network %s: at least one contract is required", n.Name)
		}
	}
	return nil
}

func applyNetworkDefaults(n *Network) {
	if n.BatchSize == 0 {
		n.BatchSize = 2000
	}
	if n.ConfirmationDepth == 0 {
		n.ConfirmationDepth = 12
	}
	if n.BatchDelay == 0 {
		n.BatchDelay = 200 * time.Millisecond
	}
	if n.ResumeDelay == 0 {
		n.ResumeDelay = 30 * time.Second
	}
}
