// Package config loads peersim configuration from a TOML file and PEERSIM_*
// environment variables, with sensible defaults for local use.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full peersim configuration.
type Config struct {
	// ListenAddr is the status API bind address; empty disables the API.
	ListenAddr string `mapstructure:"listen_addr"`

	// TickRate is the scheduler frequency in ticks per second.
	TickRate int `mapstructure:"tick_rate"`

	Fleet    Fleet    `mapstructure:"fleet"`
	Endpoint Endpoint `mapstructure:"endpoint"`
	Profile  Profile  `mapstructure:"profile"`
}

// Fleet controls thin-client fleet sizing.
type Fleet struct {
	DesiredThinClients      int     `mapstructure:"desired_thin_clients"`
	CreationIntervalSeconds float64 `mapstructure:"creation_interval_seconds"`
	FailureRetrySeconds     float64 `mapstructure:"failure_retry_seconds"`
}

// Endpoint is the default address clients connect to.
type Endpoint struct {
	Address string `mapstructure:"address"`
	Port    int    `mapstructure:"port"`
}

// Profile is the initial network-condition profile.
type Profile struct {
	Enabled     bool `mapstructure:"enabled"`
	DelayMS     int  `mapstructure:"delay_ms"`
	JitterMS    int  `mapstructure:"jitter_ms"`
	DropPercent int  `mapstructure:"drop_percent"`
	FuzzPercent int  `mapstructure:"fuzz_percent"`
}

// Load reads configuration. A missing config file is fine and yields the
// defaults; an explicitly named file that cannot be read is an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("peersim")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/peersim")
	}
	v.SetConfigType("toml")

	v.SetEnvPrefix("PEERSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || cfgFile != "" {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", "localhost:7780")
	v.SetDefault("tick_rate", 60)

	v.SetDefault("fleet.desired_thin_clients", 0)
	v.SetDefault("fleet.creation_interval_seconds", 1.0)
	v.SetDefault("fleet.failure_retry_seconds", 5.0)

	v.SetDefault("endpoint.address", "127.0.0.1")
	v.SetDefault("endpoint.port", 28015)

	v.SetDefault("profile.enabled", false)
	v.SetDefault("profile.delay_ms", 0)
	v.SetDefault("profile.jitter_ms", 0)
	v.SetDefault("profile.drop_percent", 0)
	v.SetDefault("profile.fuzz_percent", 0)
}
