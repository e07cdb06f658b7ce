// Package config provides a reusable loader for the dataplane's
// configuration files and environment variables, built on viper the same
// way the teacher's own config package is: a YAML default merged with an
// optional per-environment override, then environment variables layered
// on top.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"gatekeeper/pkg/utils"
)

// Config is the unified configuration for a gatekeeper process: the GK
// shard pool, the LLS worker, the policy-ingestion HTTP API, and logging.
type Config struct {
	GK struct {
		NumShards       int    `mapstructure:"num_shards" json:"num_shards"`
		FlowTableSize   int    `mapstructure:"flow_table_size" json:"flow_table_size"`
		MailboxCapacity int    `mapstructure:"mailbox_capacity" json:"mailbox_capacity"`
		FrontIface      string `mapstructure:"front_iface" json:"front_iface"`
		BackIface       string `mapstructure:"back_iface" json:"back_iface"`
	} `mapstructure:"gk" json:"gk"`

	LLS struct {
		Enabled       bool `mapstructure:"enabled" json:"enabled"`
		BackIface     bool `mapstructure:"back_iface_enabled" json:"back_iface_enabled"`
		ScanIntervalS int  `mapstructure:"scan_interval_seconds" json:"scan_interval_seconds"`
	} `mapstructure:"lls" json:"lls"`

	HTTP struct {
		PolicyAddr  string `mapstructure:"policy_addr" json:"policy_addr"`
		MetricsAddr string `mapstructure:"metrics_addr" json:"metrics_addr"`
	} `mapstructure:"http" json:"http"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment-specific
// overrides. The resulting configuration is stored in AppConfig and
// returned. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("cmd/config")
	viper.AddConfigPath("config")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the GATEKEEPER_ENV environment
// variable to select the override file.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("GATEKEEPER_ENV", ""))
}

// Defaults returns a Config populated with sane standalone defaults, for
// use when no config file is present (e.g. in tests or a quick start).
func Defaults() Config {
	var c Config
	c.GK.NumShards = 4
	c.GK.FlowTableSize = 1 << 16
	c.GK.MailboxCapacity = 128
	c.GK.FrontIface = "front"
	c.GK.BackIface = "back"
	c.LLS.Enabled = true
	c.LLS.BackIface = true
	c.LLS.ScanIntervalS = 10
	c.HTTP.PolicyAddr = ":8080"
	c.HTTP.MetricsAddr = ":9090"
	c.Logging.Level = "info"
	return c
}
