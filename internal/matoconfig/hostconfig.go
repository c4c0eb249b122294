// Package matoconfig reads the host program's own settings via viper, and
// the two wire-format config files the framework itself mandates: the
// nodes CSV and the var:val module config format (§6).
package matoconfig

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// HostConfig is the settings a matonode process reads at startup: which
// node it is, where to listen, where the nodes file and log path live.
type HostConfig struct {
	NodeID     int    `mapstructure:"node_id"`
	ListenPort int    `mapstructure:"listen_port"`
	NodesFile  string `mapstructure:"nodes_file"`
	LogPath    string `mapstructure:"log_path"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// LoadHostConfig reads host settings from an optional config file plus
// MATO_-prefixed environment variables, the latter overriding the former.
func LoadHostConfig(configPath string) (*HostConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("MATO")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("node_id", 0)
	v.SetDefault("listen_port", 9500)
	v.SetDefault("nodes_file", "nodes.csv")
	v.SetDefault("log_path", "./log")
	v.SetDefault("metrics_addr", ":9600")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("mato: reading host config %q: %w", configPath, err)
		}
	}

	var cfg HostConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("mato: decoding host config: %w", err)
	}
	return &cfg, nil
}
