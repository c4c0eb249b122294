// Package cmd provides the Cobra commands for the matonode CLI.
package cmd

import (
	"github.com/spf13/cobra"
)

var (
	configFile     string
	nodeConfigPath string
	nodeID         int
	logPath        string
	metricsAddr    string
)

var rootCmd = &cobra.Command{
	Use:          "matonode",
	Short:        "matonode runs one node of a Mato distributed control framework process",
	SilenceUsage: true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "optional host config file (viper-backed: YAML/JSON/TOML); flags below override its values")
	rootCmd.PersistentFlags().StringVar(&nodeConfigPath, "node-config", "nodes.csv", "nodes config CSV (node_id,ip,port,name)")
	rootCmd.PersistentFlags().IntVar(&nodeID, "node-id", 0, "this process's node id")
	rootCmd.PersistentFlags().StringVar(&logPath, "log-path", "./log", "directory for rotated log files and the last symlink")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", ":9600", "listen address for the Prometheus /metrics endpoint")

	rootCmd.AddCommand(runCmd)
}
