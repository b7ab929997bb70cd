// Package cliconfig holds the flags shared by every rovo subcommand.
package cliconfig

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/rovo/internal/config"
)

// Flags are the configuration flags common to all subcommands.
type Flags struct {
	ConfigPath string
	Debug      bool
}

// Register adds the shared flags to cmd.
func (f *Flags) Register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.ConfigPath, "config", "c", "", "Path to the rovo TOML config (default: "+config.DefaultConfigPath+")")
	cmd.Flags().BoolVar(&f.Debug, "debug", false, "Enable debug logging")
}

// Load resolves the configuration file and environment, then applies the flags.
func (f *Flags) Load() (config.Config, error) {
	cfg, err := config.Load(f.ConfigPath)
	if err != nil {
		return config.Config{}, err
	}
	if f.Debug {
		cfg.Log.Debug = true
	}
	return cfg, nil
}
