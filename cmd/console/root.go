package main

import (
	"github.com/scanops/console/internal/config"
	"github.com/scanops/console/internal/infrastructure/logger"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "scanconsole",
	Short: "Task console for the scanning backend",
	Long: `scanconsole tracks scans started against the scanning backend, merges
their live and historical logs into one console per workspace and serves
that console to a local UI.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (YAML)")
	rootCmd.AddCommand(serveCmd, historyCmd, toolsCmd)
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(cfg.Logger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}
