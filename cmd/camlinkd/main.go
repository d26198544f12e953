package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/visiona/camlink/internal/config"
	"github.com/visiona/camlink/internal/logging"
)

var (
	flagConfig    string
	flagHost      string
	flagPort      int
	flagTimeoutMS int
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "camlinkd",
		Short:         "Configure a remote imaging device over UDP and watch its live stream",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&flagHost, "host", "", "device IP address (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 0, "device UDP port (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagTimeoutMS, "timeout-ms", 0, "reply timeout in milliseconds (overrides config)")

	rootCmd.AddCommand(newSetCommand(), newGetCommand(), newWatchCommand())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadConfig merges the optional config file with command-line overrides and
// installs the logger.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if flagConfig != "" {
		cfg, err = config.Load(flagConfig)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	if flagHost != "" {
		cfg.Device.Host = flagHost
	}
	if flagPort != 0 {
		cfg.Device.Port = flagPort
	}
	if flagTimeoutMS != 0 {
		cfg.Device.TimeoutMS = flagTimeoutMS
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logging.Setup(cfg.SlogLevel())
	return cfg, nil
}
