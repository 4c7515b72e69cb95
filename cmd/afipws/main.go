package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/systmms/afipws/cmd/afipws/commands"
	"github.com/systmms/afipws/internal/config"
	aerrors "github.com/systmms/afipws/internal/errors"
	"github.com/systmms/afipws/internal/logging"
	"github.com/systmms/afipws/internal/metrics"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", aerrors.SimplifyError(err))
		os.Exit(1)
	}
}

func run() error {
	var (
		configFile string
		noColor    bool
		debug      bool
	)

	cfg := &config.Config{}

	rootCmd := &cobra.Command{
		Use:   "afipws",
		Short: "Authenticated access to the AFIP SOAP web services",
		Long: `afipws logs in to WSAA with the certificate in your key store, caches the
access tickets and calls the AFIP web services (wsfe, wsfex, padron) with them.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cfg.Path = configFile
			cfg.Logger = logging.New(debug, noColor)
			metrics.InitMetrics()
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", config.DefaultPath, "Config file path")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		commands.NewLoginCommand(cfg),
		commands.NewServicesCommand(cfg),
		commands.NewKeystoreCommand(cfg),
		commands.NewCacheCommand(cfg),
		commands.NewCallCommand(cfg),
	)

	return rootCmd.Execute()
}
