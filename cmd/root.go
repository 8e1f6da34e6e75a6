package cmd

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gitr-mirror/config"
	"gitr-mirror/constants"
	"gitr-mirror/sync"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gitr-mirror",
	Short: "Keeps a mirror namespace in sync with a source repository catalog",
	Run:   run,
}

var dryRun bool
var debugMode bool
var configPath string

func run(cmd *cobra.Command, args []string) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	if !debugMode {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}

	config, err := config.LoadConfig(configPath)
	if err != nil {
		log.Fatal().Err(err).Send()
	}

	// The flag wins when given explicitly, otherwise the config decides
	if !cmd.Flags().Changed("dry-run") {
		dryRun = *config.DryRun
	}

	ctx := context.WithValue(context.Background(), constants.DRY_RUN, dryRun)

	err = sync.Run(ctx, config)
	if err != nil {
		log.Fatal().Err(err).Send()
	}
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&dryRun, "dry-run", "n", true, "Dry-run mode (report mutations without executing them)")
	rootCmd.PersistentFlags().BoolVarP(&debugMode, "debug", "D", false, "Debug mode")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to the configuration file")
}
