package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dokzlo13/obstrigger/internal/app"
	"github.com/dokzlo13/obstrigger/internal/config"
	"github.com/dokzlo13/obstrigger/internal/db"
	"github.com/dokzlo13/obstrigger/internal/ledger"
	"github.com/dokzlo13/obstrigger/internal/obs"
)

var version = "dev"

var (
	configPath   string
	historyLimit int

	rootCmd = &cobra.Command{
		Use:           "obstrigger",
		Short:         "Run actions when OBS switches scenes, starts or stops streaming",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		log.Error().Err(err).Msg("Command failed")
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "Path to configuration file")
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of ledger entries to show")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the config file and sets up logging from it.
func loadConfig() (*config.Config, error) {
	configPath = config.Locate(configPath)
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	setupLogging(cfg.Log.GetLevel(), cfg.Log.UseJSON, cfg.Log.Colors)
	return cfg, nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to OBS and run triggers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		log.Info().Str("config", configPath).Str("obs", cfg.OBS.Address).Msg("Starting obstrigger")

		application, err := app.New(cfg)
		if err != nil {
			return fmt.Errorf("create application: %w", err)
		}

		// Create context that cancels on shutdown signal
		ctx := app.SignalContext()

		if err := application.Start(ctx); err != nil {
			return fmt.Errorf("start application: %w", err)
		}

		// Wait for shutdown
		application.Wait()

		return application.Stop()
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration and trigger definitions without connecting",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		defs, err := app.LoadDefinitions(cfg)
		if err != nil {
			return err
		}
		stats, err := app.Check(cfg, defs)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "obs address:    %s\n", obs.NewSession(app.SessionConfig(cfg)).URL())
		fmt.Fprintf(out, "triggers:       %d\n", len(defs))
		fmt.Fprintf(out, "scene switches: %d\n", stats.Scenes)
		fmt.Fprintf(out, "stream started: %d\n", stats.StreamStarted)
		fmt.Fprintf(out, "stream stopped: %d\n", stats.StreamStopped)
		fmt.Fprintf(out, "messages:       %d\n", stats.Messages)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently fired triggers and action results",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer database.Close()

		entries, err := ledger.New(database.DB).Recent(historyLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for i := len(entries) - 1; i >= 0; i-- {
			e := entries[i]
			line, _ := e.Payload["line"].(string)
			fmt.Fprintf(out, "%s  %-16s trigger=%d source=%s %s\n",
				e.Timestamp.Local().Format(time.DateTime), e.EventType, e.TriggerID, e.Source, line)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "obstrigger version %s\n", version)
	},
}

func setupLogging(level string, useJSON bool, colors bool) {
	// ISO 8601 format with timezone
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		// JSON output for production
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		// Text output (with optional colors)
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors || !isTerminal(os.Stderr),
		})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
