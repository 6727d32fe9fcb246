package main

import (
	"fmt"
	"os"
	"time"

	"fyuchan/pkg/chat"
	"fyuchan/pkg/config"
	"fyuchan/pkg/fyu"
	"fyuchan/pkg/llm"
	"fyuchan/pkg/reflection"
	"fyuchan/pkg/session"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "fyuchan",
	Short: "Fyu-chan, a bookish chat companion",
	Long: `Fyu-chan chats in a fixed persona, optionally double-checking each
reply against her own rules before it is shown.

Run "fyuchan chat" for the terminal or "fyuchan discord" for the bot.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapConfig := zap.NewProductionConfig()
		if verbose {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		// Load .env for secrets
		if err := godotenv.Load(); err != nil {
			logger.Debug("no .env file found, relying on environment variables")
		}

		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(discordCmd)
}

// buildOrchestrator wires the conversation core shared by every front end.
func buildOrchestrator() (*fyu.Orchestrator, error) {
	apiKeys := os.Getenv("OPENAI_API_KEY")
	if apiKeys == "" {
		return nil, fmt.Errorf("missing required environment variable: OPENAI_API_KEY")
	}

	readings, ok, err := config.LoadReadings(cfg.Readings.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load readings: %w", err)
	}
	if !ok {
		logger.Warn("readings file not found, continuing without it", zap.String("path", cfg.Readings.Path))
	}

	client := llm.NewClient(apiKeys, llm.Options{
		BaseURL:     cfg.ModelSettings.BaseURL,
		Model:       cfg.ModelSettings.Model,
		Temperature: cfg.ModelSettings.Temperature,
		Timeout:     time.Duration(cfg.ModelSettings.RequestTimeoutSeconds * float64(time.Second)),
	}, logger)

	logger.Info("conversation core ready",
		zap.String("model", cfg.ModelSettings.Model),
		zap.Bool("reflection_default", cfg.Reflection.Enabled),
		zap.Int("readings_bytes", len(readings)),
	)

	return fyu.NewOrchestrator(
		session.NewStore(),
		chat.NewCompleter(client),
		reflection.NewEvaluator(client, logger),
		readings,
		logger,
	), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
