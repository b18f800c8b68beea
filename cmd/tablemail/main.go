package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"tablemail/internal/capture"
	"tablemail/internal/config"
	"tablemail/internal/excel"
	"tablemail/internal/gemini"
	"tablemail/internal/gmail"
	"tablemail/internal/store"
	"tablemail/internal/workflow"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tablemail",
		Short: "Fetch a tabular email, render it, and turn it into a workbook",
		Long: `tablemail searches Gmail for a sender's most recent (or a dated) message,
extracts its HTML tables, renders them to an image, recovers the table
structure with a multimodal model, and writes the result as an .xlsx workbook.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg)
			return run(cmd.Context(), cfg, logger)
		},
	}

	config.RegisterFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	ledger, err := store.Open(filepath.Join(cfg.ConfigDir, "tablemail.db"))
	if err != nil {
		return fmt.Errorf("open run ledger: %w", err)
	}
	defer ledger.Close()

	reader, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, logger)
	if err != nil {
		return fmt.Errorf("gemini client: %w", err)
	}

	deps := workflow.Deps{
		OpenMailbox: func(ctx context.Context) (workflow.Mailbox, error) {
			return gmail.NewClient(ctx, cfg.ConfigDir, logger)
		},
		Capturer: capture.New(capture.Options{FullPage: cfg.FullPage, Scale: cfg.Scale}, logger),
		Tables:   reader,
		Sheets:   excel.NewWriter(logger),
		Ledger:   ledger,
	}

	res := workflow.New(cfg, deps, logger).Run(ctx)
	if !res.Success {
		if res.Err != nil {
			return fmt.Errorf("%s: %w", res.Message, res.Err)
		}
		return fmt.Errorf("%s", res.Message)
	}

	logger.Info("done", "elapsed", res.Elapsed.Round(time.Millisecond))
	for _, f := range res.OutputFiles {
		fmt.Println(f)
	}
	return nil
}

func setupLogger(cfg config.Config) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	switch cfg.LogLevel {
	case "debug":
		logger.SetLevel(log.DebugLevel)
	case "warn":
		logger.SetLevel(log.WarnLevel)
	case "error":
		logger.SetLevel(log.ErrorLevel)
	default:
		logger.SetLevel(log.InfoLevel)
	}
	return logger
}
