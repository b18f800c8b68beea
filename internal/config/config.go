// Package config resolves pipeline settings from CLI flags with environment
// fallback (a .env file is honored when present).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var reDate = regexp.MustCompile(`^\d{8}$`)

// Config captures everything one pipeline invocation needs.
type Config struct {
	Sender     string // sender name or email address to search for
	MessageID  string // when set, skips search/selection and fetches directly
	TargetDate string // YYYYMMDD; empty selects the most recent message
	MaxResults int64

	GeminiAPIKey string

	ConfigDir string // credentials.json, token.json, ledger database
	OutputDir string

	FullPage bool
	Scale    float64

	LogLevel string
}

// RegisterFlags attaches all CLI flags to the provided command.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("sender", "", "Sender name or email address to search for (falls back to SENDER env var)")
	flags.String("message-id", "", "Process this exact Gmail message id instead of searching")
	flags.String("date", "", "Select the message whose subject date equals YYYYMMDD (default: most recent)")
	flags.Int64("max-results", 10, "Maximum number of candidate messages to consider")
	flags.String("config-dir", "", "Directory holding credentials.json and token.json (default: ~/.config/tablemail)")
	flags.String("output-dir", "output", "Directory for generated html/png/json/xlsx files")
	flags.Bool("full-page", true, "Capture the full rendered page, not just the viewport")
	flags.Float64("scale", 2, "Device scale factor for the screenshot")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
}

// Load converts the parsed flags into a Config, filling gaps from the
// environment, and validates the result. A .env file in the working directory
// is loaded first, matching how deployments ship their settings.
func Load(cmd *cobra.Command) (Config, error) {
	_ = godotenv.Load()

	flags := cmd.Flags()

	sender, err := flags.GetString("sender")
	if err != nil {
		return Config{}, err
	}
	messageID, err := flags.GetString("message-id")
	if err != nil {
		return Config{}, err
	}
	targetDate, err := flags.GetString("date")
	if err != nil {
		return Config{}, err
	}
	maxResults, err := flags.GetInt64("max-results")
	if err != nil {
		return Config{}, err
	}
	configDir, err := flags.GetString("config-dir")
	if err != nil {
		return Config{}, err
	}
	outputDir, err := flags.GetString("output-dir")
	if err != nil {
		return Config{}, err
	}
	fullPage, err := flags.GetBool("full-page")
	if err != nil {
		return Config{}, err
	}
	scale, err := flags.GetFloat64("scale")
	if err != nil {
		return Config{}, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return Config{}, err
	}

	if sender == "" {
		sender = os.Getenv("SENDER")
	}
	if messageID == "" {
		messageID = os.Getenv("MESSAGE_ID")
	}
	if targetDate == "" {
		targetDate = os.Getenv("TARGET_DATE")
	}
	if !flags.Changed("max-results") {
		if v := os.Getenv("MAX_RESULTS"); v != "" {
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return Config{}, fmt.Errorf("MAX_RESULTS: %w", err)
			}
			maxResults = n
		}
	}
	if configDir == "" {
		configDir, err = defaultConfigDir()
		if err != nil {
			return Config{}, err
		}
	}
	if v := os.Getenv("OUTPUT_DIR"); v != "" && !flags.Changed("output-dir") {
		outputDir = v
	}

	cfg := Config{
		Sender:       sender,
		MessageID:    messageID,
		TargetDate:   targetDate,
		MaxResults:   maxResults,
		GeminiAPIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		ConfigDir:    filepath.Clean(configDir),
		OutputDir:    filepath.Clean(outputDir),
		FullPage:     fullPage,
		Scale:        scale,
		LogLevel:     strings.ToLower(logLevel),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Sender == "" && c.MessageID == "" {
		return fmt.Errorf("a sender (--sender or SENDER) or --message-id is required")
	}
	if c.TargetDate != "" && !reDate.MatchString(c.TargetDate) {
		return fmt.Errorf("--date must be 8 digits (YYYYMMDD), got %q", c.TargetDate)
	}
	if c.MaxResults <= 0 {
		return fmt.Errorf("--max-results must be positive")
	}
	if c.Scale <= 0 {
		return fmt.Errorf("--scale must be positive")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY must be set")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", c.LogLevel)
	}
	return nil
}

// EnsureDirs creates the output and config directories when missing.
func (c Config) EnsureDirs() error {
	for _, dir := range []string{c.OutputDir, c.ConfigDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

func defaultConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "tablemail"), nil
}
