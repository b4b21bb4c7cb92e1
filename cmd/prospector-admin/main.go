package main

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/target/prospector/internal/bootstrap"
)

const defaultAPIURL = "http://localhost:8080"

var rootCmd = &cobra.Command{
	Use:   "prospector-admin",
	Short: "Operator and maintenance CLI for the prospector service",
	Long: `prospector-admin manages a prospector deployment.

Database commands (migrate, db-seed) connect to PostgreSQL using the same DB_* environment
variables as the service. Everything else talks to a running server over its HTTP API, so
changes made here reach live subscribers.`,
	SilenceUsage: true,
}

var (
	apiURL     string
	apiTimeout time.Duration
	logger     = slog.Default()
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", envOr("PROSPECTOR_API_URL", defaultAPIURL), "Base URL of the prospector API")
	rootCmd.PersistentFlags().DurationVar(&apiTimeout, "timeout", 30*time.Second, "Timeout for API requests")
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()
	logger = bootstrap.InitLogger()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}
