package main

// @title           Annotator Core API
// @version         1.0
// @description     Span annotation engine. Compiles codebooks, keeps each coder's annotations over tokenized units and queues submissions for storage.

// @contact.name   Annotator OSS
// @contact.url    https://github.com/custodia-labs/annotator-core/issues

// @license.name  Apache 2.0
// @license.url   http://www.apache.org/licenses/LICENSE-2.0.html

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/custodia-labs/annotator-core/docs"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "annotator-core",
	Short: "Span annotation engine: API server, submission worker and codebook tools",
	Long: `annotator-core serves the annotation API, runs the submission worker
and provides tools to check codebooks and seed annotation jobs.

Configuration is read from the environment (PORT, DATABASE_URL, REDIS_URL, ...).`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(getEnv("LOG_LEVEL", "info"))
	},
}

func init() {
	rootCmd.AddCommand(apiCmd, workerCmd, allCmd, codebookCmd, loadCmd)
	rootCmd.Version = version
}

func main() {
	// Run mode from RUN_MODE when no subcommand is given
	if len(os.Args) == 1 {
		rootCmd.SetArgs([]string{getEnv("RUN_MODE", "all")})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Fatalf("annotator-core: %v", err)
	}
}

// setupLogging installs a text slog handler at the given level as default
func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var result int
		if _, err := fmt.Sscanf(value, "%d", &result); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

// getEnvList splits a comma separated variable, dropping empty entries
func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
