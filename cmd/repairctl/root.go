package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spec-kit/repair-tracker/internal/observability"
)

var (
	dumpDir    string
	rulesFile  string
	holidays   []string
	logLevel   string
	epicPrefix string
	rtNumber   string
	trimmed    bool
)

var rootCmd = &cobra.Command{
	Use:           "repairctl",
	Short:         "Inspect repair orders and their board timelines",
	Long:          `repairctl reads stored tracker payloads to print timelines, diffs and summaries, and drives refreshes on a running server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	_ = godotenv.Load()

	rootCmd.PersistentFlags().StringVar(&dumpDir, "dump-dir", envOr("STORAGE_DUMP_DIR", "jira_dumps"), "Directory holding epic-list.json and <EPIC>.json dumps")
	rootCmd.PersistentFlags().StringVar(&rulesFile, "rules", os.Getenv("TIMELINE_RULES_FILE"), "Timeline rules TOML file")
	rootCmd.PersistentFlags().StringSliceVar(&holidays, "holiday", nil, "Extra holiday dates (YYYY-MM-DD), repeatable")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", envOr("LOG_LEVEL", "warn"), "Log level")
	rootCmd.PersistentFlags().StringVar(&epicPrefix, "epic-prefix", envOr("JIRA_EPIC_PREFIX", "RT-"), "Prefix added to bare epic numbers")

	rootCmd.AddCommand(watchCmd, ordersCmd, timelineCmd, diffCmd, exportCmd, summaryCmd)
}

func newLogger() *zap.Logger {
	logger, err := observability.NewCLILogger(logLevel)
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func requireRT(cmd *cobra.Command) error {
	if rtNumber == "" {
		return fmt.Errorf("%s: --rt is required", cmd.Name())
	}
	return nil
}
