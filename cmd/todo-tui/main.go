package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"todoTracker/internal/client"
	"todoTracker/internal/logger"
	"todoTracker/internal/tui"

	"github.com/spf13/cobra"
)

var (
	apiURL       string
	logFile      string
	timeout      time.Duration
	versionCheck bool
)

var rootCmd = &cobra.Command{
	Use:   "todo-tui",
	Short: "Terminal client for the todo API",
	Long: `Browse and edit todos from the terminal.

Keys: j/k move, space toggle, a add, e edit title, p cycle priority,
d delete, r reload, q quit.`,
	SilenceUsage: true,
	RunE:         runTUI,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the API is reachable",
	RunE:  runHealth,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", envOr("TODO_API_URL", "http://localhost:5000/api"), "base URL of the todo API")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", client.DefaultTimeout, "per-request timeout")
	rootCmd.Flags().StringVar(&logFile, "log-file", "", "write client logs to this file (logging is off when empty)")
	rootCmd.Flags().BoolVar(&versionCheck, "check-version", false, "reject edits made against an outdated copy")

	rootCmd.AddCommand(healthCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newAPI() (*client.API, error) {
	return client.NewAPI(apiURL, client.WithTimeout(timeout))
}

func runTUI(cmd *cobra.Command, args []string) error {
	if logFile != "" {
		if err := logger.InitFile(logFile); err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer logger.Sync()
	}

	api, err := newAPI()
	if err != nil {
		return err
	}

	var opts []client.Option
	if versionCheck {
		opts = append(opts, client.WithVersionCheck())
	}
	ctrl := client.NewController(api, client.NewCache(), opts...)
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return tui.Run(ctx, ctrl)
}

func runHealth(cmd *cobra.Command, args []string) error {
	api, err := newAPI()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	health, err := api.Health(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", health.Message, health.Timestamp)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
