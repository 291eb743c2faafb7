package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/mickaelvieira/mighty-qa-go-example/internal/config"
	"github.com/spf13/cobra"
)

const (
	ExitCodeSuccess = 0
	ExitCodeError   = 1
	// ExitCodeConfig is returned when required environment variables are missing.
	ExitCodeConfig = 2
)

var (
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "mighty-qa",
	Short: "Ask questions about your private data stored by Mighty",
	Long: `mighty-qa authorizes an application to read a user's private data,
exchanges the authorization code for a biscuit token, fetches the data and
answers questions about it with a hosted model.

Start by generating an authorization URL, then run the server the user is
redirected to:

  mighty-qa generate-url
  mighty-qa serve`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// setup loads the .env file and configures the default logger before any command runs.
func setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(envFile); err != nil {
		return err
	}

	level, err := parseLevel(logLevel)
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return l, fmt.Errorf("invalid log level %q", s)
	}
	return l, nil
}

// Execute runs the command line and exits with a code matching the error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var missing *config.MissingError
	if errors.As(err, &missing) {
		return ExitCodeConfig
	}

	return ExitCodeError
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "File the environment variables are loaded from, if present")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	rootCmd.AddCommand(newGenerateCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newDirectCmd())
	rootCmd.AddCommand(newGenKeyCmd())
}
