/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"specdebate/pkg/config"
	"specdebate/pkg/logger"
)

const (
	exitInput  = 1
	exitConfig = 2
)

// appConfig is loaded once per process before any command runs.
var appConfig *config.Config

var rootCmd = &cobra.Command{
	Use:   "specdebate",
	Short: "Adversarial spec review with several LLMs in parallel",
	Long: "Sends a specification to several models at once, collects their critiques, " +
		"and reports whether they all agree that no further changes are needed.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = args
		return loadRuntime()
	},
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		_ = cmd
		return configError(err)
	})
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return exitCode(err)
	}
	return 0
}

func loadRuntime() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return configError(fmt.Errorf("load config: %w", err))
	}

	if _, err := logger.Setup(cfg.Logging); err != nil {
		return configError(fmt.Errorf("initialize logger: %w", err))
	}

	appConfig = cfg
	slog.Default().Debug("configuration loaded", "component", "cmd", "models", cfg.Debate.Models)
	return nil
}

func currentConfig() *config.Config {
	if appConfig == nil {
		return config.Default()
	}
	return appConfig
}

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// inputError marks missing or unreadable input and failed API calls.
func inputError(err error) error {
	return &exitError{code: exitInput, err: err}
}

// configError marks invalid configuration, flags or profiles.
func configError(err error) error {
	return &exitError{code: exitConfig, err: err}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var coded *exitError
	if errors.As(err, &coded) {
		return coded.code
	}
	return exitInput
}
