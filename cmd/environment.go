package cmd

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"specdebate/pkg/channel"
	"specdebate/pkg/channel/telegram"
	"specdebate/pkg/config"
	"specdebate/pkg/pricing"
	"specdebate/pkg/provider"
)

const telegramChannelName = "telegram"

// environment is everything a command touches outside its own flags.
type environment struct {
	cfg       *config.Config
	newClient func(cfg *config.Config) provider.Client
	stdin     io.Reader
	stdout    io.Writer
	stderr    io.Writer
	stdoutTTY bool
	stderrTTY bool
	log       *slog.Logger
}

func newEnvironment(cmd *cobra.Command) *environment {
	return &environment{
		cfg: currentConfig(),
		newClient: func(cfg *config.Config) provider.Client {
			return provider.NewRouter(cfg)
		},
		stdin:     cmd.InOrStdin(),
		stdout:    cmd.OutOrStdout(),
		stderr:    cmd.ErrOrStderr(),
		stdoutTTY: isTerminal(cmd.OutOrStdout()),
		stderrTTY: isTerminal(cmd.ErrOrStderr()),
		log:       slog.Default().With("component", "cmd"),
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func readSpec(r io.Reader) (string, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return "", inputError(fmt.Errorf("read spec from stdin: %w", err))
	}

	spec := strings.TrimSpace(string(content))
	if spec == "" {
		return "", inputError(errors.New("No spec provided via stdin"))
	}
	return spec, nil
}

func loadPricing(cfg *config.Config) (*pricing.Table, error) {
	path := strings.TrimSpace(cfg.Pricing.Path)
	if path == "" {
		return pricing.Default(), nil
	}

	table, err := pricing.Load(path)
	if err != nil {
		return nil, configError(err)
	}
	return table, nil
}

// enabledNotifiers returns the notification sinks requested by flag or config.
func enabledNotifiers(cfg *config.Config, requested string, log *slog.Logger) ([]channel.Notifier, error) {
	notifiers := make([]channel.Notifier, 0, 1)

	names := config.ParseCSV(requested)
	if cfg.Notify.Telegram.Enabled && !containsFold(names, telegramChannelName) {
		names = append(names, telegramChannelName)
	}

	for _, name := range names {
		switch strings.ToLower(name) {
		case telegramChannelName:
			notifier, err := telegram.NewNotifier(cfg.Notify.Telegram, log)
			if err != nil {
				return nil, configError(fmt.Errorf("configure %s notifications: %w", telegramChannelName, err))
			}
			notifiers = append(notifiers, notifier)
		default:
			return nil, configError(fmt.Errorf("unknown notification channel %q", name))
		}
	}

	return notifiers, nil
}

func containsFold(values []string, target string) bool {
	for _, value := range values {
		if strings.EqualFold(value, target) {
			return true
		}
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
