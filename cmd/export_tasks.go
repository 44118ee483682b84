package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"specdebate/pkg/config"
	"specdebate/pkg/prompts"
	"specdebate/pkg/tasks"
)

const (
	exportTemperature     = 0.3
	exportMaxOutputTokens = 8000
)

type exportOptions struct {
	models  string
	docType string
	jsonOut bool
	profile string
	timeout int
}

var exportOpts exportOptions

var exportTasksCmd = &cobra.Command{
	Use:   "export-tasks",
	Short: "Break the spec on stdin into implementation tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args
		env := newEnvironment(cmd)

		opts := exportOpts
		if err := resolveExportOptions(&opts, cmd.Flags().Changed, env.cfg); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runExportTasks(ctx, env, opts)
	},
}

func init() {
	rootCmd.AddCommand(exportTasksCmd)

	flags := exportTasksCmd.Flags()
	flags.StringVarP(&exportOpts.models, "models", "m", defaultModels, "model to use; only the first entry is called")
	flags.StringVarP(&exportOpts.docType, "doc-type", "d", "tech", "document type: prd or tech")
	flags.BoolVarP(&exportOpts.jsonOut, "json", "j", false, "print tasks as JSON")
	flags.StringVar(&exportOpts.profile, "profile", "", "load defaults from a saved profile")
	flags.IntVar(&exportOpts.timeout, "timeout", 600, "model timeout in seconds")
}

func resolveExportOptions(opts *exportOptions, changed func(string) bool, cfg *config.Config) error {
	critique := critiqueOptions{
		models:  opts.models,
		docType: opts.docType,
		profile: opts.profile,
		timeout: opts.timeout,
	}
	if err := resolveCritiqueOptions(&critique, changed, cfg); err != nil {
		return err
	}

	opts.models = critique.models
	opts.docType = critique.docType
	opts.timeout = critique.timeout
	return nil
}

func runExportTasks(ctx context.Context, env *environment, opts exportOptions) error {
	models := config.ParseCSV(opts.models)
	if len(models) == 0 {
		return inputError(errors.New("no model given"))
	}
	model := models[0]

	spec, err := readSpec(env.stdin)
	if err != nil {
		return err
	}

	prompt, err := prompts.ExportTasks(spec, opts.docType)
	if err != nil {
		return inputError(err)
	}

	exportCfg := *env.cfg
	exportCfg.Debate.Temperature = exportTemperature
	exportCfg.Debate.MaxOutputTokens = exportMaxOutputTokens
	client := env.newClient(&exportCfg)

	callCtx, cancel := context.WithTimeout(ctx, time.Duration(opts.timeout)*time.Second)
	defer cancel()

	env.log.Info("Extracting tasks", "model", model, "doc_type", opts.docType)
	result, err := client.Complete(callCtx, model, prompt)
	if err != nil {
		return inputError(fmt.Errorf("%s: %w", model, err))
	}

	extracted := tasks.Extract(result.Text)
	env.log.Debug("Tasks extracted", "model", model, "count", len(extracted))

	if opts.jsonOut {
		encoder := json.NewEncoder(env.stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(struct {
			Tasks []tasks.Task `json:"tasks"`
		}{Tasks: extracted}); err != nil {
			return inputError(err)
		}
		return nil
	}

	fmt.Fprint(env.stdout, tasks.RenderText(extracted))
	return nil
}
