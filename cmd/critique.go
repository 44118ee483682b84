/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"specdebate/pkg/bus"
	"specdebate/pkg/config"
	"specdebate/pkg/cost"
	"specdebate/pkg/debate"
	"specdebate/pkg/metrics"
	"specdebate/pkg/profile"
	"specdebate/pkg/prompts"
	"specdebate/pkg/report"
	"specdebate/pkg/ui/progress"
)

const defaultModels = "gpt-4o"

type critiqueOptions struct {
	models         string
	docType        string
	round          int
	jsonOut        bool
	press          bool
	focus          string
	persona        string
	context        []string
	profile        string
	preserveIntent bool
	timeout        int
	showCost       bool
	notify         string
	metricsFile    string
	noProgress     bool
}

var critiqueOpts critiqueOptions

// critiqueCmd represents the critique command
var critiqueCmd = &cobra.Command{
	Use:   "critique",
	Short: "Send the spec on stdin to every model and report their critiques",
	Long: "Reads a specification from stdin, sends it to all requested models in parallel, " +
		"and prints each critique plus whether every model agreed.",
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args
		env := newEnvironment(cmd)

		opts := critiqueOpts
		if err := resolveCritiqueOptions(&opts, cmd.Flags().Changed, env.cfg); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runCritique(ctx, env, opts)
	},
}

func init() {
	rootCmd.AddCommand(critiqueCmd)

	flags := critiqueCmd.Flags()
	flags.StringVarP(&critiqueOpts.models, "models", "m", defaultModels, "comma-separated list of models")
	flags.StringVarP(&critiqueOpts.docType, "doc-type", "d", "tech", "document type: prd or tech")
	flags.IntVarP(&critiqueOpts.round, "round", "r", 1, "current round number")
	flags.BoolVarP(&critiqueOpts.jsonOut, "json", "j", false, "print results as JSON")
	flags.BoolVarP(&critiqueOpts.press, "press", "p", false, "press models to confirm they read the whole document")
	flags.StringVarP(&critiqueOpts.focus, "focus", "f", "", "focus area (see focus-areas)")
	flags.StringVar(&critiqueOpts.persona, "persona", "", "reviewer persona (see personas) or free text")
	flags.StringArrayVarP(&critiqueOpts.context, "context", "c", nil, "additional context file, repeatable")
	flags.StringVar(&critiqueOpts.profile, "profile", "", "load defaults from a saved profile")
	flags.BoolVar(&critiqueOpts.preserveIntent, "preserve-intent", false, "require justification for any removal")
	flags.IntVar(&critiqueOpts.timeout, "timeout", int(debate.DefaultTimeout/time.Second), "per-model timeout in seconds")
	flags.BoolVar(&critiqueOpts.showCost, "show-cost", false, "also print the cost summary to stderr in JSON mode")
	flags.StringVar(&critiqueOpts.notify, "notify", "", "send a round summary to a channel (telegram)")
	flags.StringVar(&critiqueOpts.metricsFile, "metrics-file", "", "write prometheus metrics for the round to this file")
	flags.BoolVar(&critiqueOpts.noProgress, "no-progress", false, "disable the live progress view")
}

// resolveCritiqueOptions layers explicit flags over the profile over config defaults.
func resolveCritiqueOptions(opts *critiqueOptions, changed func(string) bool, cfg *config.Config) error {
	var loaded profile.Profile
	if name := strings.TrimSpace(opts.profile); name != "" {
		p, err := loadProfile(cfg, name)
		if err != nil {
			return err
		}
		loaded = p
	}

	if !changed("models") {
		switch {
		case len(loaded.Models) > 0:
			opts.models = loaded.Models.String()
		case len(cfg.Debate.Models) > 0:
			opts.models = strings.Join(cfg.Debate.Models, ",")
		}
	}
	if !changed("doc-type") {
		opts.docType = firstNonEmpty(loaded.DocType, cfg.Debate.DocType, opts.docType)
	}
	if !changed("focus") && loaded.Focus != "" {
		opts.focus = loaded.Focus
	}
	if !changed("persona") && loaded.Persona != "" {
		opts.persona = loaded.Persona
	}
	if !changed("context") && len(loaded.Context) > 0 {
		opts.context = append([]string(nil), loaded.Context...)
	}
	if !changed("preserve-intent") && loaded.PreserveIntent {
		opts.preserveIntent = true
	}
	if !changed("timeout") && cfg.Debate.TimeoutSeconds > 0 {
		opts.timeout = cfg.Debate.TimeoutSeconds
	}

	opts.docType = strings.ToLower(strings.TrimSpace(opts.docType))
	if !prompts.ValidDocType(opts.docType) {
		return configError(fmt.Errorf("invalid doc type %q: must be prd or tech", opts.docType))
	}
	if opts.timeout <= 0 {
		return configError(fmt.Errorf("timeout must be positive, got %d", opts.timeout))
	}

	return nil
}

func loadProfile(cfg *config.Config, name string) (profile.Profile, error) {
	store, err := profile.NewStore(cfg.Profiles.Dir)
	if err != nil {
		return profile.Profile{}, configError(err)
	}

	p, err := store.Load(name)
	if err != nil {
		if errors.Is(err, profile.ErrNotFound) {
			return profile.Profile{}, configError(fmt.Errorf("Profile '%s' not found at %s", name, store.Dir()))
		}
		return profile.Profile{}, configError(err)
	}
	return p, nil
}

func runCritique(ctx context.Context, env *environment, opts critiqueOptions) error {
	models := config.ParseCSV(opts.models)
	if len(models) == 0 {
		return inputError(debate.ErrNoModels)
	}

	spec, err := readSpec(env.stdin)
	if err != nil {
		return err
	}

	contextText, err := prompts.LoadContextFiles(opts.context)
	if err != nil {
		return inputError(err)
	}

	table, err := loadPricing(env.cfg)
	if err != nil {
		return err
	}

	notifiers, err := enabledNotifiers(env.cfg, opts.notify, env.log)
	if err != nil {
		return err
	}

	tracker := cost.NewTracker()
	events := bus.New()
	defer events.Close()

	caller := debate.NewCaller(env.newClient(env.cfg), table, tracker, env.log)
	dispatcher := debate.NewDispatcher(caller, debate.WithEventBus(events), debate.WithLogger(env.log))

	fmt.Fprintf(env.stderr, "Calling %d model(s) (%s)%s: %s...\n", len(models), critiqueMode(opts.press), critiqueInfo(opts), strings.Join(models, ", "))

	live := env.stderrTTY && !opts.jsonOut && !opts.noProgress
	stopObserver := observeDispatch(ctx, env, events, models, live)

	results, err := dispatcher.Run(ctx, models, debate.Params{
		Spec:           spec,
		Round:          opts.round,
		DocType:        opts.docType,
		Press:          opts.press,
		Focus:          opts.focus,
		Persona:        opts.persona,
		Context:        contextText,
		PreserveIntent: opts.preserveIntent,
		Timeout:        time.Duration(opts.timeout) * time.Second,
	})
	stopObserver()
	if err != nil {
		return inputError(err)
	}

	for _, result := range results {
		if result.Failed() {
			fmt.Fprintf(env.stderr, "Warning: %s returned error: %s\n", result.Model, result.Error)
		}
	}

	summary := tracker.Summary()
	doc := report.NewDocument(report.Round{
		Number:         opts.round,
		DocType:        opts.docType,
		Models:         models,
		Focus:          opts.focus,
		Persona:        opts.persona,
		PreserveIntent: opts.preserveIntent,
	}, results, summary)

	if opts.jsonOut {
		if err := report.WriteJSON(env.stdout, doc); err != nil {
			return inputError(err)
		}
		if opts.showCost {
			fmt.Fprint(env.stderr, summary.Format())
		}
	} else if err := report.WriteText(env.stdout, doc, report.TextOptions{Styled: env.stdoutTTY}); err != nil {
		return inputError(err)
	}

	if path := firstNonEmpty(opts.metricsFile, env.cfg.Metrics.Textfile); path != "" {
		recorder := metrics.NewRecorder()
		recorder.ObserveResults(results)
		if err := recorder.WriteTextfile(path); err != nil {
			fmt.Fprintf(env.stderr, "Warning: %v\n", err)
		}
	}

	if len(notifiers) > 0 {
		message := report.Summary(doc)
		for _, notifier := range notifiers {
			if err := notifier.Notify(ctx, message); err != nil {
				fmt.Fprintf(env.stderr, "Warning: %s notification failed: %v\n", notifier.Name(), err)
			}
		}
	}

	return nil
}

// observeDispatch renders or logs dispatch events and returns a function
// that waits for the observer to drain.
func observeDispatch(ctx context.Context, env *environment, events *bus.EventBus, models []string, live bool) func() {
	ch, unsubscribe := events.SubscribeEvents(ctx, 2*len(models)+8)
	done := make(chan struct{})

	go func() {
		defer close(done)
		if !live {
			debate.LogEvents(ch, env.log)
			return
		}
		if err := progress.Run(ctx, ch, models, env.stderr); err != nil {
			env.log.Warn("progress view failed", "error", err)
		}
	}()

	return func() {
		unsubscribe()
		<-done
	}
}

func critiqueMode(press bool) string {
	if press {
		return "pressing for confirmation"
	}
	return "critiquing"
}

func critiqueInfo(opts critiqueOptions) string {
	var b strings.Builder
	if opts.focus != "" {
		fmt.Fprintf(&b, " (focus: %s)", opts.focus)
	}
	if opts.persona != "" {
		fmt.Fprintf(&b, " (persona: %s)", opts.persona)
	}
	if opts.preserveIntent {
		b.WriteString(" (preserve-intent)")
	}
	return b.String()
}
