package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"specdebate/pkg/config"
	"specdebate/pkg/profile"
	"specdebate/pkg/prompts"
)

var saveProfileOpts critiqueOptions

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List saved profiles",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args
		env := newEnvironment(cmd)
		return listProfiles(env.stdout, env.cfg)
	},
}

var saveProfileCmd = &cobra.Command{
	Use:   "save-profile NAME",
	Short: "Save the given flags as a named profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env := newEnvironment(cmd)
		name := ""
		if len(args) > 0 {
			name = args[0]
		}
		return saveProfile(env, name, saveProfileOpts)
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	rootCmd.AddCommand(saveProfileCmd)

	flags := saveProfileCmd.Flags()
	flags.StringVarP(&saveProfileOpts.models, "models", "m", defaultModels, "comma-separated list of models")
	flags.StringVarP(&saveProfileOpts.docType, "doc-type", "d", "tech", "document type: prd or tech")
	flags.StringVarP(&saveProfileOpts.focus, "focus", "f", "", "focus area")
	flags.StringVar(&saveProfileOpts.persona, "persona", "", "reviewer persona")
	flags.StringArrayVarP(&saveProfileOpts.context, "context", "c", nil, "additional context file, repeatable")
	flags.BoolVar(&saveProfileOpts.preserveIntent, "preserve-intent", false, "require justification for any removal")
}

func saveProfile(env *environment, name string, opts critiqueOptions) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return inputError(errors.New("Profile name required"))
	}

	docType := strings.ToLower(strings.TrimSpace(opts.docType))
	if docType != "" && !prompts.ValidDocType(docType) {
		return configError(fmt.Errorf("invalid doc type %q: must be prd or tech", opts.docType))
	}

	store, err := profile.NewStore(env.cfg.Profiles.Dir)
	if err != nil {
		return configError(err)
	}

	path, err := store.Save(profile.Profile{
		Name:           name,
		Models:         config.ParseCSV(opts.models),
		DocType:        docType,
		Focus:          opts.focus,
		Persona:        opts.persona,
		Context:        opts.context,
		PreserveIntent: opts.preserveIntent,
	})
	if err != nil {
		if errors.Is(err, profile.ErrInvalidName) {
			return configError(err)
		}
		return inputError(err)
	}

	fmt.Fprintf(env.stdout, "Profile saved to %s\n", path)
	return nil
}

func listProfiles(w io.Writer, cfg *config.Config) error {
	store, err := profile.NewStore(cfg.Profiles.Dir)
	if err != nil {
		return configError(err)
	}

	entries, err := store.List()
	if err != nil {
		return inputError(err)
	}

	fmt.Fprintln(w, "Saved Profiles:")
	fmt.Fprintln(w)

	if len(entries) == 0 {
		fmt.Fprintln(w, "  No profiles found.")
		fmt.Fprintf(w, "\n  Profiles are stored in: %s\n", store.Dir())
		return nil
	}

	for _, entry := range entries {
		p := entry.Profile
		fmt.Fprintf(w, "  %s\n", p.Name)
		if entry.Err != nil {
			fmt.Fprintf(w, "    [error reading profile: %v]\n\n", entry.Err)
			continue
		}
		fmt.Fprintf(w, "    models: %s\n", orDefault(p.Models.String(), "not set"))
		fmt.Fprintf(w, "    focus: %s\n", orDefault(p.Focus, "none"))
		fmt.Fprintf(w, "    persona: %s\n", orDefault(p.Persona, "none"))
		fmt.Fprintf(w, "    preserve-intent: %s\n", yesNo(p.PreserveIntent))
		fmt.Fprintln(w)
	}
	return nil
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
