package cmd

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"specdebate/pkg/config"
	"specdebate/pkg/prompts"
	"specdebate/pkg/provider"
)

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List supported providers and whether their credentials are set",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_ = args
		env := newEnvironment(cmd)
		printProviders(env.stdout, env.cfg)
	},
}

var focusAreasCmd = &cobra.Command{
	Use:   "focus-areas",
	Short: "List the curated focus areas for --focus",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_ = args
		printFocusAreas(cmd.OutOrStdout())
	},
}

var personasCmd = &cobra.Command{
	Use:   "personas",
	Short: "List the curated reviewer personas for --persona",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		_ = args
		printPersonas(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(focusAreasCmd)
	rootCmd.AddCommand(personasCmd)
}

func printProviders(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "Supported providers:")
	fmt.Fprintln(w)

	for _, family := range provider.Families() {
		label, status := family.APIKeyEnv, "[not set]"
		if family.Kind == provider.KindOpenCode {
			label = "base_url"
			if strings.TrimSpace(cfg.Providers.OpenCode.BaseURL) != "" {
				status = "[set]"
			}
		} else if family.Configured() {
			status = "[set]"
		}

		fmt.Fprintf(w, "  %-12s %-24s %s\n", family.Name, label, status)
		fmt.Fprintf(w, "             Example models: %s\n", family.Example)
		fmt.Fprintln(w)
	}
}

func printFocusAreas(w io.Writer) {
	fmt.Fprintln(w, "Available focus areas (--focus):")
	fmt.Fprintln(w)
	for _, area := range prompts.FocusAreas() {
		fmt.Fprintf(w, "  %-15s %s\n", area.Name, clip(area.Description, 60))
	}
	fmt.Fprintln(w)
}

func printPersonas(w io.Writer) {
	fmt.Fprintln(w, "Available personas (--persona):")
	fmt.Fprintln(w)
	for _, persona := range prompts.Personas() {
		fmt.Fprintf(w, "  %s\n", persona.Name)
		fmt.Fprintf(w, "    %s...\n", clip(persona.Description, 80))
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, "You can also use a custom persona: --persona \"a fintech compliance officer\"")
}

func clip(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
