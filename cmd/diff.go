package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"specdebate/pkg/diff"
)

var (
	diffPrevious string
	diffCurrent  string
)

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Show a unified diff between two spec versions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args
		return runDiff(newEnvironment(cmd), diffPrevious, diffCurrent)
	},
}

func init() {
	rootCmd.AddCommand(diffCmd)

	diffCmd.Flags().StringVar(&diffPrevious, "previous", "", "path to the previous spec version")
	diffCmd.Flags().StringVar(&diffCurrent, "current", "", "path to the current spec version")
}

func runDiff(env *environment, previousPath, currentPath string) error {
	if previousPath == "" || currentPath == "" {
		return inputError(errors.New("--previous and --current required for diff"))
	}

	previous, err := os.ReadFile(previousPath)
	if err != nil {
		return inputError(err)
	}
	current, err := os.ReadFile(currentPath)
	if err != nil {
		return inputError(err)
	}

	out := diff.Generate(string(previous), string(current))
	if out == "" {
		fmt.Fprintln(env.stdout, "No differences found.")
		return nil
	}

	fmt.Fprint(env.stdout, out)
	return nil
}
