package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/inferloop/tabanon/cmd/cli/commands"
	"github.com/inferloop/tabanon/pkg/constants"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   constants.AppName,
		Short: constants.AppDescription,
		Long: `Anonymize tabular microdata by full-domain generalization and record
suppression. A job file declares the attribute roles, the generalization
hierarchies, the privacy models and the outputs.`,
		Version:       constants.AppVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "job configuration file (YAML)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "debug logging")
	rootCmd.MarkPersistentFlagRequired("config")

	rootCmd.AddCommand(commands.NewAnonymizeCmd())
	rootCmd.AddCommand(commands.NewRiskCmd())
	rootCmd.AddCommand(commands.NewLatticeCmd())

	return rootCmd
}
