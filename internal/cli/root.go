package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/phonebridge/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Config  string // config file; overrides PHONEBRIDGE_CONFIG
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the phonebridge CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "phonebridge",
		Short: "phonebridge - telephony command bridge",
		Long: `Drive the telephony command bridge against a simulated modem.

Every command runs on a single confined radio worker. Callers block with a
bounded or unbounded wait; anomalies (late, duplicate or orphan completions,
elapsed waits, stuck SIM unlocks) are logged and optionally journaled.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "config file (default $"+config.EnvVar+")")
	config.RegisterFlags(cmd.PersistentFlags())

	cmd.AddCommand(NewCallCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))
	cmd.AddCommand(NewUnlockCommand(opts))
	cmd.AddCommand(NewDiagCommand(opts))
	cmd.AddCommand(NewOpcodesCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
