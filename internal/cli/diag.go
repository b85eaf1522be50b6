package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/phonebridge/internal/diag"
	"github.com/roach88/phonebridge/internal/store"
)

// DiagOptions holds flags for the diag command.
type DiagOptions struct {
	*RootOptions
	Kind     string
	Opcode   string
	Instance string
	Limit    int
}

// DiagReport is the diag command's output.
type DiagReport struct {
	Journal string            `json:"journal"`
	Entries []store.Entry     `json:"entries"`
	Counts  map[diag.Kind]int `json:"counts"`
}

// NewDiagCommand creates the diag command.
func NewDiagCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DiagOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "diag",
		Short: "Show journaled bridge diagnostics",
		Long: `Show diagnostics recorded in the SQLite journal.

The journal is the one named by --journal or diagnostics.journal in the
config file. Entries are listed in the order they were recorded, followed by
a count per kind over the whole journal.

Examples:
  phonebridge diag --journal ./diag.db
  phonebridge diag --journal ./diag.db --kind late_completion --opcode GET_FORBIDDEN_PLMNS
  phonebridge diag --journal ./diag.db --limit 20 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiag(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", "", "only this diagnostic kind")
	cmd.Flags().StringVar(&opts.Opcode, "opcode", "", "only this opcode")
	cmd.Flags().StringVar(&opts.Instance, "instance", "", "only this instance")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum entries to list (0 = all)")

	return cmd
}

func runDiag(opts *DiagOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	setupLogging(cfg, opts.RootOptions, cmd.ErrOrStderr())

	path := cfg.Diagnostics.Journal
	if path == "" {
		return NewExitError(ExitCommandError, "no journal configured (set --journal or diagnostics.journal)")
	}
	// Open creates missing files; a typo should not yield an empty journal.
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("journal not found: %s", path))
	}
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, "--limit must not be negative")
	}

	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	ctx := cmd.Context()

	entries, err := st.List(ctx, store.Filter{
		Kind:     diag.Kind(opts.Kind),
		Opcode:   opts.Opcode,
		Instance: opts.Instance,
		Limit:    opts.Limit,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list diagnostics", err)
	}
	counts, err := st.CountByKind(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count diagnostics", err)
	}

	report := DiagReport{Journal: path, Entries: entries, Counts: counts}
	if opts.Format == "json" {
		return outputDiagJSON(cmd, report)
	}
	outputDiagText(cmd.OutOrStdout(), report, opts.Verbose)
	return nil
}

// outputDiagJSON outputs the report as JSON.
func outputDiagJSON(cmd *cobra.Command, report DiagReport) error {
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(CLIResponse{Status: "ok", Data: report})
}

// outputDiagText outputs the report as text.
func outputDiagText(w io.Writer, report DiagReport, verbose bool) {
	fmt.Fprintf(w, "Diagnostics in %s\n", report.Journal)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Entries ===")
	if len(report.Entries) == 0 {
		fmt.Fprintln(w, "  (no entries)")
	}
	for _, e := range report.Entries {
		formatEntry(w, e, verbose)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Counts ===")
	if len(report.Counts) == 0 {
		fmt.Fprintln(w, "  (none)")
	}
	kinds := make([]diag.Kind, 0, len(report.Counts))
	for k := range report.Counts {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "  %-22s %d\n", k, report.Counts[k])
	}
}

// formatEntry formats a single journal entry for text output.
func formatEntry(w io.Writer, e store.Entry, verbose bool) {
	fmt.Fprintf(w, "  [%d] %s %s", e.ID, e.At.UTC().Format(time.RFC3339Nano), e.Kind)
	if e.Opcode != "" {
		fmt.Fprintf(w, " %s", e.Opcode)
	}
	if e.Instance != "" {
		fmt.Fprintf(w, " instance=%s", e.Instance)
	}
	if e.Tag != "" {
		fmt.Fprintf(w, " tag=%s", e.Tag)
	}
	if e.Detail != "" {
		fmt.Fprintf(w, " detail=%s", e.Detail)
	}
	fmt.Fprintln(w)
	if verbose {
		fmt.Fprintf(w, "       request=%d trace=%s\n", e.RequestID, e.TraceID)
	}
}
