package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/phonebridge/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Filter string // scenario filter (glob pattern on the file name)
	Golden string // golden trace directory; empty skips comparison
	Update bool   // regenerate golden files
	Trace  bool   // print each trace
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
	Trace  []string `json:"trace,omitempty"`
}

// ScenarioSummary holds the overall result of a scenario run.
type ScenarioSummary struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <path>...",
		Short: "Run scenario files against a simulated modem",
		Long: `Run YAML scenarios against a fresh worker and simulated modem each.

Scenarios run on a virtual clock, so their traces are reproducible. With
--golden, each trace is compared with <golden>/<name>.golden; --update
rewrites those files instead.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  phonebridge scenario ./testdata/scenarios
  phonebridge scenario ./testdata/scenarios --filter "unlock_*" --trace
  phonebridge scenario ./testdata/scenarios --golden ./internal/harness/testdata/golden
  phonebridge scenario ./testdata/scenarios --golden ./golden --update`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "golden trace directory")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files (requires --golden)")
	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print each scenario trace")

	return cmd
}

func runScenarios(opts *ScenarioOptions, paths []string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	setupLogging(cfg, opts.RootOptions, cmd.ErrOrStderr())

	if opts.Update && opts.Golden == "" {
		return NewExitError(ExitCommandError, "--update requires --golden")
	}

	var files []string
	for _, p := range paths {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return NewExitError(ExitCommandError, fmt.Sprintf("scenario path not found: %s", p))
		}
		found, err := findScenarioFiles(p, opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		files = append(files, found...)
	}

	summary := ScenarioSummary{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}
	if len(files) == 0 {
		if opts.Format == "json" {
			return outputScenarioJSON(cmd, summary)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No scenarios found.")
		return nil
	}

	for _, file := range files {
		res := runScenarioFile(file, opts, cmd.OutOrStdout())
		summary.Scenarios = append(summary.Scenarios, res)
		if res.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}

	if opts.Format == "json" {
		return outputScenarioJSON(cmd, summary)
	}
	return outputScenarioText(cmd, summary)
}

// findScenarioFiles returns path itself when it is a file, otherwise every
// .yaml/.yml file below it whose base name matches filter.
func findScenarioFiles(path string, filter string) ([]string, error) {
	var files []string

	err := filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}

		ext := filepath.Ext(p)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(p), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, p)
		return nil
	})

	return files, err
}

// runScenarioFile runs one scenario file and reports it in text mode.
func runScenarioFile(file string, opts *ScenarioOptions, w io.Writer) ScenarioResult {
	text := opts.Format != "json"
	fail := func(name string, errs ...string) ScenarioResult {
		if text {
			fmt.Fprintf(w, "✗ %s\n", name)
			for _, e := range errs {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		return ScenarioResult{Name: name, Pass: false, Errors: errs}
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return fail(filepath.Base(file), fmt.Sprintf("load error: %v", err))
	}

	result, err := harness.Run(scenario)
	if err != nil {
		return fail(scenario.Name, fmt.Sprintf("execution error: %v", err))
	}

	res := ScenarioResult{Name: scenario.Name, Pass: true}
	if opts.Trace {
		res.Trace = result.Trace
	}
	if !result.Pass {
		res = fail(scenario.Name, result.Errors...)
		if opts.Trace {
			res.Trace = result.Trace
			printTrace(w, text, result)
		}
		return res
	}

	if opts.Golden != "" {
		golden := goldenFilePath(opts.Golden, scenario.Name)
		if opts.Update {
			if err := updateGoldenFile(golden, result); err != nil {
				return fail(scenario.Name, fmt.Sprintf("golden update error: %v", err))
			}
			if text {
				fmt.Fprintf(w, "✓ %s (golden updated)\n", scenario.Name)
			}
			return res
		}

		match, err := compareWithGolden(golden, result)
		if err != nil {
			return fail(scenario.Name, fmt.Sprintf("golden comparison error: %v", err))
		}
		if !match {
			res = fail(scenario.Name, "trace does not match golden file (run with --update to regenerate)")
			if opts.Trace {
				res.Trace = result.Trace
				printTrace(w, text, result)
			}
			return res
		}
	}

	if text {
		fmt.Fprintf(w, "✓ %s\n", scenario.Name)
	}
	printTrace(w, text && opts.Trace, result)
	return res
}

func printTrace(w io.Writer, enabled bool, result *harness.Result) {
	if !enabled {
		return
	}
	for _, line := range result.Trace {
		fmt.Fprintf(w, "    %s\n", line)
	}
}

// goldenFilePath names a scenario's golden trace the way the harness tests
// do, so both share one fixture directory.
func goldenFilePath(dir, name string) string {
	return filepath.Join(dir, name+".golden")
}

// updateGoldenFile writes the current trace as the golden file.
func updateGoldenFile(path string, result *harness.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(result.TraceText()), 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// compareWithGolden compares the result trace against the golden file.
// A missing golden file is an error, not a mismatch.
func compareWithGolden(path string, result *harness.Result) (bool, error) {
	want, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read golden file: %w", err)
	}
	return bytes.Equal(want, []byte(result.TraceText())), nil
}

// outputScenarioJSON outputs the summary as JSON.
func outputScenarioJSON(cmd *cobra.Command, summary ScenarioSummary) error {
	status := "ok"
	if summary.Failed > 0 {
		status = "error"
	}

	response := CLIResponse{
		Status: status,
		Data:   summary,
	}
	if summary.Failed > 0 {
		response.Error = &CLIError{
			Code:    CodeScenarioFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", summary.Failed),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}
	return nil
}

// outputScenarioText outputs the summary as text.
func outputScenarioText(cmd *cobra.Command, summary ScenarioSummary) error {
	w := cmd.OutOrStdout()

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Scenario Summary: %d passed, %d failed, %d total\n", summary.Passed, summary.Failed, summary.Total)

	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
