package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/phonebridge/internal/engine"
	"github.com/roach88/phonebridge/internal/radio"
)

// CallOptions holds flags for the call command.
type CallOptions struct {
	*RootOptions
	Args     string
	Instance string
	Tag      string
}

// Outcomes reported in CallResult.Outcome.
const (
	OutcomeValue   = "value"
	OutcomeFailure = "failure"
	OutcomeUnknown = "unknown"
)

// CallResult is the definitive result of one bridge call.
type CallResult struct {
	Opcode   string `json:"opcode"`
	Instance string `json:"instance"`
	Outcome  string `json:"outcome"`
	Value    any    `json:"value,omitempty"`
	Code     string `json:"code,omitempty"`
}

func (r CallResult) String() string {
	switch r.Outcome {
	case OutcomeFailure:
		return fmt.Sprintf("%s %s: failure %s", r.Opcode, r.Instance, r.Code)
	case OutcomeUnknown:
		return fmt.Sprintf("%s %s: unknown", r.Opcode, r.Instance)
	}
	b, err := json.Marshal(r.Value)
	if err != nil {
		return fmt.Sprintf("%s %s: %v", r.Opcode, r.Instance, r.Value)
	}
	return fmt.Sprintf("%s %s: %s", r.Opcode, r.Instance, b)
}

// NewCallCommand creates the call command.
func NewCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <OPCODE>",
		Short: "Run one command through the bridge",
		Long: `Run one command on the radio worker and print its shaped result.

Arguments are a YAML or JSON object matching the opcode's payload; run
"phonebridge opcodes" to list them. The wait is bounded by --timeout; when
it elapses the result is indeterminate and the command exits 1, while the
operation itself keeps running.

Example:
  phonebridge call OPEN_CHANNEL --script modem.yaml --args '{aid: A000000063504B43532D3135}'
  phonebridge call GET_FORBIDDEN_PLMNS --instance phone1 --timeout 2s --tag com.example.settings`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Args, "args", "", "command arguments (YAML or JSON object)")
	cmd.Flags().StringVar(&opts.Instance, "instance", "", "target instance (default: configured default instance)")
	cmd.Flags().StringVar(&opts.Tag, "tag", "", "attribution tag recorded with diagnostics")

	return cmd
}

func runCall(opts *CallOptions, name string, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	setupLogging(cfg, opts.RootOptions, cmd.ErrOrStderr())

	op, err := radio.ParseOpcode(name)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid opcode", err)
	}
	payload, err := parseArgs(op, opts.Args)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid arguments", err)
	}

	sess, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	inst := radio.Instance(opts.Instance)
	var callOpts []engine.CallOption
	if opts.Tag != "" {
		callOpts = append(callOpts, engine.WithTag(opts.Tag))
	}

	out := NewOutputFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	out.VerboseLog("calling %s on %s (timeout %s)", op, inst.Resolve(sess.worker.DefaultInstance()), cfg.Worker.DefaultTimeout)

	v, err := sess.worker.CallTimeout(ctx, op, inst, payload, cfg.Worker.DefaultTimeout, callOpts...)
	if err != nil {
		return reportCallError(out, op, err)
	}

	res := newCallResult(op, inst.Resolve(sess.worker.DefaultInstance()), v)
	if err := out.Success(res); err != nil {
		return err
	}
	if res.Outcome == OutcomeFailure {
		return NewExitError(ExitFailure, fmt.Sprintf("%s failed: %s", op, res.Code))
	}
	return nil
}

// parseArgs decodes a YAML or JSON object into the payload op expects.
// Unknown keys are rejected; empty text decodes to the zero payload.
func parseArgs(op radio.Opcode, text string) (radio.Payload, error) {
	p := radio.NewPayload(op)
	if text == "" {
		return p, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader([]byte(text)))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s args: %w", op, err)
	}
	return p, nil
}

func newCallResult(op radio.Opcode, inst radio.Instance, v any) CallResult {
	res := CallResult{Opcode: op.String(), Instance: string(inst)}
	switch r := v.(type) {
	case radio.Failure:
		res.Outcome = OutcomeFailure
		res.Code = string(r.Code)
	case radio.Unknown:
		res.Outcome = OutcomeUnknown
	default:
		res.Outcome = OutcomeValue
		res.Value = v
	}
	return res
}

// reportCallError maps a call that produced no definitive result to an
// exit error, writing a JSON error response first when requested.
func reportCallError(out *OutputFormatter, op radio.Opcode, err error) error {
	code, exit := CodeCallFailed, ExitCommandError
	if engine.IsIndeterminate(err) || errors.Is(err, context.Canceled) {
		code, exit = CodeIndeterminate, ExitFailure
	}
	if out.Format == "json" {
		if werr := out.Error(code, err.Error(), map[string]string{"opcode": op.String()}); werr != nil {
			return werr
		}
	}
	return WrapExitError(exit, op.String(), err)
}
