package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/phonebridge/internal/engine"
	"github.com/roach88/phonebridge/internal/radio"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Tag string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the bridge and serve commands from stdin",
		Long: `Start the radio worker and run one command per input line until EOF
or interrupt.

Each line is an opcode, optionally suffixed with @instance, followed by its
arguments as a YAML or JSON object. Blank lines and lines starting with #
are skipped. A failed line is reported and the bridge keeps serving.

Example:
  printf 'OPEN_CHANNEL {aid: A000000063504B43532D3135}\nGET_OPEN_CHANNELS\n' | phonebridge run --script modem.yaml
  phonebridge run --journal diag.db --format json < commands.txt`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBridge(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Tag, "tag", "", "attribution tag for every command")

	return cmd
}

// commandLine is one parsed input line.
type commandLine struct {
	op       radio.Opcode
	instance radio.Instance
	payload  radio.Payload
}

func runBridge(opts *RunOptions, cmd *cobra.Command) error {
	cfg, err := loadConfig(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	setupLogging(cfg, opts.RootOptions, cmd.ErrOrStderr())

	sess, err := openSession(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := NewOutputFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	lines, scanErr := readLines(ctx, cmd.InOrStdin())

	var callOpts []engine.CallOption
	if opts.Tag != "" {
		callOpts = append(callOpts, engine.WithTag(opts.Tag))
	}

	served, failed := 0, 0
	for {
		select {
		case <-ctx.Done():
			slog.Info("received shutdown signal", "served", served)
			return nil

		case line, ok := <-lines:
			if !ok {
				out.VerboseLog("served %d command(s), %d without a result", served, failed)
				if err := <-scanErr; err != nil {
					return WrapExitError(ExitCommandError, "failed to read input", err)
				}
				return nil
			}

			cl, skip, err := parseCommandLine(line)
			if skip {
				continue
			}
			served++
			if err != nil {
				failed++
				if werr := out.Error(CodeInvalidArgument, err.Error(), nil); werr != nil {
					return werr
				}
				continue
			}

			v, err := sess.worker.CallTimeout(ctx, cl.op, cl.instance, cl.payload, cfg.Worker.DefaultTimeout, callOpts...)
			if err != nil {
				failed++
				code := CodeCallFailed
				if engine.IsIndeterminate(err) {
					code = CodeIndeterminate
				}
				if werr := out.Error(code, fmt.Sprintf("%s: %v", cl.op, err), nil); werr != nil {
					return werr
				}
				continue
			}

			res := newCallResult(cl.op, cl.instance.Resolve(sess.worker.DefaultInstance()), v)
			if err := out.Success(res); err != nil {
				return err
			}
		}
	}
}

// readLines scans r on its own goroutine so the serve loop can still react
// to ctx while stdin blocks.
func readLines(ctx context.Context, r io.Reader) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(r)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				errc <- nil
				return
			}
		}
		errc <- sc.Err()
	}()
	return lines, errc
}

// parseCommandLine parses "OPCODE[@INSTANCE] [ARGS]". skip is true for
// blank lines and comments.
func parseCommandLine(line string) (cl commandLine, skip bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return cl, true, nil
	}

	head, args, _ := strings.Cut(line, " ")
	name, inst, _ := strings.Cut(head, "@")

	cl.op, err = radio.ParseOpcode(name)
	if err != nil {
		return cl, false, err
	}
	cl.instance = radio.Instance(inst)
	cl.payload, err = parseArgs(cl.op, strings.TrimSpace(args))
	return cl, false, err
}
