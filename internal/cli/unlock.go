package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/phonebridge/internal/simauth"
)

// UnlockOptions holds flags for the unlock command.
type UnlockOptions struct {
	*RootOptions
	PIN    string
	PUK    string
	NewPIN string
}

// UnlockReport is the unlock command's output.
type UnlockReport struct {
	Credential string `json:"credential"` // "pin" or "puk"
	simauth.Result
}

func (r UnlockReport) String() string {
	return fmt.Sprintf("%s: %s (attempts remaining: %d)", r.Credential, r.Kind, r.AttemptsRemaining)
}

// NewUnlockCommand creates the unlock command.
func NewUnlockCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UnlockOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "unlock",
		Short: "Supply a PIN or PUK to the simulated SIM",
		Long: `Supply a PIN, or a PUK with a replacement PIN, to the SIM application
described by the card section of the modem script.

The caller blocks until the card answers. If it has not answered after the
watchdog delay, an unlock_watchdog diagnostic is recorded and the wait
continues. Anything but SUCCESS exits 1.

Examples:
  phonebridge unlock --script modem.yaml --pin 1234
  phonebridge unlock --script modem.yaml --puk 12345678 --new-pin 4321`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnlock(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.PIN, "pin", "", "PIN to supply")
	cmd.Flags().StringVar(&opts.PUK, "puk", "", "PUK to supply (requires --new-pin)")
	cmd.Flags().StringVar(&opts.NewPIN, "new-pin", "", "PIN to install after a PUK unlock")
	cmd.MarkFlagsMutuallyExclusive("pin", "puk")
	cmd.MarkFlagsRequiredTogether("puk", "new-pin")
	cmd.MarkFlagsOneRequired("pin", "puk")

	return cmd
}

func runUnlock(opts *UnlockOptions, cmd *cobra.Command) error {
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

	card, err := sess.card()
	if err != nil {
		return err
	}
	u := sess.unlocker()

	out := NewOutputFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	var report UnlockReport
	if opts.PUK != "" {
		out.VerboseLog("supplying PUK (watchdog %s)", cfg.Unlock.WatchdogDelay)
		report = UnlockReport{Credential: "puk", Result: u.UnlockPUK(card, opts.PUK, opts.NewPIN)}
	} else {
		out.VerboseLog("supplying PIN (watchdog %s)", cfg.Unlock.WatchdogDelay)
		report = UnlockReport{Credential: "pin", Result: u.UnlockPIN(card, opts.PIN)}
	}

	if report.Kind != simauth.KindSuccess {
		if out.Format == "json" {
			if err := out.Error(CodeUnlockFailed, report.String(), report); err != nil {
				return err
			}
		}
		return NewExitError(ExitFailure, report.String())
	}
	return out.Success(report)
}
