package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/phonebridge/internal/config"
	"github.com/roach88/phonebridge/internal/diag"
	"github.com/roach88/phonebridge/internal/engine"
	"github.com/roach88/phonebridge/internal/modemsim"
	"github.com/roach88/phonebridge/internal/radio"
	"github.com/roach88/phonebridge/internal/simauth"
	"github.com/roach88/phonebridge/internal/store"
)

// loadConfig resolves the configuration for cmd: the --config file (or
// PHONEBRIDGE_CONFIG), then any flags set explicitly on the command line.
func loadConfig(opts *RootOptions, cmd *cobra.Command) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.Config != "" {
		cfg, err = config.LoadFile(opts.Config)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if err := cfg.ApplyFlags(cmd.Flags()); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid flags", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	return cfg, nil
}

// setupLogging installs the process logger. --verbose forces debug level.
func setupLogging(cfg *config.Config, opts *RootOptions, w io.Writer) {
	level, _ := cfg.SlogLevel()
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}
	slog.SetDefault(slog.New(handler))
}

// session is one running bridge: a worker confined to its goroutine, the
// simulated modem behind it, and the diagnostic sinks.
type session struct {
	cfg    *config.Config
	script *modemsim.Script
	sim    *modemsim.Sim
	worker *engine.Worker
	sink   diag.Sink

	db      *store.Store
	journal *store.Journal
	cancel  context.CancelFunc
}

// openSession builds the modem from the configured script, opens the
// journal when one is configured, and starts the worker.
func openSession(cfg *config.Config) (*session, error) {
	s := &session{cfg: cfg}

	if cfg.Modem.Script != "" {
		slog.Debug("loading modem script", "path", cfg.Modem.Script)
		script, err := modemsim.LoadScript(cfg.Modem.Script)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to load modem script", err)
		}
		s.script = script
	}

	sim, err := modemsim.New(s.script)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build modem", err)
	}
	s.sim = sim

	sinks := []diag.Sink{diag.LogSink{}}
	if cfg.Diagnostics.Journal != "" {
		slog.Debug("opening diagnostics journal", "path", cfg.Diagnostics.Journal)
		db, err := store.Open(cfg.Diagnostics.Journal)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		s.db = db
		s.journal = store.NewJournal(db, cfg.Diagnostics.Buffer)
		sinks = append(sinks, s.journal)
	}
	s.sink = diag.Fanout(sinks...)

	s.worker = engine.New(sim,
		engine.WithSink(s.sink),
		engine.WithDefaultInstance(radio.Instance(cfg.Worker.DefaultInstance)),
		engine.WithUnboundedCeiling(cfg.Worker.UnboundedCeiling),
		engine.WithTagLimit(cfg.Worker.TagLimit),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		if err := s.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("worker stopped", "error", err)
		}
	}()

	slog.Debug("bridge started",
		"default_instance", cfg.Worker.DefaultInstance,
		"journal", cfg.Diagnostics.Journal,
		"script", cfg.Modem.Script,
	)
	return s, nil
}

// unlocker returns an Unlocker reporting to the session sinks.
func (s *session) unlocker() *simauth.Unlocker {
	return simauth.New(
		simauth.WithSink(s.sink),
		simauth.WithWatchdogDelay(s.cfg.Unlock.WatchdogDelay),
	)
}

// card returns the simulated SIM application from the script's card section.
func (s *session) card() (simauth.CardApplication, error) {
	if s.script == nil || s.script.Card == nil {
		return nil, NewExitError(ExitCommandError, "modem script has no card section")
	}
	return modemsim.NewCard(*s.script.Card, nil), nil
}

// Close stops the worker and flushes the journal.
func (s *session) Close() error {
	s.cancel()
	<-s.worker.Done()

	if s.journal != nil {
		s.journal.Close()
		if n := s.journal.Dropped(); n > 0 {
			slog.Warn("diagnostics dropped", "count", n)
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			return fmt.Errorf("close journal: %w", err)
		}
	}
	return nil
}
