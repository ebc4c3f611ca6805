package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aretw0/rewind"
	"github.com/aretw0/rewind/internal/logging"
	"github.com/aretw0/rewind/internal/presentation/tui"
	"github.com/aretw0/rewind/pkg/bprog"
	"github.com/aretw0/rewind/pkg/domain"
)

// RunOptions contains all the configuration for the debug command.
type RunOptions struct {
	ProgramPath           string
	Breakpoints           []int
	SkipBreakpoints       bool
	SkipSyncPoints        bool
	WaitForExternalEvents bool
	Light                 bool
	// AutoStart runs start before reading the first command.
	AutoStart bool
	Quiet     bool
	Logger    *slog.Logger

	Input  io.Reader
	Output io.Writer
}

func (opts RunOptions) config() rewind.RunConfig {
	cfg := rewind.RunConfig{
		Breakpoints:           make(map[int]bool, len(opts.Breakpoints)),
		SkipBreakpoints:       opts.SkipBreakpoints,
		SkipSyncPoints:        opts.SkipSyncPoints,
		WaitForExternalEvents: opts.WaitForExternalEvents,
	}
	for _, line := range opts.Breakpoints {
		cfg.Breakpoints[line] = true
	}
	return cfg
}

// Execute loads a program and debugs it interactively until the user quits.
func Execute(ctx context.Context, opts RunOptions) error {
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	prog, err := bprog.LoadFile(opts.ProgramPath, bprog.WithLogger(opts.Logger))
	if err != nil {
		return fmt.Errorf("error loading program: %w", err)
	}

	level := domain.LevelNormal
	if opts.Light {
		level = domain.LevelLight
	}
	d := rewind.New(prog,
		rewind.WithLogger(opts.Logger),
		rewind.WithLevel(level),
	)

	if !opts.Quiet {
		tui.PrintBanner(opts.Output, rewind.Version)
	}

	sigCtx := NewSignalContext(ctx)
	defer sigCtx.Cancel()

	repl, detach := NewREPL(d, opts.config(), tui.NewRenderer(), opts.Output)
	defer detach()
	printSystemMessage(repl.out, "Debugging '%s' (session %s). Type help for commands.", prog.Name(), d.ID())

	if opts.AutoStart {
		if _, err := repl.Exec(sigCtx, "start"); err != nil {
			fmt.Fprintln(repl.out, err)
		}
	}

	runErr := repl.Run(sigCtx, opts.Input)

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	d.Stop(stopCtx)

	if errors.Is(runErr, context.Canceled) {
		if sig := sigCtx.Signal(); sig != nil {
			printSystemMessage(repl.out, "Interrupted (%v).", sig)
		}
		return nil
	}
	return runErr
}
