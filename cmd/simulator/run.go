package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jiri/constellation/infra"
	"github.com/jiri/constellation/internal/logging"
	"github.com/jiri/constellation/timectrl"
)

type runFlags struct {
	ticks       int
	accelerated bool
	save        bool
}

func newRunCmd(root *rootFlags) *cobra.Command {
	flags := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the tick loop",
		Long: `Run loads the scenario and the manual manifest, then advances the universe
one tick at a time until the configured number of ticks has elapsed or the
process is interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runSimulation(ctx, cmd, root, flags)
		},
	}
	cmd.Flags().IntVarP(&flags.ticks, "ticks", "n", -1, "number of ticks, 0 runs until interrupted (default from config)")
	cmd.Flags().BoolVar(&flags.accelerated, "accelerated", false, "do not pace ticks against the wall clock")
	cmd.Flags().BoolVar(&flags.save, "save-manifest", false, "write the manual connections back to the manifest on exit")
	return cmd
}

func runSimulation(ctx context.Context, cmd *cobra.Command, root *rootFlags, flags *runFlags) error {
	ctx, s, err := openSession(ctx, root, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer s.close(context.Background())

	cfg := s.cfg
	ticks := cfg.Sim.Ticks
	if flags.ticks >= 0 {
		ticks = flags.ticks
	}
	mode := timectrl.RealTime
	if cfg.Sim.Accelerated || flags.accelerated {
		mode = timectrl.Accelerated
	}

	if s.manifest != "" && cfg.Manual.Watch {
		watcher, err := infra.NewManifestWatcher(s.manifest, s.world.Manual, cfg.Manual.Debounce)
		if err != nil {
			return err
		}
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			if err := watcher.Run(watchCtx); err != nil && !errors.Is(err, context.Canceled) {
				s.log.Warn(ctx, "manifest watcher stopped", logging.Err(err))
			}
		}()
	}

	u := s.world.Universe
	tc := timectrl.NewTimeController(cfg.Sim.StartTime(), cfg.Sim.Tick, mode)
	tc.AddListener(func(simTime time.Time) {
		if _, err := u.Tick(ctx, simTime); err != nil {
			s.log.Warn(ctx, "tick completed with errors", logging.Err(err))
		}
	})

	s.log.Info(ctx, "starting simulation",
		logging.Int("ticks", ticks),
		logging.String("tick", cfg.Sim.Tick.String()),
		logging.String("mode", mode.String()),
	)
	err = tc.Run(ctx, ticks)
	s.log.Info(context.Background(), "simulation stopped",
		logging.Uint64("ticks", u.TickCount()),
		logging.Int("connections", u.Registry().Len()),
		logging.Float("energy_pooled", s.world.Energy.TotalPooled()),
	)

	if flags.save && s.manifest != "" {
		if err := s.world.Manual.SaveFile(s.manifest); err != nil {
			return err
		}
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
