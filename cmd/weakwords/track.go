package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/weakwords/internal/config"
	"github.com/verte-zerg/weakwords/internal/feed"
	"github.com/verte-zerg/weakwords/internal/session"
	"github.com/verte-zerg/weakwords/internal/settings"
	"github.com/verte-zerg/weakwords/internal/store"
	"github.com/verte-zerg/weakwords/internal/tracker"
	"github.com/verte-zerg/weakwords/internal/watch"
)

const queueDrainTimeout = 5 * time.Second

var (
	trackFeed             string
	trackRestartThreshold int
	trackAttachInterval   string
	trackResultAttempts   int
	trackCustomMode       string
)

func newTrackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "track",
		Short: "Track a practice page feed",
		Long: "Reads page and key frames as JSON lines and records slow and " +
			"mistyped words until the feed ends or the process is interrupted.",
		Args: cobra.NoArgs,
		RunE: runTrackCmd,
	}
	cmd.Flags().StringVar(&trackFeed, "feed", "-", `feed file ("-" for stdin)`)
	cmd.Flags().IntVar(&trackRestartThreshold, "restart-threshold", session.DefaultRestartThreshold, "words a session must pass before a re-render at word 0 restarts it")
	cmd.Flags().StringVar(&trackAttachInterval, "attach-interval", watch.DefaultAttachInterval.String(), "retry interval while a page region is missing")
	cmd.Flags().IntVar(&trackResultAttempts, "result-attempts", watch.DefaultResultAttempts, "result marker attach attempts before giving up")
	cmd.Flags().StringVar(&trackCustomMode, "custom-mode", settings.DefaultCustomMode, "mode name treated as custom")
	return cmd
}

func runTrackCmd(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	tc := a.cfg.Tracker
	applyStringConfig(cmd, "feed", &trackFeed, tc.Feed)
	applyIntConfig(cmd, "restart-threshold", &trackRestartThreshold, tc.RestartThreshold)
	applyStringConfig(cmd, "attach-interval", &trackAttachInterval, tc.AttachInterval)
	applyIntConfig(cmd, "result-attempts", &trackResultAttempts, tc.ResultAttachAttempts)
	applyStringConfig(cmd, "custom-mode", &trackCustomMode, tc.CustomMode)

	interval, err := config.Duration(&trackAttachInterval, watch.DefaultAttachInterval)
	if err != nil {
		return fmt.Errorf("invalid --attach-interval: %w", err)
	}
	if trackResultAttempts < 1 {
		return fmt.Errorf("--result-attempts must be > 0")
	}

	in, closeFeed, err := openFeed(cmd, trackFeed)
	if err != nil {
		return err
	}
	defer closeFeed()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	q := store.NewQueue(a.st, a.log)
	cache := settings.New(a.st, settings.WithCustomMode(trackCustomMode), settings.WithLogger(a.log))
	if err := cache.Refresh(ctx); err != nil {
		a.log.Warn("using default settings", "err", err)
	}
	t := tracker.New(tracker.Config{
		RestartThreshold:     trackRestartThreshold,
		AttachInterval:       interval,
		ResultAttachAttempts: trackResultAttempts,
	}, tracker.QueueRecorder{Queue: q}, cache, a.log)

	a.log.Info("tracking", "feed", trackFeed, "backend", storeBackend)
	runErr := tracker.Run(ctx, t, feed.NewDecoder(in, a.log), cache)

	drainCtx, cancel := context.WithTimeout(context.Background(), queueDrainTimeout)
	defer cancel()
	if err := q.Close(drainCtx); err != nil {
		logErrf("failed to flush pending updates: %v\n", err)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("failed to track feed: %w", runErr)
	}
	return nil
}

func openFeed(cmd *cobra.Command, path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open feed: %w", err)
	}
	return f, func() {
		if cerr := f.Close(); cerr != nil {
			logErrf("failed to close feed: %v\n", cerr)
		}
	}, nil
}
