package sim

import (
	"context"
	"log/slog"
	"time"

	"github.com/hearthd/hearth/internal/events"
	"github.com/hearthd/hearth/internal/home"
)

// AnalyzeFunc consumes snapshots. The conversation manager's analysis
// is wrapped into one of these at wiring time.
type AnalyzeFunc func(ctx context.Context, snap home.Snapshot) error

// Ticker samples the environment on a fixed cadence and hands each
// snapshot to the analyzer. The agent core never learns about the
// cadence; it just sees snapshots arrive.
type Ticker struct {
	env      *Environment
	analyzer AnalyzeFunc
	interval time.Duration
	bus      *events.Bus
	logger   *slog.Logger
}

// NewTicker creates a ticker. A non-positive interval falls back to
// 30 seconds.
func NewTicker(env *Environment, analyzer AnalyzeFunc, interval time.Duration, bus *events.Bus, logger *slog.Logger) *Ticker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Ticker{
		env:      env,
		analyzer: analyzer,
		interval: interval,
		bus:      bus,
		logger:   logger.With("component", "ticker"),
	}
}

// Run ticks until the context is cancelled. Errors in a single tick
// are logged and do not stop the loop.
func (t *Ticker) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info("environment ticker started", "interval", t.interval)
	for {
		select {
		case <-ctx.Done():
			t.logger.Info("environment ticker stopped")
			return
		case <-ticker.C:
			t.tick(ctx)
		}
	}
}

func (t *Ticker) tick(ctx context.Context) {
	if err := t.env.Advance(ctx, t.interval); err != nil {
		t.logger.Warn("advance failed", "err", err)
	}

	snap, err := t.env.Snapshot(ctx)
	if err != nil {
		t.logger.Warn("snapshot failed", "err", err)
		return
	}

	occupied := 0
	for _, o := range snap.Occupancy {
		if o {
			occupied++
		}
	}
	t.bus.Emit(events.SourceSim, events.KindTick, map[string]any{
		"devices":        len(snap.Devices),
		"occupied_rooms": occupied,
	})

	if err := t.analyzer(ctx, snap); err != nil {
		t.logger.Warn("analysis failed", "err", err)
	}
}
