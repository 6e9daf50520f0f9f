package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/imu_scalogram/internal/composite"
	"github.com/relabs-tech/imu_scalogram/internal/config"
	"github.com/relabs-tech/imu_scalogram/internal/router"
	"github.com/relabs-tech/imu_scalogram/internal/session"
	"github.com/relabs-tech/imu_scalogram/internal/wavelet"
)

const statsInterval = 10 * time.Second

// RunScalogram runs one acquisition session with the global configuration
// until interrupted, the source ends or the display is closed.
func RunScalogram() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not loaded")
	}

	logger, flush, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctrl, err := NewSession(cfg, uuid.NewString(), logger)
	if err != nil {
		logger.Error("session setup failed", zap.Error(err))
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		defer cancel()
		return ctrl.Run(gctx)
	})
	g.Go(func() error {
		reportStats(gctx, ctrl, logger)
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("session failed", zap.Error(err))
		return err
	}
	return nil
}

// NewSession builds the full pipeline for cfg: source, router, engine,
// compositor and sinks.
func NewSession(cfg *config.Config, id string, logger *zap.Logger) (*session.Controller, error) {
	selection, err := cfg.ScalogramIndices()
	if err != nil {
		return nil, err
	}
	r, err := router.New(len(cfg.Channels), cfg.WindowCapacity, Trigger(cfg))
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	eopts, err := EngineOptions(cfg, logger)
	if err != nil {
		return nil, err
	}
	engine, err := wavelet.NewEngine(eopts)
	if err != nil {
		return nil, err
	}
	norm, err := Normalization(cfg)
	if err != nil {
		return nil, err
	}
	comp, err := composite.New(norm)
	if err != nil {
		return nil, err
	}

	clientID := cfg.MQTTClientID + "-" + id[:8]
	ropts := RenderOptions(cfg, selection)

	src, err := openSource(cfg, clientID, logger)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	sinks, err := openSinks(cfg, id, clientID, ropts, logger)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("sinks: %w", err)
	}

	opts := session.Options{
		ID:           id,
		Channels:     cfg.Channels,
		Selection:    selection,
		Deadline:     time.Duration(cfg.ScalogramDeadlineMs) * time.Millisecond,
		PollInterval: time.Duration(cfg.PollInterval) * time.Millisecond,
		Logger:       logger,
	}
	if needsPNG(cfg) {
		opts.Render = &ropts
	}

	ctrl, err := session.New(src, sinks, r, engine, comp, opts)
	if err != nil {
		src.Close()
		sinks.Close()
		return nil, err
	}
	return ctrl, nil
}

func reportStats(ctx context.Context, ctrl *session.Controller, logger *zap.Logger) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := ctrl.Stats()
			logger.Info("session stats",
				zap.Uint64("accepted", st.Accepted),
				zap.Uint64("rejected", st.Rejected),
				zap.Uint64("triggers", st.Triggers),
				zap.Uint64("overruns", st.Overruns),
				zap.Uint64("sink_errors", st.SinkErrors),
				zap.Duration("last_compute", st.LastCompute))
		}
	}
}
