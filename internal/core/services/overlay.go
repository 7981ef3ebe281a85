package services

import (
	"context"
	"sync"
	"time"

	"streamcast/internal/core/ports"

	"go.uber.org/zap"
)

// OverlayConfig configures the recurring overlay-text refresher.
type OverlayConfig struct {
	SourceName string
	Interval   time.Duration
	TimeFormat string
}

// overlayService periodically rewrites a text source with the current
// timestamp. It is deliberately independent of session state: errors are
// logged and the ticker keeps going.
type overlayService struct {
	encoder ports.EncoderControl
	cfg     OverlayConfig
	logger  *zap.SugaredLogger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewOverlayService builds the overlay clock refresher.
func NewOverlayService(encoder ports.EncoderControl, cfg OverlayConfig, logger *zap.SugaredLogger) ports.OverlayService {
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = "[2006/01/02 15:04:05]"
	}
	return &overlayService{
		encoder: encoder,
		cfg:     cfg,
		logger:  logger,
	}
}

func (s *overlayService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return // already running
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx, s.done)
	s.logger.Infow("overlay refresher started",
		"source", s.cfg.SourceName, "interval", s.cfg.Interval)
}

func (s *overlayService) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.refresh(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh(ctx)
		}
	}
}

func (s *overlayService) refresh(ctx context.Context) {
	text := time.Now().Format(s.cfg.TimeFormat)
	if err := s.encoder.SetSourceText(ctx, s.cfg.SourceName, text); err != nil {
		s.logger.Warnw("overlay refresh failed", "source", s.cfg.SourceName, "error", err)
	}
}

func (s *overlayService) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Infow("overlay refresher stopped")
}
