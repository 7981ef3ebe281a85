package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/internal/infrastructure/monitoring"

	"go.uber.org/zap"
)

// activityLatch is the shared "media is flowing" signal. It is monotonic
// within a session: once set it stays set until Reset.
type activityLatch struct {
	mu     sync.Mutex
	active bool
	at     time.Time
	ch     chan struct{}
}

func newActivityLatch() *activityLatch {
	return &activityLatch{ch: make(chan struct{})}
}

func (l *activityLatch) set() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.active {
		return
	}
	l.active = true
	l.at = time.Now()
	close(l.ch)
}

func (l *activityLatch) reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = false
	l.at = time.Time{}
	l.ch = make(chan struct{})
}

func (l *activityLatch) isSet() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// wait returns a channel that is closed once the latch is set.
func (l *activityLatch) wait() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ch
}

type EncoderMonitor struct {
	encoder   ports.EncoderControl
	collector *monitoring.Collector
	latch     *activityLatch
	logger    *zap.SugaredLogger
}

// NewStatusMonitor builds the encoder activity monitor. Run must be started
// once for push notifications to feed the latch; polling works regardless.
func NewStatusMonitor(encoder ports.EncoderControl, collector *monitoring.Collector, logger *zap.SugaredLogger) *EncoderMonitor {
	return &EncoderMonitor{
		encoder:   encoder,
		collector: collector,
		latch:     newActivityLatch(),
		logger:    logger,
	}
}

// Run consumes encoder state-change events until ctx is cancelled or the
// event channel closes. Pure observation: it only writes the latch.
func (m *EncoderMonitor) Run(ctx context.Context) {
	events := m.encoder.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				m.logger.Warnw("encoder event channel closed")
				return
			}
			m.collector.EncoderEventSeen(ev.Kind)
			switch ev.Kind {
			case domain.EventOutputActivated:
				m.logger.Infow("encoder output activated", "at", ev.At)
				m.latch.set()
			case domain.EventOutputDeactivated:
				// Monotonic within a session: a deactivation event does not
				// clear the latch, only Reset does.
				m.logger.Infow("encoder output deactivated", "at", ev.At)
			default:
			}
		}
	}
}

func (m *EncoderMonitor) IsActive(ctx context.Context) (bool, error) {
	active, err := m.encoder.QueryOutputActive(ctx)
	if err != nil {
		// A failed poll is "unknown", never "inactive".
		return false, fmt.Errorf("%w: %v", domain.ErrActivityUnknown, err)
	}
	if active {
		m.latch.set()
	}
	return active, nil
}

func (m *EncoderMonitor) AwaitActive(ctx context.Context, timeout time.Duration) bool {
	started := time.Now()
	defer func() {
		m.collector.ObserveAwaitActive(time.Since(started))
	}()

	if m.latch.isSet() {
		return true
	}

	// Direct query first; the start notification may already have been missed.
	if active, err := m.IsActive(ctx); err == nil && active {
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-m.latch.wait():
		return true
	case <-ctx.Done():
		return m.latch.isSet()
	case <-timer.C:
		// Event never arrived; fall back to one direct poll to cover dropped
		// notifications before reporting inactivity.
		if active, err := m.IsActive(ctx); err == nil && active {
			return true
		}
		return m.latch.isSet()
	}
}

func (m *EncoderMonitor) Reset() {
	m.latch.reset()
}
