package services

import (
	"context"
	"fmt"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/internal/infrastructure/monitoring"

	"go.uber.org/zap"
)

type endpointReconciler struct {
	encoder   ports.EncoderControl
	collector *monitoring.Collector
	// SettleDelay gives the encoder time to commit the new destination
	// before the read-back verification.
	settleDelay time.Duration
	logger      *zap.SugaredLogger
}

// NewEndpointReconciler verifies or sets the encoder output destination.
func NewEndpointReconciler(encoder ports.EncoderControl, collector *monitoring.Collector, settleDelay time.Duration, logger *zap.SugaredLogger) ports.EndpointReconciler {
	return &endpointReconciler{
		encoder:     encoder,
		collector:   collector,
		settleDelay: settleDelay,
		logger:      logger,
	}
}

func (r *endpointReconciler) Apply(ctx context.Context, desired domain.EndpointSettings) (domain.ApplyOutcome, error) {
	// Changing the destination of an active output is unsafe; the encoder
	// rejects or silently ignores it. Never write without proving inactivity.
	active, err := r.encoder.QueryOutputActive(ctx)
	if err != nil {
		r.collector.ReconcileFinished(domain.ApplyFailed)
		return domain.ApplyFailed, fmt.Errorf("cannot verify encoder is idle: %w", err)
	}
	if active {
		r.logger.Infow("encoder already streaming, skipping destination write")
		r.collector.ReconcileFinished(domain.ApplySkippedAlreadyStreaming)
		return domain.ApplySkippedAlreadyStreaming, nil
	}

	r.logger.Infow("writing encoder output destination",
		"server", desired.Server, "key", domain.MaskCredential(desired.Key))

	if err := r.encoder.SetOutputDestination(ctx, desired); err != nil {
		r.collector.ReconcileFinished(domain.ApplyFailed)
		return domain.ApplyFailed, fmt.Errorf("write destination: %w", err)
	}

	if r.settleDelay > 0 {
		if err := sleepCtx(ctx, r.settleDelay); err != nil {
			r.collector.ReconcileFinished(domain.ApplyFailed)
			return domain.ApplyFailed, err
		}
	}

	got, err := r.encoder.GetOutputDestination(ctx)
	if err != nil {
		r.collector.ReconcileFinished(domain.ApplyFailed)
		return domain.ApplyFailed, fmt.Errorf("read back destination: %w", err)
	}

	if !got.Equal(desired) {
		r.collector.ReconcileFinished(domain.ApplyFailed)
		return domain.ApplyFailed, fmt.Errorf("%w: server %q vs %q, key %s vs %s",
			domain.ErrEndpointMismatch,
			desired.Server, got.Server,
			domain.MaskCredential(desired.Key), domain.MaskCredential(got.Key))
	}

	r.collector.ReconcileFinished(domain.ApplyApplied)
	return domain.ApplyApplied, nil
}
