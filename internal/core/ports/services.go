package ports

import (
	"context"
	"time"

	"streamcast/internal/core/domain"
)

// StatusMonitor reports whether the encoder is actively pushing a stream.
type StatusMonitor interface {
	// IsActive is a point-in-time query. An error means "unknown", never
	// "inactive".
	IsActive(ctx context.Context) (bool, error)

	// AwaitActive blocks until an activity signal is observed or timeout
	// elapses, returning the final observed state.
	AwaitActive(ctx context.Context, timeout time.Duration) bool

	// Reset clears the activity latch at session boundaries.
	Reset()
}

// EndpointReconciler verifies or sets the encoder output destination without
// disrupting an active encoder session.
type EndpointReconciler interface {
	Apply(ctx context.Context, desired domain.EndpointSettings) (domain.ApplyOutcome, error)
}

// BroadcastStateMachine drives the remote broadcast lifecycle.
type BroadcastStateMachine interface {
	PromoteToLive(ctx context.Context, broadcastID domain.BroadcastID) (*domain.PromotionReport, error)
	Demote(ctx context.Context, broadcastID domain.BroadcastID) error
}

// SessionOrchestrator sequences the whole broadcast session.
type SessionOrchestrator interface {
	Start(ctx context.Context, params domain.StartParams) (*domain.StartResult, error)
	Stop(ctx context.Context) (*domain.StopResult, error)
	Status() domain.SessionStatus
}

// OverlayService is the recurring overlay-text refresher. Independent of
// session state; started and stopped by the caller.
type OverlayService interface {
	Start(ctx context.Context)
	Stop()
}
