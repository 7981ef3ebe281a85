package ports

import (
	"context"

	"streamcast/internal/core/domain"
)

// EncoderControl is the boundary to the local encoder (obs-websocket v5).
// Implementations convert vendor payloads into domain values; callers never
// see raw protocol messages.
type EncoderControl interface {
	QueryOutputActive(ctx context.Context) (bool, error)
	StartOutput(ctx context.Context) error
	StopOutput(ctx context.Context) error
	GetOutputDestination(ctx context.Context) (domain.EndpointSettings, error)
	SetOutputDestination(ctx context.Context, settings domain.EndpointSettings) error
	SwitchScene(ctx context.Context, sceneName string) error
	SetSourceText(ctx context.Context, sourceName, text string) error

	// Events delivers pre-parsed state-change notifications. The channel is
	// owned by the implementation and stays open for the connection lifetime.
	Events() <-chan domain.EncoderEvent
}

// PlatformBroadcastAPI is the boundary to the remote streaming platform.
type PlatformBroadcastAPI interface {
	CreateBroadcast(ctx context.Context, params domain.BroadcastParams) (domain.BroadcastID, string, error)
	CreateTransportEndpoint(ctx context.Context) (domain.EndpointID, domain.EndpointSettings, error)
	BindBroadcastToEndpoint(ctx context.Context, broadcastID domain.BroadcastID, endpointID domain.EndpointID) error
	GetBroadcastState(ctx context.Context, broadcastID domain.BroadcastID) (domain.RemoteState, error)

	// RequestTransition asks the platform to move the broadcast to target.
	// Redundant and invalid transitions are reported as outcomes, not errors;
	// the error is non-nil only for failures outside the transition protocol.
	RequestTransition(ctx context.Context, broadcastID domain.BroadcastID, target domain.RemoteState) (domain.TransitionOutcome, domain.RemoteState, error)
}

// OperatorPrompt asks a human to confirm that they will complete the live
// transition out-of-band. Blocking is expected; implementations must honor
// context cancellation.
type OperatorPrompt interface {
	ConfirmLiveTransition(ctx context.Context, broadcastID domain.BroadcastID) (bool, error)
}
