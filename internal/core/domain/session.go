package domain

import (
	"fmt"
	"time"
)

type SessionID string
type BroadcastID string
type EndpointID string

// EncoderEndpointState tracks the local encoder side of a session.
type EncoderEndpointState string

const (
	EncoderUnconfigured EncoderEndpointState = "unconfigured"
	EncoderConfigured   EncoderEndpointState = "configured"
	EncoderStreaming    EncoderEndpointState = "streaming"
	EncoderStopped      EncoderEndpointState = "stopped"
)

// RemoteState is the platform-side broadcast lifecycle state. The platform is
// authoritative; these values mirror what it reports.
type RemoteState string

const (
	RemoteCreated  RemoteState = "created"
	RemoteBound    RemoteState = "bound"
	RemoteReady    RemoteState = "ready"
	RemoteTesting  RemoteState = "testing"
	RemoteLive     RemoteState = "live"
	RemoteComplete RemoteState = "complete"
	RemoteFailed   RemoteState = "failed"
	RemoteUnknown  RemoteState = "unknown"
)

// ParseRemoteState maps a platform lifecycle string onto a RemoteState.
// States this system does not act on (revoked, liveStarting, ...) map to
// RemoteUnknown and are handled as "not yet live".
func ParseRemoteState(s string) RemoteState {
	switch RemoteState(s) {
	case RemoteCreated, RemoteBound, RemoteReady, RemoteTesting, RemoteLive, RemoteComplete, RemoteFailed:
		return RemoteState(s)
	default:
		return RemoteUnknown
	}
}

// SessionState is the orchestrator's own progress through a session.
type SessionState string

const (
	SessionIdle               SessionState = "idle"
	SessionPlatformPrepared   SessionState = "platform_prepared"
	SessionEndpointConfigured SessionState = "endpoint_configured"
	SessionEncoderActive      SessionState = "encoder_active"
	SessionPlatformLive       SessionState = "platform_live"
	SessionTornDown           SessionState = "torn_down"
)

// Stage names the orchestration step a result or failure refers to.
type Stage string

const (
	StagePlatformPrepare Stage = "platform_prepare"
	StageEndpointConfig  Stage = "endpoint_config"
	StageEncoderStart    Stage = "encoder_start"
	StageAwaitActive     Stage = "await_active"
	StagePromotion       Stage = "promotion"
	StageTeardown        Stage = "teardown"
)

// EndpointSettings is the transport endpoint the encoder pushes media to.
// Key is a secret and must never be logged in full; use MaskCredential.
type EndpointSettings struct {
	Server string
	Key    string
}

// Equal compares both fields byte for byte.
func (e EndpointSettings) Equal(other EndpointSettings) bool {
	return e.Server == other.Server && e.Key == other.Key
}

// BroadcastSession is the unit of orchestration. Exactly one session is live
// per orchestrator instance; it is never persisted.
type BroadcastSession struct {
	ID          SessionID
	BroadcastID BroadcastID
	EndpointID  EndpointID
	Endpoint    EndpointSettings
	WatchURL    string

	EncoderState EncoderEndpointState
	RemoteState  RemoteState
	State        SessionState

	StartedAt        time.Time
	OperatorAsserted bool
	Attempts         []TransitionAttempt
}

// StartParams carries the caller-facing parameters of Start.
type StartParams struct {
	Title          string
	Description    string
	Visibility     string
	SceneHint      string
	StartDelay     time.Duration
	ScheduledStart time.Time
}

// BroadcastParams is what the platform collaborator needs to create a broadcast.
type BroadcastParams struct {
	Title          string
	Description    string
	Visibility     string
	ScheduledStart time.Time
}

// StartResult reports the outcome of Start, including which stage failed (if
// any) and whether best-effort teardown was attempted afterwards.
type StartResult struct {
	SessionID         SessionID
	BroadcastID       BroadcastID
	WatchURL          string
	FailedStage       Stage
	TeardownAttempted bool
	OperatorAsserted  bool
	Warnings          []string
}

// StopResult reports both teardown arms independently.
type StopResult struct {
	EncoderStopped     bool
	BroadcastCompleted bool
	EncoderErr         string
	BroadcastErr       string
}

// OK reports whether both teardown actions succeeded.
func (r StopResult) OK() bool {
	return r.EncoderStopped && r.BroadcastCompleted
}

// SessionStatus is a read-only snapshot surfaced on the control API.
type SessionStatus struct {
	Active           bool
	SessionID        SessionID
	BroadcastID      BroadcastID
	WatchURL         string
	State            SessionState
	EncoderState     EncoderEndpointState
	RemoteState      RemoteState
	StartedAt        time.Time
	OperatorAsserted bool
	Attempts         []TransitionAttempt
}

// MaskCredential renders a secret as a short non-reversible indicator:
// at most 4 leading characters plus the total length.
func MaskCredential(s string) string {
	if s == "" {
		return "<empty>"
	}
	n := 4
	if len(s) < n {
		n = len(s)
	}
	return fmt.Sprintf("%s… (len=%d)", s[:n], len(s))
}
