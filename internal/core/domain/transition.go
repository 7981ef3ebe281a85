package domain

import "time"

// TransitionOutcome classifies the platform's response to one requested
// broadcast state transition.
type TransitionOutcome string

const (
	OutcomeSuccess   TransitionOutcome = "success"
	OutcomeRedundant TransitionOutcome = "redundant"
	OutcomeInvalid   TransitionOutcome = "invalid"
	OutcomeTransient TransitionOutcome = "transient_error"
	OutcomeFailed    TransitionOutcome = "failed"
)

// TransitionDecision records what the state machine did with an outcome.
type TransitionDecision string

const (
	DecisionAccept         TransitionDecision = "accept"
	DecisionRetry          TransitionDecision = "retry"
	DecisionRecheck        TransitionDecision = "wait_and_recheck"
	DecisionManualFallback TransitionDecision = "manual_fallback"
	DecisionFail           TransitionDecision = "fail"
)

// TransitionAttempt records one attempt to move the remote broadcast forward.
// Kept in memory for the duration of a session only.
type TransitionAttempt struct {
	Target   RemoteState        `json:"target"`
	Observed RemoteState        `json:"observed"`
	Outcome  TransitionOutcome  `json:"outcome"`
	Decision TransitionDecision `json:"decision"`
	At       time.Time          `json:"at"`
	Detail   string             `json:"detail,omitempty"`
}

// PromotionReport is the result of driving a broadcast to live.
type PromotionReport struct {
	FinalState       RemoteState
	OperatorAsserted bool
	Attempts         []TransitionAttempt
}

// ApplyOutcome is the result of reconciling the encoder output destination.
type ApplyOutcome string

const (
	ApplyApplied                 ApplyOutcome = "applied"
	ApplySkippedAlreadyStreaming ApplyOutcome = "skipped_already_streaming"
	ApplyFailed                  ApplyOutcome = "failed"
)
