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

// StateMachineConfig bounds the waits inside promotion.
type StateMachineConfig struct {
	// PollCount is how many times to re-check state while the platform's
	// server-side auto-promotion window is open.
	PollCount int
	PollDelay time.Duration
	// GraceWait is applied after an "invalid transition" response before the
	// single re-check.
	GraceWait time.Duration
}

type broadcastStateMachine struct {
	platform  ports.PlatformBroadcastAPI
	operator  ports.OperatorPrompt
	collector *monitoring.Collector
	cfg       StateMachineConfig
	logger    *zap.SugaredLogger
}

// NewBroadcastStateMachine drives the remote broadcast lifecycle with bounded
// retries and an operator-confirmation escape hatch.
func NewBroadcastStateMachine(
	platform ports.PlatformBroadcastAPI,
	operator ports.OperatorPrompt,
	collector *monitoring.Collector,
	cfg StateMachineConfig,
	logger *zap.SugaredLogger,
) ports.BroadcastStateMachine {
	return &broadcastStateMachine{
		platform:  platform,
		operator:  operator,
		collector: collector,
		cfg:       cfg,
		logger:    logger,
	}
}

func (m *broadcastStateMachine) record(report *domain.PromotionReport, observed domain.RemoteState, outcome domain.TransitionOutcome, decision domain.TransitionDecision, detail string) {
	report.Attempts = append(report.Attempts, domain.TransitionAttempt{
		Target:   domain.RemoteLive,
		Observed: observed,
		Outcome:  outcome,
		Decision: decision,
		At:       time.Now(),
		Detail:   detail,
	})
	m.collector.TransitionAttempted(outcome)
}

func (m *broadcastStateMachine) PromoteToLive(ctx context.Context, broadcastID domain.BroadcastID) (*domain.PromotionReport, error) {
	started := time.Now()
	defer func() {
		m.collector.ObservePromotion(time.Since(started))
	}()

	report := &domain.PromotionReport{FinalState: domain.RemoteUnknown}

	state, err := m.platform.GetBroadcastState(ctx, broadcastID)
	if err != nil {
		m.record(report, domain.RemoteUnknown, domain.OutcomeFailed, domain.DecisionFail, err.Error())
		return report, fmt.Errorf("%w: query state: %v", domain.ErrPromotionFailed, err)
	}
	report.FinalState = state

	// Redundant promotion is not an error; no transition request is issued.
	if state == domain.RemoteLive {
		m.logger.Infow("broadcast already live", "broadcast_id", broadcastID)
		m.record(report, state, domain.OutcomeRedundant, domain.DecisionAccept, "already live")
		return report, nil
	}

	// Platform may auto-advance ready/testing broadcasts once it has verified
	// inbound media; give that window a bounded chance before forcing it.
	if state == domain.RemoteReady || state == domain.RemoteTesting {
		for i := 0; i < m.cfg.PollCount; i++ {
			if err := sleepCtx(ctx, m.cfg.PollDelay); err != nil {
				return report, fmt.Errorf("%w: %v", domain.ErrPromotionFailed, err)
			}
			state, err = m.platform.GetBroadcastState(ctx, broadcastID)
			if err != nil {
				m.logger.Warnw("state poll failed during auto-promotion window", "broadcast_id", broadcastID, "error", err)
				continue
			}
			report.FinalState = state
			m.logger.Infow("auto-promotion window poll", "broadcast_id", broadcastID, "state", state, "poll", i+1)
			if state == domain.RemoteLive {
				m.record(report, state, domain.OutcomeSuccess, domain.DecisionAccept, "auto-promoted by platform")
				return report, nil
			}
		}
	}

	outcome, observed, err := m.platform.RequestTransition(ctx, broadcastID, domain.RemoteLive)
	if observed != domain.RemoteUnknown {
		report.FinalState = observed
	}

	switch outcome {
	case domain.OutcomeSuccess:
		m.record(report, observed, outcome, domain.DecisionAccept, "")
		report.FinalState = domain.RemoteLive
		return report, nil

	case domain.OutcomeRedundant:
		// Platform says the broadcast is already live.
		m.record(report, observed, outcome, domain.DecisionAccept, "redundant transition")
		report.FinalState = domain.RemoteLive
		return report, nil

	case domain.OutcomeInvalid:
		// The platform has not verified live media yet. Wait once, re-check,
		// then hand the decision to the operator.
		m.record(report, observed, outcome, domain.DecisionRecheck, "platform has not verified inbound media")
		m.logger.Warnw("invalid transition, waiting for platform to verify media",
			"broadcast_id", broadcastID, "grace_wait", m.cfg.GraceWait)

		if err := sleepCtx(ctx, m.cfg.GraceWait); err != nil {
			return report, fmt.Errorf("%w: %v", domain.ErrPromotionFailed, err)
		}

		state, qerr := m.platform.GetBroadcastState(ctx, broadcastID)
		if qerr == nil {
			report.FinalState = state
			if state == domain.RemoteLive {
				m.record(report, state, domain.OutcomeSuccess, domain.DecisionAccept, "live after grace re-check")
				return report, nil
			}
		}

		return m.manualFallback(ctx, broadcastID, report)

	default:
		detail := "transition request failed"
		if err != nil {
			detail = err.Error()
		}
		m.record(report, observed, domain.OutcomeFailed, domain.DecisionFail, detail)
		return report, fmt.Errorf("%w: %s", domain.ErrPromotionFailed, detail)
	}
}

// manualFallback asks the operator to assert that the live transition will be
// completed out-of-band. The assertion is accepted exactly once per session;
// the platform is still re-queried afterwards so the report reflects what was
// actually observed, not what was asserted.
func (m *broadcastStateMachine) manualFallback(ctx context.Context, broadcastID domain.BroadcastID, report *domain.PromotionReport) (*domain.PromotionReport, error) {
	m.record(report, report.FinalState, domain.OutcomeInvalid, domain.DecisionManualFallback, "awaiting operator confirmation")
	m.logger.Warnw("broadcast did not reach live, requesting operator confirmation", "broadcast_id", broadcastID)

	confirmed, err := m.operator.ConfirmLiveTransition(ctx, broadcastID)
	if err != nil {
		m.record(report, report.FinalState, domain.OutcomeFailed, domain.DecisionFail, err.Error())
		return report, fmt.Errorf("%w: operator confirmation: %v", domain.ErrPromotionFailed, err)
	}
	if !confirmed {
		m.record(report, report.FinalState, domain.OutcomeFailed, domain.DecisionFail, "operator declined")
		return report, fmt.Errorf("%w: %v", domain.ErrPromotionFailed, domain.ErrOperatorDeclined)
	}

	report.OperatorAsserted = true
	if state, qerr := m.platform.GetBroadcastState(ctx, broadcastID); qerr == nil {
		report.FinalState = state
	}
	m.record(report, report.FinalState, domain.OutcomeSuccess, domain.DecisionAccept, "operator asserted out-of-band completion")
	m.logger.Infow("operator asserted live transition",
		"broadcast_id", broadcastID, "observed_state", report.FinalState)
	return report, nil
}

func (m *broadcastStateMachine) Demote(ctx context.Context, broadcastID domain.BroadcastID) error {
	outcome, observed, err := m.platform.RequestTransition(ctx, broadcastID, domain.RemoteComplete)
	m.collector.TransitionAttempted(outcome)

	switch outcome {
	case domain.OutcomeSuccess:
		m.logger.Infow("broadcast completed", "broadcast_id", broadcastID)
		return nil
	case domain.OutcomeRedundant:
		m.logger.Infow("broadcast already complete", "broadcast_id", broadcastID)
		return nil
	default:
		if err == nil {
			err = fmt.Errorf("transition to complete reported %s (state %s)", outcome, observed)
		}
		return fmt.Errorf("demote broadcast %s: %w", broadcastID, err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
