package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/internal/infrastructure/monitoring"
	"streamcast/pkg/tracing"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrchestratorConfig holds the session-level timing knobs.
type OrchestratorConfig struct {
	AwaitActiveTimeout time.Duration
	// TeardownTimeout bounds best-effort teardown when the caller's context
	// is already cancelled.
	TeardownTimeout time.Duration
}

type sessionOrchestrator struct {
	encoder    ports.EncoderControl
	platform   ports.PlatformBroadcastAPI
	monitor    ports.StatusMonitor
	reconciler ports.EndpointReconciler
	machine    ports.BroadcastStateMachine
	overlay    ports.OverlayService
	collector  *monitoring.Collector
	cfg        OrchestratorConfig
	logger     *zap.SugaredLogger

	// opMu serializes Start and Stop; the orchestrator is not reentrant.
	opMu sync.Mutex
	// stateMu guards the session snapshot read by Status.
	stateMu  sync.RWMutex
	session  *domain.BroadcastSession
	stopOnce *sync.Once
	stopErr  error
}

// NewSessionOrchestrator builds the top-level session sequencer. overlay may
// be nil when the overlay refresher is disabled.
func NewSessionOrchestrator(
	encoder ports.EncoderControl,
	platform ports.PlatformBroadcastAPI,
	monitor ports.StatusMonitor,
	reconciler ports.EndpointReconciler,
	machine ports.BroadcastStateMachine,
	overlay ports.OverlayService,
	collector *monitoring.Collector,
	cfg OrchestratorConfig,
	logger *zap.SugaredLogger,
) ports.SessionOrchestrator {
	if cfg.TeardownTimeout <= 0 {
		cfg.TeardownTimeout = 30 * time.Second
	}
	return &sessionOrchestrator{
		encoder:    encoder,
		platform:   platform,
		monitor:    monitor,
		reconciler: reconciler,
		machine:    machine,
		overlay:    overlay,
		collector:  collector,
		cfg:        cfg,
		logger:     logger,
	}
}

func (o *sessionOrchestrator) update(fn func(s *domain.BroadcastSession)) {
	o.stateMu.Lock()
	defer o.stateMu.Unlock()
	if o.session != nil {
		fn(o.session)
	}
}

func (o *sessionOrchestrator) Start(ctx context.Context, params domain.StartParams) (*domain.StartResult, error) {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	o.stateMu.Lock()
	if o.session != nil && o.session.State != domain.SessionTornDown {
		o.stateMu.Unlock()
		return nil, domain.ErrSessionActive
	}
	sess := &domain.BroadcastSession{
		ID:           domain.SessionID(uuid.NewString()),
		State:        domain.SessionIdle,
		EncoderState: domain.EncoderUnconfigured,
		RemoteState:  domain.RemoteUnknown,
		StartedAt:    time.Now(),
	}
	o.session = sess
	o.stopOnce = &sync.Once{}
	o.stopErr = nil
	o.stateMu.Unlock()

	o.monitor.Reset()
	o.collector.SessionStarted()

	res := &domain.StartResult{SessionID: sess.ID}
	log := o.logger.With("session_id", sess.ID)
	log.Infow("starting broadcast session", "title", params.Title, "visibility", params.Visibility)

	// Stage a: create the remote broadcast and transport endpoint, bind them.
	endpoint, err := o.preparePlatform(ctx, params, res, log)
	if err != nil {
		return o.failStart(ctx, res, log, domain.StagePlatformPrepare, err)
	}

	// Stage b: reconcile the encoder output destination.
	if err := o.configureEndpoint(ctx, endpoint, res, log); err != nil {
		return o.failStart(ctx, res, log, domain.StageEndpointConfig, err)
	}

	// Stage c: start the encoder output.
	if err := o.startEncoder(ctx, params, res, log); err != nil {
		return o.failStart(ctx, res, log, domain.StageEncoderStart, err)
	}

	// Stage d: wait for confirmed activity. Some encoders under load confirm
	// late; a timeout degrades the session with a warning, it does not end it.
	o.awaitActivity(ctx, res, log)

	// Stage e: promote the remote broadcast to live.
	spanCtx, span := tracing.TraceSessionStage(ctx, string(sess.ID), string(domain.StagePromotion))
	report, err := o.machine.PromoteToLive(spanCtx, res.BroadcastID)
	if report != nil {
		o.update(func(s *domain.BroadcastSession) {
			s.Attempts = report.Attempts
			s.RemoteState = report.FinalState
			s.OperatorAsserted = report.OperatorAsserted
		})
		res.OperatorAsserted = report.OperatorAsserted
	}
	if err != nil {
		tracing.RecordError(spanCtx, err)
		span.End()
		return o.failStart(ctx, res, log, domain.StagePromotion, err)
	}
	span.End()

	o.update(func(s *domain.BroadcastSession) {
		s.State = domain.SessionPlatformLive
	})
	log.Infow("broadcast session live",
		"broadcast_id", res.BroadcastID,
		"watch_url", res.WatchURL,
		"operator_asserted", res.OperatorAsserted,
		"warnings", len(res.Warnings))
	return res, nil
}

func (o *sessionOrchestrator) preparePlatform(ctx context.Context, params domain.StartParams, res *domain.StartResult, log *zap.SugaredLogger) (domain.EndpointSettings, error) {
	spanCtx, span := tracing.TraceSessionStage(ctx, string(res.SessionID), string(domain.StagePlatformPrepare))
	defer span.End()

	broadcastID, watchURL, err := o.platform.CreateBroadcast(spanCtx, domain.BroadcastParams{
		Title:          params.Title,
		Description:    params.Description,
		Visibility:     params.Visibility,
		ScheduledStart: params.ScheduledStart,
	})
	if err != nil {
		return domain.EndpointSettings{}, fmt.Errorf("create broadcast: %w", err)
	}
	res.BroadcastID = broadcastID
	res.WatchURL = watchURL
	o.update(func(s *domain.BroadcastSession) {
		s.BroadcastID = broadcastID
		s.WatchURL = watchURL
		s.RemoteState = domain.RemoteCreated
	})
	log.Infow("broadcast created", "broadcast_id", broadcastID, "watch_url", watchURL)

	endpointID, endpoint, err := o.platform.CreateTransportEndpoint(spanCtx)
	if err != nil {
		return domain.EndpointSettings{}, fmt.Errorf("create transport endpoint: %w", err)
	}
	o.update(func(s *domain.BroadcastSession) {
		s.EndpointID = endpointID
		s.Endpoint = endpoint
	})
	log.Infow("transport endpoint created",
		"endpoint_id", endpointID,
		"server", endpoint.Server,
		"key", domain.MaskCredential(endpoint.Key))

	if err := o.platform.BindBroadcastToEndpoint(spanCtx, broadcastID, endpointID); err != nil {
		return domain.EndpointSettings{}, fmt.Errorf("bind broadcast to endpoint: %w", err)
	}
	o.update(func(s *domain.BroadcastSession) {
		s.RemoteState = domain.RemoteBound
		s.State = domain.SessionPlatformPrepared
	})
	return endpoint, nil
}

func (o *sessionOrchestrator) configureEndpoint(ctx context.Context, endpoint domain.EndpointSettings, res *domain.StartResult, log *zap.SugaredLogger) error {
	spanCtx, span := tracing.TraceSessionStage(ctx, string(res.SessionID), string(domain.StageEndpointConfig))
	defer span.End()

	outcome, err := o.reconciler.Apply(spanCtx, endpoint)
	switch outcome {
	case domain.ApplyApplied:
		o.update(func(s *domain.BroadcastSession) {
			s.EncoderState = domain.EncoderConfigured
			s.State = domain.SessionEndpointConfigured
		})
		return nil

	case domain.ApplySkippedAlreadyStreaming:
		// Accept the skip only when the running output already points at the
		// intended destination; otherwise the session keeps publishing under
		// the current destination and the operator has to intervene.
		current, gerr := o.encoder.GetOutputDestination(spanCtx)
		if gerr != nil || !current.Equal(endpoint) {
			warning := fmt.Sprintf("configuration conflict: encoder is streaming to %q, intended %q", current.Server, endpoint.Server)
			log.Warnw("endpoint configuration conflict while encoder active",
				"current_server", current.Server,
				"intended_server", endpoint.Server,
				"error", gerr)
			res.Warnings = append(res.Warnings, warning)
		}
		o.update(func(s *domain.BroadcastSession) {
			s.EncoderState = domain.EncoderStreaming
			s.State = domain.SessionEndpointConfigured
		})
		return nil

	default:
		if err == nil {
			err = fmt.Errorf("endpoint reconciliation failed")
		}
		tracing.RecordError(spanCtx, err)
		return err
	}
}

func (o *sessionOrchestrator) startEncoder(ctx context.Context, params domain.StartParams, res *domain.StartResult, log *zap.SugaredLogger) error {
	spanCtx, span := tracing.TraceSessionStage(ctx, string(res.SessionID), string(domain.StageEncoderStart))
	defer span.End()

	if params.SceneHint != "" {
		if err := o.encoder.SwitchScene(spanCtx, params.SceneHint); err != nil {
			log.Warnw("scene switch failed, continuing on current scene",
				"scene", params.SceneHint, "error", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("scene switch to %q failed", params.SceneHint))
		}
	}

	if o.overlay != nil {
		o.overlay.Start(context.WithoutCancel(ctx))
	}

	if err := o.encoder.StartOutput(spanCtx); err != nil {
		tracing.RecordError(spanCtx, err)
		return fmt.Errorf("start encoder output: %w", err)
	}
	log.Infow("encoder output start requested")

	if params.StartDelay > 0 {
		if err := sleepCtx(spanCtx, params.StartDelay); err != nil {
			return err
		}
	}
	return nil
}

func (o *sessionOrchestrator) awaitActivity(ctx context.Context, res *domain.StartResult, log *zap.SugaredLogger) {
	spanCtx, span := tracing.TraceSessionStage(ctx, string(res.SessionID), string(domain.StageAwaitActive))
	defer span.End()

	if o.monitor.AwaitActive(spanCtx, o.cfg.AwaitActiveTimeout) {
		o.update(func(s *domain.BroadcastSession) {
			s.EncoderState = domain.EncoderStreaming
			s.State = domain.SessionEncoderActive
		})
		log.Infow("encoder activity confirmed")
		return
	}

	log.Warnw("encoder activity not confirmed within timeout, continuing",
		"timeout", o.cfg.AwaitActiveTimeout)
	res.Warnings = append(res.Warnings, "encoder activity not confirmed within timeout")
}

// failStart converts a stage failure into a structured result with
// best-effort teardown of whatever partially succeeded.
func (o *sessionOrchestrator) failStart(ctx context.Context, res *domain.StartResult, log *zap.SugaredLogger, stage domain.Stage, err error) (*domain.StartResult, error) {
	res.FailedStage = stage
	o.collector.StartFailed(stage)
	log.Errorw("session start failed", "stage", stage, "error", err)

	if res.BroadcastID != "" {
		res.TeardownAttempted = true
		result := o.teardown(ctx, log)
		if !result.OK() {
			log.Warnw("best-effort teardown incomplete",
				"encoder_stopped", result.EncoderStopped,
				"broadcast_completed", result.BroadcastCompleted)
		}
	}

	o.update(func(s *domain.BroadcastSession) {
		s.State = domain.SessionTornDown
	})
	o.collector.SessionEnded()
	return res, fmt.Errorf("start failed at stage %s: %w", stage, err)
}

// teardown runs both teardown arms independently; failure of one never skips
// the other. The encoder is asked to stop exactly once per session even when
// teardown runs more than once on error paths.
func (o *sessionOrchestrator) teardown(ctx context.Context, log *zap.SugaredLogger) domain.StopResult {
	// Teardown must proceed even when the caller's context is already gone.
	tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.TeardownTimeout)
	defer cancel()

	if o.overlay != nil {
		o.overlay.Stop()
	}

	o.stateMu.RLock()
	sess := o.session
	started := sess != nil && (sess.EncoderState == domain.EncoderConfigured || sess.EncoderState == domain.EncoderStreaming)
	var broadcastID domain.BroadcastID
	if sess != nil {
		broadcastID = sess.BroadcastID
	}
	o.stateMu.RUnlock()

	var result domain.StopResult

	if started {
		if err := o.stopEncoderOutput(tctx); err != nil {
			result.EncoderErr = err.Error()
			log.Errorw("encoder stop failed", "error", err)
		} else {
			result.EncoderStopped = true
			o.update(func(s *domain.BroadcastSession) {
				s.EncoderState = domain.EncoderStopped
			})
		}
	} else {
		// Output was never started; nothing to stop.
		result.EncoderStopped = true
	}

	if broadcastID != "" {
		if err := o.machine.Demote(tctx, broadcastID); err != nil {
			result.BroadcastErr = err.Error()
			log.Errorw("broadcast demote failed", "broadcast_id", broadcastID, "error", err)
		} else {
			result.BroadcastCompleted = true
			o.update(func(s *domain.BroadcastSession) {
				s.RemoteState = domain.RemoteComplete
			})
		}
	} else {
		result.BroadcastCompleted = true
	}

	o.monitor.Reset()
	return result
}

func (o *sessionOrchestrator) stopEncoderOutput(ctx context.Context) error {
	o.stateMu.RLock()
	once := o.stopOnce
	o.stateMu.RUnlock()
	once.Do(func() {
		o.stopErr = o.encoder.StopOutput(ctx)
	})
	return o.stopErr
}

func (o *sessionOrchestrator) Stop(ctx context.Context) (*domain.StopResult, error) {
	o.opMu.Lock()
	defer o.opMu.Unlock()

	o.stateMu.RLock()
	active := o.session != nil && o.session.State != domain.SessionTornDown
	var sessionID domain.SessionID
	if o.session != nil {
		sessionID = o.session.ID
	}
	o.stateMu.RUnlock()

	if !active {
		return nil, domain.ErrNoActiveSession
	}

	log := o.logger.With("session_id", sessionID)
	log.Infow("stopping broadcast session")

	result := o.teardown(ctx, log)

	o.update(func(s *domain.BroadcastSession) {
		s.State = domain.SessionTornDown
	})
	o.collector.SessionEnded()

	if !result.OK() {
		return &result, fmt.Errorf("stop completed with failures: encoder=%q broadcast=%q", result.EncoderErr, result.BroadcastErr)
	}
	log.Infow("broadcast session stopped")
	return &result, nil
}

func (o *sessionOrchestrator) Status() domain.SessionStatus {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()

	if o.session == nil {
		return domain.SessionStatus{Active: false}
	}

	s := o.session
	attempts := make([]domain.TransitionAttempt, len(s.Attempts))
	copy(attempts, s.Attempts)

	return domain.SessionStatus{
		Active:           s.State != domain.SessionTornDown,
		SessionID:        s.ID,
		BroadcastID:      s.BroadcastID,
		WatchURL:         s.WatchURL,
		State:            s.State,
		EncoderState:     s.EncoderState,
		RemoteState:      s.RemoteState,
		StartedAt:        s.StartedAt,
		OperatorAsserted: s.OperatorAsserted,
		Attempts:         attempts,
	}
}
