package http

import (
	"errors"
	"net/http"
	"time"

	"streamcast/internal/core/domain"
	"streamcast/internal/core/ports"
	"streamcast/internal/infrastructure/monitoring"
	"streamcast/internal/infrastructure/operator"
	"streamcast/pkg/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SessionHandler exposes the broadcast session lifecycle on the control API.
type SessionHandler struct {
	orchestrator ports.SessionOrchestrator
	gate         *operator.Gate
	health       *monitoring.HealthChecker
	// defaults fill in start parameters the request leaves empty.
	defaults domain.StartParams
	logger   *zap.SugaredLogger
}

func NewSessionHandler(
	orchestrator ports.SessionOrchestrator,
	gate *operator.Gate,
	health *monitoring.HealthChecker,
	defaults domain.StartParams,
	logger *zap.SugaredLogger,
) *SessionHandler {
	return &SessionHandler{
		orchestrator: orchestrator,
		gate:         gate,
		health:       health,
		defaults:     defaults,
		logger:       logger,
	}
}

func (h *SessionHandler) SetupRoutes(router *gin.Engine, authMW gin.HandlerFunc) {
	router.GET("/health", h.Health)

	api := router.Group("/api/v1")
	if authMW != nil {
		api.Use(authMW)
	}
	{
		api.POST("/session/start", h.StartSession)
		api.POST("/session/stop", h.StopSession)
		api.GET("/session/status", h.SessionStatus)
		api.POST("/session/confirm-live", h.ConfirmLive)
	}
}

func (h *SessionHandler) StartSession(c *gin.Context) {
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Visibility  string `json:"visibility"`
		SceneHint   string `json:"scene_hint"`
	}
	// All fields are optional; configured defaults apply when omitted.
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	params := h.defaults
	if req.Title != "" {
		params.Title = req.Title
	}
	if req.Description != "" {
		params.Description = req.Description
	}
	if req.Visibility != "" {
		params.Visibility = req.Visibility
	}
	if req.SceneHint != "" {
		params.SceneHint = req.SceneHint
	}

	if err := validateStartParams(params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.orchestrator.Start(c.Request.Context(), params)
	if err != nil {
		if errors.Is(err, domain.ErrSessionActive) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		status := http.StatusBadGateway
		if errors.Is(err, domain.ErrOperatorDeclined) {
			status = http.StatusConflict
		}
		resp := gin.H{"error": err.Error()}
		if result != nil {
			resp["failed_stage"] = result.FailedStage
			resp["teardown_attempted"] = result.TeardownAttempted
			resp["warnings"] = result.Warnings
		}
		c.JSON(status, resp)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id":        result.SessionID,
		"broadcast_id":      result.BroadcastID,
		"watch_url":         result.WatchURL,
		"operator_asserted": result.OperatorAsserted,
		"warnings":          result.Warnings,
	})
}

func validateStartParams(params domain.StartParams) error {
	if err := validation.ValidateTitle(params.Title); err != nil {
		return err
	}
	if err := validation.ValidateDescription(params.Description); err != nil {
		return err
	}
	if err := validation.ValidateVisibility(params.Visibility); err != nil {
		return err
	}
	return validation.ValidateSceneName(params.SceneHint)
}

func (h *SessionHandler) StopSession(c *gin.Context) {
	result, err := h.orchestrator.Stop(c.Request.Context())
	if errors.Is(err, domain.ErrNoActiveSession) {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	if result == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{
		"encoder_stopped":     result.EncoderStopped,
		"broadcast_completed": result.BroadcastCompleted,
	}
	if result.EncoderErr != "" {
		resp["encoder_error"] = result.EncoderErr
	}
	if result.BroadcastErr != "" {
		resp["broadcast_error"] = result.BroadcastErr
	}

	// Partial teardown is reported, not hidden: the caller sees exactly
	// which arm failed.
	if !result.OK() {
		c.JSON(http.StatusBadGateway, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SessionHandler) SessionStatus(c *gin.Context) {
	status := h.orchestrator.Status()

	resp := gin.H{
		"active": status.Active,
	}
	if status.Active || status.SessionID != "" {
		resp["session_id"] = status.SessionID
		resp["broadcast_id"] = status.BroadcastID
		resp["watch_url"] = status.WatchURL
		resp["state"] = status.State
		resp["encoder_state"] = status.EncoderState
		resp["remote_state"] = status.RemoteState
		resp["started_at"] = status.StartedAt.Format(time.RFC3339)
		resp["operator_asserted"] = status.OperatorAsserted
		resp["transition_attempts"] = status.Attempts
	}
	if h.gate != nil {
		if subject, pending := h.gate.Pending(); pending {
			resp["confirmation_pending_for"] = subject
		}
	}

	c.JSON(http.StatusOK, resp)
}

// ConfirmLive resolves a pending manual live-transition confirmation.
func (h *SessionHandler) ConfirmLive(c *gin.Context) {
	if h.gate == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "manual confirmation not available"})
		return
	}

	var req struct {
		Confirmed *bool `json:"confirmed" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "confirmed (true/false) is required"})
		return
	}

	broadcastID, err := h.gate.Resolve(*req.Confirmed)
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}

	h.logger.Infow("operator resolved live confirmation",
		"broadcast_id", broadcastID, "confirmed", *req.Confirmed)
	c.JSON(http.StatusOK, gin.H{
		"broadcast_id": broadcastID,
		"confirmed":    *req.Confirmed,
	})
}

func (h *SessionHandler) Health(c *gin.Context) {
	if h.health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}

	result := h.health.CheckAll(c.Request.Context())
	status := http.StatusOK
	if result.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, result)
}
