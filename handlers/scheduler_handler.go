package handlers

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/onurcolak/messaging-dashboard/environments"
	"github.com/onurcolak/messaging-dashboard/internal/scheduler"
	"github.com/onurcolak/messaging-dashboard/pkg/response"
	"github.com/onurcolak/messaging-dashboard/pkg/validator"
)

type SchedulerHandler struct {
	scheduler *scheduler.Scheduler
	ctx       context.Context
	config    *environments.Config
}

// StartSchedulerRequest overrides the configured run parameters. Interval is
// in seconds.
type StartSchedulerRequest struct {
	Interval       *int     `json:"interval,omitempty" validate:"omitempty,min=1"`
	FailureRate    *float64 `json:"failureRate,omitempty" validate:"omitempty,min=0,max=1"`
	AlertWebhook   *string  `json:"alertWebhook,omitempty" validate:"omitempty,url"`
	AlertThreshold *int     `json:"alertThreshold,omitempty" validate:"omitempty,min=1"`
}

func (r StartSchedulerRequest) apply(p scheduler.Params) scheduler.Params {
	if r.Interval != nil {
		p.Interval = time.Duration(*r.Interval) * time.Second
	}
	if r.FailureRate != nil {
		p.FailureRate = *r.FailureRate
	}
	if r.AlertWebhook != nil {
		p.AlertWebhook = *r.AlertWebhook
	}
	if r.AlertThreshold != nil {
		p.AlertThreshold = *r.AlertThreshold
	}
	return p
}

func NewSchedulerHandler(
	sched *scheduler.Scheduler,
	ctx context.Context,
	cfg *environments.Config,
) *SchedulerHandler {
	return &SchedulerHandler{
		scheduler: sched,
		ctx:       ctx,
		config:    cfg,
	}
}

// StartScheduler godoc
// @Summary Start dispatching pending messages
// @Description Starts the dispatch loop. Omitted fields fall back to the server configuration.
// @Tags scheduler
// @Accept json
// @Produce json
// @Param x-dashboard-key header string true "API key for scheduler"
// @Param request body StartSchedulerRequest false "Scheduler parameters (optional)"
// @Success 200 {object} response.SuccessResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/scheduler/start [post]
func (h *SchedulerHandler) StartScheduler(c echo.Context) error {
	if h.scheduler.IsRunning() {
		return response.OkWithMessage(c, "Scheduler is already running", h.scheduler.GetStatus())
	}

	var req StartSchedulerRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	params := req.apply(scheduler.Params{
		Interval:       h.config.Message.SendInterval,
		AlertWebhook:   h.config.Alert.WebhookURL,
		AlertThreshold: h.config.Alert.IterationCount,
	})

	if err := h.scheduler.StartWithParams(h.ctx, params); err != nil {
		return response.InternalServerError(c, err)
	}

	return response.OkWithMessage(c, "Scheduler started successfully", h.scheduler.GetStatus())
}

// StopScheduler godoc
// @Summary Stop dispatching
// @Description Stops the dispatch loop and cancels the batch in flight
// @Tags scheduler
// @Accept json
// @Produce json
// @Param x-dashboard-key header string true "API key for scheduler"
// @Success 200 {object} response.SuccessResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/scheduler/stop [post]
func (h *SchedulerHandler) StopScheduler(c echo.Context) error {
	if !h.scheduler.IsRunning() {
		return response.OkWithMessage(c, "Scheduler is already stopped", h.scheduler.GetStatus())
	}

	if err := h.scheduler.Stop(); err != nil {
		return response.InternalServerError(c, err)
	}

	return response.OkWithMessage(c, "Scheduler stopped successfully", h.scheduler.GetStatus())
}

// GetSchedulerStatus godoc
// @Summary Dispatch loop status
// @Description Run counters, interval and alert state
// @Tags scheduler
// @Accept json
// @Produce json
// @Param x-dashboard-key header string true "API key for scheduler"
// @Success 200 {object} response.SuccessResponse
// @Router /api/v1/scheduler/status [get]
func (h *SchedulerHandler) GetSchedulerStatus(c echo.Context) error {
	return response.Ok(c, h.scheduler.GetStatus())
}
