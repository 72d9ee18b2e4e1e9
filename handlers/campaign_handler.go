package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/onurcolak/messaging-dashboard/internal/domain"
	"github.com/onurcolak/messaging-dashboard/internal/events"
	"github.com/onurcolak/messaging-dashboard/internal/service"
	"github.com/onurcolak/messaging-dashboard/pkg/logger"
	"github.com/onurcolak/messaging-dashboard/pkg/response"
	"github.com/onurcolak/messaging-dashboard/pkg/validator"
)

const sseHeartbeat = 15 * time.Second

type CampaignHandler struct {
	service *service.CampaignService
	broker  *events.Broker
	maxCSV  int64
}

type CreateCampaignRequest struct {
	Name       string                  `json:"name" validate:"required,max=255"`
	ClientID   *int64                  `json:"clientId,omitempty" validate:"omitempty,min=1"`
	Template   string                  `json:"template"`
	Recipients []domain.Recipient      `json:"recipients" validate:"dive"`
	CSV        string                  `json:"csv,omitempty"`
	Preset     string                  `json:"preset,omitempty"`
	RateLimit  *domain.RateLimitConfig `json:"rateLimit,omitempty"`
	ABTest     domain.ABTestConfig     `json:"abTest"`
	Start      bool                    `json:"start"`
}

type ETARequest struct {
	Recipients int                     `json:"recipients" validate:"min=0"`
	Preset     string                  `json:"preset,omitempty"`
	RateLimit  *domain.RateLimitConfig `json:"rateLimit,omitempty"`
}

func NewCampaignHandler(svc *service.CampaignService, broker *events.Broker, maxCSVBytes int64) *CampaignHandler {
	return &CampaignHandler{
		service: svc,
		broker:  broker,
		maxCSV:  maxCSVBytes,
	}
}

// CreateCampaign godoc
// @Summary Create a campaign
// @Description Creates a bulk campaign from inline recipients and/or CSV text. Each recipient gets one rendered pending message. Set start=true to begin sending immediately.
// @Tags campaigns
// @Accept json
// @Produce json
// @Param x-dashboard-key header string true "API key for messages"
// @Param request body CreateCampaignRequest true "Campaign"
// @Success 201 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /api/v1/campaigns [post]
func (h *CampaignHandler) CreateCampaign(c echo.Context) error {
	var req CreateCampaignRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	result, err := h.service.CreateCampaign(c.Request().Context(), service.CreateCampaignInput{
		Name:       req.Name,
		ClientID:   req.ClientID,
		Template:   req.Template,
		Recipients: req.Recipients,
		CSV:        req.CSV,
		Preset:     req.Preset,
		RateLimit:  req.RateLimit,
		ABTest:     req.ABTest,
		Start:      req.Start,
	})
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, "Campaign created successfully", result)
}

// ListCampaigns godoc
// @Summary List campaigns
// @Tags campaigns
// @Produce json
// @Param x-dashboard-key header string true "API key for messages"
// @Param status query string false "Filter by status (draft, running, paused, completed, cancelled)"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Router /api/v1/campaigns [get]
func (h *CampaignHandler) ListCampaigns(c echo.Context) error {
	var status *domain.CampaignStatus
	if raw := c.QueryParam("status"); raw != "" {
		s := domain.CampaignStatus(raw)
		if !s.Valid() {
			return response.BadRequest(c, fmt.Errorf("unknown status %q", raw))
		}
		status = &s
	}

	campaigns, err := h.service.ListCampaigns(c.Request().Context(), status)
	if err != nil {
		return response.InternalServerError(c, err)
	}
	return response.Ok(c, campaigns)
}

// GetCampaign godoc
// @Summary Get a campaign
// @Tags campaigns
// @Produce json
// @Param x-dashboard-key header string true "API key for messages"
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/campaigns/{id} [get]
func (h *CampaignHandler) GetCampaign(c echo.Context) error {
	campaign, err := h.service.GetCampaign(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Ok(c, campaign)
}

// StartCampaign godoc
// @Summary Start or resume a campaign
// @Tags campaigns
// @Produce json
// @Param x-dashboard-key header string true "API key for messages"
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /api/v1/campaigns/{id}/start [post]
func (h *CampaignHandler) StartCampaign(c echo.Context) error {
	campaign, err := h.service.StartCampaign(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.OkWithMessage(c, "Campaign started", campaign)
}

// PauseCampaign godoc
// @Summary Pause a running campaign
// @Tags campaigns
// @Produce json
// @Param x-dashboard-key header string true "API key for messages"
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /api/v1/campaigns/{id}/pause [post]
func (h *CampaignHandler) PauseCampaign(c echo.Context) error {
	campaign, err := h.service.PauseCampaign(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.OkWithMessage(c, "Campaign paused", campaign)
}

// CancelCampaign godoc
// @Summary Cancel a campaign
// @Description Marks the campaign cancelled and fails every message still pending.
// @Tags campaigns
// @Produce json
// @Param x-dashboard-key header string true "API key for messages"
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Router /api/v1/campaigns/{id}/cancel [post]
func (h *CampaignHandler) CancelCampaign(c echo.Context) error {
	campaign, err := h.service.CancelCampaign(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.OkWithMessage(c, "Campaign cancelled", campaign)
}

// GetProgress godoc
// @Summary Campaign progress
// @Tags campaigns
// @Produce json
// @Param x-dashboard-key header string true "API key for messages"
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/campaigns/{id}/progress [get]
func (h *CampaignHandler) GetProgress(c echo.Context) error {
	progress, err := h.service.GetProgress(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Ok(c, progress)
}

// GetAnalytics godoc
// @Summary Campaign analytics
// @Description Delivery and read rates, average latencies and per-variant counters.
// @Tags campaigns
// @Produce json
// @Param x-dashboard-key header string true "API key for messages"
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/campaigns/{id}/analytics [get]
func (h *CampaignHandler) GetAnalytics(c echo.Context) error {
	analytics, err := h.service.GetAnalytics(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Ok(c, analytics)
}

// GetWinner godoc
// @Summary A/B test winner
// @Tags campaigns
// @Produce json
// @Param x-dashboard-key header string true "API key for messages"
// @Param id path string true "Campaign ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /api/v1/campaigns/{id}/ab-test/winner [get]
func (h *CampaignHandler) GetWinner(c echo.Context) error {
	winner, err := h.service.GetWinner(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Ok(c, winner)
}

// ParseCSV godoc
// @Summary Validate recipient CSV
// @Description Accepts the CSV as a multipart "file" field or as the raw request body. Returns the parsed recipients and per-row errors.
// @Tags campaigns
// @Accept text/csv
// @Accept mpfd
// @Produce json
// @Param x-dashboard-key header string true "API key for messages"
// @Param file formData file false "CSV file"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /api/v1/campaigns/csv/parse [post]
func (h *CampaignHandler) ParseCSV(c echo.Context) error {
	text, err := h.readCSV(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	result, err := h.service.ParseCSV(text)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Ok(c, result)
}

func (h *CampaignHandler) readCSV(c echo.Context) (string, error) {
	var src io.Reader = c.Request().Body

	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		header, err := c.FormFile("file")
		if err != nil {
			return "", fmt.Errorf("missing CSV file: %w", err)
		}
		file, err := header.Open()
		if err != nil {
			return "", err
		}
		defer file.Close()
		src = file
	}

	// one byte past the limit so the service can report the overflow
	if h.maxCSV > 0 {
		src = io.LimitReader(src, h.maxCSV+1)
	}

	raw, err := io.ReadAll(src)
	if err != nil {
		return "", fmt.Errorf("failed to read CSV: %w", err)
	}
	return string(raw), nil
}

// PreviewETA godoc
// @Summary Estimate send duration
// @Tags campaigns
// @Accept json
// @Produce json
// @Param x-dashboard-key header string true "API key for messages"
// @Param request body ETARequest true "Recipient count and rate limit"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Router /api/v1/campaigns/eta [post]
func (h *CampaignHandler) PreviewETA(c echo.Context) error {
	var req ETARequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	eta, err := h.service.PreviewETA(req.Recipients, req.Preset, req.RateLimit)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Ok(c, eta)
}

// ListPresets godoc
// @Summary Rate limit presets
// @Tags campaigns
// @Produce json
// @Param x-dashboard-key header string true "API key for messages"
// @Success 200 {object} response.SuccessResponse
// @Router /api/v1/campaigns/presets [get]
func (h *CampaignHandler) ListPresets(c echo.Context) error {
	return response.Ok(c, h.service.Presets())
}

// StreamEvents godoc
// @Summary Live campaign events
// @Description Server-sent events for one campaign: an initial progress snapshot, then message, progress and status changes. Browsers may pass the API key as the apiKey query parameter.
// @Tags campaigns
// @Produce text/event-stream
// @Param x-dashboard-key header string false "API key for messages"
// @Param apiKey query string false "API key for messages"
// @Param id path string true "Campaign ID"
// @Success 200 {string} string "event stream"
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/campaigns/{id}/events [get]
func (h *CampaignHandler) StreamEvents(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	progress, err := h.service.GetProgress(ctx, id)
	if err != nil {
		return response.FromError(c, err)
	}

	stream := h.broker.Subscribe(ctx, id)

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)

	snapshot := domain.Event{
		Type:       domain.EventCampaignProgress,
		CampaignID: id,
		Progress:   &progress,
		At:         time.Now(),
	}
	if err := writeEvent(res, snapshot); err != nil {
		return nil
	}

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-stream:
			if !ok {
				return nil
			}
			if err := writeEvent(res, event); err != nil {
				logger.Debugf("SSE client for campaign %s went away: %v", id, err)
				return nil
			}
		case <-heartbeat.C:
			if _, err := fmt.Fprint(res, ": ping\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

func writeEvent(res *echo.Response, event domain.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(res, "event: %s\ndata: %s\n\n", event.Type, payload); err != nil {
		return err
	}
	res.Flush()
	return nil
}
