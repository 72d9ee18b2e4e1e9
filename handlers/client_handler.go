package handlers

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/onurcolak/messaging-dashboard/internal/domain"
	"github.com/onurcolak/messaging-dashboard/internal/service"
	"github.com/onurcolak/messaging-dashboard/pkg/response"
	"github.com/onurcolak/messaging-dashboard/pkg/validator"
)

type ClientHandler struct {
	service *service.ClientService
}

type ClientRequest struct {
	Name        string `json:"name" validate:"required,max=255"`
	PhoneNumber string `json:"phoneNumber" validate:"required,phone"`
}

type ClientStatusRequest struct {
	Status domain.ClientStatus `json:"status" validate:"required,oneof=active paused disconnected"`
}

func NewClientHandler(svc *service.ClientService) *ClientHandler {
	return &ClientHandler{service: svc}
}

func parseClientID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid client id")
	}
	return id, nil
}

// CreateClient godoc
// @Summary Create a client
// @Description Registers a sending account. The phone number is normalized to +digits.
// @Tags clients
// @Accept json
// @Produce json
// @Param x-dashboard-key header string true "API key for messages"
// @Param request body ClientRequest true "Client"
// @Success 201 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Failure 422 {object} validator.ValidationErrorResponse
// @Router /api/v1/clients [post]
func (h *ClientHandler) CreateClient(c echo.Context) error {
	var req ClientRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	client, err := h.service.CreateClient(c.Request().Context(), service.ClientInput{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Created(c, "Client created successfully", client)
}

// ListClients godoc
// @Summary List clients
// @Tags clients
// @Produce json
// @Param x-dashboard-key header string true "API key for messages"
// @Success 200 {object} response.SuccessResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /api/v1/clients [get]
func (h *ClientHandler) ListClients(c echo.Context) error {
	clients, err := h.service.ListClients(c.Request().Context())
	if err != nil {
		return response.InternalServerError(c, err)
	}
	return response.Ok(c, clients)
}

// GetClient godoc
// @Summary Get a client
// @Tags clients
// @Produce json
// @Param x-dashboard-key header string true "API key for messages"
// @Param id path int true "Client ID"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/clients/{id} [get]
func (h *ClientHandler) GetClient(c echo.Context) error {
	id, err := parseClientID(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	client, err := h.service.GetClient(c.Request().Context(), id)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Ok(c, client)
}

// UpdateClient godoc
// @Summary Update a client
// @Tags clients
// @Accept json
// @Produce json
// @Param x-dashboard-key header string true "API key for messages"
// @Param id path int true "Client ID"
// @Param request body ClientRequest true "Client"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Failure 422 {object} validator.ValidationErrorResponse
// @Router /api/v1/clients/{id} [put]
func (h *ClientHandler) UpdateClient(c echo.Context) error {
	id, err := parseClientID(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	var req ClientRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	client, err := h.service.UpdateClient(c.Request().Context(), id, service.ClientInput{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.OkWithMessage(c, "Client updated successfully", client)
}

// SetClientStatus godoc
// @Summary Change a client's status
// @Description Paused and disconnected clients keep their queued messages pending.
// @Tags clients
// @Accept json
// @Produce json
// @Param x-dashboard-key header string true "API key for messages"
// @Param id path int true "Client ID"
// @Param request body ClientStatusRequest true "New status"
// @Success 200 {object} response.SuccessResponse
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 422 {object} validator.ValidationErrorResponse
// @Router /api/v1/clients/{id}/status [put]
func (h *ClientHandler) SetClientStatus(c echo.Context) error {
	id, err := parseClientID(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	var req ClientStatusRequest
	if err := c.Bind(&req); err != nil {
		return response.BadRequest(c, err)
	}
	if err := c.Validate(&req); err != nil {
		return validator.HandleValidationError(c, err)
	}

	client, err := h.service.SetStatus(c.Request().Context(), id, req.Status)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Ok(c, client)
}

// DeleteClient godoc
// @Summary Delete a client
// @Description Messages of the client are kept and detached from it.
// @Tags clients
// @Param x-dashboard-key header string true "API key for messages"
// @Param id path int true "Client ID"
// @Success 204
// @Failure 400 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Router /api/v1/clients/{id} [delete]
func (h *ClientHandler) DeleteClient(c echo.Context) error {
	id, err := parseClientID(c)
	if err != nil {
		return response.BadRequest(c, err)
	}

	if err := h.service.DeleteClient(c.Request().Context(), id); err != nil {
		return response.FromError(c, err)
	}
	return response.NoContent(c)
}
