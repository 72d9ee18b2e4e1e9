package response

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/onurcolak/messaging-dashboard/internal/domain"
)

type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type PaginatedResponse struct {
	Success    bool  `json:"success"`
	Data       any   `json:"data"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalCount int64 `json:"totalCount"`
	TotalPages int   `json:"totalPages"`
}

func success(c echo.Context, code int, message string, data any) error {
	return c.JSON(code, SuccessResponse{Success: true, Message: message, Data: data})
}

func failure(c echo.Context, code int, message string) error {
	return c.JSON(code, ErrorResponse{Error: message})
}

func Ok(c echo.Context, data any) error {
	return success(c, http.StatusOK, "", data)
}

func OkWithMessage(c echo.Context, message string, data any) error {
	return success(c, http.StatusOK, message, data)
}

func Created(c echo.Context, message string, data any) error {
	return success(c, http.StatusCreated, message, data)
}

func NoContent(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

func BadRequest(c echo.Context, err error) error {
	return failure(c, http.StatusBadRequest, err.Error())
}

func Unauthorized(c echo.Context) error {
	return failure(c, http.StatusUnauthorized, "Invalid or missing API key")
}

func InternalServerError(c echo.Context, err error) error {
	return failure(c, http.StatusInternalServerError, err.Error())
}

// Paginated wraps one page of a listing. pageSize must be positive.
func Paginated(c echo.Context, data any, page, pageSize int, totalCount int64) error {
	totalPages := int((totalCount + int64(pageSize) - 1) / int64(pageSize))

	return c.JSON(http.StatusOK, PaginatedResponse{
		Success:    true,
		Data:       data,
		Page:       page,
		PageSize:   pageSize,
		TotalCount: totalCount,
		TotalPages: totalPages,
	})
}

// FromError maps service errors onto HTTP responses. Anything that does not
// wrap a domain error is a 500.
func FromError(c echo.Context, err error) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidTransition):
		code = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput):
		code = http.StatusUnprocessableEntity
	}
	return failure(c, code, err.Error())
}
