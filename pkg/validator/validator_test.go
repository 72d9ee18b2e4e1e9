package validator

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type contactRequest struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone" validate:"required,phone"`
}

type bulkRequest struct {
	Title    string           `json:"title" validate:"required"`
	Contacts []contactRequest `json:"contacts" validate:"dive"`
}

func validationErrors(t *testing.T, err error) map[string]string {
	t.Helper()

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	return ve.Errors
}

func TestCustomValidator_KeysByJSONPath(t *testing.T) {
	cv := New()

	err := cv.Validate(bulkRequest{
		Contacts: []contactRequest{
			{Name: "Ann", Phone: "+905551234567"},
			{Name: "", Phone: "12"},
		},
	})

	got := validationErrors(t, err)
	assert.Len(t, got, 3)
	assert.Contains(t, got, "title")
	assert.Contains(t, got, "contacts[1].name")
	assert.Equal(t, "phone must be a phone number with 10 to 15 digits", got["contacts[1].phone"])
}

func TestCustomValidator_PhoneTag(t *testing.T) {
	cv := New()

	tests := []struct {
		phone string
		ok    bool
	}{
		{phone: "+90 (555) 123-45-67", ok: true},
		{phone: "5551234567", ok: true},
		{phone: "12345", ok: false},
		{phone: "+1234567890123456", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.phone, func(t *testing.T) {
			err := cv.Validate(contactRequest{Name: "x", Phone: tt.phone})
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.Contains(t, validationErrors(t, err), "phone")
		})
	}
}

func TestValidationError_MessageIsSorted(t *testing.T) {
	ve := &ValidationError{Errors: map[string]string{"b": "second", "a": "first"}}
	assert.Equal(t, "a: first; b: second", ve.Error())
}

func TestHandleValidationError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantError  string
		wantDetail bool
	}{
		{
			name:       "validation failure",
			err:        New().Validate(contactRequest{}),
			wantCode:   http.StatusUnprocessableEntity,
			wantError:  "Validation failed",
			wantDetail: true,
		},
		{
			name:      "other error",
			err:       errors.New("bad payload"),
			wantCode:  http.StatusBadRequest,
			wantError: "bad payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := echo.New().NewContext(httptest.NewRequest(http.MethodPost, "/test", nil), rec)

			require.NoError(t, HandleValidationError(c, tt.err))
			assert.Equal(t, tt.wantCode, rec.Code)

			var body ValidationErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.wantError, body.Error)
			assert.Equal(t, tt.wantDetail, len(body.Details) > 0)
		})
	}
}
