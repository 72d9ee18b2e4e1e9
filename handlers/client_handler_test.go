package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onurcolak/messaging-dashboard/internal/domain"
)

func TestClientHandler_CRUD(t *testing.T) {
	env := newTestEnv(t)
	h := NewClientHandler(env.clients)

	rec := env.do(h.CreateClient, http.MethodPost, "/api/v1/clients",
		`{"name":"Acme","phoneNumber":"+90 555 123 4567"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created domain.Client
	decode(t, rec, &created)
	assert.Equal(t, "+905551234567", created.PhoneNumber)
	assert.Equal(t, domain.ClientActive, created.Status)
	id := itoa(created.ID)

	rec = env.do(h.CreateClient, http.MethodPost, "/api/v1/clients",
		`{"name":"Copy","phoneNumber":"905551234567"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(h.UpdateClient, http.MethodPut, "/api/v1/clients/"+id,
		`{"name":"Acme Ltd","phoneNumber":"+905551234567"}`, "id", id)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(h.SetClientStatus, http.MethodPut, "/api/v1/clients/"+id+"/status",
		`{"status":"paused"}`, "id", id)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var paused domain.Client
	decode(t, rec, &paused)
	assert.Equal(t, "Acme Ltd", paused.Name)
	assert.Equal(t, domain.ClientPaused, paused.Status)

	rec = env.do(h.ListClients, http.MethodGet, "/api/v1/clients", "")
	var list []domain.Client
	decode(t, rec, &list)
	assert.Len(t, list, 1)

	rec = env.do(h.DeleteClient, http.MethodDelete, "/api/v1/clients/"+id, "", "id", id)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(h.GetClient, http.MethodGet, "/api/v1/clients/"+id, "", "id", id)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestClientHandler_Validation(t *testing.T) {
	env := newTestEnv(t)
	h := NewClientHandler(env.clients)

	tests := []struct {
		name   string
		call   func() int
		status int
	}{
		{
			name: "short phone",
			call: func() int {
				return env.do(h.CreateClient, http.MethodPost, "/api/v1/clients",
					`{"name":"A","phoneNumber":"123"}`).Code
			},
			status: http.StatusUnprocessableEntity,
		},
		{
			name: "unknown status",
			call: func() int {
				return env.do(h.SetClientStatus, http.MethodPut, "/api/v1/clients/1/status",
					`{"status":"sleeping"}`, "id", "1").Code
			},
			status: http.StatusUnprocessableEntity,
		},
		{
			name: "bad id",
			call: func() int {
				return env.do(h.GetClient, http.MethodGet, "/api/v1/clients/zero", "", "id", "zero").Code
			},
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, tt.call())
		})
	}
}
