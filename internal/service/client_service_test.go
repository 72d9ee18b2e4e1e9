package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onurcolak/messaging-dashboard/internal/domain"
	"github.com/onurcolak/messaging-dashboard/internal/repository/memory"
)

func TestClientService_CreateNormalizesPhone(t *testing.T) {
	ctx := context.Background()
	svc := NewClientService(memory.New().Clients())

	client, err := svc.CreateClient(ctx, ClientInput{Name: "  Acme ", PhoneNumber: "(555) 123-4567"})
	require.NoError(t, err)

	assert.Equal(t, "Acme", client.Name)
	assert.Equal(t, "+5551234567", client.PhoneNumber)
	assert.Equal(t, domain.ClientActive, client.Status)

	_, err = svc.CreateClient(ctx, ClientInput{Name: "Dup", PhoneNumber: "+5551234567"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestClientService_RejectsBadInput(t *testing.T) {
	svc := NewClientService(memory.New().Clients())

	tests := []struct {
		name string
		in   ClientInput
	}{
		{name: "short phone", in: ClientInput{Name: "A", PhoneNumber: "12345"}},
		{name: "blank name", in: ClientInput{Name: " ", PhoneNumber: "+905551234567"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateClient(context.Background(), tt.in)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestClientService_UpdateAndStatus(t *testing.T) {
	ctx := context.Background()
	svc := NewClientService(memory.New().Clients())

	client, err := svc.CreateClient(ctx, ClientInput{Name: "A", PhoneNumber: "+905551234567"})
	require.NoError(t, err)

	updated, err := svc.UpdateClient(ctx, client.ID, ClientInput{Name: "B", PhoneNumber: "905559999999"})
	require.NoError(t, err)
	assert.Equal(t, "B", updated.Name)
	assert.Equal(t, "+905559999999", updated.PhoneNumber)

	paused, err := svc.SetStatus(ctx, client.ID, domain.ClientPaused)
	require.NoError(t, err)
	assert.Equal(t, domain.ClientPaused, paused.Status)

	_, err = svc.SetStatus(ctx, client.ID, domain.ClientStatus("sleeping"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	require.NoError(t, svc.DeleteClient(ctx, client.ID))
	_, err = svc.GetClient(ctx, client.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	list, err := svc.ListClients(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
