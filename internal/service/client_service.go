package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/onurcolak/messaging-dashboard/internal/campaign"
	"github.com/onurcolak/messaging-dashboard/internal/domain"
	"github.com/onurcolak/messaging-dashboard/pkg/logger"
)

type ClientRepository interface {
	Create(ctx context.Context, client *domain.Client) error
	GetByID(ctx context.Context, id int64) (*domain.Client, error)
	List(ctx context.Context) ([]domain.Client, error)
	Update(ctx context.Context, client *domain.Client) error
	UpdateStatus(ctx context.Context, id int64, status domain.ClientStatus) error
	Delete(ctx context.Context, id int64) error
}

type ClientService struct {
	repo ClientRepository
}

func NewClientService(repo ClientRepository) *ClientService {
	return &ClientService{repo: repo}
}

// ClientInput carries the editable fields of a client.
type ClientInput struct {
	Name        string
	PhoneNumber string
}

func (in ClientInput) normalize() (ClientInput, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return in, fmt.Errorf("%w: client name is required", domain.ErrInvalidInput)
	}
	if !campaign.IsValidPhoneNumber(in.PhoneNumber) {
		return in, fmt.Errorf("%w: invalid phone number %q", domain.ErrInvalidInput, in.PhoneNumber)
	}
	in.PhoneNumber = campaign.NormalizePhoneNumber(in.PhoneNumber)
	return in, nil
}

// CreateClient registers a new active client.
func (s *ClientService) CreateClient(ctx context.Context, in ClientInput) (*domain.Client, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	client := &domain.Client{
		Name:        in.Name,
		PhoneNumber: in.PhoneNumber,
		Status:      domain.ClientActive,
	}
	if err := s.repo.Create(ctx, client); err != nil {
		return nil, err
	}

	logger.Infof("Client %d registered (%s)", client.ID, client.PhoneNumber)
	return client, nil
}

func (s *ClientService) GetClient(ctx context.Context, id int64) (*domain.Client, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *ClientService) ListClients(ctx context.Context) ([]domain.Client, error) {
	return s.repo.List(ctx)
}

func (s *ClientService) UpdateClient(ctx context.Context, id int64, in ClientInput) (*domain.Client, error) {
	in, err := in.normalize()
	if err != nil {
		return nil, err
	}

	client := &domain.Client{ID: id, Name: in.Name, PhoneNumber: in.PhoneNumber}
	if err := s.repo.Update(ctx, client); err != nil {
		return nil, err
	}

	return client, nil
}

// SetStatus changes whether the client's messages are dispatched. Messages of
// a paused or disconnected client stay pending.
func (s *ClientService) SetStatus(ctx context.Context, id int64, status domain.ClientStatus) (*domain.Client, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown client status %q", domain.ErrInvalidInput, status)
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}

	logger.Infof("Client %d is now %s", id, status)
	return s.repo.GetByID(ctx, id)
}

func (s *ClientService) DeleteClient(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
