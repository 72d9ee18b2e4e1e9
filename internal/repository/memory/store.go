// Package memory is an in-process store with the same behaviour as the MySQL
// repositories. It backs STORAGE_DRIVER=memory and the service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/onurcolak/messaging-dashboard/internal/domain"
)

// Store holds all tables behind one lock so cross-table reads such as
// GetUnsent see a consistent view.
type Store struct {
	mu sync.RWMutex

	now func() time.Time

	messages  map[int64]*domain.Message
	clients   map[int64]*domain.Client
	campaigns map[string]*domain.Campaign

	nextMessageID int64
	nextClientID  int64
}

func New() *Store {
	return &Store{
		now:       time.Now,
		messages:  make(map[int64]*domain.Message),
		clients:   make(map[int64]*domain.Client),
		campaigns: make(map[string]*domain.Campaign),
	}
}

// Messages, Clients and Campaigns return repositories over the shared store.
func (s *Store) Messages() *MessageRepository   { return &MessageRepository{s: s} }
func (s *Store) Clients() *ClientRepository     { return &ClientRepository{s: s} }
func (s *Store) Campaigns() *CampaignRepository { return &CampaignRepository{s: s} }

func (s *Store) insertMessage(m domain.Message) *domain.Message {
	s.nextMessageID++
	now := s.now()
	m.ID = s.nextMessageID
	m.Status = domain.StatusPending
	m.CreatedAt = now
	m.UpdatedAt = now
	s.messages[m.ID] = &m
	return &m
}

func (s *Store) sortedMessages(keep func(*domain.Message) bool) []domain.Message {
	out := []domain.Message{}
	for _, m := range s.messages {
		if keep(m) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func paginate[T any](items []T, page, pageSize int) []T {
	start := (page - 1) * pageSize
	if start < 0 || start >= len(items) {
		return []T{}
	}
	end := min(start+pageSize, len(items))
	return items[start:end]
}

type MessageRepository struct {
	s *Store
}

func (r *MessageRepository) GetUnsent(ctx context.Context, limit int) ([]domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := r.s.sortedMessages(func(m *domain.Message) bool {
		if m.Status != domain.StatusPending {
			return false
		}
		if m.CampaignID != nil {
			c, ok := r.s.campaigns[*m.CampaignID]
			if !ok || c.Status != domain.CampaignRunning {
				return false
			}
		}
		if m.ClientID != nil {
			c, ok := r.s.clients[*m.ClientID]
			if ok && c.Status != domain.ClientActive {
				return false
			}
		}
		return true
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MessageRepository) MarkAsSent(ctx context.Context, id int64, messageID string, sentAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.messages[id]
	if !ok || m.Status != domain.StatusPending {
		return fmt.Errorf("message %d is not pending: %w", id, domain.ErrConflict)
	}

	m.Status = domain.StatusSent
	m.MessageID = &messageID
	m.SentAt = &sentAt
	m.UpdatedAt = r.s.now()
	return nil
}

func (r *MessageRepository) MarkAsFailed(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if m, ok := r.s.messages[id]; ok {
		m.Status = domain.StatusFailed
		m.UpdatedAt = r.s.now()
	}
	return nil
}

func (r *MessageRepository) UpdateStatus(
	ctx context.Context,
	id int64,
	from, to domain.MessageStatus,
	at time.Time,
) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.messages[id]
	if !ok || m.Status != from {
		return fmt.Errorf("message %d changed status concurrently: %w", id, domain.ErrConflict)
	}

	m.Status = to
	switch to {
	case domain.StatusSent:
		if m.SentAt == nil {
			m.SentAt = &at
		}
	case domain.StatusDelivered:
		m.DeliveredAt = &at
	case domain.StatusRead:
		if m.DeliveredAt == nil {
			m.DeliveredAt = &at
		}
		m.ReadAt = &at
	}
	m.UpdatedAt = r.s.now()
	return nil
}

func (r *MessageRepository) GetSent(ctx context.Context, page, pageSize int) ([]domain.Message, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sent := r.s.sortedMessages(func(m *domain.Message) bool {
		return m.Status == domain.StatusSent || m.Status == domain.StatusDelivered || m.Status == domain.StatusRead
	})
	sort.SliceStable(sent, func(i, j int) bool {
		return sentAt(sent[i]).After(sentAt(sent[j]))
	})

	return paginate(sent, page, pageSize), int64(len(sent)), nil
}

func sentAt(m domain.Message) time.Time {
	if m.SentAt == nil {
		return time.Time{}
	}
	return *m.SentAt
}

func (r *MessageRepository) GetByID(ctx context.Context, id int64) (*domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	m, ok := r.s.messages[id]
	if !ok {
		return nil, fmt.Errorf("message %d: %w", id, domain.ErrNotFound)
	}
	cp := *m
	return &cp, nil
}

func (r *MessageRepository) GetByProviderID(ctx context.Context, providerID string) (*domain.Message, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, m := range r.s.messages {
		if m.MessageID != nil && *m.MessageID == providerID {
			cp := *m
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("message %q: %w", providerID, domain.ErrNotFound)
}

func (r *MessageRepository) Create(ctx context.Context, msg domain.NewMessage) (*domain.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m := r.s.insertMessage(domain.Message{
		ClientID:    msg.ClientID,
		Content:     msg.Content,
		PhoneNumber: msg.PhoneNumber,
	})
	cp := *m
	return &cp, nil
}

func (r *MessageRepository) GetAll(
	ctx context.Context,
	filter domain.MessageFilter,
	page, pageSize int,
) ([]domain.Message, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	all := r.s.sortedMessages(func(m *domain.Message) bool {
		if filter.Status != nil && m.Status != *filter.Status {
			return false
		}
		if filter.ClientID != nil && (m.ClientID == nil || *m.ClientID != *filter.ClientID) {
			return false
		}
		if filter.CampaignID != nil && (m.CampaignID == nil || *m.CampaignID != *filter.CampaignID) {
			return false
		}
		return true
	})

	// newest first, like the SQL listing
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}

	return paginate(all, page, pageSize), int64(len(all)), nil
}

func (r *MessageRepository) GetStats(ctx context.Context) (domain.MessageStats, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var stats domain.MessageStats
	for _, m := range r.s.messages {
		switch m.Status {
		case domain.StatusPending:
			stats.Pending++
		case domain.StatusSent:
			stats.Sent++
		case domain.StatusDelivered:
			stats.Delivered++
		case domain.StatusRead:
			stats.Read++
		case domain.StatusFailed:
			stats.Failed++
		}
	}
	return stats, nil
}

func (r *MessageRepository) ReplayFailedByID(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.messages[id]
	if !ok || m.Status != domain.StatusFailed {
		return fmt.Errorf("no failed message with id %d: %w", id, domain.ErrNotFound)
	}
	if m.CampaignID != nil {
		if c, ok := r.s.campaigns[*m.CampaignID]; ok && c.Status.Terminal() {
			return fmt.Errorf("message %d belongs to a %s campaign: %w", id, c.Status, domain.ErrConflict)
		}
	}
	r.s.resetMessage(m)
	return nil
}

func (r *MessageRepository) ReplayAllFailed(ctx context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for _, m := range r.s.messages {
		if m.Status != domain.StatusFailed {
			continue
		}
		if m.CampaignID != nil {
			if c, ok := r.s.campaigns[*m.CampaignID]; !ok || c.Status.Terminal() {
				continue
			}
		}
		r.s.resetMessage(m)
		n++
	}
	return n, nil
}

func (s *Store) resetMessage(m *domain.Message) {
	m.Status = domain.StatusPending
	m.MessageID = nil
	m.SentAt = nil
	m.DeliveredAt = nil
	m.ReadAt = nil
	m.UpdatedAt = s.now()
}

type ClientRepository struct {
	s *Store
}

func (r *ClientRepository) phoneTaken(phone string, except int64) bool {
	for _, c := range r.s.clients {
		if c.ID != except && c.PhoneNumber == phone {
			return true
		}
	}
	return false
}

func (r *ClientRepository) Create(ctx context.Context, client *domain.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if r.phoneTaken(client.PhoneNumber, 0) {
		return fmt.Errorf("client with phone %s already exists: %w", client.PhoneNumber, domain.ErrConflict)
	}

	r.s.nextClientID++
	now := r.s.now()
	client.ID = r.s.nextClientID
	client.CreatedAt = now
	client.UpdatedAt = now

	cp := *client
	r.s.clients[cp.ID] = &cp
	return nil
}

func (r *ClientRepository) GetByID(ctx context.Context, id int64) (*domain.Client, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.clients[id]
	if !ok {
		return nil, fmt.Errorf("client %d: %w", id, domain.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (r *ClientRepository) List(ctx context.Context) ([]domain.Client, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]domain.Client, 0, len(r.s.clients))
	for _, c := range r.s.clients {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *ClientRepository) Update(ctx context.Context, client *domain.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.clients[client.ID]
	if !ok {
		return fmt.Errorf("client %d: %w", client.ID, domain.ErrNotFound)
	}
	if r.phoneTaken(client.PhoneNumber, client.ID) {
		return fmt.Errorf("client with phone %s already exists: %w", client.PhoneNumber, domain.ErrConflict)
	}

	c.Name = client.Name
	c.PhoneNumber = client.PhoneNumber
	c.UpdatedAt = r.s.now()
	*client = *c
	return nil
}

func (r *ClientRepository) UpdateStatus(ctx context.Context, id int64, status domain.ClientStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.clients[id]
	if !ok {
		return fmt.Errorf("client %d: %w", id, domain.ErrNotFound)
	}
	c.Status = status
	c.UpdatedAt = r.s.now()
	return nil
}

func (r *ClientRepository) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.clients[id]; !ok {
		return fmt.Errorf("client %d: %w", id, domain.ErrNotFound)
	}
	delete(r.s.clients, id)

	// ON DELETE SET NULL
	for _, m := range r.s.messages {
		if m.ClientID != nil && *m.ClientID == id {
			m.ClientID = nil
		}
	}
	for _, c := range r.s.campaigns {
		if c.ClientID != nil && *c.ClientID == id {
			c.ClientID = nil
		}
	}
	return nil
}

type CampaignRepository struct {
	s *Store
}

func (r *CampaignRepository) Create(
	ctx context.Context,
	campaign *domain.Campaign,
	recipients []domain.CampaignRecipient,
) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.campaigns[campaign.ID]; exists {
		return fmt.Errorf("campaign %s already exists: %w", campaign.ID, domain.ErrConflict)
	}

	cp := *campaign
	r.s.campaigns[cp.ID] = &cp

	for _, rc := range recipients {
		id := campaign.ID
		r.s.insertMessage(domain.Message{
			ClientID:    campaign.ClientID,
			CampaignID:  &id,
			VariantID:   rc.VariantID,
			Content:     rc.Content,
			PhoneNumber: rc.PhoneNumber,
		})
	}
	return nil
}

func (r *CampaignRepository) GetByID(ctx context.Context, id string) (*domain.Campaign, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("campaign %s: %w", id, domain.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (r *CampaignRepository) List(ctx context.Context, status *domain.CampaignStatus) ([]domain.Campaign, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []domain.Campaign{}
	for _, c := range r.s.campaigns {
		if status != nil && c.Status != *status {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *CampaignRepository) UpdateStatus(
	ctx context.Context,
	id string,
	from, to domain.CampaignStatus,
	at time.Time,
) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.campaigns[id]
	if !ok || c.Status != from {
		return fmt.Errorf("campaign %s is no longer %s: %w", id, from, domain.ErrConflict)
	}

	c.Status = to
	c.UpdatedAt = at
	switch to {
	case domain.CampaignRunning:
		if c.StartedAt == nil {
			c.StartedAt = &at
		}
	case domain.CampaignCompleted, domain.CampaignCancelled:
		c.CompletedAt = &at
	}
	return nil
}

func (r *CampaignRepository) campaignMessages(id string) []domain.Message {
	return r.s.sortedMessages(func(m *domain.Message) bool {
		return m.CampaignID != nil && *m.CampaignID == id
	})
}

func (r *CampaignRepository) StatusCounts(ctx context.Context, id string) (map[domain.MessageStatus]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[domain.MessageStatus]int)
	for _, m := range r.campaignMessages(id) {
		counts[m.Status]++
	}
	return counts, nil
}

func (r *CampaignRepository) RecipientAnalytics(ctx context.Context, id string) ([]domain.RecipientAnalytics, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	msgs := r.campaignMessages(id)
	out := make([]domain.RecipientAnalytics, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, domain.RecipientAnalytics{
			PhoneNumber: m.PhoneNumber,
			VariantID:   m.VariantID,
			Status:      m.Status,
			SentAt:      m.SentAt,
			DeliveredAt: m.DeliveredAt,
			ReadAt:      m.ReadAt,
		})
	}
	return out, nil
}

func (r *CampaignRepository) FailPending(ctx context.Context, id string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	now := r.s.now()
	for _, m := range r.s.messages {
		if m.CampaignID != nil && *m.CampaignID == id && m.Status == domain.StatusPending {
			m.Status = domain.StatusFailed
			m.UpdatedAt = now
			n++
		}
	}
	return n, nil
}
