package service

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
	"unicode/utf8"

	"github.com/onurcolak/messaging-dashboard/environments"
	"github.com/onurcolak/messaging-dashboard/internal/campaign"
	"github.com/onurcolak/messaging-dashboard/internal/domain"
	"github.com/onurcolak/messaging-dashboard/pkg/logger"
	"github.com/onurcolak/messaging-dashboard/pkg/metrics"
)

// Small interfaces so we can test without touching real DB/Redis/webhook.
// The repository ones are exported so the composition root can hold either
// store behind them.
type MessageRepository interface {
	GetUnsent(ctx context.Context, limit int) ([]domain.Message, error)
	MarkAsSent(ctx context.Context, id int64, messageID string, sentAt time.Time) error
	MarkAsFailed(ctx context.Context, id int64) error
	UpdateStatus(ctx context.Context, id int64, from, to domain.MessageStatus, at time.Time) error

	GetSent(ctx context.Context, page, pageSize int) ([]domain.Message, int64, error)
	GetByID(ctx context.Context, id int64) (*domain.Message, error)
	GetByProviderID(ctx context.Context, providerID string) (*domain.Message, error)
	Create(ctx context.Context, msg domain.NewMessage) (*domain.Message, error)
	GetAll(ctx context.Context, filter domain.MessageFilter, page, pageSize int) ([]domain.Message, int64, error)
	GetStats(ctx context.Context) (domain.MessageStats, error)

	ReplayFailedByID(ctx context.Context, id int64) error
	ReplayAllFailed(ctx context.Context) (int64, error)
}

type webhookClient interface {
	SendMessage(ctx context.Context, from, phoneNumber, content string) (*domain.WebhookResponse, error)
}

// SentCache remembers provider IDs of sent messages. It is optional.
type SentCache interface {
	CacheSentMessage(ctx context.Context, dbID int64, messageID string, sentAt time.Time) error
	GetAllCachedMessages(ctx context.Context) (map[int64]*domain.SentMessageCache, error)
}

type clientLookup interface {
	GetByID(ctx context.Context, id int64) (*domain.Client, error)
}

type eventPublisher interface {
	Publish(event domain.Event)
}

type sendThrottle interface {
	Wait(ctx context.Context, campaignID string) error
}

// statusListener is told whenever a campaign message changes status.
type statusListener interface {
	OnMessageStatus(ctx context.Context, campaignID string)
}

const (
	sourceCampaign = "campaign"
	sourceDirect   = "direct"
)

type MessageService struct {
	repo          MessageRepository
	webhookClient webhookClient
	redisClient   SentCache
	config        environments.MessageConfig

	clients  clientLookup
	events   eventPublisher
	throttle sendThrottle
	listener statusListener
	metrics  *metrics.Metrics
	now      func() time.Time
}

type MessageOption func(*MessageService)

func WithClientLookup(c clientLookup) MessageOption {
	return func(s *MessageService) { s.clients = c }
}

func WithEvents(e eventPublisher) MessageOption {
	return func(s *MessageService) { s.events = e }
}

func WithThrottle(t sendThrottle) MessageOption {
	return func(s *MessageService) { s.throttle = t }
}

func WithStatusListener(l statusListener) MessageOption {
	return func(s *MessageService) { s.listener = l }
}

func WithMessageMetrics(m *metrics.Metrics) MessageOption {
	return func(s *MessageService) { s.metrics = m }
}

func NewMessageService(
	repo MessageRepository,
	webhookClient webhookClient,
	redisClient SentCache,
	config environments.MessageConfig,
	opts ...MessageOption,
) *MessageService {
	s := &MessageService{
		repo:          repo,
		webhookClient: webhookClient,
		redisClient:   redisClient,
		config:        config,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessUnsentMessages sends one batch of sendable pending messages.
// failureRate (0-1) forces that share of sends to fail, for alert testing.
func (s *MessageService) ProcessUnsentMessages(ctx context.Context, failureRate float64) ([]domain.SendResult, error) {
	messages, err := s.repo.GetUnsent(ctx, s.config.BatchSize)
	if err != nil {
		return nil, fmt.Errorf("failed to get unsent messages: %w", err)
	}

	if len(messages) == 0 {
		logger.Debugf("No unsent messages to process")
		return nil, nil
	}

	logger.Infof("Processing %d unsent messages", len(messages))

	results := make([]domain.SendResult, 0, len(messages))
	senders := make(map[int64]string)
	touched := make(map[string]struct{})
	defer func() {
		// Progress is recomputed once per campaign per batch.
		for id := range touched {
			s.notifyCampaign(context.WithoutCancel(ctx), &id)
		}
	}()

	for _, msg := range messages {
		if msg.CampaignID != nil && s.throttle != nil {
			if err := s.throttle.Wait(ctx, *msg.CampaignID); err != nil {
				if ctx.Err() != nil {
					logger.Warnf("Batch interrupted after %d of %d messages: %v", len(results), len(messages), ctx.Err())
					break
				}
				logger.Errorf("Throttle rejected message %d: %v", msg.ID, err)
				continue
			}
		}

		shouldFail := rand.Float64() < failureRate

		result := s.deliverMessage(ctx, &msg, s.senderFor(ctx, msg, senders), shouldFail)
		results = append(results, result)
		if msg.CampaignID != nil {
			touched[*msg.CampaignID] = struct{}{}
		}
	}

	return results, nil
}

// senderFor resolves the from-number of msg: its client's phone, or empty to
// let the webhook client use the configured default.
func (s *MessageService) senderFor(ctx context.Context, msg domain.Message, cache map[int64]string) string {
	if msg.ClientID == nil || s.clients == nil {
		return ""
	}
	if from, ok := cache[*msg.ClientID]; ok {
		return from
	}

	client, err := s.clients.GetByID(ctx, *msg.ClientID)
	if err != nil {
		logger.Warnf("Failed to load client %d for message %d: %v", *msg.ClientID, msg.ID, err)
		return ""
	}

	cache[*msg.ClientID] = client.PhoneNumber
	return client.PhoneNumber
}

func (s *MessageService) deliverMessage(
	ctx context.Context,
	msg *domain.Message,
	from string,
	shouldFailAll bool,
) domain.SendResult {
	result := domain.SendResult{
		MessageDBID: msg.ID,
		CampaignID:  msg.CampaignID,
		SentAt:      s.now(),
	}

	source := sourceDirect
	if msg.CampaignID != nil {
		source = sourceCampaign
	}

	// Simulated failure for testing.
	if shouldFailAll {
		logger.Warnf("Simulated failure for message %d (failure rate test)", msg.ID)

		result.Success = false
		result.Error = fmt.Errorf("simulated failure for testing")
		s.markFailed(ctx, msg, source)

		return result
	}

	// Enforce max content length.
	if n := utf8.RuneCountInString(msg.Content); n > s.config.MaxContentLength {
		logger.Warnf("Message %d exceeds max content length (%d > %d)",
			msg.ID, n, s.config.MaxContentLength)
		msg.Content = truncateContent(msg.Content, s.config.MaxContentLength)
	}

	resp, err := s.webhookClient.SendMessage(ctx, from, msg.PhoneNumber, msg.Content)
	if err != nil {
		logger.Errorf("Failed to send message %d: %v", msg.ID, err)
		result.Success = false
		result.Error = err
		s.markFailed(ctx, msg, source)

		return result
	}

	if err := s.repo.MarkAsSent(ctx, msg.ID, resp.MessageID, result.SentAt); err != nil {
		logger.Errorf("Failed to mark message %d as sent: %v", msg.ID, err)
		result.Success = false
		result.Error = err
		return result
	}

	if s.redisClient != nil {
		if err := s.redisClient.CacheSentMessage(ctx, msg.ID, resp.MessageID, result.SentAt); err != nil {
			logger.Warnf("Failed to cache message %d to Redis: %v", msg.ID, err)
		}
	}

	logger.Infof("Successfully sent message %d (webhookMessageId: %s)", msg.ID, resp.MessageID)
	s.metrics.MessageSent(source)
	s.statusChanged(msg, domain.StatusSent, result.SentAt)

	result.Success = true
	result.MessageID = resp.MessageID

	return result
}

func (s *MessageService) markFailed(ctx context.Context, msg *domain.Message, source string) {
	s.metrics.MessageFailed(source)

	if err := s.repo.MarkAsFailed(ctx, msg.ID); err != nil {
		logger.Errorf("Failed to mark message %d as failed: %v", msg.ID, err)
		return
	}

	s.statusChanged(msg, domain.StatusFailed, s.now())
}

func (s *MessageService) statusChanged(msg *domain.Message, status domain.MessageStatus, at time.Time) {
	event := domain.Event{
		Type:      domain.EventMessageStatus,
		MessageID: msg.ID,
		Status:    string(status),
		At:        at,
	}
	if msg.CampaignID != nil {
		event.CampaignID = *msg.CampaignID
	}

	if s.events != nil {
		s.events.Publish(event)
	}
}

func (s *MessageService) notifyCampaign(ctx context.Context, campaignID *string) {
	if campaignID != nil && s.listener != nil {
		s.listener.OnMessageStatus(ctx, *campaignID)
	}
}

// ApplyStatusUpdate records a provider delivery receipt. Receipts repeating
// the current status are accepted without change.
func (s *MessageService) ApplyStatusUpdate(ctx context.Context, update domain.StatusUpdate) (*domain.Message, error) {
	msg, err := s.repo.GetByProviderID(ctx, update.MessageID)
	if err != nil {
		return nil, err
	}

	if msg.Status == update.Status {
		return msg, nil
	}

	if !msg.Status.CanTransitionTo(update.Status) {
		return nil, fmt.Errorf("message %s: %s -> %s: %w",
			update.MessageID, msg.Status, update.Status, domain.ErrInvalidTransition)
	}

	at := s.now()
	if update.Timestamp != nil {
		at = *update.Timestamp
	}

	if err := s.repo.UpdateStatus(ctx, msg.ID, msg.Status, update.Status, at); err != nil {
		return nil, err
	}

	s.metrics.StatusUpdated(string(update.Status))
	logger.Debugf("Message %d moved %s -> %s", msg.ID, msg.Status, update.Status)

	msg.Status = update.Status
	s.statusChanged(msg, update.Status, at)
	s.notifyCampaign(ctx, msg.CampaignID)

	return msg, nil
}

func (s *MessageService) GetSentMessages(ctx context.Context, page, pageSize int) ([]domain.Message, int64, error) {
	return s.repo.GetSent(ctx, page, pageSize)
}

func (s *MessageService) GetMessage(ctx context.Context, id int64) (*domain.Message, error) {
	return s.repo.GetByID(ctx, id)
}

// CreateMessage queues a standalone message. The phone number is stored
// normalized; a client, when given, must exist.
func (s *MessageService) CreateMessage(ctx context.Context, content, phoneNumber string, clientID *int64) (*domain.Message, error) {
	if utf8.RuneCountInString(content) > s.config.MaxContentLength {
		return nil, fmt.Errorf("%w: content exceeds maximum length of %d characters",
			domain.ErrInvalidInput, s.config.MaxContentLength)
	}

	if !campaign.IsValidPhoneNumber(phoneNumber) {
		return nil, fmt.Errorf("%w: invalid phone number %q", domain.ErrInvalidInput, phoneNumber)
	}

	if clientID != nil && s.clients != nil {
		if _, err := s.clients.GetByID(ctx, *clientID); err != nil {
			return nil, err
		}
	}

	return s.repo.Create(ctx, domain.NewMessage{
		ClientID:    clientID,
		Content:     content,
		PhoneNumber: campaign.NormalizePhoneNumber(phoneNumber),
	})
}

func (s *MessageService) GetAllMessages(
	ctx context.Context,
	filter domain.MessageFilter,
	page,
	pageSize int,
) ([]domain.Message, int64, error) {
	return s.repo.GetAll(ctx, filter, page, pageSize)
}

func (s *MessageService) GetStats(ctx context.Context) (domain.MessageStats, error) {
	return s.repo.GetStats(ctx)
}

func (s *MessageService) GetCachedMessages(ctx context.Context) (map[int64]*domain.SentMessageCache, error) {
	if s.redisClient == nil {
		return nil, fmt.Errorf("redis client not configured")
	}
	return s.redisClient.GetAllCachedMessages(ctx)
}

func (s *MessageService) ReplayFailedMessage(ctx context.Context, id int64) error {
	return s.repo.ReplayFailedByID(ctx, id)
}

func (s *MessageService) ReplayAllFailedMessages(ctx context.Context) (int64, error) {
	return s.repo.ReplayAllFailed(ctx)
}

// truncateContent shortens content to max characters, ending in "..." when
// there is room for it. It never splits a multi-byte character.
func truncateContent(content string, max int) string {
	const ellipsis = "..."

	if max <= len(ellipsis) {
		return prefixRunes(content, max)
	}
	return prefixRunes(content, max-len(ellipsis)) + ellipsis
}

func prefixRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
