package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/onurcolak/messaging-dashboard/environments"
	"github.com/onurcolak/messaging-dashboard/internal/campaign"
	"github.com/onurcolak/messaging-dashboard/internal/domain"
	"github.com/onurcolak/messaging-dashboard/pkg/logger"
	"github.com/onurcolak/messaging-dashboard/pkg/metrics"
)

type CampaignRepository interface {
	Create(ctx context.Context, campaign *domain.Campaign, recipients []domain.CampaignRecipient) error
	GetByID(ctx context.Context, id string) (*domain.Campaign, error)
	List(ctx context.Context, status *domain.CampaignStatus) ([]domain.Campaign, error)
	UpdateStatus(ctx context.Context, id string, from, to domain.CampaignStatus, at time.Time) error
	StatusCounts(ctx context.Context, id string) (map[domain.MessageStatus]int, error)
	RecipientAnalytics(ctx context.Context, id string) ([]domain.RecipientAnalytics, error)
	FailPending(ctx context.Context, id string) (int64, error)
}

type progressCache interface {
	CacheProgress(ctx context.Context, campaignID string, progress domain.CampaignProgress) error
	GetCachedProgress(ctx context.Context, campaignID string) (*domain.CampaignProgress, error)
}

type templateRenderer interface {
	Validate(source string) error
	Render(source string, recipient domain.Recipient) (string, error)
}

type limiterRegistry interface {
	Forget(campaignID string)
}

type CampaignService struct {
	repo     CampaignRepository
	renderer templateRenderer
	presets  []domain.RateLimitPreset
	config   environments.CampaignConfig

	clients  clientLookup
	cache    progressCache
	events   eventPublisher
	limiters limiterRegistry
	metrics  *metrics.Metrics
	now      func() time.Time

	maxContentLength int
}

type CampaignOption func(*CampaignService)

func WithCampaignClients(c clientLookup) CampaignOption {
	return func(s *CampaignService) { s.clients = c }
}

func WithProgressCache(c progressCache) CampaignOption {
	return func(s *CampaignService) { s.cache = c }
}

func WithCampaignEvents(e eventPublisher) CampaignOption {
	return func(s *CampaignService) { s.events = e }
}

func WithLimiterRegistry(l limiterRegistry) CampaignOption {
	return func(s *CampaignService) { s.limiters = l }
}

func WithCampaignMetrics(m *metrics.Metrics) CampaignOption {
	return func(s *CampaignService) { s.metrics = m }
}

// WithMaxContentLength rejects campaigns whose rendered content is longer
// than n characters. Zero disables the check.
func WithMaxContentLength(n int) CampaignOption {
	return func(s *CampaignService) { s.maxContentLength = n }
}

func NewCampaignService(
	repo CampaignRepository,
	renderer templateRenderer,
	presets []domain.RateLimitPreset,
	config environments.CampaignConfig,
	opts ...CampaignOption,
) *CampaignService {
	if len(presets) == 0 {
		presets = campaign.DefaultPresets()
	}

	s := &CampaignService{
		repo:     repo,
		renderer: renderer,
		presets:  presets,
		config:   config,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateCampaignInput describes a new campaign. Recipients come from the
// inline list, the CSV text, or both. RateLimit wins over Preset; with
// neither, the configured default preset applies.
type CreateCampaignInput struct {
	Name       string
	ClientID   *int64
	Template   string
	Recipients []domain.Recipient
	CSV        string
	Preset     string
	RateLimit  *domain.RateLimitConfig
	ABTest     domain.ABTestConfig
	Start      bool
}

type CreateCampaignResult struct {
	Campaign  *domain.Campaign     `json:"campaign"`
	ETA       domain.ETA           `json:"eta"`
	CSVErrors []domain.CSVRowError `json:"csvErrors,omitempty"`
}

// CreateCampaign validates the input, renders one message per recipient and
// stores the campaign with its pending messages.
func (s *CampaignService) CreateCampaign(ctx context.Context, in CreateCampaignInput) (*CreateCampaignResult, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: campaign name is required", domain.ErrInvalidInput)
	}

	ab := in.ABTest
	useVariants := ab.Enabled && len(ab.Variants) > 0
	if in.Template == "" && !useVariants {
		return nil, fmt.Errorf("%w: a template or A/B variants are required", domain.ErrInvalidInput)
	}

	if in.ClientID != nil && s.clients != nil {
		if _, err := s.clients.GetByID(ctx, *in.ClientID); err != nil {
			return nil, err
		}
	}

	recipients, csvErrors, err := s.collectRecipients(in)
	if err != nil {
		return nil, err
	}

	rateLimit, err := s.resolveRateLimit(in.Preset, in.RateLimit)
	if err != nil {
		return nil, err
	}

	if err := campaign.ValidateWeights(ab); err != nil {
		return nil, err
	}

	ab.Variants = prepareVariants(ab.Variants)
	if err := s.validateTemplates(in.Template, ab.Variants); err != nil {
		return nil, err
	}

	now := s.now()
	c := &domain.Campaign{
		ID:              uuid.NewString(),
		ClientID:        in.ClientID,
		Name:            name,
		Template:        in.Template,
		Status:          domain.CampaignDraft,
		RateLimit:       rateLimit,
		ABTest:          ab,
		TotalRecipients: len(recipients),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if in.Start {
		c.Status = domain.CampaignRunning
		c.StartedAt = &now
	}

	rendered, err := s.renderRecipients(c, recipients)
	if err != nil {
		return nil, err
	}

	eta, err := campaign.CalculateETA(len(recipients), rateLimit, now)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, c, rendered); err != nil {
		return nil, err
	}

	s.metrics.CampaignCreated()
	s.publishStatus(c.ID, c.Status, now)
	logger.With("campaignId", c.ID, "status", c.Status).
		Infof("Campaign created with %d recipients (ETA %s)", c.TotalRecipients, eta.Formatted)

	return &CreateCampaignResult{Campaign: c, ETA: eta, CSVErrors: csvErrors}, nil
}

func (s *CampaignService) collectRecipients(in CreateCampaignInput) ([]domain.Recipient, []domain.CSVRowError, error) {
	recipients := make([]domain.Recipient, 0, len(in.Recipients))
	for i, r := range in.Recipients {
		if !campaign.IsValidPhoneNumber(r.PhoneNumber) {
			return nil, nil, fmt.Errorf("%w: recipient %d has invalid phone number %q",
				domain.ErrInvalidInput, i+1, r.PhoneNumber)
		}
		r.PhoneNumber = campaign.NormalizePhoneNumber(r.PhoneNumber)
		recipients = append(recipients, r)
	}

	var csvErrors []domain.CSVRowError
	if strings.TrimSpace(in.CSV) != "" {
		parsed, err := s.ParseCSV(in.CSV)
		if err != nil {
			return nil, nil, err
		}
		recipients = append(recipients, parsed.Recipients...)
		csvErrors = parsed.Errors
	}

	if len(recipients) == 0 {
		return nil, nil, fmt.Errorf("%w: campaign has no valid recipients", domain.ErrInvalidInput)
	}
	if s.config.MaxRecipients > 0 && len(recipients) > s.config.MaxRecipients {
		return nil, nil, fmt.Errorf("%w: %d recipients exceed the limit of %d",
			domain.ErrInvalidInput, len(recipients), s.config.MaxRecipients)
	}

	return recipients, csvErrors, nil
}

// prepareVariants gives every variant an ID and clears client-supplied
// metrics.
func prepareVariants(variants []domain.ABTestVariant) []domain.ABTestVariant {
	out := make([]domain.ABTestVariant, len(variants))
	for i, v := range variants {
		if v.ID == "" {
			v.ID = uuid.NewString()
		}
		v.Metrics = domain.VariantMetrics{}
		out[i] = v
	}
	return out
}

func (s *CampaignService) validateTemplates(base string, variants []domain.ABTestVariant) error {
	if base != "" {
		if err := s.renderer.Validate(base); err != nil {
			return err
		}
	}
	for _, v := range variants {
		if err := s.renderer.Validate(v.Template); err != nil {
			return fmt.Errorf("variant %q: %w", v.Name, err)
		}
	}
	return nil
}

func (s *CampaignService) renderRecipients(c *domain.Campaign, recipients []domain.Recipient) ([]domain.CampaignRecipient, error) {
	assigner := campaign.NewAssigner(nil)
	useVariants := c.ABTest.Enabled && len(c.ABTest.Variants) > 0

	out := make([]domain.CampaignRecipient, 0, len(recipients))
	for i, r := range recipients {
		source := c.Template
		var variantID *string

		if useVariants {
			v, _ := assigner.AssignVariant(i, c.ABTest)
			id := v.ID
			variantID = &id
			if v.Template != "" {
				source = v.Template
			}
		}

		content, err := s.renderer.Render(source, r)
		if err != nil {
			return nil, fmt.Errorf("%w: recipient %s: %w", domain.ErrInvalidInput, r.PhoneNumber, err)
		}
		if n := utf8.RuneCountInString(content); s.maxContentLength > 0 && n > s.maxContentLength {
			return nil, fmt.Errorf("%w: recipient %s: rendered content is %d characters, maximum is %d",
				domain.ErrInvalidInput, r.PhoneNumber, n, s.maxContentLength)
		}

		out = append(out, domain.CampaignRecipient{
			CampaignID: c.ID,
			Recipient:  r,
			VariantID:  variantID,
			Content:    content,
		})
	}

	return out, nil
}

func (s *CampaignService) resolveRateLimit(preset string, custom *domain.RateLimitConfig) (domain.RateLimitConfig, error) {
	var cfg domain.RateLimitConfig
	if custom != nil {
		cfg = *custom
	} else {
		if preset == "" {
			preset = s.config.RateLimitPreset
		}
		p, ok := campaign.FindPreset(s.presets, preset)
		if !ok {
			return cfg, fmt.Errorf("%w: unknown rate limit preset %q", domain.ErrInvalidInput, preset)
		}
		cfg = p.RateLimitConfig
	}

	if _, err := campaign.EffectiveRate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (s *CampaignService) GetCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *CampaignService) ListCampaigns(ctx context.Context, status *domain.CampaignStatus) ([]domain.Campaign, error) {
	return s.repo.List(ctx, status)
}

// StartCampaign moves a draft or paused campaign to running.
func (s *CampaignService) StartCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.transition(ctx, id, domain.CampaignRunning)
}

func (s *CampaignService) PauseCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.transition(ctx, id, domain.CampaignPaused)
}

// CancelCampaign stops the campaign for good. Messages still pending are
// marked failed.
func (s *CampaignService) CancelCampaign(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := s.transition(ctx, id, domain.CampaignCancelled)
	if err != nil {
		return nil, err
	}

	n, err := s.repo.FailPending(ctx, id)
	if err != nil {
		return nil, err
	}
	log := logger.With("campaignId", id)
	log.Infof("Campaign cancelled, %d pending messages failed", n)

	if _, err := s.refreshProgress(ctx, id); err != nil {
		log.Warnf("Failed to refresh progress: %v", err)
	}

	return c, nil
}

func (s *CampaignService) transition(ctx context.Context, id string, to domain.CampaignStatus) (*domain.Campaign, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !c.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("campaign %s: %s -> %s: %w", id, c.Status, to, domain.ErrInvalidTransition)
	}

	at := s.now()
	if err := s.repo.UpdateStatus(ctx, id, c.Status, to, at); err != nil {
		return nil, err
	}

	if to != domain.CampaignRunning && s.limiters != nil {
		s.limiters.Forget(id)
	}

	s.publishStatus(id, to, at)
	logger.With("campaignId", id, "from", c.Status, "to", to).Infof("Campaign status changed")

	return s.repo.GetByID(ctx, id)
}

func (s *CampaignService) publishStatus(id string, status domain.CampaignStatus, at time.Time) {
	if s.events == nil {
		return
	}
	s.events.Publish(domain.Event{
		Type:       domain.EventCampaignStatus,
		CampaignID: id,
		Status:     string(status),
		At:         at,
	})
}

// OnMessageStatus recomputes the campaign's progress after one of its
// messages changed status, and completes a running campaign once nothing is
// pending.
func (s *CampaignService) OnMessageStatus(ctx context.Context, campaignID string) {
	log := logger.With("campaignId", campaignID)

	progress, err := s.refreshProgress(ctx, campaignID)
	if err != nil {
		log.Errorf("Failed to refresh progress: %v", err)
		return
	}

	if progress.Pending > 0 || progress.Total == 0 {
		return
	}

	at := s.now()
	err = s.repo.UpdateStatus(ctx, campaignID, domain.CampaignRunning, domain.CampaignCompleted, at)
	switch {
	case errors.Is(err, domain.ErrConflict):
		// not running (paused, cancelled or already completed)
		return
	case err != nil:
		log.Errorf("Failed to complete campaign: %v", err)
		return
	}

	if s.limiters != nil {
		s.limiters.Forget(campaignID)
	}
	s.publishStatus(campaignID, domain.CampaignCompleted, at)
	log.Infof("Campaign completed")
}

func (s *CampaignService) computeProgress(ctx context.Context, id string) (domain.CampaignProgress, error) {
	counts, err := s.repo.StatusCounts(ctx, id)
	if err != nil {
		return domain.CampaignProgress{}, err
	}
	return campaign.ProgressFromCounts(counts), nil
}

func (s *CampaignService) refreshProgress(ctx context.Context, id string) (domain.CampaignProgress, error) {
	progress, err := s.computeProgress(ctx, id)
	if err != nil {
		return progress, err
	}

	s.cacheProgress(ctx, id, progress)

	if s.events != nil {
		p := progress
		s.events.Publish(domain.Event{
			Type:       domain.EventCampaignProgress,
			CampaignID: id,
			Progress:   &p,
			At:         s.now(),
		})
	}

	return progress, nil
}

func (s *CampaignService) cacheProgress(ctx context.Context, id string, progress domain.CampaignProgress) {
	if s.cache == nil {
		return
	}
	if err := s.cache.CacheProgress(ctx, id, progress); err != nil {
		logger.Warnf("Failed to cache progress of campaign %s: %v", id, err)
	}
}

// GetProgress returns the cached snapshot when there is one and recomputes
// it otherwise.
func (s *CampaignService) GetProgress(ctx context.Context, id string) (domain.CampaignProgress, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return domain.CampaignProgress{}, err
	}

	if s.cache != nil {
		cached, err := s.cache.GetCachedProgress(ctx, id)
		switch {
		case err != nil:
			logger.Warnf("Failed to read cached progress of campaign %s: %v", id, err)
		case cached == nil:
		default:
			if verr := cached.Validate(); verr != nil {
				logger.Warnf("Discarding cached progress of campaign %s: %v", id, verr)
				break
			}
			return *cached, nil
		}
	}

	progress, err := s.computeProgress(ctx, id)
	if err != nil {
		return progress, err
	}
	s.cacheProgress(ctx, id, progress)

	return progress, nil
}

func (s *CampaignService) GetAnalytics(ctx context.Context, id string) (domain.CampaignAnalytics, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return domain.CampaignAnalytics{}, err
	}

	records, err := s.repo.RecipientAnalytics(ctx, id)
	if err != nil {
		return domain.CampaignAnalytics{}, err
	}

	return campaign.CalculateAnalytics(records), nil
}

// GetWinner ranks the campaign's variants on their observed metrics.
func (s *CampaignService) GetWinner(ctx context.Context, id string) (domain.ABTestWinner, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.ABTestWinner{}, err
	}
	if !c.ABTest.Enabled || len(c.ABTest.Variants) == 0 {
		return domain.ABTestWinner{}, campaign.ErrNoVariants
	}

	records, err := s.repo.RecipientAnalytics(ctx, id)
	if err != nil {
		return domain.ABTestWinner{}, err
	}

	analytics := campaign.CalculateAnalytics(records)
	return campaign.CalculateABTestWinner(campaign.AttachMetrics(c.ABTest.Variants, analytics.ByVariant))
}

// PreviewETA projects the send duration of recipients messages under a
// custom rate limit, a named preset, or the default preset.
func (s *CampaignService) PreviewETA(recipients int, preset string, custom *domain.RateLimitConfig) (domain.ETA, error) {
	cfg, err := s.resolveRateLimit(preset, custom)
	if err != nil {
		return domain.ETA{}, err
	}
	return campaign.CalculateETA(recipients, cfg, s.now())
}

func (s *CampaignService) Presets() []domain.RateLimitPreset {
	out := make([]domain.RateLimitPreset, len(s.presets))
	copy(out, s.presets)
	return out
}

// ParseCSV parses recipient rows from uploaded text.
func (s *CampaignService) ParseCSV(text string) (*domain.CSVParseResult, error) {
	if s.config.CSVMaxBytes > 0 && int64(len(text)) > s.config.CSVMaxBytes {
		return nil, fmt.Errorf("%w: CSV exceeds %d bytes", domain.ErrInvalidInput, s.config.CSVMaxBytes)
	}

	result, err := campaign.ParseCSV(text)
	if err != nil {
		return nil, err
	}

	s.metrics.CSVParsed(result.ValidRows, len(result.Errors))
	return result, nil
}
