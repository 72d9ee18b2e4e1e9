package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/onurcolak/messaging-dashboard/internal/domain"
	"github.com/onurcolak/messaging-dashboard/pkg/logger"
	"github.com/onurcolak/messaging-dashboard/pkg/metrics"
	"github.com/onurcolak/messaging-dashboard/pkg/webhook"
)

const (
	defaultInterval = 2 * time.Minute
	alertTimeout    = 10 * time.Second
)

// messageProcessor is a minimal internal interface for the scheduler.
// It matches the ProcessUnsentMessages method of MessageService and
// lets us unit test the scheduler with a small fake implementation.
type messageProcessor interface {
	ProcessUnsentMessages(ctx context.Context, failureRate float64) ([]domain.SendResult, error)
}

type alerter interface {
	SendAlert(ctx context.Context, url string, alert webhook.Alert) error
}

// Params configures a scheduler run started through StartWithParams.
type Params struct {
	Interval       time.Duration
	FailureRate    float64 // Probability of failure (0-1)
	AlertWebhook   string
	AlertThreshold int // Number of consecutive all-fail iterations before alert
}

type Scheduler struct {
	messageService  messageProcessor
	alerter         alerter
	metrics         *metrics.Metrics
	interval        time.Duration
	failureRate     float64
	alertWebhook    string
	alertThreshold  int
	lastAlertSentAt time.Time

	// Internal state
	running  bool
	cancel   context.CancelFunc
	doneChan chan struct{}
	alerts   sync.WaitGroup
	mu       sync.RWMutex

	// Statistics
	lastRunAt    time.Time
	messagesSent int64
	runsCount    int64

	// Count of consecutive iterations where all messages failed
	consecutiveAllFailCount int
}

type Option func(*Scheduler)

func WithAlerter(a alerter) Option {
	return func(s *Scheduler) { s.alerter = a }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) { s.metrics = m }
}

func NewScheduler(processor messageProcessor, interval time.Duration, opts ...Option) *Scheduler {
	s := &Scheduler{
		messageService: processor,
		interval:       interval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartWithParams replaces the run parameters and starts the scheduler.
func (s *Scheduler) StartWithParams(ctx context.Context, p Params) error {
	if p.Interval <= 0 {
		p.Interval = defaultInterval
	}

	s.mu.Lock()
	s.interval = p.Interval
	s.failureRate = p.FailureRate
	s.alertWebhook = p.AlertWebhook
	s.alertThreshold = p.AlertThreshold
	s.consecutiveAllFailCount = 0
	s.mu.Unlock()

	return s.Start(ctx)
}

// Start launches the dispatch loop. The first batch runs immediately. The
// loop ends when Stop is called or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()

	if s.running {
		s.mu.Unlock()
		logger.Warnf("Scheduler is already running")
		return nil
	}

	if s.interval <= 0 {
		s.interval = defaultInterval
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.running = true
	s.cancel = cancel
	s.doneChan = make(chan struct{})
	interval := s.interval
	done := s.doneChan
	s.mu.Unlock()

	logger.Infof("Starting scheduler with interval: %v", interval)

	go s.run(runCtx, interval, done)

	return nil
}

func (s *Scheduler) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)

	s.processMessages(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Infof("Scheduler running. Next execution in %v", interval)

	for {
		select {
		case <-ticker.C:
			s.processMessages(ctx)
			logger.Debugf("Next execution in %v", interval)

		case <-ctx.Done():
			logger.Warnf("Scheduler context cancelled")
			s.mu.Lock()
			s.running = false
			s.mu.Unlock()
			return
		}
	}
}

func (s *Scheduler) processMessages(ctx context.Context) {
	s.mu.Lock()
	s.lastRunAt = time.Now()
	s.runsCount++
	runNumber := s.runsCount
	startedAt := s.lastRunAt
	failureRate := s.failureRate
	alertWebhook := s.alertWebhook
	alertThreshold := s.alertThreshold
	s.mu.Unlock()

	s.metrics.SchedulerRun()
	log := logger.With("run", runNumber)
	log.Infof("Starting message processing at %s", startedAt.Format(time.RFC3339))

	results, err := s.messageService.ProcessUnsentMessages(ctx, failureRate)
	if err != nil {
		log.Errorf("Error processing messages: %v", err)
		return
	}

	if len(results) == 0 {
		log.Debugf("No messages to process")
		return
	}

	successCount := 0
	for _, r := range results {
		if r.Success {
			successCount++
		}
	}

	s.mu.Lock()
	s.messagesSent += int64(successCount)

	if successCount == 0 {
		s.consecutiveAllFailCount++
		log.Warnf("All %d messages failed (consecutive count: %d/%d)",
			len(results), s.consecutiveAllFailCount, alertThreshold)

		if s.consecutiveAllFailCount >= alertThreshold && alertThreshold > 0 && alertWebhook != "" && s.alerter != nil {
			alert := webhook.Alert{
				Alert:               "consecutive_all_fail",
				RunNumber:           runNumber,
				ConsecutiveFailures: s.consecutiveAllFailCount,
				MessagesInBatch:     len(results),
				Timestamp:           time.Now().Format(time.RFC3339),
				Message: fmt.Sprintf(
					"All %d messages failed for %d consecutive iterations",
					len(results),
					s.consecutiveAllFailCount,
				),
			}
			s.alerts.Add(1)
			go s.sendAlert(alertWebhook, alert)
		}
	} else {
		if s.consecutiveAllFailCount > 0 {
			log.Debugf("Resetting consecutive failure count (was: %d)", s.consecutiveAllFailCount)
		}
		s.consecutiveAllFailCount = 0
	}
	s.mu.Unlock()

	log.Infof("Processed %d messages, %d successful, %d failed",
		len(results), successCount, len(results)-successCount)
}

// Stop cancels the running batch, waits for the loop and any in-flight alert
// to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()

	if s.doneChan == nil {
		s.mu.Unlock()
		logger.Warnf("Scheduler is not running")
		return nil
	}

	s.running = false
	cancel := s.cancel
	done := s.doneChan
	s.cancel = nil
	s.doneChan = nil
	s.mu.Unlock()

	cancel()
	<-done
	s.alerts.Wait()

	logger.Infof("Scheduler stopped")
	return nil
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

func (s *Scheduler) GetStatus() SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := SchedulerStatus{
		Running:                 s.running,
		LastRunAt:               s.lastRunAt,
		MessagesSent:            s.messagesSent,
		RunsCount:               s.runsCount,
		Interval:                s.interval,
		ConsecutiveAllFailCount: s.consecutiveAllFailCount,
		LastAlertSentAt:         s.lastAlertSentAt,
	}

	if s.running && !s.lastRunAt.IsZero() {
		status.NextRunAt = s.lastRunAt.Add(s.interval)
	}

	return status
}

func (s *Scheduler) sendAlert(webhookURL string, alert webhook.Alert) {
	defer s.alerts.Done()

	ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
	defer cancel()

	if err := s.alerter.SendAlert(ctx, webhookURL, alert); err != nil {
		logger.Errorf("Failed to send alert to webhook: %v", err)
		return
	}

	s.mu.Lock()
	s.lastAlertSentAt = time.Now()
	s.mu.Unlock()
	logger.Infof("Alert sent successfully to %s (consecutive failures: %d)", webhookURL, alert.ConsecutiveFailures)
}

type SchedulerStatus struct {
	Running                 bool          `json:"running"`
	LastRunAt               time.Time     `json:"lastRunAt,omitempty"`
	NextRunAt               time.Time     `json:"nextRunAt,omitempty"`
	MessagesSent            int64         `json:"messagesSent"`
	RunsCount               int64         `json:"runsCount"`
	Interval                time.Duration `json:"interval"`
	ConsecutiveAllFailCount int           `json:"consecutiveAllFailCount"`
	LastAlertSentAt         time.Time     `json:"lastAlertSentAt,omitempty"`
}
