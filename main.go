package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/onurcolak/messaging-dashboard/environments"
	"github.com/onurcolak/messaging-dashboard/handlers"
	"github.com/onurcolak/messaging-dashboard/internal/campaign"
	"github.com/onurcolak/messaging-dashboard/internal/domain"
	"github.com/onurcolak/messaging-dashboard/internal/events"
	"github.com/onurcolak/messaging-dashboard/internal/middlewares"
	"github.com/onurcolak/messaging-dashboard/internal/repository"
	"github.com/onurcolak/messaging-dashboard/internal/repository/memory"
	"github.com/onurcolak/messaging-dashboard/internal/scheduler"
	"github.com/onurcolak/messaging-dashboard/internal/service"
	"github.com/onurcolak/messaging-dashboard/pkg/database"
	"github.com/onurcolak/messaging-dashboard/pkg/logger"
	"github.com/onurcolak/messaging-dashboard/pkg/metrics"
	"github.com/onurcolak/messaging-dashboard/pkg/redis"
	"github.com/onurcolak/messaging-dashboard/pkg/template"
	"github.com/onurcolak/messaging-dashboard/pkg/validator"
	"github.com/onurcolak/messaging-dashboard/pkg/webhook"
	"github.com/onurcolak/messaging-dashboard/routes"

	_ "github.com/onurcolak/messaging-dashboard/docs" // swagger docs
)

// @title Messaging Dashboard API
// @version 1.0
// @description Multi-client messaging: direct messages, bulk campaigns with A/B variants, delivery tracking and live progress
// @termsOfService http://swagger.io/terms/

// @contact.name API Support

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /

// @schemes http https
func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

type pinger interface {
	Ping(ctx context.Context) error
}

// storage is the selected persistence backend behind the service interfaces.
// probe is nil for the in-memory store.
type storage struct {
	messages  service.MessageRepository
	clients   service.ClientRepository
	campaigns service.CampaignRepository
	probe     pinger
	close     func() error
}

func openStorage(ctx context.Context, cfg *environments.Config) (*storage, error) {
	switch cfg.Storage.Driver {
	case environments.StorageMemory:
		logger.Warnf("Using in-memory storage; data is lost on restart")
		st := memory.New()
		return &storage{
			messages:  st.Messages(),
			clients:   st.Clients(),
			campaigns: st.Campaigns(),
			close:     func() error { return nil },
		}, nil

	case environments.StorageMySQL:
		db, err := database.NewMySQLDB(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		if err := database.RunMigrations(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}

		if environments.GetEnvAsBool("SEED_DATA", false) {
			if err := database.SeedTestData(ctx, db); err != nil {
				logger.Warnf("Failed to seed test data: %v", err)
			}
		}

		return &storage{
			messages:  repository.NewMessageRepository(db),
			clients:   repository.NewClientRepository(db),
			campaigns: repository.NewCampaignRepository(db),
			probe:     database.NewProbe(db),
			close:     db.Close,
		}, nil
	}

	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

func requireSecrets(cfg *environments.Config) error {
	required := map[string]string{
		"WEBHOOK_AUTH_KEY":  cfg.Webhook.AuthKey,
		"MESSAGES_API_KEY":  cfg.Auth.MessagesAPIKey,
		"SCHEDULER_API_KEY": cfg.Auth.SchedulerAPIKey,
		"CALLBACK_API_KEY":  cfg.Auth.CallbackAPIKey,
	}
	for name, value := range required {
		if value == "" {
			return fmt.Errorf("%s is required but not set", name)
		}
	}
	return nil
}

// presetsAboveCapacity names the presets whose effective rate exceeds what
// one scheduler batch per interval can send.
func presetsAboveCapacity(presets []domain.RateLimitPreset, msg environments.MessageConfig) []string {
	if msg.SendInterval <= 0 {
		return nil
	}
	capacity := float64(msg.BatchSize) / msg.SendInterval.Seconds()

	var names []string
	for _, p := range presets {
		r, err := campaign.EffectiveRate(p.RateLimitConfig)
		if err == nil && r > capacity {
			names = append(names, p.Name)
		}
	}
	return names
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := environments.Load()

	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logger.Sync()

	if err := requireSecrets(cfg); err != nil {
		return err
	}

	presets, err := environments.LoadRateLimitPresets(cfg.Campaign.RateLimitPresetsFile)
	if err != nil {
		return err
	}
	for _, name := range presetsAboveCapacity(presets, cfg.Message) {
		logger.Warnf("Preset %q allows more than the scheduler dispatches (%d messages every %v); "+
			"raise MESSAGE_BATCH_SIZE or lower MESSAGE_SEND_INTERVAL, or its ETAs will be optimistic",
			name, cfg.Message.BatchSize, cfg.Message.SendInterval)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Infof("Starting Messaging Dashboard (%s)...", version)

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.close(); err != nil {
			logger.Errorf("Error closing database: %v", err)
		}
	}()

	m := metrics.New()

	redisClient, err := redis.NewRedisClient(cfg.Redis)
	if err != nil {
		logger.Warnf("Redis not available, caching disabled: %v", err)
		redisClient = nil
	}

	var brokerOpts []events.Option
	brokerOpts = append(brokerOpts, events.WithMetrics(m))
	if redisClient != nil {
		brokerOpts = append(brokerOpts, events.WithForwarder(redisClient.EventPublisher(cfg.Events.Channel)))
	}
	broker := events.NewBroker(cfg.Events.Buffer, brokerOpts...)
	defer broker.Close()

	webhookClient := webhook.NewWebhookClient(cfg.Webhook)
	logger.Infof("Webhook configured: %s", webhookClient.GetURL())

	throttle := service.NewThrottle(store.campaigns)

	campaignOpts := []service.CampaignOption{
		service.WithCampaignClients(store.clients),
		service.WithCampaignEvents(broker),
		service.WithLimiterRegistry(throttle),
		service.WithCampaignMetrics(m),
		service.WithMaxContentLength(cfg.Message.MaxContentLength),
	}
	if redisClient != nil {
		campaignOpts = append(campaignOpts, service.WithProgressCache(redisClient))
	}
	campaignService := service.NewCampaignService(
		store.campaigns,
		template.NewRenderer(),
		presets,
		cfg.Campaign,
		campaignOpts...,
	)

	messageOpts := []service.MessageOption{
		service.WithClientLookup(store.clients),
		service.WithEvents(broker),
		service.WithThrottle(throttle),
		service.WithStatusListener(campaignService),
		service.WithMessageMetrics(m),
	}

	// interface-typed so a missing client stays a nil interface
	var (
		sentCache  service.SentCache
		cacheProbe pinger
	)
	if redisClient != nil {
		sentCache = redisClient
		cacheProbe = redisClient
	}

	messageService := service.NewMessageService(store.messages, webhookClient, sentCache, cfg.Message, messageOpts...)

	clientService := service.NewClientService(store.clients)

	sched := scheduler.NewScheduler(
		messageService,
		cfg.Message.SendInterval,
		scheduler.WithAlerter(webhook.NewAlertClient(cfg.Webhook.Timeout)),
		scheduler.WithMetrics(m),
	)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator.New()

	e.Use(middleware.Logger())
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			middlewares.APIKeyHeader,
		},
	}))

	routes.RegisterRoutes(e, routes.Handlers{
		Health:    handlers.NewHealthHandler(store.probe, cacheProbe),
		Message:   handlers.NewMessageHandler(messageService),
		Client:    handlers.NewClientHandler(clientService),
		Campaign:  handlers.NewCampaignHandler(campaignService, broker, cfg.Campaign.CSVMaxBytes),
		Scheduler: handlers.NewSchedulerHandler(sched, ctx, cfg),
		Metrics:   m.Handler(),
	}, cfg)

	if environments.GetEnvAsBool("AUTO_START_SCHEDULER", true) {
		logger.Infof("Auto-starting scheduler...")
		err := sched.StartWithParams(ctx, scheduler.Params{
			Interval:       cfg.Message.SendInterval,
			AlertWebhook:   cfg.Alert.WebhookURL,
			AlertThreshold: cfg.Alert.IterationCount,
		})
		if err != nil {
			logger.Warnf("Failed to auto-start scheduler: %v", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		addr := ":" + cfg.Server.Port
		logger.Infof("Server starting on http://localhost%s", addr)
		logger.Infof("Swagger docs available at http://localhost%s/swagger/index.html", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Infof("Shutting down gracefully...")

		if err := sched.Stop(); err != nil {
			logger.Errorf("Error stopping scheduler: %v", err)
		}

		// SSE streams end with the broker
		broker.Close()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		logger.Infof("Shutting down HTTP server...")
		if err := e.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()

	if redisClient != nil {
		logger.Infof("Closing Redis connection...")
		if cerr := redisClient.Close(); cerr != nil {
			logger.Errorf("Error closing Redis: %v", cerr)
		}
	}

	if err != nil {
		logger.Errorf("%v", err)
		return err
	}

	logger.Infof("Graceful shutdown completed")
	return nil
}
