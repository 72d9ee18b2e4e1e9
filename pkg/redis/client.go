package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/onurcolak/messaging-dashboard/environments"
	"github.com/onurcolak/messaging-dashboard/internal/domain"
	"github.com/onurcolak/messaging-dashboard/pkg/logger"
)

type Client struct {
	client      valkey.Client
	progressTTL time.Duration
}

const (
	sentMessageKeyPrefix = "sent_message:"
	progressKeyPrefix    = "campaign_progress:"
	sentMessageTTL       = 24 * time.Hour
)

func NewRedisClient(cfg environments.RedisConfig) (*Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)},
		Password:    cfg.Password,
		SelectDB:    cfg.DB,
		// Client-side caching needs RESP3 tracking, which some servers lack.
		DisableCache: cfg.DisableCache,
		AlwaysRESP2:  cfg.DisableCache,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Valkey client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Infof("Connected to Redis at %s:%s (via Valkey client)", cfg.Host, cfg.Port)

	ttl := cfg.ProgressTTL
	if ttl <= 0 {
		ttl = sentMessageTTL
	}

	return &Client{client: client, progressTTL: ttl}, nil
}

func (c *Client) setJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal cache data: %w", err)
	}

	return c.client.Do(ctx, c.client.B().Set().Key(key).Value(string(data)).Ex(ttl).Build()).Error()
}

// getJSON decodes the value at key into v. A missing key reports false.
func (c *Client) getJSON(ctx context.Context, key string, v any) (bool, error) {
	data, err := c.client.Do(ctx, c.client.B().Get().Key(key).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return false, nil
		}
		return false, err
	}

	if err := json.Unmarshal([]byte(data), v); err != nil {
		return false, fmt.Errorf("failed to unmarshal cache data: %w", err)
	}

	return true, nil
}

func (c *Client) CacheSentMessage(ctx context.Context, dbID int64, messageID string, sentAt time.Time) error {
	cache := domain.SentMessageCache{
		MessageID: messageID,
		SentAt:    sentAt,
	}

	key := fmt.Sprintf("%s%d", sentMessageKeyPrefix, dbID)
	if err := c.setJSON(ctx, key, cache, sentMessageTTL); err != nil {
		return fmt.Errorf("failed to cache sent message: %w", err)
	}

	logger.Debugf("Cached message ID %d -> %s in Redis", dbID, messageID)

	return nil
}

func (c *Client) GetCachedMessage(ctx context.Context, dbID int64) (*domain.SentMessageCache, error) {
	var cache domain.SentMessageCache

	found, err := c.getJSON(ctx, fmt.Sprintf("%s%d", sentMessageKeyPrefix, dbID), &cache)
	if err != nil {
		return nil, fmt.Errorf("failed to get cached message: %w", err)
	}
	if !found {
		return nil, nil
	}

	return &cache, nil
}

func (c *Client) GetAllCachedMessages(ctx context.Context) (map[int64]*domain.SentMessageCache, error) {
	pattern := fmt.Sprintf("%s*", sentMessageKeyPrefix)

	var keys []string
	var cursor uint64
	for {
		result := c.client.Do(ctx, c.client.B().Scan().Cursor(cursor).Match(pattern).Count(100).Build())
		if result.Error() != nil {
			return nil, fmt.Errorf("failed to scan cache keys: %w", result.Error())
		}

		scanResult, err := result.AsScanEntry()
		if err != nil {
			return nil, fmt.Errorf("failed to parse scan result: %w", err)
		}

		keys = append(keys, scanResult.Elements...)
		cursor = scanResult.Cursor

		if cursor == 0 {
			break
		}
	}

	result := make(map[int64]*domain.SentMessageCache, len(keys))

	for _, key := range keys {
		var dbID int64
		if _, err := fmt.Sscanf(key, sentMessageKeyPrefix+"%d", &dbID); err != nil {
			logger.Warnf("failed to parse dbID from redis key %q: %v", key, err)
			continue
		}

		var cache domain.SentMessageCache
		if found, err := c.getJSON(ctx, key, &cache); err != nil || !found {
			continue
		}

		result[dbID] = &cache
	}

	return result, nil
}

// CacheProgress stores the latest progress snapshot of a campaign.
func (c *Client) CacheProgress(ctx context.Context, campaignID string, progress domain.CampaignProgress) error {
	if err := c.setJSON(ctx, progressKeyPrefix+campaignID, progress, c.progressTTL); err != nil {
		return fmt.Errorf("failed to cache campaign progress: %w", err)
	}
	return nil
}

// GetCachedProgress returns the cached snapshot, or nil when there is none.
func (c *Client) GetCachedProgress(ctx context.Context, campaignID string) (*domain.CampaignProgress, error) {
	var progress domain.CampaignProgress

	found, err := c.getJSON(ctx, progressKeyPrefix+campaignID, &progress)
	if err != nil {
		return nil, fmt.Errorf("failed to get cached progress: %w", err)
	}
	if !found {
		return nil, nil
	}

	return &progress, nil
}

// EventPublisher mirrors events onto a pub/sub channel.
type EventPublisher struct {
	client  *Client
	channel string
}

func (c *Client) EventPublisher(channel string) *EventPublisher {
	return &EventPublisher{client: c, channel: channel}
}

func (p *EventPublisher) PublishEvent(ctx context.Context, event domain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	vc := p.client.client
	if err := vc.Do(ctx, vc.B().Publish().Channel(p.channel).Message(string(data)).Build()).Error(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	return nil
}

func (c *Client) Close() error {
	c.client.Close()
	return nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}
