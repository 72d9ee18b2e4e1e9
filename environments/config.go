package environments

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Webhook  WebhookConfig
	Message  MessageConfig
	Alert    AlertConfig
	Auth     AuthConfig
	Log      LogConfig
	Campaign CampaignConfig
	Events   EventsConfig
}

type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
}

const (
	StorageMySQL  = "mysql"
	StorageMemory = "memory"
)

type StorageConfig struct {
	Driver string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type RedisConfig struct {
	Host         string
	Port         string
	Password     string
	DB           int
	DisableCache bool
	ProgressTTL  time.Duration
}

type WebhookConfig struct {
	URL     string
	AuthKey string
	From    string
	Timeout time.Duration
}

type MessageConfig struct {
	BatchSize        int
	SendInterval     time.Duration
	MaxContentLength int
}

type AlertConfig struct {
	WebhookURL     string
	IterationCount int
}

type AuthConfig struct {
	MessagesAPIKey  string
	SchedulerAPIKey string
	CallbackAPIKey  string
}

type LogConfig struct {
	Level  string
	Format string
}

type CampaignConfig struct {
	RateLimitPreset      string
	RateLimitPresetsFile string
	MaxRecipients        int
	CSVMaxBytes          int64
}

type EventsConfig struct {
	Buffer  int
	Channel string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real env vars win over it.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:            GetEnv("SERVER_PORT", "8080"),
			ShutdownTimeout: GetEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Storage: StorageConfig{
			Driver: strings.ToLower(GetEnv("STORAGE_DRIVER", StorageMySQL)),
		},
		Database: DatabaseConfig{
			Host:     GetEnv("DB_HOST", "localhost"),
			Port:     GetEnv("DB_PORT", "3306"),
			User:     GetEnv("DB_USER", "dashboard"),
			Password: GetEnv("DB_PASSWORD", "dashboard123"),
			DBName:   GetEnv("DB_NAME", "messaging_dashboard"),
		},
		Redis: RedisConfig{
			Host:         GetEnv("REDIS_HOST", "localhost"),
			Port:         GetEnv("REDIS_PORT", "6379"),
			Password:     GetEnv("REDIS_PASSWORD", ""),
			DB:           GetEnvAsInt("REDIS_DB", 0),
			DisableCache: GetEnvAsBool("REDIS_DISABLE_CACHE", false),
			ProgressTTL:  GetEnvAsDuration("REDIS_PROGRESS_TTL", 24*time.Hour),
		},
		Webhook: WebhookConfig{
			URL:     GetEnv("WEBHOOK_URL", "https://webhook.site/your-unique-id"),
			AuthKey: GetEnv("WEBHOOK_AUTH_KEY", ""),
			From:    GetEnv("WEBHOOK_FROM", "Dashboard"),
			Timeout: time.Duration(GetEnvAsInt("WEBHOOK_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Message: MessageConfig{
			BatchSize:        GetEnvAsInt("MESSAGE_BATCH_SIZE", 50),
			SendInterval:     GetEnvAsDuration("MESSAGE_SEND_INTERVAL", 10*time.Second),
			MaxContentLength: GetEnvAsInt("MESSAGE_MAX_CONTENT_LENGTH", 1000),
		},
		Alert: AlertConfig{
			WebhookURL:     GetEnv("ALERT_WEBHOOK_URL", ""),
			IterationCount: GetEnvAsInt("ALERT_ITERATION_COUNT", 0),
		},
		Auth: AuthConfig{
			MessagesAPIKey:  GetEnv("MESSAGES_API_KEY", ""),
			SchedulerAPIKey: GetEnv("SCHEDULER_API_KEY", ""),
			CallbackAPIKey:  GetEnv("CALLBACK_API_KEY", ""),
		},
		Log: LogConfig{
			Level:  GetEnv("LOG_LEVEL", "info"),
			Format: GetEnv("LOG_FORMAT", "json"),
		},
		Campaign: CampaignConfig{
			RateLimitPreset:      GetEnv("RATE_LIMIT_PRESET", "standard"),
			RateLimitPresetsFile: GetEnv("RATE_LIMIT_PRESETS_FILE", ""),
			MaxRecipients:        GetEnvAsInt("CAMPAIGN_MAX_RECIPIENTS", 100000),
			CSVMaxBytes:          int64(GetEnvAsInt("CSV_MAX_BYTES", 10<<20)),
		},
		Events: EventsConfig{
			Buffer:  GetEnvAsInt("EVENTS_BUFFER", 64),
			Channel: GetEnv("EVENTS_CHANNEL", "dashboard:events"),
		},
	}
}

func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
