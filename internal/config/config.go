package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	// Server configuration
	Port        string
	Debug       bool
	Environment string

	// Schedule configuration
	ReportSchedule string // "daily" or "weekly"
	WindowDays     int
	Groups         []string // default group identifiers for scheduled runs

	// VK API configuration
	VKAccessToken      string
	VKAPIVersion       string
	VKAPIBaseURL       string
	PostsChunkSize     int
	CommentsChunkSize  int
	MaxCommentsPerPost int // 0 = unlimited
	GroupConcurrency   int // per-group cap on in-flight API calls
	MaxRetries         int
	BaseRetryDelay     time.Duration
	RateLimitDelay     time.Duration
	PolitenessDelay    time.Duration
	RequestTimeout     time.Duration
	LaunchStagger      time.Duration

	// Data handling
	DataDir           string
	TextPreviewLength int
	SentimentLabels   []string

	// Sentiment model
	ModelServiceURL   string
	ModelServiceToken string
	TrackedEntities   []string // lexicon fallback watchlist

	// Artifact storage
	StorageAccount   string
	StorageContainer string
	ArchiveDir       string

	// Notification configuration
	WebhookURL        string
	NotificationEmail string
	SMTPHost          string
	SMTPPort          int
	SMTPUsername      string
	SMTPPassword      string
}

// Load builds the configuration from defaults, an optional YAML file
// (CONFIG_FILE), and environment variable overrides, in that order.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Port:        "8080",
		Environment: "development",

		ReportSchedule: "weekly",
		WindowDays:     7,

		VKAPIVersion:       "5.131",
		VKAPIBaseURL:       "https://api.vk.com/method/",
		PostsChunkSize:     100,
		CommentsChunkSize:  100,
		MaxCommentsPerPost: 0,
		GroupConcurrency:   4,
		MaxRetries:         3,
		BaseRetryDelay:     time.Second,
		RateLimitDelay:     10 * time.Second,
		PolitenessDelay:    370 * time.Millisecond,
		RequestTimeout:     300 * time.Second,
		LaunchStagger:      50 * time.Millisecond,

		DataDir:           "data",
		TextPreviewLength: 300,
		SentimentLabels:   []string{"POS", "NEG", "NEU"},

		StorageContainer: "vkpulse-artifacts",
		SMTPPort:         587,
	}
}

// fileConfig mirrors Config for the optional YAML file; unset fields keep
// their current values. Durations are integer milliseconds or seconds,
// matching the environment variable names.
type fileConfig struct {
	Port        *string `yaml:"port"`
	Debug       *bool   `yaml:"debug"`
	Environment *string `yaml:"environment"`

	ReportSchedule *string  `yaml:"report_schedule"`
	WindowDays     *int     `yaml:"window_days"`
	Groups         []string `yaml:"groups"`

	VKAccessToken         *string `yaml:"vk_access_token"`
	VKAPIVersion          *string `yaml:"vk_api_version"`
	VKAPIBaseURL          *string `yaml:"vk_api_base_url"`
	PostsChunkSize        *int    `yaml:"posts_chunk_size"`
	CommentsChunkSize     *int    `yaml:"comments_chunk_size"`
	MaxCommentsPerPost    *int    `yaml:"max_comments_per_post"`
	GroupConcurrency      *int    `yaml:"group_concurrency"`
	MaxRetries            *int    `yaml:"max_retries"`
	BaseRetryDelayMS      *int    `yaml:"base_retry_delay_ms"`
	RateLimitDelayMS      *int    `yaml:"rate_limit_delay_ms"`
	PolitenessDelayMS     *int    `yaml:"politeness_delay_ms"`
	RequestTimeoutSeconds *int    `yaml:"request_timeout_seconds"`
	LaunchStaggerMS       *int    `yaml:"launch_stagger_ms"`

	DataDir           *string  `yaml:"data_dir"`
	TextPreviewLength *int     `yaml:"text_preview_length"`
	SentimentLabels   []string `yaml:"sentiment_labels"`

	ModelServiceURL   *string  `yaml:"model_service_url"`
	ModelServiceToken *string  `yaml:"model_service_token"`
	TrackedEntities   []string `yaml:"tracked_entities"`

	StorageAccount   *string `yaml:"azure_storage_account"`
	StorageContainer *string `yaml:"azure_storage_container"`
	ArchiveDir       *string `yaml:"archive_dir"`

	WebhookURL        *string `yaml:"webhook_url"`
	NotificationEmail *string `yaml:"notification_email"`
	SMTPHost          *string `yaml:"smtp_host"`
	SMTPPort          *int    `yaml:"smtp_port"`
	SMTPUsername      *string `yaml:"smtp_username"`
	SMTPPassword      *string `yaml:"smtp_password"`
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("invalid YAML: %w", err)
	}

	setString(&c.Port, fc.Port)
	setBool(&c.Debug, fc.Debug)
	setString(&c.Environment, fc.Environment)

	setString(&c.ReportSchedule, fc.ReportSchedule)
	setInt(&c.WindowDays, fc.WindowDays)
	if len(fc.Groups) > 0 {
		c.Groups = fc.Groups
	}

	setString(&c.VKAccessToken, fc.VKAccessToken)
	setString(&c.VKAPIVersion, fc.VKAPIVersion)
	setString(&c.VKAPIBaseURL, fc.VKAPIBaseURL)
	setInt(&c.PostsChunkSize, fc.PostsChunkSize)
	setInt(&c.CommentsChunkSize, fc.CommentsChunkSize)
	setInt(&c.MaxCommentsPerPost, fc.MaxCommentsPerPost)
	setInt(&c.GroupConcurrency, fc.GroupConcurrency)
	setInt(&c.MaxRetries, fc.MaxRetries)
	setDurationMS(&c.BaseRetryDelay, fc.BaseRetryDelayMS)
	setDurationMS(&c.RateLimitDelay, fc.RateLimitDelayMS)
	setDurationMS(&c.PolitenessDelay, fc.PolitenessDelayMS)
	setDurationSeconds(&c.RequestTimeout, fc.RequestTimeoutSeconds)
	setDurationMS(&c.LaunchStagger, fc.LaunchStaggerMS)

	setString(&c.DataDir, fc.DataDir)
	setInt(&c.TextPreviewLength, fc.TextPreviewLength)
	if len(fc.SentimentLabels) > 0 {
		c.SentimentLabels = fc.SentimentLabels
	}

	setString(&c.ModelServiceURL, fc.ModelServiceURL)
	setString(&c.ModelServiceToken, fc.ModelServiceToken)
	if len(fc.TrackedEntities) > 0 {
		c.TrackedEntities = fc.TrackedEntities
	}

	setString(&c.StorageAccount, fc.StorageAccount)
	setString(&c.StorageContainer, fc.StorageContainer)
	setString(&c.ArchiveDir, fc.ArchiveDir)

	setString(&c.WebhookURL, fc.WebhookURL)
	setString(&c.NotificationEmail, fc.NotificationEmail)
	setString(&c.SMTPHost, fc.SMTPHost)
	setInt(&c.SMTPPort, fc.SMTPPort)
	setString(&c.SMTPUsername, fc.SMTPUsername)
	setString(&c.SMTPPassword, fc.SMTPPassword)

	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnv("PORT", c.Port)
	c.Debug = getBoolEnv("DEBUG", c.Debug)
	c.Environment = getEnv("ENVIRONMENT", c.Environment)

	c.ReportSchedule = getEnv("REPORT_SCHEDULE", c.ReportSchedule)
	c.WindowDays = getIntEnv("WINDOW_DAYS", c.WindowDays)
	c.Groups = getSliceEnv("VK_GROUPS", c.Groups)

	c.VKAccessToken = getEnv("VK_ACCESS_TOKEN", c.VKAccessToken)
	c.VKAPIVersion = getEnv("VK_API_VERSION", c.VKAPIVersion)
	c.VKAPIBaseURL = getEnv("VK_API_BASE_URL", c.VKAPIBaseURL)
	c.PostsChunkSize = getIntEnv("POSTS_CHUNK_SIZE", c.PostsChunkSize)
	c.CommentsChunkSize = getIntEnv("COMMENTS_CHUNK_SIZE", c.CommentsChunkSize)
	c.MaxCommentsPerPost = getIntEnv("MAX_COMMENTS_PER_POST", c.MaxCommentsPerPost)
	c.GroupConcurrency = getIntEnv("GROUP_CONCURRENCY", c.GroupConcurrency)
	c.MaxRetries = getIntEnv("MAX_RETRIES", c.MaxRetries)
	c.BaseRetryDelay = getDurationMSEnv("BASE_RETRY_DELAY_MS", c.BaseRetryDelay)
	c.RateLimitDelay = getDurationMSEnv("RATE_LIMIT_DELAY_MS", c.RateLimitDelay)
	c.PolitenessDelay = getDurationMSEnv("POLITENESS_DELAY_MS", c.PolitenessDelay)
	c.RequestTimeout = getDurationSecondsEnv("REQUEST_TIMEOUT_SECONDS", c.RequestTimeout)
	c.LaunchStagger = getDurationMSEnv("LAUNCH_STAGGER_MS", c.LaunchStagger)

	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.TextPreviewLength = getIntEnv("TEXT_PREVIEW_LENGTH", c.TextPreviewLength)
	c.SentimentLabels = getSliceEnv("SENTIMENT_LABELS", c.SentimentLabels)

	c.ModelServiceURL = getEnv("MODEL_SERVICE_URL", c.ModelServiceURL)
	c.ModelServiceToken = getEnv("MODEL_SERVICE_TOKEN", c.ModelServiceToken)
	c.TrackedEntities = getSliceEnv("TRACKED_ENTITIES", c.TrackedEntities)

	c.StorageAccount = getEnv("AZURE_STORAGE_ACCOUNT", c.StorageAccount)
	c.StorageContainer = getEnv("AZURE_STORAGE_CONTAINER", c.StorageContainer)
	c.ArchiveDir = getEnv("ARCHIVE_DIR", c.ArchiveDir)

	c.WebhookURL = getEnv("WEBHOOK_URL", c.WebhookURL)
	c.NotificationEmail = getEnv("NOTIFICATION_EMAIL", c.NotificationEmail)
	c.SMTPHost = getEnv("SMTP_HOST", c.SMTPHost)
	c.SMTPPort = getIntEnv("SMTP_PORT", c.SMTPPort)
	c.SMTPUsername = getEnv("SMTP_USERNAME", c.SMTPUsername)
	c.SMTPPassword = getEnv("SMTP_PASSWORD", c.SMTPPassword)
}

func (c *Config) validate() error {
	if c.ReportSchedule != "daily" && c.ReportSchedule != "weekly" {
		return fmt.Errorf("REPORT_SCHEDULE must be 'daily' or 'weekly'")
	}

	if c.PostsChunkSize <= 0 || c.CommentsChunkSize <= 0 {
		return fmt.Errorf("chunk sizes must be positive")
	}

	if c.GroupConcurrency <= 0 {
		return fmt.Errorf("GROUP_CONCURRENCY must be positive")
	}

	if c.MaxRetries <= 0 {
		return fmt.Errorf("MAX_RETRIES must be positive")
	}

	if c.NotificationEmail != "" {
		if c.SMTPHost == "" || c.SMTPUsername == "" || c.SMTPPassword == "" {
			return fmt.Errorf("SMTP configuration is required when NOTIFICATION_EMAIL is set")
		}
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationMSEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return time.Duration(parsed) * time.Millisecond
		}
	}
	return defaultValue
}

func getDurationSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return time.Duration(parsed) * time.Second
		}
	}
	return defaultValue
}

func getSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return defaultValue
}

// Setters used by the YAML merge; nil means "not set in file".
func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setDurationMS(dst *time.Duration, v *int) {
	if v != nil {
		*dst = time.Duration(*v) * time.Millisecond
	}
}

func setDurationSeconds(dst *time.Duration, v *int) {
	if v != nil {
		*dst = time.Duration(*v) * time.Second
	}
}
