package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	// Jellyfin
	JellyfinURL    string `validate:"required,url"`
	JellyfinAPIKey string `validate:"required"`

	// Sonarr
	SonarrURL    string `validate:"required,url"`
	SonarrAPIKey string `validate:"required"`

	// Radarr
	RadarrURL    string `validate:"required,url"`
	RadarrAPIKey string `validate:"required"`

	// OMDb (optional metadata enhancement)
	OMDbAPIKey     string
	UseExternalAPI bool

	// Sync behaviour
	IgnoreSpecialEpisodes bool
	AutoSyncEnabled       bool
	SyncDelay             time.Duration `validate:"gte=0"`
	DedupMaxAge           time.Duration `validate:"gt=0"`
	EntityCacheTTL        time.Duration `validate:"gte=0"`

	// Remote calls
	RetryAttempts        int           `validate:"gte=1,lte=10"`
	RetryDelay           time.Duration `validate:"gte=0"`
	RetryMaxDelay        time.Duration `validate:"gte=0"`
	RequestTimeout       time.Duration `validate:"gt=0"`
	MaxRequestsPerMinute int           `validate:"gte=0"`

	// Webhook
	WebhookToken     string // seeds the persisted token on first start
	WebhookRateLimit int    `validate:"gte=1"`

	// Schedules (cron specs, empty disables)
	SyncSchedule  string
	RetrySchedule string

	// Server
	ServerPort string `validate:"required,numeric"`

	// Paths
	ConfigDir    string
	DatabaseFile string // $CONFIG_DIR/unmonitarr.db

	// Logging
	LogLevel  string `validate:"oneof=trace debug info warn warning error fatal panic"`
	LogFormat string `validate:"oneof=text json"`
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	v := viper.New()

	// Setup viper FIRST to load .env file
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = v.ReadInConfig()

	setDefaults(v)

	configDir, err := resolveConfigDir(v.GetString("CONFIG_DIR"))
	if err != nil {
		return nil, err
	}

	// Create config directory if it doesn't exist
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	config := &Config{
		// Jellyfin
		JellyfinURL:    strings.TrimRight(v.GetString("JELLYFIN_URL"), "/"),
		JellyfinAPIKey: v.GetString("JELLYFIN_API_KEY"),

		// Sonarr
		SonarrURL:    strings.TrimRight(v.GetString("SONARR_URL"), "/"),
		SonarrAPIKey: v.GetString("SONARR_API_KEY"),

		// Radarr
		RadarrURL:    strings.TrimRight(v.GetString("RADARR_URL"), "/"),
		RadarrAPIKey: v.GetString("RADARR_API_KEY"),

		// OMDb
		OMDbAPIKey:     v.GetString("OMDB_API_KEY"),
		UseExternalAPI: v.GetBool("USE_EXTERNAL_API"),

		// Sync behaviour
		IgnoreSpecialEpisodes: v.GetBool("IGNORE_SPECIAL_EPISODES"),
		AutoSyncEnabled:       v.GetBool("AUTO_SYNC_ENABLED"),
		SyncDelay:             time.Duration(v.GetInt("SYNC_DELAY_SECONDS")) * time.Second,
		DedupMaxAge:           time.Duration(v.GetInt("DEDUP_MAX_AGE_MINUTES")) * time.Minute,
		EntityCacheTTL:        time.Duration(v.GetInt("ENTITY_CACHE_SECONDS")) * time.Second,

		// Remote calls
		RetryAttempts:        v.GetInt("RETRY_ATTEMPTS"),
		RetryDelay:           time.Duration(v.GetInt("RETRY_DELAY_SECONDS")) * time.Second,
		RetryMaxDelay:        time.Duration(v.GetInt("RETRY_MAX_DELAY_SECONDS")) * time.Second,
		RequestTimeout:       time.Duration(v.GetInt("REQUEST_TIMEOUT_SECONDS")) * time.Second,
		MaxRequestsPerMinute: v.GetInt("MAX_REQUESTS_PER_MINUTE"),

		// Webhook
		WebhookToken:     v.GetString("WEBHOOK_TOKEN"),
		WebhookRateLimit: v.GetInt("WEBHOOK_RATE_LIMIT"),

		// Schedules
		SyncSchedule:  v.GetString("SYNC_SCHEDULE"),
		RetrySchedule: v.GetString("RETRY_SCHEDULE"),

		// Server
		ServerPort: v.GetString("SERVER_PORT"),

		// Paths
		ConfigDir:    configDir,
		DatabaseFile: filepath.Join(configDir, "unmonitarr.db"),

		// Logging
		LogLevel:  strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFormat: strings.ToLower(v.GetString("LOG_FORMAT")),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("JELLYFIN_URL", "http://localhost:8096")
	v.SetDefault("SONARR_URL", "http://localhost:8989")
	v.SetDefault("RADARR_URL", "http://localhost:7878")
	v.SetDefault("USE_EXTERNAL_API", true)
	v.SetDefault("IGNORE_SPECIAL_EPISODES", true)
	v.SetDefault("AUTO_SYNC_ENABLED", true)
	v.SetDefault("SYNC_DELAY_SECONDS", 5)
	v.SetDefault("DEDUP_MAX_AGE_MINUTES", 10)
	v.SetDefault("ENTITY_CACHE_SECONDS", 60)
	v.SetDefault("RETRY_ATTEMPTS", 3)
	v.SetDefault("RETRY_DELAY_SECONDS", 1)
	v.SetDefault("RETRY_MAX_DELAY_SECONDS", 10)
	v.SetDefault("REQUEST_TIMEOUT_SECONDS", 30)
	v.SetDefault("MAX_REQUESTS_PER_MINUTE", 60)
	v.SetDefault("WEBHOOK_RATE_LIMIT", 120)
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
}

func resolveConfigDir(configDir string) (string, error) {
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		return filepath.Join(homeDir, ".config", "unmonitarr"), nil
	}

	// Convert relative path to absolute path
	absPath, err := filepath.Abs(configDir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
	}
	return absPath, nil
}

// Validate checks the configuration against its struct tags
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fmt.Errorf("invalid configuration: %s", describe(fieldErrs[0]))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// EnhancementEnabled reports whether OMDb lookups may be used
func (c *Config) EnhancementEnabled() bool {
	return c.UseExternalAPI && c.OMDbAPIKey != ""
}

var envNames = map[string]string{
	"JellyfinURL":    "JELLYFIN_URL",
	"JellyfinAPIKey": "JELLYFIN_API_KEY",
	"SonarrURL":      "SONARR_URL",
	"SonarrAPIKey":   "SONARR_API_KEY",
	"RadarrURL":      "RADARR_URL",
	"RadarrAPIKey":   "RADARR_API_KEY",
	"ServerPort":     "SERVER_PORT",
	"LogLevel":       "LOG_LEVEL",
	"LogFormat":      "LOG_FORMAT",
	"RetryAttempts":  "RETRY_ATTEMPTS",
}

func describe(fe validator.FieldError) string {
	name, ok := envNames[fe.Field()]
	if !ok {
		name = fe.Field()
	}
	if fe.Tag() == "required" {
		return name + " is required"
	}
	return fmt.Sprintf("%s failed %q validation", name, fe.Tag())
}
