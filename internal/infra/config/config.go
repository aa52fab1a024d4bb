package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL    string
	RunnerKey      string // shared secret for the /api/reminders/run trigger
	HTTPListenAddr string

	TimeZone   string
	Location   *time.Location
	LeadTime   time.Duration
	StudioName string

	WhatsAppProvider      string // "simulated" or "meta"
	WhatsAppPhoneNumberID string
	WhatsAppAccessToken   string
	WhatsAppAPIVersion    string
	WhatsAppTemplateName  string
	WhatsAppLanguageCode  string

	CronSpecReminderRun string
	LogLevel            string
	Environment         string
}

// Load reads configuration from environment variables and .env file (if present).
// Invalid configuration (missing secrets, unknown zone, non-positive lead time)
// is a hard error: nothing should start half-configured.
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.RunnerKey = os.Getenv("REMINDER_RUNNER_KEY")
	if cfg.RunnerKey == "" {
		return nil, fmt.Errorf("REMINDER_RUNNER_KEY is not set")
	}

	cfg.HTTPListenAddr = os.Getenv("HTTP_LISTEN_ADDR")
	if cfg.HTTPListenAddr == "" {
		cfg.HTTPListenAddr = ":8080"
	}

	cfg.TimeZone = os.Getenv("REMINDER_TIMEZONE")
	if cfg.TimeZone == "" {
		cfg.TimeZone = "Atlantic/Canary" // Studio reference zone
	}
	cfg.Location, err = time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid REMINDER_TIMEZONE %q: %w", cfg.TimeZone, err)
	}

	leadHoursStr := os.Getenv("REMINDER_LEAD_HOURS")
	if leadHoursStr == "" {
		leadHoursStr = "48"
	}
	leadHours, err := strconv.Atoi(leadHoursStr)
	if err != nil {
		return nil, fmt.Errorf("invalid REMINDER_LEAD_HOURS: %w", err)
	}
	if leadHours <= 0 {
		return nil, fmt.Errorf("REMINDER_LEAD_HOURS must be positive, got %d", leadHours)
	}
	cfg.LeadTime = time.Duration(leadHours) * time.Hour

	cfg.StudioName = os.Getenv("STUDIO_NAME")
	if cfg.StudioName == "" {
		cfg.StudioName = "Ink Masters"
	}

	cfg.WhatsAppProvider = strings.ToLower(os.Getenv("WHATSAPP_PROVIDER"))
	if cfg.WhatsAppProvider == "" {
		cfg.WhatsAppProvider = "simulated"
	}
	if cfg.WhatsAppProvider != "simulated" && cfg.WhatsAppProvider != "meta" {
		return nil, fmt.Errorf("invalid WHATSAPP_PROVIDER %q (must be 'simulated' or 'meta')", cfg.WhatsAppProvider)
	}

	cfg.WhatsAppPhoneNumberID = os.Getenv("WHATSAPP_PHONE_NUMBER_ID")
	cfg.WhatsAppAccessToken = os.Getenv("WHATSAPP_ACCESS_TOKEN")

	cfg.WhatsAppAPIVersion = os.Getenv("WHATSAPP_API_VERSION")
	if cfg.WhatsAppAPIVersion == "" {
		cfg.WhatsAppAPIVersion = "v20.0"
	}
	cfg.WhatsAppTemplateName = os.Getenv("WHATSAPP_TEMPLATE_NAME")
	if cfg.WhatsAppTemplateName == "" {
		cfg.WhatsAppTemplateName = "appointment_reminder_24h"
	}
	cfg.WhatsAppLanguageCode = os.Getenv("WHATSAPP_LANGUAGE_CODE")
	if cfg.WhatsAppLanguageCode == "" {
		cfg.WhatsAppLanguageCode = "es"
	}

	cfg.CronSpecReminderRun = os.Getenv("CRON_SPEC_REMINDER_RUN")
	if cfg.CronSpecReminderRun == "" {
		cfg.CronSpecReminderRun = "0 * * * *" // Hourly, matching the one-hour window tiling
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	return cfg, nil
}
