package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the scheduler daemon
type Config struct {
	// Mailbox (IMAP fetch + SMTP send)
	IMAPHost     string
	IMAPPort     int
	IMAPUsername string
	IMAPPassword string
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	FromName     string

	// Scheduling behavior
	AuthorizedSender          string
	WorkingHoursStart         int
	WorkingHoursEnd           int
	MinMeetingDurationMinutes int
	PollIntervalSeconds       int
	ProposalCandidateCount    int
	MaxNegotiationRounds      int
	WorkerCount               int
	Timezone                  string

	// AI providers
	AIProvider    string
	GeminiAPIKey  string
	OllamaBaseURL string
	OllamaModel   string

	// Google Calendar
	GoogleCalendarID      string
	GoogleCredentialsFile string

	// Storage: postgres DSN if set, otherwise local sqlite file
	DatabaseURL string
	SQLitePath  string

	// Status API
	APIPort string
	APIKey  string
}

// Load reads configuration from the environment (and .env if present)
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		IMAPHost:              getEnv("IMAP_HOST", "imap.gmail.com"),
		IMAPUsername:          os.Getenv("IMAP_USERNAME"),
		IMAPPassword:          os.Getenv("IMAP_PASSWORD"),
		SMTPHost:              getEnv("SMTP_HOST", "smtp.gmail.com"),
		SMTPUsername:          os.Getenv("SMTP_USERNAME"),
		SMTPPassword:          os.Getenv("SMTP_PASSWORD"),
		FromName:              getEnv("FROM_NAME", "AI Meeting Scheduler"),
		AuthorizedSender:      os.Getenv("AUTHORIZED_SENDER"),
		Timezone:              getEnv("TIMEZONE", "America/New_York"),
		AIProvider:            getEnv("AI_PROVIDER", "auto"),
		GeminiAPIKey:          os.Getenv("GEMINI_API_KEY"),
		OllamaBaseURL:         getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:           getEnv("OLLAMA_MODEL", "llama3"),
		GoogleCalendarID:      getEnv("GOOGLE_CALENDAR_ID", "primary"),
		GoogleCredentialsFile: os.Getenv("GOOGLE_CREDENTIALS_FILE"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		SQLitePath:            getEnv("SQLITE_PATH", "schedbot.db"),
		APIPort:               getEnv("API_PORT", "8080"),
		APIKey:                os.Getenv("API_KEY"),
	}

	var err error
	if cfg.IMAPPort, err = getEnvInt("IMAP_PORT", 993); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = getEnvInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}
	if cfg.WorkingHoursStart, err = getEnvInt("WORKING_HOURS_START", 9); err != nil {
		return nil, err
	}
	if cfg.WorkingHoursEnd, err = getEnvInt("WORKING_HOURS_END", 17); err != nil {
		return nil, err
	}
	if cfg.MinMeetingDurationMinutes, err = getEnvInt("MIN_MEETING_DURATION_MINUTES", 30); err != nil {
		return nil, err
	}
	if cfg.PollIntervalSeconds, err = getEnvInt("POLL_INTERVAL_SECONDS", 30); err != nil {
		return nil, err
	}
	if cfg.ProposalCandidateCount, err = getEnvInt("PROPOSAL_CANDIDATE_COUNT", 3); err != nil {
		return nil, err
	}
	if cfg.MaxNegotiationRounds, err = getEnvInt("MAX_NEGOTIATION_ROUNDS", 5); err != nil {
		return nil, err
	}
	if cfg.WorkerCount, err = getEnvInt("WORKER_COUNT", 4); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if the configuration is usable; errors here are fatal at startup
func (c *Config) Validate() error {
	if c.IMAPUsername == "" || c.IMAPPassword == "" {
		return fmt.Errorf("IMAP_USERNAME and IMAP_PASSWORD are required")
	}
	if c.SMTPUsername == "" {
		c.SMTPUsername = c.IMAPUsername
	}
	if c.SMTPPassword == "" {
		c.SMTPPassword = c.IMAPPassword
	}
	if c.AuthorizedSender == "" {
		return fmt.Errorf("AUTHORIZED_SENDER is required")
	}
	if c.WorkingHoursStart < 0 || c.WorkingHoursEnd > 24 || c.WorkingHoursStart >= c.WorkingHoursEnd {
		return fmt.Errorf("working hours %d..%d are invalid", c.WorkingHoursStart, c.WorkingHoursEnd)
	}
	if c.MinMeetingDurationMinutes <= 0 {
		return fmt.Errorf("MIN_MEETING_DURATION_MINUTES must be positive")
	}
	if c.PollIntervalSeconds <= 0 {
		return fmt.Errorf("POLL_INTERVAL_SECONDS must be positive")
	}
	if c.ProposalCandidateCount <= 0 {
		return fmt.Errorf("PROPOSAL_CANDIDATE_COUNT must be positive")
	}
	if c.MaxNegotiationRounds <= 0 {
		return fmt.Errorf("MAX_NEGOTIATION_ROUNDS must be positive")
	}
	if c.WorkerCount <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive")
	}
	if c.AIProvider != "gemini" && c.AIProvider != "ollama" && c.AIProvider != "auto" {
		return fmt.Errorf("AI_PROVIDER must be gemini, ollama or auto, got %q", c.AIProvider)
	}
	if c.AIProvider == "gemini" && c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required when AI_PROVIDER=gemini")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("TIMEZONE %q is invalid: %w", c.Timezone, err)
	}
	return nil
}

// Location resolves the configured timezone
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// PollInterval returns the poll interval as a duration
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid integer: %w", key, err)
	}
	return parsed, nil
}
