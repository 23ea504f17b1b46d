package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		IMAPHost:                  "imap.example.com",
		IMAPPort:                  993,
		IMAPUsername:              "bot@example.com",
		IMAPPassword:              "secret",
		SMTPHost:                  "smtp.example.com",
		SMTPPort:                  587,
		AuthorizedSender:          "alice@example.com",
		WorkingHoursStart:         9,
		WorkingHoursEnd:           17,
		MinMeetingDurationMinutes: 30,
		PollIntervalSeconds:       30,
		ProposalCandidateCount:    3,
		MaxNegotiationRounds:      5,
		WorkerCount:               4,
		Timezone:                  "America/New_York",
		AIProvider:                "auto",
	}
}

func TestValidate_AcceptsCompleteConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_SMTPCredentialsDefaultToIMAP(t *testing.T) {
	cfg := validConfig()

	require.NoError(t, cfg.Validate())

	assert.Equal(t, "bot@example.com", cfg.SMTPUsername)
	assert.Equal(t, "secret", cfg.SMTPPassword)
}

func TestValidate_RequiresIMAPCredentials(t *testing.T) {
	cfg := validConfig()
	cfg.IMAPPassword = ""

	assert.Error(t, cfg.Validate())
}

func TestValidate_RequiresAuthorizedSender(t *testing.T) {
	cfg := validConfig()
	cfg.AuthorizedSender = ""

	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsInvertedWorkingHours(t *testing.T) {
	cfg := validConfig()
	cfg.WorkingHoursStart = 18
	cfg.WorkingHoursEnd = 9

	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsUnknownProvider(t *testing.T) {
	cfg := validConfig()
	cfg.AIProvider = "gpt"

	assert.Error(t, cfg.Validate())
}

func TestValidate_GeminiProviderNeedsKey(t *testing.T) {
	cfg := validConfig()
	cfg.AIProvider = "gemini"

	assert.Error(t, cfg.Validate())

	cfg.GeminiAPIKey = "key"
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RejectsBogusTimezone(t *testing.T) {
	cfg := validConfig()
	cfg.Timezone = "Mars/Olympus_Mons"

	assert.Error(t, cfg.Validate())
}
