package alert_notifier_config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/NordCoder/alert-notifier/internal/domain/notification"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const sampleYAML = `
poller:
  interval: 5s
  default_notificator: email_only
  sources:
    - name: alerts
    - name: alerts-discord
      notificator_id: discord_only
      with_header: true
channels:
  smtp:
    host: smtp.example.com
    port: 587
    from: alerts@example.com
notification_methods:
  - id: SMTPEmailMethodTest
    type: emailSMTP
    config:
      to_emails: [ops@example.com, oncall@example.com]
      subject_prefix: "[Alert]"
  - id: DiscordTestChannel
    type: discordWebhook
    config:
      webhook_url: https://discord.example.com/api/webhooks/1/abc
notificators:
  - id: email_only
    notification_methods: [SMTPEmailMethodTest]
  - id: discord_only
    notification_methods: [DiscordTestChannel]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alert-notifier.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFileAndDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Poller.Interval)
	assert.Equal(t, 100, cfg.Poller.BatchSize)
	assert.Equal(t, 1, cfg.Poller.Workers)
	assert.Equal(t, DriverElasticsearch, cfg.Store.Driver)
	assert.Equal(t, []string{"http://localhost:9200"}, cfg.Store.Elastic.Addresses)
	assert.Equal(t, 3, cfg.Dispatcher.Retry.Attempts)

	require.Len(t, cfg.Poller.Sources, 2)
	assert.Equal(t, "discord_only", cfg.Poller.Sources[1].NotificatorID)
	assert.True(t, cfg.Poller.Sources[1].WithHeader)

	methods := cfg.MethodConfigs()
	require.Len(t, methods, 2)
	assert.Equal(t, notification.TypeEmailSMTP, methods[0].Type)
	assert.Equal(t, "[Alert]", methods[0].Config["subject_prefix"])

	nots := cfg.NotificatorConfigs()
	require.Len(t, nots, 2)
	assert.Equal(t, []string{"SMTPEmailMethodTest"}, nots[0].Methods)

	require.NoError(t, cfg.Validate())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("POLLER_INTERVAL", "30s")
	t.Setenv("SMTP_USERNAME", "bot@example.com")
	t.Setenv("CHANNELS_SMTP_PASSWORD", "hunter2")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.Poller.Interval)
	assert.Equal(t, "bot@example.com", cfg.Channels.SMTP.User)
	assert.Equal(t, "hunter2", cfg.Channels.SMTP.Password)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 15*time.Second, cfg.Poller.Interval)

	err = cfg.Validate()
	assert.ErrorIs(t, err, ErrInvalid)
	assert.ErrorIs(t, err, notification.ErrConfig)
	assert.Contains(t, err.Error(), "poller.sources is empty")
}

func TestValidate(t *testing.T) {
	base := func(t *testing.T) *Config {
		cfg, err := Load(writeConfig(t, sampleYAML))
		require.NoError(t, err)
		return cfg
	}

	t.Run("unknown source notificator", func(t *testing.T) {
		cfg := base(t)
		cfg.Poller.Sources[0].NotificatorID = "nope"
		assert.ErrorContains(t, cfg.Validate(), `notificator "nope" is not defined`)
	})
	t.Run("unknown driver", func(t *testing.T) {
		cfg := base(t)
		cfg.Store.Driver = "mongo"
		assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
	})
	t.Run("discord bot without token", func(t *testing.T) {
		cfg := base(t)
		cfg.Methods = append(cfg.Methods, Method{ID: "bot", Type: "discordBot"})
		assert.ErrorContains(t, cfg.Validate(), "channels.discord.bot_token is required")
	})
	t.Run("http timeout bounded by method timeout", func(t *testing.T) {
		cfg := base(t)
		cfg.Dispatcher.MethodTimeout = 5 * time.Second
		cfg.Channels.HTTPTimeout = 30 * time.Second
		assert.ErrorContains(t, cfg.Validate(), "channels.http_timeout 30s exceeds dispatcher.method_timeout 5s")

		cfg.Channels.HTTPTimeout = 5 * time.Second
		assert.NoError(t, cfg.Validate())
	})
	t.Run("token hash must be bcrypt", func(t *testing.T) {
		cfg := base(t)
		cfg.API.TokenHash = "plain"
		assert.ErrorContains(t, cfg.Validate(), "api.token_hash")

		hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
		require.NoError(t, err)
		cfg.API.TokenHash = string(hash)
		assert.NoError(t, cfg.Validate())
	})
	t.Run("duplicate source", func(t *testing.T) {
		cfg := base(t)
		cfg.Poller.Sources = append(cfg.Poller.Sources, Source{Name: "alerts"})
		assert.ErrorContains(t, cfg.Validate(), `duplicate source "alerts"`)
	})
}

func TestSender(t *testing.T) {
	assert.Equal(t, "bot@example.com", SMTP{User: "bot@example.com"}.Sender())
	assert.Equal(t, "alerts@example.com", SMTP{User: "bot@example.com", From: "alerts@example.com"}.Sender())
}
