package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	for _, key := range []string{"PORT", "MAIL_CONTACT_BATCH_SIZE", "MAIL_AFFILIATE_BATCH_SIZE", "DEFAULT_SECCIONAL", "DB_CONNECT_TIMEOUT", "APP_TIMEZONE"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 50, cfg.Mail.ContactBatchSize)
	assert.Equal(t, 100, cfg.Mail.AffiliateBatchSize)
	assert.Equal(t, "Madrid", cfg.Org.DefaultSeccional)
	assert.Equal(t, 5*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, "Europe/Madrid", cfg.Org.Location().String())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", testSecret)
	t.Setenv("MAIL_AFFILIATE_BATCH_SIZE", "25")
	t.Setenv("IMPORT_POLL_INTERVAL", "500ms")
	t.Setenv("CONTACT_RATE_PER_SECOND", "1.5")
	t.Setenv("DB_MAX_OPEN_CONNS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Mail.AffiliateBatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.Import.PollInterval)
	assert.Equal(t, 1.5, cfg.RateLimit.ContactPerSecond)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns, "unparseable values keep the default")
}

func TestLoad_RejectsShortSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "short")

	_, err := Load()
	assert.EqualError(t, err, "JWT_SECRET must be at least 32 bytes")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Host: "localhost", Name: "crm"},
			Auth:     AuthConfig{JWTSecret: testSecret},
			Mail:     MailConfig{ContactBatchSize: 50, AffiliateBatchSize: 100},
			Org:      OrgConfig{Timezone: "UTC"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing host", func(c *Config) { c.Database.Host = "" }, "DB_HOST is required"},
		{"missing name", func(c *Config) { c.Database.Name = "" }, "DB_NAME is required"},
		{"zero batch", func(c *Config) { c.Mail.ContactBatchSize = 0 }, "mail batch sizes must be positive"},
		{"bad timezone", func(c *Config) { c.Org.Timezone = "Mars/Olympus" }, "APP_TIMEZONE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMailEnabled(t *testing.T) {
	assert.False(t, (&MailConfig{}).MailEnabled())
	assert.False(t, (&MailConfig{ResendAPIKey: "re_PLACEHOLDER"}).MailEnabled())
	assert.True(t, (&MailConfig{ResendAPIKey: "re_123"}).MailEnabled())
}

func TestGetDSN(t *testing.T) {
	c := &DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "crm", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=crm sslmode=disable application_name=crm-electoral-api", c.GetDSN())

	c.URL = "postgres://u:p@db/crm"
	assert.Equal(t, "postgres://u:p@db/crm", c.GetDSN())
}
