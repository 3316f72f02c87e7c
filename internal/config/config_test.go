package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("ONESIGNAL_APP_ID", "app-123")
	t.Setenv("ONESIGNAL_REST_API_KEY", "key-456")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, "https://onesignal.com", cfg.OneSignal.APIURL)
	assert.Equal(t, "https://graph.facebook.com", cfg.Facebook.GraphURL)
	assert.Equal(t, "v18.0", cfg.Facebook.GraphVersion)
	assert.Equal(t, "https://www.facebook.com/samelco", cfg.Facebook.ProfileURL)
	assert.Equal(t, 10, cfg.PostLimit)
	assert.Equal(t, 1, cfg.DispatchConcurrency)
	assert.Equal(t, 30*time.Second, cfg.OutboundTimeout)
	assert.False(t, cfg.FeedEnabled())
}

func TestLoadRequiresNotificationCredentials(t *testing.T) {
	t.Setenv("ONESIGNAL_APP_ID", "")
	t.Setenv("ONESIGNAL_REST_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ONESIGNAL_APP_ID and ONESIGNAL_REST_API_KEY is required")
}

func TestFeedEnabledNeedsAllCredentials(t *testing.T) {
	setRequired(t)
	t.Setenv("FACEBOOK_APP_ID", "fb-app")
	t.Setenv("FACEBOOK_APP_SECRET", "fb-secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.FeedEnabled(), "page id still missing")

	t.Setenv("FACEBOOK_PAGE_ID", "117290636838993")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.FeedEnabled())
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "8081")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DISPATCH_CONCURRENCY", "4")
	t.Setenv("OUTBOUND_TIMEOUT", "5s")
	t.Setenv("FEED_PROFILE_URL", "https://www.facebook.com/example/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 4, cfg.DispatchConcurrency)
	assert.Equal(t, 5*time.Second, cfg.OutboundTimeout)
	assert.Equal(t, "https://www.facebook.com/example", cfg.Facebook.ProfileURL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"PORT", "abc"},
		{"LOG_LEVEL", "verbose"},
		{"FEED_POST_LIMIT", "0"},
		{"DISPATCH_CONCURRENCY", "0"},
		{"OUTBOUND_TIMEOUT", "soon"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
