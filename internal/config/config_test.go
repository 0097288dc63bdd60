package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CALENDAR_PROVIDER", "")
	t.Setenv("REMINDER_INTERVAL", "")

	cfg := Load()

	assert.Equal(t, "default_user", cfg.DefaultUserID)
	assert.Equal(t, CalendarGoogle, cfg.CalendarProvider)
	assert.Equal(t, 5*time.Minute, cfg.ReminderInterval)
	assert.Equal(t, 30*time.Minute, cfg.ReminderWindow)
	assert.Equal(t, 24*time.Hour, cfg.InsightInterval)
	assert.Equal(t, 30*24*time.Hour, cfg.InsightLookback)
	assert.Equal(t, 20, cfg.ReminderHistory)
	assert.Equal(t, 20, cfg.SyncLimit)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CALENDAR_PROVIDER", "CalDAV")
	t.Setenv("REMINDER_INTERVAL", "90s")
	t.Setenv("SYNC_LIMIT", "50")
	t.Setenv("AUTH_ENABLED", "true")

	cfg := Load()

	assert.Equal(t, CalendarCalDAV, cfg.CalendarProvider)
	assert.Equal(t, 90*time.Second, cfg.ReminderInterval)
	assert.Equal(t, 50, cfg.SyncLimit)
	assert.True(t, cfg.AuthEnabled)
}

func TestGetListEnv(t *testing.T) {
	t.Setenv("X_LIST", " https://a.example ,, https://b.example")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, getListEnv("X_LIST"))
	assert.Nil(t, getListEnv("X_LIST_UNSET"))
}

func TestGetHelpersIgnoreGarbage(t *testing.T) {
	t.Setenv("X_INT", "nope")
	t.Setenv("X_DUR", "soon")
	t.Setenv("X_BOOL", "maybe")

	assert.Equal(t, 7, getIntEnv("X_INT", 7))
	assert.Equal(t, time.Second, getDurationEnv("X_DUR", time.Second))
	assert.True(t, getBoolEnv("X_BOOL", true))
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			DefaultUserID:    "default_user",
			CalendarProvider: CalendarNone,
			ReminderInterval: time.Minute,
			ReminderWindow:   time.Minute,
			InsightInterval:  time.Hour,
			InsightLookback:  time.Hour,
			SyncLimit:        10,
		}
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.AuthEnabled = true
	assert.ErrorContains(t, cfg.Validate(), "JWT_SECRET")

	cfg = valid()
	cfg.CalendarProvider = "outlook"
	assert.ErrorContains(t, cfg.Validate(), "outlook")

	cfg = valid()
	cfg.CalendarProvider = CalendarCalDAV
	assert.ErrorContains(t, cfg.Validate(), "CALDAV_ENDPOINT")

	cfg = valid()
	cfg.ReminderInterval = 0
	assert.Error(t, cfg.Validate())
}
