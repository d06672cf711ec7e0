package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, time.Hour, cfg.Reminders.Interval)
	assert.Equal(t, 24*time.Hour, cfg.Reminders.Lead)
	assert.Equal(t, 60, cfg.Appointments.DefaultDurationMinutes)
	assert.Equal(t, 256, cfg.Events.OutboxSize)
	assert.True(t, cfg.Events.Log)
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(`
store:
  driver: memory
reminders:
  interval: 30s
events:
  webhooks:
    - url: http://hooks.local/dl
      events: ["mediation.*"]
`))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 30*time.Second, cfg.Reminders.Interval)
	assert.Equal(t, 24*time.Hour, cfg.Reminders.Lead, "unset keys keep defaults")
	require.Len(t, cfg.Events.Webhooks, 1)
	assert.Equal(t, []string{"mediation.*"}, cfg.Events.Webhooks[0].Events)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"driver":   "store:\n  driver: postgres\n",
		"duration": "appointments:\n  default_duration_minutes: 5\n",
		"interval": "reminders:\n  interval: 0s\n",
		"webhook":  "events:\n  webhooks:\n    - secret: x\n",
		"redis":    "events:\n  redis:\n    url: redis://localhost:6379\n    stream: \"\"\n",
		"log":      "log:\n  format: xml\n",
		"yaml":     "store: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := FromYAML([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	_, err = Load(dir)
	require.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(GenerateDefault()), 0o644))
	cfg, err = LoadOptional(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
}
