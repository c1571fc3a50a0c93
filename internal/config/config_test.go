package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/critterlife/internal/dialogue"
	"github.com/talgya/critterlife/internal/llm"
	"github.com/talgya/critterlife/internal/thinking"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsMatchSubsystems(t *testing.T) {
	def := Default()
	require.NoError(t, def.Validate())
	assert.Equal(t, dialogue.DefaultConfig(), def.DialogueConfig())
	assert.Equal(t, thinking.DefaultConfig(), def.ThinkingConfig())
}

func TestLoadOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
simulation:
  time_scale: 6
  seed: 42
dialogue:
  timeout_seconds: 4
  pair_cooldown_seconds: 30
thinking:
  interval_min_seconds: 20
  interval_max_seconds: 30
llm:
  provider: openai
persistence:
  slot: test
weather:
  location: Lisbon,PT
log:
  level: debug
  format: json
`)
	t.Setenv(EnvOpenAIKey, "sk-test")
	t.Setenv(EnvAdminKey, "admin")
	t.Setenv(EnvWeatherKey, "owm")

	tun, err := Load(path)
	require.NoError(t, err)
	assert.InDelta(t, 6, tun.Simulation.TimeScale, 1e-9)
	assert.EqualValues(t, 42, tun.Simulation.Seed)
	assert.Equal(t, Default().Simulation.FrameHz, tun.Simulation.FrameHz, "untouched keys keep defaults")
	assert.Equal(t, "test", tun.Persistence.Slot)
	assert.Equal(t, "admin", tun.Secrets.AdminKey)
	assert.Equal(t, "owm", tun.Secrets.WeatherKey)
	assert.Equal(t, "Lisbon,PT", tun.Weather.Location)
	assert.InDelta(t, 600, tun.Weather.PollSeconds, 1e-9)

	d := tun.DialogueConfig()
	assert.Equal(t, 4*time.Second, d.Timeout)
	assert.InDelta(t, 30, d.PairCooldown, 1e-9)

	th := tun.ThinkingConfig()
	assert.InDelta(t, 20, th.BaseInterval, 1e-9)
	assert.Equal(t, 10, th.IntervalSpread)

	lc := tun.LLMConfig()
	assert.Equal(t, llm.OpenAI, lc.Provider)
	assert.Equal(t, "sk-test", lc.APIKey)
}

func TestLoadWithoutFile(t *testing.T) {
	t.Setenv(EnvAnthropicKey, "ak")
	tun, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "ak", tun.LLMConfig().APIKey)
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"frame rate": "simulation:\n  frame_hz: 0\n",
		"provider":   "llm:\n  provider: carrier-pigeon\n",
		"release":    "dialogue:\n  release_min_seconds: 9\n  release_max_seconds: 2\n",
		"format":     "log:\n  format: xml\n",
		"level":      "log:\n  level: chatty\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeFile(t, "simulation: [unclosed"))
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLogger(t *testing.T) {
	tun := Default()
	tun.Log.Level = "warn"
	l := tun.Logger()
	assert.False(t, l.Enabled(t.Context(), -4))
}
