// Package config loads host tuning from YAML and secrets from the
// environment.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/talgya/critterlife/internal/dialogue"
	"github.com/talgya/critterlife/internal/engine"
	"github.com/talgya/critterlife/internal/llm"
	"github.com/talgya/critterlife/internal/thinking"
)

// Environment variables read by Load.
const (
	EnvAnthropicKey = "ANTHROPIC_API_KEY"
	EnvOpenAIKey    = "OPENAI_API_KEY"
	EnvAdminKey     = "CRITTERLIFE_ADMIN_KEY"
	EnvWeatherKey   = "OPENWEATHER_API_KEY"
)

// Tuning is the full host configuration.
type Tuning struct {
	Simulation  Simulation  `yaml:"simulation"`
	Dialogue    Dialogue    `yaml:"dialogue"`
	Thinking    Thinking    `yaml:"thinking"`
	LLM         LLM         `yaml:"llm"`
	Speech      Speech      `yaml:"speech"`
	Weather     Weather     `yaml:"weather"`
	Persistence Persistence `yaml:"persistence"`
	API         API         `yaml:"api"`
	Log         Log         `yaml:"log"`

	Secrets Secrets `yaml:"-"`
}

type Simulation struct {
	FrameHz           int     `yaml:"frame_hz"`
	TimeScale         float64 `yaml:"time_scale"`
	Seed              int64   `yaml:"seed"` // 0 picks a crypto-backed source
	PopulationCap     int     `yaml:"population_cap"`
	AnimalCap         int     `yaml:"animal_cap"`
	Founders          int     `yaml:"founders"`
	Animals           int     `yaml:"animals"`
	SpawnGraceSeconds float64 `yaml:"spawn_grace_seconds"`
	FieldHalfSize     float64 `yaml:"field_half_size"`
}

type Dialogue struct {
	SensorRadius        float64 `yaml:"sensor_radius"`
	PairCooldownSeconds float64 `yaml:"pair_cooldown_seconds"`
	TimeoutSeconds      float64 `yaml:"timeout_seconds"`
	ReleaseMinSeconds   float64 `yaml:"release_min_seconds"`
	ReleaseMaxSeconds   float64 `yaml:"release_max_seconds"`
	BubbleSeconds       float64 `yaml:"bubble_seconds"`
	StuckSeconds        float64 `yaml:"stuck_seconds"`
	MaxTurns            int     `yaml:"max_turns"`
	MaxQuarrelTurns     int     `yaml:"max_quarrel_turns"`
}

type Thinking struct {
	IntervalMinSeconds float64 `yaml:"interval_min_seconds"`
	IntervalMaxSeconds float64 `yaml:"interval_max_seconds"`
	TimeoutSeconds     float64 `yaml:"timeout_seconds"`
	NearbyRadius       float64 `yaml:"nearby_radius"`
	NearbyCap          int     `yaml:"nearby_cap"`
}

type LLM struct {
	Provider   string `yaml:"provider"`
	Model      string `yaml:"model"`
	MaxPerMin  int    `yaml:"max_per_minute"`
	BaseURL    string `yaml:"base_url"`
	TimeoutSec int    `yaml:"timeout_seconds"`
}

type Speech struct {
	Enabled  bool   `yaml:"enabled"`
	Provider string `yaml:"provider"`
}

// Weather follows a real location's sky when a key is set.
type Weather struct {
	Location    string  `yaml:"location"`
	PollSeconds float64 `yaml:"poll_seconds"`
}

type Persistence struct {
	Path               string  `yaml:"path"`
	Slot               string  `yaml:"slot"`
	AutosaveSeconds    float64 `yaml:"autosave_seconds"`
	ResetOnUnsupported bool    `yaml:"reset_on_unsupported"`
}

type API struct {
	Port     int     `yaml:"port"`
	StreamHz float64 `yaml:"stream_hz"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Secrets are taken from the environment only and never written anywhere.
type Secrets struct {
	AnthropicKey string
	OpenAIKey    string
	AdminKey     string
	WeatherKey   string
}

// Default returns the built-in tuning.
func Default() Tuning {
	d := dialogue.DefaultConfig()
	th := thinking.DefaultConfig()
	e := engine.DefaultConfig()
	return Tuning{
		Simulation: Simulation{
			FrameHz:           engine.DefaultFrameHz,
			TimeScale:         3,
			PopulationCap:     8,
			AnimalCap:         6,
			Founders:          4,
			Animals:           4,
			SpawnGraceSeconds: d.SpawnGrace,
			FieldHalfSize:     e.FieldHalfSize,
		},
		Dialogue: Dialogue{
			SensorRadius:        d.SensorRadius,
			PairCooldownSeconds: d.PairCooldown,
			TimeoutSeconds:      d.Timeout.Seconds(),
			ReleaseMinSeconds:   d.ReleaseMin,
			ReleaseMaxSeconds:   d.ReleaseMax,
			BubbleSeconds:       d.BubbleSeconds,
			StuckSeconds:        d.StuckSeconds,
			MaxTurns:            d.MaxTurns,
			MaxQuarrelTurns:     d.MaxQuarrelTurns,
		},
		Thinking: Thinking{
			IntervalMinSeconds: th.BaseInterval,
			IntervalMaxSeconds: th.BaseInterval + float64(th.IntervalSpread),
			TimeoutSeconds:     th.Timeout.Seconds(),
			NearbyRadius:       th.NearbyRadius,
			NearbyCap:          th.NearbyCap,
		},
		LLM: LLM{
			Provider:   string(llm.Anthropic),
			MaxPerMin:  20,
			TimeoutSec: 30,
		},
		Speech:  Speech{Provider: "log"},
		Weather: Weather{PollSeconds: 600},
		Persistence: Persistence{
			Path:               "critterlife.db",
			Slot:               "main",
			AutosaveSeconds:    60,
			ResetOnUnsupported: true,
		},
		API: API{Port: 8080, StreamHz: 2},
		Log: Log{Level: "info", Format: "text"},
	}
}

// Load reads path over the defaults and fills secrets from the
// environment. An empty path loads only the defaults.
func Load(path string) (Tuning, error) {
	t := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return t, fmt.Errorf("read tuning: %w", err)
		}
		if err := yaml.Unmarshal(raw, &t); err != nil {
			return t, fmt.Errorf("%s: %w", path, err)
		}
	}
	t.Secrets = Secrets{
		AnthropicKey: os.Getenv(EnvAnthropicKey),
		OpenAIKey:    os.Getenv(EnvOpenAIKey),
		AdminKey:     os.Getenv(EnvAdminKey),
		WeatherKey:   os.Getenv(EnvWeatherKey),
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

// Validate rejects values no subsystem can run with.
func (t Tuning) Validate() error {
	var errs []error
	if t.Simulation.FrameHz <= 0 {
		errs = append(errs, fmt.Errorf("simulation.frame_hz must be positive, got %d", t.Simulation.FrameHz))
	}
	if t.Simulation.TimeScale <= 0 {
		errs = append(errs, fmt.Errorf("simulation.time_scale must be positive, got %g", t.Simulation.TimeScale))
	}
	if t.Simulation.PopulationCap < 1 {
		errs = append(errs, errors.New("simulation.population_cap must be at least 1"))
	}
	if t.Dialogue.ReleaseMaxSeconds < t.Dialogue.ReleaseMinSeconds {
		errs = append(errs, errors.New("dialogue.release_max_seconds is below release_min_seconds"))
	}
	if t.Thinking.IntervalMaxSeconds < t.Thinking.IntervalMinSeconds {
		errs = append(errs, errors.New("thinking.interval_max_seconds is below interval_min_seconds"))
	}
	switch llm.Provider(t.LLM.Provider) {
	case llm.Anthropic, llm.OpenAI:
	default:
		errs = append(errs, fmt.Errorf("llm.provider %q is not anthropic or openai", t.LLM.Provider))
	}
	switch t.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not text or json", t.Log.Format))
	}
	if t.Weather.PollSeconds < 60 {
		errs = append(errs, fmt.Errorf("weather.poll_seconds must be at least 60, got %g", t.Weather.PollSeconds))
	}
	if _, err := parseLevel(t.Log.Level); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DialogueConfig maps the dialogue section onto the orchestrator's tuning.
func (t Tuning) DialogueConfig() dialogue.Config {
	c := dialogue.DefaultConfig()
	d := t.Dialogue
	c.SensorRadius = d.SensorRadius
	c.PairCooldown = d.PairCooldownSeconds
	c.SpawnGrace = t.Simulation.SpawnGraceSeconds
	c.Timeout = seconds(d.TimeoutSeconds)
	c.ReleaseMin = d.ReleaseMinSeconds
	c.ReleaseMax = d.ReleaseMaxSeconds
	c.BubbleSeconds = d.BubbleSeconds
	c.StuckSeconds = d.StuckSeconds
	c.MaxTurns = d.MaxTurns
	c.MaxQuarrelTurns = d.MaxQuarrelTurns
	return c
}

// ThinkingConfig maps the thinking section onto the loop's tuning.
func (t Tuning) ThinkingConfig() thinking.Config {
	c := thinking.DefaultConfig()
	th := t.Thinking
	c.BaseInterval = th.IntervalMinSeconds
	c.IntervalSpread = int(th.IntervalMaxSeconds - th.IntervalMinSeconds)
	c.Timeout = seconds(th.TimeoutSeconds)
	c.NearbyRadius = th.NearbyRadius
	c.NearbyCap = th.NearbyCap
	return c
}

// EngineConfig maps the simulation section onto the frame driver.
func (t Tuning) EngineConfig() engine.Config {
	c := engine.DefaultConfig()
	if t.Simulation.FieldHalfSize > 0 {
		c.FieldHalfSize = t.Simulation.FieldHalfSize
	}
	return c
}

// LLMConfig picks the API key that matches the configured provider.
func (t Tuning) LLMConfig() llm.Config {
	p := llm.Provider(t.LLM.Provider)
	key := t.Secrets.AnthropicKey
	if p == llm.OpenAI {
		key = t.Secrets.OpenAIKey
	}
	return llm.Config{
		Provider:  p,
		APIKey:    key,
		Model:     t.LLM.Model,
		MaxPerMin: t.LLM.MaxPerMin,
		BaseURL:   t.LLM.BaseURL,
		Timeout:   time.Duration(t.LLM.TimeoutSec) * time.Second,
	}
}

// Logger builds the slog handler described by the log section.
func (t Tuning) Logger() *slog.Logger {
	level, _ := parseLevel(t.Log.Level)
	opts := &slog.HandlerOptions{Level: level}
	if t.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level %q: %w", s, err)
	}
	return l, nil
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
