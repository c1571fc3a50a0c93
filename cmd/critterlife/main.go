// Command critterlife runs the meadow headless: it stands in for the
// rendering loop, persists the world, and serves it to observers.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/talgya/critterlife/internal/api"
	"github.com/talgya/critterlife/internal/config"
	"github.com/talgya/critterlife/internal/dialogue"
	"github.com/talgya/critterlife/internal/engine"
	"github.com/talgya/critterlife/internal/entropy"
	"github.com/talgya/critterlife/internal/llm"
	"github.com/talgya/critterlife/internal/persistence"
	"github.com/talgya/critterlife/internal/resources"
	"github.com/talgya/critterlife/internal/speech"
	"github.com/talgya/critterlife/internal/thinking"
	"github.com/talgya/critterlife/internal/weather"
	"github.com/talgya/critterlife/internal/world"
)

func main() {
	configPath := flag.String("config", "", "tuning YAML file")
	fresh := flag.Bool("fresh", false, "ignore the saved world and start a new one")
	flag.Parse()

	tun, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	slog.SetDefault(tun.Logger())

	if err := run(tun, *fresh); err != nil {
		slog.Error("critterlife stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(tun config.Tuning, startFresh bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var src entropy.Source = entropy.Crypto{}
	if tun.Simulation.Seed != 0 {
		src = entropy.NewSeeded(tun.Simulation.Seed)
	}

	// ── Database ──────────────────────────────────────────────────────
	if dir := filepath.Dir(tun.Persistence.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("data dir: %w", err)
		}
	}
	db, err := persistence.Open(tun.Persistence.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	slog.Info("database opened", "path", tun.Persistence.Path, "slot", tun.Persistence.Slot)

	// ── Load or create the world ─────────────────────────────────────
	w, isNew, err := loadWorld(db, tun, startFresh)
	if err != nil {
		return err
	}
	w.Limits.Critters = tun.Simulation.PopulationCap
	w.Limits.Animals = tun.Simulation.AnimalCap
	w.Settings.Provider = tun.LLM.Provider
	w.Settings.Model = tun.LLM.Model
	w.Settings.SpeechEnabled = tun.Speech.Enabled
	w.Settings.SpeechProvider = tun.Speech.Provider
	if isNew {
		w.Settings.TimeScale = tun.Simulation.TimeScale
	}
	store := world.NewStore(w)

	// ── Text generation and speech ───────────────────────────────────
	client := llm.NewClient(tun.LLMConfig())
	var (
		gen     dialogue.Generator
		thinker thinking.Thinker
	)
	if client.Enabled() {
		gen = dialogue.ClientGenerator{Client: client}
		thinker = thinking.ClientThinker{Client: client}
		slog.Info("text generation enabled", "provider", client.Provider())
	} else {
		slog.Warn("no API key for provider; dialogue and thoughts disabled", "provider", tun.LLM.Provider)
	}

	voices := speech.NewService(ctx)
	defer voices.Close()
	voices.Register("log", speech.LogSynthesizer{})
	voices.SetActive(tun.Speech.Provider)
	voices.SetEnabled(tun.Speech.Enabled)

	talk := dialogue.New(ctx, store, gen, tun.DialogueConfig(), src)
	talk.SetSpeaker(voices)
	think := thinking.New(ctx, store, thinker, tun.ThinkingConfig())

	// ── Simulation ───────────────────────────────────────────────────
	seed := resources.DefaultSeedConfig()
	seed.HalfSize = tun.EngineConfig().FieldHalfSize
	if tun.Simulation.Seed != 0 {
		seed.Seed = tun.Simulation.Seed
	}
	sim := engine.NewSimulation(store, src,
		engine.WithConfig(tun.EngineConfig()),
		engine.WithSeed(seed),
		engine.WithDialogue(talk),
		engine.WithThinking(think),
	)
	if isNew {
		if err := sim.Populate(tun.Simulation.Founders, tun.Simulation.Animals, seed); err != nil {
			return fmt.Errorf("populate: %w", err)
		}
	}

	eng := engine.NewEngine(tun.Simulation.FrameHz)
	eng.OnFrame = sim.Tick

	if tun.Secrets.AdminKey == "" {
		slog.Warn(config.EnvAdminKey + " not set; admin POST endpoints will be disabled")
	}
	server := &api.Server{
		Store:    store,
		Engine:   eng,
		DB:       db,
		Slot:     tun.Persistence.Slot,
		Port:     tun.API.Port,
		AdminKey: tun.Secrets.AdminKey,
		StreamHz: tun.API.StreamHz,
		LLM:      client,
	}

	// ── Run ──────────────────────────────────────────────────────────
	fmt.Printf("\nThe meadow is awake: %d critters. API: http://localhost:%d/api/v1/status\n",
		aliveCritters(store), tun.API.Port)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return eng.Run(gctx) })
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error { return autosave(gctx, db, store, tun.Persistence) })
	if sky := weather.NewClient(tun.Secrets.WeatherKey, tun.Weather.Location); sky != nil {
		poll := time.Duration(tun.Weather.PollSeconds * float64(time.Second))
		g.Go(func() error { return weather.Follow(gctx, sky, store, poll) })
	}
	runErr := g.Wait()

	// Apply results of in-flight calls before the final save.
	sim.Wait()
	store.Update(func(w *world.World) { store.Drain(w) })

	slog.Info("final save...")
	if _, err := db.SaveWorld(store, tun.Persistence.Slot); err != nil {
		return errors.Join(runErr, fmt.Errorf("final save: %w", err))
	}
	fmt.Println("Meadow stopped. World saved.")
	return runErr
}

// loadWorld returns the saved world, or a new one when there is none or
// it had to be reset. The bool reports a new world.
func loadWorld(db *persistence.DB, tun config.Tuning, startFresh bool) (*world.World, bool, error) {
	if startFresh {
		slog.Info("starting a fresh world by request")
		return world.New(time.Now()), true, nil
	}
	w, reset, err := db.LoadWorld(tun.Persistence.Slot, persistence.LoadOptions{
		ResetOnUnsupported: tun.Persistence.ResetOnUnsupported,
	})
	switch {
	case errors.Is(err, persistence.ErrNoSave):
		slog.Info("no saved world, creating one")
		return world.New(time.Now()), true, nil
	case err != nil:
		return nil, false, err
	}
	return w, reset, nil
}

// autosave writes the world every AutosaveSeconds until ctx ends.
func autosave(ctx context.Context, db *persistence.DB, store *world.Store, cfg config.Persistence) error {
	if cfg.AutosaveSeconds <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(time.Duration(cfg.AutosaveSeconds * float64(time.Second)))
	defer t.Stop()
	var total uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			stats, err := db.SaveWorld(store, cfg.Slot)
			if err != nil {
				slog.Error("autosave failed", "error", err)
				continue
			}
			total += uint64(stats.CompressedBytes)
			slog.Debug("autosave", "clock", stats.Clock, "written_total", humanize.Bytes(total))
		}
	}
}

func aliveCritters(store *world.Store) int {
	var n int
	store.View(func(w *world.World) { n = w.AliveCritters() })
	return n
}
