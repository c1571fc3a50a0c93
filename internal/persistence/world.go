package persistence

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/critterlife/internal/world"
)

// RejectedSuffix is appended to a slot name when an unreadable blob is
// set aside.
const RejectedSuffix = ".rejected"

// SaveStats reports what one SaveWorld wrote.
type SaveStats struct {
	RawBytes        int
	CompressedBytes int
	Events          int
	Clock           float64
}

// SaveWorld writes the persisted slices of the store's world to slot and
// appends log entries newer than the last stored event.
func (db *DB) SaveWorld(store *world.Store, slot string) (SaveStats, error) {
	last, err := db.LastEventSeq(slot)
	if err != nil {
		return SaveStats{}, fmt.Errorf("last event: %w", err)
	}

	var (
		raw     []byte
		entries []world.LogEntry
		stats   SaveStats
	)
	store.View(func(w *world.World) {
		raw, err = w.Export()
		entries = w.LogSince(last)
		stats.Clock = w.Clock()
	})
	if err != nil {
		return SaveStats{}, err
	}

	n, err := db.SaveBlob(slot, world.SchemaVersion, raw)
	if err != nil {
		return SaveStats{}, err
	}
	if err := db.SaveEvents(slot, entries); err != nil {
		return SaveStats{}, fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveMeta("last_clock:"+slot, strconv.FormatFloat(stats.Clock, 'f', 3, 64)); err != nil {
		return SaveStats{}, fmt.Errorf("save meta: %w", err)
	}

	stats.RawBytes, stats.CompressedBytes, stats.Events = len(raw), n, len(entries)
	slog.Info("world saved",
		"slot", slot,
		"size", humanize.Bytes(uint64(len(raw))),
		"stored", humanize.Bytes(uint64(n)),
		"events", len(entries),
	)
	return stats, nil
}

// LoadOptions control LoadWorld's recovery policy.
type LoadOptions struct {
	// ResetOnUnsupported replaces an unreadable or future-version blob with
	// a fresh world. The old blob is kept under slot+RejectedSuffix.
	ResetOnUnsupported bool
	// Epoch is the start time of a fresh world.
	Epoch time.Time
}

// LoadWorld reads slot and migrates it to the current schema. A missing
// slot returns ErrNoSave. The second result reports whether the world was
// reset.
func (db *DB) LoadWorld(slot string, opts LoadOptions) (*world.World, bool, error) {
	raw, err := db.LoadBlob(slot)
	if err != nil {
		return nil, false, err
	}

	w, err := world.Import(raw)
	if err == nil {
		slog.Info("world loaded",
			"slot", slot,
			"size", humanize.Bytes(uint64(len(raw))),
			"critters", w.AliveCritters(),
			"day", w.Environment.Day,
		)
		return w, false, nil
	}
	if !opts.ResetOnUnsupported {
		return nil, false, fmt.Errorf("load world %s: %w", slot, err)
	}

	version := 0
	if errors.Is(err, world.ErrUnsupportedSchema) {
		_, version, _ = world.Migrate(raw)
	}
	rejected := slot + RejectedSuffix
	if _, serr := db.SaveBlob(rejected, version, raw); serr != nil {
		return nil, false, fmt.Errorf("archive rejected world: %w", serr)
	}
	slog.Warn("saved world unreadable, starting fresh",
		"slot", slot,
		"archived_as", rejected,
		"error", err,
	)

	epoch := opts.Epoch
	if epoch.IsZero() {
		epoch = time.Now()
	}
	return world.New(epoch), true, nil
}
