// Package persistence stores the versioned world blob and the activity
// history in SQLite.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"github.com/talgya/critterlife/internal/world"
)

// DefaultSlot is the save slot used when none is configured.
const DefaultSlot = "main"

// Blob codecs.
const (
	CodecZstd = "zstd"
	CodecJSON = "json"
)

// ErrNoSave is returned when a slot holds no blob.
var ErrNoSave = errors.New("no saved world")

// DB wraps a SQLite connection for world persistence.
type DB struct {
	conn *sqlx.DB
	enc  *zstd.Encoder
	dec  *zstd.Decoder
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		conn.Close()
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}

	db := &DB{conn: conn, enc: enc, dec: dec}
	if err := db.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close releases the codecs and the connection.
func (db *DB) Close() error {
	db.dec.Close()
	db.enc.Close()
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS world_blobs (
		slot TEXT PRIMARY KEY,
		schema_version INTEGER NOT NULL,
		codec TEXT NOT NULL,
		raw_size INTEGER NOT NULL,
		saved_at TEXT NOT NULL,
		payload BLOB NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		slot TEXT NOT NULL,
		seq INTEGER NOT NULL,
		entry_id TEXT NOT NULL,
		at TEXT NOT NULL,
		day INTEGER NOT NULL,
		hour REAL NOT NULL,
		entity_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		text TEXT NOT NULL,
		UNIQUE (slot, seq)
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_slot_seq ON events(slot, seq);
	CREATE INDEX IF NOT EXISTS idx_events_entity ON events(entity_id);
	CREATE INDEX IF NOT EXISTS idx_events_day ON events(slot, day);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// BlobInfo describes a stored blob without its payload.
type BlobInfo struct {
	Slot          string `db:"slot"`
	SchemaVersion int    `db:"schema_version"`
	Codec         string `db:"codec"`
	RawSize       int    `db:"raw_size"`
	SavedAt       string `db:"saved_at"`
}

// SaveBlob compresses raw and writes it to slot, replacing what was there.
func (db *DB) SaveBlob(slot string, version int, raw []byte) (int, error) {
	payload := db.enc.EncodeAll(raw, make([]byte, 0, len(raw)/4))
	_, err := db.conn.Exec(`INSERT OR REPLACE INTO world_blobs
		(slot, schema_version, codec, raw_size, saved_at, payload)
		VALUES (?, ?, ?, ?, ?, ?)`,
		slot, version, CodecZstd, len(raw), time.Now().UTC().Format(time.RFC3339), payload,
	)
	if err != nil {
		return 0, fmt.Errorf("save blob %s: %w", slot, err)
	}
	return len(payload), nil
}

// LoadBlob returns the decompressed blob stored in slot.
func (db *DB) LoadBlob(slot string) ([]byte, error) {
	var row struct {
		Codec   string `db:"codec"`
		Payload []byte `db:"payload"`
	}
	err := db.conn.Get(&row, "SELECT codec, payload FROM world_blobs WHERE slot = ?", slot)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("slot %s: %w", slot, ErrNoSave)
	}
	if err != nil {
		return nil, fmt.Errorf("load blob %s: %w", slot, err)
	}
	switch row.Codec {
	case CodecZstd:
		raw, err := db.dec.DecodeAll(row.Payload, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress blob %s: %w", slot, err)
		}
		return raw, nil
	case CodecJSON:
		return row.Payload, nil
	default:
		return nil, fmt.Errorf("blob %s: unknown codec %q", slot, row.Codec)
	}
}

// Blobs lists stored slots.
func (db *DB) Blobs() ([]BlobInfo, error) {
	var out []BlobInfo
	err := db.conn.Select(&out,
		"SELECT slot, schema_version, codec, raw_size, saved_at FROM world_blobs ORDER BY slot")
	return out, err
}

// DeleteBlob removes slot. Missing slots are not an error.
func (db *DB) DeleteBlob(slot string) error {
	_, err := db.conn.Exec("DELETE FROM world_blobs WHERE slot = ?", slot)
	return err
}

// SaveEvents appends log entries to the history of slot. Entries already
// stored are skipped.
func (db *DB) SaveEvents(slot string, entries []world.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT OR IGNORE INTO events
		(slot, seq, entry_id, at, day, hour, entity_id, kind, text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		_, err := stmt.Exec(slot, e.Seq, e.ID, e.At.UTC().Format(time.RFC3339Nano), e.Day, e.Time, e.EntityID, e.Kind, e.Text)
		if err != nil {
			return fmt.Errorf("insert event %d: %w", e.Seq, err)
		}
	}
	return tx.Commit()
}

// LastEventSeq returns the newest stored sequence number for slot, or 0.
func (db *DB) LastEventSeq(slot string) (int64, error) {
	var seq int64
	err := db.conn.Get(&seq, "SELECT COALESCE(MAX(seq), 0) FROM events WHERE slot = ?", slot)
	return seq, err
}

type eventRow struct {
	Seq      int64   `db:"seq"`
	EntryID  string  `db:"entry_id"`
	At       string  `db:"at"`
	Day      int     `db:"day"`
	Hour     float64 `db:"hour"`
	EntityID string  `db:"entity_id"`
	Kind     string  `db:"kind"`
	Text     string  `db:"text"`
}

func (r eventRow) entry() world.LogEntry {
	at, _ := time.Parse(time.RFC3339Nano, r.At)
	return world.LogEntry{
		Seq:      r.Seq,
		ID:       r.EntryID,
		At:       at,
		Day:      r.Day,
		Time:     r.Hour,
		EntityID: r.EntityID,
		Kind:     r.Kind,
		Text:     r.Text,
	}
}

// RecentEvents returns up to limit of the newest entries for slot, oldest
// first.
func (db *DB) RecentEvents(slot string, limit int) ([]world.LogEntry, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		`SELECT seq, entry_id, at, day, hour, entity_id, kind, text FROM events
		 WHERE slot = ? ORDER BY seq DESC LIMIT ?`,
		slot, limit,
	)
	if err != nil {
		return nil, err
	}
	out := make([]world.LogEntry, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = r.entry()
	}
	return out, nil
}

// EntityEvents returns the stored history of one entity, oldest first.
func (db *DB) EntityEvents(slot, entityID string) ([]world.LogEntry, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		`SELECT seq, entry_id, at, day, hour, entity_id, kind, text FROM events
		 WHERE slot = ? AND entity_id = ? ORDER BY seq`,
		slot, entityID,
	)
	if err != nil {
		return nil, err
	}
	out := make([]world.LogEntry, len(rows))
	for i, r := range rows {
		out[i] = r.entry()
	}
	return out, nil
}

// DayEvents returns the stored history of one simulated day, oldest first.
func (db *DB) DayEvents(slot string, day int) ([]world.LogEntry, error) {
	var rows []eventRow
	err := db.conn.Select(&rows,
		`SELECT seq, entry_id, at, day, hour, entity_id, kind, text FROM events
		 WHERE slot = ? AND day = ? ORDER BY seq`,
		slot, day,
	)
	if err != nil {
		return nil, err
	}
	out := make([]world.LogEntry, len(rows))
	for i, r := range rows {
		out[i] = r.entry()
	}
	return out, nil
}

// SaveMeta stores a key-value pair in world metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM world_meta WHERE key = ?", key)
	return value, err
}
