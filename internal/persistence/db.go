// Package persistence provides SQLite-based world state storage.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/gridsim/internal/engine"
)

// DB wraps a SQLite connection for world state persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS players (
		id TEXT PRIMARY KEY,
		number INTEGER NOT NULL,
		name TEXT NOT NULL,
		balance INTEGER NOT NULL,
		power_revenue INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cities (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		origin_x INTEGER NOT NULL,
		origin_y INTEGER NOT NULL,
		size_x INTEGER NOT NULL,
		size_y INTEGER NOT NULL,
		population INTEGER NOT NULL,
		per_capita INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS factories (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		kind INTEGER NOT NULL,
		origin_x INTEGER NOT NULL,
		origin_y INTEGER NOT NULL,
		size_x INTEGER NOT NULL,
		size_y INTEGER NOT NULL,
		base_output INTEGER NOT NULL,
		base_demand INTEGER NOT NULL,
		city_id INTEGER NOT NULL,
		total_received INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS grid_nodes (
		seq INTEGER PRIMARY KEY,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		z INTEGER NOT NULL,
		kind TEXT NOT NULL,
		owner INTEGER NOT NULL,
		last_power_demand INTEGER NOT NULL,
		power_load INTEGER NOT NULL,
		income INTEGER NOT NULL,
		max_income INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS tunnels (
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		z INTEGER NOT NULL,
		PRIMARY KEY (x, y, z)
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		tick INTEGER NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS world_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_tick ON events(tick);
	CREATE UNIQUE INDEX IF NOT EXISTS idx_grid_nodes_pos ON grid_nodes(x, y, z);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveCheckpoint writes a checkpoint to the database (full replace, one
// transaction).
func (db *DB) SaveCheckpoint(cp engine.Checkpoint) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"players", "cities", "factories", "grid_nodes", "tunnels"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	if err := insertAll(tx, `INSERT INTO players (id, number, name, balance, power_revenue)
		VALUES (:id, :number, :name, :balance, :power_revenue)`, cp.Players); err != nil {
		return fmt.Errorf("insert players: %w", err)
	}
	if err := insertAll(tx, `INSERT INTO cities
		(id, name, origin_x, origin_y, size_x, size_y, population, per_capita)
		VALUES (:id, :name, :origin_x, :origin_y, :size_x, :size_y, :population, :per_capita)`, cp.Cities); err != nil {
		return fmt.Errorf("insert cities: %w", err)
	}
	if err := insertAll(tx, `INSERT INTO factories
		(id, name, kind, origin_x, origin_y, size_x, size_y, base_output, base_demand, city_id, total_received)
		VALUES (:id, :name, :kind, :origin_x, :origin_y, :size_x, :size_y, :base_output, :base_demand, :city_id, :total_received)`, cp.Factories); err != nil {
		return fmt.Errorf("insert factories: %w", err)
	}
	if err := insertAll(tx, `INSERT INTO grid_nodes
		(seq, x, y, z, kind, owner, last_power_demand, power_load, income, max_income)
		VALUES (:seq, :x, :y, :z, :kind, :owner, :last_power_demand, :power_load, :income, :max_income)`, cp.Nodes); err != nil {
		return fmt.Errorf("insert grid nodes: %w", err)
	}
	if err := insertAll(tx, `INSERT INTO tunnels (x, y, z) VALUES (:x, :y, :z)`, cp.Tunnels); err != nil {
		return fmt.Errorf("insert tunnels: %w", err)
	}

	for key, value := range map[string]string{
		"world_id":  cp.WorldID.String(),
		"last_tick": strconv.FormatUint(cp.Tick, 10),
	} {
		if _, err := tx.Exec("INSERT OR REPLACE INTO world_meta (key, value) VALUES (?, ?)", key, value); err != nil {
			return fmt.Errorf("save meta %s: %w", key, err)
		}
	}

	return tx.Commit()
}

func insertAll[T any](tx *sqlx.Tx, query string, rows []T) error {
	if len(rows) == 0 {
		return nil
	}
	stmt, err := tx.PrepareNamed(query)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range rows {
		if _, err := stmt.Exec(rows[i]); err != nil {
			return err
		}
	}
	return nil
}

// LoadCheckpoint reads the saved checkpoint. Nodes come back in the order
// they were saved.
func (db *DB) LoadCheckpoint() (engine.Checkpoint, error) {
	var cp engine.Checkpoint

	id, err := db.GetMeta("world_id")
	if err != nil {
		return cp, fmt.Errorf("load world id: %w", err)
	}
	if cp.WorldID, err = uuid.Parse(id); err != nil {
		return cp, fmt.Errorf("parse world id: %w", err)
	}
	tick, err := db.GetMeta("last_tick")
	if err != nil {
		return cp, fmt.Errorf("load last tick: %w", err)
	}
	if cp.Tick, err = strconv.ParseUint(tick, 10, 64); err != nil {
		return cp, fmt.Errorf("parse last tick: %w", err)
	}

	if err := db.conn.Select(&cp.Players, "SELECT * FROM players ORDER BY number"); err != nil {
		return cp, fmt.Errorf("load players: %w", err)
	}
	if err := db.conn.Select(&cp.Cities, "SELECT * FROM cities ORDER BY id"); err != nil {
		return cp, fmt.Errorf("load cities: %w", err)
	}
	if err := db.conn.Select(&cp.Factories, "SELECT * FROM factories ORDER BY id"); err != nil {
		return cp, fmt.Errorf("load factories: %w", err)
	}
	if err := db.conn.Select(&cp.Nodes, "SELECT * FROM grid_nodes ORDER BY seq"); err != nil {
		return cp, fmt.Errorf("load grid nodes: %w", err)
	}
	if err := db.conn.Select(&cp.Tunnels, "SELECT x, y, z FROM tunnels ORDER BY z, y, x"); err != nil {
		return cp, fmt.Errorf("load tunnels: %w", err)
	}
	return cp, nil
}

// HasWorldState reports whether a checkpoint has been saved.
func (db *DB) HasWorldState() (bool, error) {
	_, err := db.GetMeta("last_tick")
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

// SaveEvents appends events to the database.
func (db *DB) SaveEvents(events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (tick, description, category) VALUES (?, ?, ?)",
			e.Tick, e.Description, e.Category,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
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

// SaveWorldState checkpoints the simulation and appends the events raised
// since the previous save.
func (db *DB) SaveWorldState(sim *engine.Simulation) error {
	cp := sim.Checkpoint()
	slog.Info("saving world state", "tick", cp.Tick, "nodes", len(cp.Nodes), "cities", len(cp.Cities))

	if err := db.SaveCheckpoint(cp); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	var through uint64
	v, err := db.GetMeta("events_through")
	saved := err == nil
	if saved {
		through, _ = strconv.ParseUint(v, 10, 64)
	}
	var fresh []engine.Event
	for _, e := range sim.RecentEvents(1000) {
		if !saved || e.Tick > through {
			fresh = append(fresh, e)
		}
	}
	if err := db.SaveEvents(fresh); err != nil {
		return fmt.Errorf("save events: %w", err)
	}
	if err := db.SaveMeta("events_through", strconv.FormatUint(cp.Tick, 10)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Info("world state saved")
	return nil
}

// RecentEvents returns the most recent N events.
func (db *DB) RecentEvents(limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, description, category FROM events ORDER BY id DESC LIMIT ?",
		limit,
	)
	return events, err
}
