// Package store persists control point timelines in sqlite.
//
// Only the group shape is stored: one row per point with its time, kind and
// payload. Loading replays the rows through Timeline.Restore, which rebuilds
// the per-kind indexes.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cpinfo/controlpoint"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
)

var (
	ErrNotFound  = errors.New("timeline not found")
	ErrNameTaken = errors.New("timeline name already in use")
)

const schema = `
CREATE TABLE IF NOT EXISTS timelines (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL UNIQUE,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS points (
	timeline_id     TEXT NOT NULL REFERENCES timelines(id) ON DELETE CASCADE,
	time            REAL NOT NULL,
	kind            INTEGER NOT NULL,
	beat_length     REAL NOT NULL DEFAULT 0,
	meter           INTEGER NOT NULL DEFAULT 0,
	slider_velocity REAL NOT NULL DEFAULT 0,
	sample_set      TEXT NOT NULL DEFAULT '',
	volume          INTEGER NOT NULL DEFAULT 0,
	custom_index    INTEGER NOT NULL DEFAULT 0,
	effect_flags    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (timeline_id, time, kind)
);
`

type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Summary describes a stored timeline without loading its points.
type Summary struct {
	ID        uuid.UUID
	Name      string
	CreatedAt time.Time
	Points    int
}

// Open opens (creating if needed) the database at path. Use ":memory:" for a
// throwaway database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	dsn := "file:" + path + "?_foreign_keys=on&_busy_timeout=5000"
	if path == ":memory:" {
		dsn = "file::memory:?_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// a single connection keeps ":memory:" databases alive and serialises writers
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	logger.Debug("control point store opened", slog.String("path", path))
	return &Store{db: db, logger: logger}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Create stores tl under a new id. Names are unique.
func (s *Store) Create(ctx context.Context, name string, tl *controlpoint.Timeline) (uuid.UUID, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return uuid.Nil, errors.New("timeline name must not be empty")
	}
	id := uuid.New()

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO timelines (id, name, created_at) VALUES (?, ?, ?)`,
			id.String(), name, time.Now().UnixMilli())
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%q: %w", name, ErrNameTaken)
			}
			return fmt.Errorf("insert timeline: %w", err)
		}
		return insertPoints(ctx, tx, id, tl)
	})
	if err != nil {
		return uuid.Nil, err
	}
	s.logger.Info("timeline created", slog.String("id", id.String()), slog.String("name", name))
	return id, nil
}

// Save replaces the stored points of timeline id with the contents of tl.
func (s *Store) Save(ctx context.Context, id uuid.UUID, tl *controlpoint.Timeline) error {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if err := requireTimeline(ctx, tx, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM points WHERE timeline_id = ?`, id.String()); err != nil {
			return fmt.Errorf("delete points: %w", err)
		}
		return insertPoints(ctx, tx, id, tl)
	})
	if err != nil {
		return err
	}
	s.logger.Debug("timeline saved", slog.String("id", id.String()), slog.Int("groups", len(tl.Groups())))
	return nil
}

// Load rebuilds the timeline stored under id.
func (s *Store) Load(ctx context.Context, id uuid.UUID, opts ...controlpoint.Option) (*controlpoint.Timeline, error) {
	if err := requireTimeline(ctx, s.db, id); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT time, kind, beat_length, meter, slider_velocity, sample_set, volume, custom_index, effect_flags
		FROM points WHERE timeline_id = ? ORDER BY time, kind`, id.String())
	if err != nil {
		return nil, fmt.Errorf("query points: %w", err)
	}
	defer rows.Close()

	tl := controlpoint.New(opts...)
	for rows.Next() {
		var r pointRow
		if err := rows.Scan(&r.Time, &r.Kind, &r.BeatLength, &r.Meter, &r.SliderVelocity,
			&r.SampleSet, &r.Volume, &r.CustomIndex, &r.EffectFlags); err != nil {
			return nil, fmt.Errorf("scan point: %w", err)
		}
		p := r.point()
		if p == nil {
			s.logger.Warn("skipping stored point of unknown kind",
				slog.String("id", id.String()),
				slog.Float64("time", r.Time),
				slog.Int("kind", r.Kind))
			continue
		}
		tl.Restore(r.Time, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read points: %w", err)
	}
	return tl, nil
}

// Lookup resolves a timeline name to its id.
func (s *Store) Lookup(ctx context.Context, name string) (uuid.UUID, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM timelines WHERE name = ?`, strings.TrimSpace(name)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, fmt.Errorf("%q: %w", name, ErrNotFound)
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("lookup timeline: %w", err)
	}
	return uuid.Parse(raw)
}

func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.name, t.created_at, COUNT(p.kind)
		FROM timelines t LEFT JOIN points p ON p.timeline_id = t.id
		GROUP BY t.id ORDER BY t.name`)
	if err != nil {
		return nil, fmt.Errorf("list timelines: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			raw     string
			created int64
			sum     Summary
		)
		if err := rows.Scan(&raw, &sum.Name, &created, &sum.Points); err != nil {
			return nil, fmt.Errorf("scan timeline: %w", err)
		}
		if sum.ID, err = uuid.Parse(raw); err != nil {
			return nil, fmt.Errorf("timeline %q has a malformed id: %w", sum.Name, err)
		}
		sum.CreatedAt = time.UnixMilli(created)
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM timelines WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("delete timeline: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	s.logger.Info("timeline deleted", slog.String("id", id.String()))
	return nil
}

// ---------- helpers ----------

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func requireTimeline(ctx context.Context, q queryer, id uuid.UUID) error {
	var one int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM timelines WHERE id = ?`, id.String()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("lookup timeline: %w", err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertPoints(ctx context.Context, tx *sql.Tx, id uuid.UUID, tl *controlpoint.Timeline) error {
	if tl == nil {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO points (timeline_id, time, kind, beat_length, meter, slider_velocity,
			sample_set, volume, custom_index, effect_flags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, g := range tl.Groups() {
		for _, p := range g.Points() {
			r := rowFor(g.Time(), p)
			if _, err := stmt.ExecContext(ctx, id.String(), r.Time, r.Kind, r.BeatLength, r.Meter,
				r.SliderVelocity, r.SampleSet, r.Volume, r.CustomIndex, r.EffectFlags); err != nil {
				return fmt.Errorf("insert %s point at %v: %w", p.Kind(), g.Time(), err)
			}
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	return errors.As(err, &serr) && serr.ExtendedCode == sqlite3.ErrConstraintUnique
}
