package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "github.com/cameronopotter/cameron-personal-site-sub001/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	path := cfg.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		ms := cfg.BusyTimeout.Milliseconds()
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", ms))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- Plants ----

func (s *sqliteStore) ListPlants(ctx context.Context) ([]Plant, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, species, planted_at, growth_stage, last_growth_at
		 FROM plants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Plant
	for rows.Next() {
		var (
			p          Plant
			species    sql.NullString
			plantedAt  string
			lastGrowth sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &species, &plantedAt, &p.GrowthStage, &lastGrowth); err != nil {
			return nil, err
		}
		p.Species = species.String
		p.PlantedAt, err = parseTime(plantedAt)
		if err != nil {
			return nil, fmt.Errorf("plant %d: %w", p.ID, err)
		}
		if lastGrowth.Valid {
			t, err := parseTime(lastGrowth.String)
			if err != nil {
				return nil, fmt.Errorf("plant %d: %w", p.ID, err)
			}
			p.LastGrowthAt = &t
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SeedPlants inserts the given plants only when the table is empty.
// Returns how many rows were inserted.
func (s *sqliteStore) SeedPlants(ctx context.Context, plants []Plant) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM plants`).Scan(&n); err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	inserted := 0
	for _, p := range plants {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO plants(name, species, planted_at, growth_stage) VALUES(?,?,?,?)`,
			p.Name, nullStr(p.Species), p.PlantedAt.Format(time.RFC3339Nano), p.GrowthStage,
		)
		if err != nil {
			return 0, err
		}
		inserted++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return inserted, nil
}

func (s *sqliteStore) UpdatePlantGrowth(ctx context.Context, id int64, stage int, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE plants SET growth_stage = ?, last_growth_at = ? WHERE id = ?`,
		stage, at.Format(time.RFC3339Nano), id,
	)
	return err
}

// ---- Weather ----

func (s *sqliteStore) AppendWeather(ctx context.Context, w WeatherSnapshot) error {
	if w.At.IsZero() {
		w.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO weather_snapshots(at, season, condition, temperature_c) VALUES(?,?,?,?)`,
		w.At.Format(time.RFC3339Nano), w.Season, w.Condition, w.TemperatureC,
	)
	return err
}

func (s *sqliteStore) LatestWeather(ctx context.Context) (WeatherSnapshot, bool, error) {
	var (
		w  WeatherSnapshot
		at string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, at, season, condition, temperature_c
		 FROM weather_snapshots ORDER BY at DESC, id DESC LIMIT 1`,
	).Scan(&w.ID, &at, &w.Season, &w.Condition, &w.TemperatureC)
	if errors.Is(err, sql.ErrNoRows) {
		return WeatherSnapshot{}, false, nil
	}
	if err != nil {
		return WeatherSnapshot{}, false, err
	}
	w.At, err = parseTime(at)
	if err != nil {
		return WeatherSnapshot{}, false, err
	}
	return w, true, nil
}

// ---- Projects ----

func (s *sqliteStore) UpsertProject(ctx context.Context, p Project) error {
	if p.SyncedAt.IsZero() {
		p.SyncedAt = time.Now()
	}
	var pushed any
	if p.PushedAt != nil {
		pushed = p.PushedAt.Format(time.RFC3339Nano)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects(name, description, language, stars, pushed_at, synced_at)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(name) DO UPDATE SET
		   description = excluded.description,
		   language    = excluded.language,
		   stars       = excluded.stars,
		   pushed_at   = excluded.pushed_at,
		   synced_at   = excluded.synced_at`,
		p.Name, nullStr(p.Description), nullStr(p.Language), p.Stars, pushed,
		p.SyncedAt.Format(time.RFC3339Nano),
	)
	return err
}

func (s *sqliteStore) ListProjects(ctx context.Context) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, description, language, stars, pushed_at, synced_at
		 FROM projects ORDER BY stars DESC, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		var (
			p           Project
			description sql.NullString
			language    sql.NullString
			pushed      sql.NullString
			synced      string
		)
		if err := rows.Scan(&p.Name, &description, &language, &p.Stars, &pushed, &synced); err != nil {
			return nil, err
		}
		p.Description = description.String
		p.Language = language.String
		if pushed.Valid {
			t, err := parseTime(pushed.String)
			if err != nil {
				return nil, fmt.Errorf("project %q: %w", p.Name, err)
			}
			p.PushedAt = &t
		}
		p.SyncedAt, err = parseTime(synced)
		if err != nil {
			return nil, fmt.Errorf("project %q: %w", p.Name, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ---- helpers ----

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
