package cache

import (
	"context"
	"database/sql"
	"dispatch-sim/internal/platform/obs"
	"dispatch-sim/internal/ports"
	"errors"
	"fmt"
	"strings"
)

// SQLite backed cache for road-network leg estimates. Keys are the
// canonical ports.LegKey form, so the same pair always hits the same row.
type SqliteLegCache struct {
	DB *sql.DB
}

func NewSqliteLegCache(db *sql.DB) *SqliteLegCache {
	return &SqliteLegCache{DB: db}
}

// InitLegSchema creates the leg cache table when it does not exist yet.
// Callers open the database themselves so tests can run in memory.
func InitLegSchema(db *sql.DB) error {
	if db == nil {
		return errors.New("init leg schema: db is nil")
	}

	q := `
	CREATE TABLE IF NOT EXISTS leg_cache (
        leg_key TEXT PRIMARY KEY,
        distance_km REAL NOT NULL,
        duration_mins REAL NOT NULL
    );
	`
	if _, err := db.Exec(q); err != nil {
		return fmt.Errorf("init leg schema: create leg_cache table: %w", err)
	}

	return nil
}

// Fetch cached estimates for a batch of leg keys. Missing keys are
// simply absent from the returned map.
func (s *SqliteLegCache) GetMany(
	ctx context.Context,
	keys []string,
) (_ map[string]ports.LegEstimate, err error) {
	defer obs.Time(ctx, "leg.cache.GetMany")(&err)

	if s.DB == nil {
		return nil, errors.New("leg cache: db is nil")
	}

	if len(keys) == 0 {
		return map[string]ports.LegEstimate{}, nil
	}

	seen := map[string]struct{}{}
	uniq := make([]string, 0, len(keys))
	ph := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}

		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		uniq = append(uniq, k)
		ph = append(ph, "?")
	}

	if len(uniq) == 0 {
		return map[string]ports.LegEstimate{}, nil
	}

	args := make([]any, 0, len(uniq))
	for _, k := range uniq {
		args = append(args, k)
	}

	// SQLite does not support binding slices directly in an IN (...) clause.
	// Only the placeholder structure is interpolated; all values remain parameterized.
	q := fmt.Sprintf(`
	SELECT
        leg_key,
        distance_km,
        duration_mins
    FROM leg_cache
    WHERE leg_key IN (%s);
	`, strings.Join(ph, ","))

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("get leg cache: query leg_cache table: %w", err)
	}
	defer rows.Close()

	out := make(map[string]ports.LegEstimate, len(uniq))
	for rows.Next() {
		var key string
		var km, mins float64
		if err := rows.Scan(&key, &km, &mins); err != nil {
			return nil, fmt.Errorf("get leg cache: scan rows: %w", err)
		}
		out[key] = ports.LegEstimate{
			DistanceKm:   km,
			DurationMins: mins,
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get leg cache: row iteration: %w", err)
	}

	return out, nil
}

// Store a batch of leg estimates, replacing any stale rows.
func (s *SqliteLegCache) PutMany(ctx context.Context, legs map[string]ports.LegEstimate) error {
	if s.DB == nil {
		return errors.New("leg cache: db is nil")
	}

	if len(legs) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert leg cache: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT OR REPLACE INTO leg_cache (
        leg_key,
        distance_km,
        duration_mins
    )
    VALUES (?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("insert leg cache: db prepare: %w", err)
	}
	defer stmt.Close()

	for key, leg := range legs {
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("insert leg cache: empty leg key")
		}

		if _, err := stmt.ExecContext(ctx, key, leg.DistanceKm, leg.DurationMins); err != nil {
			return fmt.Errorf("insert leg cache key=%q: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert leg cache commit: %w", err)
	}

	return nil
}
