package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/flip-estimator/internal/geo"
	"github.com/sells-group/flip-estimator/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas are per connection; a single connection keeps them applied.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// Sale dates are stored as RFC 3339 UTC text so they compare lexically.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS comparables (
	id             TEXT PRIMARY KEY,
	lat            REAL,
	lon            REAL,
	surface        REAL NOT NULL,
	rooms          INTEGER,
	bathrooms      INTEGER,
	floor          INTEGER,
	exterior       INTEGER NOT NULL DEFAULT 0,
	elevator       INTEGER NOT NULL DEFAULT 0,
	build_year     INTEGER,
	condition      TEXT NOT NULL DEFAULT '',
	zone           TEXT NOT NULL DEFAULT '',
	price          REAL NOT NULL,
	price_per_area REAL NOT NULL,
	sale_date      TEXT NOT NULL,
	reformed       INTEGER NOT NULL DEFAULT 0,
	reliability    REAL NOT NULL DEFAULT 1,
	source         TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS cost_profiles (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	category      TEXT NOT NULL,
	quality       TEXT NOT NULL,
	zone          TEXT NOT NULL DEFAULT '',
	cost_per_area REAL NOT NULL,
	included      TEXT NOT NULL DEFAULT '[]',
	excluded      TEXT NOT NULL DEFAULT '[]',
	year          INTEGER NOT NULL,
	source        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS estimations (
	id         TEXT PRIMARY KEY,
	reference  TEXT NOT NULL DEFAULT '',
	input_hash TEXT NOT NULL,
	result     TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_comparables_lat_lon ON comparables(lat, lon);
CREATE INDEX IF NOT EXISTS idx_comparables_zone ON comparables(zone);
CREATE INDEX IF NOT EXISTS idx_comparables_sale_date ON comparables(sale_date);
CREATE INDEX IF NOT EXISTS idx_estimations_input_hash ON estimations(input_hash);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const sqliteComparableColumns = `id, lat, lon, surface, rooms, bathrooms, floor, exterior, elevator,
	build_year, condition, zone, price, price_per_area, sale_date, reformed, reliability, source`

func (s *SQLiteStore) ListComparables(ctx context.Context, filter ComparableFilter) ([]model.Comparable, error) {
	query := `SELECT ` + sqliteComparableColumns + ` FROM comparables WHERE 1=1`
	var args []any

	if filter.ReformedOnly {
		query += ` AND reformed = 1`
	}
	if !filter.SoldAfter.IsZero() {
		query += ` AND sale_date >= ?`
		args = append(args, formatSaleDate(filter.SoldAfter))
	}
	if box, ok := filter.bbox(); ok {
		query += ` AND lat BETWEEN ? AND ? AND lon BETWEEN ? AND ?`
		args = append(args, box.MinLat, box.MaxLat, box.MinLng, box.MaxLng)
	}
	if filter.Zone != "" {
		query += ` AND zone = ?`
		args = append(args, filter.Zone)
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list comparables")
	}
	defer rows.Close()

	var out []model.Comparable
	for rows.Next() {
		c, err := scanSQLiteComparable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list comparables iterate")
}

func (s *SQLiteStore) UpsertComparables(ctx context.Context, comps []model.Comparable) (int, error) {
	if len(comps) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO comparables (`+sqliteComparableColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			lat = excluded.lat, lon = excluded.lon, surface = excluded.surface,
			rooms = excluded.rooms, bathrooms = excluded.bathrooms, floor = excluded.floor,
			exterior = excluded.exterior, elevator = excluded.elevator, build_year = excluded.build_year,
			condition = excluded.condition, zone = excluded.zone, price = excluded.price,
			price_per_area = excluded.price_per_area, sale_date = excluded.sale_date,
			reformed = excluded.reformed, reliability = excluded.reliability, source = excluded.source`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close()

	for _, c := range comps {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		var lat, lon *float64
		if c.Location != nil {
			lat, lon = &c.Location.Lat, &c.Location.Lon
		}
		if _, err := stmt.ExecContext(ctx,
			c.ID, lat, lon, c.Surface,
			int64Ptr(c.Rooms), int64Ptr(c.Bathrooms), int64Ptr(c.Floor),
			c.Exterior, c.Elevator, int64Ptr(c.BuildYear),
			c.Condition, c.Zone, c.Price, c.PricePerArea,
			formatSaleDate(c.SaleDate), c.WasReformed, c.Reliability, c.Source,
		); err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert comparable %s", c.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert")
	}
	return len(comps), nil
}

func (s *SQLiteStore) ZoneStats(ctx context.Context) (map[string]model.ZoneStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT zone,
			AVG(price_per_area),
			AVG(CASE WHEN reformed = 1 THEN price_per_area END),
			AVG(CASE WHEN reformed = 0 THEN price_per_area END),
			MIN(price_per_area),
			MAX(price_per_area),
			COUNT(*)
		FROM comparables
		WHERE zone <> '' AND price_per_area > 0
		GROUP BY zone`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: zone stats")
	}
	defer rows.Close()

	out := make(map[string]model.ZoneStats)
	for rows.Next() {
		var z model.ZoneStats
		var reformed, unreformed sql.NullFloat64
		if err := rows.Scan(&z.Zone, &z.AvgPricePerArea, &reformed, &unreformed,
			&z.MinPricePerArea, &z.MaxPricePerArea, &z.SampleSize); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan zone stats")
		}
		z.AvgReformedPricePerArea = reformed.Float64
		z.AvgUnreformedPricePerArea = unreformed.Float64
		out[z.Zone] = z
	}
	return out, eris.Wrap(rows.Err(), "sqlite: zone stats iterate")
}

func (s *SQLiteStore) CostProfiles(ctx context.Context) ([]model.ReformCostProfile, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, quality, zone, cost_per_area, included, excluded, year, source
		 FROM cost_profiles ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: cost profiles")
	}
	defer rows.Close()

	var out []model.ReformCostProfile
	for rows.Next() {
		var p model.ReformCostProfile
		var included, excluded string
		if err := rows.Scan(&p.Category, &p.Quality, &p.Zone, &p.CostPerArea,
			&included, &excluded, &p.Year, &p.Source); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cost profile")
		}
		if err := json.Unmarshal([]byte(included), &p.IncludedItems); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal included items")
		}
		if err := json.Unmarshal([]byte(excluded), &p.ExcludedItems); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal excluded items")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: cost profiles iterate")
}

func (s *SQLiteStore) ReplaceCostProfiles(ctx context.Context, profiles []model.ReformCostProfile) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin replace cost profiles")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM cost_profiles`); err != nil {
		return 0, eris.Wrap(err, "sqlite: clear cost profiles")
	}
	for _, p := range profiles {
		included, err := json.Marshal(nonNil(p.IncludedItems))
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal included items")
		}
		excluded, err := json.Marshal(nonNil(p.ExcludedItems))
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: marshal excluded items")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cost_profiles (category, quality, zone, cost_per_area, included, excluded, year, source)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			string(p.Category), string(p.Quality), p.Zone, p.CostPerArea,
			string(included), string(excluded), p.Year, p.Source,
		); err != nil {
			return 0, eris.Wrap(err, "sqlite: insert cost profile")
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit cost profiles")
	}
	return len(profiles), nil
}

func (s *SQLiteStore) SaveEstimation(ctx context.Context, rec EstimationRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO estimations (id, reference, input_hash, result, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Reference, rec.InputHash, string(rec.Result), rec.CreatedAt,
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert estimation")
	}
	return rec.ID, nil
}

func (s *SQLiteStore) GetEstimation(ctx context.Context, id string) (*EstimationRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, reference, input_hash, result, created_at FROM estimations WHERE id = ?`, id)
	rec, err := scanSQLiteEstimation(row)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get estimation %s", id)
	}
	return rec, nil
}

func (s *SQLiteStore) FindEstimationByHash(ctx context.Context, inputHash string) (*EstimationRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, reference, input_hash, result, created_at FROM estimations
		 WHERE input_hash = ? ORDER BY created_at DESC LIMIT 1`, inputHash)
	rec, err := scanSQLiteEstimation(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find estimation by hash")
	}
	return rec, nil
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanSQLiteComparable(row scannable) (*model.Comparable, error) {
	var c model.Comparable
	var lat, lon sql.NullFloat64
	var rooms, bathrooms, floor, buildYear *int64
	var saleDate string

	err := row.Scan(&c.ID, &lat, &lon, &c.Surface, &rooms, &bathrooms, &floor,
		&c.Exterior, &c.Elevator, &buildYear, &c.Condition, &c.Zone,
		&c.Price, &c.PricePerArea, &saleDate, &c.WasReformed, &c.Reliability, &c.Source)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan comparable")
	}

	if lat.Valid && lon.Valid {
		c.Location = &geo.Point{Lat: lat.Float64, Lon: lon.Float64}
	}
	c.Rooms, c.Bathrooms, c.Floor, c.BuildYear = intPtr(rooms), intPtr(bathrooms), intPtr(floor), intPtr(buildYear)
	if c.SaleDate, err = time.Parse(time.RFC3339, saleDate); err != nil {
		return nil, eris.Wrapf(err, "sqlite: parse sale date of %s", c.ID)
	}
	return &c, nil
}

func scanSQLiteEstimation(row scannable) (*EstimationRecord, error) {
	var rec EstimationRecord
	var result string
	err := row.Scan(&rec.ID, &rec.Reference, &rec.InputHash, &result, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan estimation")
	}
	rec.Result = json.RawMessage(result)
	return &rec, nil
}

func formatSaleDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
