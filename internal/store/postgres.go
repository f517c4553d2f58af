package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/flip-estimator/internal/db"
	"github.com/sells-group/flip-estimator/internal/geo"
	"github.com/sells-group/flip-estimator/internal/model"
)

// PostgresStore implements Store on PostGIS using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const pgComparableSelect = `SELECT id, ST_AsEWKB(location::geometry), surface, rooms, bathrooms, floor,
	exterior, elevator, build_year, condition, zone, price, price_per_area, sale_date,
	reformed, reliability, source FROM comparables WHERE TRUE`

// preparedStatements are prepared on each new connection.
var preparedStatements = map[string]string{
	"get_estimation":     `SELECT id, reference, input_hash, result, created_at FROM estimations WHERE id = $1`,
	"find_estimation":    `SELECT id, reference, input_hash, result, created_at FROM estimations WHERE input_hash = $1 ORDER BY created_at DESC LIMIT 1`,
	"insert_estimation":  `INSERT INTO estimations (id, reference, input_hash, result, created_at) VALUES ($1, $2, $3, $4, $5)`,
	"list_cost_profiles": `SELECT category, quality, zone, cost_per_area, included, excluded, year, source FROM cost_profiles ORDER BY id`,
}

// NewPostgresWithPool wraps an existing pool. Close does not close it.
func NewPostgresWithPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// applyPoolConfig sets the pool bounds, keeping the defaults of 10 and 2 for
// unset values. MinConns is capped at MaxConns.
func applyPoolConfig(pgxCfg *pgxpool.Config, poolCfg *PoolConfig) {
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	if minConns > maxConns {
		minConns = maxConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	applyPoolConfig(pgxCfg, poolCfg)
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS comparables (
	id             TEXT PRIMARY KEY,
	lat            DOUBLE PRECISION,
	lon            DOUBLE PRECISION,
	location       geography(Point, 4326) GENERATED ALWAYS AS (
		CASE WHEN lat IS NULL OR lon IS NULL THEN NULL
		ELSE ST_SetSRID(ST_MakePoint(lon, lat), 4326)::geography END
	) STORED,
	surface        DOUBLE PRECISION NOT NULL,
	rooms          INTEGER,
	bathrooms      INTEGER,
	floor          INTEGER,
	exterior       BOOLEAN NOT NULL DEFAULT false,
	elevator       BOOLEAN NOT NULL DEFAULT false,
	build_year     INTEGER,
	condition      TEXT NOT NULL DEFAULT '',
	zone           TEXT NOT NULL DEFAULT '',
	price          DOUBLE PRECISION NOT NULL,
	price_per_area DOUBLE PRECISION NOT NULL,
	sale_date      TIMESTAMPTZ NOT NULL,
	reformed       BOOLEAN NOT NULL DEFAULT false,
	reliability    DOUBLE PRECISION NOT NULL DEFAULT 1,
	source         TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_comparables_location ON comparables USING GIST (location);
CREATE INDEX IF NOT EXISTS idx_comparables_zone ON comparables(zone);
CREATE INDEX IF NOT EXISTS idx_comparables_sale_date ON comparables(sale_date);

CREATE TABLE IF NOT EXISTS cost_profiles (
	id            BIGSERIAL PRIMARY KEY,
	category      TEXT NOT NULL,
	quality       TEXT NOT NULL,
	zone          TEXT NOT NULL DEFAULT '',
	cost_per_area DOUBLE PRECISION NOT NULL,
	included      TEXT[] NOT NULL DEFAULT '{}',
	excluded      TEXT[] NOT NULL DEFAULT '{}',
	year          INTEGER NOT NULL,
	source        TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS estimations (
	id         TEXT PRIMARY KEY,
	reference  TEXT NOT NULL DEFAULT '',
	input_hash TEXT NOT NULL,
	result     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_estimations_input_hash ON estimations(input_hash, created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) ListComparables(ctx context.Context, filter ComparableFilter) ([]model.Comparable, error) {
	query := pgComparableSelect
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.ReformedOnly {
		query += ` AND reformed`
	}
	if !filter.SoldAfter.IsZero() {
		query += ` AND sale_date >= ` + arg(filter.SoldAfter.UTC())
	}
	if filter.Center != nil && filter.Center.Valid() && filter.RadiusM > 0 {
		center, err := filter.Center.EWKB()
		if err != nil {
			return nil, eris.Wrap(err, "postgres: encode search center")
		}
		query += ` AND ST_DWithin(location, ST_GeomFromEWKB(` + arg(center) + `)::geography, ` + arg(filter.RadiusM) + `)`
	}
	if filter.Zone != "" {
		query += ` AND zone = ` + arg(filter.Zone)
	}
	query += ` ORDER BY id`
	if filter.Limit > 0 {
		query += ` LIMIT ` + arg(filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list comparables")
	}
	defer rows.Close()

	var out []model.Comparable
	for rows.Next() {
		c, err := scanPgComparable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list comparables iterate")
}

var pgComparableColumns = []string{
	"id", "lat", "lon", "surface", "rooms", "bathrooms", "floor", "exterior", "elevator",
	"build_year", "condition", "zone", "price", "price_per_area", "sale_date", "reformed",
	"reliability", "source",
}

func (s *PostgresStore) UpsertComparables(ctx context.Context, comps []model.Comparable) (int, error) {
	rows := make([][]any, 0, len(comps))
	for _, c := range comps {
		if c.ID == "" {
			c.ID = uuid.New().String()
		}
		var lat, lon *float64
		if c.Location != nil {
			lat, lon = &c.Location.Lat, &c.Location.Lon
		}
		rows = append(rows, []any{
			c.ID, lat, lon, c.Surface,
			int64Ptr(c.Rooms), int64Ptr(c.Bathrooms), int64Ptr(c.Floor),
			c.Exterior, c.Elevator, int64Ptr(c.BuildYear),
			c.Condition, c.Zone, c.Price, c.PricePerArea,
			c.SaleDate.UTC(), c.WasReformed, c.Reliability, c.Source,
		})
	}

	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "comparables",
		Columns:      pgComparableColumns,
		ConflictKeys: []string{"id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert comparables")
	}
	return int(n), nil
}

func (s *PostgresStore) ZoneStats(ctx context.Context) (map[string]model.ZoneStats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT zone,
			AVG(price_per_area),
			AVG(price_per_area) FILTER (WHERE reformed),
			AVG(price_per_area) FILTER (WHERE NOT reformed),
			MIN(price_per_area),
			MAX(price_per_area),
			COUNT(*)
		FROM comparables
		WHERE zone <> '' AND price_per_area > 0
		GROUP BY zone`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: zone stats")
	}
	defer rows.Close()

	out := make(map[string]model.ZoneStats)
	for rows.Next() {
		var z model.ZoneStats
		var reformed, unreformed *float64
		if err := rows.Scan(&z.Zone, &z.AvgPricePerArea, &reformed, &unreformed,
			&z.MinPricePerArea, &z.MaxPricePerArea, &z.SampleSize); err != nil {
			return nil, eris.Wrap(err, "postgres: scan zone stats")
		}
		if reformed != nil {
			z.AvgReformedPricePerArea = *reformed
		}
		if unreformed != nil {
			z.AvgUnreformedPricePerArea = *unreformed
		}
		out[z.Zone] = z
	}
	return out, eris.Wrap(rows.Err(), "postgres: zone stats iterate")
}

func (s *PostgresStore) CostProfiles(ctx context.Context) ([]model.ReformCostProfile, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT category, quality, zone, cost_per_area, included, excluded, year, source FROM cost_profiles ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: cost profiles")
	}
	defer rows.Close()

	var out []model.ReformCostProfile
	for rows.Next() {
		var p model.ReformCostProfile
		var category, quality string
		if err := rows.Scan(&category, &quality, &p.Zone, &p.CostPerArea,
			&p.IncludedItems, &p.ExcludedItems, &p.Year, &p.Source); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cost profile")
		}
		p.Category, p.Quality = model.ReformCategory(category), model.ReformQuality(quality)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: cost profiles iterate")
}

var pgCostProfileColumns = []string{"category", "quality", "zone", "cost_per_area", "included", "excluded", "year", "source"}

func (s *PostgresStore) ReplaceCostProfiles(ctx context.Context, profiles []model.ReformCostProfile) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin replace cost profiles")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM cost_profiles`); err != nil {
		return 0, eris.Wrap(err, "postgres: clear cost profiles")
	}

	rows := make([][]any, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, []any{
			string(p.Category), string(p.Quality), p.Zone, p.CostPerArea,
			nonNil(p.IncludedItems), nonNil(p.ExcludedItems), p.Year, p.Source,
		})
	}
	n, err := db.CopyFrom(ctx, tx, "cost_profiles", pgCostProfileColumns, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: copy cost profiles")
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit cost profiles")
	}
	return int(n), nil
}

func (s *PostgresStore) SaveEstimation(ctx context.Context, rec EstimationRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO estimations (id, reference, input_hash, result, created_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.Reference, rec.InputHash, []byte(rec.Result), rec.CreatedAt,
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert estimation")
	}
	return rec.ID, nil
}

func (s *PostgresStore) GetEstimation(ctx context.Context, id string) (*EstimationRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, reference, input_hash, result, created_at FROM estimations WHERE id = $1`, id)
	rec, err := scanPgEstimation(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get estimation %s", id)
	}
	return rec, nil
}

func (s *PostgresStore) FindEstimationByHash(ctx context.Context, inputHash string) (*EstimationRecord, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, reference, input_hash, result, created_at FROM estimations WHERE input_hash = $1 ORDER BY created_at DESC LIMIT 1`,
		inputHash)
	rec, err := scanPgEstimation(row)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find estimation by hash")
	}
	return rec, nil
}

func scanPgComparable(row pgx.Row) (*model.Comparable, error) {
	var c model.Comparable
	var location []byte
	var rooms, bathrooms, floor, buildYear *int64

	err := row.Scan(&c.ID, &location, &c.Surface, &rooms, &bathrooms, &floor,
		&c.Exterior, &c.Elevator, &buildYear, &c.Condition, &c.Zone,
		&c.Price, &c.PricePerArea, &c.SaleDate, &c.WasReformed, &c.Reliability, &c.Source)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan comparable")
	}

	if c.Location, err = geo.FromEWKB(location); err != nil {
		return nil, eris.Wrapf(err, "postgres: decode location of %s", c.ID)
	}
	c.Rooms, c.Bathrooms, c.Floor, c.BuildYear = intPtr(rooms), intPtr(bathrooms), intPtr(floor), intPtr(buildYear)
	return &c, nil
}

func scanPgEstimation(row pgx.Row) (*EstimationRecord, error) {
	var rec EstimationRecord
	var result []byte
	err := row.Scan(&rec.ID, &rec.Reference, &rec.InputHash, &result, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan estimation")
	}
	rec.Result = result
	return &rec, nil
}
