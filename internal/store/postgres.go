package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/serialscan/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock pools satisfy it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements ResultStore using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

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

const postgresMigration = `
CREATE TABLE IF NOT EXISTS results (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	case_id       TEXT NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	task          TEXT NOT NULL,
	agent         TEXT NOT NULL,
	input_type    TEXT NOT NULL,
	serial_number TEXT NOT NULL,
	confidence    DOUBLE PRECISION NOT NULL DEFAULT 0,
	source        TEXT NOT NULL DEFAULT 'none',
	is_known_good BOOLEAN NOT NULL DEFAULT false,
	edited        BOOLEAN NOT NULL DEFAULT false,
	image_path    TEXT NOT NULL DEFAULT '',
	notes         TEXT NOT NULL DEFAULT '',
	timeline      JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_results_created_at ON results(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_results_serial ON results(serial_number);
CREATE INDEX IF NOT EXISTS idx_results_source ON results(source);
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

func (s *PostgresStore) SaveResult(ctx context.Context, rec *model.CaseRecord) error {
	prepareRecord(rec)
	timelineJSON, err := json.Marshal(rec.Timeline)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal timeline")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO results (`+resultColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rec.ID, rec.CaseID, rec.CreatedAt, rec.Task, rec.Agent, string(rec.InputType),
		rec.Serial, rec.Confidence, string(rec.Source), rec.IsKnownGood, rec.Edited,
		rec.ImagePath, rec.Notes, timelineJSON,
	)
	return eris.Wrapf(err, "postgres: insert result %s", rec.ID)
}

func (s *PostgresStore) GetResult(ctx context.Context, id string) (*model.CaseRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+resultColumns+` FROM results WHERE id = $1`, id)
	rec, err := scanPgRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get result %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get result %s", id)
	}
	return rec, nil
}

func (s *PostgresStore) ListResults(ctx context.Context, filter ResultFilter) ([]model.CaseRecord, error) {
	where, args := buildWhere(filter, func(n int) string { return fmt.Sprintf("$%d", n) })
	query := `SELECT ` + resultColumns + ` FROM results` + where + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
		if filter.Offset > 0 {
			args = append(args, filter.Offset)
			query += fmt.Sprintf(` OFFSET $%d`, len(args))
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list results")
	}
	defer rows.Close()

	var out []model.CaseRecord
	for rows.Next() {
		rec, err := scanPgRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan result")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list results iterate")
}

func scanPgRecord(row pgx.Row) (*model.CaseRecord, error) {
	var (
		rec          model.CaseRecord
		inputType    string
		source       string
		timelineJSON []byte
	)
	err := row.Scan(&rec.ID, &rec.CaseID, &rec.CreatedAt, &rec.Task, &rec.Agent, &inputType,
		&rec.Serial, &rec.Confidence, &source, &rec.IsKnownGood, &rec.Edited,
		&rec.ImagePath, &rec.Notes, &timelineJSON)
	if err != nil {
		return nil, err
	}
	rec.InputType = model.InputType(inputType)
	rec.Source = model.Source(source)
	rec.Timeline = map[string]string{}
	if len(timelineJSON) > 0 {
		if err := json.Unmarshal(timelineJSON, &rec.Timeline); err != nil {
			return nil, eris.Wrapf(err, "unmarshal timeline of %s", rec.ID)
		}
	}
	return &rec, nil
}
