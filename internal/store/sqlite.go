package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/serialscan/internal/model"
)

// SQLiteStore implements ResultStore using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
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

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS results (
	id            TEXT PRIMARY KEY,
	case_id       TEXT NOT NULL,
	created_at    DATETIME NOT NULL,
	task          TEXT NOT NULL,
	agent         TEXT NOT NULL,
	input_type    TEXT NOT NULL,
	serial_number TEXT NOT NULL,
	confidence    REAL NOT NULL DEFAULT 0,
	source        TEXT NOT NULL DEFAULT 'none',
	is_known_good INTEGER NOT NULL DEFAULT 0,
	edited        INTEGER NOT NULL DEFAULT 0,
	image_path    TEXT NOT NULL DEFAULT '',
	notes         TEXT NOT NULL DEFAULT '',
	timeline      TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_results_created_at ON results(created_at);
CREATE INDEX IF NOT EXISTS idx_results_serial ON results(serial_number);
CREATE INDEX IF NOT EXISTS idx_results_source ON results(source);
`

const resultColumns = `id, case_id, created_at, task, agent, input_type, serial_number, confidence, source, is_known_good, edited, image_path, notes, timeline`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveResult(ctx context.Context, rec *model.CaseRecord) error {
	prepareRecord(rec)
	timelineJSON, err := json.Marshal(rec.Timeline)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal timeline")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results (`+resultColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.CaseID, rec.CreatedAt.UTC(), rec.Task, rec.Agent, string(rec.InputType),
		rec.Serial, rec.Confidence, string(rec.Source), rec.IsKnownGood, rec.Edited,
		rec.ImagePath, rec.Notes, string(timelineJSON),
	)
	return eris.Wrapf(err, "sqlite: insert result %s", rec.ID)
}

func (s *SQLiteStore) GetResult(ctx context.Context, id string) (*model.CaseRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+resultColumns+` FROM results WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get result %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get result %s", id)
	}
	return rec, nil
}

func (s *SQLiteStore) ListResults(ctx context.Context, filter ResultFilter) ([]model.CaseRecord, error) {
	where, args := buildWhere(filter, func(int) string { return "?" })
	query := `SELECT ` + resultColumns + ` FROM results` + where + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list results")
	}
	defer rows.Close()

	var out []model.CaseRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan result")
		}
		out = append(out, *rec)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list results iterate")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRecord(row scannable) (*model.CaseRecord, error) {
	var (
		rec          model.CaseRecord
		inputType    string
		source       string
		timelineJSON string
	)
	err := row.Scan(&rec.ID, &rec.CaseID, &rec.CreatedAt, &rec.Task, &rec.Agent, &inputType,
		&rec.Serial, &rec.Confidence, &source, &rec.IsKnownGood, &rec.Edited,
		&rec.ImagePath, &rec.Notes, &timelineJSON)
	if err != nil {
		return nil, err
	}
	rec.InputType = model.InputType(inputType)
	rec.Source = model.Source(source)
	if err := json.Unmarshal([]byte(timelineJSON), &rec.Timeline); err != nil {
		return nil, eris.Wrapf(err, "unmarshal timeline of %s", rec.ID)
	}
	return &rec, nil
}

// prepareRecord fills the id, creation time and timeline of a new record.
func prepareRecord(rec *model.CaseRecord) {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Timeline == nil {
		rec.Timeline = map[string]string{}
	}
	if rec.Source == "" {
		rec.Source = model.SourceNone
	}
}

// buildWhere renders the filter as a WHERE clause; placeholder returns the
// bind marker for the nth argument.
func buildWhere(f ResultFilter, placeholder func(n int) string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, cond+placeholder(len(args)))
	}
	if f.Source != "" {
		add("source = ", string(f.Source))
	}
	if f.Serial != "" {
		add("serial_number = ", f.Serial)
	}
	if f.Agent != "" {
		add("agent = ", f.Agent)
	}
	if !f.Since.IsZero() {
		add("created_at >= ", f.Since.UTC())
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
