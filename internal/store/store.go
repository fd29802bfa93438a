// Package store persists saved case records.
package store

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/serialscan/internal/config"
	"github.com/sells-group/serialscan/internal/model"
)

// ResultFilter specifies criteria for listing results.
type ResultFilter struct {
	Source model.Source `json:"source,omitempty"`
	Serial string       `json:"serial_number,omitempty"`
	Agent  string       `json:"agent,omitempty"`
	Since  time.Time    `json:"since,omitempty"`
	Limit  int          `json:"limit,omitempty"`
	Offset int          `json:"offset,omitempty"`
}

// Match reports whether rec passes the filter, ignoring paging.
func (f ResultFilter) Match(rec model.CaseRecord) bool {
	if f.Source != "" && rec.Source != f.Source {
		return false
	}
	if f.Serial != "" && rec.Serial != f.Serial {
		return false
	}
	if f.Agent != "" && rec.Agent != f.Agent {
		return false
	}
	if !f.Since.IsZero() && rec.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

// ResultStore defines the persistence interface for saved cases.
type ResultStore interface {
	SaveResult(ctx context.Context, rec *model.CaseRecord) error
	GetResult(ctx context.Context, id string) (*model.CaseRecord, error)
	// ListResults returns matching records, newest first.
	ListResults(ctx context.Context, filter ResultFilter) ([]model.CaseRecord, error)

	Migrate(ctx context.Context) error
	Close() error
}

// ErrNotFound is returned by GetResult for an unknown id.
var ErrNotFound = eris.New("store: result not found")

// Open creates the store selected by cfg.Driver and migrates it.
func Open(ctx context.Context, cfg config.StoreConfig) (ResultStore, error) {
	var (
		s   ResultStore
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		if err := ensureDir(cfg.DatabaseURL); err != nil {
			return nil, err
		}
		s, err = NewSQLite(cfg.DatabaseURL)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
	case "csv":
		s, err = NewCSV(cfg.CSVPath)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return eris.Wrapf(os.MkdirAll(dir, 0o755), "store: create %s", dir)
}
