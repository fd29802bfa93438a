package store

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"slices"
	"sort"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/serialscan/internal/model"
)

// DefaultColumns is the column order of a new results file. Keys a record
// brings beyond these are appended after them.
var DefaultColumns = []string{
	"timestamp_iso", "experiment_id", "case_id",
	"task", "agent", "input_type",
	"serial_number", "confidence",
	"image_path", "notes",
	"ts_camera_start", "ts_scan_pressed", "ts_ocr_result",
	"ts_gpt_result", "ts_gpt_verification",
	"ts_accept_save_pressed", "ts_edit_pressed", "ts_save_edited_pressed",
	"ts_result_saved",
}

// CSVStore implements ResultStore on a single CSV file whose header grows
// when records carry new keys.
type CSVStore struct {
	path string
	mu   sync.Mutex
}

// NewCSV creates a CSVStore writing to path.
func NewCSV(path string) (*CSVStore, error) {
	if path == "" {
		return nil, eris.New("csv: path is required")
	}
	return &CSVStore{path: path}, nil
}

// Migrate creates the parent directory. The header is written with the
// first record.
func (s *CSVStore) Migrate(_ context.Context) error {
	return ensureDir(s.path)
}

func (s *CSVStore) Close() error { return nil }

func (s *CSVStore) SaveResult(_ context.Context, rec *model.CaseRecord) error {
	prepareRecord(rec)
	row := rec.Row()

	s.mu.Lock()
	defer s.mu.Unlock()

	header, rows, err := s.read()
	if err != nil {
		return err
	}

	if len(header) == 0 {
		header = expandHeader(slices.Clone(DefaultColumns), row)
		if err := s.rewrite(header, nil); err != nil {
			return err
		}
	} else if expanded := expandHeader(slices.Clone(header), row); len(expanded) != len(header) {
		header = expanded
		if err := s.rewrite(header, rows); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrap(err, "csv: open for append")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(project(header, row)); err != nil {
		return eris.Wrap(err, "csv: append row")
	}
	w.Flush()
	return eris.Wrap(w.Error(), "csv: flush")
}

func (s *CSVStore) GetResult(_ context.Context, id string) (*model.CaseRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, rows, err := s.read()
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row["experiment_id"] == id {
			rec := model.RecordFromRow(row)
			return &rec, nil
		}
	}
	return nil, eris.Wrapf(ErrNotFound, "csv: get result %s", id)
}

func (s *CSVStore) ListResults(_ context.Context, filter ResultFilter) ([]model.CaseRecord, error) {
	s.mu.Lock()
	_, rows, err := s.read()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	var out []model.CaseRecord
	for i := len(rows) - 1; i >= 0; i-- {
		rec := model.RecordFromRow(rows[i])
		if filter.Match(rec) {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *CSVStore) read() ([]string, []map[string]string, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, eris.Wrap(err, "csv: open")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err == io.EOF {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, eris.Wrap(err, "csv: read header")
	}

	var rows []map[string]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, eris.Wrap(err, "csv: read row")
		}
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	return header, rows, nil
}

func (s *CSVStore) rewrite(header []string, rows []map[string]string) error {
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return eris.Wrap(err, "csv: create")
	}

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return eris.Wrap(err, "csv: write header")
	}
	for _, row := range rows {
		if err := w.Write(project(header, row)); err != nil {
			f.Close()
			return eris.Wrap(err, "csv: write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return eris.Wrap(err, "csv: flush")
	}
	if err := f.Close(); err != nil {
		return eris.Wrap(err, "csv: close")
	}
	return eris.Wrap(os.Rename(tmp, s.path), "csv: replace file")
}

// expandHeader appends keys of row missing from header in sorted order.
func expandHeader(header []string, row map[string]string) []string {
	var extra []string
	for k := range row {
		if !slices.Contains(header, k) {
			extra = append(extra, k)
		}
	}
	sort.Strings(extra)
	return append(header, extra...)
}

// project lays row out in header order, empty where a key is missing.
func project(header []string, row map[string]string) []string {
	out := make([]string, len(header))
	for i, col := range header {
		out[i] = row[col]
	}
	return out
}
