package knowledge

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/serialscan/pkg/notion"
)

// headerNames are first-row values treated as a column header, not a serial.
var headerNames = map[string]bool{
	"serial":        true,
	"serial_number": true,
	"serialnumber":  true,
	"serial number": true,
	"sn":            true,
}

// Sources lists where to read known serial numbers from.
type Sources struct {
	Serials      []string
	Files        []string
	NotionDB     string
	NotionColumn string
}

// Load builds a Base from every configured source. The Notion client may be
// nil when no Notion database is configured.
func Load(ctx context.Context, src Sources, nc notion.Client) (*Base, error) {
	all := append([]string(nil), src.Serials...)

	for _, path := range src.Files {
		serials, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		all = append(all, serials...)
	}

	if src.NotionDB != "" {
		if nc == nil {
			return nil, eris.New("knowledge: notion database configured without a notion token")
		}
		serials, err := LoadNotion(ctx, nc, src.NotionDB, src.NotionColumn)
		if err != nil {
			return nil, err
		}
		all = append(all, serials...)
	}

	base := New(all...)
	zap.L().Info("knowledge: loaded known serials",
		zap.Int("count", base.Len()),
		zap.Int("files", len(src.Files)),
		zap.Bool("notion", src.NotionDB != ""),
	)
	return base, nil
}

// LoadFile reads serial numbers from a .txt, .csv, .yaml/.yml or .xlsx file.
// Text and CSV files contribute their first column; a recognised header row
// is skipped.
func LoadFile(path string) ([]string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".csv", "":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "knowledge: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return readCSV(f)
	case ".yaml", ".yml":
		return readYAML(path)
	case ".xlsx":
		return readXLSX(path)
	default:
		return nil, eris.Errorf("knowledge: unsupported file type %q", filepath.Ext(path))
	}
}

func readCSV(r io.Reader) ([]string, error) {
	reader := csv.NewReader(r)
	reader.Comment = '#'
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "knowledge: read csv row")
		}
		rows = append(rows, record)
	}
	return firstColumn(rows), nil
}

// yamlList accepts either a bare list or a document with a serials key.
type yamlList struct {
	Serials []string `yaml:"serials"`
}

func readYAML(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "knowledge: read %s", path)
	}

	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil {
		return cleanAll(list), nil
	}

	var doc yamlList
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "knowledge: parse yaml %s", path)
	}
	return cleanAll(doc.Serials), nil
}

func readXLSX(path string) ([]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "knowledge: open xlsx %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, nil
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		if row == nil || len(row.Cells) == 0 {
			continue
		}
		rows = append(rows, []string{row.Cells[0].String()})
	}
	return firstColumn(rows), nil
}

// firstColumn collects the first cell of each row, skipping blanks and a
// header in the first row.
func firstColumn(rows [][]string) []string {
	var out []string
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		v := strings.TrimSpace(row[0])
		if v == "" {
			continue
		}
		if i == 0 && headerNames[strings.ToLower(v)] {
			continue
		}
		out = append(out, v)
	}
	return out
}

func cleanAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// LoadNotion reads serial numbers from a Notion database column. Title and
// rich text properties are supported.
func LoadNotion(ctx context.Context, nc notion.Client, dbID, column string) ([]string, error) {
	if column == "" {
		column = "Serial"
	}

	pages, err := notion.QueryAll(ctx, nc, dbID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "knowledge: load notion serials")
	}

	var out []string
	for _, p := range pages {
		v := notion.PropertyText(p, column)
		if v = strings.TrimSpace(v); v == "" {
			zap.L().Debug("knowledge: skipping notion page without serial",
				zap.String("page_id", string(p.ID)),
			)
			continue
		}
		out = append(out, v)
	}
	return out, nil
}
