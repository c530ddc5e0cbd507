package files

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	plant "solar-dashboard/internal/plant/domain"
)

// table indexes tabular rows by header name.
type table struct {
	source string
	index  map[string]int
	rows   [][]string
}

func newTable(source string, records [][]string, required []string) (*table, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: empty file", source)
	}
	header := records[0]
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if name == "" {
			continue
		}
		if _, exists := index[name]; !exists {
			index[name] = i
		}
	}

	var missing []string
	for _, col := range required {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%s: %w: %s", source, plant.ErrMissingColumns, strings.Join(missing, ", "))
	}

	rows := make([][]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		if isBlank(rec) {
			continue
		}
		rows = append(rows, rec)
	}
	return &table{source: source, index: index, rows: rows}, nil
}

func (t *table) row(i int) row {
	return row{t: t, cells: t.rows[i], line: i + 2}
}

func isBlank(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// row reads typed cells and remembers the first parse failure.
type row struct {
	t     *table
	cells []string
	line  int
	err   error
}

func (r *row) has(col string) bool {
	_, ok := r.t.index[col]
	return ok
}

func (r *row) raw(col string) string {
	i, ok := r.t.index[col]
	if !ok || i >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[i])
}

func (r *row) fail(col string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%s row %d column %s: %w", r.t.source, r.line, col, err)
	}
}

func (r *row) str(col string) string {
	value := r.raw(col)
	if strings.EqualFold(value, "nan") || strings.EqualFold(value, "none") {
		return ""
	}
	return value
}

func (r *row) float(col string) float64 {
	value := r.raw(col)
	if value == "" {
		r.fail(col, errors.New("empty value"))
		return 0
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		r.fail(col, err)
		return 0
	}
	if math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		r.fail(col, fmt.Errorf("non-finite value %q", value))
		return 0
	}
	return parsed
}

func (r *row) int(col string) int {
	value := r.float(col)
	if value != math.Trunc(value) {
		r.fail(col, fmt.Errorf("not an integer: %v", value))
		return 0
	}
	return int(value)
}

func (r *row) date(col string, loc *time.Location) plant.Date {
	value := r.raw(col)
	d, err := parseCellDate(value, loc)
	if err != nil {
		r.fail(col, err)
	}
	return d
}

// optionalDate returns nil for empty or unparseable values.
func (r *row) optionalDate(col string, loc *time.Location) *plant.Date {
	value := r.str(col)
	if value == "" {
		return nil
	}
	d, err := parseCellDate(value, loc)
	if err != nil {
		return nil
	}
	return &d
}

// parseCellDate accepts text dates and Excel serial day numbers.
func parseCellDate(value string, loc *time.Location) (plant.Date, error) {
	if serial, err := strconv.ParseFloat(value, 64); err == nil && serial > 0 {
		t, err := excelize.ExcelDateToTime(serial, false)
		if err != nil {
			return plant.Date{}, err
		}
		y, m, d := t.Date()
		return plant.Date{Time: time.Date(y, m, d, 0, 0, 0, 0, loc)}, nil
	}
	return plant.ParseDate(value, loc)
}
