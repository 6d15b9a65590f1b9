package csvstore

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// table is a parsed CSV file with a header row.
type table struct {
	file   string
	header map[string]int
	cols   []string
	rows   [][]string
}

func readTable(path string, required ...string) (*table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	recs, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("missing header row")
	}
	t := &table{file: filepath.Base(path), header: map[string]int{}}
	for i, h := range recs[0] {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		t.header[h] = i
		t.cols = append(t.cols, h)
	}
	for _, col := range required {
		if _, ok := t.header[col]; !ok {
			return nil, fmt.Errorf("missing column %s", col)
		}
	}
	t.rows = recs[1:]
	return t, nil
}

// cell returns the trimmed value of col in row i, or "" when the column is absent.
func (t *table) cell(i int, col string) string {
	j, ok := t.header[col]
	if !ok || j >= len(t.rows[i]) {
		return ""
	}
	return strings.TrimSpace(t.rows[i][j])
}

func (t *table) rowErr(i int, col string, err error) error {
	return fmt.Errorf("row %d column %s: %w", i+2, col, err)
}

func (t *table) floatAt(i int, col string) (float64, error) {
	v := t.cell(i, col)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, t.rowErr(i, col, err)
	}
	return f, nil
}

func (t *table) intAt(i int, col string) (int, error) {
	f, err := t.floatAt(i, col)
	if err != nil {
		return 0, err
	}
	return int(f), nil
}

func (t *table) boolAt(i int, col string) (bool, error) {
	b, err := parseBool(t.cell(i, col))
	if err != nil {
		return false, t.rowErr(i, col, err)
	}
	return b, nil
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "", "0", "false", "no", "n", "f":
		return false, nil
	case "1", "true", "yes", "y", "t", "1.0":
		return true, nil
	}
	return false, fmt.Errorf("invalid boolean %q", v)
}

// writeAtomic writes records to a temporary file and renames it over path.
func writeAtomic(path string, records [][]string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := writeCSV(tmp, records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func writeCSV(w io.Writer, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(records); err != nil {
		return err
	}
	return cw.Error()
}
