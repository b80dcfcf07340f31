package storage

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LoadProgress reports bytes consumed from a dataset file.
type LoadProgress func(table string, done, total int64)

// LoadResult summarises one imported table.
type LoadResult struct {
	Table   string `json:"table"`
	Path    string `json:"path"`
	Rows    int    `json:"rows"`
	Skipped bool   `json:"skipped"`
}

// Loader imports CSV datasets into the storefront tables.
type Loader struct {
	db       *sql.DB
	dataDir  string
	datasets map[string]string
	force    bool
	progress LoadProgress
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithForce replaces rows in tables that already hold data.
func WithForce(force bool) LoaderOption {
	return func(l *Loader) { l.force = force }
}

// WithProgress installs a progress callback.
func WithProgress(fn LoadProgress) LoaderOption {
	return func(l *Loader) { l.progress = fn }
}

// NewLoader creates a loader for datasets keyed by table name, with paths
// relative to dataDir.
func NewLoader(db *sql.DB, dataDir string, datasets map[string]string, opts ...LoaderOption) *Loader {
	l := &Loader{db: db, dataDir: dataDir, datasets: datasets}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// DatasetSize returns the size in bytes of a table's CSV file, or zero when
// the table has no dataset.
func (l *Loader) DatasetSize(table string) int64 {
	rel, ok := l.datasets[table]
	if !ok {
		return 0
	}
	info, err := os.Stat(filepath.Join(l.dataDir, rel))
	if err != nil {
		return 0
	}
	return info.Size()
}

// LoadAll migrates the schema and imports every configured dataset in
// schema order. Tables that already hold rows are skipped unless forced.
func (l *Loader) LoadAll(ctx context.Context) ([]LoadResult, error) {
	if err := Migrate(ctx, l.db); err != nil {
		return nil, err
	}

	var results []LoadResult
	for _, t := range Tables {
		rel, ok := l.datasets[t.Name]
		if !ok {
			continue
		}
		res, err := l.loadTable(ctx, t, filepath.Join(l.dataDir, rel))
		if err != nil {
			return results, fmt.Errorf("load %s: %w", t.Name, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (l *Loader) loadTable(ctx context.Context, t Table, path string) (LoadResult, error) {
	res := LoadResult{Table: t.Name, Path: path}

	var existing int
	if err := l.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+t.Name).Scan(&existing); err != nil {
		return res, fmt.Errorf("count rows: %w", err)
	}
	if existing > 0 && !l.force {
		res.Skipped = true
		return res, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return res, fmt.Errorf("open dataset: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return res, fmt.Errorf("stat dataset: %w", err)
	}
	counter := &countingReader{r: f}

	n, err := l.importCSV(ctx, t, counter, func() {
		if l.progress != nil {
			l.progress(t.Name, counter.n, info.Size())
		}
	})
	if err != nil {
		return res, err
	}
	if l.progress != nil {
		l.progress(t.Name, info.Size(), info.Size())
	}
	res.Rows = n
	return res, nil
}

// ImportCSV replaces the contents of table with the rows read from r.
// CSV headers are matched to table columns by name, case-insensitively;
// unknown headers are ignored and empty cells become NULL.
func (l *Loader) ImportCSV(ctx context.Context, table string, r io.Reader) (int, error) {
	t, ok := TableByName(table)
	if !ok {
		return 0, fmt.Errorf("unknown table: %s", table)
	}
	if err := Migrate(ctx, l.db); err != nil {
		return 0, err
	}
	return l.importCSV(ctx, t, r, nil)
}

func (l *Loader) importCSV(ctx context.Context, t Table, r io.Reader, tick func()) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}

	known := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		known[c.Name] = c.Name != t.Ordinal
	}
	var (
		columns []string
		indexes []int
	)
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if known[name] {
			columns = append(columns, name)
			indexes = append(indexes, i)
		}
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("no known columns in header for %s", t.Name)
	}

	fromCSV := len(columns)
	if t.Ordinal != "" {
		columns = append(columns, t.Ordinal)
	}

	var p placeholders
	marks := make([]string, len(columns))
	for i := range columns {
		marks[i] = p.add(nil)
	}
	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		t.Name, strings.Join(columns, ", "), strings.Join(marks, ", "))

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+t.Name); err != nil {
		return 0, fmt.Errorf("clear table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	rows := 0
	values := make([]interface{}, len(columns))
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("read row %d: %w", rows+1, err)
		}
		for i, idx := range indexes {
			values[i] = nil
			if idx < len(record) {
				if v := strings.TrimSpace(record[idx]); v != "" {
					values[i] = v
				}
			}
		}
		if len(columns) > fromCSV {
			values[fromCSV] = rows + 1
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return rows, fmt.Errorf("insert row %d: %w", rows+1, err)
		}
		rows++
		if tick != nil && rows%500 == 0 {
			tick()
		}
	}

	if err := tx.Commit(); err != nil {
		return rows, fmt.Errorf("commit: %w", err)
	}
	return rows, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
