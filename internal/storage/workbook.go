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

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"checkin-desk/internal/lock"
	"checkin-desk/internal/models"
)

var ErrNoSheet = errors.New("sheet not found")

const schema = `
CREATE TABLE IF NOT EXISTS sheets (
	name     TEXT PRIMARY KEY,
	next_row INTEGER NOT NULL DEFAULT 1
);
CREATE TABLE IF NOT EXISTS cells (
	sheet   TEXT    NOT NULL REFERENCES sheets(name) ON DELETE CASCADE,
	row_no  INTEGER NOT NULL,
	col_no  INTEGER NOT NULL,
	value   TEXT    NOT NULL DEFAULT '',
	formula TEXT    NOT NULL DEFAULT '',
	PRIMARY KEY (sheet, row_no, col_no)
);
CREATE INDEX IF NOT EXISTS cells_by_value ON cells (sheet, col_no, value);
`

// Workbook is a set of named sheets of text cells stored in SQLite.
// Row and column numbers are 1-based; row 1 of a sheet is its header.
type Workbook struct {
	db   *sql.DB
	lock *lock.DocumentLock
	log  zerolog.Logger
}

// Open opens or creates the workbook database at path
func Open(path string, logger zerolog.Logger) (*Workbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one connection keeps transactions from tripping over SQLITE_BUSY
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Workbook{
		db:   db,
		lock: lock.New(),
		log:  logger.With().Str("component", "Workbook").Logger(),
	}, nil
}

func (w *Workbook) Close() error {
	return w.db.Close()
}

// Lock returns the lock shared by all writers of this workbook
func (w *Workbook) Lock() *lock.DocumentLock {
	return w.lock
}

// Sheet returns a handle on the named sheet. The sheet is not checked for existence.
func (w *Workbook) Sheet(name string) *Sheet {
	return &Sheet{wb: w, name: name}
}

// EnsureSheet creates the sheet with the given header if it does not exist yet
func (w *Workbook) EnsureSheet(ctx context.Context, name string, header []string) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO sheets (name, next_row) VALUES (?, 1)`, name)
	if err != nil {
		return fmt.Errorf("failed to create sheet %s: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}

	if len(header) > 0 {
		if _, err := appendRow(ctx, tx, name, header); err != nil {
			return err
		}
	}

	w.log.Info().Str("sheet", name).Strs("header", header).Msg("Sheet created")
	return tx.Commit()
}

// Sheets lists sheet names in creation order
func (w *Workbook) Sheets(ctx context.Context) ([]string, error) {
	rows, err := w.db.QueryContext(ctx, `SELECT name FROM sheets ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// HasSheet reports whether the named sheet exists
func (w *Workbook) HasSheet(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := w.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM sheets WHERE name = ?)`, name,
	).Scan(&exists)
	return exists, err
}

// LastRow returns the last row in use, 0 for an empty sheet
func (w *Workbook) LastRow(ctx context.Context, sheet string) (int, error) {
	var next int
	err := w.db.QueryRowContext(ctx, `SELECT next_row FROM sheets WHERE name = ?`, sheet).Scan(&next)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrNoSheet, sheet)
	}
	if err != nil {
		return 0, err
	}
	return next - 1, nil
}

// LastColumn returns the highest column holding a value or formula
func (w *Workbook) LastColumn(ctx context.Context, sheet string) (int, error) {
	var last int
	err := w.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(col_no), 0) FROM cells WHERE sheet = ? AND (value != '' OR formula != '')`, sheet,
	).Scan(&last)
	return last, err
}

// Row returns the values of one row, padded to the sheet's last column
func (w *Workbook) Row(ctx context.Context, sheet string, row int) ([]string, error) {
	width, err := w.LastColumn(ctx, sheet)
	if err != nil {
		return nil, err
	}
	rows, err := w.readRows(ctx, sheet, row, row, width)
	if err != nil {
		return nil, err
	}
	return rows[0], nil
}

// Rows returns rows from..to inclusive, each padded to the sheet's last column
func (w *Workbook) Rows(ctx context.Context, sheet string, from, to int) ([][]string, error) {
	if to < from {
		return nil, nil
	}
	width, err := w.LastColumn(ctx, sheet)
	if err != nil {
		return nil, err
	}
	return w.readRows(ctx, sheet, from, to, width)
}

func (w *Workbook) readRows(ctx context.Context, sheet string, from, to, width int) ([][]string, error) {
	out := make([][]string, to-from+1)
	for i := range out {
		out[i] = make([]string, width)
	}

	rows, err := w.db.QueryContext(ctx,
		`SELECT row_no, col_no, value FROM cells
		 WHERE sheet = ? AND row_no BETWEEN ? AND ? AND col_no <= ?`,
		sheet, from, to, width,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			r, c  int
			value string
		)
		if err := rows.Scan(&r, &c, &value); err != nil {
			return nil, err
		}
		out[r-from][c-1] = value
	}
	return out, rows.Err()
}

// FindInColumn returns the first data row (below the header) whose cell in col
// equals value exactly, or 0 when there is none.
func (w *Workbook) FindInColumn(ctx context.Context, sheet string, col int, value string) (int, error) {
	var row int
	err := w.db.QueryRowContext(ctx,
		`SELECT row_no FROM cells
		 WHERE sheet = ? AND col_no = ? AND value = ? AND row_no > 1
		 ORDER BY row_no LIMIT 1`,
		sheet, col, value,
	).Scan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return row, err
}

// AppendRow writes values into the row after the last one in use and returns
// its number. The append cursor is read and advanced in the same transaction.
func (w *Workbook) AppendRow(ctx context.Context, sheet string, values []string) (int, error) {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	row, err := appendRow(ctx, tx, sheet, values)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return row, nil
}

func appendRow(ctx context.Context, tx *sql.Tx, sheet string, values []string) (int, error) {
	var row int
	err := tx.QueryRowContext(ctx, `SELECT next_row FROM sheets WHERE name = ?`, sheet).Scan(&row)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrNoSheet, sheet)
	}
	if err != nil {
		return 0, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE sheets SET next_row = ? WHERE name = ?`, row+1, sheet); err != nil {
		return 0, fmt.Errorf("failed to advance cursor: %w", err)
	}

	for i, v := range values {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cells (sheet, row_no, col_no, value) VALUES (?, ?, ?, ?)`,
			sheet, row, i+1, v,
		); err != nil {
			return 0, fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
		}
	}
	return row, nil
}

// SetFormula stores formula text in a cell, growing the sheet when needed
func (w *Workbook) SetFormula(ctx context.Context, sheet string, row, col int, formula string) error {
	return w.setCell(ctx, sheet, row, col,
		`INSERT INTO cells (sheet, row_no, col_no, formula) VALUES (?, ?, ?, ?)
		 ON CONFLICT (sheet, row_no, col_no) DO UPDATE SET formula = excluded.formula`, formula)
}

func (w *Workbook) setCell(ctx context.Context, sheet string, row, col int, query, text string) error {
	if row < 1 || col < 1 {
		return fmt.Errorf("invalid cell %d,%d", row, col)
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE sheets SET next_row = MAX(next_row, ?) WHERE name = ?`, row+1, sheet)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNoSheet, sheet)
	}

	if _, err := tx.ExecContext(ctx, query, sheet, row, col, text); err != nil {
		return fmt.Errorf("failed to write %s row %d col %d: %w", sheet, row, col, err)
	}
	return tx.Commit()
}

// Formulas returns every cell of the sheet with formula text, row by row
func (w *Workbook) Formulas(ctx context.Context, sheet string) ([]models.FormulaCell, error) {
	rows, err := w.db.QueryContext(ctx,
		`SELECT row_no, col_no, formula FROM cells
		 WHERE sheet = ? AND formula != ''
		 ORDER BY row_no, col_no`, sheet)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.FormulaCell
	for rows.Next() {
		var c models.FormulaCell
		if err := rows.Scan(&c.Row, &c.Col, &c.Formula); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ImportCSV replaces the sheet's content with the records read from r.
// The first record becomes the header row.
func (w *Workbook) ImportCSV(ctx context.Context, sheet string, r io.Reader) (int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return 0, fmt.Errorf("failed to read csv: %w", err)
	}

	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM cells WHERE sheet = ?`, sheet); err != nil {
		return 0, err
	}
	// keep the existing sheets row so the sheet keeps its position
	if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO sheets (name, next_row) VALUES (?, 1)`, sheet); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sheets SET next_row = 1 WHERE name = ?`, sheet); err != nil {
		return 0, err
	}
	for _, record := range records {
		if _, err := appendRow(ctx, tx, sheet, record); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}

	imported := max(len(records)-1, 0)
	w.log.Info().Str("sheet", sheet).Int("rows", imported).Msg("Sheet imported")
	return imported, nil
}

// Sheet binds workbook operations to one sheet name
type Sheet struct {
	wb   *Workbook
	name string
}

func (s *Sheet) Name() string { return s.name }

// Header returns row 1
func (s *Sheet) Header(ctx context.Context) ([]string, error) {
	last, err := s.wb.LastRow(ctx, s.name)
	if err != nil {
		return nil, err
	}
	if last < 1 {
		return nil, nil
	}
	return s.wb.Row(ctx, s.name, 1)
}

func (s *Sheet) LastRow(ctx context.Context) (int, error) {
	return s.wb.LastRow(ctx, s.name)
}

func (s *Sheet) Row(ctx context.Context, row int) ([]string, error) {
	return s.wb.Row(ctx, s.name, row)
}

// DataRows returns every row below the header
func (s *Sheet) DataRows(ctx context.Context) ([][]string, error) {
	last, err := s.wb.LastRow(ctx, s.name)
	if err != nil {
		return nil, err
	}
	return s.wb.Rows(ctx, s.name, 2, last)
}

func (s *Sheet) FindInColumn(ctx context.Context, col int, value string) (int, error) {
	return s.wb.FindInColumn(ctx, s.name, col, value)
}

func (s *Sheet) AppendRow(ctx context.Context, values []string) (int, error) {
	return s.wb.AppendRow(ctx, s.name, values)
}
