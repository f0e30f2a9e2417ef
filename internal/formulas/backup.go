// Package formulas snapshots the formula cells of every sheet into the
// property store and replays them later.
package formulas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"checkin-desk/internal/models"
)

var ErrNoBackup = errors.New("no formula backup")

const backupKey = "backup"

type Workbook interface {
	Sheets(ctx context.Context) ([]string, error)
	HasSheet(ctx context.Context, name string) (bool, error)
	Formulas(ctx context.Context, sheet string) ([]models.FormulaCell, error)
	SetFormula(ctx context.Context, sheet string, row, col int, formula string) error
}

type PropertyStore interface {
	Get(key string) (string, bool)
	Set(key, value string) error
}

type sheetFormulas struct {
	SheetName string               `json:"sheetName"`
	Formulas  []models.FormulaCell `json:"formulas"`
}

type Manager struct {
	wb    Workbook
	props PropertyStore
	log   zerolog.Logger
}

func NewManager(wb Workbook, props PropertyStore, logger zerolog.Logger) *Manager {
	return &Manager{
		wb:    wb,
		props: props,
		log:   logger.With().Str("component", "Formulas").Logger(),
	}
}

// Backup stores the formulas of all sheets and returns the saved cells in A1
// notation
func (m *Manager) Backup(ctx context.Context) ([]string, error) {
	names, err := m.wb.Sheets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sheets: %w", err)
	}

	backup := make([]sheetFormulas, 0, len(names))
	var cells []string
	for _, name := range names {
		formulas, err := m.wb.Formulas(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read formulas of %s: %w", name, err)
		}
		if formulas == nil {
			formulas = []models.FormulaCell{}
		}
		backup = append(backup, sheetFormulas{SheetName: name, Formulas: formulas})
		cells = append(cells, cellNames(name, formulas)...)
	}

	data, err := json.Marshal(backup)
	if err != nil {
		return nil, fmt.Errorf("failed to encode backup: %w", err)
	}
	if err := m.props.Set(backupKey, string(data)); err != nil {
		return nil, fmt.Errorf("failed to save backup: %w", err)
	}

	m.log.Info().Int("cells", len(cells)).Msg("Formulas backed up")
	return cells, nil
}

// Restore writes every saved formula back to its cell. Sheets that no longer
// exist are skipped.
func (m *Manager) Restore(ctx context.Context) ([]string, error) {
	raw, ok := m.props.Get(backupKey)
	if !ok || raw == "" {
		return nil, ErrNoBackup
	}

	var backup []sheetFormulas
	if err := json.Unmarshal([]byte(raw), &backup); err != nil {
		return nil, fmt.Errorf("failed to decode backup: %w", err)
	}

	var cells []string
	for _, item := range backup {
		exists, err := m.wb.HasSheet(ctx, item.SheetName)
		if err != nil {
			return nil, err
		}
		if !exists {
			m.log.Warn().Str("sheet", item.SheetName).Msg("Sheet missing, skipping restore")
			continue
		}
		for _, f := range item.Formulas {
			if err := m.wb.SetFormula(ctx, item.SheetName, f.Row, f.Col, f.Formula); err != nil {
				return cells, fmt.Errorf("failed to restore %s: %w", CellName(item.SheetName, f.Row, f.Col), err)
			}
		}
		cells = append(cells, cellNames(item.SheetName, item.Formulas)...)
	}

	m.log.Info().Int("cells", len(cells)).Msg("Formulas restored")
	return cells, nil
}

func cellNames(sheet string, formulas []models.FormulaCell) []string {
	return lo.Map(formulas, func(f models.FormulaCell, _ int) string {
		return CellName(sheet, f.Row, f.Col)
	})
}

// CellName formats a cell as Sheet!B3
func CellName(sheet string, row, col int) string {
	return sheet + "!" + ColumnName(col) + strconv.Itoa(row)
}

// ColumnName converts a 1-based column number to letters: 1 is A, 27 is AA
func ColumnName(col int) string {
	var out []byte
	for col > 0 {
		col--
		out = append([]byte{byte('A' + col%26)}, out...)
		col /= 26
	}
	return string(out)
}
