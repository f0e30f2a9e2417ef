// Package directory finds attendees in the directory sheet by identifier or
// phone number.
package directory

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"checkin-desk/internal/models"
)

// Sheet is the read side of the directory sheet
type Sheet interface {
	Header(ctx context.Context) ([]string, error)
	FindInColumn(ctx context.Context, col int, value string) (int, error)
	Row(ctx context.Context, row int) ([]string, error)
}

type Lookup struct {
	sheet       Sheet
	idColumn    string
	phoneColumn string
}

// NewLookup searches sheet by the named identifier column first, then the
// named phone column
func NewLookup(sheet Sheet, idColumn, phoneColumn string) *Lookup {
	return &Lookup{sheet: sheet, idColumn: idColumn, phoneColumn: phoneColumn}
}

// Find returns the first row whose identifier or phone cell equals query
// exactly. A miss is reported with ok == false and a nil error.
func (l *Lookup) Find(ctx context.Context, query string) (models.Row, bool, error) {
	if query == "" {
		return models.Row{}, false, nil
	}

	header, err := l.sheet.Header(ctx)
	if err != nil {
		return models.Row{}, false, fmt.Errorf("failed to read header: %w", err)
	}

	// 1-based column positions, skipping columns the header lacks
	columns := lo.FilterMap([]string{l.idColumn, l.phoneColumn}, func(name string, _ int) (int, bool) {
		idx := lo.IndexOf(header, name)
		return idx + 1, idx >= 0
	})

	for _, col := range columns {
		row, err := l.sheet.FindInColumn(ctx, col, query)
		if err != nil {
			return models.Row{}, false, fmt.Errorf("failed to search column %d: %w", col, err)
		}
		if row == 0 {
			continue
		}

		values, err := l.sheet.Row(ctx, row)
		if err != nil {
			return models.Row{}, false, fmt.Errorf("failed to read row %d: %w", row, err)
		}
		return models.NewRow(header, values), true, nil
	}

	return models.Row{}, false, nil
}
