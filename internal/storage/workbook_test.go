package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func openWorkbook(t *testing.T) *Workbook {
	t.Helper()
	wb, err := Open(filepath.Join(t.TempDir(), "workbook.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = wb.Close() })
	return wb
}

func TestEnsureSheetWritesHeaderOnce(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	wb := openWorkbook(t)

	req.NoError(wb.EnsureSheet(ctx, "checkins", []string{"identifier", "timestamp"}))
	req.NoError(wb.EnsureSheet(ctx, "checkins", []string{"other", "header"}))

	sheet := wb.Sheet("checkins")
	header, err := sheet.Header(ctx)
	req.NoError(err)
	req.Equal([]string{"identifier", "timestamp"}, header)

	last, err := sheet.LastRow(ctx)
	req.NoError(err)
	req.Equal(1, last)

	names, err := wb.Sheets(ctx)
	req.NoError(err)
	req.Equal([]string{"checkins"}, names)
}

func TestAppendRowAdvancesCursor(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	wb := openWorkbook(t)
	req.NoError(wb.EnsureSheet(ctx, "checkins", []string{"identifier", "timestamp"}))
	sheet := wb.Sheet("checkins")

	row, err := sheet.AppendRow(ctx, []string{"S1", "2026-01-01T09:00:00Z"})
	req.NoError(err)
	req.Equal(2, row)

	row, err = sheet.AppendRow(ctx, []string{"S2", "2026-01-01T09:01:00Z"})
	req.NoError(err)
	req.Equal(3, row)

	rows, err := sheet.DataRows(ctx)
	req.NoError(err)
	req.Equal([][]string{
		{"S1", "2026-01-01T09:00:00Z"},
		{"S2", "2026-01-01T09:01:00Z"},
	}, rows)
}

func TestAppendRowUnknownSheet(t *testing.T) {
	req := require.New(t)
	wb := openWorkbook(t)

	_, err := wb.AppendRow(context.Background(), "missing", []string{"x"})
	req.True(errors.Is(err, ErrNoSheet))
}

func TestAppendNeverReusesRowAfterWritePastEnd(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	wb := openWorkbook(t)
	req.NoError(wb.EnsureSheet(ctx, "checkins", []string{"identifier", "timestamp"}))

	req.NoError(wb.SetFormula(ctx, "checkins", 5, 1, "=NOW()"))

	row, err := wb.AppendRow(ctx, "checkins", []string{"S1", "now"})
	req.NoError(err)
	req.Equal(6, row)
}

func TestConcurrentAppendsGetDistinctRows(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	wb := openWorkbook(t)
	req.NoError(wb.EnsureSheet(ctx, "checkins", []string{"identifier", "timestamp"}))

	const n = 25
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[int]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			row, err := wb.AppendRow(ctx, "checkins", []string{fmt.Sprintf("S%d", i), "now"})
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			seen[row] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	req.Len(seen, n)
	last, err := wb.LastRow(ctx, "checkins")
	req.NoError(err)
	req.Equal(n+1, last)
}

func TestFindInColumn(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	wb := openWorkbook(t)

	n, err := wb.ImportCSV(ctx, "directory", strings.NewReader(
		"id,phone,name\nS1,0900,Ann\nS2,0911,Bob\nS3,0911,Cat\n"))
	req.NoError(err)
	req.Equal(3, n)

	row, err := wb.FindInColumn(ctx, "directory", 2, "0911")
	req.NoError(err)
	req.Equal(3, row)

	row, err = wb.FindInColumn(ctx, "directory", 1, "id")
	req.NoError(err)
	req.Zero(row, "header row is not searched")

	row, err = wb.FindInColumn(ctx, "directory", 1, "s1")
	req.NoError(err)
	req.Zero(row)
}

func TestImportCSVReplacesSheet(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	wb := openWorkbook(t)

	_, err := wb.ImportCSV(ctx, "directory", strings.NewReader("id,name\nS1,Ann\nS2,Bob\n"))
	req.NoError(err)
	_, err = wb.ImportCSV(ctx, "directory", strings.NewReader("id,name,serial\nS9,Zed,1\n"))
	req.NoError(err)

	sheet := wb.Sheet("directory")
	rows, err := sheet.DataRows(ctx)
	req.NoError(err)
	req.Equal([][]string{{"S9", "Zed", "1"}}, rows)
}

func TestImportCSVKeepsSheetOrder(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	wb := openWorkbook(t)

	req.NoError(wb.EnsureSheet(ctx, "first", []string{"a"}))
	_, err := wb.ImportCSV(ctx, "directory", strings.NewReader("id,name\nS1,Ann\n"))
	req.NoError(err)
	req.NoError(wb.EnsureSheet(ctx, "last", []string{"b"}))

	_, err = wb.ImportCSV(ctx, "directory", strings.NewReader("id,name\nS2,Bob\n"))
	req.NoError(err)

	names, err := wb.Sheets(ctx)
	req.NoError(err)
	req.Equal([]string{"first", "directory", "last"}, names)

	last, err := wb.Sheet("directory").LastRow(ctx)
	req.NoError(err)
	req.Equal(2, last)
}

func TestFormulas(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	wb := openWorkbook(t)
	req.NoError(wb.EnsureSheet(ctx, "summary", []string{"total"}))

	req.NoError(wb.SetFormula(ctx, "summary", 2, 1, "=COUNTA(checkins!A:A)-1"))
	req.NoError(wb.SetFormula(ctx, "summary", 1, 3, "=NOW()"))

	cells, err := wb.Formulas(ctx, "summary")
	req.NoError(err)
	req.Len(cells, 2)
	req.Equal(1, cells[0].Row)
	req.Equal(3, cells[0].Col)
	req.Equal("=COUNTA(checkins!A:A)-1", cells[1].Formula)

	last, err := wb.LastRow(ctx, "summary")
	req.NoError(err)
	req.Equal(2, last)

	err = wb.SetFormula(ctx, "missing", 1, 1, "=1")
	req.True(errors.Is(err, ErrNoSheet))
}
