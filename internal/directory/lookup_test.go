package directory

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"checkin-desk/internal/models"
	"checkin-desk/internal/storage"
)

// memSheet keeps the directory in memory, header first
type memSheet struct {
	rows    [][]string
	readErr error
}

func (m *memSheet) Header(context.Context) ([]string, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	if len(m.rows) == 0 {
		return nil, nil
	}
	return m.rows[0], nil
}

func (m *memSheet) FindInColumn(_ context.Context, col int, value string) (int, error) {
	for i := 1; i < len(m.rows); i++ {
		if col-1 < len(m.rows[i]) && m.rows[i][col-1] == value {
			return i + 1, nil
		}
	}
	return 0, nil
}

func (m *memSheet) Row(_ context.Context, row int) ([]string, error) {
	return m.rows[row-1], nil
}

// scan is the full in-memory strategy; Find must agree with it
func scan(rows [][]string, query, idColumn, phoneColumn string) (models.Row, bool) {
	if query == "" || len(rows) == 0 {
		return models.Row{}, false
	}
	header := rows[0]
	for _, name := range []string{idColumn, phoneColumn} {
		col := -1
		for i, h := range header {
			if h == name {
				col = i
				break
			}
		}
		if col < 0 {
			continue
		}
		for _, r := range rows[1:] {
			if col < len(r) && r[col] == query {
				return models.NewRow(header, r), true
			}
		}
	}
	return models.Row{}, false
}

var directoryRows = [][]string{
	{"id", "phone", "name", "serial"},
	{"S1", "0900", "Ann", "7"},
	{"S2", "0911", "Bob", "8"},
	{"0911", "0922", "Cat", "9"},
	{"S4", "S2", "Dan", "10"},
}

func TestFindByIdentifier(t *testing.T) {
	req := require.New(t)
	l := NewLookup(&memSheet{rows: directoryRows}, "id", "phone")

	row, ok, err := l.Find(context.Background(), "S1")
	req.NoError(err)
	req.True(ok)
	req.Equal([]models.Field{
		{Name: "id", Value: "S1"},
		{Name: "phone", Value: "0900"},
		{Name: "name", Value: "Ann"},
		{Name: "serial", Value: "7"},
	}, row.Fields)
}

func TestFindByPhone(t *testing.T) {
	req := require.New(t)
	l := NewLookup(&memSheet{rows: directoryRows}, "id", "phone")

	row, ok, err := l.Find(context.Background(), "0900")
	req.NoError(err)
	req.True(ok)
	name, _ := row.Get("name")
	req.Equal("Ann", name)
}

func TestIdentifierColumnWins(t *testing.T) {
	req := require.New(t)
	l := NewLookup(&memSheet{rows: directoryRows}, "id", "phone")

	// "0911" is Bob's phone and Cat's identifier
	row, ok, err := l.Find(context.Background(), "0911")
	req.NoError(err)
	req.True(ok)
	name, _ := row.Get("name")
	req.Equal("Cat", name)

	// "S2" is Bob's identifier and Dan's phone
	row, ok, err = l.Find(context.Background(), "S2")
	req.NoError(err)
	req.True(ok)
	name, _ = row.Get("name")
	req.Equal("Bob", name)
}

func TestFindMisses(t *testing.T) {
	tests := []struct {
		name  string
		rows  [][]string
		query string
	}{
		{"empty query", directoryRows, ""},
		{"unknown", directoryRows, "S99"},
		{"not exact", directoryRows, "s1"},
		{"partial", directoryRows, "S"},
		{"header value", directoryRows, "id"},
		{"other column", directoryRows, "Ann"},
		{"empty sheet", nil, "S1"},
		{"no searchable columns", [][]string{{"name"}, {"S1"}}, "S1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLookup(&memSheet{rows: tt.rows}, "id", "phone")
			_, ok, err := l.Find(context.Background(), tt.query)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestPhoneOnlyDirectory(t *testing.T) {
	req := require.New(t)
	rows := [][]string{{"name", "phone"}, {"Ann", "0900"}}
	l := NewLookup(&memSheet{rows: rows}, "id", "phone")

	row, ok, err := l.Find(context.Background(), "0900")
	req.NoError(err)
	req.True(ok)
	req.Equal(map[string]string{"name": "Ann", "phone": "0900"}, row.Map())
}

func TestFindPropagatesReadErrors(t *testing.T) {
	req := require.New(t)
	l := NewLookup(&memSheet{readErr: errors.New("disk gone")}, "id", "phone")

	_, _, err := l.Find(context.Background(), "S1")
	req.ErrorContains(err, "disk gone")
}

func TestTargetedSearchMatchesFullScan(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()

	wb, err := storage.Open(filepath.Join(t.TempDir(), "workbook.db"), zerolog.Nop())
	req.NoError(err)
	defer wb.Close()

	var csv strings.Builder
	for _, r := range directoryRows {
		csv.WriteString(strings.Join(r, ",") + "\n")
	}
	_, err = wb.ImportCSV(ctx, "directory", strings.NewReader(csv.String()))
	req.NoError(err)

	l := NewLookup(wb.Sheet("directory"), "id", "phone")
	for _, q := range []string{"S1", "S2", "S4", "0900", "0911", "0922", "Ann", "", "nobody"} {
		want, wantOK := scan(directoryRows, q, "id", "phone")
		got, ok, err := l.Find(ctx, q)
		req.NoError(err)
		req.Equal(wantOK, ok, q)
		req.Equal(want, got, q)
	}
}
