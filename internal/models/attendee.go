package models

import "time"

// Field is one named cell of a directory row
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Row represents one attendee in the directory, in column order
type Row struct {
	Fields []Field `json:"fields"`
}

// NewRow pairs header names with cell values. Missing values are empty.
func NewRow(header, values []string) Row {
	fields := make([]Field, 0, len(header))
	for i, name := range header {
		var value string
		if i < len(values) {
			value = values[i]
		}
		fields = append(fields, Field{Name: name, Value: value})
	}
	return Row{Fields: fields}
}

// Get returns the value of the named field
func (r Row) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

// Map returns the row as a name to value mapping; for repeated names the
// last column wins
func (r Row) Map() map[string]string {
	m := make(map[string]string, len(r.Fields))
	for _, f := range r.Fields {
		m[f.Name] = f.Value
	}
	return m
}

// CheckIn is one entry of the append-only check-in log
type CheckIn struct {
	Row        int       `json:"row"`
	Identifier string    `json:"identifier"`
	At         time.Time `json:"at"`
}

// Result is what check-in and template operations report to callers
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`

	State    State `json:"-"`
	Attendee *Row  `json:"-"`
}

// State is a step of the check-in workflow
type State string

const (
	StateLookingUp State = "looking_up"
	StateNotFound  State = "not_found"
	StateLocking   State = "locking"
	StateAppending State = "appending"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// FormulaCell is a cell holding formula text
type FormulaCell struct {
	Row     int    `json:"row"`
	Col     int    `json:"col"`
	Formula string `json:"formula"`
}
