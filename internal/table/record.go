package table

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Field is one named cell of a Record.
type Field struct {
	Name  string
	Value any
}

// Record is a row viewed as ordered name/value pairs.
type Record []Field

// Get returns the value for a field name and whether it exists.
func (r Record) Get(name string) (any, bool) {
	for _, f := range r {
		if f.Name == name {
			return f.Value, true
		}
	}
	return nil, false
}

// String renders the record as `"name": value` pairs separated by commas.
func (r Record) String() string {
	parts := make([]string, len(r))
	for i, f := range r {
		parts[i] = strconv.Quote(f.Name) + ": " + FormatValue(f.Value)
	}
	return strings.Join(parts, ", ")
}

// MarshalJSON encodes the record as a JSON object, keeping field order.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Records returns every row as a Record, in row order.
func (t *Table) Records() []Record {
	out := make([]Record, len(t.rows))
	for i, row := range t.rows {
		rec := make(Record, len(t.columns))
		for j, c := range t.columns {
			rec[j] = Field{Name: c, Value: row[j]}
		}
		out[i] = rec
	}
	return out
}
