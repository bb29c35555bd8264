// Package schema projects business-store metadata into the compact schema
// text embedded in SQL generation prompts.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Column describes one column of a table in ordinal order.
type Column struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Nullable    bool   `json:"nullable"`
	MaxLength   *int   `json:"max_length"`
	Description string `json:"description"`
}

// Table is a named, ordered list of columns.
type Table struct {
	Name    string
	Columns []Column
}

// Descriptor is the projected schema. Tables keep discovery order so every
// serialization of the same descriptor is byte-identical.
type Descriptor struct {
	Tables []Table
}

// IsEmpty reports whether the descriptor has no tables to offer a prompt.
func (d Descriptor) IsEmpty() bool {
	return len(d.Tables) == 0
}

// TableNames returns table names in descriptor order.
func (d Descriptor) TableNames() []string {
	names := make([]string, len(d.Tables))
	for i, t := range d.Tables {
		names[i] = t.Name
	}
	return names
}

// MarshalJSON encodes the descriptor as {"TABLE": [columns...]} with keys in
// table order rather than sorted.
func (d Descriptor) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, t := range d.Tables {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(t.Name)
		if err != nil {
			return nil, err
		}
		columns := t.Columns
		if columns == nil {
			columns = []Column{}
		}
		value, err := json.Marshal(columns)
		if err != nil {
			return nil, fmt.Errorf("marshal table %s: %w", t.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes the object form produced by MarshalJSON, keeping
// the key order of the input.
func (d *Descriptor) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("schema descriptor must be a JSON object")
	}

	d.Tables = nil
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		var columns []Column
		if err := dec.Decode(&columns); err != nil {
			return fmt.Errorf("decode table %s: %w", name, err)
		}
		d.Tables = append(d.Tables, Table{Name: name, Columns: columns})
	}
	_, err = dec.Token()
	return err
}
