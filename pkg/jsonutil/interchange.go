// Package jsonutil converts query values into interchange-safe JSON forms.
package jsonutil

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Interchange converts a native driver value into a form any JSON consumer
// reads the same way: time.Time becomes an RFC 3339 string, decimal.Decimal
// becomes float64 and raw bytes become a string. Other values pass through.
func Interchange(v any) any {
	switch val := v.(type) {
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case *time.Time:
		if val == nil {
			return nil
		}
		return val.Format(time.RFC3339Nano)
	case decimal.Decimal:
		f, _ := val.Float64()
		return f
	case decimal.NullDecimal:
		if !val.Valid {
			return nil
		}
		f, _ := val.Decimal.Float64()
		return f
	case []byte:
		return string(val)
	default:
		return v
	}
}

// InterchangeRows applies Interchange to every value of every row.
// The input rows are not modified.
func InterchangeRows(rows []map[string]any) []map[string]any {
	if rows == nil {
		return nil
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		converted := make(map[string]any, len(row))
		for k, v := range row {
			converted[k] = Interchange(v)
		}
		out[i] = converted
	}
	return out
}

// MarshalRows serializes rows in interchange form.
func MarshalRows(rows []map[string]any) (json.RawMessage, error) {
	data, err := json.Marshal(InterchangeRows(rows))
	if err != nil {
		return nil, fmt.Errorf("marshal rows: %w", err)
	}
	return data, nil
}

// Float64 reports the numeric value of v. It accepts native driver numerics,
// decimals and the json.Number or float64 values produced when stored rows
// are decoded again. Strings, booleans and times are not numeric.
func Float64(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int8:
		return float64(val), true
	case int16:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case uint8:
		return float64(val), true
	case uint16:
		return float64(val), true
	case uint32:
		return float64(val), true
	case uint64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case decimal.Decimal:
		f, _ := val.Float64()
		return f, true
	case json.Number:
		f, err := val.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
