package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Format selects a schema serialization.
type Format string

const (
	// FormatNameJSON is the structured form, one object keyed by table.
	FormatNameJSON Format = "json"
	// FormatNameTOON is the compact tabular form used by default in prompts.
	FormatNameTOON Format = "toon"
)

// ParseFormat maps a user-supplied name to a Format.
func ParseFormat(name string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(name))) {
	case FormatNameJSON:
		return FormatNameJSON, nil
	case FormatNameTOON, "":
		return FormatNameTOON, nil
	default:
		return "", fmt.Errorf("unknown schema format %q (must be json or toon)", name)
	}
}

// Format serializes d in the requested format.
func (d Descriptor) Format(f Format) (string, error) {
	switch f {
	case FormatNameJSON:
		return FormatJSON(d)
	case FormatNameTOON:
		return FormatTOON(d), nil
	default:
		return "", fmt.Errorf("unknown schema format %q", f)
	}
}

// FormatJSON renders the descriptor as indented JSON.
func FormatJSON(d Descriptor) (string, error) {
	out, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}
	return string(out), nil
}
