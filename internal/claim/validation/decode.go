package validation

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"
)

var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	DateLayout,
}

// timestampFields are decoded into time.Time and accept the layouts above.
var timestampFields = map[string]struct{}{
	"on_hold_until": {},
	"delivered_at":  {},
}

// Decode copies fields into dst one key at a time so a malformed value is
// reported against its own field. Keys dst does not know are ignored.
func Decode(fields map[string]json.RawMessage, dst any) error {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []FieldError
	for _, name := range names {
		raw := fields[name]
		raw = bytes.TrimSpace(raw)
		if len(raw) == 0 {
			continue
		}
		if _, ok := timestampFields[name]; ok {
			normalized, valid := normalizeTimestamp(raw)
			if !valid {
				out = append(out, FieldError{Field: name, Code: CodeInvalidDate, Message: name + " is not a valid date"})
				continue
			}
			raw = normalized
		}
		doc, err := json.Marshal(map[string]json.RawMessage{name: raw})
		if err != nil {
			return err
		}
		if err := json.Unmarshal(doc, dst); err != nil {
			out = append(out, decodeError(name, err))
		}
	}
	if len(out) > 0 {
		return &Errors{Fields: out}
	}
	return nil
}

func decodeError(name string, err error) FieldError {
	field := name
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		field = typeErr.Field
	}
	return FieldError{Field: field, Code: CodeInvalid, Message: field + " has an invalid type"}
}

func normalizeTimestamp(raw json.RawMessage) (json.RawMessage, bool) {
	if string(raw) == "null" {
		return raw, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return json.RawMessage("null"), true
	}
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		out, err := json.Marshal(t.UTC())
		if err != nil {
			return nil, false
		}
		return out, true
	}
	return nil, false
}
