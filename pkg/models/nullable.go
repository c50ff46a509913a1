package models

import (
	"bytes"
	"encoding/json"
)

// Extract decodes raw into T, falling back to def when the value is absent,
// null, or a SQL nullable wrapper with Valid=false. Wrappers look like
// {"String":"x","Valid":true}, as emitted when a sql.NullString is encoded
// without a custom marshaller.
func Extract[T any](raw json.RawMessage, def T) T {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return def
	}

	var v T
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}

	inner, ok := unwrapNullable(raw)
	if !ok {
		return def
	}
	if err := json.Unmarshal(inner, &v); err != nil {
		return def
	}
	return v
}

// ExtractPtr is Extract for nullable targets: absent, null and invalid
// wrappers all yield nil.
func ExtractPtr[T any](raw json.RawMessage) *T {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}

	var v T
	if err := json.Unmarshal(raw, &v); err == nil {
		return &v
	}

	inner, ok := unwrapNullable(raw)
	if !ok {
		return nil
	}
	if err := json.Unmarshal(inner, &v); err != nil {
		return nil
	}
	return &v
}

// Deref returns *v or def when v is nil
func Deref[T any](v *T, def T) T {
	if v == nil {
		return def
	}
	return *v
}

func unwrapNullable(raw json.RawMessage) (json.RawMessage, bool) {
	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, false
	}

	validRaw, ok := wrapper["Valid"]
	if !ok || len(wrapper) != 2 {
		return nil, false
	}

	var valid bool
	if err := json.Unmarshal(validRaw, &valid); err != nil || !valid {
		return nil, false
	}

	for k, v := range wrapper {
		if k != "Valid" {
			return v, true
		}
	}
	return nil, false
}
