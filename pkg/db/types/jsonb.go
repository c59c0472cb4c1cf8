package dbtypes

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB stores a raw JSON document. It is written as text so the same column
// works against Postgres jsonb and sqlite TEXT.
type JSONB json.RawMessage

// NewJSONB marshals v into a JSONB value.
func NewJSONB(v any) (JSONB, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("JSONB: marshal: %w", err)
	}
	return JSONB(raw), nil
}

func (j *JSONB) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*j = nil
		return nil
	case string:
		*j = append((*j)[:0], v...)
		return nil
	case []byte:
		*j = append((*j)[:0], v...)
		return nil
	default:
		return fmt.Errorf("JSONB: unsupported Scan type %T", src)
	}
}

func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	if !json.Valid(j) {
		return nil, fmt.Errorf("JSONB: invalid document")
	}
	return string(j), nil
}

// Decode unmarshals the document into dst.
func (j JSONB) Decode(dst any) error {
	if len(j) == 0 {
		return fmt.Errorf("JSONB: empty document")
	}
	return json.Unmarshal(j, dst)
}

func (j JSONB) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSONB) UnmarshalJSON(data []byte) error {
	*j = append((*j)[:0], data...)
	return nil
}
