package domain

import (
	"encoding/json"
	"fmt"
)

// Details snapshot kinds.
const (
	DetailsKindCalculator  = "calculator_snapshot"
	DetailsKindReservation = "reservation_details"
	DetailsKindContract    = "contract_details"
)

// DetailsVersion is the current envelope version written on new snapshots.
const DetailsVersion = 1

// DetailsEnvelope is the versioned tagged carrier for free-form snapshots
// (calculator output, amendment history, contract settings). It is persisted
// as an opaque JSONB blob and decoded into a concrete variant at every read.
type DetailsEnvelope struct {
	Version int             `json:"version"`
	Kind    string          `json:"kind"`
	Data    json.RawMessage `json:"data"`
}

// NewDetails wraps v into a current-version envelope of the given kind.
func NewDetails(kind string, v interface{}) (DetailsEnvelope, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return DetailsEnvelope{}, fmt.Errorf("encode %s details: %w", kind, err)
	}
	return DetailsEnvelope{Version: DetailsVersion, Kind: kind, Data: data}, nil
}

// Decode unmarshals the payload into v after checking the envelope kind.
func (d DetailsEnvelope) Decode(kind string, v interface{}) error {
	if d.Kind != kind {
		return fmt.Errorf("details kind %q, want %q", d.Kind, kind)
	}
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("decode %s details: %w", kind, err)
	}
	return nil
}

// IsZero reports an empty envelope (no snapshot attached).
func (d DetailsEnvelope) IsZero() bool {
	return d.Kind == "" && len(d.Data) == 0
}
