package types

import "encoding/json"

type OpenDetailRequest struct {
	MovementID int64           `json:"movement_id"`
	Kind       string          `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
}

// UpdateDetailRequest replaces a record's payload. Kind is the kind the
// caller expects the record to have.
type UpdateDetailRequest struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

type Detail struct {
	ID         int64           `json:"id"`
	MovementID int64           `json:"movement_id"`
	DNI        string          `json:"dni"`
	Kind       string          `json:"kind"`
	Open       bool            `json:"open"`
	Payload    json.RawMessage `json:"payload"`
	EntryAt    string          `json:"entry_at,omitempty"`
	ExitAt     string          `json:"exit_at,omitempty"`
	CreatedAt  string          `json:"created_at"`
	CreatedBy  string          `json:"created_by,omitempty"`
	UpdatedAt  string          `json:"updated_at"`
	UpdatedBy  string          `json:"updated_by,omitempty"`
}

type DetailList struct {
	DNI     string   `json:"dni"`
	Details []Detail `json:"details"`
}
