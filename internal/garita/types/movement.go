package types

import "encoding/json"

type MovementRequest struct {
	DNI            string         `json:"dni"`
	Name           string         `json:"name,omitempty"`
	Category       string         `json:"category,omitempty"`
	ControlPointID int            `json:"control_point_id"`
	Direction      string         `json:"direction"`
	RequestedAt    string         `json:"requested_at,omitempty"` // optional device timestamp
	Detail         *DetailPayload `json:"detail,omitempty"`
	CloseDetailID  int64          `json:"close_detail_id,omitempty"`
}

// DetailPayload is a record kind plus its kind-specific JSON body.
type DetailPayload struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

type MovementResponse struct {
	OK          bool          `json:"ok"`
	Accepted    bool          `json:"accepted"`
	Movement    *Movement     `json:"movement,omitempty"`
	Closure     *Movement     `json:"implicit_closure,omitempty"`
	InsidePlant bool          `json:"inside_plant"`
	Zone        *ControlPoint `json:"zone,omitempty"`
	Detail      *Detail       `json:"detail,omitempty"`
	Rejection   *Rejection    `json:"rejection,omitempty"`
	ServerTime  string        `json:"server_time"`
}

type Movement struct {
	ID             int64  `json:"id"`
	DNI            string `json:"dni"`
	ControlPointID int    `json:"control_point_id"`
	Direction      string `json:"direction"`
	At             string `json:"at"`
	Synthetic      bool   `json:"synthetic,omitempty"`
	Author         string `json:"author,omitempty"`
}

// Rejection explains why a movement was refused, in terms of the requesting
// person's own state.
type Rejection struct {
	Rule        string        `json:"rule"`
	Message     string        `json:"message"`
	InsidePlant bool          `json:"inside_plant"`
	Zone        *ControlPoint `json:"zone,omitempty"`
	State       string        `json:"state"`
}

type HistoryResponse struct {
	DNI       string     `json:"dni"`
	Movements []Movement `json:"movements"`
}
