package types

type ControlPoint struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Kind          string `json:"kind"`
	TrackPresence bool   `json:"track_presence"`
	Priority      int    `json:"priority,omitempty"`
}

type ControlPointList struct {
	ControlPoints []ControlPoint `json:"control_points"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
