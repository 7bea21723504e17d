package types

type ZoneResponse struct {
	DNI         string        `json:"dni"`
	InsidePlant bool          `json:"inside_plant"`
	Zone        *ControlPoint `json:"zone,omitempty"`
	// StaleZones lists further zones the ledger still shows the person
	// inside, lower in priority than Zone.
	StaleZones []ControlPoint `json:"stale_zones,omitempty"`
	ServerTime string         `json:"server_time"`
}

type Person struct {
	DNI       string `json:"dni"`
	Name      string `json:"name"`
	Category  string `json:"category"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type RenameRequest struct {
	Name string `json:"name"`
}
