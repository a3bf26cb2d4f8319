package models

// SlotKind tells sensor-backed slots apart from fixed display slots.
type SlotKind string

const (
	SlotSensor SlotKind = "real"
	SlotStatic SlotKind = "static"
)

// SlotState is one entry of the parking layout.
type SlotState struct {
	ID       int      `json:"id"`
	Name     string   `json:"name"`
	Occupied bool     `json:"occupied"`
	Reserved bool     `json:"reserved"`
	Type     SlotKind `json:"type"`
}

// TickReport summarizes one reconciliation pass.
type TickReport struct {
	Opened    []string `json:"opened"`
	Closed    []string `json:"closed"`
	Anomalies []string `json:"anomalies"`
	Failed    []string `json:"failed"`
}

// Changed reports whether the pass produced any edge.
func (r TickReport) Changed() bool {
	return len(r.Opened) > 0 || len(r.Closed) > 0
}
