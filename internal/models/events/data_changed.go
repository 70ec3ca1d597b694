package events

import (
	"time"
)

const TypeDataChanged = "datachanged"

// DataChanged tells subscribers that the ledger changed in bulk and every
// collection should be fetched again. It carries no ledger data.
type DataChanged struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurredAt"`
}

func NewDataChanged(at time.Time) DataChanged {
	return DataChanged{Type: TypeDataChanged, OccurredAt: at}
}

func (e DataChanged) EventType() string { return e.Type }
