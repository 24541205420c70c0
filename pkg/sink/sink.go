// Package sink defines the persistence boundary for completed lap and
// incident records and drives the periodic save cycle.
package sink

import (
	"github.com/mpapenbr/f1log-recorder-go/pkg/model"
)

// Sink persists records of one race weekend. The anchor decides the
// output artifact; implementations switch artifacts when the anchor
// changes between calls.
type Sink interface {
	SaveLaps(anchor model.WeekendAnchor, laps []model.CompletedLapRecord) error
	SaveIncidents(
		anchor model.WeekendAnchor, sessionUID uint64, incidents []model.IncidentRecord,
	) error
	Close() error
}
