// Package dive defines the core records of a freediving session — raw
// depth/heart-rate samples, lap summaries, and the per-dive segments the
// analysis pipeline operates on — plus the ingester that splits a continuous
// activity stream into those segments.
package dive

import "time"

// Sample is a single point of the activity time series. Offsets are seconds
// from the start of the containing window (activity or dive). HeartRate is
// nil when the watch dropped the reading for that second.
type Sample struct {
	TimeOffset float64 `json:"time_offset"`
	Depth      float64 `json:"depth"`
	HeartRate  *int    `json:"hr,omitempty"`
}

// Series is a parsed activity metric stream. HasDepth reports whether the
// source activity carried a depth channel at all; a series without one
// cannot be segmented into dives.
type Series struct {
	Samples      []Sample
	HasDepth     bool
	HasHeartRate bool
}

// LapBoundary is the per-dive summary the acquisition side supplies, one per
// dive in session order. Durations are trusted as ground truth when slicing
// the sample stream.
type LapBoundary struct {
	StartTime       time.Time `json:"start_time"`
	Duration        float64   `json:"duration"`         // seconds
	MaxDepth        float64   `json:"max_depth"`        // metres
	AvgDepth        float64   `json:"avg_depth"`        // metres
	BottomTime      float64   `json:"bottom_time"`      // seconds
	SurfaceInterval float64   `json:"surface_interval"` // seconds
	AvgHR           *float64  `json:"avg_hr,omitempty"`
	MaxHR           *float64  `json:"max_hr,omitempty"`
}

// Segment is one dive cut out of the session stream. Samples are re-based so
// the first possible offset is 0 at the dive start, and every sample
// satisfies 0 <= TimeOffset < Lap.Duration. A segment with no samples is
// valid; it keeps dive numbering aligned with the lap count.
type Segment struct {
	DiveNumber int `json:"dive_number"` // 1-based within the session
	Lap        LapBoundary
	Samples    []Sample
}

// Discipline labels the propulsion style of a dive.
type Discipline string

// Disciplines, in scoring enumeration order. The order is load-bearing:
// classifier ties resolve to the first hypothesis reaching the max score.
const (
	DisciplineFIM     Discipline = "FIM"
	DisciplineCWT     Discipline = "CWT"
	DisciplineCNF     Discipline = "CNF"
	DisciplineUnknown Discipline = "unknown"
)

// Disciplines enumerates the known disciplines in tie-break order.
var Disciplines = []Discipline{DisciplineFIM, DisciplineCWT, DisciplineCNF}

// LungVolume labels the lung-fill state at dive start.
type LungVolume string

// Lung volumes, in scoring enumeration order.
const (
	LungFull    LungVolume = "full"
	LungFRC     LungVolume = "frc"
	LungExhale  LungVolume = "exhale"
	LungUnknown LungVolume = "unknown"
)

// LungVolumes enumerates the known lung-fill states in tie-break order.
var LungVolumes = []LungVolume{LungFull, LungFRC, LungExhale}

// ParseDiscipline maps a stored label to a Discipline, defaulting to unknown.
func ParseDiscipline(s string) Discipline {
	switch Discipline(s) {
	case DisciplineFIM, DisciplineCWT, DisciplineCNF:
		return Discipline(s)
	default:
		return DisciplineUnknown
	}
}

// ParseLungVolume maps a stored label to a LungVolume, defaulting to unknown.
func ParseLungVolume(s string) LungVolume {
	switch LungVolume(s) {
	case LungFull, LungFRC, LungExhale:
		return LungVolume(s)
	default:
		return LungUnknown
	}
}
