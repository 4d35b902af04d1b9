package garmin

import (
	"math"
	"strings"
	"time"

	"github.com/freedive-data/apnea.report/internal/dive"
)

// timestampLayouts covers the formats Connect emits for lap start times,
// e.g. "2026-02-24T04:37:44.0".
var timestampLayouts = []string{
	"2006-01-02T15:04:05.0",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

func parseTimestamp(s string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// LapBoundaries converts the wire laps to the segmenter's input form,
// preserving session order.
func (s Splits) LapBoundaries() []dive.LapBoundary {
	laps := make([]dive.LapBoundary, 0, len(s.LapDTOs))
	for _, lap := range s.LapDTOs {
		laps = append(laps, dive.LapBoundary{
			StartTime:       parseTimestamp(lap.StartTimeGMT),
			Duration:        lap.Duration,
			MaxDepth:        lap.MaxDepth,
			AvgDepth:        lap.AverageDepth,
			BottomTime:      lap.BottomTime,
			SurfaceInterval: lap.SurfaceInterval,
			AvgHR:           lap.AverageHR,
			MaxHR:           lap.MaxHR,
		})
	}
	return laps
}

// Series flattens the detail metric matrix into the depth/HR sample stream.
// Channels are located by descriptor key, not position: the watch model
// decides column order. Returns dive.ErrMissingDepthChannel when the
// activity has no direct depth channel (it is not a diving activity, or the
// watch did not record depth).
//
// Samples are assumed to be 1 Hz; rows with a null depth reading are
// dropped without advancing the clock, matching how Connect emits pauses.
func (d Details) Series() (dive.Series, error) {
	depthIdx, hrIdx := -1, -1
	for _, desc := range d.MetricDescriptors {
		key := strings.ToLower(desc.Key)
		switch {
		case strings.Contains(key, "depth") && strings.Contains(key, "direct"):
			depthIdx = desc.MetricsIndex
		case strings.Contains(key, "heart") && strings.Contains(key, "direct"):
			hrIdx = desc.MetricsIndex
		}
	}
	if depthIdx < 0 {
		return dive.Series{}, dive.ErrMissingDepthChannel
	}

	series := dive.Series{HasDepth: true, HasHeartRate: hrIdx >= 0}
	offset := 0.0
	for _, row := range d.ActivityDetailMetrics {
		if depthIdx >= len(row.Metrics) || row.Metrics[depthIdx] == nil {
			continue
		}
		sample := dive.Sample{
			TimeOffset: offset,
			Depth:      *row.Metrics[depthIdx],
		}
		if hrIdx >= 0 && hrIdx < len(row.Metrics) && row.Metrics[hrIdx] != nil {
			hr := int(math.Round(*row.Metrics[hrIdx]))
			sample.HeartRate = &hr
		}
		series.Samples = append(series.Samples, sample)
		offset++
	}
	return series, nil
}
