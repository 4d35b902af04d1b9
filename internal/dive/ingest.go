package dive

import "errors"

// ErrMissingDepthChannel is returned when an activity stream has no depth
// channel. Ingestion aborts for that activity; no partial segments are
// emitted.
var ErrMissingDepthChannel = errors.New("activity stream has no depth channel")

// Split cuts a continuous activity series into one Segment per lap boundary.
//
// Boundaries are applied in session order with a running cumulative-time
// cursor: a sample belongs to lap i when its offset falls in
// [cursor, cursor+duration). Lap durations are trusted as ground truth — no
// gap detection or overlap correction is attempted. A boundary that matches
// zero samples still yields a Segment (with an empty sample slice) so the
// segment count always equals the lap count.
func Split(series Series, laps []LapBoundary) ([]Segment, error) {
	if !series.HasDepth {
		return nil, ErrMissingDepthChannel
	}

	segments := make([]Segment, 0, len(laps))
	cursor := 0.0
	next := 0 // samples are ordered, so each is visited once

	for i, lap := range laps {
		end := cursor + lap.Duration

		var samples []Sample
		for next < len(series.Samples) {
			s := series.Samples[next]
			if s.TimeOffset < cursor {
				// Sample precedes this lap's window (e.g. surface noise
				// before the first lap). Drop it and move on.
				next++
				continue
			}
			if s.TimeOffset >= end {
				break
			}
			s.TimeOffset -= cursor
			samples = append(samples, s)
			next++
		}

		segments = append(segments, Segment{
			DiveNumber: i + 1,
			Lap:        lap,
			Samples:    samples,
		})
		cursor = end
	}

	return segments, nil
}
