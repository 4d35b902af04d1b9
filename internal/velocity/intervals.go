package velocity

import "gonum.org/v1/gonum/stat"

// PeakIntervals returns the mean and standard deviation of the gaps between
// successive peak indices. Samples arrive at one-second cadence, so index
// gaps read directly as seconds. ok is false when fewer than two intervals
// exist.
func PeakIntervals(peaks []int) (mean, stdev float64, ok bool) {
	if len(peaks) < 3 {
		return 0, 0, false
	}
	intervals := make([]float64, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		intervals[i-1] = float64(peaks[i] - peaks[i-1])
	}
	return stat.Mean(intervals, nil), stat.StdDev(intervals, nil), true
}
