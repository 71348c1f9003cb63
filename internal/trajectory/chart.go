package trajectory

import "time"

// Series holds the chart data as parallel arrays of equal length.
type Series struct {
	ShortWindow []float64   `json:"shortWindow"`
	LongWindow  []float64   `json:"longWindow"`
	Timestamps  []time.Time `json:"timestamps"`
}

// Recent returns the latest n points in chronological order.
func (t *Trajectory) Recent(n int) []Point {
	if t == nil || n <= 0 || len(t.Snapshots) == 0 {
		return []Point{}
	}
	if n > len(t.Snapshots) {
		n = len(t.Snapshots)
	}
	out := make([]Point, n)
	copy(out, t.Snapshots[len(t.Snapshots)-n:])
	return out
}

// Series splits the latest n points into parallel arrays.
func (t *Trajectory) Series(n int) Series {
	recent := t.Recent(n)
	s := Series{
		ShortWindow: make([]float64, 0, len(recent)),
		LongWindow:  make([]float64, 0, len(recent)),
		Timestamps:  make([]time.Time, 0, len(recent)),
	}
	for _, p := range recent {
		s.ShortWindow = append(s.ShortWindow, p.ShortWindowPct)
		s.LongWindow = append(s.LongWindow, p.LongWindowPct)
		s.Timestamps = append(s.Timestamps, p.Timestamp)
	}
	return s
}
