package trajectory

import (
	"math"
	"time"
)

const minTrendPoints = 3

// line is a least-squares fit with x measured in hours since origin.
type line struct {
	origin    time.Time
	slope     float64
	intercept float64
}

func (l line) at(t time.Time) float64 {
	return l.intercept + l.slope*t.Sub(l.origin).Hours()
}

func fitLine(points []Point, value func(Point) float64) (line, bool) {
	if len(points) < minTrendPoints {
		return line{}, false
	}

	origin := points[0].Timestamp
	n := float64(len(points))

	var sumX, sumY float64
	for _, p := range points {
		sumX += p.Timestamp.Sub(origin).Hours()
		sumY += value(p)
	}
	meanX := sumX / n
	meanY := sumY / n

	var sxx, sxy float64
	for _, p := range points {
		dx := p.Timestamp.Sub(origin).Hours() - meanX
		sxx += dx * dx
		sxy += dx * (value(p) - meanY)
	}
	if sxx == 0 {
		return line{}, false
	}

	slope := sxy / sxx
	return line{
		origin:    origin,
		slope:     slope,
		intercept: meanY - slope*meanX,
	}, true
}

func clampPct(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
