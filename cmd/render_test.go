package cmd

import (
	"bytes"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/gentyr/gentyr-sub005/internal/trajectory"
	"github.com/stretchr/testify/assert"
)

func TestSparkline(t *testing.T) {
	assert.Equal(t, "", sparkline(nil, 10))
	assert.Equal(t, " ▄█", sparkline([]float64{0, 50, 100}, 10))
	assert.Equal(t, "█", sparkline([]float64{150}, 10))

	long := make([]float64, 100)
	for i := range long {
		long[i] = float64(i)
	}
	s := sparkline(long, 20)
	assert.Equal(t, 20, utf8.RuneCountInString(s))
	first, _ := utf8.DecodeRuneInString(s)
	assert.Equal(t, ' ', first)
}

func TestMiniBar(t *testing.T) {
	assert.Equal(t, "█████░░░░░", miniBar(50, 10))
	assert.Equal(t, "░░░░░░░░░░", miniBar(-5, 10))
	assert.Equal(t, "██████████", miniBar(120, 10))
}

func TestFormatters(t *testing.T) {
	v := 42.25
	assert.Equal(t, "42.2%", fmtPct(&v))
	assert.Equal(t, "n/a", fmtPct(nil))

	rate := -1.5
	assert.Equal(t, "-1.50%/h", fmtRate(&rate, "h"))
	assert.Equal(t, "n/a", fmtRate(nil, "day"))
	assert.Equal(t, "n/a", fmtReset(nil, time.Now()))
}

func TestPrintTrajectory_NoData(t *testing.T) {
	var buf bytes.Buffer
	printTrajectory(&buf, trajectory.Empty(), time.Now())
	assert.Contains(t, buf.String(), "No usage snapshots")
}

func TestPrintTrajectory(t *testing.T) {
	trend := 2.0
	traj := &trajectory.Trajectory{
		HasData: true,
		Snapshots: []trajectory.Point{
			{Timestamp: time.Now().Add(-time.Hour), ShortWindowPct: 10, LongWindowPct: 40},
			{Timestamp: time.Now(), ShortWindowPct: 12, LongWindowPct: 41},
		},
		ShortWindowTrendPerHour: &trend,
	}

	var buf bytes.Buffer
	printTrajectory(&buf, traj, time.Now())

	out := buf.String()
	assert.Contains(t, out, " 12.0%")
	assert.Contains(t, out, "+2.00%/h")
	assert.Contains(t, out, "2 snapshots")
}

func TestPrintChart(t *testing.T) {
	var buf bytes.Buffer
	printChart(&buf, trajectory.Series{}, 40)
	assert.Contains(t, buf.String(), "Need at least 2")

	buf.Reset()
	now := time.Now()
	printChart(&buf, trajectory.Series{
		ShortWindow: []float64{0, 100},
		LongWindow:  []float64{50, 50},
		Timestamps:  []time.Time{now.Add(-time.Hour), now},
	}, 40)
	assert.Contains(t, buf.String(), " █ 100.0%")
	assert.Contains(t, buf.String(), "(2 points)")
}
