package cmd

import (
	"fmt"
	"io"
	"strings"
	"time"
)

var sparkChars = []rune{' ', '▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

func miniBar(pct float64, width int) string {
	filled := int(clamp(pct, 0, 100) / 100 * float64(width))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// sparkline renders percentages on a fixed 0-100 scale, resampled to at
// most width characters.
func sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return ""
	}
	n := min(len(values), width)

	var b strings.Builder
	for i := 0; i < n; i++ {
		idx := i
		if n > 1 {
			idx = i * (len(values) - 1) / (n - 1)
		}
		charIdx := int(clamp(values[idx], 0, 100) / 100 * float64(len(sparkChars)-1))
		b.WriteRune(sparkChars[charIdx])
	}
	return b.String()
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}

func fmtPct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", *v)
}

func fmtRate(v *float64, unit string) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%+.2f%%/%s", *v, unit)
}

func fmtReset(t *time.Time, now time.Time) string {
	if t == nil {
		return "n/a"
	}
	local := t.Local().Format("2006-01-02 15:04")
	if d := t.Sub(now); d > 0 {
		return fmt.Sprintf("%s (in %s)", local, d.Round(time.Minute))
	}
	return local
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n", title)
	fmt.Fprintln(w, "─────────────────────")
}
