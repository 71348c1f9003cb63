// Package trajectory turns the usage snapshot history into a short-window
// and long-window quota series, the earliest upcoming resets, a linear
// trend per window and the projected usage at reset.
package trajectory

import (
	"bytes"
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
)

// ExhaustedPct is the long-window percentage at which a key stops counting
// toward the fleet average, unless every key is exhausted.
const ExhaustedPct = 99.5

type Point struct {
	Timestamp      time.Time `json:"timestamp"`
	ShortWindowPct float64   `json:"shortWindowPct"`
	LongWindowPct  float64   `json:"longWindowPct"`
}

type Trajectory struct {
	HasData                     bool       `json:"hasData"`
	Snapshots                   []Point    `json:"snapshots"`
	ShortWindowResetTime        *time.Time `json:"shortWindowResetTime"`
	LongWindowResetTime         *time.Time `json:"longWindowResetTime"`
	ShortWindowTrendPerHour     *float64   `json:"shortWindowTrendPerHour"`
	LongWindowTrendPerDay       *float64   `json:"longWindowTrendPerDay"`
	ShortWindowProjectedAtReset *float64   `json:"shortWindowProjectedAtReset"`
	LongWindowProjectedAtReset  *float64   `json:"longWindowProjectedAtReset"`
}

// Empty is the canonical "no data" result.
func Empty() *Trajectory {
	return &Trajectory{Snapshots: []Point{}}
}

type Reader struct {
	path   string
	logger zerolog.Logger
}

type Option func(*Reader)

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Reader) {
		r.logger = logger
	}
}

func NewReader(path string, opts ...Option) *Reader {
	r := &Reader{path: path, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read loads the snapshot file and computes the trajectory. It never fails:
// a missing or malformed file yields Empty().
func (r *Reader) Read() *Trajectory {
	data, err := os.ReadFile(r.path)
	if err != nil {
		r.logger.Debug().Err(err).Str("path", r.path).Msg("snapshot file unavailable")
		return Empty()
	}

	snaps, dropped, ok := decodeSnapshots(data)
	if !ok {
		r.logger.Debug().Str("path", r.path).Msg("snapshot file malformed")
		return Empty()
	}
	if dropped > 0 {
		r.logger.Debug().Int("dropped", dropped).Int("kept", len(snaps)).Msg("skipped unusable snapshots")
	}
	return build(snaps)
}

// Parse computes a trajectory from the raw contents of a snapshot file.
func Parse(data []byte) *Trajectory {
	snaps, _, ok := decodeSnapshots(data)
	if !ok {
		return Empty()
	}
	return build(snaps)
}

// NormalizePct maps a usage value to 0-100. Values up to 1.0 are fractions,
// larger values are already percentages. A percentage of exactly 1 is
// therefore read as 100%.
func NormalizePct(v float64) float64 {
	if v <= 1.0 {
		return v * 100
	}
	return v
}

type rawFile struct {
	Snapshots json.RawMessage `json:"snapshots"`
}

type rawSnapshot struct {
	TS   json.RawMessage `json:"ts"`
	Keys json.RawMessage `json:"keys"`
}

type rawKeyUsage struct {
	ShortWindow *float64   `json:"5h"`
	ShortReset  ResetValue `json:"5h_reset"`
	LongWindow  *float64   `json:"7d"`
	LongReset   ResetValue `json:"7d_reset"`
}

type keyUsage struct {
	id         string
	shortPct   float64
	longPct    float64
	shortReset ResetValue
	longReset  ResetValue
}

type snapshot struct {
	ts   time.Time
	keys []keyUsage
}

// decodeSnapshots returns the usable snapshots in ascending time order and
// how many entries were dropped. ok is false when the file as a whole has
// no usable snapshots array.
func decodeSnapshots(data []byte) (snaps []snapshot, dropped int, ok bool) {
	var file rawFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, 0, false
	}
	if !isJSON(file.Snapshots, '[') {
		return nil, 0, false
	}
	var entries []json.RawMessage
	if err := json.Unmarshal(file.Snapshots, &entries); err != nil || len(entries) == 0 {
		return nil, 0, false
	}

	for _, entry := range entries {
		s, valid := decodeSnapshot(entry)
		if !valid {
			dropped++
			continue
		}
		snaps = append(snaps, s)
	}

	sort.SliceStable(snaps, func(i, j int) bool {
		return snaps[i].ts.Before(snaps[j].ts)
	})
	return snaps, dropped, true
}

func decodeSnapshot(entry json.RawMessage) (snapshot, bool) {
	if !isJSON(entry, '{') {
		return snapshot{}, false
	}
	var raw rawSnapshot
	if err := json.Unmarshal(entry, &raw); err != nil {
		return snapshot{}, false
	}

	ts, ok := decodeNumber(raw.TS)
	if !ok {
		return snapshot{}, false
	}

	if !isJSON(raw.Keys, '{') {
		return snapshot{}, false
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw.Keys, &keys); err != nil {
		return snapshot{}, false
	}

	s := snapshot{ts: time.UnixMilli(int64(ts)).UTC()}
	for id, value := range keys {
		if !isJSON(value, '{') {
			continue
		}
		var usage rawKeyUsage
		if err := json.Unmarshal(value, &usage); err != nil {
			continue
		}
		s.keys = append(s.keys, keyUsage{
			id:         id,
			shortPct:   NormalizePct(deref(usage.ShortWindow)),
			longPct:    NormalizePct(deref(usage.LongWindow)),
			shortReset: usage.ShortReset,
			longReset:  usage.LongReset,
		})
	}
	if len(s.keys) == 0 {
		return snapshot{}, false
	}

	// Fixed summation order keeps repeated reads bit-identical.
	sort.Slice(s.keys, func(i, j int) bool {
		return s.keys[i].id < s.keys[j].id
	})
	return s, true
}

func (s snapshot) point() Point {
	active := make([]keyUsage, 0, len(s.keys))
	for _, k := range s.keys {
		if k.longPct < ExhaustedPct {
			active = append(active, k)
		}
	}
	if len(active) == 0 {
		active = s.keys
	}

	var short, long float64
	for _, k := range active {
		short += k.shortPct
		long += k.longPct
	}
	n := float64(len(active))
	return Point{
		Timestamp:      s.ts,
		ShortWindowPct: short / n,
		LongWindowPct:  long / n,
	}
}

func build(snaps []snapshot) *Trajectory {
	if len(snaps) == 0 {
		return Empty()
	}

	t := &Trajectory{
		HasData:   true,
		Snapshots: make([]Point, 0, len(snaps)),
	}
	for _, s := range snaps {
		t.Snapshots = append(t.Snapshots, s.point())
	}

	t.ShortWindowResetTime = earliestReset(snaps, func(k keyUsage) ResetValue { return k.shortReset })
	t.LongWindowResetTime = earliestReset(snaps, func(k keyUsage) ResetValue { return k.longReset })

	if fit, ok := fitLine(t.Snapshots, func(p Point) float64 { return p.ShortWindowPct }); ok {
		t.ShortWindowTrendPerHour = ptr(fit.slope)
		if t.ShortWindowResetTime != nil {
			t.ShortWindowProjectedAtReset = ptr(clampPct(fit.at(*t.ShortWindowResetTime)))
		}
	}
	if fit, ok := fitLine(t.Snapshots, func(p Point) float64 { return p.LongWindowPct }); ok {
		t.LongWindowTrendPerDay = ptr(fit.slope * 24)
		if t.LongWindowResetTime != nil {
			t.LongWindowProjectedAtReset = ptr(clampPct(fit.at(*t.LongWindowResetTime)))
		}
	}
	return t
}

// earliestReset finds the newest snapshot in which any key reports a reset
// for the window and returns the earliest of those resets.
func earliestReset(snaps []snapshot, pick func(keyUsage) ResetValue) *time.Time {
	for i := len(snaps) - 1; i >= 0; i-- {
		var earliest time.Time
		found := false
		for _, k := range snaps[i].keys {
			rv := pick(k)
			if !rv.Valid() {
				continue
			}
			if !found || rv.Time.Before(earliest) {
				earliest = rv.Time
				found = true
			}
		}
		if found {
			return &earliest
		}
	}
	return nil
}

func isJSON(raw json.RawMessage, open byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == open
}

func decodeNumber(raw json.RawMessage) (float64, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	return n, true
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func ptr[T any](v T) *T {
	return &v
}
