package trajectory

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// ResetKind records which JSON form a reset value arrived in.
type ResetKind int

const (
	ResetNone ResetKind = iota
	ResetString
	ResetEpoch
	ResetObject
)

func (k ResetKind) String() string {
	switch k {
	case ResetString:
		return "string"
	case ResetEpoch:
		return "epoch"
	case ResetObject:
		return "object"
	default:
		return "none"
	}
}

// ResetValue is a reset instant that producers have written as an ISO-8601
// string, an epoch number or an object wrapping either of those. Anything
// unparseable decodes to ResetNone rather than failing the enclosing key.
type ResetValue struct {
	Kind ResetKind
	Time time.Time
}

func (v ResetValue) Valid() bool {
	return v.Kind != ResetNone
}

func (v *ResetValue) UnmarshalJSON(b []byte) error {
	*v = parseReset(b, 0)
	return nil
}

// Fields checked, in order, when a reset arrives as an object.
var resetWrapperFields = []string{"at", "ts", "time", "value", "resets_at", "resetsAt"}

const maxResetDepth = 3

var resetLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseReset(b []byte, depth int) ResetValue {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return ResetValue{}
	}

	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return ResetValue{}
		}
		if t, ok := parseResetString(s); ok {
			return ResetValue{Kind: ResetString, Time: t}
		}
	case '{':
		if depth >= maxResetDepth {
			return ResetValue{}
		}
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(b, &obj); err != nil {
			return ResetValue{}
		}
		for _, field := range resetWrapperFields {
			raw, ok := obj[field]
			if !ok {
				continue
			}
			if inner := parseReset(raw, depth+1); inner.Valid() {
				return ResetValue{Kind: ResetObject, Time: inner.Time}
			}
		}
	default:
		var n float64
		if err := json.Unmarshal(b, &n); err != nil {
			return ResetValue{}
		}
		if t, ok := epochToTime(n); ok {
			return ResetValue{Kind: ResetEpoch, Time: t}
		}
	}
	return ResetValue{}
}

func parseResetString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range resetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return epochToTime(n)
	}
	return time.Time{}, false
}

// epochToTime treats values of 1e12 and above as milliseconds and anything
// smaller as seconds.
func epochToTime(n float64) (time.Time, bool) {
	if n <= 0 {
		return time.Time{}, false
	}
	if n >= 1e12 {
		return time.UnixMilli(int64(n)).UTC(), true
	}
	return time.Unix(int64(n), 0).UTC(), true
}
