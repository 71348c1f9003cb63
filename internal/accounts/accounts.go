// Package accounts summarizes the API key rotation state: which keys exist,
// their status and last observed usage, and recent rotation events.
package accounts

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/gentyr/gentyr-sub005/internal/trajectory"
)

const (
	DefaultLookback  = 24 * time.Hour
	DefaultMaxEvents = 20

	// Repeats of the same event for the same key inside this window are
	// shown once.
	dedupWindow = 60 * time.Second
	idPrefixLen = 8
)

type KeyRow struct {
	KeyID          string     `json:"keyId"`
	Status         string     `json:"status"`
	Email          string     `json:"email,omitempty"`
	Subscription   string     `json:"subscription,omitempty"`
	Active         bool       `json:"active"`
	ShortWindowPct *float64   `json:"shortWindowPct"`
	LongWindowPct  *float64   `json:"longWindowPct"`
	LastUsedAt     *time.Time `json:"lastUsedAt"`
}

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"`
	KeyID     string    `json:"keyId"`
	Reason    string    `json:"reason,omitempty"`
}

type Overview struct {
	HasData     bool           `json:"hasData"`
	ActiveKeyID string         `json:"activeKeyId,omitempty"`
	Keys        []KeyRow       `json:"keys"`
	Counts      map[string]int `json:"counts"`
	Accounts    []string       `json:"accounts"`
	Events      []Event        `json:"events"`
}

func empty() *Overview {
	return &Overview{
		Keys:     []KeyRow{},
		Counts:   map[string]int{},
		Accounts: []string{},
		Events:   []Event{},
	}
}

type rotationState struct {
	ActiveKeyID string              `json:"active_key_id"`
	Keys        map[string]rawKey   `json:"keys"`
	RotationLog []rawRotationRecord `json:"rotation_log"`
}

type rawKey struct {
	Status           string    `json:"status"`
	AccountEmail     string    `json:"account_email"`
	SubscriptionType string    `json:"subscription_type"`
	LastUsedAt       *float64  `json:"last_used_at"`
	LastUsage        *rawUsage `json:"last_usage"`
}

type rawUsage struct {
	FiveHour *float64 `json:"five_hour"`
	SevenDay *float64 `json:"seven_day"`
}

type rawRotationRecord struct {
	Timestamp float64 `json:"timestamp"`
	Event     string  `json:"event"`
	KeyID     string  `json:"key_id"`
	Reason    string  `json:"reason"`
}

type Reader struct {
	path      string
	now       func() time.Time
	lookback  time.Duration
	maxEvents int
	logger    zerolog.Logger
}

type Option func(*Reader)

func WithClock(now func() time.Time) Option {
	return func(r *Reader) { r.now = now }
}

func WithLookback(d time.Duration) Option {
	return func(r *Reader) { r.lookback = d }
}

func WithMaxEvents(n int) Option {
	return func(r *Reader) { r.maxEvents = n }
}

func WithLogger(logger zerolog.Logger) Option {
	return func(r *Reader) { r.logger = logger }
}

func NewReader(path string, opts ...Option) *Reader {
	r := &Reader{
		path:      path,
		now:       time.Now,
		lookback:  DefaultLookback,
		maxEvents: DefaultMaxEvents,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Reader) Read() *Overview {
	data, err := os.ReadFile(r.path)
	if err != nil {
		r.logger.Debug().Err(err).Str("path", r.path).Msg("rotation state unavailable")
		return empty()
	}

	var state rotationState
	if err := json.Unmarshal(data, &state); err != nil {
		r.logger.Debug().Err(err).Str("path", r.path).Msg("rotation state malformed")
		return empty()
	}
	if len(state.Keys) == 0 && len(state.RotationLog) == 0 {
		return empty()
	}

	ov := empty()
	ov.HasData = true
	if state.ActiveKeyID != "" {
		ov.ActiveKeyID = TruncateID(state.ActiveKeyID)
	}

	ids := lo.Keys(state.Keys)
	sort.Strings(ids)

	var emails []string
	for _, id := range ids {
		k := state.Keys[id]
		status := k.Status
		if status == "" {
			status = "unknown"
		}
		row := KeyRow{
			KeyID:        TruncateID(id),
			Status:       status,
			Email:        k.AccountEmail,
			Subscription: k.SubscriptionType,
			Active:       id == state.ActiveKeyID,
		}
		if k.LastUsage != nil {
			row.ShortWindowPct = normalized(k.LastUsage.FiveHour)
			row.LongWindowPct = normalized(k.LastUsage.SevenDay)
		}
		if k.LastUsedAt != nil && *k.LastUsedAt > 0 {
			t := time.UnixMilli(int64(*k.LastUsedAt)).UTC()
			row.LastUsedAt = &t
		}
		ov.Keys = append(ov.Keys, row)
		ov.Counts[status]++
		emails = append(emails, k.AccountEmail)
	}
	// Rows are already in full-id order; truncated ids can collide.
	sort.SliceStable(ov.Keys, func(i, j int) bool {
		return ov.Keys[i].Active && !ov.Keys[j].Active
	})

	ov.Accounts = lo.Uniq(lo.Compact(emails))
	sort.Strings(ov.Accounts)

	ov.Events = recentEvents(state.RotationLog, r.now().Add(-r.lookback), r.maxEvents)
	return ov
}

// recentEvents keeps log entries newer than since, newest first, with
// bursts of the same event for the same key collapsed.
func recentEvents(log []rawRotationRecord, since time.Time, limit int) []Event {
	events := lo.FilterMap(log, func(rec rawRotationRecord, _ int) (Event, bool) {
		if rec.Timestamp <= 0 || rec.Event == "" {
			return Event{}, false
		}
		ts := time.UnixMilli(int64(rec.Timestamp)).UTC()
		return Event{
			Timestamp: ts,
			Event:     rec.Event,
			KeyID:     TruncateID(rec.KeyID),
			Reason:    rec.Reason,
		}, !ts.Before(since)
	})
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Timestamp.After(events[j].Timestamp)
	})

	out := make([]Event, 0, len(events))
	for _, e := range events {
		if n := len(out); n > 0 {
			prev := out[n-1]
			if prev.Event == e.Event && prev.KeyID == e.KeyID && prev.Timestamp.Sub(e.Timestamp) < dedupWindow {
				continue
			}
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// TruncateID shortens a key identifier for display.
func TruncateID(id string) string {
	runes := []rune(id)
	if len(runes) <= idPrefixLen {
		return id
	}
	return string(runes[:idPrefixLen]) + "..."
}

func normalized(v *float64) *float64 {
	if v == nil {
		return nil
	}
	pct := trajectory.NormalizePct(*v)
	return &pct
}
