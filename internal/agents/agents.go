// Package agents reads the agent tracker history and reports how many
// automated instances were spawned recently and of which types.
package agents

import (
	"encoding/json"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const (
	DefaultWindow = 24 * time.Hour
	DefaultRecent = 10
	maxDescLen    = 80
)

type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type Spawn struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	HookType    string    `json:"hookType,omitempty"`
	Description string    `json:"description"`
	Timestamp   time.Time `json:"timestamp"`
}

type Summary struct {
	HasData bool        `json:"hasData"`
	Total   int         `json:"total"`
	ByType  []TypeCount `json:"byType"`
	Recent  []Spawn     `json:"recent"`
}

type history struct {
	Agents []rawAgent `json:"agents"`
}

type rawAgent struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	HookType    string `json:"hookType"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

type Reader struct {
	path   string
	now    func() time.Time
	window time.Duration
	recent int
	logger zerolog.Logger
}

func NewReader(path string, logger zerolog.Logger) *Reader {
	return &Reader{
		path:   path,
		now:    time.Now,
		window: DefaultWindow,
		recent: DefaultRecent,
		logger: logger,
	}
}

func (r *Reader) Read() *Summary {
	sum := &Summary{ByType: []TypeCount{}, Recent: []Spawn{}}

	data, err := os.ReadFile(r.path)
	if err != nil {
		r.logger.Debug().Err(err).Str("path", r.path).Msg("agent history unavailable")
		return sum
	}
	var h history
	if err := json.Unmarshal(data, &h); err != nil {
		r.logger.Debug().Err(err).Str("path", r.path).Msg("agent history malformed")
		return sum
	}

	since := r.now().Add(-r.window)
	spawns := lo.FilterMap(h.Agents, func(a rawAgent, _ int) (Spawn, bool) {
		ts, err := time.Parse(time.RFC3339, a.Timestamp)
		if err != nil || ts.Before(since) {
			return Spawn{}, false
		}
		typ := a.Type
		if typ == "" {
			typ = "unknown"
		}
		return Spawn{
			ID:          a.ID,
			Type:        typ,
			HookType:    a.HookType,
			Description: truncate(a.Description, maxDescLen),
			Timestamp:   ts.UTC(),
		}, true
	})
	if len(spawns) == 0 {
		sum.HasData = len(h.Agents) > 0
		return sum
	}

	sum.HasData = true
	sum.Total = len(spawns)

	counts := lo.CountValuesBy(spawns, func(s Spawn) string { return s.Type })
	for typ, n := range counts {
		sum.ByType = append(sum.ByType, TypeCount{Type: typ, Count: n})
	}
	sort.Slice(sum.ByType, func(i, j int) bool {
		if sum.ByType[i].Count != sum.ByType[j].Count {
			return sum.ByType[i].Count > sum.ByType[j].Count
		}
		return sum.ByType[i].Type < sum.ByType[j].Type
	})

	sort.SliceStable(spawns, func(i, j int) bool {
		return spawns[i].Timestamp.After(spawns[j].Timestamp)
	})
	if len(spawns) > r.recent {
		spawns = spawns[:r.recent]
	}
	sum.Recent = spawns
	return sum
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
