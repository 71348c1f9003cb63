package agents

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func newTestReader(t *testing.T, agents []map[string]any) *Reader {
	t.Helper()
	data, err := json.Marshal(map[string]any{"agents": agents})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "agent-tracker-history.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	r := NewReader(path, zerolog.Nop())
	r.now = func() time.Time { return now }
	return r
}

func spawn(id, typ string, age time.Duration) map[string]any {
	return map[string]any{
		"id":          id,
		"type":        typ,
		"hookType":    "post-commit",
		"description": "run " + id,
		"timestamp":   now.Add(-age).Format(time.RFC3339),
	}
}

func TestRead_Missing(t *testing.T) {
	sum := NewReader(filepath.Join(t.TempDir(), "none.json"), zerolog.Nop()).Read()
	assert.False(t, sum.HasData)
	assert.Empty(t, sum.ByType)
	assert.NotNil(t, sum.Recent)
}

func TestRead_CountsAndRecent(t *testing.T) {
	r := newTestReader(t, []map[string]any{
		spawn("a1", "code-reviewer", time.Hour),
		spawn("a2", "test-writer", 2*time.Hour),
		spawn("a3", "code-reviewer", 3*time.Hour),
		spawn("a4", "antipattern-hunter", 4*time.Hour),
		spawn("old", "code-reviewer", 30*time.Hour),
		{"id": "bad", "type": "x", "timestamp": "yesterday"},
	})

	sum := r.Read()

	require.True(t, sum.HasData)
	assert.Equal(t, 4, sum.Total)
	assert.Equal(t, []TypeCount{
		{Type: "code-reviewer", Count: 2},
		{Type: "antipattern-hunter", Count: 1},
		{Type: "test-writer", Count: 1},
	}, sum.ByType)
	require.Len(t, sum.Recent, 4)
	assert.Equal(t, "a1", sum.Recent[0].ID)
	assert.Equal(t, "a4", sum.Recent[3].ID)
}

func TestRead_RecentCappedAndDescriptionsTruncated(t *testing.T) {
	var list []map[string]any
	for i := 0; i < 15; i++ {
		s := spawn("id", "worker", time.Duration(i)*time.Minute)
		s["description"] = strings.Repeat("é", 120)
		list = append(list, s)
	}
	r := newTestReader(t, list)

	sum := r.Read()

	assert.Equal(t, 15, sum.Total)
	require.Len(t, sum.Recent, DefaultRecent)
	assert.Equal(t, maxDescLen, utf8.RuneCountInString(sum.Recent[0].Description))
	assert.True(t, strings.HasSuffix(sum.Recent[0].Description, "…"))
}

func TestRead_OnlyStaleEntries(t *testing.T) {
	sum := newTestReader(t, []map[string]any{spawn("old", "worker", 48*time.Hour)}).Read()
	assert.True(t, sum.HasData)
	assert.Zero(t, sum.Total)
	assert.Empty(t, sum.Recent)
}
