// Package sessions totals token usage from the JSONL session transcripts
// that Claude writes for a project.
package sessions

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

const DefaultWindow = 24 * time.Hour

type ModelUsage struct {
	Model               string `json:"model"`
	InputTokens         int64  `json:"inputTokens"`
	OutputTokens        int64  `json:"outputTokens"`
	CacheReadTokens     int64  `json:"cacheReadTokens"`
	CacheCreationTokens int64  `json:"cacheCreationTokens"`
	TotalTokens         int64  `json:"totalTokens"`
	Messages            int    `json:"messages"`
}

type Usage struct {
	HasData             bool         `json:"hasData"`
	WindowHours         float64      `json:"windowHours"`
	InputTokens         int64        `json:"inputTokens"`
	OutputTokens        int64        `json:"outputTokens"`
	CacheReadTokens     int64        `json:"cacheReadTokens"`
	CacheCreationTokens int64        `json:"cacheCreationTokens"`
	TotalTokens         int64        `json:"totalTokens"`
	Sessions            int          `json:"sessions"`
	Messages            int          `json:"messages"`
	ByModel             []ModelUsage `json:"byModel"`
}

type entry struct {
	Type      string   `json:"type"`
	Timestamp string   `json:"timestamp"`
	SessionID string   `json:"sessionId"`
	RequestID string   `json:"requestId"`
	Message   *message `json:"message"`
}

type message struct {
	ID    string      `json:"id"`
	Model string      `json:"model"`
	Usage *tokenUsage `json:"usage"`
}

type tokenUsage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens"`
}

type Reader struct {
	dir    string
	now    func() time.Time
	window time.Duration
	logger zerolog.Logger
}

func NewReader(dir string, window time.Duration, logger zerolog.Logger) *Reader {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Reader{dir: dir, now: time.Now, window: window, logger: logger}
}

// Read totals assistant-message usage inside the window. A missing
// transcript directory is not an error.
func (r *Reader) Read() (*Usage, error) {
	u := &Usage{WindowHours: r.window.Hours(), ByModel: []ModelUsage{}}

	files, err := collectJSONLFiles(r.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return u, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing transcripts: %w", err)
	}

	since := r.now().Add(-r.window)
	seen := map[string]struct{}{}
	byModel := map[string]*ModelUsage{}
	var sessionIDs []string

	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil || info.ModTime().Before(since) {
			continue
		}
		fallbackSession := strings.TrimSuffix(filepath.Base(path), ".jsonl")

		err = scanJSONL(path, func(e entry) {
			if e.Type != "assistant" || e.Message == nil || e.Message.Usage == nil {
				return
			}
			ts, err := time.Parse(time.RFC3339Nano, e.Timestamp)
			if err != nil || ts.Before(since) {
				return
			}
			if e.Message.ID != "" {
				key := e.Message.ID + ":" + e.RequestID
				if _, dup := seen[key]; dup {
					return
				}
				seen[key] = struct{}{}
			}

			model := e.Message.Model
			if model == "" {
				model = "unknown"
			}
			m, ok := byModel[model]
			if !ok {
				m = &ModelUsage{Model: model}
				byModel[model] = m
			}
			tu := e.Message.Usage
			m.InputTokens += tu.InputTokens
			m.OutputTokens += tu.OutputTokens
			m.CacheReadTokens += tu.CacheReadInputTokens
			m.CacheCreationTokens += tu.CacheCreationInputTokens
			m.TotalTokens += tu.InputTokens + tu.OutputTokens + tu.CacheReadInputTokens + tu.CacheCreationInputTokens
			m.Messages++

			session := e.SessionID
			if session == "" {
				session = fallbackSession
			}
			sessionIDs = append(sessionIDs, session)
		})
		if err != nil {
			r.logger.Debug().Err(err).Str("path", path).Msg("skipping unreadable transcript")
		}
	}

	for _, m := range lo.Values(byModel) {
		u.InputTokens += m.InputTokens
		u.OutputTokens += m.OutputTokens
		u.CacheReadTokens += m.CacheReadTokens
		u.CacheCreationTokens += m.CacheCreationTokens
		u.TotalTokens += m.TotalTokens
		u.Messages += m.Messages
		u.ByModel = append(u.ByModel, *m)
	}
	sort.Slice(u.ByModel, func(i, j int) bool {
		if u.ByModel[i].TotalTokens != u.ByModel[j].TotalTokens {
			return u.ByModel[i].TotalTokens > u.ByModel[j].TotalTokens
		}
		return u.ByModel[i].Model < u.ByModel[j].Model
	})
	u.Sessions = len(lo.Uniq(sessionIDs))
	u.HasData = u.Messages > 0
	return u, nil
}

func collectJSONLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// scanJSONL calls fn for each well-formed line; malformed lines are skipped.
func scanJSONL(path string, fn func(entry)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 256*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e entry
		if err := json.Unmarshal(line, &e); err != nil {
			continue
		}
		fn(e)
	}
	return scanner.Err()
}
