package db

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"
)

const maxSuiteRows = 10

type FailingSuite struct {
	SuiteName    string    `json:"suiteName"`
	TestFile     string    `json:"testFile"`
	Framework    string    `json:"framework"`
	FailureCount int       `json:"failureCount"`
	LastSeen     time.Time `json:"lastSeen"`
}

type FrameworkCount struct {
	Framework string `json:"framework"`
	Count     int    `json:"count"`
}

type TestingSummary struct {
	HasData     bool             `json:"hasData"`
	Unresolved  int              `json:"unresolved"`
	ByFramework []FrameworkCount `json:"byFramework"`
	Suites      []FailingSuite   `json:"suites"`
	Coverage    *float64         `json:"coverage"`
}

func emptyTesting() *TestingSummary {
	return &TestingSummary{ByFramework: []FrameworkCount{}, Suites: []FailingSuite{}}
}

// ReadTestFailures summarizes unresolved failures from the test-failure
// tracker. Rows for the same suite are merged: counts are summed and the
// most recent occurrence supplies file, framework and last-seen time.
func ReadTestFailures(dbPath string) (*TestingSummary, error) {
	database, err := Open(dbPath)
	if errors.Is(err, fs.ErrNotExist) {
		return emptyTesting(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening test-failure database: %w", err)
	}
	defer database.Close()

	ok, err := database.HasTable("test_failures")
	if err != nil {
		return nil, err
	}
	if !ok {
		return emptyTesting(), nil
	}

	rows, err := database.Query(`
SELECT suite_name, COALESCE(test_file, ''), COALESCE(framework, 'unknown'), COALESCE(failure_count, 1), last_seen
FROM test_failures
WHERE resolved = 0`)
	if err != nil {
		return nil, fmt.Errorf("querying test failures: %w", err)
	}
	defer rows.Close()

	sum := emptyTesting()
	sum.HasData = true

	suites := map[string]*FailingSuite{}
	frameworks := map[string]int{}
	for rows.Next() {
		var s FailingSuite
		var lastSeen sql.NullString
		if err := rows.Scan(&s.SuiteName, &s.TestFile, &s.Framework, &s.FailureCount, &lastSeen); err != nil {
			return nil, err
		}
		s.LastSeen, _ = parseTime(lastSeen.String)

		sum.Unresolved++
		frameworks[s.Framework]++

		existing, ok := suites[s.SuiteName]
		if !ok {
			suites[s.SuiteName] = &s
			continue
		}
		existing.FailureCount += s.FailureCount
		if s.LastSeen.After(existing.LastSeen) {
			existing.LastSeen = s.LastSeen
			existing.TestFile = s.TestFile
			existing.Framework = s.Framework
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for fw, n := range frameworks {
		sum.ByFramework = append(sum.ByFramework, FrameworkCount{Framework: fw, Count: n})
	}
	sort.Slice(sum.ByFramework, func(i, j int) bool {
		if sum.ByFramework[i].Count != sum.ByFramework[j].Count {
			return sum.ByFramework[i].Count > sum.ByFramework[j].Count
		}
		return sum.ByFramework[i].Framework < sum.ByFramework[j].Framework
	})

	for _, s := range suites {
		sum.Suites = append(sum.Suites, *s)
	}
	sort.Slice(sum.Suites, func(i, j int) bool {
		if sum.Suites[i].FailureCount != sum.Suites[j].FailureCount {
			return sum.Suites[i].FailureCount > sum.Suites[j].FailureCount
		}
		return sum.Suites[i].SuiteName < sum.Suites[j].SuiteName
	})
	if len(sum.Suites) > maxSuiteRows {
		sum.Suites = sum.Suites[:maxSuiteRows]
	}

	return sum, nil
}
