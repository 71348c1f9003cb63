package db

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"time"
)

const maxPendingRows = 10

type PendingQuestion struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
}

type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type DeputySummary struct {
	HasData          bool              `json:"hasData"`
	Pending          int               `json:"pending"`
	Answered         int               `json:"answered"`
	ByType           []TypeCount       `json:"byType"`
	PendingQuestions []PendingQuestion `json:"pendingQuestions"`
	OldestPendingAge *time.Duration    `json:"oldestPendingAge"`
}

func emptyDeputy() *DeputySummary {
	return &DeputySummary{ByType: []TypeCount{}, PendingQuestions: []PendingQuestion{}}
}

// ReadDeputy summarizes the deputy-CTO triage queue. A missing database or
// questions table yields an empty summary.
func ReadDeputy(dbPath string, now time.Time) (*DeputySummary, error) {
	database, err := Open(dbPath)
	if errors.Is(err, fs.ErrNotExist) {
		return emptyDeputy(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening deputy database: %w", err)
	}
	defer database.Close()

	ok, err := database.HasTable("questions")
	if err != nil {
		return nil, err
	}
	if !ok {
		return emptyDeputy(), nil
	}

	sum := emptyDeputy()
	sum.HasData = true

	rows, err := database.Query(`SELECT status, COUNT(*) FROM questions GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting questions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var status sql.NullString
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		switch status.String {
		case "pending":
			sum.Pending = n
		case "answered":
			sum.Answered = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	byType, err := database.Query(`
SELECT COALESCE(type, 'unknown'), COUNT(*) FROM questions
WHERE status = 'pending'
GROUP BY type
ORDER BY COUNT(*) DESC, type ASC`)
	if err != nil {
		return nil, fmt.Errorf("counting pending by type: %w", err)
	}
	defer byType.Close()
	for byType.Next() {
		var tc TypeCount
		if err := byType.Scan(&tc.Type, &tc.Count); err != nil {
			return nil, err
		}
		sum.ByType = append(sum.ByType, tc)
	}
	if err := byType.Err(); err != nil {
		return nil, err
	}

	pending, err := database.Query(`
SELECT id, COALESCE(type, 'unknown'), COALESCE(title, ''), created_at FROM questions
WHERE status = 'pending'
ORDER BY NULLIF(created_at, '') IS NULL, created_at ASC
LIMIT ?`, maxPendingRows)
	if err != nil {
		return nil, fmt.Errorf("listing pending questions: %w", err)
	}
	defer pending.Close()
	for pending.Next() {
		var q PendingQuestion
		var created sql.NullString
		if err := pending.Scan(&q.ID, &q.Type, &q.Title, &created); err != nil {
			return nil, err
		}
		if t, ok := parseTime(created.String); ok {
			q.CreatedAt = t
		}
		sum.PendingQuestions = append(sum.PendingQuestions, q)
	}
	if err := pending.Err(); err != nil {
		return nil, err
	}

	for _, q := range sum.PendingQuestions {
		if !q.CreatedAt.IsZero() {
			age := now.Sub(q.CreatedAt)
			sum.OldestPendingAge = &age
			break
		}
	}

	return sum, nil
}
