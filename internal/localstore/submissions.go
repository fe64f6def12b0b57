package localstore

import (
	"context"
	"fmt"
)

// RecordSubmission appends a submission and returns its row id.
func (s *SQLiteStore) RecordSubmission(ctx context.Context, sub Submission) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO submissions (task_id, status, payload)
		VALUES (?, ?, ?)
	`, sub.TaskID, sub.Status, sub.Payload)
	if err != nil {
		return 0, fmt.Errorf("failed to save submission: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read submission id: %w", err)
	}
	return id, nil
}

// ListSubmissions returns a task's submissions, newest first.
// A limit of 0 or less returns all of them. Returns an empty slice (not nil)
// when there are none.
func (s *SQLiteStore) ListSubmissions(ctx context.Context, taskID int64, limit int) ([]Submission, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultQueryTimeout)
	defer cancel()

	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, status, payload, created_at
		FROM submissions
		WHERE task_id = ?
		ORDER BY id DESC
		LIMIT ?
	`, taskID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	subs := []Submission{}
	for rows.Next() {
		var sub Submission
		if err := rows.Scan(&sub.ID, &sub.TaskID, &sub.Status, &sub.Payload, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating submissions: %w", err)
	}
	return subs, nil
}
