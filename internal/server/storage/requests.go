package storage

import (
	"database/sql"
	"fmt"
)

// RecordRequest asynchronously journals a served move request
func (s *Store) RecordRequest(record RequestRecord) error {
	return s.enqueue("request record", func(tx *sql.Tx) error {
		query := `INSERT INTO move_requests (
			request_id, fen, model, move_uci, move_san,
			status, error_code, latency_ms, requested_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

		_, err := tx.Exec(query,
			record.RequestID, record.FEN, record.Model, record.MoveUCI, record.MoveSAN,
			record.Status, record.ErrorCode, record.LatencyMs, record.RequestedAt.UTC(),
		)
		return err
	})
}

// RequestFilter narrows QueryRequests; zero values match everything
type RequestFilter struct {
	RequestID  string
	Model      string
	FailedOnly bool
	Limit      int
}

// QueryRequests retrieves journal rows, newest first
func (s *Store) QueryRequests(f RequestFilter) ([]RequestRecord, error) {
	query := `SELECT
		request_id, fen, model, move_uci, move_san,
		status, error_code, latency_ms, requested_at
	FROM move_requests WHERE 1=1`

	var args []any

	if f.RequestID != "" && f.RequestID != "*" {
		query += " AND request_id = ?"
		args = append(args, f.RequestID)
	}
	if f.Model != "" && f.Model != "*" {
		query += " AND model = ?"
		args = append(args, f.Model)
	}
	if f.FailedOnly {
		query += " AND status >= 400"
	}

	query += " ORDER BY requested_at DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var records []RequestRecord
	for rows.Next() {
		var r RequestRecord
		err := rows.Scan(
			&r.RequestID, &r.FEN, &r.Model, &r.MoveUCI, &r.MoveSAN,
			&r.Status, &r.ErrorCode, &r.LatencyMs, &r.RequestedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return records, nil
}

// ModelStats summarizes journal rows per model
type ModelStats struct {
	Model        string
	Requests     int
	Failures     int
	AvgLatencyMs float64
}

// Stats aggregates the journal by model
func (s *Store) Stats() ([]ModelStats, error) {
	rows, err := s.db.Query(`SELECT
		model, COUNT(*), SUM(CASE WHEN status >= 400 THEN 1 ELSE 0 END), AVG(latency_ms)
	FROM move_requests GROUP BY model ORDER BY model`)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var stats []ModelStats
	for rows.Next() {
		var m ModelStats
		if err := rows.Scan(&m.Model, &m.Requests, &m.Failures, &m.AvgLatencyMs); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		stats = append(stats, m)
	}
	return stats, rows.Err()
}
