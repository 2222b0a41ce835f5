package storage

import "time"

// RequestRecord is one served /move call
type RequestRecord struct {
	RequestID   string    `db:"request_id"`
	FEN         string    `db:"fen"`
	Model       string    `db:"model"`
	MoveUCI     string    `db:"move_uci"` // empty when the call failed
	MoveSAN     string    `db:"move_san"`
	Status      int       `db:"status"` // HTTP status returned to the client
	ErrorCode   string    `db:"error_code"`
	LatencyMs   int64     `db:"latency_ms"`
	RequestedAt time.Time `db:"requested_at"`
}

// Schema defines the SQLite database structure
const Schema = `
CREATE TABLE IF NOT EXISTS move_requests (
	request_id TEXT PRIMARY KEY,
	fen TEXT NOT NULL,
	model TEXT NOT NULL,
	move_uci TEXT NOT NULL DEFAULT '',
	move_san TEXT NOT NULL DEFAULT '',
	status INTEGER NOT NULL,
	error_code TEXT NOT NULL DEFAULT '',
	latency_ms INTEGER NOT NULL DEFAULT 0,
	requested_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_move_requests_model ON move_requests(model);
CREATE INDEX IF NOT EXISTS idx_move_requests_requested_at ON move_requests(requested_at);
CREATE INDEX IF NOT EXISTS idx_move_requests_status ON move_requests(status);
`
