package store

import (
	"context"
	"fmt"

	"inventory-ledger/internal/models"

	"github.com/jmoiron/sqlx"
)

// LogFilter narrows ListLogEntries. Zero values mean no restriction.
type LogFilter struct {
	ActionType  string
	PrincipalID *int64
	Limit       int
}

// AppendLogEntry writes an audit record. Entries are never updated or deleted.
func (q *Queries) AppendLogEntry(ctx context.Context, entry *models.LogEntry) error {
	entry.CreatedAt = now()
	err := sqlx.GetContext(ctx, q.q, &entry.ID,
		q.q.Rebind("INSERT INTO log_entries (principal_id, action_type, message, created_at) VALUES (?, ?, ?, ?) RETURNING id"),
		entry.PrincipalID, entry.ActionType, entry.Message, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append log entry: %w", err)
	}
	return nil
}

// ListLogEntries returns audit records, newest first
func (q *Queries) ListLogEntries(ctx context.Context, filter LogFilter) ([]models.LogEntry, error) {
	query := "SELECT id, principal_id, action_type, message, created_at FROM log_entries WHERE 1 = 1"
	args := []interface{}{}

	if filter.ActionType != "" {
		query += " AND action_type = ?"
		args = append(args, filter.ActionType)
	}
	if filter.PrincipalID != nil {
		query += " AND principal_id = ?"
		args = append(args, *filter.PrincipalID)
	}

	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	entries := []models.LogEntry{}
	err := sqlx.SelectContext(ctx, q.q, &entries, q.q.Rebind(query), args...)
	return entries, err
}
