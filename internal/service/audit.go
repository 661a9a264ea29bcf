package service

import (
	"context"
	"fmt"

	"inventory-ledger/internal/models"
	"inventory-ledger/internal/store"
)

// recordAudit appends one audit entry through the caller's transaction so the
// entry commits or rolls back with the change it describes
func recordAudit(ctx context.Context, tx *store.Tx, principalID int64, action, format string, args ...interface{}) error {
	entry := &models.LogEntry{
		PrincipalID: &principalID,
		ActionType:  action,
		Message:     fmt.Sprintf(format, args...),
	}
	return tx.AppendLogEntry(ctx, entry)
}

// AuditService serves the audit log viewer
type AuditService struct {
	store *store.Store
}

// NewAuditService creates a new audit service
func NewAuditService(store *store.Store) *AuditService {
	return &AuditService{store: store}
}

// ListLogEntries returns audit entries, newest first
func (s *AuditService) ListLogEntries(ctx context.Context, filter store.LogFilter) ([]models.LogEntry, error) {
	return s.store.ListLogEntries(ctx, filter)
}
