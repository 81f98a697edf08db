// ABOUTME: Adapter that persists dispatcher audit entries to the store's action log
// ABOUTME: Rows carry the tenant fingerprint, never the credential

package gateway

import (
	"context"

	"github.com/2389/hubspot-gateway/internal/bridge"
	"github.com/2389/hubspot-gateway/internal/store"
)

// ActionRecorder implements bridge.Auditor on top of a store.AuditStore.
type ActionRecorder struct {
	store store.AuditStore
}

var _ bridge.Auditor = (*ActionRecorder)(nil)

// NewActionRecorder creates a recorder writing to s.
func NewActionRecorder(s store.AuditStore) *ActionRecorder {
	return &ActionRecorder{store: s}
}

// RecordAction appends e to the action log.
func (a *ActionRecorder) RecordAction(ctx context.Context, e bridge.AuditEntry) error {
	return a.store.AppendActionLog(ctx, &store.ActionEntry{
		Timestamp: e.Time,
		Tenant:    e.Tenant,
		Action:    e.Action,
		Kind:      string(e.Kind),
		Status:    e.Status,
		Duration:  e.Duration,
	})
}
