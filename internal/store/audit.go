// ABOUTME: Action audit log: one row per dispatched action with tenant fingerprint and outcome
// ABOUTME: Never stores credentials; tenants are identified by fingerprint only

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// tsLayout is fixed width so timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ActionEntry represents a single dispatched action.
type ActionEntry struct {
	ID        string        // UUID v4
	Timestamp time.Time     // when the action finished
	Tenant    string        // credential fingerprint, empty when no credential resolved
	Action    string        // action name as requested
	Kind      string        // error kind, empty on success
	Status    int           // HTTP status returned to the caller
	Duration  time.Duration // time spent dispatching
}

// ActionFilter specifies filtering options for listing action entries.
type ActionFilter struct {
	Since  *time.Time // entries at or after this time
	Tenant *string    // filter by tenant fingerprint
	Action *string    // filter by action name
	Limit  int        // max results (default 100, max 1000)
}

// AppendActionLog appends a new entry to the action log.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendActionLog(ctx context.Context, e *ActionEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	query := `
		INSERT INTO action_log (log_id, ts, tenant, action, kind, status, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		e.ID,
		e.Timestamp.UTC().Format(tsLayout),
		e.Tenant,
		e.Action,
		e.Kind,
		e.Status,
		e.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("inserting action entry: %w", err)
	}

	s.logger.Debug("appended action log", "id", e.ID, "action", e.Action, "status", e.Status)
	return nil
}

// normalizeActionLimit applies default (100) and cap (1000) to the list limit.
func normalizeActionLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

const actionLogQuery = `
	SELECT log_id, ts, tenant, action, kind, status, duration_ms
	FROM action_log
	WHERE (? IS NULL OR ts >= ?)
	  AND (? IS NULL OR tenant = ?)
	  AND (? IS NULL OR action = ?)
	ORDER BY ts DESC, rowid DESC
	LIMIT ?
`

// ListActionLog returns action entries matching the filter, newest first.
func (s *SQLiteStore) ListActionLog(ctx context.Context, f ActionFilter) ([]ActionEntry, error) {
	var since *string
	if f.Since != nil {
		v := f.Since.UTC().Format(tsLayout)
		since = &v
	}

	rows, err := s.db.QueryContext(ctx, actionLogQuery,
		since, since,
		f.Tenant, f.Tenant,
		f.Action, f.Action,
		normalizeActionLimit(f.Limit),
	)
	if err != nil {
		return nil, fmt.Errorf("querying action log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	entries := []ActionEntry{}
	for rows.Next() {
		var e ActionEntry
		var ts string
		var durationMs int64
		if err := rows.Scan(&e.ID, &ts, &e.Tenant, &e.Action, &e.Kind, &e.Status, &durationMs); err != nil {
			return nil, fmt.Errorf("scanning action entry: %w", err)
		}
		e.Timestamp, err = time.Parse(tsLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp: %w", err)
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating action entries: %w", err)
	}
	return entries, nil
}
