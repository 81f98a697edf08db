// ABOUTME: Tenant-partitioned CRM records (contacts, companies, engagements) for the sandbox provider
// ABOUTME: Properties, associations and content are stored as JSON columns

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/2389/hubspot-gateway/internal/crm"
)

func encodeProps(props map[string]string) (string, error) {
	if len(props) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("marshaling properties: %w", err)
	}
	return string(data), nil
}

func decodeProps(raw string) (map[string]string, error) {
	props := map[string]string{}
	if raw == "" {
		return props, nil
	}
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("unmarshaling properties: %w", err)
	}
	return props, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTimes(created, updated string) (time.Time, time.Time, error) {
	c, err := time.Parse(time.RFC3339, created)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing created_at: %w", err)
	}
	u, err := time.Parse(time.RFC3339, updated)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return c, u, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// InsertContact stores c for tenant. Returns ErrDuplicate if the id is taken.
func (s *SQLiteStore) InsertContact(ctx context.Context, tenant string, c *crm.Contact) error {
	props, err := encodeProps(c.Properties)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO contacts (tenant, id, firstname, lastname, email, properties_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		tenant, c.ID, c.FirstName, c.LastName, c.Email, props,
		formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting contact: %w", err)
	}

	s.logger.Debug("inserted contact", "tenant", tenant, "id", c.ID)
	return nil
}

const contactColumns = `id, firstname, lastname, email, properties_json, created_at, updated_at`

func (s *SQLiteStore) queryContacts(ctx context.Context, query string, args ...any) ([]crm.Contact, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying contacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	contacts := []crm.Contact{}
	for rows.Next() {
		var c crm.Contact
		var props, created, updated string
		if err := rows.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &props, &created, &updated); err != nil {
			return nil, fmt.Errorf("scanning contact row: %w", err)
		}
		if c.Properties, err = decodeProps(props); err != nil {
			return nil, err
		}
		if c.CreatedAt, c.UpdatedAt, err = parseTimes(created, updated); err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating contact rows: %w", err)
	}
	return contacts, nil
}

// ListContacts returns the tenant's contacts in insertion order.
func (s *SQLiteStore) ListContacts(ctx context.Context, tenant string) ([]crm.Contact, error) {
	return s.queryContacts(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE tenant = ? ORDER BY rowid`, tenant)
}

// FindContacts returns the tenant's contacts with exactly these names, in insertion order.
func (s *SQLiteStore) FindContacts(ctx context.Context, tenant, firstName, lastName string) ([]crm.Contact, error) {
	return s.queryContacts(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE tenant = ? AND firstname = ? AND lastname = ? ORDER BY rowid`,
		tenant, firstName, lastName)
}

// InsertCompany stores c for tenant. Returns ErrDuplicate if the id is taken.
func (s *SQLiteStore) InsertCompany(ctx context.Context, tenant string, c *crm.Company) error {
	props, err := encodeProps(c.Properties)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO companies (tenant, id, name, properties_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		tenant, c.ID, c.Name, props, formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting company: %w", err)
	}

	s.logger.Debug("inserted company", "tenant", tenant, "id", c.ID)
	return nil
}

const companyColumns = `id, name, properties_json, created_at, updated_at`

func scanCompany(scanner interface{ Scan(dest ...any) error }) (crm.Company, error) {
	var c crm.Company
	var props, created, updated string
	if err := scanner.Scan(&c.ID, &c.Name, &props, &created, &updated); err != nil {
		return c, err
	}
	var err error
	if c.Properties, err = decodeProps(props); err != nil {
		return c, err
	}
	if c.CreatedAt, c.UpdatedAt, err = parseTimes(created, updated); err != nil {
		return c, err
	}
	return c, nil
}

// GetCompany returns one company. Returns ErrNotFound if it does not exist for tenant.
func (s *SQLiteStore) GetCompany(ctx context.Context, tenant, id string) (*crm.Company, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE tenant = ? AND id = ?`, tenant, id)

	c, err := scanCompany(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying company: %w", err)
	}
	return &c, nil
}

func (s *SQLiteStore) queryCompanies(ctx context.Context, query string, args ...any) ([]crm.Company, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying companies: %w", err)
	}
	defer func() { _ = rows.Close() }()

	companies := []crm.Company{}
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning company row: %w", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating company rows: %w", err)
	}
	return companies, nil
}

// ListCompanies returns the tenant's companies in insertion order.
func (s *SQLiteStore) ListCompanies(ctx context.Context, tenant string) ([]crm.Company, error) {
	return s.queryCompanies(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE tenant = ? ORDER BY rowid`, tenant)
}

// FindCompanies returns the tenant's companies named exactly name, in insertion order.
func (s *SQLiteStore) FindCompanies(ctx context.Context, tenant, name string) ([]crm.Company, error) {
	return s.queryCompanies(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE tenant = ? AND name = ? ORDER BY rowid`, tenant, name)
}

// InsertEngagement stores e and indexes it under each associated company.
func (s *SQLiteStore) InsertEngagement(ctx context.Context, tenant string, e *crm.Engagement) error {
	assoc, err := json.Marshal(e.Associations)
	if err != nil {
		return fmt.Errorf("marshaling associations: %w", err)
	}
	var content string
	if e.Content != nil {
		data, err := json.Marshal(e.Content)
		if err != nil {
			return fmt.Errorf("marshaling content: %w", err)
		}
		content = string(data)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO engagements (tenant, id, type, ts_ms, created_at_ms, last_updated_ms, created_by, modified_by, associations_json, content_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		tenant, e.ID, e.Type,
		toMillis(e.Timestamp), toMillis(e.CreatedAt), toMillis(e.LastUpdated),
		e.CreatedBy, e.ModifiedBy, string(assoc), nullString(content),
	)
	if err != nil {
		if isConstraintViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting engagement: %w", err)
	}

	for i, companyID := range e.Associations.CompanyIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO engagement_companies (tenant, engagement_id, company_id, position)
			VALUES (?, ?, ?, ?)
		`, tenant, e.ID, companyID, i)
		if err != nil {
			return fmt.Errorf("linking engagement to company: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing engagement: %w", err)
	}

	s.logger.Debug("inserted engagement", "tenant", tenant, "id", e.ID, "type", e.Type)
	return nil
}

const engagementColumns = `e.id, e.type, e.ts_ms, e.created_at_ms, e.last_updated_ms, e.created_by, e.modified_by, e.associations_json, e.content_json`

func (s *SQLiteStore) queryEngagements(ctx context.Context, query string, args ...any) ([]crm.Engagement, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying engagements: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []crm.Engagement{}
	for rows.Next() {
		var e crm.Engagement
		var ts, created, updated int64
		var assoc string
		var content sql.NullString
		if err := rows.Scan(&e.ID, &e.Type, &ts, &created, &updated, &e.CreatedBy, &e.ModifiedBy, &assoc, &content); err != nil {
			return nil, fmt.Errorf("scanning engagement row: %w", err)
		}
		e.Timestamp = fromMillis(ts)
		e.CreatedAt = fromMillis(created)
		e.LastUpdated = fromMillis(updated)
		if err := json.Unmarshal([]byte(assoc), &e.Associations); err != nil {
			return nil, fmt.Errorf("unmarshaling associations: %w", err)
		}
		if content.Valid {
			e.Content = json.RawMessage(content.String)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating engagement rows: %w", err)
	}
	return out, nil
}

// ListCompanyEngagements returns engagements associated with the company, oldest first.
func (s *SQLiteStore) ListCompanyEngagements(ctx context.Context, tenant, companyID string) ([]crm.Engagement, error) {
	return s.queryEngagements(ctx, `
		SELECT `+engagementColumns+`
		FROM engagements e
		JOIN engagement_companies ec ON ec.tenant = e.tenant AND ec.engagement_id = e.id
		WHERE e.tenant = ? AND ec.company_id = ?
		ORDER BY e.ts_ms, e.id
	`, tenant, companyID)
}

// ListEngagementsSince returns engagements whose timestamp is at or after since, newest first.
func (s *SQLiteStore) ListEngagementsSince(ctx context.Context, tenant string, since time.Time) ([]crm.Engagement, error) {
	return s.queryEngagements(ctx, `
		SELECT `+engagementColumns+`
		FROM engagements e
		WHERE e.tenant = ? AND e.ts_ms >= ?
		ORDER BY e.ts_ms DESC, e.id
	`, tenant, since.UnixMilli())
}
