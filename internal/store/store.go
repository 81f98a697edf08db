// ABOUTME: Store interfaces and shared errors for hubspot-gateway persistence
// ABOUTME: SandboxStore backs the offline CRM provider; AuditStore records dispatched actions

package store

import (
	"context"
	"errors"
	"time"

	"github.com/2389/hubspot-gateway/internal/crm"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when inserting a record whose id is already taken
var ErrDuplicate = errors.New("record already exists")

// SandboxStore holds CRM records for the sandbox provider. Every method is scoped to a
// tenant key; records of one tenant are invisible to every other tenant.
type SandboxStore interface {
	InsertContact(ctx context.Context, tenant string, c *crm.Contact) error
	ListContacts(ctx context.Context, tenant string) ([]crm.Contact, error)
	FindContacts(ctx context.Context, tenant, firstName, lastName string) ([]crm.Contact, error)

	InsertCompany(ctx context.Context, tenant string, c *crm.Company) error
	GetCompany(ctx context.Context, tenant, id string) (*crm.Company, error)
	ListCompanies(ctx context.Context, tenant string) ([]crm.Company, error)
	FindCompanies(ctx context.Context, tenant, name string) ([]crm.Company, error)

	InsertEngagement(ctx context.Context, tenant string, e *crm.Engagement) error
	ListCompanyEngagements(ctx context.Context, tenant, companyID string) ([]crm.Engagement, error)
	ListEngagementsSince(ctx context.Context, tenant string, since time.Time) ([]crm.Engagement, error)
}

// AuditStore records one row per dispatched action.
type AuditStore interface {
	AppendActionLog(ctx context.Context, e *ActionEntry) error
	ListActionLog(ctx context.Context, f ActionFilter) ([]ActionEntry, error)
}

var (
	_ SandboxStore = (*SQLiteStore)(nil)
	_ AuditStore   = (*SQLiteStore)(nil)
)
