// ABOUTME: Capability interface over the CRM provider and the per-request adapter factory
// ABOUTME: Every adapter is bound to exactly one credential and never shared across tenants

package crm

import (
	"context"
	"time"

	"github.com/2389/hubspot-gateway/internal/credential"
)

// Client performs single-shot CRM operations on behalf of one tenant.
// Implementations do not retry; a failed call fails the operation.
type Client interface {
	// ListContacts returns every contact, following provider pagination.
	ListContacts(ctx context.Context) ([]Contact, error)
	// SearchContacts returns candidates for criteria in provider order. Callers apply
	// the exact-match rule; adapters may return a superset.
	SearchContacts(ctx context.Context, criteria ContactCriteria) ([]Contact, error)
	CreateContact(ctx context.Context, in ContactInput) (*Contact, error)

	ListCompanies(ctx context.Context) ([]Company, error)
	SearchCompanies(ctx context.Context, criteria CompanyCriteria) ([]Company, error)
	CreateCompany(ctx context.Context, in CompanyInput) (*Company, error)

	// GetCompanyActivity returns engagements attached to the company, or ErrNotFound.
	GetCompanyActivity(ctx context.Context, companyID string) ([]Engagement, error)
	// ListRecentEngagements returns engagements whose Timestamp is at or after since
	// across all records. Adapters without a provider-wide feed return ErrUnsupported.
	ListRecentEngagements(ctx context.Context, since time.Time) ([]Engagement, error)
}

// Factory builds a fresh Client bound to cred. It is called once per request.
type Factory func(cred credential.Credential) (Client, error)
