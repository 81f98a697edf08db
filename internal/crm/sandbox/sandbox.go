// ABOUTME: Offline crm.Client backed by the SQLite store, partitioned by credential fingerprint
// ABOUTME: Any non-empty token is accepted; each token sees only its own records

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/2389/hubspot-gateway/internal/credential"
	"github.com/2389/hubspot-gateway/internal/crm"
	"github.com/2389/hubspot-gateway/internal/store"
)

// Client serves CRM operations from a SandboxStore for one tenant.
type Client struct {
	store  store.SandboxStore
	tenant string
	now    func() time.Time
}

var _ crm.Client = (*Client)(nil)

// NewFactory returns a crm.Factory producing sandbox clients over st.
func NewFactory(st store.SandboxStore) crm.Factory {
	return func(cred credential.Credential) (crm.Client, error) {
		return New(st, cred)
	}
}

// New creates a sandbox client for cred's tenant.
func New(st store.SandboxStore, cred credential.Credential) (*Client, error) {
	if cred.IsZero() {
		return nil, credential.ErrMissingCredential
	}
	return &Client{store: st, tenant: cred.Fingerprint(), now: time.Now}, nil
}

func (c *Client) ListContacts(ctx context.Context) ([]crm.Contact, error) {
	return c.store.ListContacts(ctx, c.tenant)
}

func (c *Client) SearchContacts(ctx context.Context, criteria crm.ContactCriteria) ([]crm.Contact, error) {
	found, err := c.store.FindContacts(ctx, c.tenant, criteria.FirstName, criteria.LastName)
	if err != nil {
		return nil, err
	}
	if criteria.Company == "" {
		return found, nil
	}
	out := found[:0]
	for _, contact := range found {
		if contact.Company() == criteria.Company {
			out = append(out, contact)
		}
	}
	return out, nil
}

func (c *Client) CreateContact(ctx context.Context, in crm.ContactInput) (*crm.Contact, error) {
	props := in.PropertyMap()
	now := c.now().UTC().Truncate(time.Second)
	contact := &crm.Contact{
		ID:         uuid.NewString(),
		FirstName:  props[crm.PropFirstName],
		LastName:   props[crm.PropLastName],
		Email:      props[crm.PropEmail],
		Properties: props,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.store.InsertContact(ctx, c.tenant, contact); err != nil {
		return nil, err
	}
	return contact, nil
}

func (c *Client) ListCompanies(ctx context.Context) ([]crm.Company, error) {
	return c.store.ListCompanies(ctx, c.tenant)
}

func (c *Client) SearchCompanies(ctx context.Context, criteria crm.CompanyCriteria) ([]crm.Company, error) {
	return c.store.FindCompanies(ctx, c.tenant, criteria.Name)
}

func (c *Client) CreateCompany(ctx context.Context, in crm.CompanyInput) (*crm.Company, error) {
	props := in.PropertyMap()
	now := c.now().UTC().Truncate(time.Second)
	company := &crm.Company{
		ID:         uuid.NewString(),
		Name:       props[crm.PropName],
		Properties: props,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := c.store.InsertCompany(ctx, c.tenant, company); err != nil {
		return nil, err
	}
	return company, nil
}

func (c *Client) GetCompanyActivity(ctx context.Context, companyID string) ([]crm.Engagement, error) {
	company, err := c.store.GetCompany(ctx, c.tenant, companyID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("company %s: %w", companyID, crm.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	items, err := c.store.ListCompanyEngagements(ctx, c.tenant, companyID)
	if err != nil {
		return nil, err
	}
	owner := &crm.EntityRef{Type: crm.OwnerCompany, ID: company.ID, Name: company.Name}
	for i := range items {
		items[i].Owner = owner
	}
	return items, nil
}

func (c *Client) ListRecentEngagements(ctx context.Context, since time.Time) ([]crm.Engagement, error) {
	items, err := c.store.ListEngagementsSince(ctx, c.tenant, since)
	if err != nil {
		return nil, err
	}
	for i := range items {
		a := items[i].Associations
		switch {
		case len(a.CompanyIDs) > 0:
			items[i].Owner = &crm.EntityRef{Type: crm.OwnerCompany, ID: a.CompanyIDs[0]}
		case len(a.ContactIDs) > 0:
			items[i].Owner = &crm.EntityRef{Type: crm.OwnerContact, ID: a.ContactIDs[0]}
		}
	}
	return items, nil
}
