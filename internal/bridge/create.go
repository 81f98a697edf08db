// ABOUTME: Duplicate-aware contact and company creation
// ABOUTME: Searches for an exact match first and returns it instead of creating a second record

package bridge

import (
	"context"
	"fmt"

	"github.com/2389/hubspot-gateway/internal/crm"
	"github.com/2389/hubspot-gateway/internal/dedupe"
)

// Create outcome messages.
const (
	MsgContactExists  = "Contact already exists"
	MsgContactCreated = "Contact created successfully"
	MsgCompanyExists  = "Company already exists"
	MsgCompanyCreated = "Company created successfully"
)

// CreateOutcome reports which branch a create took.
type CreateOutcome struct {
	Existing bool
	Message  string
}

// Creator wraps adapter creates with a pre-check search.
//
// Without a guard the search and the create are not atomic: two concurrent identical
// requests can both miss in search and both create. With a guard, contact creates with
// the same names from the same tenant are serialised in this process whatever company
// they carry, as are company creates with the same name, and recently created records
// are remembered. Requests served by other processes can still race.
type Creator struct {
	guard  *dedupe.Guard
	tenant string
}

// NewCreator returns a creator for one tenant. guard may be nil (best effort).
func NewCreator(guard *dedupe.Guard, tenant string) *Creator {
	return &Creator{guard: guard, tenant: tenant}
}

// CreateContact returns an existing contact matching in's names (and company, if the
// properties carry one) or creates a new one.
func (c *Creator) CreateContact(ctx context.Context, client crm.Client, in crm.ContactInput) (*crm.Contact, CreateOutcome, error) {
	criteria := crm.ContactCriteria{
		FirstName: in.FirstName,
		LastName:  in.LastName,
		Company:   in.Properties[crm.PropCompany],
	}
	key := dedupe.Key(c.tenant, "contact", criteria.FirstName, criteria.LastName, criteria.Company)
	// A name-only request matches any company, so it must not race one that names a company.
	namesKey := dedupe.Key(c.tenant, "contact", criteria.FirstName, criteria.LastName, "")

	if c.guard != nil {
		unlock := c.guard.Lock(namesKey)
		defer unlock()

		if v, ok := c.guard.Recall(key); ok {
			if existing, ok := v.(*crm.Contact); ok && criteria.Matches(existing) {
				dedupeMatches.WithLabelValues("contact", "memo").Inc()
				return existing, CreateOutcome{Existing: true, Message: MsgContactExists}, nil
			}
		}
	}

	candidates, err := client.SearchContacts(ctx, criteria)
	if err != nil {
		return nil, CreateOutcome{}, fmt.Errorf("searching contacts: %w", err)
	}
	for i := range candidates {
		if criteria.Matches(&candidates[i]) {
			dedupeMatches.WithLabelValues("contact", "search").Inc()
			return &candidates[i], CreateOutcome{Existing: true, Message: MsgContactExists}, nil
		}
	}

	created, err := client.CreateContact(ctx, in)
	if err != nil {
		return nil, CreateOutcome{}, fmt.Errorf("creating contact: %w", err)
	}

	if c.guard != nil {
		// A later request without a company matches on names alone.
		keys := []string{key}
		if criteria.Company != "" {
			keys = append(keys, namesKey)
		}
		c.guard.Remember(created, keys...)
	}
	return created, CreateOutcome{Message: MsgContactCreated}, nil
}

// CreateCompany returns an existing company with exactly in.Name or creates a new one.
func (c *Creator) CreateCompany(ctx context.Context, client crm.Client, in crm.CompanyInput) (*crm.Company, CreateOutcome, error) {
	criteria := crm.CompanyCriteria{Name: in.Name}
	key := dedupe.Key(c.tenant, "company", criteria.Name)

	if c.guard != nil {
		unlock := c.guard.Lock(key)
		defer unlock()

		if v, ok := c.guard.Recall(key); ok {
			if existing, ok := v.(*crm.Company); ok && criteria.Matches(existing) {
				dedupeMatches.WithLabelValues("company", "memo").Inc()
				return existing, CreateOutcome{Existing: true, Message: MsgCompanyExists}, nil
			}
		}
	}

	candidates, err := client.SearchCompanies(ctx, criteria)
	if err != nil {
		return nil, CreateOutcome{}, fmt.Errorf("searching companies: %w", err)
	}
	for i := range candidates {
		if criteria.Matches(&candidates[i]) {
			dedupeMatches.WithLabelValues("company", "search").Inc()
			return &candidates[i], CreateOutcome{Existing: true, Message: MsgCompanyExists}, nil
		}
	}

	created, err := client.CreateCompany(ctx, in)
	if err != nil {
		return nil, CreateOutcome{}, fmt.Errorf("creating company: %w", err)
	}
	if c.guard != nil {
		c.guard.Remember(created, key)
	}
	return created, CreateOutcome{Message: MsgCompanyCreated}, nil
}
