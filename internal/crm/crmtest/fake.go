// ABOUTME: In-memory crm.Client for tests, with call counters and error injection
// ABOUTME: Mimics provider search loosely (case-insensitive) so callers must apply exact matching

package crmtest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/2389/hubspot-gateway/internal/credential"
	"github.com/2389/hubspot-gateway/internal/crm"
)

// Fake is a thread-safe in-memory CRM. Exported slices may be seeded before use.
type Fake struct {
	mu sync.Mutex

	Contacts    []crm.Contact
	Companies   []crm.Company
	Engagements []crm.Engagement
	// CompanyEngagements maps company id to engagement ids.
	CompanyEngagements map[string][]string

	// Errors keyed by method name ("SearchContacts", "CreateCompany", ...).
	Errors map[string]error
	// NoRecentFeed makes ListRecentEngagements return crm.ErrUnsupported.
	NoRecentFeed bool
	// SearchHook runs after a search and before the result is returned.
	SearchHook func()

	calls  map[string]int
	nextID int
	now    func() time.Time
}

// New returns an empty fake.
func New() *Fake {
	return &Fake{
		CompanyEngagements: make(map[string][]string),
		Errors:             make(map[string]error),
		calls:              make(map[string]int),
		now:                time.Now,
	}
}

// Calls returns how many times method was invoked.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Factory returns a crm.Factory that hands out f and records the credentials it saw.
func (f *Fake) Factory(seen *[]credential.Credential) crm.Factory {
	var mu sync.Mutex
	return func(cred credential.Credential) (crm.Client, error) {
		if seen != nil {
			mu.Lock()
			*seen = append(*seen, cred)
			mu.Unlock()
		}
		return f, nil
	}
}

func (f *Fake) enter(method string) error {
	f.calls[method]++
	return f.Errors[method]
}

func (f *Fake) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *Fake) ListContacts(ctx context.Context) ([]crm.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListContacts"); err != nil {
		return nil, err
	}
	return append([]crm.Contact(nil), f.Contacts...), nil
}

func (f *Fake) SearchContacts(ctx context.Context, criteria crm.ContactCriteria) ([]crm.Contact, error) {
	f.mu.Lock()
	if err := f.enter("SearchContacts"); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	var out []crm.Contact
	for _, c := range f.Contacts {
		if !strings.EqualFold(c.FirstName, criteria.FirstName) || !strings.EqualFold(c.LastName, criteria.LastName) {
			continue
		}
		if criteria.Company != "" && !strings.EqualFold(c.Company(), criteria.Company) {
			continue
		}
		out = append(out, c)
	}
	hook := f.SearchHook
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

func (f *Fake) CreateContact(ctx context.Context, in crm.ContactInput) (*crm.Contact, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateContact"); err != nil {
		return nil, err
	}
	props := in.PropertyMap()
	c := crm.Contact{
		ID:         f.id("contact"),
		FirstName:  props[crm.PropFirstName],
		LastName:   props[crm.PropLastName],
		Email:      props[crm.PropEmail],
		Properties: props,
		CreatedAt:  f.now(),
		UpdatedAt:  f.now(),
	}
	f.Contacts = append(f.Contacts, c)
	return &c, nil
}

func (f *Fake) ListCompanies(ctx context.Context) ([]crm.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListCompanies"); err != nil {
		return nil, err
	}
	return append([]crm.Company(nil), f.Companies...), nil
}

func (f *Fake) SearchCompanies(ctx context.Context, criteria crm.CompanyCriteria) ([]crm.Company, error) {
	f.mu.Lock()
	if err := f.enter("SearchCompanies"); err != nil {
		f.mu.Unlock()
		return nil, err
	}
	var out []crm.Company
	for _, c := range f.Companies {
		if strings.EqualFold(c.Name, criteria.Name) {
			out = append(out, c)
		}
	}
	hook := f.SearchHook
	f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

func (f *Fake) CreateCompany(ctx context.Context, in crm.CompanyInput) (*crm.Company, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateCompany"); err != nil {
		return nil, err
	}
	props := in.PropertyMap()
	c := crm.Company{
		ID:         f.id("company"),
		Name:       props[crm.PropName],
		Properties: props,
		CreatedAt:  f.now(),
		UpdatedAt:  f.now(),
	}
	f.Companies = append(f.Companies, c)
	return &c, nil
}

func (f *Fake) GetCompanyActivity(ctx context.Context, companyID string) ([]crm.Engagement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetCompanyActivity"); err != nil {
		return nil, err
	}
	found := false
	for _, c := range f.Companies {
		if c.ID == companyID {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("company %s: %w", companyID, crm.ErrNotFound)
	}

	out := []crm.Engagement{}
	for _, id := range f.CompanyEngagements[companyID] {
		for _, e := range f.Engagements {
			if e.ID == id {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (f *Fake) ListRecentEngagements(ctx context.Context, since time.Time) ([]crm.Engagement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ListRecentEngagements"); err != nil {
		return nil, err
	}
	if f.NoRecentFeed {
		return nil, crm.ErrUnsupported
	}
	var out []crm.Engagement
	for _, e := range f.Engagements {
		if !e.Timestamp.Before(since) {
			out = append(out, e)
		}
	}
	return out, nil
}
