// ABOUTME: YAML fixtures for seeding a sandbox tenant with contacts, companies and engagements
// ABOUTME: Engagement times may be absolute or relative to the seed time

package sandbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/2389/hubspot-gateway/internal/credential"
	"github.com/2389/hubspot-gateway/internal/crm"
	"github.com/2389/hubspot-gateway/internal/store"
)

// Fixture is the on-disk seed format.
type Fixture struct {
	Companies   []FixtureCompany    `yaml:"companies"`
	Contacts    []FixtureContact    `yaml:"contacts"`
	Engagements []FixtureEngagement `yaml:"engagements"`
}

type FixtureCompany struct {
	ID         string            `yaml:"id"`
	Name       string            `yaml:"name"`
	Properties map[string]string `yaml:"properties"`
}

type FixtureContact struct {
	ID         string            `yaml:"id"`
	FirstName  string            `yaml:"firstname"`
	LastName   string            `yaml:"lastname"`
	Email      string            `yaml:"email"`
	Properties map[string]string `yaml:"properties"`
}

type FixtureEngagement struct {
	ID   string `yaml:"id"`
	Type string `yaml:"type"`
	// Ago places the engagement relative to the seed time, e.g. "3h". Ignored when
	// Timestamp is set.
	Ago       string    `yaml:"ago"`
	Timestamp time.Time `yaml:"timestamp"`
	Companies []string  `yaml:"companies"`
	Contacts  []string  `yaml:"contacts"`
	Content   any       `yaml:"content"`
}

// SeedResult counts what was written.
type SeedResult struct {
	Contacts    int
	Companies   int
	Engagements int
}

// LoadFixture decodes a YAML fixture.
func LoadFixture(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("parsing fixture: %w", err)
	}
	return &f, nil
}

// Seed writes f into cred's tenant. now anchors relative engagement times.
func Seed(ctx context.Context, st store.SandboxStore, cred credential.Credential, f *Fixture, now time.Time) (SeedResult, error) {
	var res SeedResult
	if cred.IsZero() {
		return res, credential.ErrMissingCredential
	}
	tenant := cred.Fingerprint()
	now = now.UTC().Truncate(time.Second)

	for i, fc := range f.Companies {
		if fc.Name == "" {
			return res, fmt.Errorf("company %d: name is required", i)
		}
		in := crm.CompanyInput{Name: fc.Name, Properties: fc.Properties}
		company := &crm.Company{
			ID:         orNewID(fc.ID),
			Name:       fc.Name,
			Properties: in.PropertyMap(),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := st.InsertCompany(ctx, tenant, company); err != nil {
			return res, fmt.Errorf("company %q: %w", fc.Name, err)
		}
		res.Companies++
	}

	for i, fc := range f.Contacts {
		if fc.FirstName == "" || fc.LastName == "" {
			return res, fmt.Errorf("contact %d: firstname and lastname are required", i)
		}
		in := crm.ContactInput{FirstName: fc.FirstName, LastName: fc.LastName, Email: fc.Email, Properties: fc.Properties}
		props := in.PropertyMap()
		contact := &crm.Contact{
			ID:         orNewID(fc.ID),
			FirstName:  props[crm.PropFirstName],
			LastName:   props[crm.PropLastName],
			Email:      props[crm.PropEmail],
			Properties: props,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := st.InsertContact(ctx, tenant, contact); err != nil {
			return res, fmt.Errorf("contact %s %s: %w", fc.FirstName, fc.LastName, err)
		}
		res.Contacts++
	}

	for i, fe := range f.Engagements {
		ts := fe.Timestamp
		if ts.IsZero() {
			ago := time.Duration(0)
			if fe.Ago != "" {
				d, err := time.ParseDuration(fe.Ago)
				if err != nil {
					return res, fmt.Errorf("engagement %d: invalid ago %q: %w", i, fe.Ago, err)
				}
				ago = d
			}
			ts = now.Add(-ago)
		}
		if fe.Type == "" {
			return res, fmt.Errorf("engagement %d: type is required", i)
		}

		e := &crm.Engagement{
			ID:          orNewID(fe.ID),
			Type:        fe.Type,
			Timestamp:   ts.UTC(),
			CreatedAt:   ts.UTC(),
			LastUpdated: ts.UTC(),
			Associations: crm.Associations{
				CompanyIDs: fe.Companies,
				ContactIDs: fe.Contacts,
			},
			Content: fe.Content,
		}
		if err := st.InsertEngagement(ctx, tenant, e); err != nil {
			return res, fmt.Errorf("engagement %s: %w", e.ID, err)
		}
		res.Engagements++
	}

	return res, nil
}

func orNewID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}
