// ABOUTME: Tests for the sandbox CRM client and fixture seeding
// ABOUTME: Runs against an in-memory SQLite store, including a full dispatch round trip

package sandbox

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/hubspot-gateway/internal/bridge"
	"github.com/2389/hubspot-gateway/internal/credential"
	"github.com/2389/hubspot-gateway/internal/crm"
	"github.com/2389/hubspot-gateway/internal/store"
)

func newStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLiteStore(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newClient(t *testing.T, st store.SandboxStore, token string) *Client {
	t.Helper()
	c, err := New(st, credential.New(token, credential.SourceHeader))
	require.NoError(t, err)
	return c
}

func TestNew_RequiresCredential(t *testing.T) {
	_, err := New(newStore(t), credential.Credential{})
	assert.ErrorIs(t, err, credential.ErrMissingCredential)
}

func TestClient_CreateAndSearch(t *testing.T) {
	st := newStore(t)
	c := newClient(t, st, "tok-a")
	ctx := context.Background()

	created, err := c.CreateContact(ctx, crm.ContactInput{
		FirstName:  "Ada",
		LastName:   "Lovelace",
		Email:      "ada@example.com",
		Properties: map[string]string{crm.PropCompany: "Engines"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "ada@example.com", created.Email)

	found, err := c.SearchContacts(ctx, crm.ContactCriteria{FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, created.ID, found[0].ID)

	found, err = c.SearchContacts(ctx, crm.ContactCriteria{FirstName: "Ada", LastName: "Lovelace", Company: "Other"})
	require.NoError(t, err)
	assert.Empty(t, found)

	company, err := c.CreateCompany(ctx, crm.CompanyInput{Name: "Engines", Properties: map[string]string{"domain": "engines.test"}})
	require.NoError(t, err)

	companies, err := c.SearchCompanies(ctx, crm.CompanyCriteria{Name: "Engines"})
	require.NoError(t, err)
	require.Len(t, companies, 1)
	assert.Equal(t, company.ID, companies[0].ID)
	assert.Equal(t, "engines.test", companies[0].Properties["domain"])
}

func TestClient_TenantsAreIsolated(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	_, err := newClient(t, st, "tok-a").CreateCompany(ctx, crm.CompanyInput{Name: "Acme"})
	require.NoError(t, err)

	companies, err := newClient(t, st, "tok-b").ListCompanies(ctx)
	require.NoError(t, err)
	assert.Empty(t, companies)

	companies, err = newClient(t, st, "tok-a").ListCompanies(ctx)
	require.NoError(t, err)
	assert.Len(t, companies, 1)
}

const fixtureYAML = `
companies:
  - id: co-acme
    name: Acme
    properties:
      domain: acme.test
contacts:
  - firstname: John
    lastname: Doe
    email: john@acme.test
    properties:
      company: Acme
engagements:
  - id: e-note
    type: NOTE
    ago: 2h
    companies: [co-acme]
    content: "Renewal call went well"
  - id: e-task
    type: TASK
    ago: 30h
    companies: [co-acme]
    contacts: [c-1]
    content:
      subject: Send proposal
      status: NOT_STARTED
  - id: e-old
    type: CALL
    ago: 200h
    contacts: [c-1]
`

func TestSeedAndRead(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()
	cred := credential.New("tok-seed", credential.SourceHeader)
	now := time.Now()

	f, err := LoadFixture(strings.NewReader(fixtureYAML))
	require.NoError(t, err)

	res, err := Seed(ctx, st, cred, f, now)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Contacts: 1, Companies: 1, Engagements: 3}, res)

	c := newClient(t, st, "tok-seed")

	activity, err := c.GetCompanyActivity(ctx, "co-acme")
	require.NoError(t, err)
	require.Len(t, activity, 2)
	assert.Equal(t, "e-task", activity[0].ID, "oldest first")
	require.NotNil(t, activity[0].Owner)
	assert.Equal(t, "Acme", activity[0].Owner.Name)

	_, err = c.GetCompanyActivity(ctx, "co-missing")
	assert.ErrorIs(t, err, crm.ErrNotFound)

	recent, err := c.ListRecentEngagements(ctx, now.Add(-72*time.Hour))
	require.NoError(t, err)
	assert.Len(t, recent, 2)
	for _, e := range recent {
		require.NotNil(t, e.Owner)
		assert.Equal(t, crm.OwnerCompany, e.Owner.Type)
	}
}

func TestLoadFixture_RejectsUnknownFields(t *testing.T) {
	_, err := LoadFixture(strings.NewReader("companys:\n  - name: typo\n"))
	assert.Error(t, err)
}

func TestSeed_ValidatesRecords(t *testing.T) {
	st := newStore(t)
	cred := credential.New("tok", credential.SourceHeader)

	_, err := Seed(context.Background(), st, cred, &Fixture{Contacts: []FixtureContact{{FirstName: "OnlyFirst"}}}, time.Now())
	assert.Error(t, err)

	_, err = Seed(context.Background(), st, cred, &Fixture{Engagements: []FixtureEngagement{{Type: "NOTE", Ago: "yesterday"}}}, time.Now())
	assert.Error(t, err)
}

func TestDispatchAgainstSandbox(t *testing.T) {
	st := newStore(t)
	d := bridge.NewDispatcher(NewFactory(st), bridge.Options{})

	header := http.Header{}
	header.Set(credential.HeaderName, "tok-dispatch")
	req := &bridge.Request{Action: bridge.ActionCreateCompany, Name: "Initech"}

	first := d.Dispatch(context.Background(), header, req)
	require.True(t, first.OK(), first.Envelope.Message)
	assert.Equal(t, bridge.MsgCompanyCreated, first.Envelope.Message)

	second := d.Dispatch(context.Background(), header, req)
	require.True(t, second.OK())
	assert.Equal(t, bridge.MsgCompanyExists, second.Envelope.Message)
	assert.Equal(t, first.Envelope.Data.(*crm.Company).ID, second.Envelope.Data.(*crm.Company).ID)

	res := d.Dispatch(context.Background(), header, &bridge.Request{Action: bridge.ActionGetCompanyActivity, CompanyID: "nope"})
	assert.Equal(t, http.StatusNotFound, res.HTTPStatus)
}

func TestRecentUsesActivityTimestamp(t *testing.T) {
	st := newStore(t)
	cred := credential.New("tok-window", credential.SourceHeader)
	c := newClient(t, st, "tok-window")
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	acme, err := c.CreateCompany(ctx, crm.CompanyInput{Name: "Acme"})
	require.NoError(t, err)

	// booked five days ago, held an hour ago
	meeting := crm.Engagement{
		ID:           "m-1",
		Type:         crm.EngagementMeeting,
		Timestamp:    now.Add(-time.Hour),
		CreatedAt:    now.Add(-120 * time.Hour),
		LastUpdated:  now.Add(-120 * time.Hour),
		Associations: crm.Associations{CompanyIDs: []string{acme.ID}},
	}
	// edited just now, about something from last week
	note := crm.Engagement{
		ID:           "n-1",
		Type:         crm.EngagementNote,
		Timestamp:    now.Add(-7 * 24 * time.Hour),
		LastUpdated:  now,
		Associations: crm.Associations{CompanyIDs: []string{acme.ID}},
	}
	require.NoError(t, st.InsertEngagement(ctx, cred.Fingerprint(), &meeting))
	require.NoError(t, st.InsertEngagement(ctx, cred.Fingerprint(), &note))

	activity, err := c.GetCompanyActivity(ctx, acme.ID)
	require.NoError(t, err)
	require.Len(t, activity, 2)

	recent, err := bridge.NewAggregator(0, nil).Recent(ctx, c)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "m-1", recent[0].ID)
}
