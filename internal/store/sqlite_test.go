// ABOUTME: Tests for the SQLite store's sandbox records and tenant isolation
// ABOUTME: Uses file-backed and in-memory databases

package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/hubspot-gateway/internal/crm"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func TestNewSQLiteStore_CreatesParentDirs(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "gateway.db")
	store, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer store.Close()

	assert.NoError(t, store.Ping(context.Background()))
}

func TestNewSQLiteStore_Memory(t *testing.T) {
	store, err := NewSQLiteStore(MemoryPath)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.InsertCompany(ctx, "t1", &crm.Company{ID: "co-1", Name: "Acme"}))

	// a second query must see the same database
	companies, err := store.ListCompanies(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, companies, 1)
}

func TestStore_Contacts(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	contacts := []crm.Contact{
		{ID: "c-1", FirstName: "John", LastName: "Doe", Email: "john@example.com", Properties: map[string]string{"company": "Acme"}, CreatedAt: now, UpdatedAt: now},
		{ID: "c-2", FirstName: "john", LastName: "doe", CreatedAt: now, UpdatedAt: now},
		{ID: "c-3", FirstName: "John", LastName: "Doe", Properties: map[string]string{"company": "Globex"}, CreatedAt: now, UpdatedAt: now},
	}
	for i := range contacts {
		require.NoError(t, store.InsertContact(ctx, "tenant-a", &contacts[i]))
	}

	all, err := store.ListContacts(ctx, "tenant-a")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c-1", all[0].ID)
	assert.Equal(t, "Acme", all[0].Company())
	assert.Equal(t, now, all[0].CreatedAt)
	assert.NotNil(t, all[1].Properties)

	found, err := store.FindContacts(ctx, "tenant-a", "John", "Doe")
	require.NoError(t, err)
	require.Len(t, found, 2, "name match is case-sensitive")
	assert.Equal(t, "c-1", found[0].ID)
	assert.Equal(t, "c-3", found[1].ID)

	err = store.InsertContact(ctx, "tenant-a", &contacts[0])
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestStore_TenantIsolation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertContact(ctx, "tenant-a", &crm.Contact{ID: "c-1", FirstName: "Ada", LastName: "Lovelace"}))
	require.NoError(t, store.InsertCompany(ctx, "tenant-a", &crm.Company{ID: "co-1", Name: "Acme"}))
	// same ids are fine in another tenant
	require.NoError(t, store.InsertCompany(ctx, "tenant-b", &crm.Company{ID: "co-1", Name: "Other"}))

	contacts, err := store.ListContacts(ctx, "tenant-b")
	require.NoError(t, err)
	assert.Empty(t, contacts)

	_, err = store.GetCompany(ctx, "tenant-c", "co-1")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := store.GetCompany(ctx, "tenant-b", "co-1")
	require.NoError(t, err)
	assert.Equal(t, "Other", got.Name)
}

func TestStore_Companies(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.InsertCompany(ctx, "t", &crm.Company{ID: "co-1", Name: "Acme", Properties: map[string]string{"domain": "acme.test"}}))
	require.NoError(t, store.InsertCompany(ctx, "t", &crm.Company{ID: "co-2", Name: "ACME"}))

	found, err := store.FindCompanies(ctx, "t", "Acme")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "acme.test", found[0].Properties["domain"])

	all, err := store.ListCompanies(ctx, "t")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestStore_Engagements(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.InsertCompany(ctx, "t", &crm.Company{ID: "co-1", Name: "Acme"}))

	engagements := []crm.Engagement{
		{
			ID: "e-2", Type: crm.EngagementNote, Timestamp: base.Add(2 * time.Hour), LastUpdated: base.Add(2 * time.Hour),
			Associations: crm.Associations{CompanyIDs: []string{"co-1"}},
			Content:      "second",
		},
		{
			ID: "e-1", Type: crm.EngagementTask, Timestamp: base, LastUpdated: base,
			Associations: crm.Associations{CompanyIDs: []string{"co-1", "co-2"}, ContactIDs: []string{"c-1"}},
			Content:      crm.TaskContent{Subject: "Call back", Status: "NOT_STARTED"},
		},
		{
			ID: "e-3", Type: crm.EngagementCall, Timestamp: base.Add(-48 * time.Hour), LastUpdated: base.Add(-48 * time.Hour),
			Associations: crm.Associations{ContactIDs: []string{"c-1"}},
		},
	}
	for i := range engagements {
		require.NoError(t, store.InsertEngagement(ctx, "t", &engagements[i]))
	}

	activity, err := store.ListCompanyEngagements(ctx, "t", "co-1")
	require.NoError(t, err)
	require.Len(t, activity, 2)
	assert.Equal(t, "e-1", activity[0].ID)
	assert.Equal(t, "e-2", activity[1].ID)
	assert.Equal(t, base, activity[0].Timestamp)
	assert.Equal(t, []string{"c-1"}, activity[0].Associations.ContactIDs)

	raw, ok := activity[0].Content.(json.RawMessage)
	require.True(t, ok)
	var task crm.TaskContent
	require.NoError(t, json.Unmarshal(raw, &task))
	assert.Equal(t, "Call back", task.Subject)

	recent, err := store.ListEngagementsSince(ctx, "t", base.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "e-2", recent[0].ID)
	for _, e := range recent {
		assert.NotEqual(t, "e-3", e.ID, "old engagement excluded")
	}

	// Window is on activity time: a meeting edited long ago that happens now is recent,
	// a note touched just now about last week is not.
	meeting := crm.Engagement{
		ID: "e-4", Type: crm.EngagementMeeting, Timestamp: base.Add(time.Hour), LastUpdated: base.Add(-120 * time.Hour),
		CreatedAt: base.Add(-120 * time.Hour),
	}
	note := crm.Engagement{
		ID: "e-5", Type: crm.EngagementNote, Timestamp: base.Add(-7 * 24 * time.Hour), LastUpdated: base,
	}
	require.NoError(t, store.InsertEngagement(ctx, "t", &meeting))
	require.NoError(t, store.InsertEngagement(ctx, "t", &note))

	recent, err = store.ListEngagementsSince(ctx, "t", base.Add(-time.Hour))
	require.NoError(t, err)
	ids := make([]string, len(recent))
	for i, e := range recent {
		ids[i] = e.ID
	}
	assert.Equal(t, []string{"e-2", "e-4", "e-1"}, ids)

	err = store.InsertEngagement(ctx, "t", &engagements[0])
	assert.ErrorIs(t, err, ErrDuplicate)
}
