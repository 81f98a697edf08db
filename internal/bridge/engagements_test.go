// ABOUTME: Tests for the recent engagements aggregator
// ABOUTME: Window boundaries, newest-first ordering, and the per-company fallback

package bridge

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/hubspot-gateway/internal/crm"
	"github.com/2389/hubspot-gateway/internal/crm/crmtest"
)

var testNow = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func engagementAt(id string, ago time.Duration) crm.Engagement {
	return crm.Engagement{ID: id, Type: crm.EngagementNote, Timestamp: testNow.Add(-ago)}
}

func ids(items []crm.Engagement) []string {
	out := make([]string, len(items))
	for i, e := range items {
		out[i] = e.ID
	}
	return out
}

func TestAggregator_WindowAndOrder(t *testing.T) {
	fake := crmtest.New()
	fake.Engagements = []crm.Engagement{
		engagementAt("old", 73*time.Hour),
		engagementAt("mid", 24*time.Hour),
		engagementAt("edge", 72*time.Hour),
		engagementAt("new", time.Hour),
		engagementAt("future", -time.Hour),
		engagementAt("almost-old", 71*time.Hour+59*time.Minute),
	}

	got, err := NewAggregator(0, fixedNow).Recent(context.Background(), fake)
	require.NoError(t, err)

	assert.Equal(t, []string{"new", "mid", "almost-old", "edge"}, ids(got))
}

func TestAggregator_TiesOrderedByID(t *testing.T) {
	fake := crmtest.New()
	fake.Engagements = []crm.Engagement{
		engagementAt("b", time.Hour),
		engagementAt("a", time.Hour),
		engagementAt("c", 2*time.Hour),
	}

	got, err := NewAggregator(0, fixedNow).Recent(context.Background(), fake)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(got))
}

func TestAggregator_EmptyWindow(t *testing.T) {
	fake := crmtest.New()
	fake.Engagements = []crm.Engagement{engagementAt("old", 100*time.Hour)}

	got, err := NewAggregator(0, fixedNow).Recent(context.Background(), fake)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestAggregator_CustomWindow(t *testing.T) {
	fake := crmtest.New()
	fake.Engagements = []crm.Engagement{
		engagementAt("in", 30*time.Minute),
		engagementAt("out", 2*time.Hour),
	}

	got, err := NewAggregator(time.Hour, fixedNow).Recent(context.Background(), fake)
	require.NoError(t, err)
	assert.Equal(t, []string{"in"}, ids(got))
}

func TestAggregator_FallsBackToCompanyActivity(t *testing.T) {
	fake := crmtest.New()
	fake.NoRecentFeed = true
	fake.Companies = []crm.Company{{ID: "co-1", Name: "Acme"}, {ID: "co-2", Name: "Globex"}}
	fake.Engagements = []crm.Engagement{
		engagementAt("e1", time.Hour),
		engagementAt("e2", 2*time.Hour),
		engagementAt("shared", 3*time.Hour),
		engagementAt("stale", 80*time.Hour),
	}
	fake.CompanyEngagements["co-1"] = []string{"e1", "shared", "stale"}
	fake.CompanyEngagements["co-2"] = []string{"e2", "shared"}

	got, err := NewAggregator(0, fixedNow).Recent(context.Background(), fake)
	require.NoError(t, err)

	assert.Equal(t, []string{"e1", "e2", "shared"}, ids(got))
	assert.Equal(t, 2, fake.Calls("GetCompanyActivity"))

	owners := map[string]string{}
	for _, e := range got {
		require.NotNil(t, e.Owner)
		assert.Equal(t, crm.OwnerCompany, e.Owner.Type)
		owners[e.ID] = e.Owner.ID
	}
	assert.Equal(t, "co-1", owners["e1"])
	assert.Equal(t, "co-2", owners["e2"])
	assert.Equal(t, "co-1", owners["shared"], "first company in list order owns shared engagements")
}

func TestAggregator_FeedAndFallbackAgreeOnActivityTime(t *testing.T) {
	// held an hour ago, last edited five days ago
	held := engagementAt("held", time.Hour)
	held.CreatedAt = testNow.Add(-120 * time.Hour)
	held.LastUpdated = testNow.Add(-120 * time.Hour)
	// edited just now, about last week
	edited := engagementAt("edited", 7*24*time.Hour)
	edited.LastUpdated = testNow

	for _, noFeed := range []bool{false, true} {
		fake := crmtest.New()
		fake.NoRecentFeed = noFeed
		fake.Companies = []crm.Company{{ID: "co-1", Name: "Acme"}}
		fake.Engagements = []crm.Engagement{held, edited}
		fake.CompanyEngagements["co-1"] = []string{"held", "edited"}

		got, err := NewAggregator(0, fixedNow).Recent(context.Background(), fake)
		require.NoError(t, err)
		assert.Equal(t, []string{"held"}, ids(got), "fallback=%v", noFeed)
	}
}

func TestAggregator_FallbackErrorPropagates(t *testing.T) {
	fake := crmtest.New()
	fake.NoRecentFeed = true
	fake.Companies = []crm.Company{{ID: "co-1", Name: "Acme"}}
	fake.Errors["GetCompanyActivity"] = &crm.ProviderError{StatusCode: 500, Message: "upstream down"}

	_, err := NewAggregator(0, fixedNow).Recent(context.Background(), fake)
	require.Error(t, err)

	var pe *crm.ProviderError
	assert.True(t, errors.As(err, &pe))
}

func TestAggregator_FeedErrorPropagates(t *testing.T) {
	fake := crmtest.New()
	fake.Errors["ListRecentEngagements"] = errors.New("feed broken")

	_, err := NewAggregator(0, fixedNow).Recent(context.Background(), fake)
	assert.Error(t, err)
	assert.Equal(t, 0, fake.Calls("ListCompanies"))
}
