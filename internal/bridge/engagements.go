// ABOUTME: Recent engagements aggregation across the tenant's CRM
// ABOUTME: Collects engagements from the last 72 hours and orders them newest first

package bridge

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/hubspot-gateway/internal/crm"
)

// RecentWindow is how far back get_recent_engagements looks.
const RecentWindow = 72 * time.Hour

// fallbackConcurrency caps per-company activity fetches when the provider has no recent feed.
const fallbackConcurrency = 4

// Aggregator gathers recent engagements for one request.
type Aggregator struct {
	window time.Duration
	now    func() time.Time
}

// NewAggregator returns an aggregator over window ending at now(). Zero values use defaults.
func NewAggregator(window time.Duration, now func() time.Time) *Aggregator {
	if window <= 0 {
		window = RecentWindow
	}
	if now == nil {
		now = time.Now
	}
	return &Aggregator{window: window, now: now}
}

// Recent returns engagements whose timestamp falls within the window, newest first.
// Ties on timestamp are broken by id so the order is stable.
func (a *Aggregator) Recent(ctx context.Context, client crm.Client) ([]crm.Engagement, error) {
	now := a.now()
	since := now.Add(-a.window)

	items, err := client.ListRecentEngagements(ctx, since)
	if errors.Is(err, crm.ErrUnsupported) {
		items, err = a.collectByCompany(ctx, client)
	}
	if err != nil {
		return nil, fmt.Errorf("listing recent engagements: %w", err)
	}

	seen := make(map[string]struct{}, len(items))
	out := make([]crm.Engagement, 0, len(items))
	for _, e := range items {
		if e.Timestamp.Before(since) || e.Timestamp.After(now) {
			continue
		}
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// collectByCompany walks every company's activity. Engagements shared by several
// companies are reported once, owned by the first company that returned them.
func (a *Aggregator) collectByCompany(ctx context.Context, client crm.Client) ([]crm.Engagement, error) {
	companies, err := client.ListCompanies(ctx)
	if err != nil {
		return nil, err
	}

	results := make([][]crm.Engagement, len(companies))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(fallbackConcurrency)
	for i := range companies {
		company := companies[i]
		g.Go(func() error {
			items, err := client.GetCompanyActivity(gctx, company.ID)
			if errors.Is(err, crm.ErrNotFound) {
				// deleted between list and fetch
				return nil
			}
			if err != nil {
				return fmt.Errorf("company %s: %w", company.ID, err)
			}
			for j := range items {
				if items[j].Owner == nil {
					items[j].Owner = &crm.EntityRef{Type: crm.OwnerCompany, ID: company.ID, Name: company.Name}
				}
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []crm.Engagement
	for _, items := range results {
		all = append(all, items...)
	}
	return all, nil
}
