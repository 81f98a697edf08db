// ABOUTME: Engagement reads: per-company activity via v4 associations, recent activity via v3 search
// ABOUTME: Converts v1 engagement records into crm.Engagement with type-specific content

package hubspot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/2389/hubspot-gateway/internal/crm"
)

// v1 engagement record as returned by /engagements/v1/engagements/{id}, which the recent search also reads through.
type engagementRecord struct {
	Engagement struct {
		ID          int64  `json:"id"`
		Type        string `json:"type"`
		CreatedAt   int64  `json:"createdAt"`
		LastUpdated int64  `json:"lastUpdated"`
		CreatedBy   int64  `json:"createdBy"`
		ModifiedBy  int64  `json:"modifiedBy"`
		Timestamp   int64  `json:"timestamp"`
	} `json:"engagement"`
	Associations struct {
		ContactIDs []int64 `json:"contactIds"`
		CompanyIDs []int64 `json:"companyIds"`
		DealIDs    []int64 `json:"dealIds"`
		OwnerIDs   []int64 `json:"ownerIds"`
	} `json:"associations"`
	Metadata json.RawMessage `json:"metadata"`
}

type metadataAddress struct {
	Raw       string `json:"raw"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (a metadataAddress) address() crm.EmailAddress {
	return crm.EmailAddress{Raw: a.Raw, Email: a.Email, FirstName: a.FirstName, LastName: a.LastName}
}

// engagementMetadata is the union of the metadata fields used across engagement types.
type engagementMetadata struct {
	Body    string `json:"body"`
	Subject string `json:"subject"`
	Title   string `json:"title"`
	Status  string `json:"status"`

	// email
	From   metadataAddress   `json:"from"`
	To     []metadataAddress `json:"to"`
	Cc     []metadataAddress `json:"cc"`
	Bcc    []metadataAddress `json:"bcc"`
	Sender struct {
		Email string `json:"email"`
	} `json:"sender"`
	Text string `json:"text"`
	HTML string `json:"html"`

	// task
	ForObjectType string `json:"forObjectType"`

	// meeting
	StartTime            int64  `json:"startTime"`
	EndTime              int64  `json:"endTime"`
	InternalMeetingNotes string `json:"internalMeetingNotes"`

	// call
	FromNumber           string `json:"fromNumber"`
	ToNumber             string `json:"toNumber"`
	DurationMilliseconds *int64 `json:"durationMilliseconds"`
	Disposition          string `json:"disposition"`
}

func millis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func idString(id int64) string {
	if id == 0 {
		return ""
	}
	return strconv.FormatInt(id, 10)
}

func idStrings(ids []int64) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = strconv.FormatInt(id, 10)
	}
	return out
}

func addresses(in []metadataAddress) []crm.EmailAddress {
	out := make([]crm.EmailAddress, len(in))
	for i, a := range in {
		out[i] = a.address()
	}
	return out
}

// content formats metadata for the engagement type. Unknown types and unreadable
// metadata yield nil.
func content(engagementType string, raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	var m engagementMetadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil
	}

	switch engagementType {
	case crm.EngagementNote:
		return m.Body
	case crm.EngagementEmail:
		body := m.Text
		if body == "" {
			body = m.HTML
		}
		return crm.EmailContent{
			Subject: m.Subject,
			From:    m.From.address(),
			To:      addresses(m.To),
			Cc:      addresses(m.Cc),
			Bcc:     addresses(m.Bcc),
			Sender:  crm.EmailSender{Email: m.Sender.Email},
			Body:    body,
		}
	case crm.EngagementTask:
		return crm.TaskContent{Subject: m.Subject, Body: m.Body, Status: m.Status, ForObjectType: m.ForObjectType}
	case crm.EngagementMeeting:
		return crm.MeetingContent{
			Title:         m.Title,
			Body:          m.Body,
			StartTime:     millis(m.StartTime),
			EndTime:       millis(m.EndTime),
			InternalNotes: m.InternalMeetingNotes,
		}
	case crm.EngagementCall:
		return crm.CallContent{
			Body:        m.Body,
			FromNumber:  m.FromNumber,
			ToNumber:    m.ToNumber,
			DurationMs:  m.DurationMilliseconds,
			Status:      m.Status,
			Disposition: m.Disposition,
		}
	}
	return nil
}

func (r engagementRecord) toEngagement() crm.Engagement {
	e := r.Engagement
	return crm.Engagement{
		ID:          idString(e.ID),
		Type:        e.Type,
		Timestamp:   millis(e.Timestamp),
		CreatedAt:   millis(e.CreatedAt),
		LastUpdated: millis(e.LastUpdated),
		CreatedBy:   idString(e.CreatedBy),
		ModifiedBy:  idString(e.ModifiedBy),
		Associations: crm.Associations{
			ContactIDs: idStrings(r.Associations.ContactIDs),
			CompanyIDs: idStrings(r.Associations.CompanyIDs),
			DealIDs:    idStrings(r.Associations.DealIDs),
			OwnerIDs:   idStrings(r.Associations.OwnerIDs),
		},
		Content: content(e.Type, r.Metadata),
	}
}

// ownerFromAssociations picks the first associated company, else the first contact.
func ownerFromAssociations(a crm.Associations) *crm.EntityRef {
	switch {
	case len(a.CompanyIDs) > 0:
		return &crm.EntityRef{Type: crm.OwnerCompany, ID: a.CompanyIDs[0]}
	case len(a.ContactIDs) > 0:
		return &crm.EntityRef{Type: crm.OwnerContact, ID: a.ContactIDs[0]}
	}
	return nil
}

type associationPage struct {
	Results []struct {
		ToObjectID int64 `json:"toObjectId"`
	} `json:"results"`
	Paging *paging `json:"paging"`
}

// associatedEngagementIDs lists engagement ids attached to a company, following cursors.
func (c *Client) associatedEngagementIDs(ctx context.Context, companyID string) ([]int64, error) {
	var ids []int64
	after := ""
	for page := 1; ; page++ {
		q := url.Values{}
		q.Set("limit", "500")
		if after != "" {
			q.Set("after", after)
		}
		var p associationPage
		path := []string{"crm/v4/objects/companies", url.PathEscape(companyID), "associations/engagements"}
		if err := c.do(ctx, http.MethodGet, path, q, nil, &p); err != nil {
			return nil, err
		}
		for _, r := range p.Results {
			ids = append(ids, r.ToObjectID)
		}

		after = p.Paging.after()
		if after == "" || (c.cfg.MaxPages > 0 && page >= c.cfg.MaxPages) {
			return ids, nil
		}
	}
}

// GetCompanyActivity returns the company's engagements in association order.
func (c *Client) GetCompanyActivity(ctx context.Context, companyID string) ([]crm.Engagement, error) {
	var company object
	q := url.Values{"properties": {crm.PropName}}
	if err := c.do(ctx, http.MethodGet, []string{"crm/v3/objects/companies", url.PathEscape(companyID)}, q, nil, &company); err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			return nil, fmt.Errorf("company %s: %w", companyID, crm.ErrNotFound)
		}
		return nil, err
	}
	owner := &crm.EntityRef{Type: crm.OwnerCompany, ID: company.ID, Name: company.company().Name}

	ids, err := c.associatedEngagementIDs(ctx, companyID)
	if err != nil {
		return nil, err
	}

	return c.fetchEngagements(ctx, ids, func(crm.Engagement) *crm.EntityRef { return owner })
}

// fetchEngagements reads each v1 engagement concurrently, keeping the order of ids.
// Engagements deleted since their id was listed are skipped.
func (c *Client) fetchEngagements(ctx context.Context, ids []int64, owner func(crm.Engagement) *crm.EntityRef) ([]crm.Engagement, error) {
	records := make([]*crm.Engagement, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			var r engagementRecord
			path := []string{"engagements/v1/engagements", strconv.FormatInt(id, 10)}
			err := c.do(gctx, http.MethodGet, path, nil, nil, &r)
			if errors.Is(err, crm.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			e := r.toEngagement()
			e.Owner = owner(e)
			records[i] = &e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]crm.Engagement, 0, len(records))
	for _, e := range records {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out, nil
}

// engagementObjectTypes are the v3 object types searched for the recent feed.
var engagementObjectTypes = []string{"notes", "emails", "tasks", "meetings", "calls"}

// propTimestamp is the v3 property holding an engagement's activity time.
const propTimestamp = "hs_timestamp"

// ListRecentEngagements returns engagements whose activity timestamp is at or after
// since. Each engagement type is searched on hs_timestamp, then the matches are read
// through the v1 API so content is formatted like company activity.
func (c *Client) ListRecentEngagements(ctx context.Context, since time.Time) ([]crm.Engagement, error) {
	filters := []filter{{
		PropertyName: propTimestamp,
		Operator:     "GTE",
		Value:        strconv.FormatInt(since.UnixMilli(), 10),
	}}

	var ids []int64
	seen := make(map[int64]struct{})
	for _, objectType := range engagementObjectTypes {
		found, err := c.searchObjects(ctx, objectType, filters, []string{propTimestamp})
		if err != nil {
			return nil, fmt.Errorf("searching %s: %w", objectType, err)
		}
		for _, o := range found {
			id, err := strconv.ParseInt(o.ID, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("searching %s: invalid id %q", objectType, o.ID)
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	return c.fetchEngagements(ctx, ids, func(e crm.Engagement) *crm.EntityRef {
		return ownerFromAssociations(e.Associations)
	})
}
