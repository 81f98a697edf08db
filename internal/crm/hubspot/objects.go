// ABOUTME: Contact and company operations over the HubSpot CRM v3 objects API
// ABOUTME: List and search follow paging.next.after cursors; search uses EQ filters

package hubspot

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/2389/hubspot-gateway/internal/crm"
)

const (
	objectContacts  = "contacts"
	objectCompanies = "companies"
)

// Properties requested on every contact and company read.
var (
	contactProperties = []string{
		crm.PropFirstName, crm.PropLastName, crm.PropEmail, crm.PropCompany,
		"phone", "jobtitle", "lifecyclestage", "createdate", "lastmodifieddate",
	}
	companyProperties = []string{
		crm.PropName, "domain", "industry", "phone", "city", "state", "country",
		"createdate", "hs_lastmodifieddate",
	}
)

// object is a v3 CRM object. HubSpot reports unset properties as null.
type object struct {
	ID         string             `json:"id"`
	Properties map[string]*string `json:"properties"`
	CreatedAt  time.Time          `json:"createdAt"`
	UpdatedAt  time.Time          `json:"updatedAt"`
}

func (o object) props() map[string]string {
	out := make(map[string]string, len(o.Properties))
	for k, v := range o.Properties {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}

func (o object) contact() crm.Contact {
	p := o.props()
	return crm.Contact{
		ID:         o.ID,
		FirstName:  p[crm.PropFirstName],
		LastName:   p[crm.PropLastName],
		Email:      p[crm.PropEmail],
		Properties: p,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

func (o object) company() crm.Company {
	p := o.props()
	return crm.Company{
		ID:         o.ID,
		Name:       p[crm.PropName],
		Properties: p,
		CreatedAt:  o.CreatedAt,
		UpdatedAt:  o.UpdatedAt,
	}
}

type paging struct {
	Next *struct {
		After string `json:"after"`
	} `json:"next"`
}

func (p *paging) after() string {
	if p == nil || p.Next == nil {
		return ""
	}
	return p.Next.After
}

type objectPage struct {
	Results []object `json:"results"`
	Paging  *paging  `json:"paging"`
}

type filter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type filterGroup struct {
	Filters []filter `json:"filters"`
}

type searchRequest struct {
	FilterGroups []filterGroup `json:"filterGroups"`
	Properties   []string      `json:"properties"`
	Limit        int           `json:"limit"`
	After        string        `json:"after,omitempty"`
}

type createRequest struct {
	Properties map[string]string `json:"properties"`
}

// collect follows cursors from fetch until exhausted or MaxPages is reached.
func (c *Client) collect(ctx context.Context, fetch func(ctx context.Context, after string) (objectPage, error)) ([]object, error) {
	var all []object
	after := ""
	for page := 1; ; page++ {
		p, err := fetch(ctx, after)
		if err != nil {
			return nil, err
		}
		all = append(all, p.Results...)

		after = p.Paging.after()
		if after == "" {
			return all, nil
		}
		if c.cfg.MaxPages > 0 && page >= c.cfg.MaxPages {
			return all, nil
		}
	}
}

func (c *Client) listObjects(ctx context.Context, objectType string, properties []string) ([]object, error) {
	return c.collect(ctx, func(ctx context.Context, after string) (objectPage, error) {
		q := url.Values{}
		q.Set("limit", strconv.Itoa(c.cfg.PageSize))
		q.Set("properties", strings.Join(properties, ","))
		if after != "" {
			q.Set("after", after)
		}
		var p objectPage
		err := c.do(ctx, http.MethodGet, []string{"crm/v3/objects", objectType}, q, nil, &p)
		return p, err
	})
}

func (c *Client) searchObjects(ctx context.Context, objectType string, filters []filter, properties []string) ([]object, error) {
	return c.collect(ctx, func(ctx context.Context, after string) (objectPage, error) {
		body := searchRequest{
			FilterGroups: []filterGroup{{Filters: filters}},
			Properties:   properties,
			Limit:        c.cfg.PageSize,
			After:        after,
		}
		var p objectPage
		err := c.do(ctx, http.MethodPost, []string{"crm/v3/objects", objectType, "search"}, nil, body, &p)
		return p, err
	})
}

func (c *Client) createObject(ctx context.Context, objectType string, props map[string]string) (object, error) {
	var o object
	err := c.do(ctx, http.MethodPost, []string{"crm/v3/objects", objectType}, nil, createRequest{Properties: props}, &o)
	return o, err
}

func (c *Client) ListContacts(ctx context.Context) ([]crm.Contact, error) {
	objs, err := c.listObjects(ctx, objectContacts, contactProperties)
	if err != nil {
		return nil, err
	}
	out := make([]crm.Contact, len(objs))
	for i, o := range objs {
		out[i] = o.contact()
	}
	return out, nil
}

func (c *Client) SearchContacts(ctx context.Context, criteria crm.ContactCriteria) ([]crm.Contact, error) {
	filters := []filter{
		{PropertyName: crm.PropFirstName, Operator: "EQ", Value: criteria.FirstName},
		{PropertyName: crm.PropLastName, Operator: "EQ", Value: criteria.LastName},
	}
	if criteria.Company != "" {
		filters = append(filters, filter{PropertyName: crm.PropCompany, Operator: "EQ", Value: criteria.Company})
	}

	objs, err := c.searchObjects(ctx, objectContacts, filters, contactProperties)
	if err != nil {
		return nil, err
	}
	out := make([]crm.Contact, len(objs))
	for i, o := range objs {
		out[i] = o.contact()
	}
	return out, nil
}

func (c *Client) CreateContact(ctx context.Context, in crm.ContactInput) (*crm.Contact, error) {
	o, err := c.createObject(ctx, objectContacts, in.PropertyMap())
	if err != nil {
		return nil, err
	}
	contact := o.contact()
	return &contact, nil
}

func (c *Client) ListCompanies(ctx context.Context) ([]crm.Company, error) {
	objs, err := c.listObjects(ctx, objectCompanies, companyProperties)
	if err != nil {
		return nil, err
	}
	out := make([]crm.Company, len(objs))
	for i, o := range objs {
		out[i] = o.company()
	}
	return out, nil
}

func (c *Client) SearchCompanies(ctx context.Context, criteria crm.CompanyCriteria) ([]crm.Company, error) {
	filters := []filter{{PropertyName: crm.PropName, Operator: "EQ", Value: criteria.Name}}

	objs, err := c.searchObjects(ctx, objectCompanies, filters, companyProperties)
	if err != nil {
		return nil, err
	}
	out := make([]crm.Company, len(objs))
	for i, o := range objs {
		out[i] = o.company()
	}
	return out, nil
}

func (c *Client) CreateCompany(ctx context.Context, in crm.CompanyInput) (*crm.Company, error) {
	o, err := c.createObject(ctx, objectCompanies, in.PropertyMap())
	if err != nil {
		return nil, err
	}
	company := o.company()
	return &company, nil
}
