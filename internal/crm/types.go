// ABOUTME: CRM entity types shared by every adapter: contacts, companies, engagements
// ABOUTME: Also defines search criteria and create inputs used by the dedupe layer

package crm

import "time"

// Property names with special meaning to the bridge.
const (
	PropFirstName = "firstname"
	PropLastName  = "lastname"
	PropEmail     = "email"
	PropCompany   = "company"
	PropName      = "name"
)

// Contact is a person record in the CRM.
type Contact struct {
	ID         string            `json:"id"`
	FirstName  string            `json:"firstName"`
	LastName   string            `json:"lastName"`
	Email      string            `json:"email,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
	CreatedAt  time.Time         `json:"createdAt,omitzero"`
	UpdatedAt  time.Time         `json:"updatedAt,omitzero"`
}

// Company returns the contact's company property, or "" when unset.
func (c *Contact) Company() string {
	if c.Properties == nil {
		return ""
	}
	return c.Properties[PropCompany]
}

// Company is an organisation record in the CRM.
type Company struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Properties map[string]string `json:"properties,omitempty"`
	CreatedAt  time.Time         `json:"createdAt,omitzero"`
	UpdatedAt  time.Time         `json:"updatedAt,omitzero"`
}

// Engagement types known to the formatter. Providers may return others.
const (
	EngagementNote    = "NOTE"
	EngagementEmail   = "EMAIL"
	EngagementTask    = "TASK"
	EngagementMeeting = "MEETING"
	EngagementCall    = "CALL"
)

// Owner types for EntityRef.
const (
	OwnerContact = "contact"
	OwnerCompany = "company"
)

// EntityRef points an engagement back at the record it belongs to.
type EntityRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Associations lists the records an engagement is attached to.
type Associations struct {
	ContactIDs []string `json:"contactIds,omitempty"`
	CompanyIDs []string `json:"companyIds,omitempty"`
	DealIDs    []string `json:"dealIds,omitempty"`
	OwnerIDs   []string `json:"ownerIds,omitempty"`
}

// Engagement is a timestamped activity (note, email, call, ...). Read-only to the bridge.
type Engagement struct {
	ID           string       `json:"id"`
	Type         string       `json:"type"`
	Timestamp    time.Time    `json:"timestamp"`
	CreatedAt    time.Time    `json:"createdAt,omitzero"`
	LastUpdated  time.Time    `json:"lastUpdated,omitzero"`
	CreatedBy    string       `json:"createdBy,omitempty"`
	ModifiedBy   string       `json:"modifiedBy,omitempty"`
	Associations Associations `json:"associations"`
	Content      any          `json:"content,omitempty"`
	Owner        *EntityRef   `json:"owner,omitempty"`
}

// ContactCriteria narrows a contact search. Company is applied only when non-empty.
type ContactCriteria struct {
	FirstName string
	LastName  string
	Company   string
}

// Matches applies the same-entity rule: exact names, and exact company when one was asked for.
func (c ContactCriteria) Matches(contact *Contact) bool {
	if contact.FirstName != c.FirstName || contact.LastName != c.LastName {
		return false
	}
	if c.Company != "" && contact.Company() != c.Company {
		return false
	}
	return true
}

// CompanyCriteria narrows a company search.
type CompanyCriteria struct {
	Name string
}

// Matches reports whether company has exactly the requested name.
func (c CompanyCriteria) Matches(company *Company) bool {
	return company.Name == c.Name
}

// ContactInput is the field set sent on contact creation.
type ContactInput struct {
	FirstName  string
	LastName   string
	Email      string
	Properties map[string]string
}

// PropertyMap flattens the input into provider properties. Explicit properties win over
// the identity fields, matching how the create request merges them.
func (in ContactInput) PropertyMap() map[string]string {
	props := map[string]string{
		PropFirstName: in.FirstName,
		PropLastName:  in.LastName,
	}
	if in.Email != "" {
		props[PropEmail] = in.Email
	}
	for k, v := range in.Properties {
		props[k] = v
	}
	return props
}

// CompanyInput is the field set sent on company creation.
type CompanyInput struct {
	Name       string
	Properties map[string]string
}

// PropertyMap flattens the input into provider properties.
func (in CompanyInput) PropertyMap() map[string]string {
	props := map[string]string{PropName: in.Name}
	for k, v := range in.Properties {
		props[k] = v
	}
	return props
}
