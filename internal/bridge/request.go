// ABOUTME: Inbound action request parsing and per-action payload validation
// ABOUTME: Decodes the JSON envelope, stringifies free-form properties, and checks required fields

package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/2389/hubspot-gateway/internal/credential"
)

// Action names accepted by the dispatcher.
const (
	ActionGetContacts          = "get_contacts"
	ActionCreateContact        = "create_contact"
	ActionGetCompanies         = "get_companies"
	ActionCreateCompany        = "create_company"
	ActionGetCompanyActivity   = "get_company_activity"
	ActionGetRecentEngagements = "get_recent_engagements"
)

// Actions lists every supported action in a stable order.
var Actions = []string{
	ActionGetContacts,
	ActionCreateContact,
	ActionGetCompanies,
	ActionCreateCompany,
	ActionGetCompanyActivity,
	ActionGetRecentEngagements,
}

// IsAction reports whether name is a supported action.
func IsAction(name string) bool {
	for _, a := range Actions {
		if a == name {
			return true
		}
	}
	return false
}

// Request is one inbound action call.
type Request struct {
	Action             string  `json:"action"`
	AccessToken        *string `json:"accessToken,omitempty"`
	HubSpotAccessToken *string `json:"hubspotAccessToken,omitempty"`

	FirstName  string            `json:"firstname,omitempty"`
	LastName   string            `json:"lastname,omitempty"`
	Email      string            `json:"email,omitempty"`
	Name       string            `json:"name,omitempty"`
	CompanyID  string            `json:"company_id,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// CredentialFields exposes the body's credential-bearing fields to the resolver.
func (r *Request) CredentialFields() credential.Fields {
	return credential.Fields{
		AccessToken:        r.AccessToken,
		HubSpotAccessToken: r.HubSpotAccessToken,
	}
}

// wireRequest mirrors Request but accepts arbitrary JSON property values.
type wireRequest struct {
	Action             string         `json:"action"`
	AccessToken        *string        `json:"accessToken"`
	HubSpotAccessToken *string        `json:"hubspotAccessToken"`
	FirstName          string         `json:"firstname"`
	LastName           string         `json:"lastname"`
	Email              string         `json:"email"`
	Name               string         `json:"name"`
	CompanyID          string         `json:"company_id"`
	Properties         map[string]any `json:"properties"`
}

// DecodeRequest parses a JSON action request. Malformed input yields a KindMalformedRequest error.
func DecodeRequest(r io.Reader) (*Request, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var w wireRequest
	if err := dec.Decode(&w); err != nil {
		return nil, &Error{Kind: KindMalformedRequest, Message: "request body must be a JSON object", Err: err}
	}
	if dec.More() {
		return nil, newError(KindMalformedRequest, "request body must only contain one JSON object")
	}
	return w.toRequest()
}

// RequestFromArguments builds a request from MCP tool arguments (already JSON).
func RequestFromArguments(action string, args json.RawMessage) (*Request, error) {
	w := wireRequest{}
	if trimmed := bytes.TrimSpace(args); len(trimmed) > 0 && string(trimmed) != "null" {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		if err := dec.Decode(&w); err != nil {
			return nil, &Error{Kind: KindMalformedRequest, Message: "tool arguments must be a JSON object", Err: err}
		}
	}
	w.Action = action
	return w.toRequest()
}

// toRequest trims identity fields so validation, duplicate search and create
// all see the same values.
func (w *wireRequest) toRequest() (*Request, error) {
	props, err := stringifyProperties(w.Properties)
	if err != nil {
		return nil, err
	}
	return &Request{
		Action:             strings.TrimSpace(w.Action),
		AccessToken:        w.AccessToken,
		HubSpotAccessToken: w.HubSpotAccessToken,
		FirstName:          strings.TrimSpace(w.FirstName),
		LastName:           strings.TrimSpace(w.LastName),
		Email:              strings.TrimSpace(w.Email),
		Name:               strings.TrimSpace(w.Name),
		CompanyID:          strings.TrimSpace(w.CompanyID),
		Properties:         props,
	}, nil
}

// stringifyProperties converts JSON property values to the string form the CRM stores.
// Null values are dropped; objects and arrays are kept as compact JSON.
func stringifyProperties(in map[string]any) (map[string]string, error) {
	if len(in) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if strings.TrimSpace(k) == "" {
			return nil, newError(KindMalformedRequest, "property names must not be empty")
		}
		switch val := v.(type) {
		case nil:
			continue
		case string:
			out[k] = val
		case json.Number:
			out[k] = val.String()
		case bool:
			out[k] = strconv.FormatBool(val)
		default:
			data, err := json.Marshal(val)
			if err != nil {
				return nil, &Error{Kind: KindMalformedRequest, Message: fmt.Sprintf("property %q is not representable", k), Err: err}
			}
			out[k] = string(data)
		}
	}
	return out, nil
}

// Payloads validated per action.

type createContactPayload struct {
	FirstName string `validate:"required"`
	LastName  string `validate:"required"`
	Email     string `validate:"omitempty,email"`
}

type createCompanyPayload struct {
	Name string `validate:"required"`
}

type companyActivityPayload struct {
	CompanyID string `validate:"required"`
}

// payloadFieldNames maps struct fields to the wire names callers see.
var payloadFieldNames = map[string]string{
	"FirstName": "firstname",
	"LastName":  "lastname",
	"Email":     "email",
	"Name":      "name",
	"CompanyID": "company_id",
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// validatePayload checks the fields the action needs. Other fields are ignored.
func validatePayload(req *Request) error {
	var payload any
	switch req.Action {
	case ActionCreateContact:
		payload = createContactPayload{
			FirstName: strings.TrimSpace(req.FirstName),
			LastName:  strings.TrimSpace(req.LastName),
			Email:     strings.TrimSpace(req.Email),
		}
	case ActionCreateCompany:
		payload = createCompanyPayload{Name: strings.TrimSpace(req.Name)}
	case ActionGetCompanyActivity:
		payload = companyActivityPayload{CompanyID: strings.TrimSpace(req.CompanyID)}
	default:
		return nil
	}

	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Kind: KindMalformedRequest, Message: "invalid request", Err: err}
	}

	problems := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		name := payloadFieldNames[fe.Field()]
		switch fe.Tag() {
		case "required":
			problems = append(problems, name+" is required")
		case "email":
			problems = append(problems, name+" must be a valid email address")
		default:
			problems = append(problems, name+" is invalid")
		}
	}
	sort.Strings(problems)
	return &Error{Kind: KindMalformedRequest, Message: strings.Join(problems, "; "), Err: err}
}
