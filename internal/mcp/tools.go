// ABOUTME: Tool and resource catalogue shared by the HTTP and stdio MCP transports
// ABOUTME: Each tool maps to one dispatcher action and advertises a JSON input schema

package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/2389/hubspot-gateway/internal/bridge"
)

// ToolPrefix is prepended to action names to form tool names.
const ToolPrefix = "hubspot_"

// ResourceScheme is the URI scheme of the read-only resources.
const ResourceScheme = "hubspot://"

// ToolDef describes one MCP tool.
type ToolDef struct {
	Name        string
	Action      string
	Description string
	InputSchema *jsonschema.Schema
}

// ResourceDef describes one read-only MCP resource.
type ResourceDef struct {
	URI         string
	Name        string
	Description string
	MIMEType    string
	Action      string
}

func stringProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc}
}

func objectSchema(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	if props == nil {
		props = map[string]*jsonschema.Schema{}
	}
	// accessToken is accepted on every tool for clients that cannot set headers
	props["accessToken"] = stringProp("HubSpot private app access token, if not sent in the X-HubSpot-Access-Token header")
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

var tools = []ToolDef{
	{
		Name:        ToolPrefix + bridge.ActionGetContacts,
		Action:      bridge.ActionGetContacts,
		Description: "Get contacts from HubSpot (requires crm.objects.contacts.read scope)",
		InputSchema: objectSchema(nil),
	},
	{
		Name:        ToolPrefix + bridge.ActionCreateContact,
		Action:      bridge.ActionCreateContact,
		Description: "Create a new contact in HubSpot unless one with the same name (and company, if given) exists (requires crm.objects.contacts.write scope)",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"firstname":  stringProp("Contact's first name"),
			"lastname":   stringProp("Contact's last name"),
			"email":      stringProp("Contact's email address"),
			"properties": {Type: "object", Description: "Additional contact properties; properties.company narrows the duplicate check"},
		}, "firstname", "lastname"),
	},
	{
		Name:        ToolPrefix + bridge.ActionGetCompanies,
		Action:      bridge.ActionGetCompanies,
		Description: "Get companies from HubSpot (requires crm.objects.companies.read scope)",
		InputSchema: objectSchema(nil),
	},
	{
		Name:        ToolPrefix + bridge.ActionCreateCompany,
		Action:      bridge.ActionCreateCompany,
		Description: "Create a new company in HubSpot unless one with the same name exists (requires crm.objects.companies.write scope)",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"name":       stringProp("Company name"),
			"properties": {Type: "object", Description: "Additional company properties"},
		}, "name"),
	},
	{
		Name:        ToolPrefix + bridge.ActionGetCompanyActivity,
		Action:      bridge.ActionGetCompanyActivity,
		Description: "Get activity history for a specific company (requires crm.objects.companies.read scope)",
		InputSchema: objectSchema(map[string]*jsonschema.Schema{
			"company_id": stringProp("HubSpot company ID"),
		}, "company_id"),
	},
	{
		Name:        ToolPrefix + bridge.ActionGetRecentEngagements,
		Action:      bridge.ActionGetRecentEngagements,
		Description: "Get engagements from the last 72 hours across all companies, newest first",
		InputSchema: objectSchema(nil),
	},
}

var resources = []ResourceDef{
	{
		URI:         ResourceScheme + "hubspot_contacts",
		Name:        "HubSpot Contacts",
		Description: "List of HubSpot contacts (requires crm.objects.contacts.read scope)",
		MIMEType:    "application/json",
		Action:      bridge.ActionGetContacts,
	},
	{
		URI:         ResourceScheme + "hubspot_companies",
		Name:        "HubSpot Companies",
		Description: "List of HubSpot companies (requires crm.objects.companies.read scope)",
		MIMEType:    "application/json",
		Action:      bridge.ActionGetCompanies,
	},
}

// Tools returns the tool catalogue in a stable order.
func Tools() []ToolDef {
	out := make([]ToolDef, len(tools))
	copy(out, tools)
	return out
}

// Resources returns the resource catalogue.
func Resources() []ResourceDef {
	out := make([]ResourceDef, len(resources))
	copy(out, resources)
	return out
}

func lookupTool(name string) (ToolDef, bool) {
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolDef{}, false
}

func lookupResource(uri string) (ResourceDef, bool) {
	uri = strings.TrimRight(uri, "/")
	for _, r := range resources {
		if r.URI == uri {
			return r, true
		}
	}
	return ResourceDef{}, false
}

// callTool dispatches a tool call. The header carries the caller's credential;
// args may add accessToken or hubspotAccessToken.
func callTool(ctx context.Context, d *bridge.Dispatcher, header http.Header, tool ToolDef, args json.RawMessage) *bridge.Result {
	req, err := bridge.RequestFromArguments(tool.Action, args)
	if err != nil {
		return d.Reject(ctx, tool.Action, err)
	}
	return d.Dispatch(ctx, header, req)
}

// readResource dispatches the action behind a resource.
func readResource(ctx context.Context, d *bridge.Dispatcher, header http.Header, res ResourceDef) *bridge.Result {
	return d.Dispatch(ctx, header, &bridge.Request{Action: res.Action})
}

// envelopeText renders a result's envelope as the text content of a tool result.
func envelopeText(res *bridge.Result) string {
	data, err := json.Marshal(res.Envelope)
	if err != nil {
		return `{"status":"error","message":"failed to encode result"}`
	}
	return string(data)
}
