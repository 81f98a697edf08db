// Package mcp exposes the CRM actions to Model Context Protocol clients.
//
// # Overview
//
// Every dispatcher action is offered as a tool named hubspot_<action>, and the
// contact and company lists are also offered as read-only resources:
//
//   - hubspot://hubspot_contacts
//   - hubspot://hubspot_companies
//
// Two transports share one catalogue (tools.go):
//
//   - Server: a hand-written Streamable HTTP subset mounted at /mcp by the gateway
//   - NewSDKServer / ServeStdio: the official go-sdk server on stdin/stdout
//
// # Credentials
//
// Over HTTP the X-HubSpot-Access-Token header of each request is the
// credential; tool arguments may carry accessToken instead. Over stdio the
// token given at startup is used for every call. Sessions opened with a
// credential remember only its fingerprint and can only be deleted by the
// same credential.
//
// # Tool Results
//
// A tool result's single text content is the action envelope as JSON:
//
//	{"status":"success","message":"Retrieved 2 contacts","data":[...]}
//
// Failed actions set isError and carry the error envelope; JSON-RPC errors are
// reserved for protocol problems such as an unknown tool name.
//
// # Claude Desktop
//
//	{
//	  "mcpServers": {
//	    "hubspot": {
//	      "command": "hubspot-gateway",
//	      "args": ["stdio"],
//	      "env": {"HUBSPOT_ACCESS_TOKEN": "pat-..."}
//	    }
//	  }
//	}
package mcp
