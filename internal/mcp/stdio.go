// ABOUTME: MCP server over stdio built on the official Go SDK
// ABOUTME: Serves the same tools and resources as the HTTP endpoint with a process-wide access token

package mcp

import (
	"context"
	"errors"
	"net/http"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/2389/hubspot-gateway/internal/bridge"
	"github.com/2389/hubspot-gateway/internal/credential"
)

// NewSDKServer builds an SDK server whose tools dispatch with token as the
// header credential, so it takes precedence over an accessToken argument.
// An empty token leaves callers to pass accessToken in the tool arguments.
func NewSDKServer(d *bridge.Dispatcher, token, version string) (*gomcp.Server, error) {
	if d == nil {
		return nil, errors.New("dispatcher is required")
	}
	if version == "" {
		version = "dev"
	}

	header := http.Header{}
	if token != "" {
		header.Set(credential.HeaderName, token)
	}

	server := gomcp.NewServer(&gomcp.Implementation{Name: "hubspot-gateway", Version: version}, nil)

	for _, tool := range tools {
		server.AddTool(&gomcp.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		}, func(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
			res := callTool(ctx, d, header.Clone(), tool, req.Params.Arguments)
			return &gomcp.CallToolResult{
				Content: []gomcp.Content{&gomcp.TextContent{Text: envelopeText(res)}},
				IsError: !res.OK(),
			}, nil
		})
	}

	for _, def := range resources {
		server.AddResource(&gomcp.Resource{
			URI:         def.URI,
			Name:        def.Name,
			Description: def.Description,
			MIMEType:    def.MIMEType,
		}, func(ctx context.Context, req *gomcp.ReadResourceRequest) (*gomcp.ReadResourceResult, error) {
			res := readResource(ctx, d, header.Clone(), def)
			if !res.OK() {
				return nil, errors.New(res.Envelope.Message)
			}
			return &gomcp.ReadResourceResult{
				Contents: []*gomcp.ResourceContents{{URI: def.URI, MIMEType: def.MIMEType, Text: envelopeText(res)}},
			}, nil
		})
	}

	return server, nil
}

// ServeStdio runs the SDK server on stdin/stdout until ctx is done or the client disconnects.
func ServeStdio(ctx context.Context, d *bridge.Dispatcher, token, version string) error {
	server, err := NewSDKServer(d, token, version)
	if err != nil {
		return err
	}
	return server.Run(ctx, &gomcp.StdioTransport{})
}
