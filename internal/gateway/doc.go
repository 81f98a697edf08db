// Package gateway serves the HubSpot bridge over HTTP.
//
// # Overview
//
// The Gateway owns the HTTP server, the optional SQLite store and the
// action dispatcher. Each request resolves its own credential and gets a
// fresh CRM client; nothing tenant-specific is held between requests
// except the dedupe guard and, for the sandbox provider, the store rows
// partitioned by tenant fingerprint.
//
// # Endpoints
//
//   - POST / - run one action, response is the {status, message, data} envelope
//   - POST|DELETE /mcp - MCP Streamable HTTP transport exposing the actions as tools
//   - GET /health - liveness
//   - GET /health/ready - readiness, pings the store when one is open
//   - POST /debug/echo - echoes the body with credentials redacted (debug.echo only)
//   - GET /metrics - Prometheus exposition (metrics.enabled only)
//
// Every OPTIONS request returns 200 with an empty body. Responses carry
// Access-Control-* headers for the configured origins.
//
// # Middleware
//
// Requests pass through, outermost first: request id, access log, status
// code counter, OPTIONS short-circuit, CORS. The access log never records
// headers or bodies.
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//	err = gw.Run(ctx)
//
// Run returns nil once ctx is canceled and shutdown completes.
package gateway
