// Package config handles configuration loading for hubspot-gateway.
//
// # Overview
//
// Configuration is loaded from a YAML file with environment variable
// expansion. Anything the file leaves out keeps its built-in default, so an
// empty file (or no file at all) yields a working HubSpot bridge on :8080.
//
// # Configuration File
//
// Locations (first match wins):
//
//  1. The --config flag
//  2. Path from the HUBSPOT_GATEWAY_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/hubspot-gateway/gateway.yaml (~/.config when unset)
//
// A missing file at location 3 is not an error.
//
// # Environment Variable Expansion
//
//	crm:
//	  base_url: "${HUBSPOT_BASE_URL}"
//
// Unset variables expand to the empty string.
//
// # Configuration Sections
//
//	server:
//	  http_addr: ":8080"
//	  read_timeout: "15s"
//	  write_timeout: "60s"
//	  shutdown_timeout: "10s"
//
//	crm:
//	  provider: "hubspot"          # hubspot, sandbox
//	  base_url: "https://api.hubapi.com"
//	  timeout: "30s"               # whole dispatched action
//	  page_size: 100
//	  max_pages: 0                 # 0 follows every cursor
//	  max_concurrency: 4
//	  requests_per_second: 9
//
//	dedupe:
//	  mode: "best_effort"          # best_effort, serialized
//	  ttl: "10m"
//	  size: 1024
//
//	database:
//	  path: "~/.local/share/hubspot-gateway/gateway.db"
//
//	audit:
//	  enabled: false
//
//	cors:
//	  allowed_origins: ["*"]
//
//	logging:
//	  level: "info"                # debug, info, warn, error
//	  format: "text"               # text, json
//
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
//	debug:
//	  echo: false
//
// The database is only opened when crm.provider is sandbox or audit is enabled.
package config
