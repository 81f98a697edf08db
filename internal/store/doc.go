// Package store provides SQLite persistence for the gateway.
//
// # Interfaces
//
//   - SandboxStore: contacts, companies and engagements backing the sandbox CRM
//     provider. Every call takes a tenant key (the credential fingerprint), so one
//     database safely serves many tenants.
//   - AuditStore: the action log, one row per dispatched action.
//
// SQLiteStore implements both on a single database opened with modernc.org/sqlite.
// The schema is created on open; ":memory:" gives a private in-memory database
// (used by tests and the default sandbox configuration).
//
// # Data Models
//
// Sandbox records reuse the crm package types. Properties and associations are stored
// as JSON columns; engagement timestamps are stored as Unix milliseconds. Engagements
// are linked to companies through engagement_companies so company activity is an
// indexed join.
//
// ActionEntry never carries a credential. Tenants are identified by fingerprint only.
package store
