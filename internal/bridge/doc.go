// Package bridge turns action requests into CRM operations.
//
// A Dispatcher checks the action name, resolves the caller's credential, validates the
// payload, builds a per-request crm.Client and runs exactly one operation. The outcome is
// always a Result: an Envelope of {status, message, data} and the HTTP status the front
// end should return.
//
// Contact and company creation search for an exact existing match first (see Creator).
// Recent engagements cover the last 72 hours, newest first (see Aggregator).
package bridge
