// Package dedupe serialises create requests that share a lock key within one process and
// remembers recently created records for a short window, so a second create that
// races the first (or outruns the provider's search index) returns the same record.
package dedupe
