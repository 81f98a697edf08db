// Package hubspot implements crm.Client against the HubSpot REST API.
//
// Contacts and companies use the CRM v3 objects API. Company activity reads engagement
// associations from the v4 associations API and fetches each engagement from the v1
// engagements API. The recent feed searches each engagement object type on hs_timestamp
// and reads the matches through the same v1 endpoint.
//
// Requests authenticate with the caller's token as a bearer credential and are paced by
// a per-client token bucket. Nothing is retried.
package hubspot
