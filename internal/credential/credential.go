// ABOUTME: Caller credential extraction from request headers and body fields
// ABOUTME: Credentials render as [REDACTED] everywhere except the explicit Token accessor

package credential

import (
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// HeaderName is the request header carrying the caller's CRM access token.
const HeaderName = "X-HubSpot-Access-Token"

// Body field names checked after the header, in order.
const (
	FieldAccessToken        = "accessToken"
	FieldHubSpotAccessToken = "hubspotAccessToken"
)

// Redacted replaces credential values in logs and responses.
const Redacted = "[REDACTED]"

// IsSensitiveKey reports whether a field or attribute name looks like it carries a
// credential. Covers accessToken, hubspotAccessToken and the header name.
func IsSensitiveKey(k string) bool {
	lower := strings.ToLower(k)
	return strings.Contains(lower, "token") || strings.Contains(lower, "secret")
}

// ErrMissingCredential is returned when no usable credential was supplied.
var ErrMissingCredential = errors.New("missing access credential")

// Source identifies where a credential was found.
type Source string

const (
	SourceNone               Source = ""
	SourceHeader             Source = "header"
	SourceAccessToken        Source = FieldAccessToken
	SourceHubSpotAccessToken Source = FieldHubSpotAccessToken
)

// fingerprintKey domain-separates tenant fingerprints from plain token hashes.
var fingerprintKey = []byte("hubspot-gateway/tenant-fingerprint/v1")

// Credential is an opaque caller token. The zero value is not a valid credential.
type Credential struct {
	token  string
	source Source
}

// New wraps a raw token. Callers outside this package use it for configured tokens
// (stdio mode, sandbox seeding).
func New(token string, source Source) Credential {
	return Credential{token: token, source: source}
}

// Token returns the raw token. Only adapters talking to the provider should call it.
func (c Credential) Token() string {
	return c.token
}

// Source reports where the credential was resolved from.
func (c Credential) Source() Source {
	return c.source
}

// IsZero reports whether the credential is empty.
func (c Credential) IsZero() bool {
	return strings.TrimSpace(c.token) == ""
}

// Fingerprint is a stable, non-reversible tenant key derived from the token.
func (c Credential) Fingerprint() string {
	h, err := blake2b.New256(fingerprintKey)
	if err != nil {
		// only fails for keys longer than 64 bytes
		panic(err)
	}
	h.Write([]byte(c.token))
	return hex.EncodeToString(h.Sum(nil)[:8])
}

func (c Credential) String() string {
	return Redacted
}

// LogValue keeps the token out of structured logs.
func (c Credential) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("token", Redacted),
		slog.String("tenant", c.Fingerprint()),
		slog.String("source", string(c.source)),
	)
}

func (c Credential) MarshalJSON() ([]byte, error) {
	return []byte(`"` + Redacted + `"`), nil
}

// Fields are the credential-bearing body fields of a request. A nil pointer means the
// field was not sent; a non-nil pointer to "" means it was sent empty.
type Fields struct {
	AccessToken        *string
	HubSpotAccessToken *string
}

// Resolve returns the caller credential. The first present location wins, in order:
// the X-HubSpot-Access-Token header, the accessToken field, the hubspotAccessToken field.
// A present but blank value is not skipped; it yields ErrMissingCredential.
func Resolve(header http.Header, body Fields) (Credential, error) {
	var (
		raw    string
		source Source
	)

	switch {
	case hasHeader(header, HeaderName):
		raw, source = header.Get(HeaderName), SourceHeader
	case body.AccessToken != nil:
		raw, source = *body.AccessToken, SourceAccessToken
	case body.HubSpotAccessToken != nil:
		raw, source = *body.HubSpotAccessToken, SourceHubSpotAccessToken
	default:
		return Credential{}, ErrMissingCredential
	}

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Credential{}, ErrMissingCredential
	}
	return Credential{token: raw, source: source}, nil
}

// Present reports whether any credential location is populated, without resolving it.
// Used by the echo endpoint, which must never reveal the value.
func Present(header http.Header, body Fields) (bool, Source) {
	cred, err := Resolve(header, body)
	if err != nil {
		return false, SourceNone
	}
	return true, cred.Source()
}

func hasHeader(header http.Header, name string) bool {
	if header == nil {
		return false
	}
	_, ok := header[http.CanonicalHeaderKey(name)]
	return ok
}
