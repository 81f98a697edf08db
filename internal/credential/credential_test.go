// ABOUTME: Tests for credential resolution precedence and redaction
// ABOUTME: Verifies raw tokens never leak through String, JSON, or slog output

package credential

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestResolve(t *testing.T) {
	tests := []struct {
		name       string
		header     http.Header
		body       Fields
		wantToken  string
		wantSource Source
		wantErr    bool
	}{
		{
			name:       "header only",
			header:     http.Header{"X-Hubspot-Access-Token": {"hdr-token"}},
			wantToken:  "hdr-token",
			wantSource: SourceHeader,
		},
		{
			name:       "header wins over both body fields",
			header:     http.Header{"X-Hubspot-Access-Token": {"hdr-token"}},
			body:       Fields{AccessToken: strPtr("body-token"), HubSpotAccessToken: strPtr("hs-token")},
			wantToken:  "hdr-token",
			wantSource: SourceHeader,
		},
		{
			name:       "accessToken wins over hubspotAccessToken",
			body:       Fields{AccessToken: strPtr("body-token"), HubSpotAccessToken: strPtr("hs-token")},
			wantToken:  "body-token",
			wantSource: SourceAccessToken,
		},
		{
			name:       "hubspotAccessToken alone",
			body:       Fields{HubSpotAccessToken: strPtr("hs-token")},
			wantToken:  "hs-token",
			wantSource: SourceHubSpotAccessToken,
		},
		{
			name:       "surrounding whitespace trimmed",
			body:       Fields{AccessToken: strPtr("  padded \n")},
			wantToken:  "padded",
			wantSource: SourceAccessToken,
		},
		{
			name:    "nothing present",
			wantErr: true,
		},
		{
			name:    "empty header is present and blank",
			header:  http.Header{"X-Hubspot-Access-Token": {""}},
			body:    Fields{AccessToken: strPtr("body-token")},
			wantErr: true,
		},
		{
			name:    "whitespace body field",
			body:    Fields{AccessToken: strPtr("   ")},
			wantErr: true,
		},
		{
			name:    "unrelated headers ignored",
			header:  http.Header{"Authorization": {"Bearer abc"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cred, err := Resolve(tt.header, tt.body)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMissingCredential)
				assert.True(t, cred.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantToken, cred.Token())
			assert.Equal(t, tt.wantSource, cred.Source())
		})
	}
}

func TestResolve_HeaderNameCaseInsensitive(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, "/", nil)
	require.NoError(t, err)
	req.Header.Set("x-hubspot-access-token", "lower")

	cred, err := Resolve(req.Header, Fields{})
	require.NoError(t, err)
	assert.Equal(t, "lower", cred.Token())
}

func TestCredential_Redaction(t *testing.T) {
	cred := New("pat-na1-secret-value", SourceHeader)

	assert.Equal(t, Redacted, cred.String())

	data, err := json.Marshal(map[string]any{"cred": cred})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "secret-value")
	assert.Contains(t, string(data), Redacted)

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("resolved", "credential", cred)
	assert.NotContains(t, buf.String(), "secret-value")
	assert.Contains(t, buf.String(), cred.Fingerprint())
}

func TestCredential_Fingerprint(t *testing.T) {
	a := New("token-a", SourceHeader)
	a2 := New("token-a", SourceAccessToken)
	b := New("token-b", SourceHeader)

	assert.Equal(t, a.Fingerprint(), a2.Fingerprint(), "fingerprint depends only on the token")
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
	assert.Len(t, a.Fingerprint(), 16)
	assert.NotContains(t, a.Fingerprint(), "token-a")
}

func TestPresent(t *testing.T) {
	ok, src := Present(nil, Fields{HubSpotAccessToken: strPtr("x")})
	assert.True(t, ok)
	assert.Equal(t, SourceHubSpotAccessToken, src)

	ok, src = Present(http.Header{}, Fields{AccessToken: strPtr("")})
	assert.False(t, ok)
	assert.Equal(t, SourceNone, src)
}

func TestIsSensitiveKey(t *testing.T) {
	for _, k := range []string{FieldAccessToken, FieldHubSpotAccessToken, HeaderName, "client_secret", "TOKEN"} {
		assert.True(t, IsSensitiveKey(k), k)
	}
	for _, k := range []string{"firstname", "tenant", "company_id"} {
		assert.False(t, IsSensitiveKey(k), k)
	}
}
