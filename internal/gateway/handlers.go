// ABOUTME: HTTP handlers for the action endpoint, health probes and the debug echo
// ABOUTME: Action responses always use the {status, message, data} envelope

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/2389/hubspot-gateway/internal/bridge"
	"github.com/2389/hubspot-gateway/internal/credential"
)

// handleAction decodes one action request and writes the dispatcher's envelope.
func (g *Gateway) handleAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, OPTIONS")
		writeJSON(w, http.StatusMethodNotAllowed, bridge.Envelope{
			Status:  bridge.StatusError,
			Message: "method " + r.Method + " not allowed; use POST",
		})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	req, err := bridge.DecodeRequest(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = &bridge.Error{Kind: bridge.KindMalformedRequest, Message: "request body too large", Err: err}
		}
		res := g.dispatcher.Reject(r.Context(), "", err)
		writeJSON(w, res.HTTPStatus, res.Envelope)
		return
	}

	res := g.dispatcher.Dispatch(r.Context(), r.Header, req)
	writeJSON(w, res.HTTPStatus, res.Envelope)
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady returns 200 OK when the store, if configured, answers a ping.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	if g.store != nil {
		if err := g.store.Ping(r.Context()); err != nil {
			g.logger.Warn("readiness check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": "store unreachable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready", "provider": g.config.CRM.Provider})
}

// echoResponse is the body of /debug/echo.
type echoResponse struct {
	Received          map[string]any    `json:"received"`
	CredentialPresent bool              `json:"credentialPresent"`
	CredentialSource  credential.Source `json:"credentialSource,omitempty"`
}

// handleEcho returns the received JSON body with credential fields replaced
// and reports whether a usable credential was supplied.
func (g *Gateway) handleEcho(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST, OPTIONS")
		writeJSON(w, http.StatusMethodNotAllowed, bridge.Envelope{Status: bridge.StatusError, Message: "use POST"})
		return
	}

	received := map[string]any{}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxRequestBodySize))
	dec.UseNumber()
	if err := dec.Decode(&received); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, bridge.Envelope{
			Status:  bridge.StatusError,
			Message: "request body must be a JSON object",
			Data:    bridge.ErrorData{Kind: bridge.KindMalformedRequest},
		})
		return
	}

	present, source := credential.Present(r.Header, credentialFields(received))
	redactCredentials(received)

	writeJSON(w, http.StatusOK, echoResponse{
		Received:          received,
		CredentialPresent: present,
		CredentialSource:  source,
	})
}

// credentialFields picks the string-valued credential fields out of a raw body.
func credentialFields(body map[string]any) credential.Fields {
	var f credential.Fields
	if v, ok := body[credential.FieldAccessToken].(string); ok {
		f.AccessToken = &v
	}
	if v, ok := body[credential.FieldHubSpotAccessToken].(string); ok {
		f.HubSpotAccessToken = &v
	}
	return f
}

// redactCredentials replaces any key that looks like a credential, at any depth.
func redactCredentials(v any) {
	switch val := v.(type) {
	case map[string]any:
		for k, inner := range val {
			if credential.IsSensitiveKey(k) {
				val[k] = credential.Redacted
				continue
			}
			redactCredentials(inner)
		}
	case []any:
		for _, inner := range val {
			redactCredentials(inner)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
