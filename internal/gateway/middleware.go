// ABOUTME: HTTP middleware chain: request ids, access logging, status metrics and CORS
// ABOUTME: Every OPTIONS request is answered with 200 and no body

package gateway

import (
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/2389/hubspot-gateway/internal/credential"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-Id"

var statusCodeCounter = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "hubspot_gateway_http_status_code_counter",
	Help: "The number of HTTP responses per status code",
}, []string{"status_code"})

// allowedHeaders are the request headers browsers may send cross-origin.
var allowedHeaders = []string{
	"Content-Type",
	"Authorization",
	credential.HeaderName,
	"Mcp-Session-Id",
	"Mcp-Protocol-Version",
}

// chain applies mws so the first one is outermost.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// requestID echoes the caller's X-Request-Id or assigns a new one.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(RequestIDHeader, id)
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

// accessLog writes one structured line per request. Headers are never logged.
func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return handlers.CustomLoggingHandler(io.Discard, next, func(_ io.Writer, params handlers.LogFormatterParams) {
			logger.Info("access",
				"method", params.Request.Method,
				"path", params.URL.Path,
				"status", params.StatusCode,
				"size", params.Size,
				"remote_addr", params.Request.RemoteAddr,
				"request_id", params.Request.Header.Get(RequestIDHeader),
			)
		})
	}
}

// recordStatus counts responses by status code.
func recordStatus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := &wrappedResponseWriter{w, http.StatusOK}

		next.ServeHTTP(resp, r)

		statusCodeCounter.With(prometheus.Labels{
			"status_code": strconv.Itoa(resp.statusCode)}).Inc()
	})
}

type wrappedResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (ww *wrappedResponseWriter) WriteHeader(status int) {
	ww.statusCode = status
	ww.ResponseWriter.WriteHeader(status)
}

func (ww *wrappedResponseWriter) Unwrap() http.ResponseWriter {
	return ww.ResponseWriter
}

// cors adds Access-Control-* headers for the allowed origins.
func cors(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedHeaders(allowedHeaders),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions, http.MethodDelete}),
		handlers.ExposedHeaders([]string{"Mcp-Session-Id", RequestIDHeader}),
	)
}

// preflight runs OPTIONS requests through the CORS handler for its headers
// but always answers 200 with no body, even for incomplete preflights.
func preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(&preflightWriter{ResponseWriter: w}, r)
		w.WriteHeader(http.StatusOK)
	})
}

// preflightWriter keeps header writes and swallows status and body.
type preflightWriter struct {
	http.ResponseWriter
}

func (p *preflightWriter) WriteHeader(int) {}

func (p *preflightWriter) Write(b []byte) (int, error) {
	return len(b), nil
}
