// ABOUTME: Uniform response envelope returned for every action
// ABOUTME: {status, message, data}; errors carry their kind and upstream status in data

package bridge

import "net/http"

// Envelope statuses.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Envelope is the response body for every dispatched action.
type Envelope struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// ErrorData is the data payload of an error envelope.
type ErrorData struct {
	Kind           Kind `json:"kind"`
	UpstreamStatus int  `json:"upstreamStatus,omitempty"`
}

// Result pairs an envelope with the HTTP status the front end should use.
type Result struct {
	Envelope   Envelope
	HTTPStatus int
	// Kind is empty on success.
	Kind Kind
}

// OK reports whether the action succeeded.
func (r *Result) OK() bool {
	return r.Envelope.Status == StatusSuccess
}

func success(message string, data any) *Result {
	return &Result{
		Envelope:   Envelope{Status: StatusSuccess, Message: message, Data: data},
		HTTPStatus: http.StatusOK,
	}
}

func failure(e *Error) *Result {
	return &Result{
		Envelope: Envelope{
			Status:  StatusError,
			Message: e.Message,
			Data:    ErrorData{Kind: e.Kind, UpstreamStatus: e.UpstreamStatus},
		},
		HTTPStatus: e.Kind.HTTPStatus(),
		Kind:       e.Kind,
	}
}
