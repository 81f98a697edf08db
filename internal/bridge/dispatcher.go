// ABOUTME: Action dispatcher: resolves the caller's credential and routes to one CRM operation
// ABOUTME: Every call ends in a Result holding the uniform envelope and its HTTP status

package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/2389/hubspot-gateway/internal/credential"
	"github.com/2389/hubspot-gateway/internal/crm"
	"github.com/2389/hubspot-gateway/internal/dedupe"
)

// DefaultTimeout bounds a single action's provider calls.
const DefaultTimeout = 30 * time.Second

// Auditor receives one record per dispatched action.
type Auditor interface {
	RecordAction(ctx context.Context, entry AuditEntry) error
}

// AuditEntry describes a finished action. It never carries the credential itself.
type AuditEntry struct {
	Time     time.Time
	Tenant   string
	Action   string
	Kind     Kind
	Status   int
	Duration time.Duration
}

// Options configures a Dispatcher. Zero values fall back to defaults.
type Options struct {
	// Guard enables serialized create deduplication. Nil means best effort.
	Guard   *dedupe.Guard
	Logger  *slog.Logger
	Auditor Auditor
	Timeout time.Duration
	// Window overrides RecentWindow.
	Window time.Duration
	Now    func() time.Time
}

// Dispatcher routes action requests to a per-request CRM client.
type Dispatcher struct {
	factory crm.Factory
	guard   *dedupe.Guard
	logger  *slog.Logger
	auditor Auditor
	timeout time.Duration
	window  time.Duration
	now     func() time.Time
}

// NewDispatcher creates a dispatcher that builds a client with factory for every request.
func NewDispatcher(factory crm.Factory, opts Options) *Dispatcher {
	d := &Dispatcher{
		factory: factory,
		guard:   opts.Guard,
		logger:  opts.Logger,
		auditor: opts.Auditor,
		timeout: opts.Timeout,
		window:  opts.Window,
		now:     opts.Now,
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	d.logger = d.logger.With("component", "dispatcher")
	if d.timeout <= 0 {
		d.timeout = DefaultTimeout
	}
	if d.window <= 0 {
		d.window = RecentWindow
	}
	if d.now == nil {
		d.now = time.Now
	}
	return d
}

// Dispatch executes req. header is consulted first for the credential; req's body fields after.
// Provider calls run detached from ctx's cancellation and are bounded by the configured timeout.
func (d *Dispatcher) Dispatch(ctx context.Context, header http.Header, req *Request) *Result {
	start := time.Now()

	var cred credential.Credential
	data, message, err := d.run(ctx, header, req, &cred)

	var res *Result
	if err != nil {
		be := classify(err)
		if !cred.IsZero() {
			be = scrub(be, cred)
		}
		res = failure(be)
	} else {
		res = success(message, data)
	}

	d.finish(ctx, req.Action, cred, res, time.Since(start))
	return res
}

// Reject records and returns a failed Result for a request that could not be decoded.
func (d *Dispatcher) Reject(ctx context.Context, action string, err error) *Result {
	res := failure(classify(err))
	d.finish(ctx, action, credential.Credential{}, res, 0)
	return res
}

func (d *Dispatcher) run(ctx context.Context, header http.Header, req *Request, out *credential.Credential) (any, string, error) {
	if req.Action == "" {
		return nil, "", newError(KindUnknownAction, "action is required; supported actions: %s", strings.Join(Actions, ", "))
	}
	if !IsAction(req.Action) {
		return nil, "", newError(KindUnknownAction, "unknown action %q; supported actions: %s", req.Action, strings.Join(Actions, ", "))
	}

	cred, err := credential.Resolve(header, req.CredentialFields())
	if err != nil {
		return nil, "", err
	}
	*out = cred

	if err := validatePayload(req); err != nil {
		return nil, "", err
	}

	client, err := d.factory(cred)
	if err != nil {
		return nil, "", fmt.Errorf("creating crm client: %w", err)
	}

	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	timer := time.Now()
	defer func() {
		actionDuration.WithLabelValues(req.Action).Observe(time.Since(timer).Seconds())
	}()

	switch req.Action {
	case ActionGetContacts:
		contacts, err := client.ListContacts(opCtx)
		if err != nil {
			return nil, "", err
		}
		return nonNil(contacts), fmt.Sprintf("Retrieved %d contacts", len(contacts)), nil

	case ActionCreateContact:
		contact, outcome, err := NewCreator(d.guard, cred.Fingerprint()).CreateContact(opCtx, client, crm.ContactInput{
			FirstName:  req.FirstName,
			LastName:   req.LastName,
			Email:      req.Email,
			Properties: req.Properties,
		})
		if err != nil {
			return nil, "", err
		}
		return contact, outcome.Message, nil

	case ActionGetCompanies:
		companies, err := client.ListCompanies(opCtx)
		if err != nil {
			return nil, "", err
		}
		return nonNil(companies), fmt.Sprintf("Retrieved %d companies", len(companies)), nil

	case ActionCreateCompany:
		company, outcome, err := NewCreator(d.guard, cred.Fingerprint()).CreateCompany(opCtx, client, crm.CompanyInput{
			Name:       req.Name,
			Properties: req.Properties,
		})
		if err != nil {
			return nil, "", err
		}
		return company, outcome.Message, nil

	case ActionGetCompanyActivity:
		id := strings.TrimSpace(req.CompanyID)
		items, err := client.GetCompanyActivity(opCtx, id)
		if errors.Is(err, crm.ErrNotFound) {
			return nil, "", &Error{Kind: KindNotFound, Message: fmt.Sprintf("company %s not found", id), Err: err}
		}
		if err != nil {
			return nil, "", err
		}
		return nonNil(items), fmt.Sprintf("Retrieved %d engagements for company %s", len(items), id), nil

	case ActionGetRecentEngagements:
		items, err := NewAggregator(d.window, d.now).Recent(opCtx, client)
		if err != nil {
			return nil, "", err
		}
		return nonNil(items), fmt.Sprintf("Retrieved %d engagements from the last %s", len(items), formatWindow(d.window)), nil
	}

	return nil, "", newError(KindInternal, "action %q has no handler", req.Action)
}

func (d *Dispatcher) finish(ctx context.Context, action string, cred credential.Credential, res *Result, elapsed time.Duration) {
	kind := string(res.Kind)
	if res.OK() {
		kind = "ok"
	}
	metricAction := action
	if !IsAction(action) {
		metricAction = "unknown"
	}
	actionCounter.WithLabelValues(metricAction, kind).Inc()

	tenant := ""
	if !cred.IsZero() {
		tenant = cred.Fingerprint()
	}

	attrs := []any{
		"action", action,
		"tenant", tenant,
		"status", res.HTTPStatus,
		"duration", elapsed,
	}
	switch {
	case res.OK():
		d.logger.Info("action completed", attrs...)
	case res.HTTPStatus >= http.StatusInternalServerError:
		d.logger.Error("action failed", append(attrs, "kind", kind, "error", res.Envelope.Message)...)
	default:
		d.logger.Warn("action rejected", append(attrs, "kind", kind, "error", res.Envelope.Message)...)
	}

	if d.auditor == nil {
		return
	}
	entry := AuditEntry{
		Time:     d.now(),
		Tenant:   tenant,
		Action:   action,
		Kind:     res.Kind,
		Status:   res.HTTPStatus,
		Duration: elapsed,
	}
	if auditErr := d.auditor.RecordAction(context.WithoutCancel(ctx), entry); auditErr != nil {
		d.logger.Warn("failed to record audit entry", "action", action, "error", auditErr)
	}
}

// scrub removes the raw token from an error message in case a provider echoed it back.
func scrub(e *Error, cred credential.Credential) *Error {
	token := cred.Token()
	if token == "" || !strings.Contains(e.Message, token) {
		return e
	}
	clean := *e
	clean.Message = strings.ReplaceAll(e.Message, token, credential.Redacted)
	return &clean
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func formatWindow(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%d hours", int(d/time.Hour))
	}
	return d.String()
}
