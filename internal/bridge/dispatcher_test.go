// ABOUTME: Tests for the action dispatcher's routing, error mapping, and credential handling
// ABOUTME: Uses the in-memory CRM fake; checks envelopes, status codes, logs, and audit entries

package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/hubspot-gateway/internal/credential"
	"github.com/2389/hubspot-gateway/internal/crm"
	"github.com/2389/hubspot-gateway/internal/crm/crmtest"
)

const testToken = "pat-na1-secret-token"

type recordingAuditor struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (r *recordingAuditor) RecordAction(_ context.Context, e AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func authHeader() http.Header {
	h := http.Header{}
	h.Set(credential.HeaderName, testToken)
	return h
}

func newTestDispatcher(fake *crmtest.Fake, seen *[]credential.Credential) *Dispatcher {
	return NewDispatcher(fake.Factory(seen), Options{Logger: quietLogger(), Now: fixedNow})
}

func errorData(t *testing.T, res *Result) ErrorData {
	t.Helper()
	data, ok := res.Envelope.Data.(ErrorData)
	require.True(t, ok, "error envelope carries ErrorData, got %T", res.Envelope.Data)
	return data
}

func TestDispatch_MissingCredential(t *testing.T) {
	fake := crmtest.New()
	var seen []credential.Credential
	d := newTestDispatcher(fake, &seen)

	for _, action := range Actions {
		t.Run(action, func(t *testing.T) {
			res := d.Dispatch(context.Background(), http.Header{}, &Request{Action: action})

			assert.Equal(t, http.StatusBadRequest, res.HTTPStatus)
			assert.Equal(t, StatusError, res.Envelope.Status)
			assert.Equal(t, KindMissingCredential, res.Kind)
			assert.Contains(t, res.Envelope.Message, credential.HeaderName)
		})
	}
	assert.Empty(t, seen, "no client is built without a credential")
}

func TestDispatch_BlankCredentialIsMissing(t *testing.T) {
	d := newTestDispatcher(crmtest.New(), nil)
	blank := "   "

	res := d.Dispatch(context.Background(), http.Header{}, &Request{Action: ActionGetContacts, AccessToken: &blank})
	assert.Equal(t, KindMissingCredential, res.Kind)
}

func TestDispatch_UnknownActionCheckedFirst(t *testing.T) {
	fake := crmtest.New()
	var seen []credential.Credential
	d := newTestDispatcher(fake, &seen)

	res := d.Dispatch(context.Background(), http.Header{}, &Request{Action: "delete_everything"})
	assert.Equal(t, http.StatusBadRequest, res.HTTPStatus)
	assert.Equal(t, KindUnknownAction, res.Kind)
	assert.Contains(t, res.Envelope.Message, "delete_everything")

	res = d.Dispatch(context.Background(), authHeader(), &Request{})
	assert.Equal(t, KindUnknownAction, res.Kind)

	assert.Empty(t, seen)
}

func TestDispatch_CredentialPrecedence(t *testing.T) {
	body := "body-token"
	other := "other-token"

	tests := []struct {
		name   string
		header http.Header
		req    Request
		want   string
	}{
		{"header beats body", authHeader(), Request{AccessToken: &body, HubSpotAccessToken: &other}, testToken},
		{"accessToken beats hubspotAccessToken", http.Header{}, Request{AccessToken: &body, HubSpotAccessToken: &other}, body},
		{"hubspotAccessToken alone", http.Header{}, Request{HubSpotAccessToken: &other}, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seen []credential.Credential
			d := newTestDispatcher(crmtest.New(), &seen)

			tt.req.Action = ActionGetContacts
			res := d.Dispatch(context.Background(), tt.header, &tt.req)
			require.True(t, res.OK(), res.Envelope.Message)

			require.Len(t, seen, 1)
			assert.Equal(t, tt.want, seen[0].Token())
		})
	}
}

func TestDispatch_GetContacts(t *testing.T) {
	fake := crmtest.New()
	fake.Contacts = []crm.Contact{seededContact("c-1", "John", "Doe", ""), seededContact("c-2", "Jane", "Roe", "")}
	d := newTestDispatcher(fake, nil)

	res := d.Dispatch(context.Background(), authHeader(), &Request{Action: ActionGetContacts})
	require.True(t, res.OK())
	assert.Equal(t, http.StatusOK, res.HTTPStatus)
	assert.Equal(t, "Retrieved 2 contacts", res.Envelope.Message)

	contacts, ok := res.Envelope.Data.([]crm.Contact)
	require.True(t, ok)
	assert.Len(t, contacts, 2)
}

func TestDispatch_EmptyListsEncodeAsArrays(t *testing.T) {
	d := newTestDispatcher(crmtest.New(), nil)

	res := d.Dispatch(context.Background(), authHeader(), &Request{Action: ActionGetCompanies})
	require.True(t, res.OK())

	data, err := json.Marshal(res.Envelope)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"success","message":"Retrieved 0 companies","data":[]}`, string(data))
}

func TestDispatch_CreateContactTwice(t *testing.T) {
	fake := crmtest.New()
	d := newTestDispatcher(fake, nil)
	req := &Request{Action: ActionCreateContact, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com"}

	first := d.Dispatch(context.Background(), authHeader(), req)
	require.True(t, first.OK(), first.Envelope.Message)
	assert.Equal(t, MsgContactCreated, first.Envelope.Message)

	second := d.Dispatch(context.Background(), authHeader(), req)
	require.True(t, second.OK())
	assert.Equal(t, MsgContactExists, second.Envelope.Message)

	assert.Equal(t, first.Envelope.Data.(*crm.Contact).ID, second.Envelope.Data.(*crm.Contact).ID)
	assert.Equal(t, 1, fake.Calls("CreateContact"))
}

func TestDispatch_PaddedNamesMatchExistingContact(t *testing.T) {
	fake := crmtest.New()
	fake.Contacts = []crm.Contact{{ID: "c-1", FirstName: "John", LastName: "Doe"}}
	d := newTestDispatcher(fake, nil)

	req, err := RequestFromArguments(ActionCreateContact, json.RawMessage(`{"firstname":"John ","lastname":" Doe"}`))
	require.NoError(t, err)
	res := d.Dispatch(context.Background(), authHeader(), req)
	require.True(t, res.OK(), res.Envelope.Message)
	assert.Equal(t, MsgContactExists, res.Envelope.Message)
	assert.Equal(t, "c-1", res.Envelope.Data.(*crm.Contact).ID)
	assert.Zero(t, fake.Calls("CreateContact"))

	req, err = RequestFromArguments(ActionCreateCompany, json.RawMessage(`{"name":"  Globex "}`))
	require.NoError(t, err)
	res = d.Dispatch(context.Background(), authHeader(), req)
	require.True(t, res.OK(), res.Envelope.Message)
	assert.Equal(t, "Globex", res.Envelope.Data.(*crm.Company).Name)
}

func TestDispatch_CreateCompany(t *testing.T) {
	fake := crmtest.New()
	d := newTestDispatcher(fake, nil)

	res := d.Dispatch(context.Background(), authHeader(), &Request{Action: ActionCreateCompany, Name: "Acme", Properties: map[string]string{"domain": "acme.test"}})
	require.True(t, res.OK())
	assert.Equal(t, MsgCompanyCreated, res.Envelope.Message)

	company := res.Envelope.Data.(*crm.Company)
	assert.Equal(t, "Acme", company.Name)
	assert.Equal(t, "acme.test", company.Properties["domain"])
}

func TestDispatch_MalformedPayloadSkipsProvider(t *testing.T) {
	fake := crmtest.New()
	var seen []credential.Credential
	d := newTestDispatcher(fake, &seen)

	res := d.Dispatch(context.Background(), authHeader(), &Request{Action: ActionCreateContact, FirstName: "Ada"})
	assert.Equal(t, http.StatusBadRequest, res.HTTPStatus)
	assert.Equal(t, KindMalformedRequest, res.Kind)
	assert.Equal(t, "lastname is required", res.Envelope.Message)
	assert.Empty(t, seen)
}

func TestDispatch_CompanyActivity(t *testing.T) {
	fake := crmtest.New()
	fake.Companies = []crm.Company{{ID: "co-1", Name: "Acme"}}
	fake.Engagements = []crm.Engagement{engagementAt("e1", time.Hour)}
	fake.CompanyEngagements["co-1"] = []string{"e1"}
	d := newTestDispatcher(fake, nil)

	res := d.Dispatch(context.Background(), authHeader(), &Request{Action: ActionGetCompanyActivity, CompanyID: "co-1"})
	require.True(t, res.OK())
	assert.Len(t, res.Envelope.Data.([]crm.Engagement), 1)

	res = d.Dispatch(context.Background(), authHeader(), &Request{Action: ActionGetCompanyActivity, CompanyID: "nope"})
	assert.Equal(t, http.StatusNotFound, res.HTTPStatus)
	assert.Equal(t, KindNotFound, res.Kind)
	assert.Equal(t, "company nope not found", res.Envelope.Message)
}

func TestDispatch_RecentEngagements(t *testing.T) {
	fake := crmtest.New()
	fake.Engagements = []crm.Engagement{engagementAt("older", 10*time.Hour), engagementAt("newer", time.Hour), engagementAt("stale", 90*time.Hour)}
	d := newTestDispatcher(fake, nil)

	res := d.Dispatch(context.Background(), authHeader(), &Request{Action: ActionGetRecentEngagements})
	require.True(t, res.OK())
	assert.Equal(t, "Retrieved 2 engagements from the last 72 hours", res.Envelope.Message)
	assert.Equal(t, []string{"newer", "older"}, ids(res.Envelope.Data.([]crm.Engagement)))
}

func TestDispatch_ErrorMapping(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantStatus   int
		wantKind     Kind
		wantUpstream int
	}{
		{"provider rejection", &crm.ProviderError{StatusCode: 401, Message: "expired token"}, http.StatusBadGateway, KindProvider, 401},
		{"provider unreachable", &crm.ProviderError{Message: "dial tcp: refused"}, http.StatusBadGateway, KindProvider, 0},
		{"timeout", context.DeadlineExceeded, http.StatusBadGateway, KindProvider, 0},
		{"unexpected", errors.New("nil map"), http.StatusInternalServerError, KindInternal, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := crmtest.New()
			fake.Errors["ListContacts"] = tt.err
			d := newTestDispatcher(fake, nil)

			res := d.Dispatch(context.Background(), authHeader(), &Request{Action: ActionGetContacts})
			assert.Equal(t, tt.wantStatus, res.HTTPStatus)
			assert.Equal(t, StatusError, res.Envelope.Status)
			data := errorData(t, res)
			assert.Equal(t, tt.wantKind, data.Kind)
			assert.Equal(t, tt.wantUpstream, data.UpstreamStatus)
		})
	}
}

func TestDispatch_ProviderEchoIsScrubbed(t *testing.T) {
	fake := crmtest.New()
	fake.Errors["ListCompanies"] = &crm.ProviderError{StatusCode: 401, Message: "token " + testToken + " is expired"}
	d := newTestDispatcher(fake, nil)

	res := d.Dispatch(context.Background(), authHeader(), &Request{Action: ActionGetCompanies})
	assert.NotContains(t, res.Envelope.Message, testToken)
	assert.Contains(t, res.Envelope.Message, credential.Redacted)
}

func TestDispatch_FactoryError(t *testing.T) {
	d := NewDispatcher(func(credential.Credential) (crm.Client, error) {
		return nil, errors.New("no adapter")
	}, Options{Logger: quietLogger()})

	res := d.Dispatch(context.Background(), authHeader(), &Request{Action: ActionGetContacts})
	assert.Equal(t, http.StatusInternalServerError, res.HTTPStatus)
	assert.Equal(t, KindInternal, res.Kind)
}

// ctxCheckingClient fails when the context it receives is already done.
type ctxCheckingClient struct {
	*crmtest.Fake
}

func (c ctxCheckingClient) ListContacts(ctx context.Context) ([]crm.Contact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.Fake.ListContacts(ctx)
}

func TestDispatch_CallerCancellationDoesNotAbortProvider(t *testing.T) {
	client := ctxCheckingClient{crmtest.New()}
	d := NewDispatcher(func(credential.Credential) (crm.Client, error) { return client, nil }, Options{Logger: quietLogger()})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := d.Dispatch(ctx, authHeader(), &Request{Action: ActionGetContacts})
	assert.True(t, res.OK(), res.Envelope.Message)
}

func TestDispatch_LogsAndAuditOmitToken(t *testing.T) {
	var buf bytes.Buffer
	auditor := &recordingAuditor{}
	fake := crmtest.New()
	d := NewDispatcher(fake.Factory(nil), Options{
		Logger:  slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
		Auditor: auditor,
		Now:     fixedNow,
	})

	d.Dispatch(context.Background(), authHeader(), &Request{Action: ActionCreateCompany, Name: "Acme"})
	d.Dispatch(context.Background(), http.Header{}, &Request{Action: ActionGetContacts})

	assert.NotContains(t, buf.String(), testToken)
	assert.Contains(t, buf.String(), credential.New(testToken, credential.SourceHeader).Fingerprint())

	require.Len(t, auditor.entries, 2)
	assert.Equal(t, ActionCreateCompany, auditor.entries[0].Action)
	assert.Equal(t, http.StatusOK, auditor.entries[0].Status)
	assert.Equal(t, credential.New(testToken, credential.SourceHeader).Fingerprint(), auditor.entries[0].Tenant)
	assert.Equal(t, testNow, auditor.entries[0].Time)

	assert.Equal(t, KindMissingCredential, auditor.entries[1].Kind)
	assert.Empty(t, auditor.entries[1].Tenant)
}

func TestDispatcher_RejectRecordsDecodeFailures(t *testing.T) {
	auditor := &recordingAuditor{}
	d := NewDispatcher(crmtest.New().Factory(nil), Options{Logger: quietLogger(), Auditor: auditor, Now: fixedNow})

	_, err := DecodeRequest(bytes.NewReader([]byte(`not json`)))
	require.Error(t, err)

	res := d.Reject(context.Background(), "", err)
	assert.Equal(t, http.StatusBadRequest, res.HTTPStatus)
	assert.Equal(t, KindMalformedRequest, res.Kind)

	require.Len(t, auditor.entries, 1)
	assert.Equal(t, KindMalformedRequest, auditor.entries[0].Kind)
	assert.Empty(t, auditor.entries[0].Tenant)
}
