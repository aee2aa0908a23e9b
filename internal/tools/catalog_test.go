// ABOUTME: Tests for the declarative catalog and its generated handlers.
// ABOUTME: Covers table sanity, field defaulting, query building, and admin tools.

package tools

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oncolink/aria-gateway/internal/aria"
)

// fakeExecutor records the last call and returns a canned response.
type fakeExecutor struct {
	processType   string
	processFields map[string]any
	execPath      string
	execQuery     url.Values

	resp any
	err  error
}

func (f *fakeExecutor) Execute(ctx context.Context, path string, body any, query url.Values) (any, error) {
	f.execPath, f.execQuery = path, query
	return f.resp, f.err
}

func (f *fakeExecutor) Process(ctx context.Context, requestType string, fields map[string]any) (any, error) {
	f.processType, f.processFields = requestType, fields
	return f.resp, f.err
}

// fakeSession implements SessionControl without network access.
type fakeSession struct {
	creds    aria.Credentials
	tokenErr error
	valid    bool
}

func (f *fakeSession) SetCredentials(creds aria.Credentials) { f.creds = creds }

func (f *fakeSession) Token(ctx context.Context) (string, error) {
	if f.tokenErr != nil {
		return "", f.tokenErr
	}
	f.valid = true
	return "tok", nil
}

func (f *fakeSession) Status() aria.SessionStatus {
	return aria.SessionStatus{
		BaseURL:    f.creds.BaseURL,
		Username:   f.creds.Username,
		TokenValid: f.valid,
		ExpiresAt:  time.Now().Add(time.Minute),
	}
}

func TestCatalog_TableSanity(t *testing.T) {
	seen := make(map[string]bool)
	for _, spec := range catalog() {
		assert.False(t, seen[spec.Name], "duplicate tool %s", spec.Name)
		seen[spec.Name] = true

		assert.NotEmpty(t, spec.Description, "tool %s", spec.Name)
		gateway := spec.RequestType != ""
		rest := spec.RestPath != ""
		assert.True(t, gateway != rest, "tool %s must have exactly one binding", spec.Name)
	}
}

func TestCatalog_AllSchemasCompile(t *testing.T) {
	r := NewRegistry(slog.Default())
	require.NoError(t, r.RegisterAll(Catalog(&fakeExecutor{}, &fakeSession{})))

	// The two admin tools ride along with the table.
	assert.NotNil(t, r.Get("authenticate"))
	assert.NotNil(t, r.Get("connection_status"))
	assert.Len(t, r.List(nil), len(catalog())+2)
}

func TestGatewayHandler_FieldDefaults(t *testing.T) {
	exec := &fakeExecutor{resp: []any{}}
	r := NewRegistry(slog.Default())
	require.NoError(t, r.RegisterAll(Catalog(exec, &fakeSession{})))

	// start_date/end_date omitted: their documented default is explicit null;
	// the supplied argument passes through untouched.
	result, err := r.Call(context.Background(), "t", "get_treatment_history", []byte(`{"patient_id":"P-9"}`))
	require.NoError(t, err)
	assert.False(t, result.IsError)

	assert.Equal(t, "GetPatientFieldTreatedInfoRequest", exec.processType)
	assert.Equal(t, map[string]any{
		"PatientId": "P-9",
		"StartDate": nil,
		"EndDate":   nil,
	}, exec.processFields)
}

func TestGatewayHandler_EmptyStringDefault(t *testing.T) {
	exec := &fakeExecutor{resp: []any{}}
	r := NewRegistry(slog.Default())
	require.NoError(t, r.RegisterAll(Catalog(exec, &fakeSession{})))

	_, err := r.Call(context.Background(), "t", "search_patients", []byte(`{"patient_id_1":"123"}`))
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"PatientId1": "123",
		"PatientId2": "",
		"FirstName":  "",
		"LastName":   "",
	}, exec.processFields)
}

func TestGatewayHandler_EmptyResultMessage(t *testing.T) {
	exec := &fakeExecutor{resp: []any{}}
	r := NewRegistry(slog.Default())
	require.NoError(t, r.RegisterAll(Catalog(exec, &fakeSession{})))

	result, err := r.Call(context.Background(), "t", "get_patient_diagnoses", []byte(`{"patient_id":"P-1"}`))
	require.NoError(t, err)
	assert.False(t, result.IsError, "empty result is informational, not an error")
	assert.Equal(t, "No records found.", result.Text)
}

func TestGatewayHandler_RendersWrappedRecords(t *testing.T) {
	exec := &fakeExecutor{resp: []any{
		map[string]any{
			"PatientId": map[string]any{"Value": "P-1"},
			"LastName":  map[string]any{"Value": "Doe"},
			"FirstName": map[string]any{"Value": "Jane"},
		},
	}}
	r := NewRegistry(slog.Default())
	require.NoError(t, r.RegisterAll(Catalog(exec, &fakeSession{})))

	result, err := r.Call(context.Background(), "t", "search_patients", []byte(`{"last_name":"Doe"}`))
	require.NoError(t, err)
	assert.Contains(t, result.Text, "ID: P-1")
	assert.Contains(t, result.Text, "Last: Doe")
}

func TestGatewayHandler_AckFailureBecomesErrorText(t *testing.T) {
	exec := &fakeExecutor{resp: map[string]any{"success": false, "errorMessage": "duplicate patient id"}}
	r := NewRegistry(slog.Default())
	require.NoError(t, r.RegisterAll(Catalog(exec, &fakeSession{})))

	result, err := r.Call(context.Background(), "t", "create_patient",
		[]byte(`{"patient_id":"P-1","first_name":"Jane","last_name":"Doe"}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text, "duplicate patient id")
}

func TestRESTHandler_QueryBuilding(t *testing.T) {
	exec := &fakeExecutor{resp: []any{}}
	r := NewRegistry(slog.Default())
	require.NoError(t, r.RegisterAll(Catalog(exec, &fakeSession{})))

	_, err := r.Call(context.Background(), "t", "list_patients", []byte(`{"search":"doe","limit":10}`))
	require.NoError(t, err)

	assert.Equal(t, "/patients", exec.execPath)
	assert.Equal(t, "doe", exec.execQuery.Get("search"))
	assert.Equal(t, "10", exec.execQuery.Get("limit"))
}

func TestRESTHandler_OmittedArgsStayOffTheQuery(t *testing.T) {
	exec := &fakeExecutor{resp: []any{}}
	r := NewRegistry(slog.Default())
	require.NoError(t, r.RegisterAll(Catalog(exec, &fakeSession{})))

	_, err := r.Call(context.Background(), "t", "list_billing", []byte(`{"patientId":"P-1"}`))
	require.NoError(t, err)

	assert.Equal(t, "/billing", exec.execPath)
	assert.Equal(t, "P-1", exec.execQuery.Get("patientId"))
	_, hasFrom := exec.execQuery["from"]
	assert.False(t, hasFrom)
}

func TestAuthenticateTool_ReplacesCredentialsWholesale(t *testing.T) {
	session := &fakeSession{creds: aria.Credentials{BaseURL: "https://aria.example.org"}}
	r := NewRegistry(slog.Default())
	require.NoError(t, r.RegisterAll(Catalog(&fakeExecutor{}, session)))

	result, err := r.Call(context.Background(), "t", "authenticate",
		[]byte(`{"client_id":"c","client_secret":"s","username":"u","password":"p"}`))
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Contains(t, result.Text, "Authenticated against https://aria.example.org as u.")

	// Whole replacement: base URL kept from the prior credentials, every
	// other field comes from the call.
	assert.Equal(t, aria.Credentials{
		BaseURL:      "https://aria.example.org",
		ClientID:     "c",
		ClientSecret: "s",
		Username:     "u",
		Password:     "p",
	}, session.creds)
}

func TestAuthenticateTool_FailedExchange(t *testing.T) {
	session := &fakeSession{tokenErr: &aria.AuthError{Err: errors.New("token endpoint returned 401 Unauthorized")}}
	r := NewRegistry(slog.Default())
	require.NoError(t, r.RegisterAll(Catalog(&fakeExecutor{}, session)))

	result, err := r.Call(context.Background(), "t", "authenticate",
		[]byte(`{"base_url":"https://aria.example.org","client_id":"c","client_secret":"s","username":"u","password":"bad"}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Text, "Authentication failed:")
}

func TestConnectionStatusTool(t *testing.T) {
	session := &fakeSession{creds: aria.Credentials{BaseURL: "https://aria.example.org", Username: "svc"}}
	r := NewRegistry(slog.Default())
	require.NoError(t, r.RegisterAll(Catalog(&fakeExecutor{}, session)))

	result, err := r.Call(context.Background(), "t", "connection_status", nil)
	require.NoError(t, err)
	assert.Contains(t, result.Text, "No valid session token")

	_, err = session.Token(context.Background())
	require.NoError(t, err)

	result, err = r.Call(context.Background(), "t", "connection_status", nil)
	require.NoError(t, err)
	assert.Contains(t, result.Text, "Connected to https://aria.example.org as svc.")
}
