package openapi2mcp

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aapmcp/openapi-mcp/pkg/auth"
	"github.com/aapmcp/openapi-mcp/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string][]string
	Header http.Header
	Body   string
}

type backend struct {
	*httptest.Server
	mu       sync.Mutex
	requests []recordedRequest
}

func newBackend(t *testing.T) *backend {
	t.Helper()
	b := &backend{}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.requests = append(b.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.Query(),
			Header: r.Header.Clone(),
			Body:   string(body),
		})
		b.mu.Unlock()

		switch {
		case strings.HasSuffix(r.URL.Path, "/text/"):
			_, _ = io.WriteString(w, "  plain text body\n")
		case strings.HasSuffix(r.URL.Path, "/empty/"):
			w.WriteHeader(http.StatusNoContent)
		case strings.HasSuffix(r.URL.Path, "/broken/"):
			http.Error(w, `{"detail": "boom"}`, http.StatusInternalServerError)
		default:
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"id": 42, "status": "successful"}`)
		}
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *backend) last(t *testing.T) recordedRequest {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	require.NotEmpty(t, b.requests, "backend received no request")
	return b.requests[len(b.requests)-1]
}

func (b *backend) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

type recordingCallObserver struct {
	mu       sync.Mutex
	outcomes []string
	requests int
}

func (o *recordingCallObserver) ToolCall(tool, outcome string) {
	o.mu.Lock()
	o.outcomes = append(o.outcomes, tool+":"+outcome)
	o.mu.Unlock()
}

func (o *recordingCallObserver) BackendRequest(string, time.Duration) {
	o.mu.Lock()
	o.requests++
	o.mu.Unlock()
}

func newTestRegistry(controllerURL, gatewayURL string) *registry.Registry {
	reg := registry.NewDefault()
	reg.RegisterURL("controller", controllerURL)
	reg.RegisterURL("gateway", gatewayURL)
	return reg
}

func newTestCaller(t *testing.T, reg *registry.Registry, opts ToolCallerOptions) *ToolCaller {
	t.Helper()
	doc := loadControllerSpec(t)
	tools := NewToolParser(doc, "controller", nil, nil, nil).ParseTools()
	caller := NewToolCaller("controller", nil, nil, reg, opts, nil)
	caller.Publish(doc, tools)
	return caller
}

func jwtContext() context.Context {
	return auth.WithIdentity(context.Background(), &auth.Identity{
		Principal:   "alice",
		HeaderName:  auth.JWTHeaderName,
		HeaderValue: "signed.jwt.value",
		VerifyCert:  true,
	})
}

func TestCallTool_SubstitutesPathAndDropsItFromQuery(t *testing.T) {
	b := newBackend(t)
	caller := newTestCaller(t, newTestRegistry(b.URL, b.URL), ToolCallerOptions{})

	result := caller.CallTool(jwtContext(), derivedName(t, "GET", "/v2/jobs/{id}/"), map[string]any{"id": float64(42)})

	assert.False(t, result.IsError)
	req := b.last(t)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/api/v2/jobs/42/", req.Path)
	assert.NotContains(t, req.Query, "id")
	assert.Empty(t, req.Query)
}

func TestCallTool_VersionedPathWithQuery(t *testing.T) {
	b := newBackend(t)
	caller := newTestCaller(t, newTestRegistry(b.URL, b.URL), ToolCallerOptions{})

	result := caller.CallTool(jwtContext(), "jobs_read", map[string]any{
		"id":         float64(7),
		"fields":     "name",
		"version":    "v9",
		"session_id": "llama-session",
	})

	assert.False(t, result.IsError)
	req := b.last(t)
	assert.Equal(t, "/api/v2/jobs/7/", req.Path)
	assert.Equal(t, map[string][]string{"fields": {"name"}}, req.Query)
	assert.Equal(t, "signed.jwt.value", req.Header.Get(auth.JWTHeaderName))
	assert.Empty(t, req.Header.Get("Content-Type"))
}

func TestCallTool_WrapsJSONResponse(t *testing.T) {
	b := newBackend(t)
	caller := newTestCaller(t, newTestRegistry(b.URL, b.URL), ToolCallerOptions{})

	text := resultText(t, caller.CallTool(jwtContext(), "jobs_read", map[string]any{"id": "1"}))

	var wrapped map[string]string
	require.NoError(t, json.Unmarshal([]byte(text), &wrapped))
	assert.Equal(t, `{"id": 42, "status": "successful"}`, wrapped["text"])
}

func TestCallTool_PlainTextAndEmptyResponses(t *testing.T) {
	b := newBackend(t)
	caller := newTestCaller(t, newTestRegistry(b.URL, b.URL), ToolCallerOptions{})

	assert.Equal(t, "plain text body", resultText(t, caller.CallTool(jwtContext(), "text_read", nil)))
	assert.Equal(t, "No response body", resultText(t, caller.CallTool(jwtContext(), "empty_create", nil)))
}

func TestCallTool_PostSendsJSONBody(t *testing.T) {
	b := newBackend(t)
	caller := newTestCaller(t, newTestRegistry(b.URL, b.URL), ToolCallerOptions{})

	result := caller.CallTool(jwtContext(), derivedName(t, "POST", "/api/v2/job_templates/{id}/launch/"), map[string]any{
		"id":         "12",
		"extra_vars": "limit: web",
		"session_id": "abc",
	})

	assert.False(t, result.IsError)
	req := b.last(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/v2/job_templates/12/launch/", req.Path)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"id": "12", "extra_vars": "limit: web"}`, req.Body)
}

func TestCallTool_MissingPathParameter(t *testing.T) {
	b := newBackend(t)
	caller := newTestCaller(t, newTestRegistry(b.URL, b.URL), ToolCallerOptions{})

	result := caller.CallTool(jwtContext(), "jobs_read", map[string]any{"fields": "name"})

	assert.True(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, strings.ToLower(text), "missing")
	assert.Contains(t, text, "id")
	assert.Zero(t, b.count())
}

func TestCallTool_MissingRequiredDeclaredPathParameter(t *testing.T) {
	b := newBackend(t)
	caller := newTestCaller(t, newTestRegistry(b.URL, b.URL), ToolCallerOptions{})

	result := caller.CallTool(jwtContext(), "hosts_read", map[string]any{"host_id": "3"})

	assert.True(t, result.IsError)
	assert.Equal(t, "Missing required path parameters: [inventory]", resultText(t, result))
	assert.Zero(t, b.count())
}

func TestCallTool_UnknownTool(t *testing.T) {
	obs := &recordingCallObserver{}
	caller := newTestCaller(t, newTestRegistry("https://controller.invalid", "https://gateway.invalid"), ToolCallerOptions{Observer: obs})

	result := caller.CallTool(context.Background(), "no_such_tool", nil)

	assert.True(t, result.IsError)
	assert.Equal(t, "Unknown function requested", resultText(t, result))
	assert.Equal(t, []string{"no_such_tool:unknown_tool"}, obs.outcomes)
}

func TestCallTool_OperationMissingFromCurrentDocument(t *testing.T) {
	caller := newTestCaller(t, newTestRegistry("https://controller.invalid", "https://gateway.invalid"), ToolCallerOptions{})
	tools := caller.Tools()
	caller.Publish(&Document{}, tools)

	result := caller.CallTool(context.Background(), "jobs_read", map[string]any{"id": 1})

	assert.Equal(t, "Could not find OpenAPI operation for function: jobs_read", resultText(t, result))
}

func TestCallTool_TransportError(t *testing.T) {
	b := newBackend(t)
	url := b.URL
	b.Close()
	obs := &recordingCallObserver{}
	caller := newTestCaller(t, newTestRegistry(url, url), ToolCallerOptions{Observer: obs, Timeout: 2 * time.Second})

	result := caller.CallTool(jwtContext(), "jobs_read", map[string]any{"id": 1})

	assert.True(t, result.IsError)
	assert.Contains(t, resultText(t, result), "connect")
	assert.Equal(t, []string{"jobs_read:backend_error"}, obs.outcomes)
	assert.Equal(t, 1, obs.requests)
}

func TestCallTool_ErrorStatus(t *testing.T) {
	b := newBackend(t)
	caller := newTestCaller(t, newTestRegistry(b.URL, b.URL), ToolCallerOptions{})

	result := caller.CallTool(jwtContext(), "broken_read", nil)

	assert.True(t, result.IsError)
	text := resultText(t, result)
	assert.Contains(t, text, "HTTP 500")
	assert.Contains(t, text, `{"detail": "boom"}`)
}

func TestCallTool_GatewayContextForTokenIdentity(t *testing.T) {
	b := newBackend(t)
	caller := newTestCaller(t, newTestRegistry("https://controller.invalid:8043", b.URL), ToolCallerOptions{})
	ctx := auth.WithIdentity(context.Background(), &auth.Identity{
		Principal:   "token",
		HeaderName:  auth.TokenHeaderName,
		HeaderValue: "Bearer abc",
		VerifyCert:  true,
	})

	result := caller.CallTool(ctx, "jobs_read", map[string]any{"id": 5})

	assert.False(t, result.IsError)
	req := b.last(t)
	assert.Equal(t, "/api/controller/v2/jobs/5/", req.Path)
	assert.Equal(t, "Bearer abc", req.Header.Get("Authorization"))
}

func TestCallTool_NopIdentityHeaderNotForwarded(t *testing.T) {
	b := newBackend(t)
	caller := newTestCaller(t, newTestRegistry(b.URL, b.URL), ToolCallerOptions{})
	id, err := auth.NopValidator{}.Validate(context.Background(), nil)
	require.NoError(t, err)

	caller.CallTool(auth.WithIdentity(context.Background(), id), "text_read", nil)

	req := b.last(t)
	assert.Empty(t, req.Header.Get(auth.NopHeaderName))
	assert.Equal(t, "/api/controller/v2/text/", req.Path)
}

func TestCallTool_ArgumentValidation(t *testing.T) {
	b := newBackend(t)
	obs := &recordingCallObserver{}
	caller := newTestCaller(t, newTestRegistry(b.URL, b.URL), ToolCallerOptions{ValidateArguments: true, Observer: obs})

	missing := caller.CallTool(jwtContext(), "jobs_read", map[string]any{"session_id": "x"})
	assert.True(t, missing.IsError)
	assert.Contains(t, resultText(t, missing), "Missing required parameter: 'id'")

	wrongType := caller.CallTool(jwtContext(), "jobs_read", map[string]any{"id": "seven"})
	assert.True(t, wrongType.IsError)

	unexpected := caller.CallTool(jwtContext(), "jobs_read", map[string]any{"id": 7, "bogus": true})
	assert.True(t, unexpected.IsError)

	ok := caller.CallTool(jwtContext(), "jobs_read", map[string]any{"id": 7, "session_id": "x"})
	assert.False(t, ok.IsError)

	assert.Equal(t, 1, b.count())
	assert.Equal(t, []string{
		"jobs_read:invalid_arguments",
		"jobs_read:invalid_arguments",
		"jobs_read:invalid_arguments",
		"jobs_read:success",
	}, obs.outcomes)
}

func TestCallTool_ConcurrentIdentitiesDoNotLeak(t *testing.T) {
	b := newBackend(t)
	caller := newTestCaller(t, newTestRegistry(b.URL, b.URL), ToolCallerOptions{})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token := "token-" + string(rune('a'+i))
			ctx := auth.WithIdentity(context.Background(), &auth.Identity{HeaderName: auth.JWTHeaderName, HeaderValue: token})
			caller.CallTool(ctx, "jobs_read", map[string]any{"id": i, "fields": token})
		}(i)
	}
	wg.Wait()

	b.mu.Lock()
	defer b.mu.Unlock()
	require.Len(t, b.requests, 20)
	for _, req := range b.requests {
		assert.Equal(t, req.Query["fields"][0], req.Header.Get(auth.JWTHeaderName))
	}
}

func TestFormatResponse(t *testing.T) {
	assert.Equal(t, `{"text":"[1,2]"}`, formatResponse("[1,2]"))
	assert.Equal(t, `{"text":"\"quoted\""}`, formatResponse(`"quoted"`))
	assert.Equal(t, `{"text":"\"<b>&</b>\""}`, formatResponse(`"<b>&</b>"`))
	assert.Equal(t, "not json", formatResponse("not json"))
}

func TestQueryValues(t *testing.T) {
	q := queryValues(map[string]any{
		"page":   float64(2),
		"name":   "web",
		"tags":   []any{"a", "b"},
		"active": true,
		"skip":   nil,
	})
	assert.Equal(t, "active=true&name=web&page=2&tags=a&tags=b", q.Encode())
}

func newCallerForSpec(t *testing.T, spec string, reg *registry.Registry) *ToolCaller {
	t.Helper()
	doc, err := LoadDocumentFromBytes([]byte(spec))
	require.NoError(t, err)
	tools := NewToolParser(doc, "controller", nil, nil, nil).ParseTools()
	caller := NewToolCaller("controller", nil, nil, reg, ToolCallerOptions{}, nil)
	caller.Publish(doc, tools)
	return caller
}

func TestCallTool_SendsDeclaredParameterNames(t *testing.T) {
	b := newBackend(t)
	caller := newCallerForSpec(t, `
openapi: 3.0.0
info: {title: Controller, version: v2}
paths:
  /api/v2/hosts/:
    parameters:
      - {name: "filter[name]", in: query, schema: {type: string}}
      - {name: page, in: query, schema: {type: integer}}
    get: {operationId: hosts_list, summary: List hosts}
    post: {operationId: hosts_create, summary: Create a host}
`, newTestRegistry(b.URL, b.URL))

	tool, ok := caller.Tools().Lookup("hosts_list")
	require.True(t, ok)
	assert.Contains(t, tool.InputSchema.Properties, "filtername")

	result := caller.CallTool(jwtContext(), "hosts_list", map[string]any{"filtername": "web01", "page": float64(2)})
	require.False(t, result.IsError, resultText(t, result))
	req := b.last(t)
	assert.Equal(t, "/api/v2/hosts/", req.Path)
	assert.Equal(t, map[string][]string{"filter[name]": {"web01"}, "page": {"2"}}, req.Query)

	result = caller.CallTool(jwtContext(), "hosts_create", map[string]any{"filtername": "web02"})
	require.False(t, result.IsError, resultText(t, result))
	assert.JSONEq(t, `{"filter[name]": "web02"}`, b.last(t).Body)
}

func TestCallTool_DeclaredNameWinsOverNormalized(t *testing.T) {
	b := newBackend(t)
	caller := newCallerForSpec(t, `
openapi: 3.0.0
info: {title: Controller, version: v2}
paths:
  /api/v2/hosts/:
    get:
      operationId: hosts_list
      parameters:
        - {name: "filter[name]", in: query, schema: {type: string}}
`, newTestRegistry(b.URL, b.URL))

	result := caller.CallTool(jwtContext(), "hosts_list", map[string]any{"filtername": "a", "filter[name]": "b"})
	require.False(t, result.IsError, resultText(t, result))
	assert.Equal(t, map[string][]string{"filter[name]": {"b"}}, b.last(t).Query)
}

func TestCallTool_SkipsOperationThatFailedToBuild(t *testing.T) {
	b := newBackend(t)
	spec := `
openapi: 3.0.0
info: {title: Controller, version: v2}
paths:
  /api/v2/legacy_hosts/:
    get:
      operationId: hosts_list
      parameters:
        - {name: "...", in: query, schema: {type: string}}
  /api/v2/hosts/:
    get: {operationId: hosts_list, summary: List hosts}
`
	caller := newCallerForSpec(t, spec, newTestRegistry(b.URL, b.URL))

	tool, ok := caller.Tools().Lookup("hosts_list")
	require.True(t, ok)
	assert.Equal(t, "/api/v2/hosts/", tool.Path)

	result := caller.CallTool(jwtContext(), "hosts_list", nil)
	require.False(t, result.IsError, resultText(t, result))
	assert.Equal(t, "/api/v2/hosts/", b.last(t).Path)

	doc, err := LoadDocumentFromBytes([]byte(spec))
	require.NoError(t, err)
	assert.NoError(t, SelfTest(doc, "controller", nil, nil, caller.Tools()))
}
