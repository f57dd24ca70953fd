// caller.go
package openapi2mcp

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aapmcp/openapi-mcp/pkg/auth"
	"github.com/aapmcp/openapi-mcp/pkg/registry"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"
)

// DefaultStripArgs are argument names agents inject into every call.
var DefaultStripArgs = []string{"session_id"}

// CallObserver records tool call outcomes and backend latency.
type CallObserver interface {
	ToolCall(tool, outcome string)
	BackendRequest(method string, elapsed time.Duration)
}

type nopCallObserver struct{}

func (nopCallObserver) ToolCall(string, string) {}
func (nopCallObserver) BackendRequest(string, time.Duration) {}

// ToolCallerOptions configures a ToolCaller.
type ToolCallerOptions struct {
	// Timeout bounds each backend request; zero means 30 seconds.
	Timeout time.Duration
	// StripArgs are removed from the arguments before use. Nil means
	// DefaultStripArgs.
	StripArgs []string
	// ValidateArguments checks arguments against the tool's input schema
	// before any request is built.
	ValidateArguments bool
	Observer          CallObserver
}

// catalog pairs a document with the tools parsed from it so both are
// replaced together.
type catalog struct {
	doc   *Document
	tools *Toolset
}

// ToolCaller turns tool invocations into backend HTTP requests.
type ToolCaller struct {
	service   string
	strategy  ToolNameStrategy
	rules     []ToolRule
	registry  *registry.Registry
	stripArgs []string
	validate  bool
	observer  CallObserver
	logger    *zap.Logger

	verifyingClient *http.Client
	insecureClient  *http.Client

	current atomic.Pointer[catalog]
}

// NewToolCaller returns a caller for tools of service. strategy and rules
// must match the ones the tools were parsed with.
func NewToolCaller(service string, strategy ToolNameStrategy, rules []ToolRule, reg *registry.Registry, opts ToolCallerOptions, logger *zap.Logger) *ToolCaller {
	if strategy == nil {
		strategy = ShortToolNameStrategy{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.StripArgs == nil {
		opts.StripArgs = DefaultStripArgs
	}
	if opts.Observer == nil {
		opts.Observer = nopCallObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	insecure := http.DefaultTransport.(*http.Transport).Clone()
	insecure.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // only used when the identity disables verification
	c := &ToolCaller{
		service:         service,
		strategy:        strategy,
		rules:           rules,
		registry:        reg,
		stripArgs:       opts.StripArgs,
		validate:        opts.ValidateArguments,
		observer:        opts.Observer,
		logger:          logger.Named("caller"),
		verifyingClient: &http.Client{Timeout: opts.Timeout, Transport: http.DefaultTransport.(*http.Transport).Clone()},
		insecureClient:  &http.Client{Timeout: opts.Timeout, Transport: insecure},
	}
	c.current.Store(&catalog{tools: newToolset(nil)})
	return c
}

// Publish replaces the document and tool set used to serve calls.
func (c *ToolCaller) Publish(doc *Document, tools *Toolset) {
	c.current.Store(&catalog{doc: doc, tools: tools})
}

// Tools returns the currently published tool set.
func (c *ToolCaller) Tools() *Toolset {
	return c.current.Load().tools
}

// operationRef locates the operation behind a tool in the current document.
type operationRef struct {
	item          *PathItem
	op            *Operation
	path          string
	versionInPath bool
}

// findOperation re-derives the operation a tool name was built from.
// Operations the parser could not build a tool for are passed over, so a
// later operation that took the name is the one found.
func findOperation(doc *Document, service string, strategy ToolNameStrategy, rules []ToolRule, name string) (operationRef, bool) {
	var ref operationRef
	found := false
	doc.forEachOperation(func(item *PathItem, op *Operation, path string, versionInPath bool) bool {
		if !IsToolMethod(op.Method) || !CheckToolRules(rules, path, op.Method, *op) {
			return true
		}
		candidate, err := toolName(service, strategy, path, op)
		if err != nil || candidate != name {
			return true
		}
		if _, err := buildInputSchema(strategy, MergedParameters(item, op), path, versionInPath); err != nil {
			return true
		}
		ref = operationRef{item: item, op: op, path: path, versionInPath: versionInPath}
		found = true
		return false
	})
	return ref, found
}

// CallTool dispatches one invocation. Failures are reported as error
// results so the agent can adapt; CallTool never returns a Go error.
func (c *ToolCaller) CallTool(ctx context.Context, name string, arguments map[string]any) *mcp.CallToolResult {
	c.logger.Debug("received tool call", zap.String("name", name), zap.Any("arguments", arguments))

	cat := c.current.Load()
	tool, ok := cat.tools.Lookup(name)
	if !ok {
		c.logger.Error("unknown function requested", zap.String("name", name))
		c.observer.ToolCall(name, "unknown_tool")
		return mcp.NewToolResultError("Unknown function requested")
	}

	ref, ok := findOperation(cat.doc, c.service, c.strategy, c.rules, name)
	if !ok {
		c.logger.Error("could not find OpenAPI operation for function", zap.String("name", name))
		c.observer.ToolCall(name, "operation_not_found")
		return mcp.NewToolResultError(fmt.Sprintf("Could not find OpenAPI operation for function: %s", name))
	}
	method := strings.ToUpper(ref.op.Method)

	params := make(map[string]any, len(arguments))
	for k, v := range arguments {
		params[k] = v
	}
	for _, k := range c.stripArgs {
		delete(params, k)
	}
	if ref.versionInPath {
		delete(params, DefaultVersionParamName)
	}

	if c.validate {
		if msg := validateArguments(tool.InputSchema, params); msg != "" {
			c.observer.ToolCall(name, "invalid_arguments")
			return mcp.NewToolResultError(msg)
		}
	}

	path, missingParam := c.substitutePath(ref.path, params)
	if missingParam != "" {
		c.logger.Error("missing parameter for substitution", zap.String("name", name), zap.String("parameter", missingParam))
		c.observer.ToolCall(name, "missing_parameter")
		return mcp.NewToolResultError(fmt.Sprintf("Missing parameter: '%s'", missingParam))
	}
	if method == http.MethodGet {
		for _, placeholder := range PathPlaceholders(ref.path) {
			delete(params, placeholder)
			if normalized, err := c.strategy.NormalizeToolParameterName(placeholder); err == nil {
				delete(params, normalized)
			}
		}
	}

	var missing []string
	for _, p := range MergedParameters(ref.item, ref.op) {
		if p.In != "path" || !p.Required {
			continue
		}
		if ref.versionInPath && p.Name == DefaultVersionParamName {
			continue
		}
		if _, ok := c.argument(arguments, p.Name); !ok {
			missing = append(missing, p.Name)
		}
	}
	if len(missing) > 0 {
		c.logger.Error("missing required path parameters", zap.String("name", name), zap.Strings("missing", missing))
		c.observer.ToolCall(name, "missing_parameter")
		return mcp.NewToolResultError(fmt.Sprintf("Missing required path parameters: %v", missing))
	}

	for normalized, declared := range declaredArgumentNames(c.strategy, MergedParameters(ref.item, ref.op)) {
		v, ok := params[normalized]
		if !ok {
			continue
		}
		delete(params, normalized)
		if _, ok := params[declared]; !ok {
			params[declared] = v
		}
	}

	var query url.Values
	var body any
	if method == http.MethodGet {
		query = queryValues(params)
	} else {
		body = params
	}

	path = c.stripDirectBasePath(strings.TrimPrefix(path, "/"))
	result, outcome := c.do(ctx, c.service, method, path, query, body)
	c.observer.ToolCall(name, outcome)
	return result
}

// Request issues a request against any registered service on behalf of the
// identity in ctx.
func (c *ToolCaller) Request(ctx context.Context, service, method, path string, query url.Values, body any) *mcp.CallToolResult {
	result, _ := c.do(ctx, service, method, path, query, body)
	return result
}

// argument returns the value supplied for a declared parameter, accepting
// both the declared and the normalized name.
func (c *ToolCaller) argument(args map[string]any, name string) (any, bool) {
	if v, ok := args[name]; ok {
		return v, true
	}
	normalized, err := c.strategy.NormalizeToolParameterName(name)
	if err != nil {
		return nil, false
	}
	v, ok := args[normalized]
	return v, ok
}

// substitutePath fills the {placeholders} of path from params. The second
// result names the first placeholder without a value.
func (c *ToolCaller) substitutePath(path string, params map[string]any) (string, string) {
	for _, placeholder := range PathPlaceholders(path) {
		v, ok := c.argument(params, placeholder)
		if !ok {
			return "", placeholder
		}
		path = strings.Replace(path, "{"+placeholder+"}", url.PathEscape(formatArgument(v)), 1)
	}
	return path, ""
}

// stripDirectBasePath removes the service's direct base path so the registry
// can prepend whichever base path the caller's context needs.
func (c *ToolCaller) stripDirectBasePath(path string) string {
	svc, ok := c.registry.Service(c.service)
	if !ok {
		return path
	}
	base := strings.Trim(svc.DirectBasePath, "/")
	if base == "" {
		return path
	}
	if path == base {
		return ""
	}
	return strings.TrimPrefix(path, base+"/")
}

func (c *ToolCaller) do(ctx context.Context, service, method, path string, query url.Values, body any) (*mcp.CallToolResult, string) {
	id := auth.IdentityFromContext(ctx)
	resolveContext := ""
	verifyCert := true
	if id != nil {
		resolveContext = registry.ContextForHeader(id.HeaderName)
		verifyCert = id.VerifyCert
	}

	apiURL, err := c.registry.ResolveURLPathInContext(service, resolveContext, path)
	if err != nil {
		c.logger.Error("cannot resolve service url", zap.String("service", service), zap.Error(err))
		return mcp.NewToolResultError(err.Error()), "backend_error"
	}
	if len(query) > 0 {
		apiURL += "?" + query.Encode()
	}

	var reqBody io.Reader
	if method != http.MethodGet {
		payload, err := json.Marshal(body)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("cannot encode request body: %v", err)), "backend_error"
		}
		reqBody = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, apiURL, reqBody)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), "backend_error"
	}
	for k, v := range id.Headers() {
		req.Header.Set(k, v)
	}
	if method != http.MethodGet {
		req.Header.Set("Content-Type", "application/json")
	}

	client := c.verifyingClient
	if !verifyCert {
		client = c.insecureClient
	}
	c.logger.Debug("API request", zap.String("url", apiURL), zap.String("method", method), zap.Any("body", body))

	start := time.Now()
	resp, err := client.Do(req)
	c.observer.BackendRequest(method, time.Since(start))
	if err != nil {
		c.logger.Error("API request failed", zap.String("url", apiURL), zap.Error(err))
		return mcp.NewToolResultError(err.Error()), "backend_error"
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.logger.Error("reading API response failed", zap.String("url", apiURL), zap.Error(err))
		return mcp.NewToolResultError(err.Error()), "backend_error"
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("API request returned an error status",
			zap.String("url", apiURL), zap.Int("status", resp.StatusCode))
		errorText := fmt.Sprintf("HTTP Error: %s (HTTP %d)", http.StatusText(resp.StatusCode), resp.StatusCode)
		if len(respBody) > 0 {
			errorText += "\nDetails: " + strings.TrimSpace(string(respBody))
		}
		return mcp.NewToolResultError(errorText), "http_error"
	}

	text := strings.TrimSpace(string(respBody))
	if text == "" {
		text = "No response body"
	}
	return mcp.NewToolResultText(formatResponse(text)), "success"
}

// formatResponse wraps JSON bodies as {"text": body} and returns anything
// else unchanged.
func formatResponse(text string) string {
	if !json.Valid([]byte(text)) {
		return text
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]string{"text": text}); err != nil {
		return text
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

func formatArgument(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case nil:
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func queryValues(params map[string]any) url.Values {
	query := url.Values{}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		switch v := params[k].(type) {
		case []any:
			for _, item := range v {
				query.Add(k, formatArgument(item))
			}
		case nil:
		default:
			query.Set(k, formatArgument(v))
		}
	}
	return query
}

// validateArguments checks params against schema and returns a message for
// the agent, or "" when they are valid.
func validateArguments(schema InputSchema, params map[string]any) string {
	schemaJSON, _ := json.Marshal(schema)
	argsJSON, _ := json.Marshal(params)
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schemaJSON), gojsonschema.NewBytesLoader(argsJSON))
	if err != nil {
		return "Validation error: " + err.Error()
	}
	if result.Valid() {
		return ""
	}
	var msgs []string
	for _, verr := range result.Errors() {
		switch verr.Type() {
		case "required":
			missing, _ := verr.Details()["property"].(string)
			msg := "Missing required parameter: '" + missing + "'"
			if prop, ok := schema.Properties[missing]; ok {
				msg += " (" + prop.Description + ", type: " + prop.Type + ")"
			}
			msgs = append(msgs, msg)
		default:
			msgs = append(msgs, verr.String())
		}
	}
	return strings.Join(msgs, "\n")
}
