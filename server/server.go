// Package server exposes a compiled schema over HTTP: a GraphQL endpoint
// with the in-browser explorer for interactive use.
package server

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	eventbus "github.com/hanpama/relgraph/internal/eventbus"
	events "github.com/hanpama/relgraph/internal/events"
	reqid "github.com/hanpama/relgraph/internal/reqid"

	"github.com/hanpama/relgraph/executor"
	"github.com/hanpama/relgraph/internal/language"
	"github.com/hanpama/relgraph/schema"
)

// Handler is an http.Handler that serves a GraphQL endpoint over a
// compiled schema.
type Handler struct {
	schema *schema.Schema
	opt    Options
}

type Options struct {
	// Timeout sets a default timeout if the incoming request context has none.
	// 0 means no default timeout.
	Timeout time.Duration

	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions

	// GraphiQL enables the in-browser IDE when true.
	GraphiQL bool
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}
func WithGraphiQL(enable bool) Option { return func(o *Options) { o.GraphiQL = enable } }

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a GraphQL HTTP handler over the schema.
func New(s *schema.Schema, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second, GraphiQL: true}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{schema: s, opt: op}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, rid := reqid.NewContext(ctx)
	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{RequestID: rid, Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{RequestID: rid, Request: r, Status: status, Duration: time.Since(start)})
	}()

	if r.Method == http.MethodOptions {
		if len(h.opt.CORS.AllowedOrigins) > 0 {
			setCORSHeaders(w, r, h.opt.CORS)
		}
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	}

	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET, POST")
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, errorResponse("method not allowed"), h.opt.Pretty)
		return
	}

	// Serve the explorer when enabled and the client expects HTML. The
	// page picks up query/variables from the URL, so a shared explorer
	// link keeps its query.
	if r.Method == http.MethodGet && h.opt.GraphiQL && explorerRequest(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(graphiqlPage)
		return
	}

	req, batch, perr := parseRequest(r, h.opt.MaxBodyBytes)
	if perr != "" {
		status = http.StatusBadRequest
		if perr == errBodyTooLargeMessage {
			status = http.StatusRequestEntityTooLarge
		}
		writeJSON(w, status, errorResponse(perr), h.opt.Pretty)
		return
	}

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(w, r, h.opt.CORS)
	}

	if batch != nil {
		out := make([]any, len(batch))
		for i := range batch {
			res, _ := h.executeOne(ctx, batch[i])
			out[i] = res
		}
		writeJSON(w, status, out, h.opt.Pretty)
		return
	}

	res, invalid := h.executeOne(ctx, req)
	if invalid {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, res, h.opt.Pretty)
}

func (h *Handler) executeOne(ctx context.Context, req GraphQLRequest) (any, bool) {
	opType := operationType(req.Query, req.OperationName)

	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: opType,
	})
	result := executor.Execute(ctx, h.schema, req.Query,
		executor.WithVariables(req.Variables),
		executor.WithOperationName(req.OperationName))
	errs := make([]error, len(result.Errors))
	for i := range result.Errors {
		errs[i] = result.Errors[i]
	}
	eventbus.Publish(ctx, events.GraphQLFinish{
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: opType,
		Errors:        errs,
		Invalid:       result.Invalid,
		Duration:      time.Since(start),
	})

	if result.Invalid {
		// Request errors carry no data member at all.
		return struct {
			Errors []executor.GraphQLError `json:"errors"`
		}{Errors: result.Errors}, true
	}
	return result, false
}

func operationType(query, operationName string) string {
	doc, err := language.ParseQuery(query)
	if err != nil {
		return ""
	}
	op := doc.Operations.ForName(operationName)
	if op == nil && len(doc.Operations) == 1 {
		op = doc.Operations[0]
	}
	if op == nil {
		return ""
	}
	return string(op.Operation)
}

// ------------------ Request parsing ------------------

type GraphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

func parseRequest(r *http.Request, maxBody int64) (GraphQLRequest, []GraphQLRequest, string) {
	if r.Method == http.MethodGet {
		q := r.URL.Query().Get("query")
		if q == "" {
			return GraphQLRequest{}, nil, "missing 'query'"
		}
		vars := map[string]any{}
		if v := r.URL.Query().Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &vars); err != nil {
				return GraphQLRequest{}, nil, "invalid 'variables' JSON"
			}
		}
		op := r.URL.Query().Get("operationName")
		return GraphQLRequest{Query: q, Variables: vars, OperationName: op}, nil, ""
	}

	ct := r.Header.Get("Content-Type")
	switch {
	case ct == "" || ct == "application/json" || strings.HasPrefix(ct, "application/json;"):
		body, perr := readBody(r, maxBody)
		if perr != "" {
			return GraphQLRequest{}, nil, perr
		}

		// An array body is a batch.
		if len(body) > 0 && body[0] == '[' {
			var arr []GraphQLRequest
			if err := json.Unmarshal(body, &arr); err != nil {
				return GraphQLRequest{}, nil, "invalid JSON"
			}
			if len(arr) == 0 {
				return GraphQLRequest{}, nil, "empty batch"
			}
			return GraphQLRequest{}, arr, ""
		}
		var req GraphQLRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return GraphQLRequest{}, nil, "invalid JSON"
		}
		if req.Query == "" {
			return GraphQLRequest{}, nil, "missing 'query'"
		}
		if req.Variables == nil {
			req.Variables = map[string]any{}
		}
		return req, nil, ""

	case ct == "application/graphql" || strings.HasPrefix(ct, "application/graphql;"):
		body, perr := readBody(r, maxBody)
		if perr != "" {
			return GraphQLRequest{}, nil, perr
		}
		if len(body) == 0 {
			return GraphQLRequest{}, nil, "missing 'query'"
		}
		return GraphQLRequest{Query: string(body), Variables: map[string]any{}}, nil, ""

	case ct == "application/x-www-form-urlencoded" || strings.HasPrefix(ct, "application/x-www-form-urlencoded;"):
		if maxBody > 0 {
			r.Body = http.MaxBytesReader(nil, r.Body, maxBody)
		}
		if err := r.ParseForm(); err != nil {
			return GraphQLRequest{}, nil, "invalid form body"
		}
		q := r.PostForm.Get("query")
		if q == "" {
			return GraphQLRequest{}, nil, "missing 'query'"
		}
		vars := map[string]any{}
		if v := r.PostForm.Get("variables"); v != "" {
			if err := json.Unmarshal([]byte(v), &vars); err != nil {
				return GraphQLRequest{}, nil, "invalid 'variables' JSON"
			}
		}
		return GraphQLRequest{
			Query:         q,
			Variables:     vars,
			OperationName: r.PostForm.Get("operationName"),
		}, nil, ""
	}

	return GraphQLRequest{}, nil, "unsupported Content-Type"
}

func readBody(r *http.Request, maxBody int64) ([]byte, string) {
	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, "failed to read body"
	}
	defer r.Body.Close()
	if maxBody > 0 && int64(len(body)) > maxBody {
		return nil, errBodyTooLargeMessage
	}
	return body, ""
}

// ------------------ Response formatting ------------------

type requestError struct {
	Message string `json:"message"`
}

func errorResponse(message string) any {
	return struct {
		Errors []requestError `json:"errors"`
	}{Errors: []requestError{{Message: message}}}
}

func writeJSON(w http.ResponseWriter, status int, v any, pretty bool) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

const errBodyTooLargeMessage = "body too large"

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	allowed := false
	for _, o := range opts.AllowedOrigins {
		if o == "*" || o == origin {
			allowed = true
			break
		}
	}
	if !allowed {
		return
	}
	if contains(opts.AllowedOrigins, "*") {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// explorerRequest reports whether a GET should be answered with the
// explorer page. A client that names text/html always gets it; a
// catch-all Accept gets it only when no query was supplied, so plain
// API clients still receive JSON.
func explorerRequest(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if prefersHTML(accept) {
		return true
	}
	return acceptsHTML(accept) && r.URL.Query().Get("query") == ""
}

func prefersHTML(accept string) bool {
	for _, p := range strings.Split(accept, ",") {
		if strings.HasPrefix(strings.TrimSpace(p), "text/html") {
			return true
		}
	}
	return false
}

func acceptsHTML(accept string) bool {
	for _, p := range strings.Split(accept, ",") {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "text/html") || p == "*/*" {
			return true
		}
	}
	return false
}
