package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	eventbus "github.com/hanpama/memberql/internal/eventbus"
	events "github.com/hanpama/memberql/internal/events"
	executor "github.com/hanpama/memberql/internal/executor"
	reqid "github.com/hanpama/memberql/internal/reqid"
	schema "github.com/hanpama/memberql/internal/schema"
	store "github.com/hanpama/memberql/internal/store"
)

// CodeBadRequest marks envelope errors rejected before the executor runs.
const CodeBadRequest = "BAD_REQUEST"

// Handler is an http.Handler that serves a GraphQL endpoint.
// It validates the request envelope, runs the executor and writes the result.
// Executed documents always answer 200; the error kind travels in
// extensions.code.
type Handler struct {
	exec *executor.Executor
	opt  Options
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
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty(pretty bool) Option      { return func(o *Options) { o.Pretty = pretty } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

// New creates a new GraphQL HTTP handler using the given runtime and schema.
func New(runtime executor.Runtime, schema *schema.Schema, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second, MaxBodyBytes: 1 << 20}
	for _, f := range opts {
		f(&op)
	}
	return &Handler{exec: executor.NewExecutor(runtime, schema), opt: op}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}

	ctx, rid := reqid.WithID(ctx, r.Header.Get(reqid.Header))
	r = r.WithContext(ctx)
	w.Header().Set(reqid.Header, rid)

	rec := &recorder{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: rec.status, Bytes: rec.bytes, Duration: time.Since(start)})
	}()

	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(rec, r, h.opt.CORS)
	}

	switch r.Method {
	case http.MethodOptions:
		rec.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		rec.Header().Set("Allow", "POST, OPTIONS")
		h.writeJSON(rec, http.StatusMethodNotAllowed, badRequest("method not allowed"))
		return
	}

	req, status, err := parseRequest(r, h.opt.MaxBodyBytes)
	if err != nil {
		h.writeJSON(rec, status, badRequest(err.Error()))
		return
	}

	h.writeJSON(rec, http.StatusOK, h.execute(ctx, req))
}

func (h *Handler) execute(ctx context.Context, req executor.Request) *executor.ExecutionResult {
	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName})

	opType := ""
	prepared, result := h.exec.Prepare(req)
	if result == nil {
		opType = prepared.OperationType()
		result = h.exec.ExecutePrepared(ctx, prepared)
	}

	errs := make([]error, len(result.Errors))
	for i := range result.Errors {
		errs[i] = result.Errors[i]
	}
	eventbus.Publish(ctx, events.GraphQLFinish{
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: opType,
		Errors:        errs,
		Duration:      time.Since(start),
	})
	return result
}

// ------------------ Request parsing ------------------

// envelope is the POST body. Pointers tell absent members from empty ones.
type envelope struct {
	Query         *string        `json:"query"`
	OperationName *string        `json:"operationName"`
	Variables     map[string]any `json:"variables"`
}

type requestError string

func (e requestError) Error() string { return string(e) }

const errBodyTooLarge requestError = "body too large"

func parseRequest(r *http.Request, maxBody int64) (executor.Request, int, error) {
	ct := r.Header.Get("Content-Type")
	if ct != "" && ct != "application/json" && !strings.HasPrefix(ct, "application/json;") {
		return executor.Request{}, http.StatusBadRequest, requestError("unsupported Content-Type")
	}

	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return executor.Request{}, http.StatusBadRequest, requestError("failed to read body")
	}
	defer r.Body.Close()
	if maxBody > 0 && int64(len(body)) > maxBody {
		return executor.Request{}, http.StatusRequestEntityTooLarge, errBodyTooLarge
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return executor.Request{}, http.StatusBadRequest, requestError("body must be a JSON object")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	var env envelope
	if err := dec.Decode(&env); err != nil {
		return executor.Request{}, http.StatusBadRequest, requestError("invalid request body: " + err.Error())
	}
	if dec.More() {
		return executor.Request{}, http.StatusBadRequest, requestError("invalid request body: trailing data")
	}
	if env.Query == nil || *env.Query == "" {
		return executor.Request{}, http.StatusBadRequest, requestError("missing 'query'")
	}

	req := executor.Request{Query: *env.Query, Variables: env.Variables}
	if env.OperationName != nil {
		req.OperationName = *env.OperationName
	}
	if req.Variables == nil {
		req.Variables = map[string]any{}
	}
	return req, http.StatusOK, nil
}

// ------------------ Response formatting ------------------

func badRequest(msg string) *executor.ExecutionResult {
	return &executor.ExecutionResult{Errors: []executor.GraphQLError{{
		Message:    msg,
		Extensions: map[string]any{"code": CodeBadRequest},
	}}}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	writeJSON(w, status, v, h.opt.Pretty)
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

// recorder captures the status and size reported in HTTPFinish.
type recorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

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
	w.Header().Set("Access-Control-Expose-Headers", reqid.Header)
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "POST,OPTIONS")
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

// Health answers 200 when the store is reachable and 503 otherwise.
// A nil pinger always reports healthy.
func Health(pinger store.Pinger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if pinger != nil {
			if err := pinger.Ping(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()}, false)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, false)
	})
}
