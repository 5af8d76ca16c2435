package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eventbus "github.com/hanpama/memberql/internal/eventbus"
	events "github.com/hanpama/memberql/internal/events"
	executor "github.com/hanpama/memberql/internal/executor"
	reqid "github.com/hanpama/memberql/internal/reqid"
	schema "github.com/hanpama/memberql/internal/schema"
	store "github.com/hanpama/memberql/internal/store"
)

const testSDL = `
type Query {
  hello(name: String): String
  deadline: Boolean
}
type Mutation { touch: Boolean }
`

func newTestHandler(t *testing.T, opts ...Option) *Handler {
	t.Helper()
	s, err := schema.BuildFromSDL("test.graphql", testSDL)
	require.NoError(t, err)
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.hello": func(ctx context.Context, _ any, args map[string]any) (any, error) {
			if name, ok := args["name"].(string); ok {
				return "hello " + name, nil
			}
			return "hello", nil
		},
		"Query.deadline": func(ctx context.Context, _ any, _ map[string]any) (any, error) {
			_, ok := ctx.Deadline()
			return ok, nil
		},
		"Mutation.touch": executor.NewMockValueResolver(true),
	})
	return New(rt, s, opts...)
}

func post(h http.Handler, body string, header ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

type response struct {
	Data   map[string]any `json:"data"`
	Errors []struct {
		Message    string         `json:"message"`
		Extensions map[string]any `json:"extensions"`
	} `json:"errors"`
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) response {
	t.Helper()
	var out response
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func TestExecutesQuery(t *testing.T) {
	h := newTestHandler(t)
	rr := post(h, `{"query":"query Q($n: String) { hello(name: $n) }","variables":{"n":"Ann"},"operationName":"Q"}`)

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	out := decode(t, rr)
	assert.Empty(t, out.Errors)
	assert.Equal(t, map[string]any{"hello": "hello Ann"}, out.Data)
}

func TestNullMembersAreAbsent(t *testing.T) {
	h := newTestHandler(t)
	rr := post(h, `{"query":"{ hello }","variables":null,"operationName":null}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, map[string]any{"hello": "hello"}, decode(t, rr).Data)
}

func TestDocumentErrorsAnswer200(t *testing.T) {
	h := newTestHandler(t)
	for query, code := range map[string]string{
		`{ hello(`:   executor.CodeParseFailed,
		`{ missing }`: executor.CodeValidationFailed,
	} {
		body, _ := json.Marshal(map[string]any{"query": query})
		rr := post(h, string(body))
		require.Equal(t, http.StatusOK, rr.Code, query)
		out := decode(t, rr)
		require.NotEmpty(t, out.Errors, query)
		assert.Equal(t, code, out.Errors[0].Extensions["code"], query)
		assert.Nil(t, out.Data, query)
	}
}

func TestRejectsMalformedEnvelope(t *testing.T) {
	cases := map[string]string{
		"not json":            `{"query":`,
		"array":               `[{"query":"{ hello }"}]`,
		"string":              `"{ hello }"`,
		"empty body":          ``,
		"missing query":       `{"variables":{}}`,
		"empty query":         `{"query":""}`,
		"query not a string":  `{"query":42}`,
		"variables array":     `{"query":"{ hello }","variables":[1]}`,
		"operationName int":   `{"query":"{ hello }","operationName":7}`,
		"unknown property":    `{"query":"{ hello }","extensions":{}}`,
		"trailing document":   `{"query":"{ hello }"} {"query":"{ hello }"}`,
		"variables is string": `{"query":"{ hello }","variables":"{}"}`,
	}
	h := newTestHandler(t)
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rr := post(h, body)
			require.Equal(t, http.StatusBadRequest, rr.Code, rr.Body.String())
			out := decode(t, rr)
			require.Len(t, out.Errors, 1)
			assert.Equal(t, CodeBadRequest, out.Errors[0].Extensions["code"])
			assert.Nil(t, out.Data)
		})
	}
}

func TestRejectsContentType(t *testing.T) {
	h := newTestHandler(t)
	rr := post(h, `{"query":"{ hello }"}`, "Content-Type", "text/plain")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = post(h, `{"query":"{ hello }"}`, "Content-Type", "application/json; charset=utf-8")
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestHandler(t)
	for _, m := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		req := httptest.NewRequest(m, "/graphql?query=%7Bhello%7D", nil)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusMethodNotAllowed, rr.Code, m)
		assert.Equal(t, "POST, OPTIONS", rr.Header().Get("Allow"), m)
	}
}

func TestMaxBodyBytes(t *testing.T) {
	h := newTestHandler(t, WithMaxBodyBytes(64))
	big := `{"query":"{ hello }","variables":{"pad":"` + strings.Repeat("x", 100) + `"}}`
	rr := post(h, big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)

	rr = post(h, `{"query":"{ hello }"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestDefaultTimeout(t *testing.T) {
	h := newTestHandler(t)
	assert.Equal(t, map[string]any{"deadline": true}, decode(t, post(h, `{"query":"{ deadline }"}`)).Data)

	h = newTestHandler(t, WithTimeout(0))
	assert.Equal(t, map[string]any{"deadline": false}, decode(t, post(h, `{"query":"{ deadline }"}`)).Data)
}

func TestRequestID(t *testing.T) {
	h := newTestHandler(t)

	rr := post(h, `{"query":"{ hello }"}`, reqid.Header, "abc-123")
	assert.Equal(t, "abc-123", rr.Header().Get(reqid.Header))

	rr = post(h, `{"query":"{ hello }"}`)
	assert.NotEmpty(t, rr.Header().Get(reqid.Header))

	// rejected envelopes still carry the id
	rr = post(h, `{}`, reqid.Header, "bad-1")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "bad-1", rr.Header().Get(reqid.Header))
}

func TestCORSAndPreflight(t *testing.T) {
	h := newTestHandler(t, WithCORS("https://app.example"))

	req := httptest.NewRequest(http.MethodOptions, "/graphql", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Headers", "content-type")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	require.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://app.example", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "content-type", rr.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "POST,OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))

	rr = post(h, `{"query":"{ hello }"}`, "Origin", "https://evil.example")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))

	h = newTestHandler(t, WithCORS("*"))
	rr = post(h, `{"query":"{ hello }"}`, "Origin", "https://any.example")
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestPretty(t *testing.T) {
	h := newTestHandler(t, WithPretty(true))
	rr := post(h, `{"query":"{ hello }"}`)
	assert.Contains(t, rr.Body.String(), "\n  \"data\"")
}

type recorded struct {
	mu   sync.Mutex
	http []events.HTTPFinish
	gql  []events.GraphQLFinish
	rids []string
	seq  []string
}

func record(t *testing.T) *recorded {
	t.Helper()
	bus := eventbus.New()
	eventbus.Use(bus)
	t.Cleanup(func() { eventbus.Use(nil) })

	r := &recorded{}
	eventbus.SubscribeTo(bus, func(ctx context.Context, e events.HTTPStart) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.seq = append(r.seq, "http.start")
	})
	eventbus.SubscribeTo(bus, func(ctx context.Context, e events.HTTPFinish) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.seq = append(r.seq, "http.finish")
		r.http = append(r.http, e)
		id, _ := reqid.FromContext(ctx)
		r.rids = append(r.rids, id)
	})
	eventbus.SubscribeTo(bus, func(ctx context.Context, e events.GraphQLStart) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.seq = append(r.seq, "graphql.start")
	})
	eventbus.SubscribeTo(bus, func(ctx context.Context, e events.GraphQLFinish) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.seq = append(r.seq, "graphql.finish")
		r.gql = append(r.gql, e)
		id, _ := reqid.FromContext(ctx)
		r.rids = append(r.rids, id)
	})
	return r
}

func TestPublishesEvents(t *testing.T) {
	rec := record(t)
	h := newTestHandler(t)

	rr := post(h, `{"query":"mutation M { touch }","operationName":"M"}`, reqid.Header, "rid-1")
	require.Equal(t, http.StatusOK, rr.Code)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []string{"http.start", "graphql.start", "graphql.finish", "http.finish"}, rec.seq)
	assert.Equal(t, []string{"rid-1", "rid-1"}, rec.rids)

	require.Len(t, rec.gql, 1)
	assert.Equal(t, "mutation", rec.gql[0].OperationType)
	assert.Equal(t, "M", rec.gql[0].OperationName)
	assert.Empty(t, rec.gql[0].Errors)

	require.Len(t, rec.http, 1)
	assert.Equal(t, http.StatusOK, rec.http[0].Status)
	assert.Equal(t, rr.Body.Len(), rec.http[0].Bytes)
}

func TestPublishesEventsForRejectedDocuments(t *testing.T) {
	rec := record(t)
	h := newTestHandler(t)

	post(h, `{"query":"{ nope }"}`)
	post(h, `{"query":""}`)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.gql, 1)
	assert.Equal(t, "", rec.gql[0].OperationType)
	require.Len(t, rec.gql[0].Errors, 1)
	var gqlErr executor.GraphQLError
	require.True(t, errors.As(rec.gql[0].Errors[0], &gqlErr))
	assert.Equal(t, executor.CodeValidationFailed, gqlErr.Code())

	require.Len(t, rec.http, 2)
	assert.Equal(t, http.StatusOK, rec.http[0].Status)
	assert.Equal(t, http.StatusBadRequest, rec.http[1].Status)
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestHealth(t *testing.T) {
	for name, tc := range map[string]struct {
		pinger store.Pinger
		status int
	}{
		"ok":       {stubPinger{}, http.StatusOK},
		"down":     {stubPinger{errors.New("refused")}, http.StatusServiceUnavailable},
		"no store": {nil, http.StatusOK},
	} {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil).WithContext(ctx)
			rr := httptest.NewRecorder()
			Health(tc.pinger).ServeHTTP(rr, req)
			assert.Equal(t, tc.status, rr.Code)
		})
	}
}
