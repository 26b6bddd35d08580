package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"

	"github.com/hanpama/oasgraph/internal/bridge"
	executor "github.com/hanpama/oasgraph/internal/executor"
	"github.com/hanpama/oasgraph/internal/oas"
	reqid "github.com/hanpama/oasgraph/internal/reqid"
	"github.com/hanpama/oasgraph/internal/restrt"
	schema "github.com/hanpama/oasgraph/internal/schema"
)

var petNode = &oas.Node{
	Kind:  oas.KindObject,
	Title: "Pet",
	Properties: []oas.Property{
		{Name: "id", Node: &oas.Node{Kind: oas.KindString}},
		{Name: "name", Node: &oas.Node{Kind: oas.KindString}},
	},
}

// newPetHandler serves a schema with a single getPet(id) query backed by
// backend.
func newPetHandler(t *testing.T, backend bridge.Backend, opts ...Option) *Handler {
	t.Helper()
	ops := []*oas.Operation{{
		ID:       "getPet",
		Method:   "GET",
		Path:     "/pets/{id}",
		BaseURL:  "https://pets.example.com",
		Response: petNode,
		Parameters: []*oas.Param{
			{Name: "id", SourceName: "id", In: oas.InPath, Required: true, Schema: &oas.Node{Kind: oas.KindString}},
		},
	}}
	exe, err := bridge.CreateSchema(ops, backend)
	require.NoError(t, err)
	h, err := New(restrt.NewRuntime(exe), exe.Schema, opts...)
	require.NoError(t, err)
	return h
}

func echoPet(ctx context.Context, req *oas.RequestOptions) (any, error) {
	return map[string]any{"id": req.Path[len("/pets/"):], "name": "Rex"}, nil
}

func post(t *testing.T, h http.Handler, body string, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/graphql", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) any {
	t.Helper()
	var out any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestServesGeneratedSchema(t *testing.T) {
	h := newPetHandler(t, echoPet)

	w := post(t, h, `{"query":"query P($id: String!) { getPet(id: $id) { id name } }","variables":{"id":"7"}}`)
	require.Equal(t, http.StatusOK, w.Code)
	want := map[string]any{"data": map[string]any{"getPet": map[string]any{"id": "7", "name": "Rex"}}}
	if diff := cmp.Diff(want, decode(t, w)); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestGetQueryAndSDL(t *testing.T) {
	h := newPetHandler(t, echoPet)

	req := httptest.NewRequest("GET", "/graphql?query="+url.QueryEscape(`{ getPet(id: "1") { name } }`), nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"data": map[string]any{"getPet": map[string]any{"name": "Rex"}}}, decode(t, w))

	req = httptest.NewRequest("GET", "/graphql?sdl", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "getPet(id: String!): Pet!")
	assert.Contains(t, w.Body.String(), "scalar JSON")
}

func TestBackendErrorsAreFieldErrors(t *testing.T) {
	h := newPetHandler(t, func(ctx context.Context, req *oas.RequestOptions) (any, error) {
		return nil, errors.New("boom")
	})

	w := post(t, h, `{"query":"{ getPet(id: \"1\") { id } }"}`)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w).(map[string]any)
	assert.Nil(t, got["data"].(map[string]any)["getPet"])
	errs := got["errors"].([]any)
	require.Len(t, errs, 1)
	assert.Equal(t, []any{"getPet"}, errs[0].(map[string]any)["path"])
}

func TestBatchedRequests(t *testing.T) {
	h := newPetHandler(t, echoPet)

	w := post(t, h, `[{"query":"{ getPet(id: \"1\") { id } }"},{"query":"{ getPet(id: \"2\") { id } }"}]`)
	require.Equal(t, http.StatusOK, w.Code)
	want := []any{
		map[string]any{"data": map[string]any{"getPet": map[string]any{"id": "1"}}},
		map[string]any{"data": map[string]any{"getPet": map[string]any{"id": "2"}}},
	}
	if diff := cmp.Diff(want, decode(t, w)); diff != "" {
		t.Errorf("batch mismatch (-want +got):\n%s", diff)
	}
}

func TestForwardedHeadersReachBackend(t *testing.T) {
	var captured metadata.MD
	var capturedID int64
	backend := func(ctx context.Context, req *oas.RequestOptions) (any, error) {
		captured, _ = metadata.FromOutgoingContext(ctx)
		capturedID, _ = reqid.FromContext(ctx)
		return echoPet(ctx, req)
	}

	h := newPetHandler(t, backend, WithForwardHeaders("Authorization"))
	w := post(t, h, `{"query":"{ getPet(id: \"1\") { id } }"}`, "Authorization", "Bearer x", "X-Other", "nope")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"Bearer x"}, captured.Get("authorization"))
	assert.Empty(t, captured.Get("x-other"))
	require.NotZero(t, capturedID)
	assert.Equal(t, []string{strconv.FormatInt(capturedID, 10)}, captured.Get("graphql-request-id"))

	h = newPetHandler(t, backend)
	post(t, h, `{"query":"{ getPet(id: \"1\") { id } }"}`, "Authorization", "Bearer x")
	assert.Empty(t, captured.Get("authorization"))
}

func TestCORSAndPreflight(t *testing.T) {
	h := newPetHandler(t, echoPet, WithCORS("*"))

	w := post(t, h, `{"query":"{ getPet(id: \"1\") { id } }"}`, "Origin", "http://example.com")
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	pre := httptest.NewRequest("OPTIONS", "/", nil)
	pre.Header.Set("Origin", "http://example.com")
	pre.Header.Set("Access-Control-Request-Headers", "Authorization")
	pw := httptest.NewRecorder()
	h.ServeHTTP(pw, pre)
	assert.Equal(t, http.StatusNoContent, pw.Code)
	assert.Equal(t, "*", pw.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "Authorization", pw.Header().Get("Access-Control-Allow-Headers"))
}

func TestRequestErrors(t *testing.T) {
	h := newPetHandler(t, echoPet, WithMaxBodyBytes(10))

	w := post(t, h, `{"query":"1234567890"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	req := httptest.NewRequest("DELETE", "/", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	req = httptest.NewRequest("GET", "/", nil)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMockRuntimeHandler(t *testing.T) {
	sch, err := schema.BuildFromSDL(`type Query { hello: String }`)
	require.NoError(t, err)
	rt := executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.hello": executor.NewMockValueResolver("world"),
	})
	h, err := New(rt, sch, WithPretty())
	require.NoError(t, err)

	w := post(t, h, `{"query":"{ hello }"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "\n  ")
	assert.Equal(t, map[string]any{"data": map[string]any{"hello": "world"}}, decode(t, w))
}

func TestSyntaxErrorsCarryLocations(t *testing.T) {
	h := newPetHandler(t, echoPet)

	w := post(t, h, `{"query":"{ getPet(id: \"1\") { id }"}`)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode(t, w).(map[string]any)
	assert.Nil(t, got["data"])
	errs := got["errors"].([]any)
	require.Len(t, errs, 1)
	assert.NotEmpty(t, errs[0].(map[string]any)["locations"])
}

func TestUnsupportedContentType(t *testing.T) {
	h := newPetHandler(t, echoPet)

	req := httptest.NewRequest("POST", "/graphql", bytes.NewBufferString(`query=x`))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}
