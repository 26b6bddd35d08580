package bridge

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/oasgraph/internal/executor"
	"github.com/hanpama/oasgraph/internal/language"
	"github.com/hanpama/oasgraph/internal/oas"
	"github.com/hanpama/oasgraph/internal/restrt"
	"github.com/hanpama/oasgraph/internal/schema"
)

const thingsDoc = `
openapi: 3.0.3
info: {title: things, version: "1"}
servers:
  - url: https://things.example.com
paths:
  /things/{id}:
    get:
      operationId: getThing
      summary: Fetch one thing
      parameters:
        - {name: id, in: path, required: true, schema: {type: string}}
        - {name: X-Tenant, in: header, schema: {type: string}}
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema: {$ref: "#/components/schemas/Thing"}
  /things:
    post:
      operationId: addThing
      requestBody:
        required: true
        content:
          application/json:
            schema: {$ref: "#/components/schemas/NewThing"}
      responses:
        "201":
          description: created
          content:
            application/json:
              schema: {$ref: "#/components/schemas/Thing"}
  /count:
    get:
      operationId: countThings
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema: {type: string}
components:
  schemas:
    Thing:
      type: object
      properties:
        id: {type: string}
        display-name: {type: string}
    NewThing:
      type: object
      required: [first-name]
      properties:
        first-name: {type: string}
        tags:
          type: array
          items: {$ref: "#/components/schemas/Tag"}
    Tag:
      type: object
      properties:
        tag-label: {type: string}
`

// recorder is a Backend that remembers every request it receives.
type recorder struct {
	mu       sync.Mutex
	requests []*oas.RequestOptions
	reply    func(req *oas.RequestOptions) (any, error)
}

func (r *recorder) backend(ctx context.Context, req *oas.RequestOptions) (any, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()
	return r.reply(req)
}

func loadOperations(t *testing.T, doc string) []*oas.Operation {
	t.Helper()
	parsed, err := oas.LoadData(context.Background(), []byte(doc))
	require.NoError(t, err)
	return oas.Operations(parsed)
}

func execute(t *testing.T, exe *Executable, query string) *executor.ExecutionResult {
	t.Helper()
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	return executor.NewExecutor(restrt.NewRuntime(exe), exe.Schema).ExecuteRequest(context.Background(), doc, "", nil, nil)
}

func TestGetThingEndToEnd(t *testing.T) {
	rec := &recorder{reply: func(req *oas.RequestOptions) (any, error) {
		return map[string]any{"id": float64(42), "display-name": "Answer"}, nil
	}}
	exe, err := CreateSchema(loadOperations(t, thingsDoc), rec.backend)
	require.NoError(t, err)

	res := execute(t, exe, `{ getThing(id: "42") { id display_name } }`)
	require.Empty(t, res.Errors)
	want := map[string]any{"getThing": map[string]any{"id": "42", "display_name": "Answer"}}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, rec.requests, 1)
	req := rec.requests[0]
	assert.Equal(t, "GET", req.Method)
	assert.Equal(t, "https://things.example.com/things/42", req.URL())
	assert.Empty(t, req.Headers)
}

func TestMutationRestoresInputKeys(t *testing.T) {
	rec := &recorder{reply: func(req *oas.RequestOptions) (any, error) {
		return map[string]any{"id": "new"}, nil
	}}
	exe, err := CreateSchema(loadOperations(t, thingsDoc), rec.backend)
	require.NoError(t, err)

	res := execute(t, exe, `mutation { addThing(body: {first_name: "Ann", tags: [{tag_label: "x"}]}) { id } }`)
	require.Empty(t, res.Errors)
	assert.Equal(t, map[string]any{"addThing": map[string]any{"id": "new"}}, res.Data)

	require.Len(t, rec.requests, 1)
	want := map[string]any{
		"first-name": "Ann",
		"tags":       []any{map[string]any{"tag-label": "x"}},
	}
	if diff := cmp.Diff(want, rec.requests[0].Body); diff != "" {
		t.Errorf("body mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, oas.BodyJSON, rec.requests[0].BodyType)
}

func TestBackendErrorsSurfaceOnField(t *testing.T) {
	rec := &recorder{reply: func(req *oas.RequestOptions) (any, error) {
		return nil, errors.New("upstream unavailable")
	}}
	exe, err := CreateSchema(loadOperations(t, thingsDoc), rec.backend)
	require.NoError(t, err)

	res := execute(t, exe, `{ getThing(id: "1") { id } }`)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "upstream unavailable", res.Errors[0].Message)
	assert.Equal(t, executor.Path{"getThing"}, res.Errors[0].Path)
	assert.Equal(t, map[string]any{"getThing": nil}, res.Data)
}

func TestStringResponsesAreCoerced(t *testing.T) {
	rec := &recorder{reply: func(req *oas.RequestOptions) (any, error) {
		return map[string]any{"total": float64(3)}, nil
	}}
	exe, err := CreateSchema(loadOperations(t, thingsDoc), rec.backend)
	require.NoError(t, err)

	res := execute(t, exe, `{ countThings }`)
	require.Empty(t, res.Errors)
	assert.Equal(t, map[string]any{"countThings": `{"total":3}`}, res.Data)
}

func TestEmptyStringResponseResolves(t *testing.T) {
	rec := &recorder{reply: func(req *oas.RequestOptions) (any, error) {
		return nil, nil
	}}
	exe, err := CreateSchema(loadOperations(t, thingsDoc), rec.backend)
	require.NoError(t, err)

	res := execute(t, exe, `{ countThings }`)
	require.Empty(t, res.Errors)
	assert.Equal(t, map[string]any{"countThings": "null"}, res.Data)
}

func TestCreateSchemaShape(t *testing.T) {
	exe, err := CreateSchema(loadOperations(t, thingsDoc), nil)
	require.NoError(t, err)
	sch := exe.Schema

	query := sch.GetQueryType()
	require.NotNil(t, query)
	var names []string
	for _, f := range query.GetOrderedFields() {
		names = append(names, f.Name)
	}
	if diff := cmp.Diff([]string{"countThings", "getThing"}, names); diff != "" {
		t.Errorf("query fields mismatch (-want +got):\n%s", diff)
	}

	getThing := query.GetField("getThing")
	require.NotNil(t, getThing)
	assert.Equal(t, "Fetch one thing", getThing.Description)
	assert.Equal(t, "Thing!", getThing.Type.String())
	require.Len(t, getThing.Arguments, 1)
	assert.Equal(t, "id", getThing.Arguments[0].Name)
	assert.Equal(t, "String!", getThing.Arguments[0].Type.String())

	addThing := sch.GetMutationType().GetField("addThing")
	require.NotNil(t, addThing)
	assert.Equal(t, "NewThingInput!", addThing.Arguments[0].Type.String())

	for _, name := range []string{"Thing", "NewThingInput", "TagInput", schema.JSONScalarName} {
		assert.NotNil(t, sch.Types[name], name)
	}
	assert.Equal(t, schema.TypeKindInputObject, sch.Types["TagInput"].Kind)
	assert.Equal(t, "display-name", exe.GetSourceKey("Thing", "display_name"))
	assert.Equal(t, "id", exe.GetSourceKey("Thing", "id"))
}

func TestNoMutationRootWithoutMutations(t *testing.T) {
	ops := []*oas.Operation{{ID: "ping", Method: "GET", Path: "/ping"}}
	exe, err := CreateSchema(ops, nil)
	require.NoError(t, err)
	assert.Empty(t, exe.Schema.MutationType)
	assert.Nil(t, exe.Schema.GetMutationType())
	assert.Equal(t, "JSON!", exe.Schema.GetQueryType().GetField("ping").Type.String())
	assert.Nil(t, exe.GetDispatch("Mutation", "ping"))
	assert.NotNil(t, exe.GetDispatch("Query", "ping"))
}

func TestEmptyQueryRootIsLogged(t *testing.T) {
	var buf bytes.Buffer
	ops := []*oas.Operation{{ID: "reset", Method: "POST", Path: "/reset", Mutation: true}}
	exe, err := CreateSchema(ops, nil, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	require.NoError(t, err)
	assert.NotNil(t, exe.Schema.GetQueryType())
	assert.NotNil(t, exe.Schema.GetMutationType())
	assert.Contains(t, buf.String(), "no query operations")
}

func TestDuplicateOperationIDLaterWins(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ops := []*oas.Operation{
		{ID: "list", Method: "GET", Path: "/a", Summary: "first"},
		{ID: "other", Method: "GET", Path: "/b"},
		{ID: "list", Method: "GET", Path: "/c", Summary: "second"},
	}
	exe, err := CreateSchema(ops, nil, WithLogger(logger))
	require.NoError(t, err)

	fields := exe.Queries.Fields()
	require.Len(t, fields, 2)
	assert.Equal(t, "list", fields[0].Field.Name)
	assert.Equal(t, "/c", fields[0].Operation.Path)
	assert.Equal(t, "second", exe.Schema.GetQueryType().GetField("list").Description)
	assert.Contains(t, buf.String(), "duplicate operation id")
}

func TestRootNameClashIsAnError(t *testing.T) {
	clash := &oas.Node{Kind: oas.KindObject, Title: "Query", Properties: []oas.Property{{Name: "a", Node: &oas.Node{Kind: oas.KindString}}}}
	ops := []*oas.Operation{{ID: "q", Method: "GET", Path: "/q", Response: clash}}
	_, err := CreateSchema(ops, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "defined more than once")
}

func TestUnresolvableResponseFailsCreation(t *testing.T) {
	broken := &oas.Node{Kind: oas.KindObject, Title: "Broken", Properties: []oas.Property{{Name: "x", Node: &oas.Node{}}}}
	ops := []*oas.Operation{{ID: "q", Method: "GET", Path: "/q", Response: broken}}
	_, err := CreateSchema(ops, nil)
	require.Error(t, err)
}

func TestCoerce(t *testing.T) {
	str := schema.NamedType("String")
	cases := []struct {
		name     string
		raw      any
		declared *schema.TypeRef
		want     any
	}{
		{"string stays", "x", str, "x"},
		{"number becomes text", float64(5), str, "5"},
		{"object becomes json", map[string]any{"a": true}, schema.NonNullType(str), `{"a":true}`},
		{"null becomes text", nil, schema.NonNullType(str), "null"},
		{"html is not escaped", map[string]any{"q": "a<b&c"}, str, `{"q":"a<b&c"}`},
		{"objects pass through", map[string]any{"a": 1}, schema.NamedType("Thing"), map[string]any{"a": 1}},
		{"lists pass through", []any{1}, schema.ListType(str), []any{1}},
		{"json passes through", float64(1), schema.NamedType(schema.JSONScalarName), float64(1)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if diff := cmp.Diff(c.want, Coerce(c.raw, c.declared)); diff != "" {
				t.Errorf("Coerce mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
