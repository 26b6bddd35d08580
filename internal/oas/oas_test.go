package oas

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const petstoreV3 = `
openapi: 3.0.3
info: {title: pets, version: "1"}
servers:
  - url: "https://{host}/v1/"
    variables:
      host: {default: api.example.com}
paths:
  /pets/{petId}:
    parameters:
      - {name: petId, in: path, required: true, schema: {type: string}}
    get:
      operationId: getPet
      summary: Find a pet
      parameters:
        - {name: X-Trace, in: header, schema: {type: string}}
        - {name: session, in: cookie, schema: {type: string}}
        - {name: with-owner, in: query, schema: {type: boolean}}
      responses:
        "200":
          description: ok
          content:
            application/json:
              schema: {$ref: "#/components/schemas/Pet"}
    delete:
      responses:
        "204": {description: gone}
  /pets:
    post:
      operationId: addPet
      requestBody:
        required: true
        content:
          application/json:
            schema: {$ref: "#/components/schemas/NewPet"}
      responses:
        "201":
          description: created
          content:
            application/json:
              schema: {$ref: "#/components/schemas/Pet"}
  /upload:
    put:
      operationId: upload
      requestBody:
        content:
          multipart/form-data:
            schema:
              type: object
              required: [file]
              properties:
                file: {type: string, format: binary}
                note: {type: string}
      responses:
        default:
          description: whatever
          content:
            application/json:
              schema: {type: object}
components:
  schemas:
    NewPet:
      type: object
      required: [name]
      properties:
        name: {type: string}
        tag: {type: string}
    Pet:
      allOf:
        - $ref: "#/components/schemas/NewPet"
        - type: object
          required: [id]
          properties:
            id: {type: integer, format: int64}
            parent: {$ref: "#/components/schemas/Pet"}
`

func loadPetstore(t *testing.T) *openapi3.T {
	t.Helper()
	doc, err := LoadData(context.Background(), []byte(petstoreV3))
	require.NoError(t, err)
	return doc
}

func TestOperations(t *testing.T) {
	ops := Operations(loadPetstore(t))

	ids := []string{}
	for _, op := range ops {
		ids = append(ids, op.ID)
	}
	if diff := cmp.Diff([]string{"addPet", "getPet", "delete/pets/{petId}", "upload"}, ids); diff != "" {
		t.Errorf("operation ids mismatch (-want +got):\n%s", diff)
	}

	get := ops[1]
	assert.False(t, get.Mutation)
	assert.Equal(t, "https://api.example.com/v1", get.BaseURL)
	assert.Equal(t, "Find a pet", get.FieldDescription())

	type param struct {
		Name, SourceName string
		In               Location
		Required         bool
	}
	var got []param
	for _, p := range get.Parameters {
		got = append(got, param{p.Name, p.SourceName, p.In, p.Required})
	}
	want := []param{
		{"petId", "petId", InPath, true},
		{"X_Trace", "X-Trace", InHeader, false},
		{"with_owner", "with-owner", InQuery, false},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}

	pet := get.Response
	require.True(t, pet.IsObject())
	assert.Equal(t, "Pet", pet.Title)
	names := []string{}
	for _, p := range pet.Properties {
		names = append(names, p.Name)
	}
	if diff := cmp.Diff([]string{"name", "tag", "id", "parent"}, names); diff != "" {
		t.Errorf("merged properties mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, pet.IsRequired("id"))
	assert.True(t, pet.IsRequired("name"))
	assert.Same(t, pet, pet.Properties[3].Node)
	assert.Equal(t, "int64", pet.Properties[2].Node.Format)

	del := ops[2]
	assert.True(t, del.Mutation)
	assert.Nil(t, del.Response)
}

func TestOperationsRequestBodies(t *testing.T) {
	ops := Operations(loadPetstore(t))

	add := ops[0]
	require.Len(t, add.Parameters, 1)
	body := add.Parameters[0]
	assert.Equal(t, InBody, body.In)
	assert.Equal(t, "body", body.Name)
	assert.True(t, body.Required)
	require.True(t, body.Schema.IsBody())
	assert.Equal(t, "NewPet", body.Schema.Schema.Title)
	assert.Equal(t, "Pet", add.Response.Title)

	upload := ops[3]
	require.Len(t, upload.Parameters, 2)
	assert.Equal(t, InFormData, upload.Parameters[0].In)
	assert.True(t, upload.Parameters[0].Schema.IsFile())
	assert.True(t, upload.Parameters[0].Required)
	assert.False(t, upload.Parameters[1].Required)
	require.True(t, upload.Response.IsObject())
	assert.Empty(t, upload.Response.Properties)
}

func TestOperationsBaseURLOverride(t *testing.T) {
	ops := Operations(loadPetstore(t), WithBaseURL("http://localhost:9000"))
	for _, op := range ops {
		assert.Equal(t, "http://localhost:9000", op.BaseURL)
	}
}

const petstoreV2 = `
swagger: "2.0"
info: {title: pets, version: "1"}
host: legacy.example.com
basePath: /api
schemes: [https]
paths:
  /pets:
    post:
      operationId: createPet
      consumes: [application/json]
      produces: [application/json]
      parameters:
        - name: pet
          in: body
          required: true
          schema: {$ref: "#/definitions/Pet"}
      responses:
        200:
          description: ok
          schema: {$ref: "#/definitions/Pet"}
definitions:
  Pet:
    type: object
    properties:
      name: {type: string}
`

func TestLoadDataConvertsSwagger2(t *testing.T) {
	doc, err := LoadData(context.Background(), []byte(petstoreV2))
	require.NoError(t, err)

	ops := Operations(doc)
	require.Len(t, ops, 1)
	op := ops[0]
	assert.Equal(t, "createPet", op.ID)
	assert.Equal(t, "https://legacy.example.com/api", op.BaseURL)
	require.Len(t, op.Parameters, 1)
	assert.Equal(t, "pet", op.Parameters[0].Name)
	assert.Equal(t, InBody, op.Parameters[0].In)
	assert.Equal(t, "Pet", op.Response.Title)
}

func TestLoadDataErrors(t *testing.T) {
	_, err := LoadData(context.Background(), []byte("info: {title: x}"))
	require.Error(t, err)
	assert.True(t, IsCode(err, ParseError))

	_, err = Load(context.Background(), "  ")
	assert.True(t, IsCode(err, InputError))

	_, err = Load(context.Background(), "/does/not/exist.yaml")
	assert.True(t, IsCode(err, InputError))
}

func TestLoadRetriesTransientFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(petstoreV3))
	}))
	defer srv.Close()

	doc, err := Load(context.Background(), srv.URL+"/openapi.yaml", WithFetchRetry(3, time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load())
	assert.Len(t, Operations(doc), 4)
}

func TestLoadDoesNotRetryClientErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := Load(context.Background(), srv.URL+"/missing.yaml", WithFetchRetry(3, time.Millisecond))
	require.Error(t, err)
	assert.True(t, IsCode(err, NetworkError))
	assert.Equal(t, int32(1), hits.Load())
}

func TestRequestOptions(t *testing.T) {
	op := &Operation{
		Method:  http.MethodPost,
		BaseURL: "https://api.example.com",
		Path:    "/pets/{pet-id}/photos",
		Parameters: []*Param{
			{Name: "pet_id", SourceName: "pet-id", In: InPath},
			{Name: "limit", SourceName: "limit", In: InQuery},
			{Name: "X_Trace", SourceName: "X-Trace", In: InHeader},
			{Name: "body", SourceName: "body", In: InBody},
			{Name: "skipped", SourceName: "skipped", In: InQuery},
		},
	}
	req := op.RequestOptions(map[string]any{
		"pet_id":  "a b",
		"limit":   10,
		"X_Trace": 7,
		"body":    map[string]any{"name": "rex"},
		"skipped": nil,
	})
	want := &RequestOptions{
		Method:   http.MethodPost,
		BaseURL:  "https://api.example.com",
		Path:     "/pets/a%20b/photos",
		Query:    map[string]any{"limit": 10},
		Headers:  map[string]string{"X-Trace": "7"},
		Body:     map[string]any{"name": "rex"},
		BodyType: BodyJSON,
	}
	if diff := cmp.Diff(want, req); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "https://api.example.com/pets/a%20b/photos?limit=10", req.URL())
}

func TestRequestOptionsFormData(t *testing.T) {
	op := &Operation{
		Method: http.MethodPut,
		Path:   "/upload",
		Parameters: []*Param{
			{Name: "note", SourceName: "note", In: InFormData},
		},
	}
	req := op.RequestOptions(map[string]any{"note": "hi"})
	assert.Equal(t, BodyFormData, req.BodyType)
	assert.Equal(t, map[string]any{"note": "hi"}, req.Body)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "get_pets__id_", SanitizeName("get/pets/{id}"))
	assert.Equal(t, "already_fine_1", SanitizeName("already_fine_1"))
}
