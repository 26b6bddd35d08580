package oas

import (
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// Location says where a parameter travels in the HTTP request.
type Location string

const (
	InPath     Location = "path"
	InQuery    Location = "query"
	InHeader   Location = "header"
	InBody     Location = "body"
	InFormData Location = "formData"
)

// Param is one input of an operation.
type Param struct {
	// Name is the GraphQL argument name.
	Name string
	// SourceName is the name used in the HTTP request.
	SourceName  string
	In          Location
	Required    bool
	Description string
	Schema      *Node
}

// Operation is an HTTP endpoint flattened into the shape the schema layer
// consumes.
type Operation struct {
	ID          string
	Method      string
	Path        string
	BaseURL     string
	Mutation    bool
	Summary     string
	Description string
	Deprecated  bool
	Parameters  []*Param
	Response    *Node
}

// FieldDescription is the description used for the GraphQL field.
func (o *Operation) FieldDescription() string {
	if o.Description != "" {
		return o.Description
	}
	return o.Summary
}

type extractOptions struct {
	baseURL string
	logger  *slog.Logger
}

type ExtractOption func(*extractOptions)

// WithBaseURL overrides the base URL taken from the document's servers.
func WithBaseURL(u string) ExtractOption {
	return func(o *extractOptions) { o.baseURL = u }
}

func WithExtractLogger(l *slog.Logger) ExtractOption {
	return func(o *extractOptions) { o.logger = l }
}

var methodOrder = []string{
	http.MethodGet, http.MethodHead, http.MethodOptions,
	http.MethodPost, http.MethodPut, http.MethodPatch,
	http.MethodDelete, http.MethodTrace,
}

// Operations flattens every path and method of doc into Operations, ordered
// by path and then by method.
func Operations(doc *openapi3.T, opts ...ExtractOption) []*Operation {
	o := extractOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.baseURL == "" {
		o.baseURL = serverURL(doc)
	}
	logger := o.logger.With("component", "oas")

	if doc == nil || doc.Paths == nil {
		return nil
	}
	paths := make([]string, 0, doc.Paths.Len())
	for p := range doc.Paths.Map() {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	conv := newNodeConverter()
	var ops []*Operation
	for _, path := range paths {
		item := doc.Paths.Value(path)
		if item == nil {
			continue
		}
		byMethod := item.Operations()
		for _, method := range methodOrder {
			op := byMethod[method]
			if op == nil {
				continue
			}
			ops = append(ops, extract(conv, logger, o.baseURL, path, method, item, op))
		}
	}
	return ops
}

func extract(conv *nodeConverter, logger *slog.Logger, baseURL, path, method string, item *openapi3.PathItem, op *openapi3.Operation) *Operation {
	id := op.OperationID
	if id == "" {
		id = strings.ToLower(method) + path
	}
	out := &Operation{
		ID:          id,
		Method:      method,
		Path:        path,
		BaseURL:     baseURL,
		Mutation:    isMutation(method),
		Summary:     op.Summary,
		Description: op.Description,
		Deprecated:  op.Deprecated,
		Response:    conv.convert(responseSchema(op.Responses)),
	}

	for _, ref := range mergeParameters(item.Parameters, op.Parameters) {
		p := ref.Value
		if p.In == openapi3.ParameterInCookie {
			logger.Debug("skipping cookie parameter", "operation", id, "name", p.Name)
			continue
		}
		out.Parameters = append(out.Parameters, &Param{
			Name:        SanitizeName(p.Name),
			SourceName:  p.Name,
			In:          Location(p.In),
			Required:    p.Required,
			Description: p.Description,
			Schema:      conv.convert(parameterSchema(p)),
		})
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		out.Parameters = append(out.Parameters, bodyParams(conv, op.RequestBody.Value)...)
	}
	return out
}

func isMutation(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}

// mergeParameters combines path-level and operation-level parameters.
// Operation-level entries replace path-level ones with the same name and
// location.
func mergeParameters(pathLevel, opLevel openapi3.Parameters) openapi3.Parameters {
	key := func(p *openapi3.Parameter) string { return p.In + ":" + p.Name }
	var merged openapi3.Parameters
	index := map[string]int{}
	for _, list := range []openapi3.Parameters{pathLevel, opLevel} {
		for _, ref := range list {
			if ref == nil || ref.Value == nil {
				continue
			}
			k := key(ref.Value)
			if i, ok := index[k]; ok {
				merged[i] = ref
				continue
			}
			index[k] = len(merged)
			merged = append(merged, ref)
		}
	}
	return merged
}

func parameterSchema(p *openapi3.Parameter) *openapi3.SchemaRef {
	if p.Schema != nil {
		return p.Schema
	}
	if mt := preferredMedia(p.Content); mt != nil {
		return mt.Schema
	}
	return nil
}

func bodyParams(conv *nodeConverter, body *openapi3.RequestBody) []*Param {
	if _, hasJSON := body.Content["application/json"]; !hasJSON {
		for _, form := range []string{"application/x-www-form-urlencoded", "multipart/form-data"} {
			mt := body.Content.Get(form)
			if mt == nil || mt.Schema == nil {
				continue
			}
			node := conv.convert(mt.Schema)
			if !node.IsObject() {
				continue
			}
			params := make([]*Param, 0, len(node.Properties))
			for _, prop := range node.Properties {
				params = append(params, &Param{
					Name:        SanitizeName(prop.Name),
					SourceName:  prop.Name,
					In:          InFormData,
					Required:    node.IsRequired(prop.Name),
					Description: description(prop.Node),
					Schema:      prop.Node,
				})
			}
			return params
		}
	}

	mt := preferredMedia(body.Content)
	if mt == nil {
		return nil
	}
	name := "body"
	if v, ok := body.Extensions["x-originalParamName"].(string); ok && v != "" {
		name = v
	}
	inner := conv.convert(mt.Schema)
	return []*Param{{
		Name:        SanitizeName(name),
		SourceName:  name,
		In:          InBody,
		Required:    body.Required,
		Description: body.Description,
		Schema:      &Node{Kind: KindBody, Schema: inner},
	}}
}

func description(n *Node) string {
	if n == nil {
		return ""
	}
	return n.Description
}

// preferredMedia picks application/json, then any other JSON media type,
// then the first media type by name.
func preferredMedia(content openapi3.Content) *openapi3.MediaType {
	if len(content) == 0 {
		return nil
	}
	if mt := content.Get("application/json"); mt != nil {
		return mt
	}
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(k, "json") {
			return content[k]
		}
	}
	return content[keys[0]]
}

// responseSchema selects the success schema: 200, then 201, then any other
// 2xx in order, then default.
func responseSchema(responses *openapi3.Responses) *openapi3.SchemaRef {
	if responses == nil {
		return nil
	}
	codes := []string{"200", "201"}
	var others []string
	for code := range responses.Map() {
		n, err := strconv.Atoi(code)
		if err == nil && n >= 200 && n < 300 && code != "200" && code != "201" {
			others = append(others, code)
		}
	}
	sort.Strings(others)
	codes = append(codes, others...)
	codes = append(codes, "default")

	for _, code := range codes {
		ref := responses.Value(code)
		if ref == nil || ref.Value == nil {
			continue
		}
		if mt := preferredMedia(ref.Value.Content); mt != nil {
			return mt.Schema
		}
		return nil
	}
	return nil
}

// serverURL returns the first server URL with its variables substituted by
// their defaults.
func serverURL(doc *openapi3.T) string {
	if doc == nil || len(doc.Servers) == 0 || doc.Servers[0] == nil {
		return ""
	}
	srv := doc.Servers[0]
	u := srv.URL
	for name, v := range srv.Variables {
		if v != nil {
			u = strings.ReplaceAll(u, "{"+name+"}", v.Default)
		}
	}
	return strings.TrimSuffix(u, "/")
}
