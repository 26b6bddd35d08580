package oas

import (
	"fmt"
	"net/url"
	"strings"
)

type BodyType string

const (
	BodyJSON     BodyType = "json"
	BodyFormData BodyType = "formData"
)

// RequestOptions is the fully resolved HTTP request for one operation call.
// Backends turn it into an actual request.
type RequestOptions struct {
	Method   string
	BaseURL  string
	Path     string
	Query    map[string]any
	Headers  map[string]string
	Body     any
	BodyType BodyType
}

// URL joins BaseURL, Path and Query.
func (r *RequestOptions) URL() string {
	u := r.BaseURL + r.Path
	if len(r.Query) == 0 {
		return u
	}
	q := url.Values{}
	for k, v := range r.Query {
		if list, ok := v.([]any); ok {
			for _, item := range list {
				q.Add(k, fmt.Sprint(item))
			}
			continue
		}
		q.Set(k, fmt.Sprint(v))
	}
	return u + "?" + q.Encode()
}

// RequestOptions places resolver arguments, keyed by GraphQL argument name,
// into the request according to each parameter's location. Absent and null
// arguments are left out.
func (o *Operation) RequestOptions(args map[string]any) *RequestOptions {
	req := &RequestOptions{
		Method:   o.Method,
		BaseURL:  o.BaseURL,
		Path:     o.Path,
		Query:    map[string]any{},
		Headers:  map[string]string{},
		BodyType: BodyJSON,
	}
	form := map[string]any{}
	for _, p := range o.Parameters {
		v, ok := args[p.Name]
		if !ok || v == nil {
			continue
		}
		switch p.In {
		case InPath:
			req.Path = strings.ReplaceAll(req.Path, "{"+p.SourceName+"}", url.PathEscape(fmt.Sprint(v)))
		case InQuery:
			req.Query[p.SourceName] = v
		case InHeader:
			req.Headers[p.SourceName] = fmt.Sprint(v)
		case InBody:
			req.Body = v
		case InFormData:
			form[p.SourceName] = v
		}
	}
	if len(form) > 0 {
		req.Body = form
		req.BodyType = BodyFormData
	}
	return req
}
