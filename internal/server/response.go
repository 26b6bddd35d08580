package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"

	executor "github.com/hanpama/oasgraph/internal/executor"
	language "github.com/hanpama/oasgraph/internal/language"
)

type location struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type resultError struct {
	Message    string         `json:"message"`
	Locations  []location     `json:"locations,omitempty"`
	Path       executor.Path  `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// result is the response body of one operation.
type result struct {
	Data   any           `json:"data"`
	Errors []resultError `json:"errors,omitempty"`
}

func errorResult(msg string) *result {
	return &result{Errors: []resultError{{Message: msg}}}
}

// syntaxErrorResult reports a parse failure with its source locations.
func syntaxErrorResult(err error) *result {
	var ge *language.Error
	if !errors.As(err, &ge) {
		return errorResult(err.Error())
	}
	re := resultError{Message: ge.Message, Extensions: ge.Extensions}
	for _, l := range ge.Locations {
		re.Locations = append(re.Locations, location{Line: l.Line, Column: l.Column})
	}
	return &result{Errors: []resultError{re}}
}

func fromExecution(res *executor.ExecutionResult) *result {
	out := &result{Data: res.Data}
	for _, e := range res.Errors {
		out.Errors = append(out.Errors, resultError{Message: e.Message, Path: e.Path, Extensions: e.Extensions})
	}
	return out
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if h.opt.Pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		h.logger.Warn("failed to write response", "error", err)
	}
}

// setCORSHeaders allows the request origin when it is listed or "*" is.
func (h *Handler) setCORSHeaders(w http.ResponseWriter, r *http.Request) {
	allowed := h.opt.CORS.AllowedOrigins
	origin := r.Header.Get("Origin")
	if len(allowed) == 0 || origin == "" {
		return
	}
	switch {
	case slices.Contains(allowed, "*"):
		w.Header().Set("Access-Control-Allow-Origin", "*")
	case slices.Contains(allowed, origin):
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	default:
		return
	}
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}
