package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
)

type GraphQLRequest struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
	Extensions    map[string]any `json:"extensions,omitempty"`
}

// requestError rejects a whole HTTP request before any operation runs.
type requestError struct {
	Status  int
	Message string
}

func (e *requestError) Error() string { return e.Message }

func badRequest(msg string) *requestError {
	return &requestError{Status: http.StatusBadRequest, Message: msg}
}

// readRequests decodes the operations of r. A JSON array body is a batch;
// batch is then true even for a single element.
func readRequests(r *http.Request, maxBody int64) (reqs []GraphQLRequest, batch bool, err error) {
	if r.Method == http.MethodGet {
		req, err := queryRequest(r)
		if err != nil {
			return nil, false, err
		}
		return []GraphQLRequest{req}, false, nil
	}

	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, _ := mime.ParseMediaType(ct); mt != "application/json" {
			return nil, false, &requestError{Status: http.StatusUnsupportedMediaType, Message: "unsupported Content-Type " + ct}
		}
	}
	defer r.Body.Close()
	body := io.Reader(r.Body)
	if maxBody > 0 {
		body = io.LimitReader(r.Body, maxBody+1)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, false, badRequest("failed to read body")
	}
	if maxBody > 0 && int64(len(raw)) > maxBody {
		return nil, false, &requestError{Status: http.StatusRequestEntityTooLarge, Message: "body too large"}
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		if err := decodeJSON(raw, &reqs); err != nil {
			return nil, false, badRequest("invalid JSON")
		}
		if len(reqs) == 0 {
			return nil, false, badRequest("empty batch")
		}
		return reqs, true, nil
	}
	var req GraphQLRequest
	if err := decodeJSON(raw, &req); err != nil {
		return nil, false, badRequest("invalid JSON")
	}
	if req.Query == "" {
		return nil, false, badRequest("missing 'query'")
	}
	return []GraphQLRequest{req}, false, nil
}

func queryRequest(r *http.Request) (GraphQLRequest, error) {
	q := r.URL.Query()
	req := GraphQLRequest{Query: q.Get("query"), OperationName: q.Get("operationName")}
	if req.Query == "" {
		return req, badRequest("missing 'query'")
	}
	if v := q.Get("variables"); v != "" {
		if err := decodeJSON([]byte(v), &req.Variables); err != nil {
			return req, badRequest("invalid 'variables' JSON")
		}
	}
	return req, nil
}

// decodeJSON keeps numbers as json.Number so integers beyond float64
// precision reach the backend intact.
func decodeJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data")
	}
	return nil
}
