package resttp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go"
	"google.golang.org/grpc/metadata"

	"github.com/hanpama/oasgraph/internal/bridge"
	eventbus "github.com/hanpama/oasgraph/internal/eventbus"
	events "github.com/hanpama/oasgraph/internal/events"
	"github.com/hanpama/oasgraph/internal/oas"
)

// Transport performs operation calls over HTTP with deadline propagation and
// retries for transient failures. It is safe for concurrent use.
type Transport struct {
	opts   *Options
	closed atomic.Bool
}

func New(opts ...Option) *Transport {
	o := defaultOptions()
	for _, f := range opts {
		f(o)
	}
	if o.Client == nil {
		o.Client = http.DefaultClient
	}
	if o.Attempts == 0 {
		o.Attempts = 1
	}
	o.Logger = o.Logger.With("component", "resttp")
	return &Transport{opts: o}
}

// Backend returns t.Call as a bridge.Backend.
func (t *Transport) Backend() bridge.Backend { return t.Call }

// Call sends req and returns the decoded response body. JSON bodies decode
// with numbers kept as json.Number; other bodies are returned as text.
func (t *Transport) Call(ctx context.Context, req *oas.RequestOptions) (resp any, err error) {
	if t.closed.Load() {
		return nil, ErrClosed
	}
	if _, ok := ctx.Deadline(); !ok && t.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.opts.Timeout)
		defer cancel()
	}

	target := *req
	if t.opts.BaseURL != "" {
		target.BaseURL = strings.TrimSuffix(t.opts.BaseURL, "/")
	}
	rawURL := target.URL()
	body, contentType, err := encodeBody(&target)
	if err != nil {
		return nil, err
	}

	var attempts uint
	status := 0
	start := time.Now()
	eventbus.Publish(ctx, events.BackendStart{Method: req.Method, URL: rawURL})
	defer func() {
		eventbus.Publish(ctx, events.BackendFinish{
			Method:   req.Method,
			URL:      rawURL,
			Status:   status,
			Attempts: attempts,
			Err:      err,
			Duration: time.Since(start),
		})
	}()

	err = retry.Do(
		func() error {
			attempts++
			var callErr error
			status, resp, callErr = t.send(ctx, &target, rawURL, body, contentType)
			return callErr
		},
		retry.Context(ctx),
		retry.Attempts(t.opts.Attempts),
		retry.Delay(t.opts.Delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool { return retryable(req.Method, err) }),
		retry.OnRetry(func(n uint, err error) {
			t.opts.Logger.Debug("retrying backend call", "method", req.Method, "url", rawURL, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Close makes further calls fail with ErrClosed and releases idle
// connections of the underlying client.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.opts.Client.CloseIdleConnections()
	return nil
}

func (t *Transport) send(ctx context.Context, req *oas.RequestOptions, rawURL string, body []byte, contentType string) (int, any, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	hr, err := http.NewRequestWithContext(ctx, req.Method, rawURL, reader)
	if err != nil {
		return 0, nil, err
	}
	hr.Header.Set("Accept", "application/json")
	if contentType != "" {
		hr.Header.Set("Content-Type", contentType)
	}
	t.forwardHeaders(ctx, hr)
	for k, v := range req.Headers {
		hr.Header.Set(k, v)
	}

	res, err := t.opts.Client.Do(hr)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, err
	}
	decoded, err := decodeBody(res.Header.Get("Content-Type"), raw)
	if err != nil {
		return res.StatusCode, nil, fmt.Errorf("%s %s: decode response: %w", req.Method, rawURL, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return res.StatusCode, nil, &StatusError{Method: req.Method, URL: rawURL, Status: res.StatusCode, Body: decoded}
	}
	return res.StatusCode, decoded, nil
}

// forwardHeaders copies the configured keys from outgoing grpc metadata,
// which the GraphQL handler fills from the inbound request.
func (t *Transport) forwardHeaders(ctx context.Context, hr *http.Request) {
	if len(t.opts.ForwardHeaders) == 0 {
		return
	}
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		return
	}
	for _, key := range t.opts.ForwardHeaders {
		for _, v := range md.Get(key) {
			hr.Header.Add(key, v)
		}
	}
}

// retryable reports whether a failed call may be sent again. Methods that
// are not idempotent are retried only when the connection was never made,
// so the backend cannot have seen the request.
func retryable(method string, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if !idempotent(method) {
		var op *net.OpError
		return errors.As(err, &op) && op.Op == "dial"
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	return true
}

func idempotent(method string) bool {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func encodeBody(req *oas.RequestOptions) ([]byte, string, error) {
	if req.Body == nil {
		return nil, "", nil
	}
	if req.BodyType == oas.BodyFormData {
		form, ok := req.Body.(map[string]any)
		if !ok {
			return nil, "", fmt.Errorf("resttp: form body must be an object, got %T", req.Body)
		}
		values := url.Values{}
		for k, v := range form {
			if list, ok := v.([]any); ok {
				for _, item := range list {
					values.Add(k, fmt.Sprint(item))
				}
				continue
			}
			values.Set(k, fmt.Sprint(v))
		}
		return []byte(values.Encode()), "application/x-www-form-urlencoded", nil
	}
	b, err := json.Marshal(req.Body)
	if err != nil {
		return nil, "", fmt.Errorf("resttp: encode body: %w", err)
	}
	return b, "application/json", nil
}

func decodeBody(contentType string, raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, nil
	}
	mt, _, _ := mime.ParseMediaType(contentType)
	if mt != "application/json" && !strings.HasSuffix(mt, "+json") {
		return string(raw), nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
