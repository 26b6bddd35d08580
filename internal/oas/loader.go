package oas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// ErrorCode categorizes LoadError values.
type ErrorCode string

const (
	InputError      ErrorCode = "InputError"
	NetworkError    ErrorCode = "NetworkError"
	ParseError      ErrorCode = "ParseError"
	ValidationError ErrorCode = "ValidationError"
	ConversionError ErrorCode = "ConversionError"
)

// LoadError is returned by Load and LoadData.
type LoadError struct {
	Code     ErrorCode
	Location string
	Err      error
}

func (e *LoadError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("oas: %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("oas: %s: %s: %v", e.Code, e.Location, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// IsCode reports whether err is a LoadError with the given code.
func IsCode(err error, code ErrorCode) bool {
	var le *LoadError
	return errors.As(err, &le) && le.Code == code
}

type loadOptions struct {
	client   *http.Client
	attempts uint
	delay    time.Duration
	strict   bool
	logger   *slog.Logger
}

type LoadOption func(*loadOptions)

func defaultLoadOptions() loadOptions {
	return loadOptions{
		client:   &http.Client{Timeout: 10 * time.Second},
		attempts: 3,
		delay:    200 * time.Millisecond,
		logger:   slog.Default(),
	}
}

func WithHTTPClient(c *http.Client) LoadOption {
	return func(o *loadOptions) { o.client = c }
}

// WithFetchRetry sets the number of attempts and the base backoff delay used
// when fetching a remote document.
func WithFetchRetry(attempts uint, delay time.Duration) LoadOption {
	return func(o *loadOptions) {
		o.attempts = attempts
		o.delay = delay
	}
}

// WithStrictValidation makes validation failures fatal. Otherwise they are
// logged and loading proceeds.
func WithStrictValidation(strict bool) LoadOption {
	return func(o *loadOptions) { o.strict = strict }
}

func WithLoadLogger(l *slog.Logger) LoadOption {
	return func(o *loadOptions) { o.logger = l }
}

// Load reads an OpenAPI 3 or Swagger 2 document from a file path or an
// http(s) URL. Swagger 2 documents are converted to OpenAPI 3.
func Load(ctx context.Context, location string, opts ...LoadOption) (*openapi3.T, error) {
	o := defaultLoadOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if strings.TrimSpace(location) == "" {
		return nil, &LoadError{Code: InputError, Err: errors.New("empty location")}
	}

	var (
		data []byte
		base *url.URL
		err  error
	)
	if u, perr := url.Parse(location); perr == nil && u.Host != "" && (u.Scheme == "http" || u.Scheme == "https") {
		data, err = fetch(ctx, o, location)
		if err != nil {
			return nil, &LoadError{Code: NetworkError, Location: location, Err: err}
		}
		base = u
	} else {
		abs, aerr := filepath.Abs(location)
		if aerr != nil {
			return nil, &LoadError{Code: InputError, Location: location, Err: aerr}
		}
		data, err = os.ReadFile(abs)
		if err != nil {
			return nil, &LoadError{Code: InputError, Location: abs, Err: err}
		}
		base = &url.URL{Path: filepath.ToSlash(abs)}
	}
	return load(ctx, o, data, base, location)
}

// LoadData parses an in-memory document. External references are resolved
// relative to the working directory.
func LoadData(ctx context.Context, data []byte, opts ...LoadOption) (*openapi3.T, error) {
	o := defaultLoadOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return load(ctx, o, data, nil, "")
}

func load(ctx context.Context, o loadOptions, data []byte, base *url.URL, location string) (*openapi3.T, error) {
	logger := o.logger.With("component", "oas")
	version, err := detectVersion(data)
	if err != nil {
		return nil, &LoadError{Code: ParseError, Location: location, Err: err}
	}

	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true
	loader.Context = ctx

	var doc *openapi3.T
	switch version {
	case 2:
		doc, err = convertV2(data)
		if err != nil {
			return nil, &LoadError{Code: ConversionError, Location: location, Err: err}
		}
		if err := loader.ResolveRefsIn(doc, base); err != nil {
			return nil, &LoadError{Code: ParseError, Location: location, Err: err}
		}
	default:
		if base != nil {
			doc, err = loader.LoadFromDataWithPath(data, base)
		} else {
			doc, err = loader.LoadFromData(data)
		}
		if err != nil {
			return nil, &LoadError{Code: ParseError, Location: location, Err: err}
		}
	}

	if err := doc.Validate(ctx); err != nil {
		if o.strict {
			return nil, &LoadError{Code: ValidationError, Location: location, Err: err}
		}
		logger.Warn("document failed validation, continuing", "location", location, "error", err)
	}
	logger.Debug("document loaded", "location", location, "version", version, "paths", doc.Paths.Len())
	return doc, nil
}

func fetch(ctx context.Context, o loadOptions, rawURL string) ([]byte, error) {
	var data []byte
	err := retry.Do(
		func() error {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
			if err != nil {
				return permanent{err}
			}
			resp, err := o.client.Do(req)
			if err != nil {
				return err
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
				return fmt.Errorf("transient http status %d", resp.StatusCode)
			}
			if resp.StatusCode >= 300 {
				body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
				return permanent{fmt.Errorf("http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
			}
			data, err = io.ReadAll(resp.Body)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(o.attempts),
		retry.Delay(o.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			var p permanent
			return !errors.As(err, &p)
		}),
		retry.OnRetry(func(n uint, err error) {
			o.logger.Debug("retrying document fetch", "component", "oas", "url", rawURL, "attempt", n+1, "error", err)
		}),
	)
	return data, err
}

// permanent marks fetch failures that retrying cannot fix.
type permanent struct{ error }

func (p permanent) Unwrap() error { return p.error }

// detectVersion returns 3 for OpenAPI 3 and 2 for Swagger 2 documents.
func detectVersion(data []byte) (int, error) {
	var head struct {
		OpenAPI string `yaml:"openapi"`
		Swagger string `yaml:"swagger"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return 0, fmt.Errorf("parse document: %w", err)
	}
	switch {
	case strings.HasPrefix(strings.TrimSpace(head.OpenAPI), "3."):
		return 3, nil
	case strings.HasPrefix(strings.TrimSpace(head.Swagger), "2."):
		return 2, nil
	}
	return 0, errors.New("missing or unsupported version, expected openapi 3.x or swagger 2.0")
}

// convertV2 decodes a Swagger 2 document, which may be YAML, and converts it
// to OpenAPI 3.
func convertV2(data []byte) (*openapi3.T, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	js, err := json.Marshal(stringKeys(raw))
	if err != nil {
		return nil, err
	}
	var v2 openapi2.T
	if err := json.Unmarshal(js, &v2); err != nil {
		return nil, err
	}
	return openapi2conv.ToV3(&v2)
}

// stringKeys rewrites YAML mappings with non-string keys, such as unquoted
// response codes, so they can be encoded as JSON.
func stringKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, item := range t {
			t[k] = stringKeys(item)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[fmt.Sprint(k)] = stringKeys(item)
		}
		return out
	case []any:
		for i, item := range t {
			t[i] = stringKeys(item)
		}
		return t
	}
	return v
}
