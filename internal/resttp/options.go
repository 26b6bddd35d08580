package resttp

import (
	"log/slog"
	"net/http"
	"time"
)

// Options configures the HTTP transport.
//
// Defaults:
//   - Timeout:  10s (used only if the incoming context has no deadline)
//   - Attempts: 3
//   - Delay:    100ms, doubled per retry
//
// BaseURL, when set, replaces the base URL taken from the document.
type Options struct {
	BaseURL        string
	Client         *http.Client
	Timeout        time.Duration
	Attempts       uint
	Delay          time.Duration
	ForwardHeaders []string
	Logger         *slog.Logger
}

type Option func(*Options)

func defaultOptions() *Options {
	return &Options{
		Client:   http.DefaultClient,
		Timeout:  10 * time.Second,
		Attempts: 3,
		Delay:    100 * time.Millisecond,
		Logger:   slog.Default(),
	}
}

func WithBaseURL(u string) Option        { return func(o *Options) { o.BaseURL = u } }
func WithClient(c *http.Client) Option   { return func(o *Options) { o.Client = c } }
func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithLogger(l *slog.Logger) Option   { return func(o *Options) { o.Logger = l } }
func WithRetry(attempts uint, delay time.Duration) Option {
	return func(o *Options) { o.Attempts = attempts; o.Delay = delay }
}

// WithForwardHeaders lists metadata keys copied onto every backend request
// as HTTP headers. Keys are case-insensitive.
func WithForwardHeaders(headers ...string) Option {
	return func(o *Options) { o.ForwardHeaders = headers }
}
