package server

import (
	"log/slog"
	"time"
)

type Options struct {
	// Timeout bounds a request whose context has no deadline. Zero disables it.
	Timeout time.Duration

	// Pretty indents JSON responses.
	Pretty bool

	// MaxBodyBytes limits POST bodies. Zero means unlimited.
	MaxBodyBytes int64

	// CORS is disabled while AllowedOrigins is empty.
	CORS CORSOptions

	// ForwardHeaders lists inbound headers, matched case-insensitively, that
	// are passed to the backend as outgoing metadata.
	ForwardHeaders []string

	Logger *slog.Logger
}

type CORSOptions struct {
	AllowedOrigins []string
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                 { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option    { return func(o *Options) { o.MaxBodyBytes = n } }
func WithLogger(l *slog.Logger) Option   { return func(o *Options) { o.Logger = l } }

func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}

func WithForwardHeaders(headers ...string) Option {
	return func(o *Options) { o.ForwardHeaders = headers }
}

func defaultOptions() Options {
	return Options{Timeout: 10 * time.Second, Logger: slog.Default()}
}
