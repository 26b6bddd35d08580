package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc/metadata"

	eventbus "github.com/hanpama/oasgraph/internal/eventbus"
	events "github.com/hanpama/oasgraph/internal/events"
	executor "github.com/hanpama/oasgraph/internal/executor"
	language "github.com/hanpama/oasgraph/internal/language"
	reqid "github.com/hanpama/oasgraph/internal/reqid"
	schema "github.com/hanpama/oasgraph/internal/schema"
)

// requestIDHeader carries the request id to the backend.
const requestIDHeader = "graphql-request-id"

// Handler serves a schema over HTTP. It accepts GET and POST, batched POST
// bodies, and answers GET ?sdl with the schema in SDL form.
type Handler struct {
	exec    *executor.Executor
	sdl     string
	opt     Options
	forward map[string]struct{}
	logger  *slog.Logger
}

// New creates a handler executing against sch through runtime.
func New(runtime executor.Runtime, sch *schema.Schema, opts ...Option) (*Handler, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	h := &Handler{
		exec:    executor.NewExecutor(runtime, sch),
		sdl:     schema.Render(sch),
		opt:     o,
		forward: make(map[string]struct{}, len(o.ForwardHeaders)),
		logger:  o.Logger.With("component", "server"),
	}
	for _, name := range o.ForwardHeaders {
		h.forward[strings.ToLower(name)] = struct{}{}
	}
	return h, nil
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
		defer cancel()
	}
	ctx, rid := reqid.NewContext(ctx)

	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, Status: status, Duration: time.Since(start)})
	}()

	h.setCORSHeaders(w, r)
	switch r.Method {
	case http.MethodOptions:
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	case http.MethodGet:
		if r.URL.Query().Has("sdl") {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = io.WriteString(w, h.sdl)
			return
		}
	case http.MethodPost:
	default:
		status = http.StatusMethodNotAllowed
		h.writeJSON(w, status, errorResult("method not allowed"))
		return
	}

	reqs, batch, err := readRequests(r, h.opt.MaxBodyBytes)
	if err != nil {
		status = http.StatusBadRequest
		var re *requestError
		if errors.As(err, &re) {
			status = re.Status
		}
		h.writeJSON(w, status, errorResult(err.Error()))
		return
	}

	ctx = metadata.NewOutgoingContext(ctx, h.outgoingMetadata(r, rid))
	results := make([]*result, len(reqs))
	for i, req := range reqs {
		results[i] = h.execute(ctx, req)
	}
	if batch {
		h.writeJSON(w, status, results)
		return
	}
	h.writeJSON(w, status, results[0])
}

// outgoingMetadata selects the forwarded inbound headers and adds the
// request id.
func (h *Handler) outgoingMetadata(r *http.Request, rid int64) metadata.MD {
	md := metadata.MD{}
	for name, values := range r.Header {
		key := strings.ToLower(name)
		if _, ok := h.forward[key]; ok {
			md[key] = values
		}
	}
	md[requestIDHeader] = []string{strconv.FormatInt(rid, 10)}
	return md
}

func (h *Handler) execute(ctx context.Context, req GraphQLRequest) *result {
	doc, err := language.ParseQuery(req.Query)
	if err != nil {
		return syntaxErrorResult(err)
	}

	var opType string
	if op := doc.Operations.ForName(req.OperationName); op != nil {
		opType = string(op.Operation)
	} else if len(doc.Operations) == 1 {
		opType = string(doc.Operations[0].Operation)
	}

	start := time.Now()
	eventbus.Publish(ctx, events.GraphQLStart{Query: req.Query, OperationName: req.OperationName, OperationType: opType})
	res := h.exec.ExecuteRequest(ctx, doc, req.OperationName, req.Variables, nil)
	elapsed := time.Since(start)

	errs := make([]error, len(res.Errors))
	for i := range res.Errors {
		errs[i] = res.Errors[i]
	}
	eventbus.Publish(ctx, events.GraphQLFinish{
		Query:         req.Query,
		OperationName: req.OperationName,
		OperationType: opType,
		Errors:        errs,
		Duration:      elapsed,
	})
	h.logger.Debug("graphql operation executed",
		"operation", req.OperationName,
		"type", opType,
		"errors", len(errs),
		"duration", elapsed,
	)
	return fromExecution(res)
}
