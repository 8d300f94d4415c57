package producer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	traceapi "go.opentelemetry.io/otel/trace"

	"github.com/streamhouse/eventflow/pkg/codec"
	"github.com/streamhouse/eventflow/pkg/logger"
	"github.com/streamhouse/eventflow/pkg/observability"
	"github.com/streamhouse/eventflow/pkg/registry"
	"github.com/streamhouse/eventflow/pkg/schema"
	"github.com/streamhouse/eventflow/pkg/tracer"
)

// Publisher is the broker side of the ingest server. *kafka.Client
// satisfies it.
type Publisher interface {
	Publish(ctx context.Context, key, value []byte, headers map[string]string) error
}

// Server accepts user events over HTTP, encodes them into the wire
// format against the configured subject, and publishes them.
type Server struct {
	cfg       Config
	codec     *codec.Codec
	publisher Publisher
	logger    *logger.Logger

	def *schema.Definition

	tracer   *tracer.Tracer
	observer observability.Observer

	httpServer *http.Server
}

// NewServer builds a Server from cfg, applying defaults and parsing
// the configured schema document.
func NewServer(cfg Config, c *codec.Codec, publisher Publisher, log *logger.Logger) (*Server, error) {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.ReadHeaderTimeout == 0 {
		cfg.ReadHeaderTimeout = DefaultReadHeaderTimeout
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = DefaultShutdownTimeout
	}

	def, err := schema.Parse([]byte(cfg.Schema))
	if err != nil {
		return nil, fmt.Errorf("failed to parse event schema: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		codec:     c,
		publisher: publisher,
		logger:    log,
		def:       def,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
	return s, nil
}

// WithTracer attaches a tracer; spans are created per ingested event
// and the trace context rides along in message headers.
func (s *Server) WithTracer(t *tracer.Tracer) *Server {
	s.tracer = t
	return s
}

// WithObserver attaches an observer notified of each encode.
func (s *Server) WithObserver(o observability.Observer) *Server {
	s.observer = o
	return s
}

// RegisterSchema registers the configured schema under the configured
// subject and warms the encode cache with the assigned id. Called at
// startup; a failure here means the registry is unreachable or the
// schema was rejected, and the service must not come up.
func (s *Server) RegisterSchema(ctx context.Context) error {
	id, err := s.codec.Cache().Identify(ctx, s.cfg.Subject, s.def)
	if err != nil {
		return fmt.Errorf("failed to register schema for %s: %w", s.cfg.Subject, err)
	}
	s.logger.Info("event schema registered", nil, map[string]interface{}{
		"subject":   s.cfg.Subject,
		"schema_id": id,
	})
	return nil
}

// Handler returns the ingest routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/events/user_action", s.handleUserAction)
	mux.HandleFunc("/healthz", s.handleHealthz)
	return mux
}

// ListenAndServe runs the HTTP server until Shutdown is called.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// response is the JSON body of every ingest reply.
type response struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

func (s *Server) handleUserAction(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, response{
			Status:  "error",
			Message: "method not allowed",
		})
		return
	}

	q := r.URL.Query()

	userID, err := strconv.ParseInt(q.Get("user_id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{
			Status:  "error",
			Message: "user_id must be an integer",
		})
		return
	}
	action := q.Get("action")
	if action == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Status:  "error",
			Message: "action is required",
		})
		return
	}
	page := q.Get("page")
	if page == "" {
		writeJSON(w, http.StatusBadRequest, response{
			Status:  "error",
			Message: "page is required",
		})
		return
	}

	record := map[string]any{
		"user_id":   userID,
		"action":    action,
		"page":      page,
		"timestamp": time.Now().UnixMilli(),
	}

	ctx := r.Context()
	if s.tracer != nil {
		var span traceapi.Span
		ctx, span = s.tracer.StartSpan(ctx, "produce-user-event")
		defer span.End()
		s.tracer.SetAttributes(span, map[string]interface{}{
			"event.subject": s.cfg.Subject,
			"event.action":  action,
			"user.id":       userID,
		})
	}

	start := time.Now()
	envelope, err := s.codec.Encode(ctx, s.cfg.Subject, record, s.def)
	s.observeEncode(time.Since(start), err, len(envelope))
	if err != nil {
		s.logger.Error("failed to encode event", err, map[string]interface{}{
			"subject": s.cfg.Subject,
		})
		writeJSON(w, encodeStatus(err), response{
			Status:  "error",
			Message: fmt.Sprintf("failed to encode event: %v", err),
		})
		return
	}

	var headers map[string]string
	if s.tracer != nil {
		headers = s.tracer.GetCarrier(ctx)
	}

	key := []byte(strconv.FormatInt(userID, 10))
	if err := s.publisher.Publish(ctx, key, envelope, headers); err != nil {
		s.logger.Error("failed to publish event", err, map[string]interface{}{
			"subject": s.cfg.Subject,
		})
		writeJSON(w, http.StatusBadGateway, response{
			Status:  "error",
			Message: fmt.Sprintf("failed to publish event: %v", err),
		})
		return
	}

	s.logger.Debug("event published", nil, map[string]interface{}{
		"subject": s.cfg.Subject,
		"user_id": userID,
		"action":  action,
	})

	writeJSON(w, http.StatusOK, response{
		Status:  "success",
		Message: "event produced",
		Data:    record,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, response{Status: "success", Message: "ok"})
}

func (s *Server) observeEncode(duration time.Duration, err error, size int) {
	if s.observer == nil {
		return
	}
	s.observer.ObserveOperation(observability.OperationContext{
		Component: "codec",
		Operation: "encode",
		Resource:  s.cfg.Subject,
		Duration:  duration,
		Error:     err,
		Size:      int64(size),
	})
}

// encodeStatus maps encode failures to HTTP status codes carrying the
// specific error kind: the caller's data is bad (400), the registry is
// down (503), or the schema reference is stale (404).
func encodeStatus(err error) int {
	switch {
	case errors.Is(err, registry.ErrRegistryUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, registry.ErrUnknownSubject),
		errors.Is(err, registry.ErrUnknownVersion),
		errors.Is(err, registry.ErrUnknownSchemaID):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrIncompatibleSchema):
		return http.StatusConflict
	case errors.Is(err, codec.ErrMissingRequiredField),
		errors.Is(err, codec.ErrFieldTypeMismatch),
		errors.Is(err, schema.ErrInvalidSchema),
		errors.Is(err, registry.ErrInvalidSchema):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
