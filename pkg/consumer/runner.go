package consumer

import (
	"context"
	"fmt"
	"sync"
	"time"

	traceapi "go.opentelemetry.io/otel/trace"

	"github.com/streamhouse/eventflow/pkg/codec"
	"github.com/streamhouse/eventflow/pkg/kafka"
	"github.com/streamhouse/eventflow/pkg/logger"
	"github.com/streamhouse/eventflow/pkg/observability"
	"github.com/streamhouse/eventflow/pkg/schema"
	"github.com/streamhouse/eventflow/pkg/tracer"
)

// Source is the broker side of the processing loop. *kafka.Client
// satisfies it.
type Source interface {
	Consume(ctx context.Context, wg *sync.WaitGroup) (<-chan kafka.Message, error)
	CommitMessage(ctx context.Context, msg kafka.Message) error
}

// Handler processes one decoded event record.
type Handler func(ctx context.Context, record map[string]any) error

// Runner consumes wire-format messages, decodes each against the local
// reader schema, hands the record to the handler, and commits the
// offset after the message is dealt with. A failing message never
// crashes the loop; the configured policy decides whether it is
// skipped or halts the runner.
type Runner struct {
	cfg     Config
	codec   *codec.Codec
	source  Source
	logger  *logger.Logger
	handler Handler

	def *schema.Definition

	tracer   *tracer.Tracer
	observer observability.Observer
}

// NewRunner builds a Runner from cfg, parsing the reader schema. The
// default handler logs the event fields.
func NewRunner(cfg Config, c *codec.Codec, source Source, log *logger.Logger) (*Runner, error) {
	if cfg.FailurePolicy == "" {
		cfg.FailurePolicy = PolicySkip
	}
	if cfg.FailurePolicy != PolicySkip && cfg.FailurePolicy != PolicyHalt {
		return nil, fmt.Errorf("unknown failure policy: %s", cfg.FailurePolicy)
	}

	def, err := schema.Parse([]byte(cfg.Schema))
	if err != nil {
		return nil, fmt.Errorf("failed to parse reader schema: %w", err)
	}

	r := &Runner{
		cfg:    cfg,
		codec:  c,
		source: source,
		logger: log,
		def:    def,
	}
	r.handler = r.logEvent
	return r, nil
}

// WithHandler replaces the default record handler.
func (r *Runner) WithHandler(h Handler) *Runner {
	r.handler = h
	return r
}

// WithTracer attaches a tracer; trace context arriving in message
// headers is restored so consume spans join the producer's trace.
func (r *Runner) WithTracer(t *tracer.Tracer) *Runner {
	r.tracer = t
	return r
}

// WithObserver attaches an observer notified of each decode.
func (r *Runner) WithObserver(o observability.Observer) *Runner {
	r.observer = o
	return r
}

// Run consumes until ctx is cancelled or the source closes its
// channel. With PolicyHalt it also returns on the first failing
// message, leaving that offset uncommitted.
func (r *Runner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	messages, err := r.source.Consume(ctx, &wg)
	if err != nil {
		return err
	}

	r.logger.Info("listening for events", nil, nil)

	for msg := range messages {
		if err := r.handle(ctx, msg); err != nil {
			if r.cfg.FailurePolicy == PolicyHalt {
				// Stop the source before waiting, or a blocked send
				// into the channel would never finish.
				cancel()
				wg.Wait()
				return err
			}
			// PolicySkip: commit anyway so the poisoned message is not
			// redelivered forever.
		}
		if err := r.source.CommitMessage(ctx, msg); err != nil {
			r.logger.Error("failed to commit offset", err, map[string]interface{}{
				"topic":  msg.Topic,
				"offset": msg.Offset,
			})
		}
	}

	wg.Wait()
	return nil
}

func (r *Runner) handle(ctx context.Context, msg kafka.Message) error {
	if r.tracer != nil {
		ctx = r.tracer.SetCarrierOnContext(ctx, msg.Headers)
		var span traceapi.Span
		ctx, span = r.tracer.StartSpan(ctx, "consume-user-event")
		defer span.End()
		r.tracer.SetAttributes(span, map[string]interface{}{
			"messaging.kafka.topic":     msg.Topic,
			"messaging.kafka.partition": msg.Partition,
			"messaging.kafka.offset":    msg.Offset,
		})
	}

	start := time.Now()
	id, record, err := r.codec.DecodeAs(ctx, msg.Value, r.def)
	r.observeDecode(msg.Topic, time.Since(start), err, len(msg.Value))
	if err != nil {
		r.logger.Error("failed to decode message", err, map[string]interface{}{
			"topic":     msg.Topic,
			"partition": msg.Partition,
			"offset":    msg.Offset,
			"policy":    r.cfg.FailurePolicy,
		})
		return err
	}

	if err := r.handler(ctx, record); err != nil {
		r.logger.Error("failed to process event", err, map[string]interface{}{
			"topic":     msg.Topic,
			"offset":    msg.Offset,
			"schema_id": id,
			"policy":    r.cfg.FailurePolicy,
		})
		return err
	}
	return nil
}

func (r *Runner) logEvent(ctx context.Context, record map[string]any) error {
	r.logger.Info("received event", nil, map[string]interface{}{
		"action":    record["action"],
		"user_id":   record["user_id"],
		"page":      record["page"],
		"timestamp": record["timestamp"],
	})
	return nil
}

func (r *Runner) observeDecode(topic string, duration time.Duration, err error, size int) {
	if r.observer == nil {
		return
	}
	r.observer.ObserveOperation(observability.OperationContext{
		Component: "codec",
		Operation: "decode",
		Resource:  topic,
		Duration:  duration,
		Error:     err,
		Size:      int64(size),
	})
}
