package kafka

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/streamhouse/eventflow/pkg/observability"
)

// ErrNotProducer is returned when Publish is called on a consumer client.
var ErrNotProducer = errors.New("kafka: client is not configured as a producer")

// ErrNotConsumer is returned when Consume or CommitMessage is called on
// a producer client.
var ErrNotConsumer = errors.New("kafka: client is not configured as a consumer")

// Message is a consumed record handed to the processing loop. The
// original broker message is retained so the offset can be committed
// once processing succeeds.
type Message struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64

	raw kafkago.Message
}

// Publish delivers one message to the configured topic. Headers carry
// metadata alongside the payload, typically trace context and the
// subject the payload was encoded under.
func (k *Client) Publish(ctx context.Context, key, value []byte, headers map[string]string) error {
	k.mu.RLock()
	writer := k.writer
	k.mu.RUnlock()

	if writer == nil {
		return ErrNotProducer
	}

	msg := kafkago.Message{
		Key:   key,
		Value: value,
	}
	for name, val := range headers {
		msg.Headers = append(msg.Headers, kafkago.Header{Key: name, Value: []byte(val)})
	}

	start := time.Now()
	err := writer.WriteMessages(ctx, msg)

	if k.observer != nil {
		k.observer.ObserveOperation(observability.OperationContext{
			Component: "kafka",
			Operation: "publish",
			Resource:  k.cfg.Topic,
			Duration:  time.Since(start),
			Error:     err,
			Size:      int64(len(value)),
		})
	}

	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", k.cfg.Topic, err)
	}
	return nil
}

// Consume starts a goroutine that reads messages from the configured
// topic and delivers them on the returned channel. The loop stops when
// ctx is cancelled or GracefulShutdown is called, closing the channel
// and marking wg done.
//
// Offsets are not committed by the loop; callers commit each message
// with CommitMessage after processing it (unless auto-commit is
// enabled in the configuration).
func (k *Client) Consume(ctx context.Context, wg *sync.WaitGroup) (<-chan Message, error) {
	k.mu.RLock()
	reader := k.reader
	k.mu.RUnlock()

	if reader == nil {
		return nil, ErrNotConsumer
	}

	out := make(chan Message)
	wg.Add(1)

	go func() {
		defer wg.Done()
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case <-k.shutdownSignal:
				return
			default:
			}

			raw, err := reader.FetchMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
					return
				}
				if k.cfg.Logger != nil {
					k.cfg.Logger.Error("failed to fetch message", err, map[string]interface{}{
						"topic": k.cfg.Topic,
					})
				}
				continue
			}

			headers := make(map[string]string, len(raw.Headers))
			for _, h := range raw.Headers {
				headers[h.Key] = string(h.Value)
			}

			msg := Message{
				Key:       raw.Key,
				Value:     raw.Value,
				Headers:   headers,
				Topic:     raw.Topic,
				Partition: raw.Partition,
				Offset:    raw.Offset,
				raw:       raw,
			}

			if k.observer != nil {
				k.observer.ObserveOperation(observability.OperationContext{
					Component: "kafka",
					Operation: "consume",
					Resource:  raw.Topic,
					Size:      int64(len(raw.Value)),
				})
			}

			select {
			case out <- msg:
			case <-ctx.Done():
				return
			case <-k.shutdownSignal:
				return
			}
		}
	}()

	return out, nil
}

// CommitMessage marks msg's offset as processed. With auto-commit
// disabled the commit is synchronous, so a crash before this call
// redelivers the message to the group.
func (k *Client) CommitMessage(ctx context.Context, msg Message) error {
	k.mu.RLock()
	reader := k.reader
	k.mu.RUnlock()

	if reader == nil {
		return ErrNotConsumer
	}
	if err := reader.CommitMessages(ctx, msg.raw); err != nil {
		return fmt.Errorf("failed to commit offset %d: %w", msg.Offset, err)
	}
	return nil
}

// GracefulShutdown stops the consume loop and closes the underlying
// writer or reader. It is safe to call more than once.
func (k *Client) GracefulShutdown() error {
	k.closeShutdownOnce.Do(func() {
		close(k.shutdownSignal)
	})

	k.mu.Lock()
	defer k.mu.Unlock()

	var errs []error
	if k.writer != nil {
		if err := k.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close writer: %w", err))
		}
		k.writer = nil
	}
	if k.reader != nil {
		if err := k.reader.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close reader: %w", err))
		}
		k.reader = nil
	}
	return errors.Join(errs...)
}
