package consumer

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamhouse/eventflow/pkg/codec"
	"github.com/streamhouse/eventflow/pkg/kafka"
	"github.com/streamhouse/eventflow/pkg/logger"
	"github.com/streamhouse/eventflow/pkg/observability"
	"github.com/streamhouse/eventflow/pkg/registry"
	"github.com/streamhouse/eventflow/pkg/schema"
)

type fakeObserver struct {
	mu  sync.Mutex
	ops []observability.OperationContext
}

func (f *fakeObserver) ObserveOperation(op observability.OperationContext) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, op)
}

const userEventV1 = `{
	"type": "record",
	"name": "UserEvent",
	"namespace": "com.streamhouse.events",
	"fields": [
		{"name": "user_id", "type": "long"},
		{"name": "action", "type": "string"},
		{"name": "timestamp", "type": "long"}
	]
}`

const userEventV2 = `{
	"type": "record",
	"name": "UserEvent",
	"namespace": "com.streamhouse.events",
	"fields": [
		{"name": "user_id", "type": "long"},
		{"name": "action", "type": "string"},
		{"name": "page", "type": "string", "default": "unknown"},
		{"name": "timestamp", "type": "long"}
	]
}`

type fakeStore struct {
	mu     sync.Mutex
	nextID int
	byID   map[int]*schema.Definition
}

func newFakeStore() *fakeStore {
	return &fakeStore{nextID: 1, byID: make(map[int]*schema.Definition)}
}

func (f *fakeStore) Register(ctx context.Context, subject string, def *schema.Definition) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextID
	f.nextID++
	f.byID[id] = def
	return id, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id int) (*schema.Definition, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	def, ok := f.byID[id]
	if !ok {
		return nil, registry.ErrUnknownSchemaID
	}
	return def, nil
}

type fakeSource struct {
	messages []kafka.Message

	mu        sync.Mutex
	committed []int64
}

func (f *fakeSource) Consume(ctx context.Context, wg *sync.WaitGroup) (<-chan kafka.Message, error) {
	out := make(chan kafka.Message)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)
		for _, msg := range f.messages {
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (f *fakeSource) CommitMessage(ctx context.Context, msg kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.committed = append(f.committed, msg.Offset)
	return nil
}

func encodeEvent(t *testing.T, store *fakeStore, schemaJSON string, record map[string]any) []byte {
	t.Helper()
	def, err := schema.Parse([]byte(schemaJSON))
	require.NoError(t, err)
	value, err := codec.New(store).Encode(context.Background(), "user_events-value", record, def)
	require.NoError(t, err)
	return value
}

func newTestRunner(t *testing.T, cfg Config, store *fakeStore, source *fakeSource) *Runner {
	t.Helper()
	if cfg.Schema == "" {
		cfg.Schema = userEventV2
	}
	log := logger.NewLoggerClient(logger.Config{Level: logger.Error, ServiceName: "test"})
	r, err := NewRunner(cfg, codec.New(store), source, log)
	require.NoError(t, err)
	return r
}

func TestRunProcessesEvents(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{messages: []kafka.Message{
		{Topic: "user_events", Offset: 0, Value: encodeEvent(t, store, userEventV2, map[string]any{
			"user_id": int64(1), "action": "login", "page": "home", "timestamp": int64(1000),
		})},
		{Topic: "user_events", Offset: 1, Value: encodeEvent(t, store, userEventV2, map[string]any{
			"user_id": int64(2), "action": "purchase", "page": "cart", "timestamp": int64(2000),
		})},
	}}

	var mu sync.Mutex
	var records []map[string]any
	r := newTestRunner(t, Config{}, store, source).WithHandler(func(ctx context.Context, record map[string]any) error {
		mu.Lock()
		defer mu.Unlock()
		records = append(records, record)
		return nil
	})

	require.NoError(t, r.Run(context.Background()))

	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0]["user_id"])
	assert.Equal(t, "purchase", records[1]["action"])
	assert.Equal(t, []int64{0, 1}, source.committed)
}

func TestRunObservesDecode(t *testing.T) {
	store := newFakeStore()
	value := encodeEvent(t, store, userEventV2, map[string]any{
		"user_id": int64(1), "action": "login", "page": "home", "timestamp": int64(1000),
	})
	source := &fakeSource{messages: []kafka.Message{
		{Topic: "user_events", Offset: 0, Value: value},
	}}

	observer := &fakeObserver{}
	r := newTestRunner(t, Config{}, store, source).WithObserver(observer)

	require.NoError(t, r.Run(context.Background()))

	require.Len(t, observer.ops, 1)
	op := observer.ops[0]
	assert.Equal(t, "codec", op.Component)
	assert.Equal(t, "decode", op.Operation)
	assert.Equal(t, "user_events", op.Resource)
	assert.Equal(t, int64(len(value)), op.Size)
	assert.NoError(t, op.Error)
}

func TestSkipPolicyCommitsBadMessage(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{messages: []kafka.Message{
		{Topic: "user_events", Offset: 0, Value: []byte{0x7f, 0xde, 0xad}},
		{Topic: "user_events", Offset: 1, Value: encodeEvent(t, store, userEventV2, map[string]any{
			"user_id": int64(2), "action": "login", "page": "home", "timestamp": int64(2000),
		})},
	}}

	var records []map[string]any
	r := newTestRunner(t, Config{FailurePolicy: PolicySkip}, store, source).
		WithHandler(func(ctx context.Context, record map[string]any) error {
			records = append(records, record)
			return nil
		})

	require.NoError(t, r.Run(context.Background()))

	// The bad message is committed too, so it is not redelivered.
	assert.Equal(t, []int64{0, 1}, source.committed)
	require.Len(t, records, 1)
	assert.Equal(t, int64(2), records[0]["user_id"])
}

func TestHaltPolicyStopsLoop(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{messages: []kafka.Message{
		{Topic: "user_events", Offset: 0, Value: []byte{0x7f, 0xde, 0xad}},
		{Topic: "user_events", Offset: 1, Value: encodeEvent(t, store, userEventV2, map[string]any{
			"user_id": int64(2), "action": "login", "page": "home", "timestamp": int64(2000),
		})},
	}}

	handled := 0
	r := newTestRunner(t, Config{FailurePolicy: PolicyHalt}, store, source).
		WithHandler(func(ctx context.Context, record map[string]any) error {
			handled++
			return nil
		})

	err := r.Run(context.Background())
	require.ErrorIs(t, err, codec.ErrMalformedEnvelope)

	// The failing offset stays uncommitted for redelivery.
	assert.Empty(t, source.committed)
	assert.Zero(t, handled)
}

func TestHandlerErrorFollowsPolicy(t *testing.T) {
	store := newFakeStore()
	source := &fakeSource{messages: []kafka.Message{
		{Topic: "user_events", Offset: 0, Value: encodeEvent(t, store, userEventV2, map[string]any{
			"user_id": int64(1), "action": "login", "page": "home", "timestamp": int64(1000),
		})},
		{Topic: "user_events", Offset: 1, Value: encodeEvent(t, store, userEventV2, map[string]any{
			"user_id": int64(2), "action": "logout", "page": "home", "timestamp": int64(2000),
		})},
	}}

	calls := 0
	r := newTestRunner(t, Config{}, store, source).
		WithHandler(func(ctx context.Context, record map[string]any) error {
			calls++
			if calls == 1 {
				return fmt.Errorf("downstream unavailable")
			}
			return nil
		})

	require.NoError(t, r.Run(context.Background()))

	assert.Equal(t, 2, calls)
	assert.Equal(t, []int64{0, 1}, source.committed)
}

func TestReaderSchemaProjection(t *testing.T) {
	store := newFakeStore()
	// Written with the old schema version, before the page field existed.
	source := &fakeSource{messages: []kafka.Message{
		{Topic: "user_events", Offset: 0, Value: encodeEvent(t, store, userEventV1, map[string]any{
			"user_id": int64(7), "action": "login", "timestamp": int64(1000),
		})},
	}}

	var record map[string]any
	r := newTestRunner(t, Config{Schema: userEventV2}, store, source).
		WithHandler(func(ctx context.Context, rec map[string]any) error {
			record = rec
			return nil
		})

	require.NoError(t, r.Run(context.Background()))

	require.NotNil(t, record)
	assert.Equal(t, int64(7), record["user_id"])
	assert.Equal(t, "unknown", record["page"])
}

func TestNewRunnerValidation(t *testing.T) {
	log := logger.NewLoggerClient(logger.Config{Level: logger.Error, ServiceName: "test"})
	c := codec.New(newFakeStore())

	_, err := NewRunner(Config{Schema: userEventV2, FailurePolicy: "retry"}, c, &fakeSource{}, log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown failure policy")

	_, err = NewRunner(Config{Schema: "not json"}, c, &fakeSource{}, log)
	require.Error(t, err)
}
