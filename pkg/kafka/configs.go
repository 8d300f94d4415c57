package kafka

import (
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/streamhouse/eventflow/pkg/logger"
)

// Default values applied by NewClient when the corresponding Config
// field is left at its zero value.
const (
	// DefaultMinBytes is the minimum batch size the reader waits for.
	DefaultMinBytes = 1
	// DefaultMaxBytes is the maximum batch size the reader accepts.
	DefaultMaxBytes = 10_000_000 // 10MB
	// DefaultMaxWait bounds how long the reader blocks for MinBytes.
	DefaultMaxWait = 3 * time.Second
	// DefaultCommitInterval is the auto-commit flush interval.
	DefaultCommitInterval = time.Second
	// DefaultStartOffset makes new consumer groups start at the oldest
	// retained message.
	DefaultStartOffset = kafkago.FirstOffset
	// DefaultRequiredAcks waits for all in-sync replicas.
	DefaultRequiredAcks = -1
	// DefaultBatchSize is the writer's message batch size in async mode.
	DefaultBatchSize = 100
	// DefaultBatchTimeout flushes a partial batch after this interval.
	DefaultBatchTimeout = time.Second
	// DefaultMaxAttempts is how many times the writer retries a publish.
	DefaultMaxAttempts = 3
	// DefaultWriteTimeout bounds a single write operation.
	DefaultWriteTimeout = 10 * time.Second
)

// TLSConfig holds TLS settings for broker connections.
type TLSConfig struct {
	Enabled            bool
	CACertPath         string
	ClientCertPath     string
	ClientKeyPath      string
	InsecureSkipVerify bool
}

// SASLConfig holds SASL authentication settings for broker
// connections. Supported mechanisms are "PLAIN", "SCRAM-SHA-256" and
// "SCRAM-SHA-512".
type SASLConfig struct {
	Enabled   bool
	Mechanism string
	Username  string
	Password  string
}

// Config holds the settings for a Client. A Client is either a
// producer or a consumer, controlled by IsConsumer; the unused half of
// the configuration is ignored.
type Config struct {
	// Brokers is the list of bootstrap broker addresses.
	Brokers []string

	// Topic is the topic to publish to or consume from.
	Topic string

	// GroupID is the consumer group id. Required when IsConsumer is set.
	GroupID string

	// IsConsumer selects reader mode instead of writer mode.
	IsConsumer bool

	// Reader tuning.
	MinBytes         int
	MaxBytes         int
	MaxWait          time.Duration
	StartOffset      int64
	EnableAutoCommit bool
	CommitInterval   time.Duration

	// Writer tuning.
	RequiredAcks     int
	Async            bool
	BatchSize        int
	BatchTimeout     time.Duration
	MaxAttempts      int
	WriteTimeout     time.Duration
	CompressionCodec string

	TLS  TLSConfig
	SASL SASLConfig

	// Logger receives the kafka-go client's internal error messages.
	// Optional; errors go to the standard log package when nil.
	Logger *logger.Logger
}
