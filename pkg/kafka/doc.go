// Package kafka provides a byte-oriented client for publishing to and
// consuming from Apache Kafka, built on segmentio/kafka-go.
//
// The client carries opaque payloads; envelopes are produced and
// consumed by the codec package. Message headers transport metadata
// next to the payload, in particular W3C trace-context headers so a
// consumed message continues the trace of the request that produced it.
//
// Producer:
//
//	client, err := kafka.NewClient(kafka.Config{
//		Brokers: []string{"localhost:9092"},
//		Topic:   "user-events",
//	})
//	if err != nil {
//		return err
//	}
//	defer client.GracefulShutdown()
//
//	err = client.Publish(ctx, []byte("user-42"), envelope, trc.GetCarrier(ctx))
//
// Consumer:
//
//	client, err := kafka.NewClient(kafka.Config{
//		Brokers:    []string{"localhost:9092"},
//		Topic:      "user-events",
//		GroupID:    "event-processor",
//		IsConsumer: true,
//	})
//	if err != nil {
//		return err
//	}
//	defer client.GracefulShutdown()
//
//	var wg sync.WaitGroup
//	messages, err := client.Consume(ctx, &wg)
//	if err != nil {
//		return err
//	}
//	for msg := range messages {
//		if err := process(msg); err != nil {
//			continue
//		}
//		_ = client.CommitMessage(ctx, msg)
//	}
//	wg.Wait()
//
// Offsets are committed explicitly after processing by default, so a
// crash mid-message redelivers it rather than losing it. Enable
// EnableAutoCommit to trade that guarantee for throughput.
package kafka
