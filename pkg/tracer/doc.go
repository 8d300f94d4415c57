// Package tracer provides distributed tracing for the event pipeline
// using OpenTelemetry.
//
// The producer starts a span per ingested event and injects the trace
// context into Kafka message headers with GetCarrier; the consumer
// restores it with SetCarrierOnContext before decoding, so one trace
// spans the whole path from HTTP ingest to committed offset.
//
// Example:
//
//	ctx, span := trc.StartSpan(ctx, "publish-event")
//	defer span.End()
//
//	headers := trc.GetCarrier(ctx)
//	if err := publish(ctx, key, value, headers); err != nil {
//		trc.RecordErrorOnSpan(span, err)
//		return err
//	}
package tracer
