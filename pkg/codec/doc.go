// Package codec implements the schema-registry-aware wire codec: the
// envelope format, the binary payload encoding, and the in-process
// schema cache that keeps the registry off the per-message hot path.
//
// Every encoded message is self-describing:
//
//	[magic byte 0x0] [schema id, 4 bytes big-endian] [binary payload]
//
// Encoding registers the schema under its subject on first use and
// reuses the cached id afterwards; decoding resolves the writer's
// schema by the embedded id, fetching it from the registry only on
// first sight. Concurrent cache misses for the same schema are
// coalesced into a single registry call.
//
//	store, _ := registry.NewClient(registry.Config{URL: registryURL})
//	c := codec.New(store)
//
//	data, err := c.Encode(ctx, "user_events-value", record, def)
//	...
//	id, record, err := c.Decode(ctx, data)
package codec
