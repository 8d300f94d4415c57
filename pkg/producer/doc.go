// Package producer implements the HTTP ingest side of the pipeline.
//
// POST /events/user_action?user_id=&action=&page= builds a user event
// record, stamps it with the current time in unix milliseconds, encodes
// it into the wire format against the configured subject, and publishes
// it to the broker keyed by user id. Failures surface to the caller as
// JSON with the specific error kind: bad field values are 400, an
// unreachable registry is 503, a failed broker write is 502.
//
// On startup the server registers its schema with the registry and
// refuses to come up if that fails.
package producer
