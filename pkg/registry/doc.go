// Package registry is an HTTP client for a Confluent-compatible schema
// registry: schema registration and retrieval, subject and version
// listing, compatibility checks, and compatibility configuration.
//
// The client is stateless beyond its connection configuration; schema
// caching belongs to the codec package. Transient transport failures
// are retried with bounded exponential backoff per the configured
// RetryPolicy; deterministic rejections (invalid schemas, incompatible
// evolutions, unknown subjects/versions/ids) surface immediately as
// typed errors:
//
//	client, err := registry.NewClient(registry.Config{
//	    URL: "http://localhost:8081",
//	})
//	if err != nil {
//	    return err
//	}
//
//	id, err := client.Register(ctx, "user_events-value", def)
//	switch {
//	case errors.Is(err, registry.ErrIncompatibleSchema):
//	    // evolution rejected under the subject's compatibility mode
//	case errors.Is(err, registry.ErrRegistryUnavailable):
//	    // transient, already retried up to the policy bound
//	}
package registry
