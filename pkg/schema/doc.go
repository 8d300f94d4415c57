// Package schema models Avro-style record schemas: a named, ordered
// sequence of typed fields with optional defaults and documentation.
//
// Definitions are parsed from JSON schema documents and are immutable
// once created. The canonical document form (declaration order kept,
// doc strings stripped) gives every definition a stable structural
// fingerprint, which the codec layer uses as the registration identity
// of a schema.
//
// Records exchanged with the codec are plain map[string]any values;
// the codec validates them field by field against a Definition at
// encode time.
package schema
