package codec

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"

	"github.com/streamhouse/eventflow/pkg/schema"
)

// MagicByte is the wire format marker carried in byte 0 of every
// envelope.
const MagicByte byte = 0x0

// headerLength is the envelope header size: marker byte plus the
// 4-byte big-endian schema id.
const headerLength = 5

// Codec encodes records into the self-describing wire format
//
//	[magic byte (1)] [schema id (4, big-endian)] [payload]
//
// and decodes it back. The embedded schema id lets a decoder fetch
// exactly the schema version the writer used, so producers and
// consumers evolve independently. Each Codec owns its schema cache;
// the store client stays stateless.
type Codec struct {
	cache *Cache
}

// New creates a codec backed by the given store.
func New(store Store) *Codec {
	return &Codec{cache: NewCache(store)}
}

// Cache exposes the codec's schema cache, mainly for tests and
// warmup paths.
func (c *Codec) Cache() *Cache {
	return c.cache
}

// Encode validates record against def, registers def under subject on
// first use, and returns the enveloped binary encoding. Missing record
// fields take their declared defaults; a missing field without a
// default fails with ErrMissingRequiredField.
func (c *Codec) Encode(ctx context.Context, subject string, record map[string]any, def *schema.Definition) ([]byte, error) {
	id, err := c.cache.Identify(ctx, subject, def)
	if err != nil {
		return nil, err
	}

	buf := bytes.NewBuffer(make([]byte, 0, headerLength+64))
	buf.WriteByte(MagicByte)

	var idBytes [4]byte
	binary.BigEndian.PutUint32(idBytes[:], uint32(id))
	buf.Write(idBytes[:])

	if err := encodeRecord(buf, def, record); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode validates the envelope, resolves the writer's schema by its
// embedded id, and decodes the payload against it. It returns the
// schema id alongside the decoded record.
func (c *Codec) Decode(ctx context.Context, data []byte) (int, map[string]any, error) {
	id, payload, err := splitEnvelope(data)
	if err != nil {
		return 0, nil, err
	}

	def, err := c.cache.Resolve(ctx, id)
	if err != nil {
		return 0, nil, err
	}

	r := bytes.NewReader(payload)
	record, err := decodeRecord(r, def)
	if err != nil {
		return 0, nil, err
	}
	if r.Len() > 0 {
		return 0, nil, fmt.Errorf("%w: %d bytes beyond field %q", ErrTrailingData, r.Len(), def.Fields[len(def.Fields)-1].Name)
	}
	return id, record, nil
}

// DecodeAs decodes with the writer's schema and then projects the
// record onto the reader definition: reader fields the writer never
// wrote take the reader's default, and writer fields unknown to the
// reader are dropped. This is how a consumer on schema V2 reads
// messages written with V1.
func (c *Codec) DecodeAs(ctx context.Context, data []byte, reader *schema.Definition) (int, map[string]any, error) {
	id, record, err := c.Decode(ctx, data)
	if err != nil {
		return 0, nil, err
	}

	writer, err := c.cache.Resolve(ctx, id)
	if err != nil {
		return 0, nil, err
	}

	projected, err := project(record, writer, reader)
	if err != nil {
		return 0, nil, err
	}
	return id, projected, nil
}

// splitEnvelope validates the header and returns the schema id and
// payload slice.
func splitEnvelope(data []byte) (int, []byte, error) {
	if len(data) < headerLength {
		return 0, nil, fmt.Errorf("%w: need at least %d bytes, got %d", ErrMalformedEnvelope, headerLength, len(data))
	}
	if data[0] != MagicByte {
		return 0, nil, fmt.Errorf("%w: unrecognized marker byte 0x%x", ErrMalformedEnvelope, data[0])
	}
	return int(binary.BigEndian.Uint32(data[1:headerLength])), data[headerLength:], nil
}

// project maps a record decoded with the writer schema onto the reader
// schema, applying reader defaults and numeric promotions.
func project(record map[string]any, writer, reader *schema.Definition) (map[string]any, error) {
	out := make(map[string]any, len(reader.Fields))

	for _, rf := range reader.Fields {
		wf, written := writer.FieldByName(rf.Name)
		if !written {
			if !rf.HasDefault {
				return nil, fmt.Errorf("%w: reader field %q absent from writer schema %q", ErrMissingRequiredField, rf.Name, writer.FullName())
			}
			out[rf.Name] = rf.Default
			continue
		}

		value, err := promote(record[rf.Name], wf, rf)
		if err != nil {
			return nil, err
		}
		out[rf.Name] = value
	}

	return out, nil
}

// promote converts a decoded writer value into the reader field's
// representation, allowing the standard numeric widenings.
func promote(value any, writer, reader schema.Field) (any, error) {
	if reader.Type == schema.TypeRecord && writer.Type == schema.TypeRecord {
		nested, ok := value.(map[string]any)
		if !ok {
			return nil, typeMismatch(reader, value)
		}
		return project(nested, writer.Record, reader.Record)
	}

	if reader.Type == writer.Type {
		return value, nil
	}

	switch reader.Type {
	case schema.TypeLong:
		if n, ok := toInt64(value); ok && writer.Type == schema.TypeInt {
			return n, nil
		}
	case schema.TypeFloat:
		if f, ok := toFloat64(value); ok && (writer.Type == schema.TypeInt || writer.Type == schema.TypeLong) {
			return float32(f), nil
		}
	case schema.TypeDouble:
		if f, ok := toFloat64(value); ok {
			switch writer.Type {
			case schema.TypeInt, schema.TypeLong, schema.TypeFloat:
				return f, nil
			}
		}
	}

	return nil, fmt.Errorf("%w: reader field %q (%s) cannot take writer type %s",
		ErrFieldTypeMismatch, reader.Name, reader.Type, writer.Type)
}
