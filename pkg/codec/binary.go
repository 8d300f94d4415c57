package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/streamhouse/eventflow/pkg/schema"
)

// The payload grammar is Avro binary: zigzag varints for int/long,
// varint-length-prefixed string/bytes, a single byte for booleans,
// IEEE 754 little-endian for float/double, and nested records as the
// concatenation of their fields. Fields appear in declaration order
// with no per-field framing, which is why decoding always walks the
// full schema.

func encodeRecord(buf *bytes.Buffer, def *schema.Definition, record map[string]any) error {
	for _, field := range def.Fields {
		value, ok := record[field.Name]
		if !ok {
			if !field.HasDefault {
				return fmt.Errorf("%w: %q", ErrMissingRequiredField, field.Name)
			}
			value = field.Default
		}
		if err := encodeValue(buf, field, value); err != nil {
			return err
		}
	}
	return nil
}

func encodeValue(buf *bytes.Buffer, field schema.Field, value any) error {
	switch field.Type {
	case schema.TypeString:
		s, ok := value.(string)
		if !ok {
			return typeMismatch(field, value)
		}
		writeLong(buf, int64(len(s)))
		buf.WriteString(s)

	case schema.TypeBytes:
		var b []byte
		switch v := value.(type) {
		case []byte:
			b = v
		case string:
			b = []byte(v)
		default:
			return typeMismatch(field, value)
		}
		writeLong(buf, int64(len(b)))
		buf.Write(b)

	case schema.TypeInt:
		n, ok := toInt64(value)
		if !ok || n < math.MinInt32 || n > math.MaxInt32 {
			return typeMismatch(field, value)
		}
		writeLong(buf, n)

	case schema.TypeLong:
		n, ok := toInt64(value)
		if !ok {
			return typeMismatch(field, value)
		}
		writeLong(buf, n)

	case schema.TypeFloat:
		f, ok := toFloat64(value)
		if !ok {
			return typeMismatch(field, value)
		}
		var scratch [4]byte
		binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(float32(f)))
		buf.Write(scratch[:])

	case schema.TypeDouble:
		f, ok := toFloat64(value)
		if !ok {
			return typeMismatch(field, value)
		}
		var scratch [8]byte
		binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(f))
		buf.Write(scratch[:])

	case schema.TypeBoolean:
		b, ok := value.(bool)
		if !ok {
			return typeMismatch(field, value)
		}
		if b {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}

	case schema.TypeRecord:
		nested, ok := value.(map[string]any)
		if !ok {
			return typeMismatch(field, value)
		}
		if err := encodeRecord(buf, field.Record, nested); err != nil {
			return fmt.Errorf("field %q: %w", field.Name, err)
		}

	default:
		return fmt.Errorf("%w: field %q has type %q", schema.ErrUnknownType, field.Name, field.Type)
	}
	return nil
}

func decodeRecord(r *bytes.Reader, def *schema.Definition) (map[string]any, error) {
	record := make(map[string]any, len(def.Fields))
	for _, field := range def.Fields {
		value, err := decodeValue(r, field)
		if err != nil {
			return nil, err
		}
		record[field.Name] = value
	}
	return record, nil
}

func decodeValue(r *bytes.Reader, field schema.Field) (any, error) {
	switch field.Type {
	case schema.TypeString:
		b, err := readSized(r, field)
		if err != nil {
			return nil, err
		}
		return string(b), nil

	case schema.TypeBytes:
		return readSized(r, field)

	case schema.TypeInt:
		n, err := readLong(r, field)
		if err != nil {
			return nil, err
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("%w: int field %q holds out-of-range value %d", ErrFieldTypeMismatch, field.Name, n)
		}
		return int32(n), nil

	case schema.TypeLong:
		return readLong(r, field)

	case schema.TypeFloat:
		var scratch [4]byte
		if _, err := io.ReadFull(r, scratch[:]); err != nil {
			return nil, truncated(field, err)
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(scratch[:])), nil

	case schema.TypeDouble:
		var scratch [8]byte
		if _, err := io.ReadFull(r, scratch[:]); err != nil {
			return nil, truncated(field, err)
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(scratch[:])), nil

	case schema.TypeBoolean:
		b, err := r.ReadByte()
		if err != nil {
			return nil, truncated(field, err)
		}
		return b != 0, nil

	case schema.TypeRecord:
		nested, err := decodeRecord(r, field.Record)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", field.Name, err)
		}
		return nested, nil
	}

	return nil, fmt.Errorf("%w: field %q has type %q", schema.ErrUnknownType, field.Name, field.Type)
}

// writeLong appends the zigzag varint encoding of n.
func writeLong(buf *bytes.Buffer, n int64) {
	u := uint64(n<<1) ^ uint64(n>>63)
	var scratch [binary.MaxVarintLen64]byte
	written := binary.PutUvarint(scratch[:], u)
	buf.Write(scratch[:written])
}

func readLong(r *bytes.Reader, field schema.Field) (int64, error) {
	u, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, truncated(field, err)
	}
	return int64(u>>1) ^ -int64(u&1), nil
}

// readSized reads a long length prefix followed by that many bytes.
func readSized(r *bytes.Reader, field schema.Field) ([]byte, error) {
	length, err := readLong(r, field)
	if err != nil {
		return nil, err
	}
	if length < 0 || length > int64(r.Len()) {
		return nil, fmt.Errorf("%w: field %q declares %d bytes, %d remain", ErrTruncatedPayload, field.Name, length, r.Len())
	}
	b := make([]byte, length)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, truncated(field, err)
	}
	return b, nil
}

func truncated(field schema.Field, err error) error {
	return fmt.Errorf("%w: field %q: %v", ErrTruncatedPayload, field.Name, err)
}

func typeMismatch(field schema.Field, value any) error {
	return fmt.Errorf("%w: field %q (%s) cannot hold %T", ErrFieldTypeMismatch, field.Name, field.Type, value)
}

// toInt64 widens the integer representations a dynamic record may carry,
// including whole float64 values from JSON-decoded input.
func toInt64(value any) (int64, bool) {
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint32:
		return int64(v), true
	case float64:
		if v == math.Trunc(v) && v >= math.MinInt64 && v <= math.MaxInt64 {
			return int64(v), true
		}
	}
	return 0, false
}

func toFloat64(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
