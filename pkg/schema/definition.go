package schema

import (
	"encoding/json"
	"fmt"
	"math"
)

// Type identifies the type of a schema field.
type Type string

// Supported field types. Record is used for nested record fields.
const (
	TypeString  Type = "string"
	TypeBytes   Type = "bytes"
	TypeInt     Type = "int"
	TypeLong    Type = "long"
	TypeFloat   Type = "float"
	TypeDouble  Type = "double"
	TypeBoolean Type = "boolean"
	TypeRecord  Type = "record"
)

// Field is a single named field of a record schema.
type Field struct {
	// Name is the field name, unique within its record
	Name string

	// Type is the field's declared type
	Type Type

	// Record holds the nested definition when Type is TypeRecord
	Record *Definition

	// Default is the declared default value, already coerced to the
	// field's Go representation. Only meaningful when HasDefault is true.
	Default any

	// HasDefault reports whether the field declared a default value
	HasDefault bool

	// Doc is the optional field documentation
	Doc string
}

// Definition is a parsed, immutable record schema: a named, ordered
// sequence of fields. Instances are created by Parse and must not be
// mutated afterwards.
type Definition struct {
	// Name is the record name
	Name string

	// Namespace is the optional record namespace
	Namespace string

	// Doc is the optional record documentation
	Doc string

	// Fields is the ordered field sequence
	Fields []Field

	// index maps field name to its position in Fields
	index map[string]int
}

// document mirrors the JSON schema document layout.
type document struct {
	Type      string          `json:"type"`
	Name      string          `json:"name"`
	Namespace string          `json:"namespace,omitempty"`
	Doc       string          `json:"doc,omitempty"`
	Fields    []documentField `json:"fields"`
}

type documentField struct {
	Name    string           `json:"name"`
	Type    json.RawMessage  `json:"type"`
	Default *json.RawMessage `json:"default,omitempty"`
	Doc     string           `json:"doc,omitempty"`
}

// Parse parses a JSON schema document into a Definition.
// The document must be a record schema with a non-empty name and a
// fields array; field names must be unique.
func Parse(data []byte) (*Definition, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSchema, err)
	}
	return parseDocument(&doc)
}

// MustParse is like Parse but panics on error. Intended for
// package-level schema literals in tests and examples.
func MustParse(data []byte) *Definition {
	def, err := Parse(data)
	if err != nil {
		panic(err)
	}
	return def
}

func parseDocument(doc *document) (*Definition, error) {
	if doc.Type != string(TypeRecord) {
		return nil, fmt.Errorf("%w: top-level type must be %q, got %q", ErrInvalidSchema, TypeRecord, doc.Type)
	}
	if doc.Name == "" {
		return nil, fmt.Errorf("%w: record name is required", ErrInvalidSchema)
	}
	if len(doc.Fields) == 0 {
		return nil, fmt.Errorf("%w: record %q has no fields", ErrInvalidSchema, doc.Name)
	}

	def := &Definition{
		Name:      doc.Name,
		Namespace: doc.Namespace,
		Doc:       doc.Doc,
		Fields:    make([]Field, 0, len(doc.Fields)),
		index:     make(map[string]int, len(doc.Fields)),
	}

	for _, df := range doc.Fields {
		if df.Name == "" {
			return nil, fmt.Errorf("%w: record %q has a field without a name", ErrInvalidSchema, doc.Name)
		}
		if _, dup := def.index[df.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate field %q in record %q", ErrInvalidSchema, df.Name, doc.Name)
		}

		field, err := parseField(df)
		if err != nil {
			return nil, err
		}

		def.index[field.Name] = len(def.Fields)
		def.Fields = append(def.Fields, field)
	}

	return def, nil
}

func parseField(df documentField) (Field, error) {
	field := Field{Name: df.Name, Doc: df.Doc}

	// A field type is either a primitive name or a nested record document.
	var typeName string
	if err := json.Unmarshal(df.Type, &typeName); err == nil {
		switch Type(typeName) {
		case TypeString, TypeBytes, TypeInt, TypeLong, TypeFloat, TypeDouble, TypeBoolean:
			field.Type = Type(typeName)
		default:
			return Field{}, fmt.Errorf("%w: field %q declares type %q", ErrUnknownType, df.Name, typeName)
		}
	} else {
		var nested document
		if err := json.Unmarshal(df.Type, &nested); err != nil {
			return Field{}, fmt.Errorf("%w: field %q has malformed type", ErrInvalidSchema, df.Name)
		}
		nestedDef, err := parseDocument(&nested)
		if err != nil {
			return Field{}, fmt.Errorf("field %q: %w", df.Name, err)
		}
		field.Type = TypeRecord
		field.Record = nestedDef
	}

	if df.Default != nil {
		value, err := coerceDefault(field, *df.Default)
		if err != nil {
			return Field{}, err
		}
		field.Default = value
		field.HasDefault = true
	}

	return field, nil
}

// coerceDefault converts a JSON default literal into the Go value the
// codec layer works with for the field's type.
func coerceDefault(field Field, raw json.RawMessage) (any, error) {
	switch field.Type {
	case TypeString:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, defaultTypeError(field, raw)
		}
		return s, nil
	case TypeBytes:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, defaultTypeError(field, raw)
		}
		return []byte(s), nil
	case TypeInt:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil || n != math.Trunc(n) {
			return nil, defaultTypeError(field, raw)
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			return nil, fmt.Errorf("%w: default for int field %q out of range", ErrInvalidSchema, field.Name)
		}
		return int32(n), nil
	case TypeLong:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil || n != math.Trunc(n) {
			return nil, defaultTypeError(field, raw)
		}
		return int64(n), nil
	case TypeFloat:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, defaultTypeError(field, raw)
		}
		return float32(n), nil
	case TypeDouble:
		var n float64
		if err := json.Unmarshal(raw, &n); err != nil {
			return nil, defaultTypeError(field, raw)
		}
		return n, nil
	case TypeBoolean:
		var b bool
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, defaultTypeError(field, raw)
		}
		return b, nil
	case TypeRecord:
		var m map[string]any
		if err := json.Unmarshal(raw, &m); err != nil {
			return nil, defaultTypeError(field, raw)
		}
		return m, nil
	}
	return nil, fmt.Errorf("%w: field %q", ErrUnknownType, field.Name)
}

func defaultTypeError(field Field, raw json.RawMessage) error {
	return fmt.Errorf("%w: default %s does not match type %q of field %q",
		ErrInvalidSchema, string(raw), field.Type, field.Name)
}

// FieldByName returns the field with the given name and whether it exists.
func (d *Definition) FieldByName(name string) (Field, bool) {
	i, ok := d.index[name]
	if !ok {
		return Field{}, false
	}
	return d.Fields[i], true
}

// FullName returns the namespace-qualified record name.
func (d *Definition) FullName() string {
	if d.Namespace == "" {
		return d.Name
	}
	return d.Namespace + "." + d.Name
}
