package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// canonicalField is the reduced field form used for Document and
// Fingerprint: declaration order and defaults are preserved, doc strings
// are stripped.
type canonicalField struct {
	Name    string          `json:"name"`
	Type    json.RawMessage `json:"type"`
	Default json.RawMessage `json:"default,omitempty"`
}

type canonicalRecord struct {
	Type      string           `json:"type"`
	Name      string           `json:"name"`
	Namespace string           `json:"namespace,omitempty"`
	Fields    []canonicalField `json:"fields"`
}

// Document renders the definition back into its canonical JSON form.
// Two definitions that differ only in documentation or whitespace
// produce identical documents. This is the representation sent to the
// schema registry and hashed by Fingerprint.
func (d *Definition) Document() string {
	data, err := json.Marshal(d.canonical())
	if err != nil {
		// canonical() only assembles marshallable values
		panic(err)
	}
	return string(data)
}

// Fingerprint returns the SHA-256 hex digest of the canonical document.
// It is the structural identity used by the codec cache to avoid
// re-registering schemas it has already identified.
func (d *Definition) Fingerprint() string {
	sum := sha256.Sum256([]byte(d.Document()))
	return hex.EncodeToString(sum[:])
}

func (d *Definition) canonical() canonicalRecord {
	rec := canonicalRecord{
		Type:      string(TypeRecord),
		Name:      d.Name,
		Namespace: d.Namespace,
		Fields:    make([]canonicalField, 0, len(d.Fields)),
	}

	for _, f := range d.Fields {
		cf := canonicalField{Name: f.Name}

		if f.Type == TypeRecord {
			nested, err := json.Marshal(f.Record.canonical())
			if err != nil {
				panic(err)
			}
			cf.Type = nested
		} else {
			name, err := json.Marshal(string(f.Type))
			if err != nil {
				panic(err)
			}
			cf.Type = name
		}

		if f.HasDefault {
			def, err := json.Marshal(defaultLiteral(f))
			if err != nil {
				panic(err)
			}
			cf.Default = def
		}

		rec.Fields = append(rec.Fields, cf)
	}

	return rec
}

// defaultLiteral maps the coerced Go default back to its JSON literal.
func defaultLiteral(f Field) any {
	if f.Type == TypeBytes {
		if b, ok := f.Default.([]byte); ok {
			return string(b)
		}
	}
	return f.Default
}
