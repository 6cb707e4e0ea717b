package ces

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"casperEvents/internal/clvalue"
	"casperEvents/internal/errs"
)

// SchemaField is one declared field. Declaration order is the wire order.
type SchemaField struct {
	Name string
	Type clvalue.Descriptor
}

// Schema is the ordered field list of one event type.
type Schema struct {
	Name   string
	Fields []SchemaField
}

// Schemas maps event names to their schema. It is immutable once built.
type Schemas struct {
	byName map[string]Schema
}

// NewSchemas builds a catalog, rejecting duplicate names and malformed descriptors.
func NewSchemas(schemas ...Schema) (Schemas, error) {
	byName := make(map[string]Schema, len(schemas))
	for _, s := range schemas {
		if _, dup := byName[s.Name]; dup {
			return Schemas{}, fmt.Errorf("duplicate event schema %q", s.Name)
		}
		for _, f := range s.Fields {
			if err := f.Type.Validate(); err != nil {
				return Schemas{}, fmt.Errorf("schema %s field %s: %w", s.Name, f.Name, err)
			}
		}
		byName[s.Name] = s
	}
	return Schemas{byName: byName}, nil
}

// Lookup returns the schema registered under name.
func (s Schemas) Lookup(name string) (Schema, bool) {
	schema, ok := s.byName[name]
	return schema, ok
}

// Names returns the event names in ascending order.
func (s Schemas) Names() []string {
	names := make([]string, 0, len(s.byName))
	for name := range s.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s Schemas) Len() int { return len(s.byName) }

// MarshalBinary encodes the catalog in the on-chain layout with names sorted.
func (s Schemas) MarshalBinary() ([]byte, error) {
	out := clvalue.AppendU32(nil, uint32(len(s.byName)))
	var err error
	for _, name := range s.Names() {
		schema := s.byName[name]
		if out, err = clvalue.AppendString(out, name); err != nil {
			return nil, &errs.SerializationError{Context: "schema name", Err: err}
		}
		out = clvalue.AppendU32(out, uint32(len(schema.Fields)))
		for _, f := range schema.Fields {
			if out, err = clvalue.AppendString(out, f.Name); err != nil {
				return nil, &errs.SerializationError{Context: "schema field", Err: err}
			}
			typ, err := f.Type.MarshalBinary()
			if err != nil {
				return nil, err
			}
			out = append(out, typ...)
		}
	}
	return out, nil
}

// DecodeSchemas decodes u32 count × (name, u32 count × (field name, descriptor bytes)).
// The whole input must be consumed. Descriptor nesting is bounded by dec, which may be nil.
func DecodeSchemas(dec *clvalue.Decoder, b []byte) (Schemas, error) {
	count, rest, err := clvalue.ReadU32(b)
	if err != nil {
		return Schemas{}, errs.Deserialization("schemas", err)
	}
	list := make([]Schema, 0, min(int(count), 256))
	for i := uint32(0); i < count; i++ {
		var schema Schema
		schema.Name, rest, err = clvalue.ReadString(rest)
		if err != nil {
			return Schemas{}, errs.Deserialization("schema name", err)
		}
		var fields uint32
		fields, rest, err = clvalue.ReadU32(rest)
		if err != nil {
			return Schemas{}, errs.Deserialization("schema "+schema.Name, err)
		}
		for j := uint32(0); j < fields; j++ {
			var f SchemaField
			f.Name, rest, err = clvalue.ReadString(rest)
			if err != nil {
				return Schemas{}, errs.Deserialization("schema "+schema.Name+" field name", err)
			}
			f.Type, rest, err = dec.ParseDescriptorBytes(rest)
			if err != nil {
				return Schemas{}, fmt.Errorf("schema %s field %s: %w", schema.Name, f.Name, err)
			}
			schema.Fields = append(schema.Fields, f)
		}
		list = append(list, schema)
	}
	if len(rest) != 0 {
		return Schemas{}, errs.Deserialization("schemas", fmt.Errorf("%d trailing bytes", len(rest)))
	}
	schemas, err := NewSchemas(list...)
	if err != nil {
		return Schemas{}, errs.Deserialization("schemas", err)
	}
	return schemas, nil
}

// FetchSchemas reads and decodes the schema value referenced by refs.
func FetchSchemas(ctx context.Context, ledger Ledger, refs MetadataRefs, dec *clvalue.Decoder) (Schemas, error) {
	stored, err := ledger.ReadValue(ctx, refs.Schema)
	if err != nil {
		return Schemas{}, fmt.Errorf("read %s: %w", SchemaKey, err)
	}
	return DecodeSchemas(dec, stored.Bytes)
}

type fieldJSON struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// MarshalJSON renders {"EventName":[{"name":..,"type":"Map<String,U64>"}]}.
func (s Schemas) MarshalJSON() ([]byte, error) {
	out := make(map[string][]fieldJSON, len(s.byName))
	for name, schema := range s.byName {
		fields := make([]fieldJSON, 0, len(schema.Fields))
		for _, f := range schema.Fields {
			fields = append(fields, fieldJSON{Name: f.Name, Type: f.Type.String()})
		}
		out[name] = fields
	}
	return json.Marshal(out)
}

// LoadSchemaFile reads a pinned catalog from YAML:
//
//	Mint:
//	  - name: recipient
//	    type: Key
//	  - name: amount
//	    type: U512
func LoadSchemaFile(path string, dec *clvalue.Decoder) (Schemas, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Schemas{}, fmt.Errorf("read schema file: %w", err)
	}
	return ParseSchemaYAML(data, dec)
}

// ParseSchemaYAML parses the pinned catalog format read by LoadSchemaFile.
func ParseSchemaYAML(data []byte, dec *clvalue.Decoder) (Schemas, error) {
	var raw map[string][]fieldJSON
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Schemas{}, fmt.Errorf("parse schema yaml: %w", err)
	}
	list := make([]Schema, 0, len(raw))
	for name, fields := range raw {
		schema := Schema{Name: name, Fields: make([]SchemaField, 0, len(fields))}
		for _, f := range fields {
			typ, err := dec.ParseDescriptor(f.Type)
			if err != nil {
				return Schemas{}, fmt.Errorf("schema %s field %s: %w", name, f.Name, err)
			}
			schema.Fields = append(schema.Fields, SchemaField{Name: f.Name, Type: typ})
		}
		list = append(list, schema)
	}
	return NewSchemas(list...)
}
