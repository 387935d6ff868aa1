// Package types contains the row and result containers shared by the schema,
// relations and model packages.
package types

import (
	"bytes"
	"encoding/json"

	"github.com/elliotchance/orderedmap/v2"
)

// Shape is the boundary encoding a table's rows use.
type Shape string

const (
	// ShapeObject encodes rows as ordered objects.
	ShapeObject Shape = "object"
	// ShapeArray encodes rows as plain maps.
	ShapeArray Shape = "array"
)

// ParseShape converts a configuration value into a Shape. Empty means object.
func ParseShape(s string) (Shape, bool) {
	switch s {
	case "object", "":
		return ShapeObject, true
	case "array":
		return ShapeArray, true
	default:
		return ShapeObject, false
	}
}

// Row is an ordered bag of fields. Related rows are stored as *Row or []*Row values.
type Row struct {
	fields *orderedmap.OrderedMap[string, any]
	shape  Shape
}

// NewRow returns an empty object-shaped row.
func NewRow() *Row {
	return &Row{
		fields: orderedmap.NewOrderedMap[string, any](),
		shape:  ShapeObject,
	}
}

// RowOf builds a row from alternating field/value pairs. Used mostly in tests.
func RowOf(kv ...any) *Row {
	r := NewRow()
	for i := 0; i+1 < len(kv); i += 2 {
		name, _ := kv[i].(string)
		r.Set(name, kv[i+1])
	}
	return r
}

// Shape returns the boundary encoding tag of the row.
func (r *Row) Shape() Shape {
	return r.shape
}

// WithShape tags the row and returns it.
func (r *Row) WithShape(s Shape) *Row {
	r.shape = s
	return r
}

// Get returns a field value and whether it is present.
func (r *Row) Get(name string) (any, bool) {
	return r.fields.Get(name)
}

// Value returns a field value or nil.
func (r *Row) Value(name string) any {
	v, _ := r.fields.Get(name)
	return v
}

// Has reports whether the field is present, even when its value is nil.
func (r *Row) Has(name string) bool {
	_, ok := r.fields.Get(name)
	return ok
}

// Set stores a field, keeping its original position if it already exists.
func (r *Row) Set(name string, value any) {
	r.fields.Set(name, value)
}

// Delete removes a field and reports whether it was present.
func (r *Row) Delete(name string) bool {
	return r.fields.Delete(name)
}

// Keys returns field names in insertion order.
func (r *Row) Keys() []string {
	return r.fields.Keys()
}

// Len returns the number of fields.
func (r *Row) Len() int {
	return r.fields.Len()
}

// Clone returns a shallow copy of the row.
func (r *Row) Clone() *Row {
	c := NewRow().WithShape(r.shape)
	for el := r.fields.Front(); el != nil; el = el.Next() {
		c.fields.Set(el.Key, el.Value)
	}
	return c
}

// Export converts the row into its boundary representation: the row itself for
// object-shaped rows, a plain map for array-shaped rows. Nested rows are
// converted using their own shape.
func (r *Row) Export() any {
	if r == nil {
		return nil
	}
	if r.shape != ShapeArray {
		return r
	}
	out := make(map[string]any, r.fields.Len())
	for el := r.fields.Front(); el != nil; el = el.Next() {
		out[el.Key] = exportValue(el.Value)
	}
	return out
}

func exportValue(v any) any {
	switch t := v.(type) {
	case *Row:
		return t.Export()
	case []*Row:
		out := make([]any, len(t))
		for i, row := range t {
			out[i] = row.Export()
		}
		return out
	default:
		return v
	}
}

// MarshalJSON encodes the row as a JSON object in field order.
func (r *Row) MarshalJSON() ([]byte, error) {
	if r == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	i := 0
	for el := r.fields.Front(); el != nil; el = el.Next() {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(el.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := json.Marshal(exportValue(el.Value))
		if err != nil {
			return nil, err
		}
		buf.Write(val)
		i++
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
