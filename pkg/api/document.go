package api

import (
	"bytes"

	"github.com/goccy/go-json"
)

// Document is a JSON object that marshals its keys in insertion order, so
// serialized output follows the declared field order of the model.
type Document struct {
	keys   []string
	values map[string]any
}

func NewDocument() *Document {
	return &Document{values: make(map[string]any)}
}

// Set stores a value, keeping the key's first insertion position.
func (d *Document) Set(key string, value any) {
	if _, exists := d.values[key]; !exists {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

func (d *Document) Get(key string) (any, bool) {
	v, ok := d.values[key]
	return v, ok
}

func (d *Document) Len() int {
	return len(d.keys)
}

// Keys returns the keys in insertion order.
func (d *Document) Keys() []string {
	return append([]string(nil), d.keys...)
}

func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range d.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(d.values[key])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
