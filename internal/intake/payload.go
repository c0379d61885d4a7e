package intake

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Payload is a submitted form body as an ordered mapping. Key order is the
// wire order of the JSON object, which makes the dynamic subtipo_* field
// scan deterministic.
type Payload struct {
	keys   []string
	values map[string]interface{}
}

// NewPayload builds a payload from pairs in the given order. Used by tests
// and by callers that already hold decoded data.
func NewPayload(pairs ...[2]interface{}) *Payload {
	p := &Payload{values: map[string]interface{}{}}
	for _, pair := range pairs {
		key, _ := pair[0].(string)
		p.Set(key, pair[1])
	}
	return p
}

// UnmarshalJSON decodes a JSON object preserving its key order. Nested
// values decode to the usual interface{} shapes.
func (p *Payload) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("payload must be a JSON object")
	}

	p.keys = nil
	p.values = map[string]interface{}{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", keyTok)
		}
		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return err
		}
		p.Set(key, normalizeNumbers(value))
	}
	// consume closing brace
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}

// normalizeNumbers converts json.Number values (from UseNumber) back to
// float64 recursively, keeping the payload shape predictable.
func normalizeNumbers(v interface{}) interface{} {
	switch t := v.(type) {
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case []interface{}:
		for i := range t {
			t[i] = normalizeNumbers(t[i])
		}
		return t
	case map[string]interface{}:
		for k := range t {
			t[k] = normalizeNumbers(t[k])
		}
		return t
	}
	return v
}

// Set stores a value, appending the key on first sight.
func (p *Payload) Set(key string, value interface{}) {
	if p.values == nil {
		p.values = map[string]interface{}{}
	}
	if _, seen := p.values[key]; !seen {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// Get returns the value for key.
func (p *Payload) Get(key string) (interface{}, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Keys returns the keys in insertion order.
func (p *Payload) Keys() []string {
	return p.keys
}

// Delete removes a key, preserving the order of the rest.
func (p *Payload) Delete(key string) {
	if _, ok := p.values[key]; !ok {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

// Map returns a plain map copy for persistence.
func (p *Payload) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(p.values))
	for k, v := range p.values {
		out[k] = v
	}
	return out
}
