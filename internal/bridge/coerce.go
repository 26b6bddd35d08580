package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/hanpama/oasgraph/internal/schema"
)

// Coerce adapts a raw backend result to the declared field type. Only String
// fields are touched: a non-string value, null included, becomes its JSON
// text. Objects, lists and other scalars pass through unchanged.
func Coerce(raw any, declared *schema.TypeRef) any {
	t := declared
	if t != nil && t.IsNonNull() {
		t = t.OfType
	}
	if t == nil || t.IsList() || t.Named != "String" {
		return raw
	}
	if s, ok := raw.(string); ok {
		return s
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(raw); err != nil {
		return fmt.Sprint(raw)
	}
	return string(bytes.TrimSuffix(buf.Bytes(), []byte("\n")))
}
