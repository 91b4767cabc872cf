package source

import (
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/tinytelemetry/opsdeck/internal/model"
)

// CheckShape verifies raw against the declared minimal shape.
func CheckShape(raw []byte, shape model.Shape) error {
	if !gjson.ValidBytes(raw) {
		return fmt.Errorf("invalid json")
	}
	root := gjson.ParseBytes(raw)

	switch shape.Type {
	case "":
	case "object":
		if !root.IsObject() {
			return fmt.Errorf("expected object, got %s", describe(root))
		}
	case "array":
		if !root.IsArray() {
			return fmt.Errorf("expected array, got %s", describe(root))
		}
	default:
		return fmt.Errorf("unknown shape type %q", shape.Type)
	}

	for _, key := range shape.Required {
		if !root.Get(key).Exists() {
			return fmt.Errorf("missing required key %q", key)
		}
	}
	return nil
}

func describe(r gjson.Result) string {
	switch {
	case r.IsObject():
		return "object"
	case r.IsArray():
		return "array"
	}
	switch r.Type {
	case gjson.Null:
		return "null"
	case gjson.False, gjson.True:
		return "bool"
	case gjson.Number:
		return "number"
	case gjson.String:
		return "string"
	}
	return "unknown"
}
