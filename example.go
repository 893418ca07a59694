package callflow

// ExampleFromSchema synthesizes a minimal value conforming to a JSON Schema
// map. It exists to give the model a concrete template after a validation
// failure, so it stays deliberately small: objects synthesize only their
// required properties, arrays a single element, and primitives canonical
// stand-ins. enum, const, default and examples short-circuit to the literal.
func ExampleFromSchema(schema map[string]any) any {
	if schema == nil {
		return map[string]any{}
	}
	if v, ok := schema["const"]; ok {
		return v
	}
	if v, ok := schema["default"]; ok {
		return v
	}
	if list, ok := schema["enum"].([]any); ok && len(list) > 0 {
		return list[0]
	}
	if list, ok := schema["examples"].([]any); ok && len(list) > 0 {
		return list[0]
	}
	if v, ok := schema["example"]; ok {
		return v
	}
	switch schemaType(schema) {
	case "object":
		return exampleObject(schema)
	case "array":
		items, _ := schema["items"].(map[string]any)
		return []any{ExampleFromSchema(items)}
	case "string":
		return "example_string"
	case "number", "integer":
		return 123
	case "boolean":
		return true
	case "null":
		return nil
	}
	// Untyped schema with properties reads as an object.
	if _, ok := schema["properties"]; ok {
		return exampleObject(schema)
	}
	return nil
}

// exampleObject synthesizes only the required properties, keeping the
// example minimal.
func exampleObject(schema map[string]any) map[string]any {
	out := map[string]any{}
	props, _ := schema["properties"].(map[string]any)
	for _, name := range requiredNames(schema) {
		prop, _ := props[name].(map[string]any)
		out[name] = ExampleFromSchema(prop)
	}
	return out
}

// requiredNames reads the required list, tolerating both []any and []string
// shapes (the latter appears in schemas assembled in code).
func requiredNames(schema map[string]any) []string {
	switch req := schema["required"].(type) {
	case []string:
		return req
	case []any:
		names := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				names = append(names, s)
			}
		}
		return names
	}
	return nil
}

// schemaType returns the schema's type, taking the first entry when type is
// a list.
func schemaType(schema map[string]any) string {
	switch t := schema["type"].(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
	}
	return ""
}
