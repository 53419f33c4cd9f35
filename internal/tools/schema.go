package tools

import "encoding/json"

// Property describes one field of a structured output.
type Property struct {
	Type        string              `json:"type"`
	Description string              `json:"description,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	// Items describes array element schema (required for type="array").
	Items *Property `json:"items,omitempty"`
	// Properties and Required describe nested objects.
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Schema declares the shape a completion must have. It is provider-neutral;
// each reasoning adapter renders it into its provider's schema dialect.
type Schema struct {
	Name        string
	Description string
	Properties  map[string]Property
	Required    []string
}

// JSONSchema renders the schema as a standard JSON Schema object with
// additionalProperties disabled, as OpenAI-style structured output expects.
func (s Schema) JSONSchema() json.RawMessage {
	root := map[string]any{
		"type":                 "object",
		"properties":           propertiesJSON(s.Properties),
		"required":             requiredOrEmpty(s.Required),
		"additionalProperties": false,
	}
	if s.Description != "" {
		root["description"] = s.Description
	}
	data, err := json.Marshal(root)
	if err != nil {
		// Schemas are static literals; a marshal failure is a programming error.
		panic(err)
	}
	return data
}

func propertiesJSON(props map[string]Property) map[string]any {
	out := make(map[string]any, len(props))
	for name, p := range props {
		out[name] = propertyJSON(p)
	}
	return out
}

func propertyJSON(p Property) map[string]any {
	m := map[string]any{"type": p.Type}
	if p.Description != "" {
		m["description"] = p.Description
	}
	if len(p.Enum) > 0 {
		m["enum"] = p.Enum
	}
	if p.Items != nil {
		m["items"] = propertyJSON(*p.Items)
	}
	if p.Type == "object" {
		m["properties"] = propertiesJSON(p.Properties)
		m["required"] = requiredOrEmpty(p.Required)
		m["additionalProperties"] = false
	}
	return m
}

// requiredOrEmpty keeps "required" an array, never null, in rendered schemas.
func requiredOrEmpty(req []string) []string {
	if req == nil {
		return []string{}
	}
	return req
}
