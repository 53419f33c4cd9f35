package reasoning

import (
	"google.golang.org/genai"

	"leadscout/internal/tools"
)

// toGenAISchema converts the declarative tool schema into the GenAI SDK's
// schema type for ResponseSchema enforcement.
func toGenAISchema(s tools.Schema) *genai.Schema {
	out := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(s.Properties)),
		Required:   s.Required,
	}
	if s.Description != "" {
		out.Description = s.Description
	}
	for name, prop := range s.Properties {
		out.Properties[name] = propertySchema(prop)
	}
	return out
}

func propertySchema(p tools.Property) *genai.Schema {
	out := &genai.Schema{
		Type:        genAIType(p.Type),
		Description: p.Description,
		Enum:        p.Enum,
		Required:    p.Required,
	}
	if p.Items != nil {
		out.Items = propertySchema(*p.Items)
	}
	if len(p.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(p.Properties))
		for name, child := range p.Properties {
			out.Properties[name] = propertySchema(child)
		}
	}
	return out
}

func genAIType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeString
	}
}
