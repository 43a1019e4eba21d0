package reprompt

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/zoobzio/sentinel"
)

var (
	improvementSchemaOnce sync.Once
	improvementSchema     string
)

// ImprovementSchema returns the JSON Schema for ImprovementResponse that the
// model is asked to follow. It is generated once from the struct metadata.
func ImprovementSchema() string {
	improvementSchemaOnce.Do(func() {
		improvementSchema = generateImprovementSchema()
	})
	return improvementSchema
}

func generateImprovementSchema() string {
	schema := objectSchema(sentinel.Inspect[ImprovementResponse]().Fields)
	props, _ := schema["properties"].(map[string]interface{})

	if mapping, ok := props["mapping"].(map[string]interface{}); ok {
		mapping["minItems"] = 1
		item := objectSchema(sentinel.Inspect[MappingEntry]().Fields)
		if itemProps, ok := item["properties"].(map[string]interface{}); ok {
			if sections, ok := itemProps["improvedSections"].(map[string]interface{}); ok {
				sections["items"] = sectionEnum()
				sections["minItems"] = 1
			}
		}
		mapping["items"] = item
	}

	if explanations, ok := props["explanations"].(map[string]interface{}); ok {
		explanations["minItems"] = len(Sections())
		explanations["maxItems"] = len(Sections())
		item := objectSchema(sentinel.Inspect[ExplanationEntry]().Fields)
		if itemProps, ok := item["properties"].(map[string]interface{}); ok {
			itemProps["section"] = sectionEnum()
		}
		explanations["items"] = item
	}

	jsonBytes, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		// Fallback to simple representation
		return "{}"
	}
	return string(jsonBytes)
}

func sectionEnum() map[string]interface{} {
	names := make([]string, 0, len(Sections()))
	for _, s := range Sections() {
		names = append(names, string(s))
	}
	return map[string]interface{}{
		"type": "string",
		"enum": names,
	}
}

// objectSchema builds a JSON Schema object from sentinel field metadata.
func objectSchema(fields []sentinel.FieldMetadata) map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"properties":           buildProperties(fields),
		"required":             buildRequiredFields(fields),
		"additionalProperties": false,
	}
}

// buildProperties converts field metadata to JSON Schema properties.
func buildProperties(fields []sentinel.FieldMetadata) map[string]interface{} {
	properties := make(map[string]interface{})

	for _, field := range fields {
		jsonName := getJSONFieldName(field)
		if jsonName == "-" {
			continue // Skip fields with json:"-"
		}

		prop := map[string]interface{}{
			"type": goTypeToJSONType(field.Type),
		}
		if desc, ok := field.Tags["desc"]; ok {
			prop["description"] = desc
		}
		properties[jsonName] = prop
	}

	return properties
}

// buildRequiredFields determines which fields are required.
func buildRequiredFields(fields []sentinel.FieldMetadata) []string {
	var required []string

	for _, field := range fields {
		jsonName := getJSONFieldName(field)
		if jsonName == "-" {
			continue
		}

		// Field is required unless it has omitempty in json tag
		if !hasOmitempty(field) {
			required = append(required, jsonName)
		}
	}

	return required
}

// getJSONFieldName extracts the JSON field name from metadata.
func getJSONFieldName(field sentinel.FieldMetadata) string {
	if jsonTag, ok := field.Tags["json"]; ok {
		parts := strings.Split(jsonTag, ",")
		if len(parts) > 0 && parts[0] != "" {
			return parts[0]
		}
	}

	return strings.ToLower(field.Name[:1]) + field.Name[1:]
}

func hasOmitempty(field sentinel.FieldMetadata) bool {
	if jsonTag, ok := field.Tags["json"]; ok {
		return strings.Contains(jsonTag, "omitempty")
	}
	return false
}

// goTypeToJSONType maps Go types to JSON Schema types.
// Named types such as Section fall through to "object"; callers override them.
func goTypeToJSONType(goType string) string {
	switch {
	case strings.HasPrefix(goType, "string"):
		return "string"
	case strings.HasPrefix(goType, "int"), strings.HasPrefix(goType, "uint"):
		return "integer"
	case strings.HasPrefix(goType, "float"):
		return "number"
	case strings.HasPrefix(goType, "bool"):
		return "boolean"
	case strings.HasPrefix(goType, "[]"):
		return "array"
	default:
		return "object"
	}
}
