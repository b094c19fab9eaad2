package validation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rendis/listwizard/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const (
	catalogSchemaURL = "https://listwizard.dev/schemas/catalog.json"
	draftSchemaURL   = "https://listwizard.dev/schemas/draft.json"
)

// catalogSchemaJSON is the JSON Schema for the embedded step catalog.
const catalogSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://listwizard.dev/schemas/catalog.json",
  "type": "object",
  "required": ["version", "wizard_section", "sections", "steps"],
  "properties": {
    "version": { "type": "integer", "minimum": 1 },
    "wizard_section": { "type": "string", "minLength": 1 },
    "sections": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/section" }
    },
    "steps": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/step" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "section": {
      "type": "object",
      "required": ["id", "title", "draft_key", "predicate"],
      "properties": {
        "id": { "type": "string", "pattern": "^[a-z][a-z0-9-]*$" },
        "title": { "type": "string" },
        "draft_key": { "type": "string", "minLength": 1 },
        "predicate": { "type": "string", "minLength": 1 }
      },
      "additionalProperties": false
    },
    "step": {
      "type": "object",
      "required": ["id", "kind", "section", "field"],
      "properties": {
        "id": { "type": "string", "pattern": "^[a-zA-Z][a-zA-Z0-9]*$" },
        "kind": {
          "type": "string",
          "enum": ["address-input", "single-select", "single-choice-buttons", "free-text"]
        },
        "title": { "type": "string" },
        "section": { "type": "string", "minLength": 1 },
        "field": { "type": "string", "minLength": 1 },
        "options": {
          "type": "array",
          "items": {
            "type": "object",
            "required": ["value", "label"],
            "properties": {
              "value": { "type": "string", "minLength": 1 },
              "label": { "type": "string" }
            },
            "additionalProperties": false
          }
        },
        "conditional": { "type": "boolean" },
        "depends_on": { "type": "array", "items": { "type": "string" } },
        "visible_when": { "type": "string" }
      },
      "allOf": [
        {
          "if": { "properties": { "kind": { "enum": ["single-select", "single-choice-buttons"] } } },
          "then": { "required": ["options"], "properties": { "options": { "minItems": 1 } } }
        },
        {
          "if": { "properties": { "conditional": { "const": true } }, "required": ["conditional"] },
          "then": { "required": ["depends_on", "visible_when"] }
        }
      ],
      "additionalProperties": false
    }
  }
}`

// draftSchemaJSON is the JSON Schema for persisted and inbound draft documents.
const draftSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://listwizard.dev/schemas/draft.json",
  "type": "object",
  "required": ["sections"],
  "properties": {
    "id": { "type": "string" },
    "version": { "type": "integer", "minimum": 1 },
    "sections": {
      "type": "object",
      "additionalProperties": { "type": "object" }
    },
    "lastStep": { "type": "string" },
    "updatedAt": { "type": "string" }
  }
}`

// JSONSchemaValidator implements the Validator interface using JSON Schema Draft 2020-12.
// It is safe for concurrent use.
type JSONSchemaValidator struct {
	catalogSchema *jsonschema.Schema
	draftSchema   *jsonschema.Schema
}

// NewJSONSchemaValidator creates a new JSONSchemaValidator with both schemas pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	for url, src := range map[string]string{
		catalogSchemaURL: catalogSchemaJSON,
		draftSchemaURL:   draftSchemaJSON,
	} {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("unmarshal schema %s: %w", url, err)
		}
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("add schema resource %s: %w", url, err)
		}
	}

	catalogSchema, err := c.Compile(catalogSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}
	draftSchema, err := c.Compile(draftSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile draft schema: %w", err)
	}

	return &JSONSchemaValidator{
		catalogSchema: catalogSchema,
		draftSchema:   draftSchema,
	}, nil
}

// ValidateCatalog validates a decoded catalog document, then checks what the
// schema cannot express: duplicate ids.
func (v *JSONSchemaValidator) ValidateCatalog(doc any) error {
	if doc == nil {
		return schema.NewError(schema.ErrCodeConfig, "catalog document is nil")
	}

	val, err := toJSONValue(doc)
	if err != nil {
		return schema.NewError(schema.ErrCodeConfig, "failed to serialize catalog").WithCause(err)
	}
	if err := v.catalogSchema.Validate(val); err != nil {
		verr := toWizardError(err)
		verr.Code = schema.ErrCodeConfig
		return verr
	}

	obj, _ := val.(map[string]any)
	problems := schema.NewProblems(schema.ErrCodeConfig)
	for _, list := range []string{"sections", "steps"} {
		items, _ := obj[list].([]any)
		seen := make(map[string]struct{}, len(items))
		for i, item := range items {
			id, _ := item.(map[string]any)["id"].(string)
			if _, dup := seen[id]; dup {
				problems.Addf(fmt.Sprintf("%s[%d].id", list, i), "duplicate %s id %q", strings.TrimSuffix(list, "s"), id)
			}
			seen[id] = struct{}{}
		}
	}
	return problems.Err()
}

// ValidateDraft validates a decoded draft document.
func (v *JSONSchemaValidator) ValidateDraft(doc any) error {
	if doc == nil {
		return schema.NewError(schema.ErrCodeValidation, "draft document is nil")
	}
	val, err := toJSONValue(doc)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize draft").WithCause(err)
	}
	if err := v.draftSchema.Validate(val); err != nil {
		return toWizardError(err)
	}
	return nil
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toWizardError converts a jsonschema.ValidationError into a WizardError
// listing every leaf violation with its instance location.
func toWizardError(err error) *schema.WizardError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf error messages.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}

var _ Validator = (*JSONSchemaValidator)(nil)
