package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// behaviorSchema constrains what the model may answer. Anything outside it
// is rejected before parsing; the caller falls back to scripted behavior.
const behaviorSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["action"],
	"additionalProperties": false,
	"properties": {
		"action": {
			"type": "string",
			"enum": ["eat", "rest", "socialize", "work", "farm", "build", "craft", "pray", "wander"]
		},
		"target": {"type": "string", "maxLength": 200},
		"reason": {"type": "string", "maxLength": 500}
	}
}`

var compiledBehaviorSchema = jsonschema.MustCompileString("behavior.json", behaviorSchema)

// ValidateBehavior checks raw model output against the behavior schema.
func ValidateBehavior(raw string) error {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return fmt.Errorf("behavior is not valid JSON: %w", err)
	}
	if err := compiledBehaviorSchema.Validate(v); err != nil {
		return fmt.Errorf("behavior failed schema validation: %w", err)
	}
	return nil
}

// StripFences removes markdown code fences models sometimes wrap JSON in.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
