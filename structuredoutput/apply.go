package structuredoutput

import (
	"encoding/json"

	"github.com/airuntime/core/chat"
	"github.com/airuntime/core/errs"
)

// Apply mutates req so the provider is constrained to schema's shape
// (spec §4.9 step 2). It sets Params.Extra["response_format"] to
// {"type": "json_schema", "schema": ...} and appends a system message
// asking for JSON matching the schema, the same way for every provider.
// No provider adapter in this module reads Extra["response_format"], so
// the system message is what constrains the output.
func Apply(req *chat.Request, schema *Schema) {
	m := schema.ToMap()
	if req.Params.Extra == nil {
		req.Params.Extra = map[string]any{}
	}
	req.Params.Extra["response_format"] = map[string]any{
		"type":   "json_schema",
		"schema": m,
	}
	req.Messages = append(req.Messages, chat.Message{
		Role: chat.RoleSystem,
		Text: "Respond with JSON matching this schema only, no prose: " + mustJSON(m),
	})
}

func mustJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// Decode parses a provider's raw JSON response text and populates target
// via Populate, combining spec §4.9 steps 3 and 4 into one call.
func Decode(responseText string, target any) error {
	var data any
	if err := json.Unmarshal([]byte(responseText), &data); err != nil {
		return errs.Wrap(errs.SchemaViolation, "structuredoutput", err)
	}
	return Populate(target, data)
}
