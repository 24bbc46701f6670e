package service

import (
	"encoding/json"
	"strings"

	"github.com/cloo-solutions/kbchat/internal/domain"
	"github.com/xeipuuv/gojsonschema"
)

const answerSchemaJSON = `{
	"type": "object",
	"required": ["answer"],
	"properties": {
		"answer": {"type": "string"}
	}
}`

var answerSchema = mustCompileSchema(answerSchemaJSON)

func mustCompileSchema(schema string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schema))
	if err != nil {
		panic("invalid answer schema: " + err.Error())
	}
	return s
}

// extractAnswer pulls the answer out of raw model output. Structured output
// wins; otherwise the raw text is used as-is; empty output becomes the
// refusal answer. Malformed output is never an error.
func extractAnswer(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return domain.RefusalAnswer
	}

	result, err := answerSchema.Validate(gojsonschema.NewStringLoader(trimmed))
	if err == nil && result.Valid() {
		var out struct {
			Answer string `json:"answer"`
		}
		if json.Unmarshal([]byte(trimmed), &out) == nil && out.Answer != "" {
			return out.Answer
		}
	}

	return raw
}
