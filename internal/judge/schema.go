package judge

import (
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// evaluationSchema is what a well-formed judge response must look like.
// Scores are validated as numbers only; clamping handles out-of-range values.
const evaluationSchema = `{
	"type": "object",
	"required": ["accuracy", "accuracy_explanation", "empathy", "empathy_explanation", "response_time", "overall_feedback"],
	"properties": {
		"accuracy": {"type": "number"},
		"accuracy_explanation": {"type": "string"},
		"empathy": {"type": "number"},
		"empathy_explanation": {"type": "string"},
		"response_time": {"type": "number"},
		"response_time_explanation": {"type": "string"},
		"overall_feedback": {"type": "string"}
	}
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

// validateEvaluation checks a decoded judge response against the schema.
func validateEvaluation(value any) error {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(evaluationSchema))
		if err != nil {
			schemaErr = fmt.Errorf("parse evaluation schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("evaluation.json", doc); err != nil {
			schemaErr = fmt.Errorf("add evaluation schema: %w", err)
			return
		}
		compiledSchema, schemaErr = compiler.Compile("evaluation.json")
	})
	if schemaErr != nil {
		return schemaErr
	}
	if err := compiledSchema.Validate(value); err != nil {
		return fmt.Errorf("judge response failed schema validation: %w", err)
	}
	return nil
}
