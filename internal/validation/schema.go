// Package validation checks suite, catalog, and knowledge base YAML files
// against embedded JSON schemas before a run touches the phone network.
package validation

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

// defaultPrinter is used to format schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

//go:embed suite.schema.json
var suiteSchemaJSON string

//go:embed catalog.schema.json
var catalogSchemaJSON string

//go:embed knowledgebase.schema.json
var kbSchemaJSON string

// suiteSchema is the compiled JSON Schema for test suite files.
var suiteSchema *jsonschema.Schema

// catalogSchema is the compiled JSON Schema for persona/behavior catalogs.
var catalogSchema *jsonschema.Schema

// kbSchema is the compiled JSON Schema for knowledge base files.
var kbSchema *jsonschema.Schema

func init() {
	suiteSchema = mustCompileSchema(suiteSchemaJSON, "suite.schema.json")
	catalogSchema = mustCompileSchema(catalogSchemaJSON, "catalog.schema.json")
	kbSchema = mustCompileSchema(kbSchemaJSON, "knowledgebase.schema.json")
}

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// FileKind classifies which schema a YAML file is validated against.
type FileKind string

const (
	KindSuite         FileKind = "suite"
	KindCatalog       FileKind = "catalog"
	KindKnowledgeBase FileKind = "knowledge_base"
	KindUnknown       FileKind = "unknown"
)

// FileResult is the validation outcome for one file.
type FileResult struct {
	Path   string
	Kind   FileKind
	Errors []string
}

// Valid reports whether the file passed validation.
func (r FileResult) Valid() bool {
	return r.Kind != KindUnknown && len(r.Errors) == 0
}

// ValidateSuiteBytes validates raw YAML bytes against the suite schema.
func ValidateSuiteBytes(data []byte) []string {
	return validateYAMLBytes(suiteSchema, data)
}

// ValidateCatalogBytes validates raw YAML bytes against the catalog schema.
func ValidateCatalogBytes(data []byte) []string {
	return validateYAMLBytes(catalogSchema, data)
}

// ValidateKnowledgeBaseBytes validates raw YAML bytes against the knowledge
// base schema.
func ValidateKnowledgeBaseBytes(data []byte) []string {
	return validateYAMLBytes(kbSchema, data)
}

// ValidateFile classifies a YAML file by its top-level keys and validates it
// against the matching schema.
func ValidateFile(path string) (FileResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileResult{}, fmt.Errorf("reading %s: %w", path, err)
	}

	result := FileResult{Path: path, Kind: classify(data)}
	switch result.Kind {
	case KindSuite:
		result.Errors = ValidateSuiteBytes(data)
	case KindCatalog:
		result.Errors = ValidateCatalogBytes(data)
	case KindKnowledgeBase:
		result.Errors = ValidateKnowledgeBaseBytes(data)
	case KindUnknown:
		result.Errors = []string{"unrecognized file: expected test_cases, personas/behaviors, or faqs"}
	}
	return result, nil
}

// ValidateDir validates every .yaml/.yml file directly under dir.
func ValidateDir(dir string) ([]FileResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	var results []FileResult
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		res, err := ValidateFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, nil
}

// classify decides which schema applies based on top-level keys.
func classify(data []byte) FileKind {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return KindUnknown
	}
	if _, ok := doc["test_cases"]; ok {
		return KindSuite
	}
	if _, ok := doc["personas"]; ok {
		return KindCatalog
	}
	if _, ok := doc["faqs"]; ok {
		return KindKnowledgeBase
	}
	return KindUnknown
}

func validateYAMLBytes(schema *jsonschema.Schema, data []byte) []string {
	var yamlDoc any
	if err := yaml.Unmarshal(data, &yamlDoc); err != nil {
		return []string{fmt.Sprintf("YAML parse error: %v", err)}
	}

	jsonCompatible := convertToJSONCompatible(yamlDoc)

	return validateAgainstSchema(schema, jsonCompatible)
}

func validateAgainstSchema(schema *jsonschema.Schema, instance any) []string {
	err := schema.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}

// convertToJSONCompatible converts YAML-decoded values to JSON-compatible types.
// yaml.v3 decodes to map[string]any which is fine, but integers need to stay as-is.
func convertToJSONCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v2 := range val {
			result[k] = convertToJSONCompatible(v2)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v2 := range val {
			result[i] = convertToJSONCompatible(v2)
		}
		return result
	default:
		return val
	}
}
