package artifact

import (
	"fmt"
	"sort"
	"strings"
)

// SchemaError reports a missing or mistyped field when validating an
// artifact document against its type's schema. Mirrors the teacher's
// contextual validation errors (status name / field / problem / fix).
type SchemaError struct {
	Type    Type
	Field   string
	Problem string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("artifact %q schema violation: field %q: %s", e.Type, e.Field, e.Problem)
}

// kind enumerates the JSON value shapes a required field can take.
type kind int

const (
	kindString kind = iota
	kindObject
	kindArray
	kindAny
)

// fieldSpec declares one required field of an artifact type's schema.
type fieldSpec struct {
	name string
	kind kind
}

// typeSchema is the ordered list of fields a given artifact Type requires
// beyond the common header fields (version, agent, workflow_id, status,
// timestamp), which every type shares.
type typeSchema struct {
	fields []fieldSpec
}

// baseFields are required on every artifact regardless of type, per spec §3.
var baseFields = []fieldSpec{
	{"version", kindString},
	{"agent", kindString},
	{"workflow_id", kindString},
	{"status", kindString},
	{"timestamp", kindString},
}

// schemas is the declarative registry of per-type minimum required fields,
// taken verbatim from spec.md §6. Unknown extra fields are never rejected:
// only presence and coarse shape of the fields listed here are checked.
var schemas = map[Type]typeSchema{
	TypeManifest: {fields: []fieldSpec{
		{"request", kindString},
		{"alignment", kindObject},
		{"pipeline", kindArray},
	}},
	TypeResearch: {fields: []fieldSpec{
		{"codebase_patterns", kindArray},
		{"best_practices", kindArray},
		{"security_considerations", kindArray},
		{"recommended_libraries", kindArray},
		{"alternatives_considered", kindArray},
	}},
	TypeArchitecture: {fields: []fieldSpec{
		{"components", kindArray},
		{"data_model", kindObject},
		{"api_contracts", kindArray},
		{"threats", kindArray},
	}},
	TypeTestPlan: {fields: []fieldSpec{
		{"test_cases", kindArray},
		{"coverage_strategy", kindString},
	}},
	TypeImplementation: {fields: []fieldSpec{
		{"files_changed", kindArray},
		{"diff_summary", kindString},
		{"tests_added", kindAny},
	}},
	TypeReview: {fields: []fieldSpec{
		{"decision", kindString},
		{"score", kindAny},
		{"issues", kindArray},
	}},
	TypeSecurity: {fields: []fieldSpec{
		{"threats_validated", kindArray},
		{"overall_coverage", kindAny},
		{"recommendation", kindString},
	}},
	TypeDocs: {fields: []fieldSpec{
		{"docs_updated", kindArray},
		{"summary", kindString},
	}},
	TypeFinalReport: {fields: []fieldSpec{
		{"outcome", kindString},
		{"artifacts_created", kindArray},
		{"summary", kindString},
	}},
	TypeAlignmentCheck: {fields: []fieldSpec{
		{"is_aligned", kindAny},
		{"confidence", kindAny},
		{"matching_goals", kindArray},
		{"scope_assessment", kindString},
		{"constraint_violations", kindArray},
		{"reasoning", kindString},
	}},
}

// KnownTypes returns every declared artifact type, sorted, for diagnostics.
func KnownTypes() []Type {
	out := make([]Type, 0, len(schemas))
	for t := range schemas {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks doc against the declared schema for typ: every base field
// and every type-specific required field must be present with the right
// coarse shape. Extra/unknown fields are always permitted and left intact
// in doc, satisfying the forward-compatibility invariant in spec.md §4.8.
func Validate(typ Type, doc map[string]interface{}) error {
	schema, ok := schemas[typ]
	if !ok {
		return &SchemaError{Type: typ, Field: "", Problem: fmt.Sprintf("unknown artifact type %q", typ)}
	}

	for _, f := range baseFields {
		if err := checkField(typ, doc, f); err != nil {
			return err
		}
	}
	for _, f := range schema.fields {
		if err := checkField(typ, doc, f); err != nil {
			return err
		}
	}

	if status, ok := doc["status"].(string); ok {
		if !isKnownStatus(Status(status)) {
			return &SchemaError{
				Type:    typ,
				Field:   "status",
				Problem: fmt.Sprintf("status %q is not one of %s", status, strings.Join(knownStatusNames(), ", ")),
			}
		}
	}

	return nil
}

func checkField(typ Type, doc map[string]interface{}, f fieldSpec) error {
	value, present := doc[f.name]
	if !present {
		return &SchemaError{Type: typ, Field: f.name, Problem: "missing required field"}
	}
	switch f.kind {
	case kindString:
		if _, ok := value.(string); !ok {
			return &SchemaError{Type: typ, Field: f.name, Problem: "expected a string"}
		}
	case kindObject:
		if _, ok := value.(map[string]interface{}); !ok {
			return &SchemaError{Type: typ, Field: f.name, Problem: "expected a JSON object"}
		}
	case kindArray:
		if _, ok := value.([]interface{}); !ok {
			return &SchemaError{Type: typ, Field: f.name, Problem: "expected a JSON array"}
		}
	case kindAny:
		if value == nil {
			return &SchemaError{Type: typ, Field: f.name, Problem: "must not be null"}
		}
	}
	return nil
}

func isKnownStatus(s Status) bool {
	switch s {
	case StatusInitialized, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

func knownStatusNames() []string {
	return []string{string(StatusInitialized), string(StatusInProgress), string(StatusCompleted), string(StatusFailed)}
}
