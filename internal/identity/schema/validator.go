package schema

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/xeipuuv/gojsonschema"
)

// rootContext is how gojsonschema names the top of the document.
const rootContext = "(root)"

// ValidationError reports every way a payload violates its schema.
type ValidationError struct {
	Schema string
	// Issues holds one "<schema> <field>: <message>" entry per violation, in report order.
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Schema, strings.Join(e.Issues, "; "))
}

// HasIssueFor reports whether any issue references field.
func (e *ValidationError) HasIssueFor(field string) bool {
	for _, issue := range e.Issues {
		if strings.Contains(issue, field) {
			return true
		}
	}
	return false
}

// Validator checks payloads against one compiled Schema.
type Validator struct {
	schema   Schema
	compiled *gojsonschema.Schema
}

// Compile renders s to JSON Schema and compiles it.
func Compile(s Schema) (*Validator, error) {
	compiled, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(s.JSONSchema()))
	if err != nil {
		return nil, fmt.Errorf("compile %s schema: %w", s.Name, err)
	}
	return &Validator{schema: s, compiled: compiled}, nil
}

// MustCompile is Compile for package-level schemas; it panics on a malformed declaration.
func MustCompile(s Schema) *Validator {
	v, err := Compile(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Schema returns the declaration v was compiled from.
func (v *Validator) Schema() Schema {
	return v.schema
}

// Validate applies defaults to a copy of raw and checks it. It returns the defaulted payload
// or a *ValidationError. Named map types and structs are read as plain objects first.
func (v *Validator) Validate(raw any) (map[string]any, error) {
	payload := raw
	if m, ok := toObject(raw); ok {
		payload = v.schema.ApplyDefaults(m)
	}
	result, err := v.compiled.Validate(gojsonschema.NewGoLoader(payload))
	if err != nil {
		return nil, &ValidationError{
			Schema: v.schema.Name,
			Issues: []string{fmt.Sprintf("%s: payload is not a JSON document: %v", v.schema.Name, err)},
		}
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			issues = append(issues, v.issue(re))
		}
		return nil, &ValidationError{Schema: v.schema.Name, Issues: issues}
	}
	m, ok := payload.(map[string]any)
	if !ok {
		return nil, &ValidationError{
			Schema: v.schema.Name,
			Issues: []string{fmt.Sprintf("%s: Expected object, received %T", v.schema.Name, raw)},
		}
	}
	return m, nil
}

// toObject returns raw as a plain map. Map types with string keys and structs (keyed by their
// json tags) are converted at the top level; anything else is reported as not an object.
func toObject(raw any) (map[string]any, bool) {
	switch m := raw.(type) {
	case map[string]any:
		return m, true
	case nil:
		return nil, false
	}
	var out map[string]any
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &out,
		TagName: "json",
	})
	if err != nil {
		return nil, false
	}
	if err := dec.Decode(raw); err != nil || out == nil {
		return nil, false
	}
	return out, true
}

// Decode validates raw and decodes it into out, which must be a pointer to a record struct.
func (v *Validator) Decode(raw any, out any) error {
	payload, err := v.Validate(raw)
	if err != nil {
		return err
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(payload); err != nil {
		return &ValidationError{
			Schema: v.schema.Name,
			Issues: []string{fmt.Sprintf("%s: %v", v.schema.Name, err)},
		}
	}
	return nil
}

func (v *Validator) issue(re gojsonschema.ResultError) string {
	path := re.Field()
	if path == rootContext {
		path = ""
	}
	details := re.Details()
	var msg string
	switch re.Type() {
	case "required":
		if prop, ok := details["property"].(string); ok {
			path = joinPath(path, prop)
		}
		msg = "Required"
	case "invalid_type":
		msg = fmt.Sprintf("Expected %v, received %v", details["expected"], details["given"])
	case "enum":
		msg = fmt.Sprintf("Invalid enum value. Expected %v, received %v", details["allowed"], re.Value())
	default:
		msg = re.Description()
	}
	if path == "" {
		return fmt.Sprintf("%s: %s", v.schema.Name, msg)
	}
	return fmt.Sprintf("%s %s: %s", v.schema.Name, path, msg)
}

func joinPath(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}

var (
	userValidator     = MustCompile(UserRecordSchema)
	profileValidator  = MustCompile(ProfileSchema)
	claimsValidator   = MustCompile(ClaimsSchema)
	academiaValidator = MustCompile(AcademiaSchema)

	profileUpdateValidator = MustCompile(ProfileSchema.Partial())
)

// ValidateUser validates an identity record.
func ValidateUser(raw any) (*UserRecord, error) {
	var rec UserRecord
	if err := userValidator.Decode(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ValidateProfile validates a profile document.
func ValidateProfile(raw any) (*ProfileRecord, error) {
	var rec ProfileRecord
	if err := profileValidator.Decode(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ValidateProfileUpdate checks the fields present in a partial profile document.
// Absent fields are not required and no defaults are applied.
func ValidateProfileUpdate(raw map[string]any) error {
	_, err := profileUpdateValidator.Validate(raw)
	return err
}

// ValidateClaims validates a custom claims payload.
func ValidateClaims(raw any) (*ClaimsRecord, error) {
	var rec ClaimsRecord
	if err := claimsValidator.Decode(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// ValidateAcademia validates an organization record.
func ValidateAcademia(raw any) (*AcademiaRecord, error) {
	var rec AcademiaRecord
	if err := academiaValidator.Decode(raw, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}
