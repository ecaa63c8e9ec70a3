package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	schemasassets "github.com/BradhamLab/oif/internal/assets/schemas"
)

// ErrValidationFailed indicates the job descriptor failed schema
// validation.
var ErrValidationFailed = errors.New("job descriptor validation failed")

// Compiled schema, built once from the embedded document.
var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

// ValidationError represents a single validation issue.
type ValidationError struct {
	// Path is the JSON pointer to the problematic field (e.g. "/stains").
	Path string

	// Message describes the validation failure.
	Message string
}

func (e ValidationError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "validation failed"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var b strings.Builder
	fmt.Fprintf(&b, "job descriptor validation failed with %d errors:\n", len(e))
	for i, err := range e {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error type.
func (e ValidationErrors) Unwrap() error { return ErrValidationFailed }

// Validate checks a descriptor against the job schema.
//
// Note: this validates the struct representation, which loses unknown
// fields. For strict validation including unknown-key rejection, use
// ValidateRaw on the original input document.
func Validate(d *Descriptor) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to serialize job descriptor for validation: %w", err)
	}
	return ValidateRaw(data)
}

// ValidateRaw checks a raw JSON document against the job schema.
// Unknown keys are rejected (additionalProperties: false).
func ValidateRaw(jsonData []byte) error {
	sch, err := getSchema()
	if err != nil {
		return err
	}

	var doc any
	if err := json.Unmarshal(jsonData, &doc); err != nil {
		return fmt.Errorf("invalid JSON in job descriptor: %w", err)
	}

	if err := sch.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return collectValidationErrors(ve)
		}
		return fmt.Errorf("schema validation error: %w", err)
	}
	return nil
}

func getSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("job.schema.json", string(schemasassets.JobSchema))
		if schemaErr != nil {
			schemaErr = fmt.Errorf("failed to compile job schema: %w", schemaErr)
		}
	})
	return schema, schemaErr
}

// collectValidationErrors flattens the validator's cause tree into leaf
// issues.
func collectValidationErrors(ve *jsonschema.ValidationError) ValidationErrors {
	var out ValidationErrors
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, ValidationError{
				Path:    e.InstanceLocation,
				Message: e.Message,
			})
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(ve)
	return out
}
