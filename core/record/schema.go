package record

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/patient_record_v1.json
var patientSchemaV1 string

var ErrSchema = errors.New("record: schema validation failed")

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(patientSchemaV1))
	})
	return schema, schemaErr
}

// Validate checks the minimal shape the vault relies on: an object with a
// usable patientId. Business-level fields are the CRUD layer's concern.
func Validate(rec PatientRecord) error {
	if rec == nil {
		return ErrNotObject
	}
	if rec.PatientID() == "" {
		return ErrMissingID
	}
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("record: load schema: %w", err)
	}
	result, err := s.Validate(gojsonschema.NewGoLoader(map[string]any(rec)))
	if err != nil {
		return fmt.Errorf("record: schema validation error: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("%w: %s", ErrSchema, strings.Join(msgs, "; "))
	}
	return nil
}
