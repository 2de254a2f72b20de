// Package jobs loads job definitions and turns them into runnable flows over text items.
package jobs

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dukex/flowpipe/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

// ErrInvalidJob is returned for definitions failing schema or struct validation.
var ErrInvalidJob = errors.New("invalid job definition")

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads and validates the job definition stored at path. YAML and JSON are accepted.
func Load(path string) (*models.JobDefinition, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- job files are chosen by the operator
	if err != nil {
		return nil, fmt.Errorf("failed to read job %s: %w", path, err)
	}

	def, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("job %s: %w", path, err)
	}

	return def, nil
}

// Parse decodes and validates a job definition.
func Parse(data []byte) (*models.JobDefinition, error) {
	var raw map[string]any

	err := yaml.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}

	err = validateSchema(raw)
	if err != nil {
		return nil, err
	}

	var def models.JobDefinition

	err = yaml.Unmarshal(data, &def)
	if err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}

	err = Validate(&def)
	if err != nil {
		return nil, err
	}

	return &def, nil
}

// Validate checks the struct rules of a definition along with unique state names.
func Validate(def *models.JobDefinition) error {
	err := validate.Struct(def)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return fmt.Errorf("%w: %v", ErrInvalidJob, validationErrors)
		}

		return fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}

	seen := make(map[string]bool, len(def.States))

	for _, state := range def.States {
		if seen[state.Name] {
			return fmt.Errorf("%w: duplicate state %q", ErrInvalidJob, state.Name)
		}

		seen[state.Name] = true
	}

	return nil
}

func validateSchema(raw map[string]any) error {
	if raw == nil {
		return fmt.Errorf("%w: empty document", ErrInvalidJob)
	}

	result, err := gojsonschema.Validate(gojsonschema.NewStringLoader(schemaJSON), gojsonschema.NewGoLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidJob, strings.Join(errs, "; "))
	}

	return nil
}
