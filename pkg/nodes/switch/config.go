package switchnode

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"strings"

	"github.com/dukex/flowroute/pkg/models"
	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

var (
	ErrConfigRequired = errors.New("switch operation requires configuration, please specify configuration")
	ErrInvalidConfig  = errors.New("invalid switch configuration")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config is the declarative configuration of a switch operation.
type Config struct {
	Inputs  []models.Field `json:"inputs"  validate:"dive"`
	Outputs []models.Field `json:"outputs" validate:"required,min=1,dive"`
	Cases   []Case         `json:"cases"   validate:"dive"`
	Default string         `json:"default" validate:"required"`
}

// Case maps a discriminant value to the operation that handles it.
type Case struct {
	Case any                  `json:"case"`
	Do   string               `json:"do"             validate:"required"`
	With models.RuntimeConfig `json:"with,omitempty"`
}

// DecodeConfig validates raw against the switch schema and decodes it. "context" is
// accepted as an alias of "inputs".
func DecodeConfig(raw map[string]any) (*Config, error) {
	if raw == nil {
		return nil, ErrConfigRequired
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	source := maps.Clone(raw)
	if _, ok := source["inputs"]; !ok {
		source["inputs"] = source["context"]
	}

	delete(source, "context")

	data, err := json.Marshal(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if err := validate.Struct(&config); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return &config, nil
}

func validateSchema(raw map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(ConfigSchema()),
		gojsonschema.NewGoLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if !result.Valid() {
		var errs []string
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}

	return nil
}

// Match returns the first case whose value structurally equals value.
func (c *Config) Match(value any) (int, bool) {
	for i := range c.Cases {
		if reflect.DeepEqual(c.Cases[i].Case, value) {
			return i, true
		}
	}

	return -1, false
}

// InputNames returns the declared inputs followed by the discriminant port.
func (c *Config) InputNames() []string {
	return append(models.FieldNames(c.Inputs), Discriminant)
}

var fieldSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"name":        map[string]any{"type": "string", "minLength": 1},
		"type":        map[string]any{"type": "string"},
		"description": map[string]any{"type": "string"},
		"required":    map[string]any{"type": "boolean"},
	},
	"required": []any{"name"},
}

// ConfigSchema returns the JSON schema of the switch configuration.
func ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"inputs": map[string]any{
				"type":        "array",
				"description": "Input fields routed to the selected case operation",
				"items":       fieldSchema,
			},
			"context": map[string]any{
				"type":        "array",
				"description": "Alias of inputs",
				"items":       fieldSchema,
			},
			"outputs": map[string]any{
				"type":        "array",
				"description": "Output fields shared by every case operation",
				"items":       fieldSchema,
				"minItems":    1,
			},
			"cases": map[string]any{
				"type":        "array",
				"description": "Cases evaluated in order; the first structurally equal value wins",
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"case": map[string]any{
							"description": "Value compared with the data received on the match port",
						},
						"do": map[string]any{
							"type":        "string",
							"description": "Operation path ('self::name' or 'namespace::operation')",
							"minLength":   1,
						},
						"with": map[string]any{
							"type":        "object",
							"description": "Configuration passed to the case operation",
						},
					},
					"required": []any{"case", "do"},
				},
			},
			"default": map[string]any{
				"type":        "string",
				"description": "Operation path used when no case matches",
				"minLength":   1,
			},
		},
		"required": []any{"outputs", "cases", "default"},
		"anyOf": []any{
			map[string]any{"required": []any{"inputs"}},
			map[string]any{"required": []any{"context"}},
		},
	}
}
