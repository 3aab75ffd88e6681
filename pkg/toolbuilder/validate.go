package toolbuilder

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"github.com/flowmatic/flowmatic/pkg/models"
)

// ValidationError reports every input problem found before any logic
// step runs. A run that fails validation has no side effects.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "VALIDATION_ERROR: " + strings.Join(e.Problems, "; ")
}

// IsValidationError reports whether err is an input validation failure.
func IsValidationError(err error) bool {
	var validationErr *ValidationError

	return errors.As(err, &validationErr)
}

// ValidateInput checks the raw input record against the tool's declared
// inputs and returns a normalized copy: defaults applied for absent
// optional fields, numbers coerced to float64, booleans to bool. All
// problems are collected rather than stopping at the first.
func ValidateInput(tool *models.Tool, input map[string]any) (map[string]any, error) {
	normalized := make(map[string]any, len(tool.Inputs))

	var problems []string

	for _, declared := range tool.Inputs {
		value, present := input[declared.Name]

		if !present || value == nil || value == "" {
			if declared.Default != nil {
				normalized[declared.Name] = declared.Default

				continue
			}

			if declared.Required {
				problems = append(problems, fmt.Sprintf("required input %q is missing", declared.Name))
			}

			continue
		}

		coerced, err := coerceInput(declared, value)
		if err != nil {
			problems = append(problems, err.Error())

			continue
		}

		normalized[declared.Name] = coerced
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	return normalized, nil
}

func coerceInput(declared models.ToolInput, value any) (any, error) {
	switch declared.Type {
	case models.ToolInputNumber:
		num, ok := operandNumber(value)
		if !ok {
			return nil, fmt.Errorf("input %q must be a number, got %v", declared.Name, value)
		}

		return num, nil

	case models.ToolInputEmail:
		text, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("input %q must be an email address", declared.Name)
		}

		if _, err := mail.ParseAddress(text); err != nil {
			return nil, fmt.Errorf("input %q is not a valid email address", declared.Name)
		}

		return text, nil

	case models.ToolInputURL:
		text, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("input %q must be a URL", declared.Name)
		}

		parsed, err := url.Parse(text)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return nil, fmt.Errorf("input %q is not a valid absolute URL", declared.Name)
		}

		return text, nil

	case models.ToolInputSelect:
		text := fmt.Sprintf("%v", value)

		for _, option := range declared.Options {
			if option == text {
				return text, nil
			}
		}

		return nil, fmt.Errorf("input %q must be one of %v", declared.Name, declared.Options)

	case models.ToolInputBool:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				return nil, fmt.Errorf("input %q must be a boolean", declared.Name)
			}

			return parsed, nil
		default:
			return nil, fmt.Errorf("input %q must be a boolean", declared.Name)
		}

	case models.ToolInputText:
		return fmt.Sprintf("%v", value), nil

	default:
		return value, nil
	}
}
