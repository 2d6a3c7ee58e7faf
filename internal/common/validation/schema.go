// Package validation checks incoming advisor requests before they reach the
// router. Structural checks run through a JSON Schema; length rules that
// depend on trimming are applied on the decoded query.
package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	apperrors "academic-advisor/internal/common/errors"
	"academic-advisor/internal/models"

	"github.com/xeipuuv/gojsonschema"
)

const rootContext = "(root)"

const (
	MaxQuestionRunes = 2000
	MaxUserIDRunes   = 50
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// QuerySchema describes the route-academic-query input variables.
var QuerySchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"question"},
	"properties": map[string]interface{}{
		// The length limit applies after trimming and is checked by
		// ValidateQuery.
		"question": map[string]interface{}{
			"type":      "string",
			"minLength": 1,
		},
		"user_id": map[string]interface{}{
			"type":      []interface{}{"string", "null"},
			"maxLength": MaxUserIDRunes,
		},
		"is_demo": map[string]interface{}{
			"type": []interface{}{"boolean", "null"},
		},
		"chat_history": map[string]interface{}{
			"type": []interface{}{"array", "null"},
			"items": map[string]interface{}{
				"type":     "object",
				"required": []interface{}{"role", "content"},
				"properties": map[string]interface{}{
					"role":    map[string]interface{}{"type": "string", "enum": []interface{}{models.RoleUser, models.RoleAssistant}},
					"content": map[string]interface{}{"type": "string"},
				},
			},
		},
	},
}

// ClassifySchema describes the classify-academic-intent input variables.
var ClassifySchema = map[string]interface{}{
	"type":     "object",
	"required": []interface{}{"question"},
	"properties": map[string]interface{}{
		"question":     QuerySchema["properties"].(map[string]interface{})["question"],
		"chat_history": QuerySchema["properties"].(map[string]interface{})["chat_history"],
	},
}

// ValidateInput validates input against a JSON schema given as a Go map.
func ValidateInput(input map[string]interface{}, schema map[string]interface{}) (*ValidationResult, error) {
	result, err := gojsonschema.Validate(gojsonschema.NewGoLoader(schema), gojsonschema.NewGoLoader(input))
	if err != nil {
		return nil, fmt.Errorf("validation error: %w", err)
	}

	out := &ValidationResult{Valid: result.Valid()}
	for _, desc := range result.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   fieldName(desc),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out, nil
}

// ValidateRequest checks job variables against schema and decodes them into
// a Query. Every failure is a VALIDATION_ERROR StandardError.
func ValidateRequest(input map[string]interface{}, schema map[string]interface{}) (models.Query, error) {
	var q models.Query

	result, err := ValidateInput(input, schema)
	if err != nil {
		return q, apperrors.NewValidationError("request", err.Error())
	}
	if !result.Valid {
		first := result.Errors[0]
		return q, apperrors.NewValidationError(first.Field, first.Message)
	}

	raw, err := json.Marshal(input)
	if err != nil {
		return q, apperrors.NewValidationError("request", err.Error())
	}
	if err := json.Unmarshal(raw, &q); err != nil {
		return q, apperrors.NewValidationError("request", err.Error())
	}
	return q, ValidateQuery(q)
}

// ValidateQuery applies the request rules to an already decoded query.
func ValidateQuery(q models.Query) error {
	n := utf8.RuneCountInString(strings.TrimSpace(q.Question))
	if n == 0 {
		return apperrors.NewValidationError("question", "question must not be empty")
	}
	if n > MaxQuestionRunes {
		return apperrors.NewValidationError("question", fmt.Sprintf("question exceeds %d characters", MaxQuestionRunes))
	}
	if utf8.RuneCountInString(q.UserID) > MaxUserIDRunes {
		return apperrors.NewValidationError("user_id", fmt.Sprintf("user_id exceeds %d characters", MaxUserIDRunes))
	}
	for i, m := range q.ChatHistory {
		if m.Role != models.RoleUser && m.Role != models.RoleAssistant {
			return apperrors.NewValidationError(fmt.Sprintf("chat_history[%d].role", i), fmt.Sprintf("unknown role %q", m.Role))
		}
	}
	return nil
}

// fieldName reports the offending property. Missing required properties are
// reported against their parent, so the property name is taken from details.
func fieldName(desc gojsonschema.ResultError) string {
	field := desc.Field()
	if desc.Type() == "required" {
		if prop, ok := desc.Details()["property"].(string); ok {
			if field == rootContext {
				return prop
			}
			return field + "." + prop
		}
	}
	return field
}
