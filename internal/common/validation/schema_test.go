package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
	"type": "object",
	"properties": {
		"field": {"type": "string", "enum": ["a", "b"]},
		"count": {"type": "integer", "minimum": 0}
	},
	"required": ["field"],
	"additionalProperties": false
}`

func TestSchema_Validate(t *testing.T) {
	s := MustCompile("test", testSchema)
	assert.Equal(t, "test", s.Name())

	tests := []struct {
		name      string
		document  string
		valid     bool
		errorCode string
	}{
		{"valid", `{"field":"a","count":2}`, true, ""},
		{"missing required", `{"count":2}`, false, "REQUIRED_FIELD_MISSING"},
		{"extra field", `{"field":"a","other":1}`, false, "EXTRA_FIELD"},
		{"bad enum", `{"field":"c"}`, false, "INVALID_ENUM_VALUE"},
		{"below minimum", `{"field":"a","count":-1}`, false, "MINIMUM_VIOLATION"},
		{"wrong type", `{"field":1}`, false, "INVALID_TYPE"},
		{"not json", `{"field":`, false, "INVALID_JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := s.Validate([]byte(tt.document))
			assert.Equal(t, tt.valid, result.Valid)
			if tt.valid {
				assert.Empty(t, result.Errors)
				return
			}
			require.NotEmpty(t, result.Errors)
			codes := make([]string, 0, len(result.Errors))
			for _, e := range result.Errors {
				codes = append(codes, e.Code)
			}
			assert.Contains(t, codes, tt.errorCode)
			assert.Len(t, result.GetErrorMessages(), len(result.Errors))
		})
	}
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile("broken", `{"type": 12}`)
	assert.Error(t, err)
	assert.Panics(t, func() { MustCompile("broken", `not json`) })
}

func TestValidationResult_HasErrors(t *testing.T) {
	s := MustCompile("test", testSchema)
	result := s.Validate([]byte(`{"field":"z"}`))
	assert.True(t, result.HasErrors("field"))
	assert.False(t, result.HasErrors("count"))
}
