package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAsStandardError_Wrapped(t *testing.T) {
	cause := stderrors.New("connection refused")
	wrapped := fmt.Errorf("submit: %w", NewInquirySubmitFailedError(cause))

	stdErr, ok := AsStandardError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrCodeInquirySubmitFailed, stdErr.Code)
	assert.ErrorIs(t, wrapped, cause)
	assert.True(t, IsRetryable(wrapped))

	_, ok = AsStandardError(cause)
	assert.False(t, ok)
	assert.False(t, IsRetryable(cause))
}

func TestWithMetadata(t *testing.T) {
	err := NewSubmissionInFlightError().WithMetadata("sessionId", "s-1")
	assert.Equal(t, "s-1", err.Metadata["sessionId"])
	assert.Contains(t, err.Error(), string(ErrCodeSubmissionInFlight))
}

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name            string
		err             *StandardError
		expectedCode    string
		expectedRetries int
	}{
		{"invalid answers never retried", NewInvalidAnswersError("bad"), "INVALID_ANSWERS", 0},
		{"database insert retried", NewDatabaseInsertFailedError(stderrors.New("x")), "DATABASE_INSERT_FAILED", 3},
		{"timeout retried twice", NewTimeoutError("zeebe", stderrors.New("x")), "TIMEOUT_ERROR", 2},
		{"unmapped code passes through", NewSessionNotFoundError("s-1"), "SESSION_NOT_FOUND", 0},
		{"non-retryable external error", func() *StandardError {
			e := NewExternalServiceError("zoho", stderrors.New("400"))
			e.Retryable = false
			return e
		}(), "EXTERNAL_SERVICE_ERROR", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, tt.expectedCode, bpmn.Code)
			assert.Equal(t, tt.expectedRetries, bpmn.Retries)
			assert.Equal(t, string(tt.err.Code), bpmn.ErrorVariables["originalErrorCode"])

			vars := bpmn.ToErrorVariables()
			assert.Equal(t, tt.expectedCode, vars["errorCode"])
			assert.Equal(t, tt.err.Retryable, vars["retryable"])
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	tests := map[ErrorCode]string{
		ErrCodeOrderStartFailed:    "SUBMISSION",
		ErrCodeSubmissionInFlight:  "SUBMISSION",
		ErrCodeSubmissionCompleted: "SUBMISSION",
		ErrCodeCacheUnavailable:    "DATABASE",
		ErrCodeAnalyticsEmitFailed: "NOTIFICATION",
		ErrCodePrerequisiteUnmet:   "VALIDATION",
		ErrCodeSessionNotFound:     "SESSION",
		"TIMEOUT_ERROR":            "TECHNICAL",
	}
	for code, expected := range tests {
		assert.Equal(t, expected, GetErrorCategory(code), code)
	}
}

func TestIsRetryableErrorCode(t *testing.T) {
	assert.True(t, IsRetryableErrorCode(ErrCodeNotificationSendFailed))
	assert.True(t, IsRetryableErrorCode("EXTERNAL_SERVICE_ERROR"))
	assert.False(t, IsRetryableErrorCode(ErrCodeInvalidRequest))
}
