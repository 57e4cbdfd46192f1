package errors

import (
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStatusCode(t *testing.T) {
	tests := []struct {
		status   int
		expected ErrorType
	}{
		{http.StatusUnauthorized, ErrorTypeAuth},
		{http.StatusForbidden, ErrorTypeAuth},
		{http.StatusNotFound, ErrorTypeNotFound},
		{http.StatusTooManyRequests, ErrorTypeRateLimit},
		{http.StatusBadGateway, ErrorTypeServerError},
		{http.StatusTeapot, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := FromStatusCode(tt.status)
			assert.Equal(t, tt.expected, err.Type)
			assert.Equal(t, tt.status, err.Code)
		})
	}
}

func TestTypeOfWrapped(t *testing.T) {
	err := fmt.Errorf("listing children: %w", New(ErrorTypeAuth, 401, "nope"))
	assert.Equal(t, ErrorTypeAuth, TypeOf(err))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(io.EOF))
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(ErrorTypeNetwork, io.ErrUnexpectedEOF, "reading body")
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Contains(t, err.Error(), "reading body")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.False(t, IsRetryable(ErrorTypeAuth))
	assert.False(t, IsRetryable(ErrorTypeParsing))
	assert.True(t, IsRetryableStatusCode(503))
	assert.False(t, IsRetryableStatusCode(404))
}
