package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{ErrInvalidCredentials, http.StatusUnauthorized, "INVALID_CREDENTIALS"},
		{ErrMalformedToken, http.StatusUnauthorized, "MALFORMED_TOKEN"},
		{ErrInactive, http.StatusForbidden, "INACTIVE"},
		{ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{ErrExpired, http.StatusGone, "EXPIRED"},
		{ErrMismatch, http.StatusBadRequest, "MISMATCH"},
		{ErrValidation, http.StatusBadRequest, "VALIDATION_ERROR"},
		{ErrDeliveryFailed, http.StatusBadGateway, "DELIVERY_FAILED"},
		{fmt.Errorf("%w: lock busy", ErrDeliveryFailed), http.StatusBadGateway, "DELIVERY_FAILED"},
		{errors.New("pq: connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			status, code, message := StatusFor(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
			assert.NotEmpty(t, message)
			assert.NotContains(t, message, "pq:")
		})
	}
}

func TestStatusFor_ValidationDetail(t *testing.T) {
	_, _, message := StatusFor(fmt.Errorf("%w: password must be at least 6 characters", ErrValidation))
	assert.Equal(t, "password must be at least 6 characters", message)
}

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Set("request_id", "abcd1234")

	RespondError(c, ErrExpired)

	assert.Equal(t, http.StatusGone, w.Code)
	var body Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.False(t, body.Success)
	assert.Equal(t, http.StatusGone, body.Code)
	require.NotNil(t, body.Error)
	assert.Equal(t, "EXPIRED", body.Error.Code)
	assert.Equal(t, "abcd1234", body.Meta.RequestID)
}
