package utils

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// Admin authentication and recovery errors. The message doubles as the API error code.
var (
	ErrInvalidCredentials = errors.New("INVALID_CREDENTIALS")
	ErrNotFound           = errors.New("NOT_FOUND")
	ErrExpired            = errors.New("EXPIRED")
	ErrMismatch           = errors.New("MISMATCH")
	ErrMalformedToken     = errors.New("MALFORMED_TOKEN")
	ErrInactive           = errors.New("INACTIVE")
	ErrDeliveryFailed     = errors.New("DELIVERY_FAILED")
	ErrValidation         = errors.New("VALIDATION_ERROR")
	ErrForbidden          = errors.New("FORBIDDEN")
)

const codeInternal = "INTERNAL_ERROR"

var errorStatus = []struct {
	err     error
	status  int
	message string
}{
	{ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password"},
	{ErrMalformedToken, http.StatusUnauthorized, "Invalid session token"},
	{ErrInactive, http.StatusForbidden, "Account is inactive"},
	{ErrForbidden, http.StatusForbidden, "Permission denied"},
	{ErrNotFound, http.StatusNotFound, "Not found"},
	{ErrExpired, http.StatusGone, "Code or token has expired"},
	{ErrMismatch, http.StatusBadRequest, "Code does not match"},
	{ErrValidation, http.StatusBadRequest, "Invalid request"},
	{ErrDeliveryFailed, http.StatusBadGateway, "Could not deliver email, please try again"},
}

// StatusFor maps err to an HTTP status, API error code and client-safe message.
// Unknown errors map to 500 INTERNAL_ERROR.
func StatusFor(err error) (status int, code, message string) {
	for _, e := range errorStatus {
		if errors.Is(err, e.err) {
			message = e.message
			// Validation errors carry a detail meant for the caller.
			if e.err == ErrValidation {
				if detail, ok := strings.CutPrefix(err.Error(), ErrValidation.Error()+": "); ok {
					message = detail
				}
			}
			return e.status, e.err.Error(), message
		}
	}
	return http.StatusInternalServerError, codeInternal, "Internal server error"
}

// RespondError writes the envelope for err. Internal errors are logged and
// never echoed to the client.
func RespondError(c *gin.Context, err error) {
	status, code, message := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", c.GetString("request_id")).Msg("Request failed")
	}
	Error(c, status, code, message)
}
