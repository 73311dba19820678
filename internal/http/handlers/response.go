// Package handlers provides HTTP handler implementations for the public API.
//
// Two response shapes are used:
//   - the OTP endpoints answer with the compact {ok, ttl?, user?, error?}
//     envelope browsers of the login page already understand;
//   - everything else uses ErrorResponse with a stable `code`.
//
// Example error response:
//
//	HTTP/1.1 401 Unauthorized
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "unauthorized",
//	  "message": "login required"
//	}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-telegram-otp/internal/http/middleware"
)

// ErrorResponse is the standard error envelope of the non-OTP endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"resource not found"`
}

// OTPResponse is the envelope of the request-code and verify-code endpoints.
type OTPResponse struct {
	OK    bool   `json:"ok" example:"true"`
	TTL   int    `json:"ttl,omitempty" example:"60"`
	User  string `json:"user,omitempty" example:"u1"`
	Error string `json:"error,omitempty" example:"invalid_code"`
}

// fail aborts the request with an ErrorResponse. Server errors are logged with
// the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		lg.Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail for router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// otpFail aborts with {ok:false, error:code}.
func otpFail(c *gin.Context, status int, code string) {
	c.AbortWithStatusJSON(status, OTPResponse{Error: code})
}

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}
