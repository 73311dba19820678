package handlers

// Generic error codes (ErrorResponse.Code).
const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)

// OTP error codes (OTPResponse.Error). Clients branch on these.
const (
	OTPIdentifierRequired = "identifier_required"
	OTPUserNotFound       = "user_not_found"
	OTPTelegramNotLinked  = "telegram_not_linked"
	OTPSendFailed         = "send_failed"
	OTPInvalidCodeFormat  = "invalid_code_format"
	OTPInvalidCode        = "invalid_code"
	OTPCodeExpired        = "code_expired"
	OTPDatabaseError      = "database_error"
	OTPSessionFailed      = "session_failed"
)
