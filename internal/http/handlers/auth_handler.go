// Web login HTTP handlers.
//
//   - POST /users/auth/request_code/  (send a code to the linked chat)
//   - POST /users/auth/verify_code/   (redeem a code, start a web session)
//   - GET  /users/me/                 (current account, session required)
//   - POST /users/logout/             (drop the session cookie)
package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-telegram-otp/internal/auth"
	"github.com/tbourn/go-telegram-otp/internal/domain"
	"github.com/tbourn/go-telegram-otp/internal/http/middleware"
	"github.com/tbourn/go-telegram-otp/internal/services"
)

// AuthService is the login flow consumed by AuthHandlers.
type AuthService interface {
	RequestCode(ctx context.Context, identifier string) (services.RequestResult, error)
	VerifyCode(ctx context.Context, code string) (*domain.Account, error)
}

// AccountReader loads accounts by primary key.
type AccountReader interface {
	ByID(ctx context.Context, id string) (*domain.Account, error)
}

// AuthHandlers serves the web side of the login flow.
type AuthHandlers struct {
	auth     AuthService
	accounts AccountReader
	sessions *auth.Sessions
}

// NewAuth constructs AuthHandlers.
func NewAuth(a AuthService, accounts AccountReader, sessions *auth.Sessions) *AuthHandlers {
	return &AuthHandlers{auth: a, accounts: accounts, sessions: sessions}
}

// RequestCodeRequest accepts exactly one identifier; the first non-empty of
// username, email, phone is used.
type RequestCodeRequest struct {
	Username string `form:"username" json:"username" example:"u1"`
	Email    string `form:"email" json:"email" example:"u1@example.com"`
	Phone    string `form:"phone" json:"phone" example:"+15550100"`
}

func (r RequestCodeRequest) identifier() string {
	for _, v := range []string{r.Username, r.Email, r.Phone} {
		if v != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// VerifyCodeRequest carries the submitted code.
type VerifyCodeRequest struct {
	Code string `form:"code" json:"code" example:"482913"`
}

// MeResponse describes the logged-in account.
type MeResponse struct {
	ID             string `json:"id"`
	Username       string `json:"username" example:"u1"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	TelegramLinked bool   `json:"telegram_linked"`
}

// RequestCode godoc
// @ID          requestCode
// @Summary     Request a login code
// @Description Resolves the identifier to an account and sends a one-time code to its linked chat. When a code is already active nothing is sent and ttl is the time it has left.
// @Tags        Auth
// @Accept      json,x-www-form-urlencoded
// @Produce     json
// @Param       body  body  handlers.RequestCodeRequest  true  "One identifier"
// @Success     200  {object}  handlers.OTPResponse
// @Failure     400  {object}  handlers.OTPResponse  "identifier_required | telegram_not_linked"
// @Failure     404  {object}  handlers.OTPResponse  "user_not_found"
// @Failure     502  {object}  handlers.OTPResponse  "send_failed"
// @Router      /users/auth/request_code/ [post]
func (h *AuthHandlers) RequestCode(c *gin.Context) {
	var req RequestCodeRequest
	if err := c.ShouldBind(&req); err != nil {
		otpFail(c, http.StatusBadRequest, OTPIdentifierRequired)
		return
	}

	res, err := h.auth.RequestCode(c.Request.Context(), req.identifier())
	switch {
	case err == nil:
		ok(c, http.StatusOK, OTPResponse{OK: true, TTL: int(math.Ceil(res.TTL.Seconds()))})
	case errors.Is(err, services.ErrEmptyIdentifier):
		otpFail(c, http.StatusBadRequest, OTPIdentifierRequired)
	case errors.Is(err, services.ErrAccountNotFound):
		otpFail(c, http.StatusNotFound, OTPUserNotFound)
	case errors.Is(err, services.ErrTelegramNotLinked):
		otpFail(c, http.StatusBadRequest, OTPTelegramNotLinked)
	case errors.Is(err, services.ErrDeliveryFailed):
		otpFail(c, http.StatusBadGateway, OTPSendFailed)
	default:
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Msg("request code failed")
		otpFail(c, http.StatusInternalServerError, OTPDatabaseError)
	}
}

// VerifyCode godoc
// @ID          verifyCode
// @Summary     Redeem a login code
// @Description Marks the matching active code as used and sets the session cookie. A code succeeds at most once.
// @Tags        Auth
// @Accept      json,x-www-form-urlencoded
// @Produce     json
// @Param       body  body  handlers.VerifyCodeRequest  true  "Six digit code"
// @Success     200  {object}  handlers.OTPResponse
// @Header      200  {string}  Set-Cookie  "Session cookie"
// @Failure     400  {object}  handlers.OTPResponse  "invalid_code_format | invalid_code | code_expired"
// @Failure     500  {object}  handlers.OTPResponse  "database_error"
// @Router      /users/auth/verify_code/ [post]
func (h *AuthHandlers) VerifyCode(c *gin.Context) {
	var req VerifyCodeRequest
	_ = c.ShouldBind(&req) // a missing code fails the format check below

	acct, err := h.auth.VerifyCode(c.Request.Context(), strings.TrimSpace(req.Code))
	switch {
	case err == nil:
	case errors.Is(err, services.ErrInvalidCodeFormat):
		otpFail(c, http.StatusBadRequest, OTPInvalidCodeFormat)
		return
	case errors.Is(err, services.ErrCodeExpired):
		otpFail(c, http.StatusBadRequest, OTPCodeExpired)
		return
	case errors.Is(err, services.ErrCodeNotFound):
		otpFail(c, http.StatusBadRequest, OTPInvalidCode)
		return
	default:
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Msg("verify code failed")
		otpFail(c, http.StatusInternalServerError, OTPDatabaseError)
		return
	}

	token, exp, err := h.sessions.Issue(acct.ID, acct.Username)
	if err != nil {
		lg := middleware.LoggerFrom(c)
		lg.Error().Err(err).Str("account_id", acct.ID).Msg("issue session")
		otpFail(c, http.StatusInternalServerError, OTPSessionFailed)
		return
	}
	h.sessions.SetCookie(c, token, exp)
	ok(c, http.StatusOK, OTPResponse{OK: true, User: acct.Username})
}

// Me godoc
// @ID          me
// @Summary     Current account
// @Tags        Auth
// @Produce     json
// @Success     200  {object}  handlers.MeResponse
// @Failure     401  {object}  handlers.ErrorResponse  "No session"
// @Failure     404  {object}  handlers.ErrorResponse  "Account gone"
// @Router      /users/me/ [get]
func (h *AuthHandlers) Me(c *gin.Context) {
	acct, err := h.accounts.ByID(c.Request.Context(), c.GetString(auth.CtxUserID))
	if errors.Is(err, services.ErrAccountNotFound) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "account not found")
		return
	}
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, MeResponse{
		ID:             acct.ID,
		Username:       acct.Username,
		FirstName:      acct.FirstName,
		LastName:       acct.LastName,
		TelegramLinked: acct.Linked(),
	})
}

// Logout godoc
// @ID          logout
// @Summary     End the web session
// @Tags        Auth
// @Produce     json
// @Success     200  {object}  handlers.OTPResponse
// @Router      /users/logout/ [post]
func (h *AuthHandlers) Logout(c *gin.Context) {
	h.sessions.ClearCookie(c)
	ok(c, http.StatusOK, OTPResponse{OK: true})
}
