// Debug listing of recent login codes.
//
//   - GET /users/debug-codes/  (only mounted when DEBUG_ENDPOINTS is on)
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/tbourn/go-telegram-otp/internal/clock"
	"github.com/tbourn/go-telegram-otp/internal/repo"
	"github.com/tbourn/go-telegram-otp/internal/utils"
)

// DebugHandlers exposes raw session state. Never enable in production: the
// listing contains live codes.
type DebugHandlers struct {
	db    *gorm.DB
	clock clock.Clock
}

// NewDebug constructs DebugHandlers.
func NewDebug(db *gorm.DB, clk clock.Clock) *DebugHandlers {
	if clk == nil {
		clk = clock.Real()
	}
	return &DebugHandlers{db: db, clock: clk}
}

// DebugSession is one listed session.
type DebugSession struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Code      string    `json:"code"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Status    string    `json:"status" enums:"active,expired,used"`
}

// DebugCodesResponse lists the newest sessions.
type DebugCodesResponse struct {
	CurrentTime time.Time      `json:"current_time"`
	ActiveCount int            `json:"active_count"`
	TotalCount  int            `json:"total_count"`
	Sessions    []DebugSession `json:"sessions"`
	Stats       repo.OTPStats  `json:"stats"`
}

// DebugCodes godoc
// @ID          debugCodes
// @Summary     Recent login codes
// @Description Lists the newest sessions with their status. Counts in active_count/total_count cover the listed rows; stats covers the whole table.
// @Tags        Debug
// @Produce     json
// @Param       limit  query  int  false  "Rows"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.DebugCodesResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /users/debug-codes/ [get]
func (h *DebugHandlers) DebugCodes(c *gin.Context) {
	const (
		defaultLimit = 20
		maxLimit     = 100
	)
	limit := utils.ClampLimit(utils.AtoiDefault(c.Query("limit"), defaultLimit), defaultLimit, maxLimit)

	ctx := c.Request.Context()
	now := h.clock.Now()
	rows, err := repo.ListRecentOTPSessions(ctx, h.db, 0, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	stats, err := repo.SessionStats(ctx, h.db, now)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}

	resp := DebugCodesResponse{
		CurrentTime: now,
		TotalCount:  len(rows),
		Sessions:    make([]DebugSession, 0, len(rows)),
		Stats:       stats,
	}
	for i := range rows {
		s := &rows[i]
		st := s.Status(now)
		if st == "active" {
			resp.ActiveCount++
		}
		resp.Sessions = append(resp.Sessions, DebugSession{
			ID:        s.ID,
			Username:  s.Account.Username,
			Code:      s.Code,
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
			Status:    st,
		})
	}
	ok(c, http.StatusOK, resp)
}
