package httpserver

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "github.com/meetsmatch/matchqueue/internal/errors"
	"github.com/meetsmatch/matchqueue/internal/interfaces"
	"github.com/meetsmatch/matchqueue/internal/matching"
	"github.com/meetsmatch/matchqueue/internal/middleware"
	"github.com/meetsmatch/matchqueue/internal/sentry"
)

type handlers struct {
	preferences interfaces.PreferenceServiceInterface
	matches     interfaces.MatchServiceInterface
	queue       interfaces.QueueServiceInterface
}

// JoinQueueRequest is the body of POST /v1/queue/:userId.
type JoinQueueRequest struct {
	Intent string `json:"intent"`
}

// FindMatchesRequest is the body of POST /v1/matches/find.
type FindMatchesRequest struct {
	UserID     string `json:"userId"`
	Intent     string `json:"intent"`
	MaxMatches int    `json:"maxMatches"`
}

func malformed(err error) error {
	return apperrors.NewValidationError("body", apperrors.ReasonMalformedRequest, "request body is not valid JSON").
		WithDetails(err.Error())
}

func (h *handlers) userContext(c *gin.Context) string {
	userID := c.Param("userId")
	c.Request = c.Request.WithContext(sentry.WithUserID(c.Request.Context(), userID))
	return userID
}

func (h *handlers) getPreferences(c *gin.Context) {
	userID := h.userContext(c)
	prefs, err := h.preferences.GetPreferences(c.Request.Context(), userID)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *handlers) updatePreferences(c *gin.Context) {
	userID := h.userContext(c)
	var update matching.PreferencesUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		middleware.Abort(c, malformed(err))
		return
	}
	prefs, err := h.preferences.UpdatePreferences(c.Request.Context(), userID, update)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *handlers) updateDatingPreferences(c *gin.Context) {
	userID := h.userContext(c)
	var update matching.DatingPreferencesUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		middleware.Abort(c, malformed(err))
		return
	}
	prefs, err := h.preferences.UpdateDatingPreferences(c.Request.Context(), userID, update)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

func (h *handlers) joinQueue(c *gin.Context) {
	userID := h.userContext(c)
	var req JoinQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, malformed(err))
		return
	}
	entry, err := h.queue.JoinQueue(c.Request.Context(), userID, req.Intent)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (h *handlers) leaveQueue(c *gin.Context) {
	userID := h.userContext(c)
	left, err := h.queue.LeaveQueue(c.Request.Context(), userID)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"left": left})
}

func (h *handlers) markMatched(c *gin.Context) {
	userID := h.userContext(c)
	matched, err := h.queue.MarkMatched(c.Request.Context(), userID)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matched": matched})
}

func (h *handlers) findMatches(c *gin.Context) {
	var req FindMatchesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Abort(c, malformed(err))
		return
	}
	ctx := sentry.WithUserID(c.Request.Context(), req.UserID)
	result, err := h.matches.FindMatches(ctx, req.UserID, req.Intent, req.MaxMatches)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *handlers) matchHistory(c *gin.Context) {
	userID := h.userContext(c)
	limit, err := queryInt(c, "limit")
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		middleware.Abort(c, err)
		return
	}

	history, err := h.matches.GetMatchHistory(c.Request.Context(), userID, limit, offset)
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (h *handlers) matchStats(c *gin.Context) {
	stats, err := h.matches.GetMatchingStats(c.Request.Context())
	if err != nil {
		middleware.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// queryInt reads an optional integer query parameter; absent means 0.
func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidationError(name, apperrors.ReasonInvalidPagination, name+" must be an integer")
	}
	return v, nil
}
