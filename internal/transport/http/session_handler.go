package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"quizroom-service/internal/app"
	"quizroom-service/internal/auth"
	"quizroom-service/internal/domain"
)

// SessionHandler serves the session REST resources.
type SessionHandler struct {
	coord  *app.Coordinator
	logger *slog.Logger
}

func NewSessionHandler(coord *app.Coordinator, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{coord: coord, logger: logger}
}

type createSessionRequest struct {
	QuizID string `json:"quiz_id" binding:"required"`
}

func (h *SessionHandler) Create(c *gin.Context) {
	identity, ok := auth.FromContext(c)
	if !ok {
		writeError(c.Writer, http.StatusUnauthorized, "unauthorized", "no identity")
		return
	}
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload", "message": err.Error()})
		return
	}
	snap, err := h.coord.CreateSession(c.Request.Context(), req.QuizID, identity.UserID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, snap)
}

func (h *SessionHandler) Get(c *gin.Context) {
	snap, err := h.coord.Snapshot(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *SessionHandler) ByQuiz(c *gin.Context) {
	snap, err := h.coord.FindByQuizID(c.Request.Context(), c.Param("quizId"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *SessionHandler) ByCode(c *gin.Context) {
	snap, err := h.coord.FindByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Cancel ends a session on behalf of its creator.
func (h *SessionHandler) Cancel(c *gin.Context) {
	identity, _ := auth.FromContext(c)
	if err := h.coord.Cancel(c.Request.Context(), c.Param("id"), identity.UserID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) Results(c *gin.Context) {
	results, err := h.coord.Results(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}

// History serves the completed sessions of a quiz, paged by limit and offset.
func (h *SessionHandler) History(c *gin.Context) {
	limit, err := queryInt(c, "limit")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_pagination", "message": err.Error()})
		return
	}
	offset, err := queryInt(c, "offset")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_pagination", "message": err.Error()})
		return
	}
	page, err := h.coord.History(c.Request.Context(), c.Param("quizId"), limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}

func (h *SessionHandler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("session request failed", "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{"error": domain.ErrorCode(err), "message": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrNoActiveSession),
		errors.Is(err, domain.ErrQuizNotFound),
		errors.Is(err, domain.ErrResultsNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrNotCreator):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrSessionFinished),
		errors.Is(err, domain.ErrAlreadyStarted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidQuiz):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrCodeSpaceExhausted),
		errors.Is(err, domain.ErrRoomClosed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
