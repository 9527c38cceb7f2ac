package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"labourlaw-rag/internal/helper"
	"labourlaw-rag/internal/jurisdiction"
	"labourlaw-rag/internal/models"
	"labourlaw-rag/internal/rag"
	"labourlaw-rag/internal/render"
	"labourlaw-rag/internal/session"
)

type AuthRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

type QueryRequest struct {
	UserID          string `json:"user_id" binding:"required"`
	SessionID       string `json:"session_id" binding:"required"`
	SessionTitle    string `json:"session_title"`
	MessageID       string `json:"message_id"`
	StateID         string `json:"state_id"`
	StateName       string `json:"state_name" binding:"required"`
	PerspectiveID   string `json:"perspective_id"`
	PerspectiveName string `json:"perspective_name"`
	Query           string `json:"query" binding:"required"`
	Timestamp       string `json:"timestamp"`
	RenderHTML      bool   `json:"render_html"`
}

type QueryResponse struct {
	Response     string           `json:"response"`
	RunID        string           `json:"run_id"`
	StateID      string           `json:"state_id,omitempty"`
	StateName    string           `json:"state_name"`
	Outcome      models.Outcome   `json:"outcome"`
	Sources      []models.Passage `json:"sources"`
	ResponseHTML string           `json:"response_html,omitempty"`
}

type StarSessionRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	SessionID string `json:"session_id" binding:"required"`
	Starred   bool   `json:"starred"`
}

type DeleteSessionRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	SessionID string `json:"session_id" binding:"required"`
}

type RenameSessionRequest struct {
	UserID    string `json:"user_id" binding:"required"`
	SessionID string `json:"session_id" binding:"required"`
	NewTitle  string `json:"new_title" binding:"required"`
}

func sessionError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"status": "error", "message": err.Error()})
}

func sessionStatus(err error) int {
	if errors.Is(err, session.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Authenticate accepts every user; there is no account store yet.
func (s *Server) Authenticate(c *gin.Context) {
	var req AuthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sessionError(c, http.StatusBadRequest, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"authenticated": true, "first_time": false})
}

func queryError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"response": models.QueryErrorMessage, "error": err.Error()})
}

// Query answers one question in a session and appends both turns to the
// session history.
func (s *Server) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		queryError(c, http.StatusBadRequest, err)
		return
	}
	user := session.UserID(req.UserID)

	ctx, cancel := c.Request.Context(), context.CancelFunc(func() {})
	if s.cfg.RequestTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
	}
	defer cancel()

	history, err := s.sessions.GetHistory(ctx, user, req.SessionID)
	if err != nil {
		log.Error().Err(err).Str("user", user).Str("session_id", req.SessionID).Msg("Failed to load session history")
		queryError(c, http.StatusInternalServerError, err)
		return
	}

	ans, err := s.pipeline.Answer(ctx, models.Query{
		Text:         req.Query,
		Jurisdiction: req.StateName,
		Perspective:  req.PerspectiveName,
		History:      history.Turns(),
	})
	if err != nil {
		log.Error().Err(err).Str("state_name", req.StateName).Msg("Query failed")
		queryError(c, queryStatus(err), err)
		return
	}

	runID, err := helper.GenerateUUID()
	if err != nil {
		queryError(c, http.StatusInternalServerError, err)
		return
	}
	now := helper.Timestamp(helper.Now())
	userTS := req.Timestamp
	if userTS == "" {
		userTS = now
	}
	msgs := []session.Message{
		{
			Role:            models.RoleUser,
			MessageID:       req.MessageID,
			StateID:         req.StateID,
			StateName:       req.StateName,
			PerspectiveID:   req.PerspectiveID,
			PerspectiveName: req.PerspectiveName,
			Message:         req.Query,
			Timestamp:       userTS,
		},
		{
			Role:            models.RoleBot,
			MessageID:       runID,
			StateID:         req.StateID,
			StateName:       req.StateName,
			PerspectiveID:   req.PerspectiveID,
			PerspectiveName: req.PerspectiveName,
			Message:         ans.Text,
			Timestamp:       now,
		},
	}
	// the answer is returned even when the turns cannot be stored
	if err := s.sessions.AppendMessages(c.Request.Context(), user, req.SessionID, req.SessionTitle, msgs); err != nil {
		log.Error().Err(err).Str("user", user).Str("session_id", req.SessionID).Msg("Failed to store session messages")
	}

	resp := QueryResponse{
		Response:  ans.Text,
		RunID:     runID,
		StateID:   req.StateID,
		StateName: req.StateName,
		Outcome:   ans.Outcome,
		Sources:   ans.Sources,
	}
	if resp.Sources == nil {
		resp.Sources = []models.Passage{}
	}
	if req.RenderHTML {
		html, err := render.MarkdownToHTML(ans.Text)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to render answer as HTML")
		} else {
			resp.ResponseHTML = html
		}
	}
	c.JSON(http.StatusOK, resp)
}

func queryStatus(err error) int {
	switch {
	case errors.Is(err, jurisdiction.ErrUnknown), errors.Is(err, rag.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) ListSessions(c *gin.Context) {
	user := session.UserID(c.Query("user_id"))
	if user == "" {
		sessionError(c, http.StatusBadRequest, errors.New("user_id is required"))
		return
	}
	metas, err := s.sessions.ListSessions(c.Request.Context(), user)
	if err != nil {
		sessionError(c, sessionStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "sessions": metas})
}

func (s *Server) SessionHistory(c *gin.Context) {
	user := session.UserID(c.Query("user_id"))
	sessionID := c.Query("session_id")
	if user == "" || sessionID == "" {
		sessionError(c, http.StatusBadRequest, errors.New("user_id and session_id are required"))
		return
	}
	h, err := s.sessions.GetHistory(c.Request.Context(), user, sessionID)
	if err != nil {
		sessionError(c, sessionStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "chat_history": h})
}

func (s *Server) UpdateStarStatus(c *gin.Context) {
	var req StarSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sessionError(c, http.StatusBadRequest, err)
		return
	}
	if err := s.sessions.SetStarred(c.Request.Context(), session.UserID(req.UserID), req.SessionID, req.Starred); err != nil {
		sessionError(c, sessionStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "starred": req.Starred})
}

func (s *Server) DeleteSession(c *gin.Context) {
	var req DeleteSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sessionError(c, http.StatusBadRequest, err)
		return
	}
	if err := s.sessions.Delete(c.Request.Context(), session.UserID(req.UserID), req.SessionID); err != nil {
		sessionError(c, sessionStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted", "session_id": req.SessionID})
}

func (s *Server) RenameSession(c *gin.Context) {
	var req RenameSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sessionError(c, http.StatusBadRequest, err)
		return
	}
	if err := s.sessions.Rename(c.Request.Context(), session.UserID(req.UserID), req.SessionID, req.NewTitle); err != nil {
		sessionError(c, sessionStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Session renamed successfully",
		"result":  gin.H{"session_id": req.SessionID, "new_title": req.NewTitle},
	})
}
