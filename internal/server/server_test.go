package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labourlaw-rag/internal/blob"
	"labourlaw-rag/internal/config"
	"labourlaw-rag/internal/jurisdiction"
	"labourlaw-rag/internal/models"
	"labourlaw-rag/internal/session"
)

type fakeAnswerer struct {
	answer *models.Answer
	err    error
	got    []models.Query
}

func (f *fakeAnswerer) Answer(ctx context.Context, q models.Query) (*models.Answer, error) {
	f.got = append(f.got, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.answer, nil
}

func newTestServer(t *testing.T, answerer Answerer) (*Server, session.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	storage, err := blob.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	store := session.NewBlobStore(storage)
	return New(answerer, store, &config.ServerConfig{RequestTimeout: time.Minute}), store
}

func do(t *testing.T, s *Server, method, target string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return w, out
}

func queryBody(query string) QueryRequest {
	return QueryRequest{
		UserID:          "alice@example.com",
		SessionID:       "s1",
		SessionTitle:    "Overtime",
		MessageID:       "m1",
		StateID:         "st-27",
		StateName:       "Maharashtra",
		PerspectiveID:   "p-3",
		PerspectiveName: "Employer",
		Query:           query,
		Timestamp:       "2024-01-01T10:00:00Z",
	}
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, &fakeAnswerer{})
	w, out := do(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", out["status"])
}

func TestAuthenticate(t *testing.T) {
	s, _ := newTestServer(t, &fakeAnswerer{})
	w, out := do(t, s, http.MethodPost, "/authenticate", AuthRequest{UserID: "alice@example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["authenticated"])
	assert.Equal(t, false, out["first_time"])
}

func TestQueryPersistsTurnsAndUsesHistory(t *testing.T) {
	answerer := &fakeAnswerer{answer: &models.Answer{
		Text:    "### 1. The Rule (From Context)\nOvertime is paid at **twice** the rate.",
		Outcome: models.OutcomeAnswered,
		Sources: []models.Passage{{Source: "Factories_Act.pdf", Page: "12", Jurisdiction: "Maharashtra"}},
	}}
	s, store := newTestServer(t, answerer)

	w, out := do(t, s, http.MethodPost, "/query", queryBody("What is the overtime rate?"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, out["response"], "twice")
	assert.Equal(t, "Maharashtra", out["state_name"])
	assert.Equal(t, "st-27", out["state_id"])
	assert.Equal(t, "answered", out["outcome"])
	assert.NotEmpty(t, out["run_id"])
	assert.Len(t, out["sources"], 1)
	assert.NotContains(t, out, "response_html")

	require.Len(t, answerer.got, 1)
	assert.Equal(t, "Maharashtra", answerer.got[0].Jurisdiction)
	assert.Equal(t, "Employer", answerer.got[0].Perspective)
	assert.Empty(t, answerer.got[0].History)

	h, err := store.GetHistory(context.Background(), "alice", "s1")
	require.NoError(t, err)
	require.Len(t, h.Messages, 2)
	assert.Equal(t, models.RoleUser, h.Messages[0].Role)
	assert.Equal(t, "m1", h.Messages[0].MessageID)
	assert.Equal(t, "2024-01-01T10:00:00Z", h.Messages[0].Timestamp)
	assert.Equal(t, models.RoleBot, h.Messages[1].Role)
	assert.Equal(t, out["run_id"], h.Messages[1].MessageID)
	for _, m := range h.Messages {
		assert.Equal(t, "st-27", m.StateID)
		assert.Equal(t, "p-3", m.PerspectiveID)
	}

	body := queryBody("And on holidays?")
	body.RenderHTML = true
	w, out = do(t, s, http.MethodPost, "/query", body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, out["response_html"], "<strong>twice</strong>")

	require.Len(t, answerer.got, 2)
	assert.Equal(t, []models.Message{
		{Role: models.RoleUser, Text: "What is the overtime rate?"},
		{Role: models.RoleBot, Text: answerer.answer.Text},
	}, answerer.got[1].History)

	metas, err := store.ListSessions(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.Equal(t, "Overtime", metas[0].Title)
}

func TestQueryErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unknown jurisdiction", fmt.Errorf("%w: %q", jurisdiction.ErrUnknown, "Atlantis"), http.StatusBadRequest},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"model failure", errors.New("model unavailable"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, store := newTestServer(t, &fakeAnswerer{err: tt.err})
			w, out := do(t, s, http.MethodPost, "/query", queryBody("What is the overtime rate?"))
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, models.QueryErrorMessage, out["response"])
			assert.NotEmpty(t, out["error"])

			metas, err := store.ListSessions(context.Background(), "alice")
			require.NoError(t, err)
			assert.Empty(t, metas)
		})
	}
}

func TestQueryRequiresFields(t *testing.T) {
	s, _ := newTestServer(t, &fakeAnswerer{})
	w, out := do(t, s, http.MethodPost, "/query", map[string]string{"user_id": "alice"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.QueryErrorMessage, out["response"])
}

func TestSessionRoutes(t *testing.T) {
	s, store := newTestServer(t, &fakeAnswerer{})
	ctx := context.Background()
	require.NoError(t, store.AppendMessages(ctx, "alice", "s1", "Leave", []session.Message{
		{Role: models.RoleUser, MessageID: "m1", Message: "hi", Timestamp: "2024-01-01T10:00:00Z"},
	}))

	w, out := do(t, s, http.MethodGet, "/sessions?user_id=alice@example.com", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "success", out["status"])
	assert.Len(t, out["sessions"], 1)

	w, out = do(t, s, http.MethodGet, "/session_history?user_id=alice&session_id=s1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := out["chat_history"].(map[string]any)
	assert.Len(t, history["messages"], 1)

	w, out = do(t, s, http.MethodPost, "/update_star_status", StarSessionRequest{UserID: "alice", SessionID: "s1", Starred: true})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, out["starred"])

	w, _ = do(t, s, http.MethodPost, "/rename_session", RenameSessionRequest{UserID: "alice", SessionID: "s1", NewTitle: "Annual leave"})
	require.Equal(t, http.StatusOK, w.Code)

	metas, err := store.ListSessions(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, metas, 1)
	assert.True(t, metas[0].Starred)
	assert.Equal(t, "Annual leave", metas[0].Title)

	w, out = do(t, s, http.MethodPost, "/delete_session", DeleteSessionRequest{UserID: "alice", SessionID: "s1"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "deleted", out["status"])

	w, out = do(t, s, http.MethodPost, "/delete_session", DeleteSessionRequest{UserID: "alice", SessionID: "s1"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "error", out["status"])

	w, out = do(t, s, http.MethodGet, "/sessions", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "error", out["status"])
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t, &fakeAnswerer{})

	req := httptest.NewRequest(http.MethodOptions, "/query", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)

	assert.Less(t, w.Code, 300)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestCORSRestrictedOrigins(t *testing.T) {
	gin.SetMode(gin.TestMode)
	storage, err := blob.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	s := New(&fakeAnswerer{}, session.NewBlobStore(storage), &config.ServerConfig{
		RequestTimeout: time.Minute,
		CORSOrigins:    []string{"https://lawbot.example.com"},
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://lawbot.example.com")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://lawbot.example.com", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
