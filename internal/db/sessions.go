package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"labourlaw-rag/internal/helper"
	"labourlaw-rag/internal/models"
	"labourlaw-rag/internal/session"
)

// SessionStore is the postgres implementation of session.Store. Deleted
// sessions and their messages are kept with deleted_at set.
type SessionStore struct {
	db *bun.DB
}

var _ session.Store = (*SessionStore)(nil)

func NewSessionStore(db *bun.DB) *SessionStore {
	return &SessionStore{db: db}
}

func toMeta(row ChatSession) session.Meta {
	return session.Meta{
		SessionID:   row.SessionID,
		Title:       row.Title,
		Starred:     row.Starred,
		CreatedOn:   row.CreatedOn,
		LastUpdated: row.LastUpdated,
	}
}

func toMessage(row ChatMessage) session.Message {
	return session.Message{
		Role:            models.Role(row.Role),
		MessageID:       row.MessageID,
		StateID:         row.StateID,
		StateName:       row.StateName,
		PerspectiveID:   row.PerspectiveID,
		PerspectiveName: row.PerspectiveName,
		Message:         row.Message,
		Timestamp:       row.Timestamp,
		FeedbackStatus:  row.FeedbackStatus,
	}
}

func fromMessages(user, sessionID string, msgs []session.Message) []ChatMessage {
	rows := make([]ChatMessage, 0, len(msgs))
	for _, m := range session.Normalize(msgs) {
		rows = append(rows, ChatMessage{
			UserID:          user,
			SessionID:       sessionID,
			Role:            string(m.Role),
			MessageID:       m.MessageID,
			StateID:         m.StateID,
			StateName:       m.StateName,
			PerspectiveID:   m.PerspectiveID,
			PerspectiveName: m.PerspectiveName,
			Message:         m.Message,
			Timestamp:       m.Timestamp,
			FeedbackStatus:  m.FeedbackStatus,
		})
	}
	return rows
}

func (s *SessionStore) ListSessions(ctx context.Context, user string) ([]session.Meta, error) {
	var rows []ChatSession
	err := s.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", user).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	metas := make([]session.Meta, 0, len(rows))
	for _, row := range rows {
		metas = append(metas, toMeta(row))
	}
	return metas, nil
}

func (s *SessionStore) GetHistory(ctx context.Context, user, sessionID string) (*session.History, error) {
	var rows []ChatMessage
	err := s.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", user).
		Where("session_id = ?", sessionID).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	h := &session.History{SessionID: sessionID, Messages: make([]session.Message, 0, len(rows))}
	for _, row := range rows {
		h.Messages = append(h.Messages, toMessage(row))
	}
	return h, nil
}

func (s *SessionStore) AppendMessages(ctx context.Context, user, sessionID, title string, msgs []session.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if title == "" {
		title = session.DefaultTitle
	}
	last := msgs[len(msgs)-1].Timestamp

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var existing ChatSession
		err := tx.NewSelect().
			Model(&existing).
			Where("user_id = ?", user).
			Where("session_id = ?", sessionID).
			Limit(1).
			Scan(ctx)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			row := &ChatSession{
				UserID:      user,
				SessionID:   sessionID,
				Title:       title,
				CreatedOn:   last,
				LastUpdated: last,
			}
			if _, err := tx.NewInsert().Model(row).Exec(ctx); err != nil {
				return fmt.Errorf("failed to create session: %w", err)
			}
		case err != nil:
			return fmt.Errorf("failed to load session: %w", err)
		default:
			_, err := tx.NewUpdate().
				Model(&existing).
				Set("last_updated = ?", last).
				WherePK().
				Exec(ctx)
			if err != nil {
				return fmt.Errorf("failed to update session: %w", err)
			}
		}

		rows := fromMessages(user, sessionID, msgs)
		if _, err := tx.NewInsert().Model(&rows).Exec(ctx); err != nil {
			return fmt.Errorf("failed to store messages: %w", err)
		}
		return nil
	})
}

func (s *SessionStore) updateMeta(ctx context.Context, user, sessionID string, set func(*bun.UpdateQuery) *bun.UpdateQuery) error {
	q := s.db.NewUpdate().
		Model((*ChatSession)(nil)).
		Where("user_id = ?", user).
		Where("session_id = ?", sessionID).
		Where("deleted_at IS NULL")
	res, err := set(q).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", session.ErrNotFound, sessionID)
	}
	return nil
}

func (s *SessionStore) SetStarred(ctx context.Context, user, sessionID string, starred bool) error {
	return s.updateMeta(ctx, user, sessionID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("starred = ?", starred)
	})
}

func (s *SessionStore) Rename(ctx context.Context, user, sessionID, title string) error {
	now := helper.Timestamp(helper.Now())
	return s.updateMeta(ctx, user, sessionID, func(q *bun.UpdateQuery) *bun.UpdateQuery {
		return q.Set("title = ?", title).Set("last_updated = ?", now)
	})
}

func (s *SessionStore) Delete(ctx context.Context, user, sessionID string) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewDelete().
			Model((*ChatSession)(nil)).
			Where("user_id = ?", user).
			Where("session_id = ?", sessionID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete session: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %s", session.ErrNotFound, sessionID)
		}
		_, err = tx.NewDelete().
			Model((*ChatMessage)(nil)).
			Where("user_id = ?", user).
			Where("session_id = ?", sessionID).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to delete messages: %w", err)
		}
		return nil
	})
}
