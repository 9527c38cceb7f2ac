package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"labourlaw-rag/internal/blob"
	"labourlaw-rag/internal/helper"
)

const (
	areaActive  = "active"
	areaDeleted = "deleted"
)

// BlobStore keeps sessions as JSON documents in blob storage:
//
//	sessions/<user>/<area>/sessions.json
//	chat_history/<user>/<area>/<session>.json
type BlobStore struct {
	storage blob.Storage

	// read-modify-write of the per-user documents is serialised
	mu sync.Mutex
}

func NewBlobStore(storage blob.Storage) *BlobStore {
	return &BlobStore{storage: storage}
}

func sessionsKey(user, area string) string {
	return fmt.Sprintf("sessions/%s/%s/sessions.json", user, area)
}

func historyKey(user, area, sessionID string) string {
	return fmt.Sprintf("chat_history/%s/%s/%s.json", user, area, sessionID)
}

func checkIDs(ids ...string) error {
	for _, id := range ids {
		if id == "" || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
			return fmt.Errorf("invalid identifier %q", id)
		}
	}
	return nil
}

// readJSON decodes the document at key into v. It reports false when the
// document does not exist.
func (s *BlobStore) readJSON(ctx context.Context, key string, v any) (bool, error) {
	rc, err := s.storage.Download(ctx, key)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	defer rc.Close()
	if err := json.NewDecoder(rc).Decode(v); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

func (s *BlobStore) writeJSON(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return s.storage.Upload(ctx, key, bytes.NewReader(data))
}

func (s *BlobStore) metas(ctx context.Context, user, area string) ([]Meta, error) {
	var metas []Meta
	if _, err := s.readJSON(ctx, sessionsKey(user, area), &metas); err != nil {
		return nil, err
	}
	if metas == nil {
		metas = []Meta{}
	}
	return metas, nil
}

func (s *BlobStore) ListSessions(ctx context.Context, user string) ([]Meta, error) {
	if err := checkIDs(user); err != nil {
		return nil, err
	}
	return s.metas(ctx, user, areaActive)
}

func (s *BlobStore) GetHistory(ctx context.Context, user, sessionID string) (*History, error) {
	if err := checkIDs(user, sessionID); err != nil {
		return nil, err
	}
	h := &History{SessionID: sessionID, Messages: []Message{}}
	if _, err := s.readJSON(ctx, historyKey(user, areaActive, sessionID), h); err != nil {
		return nil, err
	}
	return h, nil
}

func (s *BlobStore) AppendMessages(ctx context.Context, user, sessionID, title string, msgs []Message) error {
	if err := checkIDs(user, sessionID); err != nil {
		return err
	}
	if len(msgs) == 0 {
		return nil
	}
	if title == "" {
		title = DefaultTitle
	}
	msgs = Normalize(msgs)
	last := msgs[len(msgs)-1].Timestamp

	s.mu.Lock()
	defer s.mu.Unlock()

	metas, err := s.metas(ctx, user, areaActive)
	if err != nil {
		return err
	}
	found := false
	for i := range metas {
		if metas[i].SessionID == sessionID {
			metas[i].LastUpdated = last
			found = true
			break
		}
	}
	if !found {
		metas = append(metas, Meta{
			SessionID:   sessionID,
			Title:       title,
			CreatedOn:   last,
			LastUpdated: last,
		})
	}
	if err := s.writeJSON(ctx, sessionsKey(user, areaActive), metas); err != nil {
		return err
	}

	h := &History{SessionID: sessionID}
	if _, err := s.readJSON(ctx, historyKey(user, areaActive, sessionID), h); err != nil {
		return err
	}
	h.Messages = append(h.Messages, msgs...)
	if err := s.writeJSON(ctx, historyKey(user, areaActive, sessionID), h); err != nil {
		return err
	}

	log.Debug().Str("user", user).Str("session_id", sessionID).Int("messages", len(h.Messages)).Msg("Session updated")
	return nil
}

// update applies fn to the active metadata entry of sessionID.
func (s *BlobStore) update(ctx context.Context, user, sessionID string, fn func(*Meta)) error {
	if err := checkIDs(user, sessionID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	metas, err := s.metas(ctx, user, areaActive)
	if err != nil {
		return err
	}
	for i := range metas {
		if metas[i].SessionID == sessionID {
			fn(&metas[i])
			return s.writeJSON(ctx, sessionsKey(user, areaActive), metas)
		}
	}
	return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
}

func (s *BlobStore) SetStarred(ctx context.Context, user, sessionID string, starred bool) error {
	return s.update(ctx, user, sessionID, func(m *Meta) {
		m.Starred = starred
	})
}

func (s *BlobStore) Rename(ctx context.Context, user, sessionID, title string) error {
	return s.update(ctx, user, sessionID, func(m *Meta) {
		m.Title = title
		m.LastUpdated = helper.Timestamp(helper.Now())
	})
}

func (s *BlobStore) Delete(ctx context.Context, user, sessionID string) error {
	if err := checkIDs(user, sessionID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	metas, err := s.metas(ctx, user, areaActive)
	if err != nil {
		return err
	}
	var (
		target *Meta
		kept   = make([]Meta, 0, len(metas))
	)
	for i := range metas {
		if metas[i].SessionID == sessionID {
			target = &metas[i]
			continue
		}
		kept = append(kept, metas[i])
	}
	if target == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	var h History
	found, err := s.readJSON(ctx, historyKey(user, areaActive, sessionID), &h)
	if err != nil {
		return err
	}
	if found {
		if err := s.writeJSON(ctx, historyKey(user, areaDeleted, sessionID), h); err != nil {
			return err
		}
		if err := s.storage.Delete(ctx, historyKey(user, areaActive, sessionID)); err != nil {
			return err
		}
	}

	deleted, err := s.metas(ctx, user, areaDeleted)
	if err != nil {
		return err
	}
	deleted = append(deleted, *target)
	if err := s.writeJSON(ctx, sessionsKey(user, areaDeleted), deleted); err != nil {
		return err
	}
	return s.writeJSON(ctx, sessionsKey(user, areaActive), kept)
}
