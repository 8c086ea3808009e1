package thread

import (
	"context"
	"time"

	"github.com/spanishfactoria/textocorrector/internal/assistant"
	"github.com/spanishfactoria/textocorrector/internal/model"
	"github.com/spanishfactoria/textocorrector/internal/store"
	logx "github.com/spanishfactoria/textocorrector/pkg/logger"
)

// Store is the thread pointer persistence the Manager depends on.
type Store interface {
	ThreadForOwner(ctx context.Context, ownerID string) (*store.ThreadRecord, error)
	SaveThreadForOwner(ctx context.Context, ownerID string, record store.ThreadRecord) error
	ClearThreadForOwner(ctx context.Context, ownerID string) error
}

// Manager resolves which remote thread a request should use. Candidates are
// validated against the remote service before being trusted, oversized or
// stale threads are compacted into fresh ones, and per-owner pointers are
// kept in the store.
type Manager struct {
	svc   assistant.Service
	store Store
	cfg   model.ThreadConfig
	now   func() time.Time
}

func NewManager(svc assistant.Service, st Store, cfg model.ThreadConfig) *Manager {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 15
	}
	if cfg.MaxAgeHours <= 0 {
		cfg.MaxAgeHours = 24
	}
	if cfg.MaxEstimatedSizeKB <= 0 {
		cfg.MaxEstimatedSizeKB = 50
	}
	if cfg.MessageSizeKB <= 0 {
		cfg.MessageSizeKB = 3
	}
	if cfg.KeepExchanges <= 0 {
		cfg.KeepExchanges = 3
	}
	return &Manager{svc: svc, store: st, cfg: cfg, now: time.Now}
}

// Resolve returns the thread id the request should use, creating one when no
// stored candidate survives validation. Session state wins over the store;
// both are validated remotely before reuse, and the wear criteria apply
// wherever the id came from.
func (m *Manager) Resolve(ctx context.Context, session *Session) (string, error) {
	if session.ThreadID != "" {
		if m.validate(ctx, session.ThreadID) {
			if record := m.recordFor(ctx, session); record != nil && m.shouldCompact(*record) {
				return m.compact(ctx, session, *record)
			}
			return session.ThreadID, nil
		}
		logx.Warn().Str("thread_id", session.ThreadID).Msg("session thread no longer valid, discarding")
		session.ThreadID = ""
	}

	if session.OwnerID != "" {
		record, err := m.store.ThreadForOwner(ctx, session.OwnerID)
		if err != nil {
			logx.Warn().Err(err).Str("ownerID", session.OwnerID).Msg("thread pointer lookup failed")
		} else if record != nil {
			if m.validate(ctx, record.ThreadID) {
				if m.shouldCompact(*record) {
					return m.compact(ctx, session, *record)
				}
				session.ThreadID = record.ThreadID
				return record.ThreadID, nil
			}
			logx.Warn().Str("thread_id", record.ThreadID).Msg("stored thread no longer valid, discarding")
			_ = m.store.ClearThreadForOwner(ctx, session.OwnerID)
		}
	}

	return m.create(ctx, session)
}

// NoteExchange records that one request added an exchange to the thread.
func (m *Manager) NoteExchange(ctx context.Context, session *Session) {
	session.Requests++
	if session.OwnerID == "" || session.ThreadID == "" {
		return
	}
	record, err := m.store.ThreadForOwner(ctx, session.OwnerID)
	if err != nil || record == nil || record.ThreadID != session.ThreadID {
		record = &store.ThreadRecord{ThreadID: session.ThreadID, CreatedAt: m.now()}
	}
	record.MessageCount += 2
	if err := m.store.SaveThreadForOwner(ctx, session.OwnerID, *record); err != nil {
		logx.Warn().Err(err).Str("ownerID", session.OwnerID).Msg("failed to update thread record")
	}
}

// Reset drops the owner's thread pointer and session binding, forcing the
// next request onto a fresh thread.
func (m *Manager) Reset(ctx context.Context, session *Session) error {
	session.ThreadID = ""
	if session.OwnerID == "" {
		return nil
	}
	logx.Info().Str("ownerID", session.OwnerID).Msg("resetting conversation thread")
	return m.store.ClearThreadForOwner(ctx, session.OwnerID)
}

// recordFor returns the owner's stored record when it describes the thread
// the session is currently bound to.
func (m *Manager) recordFor(ctx context.Context, session *Session) *store.ThreadRecord {
	if session.OwnerID == "" {
		return nil
	}
	record, err := m.store.ThreadForOwner(ctx, session.OwnerID)
	if err != nil || record == nil || record.ThreadID != session.ThreadID {
		return nil
	}
	return record
}

func (m *Manager) validate(ctx context.Context, threadID string) bool {
	thread, err := m.svc.GetThread(ctx, threadID)
	return err == nil && thread != nil && thread.ID == threadID
}

// shouldCompact flags threads that grew too long, too old or too heavy.
// Size is estimated from the message count, not measured.
func (m *Manager) shouldCompact(record store.ThreadRecord) bool {
	if record.MessageCount > m.cfg.MaxMessages {
		return true
	}
	if m.now().Sub(record.CreatedAt) > time.Duration(m.cfg.MaxAgeHours)*time.Hour {
		return true
	}
	return record.MessageCount*m.cfg.MessageSizeKB > m.cfg.MaxEstimatedSizeKB
}

type exchange struct {
	user      string
	assistant string
}

// compact replays the most recent exchanges of a worn-out thread into a new
// one and repoints the owner at it. The old thread is left behind, remote
// threads cannot be truncated in place.
func (m *Manager) compact(ctx context.Context, session *Session, record store.ThreadRecord) (string, error) {
	logx.Info().
		Str("thread_id", record.ThreadID).
		Int("message_count", record.MessageCount).
		Msg("compacting thread")

	exchanges, err := m.recentExchanges(ctx, record.ThreadID)
	if err != nil {
		logx.Warn().Err(err).Msg("could not read old thread, starting clean")
		exchanges = nil
	}

	fresh, err := m.svc.CreateThread(ctx)
	if err != nil {
		return "", err
	}
	replayed := 0
	for _, ex := range exchanges {
		if _, err := m.svc.AddMessage(ctx, fresh.ID, "user", ex.user); err != nil {
			logx.Warn().Err(err).Msg("replay of user message failed")
			break
		}
		if _, err := m.svc.AddMessage(ctx, fresh.ID, "assistant", ex.assistant); err != nil {
			logx.Warn().Err(err).Msg("replay of assistant message failed")
			break
		}
		replayed++
	}
	logx.Info().
		Str("new_thread_id", fresh.ID).
		Int("exchanges_replayed", replayed).
		Msg("thread compacted")

	session.ThreadID = fresh.ID
	newRecord := store.ThreadRecord{
		ThreadID:     fresh.ID,
		CreatedAt:    m.now(),
		MessageCount: replayed * 2,
	}
	if session.OwnerID != "" {
		if err := m.store.SaveThreadForOwner(ctx, session.OwnerID, newRecord); err != nil {
			logx.Warn().Err(err).Msg("failed to repoint owner at compacted thread")
		}
	}
	return fresh.ID, nil
}

// recentExchanges pairs the thread transcript into (user, assistant)
// exchanges and keeps the most recent ones.
func (m *Manager) recentExchanges(ctx context.Context, threadID string) ([]exchange, error) {
	limit := m.cfg.MaxMessages * 2
	messages, err := m.svc.ListMessages(ctx, threadID, limit)
	if err != nil {
		return nil, err
	}

	// The transcript arrives newest first, pair it oldest first.
	var exchanges []exchange
	var pendingUser *assistant.Message
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		switch msg.Role {
		case "user":
			pendingUser = &messages[i]
		case "assistant":
			if pendingUser != nil {
				exchanges = append(exchanges, exchange{user: pendingUser.Text, assistant: msg.Text})
				pendingUser = nil
			}
		}
	}

	if len(exchanges) > m.cfg.KeepExchanges {
		exchanges = exchanges[len(exchanges)-m.cfg.KeepExchanges:]
	}
	return exchanges, nil
}

func (m *Manager) create(ctx context.Context, session *Session) (string, error) {
	fresh, err := m.svc.CreateThread(ctx)
	if err != nil {
		return "", err
	}
	logx.Info().Str("thread_id", fresh.ID).Str("ownerID", session.OwnerID).Msg("new thread created")

	session.ThreadID = fresh.ID
	if session.OwnerID != "" {
		record := store.ThreadRecord{ThreadID: fresh.ID, CreatedAt: m.now()}
		if err := m.store.SaveThreadForOwner(ctx, session.OwnerID, record); err != nil {
			logx.Warn().Err(err).Msg("failed to persist new thread pointer")
		}
	}
	return fresh.ID, nil
}
