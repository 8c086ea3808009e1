package thread

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spanishfactoria/textocorrector/internal/assistant"
	"github.com/spanishfactoria/textocorrector/internal/model"
	"github.com/spanishfactoria/textocorrector/internal/store"
)

type fakeRemote struct {
	threads map[string][]assistant.Message
	counter int
	seq     int64
}

func newFakeRemote() *fakeRemote {
	return &fakeRemote{threads: map[string][]assistant.Message{}}
}

func (f *fakeRemote) CreateThread(context.Context) (*assistant.Thread, error) {
	f.counter++
	id := fmt.Sprintf("thread_%d", f.counter)
	f.threads[id] = []assistant.Message{}
	return &assistant.Thread{ID: id}, nil
}

func (f *fakeRemote) GetThread(_ context.Context, id string) (*assistant.Thread, error) {
	if _, ok := f.threads[id]; !ok {
		return nil, fmt.Errorf("thread %s not found", id)
	}
	return &assistant.Thread{ID: id}, nil
}

func (f *fakeRemote) AddMessage(_ context.Context, threadID, role, content string) (*assistant.Message, error) {
	if _, ok := f.threads[threadID]; !ok {
		return nil, fmt.Errorf("thread %s not found", threadID)
	}
	f.seq++
	msg := assistant.Message{
		ID:        fmt.Sprintf("msg_%d", f.seq),
		Role:      role,
		Text:      content,
		CreatedAt: f.seq,
	}
	f.threads[threadID] = append(f.threads[threadID], msg)
	return &msg, nil
}

func (f *fakeRemote) ListMessages(_ context.Context, threadID string, limit int) ([]assistant.Message, error) {
	stored, ok := f.threads[threadID]
	if !ok {
		return nil, fmt.Errorf("thread %s not found", threadID)
	}
	// newest first
	out := make([]assistant.Message, 0, len(stored))
	for i := len(stored) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, stored[i])
	}
	return out, nil
}

func (f *fakeRemote) CreateRun(context.Context, string, string, string) (*assistant.Run, error) {
	return nil, fmt.Errorf("not supported")
}

func (f *fakeRemote) GetRun(context.Context, string, string) (*assistant.Run, error) {
	return nil, fmt.Errorf("not supported")
}

func (f *fakeRemote) ListRuns(context.Context, string, int) ([]assistant.Run, error) {
	return nil, nil
}

func (f *fakeRemote) SubmitToolOutputs(context.Context, string, string, []assistant.ToolOutput) (*assistant.Run, error) {
	return nil, fmt.Errorf("not supported")
}

func (f *fakeRemote) CancelRun(context.Context, string, string) (*assistant.Run, error) {
	return nil, fmt.Errorf("not supported")
}

func (f *fakeRemote) CreateAssistant(context.Context, assistant.Spec) (string, error) {
	return "asst_1", nil
}

func newTestManager(t *testing.T, remote *fakeRemote, cfg model.ThreadConfig) (*Manager, Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	st := store.NewRedisStore(rdb, time.Hour)
	return NewManager(remote, st, cfg), st
}

func TestResolveCreatesThreadAndSavesPointer(t *testing.T) {
	remote := newFakeRemote()
	m, st := newTestManager(t, remote, model.ThreadConfig{})
	session := &Session{OwnerID: "user_1"}

	threadID, err := m.Resolve(context.Background(), session)

	require.NoError(t, err)
	assert.Equal(t, "thread_1", threadID)
	assert.Equal(t, "thread_1", session.ThreadID)

	record, err := st.ThreadForOwner(context.Background(), "user_1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "thread_1", record.ThreadID)
}

func TestResolveReusesValidSessionThread(t *testing.T) {
	remote := newFakeRemote()
	m, _ := newTestManager(t, remote, model.ThreadConfig{})

	first, err := remote.CreateThread(context.Background())
	require.NoError(t, err)
	session := &Session{OwnerID: "user_1", ThreadID: first.ID}

	threadID, err := m.Resolve(context.Background(), session)

	require.NoError(t, err)
	assert.Equal(t, first.ID, threadID)
	assert.Equal(t, 1, remote.counter, "no new thread was created")
}

func TestResolveAdoptsStoredThread(t *testing.T) {
	remote := newFakeRemote()
	m, st := newTestManager(t, remote, model.ThreadConfig{})

	existing, err := remote.CreateThread(context.Background())
	require.NoError(t, err)
	require.NoError(t, st.SaveThreadForOwner(context.Background(), "user_1", store.ThreadRecord{
		ThreadID:  existing.ID,
		CreatedAt: time.Now(),
	}))

	session := &Session{OwnerID: "user_1"}
	threadID, err := m.Resolve(context.Background(), session)

	require.NoError(t, err)
	assert.Equal(t, existing.ID, threadID)
	assert.Equal(t, existing.ID, session.ThreadID)
}

func TestResolveDiscardsDeadStoredThread(t *testing.T) {
	remote := newFakeRemote()
	m, st := newTestManager(t, remote, model.ThreadConfig{})

	require.NoError(t, st.SaveThreadForOwner(context.Background(), "user_1", store.ThreadRecord{
		ThreadID:  "thread_gone",
		CreatedAt: time.Now(),
	}))

	session := &Session{OwnerID: "user_1"}
	threadID, err := m.Resolve(context.Background(), session)

	require.NoError(t, err)
	assert.NotEqual(t, "thread_gone", threadID)

	record, err := st.ThreadForOwner(context.Background(), "user_1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, threadID, record.ThreadID, "pointer repointed at the fresh thread")
}

func TestResolveDiscardsDeadSessionThread(t *testing.T) {
	remote := newFakeRemote()
	m, _ := newTestManager(t, remote, model.ThreadConfig{})
	session := &Session{OwnerID: "user_1", ThreadID: "thread_gone"}

	threadID, err := m.Resolve(context.Background(), session)

	require.NoError(t, err)
	assert.NotEqual(t, "thread_gone", threadID)
}

func TestCompactionReplaysRecentExchanges(t *testing.T) {
	remote := newFakeRemote()
	m, st := newTestManager(t, remote, model.ThreadConfig{KeepExchanges: 2})
	ctx := context.Background()

	old, err := remote.CreateThread(ctx)
	require.NoError(t, err)
	for i := 1; i <= 4; i++ {
		_, err = remote.AddMessage(ctx, old.ID, "user", fmt.Sprintf("texto %d", i))
		require.NoError(t, err)
		_, err = remote.AddMessage(ctx, old.ID, "assistant", fmt.Sprintf("correccion %d", i))
		require.NoError(t, err)
	}
	require.NoError(t, st.SaveThreadForOwner(ctx, "user_1", store.ThreadRecord{
		ThreadID:     old.ID,
		CreatedAt:    time.Now(),
		MessageCount: 20,
	}))

	session := &Session{OwnerID: "user_1"}
	threadID, err := m.Resolve(ctx, session)

	require.NoError(t, err)
	require.NotEqual(t, old.ID, threadID)

	replayed := remote.threads[threadID]
	require.Len(t, replayed, 4, "two exchanges of two messages each")
	assert.Equal(t, "user", replayed[0].Role)
	assert.Equal(t, "texto 3", replayed[0].Text)
	assert.Equal(t, "correccion 3", replayed[1].Text)
	assert.Equal(t, "texto 4", replayed[2].Text)
	assert.Equal(t, "correccion 4", replayed[3].Text)

	record, err := st.ThreadForOwner(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, threadID, record.ThreadID)
	assert.Equal(t, 4, record.MessageCount)
}

func TestResolveCompactsWornSessionThread(t *testing.T) {
	remote := newFakeRemote()
	m, st := newTestManager(t, remote, model.ThreadConfig{MaxMessages: 4, KeepExchanges: 1})
	ctx := context.Background()

	old, err := remote.CreateThread(ctx)
	require.NoError(t, err)
	for i := 1; i <= 3; i++ {
		_, err = remote.AddMessage(ctx, old.ID, "user", fmt.Sprintf("texto %d", i))
		require.NoError(t, err)
		_, err = remote.AddMessage(ctx, old.ID, "assistant", fmt.Sprintf("correccion %d", i))
		require.NoError(t, err)
	}
	require.NoError(t, st.SaveThreadForOwner(ctx, "user_1", store.ThreadRecord{
		ThreadID:     old.ID,
		CreatedAt:    time.Now(),
		MessageCount: 20,
	}))

	// The session already holds the worn thread, as it does on every request
	// after the first one.
	session := &Session{OwnerID: "user_1", ThreadID: old.ID}
	threadID, err := m.Resolve(ctx, session)

	require.NoError(t, err)
	require.NotEqual(t, old.ID, threadID, "oversized thread replaced despite the session binding")
	assert.Equal(t, threadID, session.ThreadID)

	replayed := remote.threads[threadID]
	require.Len(t, replayed, 2)
	assert.Equal(t, "texto 3", replayed[0].Text)
	assert.Equal(t, "correccion 3", replayed[1].Text)

	record, err := st.ThreadForOwner(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, threadID, record.ThreadID)
	assert.Equal(t, 2, record.MessageCount)
}

func TestShouldCompactCriteria(t *testing.T) {
	m, _ := newTestManager(t, newFakeRemote(), model.ThreadConfig{})

	fresh := store.ThreadRecord{ThreadID: "t", CreatedAt: time.Now(), MessageCount: 3}
	assert.False(t, m.shouldCompact(fresh))

	long := store.ThreadRecord{ThreadID: "t", CreatedAt: time.Now(), MessageCount: 16}
	assert.True(t, m.shouldCompact(long), "message count over limit")

	stale := store.ThreadRecord{ThreadID: "t", CreatedAt: time.Now().Add(-25 * time.Hour), MessageCount: 1}
	assert.True(t, m.shouldCompact(stale), "older than the age limit")

	// 17 messages at 3KB estimated each exceeds the 50KB ceiling even
	// before the count limit would at 16; use a smaller size limit.
	small, _ := newTestManager(t, newFakeRemote(), model.ThreadConfig{MaxMessages: 100, MaxEstimatedSizeKB: 20})
	heavy := store.ThreadRecord{ThreadID: "t", CreatedAt: time.Now(), MessageCount: 7}
	assert.True(t, small.shouldCompact(heavy), "estimated size over limit")
}

func TestResetClearsSessionAndPointer(t *testing.T) {
	remote := newFakeRemote()
	m, st := newTestManager(t, remote, model.ThreadConfig{})
	ctx := context.Background()

	session := &Session{OwnerID: "user_1"}
	_, err := m.Resolve(ctx, session)
	require.NoError(t, err)
	require.NotEmpty(t, session.ThreadID)

	require.NoError(t, m.Reset(ctx, session))

	assert.Empty(t, session.ThreadID)
	record, err := st.ThreadForOwner(ctx, "user_1")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestNoteExchangeIncrementsCounts(t *testing.T) {
	remote := newFakeRemote()
	m, st := newTestManager(t, remote, model.ThreadConfig{})
	ctx := context.Background()

	session := &Session{OwnerID: "user_1"}
	_, err := m.Resolve(ctx, session)
	require.NoError(t, err)

	m.NoteExchange(ctx, session)
	m.NoteExchange(ctx, session)

	assert.Equal(t, 2, session.Requests)
	record, err := st.ThreadForOwner(ctx, "user_1")
	require.NoError(t, err)
	assert.Equal(t, 4, record.MessageCount)
}

func TestNeedsProfileRefresh(t *testing.T) {
	s := &Session{}
	assert.False(t, s.NeedsProfileRefresh(10), "first request never refreshes")

	s.Requests = 10
	assert.True(t, s.NeedsProfileRefresh(10))

	s.Requests = 11
	assert.False(t, s.NeedsProfileRefresh(10))

	assert.False(t, s.NeedsProfileRefresh(0), "disabled cadence")
}
