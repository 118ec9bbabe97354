package eventlog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taptalk/commlog/internal/attribution"
	"github.com/taptalk/commlog/internal/observer"
	"github.com/taptalk/commlog/internal/session"
	"github.com/taptalk/commlog/internal/storage"
)

var testTime = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

// collector is a concurrency-safe observer.
type collector struct {
	mu      sync.Mutex
	records []storage.Interaction
}

func (c *collector) Notify(rec storage.Interaction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
}

func (c *collector) all() []storage.Interaction {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]storage.Interaction{}, c.records...)
}

// failingAppender rejects every append.
type failingAppender struct{}

func (failingAppender) Append(ctx context.Context, rec storage.Interaction) (int64, error) {
	return 0, errors.New("disk full")
}

// blockingAppender holds the first append until released.
type blockingAppender struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
	mu      sync.Mutex
	lastID  int64
}

func (b *blockingAppender) Append(ctx context.Context, rec storage.Interaction) (int64, error) {
	b.once.Do(func() {
		close(b.started)
		<-b.release
	})
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastID++
	return b.lastID, nil
}

func newTestLogger(t *testing.T, store Appender, mode Attribution, obs observer.Observer) *Logger {
	t.Helper()
	l := New(store, session.WithID("session-test"), mode, Options{
		Clock:    FixedClock(testTime),
		Observer: obs,
	})
	t.Cleanup(l.Close)
	return l
}

func openMemory(t *testing.T) *storage.MemoryStorage {
	t.Helper()
	store := storage.NewMemory()
	require.NoError(t, store.Open(context.Background()))
	return store
}

func flush(t *testing.T, l *Logger) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, l.Flush(ctx))
}

func TestLogger_StampsRecord(t *testing.T) {
	store := openMemory(t)
	obs := &collector{}
	l := newTestLogger(t, store, attribution.NewMode(), obs)

	l.Log(EventVocabularyUse, map[string]any{"word": "yes", "category": "core_vocab"})
	flush(t, l)

	records, err := store.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, int64(1), rec.ID)
	assert.Equal(t, "2025-03-01T09:30:00.000Z", rec.Timestamp)
	assert.Equal(t, "session-test", rec.SessionID)
	assert.Equal(t, EventVocabularyUse, rec.Type)
	assert.Equal(t, attribution.UserStudent, rec.User)
	assert.Equal(t, map[string]any{"word": "yes", "category": "core_vocab"}, rec.Data)

	// The observer sees the record with its assigned id.
	require.Len(t, obs.all(), 1)
	assert.Equal(t, rec, obs.all()[0])
}

func TestLogger_AttributionCapturedAtLogTime(t *testing.T) {
	store := openMemory(t)
	mode := attribution.NewMode()
	l := newTestLogger(t, store, mode, nil)
	mode.Bind(l)

	l.Log(EventVocabularyUse, map[string]any{"word": "yes"})
	mode.Toggle()
	l.Log(EventVocabularyUse, map[string]any{"word": "no"})
	mode.Toggle()
	flush(t, l)

	records, err := store.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 4)

	var users []attribution.User
	var types []string
	for _, rec := range records {
		users = append(users, rec.User)
		types = append(types, rec.Type)
	}
	assert.Equal(t, []string{
		EventVocabularyUse, EventPartnerModeChanged, EventVocabularyUse, EventPartnerModeChanged,
	}, types)
	assert.Equal(t, []attribution.User{
		attribution.UserStudent, attribution.UserPartner, attribution.UserPartner, attribution.UserStudent,
	}, users)
	assert.Equal(t, map[string]any{"active": true}, records[1].Data)
	assert.Equal(t, map[string]any{"active": false}, records[3].Data)
}

func TestLogger_PreservesCallOrder(t *testing.T) {
	store := openMemory(t)
	l := newTestLogger(t, store, attribution.NewMode(), nil)

	for i := 0; i < 100; i++ {
		l.Log(EventChoiceSlotFilled, map[string]any{"slot": i})
	}
	flush(t, l)

	records, err := store.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 100)

	for i, rec := range records {
		assert.Equal(t, i, rec.Data["slot"])
		if i > 0 {
			assert.Greater(t, rec.ID, records[i-1].ID)
		}
	}
}

func TestLogger_PendingNotPersisted(t *testing.T) {
	store := storage.NewMemory()
	obs := &collector{}
	l := newTestLogger(t, store, attribution.NewMode(), obs)

	l.Log(EventSessionStart, map[string]any{"appVersion": "1.0.0"})
	flush(t, l)

	seen := obs.all()
	require.Len(t, seen, 1)
	assert.True(t, seen[0].Pending())
	assert.Equal(t, EventSessionStart, seen[0].Type)

	require.NoError(t, store.Open(context.Background()))
	flush(t, l)

	records, err := store.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records, "pending record must not be persisted later")

	l.Log(EventViewChanged, map[string]any{"view": "choice-board"})
	flush(t, l)

	records, err = store.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, EventViewChanged, records[0].Type)
}

func TestLogger_PersistFailureIsSwallowed(t *testing.T) {
	obs := &collector{}
	l := newTestLogger(t, failingAppender{}, attribution.NewMode(), obs)

	assert.NotPanics(t, func() {
		l.Log(EventVocabularyUse, map[string]any{"word": "yes"})
	})
	flush(t, l)

	assert.Empty(t, obs.all(), "unpersisted, non-pending records are not shown")
}

func TestLogger_PanickingObserver(t *testing.T) {
	store := openMemory(t)
	l := newTestLogger(t, store, attribution.NewMode(), observer.Func(func(storage.Interaction) {
		panic("render failed")
	}))

	l.Log(EventChoiceCleared, nil)
	l.Log(EventChoiceCleared, nil)
	flush(t, l)

	records, err := store.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestLogger_DropsWhenQueueFull(t *testing.T) {
	store := &blockingAppender{started: make(chan struct{}), release: make(chan struct{})}
	l := New(store, session.WithID("s"), attribution.NewMode(), Options{QueueSize: 1})
	defer l.Close()

	l.Log(EventViewChanged, nil)
	<-store.started

	l.Log(EventViewChanged, nil) // queued
	l.Log(EventViewChanged, nil) // dropped
	l.Log(EventViewChanged, nil) // dropped

	assert.Equal(t, int64(2), l.Dropped())
	close(store.release)
	flush(t, l)
	assert.Zero(t, l.QueueLen())
}

func TestLogger_CopiesPayload(t *testing.T) {
	store := openMemory(t)
	l := newTestLogger(t, store, attribution.NewMode(), nil)

	data := map[string]any{"word": "yes"}
	l.Log(EventVocabularyUse, data)
	data["word"] = "changed"
	flush(t, l)

	records, err := store.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "yes", records[0].Data["word"])
}

func TestLogger_NilPayload(t *testing.T) {
	store := openMemory(t)
	l := newTestLogger(t, store, attribution.NewMode(), nil)

	l.Log(EventChoiceCleared, nil)
	flush(t, l)

	records, err := store.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotNil(t, records[0].Data)
	assert.Empty(t, records[0].Data)
}

func TestLogger_ProjectsWordsAndView(t *testing.T) {
	store := openMemory(t)
	l := newTestLogger(t, store, attribution.NewMode(), nil)

	l.Log("sentence_formed", map[string]any{
		"words": []any{"Rocks", "Ball"},
		"view":  "choice-board",
	})
	flush(t, l)

	records, err := store.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, []string{"Rocks", "Ball"}, records[0].Words)
	assert.Equal(t, "choice-board", records[0].View)
}

func TestLogger_CloseDrainsQueue(t *testing.T) {
	store := openMemory(t)
	l := New(store, session.WithID("s"), attribution.NewMode(), Options{})

	for i := 0; i < 5; i++ {
		l.Log(EventViewChanged, map[string]any{"view": "core-vocab"})
	}
	l.Close()
	l.Close()

	records, err := store.GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 5)

	// Logging after Close is a silent no-op.
	assert.NotPanics(t, func() { l.Log(EventViewChanged, nil) })
	assert.Equal(t, int64(1), l.Dropped())
	assert.NoError(t, l.Flush(context.Background()))
}

func TestLogger_CloseRacingLog(t *testing.T) {
	const writers, perWriter = 8, 50

	for round := 0; round < 20; round++ {
		store := openMemory(t)
		l := New(store, session.WithID("s"), attribution.NewMode(), Options{})

		var wg sync.WaitGroup
		start := make(chan struct{})
		for w := 0; w < writers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				for i := 0; i < perWriter; i++ {
					l.Log(EventViewChanged, nil)
				}
			}()
		}
		close(start)
		l.Close()
		wg.Wait()

		records, err := store.GetAll(context.Background())
		require.NoError(t, err)

		// Every event is either written or counted as dropped.
		assert.Equal(t, writers*perWriter, len(records)+int(l.Dropped()), "round %d", round)
		assert.Zero(t, l.QueueLen(), "round %d", round)
	}
}

func TestLogger_SessionStart(t *testing.T) {
	store := openMemory(t)
	l := newTestLogger(t, store, attribution.NewMode(), nil)

	assert.Equal(t, "session-test", l.SessionID())

	l.LogSessionStart("1.0.0", "taptalk/1.0.0 (linux; amd64)")
	flush(t, l)

	records, err := store.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, EventSessionStart, records[0].Type)
	assert.Equal(t, map[string]any{
		"sessionId":  "session-test",
		"appVersion": "1.0.0",
		"userAgent":  "taptalk/1.0.0 (linux; amd64)",
	}, records[0].Data)
}

func TestIsKnownEventType(t *testing.T) {
	for _, eventType := range KnownEventTypes {
		assert.True(t, IsKnownEventType(eventType), eventType)
	}
	assert.False(t, IsKnownEventType("single_word"))
}
