package livesync

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/itchan-dev/legorachat/frontend/internal/apiclient"
	"github.com/itchan-dev/legorachat/shared/domain"
	internal_errors "github.com/itchan-dev/legorachat/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mocks ---

type fakeStream struct {
	events chan domain.Event
	closed chan struct{}
	once   sync.Once
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan domain.Event, 8), closed: make(chan struct{})}
}

func (f *fakeStream) Next() (domain.Event, error) {
	select {
	case ev, ok := <-f.events:
		if !ok {
			return domain.Event{}, io.EOF
		}
		return ev, nil
	case <-f.closed:
		return domain.Event{}, io.EOF
	}
}

func (f *fakeStream) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

type MockAPI struct {
	MockThreads     func(ctx context.Context) ([]domain.ThreadSummary, error)
	MockMessages    func(ctx context.Context, threadId domain.ThreadId) ([]domain.Message, error)
	MockSendMessage func(ctx context.Context, threadId domain.ThreadId, content domain.MsgText) (domain.Message, error)
	MockSubscribe   func(ctx context.Context) (apiclient.EventStream, error)
}

func (m *MockAPI) Threads(ctx context.Context) ([]domain.ThreadSummary, error) {
	if m.MockThreads != nil {
		return m.MockThreads(ctx)
	}
	return nil, nil
}

func (m *MockAPI) Messages(ctx context.Context, threadId domain.ThreadId) ([]domain.Message, error) {
	if m.MockMessages != nil {
		return m.MockMessages(ctx, threadId)
	}
	return nil, nil
}

func (m *MockAPI) SendMessage(ctx context.Context, threadId domain.ThreadId, content domain.MsgText) (domain.Message, error) {
	if m.MockSendMessage != nil {
		return m.MockSendMessage(ctx, threadId, content)
	}
	return domain.Message{Id: 1, ThreadId: threadId, Content: content}, nil
}

func (m *MockAPI) Subscribe(ctx context.Context) (apiclient.EventStream, error) {
	if m.MockSubscribe != nil {
		return m.MockSubscribe(ctx)
	}
	return newFakeStream(), nil
}

// --- Tests ---

func TestSession_Send(t *testing.T) {
	t.Run("success resolves placeholder", func(t *testing.T) {
		store := newTestStore()
		store.Open(10, nil)
		api := &MockAPI{
			MockSendMessage: func(ctx context.Context, threadId domain.ThreadId, content domain.MsgText) (domain.Message, error) {
				entries := store.Messages()
				require.Len(t, entries, 1, "placeholder is visible before the server answers")
				assert.True(t, entries[0].Pending)
				return domain.Message{Id: 5, ThreadId: threadId, Content: content, CreatedAt: base}, nil
			},
		}
		session := NewSession(api, store, Options{})

		msg, err := session.Send(context.Background(), 10, "hi")
		require.NoError(t, err)
		assert.Equal(t, domain.MsgId(5), msg.Id)
		assert.Equal(t, []domain.MsgId{5}, ids(store.Messages()))
	})

	t.Run("failure removes placeholder and surfaces error", func(t *testing.T) {
		store := newTestStore()
		store.Open(10, nil)
		api := &MockAPI{
			MockSendMessage: func(ctx context.Context, threadId domain.ThreadId, content domain.MsgText) (domain.Message, error) {
				return domain.Message{}, internal_errors.Forbidden("Not a participant of this thread")
			},
		}
		session := NewSession(api, store, Options{})

		_, err := session.Send(context.Background(), 10, "hi")
		require.Error(t, err)
		assert.True(t, internal_errors.IsForbidden(err))
		assert.Empty(t, store.Messages())
	})
}

func TestSession_OpenThread(t *testing.T) {
	store := newTestStore()
	api := &MockAPI{
		MockMessages: func(ctx context.Context, threadId domain.ThreadId) ([]domain.Message, error) {
			assert.Equal(t, domain.ThreadId(20), threadId)
			return []domain.Message{msgAt(1, 20, 0, "a"), msgAt(2, 20, time.Second, "b")}, nil
		},
	}
	session := NewSession(api, store, Options{})

	require.NoError(t, session.OpenThread(context.Background(), 20))
	assert.Equal(t, domain.ThreadId(20), store.OpenThread())
	assert.Equal(t, []domain.MsgId{1, 2}, ids(store.Messages()))
}

func TestSession_RunAppliesEventsAndRefetches(t *testing.T) {
	store := newTestStore()
	store.Open(10, nil)
	stream := newFakeStream()
	var threadFetches atomic.Int32

	api := &MockAPI{
		MockThreads: func(ctx context.Context) ([]domain.ThreadSummary, error) {
			threadFetches.Add(1)
			return []domain.ThreadSummary{{Id: 10, Name: "bob", CreatedAt: base}}, nil
		},
		MockSubscribe: func(ctx context.Context) (apiclient.EventStream, error) { return stream, nil },
	}
	session := NewSession(api, store, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- session.Run(ctx) }()

	require.Eventually(t, func() bool { return session.State() == Open && threadFetches.Load() == 1 }, 2*time.Second, 5*time.Millisecond, "full fetch on open")

	stream.events <- domain.NewMessageEvent(msgAt(3, 10, time.Second, "live"))
	require.Eventually(t, func() bool { return len(store.Messages()) == 1 }, 2*time.Second, 5*time.Millisecond)

	// a message for a thread we have never seen triggers a thread list re-fetch
	stream.events <- domain.NewMessageEvent(msgAt(4, 77, time.Second, "elsewhere"))
	require.Eventually(t, func() bool { return threadFetches.Load() == 2 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, Closed, session.State())
}

func TestSession_ReconnectsAfterBackoff(t *testing.T) {
	store := newTestStore()
	var attempts atomic.Int32
	var states []State
	var mu sync.Mutex

	api := &MockAPI{
		MockSubscribe: func(ctx context.Context) (apiclient.EventStream, error) {
			switch attempts.Add(1) {
			case 1:
				return nil, errors.New("connection refused")
			case 2:
				s := newFakeStream()
				close(s.events) // server ends the stream
				return s, nil
			default:
				return newFakeStream(), nil
			}
		},
	}
	session := NewSession(api, store, Options{
		Backoff: 10 * time.Millisecond,
		OnState: func(s State) {
			mu.Lock()
			states = append(states, s)
			mu.Unlock()
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go session.Run(ctx)

	require.Eventually(t, func() bool { return attempts.Load() >= 3 && session.State() == Open }, 2*time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(states), 6)
	assert.Equal(t, []State{Connecting, Errored, Connecting, Open, Closed, Connecting}, states[:6])
}

func TestSession_PollingBackstop(t *testing.T) {
	store := newTestStore()
	var fetches atomic.Int32
	api := &MockAPI{
		MockThreads: func(ctx context.Context) ([]domain.ThreadSummary, error) {
			fetches.Add(1)
			return nil, nil
		},
		MockSubscribe: func(ctx context.Context) (apiclient.EventStream, error) {
			return nil, errors.New("push unavailable")
		},
	}
	session := NewSession(api, store, Options{Backoff: time.Hour, PollInterval: 10 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go session.Run(ctx)

	require.Eventually(t, func() bool { return fetches.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connecting", Connecting.String())
	assert.Equal(t, "open", Open.String())
	assert.Equal(t, "closed", Closed.String())
	assert.Equal(t, "errored", Errored.String())
}

func TestSession_RefreshDuringSendKeepsConfirmedMessage(t *testing.T) {
	store := newTestStore()
	store.Open(10, []domain.Message{msgAt(1, 10, 0, "a")})

	fetchStarted := make(chan struct{})
	sendDone := make(chan struct{})
	api := &MockAPI{
		MockMessages: func(ctx context.Context, threadId domain.ThreadId) ([]domain.Message, error) {
			close(fetchStarted)
			<-sendDone
			// snapshot taken before the send was stored
			return []domain.Message{msgAt(1, 10, 0, "a")}, nil
		},
		MockSendMessage: func(ctx context.Context, threadId domain.ThreadId, content domain.MsgText) (domain.Message, error) {
			return msgAt(2, 10, time.Second, content), nil
		},
	}
	session := NewSession(api, store, Options{})

	refreshed := make(chan error, 1)
	go func() { refreshed <- session.Refresh(context.Background()) }()
	<-fetchStarted

	_, err := session.Send(context.Background(), 10, "b")
	require.NoError(t, err)
	close(sendDone)
	require.NoError(t, <-refreshed)

	assert.Equal(t, []domain.MsgId{1, 2}, ids(store.Messages()))
}
