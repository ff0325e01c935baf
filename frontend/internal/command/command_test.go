package command

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/itchan-dev/legorachat/shared/api"
	"github.com/itchan-dev/legorachat/shared/domain"
	mw "github.com/itchan-dev/legorachat/shared/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sentAt = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// fakeBackend serves a tiny in-memory version of the API for alice (id 1).
func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	writeJSON := func(w http.ResponseWriter, status int, body any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}

	r := chi.NewRouter()
	r.Post("/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req api.LoginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, api.LoginResponse{Error: "Invalid password"})
			return
		}
		writeJSON(w, http.StatusOK, api.LoginResponse{Success: true, User: &domain.User{Id: 1, Username: req.Username}})
	})
	r.Group(func(r chi.Router) {
		r.Use(mw.NeedIdentity())
		r.Get("/v1/threads", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, api.ThreadListResponse{
				{Id: 2, Name: "bob", CreatedAt: sentAt, LastMessage: &domain.Message{Id: 9, SenderName: "bob", Content: "yo", CreatedAt: sentAt}},
			})
		})
		r.Post("/v1/threads", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusCreated, api.ThreadResponse{Thread: domain.Thread{Id: 3, Participants: []domain.Participant{
				{Id: 1, Username: "alice"}, {Id: 2, Username: "bob"},
			}}})
		})
		r.Get("/v1/threads/{thread}/messages", func(w http.ResponseWriter, r *http.Request) {
			if chi.URLParam(r, "thread") != "2" {
				writeJSON(w, http.StatusForbidden, map[string]string{"error": "Not a participant of this thread"})
				return
			}
			writeJSON(w, http.StatusOK, api.MessageListResponse{{Id: 9, ThreadId: 2, SenderName: "bob", Content: "yo", CreatedAt: sentAt}})
		})
		r.Post("/v1/threads/{thread}/messages", func(w http.ResponseWriter, r *http.Request) {
			var req api.SendMessageRequest
			json.NewDecoder(r.Body).Decode(&req)
			writeJSON(w, http.StatusCreated, api.MessageResponse{Message: domain.Message{Id: 10, ThreadId: 2, SenderName: "alice", Content: req.Content, CreatedAt: sentAt}})
		})
	})
	r.Get("/v1/events/{userId}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"connected\"}\n\n")
		ev, _ := json.Marshal(domain.NewMessageEvent(domain.Message{Id: 11, ThreadId: 2, SenderName: "bob", Content: "live one", CreatedAt: sentAt.Add(time.Minute)}))
		fmt.Fprintf(w, "data: %s\n\n", ev)
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

// syncBuffer is written by the watch goroutines and read by the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func run(t *testing.T, ctx context.Context, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	out := &syncBuffer{}
	cmd := NewRootCmd()
	cmd.SetOut(out)
	cmd.SetErr(&syncBuffer{})
	cmd.SetArgs(append([]string{"--api", srv.URL, "-u", "alice", "-p", "secret"}, args...))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

func TestLoginCmd(t *testing.T) {
	srv := fakeBackend(t)

	out, err := run(t, context.Background(), srv, "login")
	require.NoError(t, err)
	assert.Equal(t, "Signed in as alice (id 1)\n", out)
}

func TestLoginCmd_WrongPassword(t *testing.T) {
	srv := fakeBackend(t)
	_, err := run(t, context.Background(), srv, "login", "-p", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid password")
}

func TestMissingCredentials(t *testing.T) {
	t.Setenv(envUsername, "")
	t.Setenv(envPassword, "")
	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"threads"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--username and --password are required")
}

func TestThreadsCmd(t *testing.T) {
	srv := fakeBackend(t)

	out, err := run(t, context.Background(), srv, "threads")
	require.NoError(t, err)
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "bob: yo")
}

func TestNewThreadCmd(t *testing.T) {
	srv := fakeBackend(t)

	out, err := run(t, context.Background(), srv, "new-thread", "bob", "ghost")
	require.NoError(t, err)
	assert.Equal(t, "Created thread 3: bob\n", out)
}

func TestMessagesCmd(t *testing.T) {
	srv := fakeBackend(t)

	out, err := run(t, context.Background(), srv, "messages", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "bob: yo")

	_, err = run(t, context.Background(), srv, "messages", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Not a participant")

	_, err = run(t, context.Background(), srv, "messages", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid thread id")
}

func TestSendCmd(t *testing.T) {
	srv := fakeBackend(t)

	out, err := run(t, context.Background(), srv, "send", "2", "hello", "there")
	require.NoError(t, err)
	assert.Contains(t, out, "alice: hello there")
}

func TestWatchCmd_Thread(t *testing.T) {
	srv := fakeBackend(t)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	out, err := run(t, ctx, srv, "watch", "2", "--poll", "0")
	require.NoError(t, err)

	assert.Contains(t, out, "bob: yo")
	assert.Contains(t, out, "bob: live one")
	assert.Contains(t, out, "-- open")
	assert.Equal(t, 1, bytes.Count([]byte(out), []byte("live one")), "pushed message printed once")
}

func TestWatchCmd_Threads(t *testing.T) {
	srv := fakeBackend(t)
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	out, err := run(t, ctx, srv, "watch", "--poll", "0")
	require.NoError(t, err)

	assert.Contains(t, out, "#2 bob | bob: yo")
	assert.Contains(t, out, "#2 bob | bob: live one")
}
