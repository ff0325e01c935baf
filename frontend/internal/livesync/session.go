package livesync

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/itchan-dev/legorachat/frontend/internal/apiclient"
	"github.com/itchan-dev/legorachat/shared/domain"
	"github.com/itchan-dev/legorachat/shared/logger"
)

const (
	DefaultBackoff      = 3 * time.Second
	DefaultPollInterval = 30 * time.Second
)

type State int

const (
	Connecting State = iota
	Open
	Closed
	Errored
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Open:
		return "open"
	case Closed:
		return "closed"
	case Errored:
		return "errored"
	}
	return "unknown"
}

// API is the part of the backend client a session needs.
type API interface {
	Threads(ctx context.Context) ([]domain.ThreadSummary, error)
	Messages(ctx context.Context, threadId domain.ThreadId) ([]domain.Message, error)
	SendMessage(ctx context.Context, threadId domain.ThreadId, content domain.MsgText) (domain.Message, error)
	Subscribe(ctx context.Context) (apiclient.EventStream, error)
}

type Options struct {
	// Backoff is the fixed delay before reconnecting a dropped channel.
	Backoff time.Duration
	// PollInterval is the period of the background re-fetch. Zero disables it.
	PollInterval time.Duration
	// OnState is called on every connection state transition.
	OnState func(State)
}

// Session keeps a Store in sync with the server: it holds the live channel
// open, reconnects after a fixed backoff and re-fetches everything on every
// (re)open and periodically.
type Session struct {
	api   API
	store *Store
	opts  Options

	mu    sync.Mutex
	state State
}

func NewSession(api API, store *Store, opts Options) *Session {
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	return &Session{api: api, store: store, opts: opts, state: Closed}
}

func (s *Session) Store() *Store {
	return s.store
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	if s.opts.OnState != nil {
		s.opts.OnState(state)
	}
}

// Run drives the live channel until ctx is cancelled and always returns
// ctx.Err().
func (s *Session) Run(ctx context.Context) error {
	log := logger.Component("livesync")

	if s.opts.PollInterval > 0 {
		go s.poll(ctx)
	}

	for {
		s.setState(Connecting)
		err := s.consume(ctx)
		if ctx.Err() != nil {
			s.setState(Closed)
			return ctx.Err()
		}
		if err == nil || errors.Is(err, io.EOF) {
			log.Info("live channel closed, reconnecting", "backoff", s.opts.Backoff)
			s.setState(Closed)
		} else {
			log.Warn("live channel failed, reconnecting", "error", err, "backoff", s.opts.Backoff)
			s.setState(Errored)
		}

		select {
		case <-ctx.Done():
			s.setState(Closed)
			return ctx.Err()
		case <-time.After(s.opts.Backoff):
		}
	}
}

// consume opens one channel and applies its events until it ends.
func (s *Session) consume(ctx context.Context) error {
	stream, err := s.api.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer stream.Close()
	stop := context.AfterFunc(ctx, func() { stream.Close() })
	defer stop()

	s.setState(Open)
	// events missed while disconnected are only recovered by a full fetch
	if err := s.Refresh(ctx); err != nil {
		logger.Log.Warn("re-fetch after connect failed", "error", err)
	}

	for {
		ev, err := stream.Next()
		if err != nil {
			return err
		}
		if s.store.ApplyEvent(ev) {
			if err := s.refreshThreads(ctx); err != nil {
				logger.Log.Warn("thread list re-fetch failed", "error", err)
			}
		}
	}
}

func (s *Session) poll(ctx context.Context) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil && ctx.Err() == nil {
				logger.Log.Debug("background re-fetch failed", "error", err)
			}
		}
	}
}

// Refresh re-fetches the thread list and the open thread's history.
func (s *Session) Refresh(ctx context.Context) error {
	if err := s.refreshThreads(ctx); err != nil {
		return err
	}
	threadId := s.store.OpenThread()
	if threadId == 0 {
		return nil
	}
	messages, err := s.api.Messages(ctx, threadId)
	if err != nil {
		return err
	}
	// the user may have switched threads while we were fetching
	if s.store.OpenThread() == threadId {
		s.store.Open(threadId, messages)
	}
	return nil
}

func (s *Session) refreshThreads(ctx context.Context) error {
	threads, err := s.api.Threads(ctx)
	if err != nil {
		return err
	}
	s.store.SetThreads(threads)
	return nil
}

// OpenThread loads a thread's history and makes it the open thread.
func (s *Session) OpenThread(ctx context.Context, threadId domain.ThreadId) error {
	messages, err := s.api.Messages(ctx, threadId)
	if err != nil {
		return err
	}
	s.store.Open(threadId, messages)
	return nil
}

// Send shows the message immediately as a placeholder and replaces it with
// the server record once confirmed. A rejected send removes the placeholder
// and returns the error.
func (s *Session) Send(ctx context.Context, threadId domain.ThreadId, content domain.MsgText) (domain.Message, error) {
	localId := s.store.AddPending(threadId, content)
	msg, err := s.api.SendMessage(ctx, threadId, content)
	if err != nil {
		s.store.Fail(localId)
		return domain.Message{}, err
	}
	s.store.Resolve(localId, msg)
	return msg, nil
}
