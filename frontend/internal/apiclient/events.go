package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/itchan-dev/legorachat/shared/domain"
)

// EventStream is an open live-updates channel. Next blocks until the next
// event arrives and returns io.EOF once the server ends the stream.
type EventStream interface {
	Next() (domain.Event, error)
	Close() error
}

// Subscribe opens the server-sent events stream for the client's user.
// The stream ends when ctx is cancelled.
func (c *APIClient) Subscribe(ctx context.Context) (EventStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/v1/events/%d", c.BaseURL, c.UserId), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create event stream request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.HttpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend unavailable: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, readError(resp)
	}
	return &sseStream{body: resp.Body, scanner: newSSEScanner(resp.Body)}, nil
}

type sseStream struct {
	body    io.ReadCloser
	scanner *sseScanner
}

func (s *sseStream) Next() (domain.Event, error) {
	if !s.scanner.Next() {
		if err := s.scanner.Err(); err != nil {
			return domain.Event{}, err
		}
		return domain.Event{}, io.EOF
	}
	var ev domain.Event
	if err := json.Unmarshal([]byte(s.scanner.Record().Data), &ev); err != nil {
		return domain.Event{}, fmt.Errorf("malformed event: %w", err)
	}
	return ev, nil
}

func (s *sseStream) Close() error {
	return s.body.Close()
}

// SubscribeWS opens the WebSocket rendition of the live-updates channel.
func (c *APIClient) SubscribeWS(ctx context.Context) (EventStream, error) {
	url := fmt.Sprintf("%s/v1/ws/%d", c.BaseURL, c.UserId)
	url = "ws" + strings.TrimPrefix(url, "http")

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			return nil, readError(resp)
		}
		return nil, fmt.Errorf("backend unavailable: %w", err)
	}

	// unblock a pending read when the caller goes away
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	return &wsStream{conn: conn, stop: stop}, nil
}

type wsStream struct {
	conn *websocket.Conn
	stop func() bool
}

func (s *wsStream) Next() (domain.Event, error) {
	var ev domain.Event
	if err := s.conn.ReadJSON(&ev); err != nil {
		if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
			return domain.Event{}, io.EOF
		}
		return domain.Event{}, err
	}
	return ev, nil
}

func (s *wsStream) Close() error {
	s.stop()
	return s.conn.Close()
}
