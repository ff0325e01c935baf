// Package fanout keeps the in-process registry of live-update channels
// and delivers events to every open channel of a user.
package fanout

import (
	"encoding/json"
	"sync"

	"github.com/itchan-dev/legorachat/shared/domain"
	"github.com/itchan-dev/legorachat/shared/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	openChannels = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "live_channels_open",
		Help: "Number of open live-update channels",
	})
	eventsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "live_events_delivered_total",
		Help: "Events queued on a live-update channel",
	}, []string{"type"})
	channelsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "live_channels_dropped_total",
		Help: "Channels removed because their queue was full",
	})
)

// Channel is one open live-update connection of a user.
// The transport drains Events until Done is closed.
type Channel struct {
	UserId domain.UserId

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	dropped   bool
}

func (c *Channel) Events() <-chan []byte {
	return c.send
}

func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Dropped reports whether the channel was closed because its queue filled
// up rather than by shutdown or deregistration. Valid once Done is closed.
func (c *Channel) Dropped() bool {
	return c.dropped
}

func (c *Channel) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Registry maps users to their open channels. It is created at process start
// and closed at shutdown.
type Registry struct {
	mu         sync.RWMutex
	channels   map[domain.UserId]map[*Channel]struct{}
	bufferSize int
	closed     bool
}

func NewRegistry(bufferSize int) *Registry {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Registry{
		channels:   make(map[domain.UserId]map[*Channel]struct{}),
		bufferSize: bufferSize,
	}
}

// Register opens a channel for userId. After Close it returns an already
// closed channel.
func (r *Registry) Register(userId domain.UserId) *Channel {
	ch := &Channel{
		UserId: userId,
		send:   make(chan []byte, r.bufferSize),
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		ch.close()
		return ch
	}
	set, ok := r.channels[userId]
	if !ok {
		set = make(map[*Channel]struct{})
		r.channels[userId] = set
	}
	set[ch] = struct{}{}
	openChannels.Inc()
	logger.Log.Debug("live channel registered", "user_id", userId, "user_channels", len(set))
	return ch
}

// Deregister removes ch and closes it. Safe to call more than once.
func (r *Registry) Deregister(ch *Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deregister(ch)
}

func (r *Registry) deregister(ch *Channel) {
	set, ok := r.channels[ch.UserId]
	if ok {
		if _, present := set[ch]; present {
			delete(set, ch)
			openChannels.Dec()
			if len(set) == 0 {
				delete(r.channels, ch.UserId)
			}
		}
	}
	ch.close()
}

// Notify queues event on every open channel of every listed user without
// blocking. A channel whose queue is full is dropped, the others still
// get the event.
func (r *Registry) Notify(userIds []domain.UserId, event domain.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Log.Error("failed to encode live event", "type", event.Type, "error", err)
		return
	}

	var stale []*Channel
	r.mu.RLock()
	for _, userId := range userIds {
		for ch := range r.channels[userId] {
			select {
			case ch.send <- payload:
				eventsDelivered.WithLabelValues(string(event.Type)).Inc()
			default:
				stale = append(stale, ch)
			}
		}
	}
	r.mu.RUnlock()

	if len(stale) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range stale {
		logger.Log.Warn("dropping slow live channel", "user_id", ch.UserId)
		channelsDropped.Inc()
		if _, open := r.channels[ch.UserId][ch]; open {
			ch.dropped = true
		}
		r.deregister(ch)
	}
}

// Count returns the number of open channels of userId.
func (r *Registry) Count(userId domain.UserId) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels[userId])
}

// Len returns the number of users with at least one open channel.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// Close closes every channel. Transports see Done and return.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	n := 0
	for _, set := range r.channels {
		for ch := range set {
			r.deregister(ch)
			n++
		}
	}
	r.closed = true
	logger.Log.Info("live channel registry closed", "channels", n)
}
