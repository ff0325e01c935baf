package command

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/itchan-dev/legorachat/frontend/internal/apiclient"
	"github.com/itchan-dev/legorachat/frontend/internal/livesync"
	"github.com/itchan-dev/legorachat/shared/domain"
	"github.com/spf13/cobra"
)

// wsClient makes a session subscribe over WebSocket instead of SSE.
type wsClient struct {
	*apiclient.APIClient
}

func (c wsClient) Subscribe(ctx context.Context) (apiclient.EventStream, error) {
	return c.SubscribeWS(ctx)
}

func newWatchCmd(opts *options) *cobra.Command {
	var (
		useWS   bool
		backoff time.Duration
		poll    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch [THREAD_ID]",
		Short: "Follow live updates",
		Long: `Follow live updates until interrupted. With a thread id new messages in
that thread are printed, otherwise thread activity is.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var threadId domain.ThreadId
			if len(args) == 1 {
				id, err := parseThreadId(args[0])
				if err != nil {
					return err
				}
				threadId = id
			}

			ctx := cmd.Context()
			client, user, err := signIn(ctx, opts)
			if err != nil {
				return err
			}

			var api livesync.API = client
			if useWS {
				api = wsClient{client}
			}

			store := livesync.NewStore(user)
			out := newWatchPrinter(cmd.OutOrStdout(), store, threadId)
			session := livesync.NewSession(api, store, livesync.Options{
				Backoff:      backoff,
				PollInterval: poll,
				OnState:      out.state,
			})

			if threadId != 0 {
				if err := session.OpenThread(ctx, threadId); err != nil {
					return err
				}
			}
			store.OnChange(out.render)
			out.render()

			// Run only returns once ctx is done, which is how watch ends
			_ = session.Run(ctx)
			return nil
		},
	}

	cmd.Flags().BoolVar(&useWS, "ws", false, "use the WebSocket transport instead of server-sent events")
	cmd.Flags().DurationVar(&backoff, "backoff", livesync.DefaultBackoff, "delay before reconnecting a dropped channel")
	cmd.Flags().DurationVar(&poll, "poll", livesync.DefaultPollInterval, "background re-fetch interval, 0 disables it")
	return cmd
}

// watchPrinter prints what changed in the store since the last render.
type watchPrinter struct {
	mu       sync.Mutex
	w        io.Writer
	store    *livesync.Store
	threadId domain.ThreadId
	seenMsgs map[domain.MsgId]struct{}
	seenLast map[domain.ThreadId]domain.MsgId
}

func newWatchPrinter(w io.Writer, store *livesync.Store, threadId domain.ThreadId) *watchPrinter {
	return &watchPrinter{
		w:        w,
		store:    store,
		threadId: threadId,
		seenMsgs: make(map[domain.MsgId]struct{}),
		seenLast: make(map[domain.ThreadId]domain.MsgId),
	}
}

func (p *watchPrinter) state(s livesync.State) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "-- %s\n", s)
}

func (p *watchPrinter) render() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.threadId != 0 {
		for _, e := range p.store.Messages() {
			if e.Pending {
				continue
			}
			if _, ok := p.seenMsgs[e.Message.Id]; ok {
				continue
			}
			p.seenMsgs[e.Message.Id] = struct{}{}
			printMessage(p.w, e.Message)
		}
		return
	}

	for _, t := range p.store.Threads() {
		var lastId domain.MsgId
		if t.LastMessage != nil {
			lastId = t.LastMessage.Id
		}
		if seen, ok := p.seenLast[t.Id]; ok && seen == lastId {
			continue
		}
		p.seenLast[t.Id] = lastId
		if t.LastMessage == nil {
			fmt.Fprintf(p.w, "#%d %s\n", t.Id, t.Name)
			continue
		}
		fmt.Fprintf(p.w, "#%d %s | %s: %s\n", t.Id, t.Name, t.LastMessage.SenderName, t.LastMessage.Content)
	}
}
