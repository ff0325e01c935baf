package pg

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/itchan-dev/legorachat/backend/internal/fanout"
	"github.com/itchan-dev/legorachat/backend/internal/service"
	"github.com/itchan-dev/legorachat/shared/domain"
	"github.com/itchan-dev/legorachat/shared/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextEvent(t *testing.T, ch *fanout.Channel) domain.Event {
	t.Helper()
	select {
	case payload := <-ch.Events():
		var ev domain.Event
		require.NoError(t, json.Unmarshal(payload, &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
		return domain.Event{}
	}
}

// Two users chatting through the real engine, storage and registry.
func TestAliceBobConversation(t *testing.T) {
	registry := fanout.NewRegistry(8)
	defer registry.Close()

	auth := service.NewAuth(storage)
	threads := service.NewThread(storage, storage, registry)
	messages := service.NewMessage(storage, registry)

	aliceName, bobName := t.Name()+"/alice", t.Name()+"/bob"

	alice, err := auth.Login(domain.Credentials{Username: aliceName, Password: "a-pw"})
	require.NoError(t, err)
	bob, err := auth.Login(domain.Credentials{Username: bobName, Password: "b-pw"})
	require.NoError(t, err)
	outsider, err := auth.Login(domain.Credentials{Username: t.Name() + "/mallory", Password: "m-pw"})
	require.NoError(t, err)

	_, err = auth.Login(domain.Credentials{Username: aliceName, Password: "wrong"})
	require.Error(t, err)
	assert.True(t, errors.IsUnauthorized(err))

	aliceCh := registry.Register(alice.Id)
	bobCh := registry.Register(bob.Id)

	thread, err := threads.Create(alice.Id, []domain.Username{bobName, t.Name() + "/ghost"})
	require.NoError(t, err)
	assert.Len(t, thread.Participants, 2, "unknown username is skipped")

	ev := nextEvent(t, aliceCh)
	assert.Equal(t, domain.EventNewThread, ev.Type)
	assert.Equal(t, bobName, ev.Thread.Name)
	ev = nextEvent(t, bobCh)
	assert.Equal(t, aliceName, ev.Thread.Name)

	sent, err := messages.Send(alice.Id, thread.Id, "hi bob")
	require.NoError(t, err)
	assert.Equal(t, aliceName, sent.SenderName)

	for _, ch := range []*fanout.Channel{aliceCh, bobCh} {
		ev := nextEvent(t, ch)
		assert.Equal(t, domain.EventNewMessage, ev.Type)
		assert.Equal(t, sent.Id, ev.Message.Id)
	}

	reply, err := messages.Send(bob.Id, thread.Id, "hey alice")
	require.NoError(t, err)

	history, err := messages.List(bob.Id, thread.Id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, sent.Id, history[0].Id)
	assert.Equal(t, reply.Id, history[1].Id)

	list, err := threads.List(alice.Id)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, bobName, list[0].Name)
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "hey alice", list[0].LastMessage.Content)

	_, err = messages.Send(outsider.Id, thread.Id, "let me in")
	assert.True(t, errors.IsForbidden(err))
	_, err = messages.List(outsider.Id, thread.Id)
	assert.True(t, errors.IsForbidden(err))
	_, err = messages.Send(alice.Id, thread.Id+1_000_000, "nowhere")
	assert.True(t, errors.IsNotFound(err))
}
