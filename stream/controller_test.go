////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stream

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"gitlab.com/elixxir/chatsync/message"
	"gitlab.com/elixxir/chatsync/network"
	"gitlab.com/elixxir/chatsync/network/memnet"
)

// Tests that history is loaded in sent order with reactions attached and that
// live messages are appended in arrival order.
func TestController_Open(t *testing.T) {
	e := newTestEnv(t)
	gid := e.newGroup(t, "general")

	e.text(gid, 5, "five")
	one := e.text(gid, 1, "one")
	e.text(gid, 3, "three")
	e.net.Inject(gid, e.other, time.Unix(4, 0), network.ContentTypeReaction,
		network.Reaction{Reference: one.ID, Action: network.ReactionAdded,
			Content: "🎉"}, "")
	e.net.Inject(gid, e.other, time.Unix(6, 0), network.ContentTypeReadReceipt,
		network.ReadReceipt{}, "")

	c := NewController(e.sess, e.store)
	require.Equal(t, Idle, c.State())
	require.NoError(t, c.Open(context.Background(), gid))
	require.Equal(t, Live, c.State())
	require.Equal(t, gid, c.Conversation())
	require.Equal(t, gid, e.store.Active())

	msgs := e.store.Messages(gid)
	require.Equal(t, []string{"one", "three", "five"}, contents(msgs))
	require.Equal(t, []message.ReactionCount{{Emoji: "🎉", Count: 1}},
		message.FoldReactions(msgs[0].Reactions))

	e.text(gid, 7, "seven")
	e.text(gid, 2, "two")
	expected := []string{"one", "three", "five", "seven", "two"}
	require.Eventually(t, func() bool {
		return reflect.DeepEqual(expected, contents(e.store.Messages(gid)))
	}, waitFor, tick)

	require.NoError(t, c.Cancel())
}

// Tests that opening another conversation closes the prior subscription.
func TestController_Open_Switch(t *testing.T) {
	e := newTestEnv(t)
	first := e.newGroup(t, "first")
	second := e.newGroup(t, "second")

	c := NewController(e.sess, e.store)
	require.NoError(t, c.Open(context.Background(), first))
	prior := c.sub

	require.NoError(t, c.Open(context.Background(), second))
	require.Equal(t, 1, e.net.Calls(memnet.OpStreamClose))
	require.False(t, prior.stop.IsRunning())
	require.Equal(t, second, e.store.Active())

	select {
	case <-prior.done:
	case <-time.After(waitFor):
		t.Errorf("Consumer of the prior subscription did not exit.")
	}

	e.text(second, 1, "hello")
	require.Eventually(t, func() bool {
		return len(e.store.Messages(second)) == 1
	}, waitFor, tick)
	require.Empty(t, e.store.Messages(first))
}

// Tests that a stream close failure is returned by Cancel and the controller
// still ends Closed.
func TestController_Cancel_CloseError(t *testing.T) {
	e := newTestEnv(t)
	gid := e.newGroup(t, "general")

	c := NewController(e.sess, e.store)
	require.NoError(t, c.Open(context.Background(), gid))

	e.net.FailNext(memnet.OpStreamClose, errors.New("already gone"))
	require.Error(t, c.Cancel())
	require.Equal(t, Closed, c.State())
	require.Empty(t, e.store.Active())

	require.NoError(t, c.Cancel())
	c.Close()
}

// Tests that failures while loading leave the controller Idle.
func TestController_Open_Errors(t *testing.T) {
	e := newTestEnv(t)
	gid := e.newGroup(t, "general")

	c := NewController(e.sess, e.store)
	err := c.Open(context.Background(), "unknown")
	require.ErrorIs(t, err, ErrConversationNotFound)
	require.Equal(t, Idle, c.State())

	e.net.FailNext(memnet.OpMessages, errors.New("history unavailable"))
	require.Error(t, c.Open(context.Background(), gid))
	require.Equal(t, Idle, c.State())
	require.Empty(t, c.Conversation())
	require.Empty(t, e.store.Active())

	e.net.FailNext(memnet.OpStream, errors.New("stream unavailable"))
	require.Error(t, c.Open(context.Background(), gid))
	require.Equal(t, Idle, c.State())

	require.NoError(t, c.Open(context.Background(), gid))
	require.Equal(t, Live, c.State())
}

// Tests that a conversation whose Open failed still counts unread messages.
func TestController_Open_FailureReleasesActive(t *testing.T) {
	e := newTestEnv(t)
	gid := e.newGroup(t, "general")

	in := NewInbox(e.sess, e.store)
	require.NoError(t, in.Start(context.Background()))
	defer in.Stop()

	c := NewController(e.sess, e.store)
	e.net.FailNext(memnet.OpMessages, errors.New("history unavailable"))
	require.Error(t, c.Open(context.Background(), gid))
	require.Empty(t, e.store.Active())

	e.text(gid, 10, "missed")
	require.Eventually(t, func() bool {
		return e.store.Unread(gid) == 1
	}, waitFor, tick)
}

// Tests that disconnecting the session stops the subscription.
func TestController_SessionDisconnect(t *testing.T) {
	e := newTestEnv(t)
	gid := e.newGroup(t, "general")

	c := NewController(e.sess, e.store)
	require.NoError(t, c.Open(context.Background(), gid))
	sub := c.sub

	require.NoError(t, e.sessions.Disconnect())
	require.False(t, sub.stop.IsRunning())
	select {
	case <-sub.done:
	case <-time.After(waitFor):
		t.Errorf("Consumer did not exit after disconnect.")
	}

	c.Close()
	require.Equal(t, Closed, c.State())
}

func TestState_String(t *testing.T) {
	tests := map[State]string{
		Idle:      "Idle",
		Loading:   "Loading",
		Live:      "Live",
		Closed:    "Closed",
		State(42): "INVALID STATE 42",
	}

	for state, expected := range tests {
		if state.String() != expected {
			t.Errorf("Unexpected state string.\nexpected: %s\nreceived: %s",
				expected, state)
		}
	}
}
