////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stream

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"gitlab.com/elixxir/chatsync/emoji"
	"gitlab.com/elixxir/chatsync/message"
	"gitlab.com/elixxir/chatsync/network"
	"gitlab.com/elixxir/chatsync/network/memnet"
)

// Tests that a sent message is echoed into the store once even though the
// live stream delivers it again.
func TestSender_SendText(t *testing.T) {
	e := newTestEnv(t)
	gid := e.newGroup(t, "general")

	c := NewController(e.sess, e.store)
	require.NoError(t, c.Open(context.Background(), gid))
	defer c.Close()

	s := NewSender(e.sess, e.store)
	msg, err := s.SendText(context.Background(), gid, "hello")
	require.NoError(t, err)
	require.Equal(t, message.Text, msg.Type)
	require.Equal(t, e.sess.InboxID(), msg.SenderInboxID)

	e.text(gid, 0, "after")
	require.Eventually(t, func() bool {
		return len(e.store.Messages(gid)) == 2
	}, waitFor, tick)
	require.Equal(t, []string{"hello", "after"}, contents(e.store.Messages(gid)))

	sum, ok := e.store.Summary(gid)
	require.True(t, ok)
	require.Equal(t, "hello", sum.Preview)

	_, err = s.SendText(context.Background(), gid, "  ")
	require.ErrorIs(t, err, ErrEmptyMessage)
}

// Tests replies and reactions, including emoji validation before any network
// call.
func TestSender_ReplyAndReaction(t *testing.T) {
	e := newTestEnv(t)
	gid := e.newGroup(t, "general")
	target := e.text(gid, 1, "question")

	c := NewController(e.sess, e.store)
	require.NoError(t, c.Open(context.Background(), gid))
	defer c.Close()
	s := NewSender(e.sess, e.store)

	reply, err := s.SendReply(context.Background(), gid, target.ID, "answer")
	require.NoError(t, err)
	require.Equal(t, message.Reply, reply.Type)
	require.Equal(t, target.ID, reply.ReplyTo)
	require.Equal(t, "answer", reply.Content)

	sends := e.net.Calls(memnet.OpSend)
	_, err = s.SendReaction(context.Background(), gid, target.ID, "ok",
		network.ReactionAdded)
	require.ErrorIs(t, err, emoji.InvalidReaction)
	_, err = s.SendReaction(context.Background(), gid, target.ID, "👍",
		"toggled")
	require.Error(t, err)
	_, err = s.SendReaction(context.Background(), gid, "", "👍",
		network.ReactionAdded)
	require.Error(t, err)
	require.Equal(t, sends, e.net.Calls(memnet.OpSend))

	reaction, err := s.SendReaction(context.Background(), gid, target.ID, "👍",
		network.ReactionAdded)
	require.NoError(t, err)
	require.Equal(t, message.Reaction, reaction.Type)

	msgs := e.store.Messages(gid)
	require.Equal(t, []string{"question", "answer"}, contents(msgs))
	require.Equal(t, []message.ReactionCount{{Emoji: "👍", Count: 1}},
		message.FoldReactions(msgs[0].Reactions))
}

// Tests that send failures are returned.
func TestSender_Errors(t *testing.T) {
	e := newTestEnv(t)
	gid := e.newGroup(t, "general")
	s := NewSender(e.sess, e.store)

	_, err := s.SendText(context.Background(), "unknown", "hi")
	require.ErrorIs(t, err, ErrConversationNotFound)

	e.net.FailNext(memnet.OpSend, errors.New("rejected"))
	_, err = s.SendText(context.Background(), gid, "hi")
	require.Error(t, err)
	require.Empty(t, e.store.Messages(gid))
}

// Tests that a sent message with no renderable form is reported rather than
// returned as nothing.
func TestSender_NotRendered(t *testing.T) {
	e := newTestEnv(t)
	gid := e.newGroup(t, "general")
	s := NewSender(e.sess, e.store)

	sends := e.net.Calls(memnet.OpSend)
	msg, err := s.send(context.Background(), gid,
		network.ContentTypeReadReceipt, network.ReadReceipt{}, "")
	require.ErrorIs(t, err, ErrNotRendered)
	require.Nil(t, msg)
	require.Equal(t, sends+1, e.net.Calls(memnet.OpSend))
	require.Empty(t, e.store.Messages(gid))
}
