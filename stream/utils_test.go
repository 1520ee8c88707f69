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
	"time"

	"github.com/stretchr/testify/require"

	"gitlab.com/elixxir/chatsync/message"
	"gitlab.com/elixxir/chatsync/network"
	"gitlab.com/elixxir/chatsync/network/memnet"
	"gitlab.com/elixxir/chatsync/session"
	"gitlab.com/elixxir/chatsync/store"
	"gitlab.com/elixxir/chatsync/wallet"
)

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

// testEnv is a connected session and a second inbox over an in-memory
// network.
type testEnv struct {
	net      *memnet.Network
	store    *store.Store
	sessions *session.Manager
	sess     *session.Session
	other    network.InboxID
}

func newTestEnv(t *testing.T) *testEnv {
	n := memnet.New()
	s := store.New()
	sessions := session.NewManager(n, s, session.GetDefaultParams())

	self, err := wallet.NewLocal()
	require.NoError(t, err)
	sess, err := sessions.Connect(context.Background(), self)
	require.NoError(t, err)

	other := n.Provision(network.Identifier{Kind: network.Ethereum,
		Value: "0x00000000000000000000000000000000000000aa"})

	return &testEnv{
		net:      n,
		store:    s,
		sessions: sessions,
		sess:     sess,
		other:    other,
	}
}

// newGroup creates a group of the session's inbox and the other inbox.
func (e *testEnv) newGroup(t *testing.T, name string) string {
	g, err := e.sess.Client().Conversations().CreateGroup(context.Background(),
		[]network.InboxID{e.other}, network.GroupOptions{Name: name,
			Policy: network.AdminGatedPolicy()})
	require.NoError(t, err)
	return g.ID()
}

// text injects a text message from the other inbox.
func (e *testEnv) text(conversationID string, sentAt int64,
	content string) *network.RawMessage {
	return e.net.Inject(conversationID, e.other, time.Unix(sentAt, 0),
		network.ContentTypeText, content, "")
}

func contents(msgs []*message.Message) []string {
	list := make([]string, len(msgs))
	for i, m := range msgs {
		list[i] = m.Content
	}
	return list
}

func identifier(address string) network.Identifier {
	return network.Identifier{Kind: network.Ethereum, Value: address}
}
