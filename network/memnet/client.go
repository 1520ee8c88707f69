////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package memnet

import (
	"context"
	"strings"
	"sync"

	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/chatsync/network"
)

// client is the in-memory implementation of network.Client.
type client struct {
	net   *Network
	inbox network.InboxID
	ident network.Identifier

	streams []*stream
	closed  bool
	mux     sync.Mutex
}

func (c *client) InboxID() network.InboxID {
	return c.inbox
}

func (c *client) Conversations() network.Conversations {
	return &conversations{c: c}
}

func (c *client) FetchInboxIDByIdentifier(ctx context.Context,
	ident network.Identifier) (network.InboxID, bool, error) {
	if err := c.check(ctx, OpFetchInbox, ident.Value); err != nil {
		return "", false, err
	}

	c.net.mux.Lock()
	defer c.net.mux.Unlock()
	inbox, exists := c.net.inboxes[identifierKey(ident)]
	return inbox, exists, nil
}

func (c *client) CanMessage(ctx context.Context,
	idents []network.Identifier) (map[string]bool, error) {
	if err := c.check(ctx, OpCanMessage, ""); err != nil {
		return nil, err
	}

	c.net.mux.Lock()
	defer c.net.mux.Unlock()
	result := make(map[string]bool, len(idents))
	for _, ident := range idents {
		_, exists := c.net.inboxes[identifierKey(ident)]
		result[strings.ToLower(ident.Value)] = exists
	}
	return result, nil
}

// Close ends every stream the client opened. Closing twice is a no-op.
func (c *client) Close() error {
	c.mux.Lock()
	if c.closed {
		c.mux.Unlock()
		return nil
	}
	c.closed = true
	streams := c.streams
	c.streams = nil
	c.mux.Unlock()

	c.net.closeClientStreams(streams)
	jww.DEBUG.Printf("[MEMNET] Closed client %s", c.inbox)
	return nil
}

// check fails calls on a closed client, then runs the network's hooks.
func (c *client) check(ctx context.Context, op Op, target string) error {
	c.mux.Lock()
	closed := c.closed
	c.mux.Unlock()
	if closed {
		return ErrClientClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.net.before(ctx, op, target)
}

func (c *client) track(s *stream) {
	c.mux.Lock()
	defer c.mux.Unlock()
	c.streams = append(c.streams, s)
}

// conversations is the in-memory implementation of network.Conversations.
type conversations struct {
	c *client
}

func (cs *conversations) CreateGroup(ctx context.Context,
	members []network.InboxID, opts network.GroupOptions) (network.Group, error) {
	if err := cs.c.check(ctx, OpCreateGroup, ""); err != nil {
		return nil, err
	}

	n := cs.c.net
	n.mux.Lock()
	defer n.mux.Unlock()

	conv := newConversation(true)
	conv.name = opts.Name
	conv.description = opts.Description
	conv.policy = opts.Policy
	conv.members[cs.c.inbox] = network.SuperAdminLevel
	conv.order = append(conv.order, cs.c.inbox)
	for _, m := range members {
		if _, known := n.identifiers[m]; !known {
			return nil, ErrUnknownInbox
		}
		if _, exists := conv.members[m]; !exists {
			conv.members[m] = network.MemberLevel
			conv.order = append(conv.order, m)
		}
	}
	n.addConversation(conv)
	n.groupsCreated++

	jww.DEBUG.Printf("[MEMNET] %s created group %s", cs.c.inbox, conv.id)
	return &handle{c: cs.c, conv: conv}, nil
}

func (cs *conversations) GetByID(ctx context.Context, id string) (
	network.Conversation, bool, error) {
	if err := cs.c.check(ctx, OpGetByID, id); err != nil {
		return nil, false, err
	}

	n := cs.c.net
	n.mux.Lock()
	defer n.mux.Unlock()

	conv, exists := n.convs[id]
	if !exists {
		return nil, false, nil
	}
	if _, member := conv.members[cs.c.inbox]; !member {
		return nil, false, nil
	}
	if conv.isGroup {
		return &handle{c: cs.c, conv: conv}, true, nil
	}
	return &dmHandle{handle{c: cs.c, conv: conv}}, true, nil
}

func (cs *conversations) ListDms(ctx context.Context) ([]network.Conversation, error) {
	if err := cs.c.check(ctx, OpListDms, ""); err != nil {
		return nil, err
	}

	n := cs.c.net
	n.mux.Lock()
	defer n.mux.Unlock()

	var dms []network.Conversation
	for _, id := range n.convOrder {
		conv := n.convs[id]
		if conv.isGroup {
			continue
		}
		if _, member := conv.members[cs.c.inbox]; member {
			dms = append(dms, &dmHandle{handle{c: cs.c, conv: conv}})
		}
	}
	return dms, nil
}

func (cs *conversations) StreamAllMessages(ctx context.Context) (network.Stream, error) {
	if err := cs.c.check(ctx, OpStreamAll, ""); err != nil {
		return nil, err
	}

	s := cs.c.net.openStream("", cs.c.inbox)
	cs.c.track(s)
	return s, nil
}
