////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package memnet is an in-memory messaging network implementing the network
// interfaces. It is shared by every client created from it, supports fault
// injection and hooks, and is used by tests and the CLI demo.
package memnet

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/elixxir/chatsync/network"
)

// Op names a network operation for fault injection and call counting.
type Op string

const (
	OpCreate            Op = "create"
	OpCreateGroup       Op = "createGroup"
	OpGetByID           Op = "getById"
	OpListDms           Op = "listDms"
	OpStreamAll         Op = "streamAllMessages"
	OpFetchInbox        Op = "fetchInboxId"
	OpCanMessage        Op = "canMessage"
	OpSync              Op = "sync"
	OpMembers           Op = "members"
	OpAddMembers        Op = "addMembers"
	OpRemoveMembers     Op = "removeMembers"
	OpUpdateName        Op = "updateName"
	OpUpdateDescription Op = "updateDescription"
	OpMessages          Op = "messages"
	OpStream            Op = "stream"
	OpStreamClose       Op = "streamClose"
	OpSend              Op = "send"
)

// Error messages.
var (
	ErrClientClosed     = errors.New("client is closed")
	ErrNotMember        = errors.New("inbox is not a member of the conversation")
	ErrPermissionDenied = errors.New("permission denied by group policy")
	ErrUnknownInbox     = errors.New("inbox is not provisioned")
)

const signErr = "failed to sign provisioning challenge: %+v"

// challenge is signed by every identity when it provisions a client.
var challenge = []byte("chatsync: provision messaging inbox")

// Hook is called before an operation runs. It may block; a returned error
// fails the operation. Target is the conversation ID for conversation
// operations and the identifier value for client operations.
type Hook func(ctx context.Context, target string) error

// Network is the shared state of the in-memory network.
type Network struct {
	inboxes     map[string]network.InboxID
	identifiers map[network.InboxID][]network.Identifier
	convs       map[string]*conversation
	convOrder   []string

	convStreams map[string]map[*stream]network.InboxID
	allStreams  map[network.InboxID]map[*stream]struct{}

	faults      map[Op][]error
	groupFaults map[Op]map[string]error
	hooks       map[Op]Hook
	calls       map[Op]int

	groupsCreated int

	mux sync.Mutex
}

// New returns an empty Network.
func New() *Network {
	return &Network{
		inboxes:     make(map[string]network.InboxID),
		identifiers: make(map[network.InboxID][]network.Identifier),
		convs:       make(map[string]*conversation),
		convStreams: make(map[string]map[*stream]network.InboxID),
		allStreams:  make(map[network.InboxID]map[*stream]struct{}),
		faults:      make(map[Op][]error),
		groupFaults: make(map[Op]map[string]error),
		hooks:       make(map[Op]Hook),
		calls:       make(map[Op]int),
	}
}

// Create provisions a client for the signer, creating its inbox on first use.
// It adheres to the network.Factory interface.
func (n *Network) Create(ctx context.Context, signer network.Signer) (
	network.Client, error) {
	ident := signer.Identifier()
	if err := n.before(ctx, OpCreate, ident.Value); err != nil {
		return nil, err
	}

	if _, err := signer.SignMessage(ctx, challenge); err != nil {
		return nil, errors.Errorf(signErr, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	inbox := n.Provision(ident)
	jww.DEBUG.Printf("[MEMNET] Created client for %s with inbox %s",
		ident.Value, inbox)

	return &client{net: n, inbox: inbox, ident: ident}, nil
}

// Provision registers the identifier with the network without creating a
// client, as if it had provisioned access from another device. It returns the
// existing inbox if there is one.
func (n *Network) Provision(ident network.Identifier) network.InboxID {
	n.mux.Lock()
	defer n.mux.Unlock()

	key := identifierKey(ident)
	if inbox, exists := n.inboxes[key]; exists {
		return inbox
	}

	inbox := network.InboxID(strings.ReplaceAll(uuid.NewString(), "-", ""))
	n.inboxes[key] = inbox
	n.identifiers[inbox] = []network.Identifier{
		{Kind: ident.Kind, Value: strings.ToLower(ident.Value)}}
	return inbox
}

// FailNext queues an error returned by the next call of the operation.
func (n *Network) FailNext(op Op, err error) {
	n.mux.Lock()
	defer n.mux.Unlock()
	n.faults[op] = append(n.faults[op], err)
}

// FailGroup makes every call of the operation on the conversation fail with
// the error. A nil error clears the fault.
func (n *Network) FailGroup(op Op, conversationID string, err error) {
	n.mux.Lock()
	defer n.mux.Unlock()
	if n.groupFaults[op] == nil {
		n.groupFaults[op] = make(map[string]error)
	}
	if err == nil {
		delete(n.groupFaults[op], conversationID)
		return
	}
	n.groupFaults[op][conversationID] = err
}

// SetHook installs a hook run before every call of the operation. A nil hook
// removes it.
func (n *Network) SetHook(op Op, hook Hook) {
	n.mux.Lock()
	defer n.mux.Unlock()
	if hook == nil {
		delete(n.hooks, op)
		return
	}
	n.hooks[op] = hook
}

// Calls returns how many times the operation has been invoked.
func (n *Network) Calls(op Op) int {
	n.mux.Lock()
	defer n.mux.Unlock()
	return n.calls[op]
}

// GroupsCreated returns the number of groups created on the network.
func (n *Network) GroupsCreated() int {
	n.mux.Lock()
	defer n.mux.Unlock()
	return n.groupsCreated
}

// GroupMembers returns the inboxes of the conversation.
func (n *Network) GroupMembers(conversationID string) []network.InboxID {
	n.mux.Lock()
	defer n.mux.Unlock()

	c, exists := n.convs[conversationID]
	if !exists {
		return nil
	}
	return c.memberList()
}

// CreateDM creates a direct message conversation between two inboxes and
// returns its ID.
func (n *Network) CreateDM(a, b network.InboxID) string {
	n.mux.Lock()
	defer n.mux.Unlock()

	c := newConversation(false)
	c.members[a] = network.MemberLevel
	c.members[b] = network.MemberLevel
	c.order = []network.InboxID{a, b}
	n.addConversation(c)
	return c.id
}

// Inject records a message on the conversation as if the sender had sent it
// at the given time and delivers it to every open stream.
func (n *Network) Inject(conversationID string, sender network.InboxID,
	sentAt time.Time, contentType network.ContentTypeID, content interface{},
	fallback string) *network.RawMessage {
	n.mux.Lock()
	defer n.mux.Unlock()

	c, exists := n.convs[conversationID]
	if !exists {
		jww.WARN.Printf("[MEMNET] Inject into unknown conversation %s",
			conversationID)
		return nil
	}

	return n.publish(c, &network.RawMessage{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderInboxID:  sender,
		SentAt:         sentAt,
		ContentType:    contentType,
		Content:        content,
		Fallback:       fallback,
	})
}

// before counts the call, runs the hook and returns any injected fault. It must
// be called without holding the lock.
func (n *Network) before(ctx context.Context, op Op, target string) error {
	n.mux.Lock()
	n.calls[op]++
	hook := n.hooks[op]
	var err error
	if queued := n.faults[op]; len(queued) > 0 {
		err = queued[0]
		n.faults[op] = queued[1:]
	} else if byGroup, ok := n.groupFaults[op]; ok {
		err = byGroup[target]
	}
	n.mux.Unlock()

	if hook != nil {
		if hookErr := hook(ctx, target); hookErr != nil {
			return hookErr
		}
	}

	return err
}

// addConversation registers the conversation. The lock must be held.
func (n *Network) addConversation(c *conversation) {
	n.convs[c.id] = c
	n.convOrder = append(n.convOrder, c.id)
}

// publish appends the message to the conversation and fans it out to streams.
// The lock must be held.
func (n *Network) publish(c *conversation, msg *network.RawMessage) *network.RawMessage {
	if msg.SentAt.IsZero() {
		msg.SentAt = netTime.Now()
	}
	c.messages = append(c.messages, msg)

	for s, inbox := range n.convStreams[c.id] {
		if _, member := c.members[inbox]; member {
			s.push(msg)
		}
	}

	for inbox := range c.members {
		for s := range n.allStreams[inbox] {
			s.push(msg)
		}
	}

	return msg
}

// openStream registers a stream on a conversation, or on every conversation
// of the inbox when conversationID is empty.
func (n *Network) openStream(conversationID string, inbox network.InboxID) *stream {
	n.mux.Lock()
	defer n.mux.Unlock()

	s := newStream(n)
	s.conversationID = conversationID
	s.inbox = inbox
	if conversationID == "" {
		if n.allStreams[inbox] == nil {
			n.allStreams[inbox] = make(map[*stream]struct{})
		}
		n.allStreams[inbox][s] = struct{}{}
	} else {
		if n.convStreams[conversationID] == nil {
			n.convStreams[conversationID] = make(map[*stream]network.InboxID)
		}
		n.convStreams[conversationID][s] = inbox
	}
	return s
}

// closeStream unregisters the stream and returns any injected close fault.
func (n *Network) closeStream(s *stream) error {
	err := n.before(context.Background(), OpStreamClose, s.conversationID)

	n.mux.Lock()
	defer n.mux.Unlock()
	if s.conversationID == "" {
		delete(n.allStreams[s.inbox], s)
	} else {
		delete(n.convStreams[s.conversationID], s)
	}
	return err
}

// closeClientStreams ends every stream opened by the inbox's client.
func (n *Network) closeClientStreams(streams []*stream) {
	for _, s := range streams {
		if err := s.Close(); err != nil {
			jww.DEBUG.Printf("[MEMNET] Stream close on client close: %+v", err)
		}
	}
}

func identifierKey(ident network.Identifier) string {
	return string(ident.Kind) + ":" + strings.ToLower(ident.Value)
}
