////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package memnet

import (
	"context"

	"github.com/google/uuid"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/elixxir/chatsync/network"
)

// conversation is the network-side record of a DM or group. It is guarded by
// the Network lock.
type conversation struct {
	id          string
	isGroup     bool
	name        string
	description string
	policy      network.PermissionPolicy
	members     map[network.InboxID]network.PermissionLevel
	order       []network.InboxID
	messages    []*network.RawMessage
}

func newConversation(isGroup bool) *conversation {
	return &conversation{
		id:      uuid.NewString(),
		isGroup: isGroup,
		members: make(map[network.InboxID]network.PermissionLevel),
	}
}

func (c *conversation) memberList() []network.InboxID {
	list := make([]network.InboxID, 0, len(c.order))
	for _, inbox := range c.order {
		if _, exists := c.members[inbox]; exists {
			list = append(list, inbox)
		}
	}
	return list
}

// handle is a client's view of a group. It implements network.Group.
type handle struct {
	c    *client
	conv *conversation
}

func (h *handle) ID() string { return h.conv.id }

func (h *handle) Name() string {
	h.c.net.mux.Lock()
	defer h.c.net.mux.Unlock()
	return h.conv.name
}

func (h *handle) Description() string {
	h.c.net.mux.Lock()
	defer h.c.net.mux.Unlock()
	return h.conv.description
}

func (h *handle) Policy() network.PermissionPolicy {
	h.c.net.mux.Lock()
	defer h.c.net.mux.Unlock()
	return h.conv.policy
}

func (h *handle) Sync(ctx context.Context) error {
	if err := h.c.check(ctx, OpSync, h.conv.id); err != nil {
		return err
	}
	return h.requireMember()
}

func (h *handle) Members(ctx context.Context) ([]network.Member, error) {
	if err := h.c.check(ctx, OpMembers, h.conv.id); err != nil {
		return nil, err
	}

	n := h.c.net
	n.mux.Lock()
	defer n.mux.Unlock()

	members := make([]network.Member, 0, len(h.conv.order))
	for _, inbox := range h.conv.memberList() {
		idents := make([]network.Identifier, len(n.identifiers[inbox]))
		copy(idents, n.identifiers[inbox])
		members = append(members, network.Member{
			InboxID:            inbox,
			AccountIdentifiers: idents,
			PermissionLevel:    h.conv.members[inbox],
		})
	}
	return members, nil
}

func (h *handle) AddMembers(ctx context.Context, inboxes []network.InboxID) error {
	if err := h.c.check(ctx, OpAddMembers, h.conv.id); err != nil {
		return err
	}

	n := h.c.net
	n.mux.Lock()
	defer n.mux.Unlock()

	if err := h.permitted(h.conv.policy.AddMember); err != nil {
		return err
	}
	for _, inbox := range inboxes {
		if _, known := n.identifiers[inbox]; !known {
			return ErrUnknownInbox
		}
	}
	for _, inbox := range inboxes {
		if _, exists := h.conv.members[inbox]; !exists {
			h.conv.members[inbox] = network.MemberLevel
			h.conv.order = append(h.conv.order, inbox)
		}
	}
	return nil
}

func (h *handle) RemoveMembers(ctx context.Context, inboxes []network.InboxID) error {
	if err := h.c.check(ctx, OpRemoveMembers, h.conv.id); err != nil {
		return err
	}

	n := h.c.net
	n.mux.Lock()
	defer n.mux.Unlock()

	if err := h.permitted(h.conv.policy.RemoveMember); err != nil {
		return err
	}
	for _, inbox := range inboxes {
		delete(h.conv.members, inbox)
	}
	h.conv.order = h.conv.memberList()
	return nil
}

func (h *handle) UpdateName(ctx context.Context, name string) error {
	if err := h.c.check(ctx, OpUpdateName, h.conv.id); err != nil {
		return err
	}

	h.c.net.mux.Lock()
	defer h.c.net.mux.Unlock()
	if err := h.permitted(h.conv.policy.UpdateGroupName); err != nil {
		return err
	}
	h.conv.name = name
	return nil
}

func (h *handle) UpdateDescription(ctx context.Context, description string) error {
	if err := h.c.check(ctx, OpUpdateDescription, h.conv.id); err != nil {
		return err
	}

	h.c.net.mux.Lock()
	defer h.c.net.mux.Unlock()
	if err := h.permitted(h.conv.policy.UpdateGroupDescription); err != nil {
		return err
	}
	h.conv.description = description
	return nil
}

func (h *handle) Messages(ctx context.Context) ([]*network.RawMessage, error) {
	if err := h.c.check(ctx, OpMessages, h.conv.id); err != nil {
		return nil, err
	}

	h.c.net.mux.Lock()
	defer h.c.net.mux.Unlock()
	if _, member := h.conv.members[h.c.inbox]; !member {
		return nil, ErrNotMember
	}
	history := make([]*network.RawMessage, len(h.conv.messages))
	copy(history, h.conv.messages)
	return history, nil
}

func (h *handle) Stream(ctx context.Context) (network.Stream, error) {
	if err := h.c.check(ctx, OpStream, h.conv.id); err != nil {
		return nil, err
	}
	if err := h.requireMember(); err != nil {
		return nil, err
	}

	s := h.c.net.openStream(h.conv.id, h.c.inbox)
	h.c.track(s)
	return s, nil
}

func (h *handle) Send(ctx context.Context, contentType network.ContentTypeID,
	content interface{}, fallback string) (*network.RawMessage, error) {
	if err := h.c.check(ctx, OpSend, h.conv.id); err != nil {
		return nil, err
	}

	n := h.c.net
	n.mux.Lock()
	defer n.mux.Unlock()
	if _, member := h.conv.members[h.c.inbox]; !member {
		return nil, ErrNotMember
	}

	return n.publish(h.conv, &network.RawMessage{
		ID:             uuid.NewString(),
		ConversationID: h.conv.id,
		SenderInboxID:  h.c.inbox,
		SentAt:         netTime.Now(),
		ContentType:    contentType,
		Content:        content,
		Fallback:       fallback,
	}), nil
}

func (h *handle) requireMember() error {
	h.c.net.mux.Lock()
	defer h.c.net.mux.Unlock()
	if _, member := h.conv.members[h.c.inbox]; !member {
		return ErrNotMember
	}
	return nil
}

// permitted checks the caller against the permission. The Network lock must be
// held.
func (h *handle) permitted(p network.Permission) error {
	level, member := h.conv.members[h.c.inbox]
	if !member {
		return ErrNotMember
	}
	if !p.Permits(level) {
		return ErrPermissionDenied
	}
	return nil
}

// dmHandle exposes only the network.Conversation methods of a DM.
type dmHandle struct {
	h handle
}

func (d *dmHandle) ID() string { return d.h.ID() }

func (d *dmHandle) Messages(ctx context.Context) ([]*network.RawMessage, error) {
	return d.h.Messages(ctx)
}

func (d *dmHandle) Stream(ctx context.Context) (network.Stream, error) {
	return d.h.Stream(ctx)
}

func (d *dmHandle) Send(ctx context.Context, contentType network.ContentTypeID,
	content interface{}, fallback string) (*network.RawMessage, error) {
	return d.h.Send(ctx, contentType, content, fallback)
}
