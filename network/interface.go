////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package network defines the boundary to the end-to-end encrypted group
// messaging network. The engine only depends on these interfaces; the SDK that
// implements them is external. An in-memory implementation lives in memnet.
package network

import (
	"context"
	"time"
)

// InboxID is the network's durable identifier for a wallet that has
// provisioned messaging access.
type InboxID string

// IdentifierKind is the kind of account linked to an inbox.
type IdentifierKind string

// Ethereum is the only identifier kind the engine issues.
const Ethereum IdentifierKind = "Ethereum"

// Identifier is an account identifier linked to an inbox.
type Identifier struct {
	Kind  IdentifierKind
	Value string
}

// Signer is the wallet signing capability handed to the network when a client
// is provisioned.
type Signer interface {
	Identifier() Identifier
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)
}

// Factory provisions network clients.
type Factory interface {
	// Create returns a client bound to the signer's identity. It may call
	// SignMessage one or more times.
	Create(ctx context.Context, signer Signer) (Client, error)
}

// Client is a live connection to the network bound to one identity.
type Client interface {
	// InboxID returns the inbox of the bound identity.
	InboxID() InboxID

	// Conversations returns the conversation API of the client.
	Conversations() Conversations

	// FetchInboxIDByIdentifier resolves an account identifier to its inbox.
	// The boolean is false if the account never provisioned network access.
	FetchInboxIDByIdentifier(ctx context.Context, ident Identifier) (
		InboxID, bool, error)

	// CanMessage reports, per identifier value, whether the account has
	// provisioned network access.
	CanMessage(ctx context.Context, idents []Identifier) (map[string]bool, error)

	// Close releases the client. Streams opened by the client are ended.
	Close() error
}

// Conversations is the conversation API of a Client.
type Conversations interface {
	// CreateGroup creates a group whose super admin is the calling client.
	CreateGroup(ctx context.Context, members []InboxID, opts GroupOptions) (
		Group, error)

	// GetByID returns the conversation with the given ID. The boolean is false
	// if it is not known to this client.
	GetByID(ctx context.Context, id string) (Conversation, bool, error)

	// ListDms returns the direct message conversations of the client.
	ListDms(ctx context.Context) ([]Conversation, error)

	// StreamAllMessages streams messages from every conversation the client
	// is part of.
	StreamAllMessages(ctx context.Context) (Stream, error)
}

// Conversation is a DM or a group.
type Conversation interface {
	ID() string

	// Messages returns the history of the conversation in the order the
	// network stores it, which is not guaranteed to be sorted.
	Messages(ctx context.Context) ([]*RawMessage, error)

	// Stream opens a live subscription on the conversation.
	Stream(ctx context.Context) (Stream, error)

	// Send publishes a message and returns it as the network recorded it.
	Send(ctx context.Context, contentType ContentTypeID, content interface{},
		fallback string) (*RawMessage, error)
}

// Group is a group conversation with its own membership and policy.
type Group interface {
	Conversation

	Name() string
	Description() string
	Policy() PermissionPolicy

	// Sync refreshes the local view of the group from the network.
	Sync(ctx context.Context) error

	// Members returns the locally known membership of the group.
	Members(ctx context.Context) ([]Member, error)

	AddMembers(ctx context.Context, inboxes []InboxID) error
	RemoveMembers(ctx context.Context, inboxes []InboxID) error
	UpdateName(ctx context.Context, name string) error
	UpdateDescription(ctx context.Context, description string) error
}

// PermissionLevel is the level of a member inside a group.
type PermissionLevel uint8

const (
	MemberLevel PermissionLevel = iota
	AdminLevel
	SuperAdminLevel
)

// Member is one inbox in a group along with the accounts linked to it.
type Member struct {
	InboxID            InboxID
	AccountIdentifiers []Identifier
	PermissionLevel    PermissionLevel
}

// GroupOptions are set on a group when it is created.
type GroupOptions struct {
	Name        string
	Description string
	Policy      PermissionPolicy
}

// Stream is a live message subscription. Messages is closed once the stream
// ends, either because Close was called or because the client went away.
type Stream interface {
	Messages() <-chan *RawMessage
	Close() error
}

// RawMessage is a message as delivered by the network, before normalization.
// Content holds the decoded payload, whose Go type depends on ContentType.
type RawMessage struct {
	ID             string
	ConversationID string
	SenderInboxID  InboxID
	SentAt         time.Time
	ContentType    ContentTypeID
	Content        interface{}

	// Fallback is the plain text the sender supplied for clients that do not
	// understand the content type.
	Fallback string
}
