////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package message converts network messages into the canonical records shown
// to the user and folds reaction events into per-emoji counts.
package message

import (
	"sort"
	"strconv"
	"time"

	"gitlab.com/elixxir/chatsync/network"
)

// Type is the content-type tag of a normalized message.
type Type uint8

const (
	// Text is plain text, and the tag given to unrecognised content.
	Text Type = iota + 1

	// Reaction is an emoji reaction to another message.
	Reaction

	// Reply is a message in reply to another message.
	Reply

	// Attachment is an inline or remote file.
	Attachment

	// ReadReceipt is never produced by Normalize; receipts are filtered.
	ReadReceipt

	// Unknown is never produced by Normalize; unknown content becomes Text.
	Unknown
)

// String returns a human-readable version of the Type. This function adheres
// to the fmt.Stringer interface.
func (t Type) String() string {
	switch t {
	case Text:
		return "text"
	case Reaction:
		return "reaction"
	case Reply:
		return "reply"
	case Attachment:
		return "attachment"
	case ReadReceipt:
		return "read-receipt"
	case Unknown:
		return "unknown"
	default:
		return "INVALID TYPE " + strconv.Itoa(int(t))
	}
}

// Message is a normalized message.
type Message struct {
	ID             string
	ConversationID string
	SenderInboxID  network.InboxID
	Content        string
	Type           Type
	SentAt         time.Time

	// ReplyTo is the ID of the message replied or reacted to.
	ReplyTo string

	// Reactions holds the reaction events attached to this message. For a
	// Reaction message it holds the single event it carries.
	Reactions []ReactionEvent

	Attachment *AttachmentInfo
}

// ReactionEvent is one added or removed reaction.
type ReactionEvent struct {
	MessageID string
	Emoji     string
	Action    network.ReactionAction
	Sender    network.InboxID
}

// AttachmentInfo describes an attached file.
type AttachmentInfo struct {
	Filename string
	MimeType string
	URL      string
	Size     int64
}

// SortBySentAt sorts the messages in ascending sent-at order, keeping the
// relative order of messages sent at the same time.
func SortBySentAt(msgs []*Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].SentAt.Before(msgs[j].SentAt)
	})
}
