////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stream

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/chatsync/emoji"
	"gitlab.com/elixxir/chatsync/message"
	"gitlab.com/elixxir/chatsync/network"
	"gitlab.com/elixxir/chatsync/session"
	"gitlab.com/elixxir/chatsync/store"
)

var (
	// ErrEmptyMessage is returned when sending text with no content.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrNotRendered is returned when a message was sent but the recorded copy
	// cannot be shown. The message is on the network and nothing is stored.
	ErrNotRendered = errors.New("sent message cannot be rendered")
)

// Error messages.
const (
	sendErr          = "failed to send %s to %s: %+v"
	missingTargetErr = "a %s needs the ID of the message it refers to"
	invalidActionErr = "invalid reaction action %q"
)

const (
	reactionFallback = "Reacted %s to an earlier message"
	unicodeSchema    = "unicode"
)

// Sender publishes messages to conversations and echoes them into the store.
type Sender struct {
	sess  *session.Session
	store *store.Store
}

// NewSender returns a Sender for the session.
func NewSender(sess *session.Session, s *store.Store) *Sender {
	return &Sender{
		sess:  sess,
		store: s,
	}
}

// SendText sends a text message.
func (s *Sender) SendText(ctx context.Context, conversationID, text string) (
	*message.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	return s.send(ctx, conversationID, network.ContentTypeText, text, text)
}

// SendReply sends a text reply to the message.
func (s *Sender) SendReply(ctx context.Context, conversationID, replyTo,
	text string) (*message.Message, error) {
	if replyTo == "" {
		return nil, errors.Errorf(missingTargetErr, message.Reply)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	reply := network.Reply{
		Reference:   replyTo,
		Content:     text,
		ContentType: network.ContentTypeText,
	}
	return s.send(ctx, conversationID, network.ContentTypeReply, reply, text)
}

// SendReaction adds or removes a reaction on the message. The reaction must
// be a single emoji.
func (s *Sender) SendReaction(ctx context.Context, conversationID, messageID,
	reaction string, action network.ReactionAction) (*message.Message, error) {
	if messageID == "" {
		return nil, errors.Errorf(missingTargetErr, message.Reaction)
	}
	if err := emoji.ValidateReaction(reaction); err != nil {
		return nil, err
	}
	if action != network.ReactionAdded && action != network.ReactionRemoved {
		return nil, errors.Errorf(invalidActionErr, action)
	}

	payload := network.Reaction{
		Reference: messageID,
		Action:    action,
		Content:   reaction,
		Schema:    unicodeSchema,
	}
	fallback := fmt.Sprintf(reactionFallback, reaction)
	return s.send(ctx, conversationID, network.ContentTypeReaction, payload,
		fallback)
}

// send publishes the content and applies the recorded message to the store.
// The stream delivering the same message later is deduplicated by ID.
func (s *Sender) send(ctx context.Context, conversationID string,
	ct network.ContentTypeID, content interface{}, fallback string) (
	*message.Message, error) {
	conv, exists, err := s.sess.Client().Conversations().GetByID(ctx, conversationID)
	if err != nil {
		return nil, errors.Errorf(getConversationErr, conversationID, err)
	}
	if !exists {
		return nil, errors.WithMessagef(ErrConversationNotFound,
			"conversation %s", conversationID)
	}

	raw, err := conv.Send(ctx, ct, content, fallback)
	if err != nil {
		return nil, errors.Errorf(sendErr, ct.TypeID, conversationID, err)
	}

	msg := message.Normalize(raw, conversationID)
	if msg == nil {
		jww.WARN.Printf("[STREAM] Sent message %s could not be normalized",
			raw.ID)
		return nil, errors.WithMessagef(ErrNotRendered, "message %s in %s",
			raw.ID, conversationID)
	}

	s.store.AppendMessage(conversationID, msg)
	s.store.UpdateSummary(conversationID, Preview(msg), msg.SentAt)
	return msg, nil
}
