////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package stream

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/chatsync/message"
	"gitlab.com/elixxir/chatsync/network"
	"gitlab.com/elixxir/chatsync/session"
	"gitlab.com/elixxir/chatsync/stoppable"
	"gitlab.com/elixxir/chatsync/store"
)

// Error messages.
const (
	streamAllErr   = "failed to stream all messages: %+v"
	listDmsErr     = "failed to list direct messages: %+v"
	alreadyLiveErr = "inbox is already streaming"
)

// previewLength is the maximum number of runes kept in a summary preview.
const previewLength = 100

// Inbox follows every conversation of the session to keep summaries and
// unread counts current.
type Inbox struct {
	sess  *session.Session
	store *store.Store

	stream network.Stream
	stop   *stoppable.Single
	mux    sync.Mutex
}

// NewInbox returns an Inbox for the session. It does nothing until Start.
func NewInbox(sess *session.Session, s *store.Store) *Inbox {
	return &Inbox{
		sess:  sess,
		store: s,
	}
}

// Start opens the all-conversations stream. Each message updates the
// conversation's summary, and messages from others count as unread unless
// the conversation is active.
func (in *Inbox) Start(ctx context.Context) error {
	in.mux.Lock()
	defer in.mux.Unlock()
	if in.stop != nil && in.stop.IsRunning() {
		return errors.New(alreadyLiveErr)
	}

	s, err := in.sess.Client().Conversations().StreamAllMessages(ctx)
	if err != nil {
		return errors.Errorf(streamAllErr, err)
	}

	in.stream = s
	in.stop = stoppable.NewSingle("inbox")
	in.sess.Register(in.stop)
	go in.consume(s, in.stop)

	jww.INFO.Printf("[INBOX] Streaming all conversations of %s",
		in.sess.InboxID())
	return nil
}

func (in *Inbox) consume(s network.Stream, stop *stoppable.Single) {
	defer func() {
		if stop.IsStopping() {
			stop.ToStopped()
		}
	}()

	for {
		select {
		case <-stop.Quit():
			return
		case raw, ok := <-s.Messages():
			if !ok {
				jww.DEBUG.Printf("[INBOX] Stream ended")
				return
			}
			in.apply(raw)
		}
	}
}

func (in *Inbox) apply(raw *network.RawMessage) {
	msg := message.Normalize(raw, raw.ConversationID)
	if msg == nil {
		return
	}

	in.store.UpdateSummary(msg.ConversationID, Preview(msg), msg.SentAt)
	if msg.SenderInboxID == in.sess.InboxID() {
		return
	}
	if count := in.store.IncrementUnread(msg.ConversationID); count > 0 {
		jww.TRACE.Printf("[INBOX] %d unread in %s", count, msg.ConversationID)
	}
}

// MarkRead clears the unread count of the conversation.
func (in *Inbox) MarkRead(conversationID string) {
	in.store.ClearUnread(conversationID)
}

// LoadDms seeds the summary of every direct message conversation from its
// latest message and returns the conversation IDs. A conversation whose
// history cannot be loaded is skipped.
func (in *Inbox) LoadDms(ctx context.Context) ([]string, error) {
	dms, err := in.sess.Client().Conversations().ListDms(ctx)
	if err != nil {
		return nil, errors.Errorf(listDmsErr, err)
	}

	ids := make([]string, 0, len(dms))
	for _, dm := range dms {
		ids = append(ids, dm.ID())

		history, err := dm.Messages(ctx)
		if err != nil {
			jww.WARN.Printf("[INBOX] Skipping summary of %s: %+v", dm.ID(), err)
			continue
		}
		msgs := message.Materialize(history, dm.ID())
		if len(msgs) == 0 {
			continue
		}
		last := msgs[len(msgs)-1]
		in.store.UpdateSummary(dm.ID(), Preview(last), last.SentAt)
	}

	jww.DEBUG.Printf("[INBOX] Loaded %d direct messages", len(ids))
	return ids, nil
}

// Stop closes the stream. The close error is logged and returned.
func (in *Inbox) Stop() error {
	in.mux.Lock()
	s, stop := in.stream, in.stop
	in.stream, in.stop = nil, nil
	in.mux.Unlock()

	if stop == nil {
		return nil
	}
	_ = stop.Close()
	in.sess.Unregister(stop)

	if err := s.Close(); err != nil {
		jww.WARN.Printf("[INBOX] Failed to close stream: %+v", err)
		return err
	}
	return nil
}

// Preview returns the summary text of the message.
func Preview(msg *message.Message) string {
	text := msg.Content
	switch msg.Type {
	case message.Reaction:
		text = "Reacted " + msg.Content
	case message.Attachment:
		text = "📎 " + msg.Content
	}

	runes := []rune(text)
	if len(runes) > previewLength {
		return string(runes[:previewLength-1]) + "…"
	}
	return text
}
