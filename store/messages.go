////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package store

import (
	"sort"
	"time"

	"github.com/golang-collections/collections/set"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/chatsync/message"
)

// ReplaceMessages sets the message list of the conversation in one step.
func (s *Store) ReplaceMessages(conversationID string, msgs []*message.Message) {
	list := make([]*message.Message, 0, len(msgs))
	ids := set.New()
	for _, m := range msgs {
		if m == nil || ids.Has(m.ID) {
			continue
		}
		ids.Insert(m.ID)
		list = append(list, copyMessage(m))
	}

	s.mux.Lock()
	s.messages[conversationID] = list
	s.messageIDs[conversationID] = ids
	s.mux.Unlock()

	s.notify(Change{Topic: Messages, Key: conversationID})
}

// AppendMessage adds a live message to the end of the conversation's list. A
// reaction is attached to its target instead. It returns false if the message
// was already in the list or a reaction's target is unknown.
func (s *Store) AppendMessage(conversationID string, m *message.Message) bool {
	if m == nil {
		return false
	}

	s.mux.Lock()
	ids, ok := s.messageIDs[conversationID]
	if !ok {
		ids = set.New()
		s.messageIDs[conversationID] = ids
	}
	if ids.Has(m.ID) {
		s.mux.Unlock()
		return false
	}

	if m.Type == message.Reaction {
		attached := s.attachReaction(conversationID, m)
		if attached {
			ids.Insert(m.ID)
		}
		s.mux.Unlock()
		if !attached {
			jww.TRACE.Printf("[STORE] Reaction %s targets unknown message %s",
				m.ID, m.ReplyTo)
			return false
		}
		s.notify(Change{Topic: Messages, Key: conversationID})
		return true
	}

	ids.Insert(m.ID)
	s.messages[conversationID] = append(s.messages[conversationID], copyMessage(m))
	s.mux.Unlock()

	s.notify(Change{Topic: Messages, Key: conversationID})
	return true
}

// attachReaction replaces the target with a copy carrying the reaction's
// events. The lock must be held.
func (s *Store) attachReaction(conversationID string, r *message.Message) bool {
	list := s.messages[conversationID]
	for i, m := range list {
		if m.ID == r.ReplyTo {
			updated := copyMessage(m)
			updated.Reactions = append(updated.Reactions, r.Reactions...)
			list[i] = updated
			return true
		}
	}
	return false
}

// Messages returns a copy of the conversation's message list.
func (s *Store) Messages(conversationID string) []*message.Message {
	s.mux.RLock()
	defer s.mux.RUnlock()

	list := make([]*message.Message, len(s.messages[conversationID]))
	for i, m := range s.messages[conversationID] {
		list[i] = copyMessage(m)
	}
	return list
}

func copyMessage(m *message.Message) *message.Message {
	cp := *m
	if m.Reactions != nil {
		cp.Reactions = make([]message.ReactionEvent, len(m.Reactions))
		copy(cp.Reactions, m.Reactions)
	}
	if m.Attachment != nil {
		a := *m.Attachment
		cp.Attachment = &a
	}
	return &cp
}

////////////////////////////////////////////////////////////////////////////////
// Active Conversation, Unread Counts, Summaries                              //
////////////////////////////////////////////////////////////////////////////////

// SetActive marks the conversation as the one the user is viewing and clears
// its unread count. An empty ID means none.
func (s *Store) SetActive(conversationID string) {
	s.mux.Lock()
	s.active = conversationID
	_, hadUnread := s.unread[conversationID]
	delete(s.unread, conversationID)
	s.mux.Unlock()

	s.notify(Change{Topic: Active, Key: conversationID})
	if hadUnread {
		s.notify(Change{Topic: Unread, Key: conversationID})
	}
}

// ClearActive unsets the active conversation if it is the given one. It
// returns true if it was.
func (s *Store) ClearActive(conversationID string) bool {
	s.mux.Lock()
	if conversationID == "" || s.active != conversationID {
		s.mux.Unlock()
		return false
	}
	s.active = ""
	s.mux.Unlock()

	s.notify(Change{Topic: Active, Key: ""})
	return true
}

// Active returns the active conversation.
func (s *Store) Active() string {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.active
}

// IncrementUnread adds one to the conversation's unread count unless it is
// the active conversation. It returns the new count.
func (s *Store) IncrementUnread(conversationID string) int {
	s.mux.Lock()
	if conversationID == s.active {
		s.mux.Unlock()
		return 0
	}
	s.unread[conversationID]++
	count := s.unread[conversationID]
	s.mux.Unlock()

	s.notify(Change{Topic: Unread, Key: conversationID})
	return count
}

// Unread returns the conversation's unread count.
func (s *Store) Unread(conversationID string) int {
	s.mux.RLock()
	defer s.mux.RUnlock()
	return s.unread[conversationID]
}

// ClearUnread resets the conversation's unread count.
func (s *Store) ClearUnread(conversationID string) {
	s.mux.Lock()
	delete(s.unread, conversationID)
	s.mux.Unlock()

	s.notify(Change{Topic: Unread, Key: conversationID})
}

// UpdateSummary records the latest message of a conversation. Messages older
// than the current summary are ignored. It returns true if the summary
// changed.
func (s *Store) UpdateSummary(conversationID, preview string, at time.Time) bool {
	s.mux.Lock()
	current, exists := s.summaries[conversationID]
	if exists && at.Before(current.LastMessageAt) {
		s.mux.Unlock()
		return false
	}
	s.summaries[conversationID] = Summary{
		ConversationID: conversationID,
		Preview:        preview,
		LastMessageAt:  at,
	}
	s.mux.Unlock()

	s.notify(Change{Topic: Summaries, Key: conversationID})
	return true
}

// Summary returns the summary of the conversation.
func (s *Store) Summary(conversationID string) (Summary, bool) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	sum, ok := s.summaries[conversationID]
	return sum, ok
}

// Summaries returns every summary, most recent first.
func (s *Store) Summaries() []Summary {
	s.mux.RLock()
	defer s.mux.RUnlock()

	list := make([]Summary, 0, len(s.summaries))
	for _, sum := range s.summaries {
		list = append(list, sum)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].LastMessageAt.Equal(list[j].LastMessageAt) {
			return list[i].ConversationID < list[j].ConversationID
		}
		return list[i].LastMessageAt.After(list[j].LastMessageAt)
	})
	return list
}
