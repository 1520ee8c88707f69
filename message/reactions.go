////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package message

import (
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/chatsync/network"
)

// ReactionCount is the number of live reactions of one emoji.
type ReactionCount struct {
	Emoji string
	Count int
}

// FoldReactions folds reaction events into per-emoji counts. A removal never
// takes a count below zero, and emojis with a zero count are left out. Counts
// are ordered by the emoji's first appearance.
func FoldReactions(events []ReactionEvent) []ReactionCount {
	counts := make(map[string]int)
	var order []string
	for _, e := range events {
		if _, seen := counts[e.Emoji]; !seen {
			order = append(order, e.Emoji)
			counts[e.Emoji] = 0
		}
		switch e.Action {
		case network.ReactionAdded:
			counts[e.Emoji]++
		case network.ReactionRemoved:
			if counts[e.Emoji] > 0 {
				counts[e.Emoji]--
			}
		}
	}

	folded := make([]ReactionCount, 0, len(order))
	for _, e := range order {
		if counts[e] > 0 {
			folded = append(folded, ReactionCount{Emoji: e, Count: counts[e]})
		}
	}
	return folded
}

// Attach appends the reaction's events to its target in msgs. It returns false
// if the target is not in msgs.
func Attach(msgs []*Message, reaction *Message) bool {
	for _, m := range msgs {
		if m.ID == reaction.ReplyTo {
			m.Reactions = append(m.Reactions, reaction.Reactions...)
			return true
		}
	}
	return false
}

// Materialize normalizes a conversation's history into the list shown to the
// user: receipts and undecodable messages are dropped, reactions are attached
// to their targets, and the result is sorted by sent-at time.
func Materialize(history []*network.RawMessage, conversationID string) []*Message {
	msgs := make([]*Message, 0, len(history))
	var reactions []*Message
	for _, raw := range history {
		msg := Normalize(raw, conversationID)
		switch {
		case msg == nil:
		case msg.Type == Reaction:
			reactions = append(reactions, msg)
		default:
			msgs = append(msgs, msg)
		}
	}

	SortBySentAt(msgs)
	SortBySentAt(reactions)

	for _, r := range reactions {
		if !Attach(msgs, r) {
			jww.TRACE.Printf("[NORMALIZE] Reaction %s targets unknown message %s",
				r.ID, r.ReplyTo)
		}
	}
	return msgs
}
