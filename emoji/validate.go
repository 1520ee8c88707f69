////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package emoji validates reaction glyphs.
package emoji

import (
	"github.com/forPelevin/gomoji"
	"github.com/pkg/errors"
)

// Fallback is the reaction glyph used when a reaction arrives without one.
const Fallback = "👍"

var (
	// InvalidReaction is returned if the passed reaction string is an invalid
	// emoji.
	InvalidReaction = errors.New(
		"The reaction is not valid, it must be a single emoji")
)

// ValidateReaction checks that the reaction only contains a single emoji.
// Returns InvalidReaction if the emoji is invalid.
func ValidateReaction(reaction string) error {
	emojisList := gomoji.CollectAll(reaction)
	if len(emojisList) < 1 {
		// No emojis found
		return InvalidReaction
	} else if len(emojisList) > 1 {
		// More than one emoji found
		return InvalidReaction
	} else if emojisList[0].Character != reaction {
		// Non-emoji characters found alongside an emoji
		return InvalidReaction
	}

	return nil
}

// OrFallback returns Fallback for an empty reaction and the reaction
// unchanged otherwise. Received glyphs are kept as sent so that a later
// removal folds against the same key; only outgoing reactions are validated.
func OrFallback(reaction string) string {
	if reaction == "" {
		return Fallback
	}
	return reaction
}
