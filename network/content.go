////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package network

import "strconv"

// ContentTypeID identifies the encoding of a message payload.
type ContentTypeID struct {
	AuthorityID  string
	TypeID       string
	VersionMajor int
	VersionMinor int
}

// Authority is the authority of every content type the engine understands.
const Authority = "chatsync.network"

// Known content types.
var (
	ContentTypeText             = ContentTypeID{Authority, "text", 1, 0}
	ContentTypeReaction         = ContentTypeID{Authority, "reaction", 1, 0}
	ContentTypeReply            = ContentTypeID{Authority, "reply", 1, 0}
	ContentTypeAttachment       = ContentTypeID{Authority, "attachment", 1, 0}
	ContentTypeRemoteAttachment = ContentTypeID{Authority, "remoteStaticAttachment", 1, 0}
	ContentTypeReadReceipt      = ContentTypeID{Authority, "readReceipt", 1, 0}
	ContentTypeGroupUpdated     = ContentTypeID{Authority, "group_updated", 1, 0}
)

// String returns the content type as authority/type:major.minor. This function
// adheres to the fmt.Stringer interface.
func (ct ContentTypeID) String() string {
	return ct.AuthorityID + "/" + ct.TypeID + ":" +
		strconv.Itoa(ct.VersionMajor) + "." + strconv.Itoa(ct.VersionMinor)
}

// SameType returns true if both IDs name the same type, ignoring the minor
// version.
func (ct ContentTypeID) SameType(other ContentTypeID) bool {
	return ct.AuthorityID == other.AuthorityID && ct.TypeID == other.TypeID &&
		ct.VersionMajor == other.VersionMajor
}

// ReactionAction is the action carried by a reaction payload.
type ReactionAction string

const (
	ReactionAdded   ReactionAction = "added"
	ReactionRemoved ReactionAction = "removed"
)

// Reaction is the payload of a reaction message.
type Reaction struct {
	Reference        string         `mapstructure:"reference"`
	ReferenceInboxID InboxID        `mapstructure:"referenceInboxId"`
	Action           ReactionAction `mapstructure:"action"`
	Content          string         `mapstructure:"content"`
	Schema           string         `mapstructure:"schema"`
}

// Reply is the current reply payload. Content is the nested payload, usually
// a string.
type Reply struct {
	Reference   string        `mapstructure:"reference"`
	Content     interface{}   `mapstructure:"content"`
	ContentType ContentTypeID `mapstructure:"contentType"`
}

// LegacyReply is the reply payload sent by older clients.
type LegacyReply struct {
	InReplyTo string      `mapstructure:"inReplyTo"`
	Text      interface{} `mapstructure:"text"`
}

// Attachment is an inline file payload.
type Attachment struct {
	Filename string `mapstructure:"filename"`
	MimeType string `mapstructure:"mimeType"`
	Data     []byte `mapstructure:"data"`
}

// RemoteAttachment is a file stored off-network and referenced by URL.
type RemoteAttachment struct {
	URL           string `mapstructure:"url"`
	Filename      string `mapstructure:"filename"`
	ContentLength int64  `mapstructure:"contentLength"`
	ContentDigest string `mapstructure:"contentDigest"`
	Scheme        string `mapstructure:"scheme"`
}

// ReadReceipt is the empty payload of a read receipt.
type ReadReceipt struct{}
