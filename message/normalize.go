////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package message

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/chatsync/emoji"
	"gitlab.com/elixxir/chatsync/network"
)

const (
	// AttachmentLabel is the content of an attachment without a filename.
	AttachmentLabel = "Attachment"

	defaultMimeType = "application/octet-stream"
)

// Error messages.
const (
	decodeErr          = "failed to decode %s payload: %+v"
	unexpectedTypeErr  = "unexpected %s payload type %T"
	missingRefErr      = "%s payload has no reference"
	unknownReactionErr = "unknown reaction action %q"
)

// Normalize converts a raw network message into a Message. It returns nil for
// read receipts, malformed messages and anything that fails to decode. It
// never panics. An empty conversationID defaults to the raw message's.
func Normalize(raw *network.RawMessage, conversationID string) (msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			jww.WARN.Printf("[NORMALIZE] Recovered while decoding message: %v", r)
			msg = nil
		}
	}()

	if raw == nil || raw.ID == "" {
		return nil
	}
	if conversationID == "" {
		conversationID = raw.ConversationID
	}

	msg = &Message{
		ID:             raw.ID,
		ConversationID: conversationID,
		SenderInboxID:  raw.SenderInboxID,
		SentAt:         raw.SentAt,
	}

	var err error
	ct := raw.ContentType
	switch {
	case ct.SameType(network.ContentTypeReadReceipt):
		return nil
	case ct.SameType(network.ContentTypeReaction):
		err = normalizeReaction(msg, raw.Content)
	case ct.SameType(network.ContentTypeReply):
		err = normalizeReply(msg, raw.Content)
	case ct.SameType(network.ContentTypeAttachment):
		err = normalizeAttachment(msg, raw.Content)
	case ct.SameType(network.ContentTypeRemoteAttachment):
		err = normalizeRemoteAttachment(msg, raw.Content)
	case ct.SameType(network.ContentTypeText):
		msg.Type = Text
		if s, ok := raw.Content.(string); ok {
			msg.Content = s
		} else {
			msg.Content = fallbackText(raw)
		}
	default:
		msg.Type = Text
		msg.Content = fallbackText(raw)
	}

	if err != nil {
		jww.DEBUG.Printf("[NORMALIZE] Dropping message %s (%s): %+v",
			raw.ID, ct, err)
		return nil
	}
	return msg
}

func normalizeReaction(msg *Message, content interface{}) error {
	var r network.Reaction
	switch c := content.(type) {
	case network.Reaction:
		r = c
	case *network.Reaction:
		if c == nil {
			return errors.Errorf(unexpectedTypeErr, "reaction", content)
		}
		r = *c
	default:
		if err := decode(content, &r); err != nil {
			return errors.Errorf(decodeErr, "reaction", err)
		}
	}

	if r.Reference == "" {
		return errors.Errorf(missingRefErr, "reaction")
	}

	switch r.Action {
	case "":
		r.Action = network.ReactionAdded
	case network.ReactionAdded, network.ReactionRemoved:
	default:
		return errors.Errorf(unknownReactionErr, r.Action)
	}

	msg.Type = Reaction
	msg.Content = emoji.OrFallback(r.Content)
	msg.ReplyTo = r.Reference
	msg.Reactions = []ReactionEvent{{
		MessageID: msg.ID,
		Emoji:     msg.Content,
		Action:    r.Action,
		Sender:    msg.SenderInboxID,
	}}
	return nil
}

func normalizeReply(msg *Message, content interface{}) error {
	var reference string
	var body interface{}

	switch c := content.(type) {
	case network.Reply:
		reference, body = c.Reference, c.Content
	case *network.Reply:
		if c == nil {
			return errors.Errorf(unexpectedTypeErr, "reply", content)
		}
		reference, body = c.Reference, c.Content
	case network.LegacyReply:
		reference, body = c.InReplyTo, c.Text
	case *network.LegacyReply:
		if c == nil {
			return errors.Errorf(unexpectedTypeErr, "reply", content)
		}
		reference, body = c.InReplyTo, c.Text
	default:
		var r network.Reply
		if err := decode(content, &r); err != nil {
			return errors.Errorf(decodeErr, "reply", err)
		}
		reference, body = r.Reference, r.Content
		if reference == "" {
			var legacy network.LegacyReply
			if err := decode(content, &legacy); err != nil {
				return errors.Errorf(decodeErr, "legacy reply", err)
			}
			reference, body = legacy.InReplyTo, legacy.Text
		}
	}

	if reference == "" {
		return errors.Errorf(missingRefErr, "reply")
	}

	msg.Type = Reply
	msg.Content = stringify(body)
	msg.ReplyTo = reference
	return nil
}

func normalizeAttachment(msg *Message, content interface{}) error {
	var a network.Attachment
	switch c := content.(type) {
	case network.Attachment:
		a = c
	case *network.Attachment:
		if c == nil {
			return errors.Errorf(unexpectedTypeErr, "attachment", content)
		}
		a = *c
	default:
		if err := decode(content, &a); err != nil {
			return errors.Errorf(decodeErr, "attachment", err)
		}
	}

	setAttachment(msg, &AttachmentInfo{
		Filename: a.Filename,
		MimeType: detectMimeType(a.MimeType, a.Data, a.Filename),
		Size:     int64(len(a.Data)),
	})
	return nil
}

func normalizeRemoteAttachment(msg *Message, content interface{}) error {
	var a network.RemoteAttachment
	switch c := content.(type) {
	case network.RemoteAttachment:
		a = c
	case *network.RemoteAttachment:
		if c == nil {
			return errors.Errorf(unexpectedTypeErr, "remote attachment", content)
		}
		a = *c
	default:
		if err := decode(content, &a); err != nil {
			return errors.Errorf(decodeErr, "remote attachment", err)
		}
	}

	setAttachment(msg, &AttachmentInfo{
		Filename: a.Filename,
		MimeType: detectMimeType("", nil, a.Filename),
		URL:      a.URL,
		Size:     a.ContentLength,
	})
	return nil
}

func setAttachment(msg *Message, info *AttachmentInfo) {
	msg.Type = Attachment
	msg.Attachment = info
	msg.Content = info.Filename
	if msg.Content == "" {
		msg.Content = AttachmentLabel
	}
}

// detectMimeType returns the declared type, else the type sniffed from the
// data, else the type of the file extension, else application/octet-stream.
func detectMimeType(declared string, data []byte, filename string) string {
	if declared != "" {
		return declared
	}

	if len(data) > 0 {
		detected := mimetype.Detect(data)
		if !detected.Is(defaultMimeType) {
			return baseMimeType(detected.String())
		}
	}

	if ext := filepath.Ext(filename); ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return baseMimeType(byExt)
		}
	}

	return defaultMimeType
}

func baseMimeType(t string) string {
	return strings.TrimSpace(strings.SplitN(t, ";", 2)[0])
}

// decode fills out from a loosely typed payload such as a JSON-decoded map.
func decode(content interface{}, out interface{}) error {
	if content == nil {
		return errors.New("empty payload")
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(content)
}

func fallbackText(raw *network.RawMessage) string {
	if raw.Fallback != "" {
		return raw.Fallback
	}
	return stringify(raw.Content)
}

// stringify coerces a payload to a string.
func stringify(v interface{}) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	case []byte:
		return string(c)
	case fmt.Stringer:
		return c.String()
	case map[string]interface{}:
		for _, key := range []string{"text", "content"} {
			if s, ok := c[key].(string); ok {
				return s
			}
		}
	}
	return fmt.Sprintf("%v", v)
}
