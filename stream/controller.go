////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package stream loads conversation history into the store and keeps it live,
// tracks unread counts across every conversation and sends messages.
package stream

import (
	"context"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/chatsync/message"
	"gitlab.com/elixxir/chatsync/metrics"
	"gitlab.com/elixxir/chatsync/network"
	"gitlab.com/elixxir/chatsync/session"
	"gitlab.com/elixxir/chatsync/stoppable"
	"gitlab.com/elixxir/chatsync/store"
)

var (
	// ErrConversationNotFound is returned when the client does not know the
	// conversation.
	ErrConversationNotFound = errors.New("conversation not found")

	// ErrSuperseded is returned by Open when another Open or a Close ran
	// before the subscription was live.
	ErrSuperseded = errors.New("subscription superseded")
)

// Error messages.
const (
	getConversationErr = "failed to load conversation %s: %+v"
	loadHistoryErr     = "failed to load history of %s: %+v"
	openStreamErr      = "failed to open stream on %s: %+v"
	closeStreamErr     = "failed to close stream on %s: %+v"
)

// State is the state of a Controller.
type State uint32

const (
	Idle State = iota
	Loading
	Live
	Closed
)

// String returns a human-readable name for the State. This function adheres
// to the fmt.Stringer interface.
func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case Loading:
		return "Loading"
	case Live:
		return "Live"
	case Closed:
		return "Closed"
	default:
		return "INVALID STATE " + strconv.Itoa(int(s))
	}
}

// subscription is one live stream and the goroutine consuming it.
type subscription struct {
	conversationID string
	stream         network.Stream
	stop           *stoppable.Single
	done           chan struct{}
}

// Controller keeps the messages of one conversation at a time in the store.
type Controller struct {
	sess  *session.Session
	store *store.Store

	state      State
	generation uint64
	current    string
	sub        *subscription
	mux        sync.Mutex
}

// NewController returns an Idle Controller for the session.
func NewController(sess *session.Session, s *store.Store) *Controller {
	return &Controller{
		sess:  sess,
		store: s,
	}
}

// Open switches the controller to the conversation. Any current subscription
// is closed first. The history is loaded, ordered by sent time and written to
// the store in one step, and then a stream appends new messages in the order
// they arrive.
func (c *Controller) Open(ctx context.Context, conversationID string) error {
	c.mux.Lock()
	prior := c.sub
	c.sub = nil
	c.generation++
	gen := c.generation
	c.state = Loading
	c.current = conversationID
	c.mux.Unlock()

	if prior != nil {
		if err := c.closeSubscription(prior); err != nil {
			jww.WARN.Printf("[STREAM] %+v", err)
		}
	}

	c.store.SetActive(conversationID)

	s, err := c.load(ctx, gen, conversationID)
	if err != nil {
		c.abandon(gen, conversationID)
		return err
	}

	sub := &subscription{
		conversationID: conversationID,
		stream:         s,
		stop: stoppable.NewSingle(
			"stream " + conversationID + " " + strconv.FormatUint(gen, 10)),
		done: make(chan struct{}),
	}

	c.mux.Lock()
	if gen != c.generation {
		c.mux.Unlock()
		if err = s.Close(); err != nil {
			jww.DEBUG.Printf("[STREAM] "+closeStreamErr, conversationID, err)
		}
		c.abandon(gen, conversationID)
		return ErrSuperseded
	}
	c.sub = sub
	c.state = Live
	c.mux.Unlock()

	c.sess.Register(sub.stop)
	go c.consume(sub)

	jww.DEBUG.Printf("[STREAM] Conversation %s is live", conversationID)
	return nil
}

// load writes the conversation's history to the store and opens its stream.
func (c *Controller) load(ctx context.Context, gen uint64,
	conversationID string) (network.Stream, error) {
	conv, exists, err := c.sess.Client().Conversations().GetByID(ctx, conversationID)
	if err != nil {
		return nil, errors.Errorf(getConversationErr, conversationID, err)
	}
	if !exists {
		return nil, errors.WithMessagef(ErrConversationNotFound,
			"conversation %s", conversationID)
	}

	history, err := conv.Messages(ctx)
	if err != nil {
		return nil, errors.Errorf(loadHistoryErr, conversationID, err)
	}
	msgs := message.Materialize(history, conversationID)

	if !c.isGeneration(gen) {
		return nil, ErrSuperseded
	}
	c.store.ReplaceMessages(conversationID, msgs)
	jww.DEBUG.Printf("[STREAM] Loaded %d messages of %s", len(msgs),
		conversationID)

	s, err := conv.Stream(ctx)
	if err != nil {
		return nil, errors.Errorf(openStreamErr, conversationID, err)
	}
	return s, nil
}

// consume appends each streamed message to the store until the subscription
// is closed or the stream ends.
func (c *Controller) consume(sub *subscription) {
	defer close(sub.done)
	defer func() {
		if sub.stop.IsStopping() {
			sub.stop.ToStopped()
		}
	}()

	for {
		select {
		case <-sub.stop.Quit():
			return
		case raw, ok := <-sub.stream.Messages():
			if !ok {
				jww.DEBUG.Printf("[STREAM] Stream on %s ended",
					sub.conversationID)
				return
			}
			c.apply(sub.conversationID, raw)
		}
	}
}

func (c *Controller) apply(conversationID string, raw *network.RawMessage) {
	msg := message.Normalize(raw, conversationID)
	if msg == nil {
		return
	}
	metrics.MessagesReceived.WithLabelValues(msg.Type.String()).Inc()

	if !c.store.AppendMessage(conversationID, msg) {
		jww.TRACE.Printf("[STREAM] Message %s on %s not appended", msg.ID,
			conversationID)
	}
}

// Cancel ends the current subscription and moves to Closed. The stream's
// close error is logged and returned.
func (c *Controller) Cancel() error {
	c.mux.Lock()
	sub := c.sub
	c.sub = nil
	c.generation++
	c.state = Closed
	conversationID := c.current
	c.current = ""
	c.mux.Unlock()

	c.store.ClearActive(conversationID)

	if sub == nil {
		return nil
	}
	err := c.closeSubscription(sub)
	if err != nil {
		jww.WARN.Printf("[STREAM] %+v", err)
	}
	return err
}

// Close ends the current subscription. Errors are logged only.
func (c *Controller) Close() {
	_ = c.Cancel()
}

// State returns the state of the controller.
func (c *Controller) State() State {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.state
}

// Conversation returns the conversation the controller is open on.
func (c *Controller) Conversation() string {
	c.mux.Lock()
	defer c.mux.Unlock()
	return c.current
}

// closeSubscription stops the consumer and closes the stream. Both are
// attempted even if the first fails.
func (c *Controller) closeSubscription(sub *subscription) error {
	stopErr := sub.stop.Close()
	c.sess.Unregister(sub.stop)

	if err := sub.stream.Close(); err != nil {
		return errors.Errorf(closeStreamErr, sub.conversationID, err)
	}
	return stopErr
}

// abandon undoes a failed or superseded Open. The controller returns to Idle
// if no later call has moved it, and the conversation stops being active
// unless a later Open is on the same conversation.
func (c *Controller) abandon(gen uint64, conversationID string) {
	c.mux.Lock()
	if gen == c.generation {
		c.state = Idle
		c.current = ""
	}
	reopened := c.current == conversationID
	c.mux.Unlock()

	if !reopened {
		c.store.ClearActive(conversationID)
	}
}

func (c *Controller) isGeneration(gen uint64) bool {
	c.mux.Lock()
	defer c.mux.Unlock()
	return gen == c.generation
}
