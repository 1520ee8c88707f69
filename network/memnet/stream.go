////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package memnet

import (
	"sync"

	"gitlab.com/elixxir/chatsync/network"
)

// stream delivers published messages in order. Pushes never block; messages
// queue until the reader takes them.
type stream struct {
	net            *Network
	conversationID string
	inbox          network.InboxID

	queue  []*network.RawMessage
	signal chan struct{}
	out    chan *network.RawMessage
	done   chan struct{}

	closeErr error
	once     sync.Once
	mux      sync.Mutex
}

func newStream(n *Network) *stream {
	s := &stream{
		net:    n,
		signal: make(chan struct{}, 1),
		out:    make(chan *network.RawMessage),
		done:   make(chan struct{}),
	}
	go s.pump()
	return s
}

// Messages returns the channel of delivered messages. It is closed once the
// stream is closed.
func (s *stream) Messages() <-chan *network.RawMessage {
	return s.out
}

// Close stops delivery. Only the first call reaches the network; later calls
// return the same result.
func (s *stream) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.closeErr = s.net.closeStream(s)
	})
	return s.closeErr
}

func (s *stream) push(msg *network.RawMessage) {
	s.mux.Lock()
	s.queue = append(s.queue, msg)
	s.mux.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *stream) pump() {
	defer close(s.out)
	for {
		s.mux.Lock()
		var next *network.RawMessage
		if len(s.queue) > 0 {
			next = s.queue[0]
			s.queue = s.queue[1:]
		}
		s.mux.Unlock()

		if next == nil {
			select {
			case <-s.signal:
				continue
			case <-s.done:
				return
			}
		}

		select {
		case s.out <- next:
		case <-s.done:
			return
		}
	}
}
