////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package store

import (
	"strconv"

	"github.com/golang-collections/collections/set"
	jww "github.com/spf13/jwalterweatherman"
)

// Topic is the kind of state a Change touched.
type Topic uint8

const (
	// AnyTopic registers a listener for every topic.
	AnyTopic Topic = iota
	Servers
	Channels
	Members
	Profiles
	Messages
	Unread
	Summaries
	Active
	Reset
)

// String returns a human-readable version of the Topic. This function adheres
// to the fmt.Stringer interface.
func (t Topic) String() string {
	switch t {
	case AnyTopic:
		return "Any"
	case Servers:
		return "Servers"
	case Channels:
		return "Channels"
	case Members:
		return "Members"
	case Profiles:
		return "Profiles"
	case Messages:
		return "Messages"
	case Unread:
		return "Unread"
	case Summaries:
		return "Summaries"
	case Active:
		return "Active"
	case Reset:
		return "Reset"
	default:
		return "INVALID TOPIC " + strconv.Itoa(int(t))
	}
}

// Change describes one store update. Key is the server, channel,
// conversation or wallet the update applies to.
type Change struct {
	Topic Topic
	Key   string
}

// ListenerFunc is called after a change is applied.
type ListenerFunc func(c Change)

type funcListener struct {
	name string
	f    ListenerFunc
}

// ListenerID identifies a registered listener so it can be unregistered.
type ListenerID struct {
	topic    Topic
	listener *funcListener
}

// Name returns the name the listener was registered with.
func (lid ListenerID) Name() string {
	return lid.listener.name
}

// RegisterFunc calls f for every change of the topic. AnyTopic listens to
// every change. The name is used for debug printing only.
func (s *Store) RegisterFunc(name string, topic Topic, f ListenerFunc) ListenerID {
	if f == nil {
		jww.FATAL.Panicf("[STORE] Cannot register listener %q with nil func", name)
	}

	l := &funcListener{name: name, f: f}

	s.listenerMux.Lock()
	defer s.listenerMux.Unlock()
	if existing, ok := s.listeners[topic]; ok {
		existing.Insert(l)
	} else {
		s.listeners[topic] = set.New(l)
	}

	return ListenerID{topic: topic, listener: l}
}

// Unregister removes the listener so it is no longer called.
func (s *Store) Unregister(lid ListenerID) {
	s.listenerMux.Lock()
	defer s.listenerMux.Unlock()

	if existing, ok := s.listeners[lid.topic]; ok {
		existing.Remove(lid.listener)
		if existing.Len() == 0 {
			delete(s.listeners, lid.topic)
		}
	}
}

// notify calls the listeners of each change. It must be called without holding
// the data lock.
func (s *Store) notify(changes ...Change) {
	for _, c := range changes {
		s.listenerMux.RLock()
		matches := set.New()
		if byTopic, ok := s.listeners[c.Topic]; ok {
			matches = matches.Union(byTopic)
		}
		if generic, ok := s.listeners[AnyTopic]; ok {
			matches = matches.Union(generic)
		}
		s.listenerMux.RUnlock()

		matches.Do(func(i interface{}) {
			i.(*funcListener).f(c)
		})

		jww.TRACE.Printf("[STORE] %s change to %q heard by %d listeners",
			c.Topic, c.Key, matches.Len())
	}
}
