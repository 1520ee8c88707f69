////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package store is the process-local cache every engine component writes to
// and the UI reads from. Getters return copies; listeners are told about every
// change after it is applied.
package store

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-collections/collections/set"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/chatsync/message"
	"gitlab.com/elixxir/chatsync/models"
	"gitlab.com/elixxir/chatsync/wallet"
)

// Error messages.
var (
	// ErrGroupAlreadySet is returned when a channel is already bound to a
	// different group.
	ErrGroupAlreadySet = errors.New("channel is already bound to a group")

	// ErrChannelNotFound is returned when a channel is not in the store.
	ErrChannelNotFound = errors.New("channel not found")
)

// Summary is the inbox entry of a conversation.
type Summary struct {
	ConversationID string
	Preview        string
	LastMessageAt  time.Time
}

// Store is the reactive store. It is safe for concurrent use.
type Store struct {
	servers  map[string]models.Server
	channels map[string]models.Channel
	members  map[string][]models.ServerMember
	profiles map[wallet.Address]models.Profile

	messages   map[string][]*message.Message
	messageIDs map[string]*set.Set
	unread     map[string]int
	summaries  map[string]Summary
	active     string

	mux sync.RWMutex

	listeners   map[Topic]*set.Set
	listenerMux sync.RWMutex
}

// New returns an empty Store.
func New() *Store {
	s := &Store{listeners: make(map[Topic]*set.Set)}
	s.clear()
	return s
}

func (s *Store) clear() {
	s.servers = make(map[string]models.Server)
	s.channels = make(map[string]models.Channel)
	s.members = make(map[string][]models.ServerMember)
	s.profiles = make(map[wallet.Address]models.Profile)
	s.messages = make(map[string][]*message.Message)
	s.messageIDs = make(map[string]*set.Set)
	s.unread = make(map[string]int)
	s.summaries = make(map[string]Summary)
	s.active = ""
}

// Reset drops all state. Listeners stay registered.
func (s *Store) Reset() {
	s.mux.Lock()
	s.clear()
	s.mux.Unlock()

	jww.DEBUG.Printf("[STORE] Reset")
	s.notify(Change{Topic: Reset})
}

////////////////////////////////////////////////////////////////////////////////
// Servers, Channels, Members, Profiles                                       //
////////////////////////////////////////////////////////////////////////////////

// SetServers replaces the server list.
func (s *Store) SetServers(servers []models.Server) {
	s.mux.Lock()
	s.servers = make(map[string]models.Server, len(servers))
	for _, srv := range servers {
		s.servers[srv.ID] = srv
	}
	s.mux.Unlock()

	s.notify(Change{Topic: Servers})
}

// Servers returns every server ordered by creation time.
func (s *Store) Servers() []models.Server {
	s.mux.RLock()
	defer s.mux.RUnlock()

	servers := make([]models.Server, 0, len(s.servers))
	for _, srv := range s.servers {
		servers = append(servers, srv)
	}
	sort.Slice(servers, func(i, j int) bool {
		if servers[i].CreatedAt.Equal(servers[j].CreatedAt) {
			return servers[i].ID < servers[j].ID
		}
		return servers[i].CreatedAt.Before(servers[j].CreatedAt)
	})
	return servers
}

// SetChannels replaces the channels of a server. A channel already bound to a
// group keeps its group reference even if the update does not carry it or
// carries a different one. A differing reference is logged.
func (s *Store) SetChannels(serverID string, channels []models.Channel) {
	s.mux.Lock()
	bound := make(map[string]string)
	for id, ch := range s.channels {
		if ch.ServerID == serverID {
			if ch.GroupID != "" {
				bound[id] = ch.GroupID
			}
			delete(s.channels, id)
		}
	}
	for _, ch := range channels {
		if local, ok := bound[ch.ID]; ok {
			if ch.GroupID != "" && ch.GroupID != local {
				jww.WARN.Printf("[STORE] Channel %s is bound to group %s, "+
					"ignoring update to group %s", ch.ID, local, ch.GroupID)
			}
			ch.GroupID = local
		}
		s.channels[ch.ID] = ch
	}
	s.mux.Unlock()

	s.notify(Change{Topic: Channels, Key: serverID})
}

// Channel returns the channel with the ID.
func (s *Store) Channel(channelID string) (models.Channel, bool) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	ch, ok := s.channels[channelID]
	return ch, ok
}

// Channels returns the channels of a server ordered by position.
func (s *Store) Channels(serverID string) []models.Channel {
	s.mux.RLock()
	defer s.mux.RUnlock()

	var channels []models.Channel
	for _, ch := range s.channels {
		if ch.ServerID == serverID {
			channels = append(channels, ch)
		}
	}
	sort.Slice(channels, func(i, j int) bool {
		if channels[i].Position == channels[j].Position {
			return channels[i].ID < channels[j].ID
		}
		return channels[i].Position < channels[j].Position
	})
	return channels
}

// ChannelByGroup returns the channel bound to the group.
func (s *Store) ChannelByGroup(groupID string) (models.Channel, bool) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	for _, ch := range s.channels {
		if ch.GroupID == groupID {
			return ch, true
		}
	}
	return models.Channel{}, false
}

// SetChannelGroup binds a channel to a group. Binding to the group it is
// already bound to is a no-op; binding to another group fails.
func (s *Store) SetChannelGroup(channelID, groupID string) error {
	s.mux.Lock()
	ch, ok := s.channels[channelID]
	if !ok {
		s.mux.Unlock()
		return ErrChannelNotFound
	}
	if ch.GroupID == groupID {
		s.mux.Unlock()
		return nil
	}
	if ch.GroupID != "" {
		s.mux.Unlock()
		return ErrGroupAlreadySet
	}
	ch.GroupID = groupID
	s.channels[channelID] = ch
	s.mux.Unlock()

	jww.DEBUG.Printf("[STORE] Channel %s bound to group %s", channelID, groupID)
	s.notify(Change{Topic: Channels, Key: ch.ServerID})
	return nil
}

// SetMembers replaces the roster of a server.
func (s *Store) SetMembers(serverID string, members []models.ServerMember) {
	cp := make([]models.ServerMember, len(members))
	copy(cp, members)

	s.mux.Lock()
	s.members[serverID] = cp
	s.mux.Unlock()

	s.notify(Change{Topic: Members, Key: serverID})
}

// Members returns the roster of a server.
func (s *Store) Members(serverID string) []models.ServerMember {
	s.mux.RLock()
	defer s.mux.RUnlock()
	cp := make([]models.ServerMember, len(s.members[serverID]))
	copy(cp, s.members[serverID])
	return cp
}

// SetProfile caches a profile.
func (s *Store) SetProfile(p models.Profile) {
	key := wallet.Address(strings.ToLower(string(p.Wallet)))
	s.mux.Lock()
	s.profiles[key] = p
	s.mux.Unlock()

	s.notify(Change{Topic: Profiles, Key: string(key)})
}

// Profile returns the cached profile of the wallet.
func (s *Store) Profile(w wallet.Address) (models.Profile, bool) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	p, ok := s.profiles[wallet.Address(strings.ToLower(string(w)))]
	return p, ok
}
