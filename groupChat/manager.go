////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package groupChat binds channels to network groups and keeps each group's
// membership in line with its server's roster.
package groupChat

import (
	"context"
	"sync"

	"github.com/golang-collections/collections/set"
	"github.com/pkg/errors"
	"go.uber.org/ratelimit"
	"golang.org/x/sync/singleflight"

	"gitlab.com/elixxir/chatsync/backend"
	"gitlab.com/elixxir/chatsync/network"
	"gitlab.com/elixxir/chatsync/session"
	"gitlab.com/elixxir/chatsync/storage/versioned"
	"gitlab.com/elixxir/chatsync/store"
)

var (
	// ErrGroupNotFound is returned when the client does not know the group.
	ErrGroupNotFound = errors.New("group not found")

	// ErrNotGroup is returned when the conversation is a direct message.
	ErrNotGroup = errors.New("conversation is not a group")

	// ErrNotProvisioned is returned when a wallet has no inbox.
	ErrNotProvisioned = errors.New("wallet has not provisioned messaging")
)

// Error messages.
const (
	getGroupErr = "failed to load group %s: %+v"
)

// Manager creates channel groups and reconciles their membership.
type Manager struct {
	backend backend.Backend
	store   *store.Store
	pending *pendingStore
	params  Params

	creating singleflight.Group
	limiter  ratelimit.Limiter

	inFlight    *set.Set
	inFlightMux sync.Mutex
}

// NewManager creates a new group chat manager. Pending group references are
// kept in the KV.
func NewManager(b backend.Backend, s *store.Store, kv *versioned.KV,
	params Params) *Manager {
	rate := params.LookupRate
	if rate <= 0 {
		rate = defaultLookupRate
	}

	return &Manager{
		backend:  b,
		store:    s,
		pending:  newPendingStore(kv),
		params:   params,
		limiter:  ratelimit.New(rate, ratelimit.WithoutSlack),
		inFlight: set.New(),
	}
}

// GetGroup returns the group with the ID as known to the session's client.
func (m *Manager) GetGroup(ctx context.Context, sess *session.Session,
	groupID string) (network.Group, error) {
	conv, exists, err := sess.Client().Conversations().GetByID(ctx, groupID)
	if err != nil {
		return nil, errors.Errorf(getGroupErr, groupID, err)
	}
	if !exists {
		return nil, errors.WithMessagef(ErrGroupNotFound, "group %s", groupID)
	}

	g, ok := conv.(network.Group)
	if !ok {
		return nil, errors.WithMessagef(ErrNotGroup, "conversation %s", groupID)
	}
	return g, nil
}

// begin marks the group as being reconciled. It returns false if it already
// was.
func (m *Manager) begin(groupID string) bool {
	m.inFlightMux.Lock()
	defer m.inFlightMux.Unlock()
	if m.inFlight.Has(groupID) {
		return false
	}
	m.inFlight.Insert(groupID)
	return true
}

func (m *Manager) end(groupID string) {
	m.inFlightMux.Lock()
	defer m.inFlightMux.Unlock()
	m.inFlight.Remove(groupID)
}
