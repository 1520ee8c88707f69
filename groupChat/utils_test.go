////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package groupChat

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/elixxir/chatsync/backend"
	"gitlab.com/elixxir/chatsync/models"
	"gitlab.com/elixxir/chatsync/network/memnet"
	"gitlab.com/elixxir/chatsync/session"
	"gitlab.com/elixxir/chatsync/storage/versioned"
	"gitlab.com/elixxir/chatsync/store"
	"gitlab.com/elixxir/chatsync/wallet"
)

// fakeBackend is an in-memory backend.Backend with an injectable update
// failure.
type fakeBackend struct {
	servers   []models.Server
	channels  map[string]models.Channel
	members   map[string][]models.ServerMember
	updateErr error
	updates   int
	mux       sync.Mutex
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		channels: make(map[string]models.Channel),
		members:  make(map[string][]models.ServerMember),
	}
}

func (b *fakeBackend) addChannel(ch models.Channel) {
	b.mux.Lock()
	defer b.mux.Unlock()
	b.channels[ch.ID] = ch
}

func (b *fakeBackend) setMembers(serverID string, wallets ...wallet.Address) {
	b.mux.Lock()
	defer b.mux.Unlock()
	members := make([]models.ServerMember, len(wallets))
	for i, w := range wallets {
		members[i] = models.ServerMember{ServerID: serverID, Wallet: w,
			Role: models.Member}
	}
	b.members[serverID] = members
}

func (b *fakeBackend) failUpdates(err error) {
	b.mux.Lock()
	defer b.mux.Unlock()
	b.updateErr = err
}

func (b *fakeBackend) ListServers(context.Context, wallet.Address) (
	[]models.Server, error) {
	b.mux.Lock()
	defer b.mux.Unlock()
	return b.servers, nil
}

func (b *fakeBackend) ListChannels(_ context.Context, serverID string) (
	[]models.Channel, error) {
	b.mux.Lock()
	defer b.mux.Unlock()
	var list []models.Channel
	for _, ch := range b.channels {
		if ch.ServerID == serverID {
			list = append(list, ch)
		}
	}
	return list, nil
}

func (b *fakeBackend) GetChannel(_ context.Context, channelID string) (
	models.Channel, error) {
	b.mux.Lock()
	defer b.mux.Unlock()
	ch, exists := b.channels[channelID]
	if !exists {
		return models.Channel{}, backend.ErrNotFound
	}
	return ch, nil
}

func (b *fakeBackend) ListMembers(_ context.Context, serverID string) (
	[]models.ServerMember, error) {
	b.mux.Lock()
	defer b.mux.Unlock()
	return b.members[serverID], nil
}

func (b *fakeBackend) GetProfile(_ context.Context, w wallet.Address) (
	models.Profile, error) {
	return models.Profile{Wallet: w}, nil
}

func (b *fakeBackend) UpdateChannelGroup(_ context.Context, channelID,
	groupID string, _ wallet.Address) error {
	b.mux.Lock()
	defer b.mux.Unlock()
	b.updates++
	if b.updateErr != nil {
		return b.updateErr
	}
	ch, exists := b.channels[channelID]
	if !exists {
		return backend.ErrNotFound
	}
	if ch.HasGroup() && ch.GroupID != groupID {
		return backend.ErrGroupAlreadySet
	}
	ch.GroupID = groupID
	b.channels[channelID] = ch
	return nil
}

func (b *fakeBackend) channel(channelID string) models.Channel {
	b.mux.Lock()
	defer b.mux.Unlock()
	return b.channels[channelID]
}

// testEnv is a connected session over an in-memory network.
type testEnv struct {
	m       *Manager
	sess    *session.Session
	net     *memnet.Network
	backend *fakeBackend
	store   *store.Store
	kv      *versioned.KV
	self    *wallet.Local
}

func newTestEnv(t *testing.T) *testEnv {
	n := memnet.New()
	s := store.New()
	b := newFakeBackend()
	kv := versioned.NewMemKV()

	self, err := wallet.NewLocal()
	require.NoError(t, err)

	sess, err := session.NewManager(n, s, session.GetDefaultParams()).
		Connect(context.Background(), self)
	require.NoError(t, err)

	params := GetDefaultParams()
	params.LookupRate = 1000

	return &testEnv{
		m:       NewManager(b, s, kv, params),
		sess:    sess,
		net:     n,
		backend: b,
		store:   s,
		kv:      kv,
		self:    self,
	}
}

// channel registers a channel without a group with the backend and the store.
func (e *testEnv) channel(id, serverID, name string) models.Channel {
	ch := models.Channel{ID: id, ServerID: serverID, Name: name,
		Description: name + " channel"}
	e.backend.addChannel(ch)
	e.store.SetChannels(serverID, append(e.store.Channels(serverID), ch))
	return ch
}

// provision gives the wallet an inbox on the network.
func (e *testEnv) provision(w wallet.Address) {
	e.net.Provision(w.Identifier())
}
