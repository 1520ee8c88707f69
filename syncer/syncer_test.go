////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitlab.com/elixxir/chatsync/backend/sqlstore"
	"gitlab.com/elixxir/chatsync/groupChat"
	"gitlab.com/elixxir/chatsync/models"
	"gitlab.com/elixxir/chatsync/network/memnet"
	"gitlab.com/elixxir/chatsync/session"
	"gitlab.com/elixxir/chatsync/storage/versioned"
	"gitlab.com/elixxir/chatsync/store"
	"gitlab.com/elixxir/chatsync/wallet"
)

const (
	walletB wallet.Address = "0x00000000000000000000000000000000000000b2"
	walletC wallet.Address = "0x00000000000000000000000000000000000000c3"
)

type testEnv struct {
	syncer   *Syncer
	sessions *session.Manager
	sess     *session.Session
	net      *memnet.Network
	backend  *sqlstore.Store
	store    *store.Store
	serverID string
}

// newTestEnv seeds one server owned by the session's wallet with two channels,
// a provisioned member and a member without an inbox.
func newTestEnv(t *testing.T, params Params) *testEnv {
	ctx := context.Background()
	b, err := sqlstore.NewStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	self, err := wallet.NewLocal()
	require.NoError(t, err)

	seed := &sqlstore.Seed{
		Servers: []sqlstore.SeedServer{{
			Server: models.Server{Name: "Builders", Owner: self.Address(),
				CreatedAt: time.Unix(1000, 0)},
			Channels: []models.Channel{
				{Name: "general", Description: "Talk", IsDefault: true},
				{Name: "random"},
			},
			Members: []models.ServerMember{
				{Wallet: walletB, Role: models.Member},
				{Wallet: walletC, Role: models.Member},
			},
		}},
		Profiles: []models.Profile{{Wallet: walletB, DisplayName: "Bee"}},
	}
	require.NoError(t, b.Apply(ctx, seed))

	servers, err := b.ListServers(ctx, self.Address())
	require.NoError(t, err)
	require.Len(t, servers, 1)

	n := memnet.New()
	n.Provision(walletB.Identifier())
	s := store.New()
	sessions := session.NewManager(n, s, session.GetDefaultParams())
	sess, err := sessions.Connect(ctx, self)
	require.NoError(t, err)

	gcParams := groupChat.GetDefaultParams()
	gcParams.LookupRate = 1000
	groups := groupChat.NewManager(b, s, versioned.NewMemKV(), gcParams)

	syncer, err := NewSyncer(b, s, groups, params)
	require.NoError(t, err)

	return &testEnv{
		syncer:   syncer,
		sessions: sessions,
		sess:     sess,
		net:      n,
		backend:  b,
		store:    s,
		serverID: servers[0].ID,
	}
}

// Tests that a pass loads the server into the store, binds every channel to a
// group and adds the reachable members, and that a second pass changes
// nothing.
func TestSyncer_Pass(t *testing.T) {
	e := newTestEnv(t, GetDefaultParams())
	ctx := context.Background()

	_, ok := e.syncer.LastReport()
	require.False(t, ok)

	report, err := e.syncer.Pass(ctx, e.sess)
	require.NoError(t, err)
	require.Equal(t, 1, report.Servers)
	require.Equal(t, 2, report.Channels)
	require.Equal(t, 2, report.Added)
	require.Zero(t, report.Failed)
	require.Zero(t, report.Skipped)

	require.Len(t, e.store.Servers(), 1)
	require.Len(t, e.store.Members(e.serverID), 3)
	p, ok := e.store.Profile(walletB)
	require.True(t, ok)
	require.Equal(t, "Bee", p.DisplayName)

	bInbox := e.net.Provision(walletB.Identifier())
	channels, err := e.backend.ListChannels(ctx, e.serverID)
	require.NoError(t, err)
	for _, ch := range channels {
		require.True(t, ch.HasGroup(), "channel %s has no group", ch.Name)

		cached, ok := e.store.Channel(ch.ID)
		require.True(t, ok)
		require.Equal(t, ch.GroupID, cached.GroupID)

		members := e.net.GroupMembers(ch.GroupID)
		require.Len(t, members, 2)
		require.Contains(t, members, bInbox)
		require.Contains(t, members, e.sess.InboxID())
	}
	require.Equal(t, 2, e.net.GroupsCreated())

	report, err = e.syncer.Pass(ctx, e.sess)
	require.NoError(t, err)
	require.Zero(t, report.Added)
	require.Equal(t, 2, e.net.GroupsCreated())

	last, ok := e.syncer.LastReport()
	require.True(t, ok)
	require.Equal(t, report, last)
}

// Tests that a member provisioned after the first pass is added by the next.
func TestSyncer_Pass_LateProvisioning(t *testing.T) {
	e := newTestEnv(t, GetDefaultParams())
	ctx := context.Background()

	_, err := e.syncer.Pass(ctx, e.sess)
	require.NoError(t, err)

	cInbox := e.net.Provision(walletC.Identifier())
	report, err := e.syncer.Pass(ctx, e.sess)
	require.NoError(t, err)
	require.Equal(t, 2, report.Added)

	for _, ch := range e.store.Channels(e.serverID) {
		require.Contains(t, e.net.GroupMembers(ch.GroupID), cInbox)
	}
}

// Tests that a failing channel is counted and the others are still synced.
func TestSyncer_Pass_ChannelFailure(t *testing.T) {
	e := newTestEnv(t, GetDefaultParams())

	e.net.FailNext(memnet.OpCreateGroup, context.DeadlineExceeded)
	report, err := e.syncer.Pass(context.Background(), e.sess)
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
	require.Equal(t, 1, report.Added)
	require.Equal(t, 1, e.net.GroupsCreated())
}

// Tests that a pass fails if the servers cannot be listed.
func TestSyncer_Pass_Cancelled(t *testing.T) {
	e := newTestEnv(t, GetDefaultParams())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.syncer.Pass(ctx, e.sess)
	require.Error(t, err)
	require.Empty(t, e.store.Servers())
}

// Tests that Start runs a pass immediately and stops with the session.
func TestSyncer_Start(t *testing.T) {
	params := GetDefaultParams()
	params.Schedule = "0 0 1 1 *"
	e := newTestEnv(t, params)

	stop := e.syncer.Start(e.sess)
	require.Eventually(t, func() bool {
		_, ok := e.syncer.LastReport()
		return ok
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, e.sessions.Disconnect())
	require.NoError(t, stop.WaitForStopped(time.Second))
}

func TestNewSyncer_InvalidSchedule(t *testing.T) {
	params := GetDefaultParams()
	params.Schedule = "every tuesday"
	_, err := NewSyncer(nil, store.New(), nil, params)
	if err == nil {
		t.Errorf("NewSyncer accepted schedule %q.", params.Schedule)
	}
}

func TestGetParameters(t *testing.T) {
	p, err := GetParameters("")
	require.NoError(t, err)
	require.Equal(t, GetDefaultParams(), p)

	p, err = GetParameters(`{"Schedule": "0 * * * *", "RunOnStart": false}`)
	require.NoError(t, err)
	require.Equal(t, "0 * * * *", p.Schedule)
	require.False(t, p.RunOnStart)
	require.Equal(t, defaultPassTimeout, p.PassTimeout)

	_, err = GetParameters("{")
	require.Error(t, err)
}
