////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"gitlab.com/elixxir/chatsync/backend"
	"gitlab.com/elixxir/chatsync/models"
	"gitlab.com/elixxir/chatsync/wallet"
)

const (
	owner    wallet.Address = "0x00000000000000000000000000000000000000a1"
	member   wallet.Address = "0x00000000000000000000000000000000000000b2"
	stranger wallet.Address = "0x00000000000000000000000000000000000000c3"
)

const seedYAML = `
servers:
  - id: srv
    name: Builders
    description: A server
    owner: "0x00000000000000000000000000000000000000A1"
    createdAt: 2022-01-01T00:00:00Z
    channels:
      - id: general
        name: general
        isDefault: true
      - id: random
        name: random
        position: 5
    members:
      - wallet: "0x00000000000000000000000000000000000000b2"
        role: member
        nickname: bee
  - name: Other
    owner: "0x00000000000000000000000000000000000000b2"
    createdAt: 2023-01-01T00:00:00Z
profiles:
  - wallet: "0x00000000000000000000000000000000000000b2"
    displayName: Bee
`

func newTestStore(t *testing.T) *Store {
	s, err := NewStore("")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	seed, err := ParseSeed([]byte(seedYAML))
	require.NoError(t, err)
	require.NoError(t, s.Apply(context.Background(), seed))
	return s
}

// Tests the reads over a seeded store.
func TestStore_Reads(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	servers, err := s.ListServers(ctx, owner)
	require.NoError(t, err)
	require.Len(t, servers, 1)
	require.Equal(t, "Builders", servers[0].Name)
	require.Equal(t, owner, servers[0].Owner)

	servers, err = s.ListServers(ctx, "0x00000000000000000000000000000000000000B2")
	require.NoError(t, err)
	require.Len(t, servers, 2)
	require.Equal(t, "srv", servers[0].ID)
	require.NotEmpty(t, servers[1].ID)

	channels, err := s.ListChannels(ctx, "srv")
	require.NoError(t, err)
	require.Len(t, channels, 2)
	require.Equal(t, "general", channels[0].ID)
	require.True(t, channels[0].IsDefault)
	require.False(t, channels[0].HasGroup())

	members, err := s.ListMembers(ctx, "srv")
	require.NoError(t, err)
	require.Equal(t, []wallet.Address{owner, member}, models.Roster(members))
	require.Equal(t, models.Owner, members[0].Role)
	require.Equal(t, "bee", members[1].Nickname)

	p, err := s.GetProfile(ctx, member)
	require.NoError(t, err)
	require.Equal(t, "Bee", p.DisplayName)

	_, err = s.GetProfile(ctx, stranger)
	require.ErrorIs(t, err, backend.ErrNotFound)
	_, err = s.GetChannel(ctx, "missing")
	require.ErrorIs(t, err, backend.ErrNotFound)
}

// Tests that a channel's group reference is set once and never cleared or
// rebound, and only by members.
func TestStore_UpdateChannelGroup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.ErrorIs(t, s.UpdateChannelGroup(ctx, "general", "g1", stranger),
		backend.ErrForbidden)
	require.ErrorIs(t, s.UpdateChannelGroup(ctx, "missing", "g1", owner),
		backend.ErrNotFound)
	require.Error(t, s.UpdateChannelGroup(ctx, "general", "", owner))

	require.NoError(t, s.UpdateChannelGroup(ctx, "general", "g1", member))
	require.NoError(t, s.UpdateChannelGroup(ctx, "general", "g1", owner))
	require.ErrorIs(t, s.UpdateChannelGroup(ctx, "general", "g2", owner),
		backend.ErrGroupAlreadySet)

	ch, err := s.GetChannel(ctx, "general")
	require.NoError(t, err)
	require.Equal(t, "g1", ch.GroupID)
}

// Tests membership writes.
func TestStore_Members(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddMember(ctx, models.ServerMember{ServerID: "srv",
		Wallet: stranger}))
	require.NoError(t, s.AddMember(ctx, models.ServerMember{ServerID: "srv",
		Wallet: stranger, Role: models.Admin}))
	require.Error(t, s.AddMember(ctx, models.ServerMember{ServerID: "srv",
		Wallet: stranger, Role: "king"}))

	members, err := s.ListMembers(ctx, "srv")
	require.NoError(t, err)
	require.Len(t, members, 3)
	require.Equal(t, models.Admin, members[2].Role)

	require.NoError(t, s.RemoveMember(ctx, "srv", stranger))
	require.ErrorIs(t, s.RemoveMember(ctx, "srv", stranger), backend.ErrNotFound)
}

// Tests that a file database keeps its contents across opens.
func TestNewStore_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chatsync.db")
	s, err := NewStore(path)
	require.NoError(t, err)

	created, err := s.CreateServer(context.Background(), models.Server{
		Name: "persisted", Owner: owner, CreatedAt: time.Unix(100, 0)})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	servers, err := reopened.ListServers(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, servers, 1)
	require.Equal(t, created.ID, servers[0].ID)
}

func TestLoadSeed_Missing(t *testing.T) {
	_, err := LoadSeed(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = ParseSeed([]byte("servers: {"))
	require.Error(t, err)
}
