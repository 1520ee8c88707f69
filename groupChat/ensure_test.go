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
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"gitlab.com/elixxir/chatsync/network"
	"gitlab.com/elixxir/chatsync/network/memnet"
	"gitlab.com/elixxir/chatsync/store"
)

// Tests that concurrent and repeated calls for one channel create exactly one
// group and bind it everywhere.
func TestManager_EnsureGroup_Idempotent(t *testing.T) {
	e := newTestEnv(t)
	ch := e.channel("c1", "srv", "general")

	const callers = 8
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = e.m.EnsureGroup(
				context.Background(), e.sess, ch, e.self.Address())
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i])
	}
	require.Equal(t, 1, e.net.GroupsCreated())
	require.Equal(t, ids[0], e.backend.channel("c1").GroupID)

	cached, ok := e.store.Channel("c1")
	require.True(t, ok)
	require.Equal(t, ids[0], cached.GroupID)

	g, err := e.m.GetGroup(context.Background(), e.sess, ids[0])
	require.NoError(t, err)
	require.Equal(t, "general", g.Name())
	require.Equal(t, "general channel", g.Description())
	require.Equal(t, network.AdminGatedPolicy(), g.Policy())

	// A channel that carries its reference makes no network call
	creates := e.net.Calls(memnet.OpCreateGroup)
	gid, err := e.m.EnsureGroup(context.Background(), e.sess, cached,
		e.self.Address())
	require.NoError(t, err)
	require.Equal(t, ids[0], gid)
	require.Equal(t, creates, e.net.Calls(memnet.OpCreateGroup))
	require.Equal(t, 1, e.net.Calls(memnet.OpGetByID))
}

// Tests that a reference bound elsewhere is found by the re-check.
func TestManager_EnsureGroup_ReCheck(t *testing.T) {
	e := newTestEnv(t)
	ch := e.channel("c1", "srv", "general")

	bound := ch
	bound.GroupID = "remote-group"
	e.backend.addChannel(bound)

	gid, err := e.m.EnsureGroup(context.Background(), e.sess, ch, e.self.Address())
	require.NoError(t, err)
	require.Equal(t, "remote-group", gid)
	require.Zero(t, e.net.GroupsCreated())

	cached, _ := e.store.Channel("c1")
	require.Equal(t, "remote-group", cached.GroupID)
}

// Tests that a failed reference write still returns the group, and that the
// next call retries the write instead of creating another group, even from a
// new manager over the same KV.
func TestManager_EnsureGroup_PendingWrite(t *testing.T) {
	e := newTestEnv(t)
	ch := e.channel("c1", "srv", "general")
	e.backend.failUpdates(errors.New("database is locked"))

	gid, err := e.m.EnsureGroup(context.Background(), e.sess, ch, e.self.Address())
	require.NoError(t, err)
	require.NotEmpty(t, gid)
	require.Empty(t, e.backend.channel("c1").GroupID)

	pw, exists, err := e.m.pending.get("c1")
	require.NoError(t, err)
	require.True(t, exists)
	require.Equal(t, gid, pw.GroupID)
	require.Equal(t, e.self.Address(), pw.Actor)

	e.backend.failUpdates(nil)
	restarted := NewManager(e.backend, store.New(), e.kv, GetDefaultParams())
	retried, err := restarted.EnsureGroup(
		context.Background(), e.sess, ch, e.self.Address())
	require.NoError(t, err)
	require.Equal(t, gid, retried)
	require.Equal(t, 1, e.net.GroupsCreated())
	require.Equal(t, gid, e.backend.channel("c1").GroupID)

	_, exists, err = restarted.pending.get("c1")
	require.NoError(t, err)
	require.False(t, exists)
}

// Tests that losing the binding race adopts the winning group.
func TestManager_EnsureGroup_LostRace(t *testing.T) {
	e := newTestEnv(t)
	ch := e.channel("c1", "srv", "general")

	// The other process binds the channel while the group is being created
	e.net.SetHook(memnet.OpCreateGroup, func(context.Context, string) error {
		bound := ch
		bound.GroupID = "winner"
		e.backend.addChannel(bound)
		return nil
	})

	gid, err := e.m.EnsureGroup(context.Background(), e.sess, ch, e.self.Address())
	require.NoError(t, err)
	require.Equal(t, "winner", gid)

	_, exists, err := e.m.pending.get("c1")
	require.NoError(t, err)
	require.False(t, exists)
}

// Tests that a caller giving up on a shared creation neither fails the
// creation nor the other callers waiting on it.
func TestManager_EnsureGroup_CallerCancelled(t *testing.T) {
	e := newTestEnv(t)
	ch := e.channel("c1", "srv", "general")

	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	e.net.SetHook(memnet.OpCreateGroup, func(ctx context.Context, _ string) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := e.m.EnsureGroup(ctx, e.sess, ch, e.self.Address())
		firstErr <- err
	}()
	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for group creation to start.")
	}

	var gid string
	var secondErr error
	second := make(chan struct{})
	go func() {
		defer close(second)
		gid, secondErr = e.m.EnsureGroup(
			context.Background(), e.sess, ch, e.self.Address())
	}()

	cancel()
	select {
	case err := <-firstErr:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Cancelled caller did not return.")
	}

	close(release)
	select {
	case <-second:
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for the second caller.")
	}
	require.NoError(t, secondErr)
	require.NotEmpty(t, gid)
	require.Equal(t, gid, e.backend.channel("c1").GroupID)
	require.Equal(t, 1, e.net.GroupsCreated())
}

// Tests that a creation failure is returned and nothing is bound.
func TestManager_EnsureGroup_CreateFails(t *testing.T) {
	e := newTestEnv(t)
	ch := e.channel("c1", "srv", "general")
	e.net.FailNext(memnet.OpCreateGroup, errors.New("network down"))

	_, err := e.m.EnsureGroup(context.Background(), e.sess, ch, e.self.Address())
	require.Error(t, err)
	require.Empty(t, e.backend.channel("c1").GroupID)

	gid, err := e.m.EnsureGroup(context.Background(), e.sess, ch, e.self.Address())
	require.NoError(t, err)
	require.Equal(t, gid, e.backend.channel("c1").GroupID)
}

// Tests that metadata failures do not fail the creation.
func TestManager_EnsureGroup_MetadataFails(t *testing.T) {
	e := newTestEnv(t)
	ch := e.channel("c1", "srv", "general")
	e.net.FailNext(memnet.OpUpdateName, errors.New("rejected"))
	e.net.FailNext(memnet.OpUpdateDescription, errors.New("rejected"))

	gid, err := e.m.EnsureGroup(context.Background(), e.sess, ch, e.self.Address())
	require.NoError(t, err)
	require.Equal(t, gid, e.backend.channel("c1").GroupID)
}

// Tests that a deleted channel is not given a group.
func TestManager_EnsureGroup_ChannelGone(t *testing.T) {
	e := newTestEnv(t)
	ch := e.channel("c1", "srv", "general")
	ch.ID = "deleted"

	_, err := e.m.EnsureGroup(context.Background(), e.sess, ch, e.self.Address())
	require.Error(t, err)
	require.Zero(t, e.net.GroupsCreated())
}

// Tests that a direct message is not returned as a group.
func TestManager_GetGroup_NotGroup(t *testing.T) {
	e := newTestEnv(t)
	other := e.net.Provision(network.Identifier{Kind: network.Ethereum,
		Value: "0x00000000000000000000000000000000000000aa"})
	dm := e.net.CreateDM(e.sess.InboxID(), other)

	_, err := e.m.GetGroup(context.Background(), e.sess, dm)
	require.ErrorIs(t, err, ErrNotGroup)

	_, err = e.m.GetGroup(context.Background(), e.sess, "unknown")
	require.ErrorIs(t, err, ErrGroupNotFound)
}

func TestGetParameters(t *testing.T) {
	p, err := GetParameters(`{"LookupRate": 3}`)
	require.NoError(t, err)
	require.Equal(t, 3, p.LookupRate)
	require.True(t, p.Prefilter)
	require.Equal(t, defaultCreateTimeout, p.CreateTimeout)

	_, err = GetParameters("{")
	require.Error(t, err)
}
