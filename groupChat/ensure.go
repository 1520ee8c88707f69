////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package groupChat

import (
	"context"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/chatsync/backend"
	"gitlab.com/elixxir/chatsync/metrics"
	"gitlab.com/elixxir/chatsync/models"
	"gitlab.com/elixxir/chatsync/network"
	"gitlab.com/elixxir/chatsync/session"
	"gitlab.com/elixxir/chatsync/store"
	"gitlab.com/elixxir/chatsync/wallet"
)

// Error messages.
const (
	createGroupErr  = "failed to create group for channel %s: %+v"
	channelGoneErr  = "channel %s no longer exists"
	persistGroupErr = "failed to persist group %s of channel %s: %+v"
	updateNameErr   = "failed to set name of group %s: %+v"
	updateDescErr   = "failed to set description of group %s: %+v"
)

// EnsureGroup returns the group of the channel, creating and binding one if
// the channel has none. A channel that already carries a reference returns it
// without any network call. Concurrent calls for one channel share a single
// creation, which runs under its own CreateTimeout so that one caller giving
// up does not fail the others. A caller whose context ends stops waiting.
//
// If the group was created but its reference could not be written to the
// backing store, the group ID is still returned and the write is retried by
// the next EnsureGroup for the channel.
func (m *Manager) EnsureGroup(ctx context.Context, sess *session.Session,
	ch models.Channel, actor wallet.Address) (string, error) {
	if ch.HasGroup() {
		return ch.GroupID, nil
	}

	done := m.creating.DoChan(ch.ID, func() (interface{}, error) {
		createCtx, cancel := context.WithTimeout(context.Background(),
			m.createTimeout())
		defer cancel()
		return m.ensureGroup(createCtx, sess, ch, actor)
	})

	select {
	case r := <-done:
		if r.Err != nil {
			return "", r.Err
		}
		if r.Shared {
			jww.TRACE.Printf("[GC] Shared group creation for channel %s", ch.ID)
		}
		return r.Val.(string), nil
	case <-ctx.Done():
		jww.DEBUG.Printf("[GC] Stopped waiting on group creation for "+
			"channel %s: %+v", ch.ID, ctx.Err())
		return "", ctx.Err()
	}
}

func (m *Manager) createTimeout() time.Duration {
	if m.params.CreateTimeout <= 0 {
		return defaultCreateTimeout
	}
	return m.params.CreateTimeout
}

func (m *Manager) ensureGroup(ctx context.Context, sess *session.Session,
	ch models.Channel, actor wallet.Address) (string, error) {
	pw, exists, err := m.pending.get(ch.ID)
	if err != nil {
		jww.WARN.Printf("[GC] %+v", err)
	} else if exists {
		jww.INFO.Printf("[GC] Retrying pending reference of channel %s to "+
			"group %s", ch.ID, pw.GroupID)
		return m.bind(ctx, ch.ID, pw.GroupID, actor), nil
	}

	groupID, found, err := m.lookup(ctx, ch.ID)
	if err != nil {
		return "", err
	} else if found {
		return groupID, nil
	}

	g, err := sess.Client().Conversations().CreateGroup(ctx, nil,
		network.GroupOptions{Policy: network.AdminGatedPolicy()})
	if err != nil {
		return "", errors.Errorf(createGroupErr, ch.ID, err)
	}
	metrics.GroupsCreated.Inc()
	jww.INFO.Printf("[GC] Created group %s for channel %s", g.ID(), ch.ID)

	m.updateMetadata(ctx, g, ch)
	return m.bind(ctx, ch.ID, g.ID(), actor), nil
}

// lookup re-reads the channel's reference from the store and then the backing
// store. Backing store failures other than a deleted channel are logged.
func (m *Manager) lookup(ctx context.Context, channelID string) (
	string, bool, error) {
	if cached, ok := m.store.Channel(channelID); ok && cached.HasGroup() {
		return cached.GroupID, true, nil
	}

	remote, err := m.backend.GetChannel(ctx, channelID)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			return "", false, errors.WithMessagef(err, channelGoneErr, channelID)
		}
		jww.WARN.Printf("[GC] Could not re-check channel %s: %+v", channelID, err)
		return "", false, nil
	}

	if remote.HasGroup() {
		m.setStore(channelID, remote.GroupID)
		return remote.GroupID, true, nil
	}
	return "", false, nil
}

// bind writes the reference to the backing store and the store. It returns
// the group the channel ends up bound to, which is another group if a
// different process bound the channel first.
func (m *Manager) bind(ctx context.Context, channelID, groupID string,
	actor wallet.Address) string {
	err := m.backend.UpdateChannelGroup(ctx, channelID, groupID, actor)
	switch {
	case err == nil:
		m.clearPending(channelID)
	case errors.Is(err, backend.ErrGroupAlreadySet):
		winner, getErr := m.backend.GetChannel(ctx, channelID)
		if getErr != nil || !winner.HasGroup() {
			m.recordPending(channelID, groupID, actor, err)
			break
		}
		jww.WARN.Printf("[GC] Channel %s was bound to group %s first, group "+
			"%s is unused", channelID, winner.GroupID, groupID)
		m.clearPending(channelID)
		groupID = winner.GroupID
	default:
		m.recordPending(channelID, groupID, actor, err)
	}

	m.setStore(channelID, groupID)
	return groupID
}

func (m *Manager) recordPending(channelID, groupID string,
	actor wallet.Address, cause error) {
	jww.ERROR.Printf("[GC] "+persistGroupErr, groupID, channelID, cause)
	metrics.PendingWrites.Inc()

	pw := pendingWrite{ChannelID: channelID, GroupID: groupID, Actor: actor}
	if err := m.pending.set(pw); err != nil {
		jww.ERROR.Printf("[GC] %+v", err)
	}
}

func (m *Manager) clearPending(channelID string) {
	if err := m.pending.remove(channelID); err != nil {
		jww.TRACE.Printf("[GC] No pending group removed for channel %s: %+v",
			channelID, err)
	}
}

func (m *Manager) setStore(channelID, groupID string) {
	err := m.store.SetChannelGroup(channelID, groupID)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrChannelNotFound):
		jww.DEBUG.Printf("[GC] Channel %s is not loaded, group %s not cached",
			channelID, groupID)
	default:
		jww.WARN.Printf("[GC] Failed to cache group %s of channel %s: %+v",
			groupID, channelID, err)
	}
}

// updateMetadata mirrors the channel's name and description onto the group.
// Failures are logged.
func (m *Manager) updateMetadata(ctx context.Context, g network.Group,
	ch models.Channel) {
	if ch.Name != "" {
		if err := g.UpdateName(ctx, ch.Name); err != nil {
			jww.WARN.Printf("[GC] "+updateNameErr, g.ID(), err)
		}
	}
	if ch.Description != "" {
		if err := g.UpdateDescription(ctx, ch.Description); err != nil {
			jww.WARN.Printf("[GC] "+updateDescErr, g.ID(), err)
		}
	}
}
