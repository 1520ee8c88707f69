////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package groupChat

import (
	"context"
	"strings"

	"github.com/golang-collections/collections/set"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/chatsync/metrics"
	"gitlab.com/elixxir/chatsync/models"
	"gitlab.com/elixxir/chatsync/network"
	"gitlab.com/elixxir/chatsync/session"
	"gitlab.com/elixxir/chatsync/wallet"
)

// Error messages.
const (
	syncGroupErr     = "failed to sync group %s: %+v"
	listMembersErr   = "failed to list members of group %s: %+v"
	addMembersErr    = "failed to add %d members to group %s: %+v"
	resolveWalletErr = "failed to resolve inbox of %s: %+v"
	removeMemberErr  = "failed to remove %s from group %s: %+v"
	listRosterErr    = "failed to list roster of server %s: %+v"
)

// Result is the outcome of one membership reconciliation.
type Result struct {
	// Added is the number of inboxes added to the group.
	Added int

	// Skipped is true if another reconciliation of the group was running and
	// nothing was done.
	Skipped bool
}

// RemoveReport lists per group the outcome of removing a wallet.
type RemoveReport struct {
	Removed []string
	Failed  map[string]error
}

// ReconcileMembers adds every roster wallet missing from the group. Wallets
// that cannot be resolved to an inbox are skipped. Members absent from the
// roster are never removed. If a reconciliation of the same group is already
// running, it returns a skipped Result without touching the network.
func (m *Manager) ReconcileMembers(ctx context.Context, sess *session.Session,
	g network.Group, roster []wallet.Address) (Result, error) {
	groupID := g.ID()
	if !m.begin(groupID) {
		jww.DEBUG.Printf("[GC] Reconciliation of group %s already running",
			groupID)
		metrics.Reconciliations.WithLabelValues(metrics.Skipped).Inc()
		return Result{Skipped: true}, nil
	}
	defer m.end(groupID)

	added, err := m.reconcile(ctx, sess, g, roster)
	if err != nil {
		metrics.Reconciliations.WithLabelValues(metrics.Failed).Inc()
		return Result{}, err
	}
	metrics.Reconciliations.WithLabelValues(metrics.Success).Inc()
	return Result{Added: added}, nil
}

func (m *Manager) reconcile(ctx context.Context, sess *session.Session,
	g network.Group, roster []wallet.Address) (int, error) {
	if err := g.Sync(ctx); err != nil {
		return 0, errors.Errorf(syncGroupErr, g.ID(), err)
	}

	members, err := g.Members(ctx)
	if err != nil {
		return 0, errors.Errorf(listMembersErr, g.ID(), err)
	}

	present := set.New()
	inboxes := set.New()
	for _, member := range members {
		inboxes.Insert(member.InboxID)
		for _, ident := range member.AccountIdentifiers {
			if ident.Kind == network.Ethereum {
				present.Insert(strings.ToLower(ident.Value))
			}
		}
	}

	missing := missingWallets(roster, present)
	if len(missing) == 0 {
		jww.DEBUG.Printf("[GC] Group %s matches its roster", g.ID())
		return 0, nil
	}

	missing = m.reachable(ctx, sess, missing)

	var toAdd []network.InboxID
	for _, w := range missing {
		if err = ctx.Err(); err != nil {
			return 0, err
		}
		inbox, ok, resolveErr := m.resolve(ctx, sess, w)
		if resolveErr != nil {
			return 0, resolveErr
		}
		if !ok || inboxes.Has(inbox) {
			continue
		}
		inboxes.Insert(inbox)
		toAdd = append(toAdd, inbox)
	}

	if len(toAdd) == 0 {
		return 0, nil
	}

	if err = g.AddMembers(ctx, toAdd); err != nil {
		return 0, errors.Errorf(addMembersErr, len(toAdd), g.ID(), err)
	}
	metrics.MembersAdded.Add(float64(len(toAdd)))
	jww.INFO.Printf("[GC] Added %d members to group %s", len(toAdd), g.ID())
	return len(toAdd), nil
}

// missingWallets returns the roster wallets not in present, in roster order
// and without duplicates.
func missingWallets(roster []wallet.Address, present *set.Set) []wallet.Address {
	seen := set.New()
	var missing []wallet.Address
	for _, w := range roster {
		key := strings.ToLower(string(w))
		if key == "" || seen.Has(key) || present.Has(key) {
			continue
		}
		seen.Insert(key)
		missing = append(missing, wallet.Address(key))
	}
	return missing
}

// reachable drops the wallets the network reports as not provisioned. If the
// batch check fails every wallet is kept.
func (m *Manager) reachable(ctx context.Context, sess *session.Session,
	wallets []wallet.Address) []wallet.Address {
	if !m.params.Prefilter {
		return wallets
	}

	idents := make([]network.Identifier, len(wallets))
	for i, w := range wallets {
		idents[i] = w.Identifier()
	}

	can, err := sess.Client().CanMessage(ctx, idents)
	if err != nil {
		jww.WARN.Printf("[GC] Reachability check failed, resolving all %d "+
			"wallets: %+v", len(wallets), err)
		return wallets
	}

	kept := wallets[:0]
	for _, w := range wallets {
		if can[strings.ToLower(string(w))] {
			kept = append(kept, w)
		} else {
			jww.DEBUG.Printf("[GC] Skipping %s: not provisioned", w)
		}
	}
	return kept
}

// resolve looks up the wallet's inbox, paced by the lookup rate. Lookup
// failures skip the wallet. An error is only returned if the context ended
// while waiting on the limiter.
func (m *Manager) resolve(ctx context.Context, sess *session.Session,
	w wallet.Address) (network.InboxID, bool, error) {
	m.limiter.Take()
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	inbox, exists, err := sess.Client().FetchInboxIDByIdentifier(ctx, w.Identifier())
	if err != nil {
		jww.WARN.Printf("[GC] Skipping %s: "+resolveWalletErr, w, w, err)
		return "", false, nil
	}
	if !exists {
		jww.DEBUG.Printf("[GC] Skipping %s: not provisioned", w)
		return "", false, nil
	}
	return inbox, true, nil
}

// RemoveMember removes the wallet from every group. If the wallet cannot be
// resolved nothing is attempted and an error is returned. Otherwise each
// group is handled on its own and failures are listed in the report.
func (m *Manager) RemoveMember(ctx context.Context, sess *session.Session,
	groupIDs []string, w wallet.Address) (RemoveReport, error) {
	inbox, exists, err := sess.Client().FetchInboxIDByIdentifier(ctx, w.Identifier())
	if err != nil {
		return RemoveReport{}, errors.Errorf(resolveWalletErr, w, err)
	}
	if !exists {
		return RemoveReport{}, errors.WithMessagef(ErrNotProvisioned, "wallet %s", w)
	}

	report := RemoveReport{Failed: make(map[string]error)}
	for _, groupID := range groupIDs {
		if err = m.removeFrom(ctx, sess, groupID, inbox); err != nil {
			jww.WARN.Printf("[GC] "+removeMemberErr, w, groupID, err)
			report.Failed[groupID] = err
			metrics.MembersRemoved.WithLabelValues(metrics.Failed).Inc()
			continue
		}
		report.Removed = append(report.Removed, groupID)
		metrics.MembersRemoved.WithLabelValues(metrics.Success).Inc()
	}

	jww.INFO.Printf("[GC] Removed %s from %d of %d groups", w,
		len(report.Removed), len(groupIDs))
	return report, nil
}

func (m *Manager) removeFrom(ctx context.Context, sess *session.Session,
	groupID string, inbox network.InboxID) error {
	g, err := m.GetGroup(ctx, sess, groupID)
	if err != nil {
		return err
	}
	return g.RemoveMembers(ctx, []network.InboxID{inbox})
}

// SyncChannel ensures the channel has a group, refreshes the server's roster
// and reconciles the group against it.
func (m *Manager) SyncChannel(ctx context.Context, sess *session.Session,
	ch models.Channel, actor wallet.Address) (Result, error) {
	groupID, err := m.EnsureGroup(ctx, sess, ch, actor)
	if err != nil {
		return Result{}, err
	}

	members, err := m.backend.ListMembers(ctx, ch.ServerID)
	if err != nil {
		return Result{}, errors.Errorf(listRosterErr, ch.ServerID, err)
	}
	m.store.SetMembers(ch.ServerID, members)

	g, err := m.GetGroup(ctx, sess, groupID)
	if err != nil {
		return Result{}, err
	}
	return m.ReconcileMembers(ctx, sess, g, models.Roster(members))
}
