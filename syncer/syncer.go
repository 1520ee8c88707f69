////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package syncer periodically loads the wallet's servers into the store and
// reconciles the group of every channel against its server's roster.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gitlab.com/xx_network/primitives/netTime"

	"gitlab.com/elixxir/chatsync/backend"
	"gitlab.com/elixxir/chatsync/groupChat"
	"gitlab.com/elixxir/chatsync/metrics"
	"gitlab.com/elixxir/chatsync/models"
	"gitlab.com/elixxir/chatsync/session"
	"gitlab.com/elixxir/chatsync/stoppable"
	"gitlab.com/elixxir/chatsync/store"
	"gitlab.com/elixxir/chatsync/wallet"
)

// Error messages.
const (
	invalidScheduleErr = "invalid sync schedule %q"
	listServersErr     = "failed to list servers of %s: %+v"
	listChannelsErr    = "failed to list channels of server %s: %+v"
	listMembersErr     = "failed to list members of server %s: %+v"
	channelErr         = "failed to sync channel %s: %+v"
)

// Report summarizes one pass.
type Report struct {
	Servers  int
	Channels int
	Added    int
	Skipped  int
	Failed   int
	Finished time.Time
}

// Syncer runs reconciliation passes for a session.
type Syncer struct {
	backend backend.Backend
	store   *store.Store
	groups  *groupChat.Manager
	params  Params

	last    Report
	hasLast bool
	mux     sync.Mutex
}

// NewSyncer returns a Syncer. It fails if the schedule is not a valid cron
// expression.
func NewSyncer(b backend.Backend, s *store.Store, groups *groupChat.Manager,
	params Params) (*Syncer, error) {
	if params.Schedule == "" {
		params.Schedule = defaultSchedule
	}
	if !gronx.IsValid(params.Schedule) {
		return nil, errors.Errorf(invalidScheduleErr, params.Schedule)
	}
	if params.PassTimeout <= 0 {
		params.PassTimeout = defaultPassTimeout
	}

	return &Syncer{
		backend: b,
		store:   s,
		groups:  groups,
		params:  params,
	}, nil
}

// Pass loads the servers of the session's wallet, their channels, members and
// member profiles into the store, then binds every channel to a group and
// adds missing roster members to it. A failing channel is counted and the
// pass continues; only failing to list servers ends it early.
func (s *Syncer) Pass(ctx context.Context, sess *session.Session) (Report, error) {
	start := netTime.Now()
	address := sess.Address()
	metrics.SyncPasses.Inc()

	servers, err := s.backend.ListServers(ctx, address)
	if err != nil {
		return Report{}, errors.Errorf(listServersErr, address, err)
	}
	s.store.SetServers(servers)

	report := Report{Servers: len(servers)}
	for _, srv := range servers {
		if err = ctx.Err(); err != nil {
			return report, err
		}
		s.syncServer(ctx, sess, srv, &report)
	}

	report.Finished = netTime.Now()
	s.mux.Lock()
	s.last, s.hasLast = report, true
	s.mux.Unlock()

	jww.INFO.Printf("[SYNCER] Pass for %s over %d servers and %d channels "+
		"added %d members, skipped %d, failed %d in %s", address,
		report.Servers, report.Channels, report.Added, report.Skipped,
		report.Failed, report.Finished.Sub(start))
	return report, nil
}

func (s *Syncer) syncServer(ctx context.Context, sess *session.Session,
	srv models.Server, report *Report) {
	channels, err := s.backend.ListChannels(ctx, srv.ID)
	if err != nil {
		jww.WARN.Printf("[SYNCER] "+listChannelsErr, srv.ID, err)
		report.Failed++
		return
	}
	s.store.SetChannels(srv.ID, channels)

	members, err := s.backend.ListMembers(ctx, srv.ID)
	if err != nil {
		jww.WARN.Printf("[SYNCER] "+listMembersErr, srv.ID, err)
		report.Failed++
		return
	}
	s.store.SetMembers(srv.ID, members)
	s.loadProfiles(ctx, members)

	roster := models.Roster(members)
	for _, ch := range channels {
		if ctx.Err() != nil {
			return
		}
		report.Channels++
		result, err := s.syncChannel(ctx, sess, ch, roster)
		switch {
		case err != nil:
			jww.WARN.Printf("[SYNCER] "+channelErr, ch.ID, err)
			report.Failed++
		case result.Skipped:
			report.Skipped++
		default:
			report.Added += result.Added
		}
	}
}

func (s *Syncer) syncChannel(ctx context.Context, sess *session.Session,
	ch models.Channel, roster []wallet.Address) (groupChat.Result, error) {
	groupID, err := s.groups.EnsureGroup(ctx, sess, ch, sess.Address())
	if err != nil {
		return groupChat.Result{}, err
	}

	g, err := s.groups.GetGroup(ctx, sess, groupID)
	if err != nil {
		return groupChat.Result{}, err
	}

	return s.groups.ReconcileMembers(ctx, sess, g, roster)
}

// loadProfiles caches the profile of every member that has one.
func (s *Syncer) loadProfiles(ctx context.Context, members []models.ServerMember) {
	for _, m := range members {
		p, err := s.backend.GetProfile(ctx, m.Wallet)
		if err != nil {
			if !errors.Is(err, backend.ErrNotFound) {
				jww.DEBUG.Printf("[SYNCER] No profile for %s: %+v", m.Wallet, err)
			}
			continue
		}
		s.store.SetProfile(p)
	}
}

// LastReport returns the report of the last completed pass.
func (s *Syncer) LastReport() (Report, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	return s.last, s.hasLast
}

// Start runs passes on the schedule until the returned stoppable is closed or
// the session ends.
func (s *Syncer) Start(sess *session.Session) *stoppable.Single {
	stop := stoppable.NewSingle("syncer " + string(sess.Address()))
	sess.Register(stop)
	go s.run(sess, stop)

	jww.INFO.Printf("[SYNCER] Started with schedule %q", s.params.Schedule)
	return stop
}

func (s *Syncer) run(sess *session.Session, stop *stoppable.Single) {
	defer func() {
		if stop.IsStopping() {
			stop.ToStopped()
		}
	}()

	if s.params.RunOnStart {
		s.runPass(sess, stop)
	}

	for {
		wait := retryDelay
		next, err := gronx.NextTickAfter(s.params.Schedule, netTime.Now(), false)
		if err != nil {
			jww.ERROR.Printf("[SYNCER] Failed to compute next pass: %+v", err)
		} else {
			wait = time.Until(next)
		}

		timer := time.NewTimer(wait)
		select {
		case <-stop.Quit():
			timer.Stop()
			jww.DEBUG.Printf("[SYNCER] Stopping")
			return
		case <-timer.C:
			if err == nil {
				s.runPass(sess, stop)
			}
		}
	}
}

// runPass runs one pass bounded by the pass timeout and cancelled if the
// syncer stops.
func (s *Syncer) runPass(sess *session.Session, stop *stoppable.Single) {
	ctx, cancel := context.WithTimeout(stop.Context(), s.params.PassTimeout)
	defer cancel()

	if _, err := s.Pass(ctx, sess); err != nil {
		jww.WARN.Printf("[SYNCER] Pass failed: %+v", err)
	}
}
