////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package metrics holds the engine's prometheus counters. They are registered
// with the default registry and served by promhttp.Handler.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chatsync"

var (
	// GroupsCreated counts groups created for channels.
	GroupsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "groups_created_total",
		Help:      "Number of group conversations created for channels.",
	})

	// PendingWrites counts group references that could not be persisted.
	PendingWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "group_reference_pending_total",
		Help:      "Number of group references recorded for a later write.",
	})

	// Reconciliations counts membership reconciliations by outcome.
	Reconciliations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconciliations_total",
		Help:      "Number of membership reconciliations by outcome.",
	}, []string{"outcome"})

	// MembersAdded counts inboxes added to groups.
	MembersAdded = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "members_added_total",
		Help:      "Number of inboxes added to groups by reconciliation.",
	})

	// MembersRemoved counts removals by outcome.
	MembersRemoved = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "members_removed_total",
		Help:      "Number of group member removals by outcome.",
	}, []string{"outcome"})

	// MessagesReceived counts live messages by normalized type.
	MessagesReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_received_total",
		Help:      "Number of live messages received by normalized type.",
	}, []string{"type"})

	// SyncPasses counts periodic reconciliation passes.
	SyncPasses = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_passes_total",
		Help:      "Number of periodic reconciliation passes run.",
	})
)

// Outcome labels.
const (
	Success = "success"
	Skipped = "skipped"
	Failed  = "failed"
)

func init() {
	prometheus.MustRegister(GroupsCreated)
	prometheus.MustRegister(PendingWrites)
	prometheus.MustRegister(Reconciliations)
	prometheus.MustRegister(MembersAdded)
	prometheus.MustRegister(MembersRemoved)
	prometheus.MustRegister(MessagesReceived)
	prometheus.MustRegister(SyncPasses)
}
