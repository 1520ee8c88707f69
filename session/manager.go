////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package session owns the single network client of the process. It creates
// the client for a wallet, replaces it when the wallet changes and tears down
// everything that depends on it on disconnect.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/chatsync/network"
	"gitlab.com/elixxir/chatsync/store"
	"gitlab.com/elixxir/chatsync/wallet"
)

var (
	// ErrAuthFailed is returned when the wallet rejects, fails or times out
	// signing the provisioning challenge.
	ErrAuthFailed = errors.New("wallet authentication failed")

	// ErrNetworkUnavailable is returned when a client could not be
	// provisioned in time or the network returned an error.
	ErrNetworkUnavailable = errors.New("messaging network unavailable")
)

// Error messages.
const (
	cancelledErr    = "connection for %s was cancelled"
	timeoutErr      = "client for %s not provisioned within %s"
	createClientErr = "failed to create client for %s: %+v"
	signFailedErr   = "wallet %s could not sign: %+v"
)

// attempt is an in-flight connection. Every Connect for the same wallet waits
// on it.
type attempt struct {
	address wallet.Address
	cancel  context.CancelFunc
	done    chan struct{}

	session *Session
	err     error
}

// Manager creates, replaces and closes the session. Only one session exists
// at a time.
type Manager struct {
	factory network.Factory
	store   *store.Store
	params  Params

	current *Session
	pending *attempt
	mux     sync.Mutex
}

// NewManager returns a Manager creating clients from the factory and
// clearing the store on disconnect.
func NewManager(factory network.Factory, s *store.Store, params Params) *Manager {
	return &Manager{
		factory: factory,
		store:   s,
		params:  params,
	}
}

// Connect returns a session for the wallet. A Connect for the wallet that is
// already connecting joins that attempt, and a Connect for the connected
// wallet returns the existing session. Connecting a different wallet closes
// the prior session and clears the store first.
//
// Fails with ErrAuthFailed or ErrNetworkUnavailable. ctx only bounds how long
// the caller waits; the attempt itself is bounded by Params.ConnectTimeout.
func (m *Manager) Connect(ctx context.Context, w wallet.Wallet) (*Session, error) {
	address := w.Address()

	m.mux.Lock()
	if m.current != nil && m.current.address.Equal(address) {
		s := m.current
		m.mux.Unlock()
		return s, nil
	}

	if m.pending != nil && m.pending.address.Equal(address) {
		a := m.pending
		m.mux.Unlock()
		jww.DEBUG.Printf("[SESSION] Joining in-flight connection for %s", address)
		return wait(ctx, a)
	}

	if m.pending != nil {
		jww.INFO.Printf("[SESSION] Cancelling connection for %s, now "+
			"connecting %s", m.pending.address, address)
		m.pending.cancel()
	}

	prior := m.current
	m.current = nil

	attemptCtx, cancel := context.WithTimeout(
		context.Background(), m.params.ConnectTimeout)
	a := &attempt{
		address: address,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	m.pending = a
	m.mux.Unlock()

	if prior != nil {
		jww.INFO.Printf("[SESSION] Wallet changed from %s to %s",
			prior.address, address)
		if err := prior.close(); err != nil {
			jww.WARN.Printf("[SESSION] Errors closing prior session: %+v", err)
		}
		m.store.Reset()
	}

	go m.run(attemptCtx, a, w)
	return wait(ctx, a)
}

// Current returns the live session, or nil.
func (m *Manager) Current() *Session {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.current
}

// Disconnect closes the session and any in-flight connection, stops every
// subscription registered with the session and clears the store. Close errors
// are logged and returned.
func (m *Manager) Disconnect() error {
	m.mux.Lock()
	if m.pending != nil {
		m.pending.cancel()
		m.pending = nil
	}
	s := m.current
	m.current = nil
	m.mux.Unlock()

	var err error
	if s != nil {
		if err = s.close(); err != nil {
			jww.WARN.Printf("[SESSION] Errors closing session: %+v", err)
		}
	}

	m.store.Reset()
	jww.INFO.Printf("[SESSION] Disconnected")
	return err
}

// run creates the client and publishes the result to everyone waiting on the
// attempt.
func (m *Manager) run(ctx context.Context, a *attempt, w wallet.Wallet) {
	defer a.cancel()
	start := time.Now()

	signer := &authSigner{inner: wallet.Signer(w), timeout: m.params.SignTimeout}

	type result struct {
		client network.Client
		err    error
	}
	resultCh := make(chan result, 1)
	go func() {
		c, err := m.factory.Create(ctx, signer)
		resultCh <- result{c, err}
	}()

	var client network.Client
	var err error
	select {
	case r := <-resultCh:
		client, err = r.client, r.err
	case <-ctx.Done():
		// The factory may still produce a client; it is closed when it does
		go func() {
			if r := <-resultCh; r.client != nil {
				_ = r.client.Close()
			}
		}()
		err = ctx.Err()
	}

	err = classify(a.address, signer, err, m.params.ConnectTimeout)

	m.mux.Lock()
	superseded := m.pending != a
	if superseded && err == nil {
		err = errors.WithMessagef(ErrNetworkUnavailable, cancelledErr, a.address)
	}
	if !superseded {
		m.pending = nil
		if err == nil {
			m.current = newSession(client, a.address)
			a.session = m.current
		}
	}
	a.err = err
	m.mux.Unlock()

	if err != nil && client != nil {
		_ = client.Close()
	}

	if err != nil {
		jww.WARN.Printf("[SESSION] Connection for %s failed after %s: %+v",
			a.address, time.Since(start), err)
	} else {
		jww.INFO.Printf("[SESSION] Connected %s with inbox %s in %s",
			a.address, client.InboxID(), time.Since(start))
	}
	close(a.done)
}

// classify maps a creation failure onto ErrAuthFailed or
// ErrNetworkUnavailable.
func classify(address wallet.Address, signer *authSigner, err error,
	timeout time.Duration) error {
	if signErr := signer.failure(); signErr != nil {
		return errors.WithMessagef(ErrAuthFailed, signFailedErr, address, signErr)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return errors.WithMessagef(ErrNetworkUnavailable, timeoutErr, address, timeout)
	case errors.Is(err, context.Canceled):
		return errors.WithMessagef(ErrNetworkUnavailable, cancelledErr, address)
	default:
		return errors.WithMessagef(ErrNetworkUnavailable, createClientErr, address, err)
	}
}

func wait(ctx context.Context, a *attempt) (*Session, error) {
	select {
	case <-a.done:
		return a.session, a.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
