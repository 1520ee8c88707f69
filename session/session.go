////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package session

import (
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"

	"gitlab.com/elixxir/chatsync/network"
	"gitlab.com/elixxir/chatsync/stoppable"
	"gitlab.com/elixxir/chatsync/wallet"
)

// Error messages.
const (
	closeSubscriptionsErr = "failed to close session subscriptions: %+v"
	closeClientErr        = "failed to close network client: %+v"
)

// Session is a live network client bound to one wallet. It is created and
// closed only by the Manager and passed to every component that talks to the
// network.
type Session struct {
	client  network.Client
	address wallet.Address
	subs    *stoppable.Multi
}

func newSession(client network.Client, address wallet.Address) *Session {
	return &Session{
		client:  client,
		address: address,
		subs:    stoppable.NewMulti("session " + string(address)),
	}
}

// Client returns the network client.
func (s *Session) Client() network.Client {
	return s.client
}

// Address returns the wallet the session is bound to.
func (s *Session) Address() wallet.Address {
	return s.address
}

// InboxID returns the network identity of the wallet.
func (s *Session) InboxID() network.InboxID {
	return s.client.InboxID()
}

// Register ties the stoppable to the session so it is closed on disconnect.
// Registering on a closed session closes the stoppable immediately.
func (s *Session) Register(st stoppable.Stoppable) {
	s.subs.Add(st)
}

// Unregister removes a stoppable that was closed by its owner.
func (s *Session) Unregister(st stoppable.Stoppable) {
	s.subs.Remove(st.Name())
}

// IsRunning returns false once the session has been closed.
func (s *Session) IsRunning() bool {
	return s.subs.IsRunning()
}

// close stops every registered stoppable and then the client.
func (s *Session) close() error {
	var errs []error
	if err := s.subs.Close(); err != nil {
		errs = append(errs, errors.Errorf(closeSubscriptionsErr, err))
	}
	if err := s.client.Close(); err != nil {
		errs = append(errs, errors.Errorf(closeClientErr, err))
	}

	jww.INFO.Printf("[SESSION] Closed session for %s", s.address)
	if len(errs) > 0 {
		return errs[0]
	}
	return nil
}
