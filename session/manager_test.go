////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"gitlab.com/elixxir/chatsync/models"
	"gitlab.com/elixxir/chatsync/network/memnet"
	"gitlab.com/elixxir/chatsync/stoppable"
	"gitlab.com/elixxir/chatsync/store"
	"gitlab.com/elixxir/chatsync/wallet"
)

// fakeWallet signs with a fixed result, optionally waiting for the context.
type fakeWallet struct {
	address wallet.Address
	err     error
	block   bool
}

func (w *fakeWallet) Address() wallet.Address { return w.address }

func (w *fakeWallet) SignMessage(ctx context.Context, _ []byte) ([]byte, error) {
	if w.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if w.err != nil {
		return nil, w.err
	}
	return []byte("signature"), nil
}

func newLocal(t *testing.T) *wallet.Local {
	l, err := wallet.NewLocal()
	require.NoError(t, err)
	return l
}

func newTestManager(params Params) (*Manager, *memnet.Network, *store.Store) {
	n := memnet.New()
	s := store.New()
	return NewManager(n, s, params), n, s
}

// Tests that connecting the connected wallet returns the existing session.
func TestManager_Connect_Reuse(t *testing.T) {
	m, n, _ := newTestManager(GetDefaultParams())
	w := newLocal(t)

	first, err := m.Connect(context.Background(), w)
	require.NoError(t, err)
	require.Equal(t, w.Address(), first.Address())
	require.NotEmpty(t, first.InboxID())

	second, err := m.Connect(context.Background(), w)
	require.NoError(t, err)
	if first != second {
		t.Errorf("Connect for the connected wallet created a new session.")
	}
	require.Equal(t, 1, n.Calls(memnet.OpCreate))
	require.Equal(t, first, m.Current())
}

// Tests that concurrent connects for one wallet share a single creation.
func TestManager_Connect_JoinsInFlight(t *testing.T) {
	m, n, _ := newTestManager(GetDefaultParams())
	w := newLocal(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	n.SetHook(memnet.OpCreate, func(ctx context.Context, _ string) error {
		once.Do(func() { close(entered) })
		<-release
		return nil
	})

	const callers = 5
	sessions := make([]*Session, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		sessions[0], errs[0] = m.Connect(context.Background(), w)
	}()
	<-entered

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], errs[i] = m.Connect(context.Background(), w)
		}(i)
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := range sessions {
		require.NoError(t, errs[i])
		require.Equal(t, sessions[0], sessions[i])
	}
	require.Equal(t, 1, n.Calls(memnet.OpCreate))
}

// Tests that changing wallet closes the prior client and its subscriptions
// and clears the store before the new session is created.
func TestManager_Connect_WalletChange(t *testing.T) {
	m, _, s := newTestManager(GetDefaultParams())
	a, b := newLocal(t), newLocal(t)

	first, err := m.Connect(context.Background(), a)
	require.NoError(t, err)
	sub := stoppable.NewSingle("sub")
	first.Register(sub)
	s.SetServers([]models.Server{{ID: "srv"}})

	second, err := m.Connect(context.Background(), b)
	require.NoError(t, err)
	require.Equal(t, b.Address(), second.Address())

	require.False(t, sub.IsRunning())
	require.False(t, first.IsRunning())
	require.Empty(t, s.Servers())

	_, err = first.Client().Conversations().ListDms(context.Background())
	require.ErrorIs(t, err, memnet.ErrClientClosed)
}

// Tests that a wallet refusing to sign fails with ErrAuthFailed.
func TestManager_Connect_AuthFailed(t *testing.T) {
	m, _, _ := newTestManager(GetDefaultParams())
	w := &fakeWallet{address: "0x0000000000000000000000000000000000000001",
		err: errors.New("user rejected")}

	_, err := m.Connect(context.Background(), w)
	require.ErrorIs(t, err, ErrAuthFailed)
	require.Nil(t, m.Current())
}

// Tests that a wallet that never signs fails with ErrAuthFailed after the
// signing timeout.
func TestManager_Connect_SignTimeout(t *testing.T) {
	params := GetDefaultParams()
	params.SignTimeout = 20 * time.Millisecond
	m, _, _ := newTestManager(params)
	w := &fakeWallet{address: "0x0000000000000000000000000000000000000002",
		block: true}

	_, err := m.Connect(context.Background(), w)
	require.ErrorIs(t, err, ErrAuthFailed)
}

// Tests that network errors and provisioning timeouts fail with
// ErrNetworkUnavailable.
func TestManager_Connect_NetworkUnavailable(t *testing.T) {
	params := GetDefaultParams()
	params.ConnectTimeout = 30 * time.Millisecond
	m, n, _ := newTestManager(params)
	w := newLocal(t)

	n.FailNext(memnet.OpCreate, errors.New("gateway down"))
	_, err := m.Connect(context.Background(), w)
	require.ErrorIs(t, err, ErrNetworkUnavailable)

	n.SetHook(memnet.OpCreate, func(ctx context.Context, _ string) error {
		<-ctx.Done()
		return ctx.Err()
	})
	_, err = m.Connect(context.Background(), w)
	require.ErrorIs(t, err, ErrNetworkUnavailable)
	require.NotErrorIs(t, err, ErrAuthFailed)

	n.SetHook(memnet.OpCreate, nil)
	_, err = m.Connect(context.Background(), w)
	require.NoError(t, err)
}

// Tests that Disconnect closes everything and clears the store.
func TestManager_Disconnect(t *testing.T) {
	m, _, s := newTestManager(GetDefaultParams())

	sess, err := m.Connect(context.Background(), newLocal(t))
	require.NoError(t, err)
	sub := stoppable.NewSingle("stream")
	sess.Register(sub)
	s.SetActive("conv")

	require.NoError(t, m.Disconnect())
	require.Nil(t, m.Current())
	require.False(t, sub.IsRunning())
	require.Empty(t, s.Active())

	// Registering on a closed session closes immediately
	late := stoppable.NewSingle("late")
	sess.Register(late)
	require.False(t, late.IsRunning())

	require.NoError(t, m.Disconnect())
}

func TestGetParameters(t *testing.T) {
	p, err := GetParameters("")
	require.NoError(t, err)
	require.Equal(t, GetDefaultParams(), p)

	p, err = GetParameters(`{"ConnectTimeout": 5000000000}`)
	require.NoError(t, err)
	require.Equal(t, 5*time.Second, p.ConnectTimeout)
	require.Equal(t, defaultSignTimeout, p.SignTimeout)
}
