////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package cmd

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"github.com/spf13/viper"

	"gitlab.com/elixxir/chatsync/backend"
	"gitlab.com/elixxir/chatsync/backend/rest"
	"gitlab.com/elixxir/chatsync/backend/sqlstore"
	"gitlab.com/elixxir/chatsync/groupChat"
	"gitlab.com/elixxir/chatsync/network/memnet"
	"gitlab.com/elixxir/chatsync/session"
	"gitlab.com/elixxir/chatsync/storage/versioned"
	"gitlab.com/elixxir/chatsync/store"
	"gitlab.com/elixxir/chatsync/syncer"
	"gitlab.com/elixxir/chatsync/wallet"
)

// loadWallet reads a hex private key from the file at the path. An empty path
// generates a new key.
func loadWallet(path string) (*wallet.Local, error) {
	if path == "" {
		w, err := wallet.NewLocal()
		if err != nil {
			return nil, err
		}
		jww.INFO.Printf("Generated wallet %s", w.Address())
		return w, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("failed to read wallet key %s: %+v", path, err)
	}
	return wallet.LoadLocal(strings.TrimSpace(string(data)))
}

// openKV opens the engine's key value store: an encrypted file store if a
// session directory is set and memory otherwise.
func openKV() (*versioned.KV, error) {
	dir := viper.GetString(sessionFlag)
	if dir == "" {
		jww.WARN.Printf("No session directory specified, pending group " +
			"references will not survive a restart")
		return versioned.NewMemKV(), nil
	}
	return versioned.NewFileKV(dir, viper.GetString(passwordFlag))
}

// openBackend returns the remote backing store if a URL is set. Otherwise it
// opens a local database and applies the seed file, if there is one. The
// returned sqlstore is nil for a remote backend.
func openBackend(ctx context.Context) (backend.Backend, *sqlstore.Store, error) {
	if url := viper.GetString(backendFlag); url != "" {
		jww.INFO.Printf("Using backing store at %s", url)
		return rest.NewClient(url, rest.GetDefaultParams()), nil, nil
	}

	db, err := sqlstore.NewStore(viper.GetString(dbFlag))
	if err != nil {
		return nil, nil, err
	}

	if seedPath := viper.GetString(seedFlag); seedPath != "" {
		seed, err := sqlstore.LoadSeed(seedPath)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		if err = db.Apply(ctx, seed); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
	}
	return db, db, nil
}

// engine is a connected session with everything built on it.
type engine struct {
	net      *memnet.Network
	store    *store.Store
	sessions *session.Manager
	sess     *session.Session
	groups   *groupChat.Manager
	syncer   *syncer.Syncer
}

// newEngine connects the wallet to an in-memory network and builds the group
// manager and syncer over the backing store.
func newEngine(ctx context.Context, b backend.Backend, w wallet.Wallet,
	kv *versioned.KV) (*engine, error) {
	n := memnet.New()
	s := store.New()
	sessions := session.NewManager(n, s, session.GetDefaultParams())

	sess, err := sessions.Connect(ctx, w)
	if err != nil {
		return nil, err
	}

	gcParams := groupChat.GetDefaultParams()
	if rate := viper.GetInt(lookupRateFlag); rate > 0 {
		gcParams.LookupRate = rate
	}
	groups := groupChat.NewManager(b, s, kv, gcParams)

	syncParams := syncer.GetDefaultParams()
	if schedule := viper.GetString(scheduleFlag); schedule != "" {
		syncParams.Schedule = schedule
	}
	sy, err := syncer.NewSyncer(b, s, groups, syncParams)
	if err != nil {
		_ = sessions.Disconnect()
		return nil, err
	}

	return &engine{
		net:      n,
		store:    s,
		sessions: sessions,
		sess:     sess,
		groups:   groups,
		syncer:   sy,
	}, nil
}

// provisionMembers gives every member of the wallet's servers an inbox on the
// in-memory network so that membership can be reconciled.
func (e *engine) provisionMembers(ctx context.Context, b backend.Backend) error {
	servers, err := b.ListServers(ctx, e.sess.Address())
	if err != nil {
		return err
	}
	for _, srv := range servers {
		members, err := b.ListMembers(ctx, srv.ID)
		if err != nil {
			return err
		}
		for _, m := range members {
			e.net.Provision(m.Wallet.Identifier())
		}
	}
	return nil
}

func (e *engine) close() {
	if err := e.sessions.Disconnect(); err != nil {
		jww.WARN.Printf("Failed to cleanly disconnect: %+v", err)
	}
}
