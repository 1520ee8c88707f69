////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package backend describes the relational backing store that owns servers,
// channels, members and profiles. Every call is fallible and safe to retry.
package backend

import (
	"context"

	"github.com/pkg/errors"

	"gitlab.com/elixxir/chatsync/models"
	"gitlab.com/elixxir/chatsync/wallet"
)

// WalletHeader carries the acting wallet of an HTTP update.
const WalletHeader = "X-Wallet-Address"

var (
	// ErrNotFound is returned when the record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrForbidden is returned when the acting wallet may not perform the
	// update.
	ErrForbidden = errors.New("wallet is not authorized for this update")

	// ErrGroupAlreadySet is returned when a channel is already bound to a
	// different group. Binding a channel to its current group succeeds.
	ErrGroupAlreadySet = errors.New("channel is already bound to another group")
)

// Backend is the backing store interface used by the engine.
type Backend interface {
	// ListServers returns the servers the wallet is a member of.
	ListServers(ctx context.Context, member wallet.Address) ([]models.Server, error)

	// ListChannels returns the channels of a server.
	ListChannels(ctx context.Context, serverID string) ([]models.Channel, error)

	// GetChannel returns one channel.
	GetChannel(ctx context.Context, channelID string) (models.Channel, error)

	// ListMembers returns the roster of a server.
	ListMembers(ctx context.Context, serverID string) ([]models.ServerMember, error)

	// GetProfile returns the profile of a wallet.
	GetProfile(ctx context.Context, w wallet.Address) (models.Profile, error)

	// UpdateChannelGroup sets the channel's group reference on behalf of the
	// acting wallet, which must be a member of the channel's server.
	UpdateChannelGroup(ctx context.Context, channelID, groupID string,
		actor wallet.Address) error
}
