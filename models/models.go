////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

// Package models contains the social graph records owned by the backing store.
package models

import (
	"time"

	"github.com/pkg/errors"

	"gitlab.com/elixxir/chatsync/wallet"
)

// Server is a named community container.
type Server struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description" yaml:"description"`
	Owner       wallet.Address `json:"owner" yaml:"owner"`
	InviteCode  string         `json:"inviteCode" yaml:"inviteCode"`
	CreatedAt   time.Time      `json:"createdAt" yaml:"createdAt"`
}

// Channel belongs to one server. GroupID is empty until the channel is bound
// to a group conversation and never changes after.
type Channel struct {
	ID          string `json:"id" yaml:"id"`
	ServerID    string `json:"serverId" yaml:"serverId"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description" yaml:"description"`
	GroupID     string `json:"groupId,omitempty" yaml:"groupId,omitempty"`
	Position    int    `json:"position" yaml:"position"`
	IsDefault   bool   `json:"isDefault" yaml:"isDefault"`
}

// HasGroup returns true if the channel is bound to a group conversation.
func (c Channel) HasGroup() bool {
	return c.GroupID != ""
}

// Role is the role of a member within a server.
type Role string

const (
	Owner  Role = "owner"
	Admin  Role = "admin"
	Member Role = "member"
)

const invalidRoleErr = "invalid member role %q"

// ParseRole returns the Role named by s.
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case Owner, Admin, Member:
		return r, nil
	default:
		return "", errors.Errorf(invalidRoleErr, s)
	}
}

// ServerMember is a (server, wallet) membership.
type ServerMember struct {
	ServerID string         `json:"serverId" yaml:"serverId"`
	Wallet   wallet.Address `json:"wallet" yaml:"wallet"`
	Role     Role           `json:"role" yaml:"role"`
	Nickname string         `json:"nickname,omitempty" yaml:"nickname,omitempty"`
}

// Roster returns the wallets of the members.
func Roster(members []ServerMember) []wallet.Address {
	roster := make([]wallet.Address, len(members))
	for i, m := range members {
		roster[i] = m.Wallet
	}
	return roster
}

// Profile is the display information of a wallet.
type Profile struct {
	Wallet      wallet.Address `json:"wallet" yaml:"wallet"`
	DisplayName string         `json:"displayName" yaml:"displayName"`
	AvatarURL   string         `json:"avatarUrl,omitempty" yaml:"avatarUrl,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt" yaml:"updatedAt"`
}
