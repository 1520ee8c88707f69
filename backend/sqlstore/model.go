////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package sqlstore

import (
	"strings"
	"time"

	"gitlab.com/elixxir/chatsync/models"
	"gitlab.com/elixxir/chatsync/wallet"
)

// Server defines the SQL representation of a server.
//
// A Server has many Channel and Member objects.
type Server struct {
	Id          string    `gorm:"primaryKey;not null;autoIncrement:false"`
	Name        string    `gorm:"not null"`
	Description string    `gorm:"not null"`
	Owner       string    `gorm:"index;not null"`
	InviteCode  string    `gorm:"index"`
	CreatedAt   time.Time `gorm:"index;not null"`

	Channels []Channel `gorm:"foreignKey:ServerId;references:Id;constraint:OnDelete:CASCADE"`
	Members  []Member  `gorm:"foreignKey:ServerId;references:Id;constraint:OnDelete:CASCADE"`
}

// TableName overrides the table name used by Server.
func (Server) TableName() string {
	return "servers"
}

// Channel defines the SQL representation of a channel. GroupId is empty until
// the channel is bound.
type Channel struct {
	Id          string `gorm:"primaryKey;not null;autoIncrement:false"`
	ServerId    string `gorm:"index;not null"`
	Name        string `gorm:"not null"`
	Description string `gorm:"not null"`
	GroupId     string `gorm:"index;not null;default:''"`
	Position    int    `gorm:"not null"`
	IsDefault   bool   `gorm:"not null"`
}

// TableName overrides the table name used by Channel.
func (Channel) TableName() string {
	return "channels"
}

// Member defines the SQL representation of a server membership.
type Member struct {
	ServerId string `gorm:"primaryKey;not null"`
	Wallet   string `gorm:"primaryKey;not null"`
	Role     string `gorm:"not null"`
	Nickname string `gorm:"not null"`
}

// TableName overrides the table name used by Member.
func (Member) TableName() string {
	return "server_members"
}

// Profile defines the SQL representation of a wallet's profile.
type Profile struct {
	Wallet      string    `gorm:"primaryKey;not null"`
	DisplayName string    `gorm:"not null"`
	AvatarUrl   string    `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName overrides the table name used by Profile.
func (Profile) TableName() string {
	return "profiles"
}

func (s Server) toModel() models.Server {
	return models.Server{
		ID:          s.Id,
		Name:        s.Name,
		Description: s.Description,
		Owner:       wallet.Address(s.Owner),
		InviteCode:  s.InviteCode,
		CreatedAt:   s.CreatedAt,
	}
}

func (c Channel) toModel() models.Channel {
	return models.Channel{
		ID:          c.Id,
		ServerID:    c.ServerId,
		Name:        c.Name,
		Description: c.Description,
		GroupID:     c.GroupId,
		Position:    c.Position,
		IsDefault:   c.IsDefault,
	}
}

func (m Member) toModel() models.ServerMember {
	return models.ServerMember{
		ServerID: m.ServerId,
		Wallet:   wallet.Address(m.Wallet),
		Role:     models.Role(m.Role),
		Nickname: m.Nickname,
	}
}

func (p Profile) toModel() models.Profile {
	return models.Profile{
		Wallet:      wallet.Address(p.Wallet),
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarUrl,
		UpdatedAt:   p.UpdatedAt,
	}
}

// walletKey is the stored form of a wallet address.
func walletKey(w wallet.Address) string {
	return strings.ToLower(strings.TrimSpace(string(w)))
}
