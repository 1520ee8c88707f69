////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package sqlstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	jww "github.com/spf13/jwalterweatherman"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gitlab.com/elixxir/chatsync/backend"
	"gitlab.com/elixxir/chatsync/models"
	"gitlab.com/elixxir/chatsync/wallet"
)

const (
	// Can be provided to SqlLite to create a temporary, in-memory DB.
	temporaryDbPath = "file:%s?mode=memory&cache=shared"

	// Determines maximum runtime (in seconds) of DB queries.
	dbTimeout = 3 * time.Second
)

// Error messages.
const (
	emptyGroupErr = "group of channel %s may not be set to empty"
)

// withTimeout bounds a database operation by dbTimeout and the caller's
// context.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, dbTimeout)
}

// notFound maps gorm's missing record onto backend.ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return backend.ErrNotFound
	}
	return err
}

// ListServers returns the servers the wallet is a member of, oldest first.
func (s *Store) ListServers(ctx context.Context, member wallet.Address) (
	[]models.Server, error) {
	parentErr := "[SQL] failed to ListServers: %+v"
	jww.TRACE.Printf("[SQL] ListServers(%s)", member)

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var servers []Server
	err := s.db.WithContext(ctx).
		Joins("JOIN server_members ON server_members.server_id = servers.id").
		Where("server_members.wallet = ?", walletKey(member)).
		Order("servers.created_at, servers.id").
		Find(&servers).Error
	if err != nil {
		return nil, errors.Errorf(parentErr, err)
	}

	list := make([]models.Server, len(servers))
	for i, srv := range servers {
		list[i] = srv.toModel()
	}
	return list, nil
}

// ListChannels returns the channels of the server by position.
func (s *Store) ListChannels(ctx context.Context, serverID string) (
	[]models.Channel, error) {
	parentErr := "[SQL] failed to ListChannels: %+v"
	jww.TRACE.Printf("[SQL] ListChannels(%s)", serverID)

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var channels []Channel
	err := s.db.WithContext(ctx).Where("server_id = ?", serverID).
		Order("position, id").Find(&channels).Error
	if err != nil {
		return nil, errors.Errorf(parentErr, err)
	}

	list := make([]models.Channel, len(channels))
	for i, ch := range channels {
		list[i] = ch.toModel()
	}
	return list, nil
}

// GetChannel returns the channel or backend.ErrNotFound.
func (s *Store) GetChannel(ctx context.Context, channelID string) (
	models.Channel, error) {
	jww.TRACE.Printf("[SQL] GetChannel(%s)", channelID)

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var ch Channel
	err := s.db.WithContext(ctx).Take(&ch, "id = ?", channelID).Error
	if err != nil {
		return models.Channel{}, errors.WithMessagef(notFound(err),
			"[SQL] failed to GetChannel %s", channelID)
	}
	return ch.toModel(), nil
}

// ListMembers returns the roster of the server.
func (s *Store) ListMembers(ctx context.Context, serverID string) (
	[]models.ServerMember, error) {
	parentErr := "[SQL] failed to ListMembers: %+v"
	jww.TRACE.Printf("[SQL] ListMembers(%s)", serverID)

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var members []Member
	err := s.db.WithContext(ctx).Where("server_id = ?", serverID).
		Order("wallet").Find(&members).Error
	if err != nil {
		return nil, errors.Errorf(parentErr, err)
	}

	list := make([]models.ServerMember, len(members))
	for i, m := range members {
		list[i] = m.toModel()
	}
	return list, nil
}

// GetProfile returns the profile of the wallet or backend.ErrNotFound.
func (s *Store) GetProfile(ctx context.Context, w wallet.Address) (
	models.Profile, error) {
	jww.TRACE.Printf("[SQL] GetProfile(%s)", w)

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	var p Profile
	err := s.db.WithContext(ctx).Take(&p, "wallet = ?", walletKey(w)).Error
	if err != nil {
		return models.Profile{}, errors.WithMessagef(notFound(err),
			"[SQL] failed to GetProfile %s", w)
	}
	return p.toModel(), nil
}

// UpdateChannelGroup binds the channel to the group. The actor must be a
// member of the channel's server. Binding a channel to its current group is a
// no-op; binding it to another one fails with backend.ErrGroupAlreadySet.
func (s *Store) UpdateChannelGroup(ctx context.Context, channelID,
	groupID string, actor wallet.Address) error {
	jww.TRACE.Printf("[SQL] UpdateChannelGroup(%s, %s, %s)", channelID,
		groupID, actor)
	if groupID == "" {
		return errors.Errorf(emptyGroupErr, channelID)
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ch Channel
		if err := tx.Take(&ch, "id = ?", channelID).Error; err != nil {
			return errors.WithMessagef(notFound(err),
				"[SQL] failed to UpdateChannelGroup %s", channelID)
		}
		if ch.GroupId == groupID {
			return nil
		} else if ch.GroupId != "" {
			return backend.ErrGroupAlreadySet
		}

		var count int64
		err := tx.Model(&Member{}).
			Where("server_id = ? AND wallet = ?", ch.ServerId, walletKey(actor)).
			Count(&count).Error
		if err != nil {
			return err
		}
		if count == 0 {
			return backend.ErrForbidden
		}

		result := tx.Model(&Channel{}).
			Where("id = ? AND group_id = ''", channelID).
			Update("group_id", groupID)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return backend.ErrGroupAlreadySet
		}

		jww.DEBUG.Printf("[SQL] Bound channel %s to group %s", channelID, groupID)
		return nil
	})
}

////////////////////////////////////////////////////////////////////////////////
// Writes                                                                     //
////////////////////////////////////////////////////////////////////////////////

// CreateServer inserts the server, assigning an ID if it has none, and adds
// the owner as a member.
func (s *Store) CreateServer(ctx context.Context, srv models.Server) (
	models.Server, error) {
	parentErr := "[SQL] failed to CreateServer: %+v"
	jww.TRACE.Printf("[SQL] CreateServer(%s)", srv.Name)

	if srv.ID == "" {
		srv.ID = uuid.NewString()
	}
	row := &Server{
		Id:          srv.ID,
		Name:        srv.Name,
		Description: srv.Description,
		Owner:       walletKey(srv.Owner),
		InviteCode:  srv.InviteCode,
		CreatedAt:   srv.CreatedAt,
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(row).Error; err != nil {
			return err
		}
		if row.Owner == "" {
			return nil
		}
		return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&Member{
			ServerId: row.Id,
			Wallet:   row.Owner,
			Role:     string(models.Owner),
		}).Error
	})
	if err != nil {
		return models.Server{}, errors.Errorf(parentErr, err)
	}
	return row.toModel(), nil
}

// CreateChannel inserts the channel, assigning an ID if it has none.
func (s *Store) CreateChannel(ctx context.Context, ch models.Channel) (
	models.Channel, error) {
	parentErr := "[SQL] failed to CreateChannel: %+v"
	jww.TRACE.Printf("[SQL] CreateChannel(%s, %s)", ch.ServerID, ch.Name)

	if ch.ID == "" {
		ch.ID = uuid.NewString()
	}
	row := &Channel{
		Id:          ch.ID,
		ServerId:    ch.ServerID,
		Name:        ch.Name,
		Description: ch.Description,
		GroupId:     ch.GroupID,
		Position:    ch.Position,
		IsDefault:   ch.IsDefault,
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return models.Channel{}, errors.Errorf(parentErr, err)
	}
	return row.toModel(), nil
}

// AddMember adds the wallet to the server or updates its role and nickname.
func (s *Store) AddMember(ctx context.Context, m models.ServerMember) error {
	parentErr := "[SQL] failed to AddMember: %+v"
	jww.TRACE.Printf("[SQL] AddMember(%s, %s)", m.ServerID, m.Wallet)

	role := m.Role
	if role == "" {
		role = models.Member
	}
	if _, err := models.ParseRole(string(role)); err != nil {
		return errors.Errorf(parentErr, err)
	}

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "server_id"}, {Name: "wallet"}},
		DoUpdates: clause.AssignmentColumns([]string{"role", "nickname"}),
	}).Create(&Member{
		ServerId: m.ServerID,
		Wallet:   walletKey(m.Wallet),
		Role:     string(role),
		Nickname: m.Nickname,
	}).Error
	if err != nil {
		return errors.Errorf(parentErr, err)
	}
	return nil
}

// RemoveMember removes the wallet from the server.
func (s *Store) RemoveMember(ctx context.Context, serverID string,
	w wallet.Address) error {
	jww.TRACE.Printf("[SQL] RemoveMember(%s, %s)", serverID, w)

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	result := s.db.WithContext(ctx).
		Where("server_id = ? AND wallet = ?", serverID, walletKey(w)).
		Delete(&Member{})
	if result.Error != nil {
		return errors.Errorf("[SQL] failed to RemoveMember: %+v", result.Error)
	}
	if result.RowsAffected == 0 {
		return backend.ErrNotFound
	}
	return nil
}

// SetProfile inserts or replaces the profile of the wallet.
func (s *Store) SetProfile(ctx context.Context, p models.Profile) error {
	parentErr := "[SQL] failed to SetProfile: %+v"
	jww.TRACE.Printf("[SQL] SetProfile(%s)", p.Wallet)

	ctx, cancel := withTimeout(ctx)
	defer cancel()

	err := s.db.WithContext(ctx).Save(&Profile{
		Wallet:      walletKey(p.Wallet),
		DisplayName: p.DisplayName,
		AvatarUrl:   p.AvatarURL,
		UpdatedAt:   p.UpdatedAt,
	}).Error
	if err != nil {
		return errors.Errorf(parentErr, err)
	}
	return nil
}
