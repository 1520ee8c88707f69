////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package groupChat

import (
	"encoding/json"

	"github.com/pkg/errors"

	"gitlab.com/elixxir/chatsync/storage/versioned"
	"gitlab.com/elixxir/chatsync/wallet"
)

// Storage values.
const (
	pendingPrefix       = "groupChat"
	pendingKeyPrefix    = "pendingGroup/"
	pendingStoreVersion = 0
)

// Error messages.
const (
	loadPendingErr   = "failed to load pending group for channel %s: %+v"
	decodePendingErr = "failed to decode pending group for channel %s: %+v"
	savePendingErr   = "failed to save pending group for channel %s: %+v"
)

// pendingWrite is a group created for a channel whose reference has not been
// written to the backing store yet.
type pendingWrite struct {
	ChannelID string
	GroupID   string
	Actor     wallet.Address
}

// pendingStore keeps pendingWrite entries keyed by channel.
type pendingStore struct {
	kv *versioned.KV
}

func newPendingStore(kv *versioned.KV) *pendingStore {
	return &pendingStore{kv: kv.Prefix(pendingPrefix)}
}

// get returns the pending write of the channel, if there is one.
func (ps *pendingStore) get(channelID string) (pendingWrite, bool, error) {
	obj, err := ps.kv.Get(makePendingKey(channelID), pendingStoreVersion)
	if err != nil {
		if !ps.kv.Exists(err) {
			return pendingWrite{}, false, nil
		}
		return pendingWrite{}, false, errors.Errorf(loadPendingErr, channelID, err)
	}

	var pw pendingWrite
	if err = json.Unmarshal(obj.Data, &pw); err != nil {
		return pendingWrite{}, false, errors.Errorf(decodePendingErr, channelID, err)
	}
	return pw, true, nil
}

// set saves the pending write, replacing any earlier one for the channel.
func (ps *pendingStore) set(pw pendingWrite) error {
	data, err := json.Marshal(pw)
	if err != nil {
		return errors.Errorf(savePendingErr, pw.ChannelID, err)
	}

	obj := versioned.NewObject(pendingStoreVersion, data)
	if err = ps.kv.Set(makePendingKey(pw.ChannelID), obj); err != nil {
		return errors.Errorf(savePendingErr, pw.ChannelID, err)
	}
	return nil
}

// remove deletes the pending write of the channel.
func (ps *pendingStore) remove(channelID string) error {
	return ps.kv.Delete(makePendingKey(channelID), pendingStoreVersion)
}

func makePendingKey(channelID string) string {
	return pendingKeyPrefix + channelID
}
