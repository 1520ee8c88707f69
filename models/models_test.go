////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package models

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gitlab.com/elixxir/chatsync/wallet"
)

func TestParseRole(t *testing.T) {
	for _, r := range []Role{Owner, Admin, Member} {
		parsed, err := ParseRole(string(r))
		require.NoError(t, err)
		require.Equal(t, r, parsed)
	}

	_, err := ParseRole("moderator")
	require.Error(t, err)
}

func TestRoster(t *testing.T) {
	members := []ServerMember{
		{ServerID: "s", Wallet: "0x01", Role: Owner},
		{ServerID: "s", Wallet: "0x02", Role: Member},
	}
	require.Equal(t, []wallet.Address{"0x01", "0x02"}, Roster(members))
	require.Empty(t, Roster(nil))
}

func TestChannel_HasGroup(t *testing.T) {
	if (Channel{}).HasGroup() {
		t.Errorf("Channel without group reference reported as bound.")
	}
	if !(Channel{GroupID: "g"}).HasGroup() {
		t.Errorf("Channel with group reference reported as unbound.")
	}
}
