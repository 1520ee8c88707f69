////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package network

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Tests that the admin gated policy lets admins manage membership and
// metadata while reserving app data and disappearing settings for super
// admins.
func TestAdminGatedPolicy(t *testing.T) {
	p := AdminGatedPolicy()

	for _, perm := range []Permission{p.AddMember, p.RemoveMember,
		p.UpdateGroupName, p.UpdateGroupDescription, p.UpdateGroupImage} {
		require.False(t, perm.Permits(MemberLevel))
		require.True(t, perm.Permits(AdminLevel))
		require.True(t, perm.Permits(SuperAdminLevel))
	}

	for _, perm := range []Permission{p.UpdateMessageDisappearing,
		p.UpdateAppData, p.AddAdmin, p.RemoveAdmin} {
		require.False(t, perm.Permits(MemberLevel))
		require.False(t, perm.Permits(AdminLevel))
		require.True(t, perm.Permits(SuperAdminLevel))
	}
}

func TestContentTypeID_SameType(t *testing.T) {
	newer := ContentTypeReply
	newer.VersionMinor = 3
	require.True(t, ContentTypeReply.SameType(newer))
	require.False(t, ContentTypeReply.SameType(ContentTypeText))
	require.Equal(t, "chatsync.network/text:1.0", ContentTypeText.String())
}
