////////////////////////////////////////////////////////////////////////////////
// Copyright © 2022 xx foundation                                             //
//                                                                            //
// Use of this source code is governed by a license that can be found in the  //
// LICENSE file.                                                              //
////////////////////////////////////////////////////////////////////////////////

package network

import "strconv"

// Permission controls who may perform one kind of group update.
type Permission uint8

const (
	Allow Permission = iota
	Deny
	AdminOnly
	SuperAdminOnly
)

// String returns a human-readable version of the Permission. This function
// adheres to the fmt.Stringer interface.
func (p Permission) String() string {
	switch p {
	case Allow:
		return "Allow"
	case Deny:
		return "Deny"
	case AdminOnly:
		return "AdminOnly"
	case SuperAdminOnly:
		return "SuperAdminOnly"
	default:
		return "INVALID PERMISSION " + strconv.Itoa(int(p))
	}
}

// Permits returns true if a member at the given level may perform the action.
func (p Permission) Permits(level PermissionLevel) bool {
	switch p {
	case Allow:
		return true
	case AdminOnly:
		return level >= AdminLevel
	case SuperAdminOnly:
		return level == SuperAdminLevel
	default:
		return false
	}
}

// PermissionPolicy is the full permission set of a group.
type PermissionPolicy struct {
	AddMember                 Permission
	RemoveMember              Permission
	AddAdmin                  Permission
	RemoveAdmin               Permission
	UpdateGroupName           Permission
	UpdateGroupDescription    Permission
	UpdateGroupImage          Permission
	UpdateMessageDisappearing Permission
	UpdateAppData             Permission
}

// AdminGatedPolicy is the policy applied to every channel group: admins manage
// membership and metadata, only super admins touch admin lists, disappearing
// message settings and app data.
func AdminGatedPolicy() PermissionPolicy {
	return PermissionPolicy{
		AddMember:                 AdminOnly,
		RemoveMember:              AdminOnly,
		AddAdmin:                  SuperAdminOnly,
		RemoveAdmin:               SuperAdminOnly,
		UpdateGroupName:           AdminOnly,
		UpdateGroupDescription:    AdminOnly,
		UpdateGroupImage:          AdminOnly,
		UpdateMessageDisappearing: SuperAdminOnly,
		UpdateAppData:             SuperAdminOnly,
	}
}
