package auth

// Role is a named grant held by a principal.
//
// Interactive principals carry roles from the closed platform set below,
// parsed with [ParseRole]. Machine principals additionally carry
// scope-derived roles (for example "Booking.Read") that are matched by
// name in role checks but map to no platform permissions.
type Role string

// Platform roles. The set is closed: an application-roles claim naming
// anything else parses to [RoleUnrecognized].
const (
	// RoleSystemAdmin is the registry operator role. Its permission set is
	// the union of every defined permission.
	RoleSystemAdmin Role = "SystemAdmin"

	// RoleAssociationAdmin administers associations across member
	// entities.
	RoleAssociationAdmin Role = "AssociationAdmin"

	// RoleMemberAdmin administers a single member entity.
	RoleMemberAdmin Role = "MemberAdmin"

	// RoleMemberUser is a regular user within a member entity.
	RoleMemberUser Role = "MemberUser"

	// RoleMemberReadOnly has read-only access within a member entity.
	RoleMemberReadOnly Role = "MemberReadOnly"

	// RoleUnrecognized is the explicit mapping for role claim values
	// outside the closed set. It holds no permissions and never matches a
	// role requirement. Unknown upstream claims must not silently match a
	// platform role.
	RoleUnrecognized Role = "Unrecognized"
)

// String returns the role name.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the closed platform roles.
// RoleUnrecognized and scope-derived machine roles are not valid platform
// roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystemAdmin, RoleAssociationAdmin, RoleMemberAdmin,
		RoleMemberUser, RoleMemberReadOnly:
		return true
	default:
		return false
	}
}

// Admin reports whether r is an admin-family role. Admin-family principals
// operate in the registry's trust domain and bypass member tier checks.
// MemberAdmin is not admin-family: it administers a member entity and
// remains subject to that entity's verification tier.
func (r Role) Admin() bool {
	return r == RoleSystemAdmin || r == RoleAssociationAdmin
}

// ParseRole maps a role claim value onto the closed platform set. Values
// outside the set return [RoleUnrecognized]; the raw string is never cast
// to a Role directly.
func ParseRole(s string) Role {
	r := Role(s)
	if !r.Valid() {
		return RoleUnrecognized
	}
	return r
}
