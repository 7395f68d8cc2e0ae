package auth

// RBAC checks are pure functions over the principal's role set and the
// static role-to-permission mapping. They perform no I/O and have no side
// effects; HTTP gating and audit writes live in the middleware layer.

// Permissions returns the union of permission sets for all of the
// principal's roles, deduplicated. Unauthenticated principals hold no
// permissions.
func (p *Principal) Permissions() []Permission {
	if !p.Authenticated() {
		return []Permission{}
	}

	seen := make(map[Permission]struct{})
	var result []Permission
	for _, role := range p.Roles {
		for _, perm := range RolePermissions(role) {
			if _, ok := seen[perm]; ok {
				continue
			}
			seen[perm] = struct{}{}
			result = append(result, perm)
		}
	}
	if result == nil {
		return []Permission{}
	}
	return result
}

// HasPermission reports whether the permission is contained in the union
// of permission sets for all of the principal's roles.
func (p *Principal) HasPermission(perm Permission) bool {
	if !p.Authenticated() {
		return false
	}
	for _, role := range p.Roles {
		for _, granted := range RolePermissions(role) {
			if granted == perm {
				return true
			}
		}
	}
	return false
}

// HasAllPermissions reports whether the principal holds every one of the
// given permissions. Vacuously true for an empty list on an authenticated
// principal.
func (p *Principal) HasAllPermissions(perms ...Permission) bool {
	if !p.Authenticated() {
		return false
	}
	for _, perm := range perms {
		if !p.HasPermission(perm) {
			return false
		}
	}
	return true
}

// HasAnyPermission reports whether the principal holds at least one of
// the given permissions.
func (p *Principal) HasAnyPermission(perms ...Permission) bool {
	if !p.Authenticated() {
		return false
	}
	for _, perm := range perms {
		if p.HasPermission(perm) {
			return true
		}
	}
	return false
}
