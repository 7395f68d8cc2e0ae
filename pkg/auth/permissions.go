package auth

// Permission is a capability token granted through roles. The set is
// closed and the role-to-permission mapping is static and total: every
// platform role maps to a defined, possibly empty, permission set.
type Permission string

// Platform permissions.
const (
	// PermissionReadAllEntities grants read access across every member
	// entity in the registry.
	PermissionReadAllEntities Permission = "read-all-entities"

	// PermissionManageEntities grants create, update and deactivate
	// operations on member entities.
	PermissionManageEntities Permission = "manage-entities"

	// PermissionManageMembers grants member account administration within
	// an entity.
	PermissionManageMembers Permission = "manage-members"

	// PermissionReadOwnEntity grants read access scoped to the
	// principal's own entity.
	PermissionReadOwnEntity Permission = "read-own-entity"

	// PermissionWriteOwnEntity grants write access scoped to the
	// principal's own entity.
	PermissionWriteOwnEntity Permission = "write-own-entity"

	// PermissionUploadDocuments grants document upload for the
	// principal's own entity.
	PermissionUploadDocuments Permission = "upload-documents"

	// PermissionIssueTokens grants machine-client token issuance
	// administration.
	PermissionIssueTokens Permission = "issue-tokens"

	// PermissionViewAuditLogs grants read access to authorization audit
	// records.
	PermissionViewAuditLogs Permission = "view-audit-logs"
)

// AllPermissions returns every defined permission. The returned slice is a
// fresh copy.
func AllPermissions() []Permission {
	return []Permission{
		PermissionReadAllEntities,
		PermissionManageEntities,
		PermissionManageMembers,
		PermissionReadOwnEntity,
		PermissionWriteOwnEntity,
		PermissionUploadDocuments,
		PermissionIssueTokens,
		PermissionViewAuditLogs,
	}
}

// rolePermissions is the static role-to-permission mapping. SystemAdmin is
// deliberately absent: its set is the union of all permissions and is
// answered directly in [RolePermissions] so the closure holds even when
// new permissions are added.
var rolePermissions = map[Role][]Permission{
	RoleAssociationAdmin: {
		PermissionReadAllEntities,
		PermissionManageEntities,
		PermissionManageMembers,
		PermissionViewAuditLogs,
	},
	RoleMemberAdmin: {
		PermissionReadOwnEntity,
		PermissionWriteOwnEntity,
		PermissionManageMembers,
		PermissionUploadDocuments,
		PermissionIssueTokens,
	},
	RoleMemberUser: {
		PermissionReadOwnEntity,
		PermissionWriteOwnEntity,
		PermissionUploadDocuments,
	},
	RoleMemberReadOnly: {
		PermissionReadOwnEntity,
	},
	RoleUnrecognized: {},
}

// RolePermissions returns the permission set for a role. The mapping is
// total: roles outside the closed set (unrecognized platform roles and
// scope-derived machine roles) return an empty set.
func RolePermissions(r Role) []Permission {
	if r == RoleSystemAdmin {
		return AllPermissions()
	}
	perms, ok := rolePermissions[r]
	if !ok {
		return []Permission{}
	}
	return append([]Permission(nil), perms...)
}
