package rbac

// Decision functions. All of them are pure: they never touch storage, never
// return errors, and may be called concurrently. The guard layer turns a
// false result into apperr.ErrForbidden.

// HasPermission reports whether the role holds the permission.
// admin_general holds every permission.
func HasPermission(role Role, perm Permission) bool {
	if role == RoleAdminGeneral {
		return true
	}
	_, ok := permSets[role][perm]
	return ok
}

// HasAnyPermission reports whether the role holds at least one of the
// permissions. Short-circuits on the first hit.
func HasAnyPermission(role Role, perms ...Permission) bool {
	for _, p := range perms {
		if HasPermission(role, p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether the role holds every permission.
// Short-circuits on the first miss.
func HasAllPermissions(role Role, perms ...Permission) bool {
	for _, p := range perms {
		if !HasPermission(role, p) {
			return false
		}
	}
	return true
}

// globalAccessRoles see every chantier: finance, stock and supervision roles
// read across sites by design.
var globalAccessRoles = map[Role]struct{}{
	RoleAdminGeneral: {},
	RoleDirection:    {},
	RoleComptable:    {},
	RoleMagasinier:   {},
}

// HasGlobalChantierAccess reports whether the role sees every chantier.
func HasGlobalChantierAccess(role Role) bool {
	_, ok := globalAccessRoles[role]
	return ok
}

// CanAccessChantier reports whether the identity may act on the chantier:
// global-access roles always, everyone else only on assigned chantiers.
func CanAccessChantier(ident Identity, chantierID uint) bool {
	if HasGlobalChantierAccess(ident.Role) {
		return true
	}
	return ident.AssignedTo(chantierID)
}

// CanCreateUser reports whether creatorRole may create an account with
// targetRole. Only admin_general creates accounts; the single-admin invariant
// (no second admin_general) is enforced at registration time, not here.
func CanCreateUser(creatorRole, _ Role) bool {
	return creatorRole == RoleAdminGeneral
}

// CanChangeRole reports whether the role may change another user's role.
func CanChangeRole(role Role) bool { return role == RoleAdminGeneral }

// CanManageRole reports whether managerRole outranks targetRole strictly.
// Equal ranks (including self-management) are refused.
func CanManageRole(managerRole, targetRole Role) bool {
	return managerRole.Level() > targetRole.Level()
}

// IsReadOnly reports whether the role is structurally read-only. Direction
// holds broad read permissions but may never mutate anything, regardless of
// the permission table contents.
func IsReadOnly(role Role) bool { return role == RoleDirection }
