package rbac

import (
	"reflect"
	"testing"
)

func TestAdminHoldsEveryPermission(t *testing.T) {
	for _, role := range AllRoles() {
		for _, perm := range PermissionsOf(role) {
			if !HasPermission(RoleAdminGeneral, perm) {
				t.Errorf("admin_general devrait détenir %s (accordée à %s)", perm, role)
			}
		}
	}
	for _, perm := range adminOnlyPermissions {
		if !HasPermission(RoleAdminGeneral, perm) {
			t.Errorf("admin_general devrait détenir %s", perm)
		}
	}
}

func TestAdminOnlyPermissionsStayExclusive(t *testing.T) {
	for _, role := range AllRoles() {
		if role == RoleAdminGeneral {
			continue
		}
		for _, perm := range adminOnlyPermissions {
			if HasPermission(role, perm) {
				t.Errorf("%s ne devrait pas détenir %s", role, perm)
			}
		}
	}
}

func TestUnknownRoleFailsClosed(t *testing.T) {
	ghost := Role("super_admin")
	if ghost.Valid() {
		t.Fatal("un rôle inconnu ne devrait pas être valide")
	}
	if ghost.Level() != 0 {
		t.Errorf("niveau d'un rôle inconnu = %d, attendu 0", ghost.Level())
	}
	if HasPermission(ghost, PermViewChantiers) {
		t.Error("un rôle inconnu ne devrait détenir aucune permission")
	}
	if got := PermissionsOf(ghost); got != nil {
		t.Errorf("PermissionsOf(rôle inconnu) = %v, attendu nil", got)
	}
	if HasGlobalChantierAccess(ghost) {
		t.Error("un rôle inconnu ne devrait pas avoir l'accès global")
	}
}

func TestPermissionsOfIsDeterministic(t *testing.T) {
	for _, role := range AllRoles() {
		first := PermissionsOf(role)
		for i := 0; i < 5; i++ {
			if got := PermissionsOf(role); !reflect.DeepEqual(got, first) {
				t.Fatalf("PermissionsOf(%s) varie entre deux appels", role)
			}
		}
	}
}

func TestRoleLevels(t *testing.T) {
	want := []struct {
		role  Role
		level int
	}{
		{RoleAdminGeneral, 10},
		{RoleDirection, 9},
		{RoleAdminChantier, 8},
		{RoleComptable, 6},
		{RoleChefChantier, 5},
		{RoleMagasinier, 4},
		{RoleOuvrier, 2},
		{RoleClient, 1},
	}
	for _, tc := range want {
		if got := tc.role.Level(); got != tc.level {
			t.Errorf("%s.Level() = %d, attendu %d", tc.role, got, tc.level)
		}
	}
}

func TestCanManageRoleIsStrict(t *testing.T) {
	if !CanManageRole(RoleAdminGeneral, RoleDirection) {
		t.Error("admin_general devrait gérer direction")
	}
	if CanManageRole(RoleComptable, RoleComptable) {
		t.Error("un rôle ne devrait pas se gérer lui-même")
	}
	if CanManageRole(RoleOuvrier, RoleChefChantier) {
		t.Error("ouvrier ne devrait pas gérer chef_chantier")
	}
	if !CanManageRole(RoleChefChantier, Role("fantome")) {
		t.Error("tout rôle valide devrait gérer un rôle inconnu (niveau 0)")
	}
}

func TestCanAccessChantier(t *testing.T) {
	chef := Identity{UserID: 3, Role: RoleChefChantier, ChantiersAssignes: []uint{5, 9}}
	if !CanAccessChantier(chef, 5) {
		t.Error("chef_chantier devrait accéder à son chantier assigné")
	}
	if CanAccessChantier(chef, 7) {
		t.Error("chef_chantier ne devrait pas accéder à un chantier non assigné")
	}
	for _, role := range []Role{RoleAdminGeneral, RoleDirection, RoleComptable, RoleMagasinier} {
		if !CanAccessChantier(Identity{Role: role}, 42) {
			t.Errorf("%s devrait avoir l'accès global aux chantiers", role)
		}
	}
	for _, role := range []Role{RoleAdminChantier, RoleChefChantier, RoleOuvrier, RoleClient} {
		if HasGlobalChantierAccess(role) {
			t.Errorf("%s ne devrait pas avoir l'accès global", role)
		}
	}
}

func TestDirectionIsReadOnly(t *testing.T) {
	if !IsReadOnly(RoleDirection) {
		t.Fatal("direction devrait être en lecture seule")
	}
	for _, role := range AllRoles() {
		if role != RoleDirection && IsReadOnly(role) {
			t.Errorf("%s ne devrait pas être en lecture seule", role)
		}
	}
	// La lecture seule est structurelle: direction garde ses permissions de
	// consultation.
	if !HasPermission(RoleDirection, PermViewSalaires) {
		t.Error("direction devrait détenir view_salaires")
	}
}

func TestOnlyAdminCreatesAndChangesRoles(t *testing.T) {
	for _, role := range AllRoles() {
		want := role == RoleAdminGeneral
		if CanCreateUser(role, RoleOuvrier) != want {
			t.Errorf("CanCreateUser(%s) = %v, attendu %v", role, !want, want)
		}
		if CanChangeRole(role) != want {
			t.Errorf("CanChangeRole(%s) = %v, attendu %v", role, !want, want)
		}
	}
}

func TestHasAnyAndAllPermissions(t *testing.T) {
	if !HasAnyPermission(RoleMagasinier, PermViewSalaires, PermTransferStock) {
		t.Error("HasAnyPermission devrait trouver transfer_stock pour magasinier")
	}
	if HasAnyPermission(RoleClient, PermCreateDepense, PermTransferStock) {
		t.Error("client ne devrait détenir aucune de ces permissions")
	}
	if !HasAllPermissions(RoleComptable, PermViewSalaires, PermViewAllDepenses) {
		t.Error("comptable devrait détenir ces deux permissions")
	}
	if HasAllPermissions(RoleComptable, PermViewSalaires, PermTransferStock) {
		t.Error("comptable ne devrait pas détenir transfer_stock")
	}
}

func TestOuvrierAndClientStayMinimal(t *testing.T) {
	for _, perm := range []Permission{
		PermCreateDepense, PermApproveDepense, PermViewSalaires,
		PermEditChantier, PermMouvementStock, PermChangeRole,
	} {
		if HasPermission(RoleOuvrier, perm) {
			t.Errorf("ouvrier ne devrait pas détenir %s", perm)
		}
		if HasPermission(RoleClient, perm) {
			t.Errorf("client ne devrait pas détenir %s", perm)
		}
	}
	if !HasPermission(RoleOuvrier, PermPointer) {
		t.Error("ouvrier devrait pouvoir pointer")
	}
	if !HasPermission(RoleClient, PermViewDocumentsValides) {
		t.Error("client devrait voir les documents validés")
	}
}
