// Package rbac implements the authorization core: the fixed 8-role registry,
// the static role→permission table and the pure decision functions built on
// top of it. Decisions are stateless and safe to evaluate concurrently.
package rbac

// Role is one of the 8 fixed roles of the system. The set is closed: roles
// are never created at runtime, and an unknown value behaves as the lowest
// possible privilege (level 0, no permissions).
type Role string

const (
	RoleAdminGeneral  Role = "admin_general"  // accès total
	RoleAdminChantier Role = "admin_chantier" // rôle intermédiaire délégué
	RoleComptable     Role = "comptable"      // accès financier
	RoleChefChantier  Role = "chef_chantier"  // opérationnel terrain
	RoleMagasinier    Role = "magasinier"     // gestion du stock
	RoleOuvrier       Role = "ouvrier"        // accès très limité
	RoleClient        Role = "client"         // consultatif
	RoleDirection     Role = "direction"      // supervision lecture seule
)

// AllRoles lists every valid role, ordered by descending level.
func AllRoles() []Role {
	return []Role{
		RoleAdminGeneral, RoleDirection, RoleAdminChantier, RoleComptable,
		RoleChefChantier, RoleMagasinier, RoleOuvrier, RoleClient,
	}
}

// roleLevels is the strict total order used for "can manage lower-ranked
// role" checks. Unknown roles fall through to 0.
var roleLevels = map[Role]int{
	RoleAdminGeneral:  10,
	RoleDirection:     9,
	RoleAdminChantier: 8,
	RoleComptable:     6,
	RoleChefChantier:  5,
	RoleMagasinier:    4,
	RoleOuvrier:       2,
	RoleClient:        1,
}

// Level returns the hierarchy rank of the role. Unknown roles rank 0.
func (r Role) Level() int { return roleLevels[r] }

// Valid reports whether r is one of the 8 known roles.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// RoleInfo carries display metadata for a role.
type RoleInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Level       int    `json:"level"`
}

var roleInfos = map[Role]RoleInfo{
	RoleAdminGeneral:  {Name: "Administrateur Général", Description: "Accès total au système", Level: 10},
	RoleDirection:     {Name: "Direction / Associé", Description: "Supervision lecture seule", Level: 9},
	RoleAdminChantier: {Name: "Administrateur de Chantier", Description: "Rôle intermédiaire pour déléguer", Level: 8},
	RoleComptable:     {Name: "Comptable / Financier", Description: "Accès financier uniquement", Level: 6},
	RoleChefChantier:  {Name: "Chef de Chantier", Description: "Accès opérationnel terrain", Level: 5},
	RoleMagasinier:    {Name: "Magasinier", Description: "Gestionnaire de stock", Level: 4},
	RoleOuvrier:       {Name: "Ouvrier / Technicien", Description: "Accès très limité", Level: 2},
	RoleClient:        {Name: "Client", Description: "Accès consultatif", Level: 1},
}

// Info returns the display metadata of a role. The zero RoleInfo is returned
// for unknown roles.
func (r Role) Info() RoleInfo { return roleInfos[r] }
