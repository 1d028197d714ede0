// Package scope narrows record collections to what an identity may see and
// redacts sensitive fields. Filters run after the store returns rows and
// before anything crosses the trust boundary to the routing layer.
package scope

import (
	"github.com/nexusbtp/nexus-backend/internal/models"
	"github.com/nexusbtp/nexus-backend/internal/rbac"
)

// comptableDocumentTypes is the fixed whitelist of document types the
// comptable role may read.
var comptableDocumentTypes = map[string]struct{}{
	"facture":       {},
	"bon_livraison": {},
	"devis":         {},
	"contrat":       {},
}

// Chantiers filters the collection per role: global-access roles see all,
// clients see chantiers they own, everyone else sees assigned chantiers.
func Chantiers(ident rbac.Identity, chantiers []models.Chantier) []models.Chantier {
	if rbac.HasGlobalChantierAccess(ident.Role) {
		return chantiers
	}
	out := make([]models.Chantier, 0, len(chantiers))
	if ident.Role == rbac.RoleClient {
		for _, c := range chantiers {
			if c.ClientID != nil && *c.ClientID == ident.UserID {
				out = append(out, c)
			}
		}
		return out
	}
	for _, c := range chantiers {
		if ident.AssignedTo(c.ID) {
			out = append(out, c)
		}
	}
	return out
}

// Documents filters per role: clients are hard-limited to client-validated
// documents regardless of any permission; comptable is limited to the
// financial document types.
func Documents(ident rbac.Identity, docs []models.Document) []models.Document {
	switch ident.Role {
	case rbac.RoleClient:
		out := make([]models.Document, 0, len(docs))
		for _, d := range docs {
			if d.ValideClient {
				out = append(out, d)
			}
		}
		return out
	case rbac.RoleComptable:
		out := make([]models.Document, 0, len(docs))
		for _, d := range docs {
			if _, ok := comptableDocumentTypes[d.TypeDocument]; ok {
				out = append(out, d)
			}
		}
		return out
	default:
		return docs
	}
}

// Depenses filters per role: roles without view_depenses see nothing;
// chantier-bound roles see only expenses of their assigned chantiers.
func Depenses(ident rbac.Identity, depenses []models.Depense) []models.Depense {
	if !rbac.HasPermission(ident.Role, rbac.PermViewDepenses) {
		return nil
	}
	if rbac.HasPermission(ident.Role, rbac.PermViewAllDepenses) || ident.Role == rbac.RoleAdminGeneral {
		return depenses
	}
	out := make([]models.Depense, 0, len(depenses))
	for _, d := range depenses {
		if ident.AssignedTo(d.ChantierID) {
			out = append(out, d)
		}
	}
	return out
}

// Presences filters per role: ouvrier sees only rows of their linked
// employee record. An ouvrier with no linked employee sees nothing.
func Presences(ident rbac.Identity, presences []models.Presence) []models.Presence {
	if ident.Role != rbac.RoleOuvrier {
		return presences
	}
	out := make([]models.Presence, 0, len(presences))
	for _, p := range presences {
		if ident.EmployeID != 0 && p.EmployeID == ident.EmployeID {
			out = append(out, p)
		}
	}
	return out
}

// Taches filters per role: ouvrier sees only tasks assigned to their linked
// employee record.
func Taches(ident rbac.Identity, taches []models.Tache) []models.Tache {
	if ident.Role != rbac.RoleOuvrier {
		return taches
	}
	out := make([]models.Tache, 0, len(taches))
	for _, t := range taches {
		if t.AssigneA != nil && ident.EmployeID != 0 && *t.AssigneA == ident.EmployeID {
			out = append(out, t)
		}
	}
	return out
}
