package rbac

import "sort"

// rolePermissions is the static permission table. It is built once at init
// and never mutated afterwards; admin_general is not listed because its
// permission set is the computed union of every other role's (plus the
// admin-only grants below).
var rolePermissions = map[Role][]Permission{

	// Rôle intermédiaire délégué: ses chantiers assignés uniquement.
	RoleAdminChantier: {
		PermViewChantiers, PermViewChantiersAssignes, PermEditChantier,
		PermViewTaches, PermCreateTache, PermEditTache, PermDeleteTache, PermAssignTache,
		PermViewJournal, PermCreateJournal, PermEditJournal,
		PermViewDocuments, PermUploadDocument, PermDeleteDocument, PermDownloadDocument,
		PermValidateDocumentClient,
		PermViewEmployes,
		PermViewPresences, PermManagePresences,
		PermViewBudgetChantier,
		PermViewDepenses,
		PermViewCommandes, PermValidateCommandeChantier,
		PermViewStock, PermViewStockChantier,
		PermValidateModification,
		PermViewRapports, PermViewRapportsChantier, PermViewRapportsTechniques,
		PermViewNotifications,
	},

	// Accès financier uniquement. Pas de tâches ni de planning.
	RoleComptable: {
		PermViewChantiers, PermViewAllChantiers,
		PermViewDocuments, PermDownloadDocument,
		PermViewBudget, PermViewBudgetGlobal, PermViewBudgetChantier,
		PermViewPrevisions, PermExportBudget,
		PermViewDepenses, PermViewAllDepenses, PermCreateDepense,
		PermViewEmployes, PermViewAllEmployes, PermViewSalaires,
		PermExportRapports, PermExportFinances,
		PermViewRapports, PermViewRapportsFinanciers,
		PermViewNotifications,
	},

	// Opérationnel terrain: pas de budgets globaux, pas de validation
	// financière.
	RoleChefChantier: {
		PermViewChantiers, PermViewChantiersAssignes,
		PermViewTaches, PermCreateTache, PermEditTache, PermAssignTache,
		PermUpdateAvancement,
		PermViewJournal, PermCreateJournal, PermEditJournal,
		PermViewDocuments, PermUploadDocument, PermDownloadDocument,
		PermViewEmployes,
		PermViewPresences, PermCreatePresence, PermManagePresences,
		PermViewStock, PermViewStockChantier,
		PermViewCommandes, PermCreateCommande,
		PermViewDepenses, PermCreateDepense,
		PermProposeModification,
		PermViewRapports, PermViewRapportsChantier,
		PermViewNotifications,
	},

	// Gestion complète du stock, pas de budgets ni de données RH.
	RoleMagasinier: {
		PermViewChantiers, PermViewAllChantiers,
		PermViewStock, PermViewAllStock,
		PermCreateStock, PermEditStock, PermDeleteStock,
		PermMouvementStock, PermReceiveMateriel, PermTransferStock,
		PermViewHistoriqueStock,
		PermViewCommandes,
		PermViewDocuments, PermUploadDocument, PermDownloadDocument,
		PermViewNotifications,
	},

	// Lecture + saisie minimale uniquement.
	RoleOuvrier: {
		PermViewTachesAssignees,
		PermUpdateAvancement,
		PermViewPresencePersonnelle,
		PermPointer,
		PermViewNotifications,
	},

	// Consultatif: son chantier, documents validés seulement.
	RoleClient: {
		PermViewChantierPropre,
		PermViewAvancement,
		PermAddCommentaire,
		PermViewDocumentsValides, PermDownloadDocument,
		PermViewNotifications,
	},

	// Supervision lecture seule: tout voir, rien modifier. La lecture seule
	// est structurelle (IsReadOnly), pas une propriété de cette liste.
	RoleDirection: {
		PermViewChantiers, PermViewAllChantiers,
		PermViewTaches,
		PermViewJournal,
		PermViewDocuments, PermDownloadDocument,
		PermViewEmployes, PermViewAllEmployes, PermViewSalaires,
		PermViewPresences, PermViewAllPresences,
		PermViewBudget, PermViewBudgetGlobal, PermViewBudgetChantier,
		PermViewPrevisions,
		PermViewDepenses, PermViewAllDepenses,
		PermViewStock, PermViewAllStock, PermViewHistoriqueStock,
		PermViewCommandes,
		PermViewRapports, PermViewRapportsFinanciers,
		PermViewRapportsTechniques,
		PermViewNotifications,
	},
}

// adminOnlyPermissions are grants no other role holds; they exist so that
// PermissionsOf(admin_general) names them explicitly.
var adminOnlyPermissions = []Permission{
	PermApproveDepense,
	PermValidateCommandeFinal,
	PermEditBudgetGlobal,
	PermDeleteEmploye,
	PermChangeRole,
}

// permSets is the lookup form of the table, built once at package init.
var permSets = func() map[Role]map[Permission]struct{} {
	sets := make(map[Role]map[Permission]struct{}, len(rolePermissions)+1)
	union := make(map[Permission]struct{})
	for role, perms := range rolePermissions {
		set := make(map[Permission]struct{}, len(perms))
		for _, p := range perms {
			set[p] = struct{}{}
			union[p] = struct{}{}
		}
		sets[role] = set
	}
	for _, p := range adminOnlyPermissions {
		union[p] = struct{}{}
	}
	sets[RoleAdminGeneral] = union
	return sets
}()

// PermissionsOf returns the permission set of a role, sorted for stable
// output. admin_general receives the union of every permission granted to
// any role. Unknown roles receive nothing.
func PermissionsOf(role Role) []Permission {
	set, ok := permSets[role]
	if !ok {
		return nil
	}
	perms := make([]Permission, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms
}
