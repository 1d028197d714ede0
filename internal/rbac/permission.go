package rbac

// Permission is a named capability a role may hold. The catalogue is fixed;
// permissions exist only as keys of the role→permission table.
type Permission string

// Chantiers
const (
	PermViewChantiers         Permission = "view_chantiers"
	PermViewAllChantiers      Permission = "view_all_chantiers"
	PermViewChantiersAssignes Permission = "view_chantiers_assignes"
	PermViewChantierPropre    Permission = "view_chantier_propre"
	PermEditChantier          Permission = "edit_chantier"
	PermViewAvancement        Permission = "view_avancement"
)

// Tâches
const (
	PermViewTaches          Permission = "view_taches"
	PermViewTachesAssignees Permission = "view_taches_assignees"
	PermCreateTache         Permission = "create_tache"
	PermEditTache           Permission = "edit_tache"
	PermDeleteTache         Permission = "delete_tache"
	PermAssignTache         Permission = "assign_tache"
	PermUpdateAvancement    Permission = "update_avancement"
)

// Documents
const (
	PermViewDocuments          Permission = "view_documents"
	PermViewDocumentsValides   Permission = "view_documents_valides"
	PermUploadDocument         Permission = "upload_document"
	PermDeleteDocument         Permission = "delete_document"
	PermDownloadDocument       Permission = "download_document"
	PermValidateDocumentClient Permission = "validate_document_client"
)

// Employés et présences
const (
	PermViewEmployes            Permission = "view_employes"
	PermViewAllEmployes         Permission = "view_all_employes"
	PermViewSalaires            Permission = "view_salaires"
	PermDeleteEmploye           Permission = "delete_employe"
	PermViewPresences           Permission = "view_presences"
	PermViewAllPresences        Permission = "view_all_presences"
	PermViewPresencePersonnelle Permission = "view_presence_personnelle"
	PermCreatePresence          Permission = "create_presence"
	PermManagePresences         Permission = "manage_presences"
	PermPointer                 Permission = "pointer"
)

// Finance
const (
	PermViewBudget         Permission = "view_budget"
	PermViewBudgetGlobal   Permission = "view_budget_global"
	PermViewBudgetChantier Permission = "view_budget_chantier"
	PermEditBudgetGlobal   Permission = "edit_budget_global"
	PermViewPrevisions     Permission = "view_previsions"
	PermExportBudget       Permission = "export_budget"
	PermViewDepenses       Permission = "view_depenses"
	PermViewAllDepenses    Permission = "view_all_depenses"
	PermCreateDepense      Permission = "create_depense"
	PermApproveDepense     Permission = "approve_depense"
	PermExportFinances     Permission = "export_finances"
	PermExportRapports     Permission = "export_rapports"
)

// Commandes
const (
	PermViewCommandes            Permission = "view_commandes"
	PermCreateCommande           Permission = "create_commande"
	PermValidateCommandeChantier Permission = "validate_commande_chantier"
	PermValidateCommandeFinal    Permission = "validate_commande_final"
)

// Stock
const (
	PermViewStock           Permission = "view_stock"
	PermViewAllStock        Permission = "view_all_stock"
	PermViewStockChantier   Permission = "view_stock_chantier"
	PermCreateStock         Permission = "create_stock"
	PermEditStock           Permission = "edit_stock"
	PermDeleteStock         Permission = "delete_stock"
	PermMouvementStock      Permission = "mouvement_stock"
	PermReceiveMateriel     Permission = "receive_materiel"
	PermTransferStock       Permission = "transfer_stock"
	PermViewHistoriqueStock Permission = "view_historique_stock"
)

// Journal, rapports, notifications, divers
const (
	PermViewJournal            Permission = "view_journal"
	PermCreateJournal          Permission = "create_journal"
	PermEditJournal            Permission = "edit_journal"
	PermViewRapports           Permission = "view_rapports"
	PermViewRapportsChantier   Permission = "view_rapports_chantier"
	PermViewRapportsFinanciers Permission = "view_rapports_financiers"
	PermViewRapportsTechniques Permission = "view_rapports_techniques"
	PermViewNotifications      Permission = "view_notifications"
	PermProposeModification    Permission = "propose_modification"
	PermValidateModification   Permission = "validate_modification"
	PermChangeRole             Permission = "change_role"
	PermAddCommentaire         Permission = "add_commentaire"
)
