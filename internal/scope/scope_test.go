package scope

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/nexusbtp/nexus-backend/internal/models"
	"github.com/nexusbtp/nexus-backend/internal/rbac"
)

func uintPtr(v uint) *uint { return &v }

func TestClientSeesOnlyValidatedDocuments(t *testing.T) {
	docs := []models.Document{
		{ID: 1, TypeDocument: "facture", ValideClient: true},
		{ID: 2, TypeDocument: "photo", ValideClient: false},
		{ID: 3, TypeDocument: "plan", ValideClient: true},
	}
	client := rbac.Identity{UserID: 9, Role: rbac.RoleClient}
	got := Documents(client, docs)
	if len(got) != 2 {
		t.Fatalf("client voit %d documents, attendu 2", len(got))
	}
	for _, d := range got {
		if !d.ValideClient {
			t.Errorf("document %d non validé visible par le client", d.ID)
		}
	}
}

func TestComptableDocumentWhitelist(t *testing.T) {
	docs := []models.Document{
		{ID: 1, TypeDocument: "facture"},
		{ID: 2, TypeDocument: "photo"},
		{ID: 3, TypeDocument: "bon_livraison"},
		{ID: 4, TypeDocument: "plan"},
		{ID: 5, TypeDocument: "devis"},
		{ID: 6, TypeDocument: "contrat"},
		{ID: 7, TypeDocument: "rapport"},
	}
	comptable := rbac.Identity{Role: rbac.RoleComptable}
	got := Documents(comptable, docs)
	if len(got) != 4 {
		t.Fatalf("comptable voit %d documents, attendu 4", len(got))
	}
	for _, d := range got {
		switch d.TypeDocument {
		case "facture", "bon_livraison", "devis", "contrat":
		default:
			t.Errorf("type %s hors de la liste blanche comptable", d.TypeDocument)
		}
	}
}

func TestChantierScoping(t *testing.T) {
	chantiers := []models.Chantier{
		{ID: 1, ClientID: uintPtr(40)},
		{ID: 2, ClientID: uintPtr(41)},
		{ID: 3},
	}
	direction := rbac.Identity{Role: rbac.RoleDirection}
	if got := Chantiers(direction, chantiers); len(got) != 3 {
		t.Errorf("direction voit %d chantiers, attendu 3", len(got))
	}
	client := rbac.Identity{UserID: 40, Role: rbac.RoleClient}
	got := Chantiers(client, chantiers)
	if len(got) != 1 || got[0].ID != 1 {
		t.Errorf("client 40 devrait voir uniquement le chantier 1, obtenu %v", got)
	}
	chef := rbac.Identity{UserID: 7, Role: rbac.RoleChefChantier, ChantiersAssignes: []uint{2}}
	got = Chantiers(chef, chantiers)
	if len(got) != 1 || got[0].ID != 2 {
		t.Errorf("chef assigné au chantier 2 devrait le voir seul, obtenu %v", got)
	}
}

func TestDepenseScoping(t *testing.T) {
	depenses := []models.Depense{
		{ID: 1, ChantierID: 5},
		{ID: 2, ChantierID: 7},
	}
	chef := rbac.Identity{Role: rbac.RoleChefChantier, ChantiersAssignes: []uint{5}}
	got := Depenses(chef, depenses)
	if len(got) != 1 || got[0].ChantierID != 5 {
		t.Errorf("chef devrait voir uniquement les dépenses du chantier 5, obtenu %v", got)
	}
	if got := Depenses(rbac.Identity{Role: rbac.RoleOuvrier}, depenses); got != nil {
		t.Errorf("ouvrier sans view_depenses devrait ne rien voir, obtenu %v", got)
	}
	if got := Depenses(rbac.Identity{Role: rbac.RoleComptable}, depenses); len(got) != 2 {
		t.Errorf("comptable devrait tout voir, obtenu %d", len(got))
	}
}

func TestOuvrierPresenceSelfScoping(t *testing.T) {
	presences := []models.Presence{
		{ID: 1, EmployeID: 11},
		{ID: 2, EmployeID: 12},
	}
	ouvrier := rbac.Identity{UserID: 3, Role: rbac.RoleOuvrier, EmployeID: 11}
	got := Presences(ouvrier, presences)
	if len(got) != 1 || got[0].EmployeID != 11 {
		t.Errorf("ouvrier devrait voir uniquement ses pointages, obtenu %v", got)
	}

	// Sans fiche employé liée, rien n'est visible.
	orphan := rbac.Identity{UserID: 4, Role: rbac.RoleOuvrier}
	if got := Presences(orphan, presences); len(got) != 0 {
		t.Errorf("ouvrier sans fiche employé devrait ne rien voir, obtenu %v", got)
	}
}

func TestSalaryRedactionOmitsFields(t *testing.T) {
	employe := models.Employe{
		ID: 1, Matricule: "EMP-001", Nom: "Diallo", Prenom: "Mamadou",
		Poste: "macon", SalaireJournalier: 15000, InfoBancaire: "SN08 1234",
	}

	chef := rbac.Identity{Role: rbac.RoleChefChantier}
	raw, err := json.Marshal(Employe(chef, employe))
	if err != nil {
		t.Fatal(err)
	}
	// Les champs sensibles doivent être absents de la sortie, pas null.
	if strings.Contains(string(raw), "salaire_journalier") || strings.Contains(string(raw), "info_bancaire") {
		t.Errorf("sortie chef_chantier contient des champs salariaux: %s", raw)
	}

	comptable := rbac.Identity{Role: rbac.RoleComptable}
	raw, err = json.Marshal(Employe(comptable, employe))
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["salaire_journalier"] != 15000.0 {
		t.Errorf("comptable devrait voir le salaire, obtenu %v", decoded["salaire_journalier"])
	}
	if decoded["info_bancaire"] != "SN08 1234" {
		t.Errorf("comptable devrait voir l'info bancaire, obtenu %v", decoded["info_bancaire"])
	}
}

func TestOuvrierTacheScoping(t *testing.T) {
	taches := []models.Tache{
		{ID: 1, AssigneA: uintPtr(11)},
		{ID: 2, AssigneA: uintPtr(12)},
		{ID: 3},
	}
	ouvrier := rbac.Identity{Role: rbac.RoleOuvrier, EmployeID: 11}
	got := Taches(ouvrier, taches)
	if len(got) != 1 || got[0].ID != 1 {
		t.Errorf("ouvrier devrait voir uniquement sa tâche, obtenu %v", got)
	}
}
