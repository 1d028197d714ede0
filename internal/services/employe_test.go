package services

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/nexusbtp/nexus-backend/internal/apperr"
	"github.com/nexusbtp/nexus-backend/internal/rbac"
)

func seedEmploye(t *testing.T, svc *EmployeService, matricule string) uint {
	t.Helper()
	chantierID := uint(5)
	view, err := svc.Create(context.Background(), adminIdentity(), EmployeInput{
		Matricule: matricule, Nom: "Ndiaye", Prenom: "Ibrahima",
		Poste: "macon", SalaireJournalier: 12_000,
		DateEmbauche: "2024-03-01", ChantierID: &chantierID,
	})
	if err != nil {
		t.Fatalf("seed employe: %v", err)
	}
	return view.ID
}

func TestPointageUnParJour(t *testing.T) {
	db := newTestDB(t)
	svc := NewEmployeService(db, newTestNotifier(db), zap.NewNop())
	seedChantier(t, db, 5, 0)
	empID := seedEmploye(t, svc, "EMP-001")

	chef := rbac.Identity{UserID: 9, Role: rbac.RoleChefChantier, ChantiersAssignes: []uint{5}}
	in := PresenceInput{EmployeID: empID, ChantierID: 5, Date: "2026-08-31"}
	if _, err := svc.Pointer(context.Background(), chef, in); err != nil {
		t.Fatalf("premier pointage: %v", err)
	}
	if _, err := svc.Pointer(context.Background(), chef, in); !apperr.IsConflict(err) {
		t.Fatalf("second pointage du même jour: err = %v, attendu Conflict", err)
	}
	// Un autre jour passe.
	in.Date = "2026-09-01"
	if _, err := svc.Pointer(context.Background(), chef, in); err != nil {
		t.Fatalf("pointage du lendemain: %v", err)
	}
}

func TestPointageChantierNonAssigne(t *testing.T) {
	db := newTestDB(t)
	svc := NewEmployeService(db, newTestNotifier(db), zap.NewNop())
	seedChantier(t, db, 5, 0)
	seedChantier(t, db, 7, 0)
	empID := seedEmploye(t, svc, "EMP-002")

	chef := rbac.Identity{UserID: 9, Role: rbac.RoleChefChantier, ChantiersAssignes: []uint{5}}
	_, err := svc.Pointer(context.Background(), chef, PresenceInput{
		EmployeID: empID, ChantierID: 7, Date: "2026-08-31",
	})
	if !apperr.IsForbidden(err) {
		t.Fatalf("pointage hors chantier assigné: err = %v, attendu Forbidden", err)
	}
}

func TestListeEmployesRedactionParRole(t *testing.T) {
	db := newTestDB(t)
	svc := NewEmployeService(db, newTestNotifier(db), zap.NewNop())
	seedChantier(t, db, 5, 0)
	seedEmploye(t, svc, "EMP-003")

	chef := rbac.Identity{UserID: 9, Role: rbac.RoleChefChantier, ChantiersAssignes: []uint{5}}
	views, err := svc.List(context.Background(), chef, 5, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 {
		t.Fatalf("%d employés, attendu 1", len(views))
	}
	if views[0].SalaireJournalier != nil || views[0].InfoBancaire != nil {
		t.Error("chef_chantier ne devrait pas voir les champs salariaux")
	}

	comptable := rbac.Identity{UserID: 30, Role: rbac.RoleComptable}
	views, err = svc.List(context.Background(), comptable, 5, false)
	if err != nil {
		t.Fatal(err)
	}
	if views[0].SalaireJournalier == nil || *views[0].SalaireJournalier != 12_000 {
		t.Error("comptable devrait voir le salaire journalier")
	}
}

func TestPaieCalculeeSurLesPresences(t *testing.T) {
	db := newTestDB(t)
	svc := NewEmployeService(db, newTestNotifier(db), zap.NewNop())
	seedChantier(t, db, 5, 0)
	empID := seedEmploye(t, svc, "EMP-004")

	chef := rbac.Identity{UserID: 9, Role: rbac.RoleChefChantier, ChantiersAssignes: []uint{5}}
	jours := []string{"2026-08-24", "2026-08-25", "2026-08-26"}
	for _, jour := range jours {
		if _, err := svc.Pointer(context.Background(), chef, PresenceInput{
			EmployeID: empID, ChantierID: 5, Date: jour,
		}); err != nil {
			t.Fatal(err)
		}
	}
	// Demi-journée.
	if _, err := svc.Pointer(context.Background(), chef, PresenceInput{
		EmployeID: empID, ChantierID: 5, Date: "2026-08-27", HeuresTravaillees: 4,
	}); err != nil {
		t.Fatal(err)
	}
	// Une absence ne paie pas.
	if _, err := svc.Pointer(context.Background(), chef, PresenceInput{
		EmployeID: empID, ChantierID: 5, Date: "2026-08-28", Status: "absent",
	}); err != nil {
		t.Fatal(err)
	}

	total, nb, err := svc.PaieEmploye(context.Background(), adminIdentity(), empID, "2026-08-01", "2026-08-31")
	if err != nil {
		t.Fatal(err)
	}
	if nb != 4 {
		t.Errorf("jours payés = %d, attendu 4", nb)
	}
	want := 3*12_000.0 + 12_000.0/2
	if total != want {
		t.Errorf("paie = %.2f, attendu %.2f", total, want)
	}

	// view_salaires requis.
	chefSansSalaires := rbac.Identity{UserID: 9, Role: rbac.RoleChefChantier}
	if _, _, err := svc.PaieEmploye(context.Background(), chefSansSalaires, empID, "", ""); !apperr.IsForbidden(err) {
		t.Errorf("paie sans view_salaires: err = %v, attendu Forbidden", err)
	}
}

func TestEmployeDesactivationConserveLHistorique(t *testing.T) {
	db := newTestDB(t)
	svc := NewEmployeService(db, newTestNotifier(db), zap.NewNop())
	seedChantier(t, db, 5, 0)
	empID := seedEmploye(t, svc, "EMP-005")

	chef := rbac.Identity{UserID: 9, Role: rbac.RoleChefChantier, ChantiersAssignes: []uint{5}}
	if _, err := svc.Pointer(context.Background(), chef, PresenceInput{
		EmployeID: empID, ChantierID: 5, Date: "2026-08-30",
	}); err != nil {
		t.Fatal(err)
	}

	if err := svc.Deactivate(context.Background(), adminIdentity(), empID); err != nil {
		t.Fatal(err)
	}
	// La fiche existe toujours, inactive.
	view, err := svc.Get(context.Background(), adminIdentity(), empID)
	if err != nil {
		t.Fatal(err)
	}
	if view.IsActive {
		t.Error("l'employé devrait être inactif")
	}
	// Le pointage d'un inactif est refusé.
	if _, err := svc.Pointer(context.Background(), chef, PresenceInput{
		EmployeID: empID, ChantierID: 5, Date: "2026-08-31",
	}); !apperr.IsInvalidState(err) {
		t.Errorf("pointage d'un inactif: err = %v, attendu InvalidState", err)
	}
}
