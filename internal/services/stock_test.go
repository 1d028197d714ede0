package services

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/nexusbtp/nexus-backend/internal/apperr"
	"github.com/nexusbtp/nexus-backend/internal/models"
	"github.com/nexusbtp/nexus-backend/internal/rbac"
)

func magasinierIdentity() rbac.Identity {
	return rbac.Identity{UserID: 4, Role: rbac.RoleMagasinier}
}

func seedMateriel(t *testing.T, svc *StockService, ident rbac.Identity, chantierID uint, quantite float64) *models.Materiel {
	t.Helper()
	materiel, err := svc.CreateMateriel(context.Background(), ident, MaterielInput{
		Nom: "Ciment", Categorie: "ciment", Unite: "sac",
		Quantite: quantite, SeuilAlerte: 10, PrixUnitaire: 4_500,
		ChantierID: chantierID,
	})
	if err != nil {
		t.Fatalf("seed materiel: %v", err)
	}
	return materiel
}

func TestStockSortieRefuseLeDecouverte(t *testing.T) {
	db := newTestDB(t)
	svc := NewStockService(db, newTestNotifier(db), zap.NewNop())
	mag := magasinierIdentity()
	seedChantier(t, db, 5, 0)
	materiel := seedMateriel(t, svc, mag, 5, 50)

	if _, err := svc.Mouvement(context.Background(), mag, MouvementInput{
		MaterielID: materiel.ID, TypeMouvement: models.MouvementSortie, Quantite: 30,
	}); err != nil {
		t.Fatalf("sortie couverte: %v", err)
	}
	_, err := svc.Mouvement(context.Background(), mag, MouvementInput{
		MaterielID: materiel.ID, TypeMouvement: models.MouvementSortie, Quantite: 30,
	})
	if !apperr.IsValidation(err) {
		t.Fatalf("sortie à découvert: err = %v, attendu Validation", err)
	}

	var after models.Materiel
	db.First(&after, materiel.ID)
	if after.Quantite != 20 {
		t.Fatalf("quantite = %.2f, attendu 20", after.Quantite)
	}
}

func TestStockLedgerTraceChaqueMouvement(t *testing.T) {
	db := newTestDB(t)
	svc := NewStockService(db, newTestNotifier(db), zap.NewNop())
	mag := magasinierIdentity()
	seedChantier(t, db, 5, 0)
	materiel := seedMateriel(t, svc, mag, 5, 100)

	if _, err := svc.Mouvement(context.Background(), mag, MouvementInput{
		MaterielID: materiel.ID, TypeMouvement: models.MouvementEntree, Quantite: 25,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Mouvement(context.Background(), mag, MouvementInput{
		MaterielID: materiel.ID, TypeMouvement: models.MouvementSortie, Quantite: 40,
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Recevoir(context.Background(), mag, materiel.ID, 15, "livraison"); err != nil {
		t.Fatal(err)
	}

	var count int64
	db.Model(&models.MouvementStock{}).Where("materiel_id = ?", materiel.ID).Count(&count)
	// stock initial + entree + sortie + reception
	if count != 4 {
		t.Fatalf("%d écritures au grand livre, attendu 4", count)
	}

	var after models.Materiel
	db.First(&after, materiel.ID)
	if after.Quantite != 100 {
		t.Fatalf("quantite = %.2f, attendu 100", after.Quantite)
	}
}

func TestStockTransfertAtomique(t *testing.T) {
	db := newTestDB(t)
	svc := NewStockService(db, newTestNotifier(db), zap.NewNop())
	mag := magasinierIdentity()
	seedChantier(t, db, 5, 0)
	seedChantier(t, db, 7, 0)
	source := seedMateriel(t, svc, mag, 5, 80)

	src, dest, err := svc.Transferer(context.Background(), mag, TransfertInput{
		MaterielID: source.ID, ChantierDestinationID: 7, Quantite: 30,
	})
	if err != nil {
		t.Fatalf("transfert: %v", err)
	}
	if src.Quantite != 50 {
		t.Errorf("source = %.2f, attendu 50", src.Quantite)
	}
	if dest.Quantite != 30 || dest.ChantierID != 7 || dest.Nom != source.Nom {
		t.Errorf("destination incorrecte: %+v", dest)
	}

	var sortants, entrants int64
	db.Model(&models.MouvementStock{}).
		Where("materiel_id = ? AND type_mouvement = ?", src.ID, models.MouvementTransfertSortant).
		Count(&sortants)
	db.Model(&models.MouvementStock{}).
		Where("materiel_id = ? AND type_mouvement = ?", dest.ID, models.MouvementTransfertEntrant).
		Count(&entrants)
	if sortants != 1 || entrants != 1 {
		t.Errorf("écritures transfert = %d sortant / %d entrant, attendu 1/1", sortants, entrants)
	}

	// Un second transfert réutilise le matériel de destination existant.
	_, dest2, err := svc.Transferer(context.Background(), mag, TransfertInput{
		MaterielID: source.ID, ChantierDestinationID: 7, Quantite: 10,
	})
	if err != nil {
		t.Fatal(err)
	}
	if dest2.ID != dest.ID || dest2.Quantite != 40 {
		t.Errorf("destination = %+v, attendu le même matériel à 40", dest2)
	}
}

func TestStockTransfertInsuffisantNeMutePas(t *testing.T) {
	db := newTestDB(t)
	svc := NewStockService(db, newTestNotifier(db), zap.NewNop())
	mag := magasinierIdentity()
	seedChantier(t, db, 5, 0)
	seedChantier(t, db, 7, 0)
	source := seedMateriel(t, svc, mag, 5, 20)

	_, _, err := svc.Transferer(context.Background(), mag, TransfertInput{
		MaterielID: source.ID, ChantierDestinationID: 7, Quantite: 50,
	})
	if !apperr.IsValidation(err) {
		t.Fatalf("transfert insuffisant: err = %v, attendu Validation", err)
	}

	var after models.Materiel
	db.First(&after, source.ID)
	if after.Quantite != 20 {
		t.Errorf("la source a été débitée malgré le refus: %.2f", after.Quantite)
	}
	var destCount int64
	db.Model(&models.Materiel{}).Where("chantier_id = ?", 7).Count(&destCount)
	if destCount != 0 {
		t.Error("aucun matériel de destination ne devrait exister après un refus")
	}
}

func TestStockMiseAJourPartielleLaisseLaQuantite(t *testing.T) {
	db := newTestDB(t)
	svc := NewStockService(db, newTestNotifier(db), zap.NewNop())
	mag := magasinierIdentity()
	seedChantier(t, db, 5, 0)
	materiel := seedMateriel(t, svc, mag, 5, 50)

	// Modifier le seuil seul ne touche ni la quantité ni le grand livre.
	seuil := 20.0
	updated, err := svc.UpdateMateriel(context.Background(), mag, materiel.ID, MaterielUpdate{SeuilAlerte: &seuil})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Quantite != 50 {
		t.Fatalf("quantite = %.2f après modification du seuil seul, attendu 50", updated.Quantite)
	}
	if updated.SeuilAlerte != 20 {
		t.Errorf("seuil = %.2f, attendu 20", updated.SeuilAlerte)
	}
	var ajustements int64
	db.Model(&models.MouvementStock{}).
		Where("materiel_id = ? AND type_mouvement = ?", materiel.ID, models.MouvementAjustement).
		Count(&ajustements)
	if ajustements != 0 {
		t.Fatalf("%d ajustements au grand livre, attendu 0", ajustements)
	}

	// Un changement explicite de quantité passe par le grand livre.
	quantite := 35.0
	updated, err = svc.UpdateMateriel(context.Background(), mag, materiel.ID, MaterielUpdate{Quantite: &quantite})
	if err != nil {
		t.Fatal(err)
	}
	if updated.Quantite != 35 {
		t.Fatalf("quantite = %.2f, attendu 35", updated.Quantite)
	}
	db.Model(&models.MouvementStock{}).
		Where("materiel_id = ? AND type_mouvement = ?", materiel.ID, models.MouvementAjustement).
		Count(&ajustements)
	if ajustements != 1 {
		t.Errorf("%d ajustements au grand livre, attendu 1", ajustements)
	}

	negatif := -1.0
	if _, err := svc.UpdateMateriel(context.Background(), mag, materiel.ID, MaterielUpdate{Quantite: &negatif}); !apperr.IsValidation(err) {
		t.Errorf("quantité négative: err = %v, attendu Validation", err)
	}
}

func TestStockSuppressionRefuseeAvecStockRestant(t *testing.T) {
	db := newTestDB(t)
	svc := NewStockService(db, newTestNotifier(db), zap.NewNop())
	mag := magasinierIdentity()
	seedChantier(t, db, 5, 0)
	materiel := seedMateriel(t, svc, mag, 5, 5)

	if err := svc.DeleteMateriel(context.Background(), mag, materiel.ID); !apperr.IsInvalidState(err) {
		t.Fatalf("suppression avec stock: err = %v, attendu InvalidState", err)
	}
	if _, err := svc.Mouvement(context.Background(), mag, MouvementInput{
		MaterielID: materiel.ID, TypeMouvement: models.MouvementSortie, Quantite: 5,
	}); err != nil {
		t.Fatal(err)
	}
	if err := svc.DeleteMateriel(context.Background(), mag, materiel.ID); err != nil {
		t.Fatalf("suppression à stock nul: %v", err)
	}
}

func TestStockPermissionsParRole(t *testing.T) {
	db := newTestDB(t)
	svc := NewStockService(db, newTestNotifier(db), zap.NewNop())
	seedChantier(t, db, 5, 0)
	materiel := seedMateriel(t, svc, magasinierIdentity(), 5, 50)

	chef := rbac.Identity{UserID: 9, Role: rbac.RoleChefChantier, ChantiersAssignes: []uint{5}}
	if _, err := svc.Mouvement(context.Background(), chef, MouvementInput{
		MaterielID: materiel.ID, TypeMouvement: models.MouvementSortie, Quantite: 1,
	}); !apperr.IsForbidden(err) {
		t.Errorf("mouvement par chef_chantier: err = %v, attendu Forbidden", err)
	}

	direction := rbac.Identity{UserID: 8, Role: rbac.RoleDirection}
	if _, err := svc.CreateMateriel(context.Background(), direction, MaterielInput{
		Nom: "Fer", Categorie: "fer", Unite: "kg", ChantierID: 5,
	}); !apperr.IsForbidden(err) {
		t.Errorf("création par direction: err = %v, attendu Forbidden", err)
	}
	if _, err := svc.ListMateriels(context.Background(), direction, 0, false); err != nil {
		t.Errorf("lecture par direction: %v", err)
	}
}
