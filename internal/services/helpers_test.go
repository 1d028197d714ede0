package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nexusbtp/nexus-backend/internal/models"
	"github.com/nexusbtp/nexus-backend/internal/rbac"
)

// newTestDB opens a named in-memory sqlite database shared across the
// connections of one test.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("ouverture sqlite: %v", err)
	}
	if err := conn.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return conn
}

func newTestNotifier(db *gorm.DB) *Notifier {
	return NewNotifier(db, zap.NewNop())
}

func adminIdentity() rbac.Identity {
	return rbac.Identity{UserID: 1, Role: rbac.RoleAdminGeneral}
}

func seedChantier(t *testing.T, db *gorm.DB, id uint, budget float64) *models.Chantier {
	t.Helper()
	chantier := models.Chantier{
		ID: id, Nom: fmt.Sprintf("Chantier %d", id),
		Reference: fmt.Sprintf("CHT-TEST-%04d", id),
		Adresse:   "Route de Rufisque", Ville: "Dakar",
		BudgetPrevu: budget, Status: models.ChantierActif,
	}
	if err := db.Create(&chantier).Error; err != nil {
		t.Fatalf("seed chantier: %v", err)
	}
	return &chantier
}

func seedUser(t *testing.T, db *gorm.DB, id uint, role rbac.Role) *models.User {
	t.Helper()
	user := models.User{
		ID: id, Email: fmt.Sprintf("user%d@nexus.test", id),
		Password: "x", Nom: "Test", Prenom: "User",
		Role: string(role), IsActive: true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return &user
}

func seedDepense(t *testing.T, db *gorm.DB, svc *DepenseService, ident rbac.Identity, chantierID uint, montant float64) *models.Depense {
	t.Helper()
	depense, err := svc.Create(context.Background(), ident, DepenseInput{
		Libelle: "Ciment", Categorie: "materiel",
		Montant: montant, DateDepense: time.Now(), ChantierID: chantierID,
	})
	if err != nil {
		t.Fatalf("seed depense: %v", err)
	}
	return depense
}
