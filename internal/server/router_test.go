package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/nexusbtp/nexus-backend/internal/auth"
	"github.com/nexusbtp/nexus-backend/internal/config"
	"github.com/nexusbtp/nexus-backend/internal/models"
	"github.com/nexusbtp/nexus-backend/internal/rbac"
)

func newTestServer(t *testing.T) (*Server, *gorm.DB, config.Config) {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("ouverture sqlite: %v", err)
	}
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	cfg := config.Config{
		JWTSecret:        "secret-de-test",
		AccessTokenTTL:   time.Minute,
		RefreshTokenTTL:  time.Hour,
		DocumentStoreDir: t.TempDir(),
	}
	return New(db, cfg, zap.NewNop()), db, cfg
}

func seedAccount(t *testing.T, db *gorm.DB, id uint, role rbac.Role) {
	t.Helper()
	user := models.User{
		ID: id, Email: fmt.Sprintf("user%d@nexus.test", id),
		Password: "x", Nom: "Test", Prenom: "User",
		Role: string(role), IsActive: true,
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatal(err)
	}
}

func tokenFor(t *testing.T, cfg config.Config, ident rbac.Identity) string {
	t.Helper()
	raw, err := auth.NewAccessToken(cfg.JWTSecret, ident, cfg.AccessTokenTTL)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEtAuthentificationRequise(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doJSON(t, srv, http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("/health = %d, attendu 200", rec.Code)
	}
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/chantiers/", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("chantiers sans jeton = %d, attendu 401", rec.Code)
	}
}

func TestParcoursDepenseDeBoutEnBout(t *testing.T) {
	srv, db, cfg := newTestServer(t)
	seedAccount(t, db, 1, rbac.RoleAdminGeneral)
	seedAccount(t, db, 9, rbac.RoleChefChantier)
	for _, id := range []uint{5, 7} {
		chantier := models.Chantier{
			ID: id, Nom: fmt.Sprintf("Chantier %d", id),
			Reference: fmt.Sprintf("CHT-E2E-%04d", id),
			Adresse:   "Almadies", BudgetPrevu: 500_000, Status: models.ChantierActif,
		}
		if err := db.Create(&chantier).Error; err != nil {
			t.Fatal(err)
		}
	}
	if err := db.Create(&models.ChantierAssignment{UserID: 9, ChantierID: 5}).Error; err != nil {
		t.Fatal(err)
	}

	adminToken := tokenFor(t, cfg, rbac.Identity{UserID: 1, Role: rbac.RoleAdminGeneral})
	chefToken := tokenFor(t, cfg, rbac.Identity{
		UserID: 9, Role: rbac.RoleChefChantier, ChantiersAssignes: []uint{5},
	})

	// Le chef crée une dépense sur son chantier.
	rec := doJSON(t, srv, http.MethodPost, "/api/v1/depenses/", chefToken, map[string]any{
		"libelle": "Ciment", "categorie": "materiel", "montant": 50_000,
		"date_depense": time.Now().Format(time.RFC3339), "chantier_id": 5,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("création dépense chantier 5 = %d: %s", rec.Code, rec.Body.String())
	}
	var created models.Depense
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Status != models.DepenseEnAttente {
		t.Fatalf("statut = %s, attendu en_attente", created.Status)
	}

	// Chantier non assigné: refusé.
	rec = doJSON(t, srv, http.MethodPost, "/api/v1/depenses/", chefToken, map[string]any{
		"libelle": "Fer", "categorie": "materiel", "montant": 10_000,
		"date_depense": time.Now().Format(time.RFC3339), "chantier_id": 7,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("création dépense chantier 7 = %d, attendu 403", rec.Code)
	}

	// Le chef ne peut pas approuver.
	approvePath := fmt.Sprintf("/api/v1/depenses/%d/approve", created.ID)
	rec = doJSON(t, srv, http.MethodPost, approvePath, chefToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("approbation par le chef = %d, attendu 403", rec.Code)
	}

	// L'admin approuve, le budget est consommé.
	rec = doJSON(t, srv, http.MethodPost, approvePath, adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("approbation admin = %d: %s", rec.Code, rec.Body.String())
	}
	var chantier models.Chantier
	db.First(&chantier, 5)
	if chantier.BudgetConsomme != 50_000 {
		t.Fatalf("budget_consomme = %.2f, attendu 50000", chantier.BudgetConsomme)
	}

	// Une seconde approbation échoue sans recompter.
	rec = doJSON(t, srv, http.MethodPost, approvePath, adminToken, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("seconde approbation = %d, attendu 400", rec.Code)
	}
	db.First(&chantier, 5)
	if chantier.BudgetConsomme != 50_000 {
		t.Fatal("le budget a été compté deux fois")
	}
}

func TestRoutesAdminProtegees(t *testing.T) {
	srv, db, cfg := newTestServer(t)
	seedAccount(t, db, 1, rbac.RoleAdminGeneral)
	seedAccount(t, db, 30, rbac.RoleComptable)

	comptableToken := tokenFor(t, cfg, rbac.Identity{UserID: 30, Role: rbac.RoleComptable})
	rec := doJSON(t, srv, http.MethodGet, "/api/v1/users/", comptableToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("liste des comptes par comptable = %d, attendu 403", rec.Code)
	}

	adminToken := tokenFor(t, cfg, rbac.Identity{UserID: 1, Role: rbac.RoleAdminGeneral})
	rec = doJSON(t, srv, http.MethodGet, "/api/v1/users/", adminToken, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("liste des comptes par admin = %d, attendu 200", rec.Code)
	}
}

func TestMePermissions(t *testing.T) {
	srv, db, cfg := newTestServer(t)
	seedAccount(t, db, 9, rbac.RoleChefChantier)
	token := tokenFor(t, cfg, rbac.Identity{UserID: 9, Role: rbac.RoleChefChantier})

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/me/permissions", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me/permissions = %d", rec.Code)
	}
	var payload struct {
		Role        string   `json:"role"`
		Level       int      `json:"level"`
		ReadOnly    bool     `json:"read_only"`
		Permissions []string `json:"permissions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatal(err)
	}
	if payload.Role != "chef_chantier" || payload.Level != 5 || payload.ReadOnly {
		t.Errorf("payload inattendu: %+v", payload)
	}
	if len(payload.Permissions) == 0 {
		t.Error("la liste des permissions ne devrait pas être vide")
	}
}

func TestJetonDUnCompteDesactiveIgnore(t *testing.T) {
	srv, db, cfg := newTestServer(t)
	seedAccount(t, db, 9, rbac.RoleChefChantier)
	token := tokenFor(t, cfg, rbac.Identity{UserID: 9, Role: rbac.RoleChefChantier})
	db.Model(&models.User{}).Where("id = ?", 9).Update("is_active", false)

	rec := doJSON(t, srv, http.MethodGet, "/api/v1/me/permissions", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("jeton d'un compte désactivé = %d, attendu 401", rec.Code)
	}
}
