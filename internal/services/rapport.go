package services

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/nexusbtp/nexus-backend/internal/apperr"
	"github.com/nexusbtp/nexus-backend/internal/models"
	"github.com/nexusbtp/nexus-backend/internal/rbac"
)

// RapportService computes read-only aggregates for the dashboards. No
// mutation ever happens here, which also makes it safe for direction.
type RapportService struct {
	db *gorm.DB
}

func NewRapportService(db *gorm.DB) *RapportService {
	return &RapportService{db: db}
}

// RapportBudget summarizes the financial state of one chantier.
type RapportBudget struct {
	ChantierID        uint    `json:"chantier_id"`
	Nom               string  `json:"nom"`
	BudgetPrevu       float64 `json:"budget_prevu"`
	BudgetConsomme    float64 `json:"budget_consomme"`
	BudgetRestant     float64 `json:"budget_restant"`
	TauxConsommation  float64 `json:"taux_consommation"`
	DepensesEnAttente int64   `json:"depenses_en_attente"`
}

// RapportGlobal is the company-wide dashboard.
type RapportGlobal struct {
	ChantiersActifs     int64   `json:"chantiers_actifs"`
	ChantiersTotal      int64   `json:"chantiers_total"`
	BudgetPrevuTotal    float64 `json:"budget_prevu_total"`
	BudgetConsommeTotal float64 `json:"budget_consomme_total"`
	DepensesEnAttente   int64   `json:"depenses_en_attente"`
	EmployesActifs      int64   `json:"employes_actifs"`
	MaterielsEnAlerte   int64   `json:"materiels_en_alerte"`
}

// Budget builds the budget report of one chantier. The consumed figure comes
// from the chantier row, which only the approval transition increments.
func (s *RapportService) Budget(ctx context.Context, ident rbac.Identity, chantierID uint) (*RapportBudget, error) {
	if !rbac.HasAnyPermission(ident.Role, rbac.PermViewBudget, rbac.PermViewBudgetChantier, rbac.PermViewRapports) {
		return nil, fmt.Errorf("%w: permission view_budget requise", apperr.ErrForbidden)
	}
	if !rbac.CanAccessChantier(ident, chantierID) {
		return nil, fmt.Errorf("%w: vous n'avez pas accès au chantier %d", apperr.ErrForbidden, chantierID)
	}
	var chantier models.Chantier
	if err := s.db.WithContext(ctx).First(&chantier, chantierID).Error; err != nil {
		return nil, fmt.Errorf("%w: chantier %d", apperr.ErrNotFound, chantierID)
	}
	var pending int64
	if err := s.db.WithContext(ctx).Model(&models.Depense{}).
		Where("chantier_id = ? AND status IN ?", chantierID,
			[]string{models.DepenseEnAttente, models.DepenseValideeChantier}).
		Count(&pending).Error; err != nil {
		return nil, err
	}
	r := &RapportBudget{
		ChantierID:        chantier.ID,
		Nom:               chantier.Nom,
		BudgetPrevu:       chantier.BudgetPrevu,
		BudgetConsomme:    chantier.BudgetConsomme,
		BudgetRestant:     chantier.BudgetPrevu - chantier.BudgetConsomme,
		DepensesEnAttente: pending,
	}
	if chantier.BudgetPrevu > 0 {
		r.TauxConsommation = chantier.BudgetConsomme / chantier.BudgetPrevu * 100
	}
	return r, nil
}

// Global builds the company-wide report. Global-access roles only.
func (s *RapportService) Global(ctx context.Context, ident rbac.Identity) (*RapportGlobal, error) {
	if !rbac.HasAnyPermission(ident.Role, rbac.PermViewBudgetGlobal, rbac.PermViewRapportsFinanciers) {
		return nil, fmt.Errorf("%w: permission view_budget_global requise", apperr.ErrForbidden)
	}
	r := &RapportGlobal{}
	db := s.db.WithContext(ctx)
	if err := db.Model(&models.Chantier{}).Count(&r.ChantiersTotal).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Chantier{}).
		Where("status = ?", models.ChantierActif).Count(&r.ChantiersActifs).Error; err != nil {
		return nil, err
	}
	type sums struct {
		Prevu    float64
		Consomme float64
	}
	var t sums
	if err := db.Model(&models.Chantier{}).
		Select("COALESCE(SUM(budget_prevu), 0) as prevu, COALESCE(SUM(budget_consomme), 0) as consomme").
		Scan(&t).Error; err != nil {
		return nil, err
	}
	r.BudgetPrevuTotal = t.Prevu
	r.BudgetConsommeTotal = t.Consomme
	if err := db.Model(&models.Depense{}).
		Where("status IN ?", []string{models.DepenseEnAttente, models.DepenseValideeChantier}).
		Count(&r.DepensesEnAttente).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Employe{}).
		Where("is_active = ?", true).Count(&r.EmployesActifs).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Materiel{}).
		Where("quantite <= seuil_alerte").Count(&r.MaterielsEnAlerte).Error; err != nil {
		return nil, err
	}
	return r, nil
}
