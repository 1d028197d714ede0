package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nexusbtp/nexus-backend/internal/apperr"
	"github.com/nexusbtp/nexus-backend/internal/models"
	"github.com/nexusbtp/nexus-backend/internal/rbac"
	"github.com/nexusbtp/nexus-backend/internal/scope"
)

// DepenseService drives the expense approval workflow:
//
//	en_attente → validee_chantier → approuvee
//	en_attente → approuvee
//	en_attente | validee_chantier → rejetee | annulee
//
// Approuvée and rejetée are terminal. The chantier budget is incremented
// exactly once, at the approuvee transition, inside the same transaction.
type DepenseService struct {
	db       *gorm.DB
	notifier *Notifier
	log      *zap.Logger
}

func NewDepenseService(db *gorm.DB, notifier *Notifier, log *zap.Logger) *DepenseService {
	return &DepenseService{db: db, notifier: notifier, log: log}
}

type DepenseInput struct {
	Libelle     string    `json:"libelle"`
	Description string    `json:"description"`
	Categorie   string    `json:"categorie"`
	Montant     float64   `json:"montant"`
	DateDepense time.Time `json:"date_depense"`
	Fournisseur string    `json:"fournisseur"`
	ChantierID  uint      `json:"chantier_id"`
}

type DepenseUpdate struct {
	Libelle     *string    `json:"libelle"`
	Description *string    `json:"description"`
	Categorie   *string    `json:"categorie"`
	Montant     *float64   `json:"montant"`
	DateDepense *time.Time `json:"date_depense"`
	Fournisseur *string    `json:"fournisseur"`
}

type DepenseFilter struct {
	ChantierID uint
	Status     string
}

// creatorRoles may create expenses; chef_chantier only on assigned chantiers.
var depenseCreatorRoles = map[rbac.Role]struct{}{
	rbac.RoleAdminGeneral: {},
	rbac.RoleComptable:    {},
	rbac.RoleChefChantier: {},
}

// Create registers a new expense in en_attente and notifies the
// administrators that an approval is pending.
func (s *DepenseService) Create(ctx context.Context, ident rbac.Identity, in DepenseInput) (*models.Depense, error) {
	if _, ok := depenseCreatorRoles[ident.Role]; !ok || !rbac.HasPermission(ident.Role, rbac.PermCreateDepense) {
		return nil, fmt.Errorf("%w: le rôle %s ne peut pas créer de dépense", apperr.ErrForbidden, ident.Role)
	}
	if in.Montant <= 0 {
		return nil, fmt.Errorf("%w: montant invalide", apperr.ErrValidation)
	}
	var chantier models.Chantier
	if err := s.db.WithContext(ctx).First(&chantier, in.ChantierID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: chantier %d", apperr.ErrNotFound, in.ChantierID)
		}
		return nil, err
	}
	if ident.Role == rbac.RoleChefChantier && !rbac.CanAccessChantier(ident, in.ChantierID) {
		return nil, fmt.Errorf("%w: vous ne pouvez créer des dépenses que pour vos chantiers", apperr.ErrForbidden)
	}

	depense := models.Depense{
		Reference:   s.newReference(ctx),
		Libelle:     in.Libelle,
		Description: in.Description,
		Categorie:   in.Categorie,
		Montant:     in.Montant,
		DateDepense: in.DateDepense,
		Fournisseur: in.Fournisseur,
		Status:      models.DepenseEnAttente,
		ChantierID:  in.ChantierID,
		CreatedBy:   ident.UserID,
	}
	if err := s.db.WithContext(ctx).Create(&depense).Error; err != nil {
		return nil, err
	}

	s.notifier.NotifyRole(ctx, rbac.RoleAdminGeneral,
		"Nouvelle dépense en attente",
		fmt.Sprintf("Dépense %s de %.2f sur le chantier %s", depense.Reference, depense.Montant, chantier.Nom),
		"info", "depense", &depense.ChantierID)
	return &depense, nil
}

// ValidateChantier performs the intermediate validation step
// (en_attente → validee_chantier).
func (s *DepenseService) ValidateChantier(ctx context.Context, ident rbac.Identity, id uint) (*models.Depense, error) {
	if rbac.IsReadOnly(ident.Role) {
		return nil, fmt.Errorf("%w: le rôle direction est en lecture seule", apperr.ErrForbidden)
	}
	if !rbac.HasPermission(ident.Role, rbac.PermValidateCommandeChantier) {
		return nil, fmt.Errorf("%w: permission validate_commande_chantier requise", apperr.ErrForbidden)
	}
	depense, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if ident.Role == rbac.RoleAdminChantier && !rbac.CanAccessChantier(ident, depense.ChantierID) {
		return nil, fmt.Errorf("%w: vous n'avez pas accès au chantier %d", apperr.ErrForbidden, depense.ChantierID)
	}
	if depense.Status != models.DepenseEnAttente {
		return nil, fmt.Errorf("%w: la dépense est %s, seule une dépense en_attente peut être validée", apperr.ErrInvalidState, depense.Status)
	}

	now := time.Now()
	res := s.db.WithContext(ctx).Model(&models.Depense{}).
		Where("id = ? AND status = ?", id, models.DepenseEnAttente).
		Updates(map[string]any{
			"status":                models.DepenseValideeChantier,
			"validated_chantier_by": ident.UserID,
			"validated_chantier_at": now,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: la dépense n'est plus en_attente", apperr.ErrInvalidState)
	}
	return s.find(ctx, id)
}

// Approve is the final transition to approuvee. admin_general only. The
// chantier budget increment and the status flip commit atomically; the
// conditional update makes a second approval a no-op that surfaces as
// InvalidState, so the budget can never be counted twice.
func (s *DepenseService) Approve(ctx context.Context, ident rbac.Identity, id uint) (*models.Depense, error) {
	if ident.Role != rbac.RoleAdminGeneral {
		return nil, fmt.Errorf("%w: seul l'administrateur général peut approuver", apperr.ErrForbidden)
	}
	depense, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	switch depense.Status {
	case models.DepenseApprouvee:
		return nil, fmt.Errorf("%w: cette dépense est déjà approuvée", apperr.ErrInvalidState)
	case models.DepenseRejetee:
		return nil, fmt.Errorf("%w: impossible d'approuver une dépense rejetée", apperr.ErrInvalidState)
	case models.DepenseAnnulee:
		return nil, fmt.Errorf("%w: impossible d'approuver une dépense annulée", apperr.ErrInvalidState)
	}

	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Depense{}).
			Where("id = ? AND status IN ?", id, []string{models.DepenseEnAttente, models.DepenseValideeChantier}).
			Updates(map[string]any{
				"status":      models.DepenseApprouvee,
				"approved_by": ident.UserID,
				"approved_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: la dépense n'est plus approuvable", apperr.ErrInvalidState)
		}
		return tx.Model(&models.Chantier{}).
			Where("id = ?", depense.ChantierID).
			UpdateColumn("budget_consomme", gorm.Expr("budget_consomme + ?", depense.Montant)).Error
	})
	if err != nil {
		return nil, err
	}

	s.notifier.NotifyUser(ctx, depense.CreatedBy,
		"Dépense approuvée",
		fmt.Sprintf("La dépense %s de %.2f a été approuvée", depense.Reference, depense.Montant),
		"success", "depense", &depense.ChantierID)
	return s.find(ctx, id)
}

// Reject moves a non-approved expense to rejetee. admin_general only.
func (s *DepenseService) Reject(ctx context.Context, ident rbac.Identity, id uint, motif string) (*models.Depense, error) {
	if ident.Role != rbac.RoleAdminGeneral {
		return nil, fmt.Errorf("%w: seul l'administrateur général peut rejeter", apperr.ErrForbidden)
	}
	depense, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if depense.Status == models.DepenseApprouvee {
		return nil, fmt.Errorf("%w: impossible de rejeter une dépense déjà approuvée", apperr.ErrInvalidState)
	}
	if depense.Status == models.DepenseRejetee || depense.Status == models.DepenseAnnulee {
		return nil, fmt.Errorf("%w: la dépense est déjà %s", apperr.ErrInvalidState, depense.Status)
	}

	res := s.db.WithContext(ctx).Model(&models.Depense{}).
		Where("id = ? AND status IN ?", id, []string{models.DepenseEnAttente, models.DepenseValideeChantier}).
		Updates(map[string]any{
			"status":      models.DepenseRejetee,
			"rejected_by": ident.UserID,
			"motif_rejet": motif,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: la dépense n'est plus rejetable", apperr.ErrInvalidState)
	}

	s.notifier.NotifyUser(ctx, depense.CreatedBy,
		"Dépense rejetée",
		fmt.Sprintf("La dépense %s a été rejetée: %s", depense.Reference, motif),
		"warning", "depense", &depense.ChantierID)
	return s.find(ctx, id)
}

// Cancel moves a non-approved, non-rejected expense to annulee.
// admin_general only; approved expenses stay immutable.
func (s *DepenseService) Cancel(ctx context.Context, ident rbac.Identity, id uint) (*models.Depense, error) {
	if ident.Role != rbac.RoleAdminGeneral {
		return nil, fmt.Errorf("%w: seul l'administrateur général peut annuler", apperr.ErrForbidden)
	}
	depense, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if depense.Status != models.DepenseEnAttente && depense.Status != models.DepenseValideeChantier {
		return nil, fmt.Errorf("%w: une dépense %s ne peut pas être annulée", apperr.ErrInvalidState, depense.Status)
	}
	res := s.db.WithContext(ctx).Model(&models.Depense{}).
		Where("id = ? AND status IN ?", id, []string{models.DepenseEnAttente, models.DepenseValideeChantier}).
		Update("status", models.DepenseAnnulee)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: la dépense n'est plus annulable", apperr.ErrInvalidState)
	}
	return s.find(ctx, id)
}

// Update edits an expense still in en_attente. Creator or admin_general.
func (s *DepenseService) Update(ctx context.Context, ident rbac.Identity, id uint, in DepenseUpdate) (*models.Depense, error) {
	if rbac.IsReadOnly(ident.Role) {
		return nil, fmt.Errorf("%w: le rôle direction est en lecture seule", apperr.ErrForbidden)
	}
	if !rbac.HasPermission(ident.Role, rbac.PermCreateDepense) {
		return nil, fmt.Errorf("%w: permission create_depense requise", apperr.ErrForbidden)
	}
	depense, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if depense.Status != models.DepenseEnAttente {
		return nil, fmt.Errorf("%w: impossible de modifier une dépense %s", apperr.ErrInvalidState, depense.Status)
	}
	if ident.Role != rbac.RoleAdminGeneral && depense.CreatedBy != ident.UserID {
		return nil, fmt.Errorf("%w: vous ne pouvez modifier que vos propres dépenses", apperr.ErrForbidden)
	}

	updates := map[string]any{}
	if in.Libelle != nil {
		updates["libelle"] = *in.Libelle
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if in.Categorie != nil {
		updates["categorie"] = *in.Categorie
	}
	if in.Montant != nil {
		if *in.Montant <= 0 {
			return nil, fmt.Errorf("%w: montant invalide", apperr.ErrValidation)
		}
		updates["montant"] = *in.Montant
	}
	if in.DateDepense != nil {
		updates["date_depense"] = *in.DateDepense
	}
	if in.Fournisseur != nil {
		updates["fournisseur"] = *in.Fournisseur
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(depense).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.find(ctx, id)
}

// Delete removes an expense. admin_general only; approved expenses are
// protected (the budget ledger must stay append-consistent).
func (s *DepenseService) Delete(ctx context.Context, ident rbac.Identity, id uint) error {
	if ident.Role != rbac.RoleAdminGeneral {
		return fmt.Errorf("%w: seul l'administrateur général peut supprimer", apperr.ErrForbidden)
	}
	depense, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if depense.Status == models.DepenseApprouvee {
		return fmt.Errorf("%w: impossible de supprimer une dépense approuvée, utilisez une annulation", apperr.ErrInvalidState)
	}
	return s.db.WithContext(ctx).Delete(depense).Error
}

// List returns the expenses visible to the identity, optionally filtered.
func (s *DepenseService) List(ctx context.Context, ident rbac.Identity, f DepenseFilter) ([]models.Depense, error) {
	if !rbac.HasPermission(ident.Role, rbac.PermViewDepenses) {
		return nil, fmt.Errorf("%w: permission view_depenses requise", apperr.ErrForbidden)
	}
	if f.ChantierID != 0 && !rbac.CanAccessChantier(ident, f.ChantierID) {
		return nil, fmt.Errorf("%w: vous n'avez pas accès aux dépenses du chantier %d", apperr.ErrForbidden, f.ChantierID)
	}
	q := s.db.WithContext(ctx).Model(&models.Depense{})
	if f.ChantierID != 0 {
		q = q.Where("chantier_id = ?", f.ChantierID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	var depenses []models.Depense
	if err := q.Order("created_at desc").Find(&depenses).Error; err != nil {
		return nil, err
	}
	return scope.Depenses(ident, depenses), nil
}

// Get returns one expense if the identity may see it.
func (s *DepenseService) Get(ctx context.Context, ident rbac.Identity, id uint) (*models.Depense, error) {
	if !rbac.HasPermission(ident.Role, rbac.PermViewDepenses) {
		return nil, fmt.Errorf("%w: permission view_depenses requise", apperr.ErrForbidden)
	}
	depense, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rbac.CanAccessChantier(ident, depense.ChantierID) {
		return nil, fmt.Errorf("%w: vous n'avez pas accès à cette dépense", apperr.ErrForbidden)
	}
	return depense, nil
}

// ListPending returns the expenses awaiting final approval. admin_general only.
func (s *DepenseService) ListPending(ctx context.Context, ident rbac.Identity) ([]models.Depense, error) {
	if ident.Role != rbac.RoleAdminGeneral {
		return nil, fmt.Errorf("%w: réservé à l'administrateur général", apperr.ErrForbidden)
	}
	var depenses []models.Depense
	err := s.db.WithContext(ctx).
		Where("status IN ?", []string{models.DepenseEnAttente, models.DepenseValideeChantier}).
		Order("created_at asc").Find(&depenses).Error
	return depenses, err
}

func (s *DepenseService) find(ctx context.Context, id uint) (*models.Depense, error) {
	var depense models.Depense
	if err := s.db.WithContext(ctx).First(&depense, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: dépense %d", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return &depense, nil
}

// newReference generates a unique DEP-YYYYMM-XXXX reference, retrying on the
// rare collision.
func (s *DepenseService) newReference(ctx context.Context) string {
	for {
		ref := fmt.Sprintf("DEP-%s-%04d", time.Now().Format("200601"), rand.Intn(10000))
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Depense{}).
			Where("reference = ?", ref).Count(&count).Error; err != nil || count == 0 {
			return ref
		}
	}
}
