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

var chantierStatuses = map[string]struct{}{
	models.ChantierEnPreparation: {},
	models.ChantierActif:         {},
	models.ChantierSuspendu:      {},
	models.ChantierTermine:       {},
	models.ChantierArchive:       {},
}

// ChantierService manages the chantiers and their user assignments.
type ChantierService struct {
	db       *gorm.DB
	notifier *Notifier
	log      *zap.Logger
}

func NewChantierService(db *gorm.DB, notifier *Notifier, log *zap.Logger) *ChantierService {
	return &ChantierService{db: db, notifier: notifier, log: log}
}

type ChantierInput struct {
	Nom         string     `json:"nom"`
	Adresse     string     `json:"adresse"`
	Ville       string     `json:"ville"`
	ClientID    *uint      `json:"client_id"`
	BudgetPrevu float64    `json:"budget_prevu"`
	DateDebut   *time.Time `json:"date_debut"`
	DateFin     *time.Time `json:"date_fin"`
	Description string     `json:"description"`
}

type ChantierUpdate struct {
	Nom         *string    `json:"nom"`
	Adresse     *string    `json:"adresse"`
	Ville       *string    `json:"ville"`
	ClientID    *uint      `json:"client_id"`
	BudgetPrevu *float64   `json:"budget_prevu"`
	Progression *int       `json:"progression"`
	Status      *string    `json:"status"`
	DateDebut   *time.Time `json:"date_debut"`
	DateFin     *time.Time `json:"date_fin"`
	Description *string    `json:"description"`
}

// Create opens a chantier in en_preparation. admin_general only.
func (s *ChantierService) Create(ctx context.Context, ident rbac.Identity, in ChantierInput) (*models.Chantier, error) {
	if ident.Role != rbac.RoleAdminGeneral {
		return nil, fmt.Errorf("%w: seul l'administrateur général peut créer un chantier", apperr.ErrForbidden)
	}
	if in.Nom == "" || in.Adresse == "" {
		return nil, fmt.Errorf("%w: nom et adresse requis", apperr.ErrValidation)
	}
	if in.BudgetPrevu < 0 {
		return nil, fmt.Errorf("%w: budget prévu négatif", apperr.ErrValidation)
	}
	if in.ClientID != nil {
		if err := s.requireClientAccount(ctx, *in.ClientID); err != nil {
			return nil, err
		}
	}
	chantier := models.Chantier{
		Nom:         in.Nom,
		Reference:   s.newReference(ctx),
		Adresse:     in.Adresse,
		Ville:       in.Ville,
		ClientID:    in.ClientID,
		BudgetPrevu: in.BudgetPrevu,
		Status:      models.ChantierEnPreparation,
		DateDebut:   in.DateDebut,
		DateFin:     in.DateFin,
		Description: in.Description,
	}
	if chantier.Ville == "" {
		chantier.Ville = "Dakar"
	}
	if err := s.db.WithContext(ctx).Create(&chantier).Error; err != nil {
		return nil, err
	}
	return &chantier, nil
}

// Update edits a chantier. Budget changes require edit_budget_global, which
// only admin_general holds.
func (s *ChantierService) Update(ctx context.Context, ident rbac.Identity, id uint, in ChantierUpdate) (*models.Chantier, error) {
	if rbac.IsReadOnly(ident.Role) {
		return nil, fmt.Errorf("%w: le rôle direction est en lecture seule", apperr.ErrForbidden)
	}
	if !rbac.HasPermission(ident.Role, rbac.PermEditChantier) {
		return nil, fmt.Errorf("%w: permission edit_chantier requise", apperr.ErrForbidden)
	}
	chantier, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rbac.CanAccessChantier(ident, id) {
		return nil, fmt.Errorf("%w: vous n'avez pas accès au chantier %d", apperr.ErrForbidden, id)
	}
	if chantier.Status == models.ChantierArchive {
		return nil, fmt.Errorf("%w: un chantier archivé n'est plus modifiable", apperr.ErrInvalidState)
	}

	updates := map[string]any{}
	if in.Nom != nil {
		updates["nom"] = *in.Nom
	}
	if in.Adresse != nil {
		updates["adresse"] = *in.Adresse
	}
	if in.Ville != nil {
		updates["ville"] = *in.Ville
	}
	if in.ClientID != nil {
		if err := s.requireClientAccount(ctx, *in.ClientID); err != nil {
			return nil, err
		}
		updates["client_id"] = *in.ClientID
	}
	if in.BudgetPrevu != nil {
		if !rbac.HasPermission(ident.Role, rbac.PermEditBudgetGlobal) {
			return nil, fmt.Errorf("%w: permission edit_budget_global requise", apperr.ErrForbidden)
		}
		if *in.BudgetPrevu < 0 {
			return nil, fmt.Errorf("%w: budget prévu négatif", apperr.ErrValidation)
		}
		updates["budget_prevu"] = *in.BudgetPrevu
	}
	if in.Progression != nil {
		if *in.Progression < 0 || *in.Progression > 100 {
			return nil, fmt.Errorf("%w: progression hors de [0, 100]", apperr.ErrValidation)
		}
		updates["progression"] = *in.Progression
	}
	if in.Status != nil {
		if _, ok := chantierStatuses[*in.Status]; !ok {
			return nil, fmt.Errorf("%w: statut invalide: %s", apperr.ErrValidation, *in.Status)
		}
		if *in.Status == models.ChantierArchive && ident.Role != rbac.RoleAdminGeneral {
			return nil, fmt.Errorf("%w: seul l'administrateur général peut archiver", apperr.ErrForbidden)
		}
		updates["status"] = *in.Status
	}
	if in.DateDebut != nil {
		updates["date_debut"] = *in.DateDebut
	}
	if in.DateFin != nil {
		updates["date_fin"] = *in.DateFin
	}
	if in.Description != nil {
		updates["description"] = *in.Description
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(chantier).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.find(ctx, id)
}

// Archive moves a chantier to archive. admin_general only; archived chantiers
// stay readable but refuse further mutation.
func (s *ChantierService) Archive(ctx context.Context, ident rbac.Identity, id uint) (*models.Chantier, error) {
	if ident.Role != rbac.RoleAdminGeneral {
		return nil, fmt.Errorf("%w: seul l'administrateur général peut archiver", apperr.ErrForbidden)
	}
	chantier, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if chantier.Status == models.ChantierArchive {
		return chantier, nil
	}
	if err := s.db.WithContext(ctx).Model(chantier).Update("status", models.ChantierArchive).Error; err != nil {
		return nil, err
	}
	return s.find(ctx, id)
}

// Delete removes a chantier. admin_general only, archived chantiers only.
func (s *ChantierService) Delete(ctx context.Context, ident rbac.Identity, id uint) error {
	if ident.Role != rbac.RoleAdminGeneral {
		return fmt.Errorf("%w: seul l'administrateur général peut supprimer un chantier", apperr.ErrForbidden)
	}
	chantier, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if chantier.Status != models.ChantierArchive {
		return fmt.Errorf("%w: archivez le chantier avant de le supprimer", apperr.ErrInvalidState)
	}
	return s.db.WithContext(ctx).Delete(chantier).Error
}

// List returns the chantiers visible to the identity.
func (s *ChantierService) List(ctx context.Context, ident rbac.Identity, status string) ([]models.Chantier, error) {
	if !rbac.HasAnyPermission(ident.Role,
		rbac.PermViewChantiers, rbac.PermViewAllChantiers,
		rbac.PermViewChantiersAssignes, rbac.PermViewChantierPropre) {
		return nil, fmt.Errorf("%w: permission view_chantiers requise", apperr.ErrForbidden)
	}
	q := s.db.WithContext(ctx).Model(&models.Chantier{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var chantiers []models.Chantier
	if err := q.Order("created_at desc").Find(&chantiers).Error; err != nil {
		return nil, err
	}
	return scope.Chantiers(ident, chantiers), nil
}

// Get returns one chantier if the identity may see it. Clients see only
// their own chantiers.
func (s *ChantierService) Get(ctx context.Context, ident rbac.Identity, id uint) (*models.Chantier, error) {
	chantier, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if ident.Role == rbac.RoleClient {
		if chantier.ClientID == nil || *chantier.ClientID != ident.UserID {
			return nil, fmt.Errorf("%w: ce chantier ne vous appartient pas", apperr.ErrForbidden)
		}
		return chantier, nil
	}
	if !rbac.CanAccessChantier(ident, id) {
		return nil, fmt.Errorf("%w: vous n'avez pas accès au chantier %d", apperr.ErrForbidden, id)
	}
	return chantier, nil
}

// Assign links a user to a chantier. admin_general only. Re-assigning is a
// conflict, clients are never assigned (ownership goes through client_id).
func (s *ChantierService) Assign(ctx context.Context, ident rbac.Identity, chantierID, userID uint) error {
	if ident.Role != rbac.RoleAdminGeneral {
		return fmt.Errorf("%w: seul l'administrateur général peut assigner", apperr.ErrForbidden)
	}
	if _, err := s.find(ctx, chantierID); err != nil {
		return err
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: utilisateur %d", apperr.ErrNotFound, userID)
		}
		return err
	}
	if user.Role == string(rbac.RoleClient) {
		return fmt.Errorf("%w: un client n'est pas assignable, utilisez client_id", apperr.ErrValidation)
	}
	var count int64
	s.db.WithContext(ctx).Model(&models.ChantierAssignment{}).
		Where("user_id = ? AND chantier_id = ?", userID, chantierID).Count(&count)
	if count > 0 {
		return fmt.Errorf("%w: utilisateur déjà assigné à ce chantier", apperr.ErrConflict)
	}
	if err := s.db.WithContext(ctx).Create(&models.ChantierAssignment{
		UserID: userID, ChantierID: chantierID,
	}).Error; err != nil {
		return err
	}
	s.notifier.NotifyUser(ctx, userID, "Nouvelle assignation",
		fmt.Sprintf("Vous êtes assigné au chantier %d", chantierID),
		"info", "chantier", &chantierID)
	return nil
}

// Unassign removes the link. admin_general only.
func (s *ChantierService) Unassign(ctx context.Context, ident rbac.Identity, chantierID, userID uint) error {
	if ident.Role != rbac.RoleAdminGeneral {
		return fmt.Errorf("%w: seul l'administrateur général peut désassigner", apperr.ErrForbidden)
	}
	res := s.db.WithContext(ctx).
		Where("user_id = ? AND chantier_id = ?", userID, chantierID).
		Delete(&models.ChantierAssignment{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: assignation introuvable", apperr.ErrNotFound)
	}
	return nil
}

// Assignments lists the user IDs assigned to a chantier.
func (s *ChantierService) Assignments(ctx context.Context, ident rbac.Identity, chantierID uint) ([]uint, error) {
	if !rbac.CanAccessChantier(ident, chantierID) {
		return nil, fmt.Errorf("%w: vous n'avez pas accès au chantier %d", apperr.ErrForbidden, chantierID)
	}
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.ChantierAssignment{}).
		Where("chantier_id = ?", chantierID).Pluck("user_id", &ids).Error
	return ids, err
}

// AssignedChantierIDs lists the chantier IDs of one user, for identity
// construction at login.
func (s *ChantierService) AssignedChantierIDs(ctx context.Context, userID uint) ([]uint, error) {
	var ids []uint
	err := s.db.WithContext(ctx).Model(&models.ChantierAssignment{}).
		Where("user_id = ?", userID).Pluck("chantier_id", &ids).Error
	return ids, err
}

func (s *ChantierService) requireClientAccount(ctx context.Context, userID uint) error {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: utilisateur %d", apperr.ErrNotFound, userID)
		}
		return err
	}
	if user.Role != string(rbac.RoleClient) {
		return fmt.Errorf("%w: l'utilisateur %d n'a pas le rôle client", apperr.ErrValidation, userID)
	}
	return nil
}

func (s *ChantierService) find(ctx context.Context, id uint) (*models.Chantier, error) {
	var chantier models.Chantier
	if err := s.db.WithContext(ctx).First(&chantier, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: chantier %d", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return &chantier, nil
}

func (s *ChantierService) newReference(ctx context.Context) string {
	for {
		ref := fmt.Sprintf("CHT-%s-%04d", time.Now().Format("2006"), rand.Intn(10000))
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.Chantier{}).
			Where("reference = ?", ref).Count(&count).Error; err != nil || count == 0 {
			return ref
		}
	}
}
