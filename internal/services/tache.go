package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/nexusbtp/nexus-backend/internal/apperr"
	"github.com/nexusbtp/nexus-backend/internal/models"
	"github.com/nexusbtp/nexus-backend/internal/rbac"
	"github.com/nexusbtp/nexus-backend/internal/scope"
)

var tacheStatuses = map[string]struct{}{
	"a_faire": {}, "en_cours": {}, "terminee": {},
}

// TacheService manages the chantier tasks. Ouvriers see and advance only
// their own tasks.
type TacheService struct {
	db       *gorm.DB
	notifier *Notifier
}

func NewTacheService(db *gorm.DB, notifier *Notifier) *TacheService {
	return &TacheService{db: db, notifier: notifier}
}

type TacheInput struct {
	Titre       string `json:"titre"`
	Description string `json:"description"`
	ChantierID  uint   `json:"chantier_id"`
	AssigneA    *uint  `json:"assigne_a"`
}

// Create registers a task on a chantier the creator may access.
func (s *TacheService) Create(ctx context.Context, ident rbac.Identity, in TacheInput) (*models.Tache, error) {
	if rbac.IsReadOnly(ident.Role) {
		return nil, fmt.Errorf("%w: le rôle direction est en lecture seule", apperr.ErrForbidden)
	}
	if !rbac.HasPermission(ident.Role, rbac.PermCreateTache) {
		return nil, fmt.Errorf("%w: permission create_tache requise", apperr.ErrForbidden)
	}
	if in.Titre == "" {
		return nil, fmt.Errorf("%w: titre requis", apperr.ErrValidation)
	}
	if !rbac.CanAccessChantier(ident, in.ChantierID) {
		return nil, fmt.Errorf("%w: vous n'avez pas accès au chantier %d", apperr.ErrForbidden, in.ChantierID)
	}
	if in.AssigneA != nil {
		var emp models.Employe
		if err := s.db.WithContext(ctx).First(&emp, *in.AssigneA).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: employé %d", apperr.ErrNotFound, *in.AssigneA)
			}
			return nil, err
		}
	}
	tache := models.Tache{
		Titre:       in.Titre,
		Description: in.Description,
		Status:      "a_faire",
		ChantierID:  in.ChantierID,
		AssigneA:    in.AssigneA,
		CreatedBy:   ident.UserID,
	}
	if err := s.db.WithContext(ctx).Create(&tache).Error; err != nil {
		return nil, err
	}
	return &tache, nil
}

// UpdateAvancement updates progress and status. Ouvriers may only advance
// their own tasks.
func (s *TacheService) UpdateAvancement(ctx context.Context, ident rbac.Identity, id uint, avancement int, status string) (*models.Tache, error) {
	if rbac.IsReadOnly(ident.Role) {
		return nil, fmt.Errorf("%w: le rôle direction est en lecture seule", apperr.ErrForbidden)
	}
	if !rbac.HasPermission(ident.Role, rbac.PermUpdateAvancement) {
		return nil, fmt.Errorf("%w: permission update_avancement requise", apperr.ErrForbidden)
	}
	if avancement < 0 || avancement > 100 {
		return nil, fmt.Errorf("%w: avancement hors de [0, 100]", apperr.ErrValidation)
	}
	tache, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if ident.Role == rbac.RoleOuvrier {
		if tache.AssigneA == nil || ident.EmployeID == 0 || *tache.AssigneA != ident.EmployeID {
			return nil, fmt.Errorf("%w: cette tâche ne vous est pas assignée", apperr.ErrForbidden)
		}
	} else if !rbac.CanAccessChantier(ident, tache.ChantierID) {
		return nil, fmt.Errorf("%w: vous n'avez pas accès au chantier %d", apperr.ErrForbidden, tache.ChantierID)
	}
	updates := map[string]any{"avancement": avancement}
	if status != "" {
		if _, ok := tacheStatuses[status]; !ok {
			return nil, fmt.Errorf("%w: statut invalide: %s", apperr.ErrValidation, status)
		}
		updates["status"] = status
	} else if avancement == 100 {
		updates["status"] = "terminee"
	} else if avancement > 0 && tache.Status == "a_faire" {
		updates["status"] = "en_cours"
	}
	if err := s.db.WithContext(ctx).Model(tache).Updates(updates).Error; err != nil {
		return nil, err
	}
	return s.find(ctx, id)
}

// Assign links a task to an employee and notifies the linked account if any.
func (s *TacheService) Assign(ctx context.Context, ident rbac.Identity, id, employeID uint) (*models.Tache, error) {
	if rbac.IsReadOnly(ident.Role) {
		return nil, fmt.Errorf("%w: le rôle direction est en lecture seule", apperr.ErrForbidden)
	}
	if !rbac.HasPermission(ident.Role, rbac.PermAssignTache) {
		return nil, fmt.Errorf("%w: permission assign_tache requise", apperr.ErrForbidden)
	}
	tache, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rbac.CanAccessChantier(ident, tache.ChantierID) {
		return nil, fmt.Errorf("%w: vous n'avez pas accès au chantier %d", apperr.ErrForbidden, tache.ChantierID)
	}
	var emp models.Employe
	if err := s.db.WithContext(ctx).First(&emp, employeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: employé %d", apperr.ErrNotFound, employeID)
		}
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(tache).Update("assigne_a", employeID).Error; err != nil {
		return nil, err
	}
	var account models.User
	if err := s.db.WithContext(ctx).Where("employe_id = ?", employeID).First(&account).Error; err == nil {
		s.notifier.NotifyUser(ctx, account.ID, "Nouvelle tâche",
			fmt.Sprintf("La tâche %s vous a été assignée", tache.Titre),
			"info", "chantier", &tache.ChantierID)
	}
	return s.find(ctx, id)
}

// Delete removes a task.
func (s *TacheService) Delete(ctx context.Context, ident rbac.Identity, id uint) error {
	if !rbac.HasPermission(ident.Role, rbac.PermDeleteTache) {
		return fmt.Errorf("%w: permission delete_tache requise", apperr.ErrForbidden)
	}
	tache, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if !rbac.CanAccessChantier(ident, tache.ChantierID) {
		return fmt.Errorf("%w: vous n'avez pas accès au chantier %d", apperr.ErrForbidden, tache.ChantierID)
	}
	return s.db.WithContext(ctx).Delete(tache).Error
}

// List returns the tasks visible to the identity.
func (s *TacheService) List(ctx context.Context, ident rbac.Identity, chantierID uint, status string) ([]models.Tache, error) {
	if !rbac.HasAnyPermission(ident.Role, rbac.PermViewTaches, rbac.PermViewTachesAssignees) {
		return nil, fmt.Errorf("%w: permission view_taches requise", apperr.ErrForbidden)
	}
	q := s.db.WithContext(ctx).Model(&models.Tache{})
	if chantierID != 0 {
		if ident.Role != rbac.RoleOuvrier && !rbac.CanAccessChantier(ident, chantierID) {
			return nil, fmt.Errorf("%w: vous n'avez pas accès au chantier %d", apperr.ErrForbidden, chantierID)
		}
		q = q.Where("chantier_id = ?", chantierID)
	}
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var taches []models.Tache
	if err := q.Order("created_at desc").Find(&taches).Error; err != nil {
		return nil, err
	}
	return scope.Taches(ident, taches), nil
}

func (s *TacheService) find(ctx context.Context, id uint) (*models.Tache, error) {
	var tache models.Tache
	if err := s.db.WithContext(ctx).First(&tache, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: tâche %d", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return &tache, nil
}
