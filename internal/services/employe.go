package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nexusbtp/nexus-backend/internal/apperr"
	"github.com/nexusbtp/nexus-backend/internal/models"
	"github.com/nexusbtp/nexus-backend/internal/rbac"
	"github.com/nexusbtp/nexus-backend/internal/scope"
)

var presenceStatuses = map[string]struct{}{
	"present": {}, "absent": {}, "retard": {},
}

// EmployeService manages the employee records and the daily attendance.
// Salary fields never leave this layer unredacted: reads go through
// scope.EmployeView.
type EmployeService struct {
	db       *gorm.DB
	notifier *Notifier
	log      *zap.Logger
}

func NewEmployeService(db *gorm.DB, notifier *Notifier, log *zap.Logger) *EmployeService {
	return &EmployeService{db: db, notifier: notifier, log: log}
}

type EmployeInput struct {
	Matricule         string  `json:"matricule"`
	Nom               string  `json:"nom"`
	Prenom            string  `json:"prenom"`
	Telephone         string  `json:"telephone"`
	Poste             string  `json:"poste"`
	SalaireJournalier float64 `json:"salaire_journalier"`
	InfoBancaire      string  `json:"info_bancaire"`
	DateEmbauche      string  `json:"date_embauche"` // YYYY-MM-DD
	ChantierID        *uint   `json:"chantier_id"`
}

type PresenceInput struct {
	EmployeID         uint    `json:"employe_id"`
	ChantierID        uint    `json:"chantier_id"`
	Date              string  `json:"date"` // YYYY-MM-DD
	HeuresTravaillees float64 `json:"heures_travaillees"`
	Status            string  `json:"status"`
	Commentaire       string  `json:"commentaire"`
}

// Create registers an employee. admin_general only.
func (s *EmployeService) Create(ctx context.Context, ident rbac.Identity, in EmployeInput) (*scope.EmployeView, error) {
	if ident.Role != rbac.RoleAdminGeneral {
		return nil, fmt.Errorf("%w: seul l'administrateur général peut créer un employé", apperr.ErrForbidden)
	}
	if in.Matricule == "" || in.Nom == "" || in.Prenom == "" || in.Poste == "" {
		return nil, fmt.Errorf("%w: matricule, nom, prénom et poste requis", apperr.ErrValidation)
	}
	if in.SalaireJournalier < 0 {
		return nil, fmt.Errorf("%w: salaire journalier négatif", apperr.ErrValidation)
	}
	embauche, err := time.Parse("2006-01-02", in.DateEmbauche)
	if err != nil {
		return nil, fmt.Errorf("%w: date d'embauche invalide, format attendu YYYY-MM-DD", apperr.ErrValidation)
	}
	var dup int64
	if err := s.db.WithContext(ctx).Model(&models.Employe{}).
		Where("matricule = ?", in.Matricule).Count(&dup).Error; err != nil {
		return nil, err
	}
	if dup > 0 {
		return nil, fmt.Errorf("%w: matricule déjà utilisé", apperr.ErrConflict)
	}
	employe := models.Employe{
		Matricule:         in.Matricule,
		Nom:               in.Nom,
		Prenom:            in.Prenom,
		Telephone:         in.Telephone,
		Poste:             in.Poste,
		SalaireJournalier: in.SalaireJournalier,
		InfoBancaire:      in.InfoBancaire,
		DateEmbauche:      embauche,
		IsActive:          true,
		ChantierID:        in.ChantierID,
	}
	if err := s.db.WithContext(ctx).Create(&employe).Error; err != nil {
		return nil, err
	}
	view := scope.Employe(ident, employe)
	return &view, nil
}

// Update edits an employee. admin_general only (salary and banking data are
// admin territory).
func (s *EmployeService) Update(ctx context.Context, ident rbac.Identity, id uint, in EmployeInput) (*scope.EmployeView, error) {
	if ident.Role != rbac.RoleAdminGeneral {
		return nil, fmt.Errorf("%w: seul l'administrateur général peut modifier un employé", apperr.ErrForbidden)
	}
	employe, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	updates := map[string]any{
		"nom":       choose(in.Nom, employe.Nom),
		"prenom":    choose(in.Prenom, employe.Prenom),
		"telephone": choose(in.Telephone, employe.Telephone),
		"poste":     choose(in.Poste, employe.Poste),
	}
	if in.SalaireJournalier > 0 {
		updates["salaire_journalier"] = in.SalaireJournalier
	}
	if in.InfoBancaire != "" {
		updates["info_bancaire"] = in.InfoBancaire
	}
	if in.ChantierID != nil {
		updates["chantier_id"] = *in.ChantierID
	}
	if err := s.db.WithContext(ctx).Model(employe).Updates(updates).Error; err != nil {
		return nil, err
	}
	employe, err = s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	view := scope.Employe(ident, *employe)
	return &view, nil
}

// Deactivate marks an employee inactive. Records are never deleted, the
// attendance history must survive the departure.
func (s *EmployeService) Deactivate(ctx context.Context, ident rbac.Identity, id uint) error {
	if !rbac.HasPermission(ident.Role, rbac.PermDeleteEmploye) {
		return fmt.Errorf("%w: permission delete_employe requise", apperr.ErrForbidden)
	}
	employe, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(employe).Update("is_active", false).Error
}

// List returns the employees visible to the identity, salary fields redacted
// per role.
func (s *EmployeService) List(ctx context.Context, ident rbac.Identity, chantierID uint, activeOnly bool) ([]scope.EmployeView, error) {
	if !rbac.HasAnyPermission(ident.Role, rbac.PermViewEmployes, rbac.PermViewAllEmployes) {
		return nil, fmt.Errorf("%w: permission view_employes requise", apperr.ErrForbidden)
	}
	q := s.db.WithContext(ctx).Model(&models.Employe{})
	if chantierID != 0 {
		if !rbac.CanAccessChantier(ident, chantierID) {
			return nil, fmt.Errorf("%w: vous n'avez pas accès au chantier %d", apperr.ErrForbidden, chantierID)
		}
		q = q.Where("chantier_id = ?", chantierID)
	} else if !rbac.HasGlobalChantierAccess(ident.Role) {
		q = q.Where("chantier_id IN ?", orEmpty(ident.ChantiersAssignes))
	}
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var employes []models.Employe
	if err := q.Order("nom, prenom").Find(&employes).Error; err != nil {
		return nil, err
	}
	return scope.Employes(ident, employes), nil
}

// Get returns one employee view.
func (s *EmployeService) Get(ctx context.Context, ident rbac.Identity, id uint) (*scope.EmployeView, error) {
	if !rbac.HasAnyPermission(ident.Role, rbac.PermViewEmployes, rbac.PermViewAllEmployes) {
		return nil, fmt.Errorf("%w: permission view_employes requise", apperr.ErrForbidden)
	}
	employe, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if employe.ChantierID != nil && !rbac.CanAccessChantier(ident, *employe.ChantierID) {
		return nil, fmt.Errorf("%w: vous n'avez pas accès à cet employé", apperr.ErrForbidden)
	}
	view := scope.Employe(ident, *employe)
	return &view, nil
}

// Pointer records one attendance entry. One entry per employee and day; a
// duplicate is a conflict, never an overwrite.
func (s *EmployeService) Pointer(ctx context.Context, ident rbac.Identity, in PresenceInput) (*models.Presence, error) {
	if rbac.IsReadOnly(ident.Role) {
		return nil, fmt.Errorf("%w: le rôle direction est en lecture seule", apperr.ErrForbidden)
	}
	if !rbac.HasAnyPermission(ident.Role, rbac.PermPointer, rbac.PermCreatePresence) {
		return nil, fmt.Errorf("%w: permission pointer requise", apperr.ErrForbidden)
	}
	if !rbac.CanAccessChantier(ident, in.ChantierID) {
		return nil, fmt.Errorf("%w: vous n'avez pas accès au chantier %d", apperr.ErrForbidden, in.ChantierID)
	}
	if _, err := time.Parse("2006-01-02", in.Date); err != nil {
		return nil, fmt.Errorf("%w: date invalide, format attendu YYYY-MM-DD", apperr.ErrValidation)
	}
	if in.Status == "" {
		in.Status = "present"
	}
	if _, ok := presenceStatuses[in.Status]; !ok {
		return nil, fmt.Errorf("%w: statut de présence invalide: %s", apperr.ErrValidation, in.Status)
	}
	if in.HeuresTravaillees == 0 && in.Status == "present" {
		in.HeuresTravaillees = 8
	}
	employe, err := s.find(ctx, in.EmployeID)
	if err != nil {
		return nil, err
	}
	if !employe.IsActive {
		return nil, fmt.Errorf("%w: employé inactif", apperr.ErrInvalidState)
	}

	var dup int64
	if err := s.db.WithContext(ctx).Model(&models.Presence{}).
		Where("employe_id = ? AND date = ?", in.EmployeID, in.Date).Count(&dup).Error; err != nil {
		return nil, err
	}
	if dup > 0 {
		return nil, fmt.Errorf("%w: pointage déjà enregistré pour %s le %s", apperr.ErrConflict, employe.Matricule, in.Date)
	}

	presence := models.Presence{
		EmployeID:         in.EmployeID,
		ChantierID:        in.ChantierID,
		Date:              in.Date,
		HeuresTravaillees: in.HeuresTravaillees,
		Status:            in.Status,
		Commentaire:       in.Commentaire,
	}
	if err := s.db.WithContext(ctx).Create(&presence).Error; err != nil {
		// L'index unique couvre la course entre le count et l'insert.
		return nil, fmt.Errorf("%w: pointage déjà enregistré pour %s le %s", apperr.ErrConflict, employe.Matricule, in.Date)
	}
	return &presence, nil
}

// Presences lists the attendance entries visible to the identity; an ouvrier
// sees only their own rows.
func (s *EmployeService) Presences(ctx context.Context, ident rbac.Identity, chantierID uint, from, to string) ([]models.Presence, error) {
	if !rbac.HasAnyPermission(ident.Role,
		rbac.PermViewPresences, rbac.PermViewAllPresences, rbac.PermViewPresencePersonnelle) {
		return nil, fmt.Errorf("%w: permission view_presences requise", apperr.ErrForbidden)
	}
	q := s.db.WithContext(ctx).Model(&models.Presence{})
	if chantierID != 0 {
		if ident.Role != rbac.RoleOuvrier && !rbac.CanAccessChantier(ident, chantierID) {
			return nil, fmt.Errorf("%w: vous n'avez pas accès au chantier %d", apperr.ErrForbidden, chantierID)
		}
		q = q.Where("chantier_id = ?", chantierID)
	}
	if from != "" {
		q = q.Where("date >= ?", from)
	}
	if to != "" {
		q = q.Where("date <= ?", to)
	}
	var presences []models.Presence
	if err := q.Order("date desc").Find(&presences).Error; err != nil {
		return nil, err
	}
	return scope.Presences(ident, presences), nil
}

// PaieEmploye computes the pay of one employee over a date range: presence
// days times the daily wage, prorated by hours for partial days. view_salaires
// required.
func (s *EmployeService) PaieEmploye(ctx context.Context, ident rbac.Identity, employeID uint, from, to string) (float64, int, error) {
	if !rbac.HasPermission(ident.Role, rbac.PermViewSalaires) {
		return 0, 0, fmt.Errorf("%w: permission view_salaires requise", apperr.ErrForbidden)
	}
	employe, err := s.find(ctx, employeID)
	if err != nil {
		return 0, 0, err
	}
	var presences []models.Presence
	q := s.db.WithContext(ctx).
		Where("employe_id = ? AND status IN ?", employeID, []string{"present", "retard"})
	if from != "" {
		q = q.Where("date >= ?", from)
	}
	if to != "" {
		q = q.Where("date <= ?", to)
	}
	if err := q.Find(&presences).Error; err != nil {
		return 0, 0, err
	}
	var total float64
	for _, p := range presences {
		total += employe.SalaireJournalier * (p.HeuresTravaillees / 8)
	}
	return total, len(presences), nil
}

func (s *EmployeService) find(ctx context.Context, id uint) (*models.Employe, error) {
	var employe models.Employe
	if err := s.db.WithContext(ctx).First(&employe, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: employé %d", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return &employe, nil
}
