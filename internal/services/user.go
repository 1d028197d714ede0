package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nexusbtp/nexus-backend/internal/apperr"
	"github.com/nexusbtp/nexus-backend/internal/auth"
	"github.com/nexusbtp/nexus-backend/internal/config"
	"github.com/nexusbtp/nexus-backend/internal/models"
	"github.com/nexusbtp/nexus-backend/internal/rbac"
)

// UserService manages accounts, authentication and role changes. Exactly one
// admin_general account exists; every attempt to create or promote a second
// one is a conflict.
type UserService struct {
	db  *gorm.DB
	cfg config.Config
	log *zap.Logger
}

func NewUserService(db *gorm.DB, cfg config.Config, log *zap.Logger) *UserService {
	return &UserService{db: db, cfg: cfg, log: log}
}

type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Nom       string `json:"nom"`
	Prenom    string `json:"prenom"`
	Telephone string `json:"telephone"`
	Role      string `json:"role"`
	EmployeID *uint  `json:"employe_id"`
}

type TokenPair struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	User         models.User `json:"user"`
}

// Register creates an account. admin_general only; fails closed on unknown
// roles and refuses a second admin_general.
func (s *UserService) Register(ctx context.Context, ident rbac.Identity, in RegisterInput) (*models.User, error) {
	role := rbac.Role(in.Role)
	if !rbac.CanCreateUser(ident.Role, role) {
		return nil, fmt.Errorf("%w: seul l'administrateur général peut créer des comptes", apperr.ErrForbidden)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: rôle inconnu: %s", apperr.ErrValidation, in.Role)
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.Email == "" || !strings.Contains(in.Email, "@") {
		return nil, fmt.Errorf("%w: email invalide", apperr.ErrValidation)
	}
	if len(in.Password) < 8 {
		return nil, fmt.Errorf("%w: mot de passe trop court (8 caractères minimum)", apperr.ErrValidation)
	}
	if role == rbac.RoleAdminGeneral {
		var admins int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).
			Where("role = ?", string(rbac.RoleAdminGeneral)).Count(&admins).Error; err != nil {
			return nil, err
		}
		if admins > 0 {
			return nil, fmt.Errorf("%w: un compte admin_general existe déjà", apperr.ErrConflict)
		}
	}
	var existing int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", in.Email).Count(&existing).Error; err != nil {
		return nil, err
	}
	if existing > 0 {
		return nil, fmt.Errorf("%w: email déjà utilisé", apperr.ErrConflict)
	}
	if in.EmployeID != nil {
		var emp models.Employe
		if err := s.db.WithContext(ctx).First(&emp, *in.EmployeID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: employé %d", apperr.ErrNotFound, *in.EmployeID)
			}
			return nil, err
		}
	}

	hashed, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := models.User{
		Email:     in.Email,
		Password:  hashed,
		Nom:       in.Nom,
		Prenom:    in.Prenom,
		Telephone: in.Telephone,
		Role:      string(role),
		IsActive:  true,
		EmployeID: in.EmployeID,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		return nil, err
	}
	s.log.Info("compte créé", zap.Uint("user_id", user.ID), zap.String("role", user.Role))
	return &user, nil
}

// Login verifies the credentials and issues an access/refresh token pair.
// A generic Forbidden is returned whether the email or the password is wrong,
// so the endpoint leaks nothing about existing accounts.
func (s *UserService) Login(ctx context.Context, email, password string) (*TokenPair, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: identifiants invalides", apperr.ErrForbidden)
		}
		return nil, err
	}
	if !auth.VerifyPassword(password, user.Password) {
		return nil, fmt.Errorf("%w: identifiants invalides", apperr.ErrForbidden)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: compte désactivé", apperr.ErrForbidden)
	}
	return s.issueTokens(ctx, &user)
}

// Refresh exchanges a valid refresh token for a new pair. The identity is
// rebuilt from the database, so a role change or deactivation takes effect
// at the next refresh.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := auth.ParseToken(s.cfg.JWTSecret, refreshToken)
	if err != nil || claims.TokenType != auth.TokenTypeRefresh {
		return nil, fmt.Errorf("%w: jeton de rafraîchissement invalide", apperr.ErrForbidden)
	}
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, claims.UserID).Error; err != nil {
		return nil, fmt.Errorf("%w: jeton de rafraîchissement invalide", apperr.ErrForbidden)
	}
	if !user.IsActive {
		return nil, fmt.Errorf("%w: compte désactivé", apperr.ErrForbidden)
	}
	return s.issueTokens(ctx, &user)
}

// Identity builds the request principal from the stored account.
func (s *UserService) Identity(ctx context.Context, user *models.User) (rbac.Identity, error) {
	var chantiers []uint
	if err := s.db.WithContext(ctx).Model(&models.ChantierAssignment{}).
		Where("user_id = ?", user.ID).Pluck("chantier_id", &chantiers).Error; err != nil {
		return rbac.Identity{}, err
	}
	ident := rbac.Identity{
		UserID:            user.ID,
		Role:              rbac.Role(user.Role),
		ChantiersAssignes: chantiers,
	}
	if user.EmployeID != nil {
		ident.EmployeID = *user.EmployeID
	}
	return ident, nil
}

// ChangeRole assigns a new role to an account. admin_general only; the
// admin_general account itself is untouchable and nobody can be promoted
// into a second admin_general.
func (s *UserService) ChangeRole(ctx context.Context, ident rbac.Identity, userID uint, newRole rbac.Role) (*models.User, error) {
	if !rbac.CanChangeRole(ident.Role) {
		return nil, fmt.Errorf("%w: seul l'administrateur général peut changer les rôles", apperr.ErrForbidden)
	}
	if !newRole.Valid() {
		return nil, fmt.Errorf("%w: rôle inconnu: %s", apperr.ErrValidation, newRole)
	}
	if newRole == rbac.RoleAdminGeneral {
		return nil, fmt.Errorf("%w: un seul compte admin_general est autorisé", apperr.ErrConflict)
	}
	user, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Role == string(rbac.RoleAdminGeneral) {
		return nil, fmt.Errorf("%w: le rôle du compte admin_general ne peut pas être modifié", apperr.ErrForbidden)
	}
	if err := s.db.WithContext(ctx).Model(user).Update("role", string(newRole)).Error; err != nil {
		return nil, err
	}
	s.log.Info("rôle modifié",
		zap.Uint("user_id", userID),
		zap.String("ancien", user.Role),
		zap.String("nouveau", string(newRole)))
	return s.find(ctx, userID)
}

// SetActive activates or deactivates an account. admin_general only; the
// admin account and the caller's own account cannot be deactivated.
func (s *UserService) SetActive(ctx context.Context, ident rbac.Identity, userID uint, active bool) (*models.User, error) {
	if ident.Role != rbac.RoleAdminGeneral {
		return nil, fmt.Errorf("%w: réservé à l'administrateur général", apperr.ErrForbidden)
	}
	user, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !active {
		if user.Role == string(rbac.RoleAdminGeneral) {
			return nil, fmt.Errorf("%w: le compte admin_general ne peut pas être désactivé", apperr.ErrForbidden)
		}
		if user.ID == ident.UserID {
			return nil, fmt.Errorf("%w: impossible de désactiver son propre compte", apperr.ErrValidation)
		}
	}
	if err := s.db.WithContext(ctx).Model(user).Update("is_active", active).Error; err != nil {
		return nil, err
	}
	return s.find(ctx, userID)
}

// List returns every account. admin_general only.
func (s *UserService) List(ctx context.Context, ident rbac.Identity, role string) ([]models.User, error) {
	if ident.Role != rbac.RoleAdminGeneral {
		return nil, fmt.Errorf("%w: réservé à l'administrateur général", apperr.ErrForbidden)
	}
	q := s.db.WithContext(ctx).Model(&models.User{})
	if role != "" {
		q = q.Where("role = ?", role)
	}
	var users []models.User
	err := q.Order("created_at").Find(&users).Error
	return users, err
}

// Get returns an account: self always, anyone for admin_general.
func (s *UserService) Get(ctx context.Context, ident rbac.Identity, userID uint) (*models.User, error) {
	if ident.Role != rbac.RoleAdminGeneral && ident.UserID != userID {
		return nil, fmt.Errorf("%w: vous ne pouvez consulter que votre propre compte", apperr.ErrForbidden)
	}
	return s.find(ctx, userID)
}

// Exists reports whether an active account exists, for the auth middleware.
func (s *UserService) Exists(ctx context.Context, userID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND is_active = ?", userID, true).Count(&count).Error
	return count > 0, err
}

// SeedAdmin creates the initial admin_general account when none exists.
// Called at startup, never via the API.
func (s *UserService) SeedAdmin(ctx context.Context, email, password string) error {
	var admins int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("role = ?", string(rbac.RoleAdminGeneral)).Count(&admins).Error; err != nil {
		return err
	}
	if admins > 0 {
		return nil
	}
	hashed, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	admin := models.User{
		Email:    strings.ToLower(email),
		Password: hashed,
		Nom:      "Admin",
		Prenom:   "Général",
		Role:     string(rbac.RoleAdminGeneral),
		IsActive: true,
	}
	if err := s.db.WithContext(ctx).Create(&admin).Error; err != nil {
		return err
	}
	s.log.Info("compte admin_general initialisé", zap.String("email", admin.Email))
	return nil
}

func (s *UserService) issueTokens(ctx context.Context, user *models.User) (*TokenPair, error) {
	ident, err := s.Identity(ctx, user)
	if err != nil {
		return nil, err
	}
	access, err := auth.NewAccessToken(s.cfg.JWTSecret, ident, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, err
	}
	refresh, err := auth.NewRefreshToken(s.cfg.JWTSecret, user.ID, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{AccessToken: access, RefreshToken: refresh, User: *user}, nil
}

func (s *UserService) find(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: utilisateur %d", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return &user, nil
}
