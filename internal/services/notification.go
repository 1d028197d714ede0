package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nexusbtp/nexus-backend/internal/apperr"
	"github.com/nexusbtp/nexus-backend/internal/models"
	"github.com/nexusbtp/nexus-backend/internal/rbac"
)

// Notifier delivers workflow notifications. Delivery is fire-and-forget:
// failures are logged, never propagated to the triggering transition.
type Notifier struct {
	db  *gorm.DB
	log *zap.Logger
}

func NewNotifier(db *gorm.DB, log *zap.Logger) *Notifier {
	return &Notifier{db: db, log: log}
}

// NotifyUser stores a notification for one user.
func (n *Notifier) NotifyUser(ctx context.Context, userID uint, titre, message, typeNotif, categorie string, chantierID *uint) {
	notif := models.Notification{
		Titre:      titre,
		Message:    message,
		TypeNotif:  typeNotif,
		Categorie:  categorie,
		UserID:     userID,
		ChantierID: chantierID,
	}
	if err := n.db.WithContext(ctx).Create(&notif).Error; err != nil {
		n.log.Warn("notification non délivrée",
			zap.Uint("user_id", userID),
			zap.String("categorie", categorie),
			zap.Error(err))
	}
}

// NotifyRole stores a notification for every active user holding the role.
func (n *Notifier) NotifyRole(ctx context.Context, role rbac.Role, titre, message, typeNotif, categorie string, chantierID *uint) {
	var users []models.User
	if err := n.db.WithContext(ctx).
		Where("role = ? AND is_active = ?", string(role), true).
		Find(&users).Error; err != nil {
		n.log.Warn("notification de rôle non délivrée", zap.String("role", string(role)), zap.Error(err))
		return
	}
	for _, u := range users {
		n.NotifyUser(ctx, u.ID, titre, message, typeNotif, categorie, chantierID)
	}
}

// NotificationService exposes the user-facing notification operations.
// Every mutation is restricted to the owning user.
type NotificationService struct {
	db *gorm.DB
}

func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

func (s *NotificationService) List(ctx context.Context, ident rbac.Identity, categorie string, unreadOnly bool) ([]models.Notification, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", ident.UserID)
	if categorie != "" {
		q = q.Where("categorie = ?", categorie)
	}
	if unreadOnly {
		q = q.Where("is_read = ?", false)
	}
	var notifs []models.Notification
	if err := q.Order("created_at desc").Find(&notifs).Error; err != nil {
		return nil, err
	}
	return notifs, nil
}

func (s *NotificationService) CountUnread(ctx context.Context, ident rbac.Identity) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", ident.UserID, false).
		Count(&count).Error
	return count, err
}

// MarkRead marks one notification read. Owned notifications only.
func (s *NotificationService) MarkRead(ctx context.Context, ident rbac.Identity, id uint) error {
	notif, err := s.owned(ctx, ident, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(notif).Update("is_read", true).Error
}

// MarkAllRead marks every unread notification of the caller as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, ident rbac.Identity) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", ident.UserID, false).
		Update("is_read", true)
	return res.RowsAffected, res.Error
}

// Delete removes one notification. Owned notifications only.
func (s *NotificationService) Delete(ctx context.Context, ident rbac.Identity, id uint) error {
	notif, err := s.owned(ctx, ident, id)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(notif).Error
}

// Broadcast sends a notification to every active user. admin_general only.
func (s *NotificationService) Broadcast(ctx context.Context, ident rbac.Identity, titre, message, typeNotif, categorie string) (int, error) {
	if ident.Role != rbac.RoleAdminGeneral {
		return 0, fmt.Errorf("%w: diffusion réservée à l'administrateur général", apperr.ErrForbidden)
	}
	var users []models.User
	if err := s.db.WithContext(ctx).Where("is_active = ?", true).Find(&users).Error; err != nil {
		return 0, err
	}
	for _, u := range users {
		notif := models.Notification{
			Titre: titre, Message: message, TypeNotif: typeNotif,
			Categorie: categorie, UserID: u.ID,
		}
		if err := s.db.WithContext(ctx).Create(&notif).Error; err != nil {
			return 0, err
		}
	}
	return len(users), nil
}

func (s *NotificationService) owned(ctx context.Context, ident rbac.Identity, id uint) (*models.Notification, error) {
	var notif models.Notification
	if err := s.db.WithContext(ctx).First(&notif, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: notification %d", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	if notif.UserID != ident.UserID {
		return nil, fmt.Errorf("%w: cette notification ne vous appartient pas", apperr.ErrForbidden)
	}
	return &notif, nil
}
