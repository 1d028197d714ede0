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

// StockService keeps the materiel balances consistent with the movement
// ledger: every quantity change appends a MouvementStock row and adjusts the
// cached balance in one transaction. Sorties and transfers are guarded
// against over-draw with a conditional update, so two concurrent calls can
// never take the balance negative.
type StockService struct {
	db       *gorm.DB
	notifier *Notifier
	log      *zap.Logger
}

func NewStockService(db *gorm.DB, notifier *Notifier, log *zap.Logger) *StockService {
	return &StockService{db: db, notifier: notifier, log: log}
}

type MaterielInput struct {
	Nom          string  `json:"nom"`
	Categorie    string  `json:"categorie"`
	Unite        string  `json:"unite"`
	Quantite     float64 `json:"quantite"`
	SeuilAlerte  float64 `json:"seuil_alerte"`
	PrixUnitaire float64 `json:"prix_unitaire"`
	ChantierID   uint    `json:"chantier_id"`
}

// MaterielUpdate carries partial edits; nil laisse le champ inchangé.
type MaterielUpdate struct {
	Nom          *string  `json:"nom"`
	Categorie    *string  `json:"categorie"`
	Unite        *string  `json:"unite"`
	Quantite     *float64 `json:"quantite"`
	SeuilAlerte  *float64 `json:"seuil_alerte"`
	PrixUnitaire *float64 `json:"prix_unitaire"`
}

type MouvementInput struct {
	MaterielID    uint    `json:"materiel_id"`
	TypeMouvement string  `json:"type_mouvement"` // entree ou sortie
	Quantite      float64 `json:"quantite"`
	Motif         string  `json:"motif"`
}

type TransfertInput struct {
	MaterielID            uint    `json:"materiel_id"`
	ChantierDestinationID uint    `json:"chantier_destination_id"`
	Quantite              float64 `json:"quantite"`
	Motif                 string  `json:"motif"`
}

// CreateMateriel registers a materiel; a non-zero initial quantity is
// recorded as an initial entree movement.
func (s *StockService) CreateMateriel(ctx context.Context, ident rbac.Identity, in MaterielInput) (*models.Materiel, error) {
	if err := s.requireMutable(ident, rbac.PermCreateStock); err != nil {
		return nil, err
	}
	if in.Quantite < 0 {
		return nil, fmt.Errorf("%w: quantité initiale négative", apperr.ErrValidation)
	}
	materiel := models.Materiel{
		Nom:          in.Nom,
		Categorie:    in.Categorie,
		Unite:        in.Unite,
		Quantite:     in.Quantite,
		SeuilAlerte:  in.SeuilAlerte,
		PrixUnitaire: in.PrixUnitaire,
		ChantierID:   in.ChantierID,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&materiel).Error; err != nil {
			return err
		}
		if materiel.Quantite > 0 {
			return tx.Create(&models.MouvementStock{
				MaterielID:    materiel.ID,
				TypeMouvement: models.MouvementEntree,
				Quantite:      materiel.Quantite,
				Motif:         "stock initial",
				CreatedBy:     ident.UserID,
			}).Error
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &materiel, nil
}

// UpdateMateriel edits metadata; a direct quantity change is written to the
// ledger as an ajustement so the balance stays derivable.
func (s *StockService) UpdateMateriel(ctx context.Context, ident rbac.Identity, id uint, in MaterielUpdate) (*models.Materiel, error) {
	if err := s.requireMutable(ident, rbac.PermEditStock); err != nil {
		return nil, err
	}
	materiel, err := s.findMateriel(ctx, id)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{}
		if in.Nom != nil {
			updates["nom"] = *in.Nom
		}
		if in.Categorie != nil {
			updates["categorie"] = *in.Categorie
		}
		if in.Unite != nil {
			updates["unite"] = *in.Unite
		}
		if in.SeuilAlerte != nil {
			updates["seuil_alerte"] = *in.SeuilAlerte
		}
		if in.PrixUnitaire != nil {
			updates["prix_unitaire"] = *in.PrixUnitaire
		}
		if in.Quantite != nil && *in.Quantite != materiel.Quantite {
			if *in.Quantite < 0 {
				return fmt.Errorf("%w: quantité négative", apperr.ErrValidation)
			}
			diff := *in.Quantite - materiel.Quantite
			if err := tx.Create(&models.MouvementStock{
				MaterielID:    materiel.ID,
				TypeMouvement: models.MouvementAjustement,
				Quantite:      abs(diff),
				Motif:         fmt.Sprintf("ajustement manuel (%+.2f)", diff),
				CreatedBy:     ident.UserID,
			}).Error; err != nil {
				return err
			}
			updates["quantite"] = *in.Quantite
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(materiel).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	return s.findMateriel(ctx, id)
}

// DeleteMateriel removes a materiel. Refused while stock remains.
func (s *StockService) DeleteMateriel(ctx context.Context, ident rbac.Identity, id uint) error {
	if err := s.requireMutable(ident, rbac.PermDeleteStock); err != nil {
		return err
	}
	materiel, err := s.findMateriel(ctx, id)
	if err != nil {
		return err
	}
	if materiel.Quantite > 0 {
		return fmt.Errorf("%w: stock restant de %.2f %s", apperr.ErrInvalidState, materiel.Quantite, materiel.Unite)
	}
	return s.db.WithContext(ctx).Delete(materiel).Error
}

// Mouvement applies an entree or sortie. Sortie refuses to over-draw: the
// guard is the conditional update itself, not just the pre-read.
func (s *StockService) Mouvement(ctx context.Context, ident rbac.Identity, in MouvementInput) (*models.Materiel, error) {
	if err := s.requireMutable(ident, rbac.PermMouvementStock); err != nil {
		return nil, err
	}
	if in.Quantite <= 0 {
		return nil, fmt.Errorf("%w: quantité invalide", apperr.ErrValidation)
	}
	if in.TypeMouvement != models.MouvementEntree && in.TypeMouvement != models.MouvementSortie {
		return nil, fmt.Errorf("%w: type de mouvement invalide: %s", apperr.ErrValidation, in.TypeMouvement)
	}
	materiel, err := s.findMateriel(ctx, in.MaterielID)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.TypeMouvement == models.MouvementEntree {
			if err := tx.Model(&models.Materiel{}).Where("id = ?", materiel.ID).
				UpdateColumn("quantite", gorm.Expr("quantite + ?", in.Quantite)).Error; err != nil {
				return err
			}
		} else {
			res := tx.Model(&models.Materiel{}).
				Where("id = ? AND quantite >= ?", materiel.ID, in.Quantite).
				UpdateColumn("quantite", gorm.Expr("quantite - ?", in.Quantite))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: stock insuffisant, disponible: %.2f %s", apperr.ErrValidation, materiel.Quantite, materiel.Unite)
			}
		}
		return tx.Create(&models.MouvementStock{
			MaterielID:    materiel.ID,
			TypeMouvement: in.TypeMouvement,
			Quantite:      in.Quantite,
			Motif:         in.Motif,
			CreatedBy:     ident.UserID,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	updated, err := s.findMateriel(ctx, materiel.ID)
	if err != nil {
		return nil, err
	}
	s.maybeAlert(ctx, updated)
	return updated, nil
}

// Recevoir records a delivery reception (balance increase, reception ledger
// entry).
func (s *StockService) Recevoir(ctx context.Context, ident rbac.Identity, materielID uint, quantite float64, motif string) (*models.Materiel, error) {
	if err := s.requireMutable(ident, rbac.PermReceiveMateriel); err != nil {
		return nil, err
	}
	if quantite <= 0 {
		return nil, fmt.Errorf("%w: quantité invalide", apperr.ErrValidation)
	}
	materiel, err := s.findMateriel(ctx, materielID)
	if err != nil {
		return nil, err
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Materiel{}).Where("id = ?", materiel.ID).
			UpdateColumn("quantite", gorm.Expr("quantite + ?", quantite)).Error; err != nil {
			return err
		}
		return tx.Create(&models.MouvementStock{
			MaterielID:    materiel.ID,
			TypeMouvement: models.MouvementReception,
			Quantite:      quantite,
			Motif:         motif,
			CreatedBy:     ident.UserID,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.findMateriel(ctx, materiel.ID)
}

// Transferer moves stock between chantiers: two ledger entries plus two
// balance updates in one transaction. The source guard rejects before any
// mutation when the balance is insufficient; the destination materiel is
// found or created by (nom, chantier).
func (s *StockService) Transferer(ctx context.Context, ident rbac.Identity, in TransfertInput) (*models.Materiel, *models.Materiel, error) {
	if err := s.requireMutable(ident, rbac.PermTransferStock); err != nil {
		return nil, nil, err
	}
	if in.Quantite <= 0 {
		return nil, nil, fmt.Errorf("%w: quantité invalide", apperr.ErrValidation)
	}
	source, err := s.findMateriel(ctx, in.MaterielID)
	if err != nil {
		return nil, nil, err
	}
	if source.ChantierID == in.ChantierDestinationID {
		return nil, nil, fmt.Errorf("%w: le chantier de destination est le chantier source", apperr.ErrValidation)
	}
	var destChantier models.Chantier
	if err := s.db.WithContext(ctx).First(&destChantier, in.ChantierDestinationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, fmt.Errorf("%w: chantier %d", apperr.ErrNotFound, in.ChantierDestinationID)
		}
		return nil, nil, err
	}
	if source.Quantite < in.Quantite {
		return nil, nil, fmt.Errorf("%w: stock insuffisant, disponible: %.2f %s", apperr.ErrValidation, source.Quantite, source.Unite)
	}

	var dest models.Materiel
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Conditional debit re-checks the balance inside the transaction.
		res := tx.Model(&models.Materiel{}).
			Where("id = ? AND quantite >= ?", source.ID, in.Quantite).
			UpdateColumn("quantite", gorm.Expr("quantite - ?", in.Quantite))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: stock insuffisant", apperr.ErrValidation)
		}

		if err := tx.Where("nom = ? AND chantier_id = ?", source.Nom, in.ChantierDestinationID).
			First(&dest).Error; err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			dest = models.Materiel{
				Nom:          source.Nom,
				Categorie:    source.Categorie,
				Unite:        source.Unite,
				Quantite:     0,
				SeuilAlerte:  source.SeuilAlerte,
				PrixUnitaire: source.PrixUnitaire,
				ChantierID:   in.ChantierDestinationID,
			}
			if err := tx.Create(&dest).Error; err != nil {
				return err
			}
		}
		if err := tx.Model(&models.Materiel{}).Where("id = ?", dest.ID).
			UpdateColumn("quantite", gorm.Expr("quantite + ?", in.Quantite)).Error; err != nil {
			return err
		}

		sortant := models.MouvementStock{
			MaterielID:    source.ID,
			TypeMouvement: models.MouvementTransfertSortant,
			Quantite:      in.Quantite,
			Motif:         fmt.Sprintf("transfert vers chantier %d: %s", in.ChantierDestinationID, in.Motif),
			CreatedBy:     ident.UserID,
		}
		entrant := models.MouvementStock{
			MaterielID:    dest.ID,
			TypeMouvement: models.MouvementTransfertEntrant,
			Quantite:      in.Quantite,
			Motif:         fmt.Sprintf("transfert depuis chantier %d: %s", source.ChantierID, in.Motif),
			CreatedBy:     ident.UserID,
		}
		if err := tx.Create(&sortant).Error; err != nil {
			return err
		}
		return tx.Create(&entrant).Error
	})
	if err != nil {
		return nil, nil, err
	}

	srcAfter, err := s.findMateriel(ctx, source.ID)
	if err != nil {
		return nil, nil, err
	}
	destAfter, err := s.findMateriel(ctx, dest.ID)
	if err != nil {
		return nil, nil, err
	}
	s.maybeAlert(ctx, srcAfter)
	return srcAfter, destAfter, nil
}

// ListMateriels returns the materiels visible to the identity.
func (s *StockService) ListMateriels(ctx context.Context, ident rbac.Identity, chantierID uint, alertOnly bool) ([]models.Materiel, error) {
	if !rbac.HasPermission(ident.Role, rbac.PermViewStock) {
		return nil, fmt.Errorf("%w: permission view_stock requise", apperr.ErrForbidden)
	}
	q := s.db.WithContext(ctx).Model(&models.Materiel{})
	if chantierID != 0 {
		if !rbac.CanAccessChantier(ident, chantierID) {
			return nil, fmt.Errorf("%w: vous n'avez pas accès au stock du chantier %d", apperr.ErrForbidden, chantierID)
		}
		q = q.Where("chantier_id = ?", chantierID)
	} else if !rbac.HasGlobalChantierAccess(ident.Role) {
		q = q.Where("chantier_id IN ?", orEmpty(ident.ChantiersAssignes))
	}
	if alertOnly {
		q = q.Where("quantite <= seuil_alerte")
	}
	var materiels []models.Materiel
	if err := q.Order("nom").Find(&materiels).Error; err != nil {
		return nil, err
	}
	return materiels, nil
}

// ListMouvements returns the ledger, newest first.
func (s *StockService) ListMouvements(ctx context.Context, ident rbac.Identity, materielID uint) ([]models.MouvementStock, error) {
	if !rbac.HasPermission(ident.Role, rbac.PermViewHistoriqueStock) {
		return nil, fmt.Errorf("%w: permission view_historique_stock requise", apperr.ErrForbidden)
	}
	q := s.db.WithContext(ctx).Model(&models.MouvementStock{})
	if materielID != 0 {
		q = q.Where("materiel_id = ?", materielID)
	}
	var mouvements []models.MouvementStock
	err := q.Order("created_at desc").Find(&mouvements).Error
	return mouvements, err
}

// ScanAlerts notifies the stock roles about materiels at or below their
// alert threshold. Triggered by an external caller, never scheduled
// internally. Existing unread stock notifications suppress duplicates.
func (s *StockService) ScanAlerts(ctx context.Context, ident rbac.Identity) (int, error) {
	if !rbac.HasAnyPermission(ident.Role, rbac.PermViewAllStock, rbac.PermViewStock) {
		return 0, fmt.Errorf("%w: permission view_stock requise", apperr.ErrForbidden)
	}
	var materiels []models.Materiel
	if err := s.db.WithContext(ctx).
		Where("quantite <= seuil_alerte").Find(&materiels).Error; err != nil {
		return 0, err
	}
	if len(materiels) == 0 {
		return 0, nil
	}

	var users []models.User
	if err := s.db.WithContext(ctx).
		Where("role IN ? AND is_active = ?", []string{string(rbac.RoleAdminGeneral), string(rbac.RoleMagasinier)}, true).
		Find(&users).Error; err != nil {
		return 0, err
	}
	notified := 0
	for _, m := range materiels {
		msg := fmt.Sprintf("%s: %.2f %s restant (seuil %.2f)", m.Nom, m.Quantite, m.Unite, m.SeuilAlerte)
		for _, u := range users {
			var existing int64
			s.db.WithContext(ctx).Model(&models.Notification{}).
				Where("user_id = ? AND categorie = ? AND is_read = ? AND message = ?",
					u.ID, "stock", false, msg).
				Count(&existing)
			if existing > 0 {
				continue
			}
			s.notifier.NotifyUser(ctx, u.ID, "Alerte stock", msg, "warning", "stock", &m.ChantierID)
			notified++
		}
	}
	return notified, nil
}

func (s *StockService) maybeAlert(ctx context.Context, m *models.Materiel) {
	if m.Quantite > m.SeuilAlerte {
		return
	}
	msg := fmt.Sprintf("%s: %.2f %s restant (seuil %.2f)", m.Nom, m.Quantite, m.Unite, m.SeuilAlerte)
	s.notifier.NotifyRole(ctx, rbac.RoleMagasinier, "Alerte stock", msg, "warning", "stock", &m.ChantierID)
}

func (s *StockService) requireMutable(ident rbac.Identity, perm rbac.Permission) error {
	if rbac.IsReadOnly(ident.Role) {
		return fmt.Errorf("%w: le rôle direction est en lecture seule", apperr.ErrForbidden)
	}
	if !rbac.HasPermission(ident.Role, perm) {
		return fmt.Errorf("%w: permission %s requise", apperr.ErrForbidden, perm)
	}
	return nil
}

func (s *StockService) findMateriel(ctx context.Context, id uint) (*models.Materiel, error) {
	var materiel models.Materiel
	if err := s.db.WithContext(ctx).First(&materiel, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: matériel %d", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return &materiel, nil
}

func choose(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// orEmpty keeps an IN clause valid for identities with no assignments.
func orEmpty(ids []uint) []uint {
	if len(ids) == 0 {
		return []uint{0}
	}
	return ids
}
