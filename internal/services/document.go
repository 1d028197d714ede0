package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/nexusbtp/nexus-backend/internal/apperr"
	"github.com/nexusbtp/nexus-backend/internal/models"
	"github.com/nexusbtp/nexus-backend/internal/rbac"
	"github.com/nexusbtp/nexus-backend/internal/scope"
)

var documentTypes = map[string]struct{}{
	"photo": {}, "plan": {}, "facture": {}, "bon_livraison": {},
	"devis": {}, "contrat": {}, "rapport": {},
}

// DocumentService stores document metadata in the database and the files on
// disk under a generated name. Client visibility is controlled by the
// valide_client flag, never by the client role's permissions.
type DocumentService struct {
	db       *gorm.DB
	notifier *Notifier
	log      *zap.Logger
	storeDir string
}

func NewDocumentService(db *gorm.DB, notifier *Notifier, log *zap.Logger, storeDir string) *DocumentService {
	return &DocumentService{db: db, notifier: notifier, log: log, storeDir: storeDir}
}

type DocumentInput struct {
	Nom          string `json:"nom"`
	TypeDocument string `json:"type_document"`
	Description  string `json:"description"`
	ChantierID   uint   `json:"chantier_id"`
}

// Upload stores the file content and creates the metadata row. Documents are
// never client-visible at creation.
func (s *DocumentService) Upload(ctx context.Context, ident rbac.Identity, in DocumentInput, content io.Reader) (*models.Document, error) {
	if rbac.IsReadOnly(ident.Role) {
		return nil, fmt.Errorf("%w: le rôle direction est en lecture seule", apperr.ErrForbidden)
	}
	if !rbac.HasPermission(ident.Role, rbac.PermUploadDocument) {
		return nil, fmt.Errorf("%w: permission upload_document requise", apperr.ErrForbidden)
	}
	if _, ok := documentTypes[in.TypeDocument]; !ok {
		return nil, fmt.Errorf("%w: type de document invalide: %s", apperr.ErrValidation, in.TypeDocument)
	}
	if in.Nom == "" {
		return nil, fmt.Errorf("%w: nom requis", apperr.ErrValidation)
	}
	if !rbac.CanAccessChantier(ident, in.ChantierID) {
		return nil, fmt.Errorf("%w: vous n'avez pas accès au chantier %d", apperr.ErrForbidden, in.ChantierID)
	}
	var chantier models.Chantier
	if err := s.db.WithContext(ctx).First(&chantier, in.ChantierID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: chantier %d", apperr.ErrNotFound, in.ChantierID)
		}
		return nil, err
	}

	stored := uuid.NewString() + filepath.Ext(in.Nom)
	path := filepath.Join(s.storeDir, stored)
	if err := os.MkdirAll(s.storeDir, 0o750); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	size, err := io.Copy(f, content)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	doc := models.Document{
		Nom:          in.Nom,
		TypeDocument: in.TypeDocument,
		FichierPath:  path,
		Taille:       size,
		Description:  in.Description,
		ChantierID:   in.ChantierID,
		UploadedBy:   ident.UserID,
	}
	if err := s.db.WithContext(ctx).Create(&doc).Error; err != nil {
		os.Remove(path)
		return nil, err
	}
	return &doc, nil
}

// List returns the documents visible to the identity, chantier access and
// role scoping applied.
func (s *DocumentService) List(ctx context.Context, ident rbac.Identity, chantierID uint, typeDocument string) ([]models.Document, error) {
	if !rbac.HasAnyPermission(ident.Role, rbac.PermViewDocuments, rbac.PermViewDocumentsValides) {
		return nil, fmt.Errorf("%w: permission view_documents requise", apperr.ErrForbidden)
	}
	q := s.db.WithContext(ctx).Model(&models.Document{})
	if chantierID != 0 {
		if !rbac.CanAccessChantier(ident, chantierID) {
			return nil, fmt.Errorf("%w: vous n'avez pas accès au chantier %d", apperr.ErrForbidden, chantierID)
		}
		q = q.Where("chantier_id = ?", chantierID)
	} else if !rbac.HasGlobalChantierAccess(ident.Role) {
		q = q.Where("chantier_id IN ?", s.visibleChantierIDs(ctx, ident))
	}
	if typeDocument != "" {
		q = q.Where("type_document = ?", typeDocument)
	}
	var docs []models.Document
	if err := q.Order("created_at desc").Find(&docs).Error; err != nil {
		return nil, err
	}
	return scope.Documents(ident, docs), nil
}

// Get returns one document after the same scoping as List. L'accès du client
// passe par le client_id du chantier, pas par les assignations.
func (s *DocumentService) Get(ctx context.Context, ident rbac.Identity, id uint) (*models.Document, error) {
	doc, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if ident.Role == rbac.RoleClient {
		var chantier models.Chantier
		if err := s.db.WithContext(ctx).First(&chantier, doc.ChantierID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: vous n'avez pas accès à ce document", apperr.ErrForbidden)
			}
			return nil, err
		}
		if chantier.ClientID == nil || *chantier.ClientID != ident.UserID || !doc.ValideClient {
			return nil, fmt.Errorf("%w: vous n'avez pas accès à ce document", apperr.ErrForbidden)
		}
		return doc, nil
	}
	if !rbac.CanAccessChantier(ident, doc.ChantierID) {
		return nil, fmt.Errorf("%w: vous n'avez pas accès à ce document", apperr.ErrForbidden)
	}
	visible := scope.Documents(ident, []models.Document{*doc})
	if len(visible) == 0 {
		return nil, fmt.Errorf("%w: vous n'avez pas accès à ce document", apperr.ErrForbidden)
	}
	return doc, nil
}

// Open returns the stored file of a document the identity may download.
func (s *DocumentService) Open(ctx context.Context, ident rbac.Identity, id uint) (*models.Document, io.ReadCloser, error) {
	if !rbac.HasPermission(ident.Role, rbac.PermDownloadDocument) {
		return nil, nil, fmt.Errorf("%w: permission download_document requise", apperr.ErrForbidden)
	}
	doc, err := s.Get(ctx, ident, id)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(doc.FichierPath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: fichier du document %d", apperr.ErrNotFound, id)
	}
	return doc, f, nil
}

// ValidateClient marks a document visible to the client of its chantier and
// notifies that client.
func (s *DocumentService) ValidateClient(ctx context.Context, ident rbac.Identity, id uint) (*models.Document, error) {
	if !rbac.HasPermission(ident.Role, rbac.PermValidateDocumentClient) {
		return nil, fmt.Errorf("%w: permission validate_document_client requise", apperr.ErrForbidden)
	}
	doc, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	// admin_chantier ne valide que sur ses propres chantiers.
	if !rbac.CanAccessChantier(ident, doc.ChantierID) {
		return nil, fmt.Errorf("%w: vous n'avez pas accès au chantier %d", apperr.ErrForbidden, doc.ChantierID)
	}
	if doc.ValideClient {
		return doc, nil
	}
	now := time.Now()
	if err := s.db.WithContext(ctx).Model(doc).Updates(map[string]any{
		"valide_client":       true,
		"validated_client_by": ident.UserID,
		"validated_client_at": now,
	}).Error; err != nil {
		return nil, err
	}

	var chantier models.Chantier
	if err := s.db.WithContext(ctx).First(&chantier, doc.ChantierID).Error; err == nil && chantier.ClientID != nil {
		s.notifier.NotifyUser(ctx, *chantier.ClientID, "Nouveau document disponible",
			fmt.Sprintf("Le document %s est disponible pour le chantier %s", doc.Nom, chantier.Nom),
			"info", "document", &doc.ChantierID)
	}
	return s.find(ctx, id)
}

// UnvalidateClient withdraws client visibility.
func (s *DocumentService) UnvalidateClient(ctx context.Context, ident rbac.Identity, id uint) (*models.Document, error) {
	if !rbac.HasPermission(ident.Role, rbac.PermValidateDocumentClient) {
		return nil, fmt.Errorf("%w: permission validate_document_client requise", apperr.ErrForbidden)
	}
	doc, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rbac.CanAccessChantier(ident, doc.ChantierID) {
		return nil, fmt.Errorf("%w: vous n'avez pas accès au chantier %d", apperr.ErrForbidden, doc.ChantierID)
	}
	if !doc.ValideClient {
		return doc, nil
	}
	if err := s.db.WithContext(ctx).Model(doc).Updates(map[string]any{
		"valide_client":       false,
		"validated_client_by": nil,
		"validated_client_at": nil,
	}).Error; err != nil {
		return nil, err
	}
	return s.find(ctx, id)
}

// Delete removes the metadata and the stored file. Uploader or admin only.
func (s *DocumentService) Delete(ctx context.Context, ident rbac.Identity, id uint) error {
	if !rbac.HasPermission(ident.Role, rbac.PermDeleteDocument) {
		return fmt.Errorf("%w: permission delete_document requise", apperr.ErrForbidden)
	}
	doc, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if ident.Role != rbac.RoleAdminGeneral && doc.UploadedBy != ident.UserID {
		return fmt.Errorf("%w: seul l'auteur ou l'administrateur peut supprimer ce document", apperr.ErrForbidden)
	}
	if err := s.db.WithContext(ctx).Delete(doc).Error; err != nil {
		return err
	}
	if err := os.Remove(doc.FichierPath); err != nil && !os.IsNotExist(err) {
		s.log.Warn("fichier non supprimé", zap.String("path", doc.FichierPath), zap.Error(err))
	}
	return nil
}

func (s *DocumentService) find(ctx context.Context, id uint) (*models.Document, error) {
	var doc models.Document
	if err := s.db.WithContext(ctx).First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: document %d", apperr.ErrNotFound, id)
		}
		return nil, err
	}
	return &doc, nil
}

// visibleChantierIDs lists the chantiers a non-global identity can read,
// including the client's own chantiers.
func (s *DocumentService) visibleChantierIDs(ctx context.Context, ident rbac.Identity) []uint {
	if ident.Role == rbac.RoleClient {
		var ids []uint
		s.db.WithContext(ctx).Model(&models.Chantier{}).
			Where("client_id = ?", ident.UserID).Pluck("id", &ids)
		return orEmpty(ids)
	}
	return orEmpty(ident.ChantiersAssignes)
}
