// Package models holds the gorm entities of the backend. Authorization and
// workflow rules live in rbac/scope/services; the models only declare schema.
package models

import "time"

// Chantier statuses.
const (
	ChantierEnPreparation = "en_preparation"
	ChantierActif         = "actif"
	ChantierSuspendu      = "suspendu"
	ChantierTermine       = "termine"
	ChantierArchive       = "archive"
)

// Depense statuses. Approuvée et rejetée sont des états terminaux.
const (
	DepenseEnAttente       = "en_attente"
	DepenseValideeChantier = "validee_chantier"
	DepenseApprouvee       = "approuvee"
	DepenseRejetee         = "rejetee"
	DepenseAnnulee         = "annulee"
)

// Types de mouvement de stock.
const (
	MouvementEntree           = "entree"
	MouvementSortie           = "sortie"
	MouvementTransfertEntrant = "transfert_entrant"
	MouvementTransfertSortant = "transfert_sortant"
	MouvementAjustement       = "ajustement"
	MouvementReception        = "reception"
)

type User struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Email     string `gorm:"uniqueIndex;not null" json:"email"`
	Password  string `gorm:"not null" json:"-"`
	Nom       string `gorm:"not null" json:"nom"`
	Prenom    string `gorm:"not null" json:"prenom"`
	Telephone string `json:"telephone,omitempty"`
	Role      string `gorm:"not null;default:'ouvrier'" json:"role"`
	IsActive  bool   `gorm:"not null;default:true" json:"is_active"`

	// Lien explicite compte ↔ employé; nul pour les comptes sans fiche
	// employé (clients, direction, ...).
	EmployeID *uint `json:"employe_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ChantierAssignment lie un utilisateur à un chantier. Un utilisateur peut
// être assigné à plusieurs chantiers.
type ChantierAssignment struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	UserID     uint `gorm:"not null;uniqueIndex:idx_user_chantier" json:"user_id"`
	ChantierID uint `gorm:"not null;uniqueIndex:idx_user_chantier" json:"chantier_id"`

	CreatedAt time.Time `json:"created_at"`
}

type Chantier struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Nom            string     `gorm:"not null" json:"nom"`
	Reference      string     `gorm:"uniqueIndex;not null" json:"reference"`
	Adresse        string     `gorm:"not null" json:"adresse"`
	Ville          string     `gorm:"default:'Dakar'" json:"ville"`
	ClientID       *uint      `json:"client_id,omitempty"` // compte client propriétaire
	BudgetPrevu    float64    `gorm:"default:0" json:"budget_prevu"`
	BudgetConsomme float64    `gorm:"default:0" json:"budget_consomme"` // n'augmente que via approbation de dépense
	Progression    int        `gorm:"default:0" json:"progression"`
	Status         string     `gorm:"not null;default:'en_preparation'" json:"status"`
	DateDebut      *time.Time `json:"date_debut,omitempty"`
	DateFin        *time.Time `json:"date_fin,omitempty"`
	Description    string     `json:"description,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Depense struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Reference   string    `gorm:"uniqueIndex;not null" json:"reference"`
	Libelle     string    `gorm:"not null" json:"libelle"`
	Description string    `json:"description,omitempty"`
	Categorie   string    `gorm:"not null" json:"categorie"` // materiel, main_oeuvre, transport, autres
	Montant     float64   `gorm:"not null" json:"montant"`
	DateDepense time.Time `gorm:"not null" json:"date_depense"`
	Fournisseur string    `json:"fournisseur,omitempty"`
	Status      string    `gorm:"not null;default:'en_attente'" json:"status"`
	MotifRejet  string    `json:"motif_rejet,omitempty"`

	ChantierID uint  `gorm:"not null;index" json:"chantier_id"`
	CreatedBy  uint  `gorm:"not null" json:"created_by"`
	ApprovedBy *uint `json:"approved_by,omitempty"`
	RejectedBy *uint `json:"rejected_by,omitempty"`

	ValidatedChantierBy *uint      `json:"validated_chantier_by,omitempty"`
	ValidatedChantierAt *time.Time `json:"validated_chantier_at,omitempty"`
	ApprovedAt          *time.Time `json:"approved_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Employe struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	Matricule         string    `gorm:"uniqueIndex;not null" json:"matricule"`
	Nom               string    `gorm:"not null" json:"nom"`
	Prenom            string    `gorm:"not null" json:"prenom"`
	Telephone         string    `json:"telephone,omitempty"`
	Poste             string    `gorm:"not null" json:"poste"`              // macon, ferrailleur, electricien, plombier, manoeuvre, chef_equipe
	SalaireJournalier float64   `gorm:"not null" json:"salaire_journalier"` // accès contrôlé par view_salaires
	InfoBancaire      string    `json:"info_bancaire,omitempty"`
	DateEmbauche      time.Time `gorm:"not null" json:"date_embauche"`
	IsActive          bool      `gorm:"not null;default:true" json:"is_active"`

	ChantierID *uint `json:"chantier_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// Presence: un pointage par employé et par jour.
type Presence struct {
	ID                uint    `gorm:"primaryKey" json:"id"`
	EmployeID         uint    `gorm:"not null;uniqueIndex:idx_employe_date" json:"employe_id"`
	ChantierID        uint    `gorm:"not null" json:"chantier_id"`
	Date              string  `gorm:"not null;uniqueIndex:idx_employe_date" json:"date"` // YYYY-MM-DD
	HeuresTravaillees float64 `gorm:"default:8" json:"heures_travaillees"`
	Status            string  `gorm:"default:'present'" json:"status"` // present, absent, retard
	Commentaire       string  `json:"commentaire,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type Materiel struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	Nom          string  `gorm:"not null;index:idx_nom_chantier,unique" json:"nom"`
	Categorie    string  `gorm:"not null" json:"categorie"` // ciment, fer, bois, peinture, plomberie, electricite
	Unite        string  `gorm:"not null" json:"unite"`     // kg, sac, m3, piece, litre
	Quantite     float64 `gorm:"default:0" json:"quantite"` // solde dérivé du grand livre des mouvements
	SeuilAlerte  float64 `gorm:"default:10" json:"seuil_alerte"`
	PrixUnitaire float64 `gorm:"default:0" json:"prix_unitaire"`

	ChantierID uint `gorm:"not null;index:idx_nom_chantier,unique" json:"chantier_id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MouvementStock est une écriture immuable du grand livre de stock.
type MouvementStock struct {
	ID            uint    `gorm:"primaryKey" json:"id"`
	MaterielID    uint    `gorm:"not null;index" json:"materiel_id"`
	TypeMouvement string  `gorm:"not null" json:"type_mouvement"`
	Quantite      float64 `gorm:"not null" json:"quantite"`
	Motif         string  `json:"motif,omitempty"`

	CreatedBy uint      `gorm:"not null" json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type Document struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Nom          string `gorm:"not null" json:"nom"`
	TypeDocument string `gorm:"not null" json:"type_document"` // photo, plan, facture, bon_livraison, devis, contrat, rapport
	FichierPath  string `gorm:"not null" json:"-"`
	Taille       int64  `gorm:"default:0" json:"taille"`
	Description  string `json:"description,omitempty"`
	ValideClient bool   `gorm:"not null;default:false" json:"valide_client"`

	ChantierID uint `gorm:"not null;index" json:"chantier_id"`
	UploadedBy uint `gorm:"not null" json:"uploaded_by"`

	ValidatedClientBy *uint      `json:"validated_client_by,omitempty"`
	ValidatedClientAt *time.Time `json:"validated_client_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type Notification struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Titre     string `gorm:"not null" json:"titre"`
	Message   string `gorm:"not null" json:"message"`
	TypeNotif string `gorm:"not null" json:"type_notif"` // info, warning, danger, success
	Categorie string `gorm:"not null" json:"categorie"`  // general, stock, depense, presence, chantier, document
	IsRead    bool   `gorm:"not null;default:false" json:"is_read"`

	UserID     uint  `gorm:"not null;index" json:"user_id"`
	ChantierID *uint `json:"chantier_id,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type Tache struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Titre       string `gorm:"not null" json:"titre"`
	Description string `json:"description,omitempty"`
	Status      string `gorm:"not null;default:'a_faire'" json:"status"` // a_faire, en_cours, terminee
	Avancement  int    `gorm:"default:0" json:"avancement"`

	ChantierID uint  `gorm:"not null;index" json:"chantier_id"`
	AssigneA   *uint `json:"assigne_a,omitempty"` // employé assigné
	CreatedBy  uint  `gorm:"not null" json:"created_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// All returns every model for automigration.
func All() []any {
	return []any{
		&User{}, &Chantier{}, &ChantierAssignment{}, &Depense{},
		&Employe{}, &Presence{}, &Materiel{}, &MouvementStock{},
		&Document{}, &Notification{}, &Tache{},
	}
}
