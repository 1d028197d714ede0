package scope

import (
	"github.com/nexusbtp/nexus-backend/internal/models"
	"github.com/nexusbtp/nexus-backend/internal/rbac"
)

// EmployeView is the serialized form of an Employe. Salary and banking
// fields are pointers with omitempty so a redacted record carries no such
// keys at all, not null values.
type EmployeView struct {
	ID           uint   `json:"id"`
	Matricule    string `json:"matricule"`
	Nom          string `json:"nom"`
	Prenom       string `json:"prenom"`
	Telephone    string `json:"telephone,omitempty"`
	Poste        string `json:"poste"`
	DateEmbauche string `json:"date_embauche"`
	IsActive     bool   `json:"is_active"`
	ChantierID   *uint  `json:"chantier_id,omitempty"`

	SalaireJournalier *float64 `json:"salaire_journalier,omitempty"`
	InfoBancaire      *string  `json:"info_bancaire,omitempty"`
}

// Employe builds the view of a single employee, redacting salary and
// banking data unless the role holds view_salaires.
func Employe(ident rbac.Identity, e models.Employe) EmployeView {
	v := EmployeView{
		ID:           e.ID,
		Matricule:    e.Matricule,
		Nom:          e.Nom,
		Prenom:       e.Prenom,
		Telephone:    e.Telephone,
		Poste:        e.Poste,
		DateEmbauche: e.DateEmbauche.Format("2006-01-02"),
		IsActive:     e.IsActive,
		ChantierID:   e.ChantierID,
	}
	if rbac.HasPermission(ident.Role, rbac.PermViewSalaires) {
		salaire := e.SalaireJournalier
		v.SalaireJournalier = &salaire
		if e.InfoBancaire != "" {
			info := e.InfoBancaire
			v.InfoBancaire = &info
		}
	}
	return v
}

// Employes builds the views of a collection.
func Employes(ident rbac.Identity, employes []models.Employe) []EmployeView {
	out := make([]EmployeView, 0, len(employes))
	for _, e := range employes {
		out = append(out, Employe(ident, e))
	}
	return out
}
