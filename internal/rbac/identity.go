package rbac

// Identity is the verified principal of a request, produced once by the auth
// boundary and passed read-only through the decision and scoping layers.
type Identity struct {
	UserID uint
	Role   Role

	// EmployeID links the login account to an Employe row; 0 when the
	// account has no linked employee. Ouvrier self-scoping relies on this
	// field exclusively.
	EmployeID uint

	// ChantiersAssignes are the chantier IDs the user is assigned to.
	ChantiersAssignes []uint
}

// AssignedTo reports whether the identity is assigned to the chantier.
func (i Identity) AssignedTo(chantierID uint) bool {
	for _, id := range i.ChantiersAssignes {
		if id == chantierID {
			return true
		}
	}
	return false
}
