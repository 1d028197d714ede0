package auth

import (
	"testing"
	"time"

	"github.com/nexusbtp/nexus-backend/internal/rbac"
)

func TestAccessTokenRoundTrip(t *testing.T) {
	ident := rbac.Identity{
		UserID: 7, Role: rbac.RoleChefChantier,
		EmployeID: 12, ChantiersAssignes: []uint{5, 9},
	}
	raw, err := NewAccessToken("secret", ident, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseToken("secret", raw)
	if err != nil {
		t.Fatal(err)
	}
	if claims.TokenType != TokenTypeAccess {
		t.Errorf("type = %s, attendu access", claims.TokenType)
	}
	got := claims.Identity()
	if got.UserID != 7 || got.Role != rbac.RoleChefChantier || got.EmployeID != 12 {
		t.Errorf("identité reconstruite incorrecte: %+v", got)
	}
	if !got.AssignedTo(5) || !got.AssignedTo(9) || got.AssignedTo(3) {
		t.Error("les assignations devraient survivre à l'aller-retour")
	}
}

func TestParseTokenRejetteMauvaisSecret(t *testing.T) {
	raw, err := NewAccessToken("secret-a", rbac.Identity{UserID: 1, Role: rbac.RoleOuvrier}, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken("secret-b", raw); err == nil {
		t.Fatal("un jeton signé avec un autre secret devrait être rejeté")
	}
}

func TestParseTokenRejetteExpire(t *testing.T) {
	raw, err := NewAccessToken("secret", rbac.Identity{UserID: 1, Role: rbac.RoleOuvrier}, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ParseToken("secret", raw); err == nil {
		t.Fatal("un jeton expiré devrait être rejeté")
	}
}

func TestRefreshTokenNePortePasDeRole(t *testing.T) {
	raw, err := NewRefreshToken("secret", 42, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ParseToken("secret", raw)
	if err != nil {
		t.Fatal(err)
	}
	if claims.TokenType != TokenTypeRefresh {
		t.Errorf("type = %s, attendu refresh", claims.TokenType)
	}
	if claims.Role != "" || len(claims.ChantiersAssignes) != 0 {
		t.Error("un jeton de rafraîchissement ne devrait porter que l'identifiant")
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("motdepasse")
	if err != nil {
		t.Fatal(err)
	}
	if hash == "motdepasse" {
		t.Fatal("le mot de passe ne devrait jamais être stocké en clair")
	}
	if !VerifyPassword("motdepasse", hash) {
		t.Error("le bon mot de passe devrait vérifier")
	}
	if VerifyPassword("autre", hash) {
		t.Error("un mauvais mot de passe ne devrait pas vérifier")
	}
}
