package services

import (
	"context"
	"testing"

	"github.com/nexusbtp/nexus-backend/internal/apperr"
	"github.com/nexusbtp/nexus-backend/internal/rbac"
)

func TestNotificationsAppartiennentAuDestinataire(t *testing.T) {
	db := newTestDB(t)
	notifier := newTestNotifier(db)
	svc := NewNotificationService(db)
	seedUser(t, db, 10, rbac.RoleChefChantier)
	seedUser(t, db, 11, rbac.RoleMagasinier)

	notifier.NotifyUser(context.Background(), 10, "Test", "message", "info", "general", nil)

	owner := rbac.Identity{UserID: 10, Role: rbac.RoleChefChantier}
	autre := rbac.Identity{UserID: 11, Role: rbac.RoleMagasinier}

	notifs, err := svc.List(context.Background(), owner, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(notifs) != 1 {
		t.Fatalf("%d notifications pour le destinataire, attendu 1", len(notifs))
	}
	if got, _ := svc.List(context.Background(), autre, "", false); len(got) != 0 {
		t.Fatalf("%d notifications pour un tiers, attendu 0", len(got))
	}

	id := notifs[0].ID
	if err := svc.MarkRead(context.Background(), autre, id); !apperr.IsForbidden(err) {
		t.Errorf("marquage par un tiers: err = %v, attendu Forbidden", err)
	}
	if err := svc.Delete(context.Background(), autre, id); !apperr.IsForbidden(err) {
		t.Errorf("suppression par un tiers: err = %v, attendu Forbidden", err)
	}

	if err := svc.MarkRead(context.Background(), owner, id); err != nil {
		t.Fatal(err)
	}
	count, err := svc.CountUnread(context.Background(), owner)
	if err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Errorf("non lues = %d, attendu 0", count)
	}
	if err := svc.Delete(context.Background(), owner, id); err != nil {
		t.Fatal(err)
	}
}

func TestNotificationRoleEtDiffusion(t *testing.T) {
	db := newTestDB(t)
	notifier := newTestNotifier(db)
	svc := NewNotificationService(db)
	seedUser(t, db, 1, rbac.RoleAdminGeneral)
	seedUser(t, db, 4, rbac.RoleMagasinier)
	seedUser(t, db, 5, rbac.RoleMagasinier)
	inactive := seedUser(t, db, 6, rbac.RoleMagasinier)
	db.Model(inactive).Update("is_active", false)

	notifier.NotifyRole(context.Background(), rbac.RoleMagasinier, "Alerte stock", "seuil atteint", "warning", "stock", nil)
	for _, id := range []uint{4, 5} {
		ident := rbac.Identity{UserID: id, Role: rbac.RoleMagasinier}
		if got, _ := svc.List(context.Background(), ident, "stock", true); len(got) != 1 {
			t.Errorf("magasinier %d: %d notifications, attendu 1", id, len(got))
		}
	}
	// Les comptes inactifs ne reçoivent rien.
	if got, _ := svc.List(context.Background(), rbac.Identity{UserID: 6, Role: rbac.RoleMagasinier}, "", false); len(got) != 0 {
		t.Error("un compte inactif ne devrait pas recevoir de notification de rôle")
	}

	// La diffusion est réservée à admin_general.
	mag := rbac.Identity{UserID: 4, Role: rbac.RoleMagasinier}
	if _, err := svc.Broadcast(context.Background(), mag, "Info", "msg", "info", "general"); !apperr.IsForbidden(err) {
		t.Errorf("diffusion par magasinier: err = %v, attendu Forbidden", err)
	}
	count, err := svc.Broadcast(context.Background(), adminIdentity(), "Info", "msg", "info", "general")
	if err != nil {
		t.Fatal(err)
	}
	// admin + deux magasiniers actifs
	if count != 3 {
		t.Errorf("destinataires = %d, attendu 3", count)
	}
}
