package auth

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/nexusbtp/nexus-backend/internal/httpx"
	"github.com/nexusbtp/nexus-backend/internal/rbac"
)

type ctxKey string

const identityCtxKey = ctxKey("identity")

// UserVerifier checks that the token's user still exists and is active.
// If nil, no extra verification is performed.
type UserVerifier func(ctx context.Context, userID uint) bool

// Middleware verifies the bearer token and stores the resulting Identity in
// the request context. Verifier results are cached briefly so a burst of
// requests does not hit the users table on every call.
type Middleware struct {
	secret   string
	verifier UserVerifier
	cache    *gocache.Cache
}

func NewMiddleware(secret string, verifier UserVerifier) *Middleware {
	return &Middleware{
		secret:   secret,
		verifier: verifier,
		cache:    gocache.New(time.Minute, 5*time.Minute),
	}
}

// WithIdentity stores the identity in the context.
func WithIdentity(ctx context.Context, ident rbac.Identity) context.Context {
	return context.WithValue(ctx, identityCtxKey, ident)
}

// IdentityFromContext extracts the request identity.
func IdentityFromContext(ctx context.Context) (rbac.Identity, bool) {
	v := ctx.Value(identityCtxKey)
	if v == nil {
		return rbac.Identity{}, false
	}
	ident, ok := v.(rbac.Identity)
	return ident, ok
}

// Handler attaches the identity when a valid access token is present.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearerToken(r)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}
		claims, err := ParseToken(m.secret, raw)
		if err != nil || claims.TokenType != TokenTypeAccess {
			next.ServeHTTP(w, r)
			return
		}
		if !m.userExists(r.Context(), claims.UserID) {
			next.ServeHTTP(w, r)
			return
		}
		r = r.WithContext(WithIdentity(r.Context(), claims.Identity()))
		next.ServeHTTP(w, r)
	})
}

// RequireAuth rejects requests without an authenticated identity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFromContext(r.Context()); !ok {
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m *Middleware) userExists(ctx context.Context, userID uint) bool {
	if m.verifier == nil {
		return true
	}
	key := keyFor(userID)
	if v, ok := m.cache.Get(key); ok {
		return v.(bool)
	}
	ok := m.verifier(ctx, userID)
	m.cache.Set(key, ok, gocache.DefaultExpiration)
	return ok
}

// Invalidate drops the cached verification for a user. Called when an
// account is deactivated so the token stops working within the same request
// flow, not a cache TTL later.
func (m *Middleware) Invalidate(userID uint) { m.cache.Delete(keyFor(userID)) }

func keyFor(userID uint) string {
	return "user:" + strconv.FormatUint(uint64(userID), 10)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
