package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Lorentz83/dbSchema/internal/domain"
)

// Identity is the authenticated caller of a request.
type Identity struct {
	Principal string
	Admin     bool
}

type identityKey struct{}

// WithIdentity stores the caller identity in the context.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext extracts the caller identity from the context.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// Authenticator checks request credentials. Bearer tokens are HS256 JWTs
// whose "sub" claim names the principal; a true "admin" claim grants admin
// rights. API keys map to principals and are held as SHA-256 hashes.
type Authenticator struct {
	jwtSecret []byte
	keys      map[string]string
	admins    map[string]bool
}

// NewAuthenticator builds an Authenticator. apiKeys maps each key to its
// principal; admins lists principals allowed to change the schema.
func NewAuthenticator(jwtSecret []byte, apiKeys map[string]string, admins []string) *Authenticator {
	a := &Authenticator{
		jwtSecret: jwtSecret,
		keys:      make(map[string]string, len(apiKeys)),
		admins:    make(map[string]bool, len(admins)),
	}
	for key, principal := range apiKeys {
		a.keys[hashKey(key)] = principal
	}
	for _, p := range admins {
		a.admins[domain.Normalize(p)] = true
	}
	return a
}

// Enabled reports whether any credential is configured. A disabled
// Authenticator rejects every request.
func (a *Authenticator) Enabled() bool {
	return a != nil && (len(a.jwtSecret) > 0 || len(a.keys) > 0)
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// authenticate tries the bearer token first, then the API key.
func (a *Authenticator) authenticate(r *http.Request) (Identity, bool) {
	if !a.Enabled() {
		return Identity{}, false
	}
	if auth := r.Header.Get("Authorization"); len(a.jwtSecret) > 0 && strings.HasPrefix(auth, "Bearer ") {
		token, err := jwt.Parse(strings.TrimPrefix(auth, "Bearer "), func(*jwt.Token) (interface{}, error) {
			return a.jwtSecret, nil
		}, jwt.WithValidMethods([]string{"HS256"}))
		if err == nil && token.Valid {
			if claims, ok := token.Claims.(jwt.MapClaims); ok {
				if sub, ok := claims["sub"].(string); ok && sub != "" {
					admin, _ := claims["admin"].(bool)
					return Identity{Principal: sub, Admin: admin || a.admins[domain.Normalize(sub)]}, true
				}
			}
		}
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		if principal, ok := a.keys[hashKey(key)]; ok {
			return Identity{Principal: principal, Admin: a.admins[domain.Normalize(principal)]}, true
		}
	}
	return Identity{}, false
}

// Authenticate rejects requests without valid credentials with 401 and
// stores the caller identity in the request context.
func Authenticate(a *Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := a.authenticate(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="dbschema"`)
				writeError(w, http.StatusUnauthorized, "Unauthenticated", "provide a valid bearer token or API key")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// RequireAdmin rejects callers without admin rights with 403. It must run
// after Authenticate.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := IdentityFromContext(r.Context()); !ok || !id.Admin {
			writeError(w, http.StatusForbidden, "Forbidden", "admin rights required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, kind, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"kind":    kind,
		"message": message,
	})
}
