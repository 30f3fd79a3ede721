package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/pacts/services"
	"github.com/cppla/pacts/utils"
)

const (
	// ContextUserIDKey is the key used to store authenticated user ID in Gin context.
	ContextUserIDKey = "user_id"
	// ContextIdentityKey stores the resolved *services.Identity.
	ContextIdentityKey = "identity"
	// ContextTokenKey stores the raw bearer token so logout can revoke it.
	ContextTokenKey = "token"
)

// Authenticator resolves bearer tokens into identities.
type Authenticator struct {
	issuer  *utils.TokenIssuer
	revoked *utils.TTLStore
}

func NewAuthenticator(issuer *utils.TokenIssuer, revoked *utils.TTLStore) *Authenticator {
	return &Authenticator{issuer: issuer, revoked: revoked}
}

// AuthRequired rejects requests without a valid, unrevoked bearer token.
func (a *Authenticator) AuthRequired() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		token, status, code, msg := a.resolve(ctx)
		if status != 0 {
			utils.AbortError(ctx, status, code, msg)
			return
		}
		ctx.Set(ContextTokenKey, token)
		ctx.Next()
	}
}

// OptionalAuth attaches an identity when a valid token is present and lets
// anonymous or badly authenticated requests through as anonymous.
func (a *Authenticator) OptionalAuth() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.GetHeader("Authorization") != "" {
			if token, status, _, _ := a.resolve(ctx); status == 0 {
				ctx.Set(ContextTokenKey, token)
			}
		}
		ctx.Next()
	}
}

func (a *Authenticator) resolve(ctx *gin.Context) (token string, status, code int, msg string) {
	authHeader := ctx.GetHeader("Authorization")
	if authHeader == "" {
		return "", http.StatusUnauthorized, 40101, "authorization header missing"
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", http.StatusUnauthorized, 40102, "invalid authorization header format"
	}
	token = strings.TrimSpace(parts[1])
	if token == "" {
		return "", http.StatusUnauthorized, 40103, "empty bearer token"
	}
	if a.revoked != nil && a.revoked.Has(ctx.Request.Context(), token) {
		return "", http.StatusUnauthorized, 40104, "token revoked"
	}
	claims, err := a.issuer.Parse(token)
	if err != nil {
		return "", http.StatusUnauthorized, 40105, "invalid token"
	}

	ctx.Set(ContextUserIDKey, claims.UserID)
	ctx.Set(ContextIdentityKey, &services.Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		Name:     claims.Name,
		Image:    claims.Image,
	})
	return token, 0, 0, ""
}

// IdentityFrom returns the caller's identity, or nil for anonymous requests.
func IdentityFrom(ctx *gin.Context) *services.Identity {
	v, ok := ctx.Get(ContextIdentityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*services.Identity)
	return id
}

// TokenFrom returns the bearer token accepted for this request.
func TokenFrom(ctx *gin.Context) string {
	return ctx.GetString(ContextTokenKey)
}
