package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"

	"github.com/cppla/pacts/config"
	"github.com/cppla/pacts/middleware"
	"github.com/cppla/pacts/models"
	"github.com/cppla/pacts/services"
	"github.com/cppla/pacts/utils"
)

const oauthStateTTL = 10 * time.Minute

// AuthController handles identity-provider login and the session lifecycle.
type AuthController struct {
	cfg     config.AppConfig
	users   *services.UserService
	issuer  *utils.TokenIssuer
	states  *utils.TTLStore
	revoked *utils.TTLStore
}

// NewAuthController creates a new AuthController instance.
func NewAuthController(cfg config.AppConfig, users *services.UserService, issuer *utils.TokenIssuer, states, revoked *utils.TTLStore) *AuthController {
	return &AuthController{cfg: cfg, users: users, issuer: issuer, states: states, revoked: revoked}
}

// OAuthRedirect generates a provider-specific authorization URL.
func (a *AuthController) OAuthRedirect(ctx *gin.Context) {
	oc, err := a.oauthConfig(ctx.Param("provider"))
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, err.Error())
		return
	}

	state := uuid.NewString()
	if err := a.states.Put(ctx.Request.Context(), state, oauthStateTTL); err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50002, "failed to store oauth state")
		return
	}
	utils.Success(ctx, gin.H{"authorization_url": oc.AuthCodeURL(state), "state": state})
}

// OAuthCallback exchanges the authorization code for a user identity and issues a session token.
func (a *AuthController) OAuthCallback(ctx *gin.Context) {
	provider := strings.ToLower(ctx.Param("provider"))
	code := ctx.Query("code")
	state := ctx.Query("state")
	if code == "" || state == "" {
		utils.Error(ctx, http.StatusBadRequest, 40005, "missing code or state")
		return
	}
	if !a.states.Take(ctx.Request.Context(), state) {
		utils.Error(ctx, http.StatusBadRequest, 40006, "invalid or expired state")
		return
	}

	oc, err := a.oauthConfig(provider)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40004, err.Error())
		return
	}
	reqCtx, cancel := context.WithTimeout(ctx.Request.Context(), 15*time.Second)
	defer cancel()

	token, err := oc.Exchange(reqCtx, code)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40007, "failed to exchange code")
		return
	}
	profile, err := fetchProfile(reqCtx, provider, oc.Client(reqCtx, token))
	if err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusBadGateway, 50005, "failed to fetch provider profile")
		return
	}

	user, err := a.users.FindOrCreateOAuthUser(reqCtx, *profile)
	if err != nil {
		respondError(ctx, err, 40401)
		return
	}

	jwtToken, exp, err := a.issueFor(user)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50004, "failed to generate token")
		return
	}
	utils.Success(ctx, gin.H{"token": jwtToken, "expires_at": exp, "user": userResponse(user)})
}

// Me returns the current authenticated user's information.
func (a *AuthController) Me(ctx *gin.Context) {
	who := middleware.IdentityFrom(ctx)
	if who == nil {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}
	user, err := a.users.Get(ctx.Request.Context(), who.UserID)
	if err != nil {
		respondError(ctx, err, 40401)
		return
	}
	utils.Success(ctx, userResponse(user))
}

// Logout revokes the presented token until it would have expired anyway.
func (a *AuthController) Logout(ctx *gin.Context) {
	token := middleware.TokenFrom(ctx)
	claims, err := a.issuer.Parse(token)
	if err != nil {
		utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
		return
	}
	ttl := a.cfg.SessionTTL()
	if claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if err := a.revoked.Put(ctx.Request.Context(), token, ttl); err != nil {
		_ = ctx.Error(err)
		utils.Error(ctx, http.StatusInternalServerError, 50003, "failed to revoke token")
		return
	}
	utils.Success(ctx, gin.H{"message": "logged out"})
}

func (a *AuthController) issueFor(user *models.User) (string, time.Time, error) {
	username := ""
	if user.Username != nil {
		username = *user.Username
	}
	return a.issuer.Issue(user.ID, username, user.DisplayName(), user.Image)
}

func (a *AuthController) oauthConfig(provider string) (*oauth2.Config, error) {
	switch strings.ToLower(provider) {
	case "github":
		if a.cfg.GitHubClientID == "" || a.cfg.GitHubClientSecret == "" {
			return nil, fmt.Errorf("github oauth not configured")
		}
		return &oauth2.Config{
			ClientID:     a.cfg.GitHubClientID,
			ClientSecret: a.cfg.GitHubClientSecret,
			RedirectURL:  a.cfg.OAuthRedirectBase + "/api/v1/auth/oauth/github/callback",
			Scopes:       []string{"read:user", "user:email"},
			Endpoint:     github.Endpoint,
		}, nil
	case "google":
		if a.cfg.GoogleClientID == "" || a.cfg.GoogleClientSecret == "" {
			return nil, fmt.Errorf("google oauth not configured")
		}
		return &oauth2.Config{
			ClientID:     a.cfg.GoogleClientID,
			ClientSecret: a.cfg.GoogleClientSecret,
			RedirectURL:  a.cfg.OAuthRedirectBase + "/api/v1/auth/oauth/google/callback",
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// fetchProfile calls the provider's user endpoint with an authorized client.
func fetchProfile(ctx context.Context, provider string, client *http.Client) (*services.OAuthProfile, error) {
	switch provider {
	case "github":
		var u struct {
			ID        int64  `json:"id"`
			Login     string `json:"login"`
			Name      string `json:"name"`
			Email     string `json:"email"`
			AvatarURL string `json:"avatar_url"`
		}
		if err := getJSON(ctx, client, "https://api.github.com/user", &u); err != nil {
			return nil, err
		}
		email := u.Email
		if email == "" {
			email = primaryGitHubEmail(ctx, client)
		}
		return &services.OAuthProfile{
			Provider:   provider,
			ProviderID: fmt.Sprintf("%d", u.ID),
			Login:      u.Login,
			Name:       u.Name,
			Email:      email,
			AvatarURL:  u.AvatarURL,
		}, nil
	case "google":
		var u struct {
			ID      string `json:"id"`
			Email   string `json:"email"`
			Name    string `json:"name"`
			Picture string `json:"picture"`
		}
		if err := getJSON(ctx, client, "https://www.googleapis.com/oauth2/v2/userinfo", &u); err != nil {
			return nil, err
		}
		return &services.OAuthProfile{
			Provider:   provider,
			ProviderID: u.ID,
			Login:      u.Email,
			Name:       u.Name,
			Email:      u.Email,
			AvatarURL:  u.Picture,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", provider)
	}
}

// primaryGitHubEmail returns the primary verified address, or "" when none is visible.
func primaryGitHubEmail(ctx context.Context, client *http.Client) string {
	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := getJSON(ctx, client, "https://api.github.com/user/emails", &emails); err != nil {
		return ""
	}
	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email
		}
	}
	return ""
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func userResponse(user *models.User) gin.H {
	return gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"name":       user.DisplayName(),
		"email":      user.Email,
		"image":      user.Image,
		"created_at": user.CreatedAt,
	}
}
