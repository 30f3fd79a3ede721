package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/cppla/pacts/models"
)

const maxUsernameLen = 32

// OAuthProfile is what an identity provider tells us about a user.
type OAuthProfile struct {
	Provider   string
	ProviderID string
	Login      string
	Name       string
	Email      string
	AvatarURL  string
}

// UserService owns account creation on first login.
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// Get loads a user by id.
func (s *UserService) Get(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).Take(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, storageErr("get user", err)
	}
	return &u, nil
}

// FindOrCreateOAuthUser returns the user linked to the provider account,
// creating it on first login. Returning users get their avatar and email refreshed.
func (s *UserService) FindOrCreateOAuthUser(ctx context.Context, p OAuthProfile) (*models.User, error) {
	if p.Provider == "" || p.ProviderID == "" {
		return nil, invalid("provider", "missing provider identity")
	}
	db := s.db.WithContext(ctx)

	var user models.User
	err := db.Where("provider = ? AND provider_id = ?", p.Provider, p.ProviderID).Take(&user).Error
	if err == nil {
		updates := map[string]any{"image": p.AvatarURL}
		if email := strings.TrimSpace(p.Email); email != "" {
			updates["email"] = email
		}
		if err := db.Model(&user).Updates(updates).Error; err != nil {
			return nil, storageErr("refresh user", err)
		}
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storageErr("find user", err)
	}

	base := SanitizeUsername(p.Login)
	if base == "" {
		base = SanitizeUsername(p.Provider + "_" + p.ProviderID)
	}
	if base == "" {
		base = "user"
	}
	name := strings.TrimSpace(p.Name)
	if name == "" {
		name = p.Login
	}

	// a concurrent login may take the same username; try the next candidate
	for attempt := 0; attempt < 5; attempt++ {
		username, err := s.uniqueUsername(ctx, base)
		if err != nil {
			return nil, err
		}
		user = models.User{
			Username:   &username,
			Name:       name,
			Email:      strings.TrimSpace(p.Email),
			Image:      p.AvatarURL,
			Provider:   p.Provider,
			ProviderID: p.ProviderID,
		}
		err = db.Create(&user).Error
		if err == nil {
			return &user, nil
		}
		if !isUniqueViolation(err) {
			return nil, storageErr("create user", err)
		}
		// the same provider account may have been created by a parallel callback
		var existing models.User
		if db.Where("provider = ? AND provider_id = ?", p.Provider, p.ProviderID).Take(&existing).Error == nil {
			return &existing, nil
		}
	}
	return nil, storageErr("create user", errors.New("could not allocate a unique username"))
}

func (s *UserService) uniqueUsername(ctx context.Context, base string) (string, error) {
	candidate := base
	for suffix := 1; ; suffix++ {
		var count int64
		if err := s.db.WithContext(ctx).Model(&models.User{}).Where("username = ?", candidate).Count(&count).Error; err != nil {
			return "", storageErr("check username", err)
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s_%d", base, suffix)
	}
}

// SanitizeUsername keeps [a-z0-9_], maps '-' and '.' to '_' and trims the result.
func SanitizeUsername(input string) string {
	input = strings.ToLower(strings.TrimSpace(input))
	if at := strings.IndexByte(input, '@'); at > 0 {
		input = input[:at]
	}
	var b strings.Builder
	for _, r := range input {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == '-' || r == '.':
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if len(out) > maxUsernameLen {
		out = strings.TrimRight(out[:maxUsernameLen], "_")
	}
	return out
}
