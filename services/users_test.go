package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/pacts/testutil"
)

func TestSanitizeUsername(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Octo-Cat", "octo_cat"},
		{"jane.doe@example.com", "jane_doe"},
		{"  __x__  ", "x"},
		{"émile!", "mile"},
		{"", ""},
		{"abcdefghijklmnopqrstuvwxyz0123456789", "abcdefghijklmnopqrstuvwxyz012345"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SanitizeUsername(tc.in), tc.in)
	}
}

func TestFindOrCreateOAuthUser(t *testing.T) {
	db := testutil.NewDB(t)
	svc := NewUserService(db)
	ctx := context.Background()

	first, err := svc.FindOrCreateOAuthUser(ctx, OAuthProfile{
		Provider: "github", ProviderID: "1", Login: "Octo-Cat", AvatarURL: "https://a/1.png",
	})
	require.NoError(t, err)
	require.NotNil(t, first.Username)
	assert.Equal(t, "octo_cat", *first.Username)
	assert.Equal(t, "Octo-Cat", first.Name)

	// same login on another provider gets a suffixed username
	second, err := svc.FindOrCreateOAuthUser(ctx, OAuthProfile{
		Provider: "google", ProviderID: "abc", Login: "octo.cat@gmail.com", Name: "Octo",
	})
	require.NoError(t, err)
	assert.Equal(t, "octo_cat_1", *second.Username)
	assert.Equal(t, "Octo", second.Name)

	again, err := svc.FindOrCreateOAuthUser(ctx, OAuthProfile{
		Provider: "github", ProviderID: "1", Login: "Octo-Cat", AvatarURL: "https://a/2.png", Email: "o@c.dev",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	got, err := svc.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://a/2.png", got.Image)
	assert.Equal(t, "o@c.dev", got.Email)

	_, err = svc.Get(ctx, 9999)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.FindOrCreateOAuthUser(ctx, OAuthProfile{Provider: "github"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestFindOrCreateOAuthUser_FallbackUsername(t *testing.T) {
	db := testutil.NewDB(t)
	u, err := NewUserService(db).FindOrCreateOAuthUser(context.Background(), OAuthProfile{
		Provider: "google", ProviderID: "10987",
	})
	require.NoError(t, err)
	assert.Equal(t, "google_10987", *u.Username)
}
