package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yaso2000/dinebuddies-sub000/internal/model"
	"github.com/yaso2000/dinebuddies-sub000/pkg/auth"
)

func newAuthService(env *testEnv) *AuthService {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	return NewAuthService(env.userRepo, jwtManager, env.rdb)
}

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)

	resp, err := svc.Register(model.RegisterRequest{
		Name:     "Alice",
		Email:    "alice@dinebuddies.local",
		Password: "supersecret",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token)
	assert.Equal(t, "Alice", resp.User.Name)
	assert.True(t, resp.User.PushEnabled)

	// the same email cannot register twice
	_, err = svc.Register(model.RegisterRequest{
		Name:     "Imposter",
		Email:    "alice@dinebuddies.local",
		Password: "whatever",
	})
	assert.Equal(t, model.CodeValidationError, model.ErrCode(err))

	login, err := svc.Login(model.LoginRequest{
		Email:    "alice@dinebuddies.local",
		Password: "supersecret",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, login.Token)

	_, err = svc.Login(model.LoginRequest{
		Email:    "alice@dinebuddies.local",
		Password: "wrong",
	})
	assert.Equal(t, model.CodePermissionDenied, model.ErrCode(err))

	_, err = svc.Login(model.LoginRequest{
		Email:    "nobody@dinebuddies.local",
		Password: "supersecret",
	})
	assert.Equal(t, model.CodePermissionDenied, model.ErrCode(err))
}

func TestLogoutBlacklistsToken(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)

	resp, err := svc.Register(model.RegisterRequest{
		Name:     "Alice",
		Email:    "alice@dinebuddies.local",
		Password: "supersecret",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(resp.User.ID, resp.Token))

	exists, err := env.rdb.Exists(context.Background(), "blacklist:"+resp.Token).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists)

	user, err := env.userRepo.FindByID(resp.User.ID)
	require.NoError(t, err)
	assert.False(t, user.IsOnline)
}

func TestUpdatePreferences(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)
	alice := env.createUser(t, "alice")

	enabled := false
	dnd := true
	profile, err := svc.UpdatePreferences(alice.ID, model.UpdatePreferencesRequest{
		PushEnabled: &enabled,
		DNDEnabled:  &dnd,
		DNDStart:    "22:00",
		DNDEnd:      "08:00",
	})
	require.NoError(t, err)
	assert.False(t, profile.PushEnabled)
	assert.True(t, profile.DNDEnabled)
	assert.Equal(t, "22:00", profile.DNDStart)
	assert.Equal(t, "08:00", profile.DNDEnd)

	// a malformed clock is rejected before anything changes
	_, err = svc.UpdatePreferences(alice.ID, model.UpdatePreferencesRequest{
		DNDStart: "25:99",
	})
	assert.Equal(t, model.CodeValidationError, model.ErrCode(err))
}

func TestSearchUsersExcludesSelf(t *testing.T) {
	env := newTestEnv(t)
	svc := newAuthService(env)
	alice := env.createUser(t, "alice")
	env.createUser(t, "alina")
	env.createUser(t, "bob")

	results, err := svc.SearchUsers("ali", alice.ID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "alina", results[0].Name)
}
