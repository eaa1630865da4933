package service

import (
	"testing"
	"time"

	"lms_backend/internal/config"
	"lms_backend/internal/model"
	"lms_backend/internal/repository"
	"lms_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthService(t *testing.T, env *testEnv) *AuthService {
	t.Helper()
	cfg := &config.Config{}
	cfg.JWT.Secret = "unit-test-secret"
	cfg.JWT.ExpireTime = time.Hour
	return NewAuthService(repository.NewUserRepository(env.db), cfg)
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	auth := newAuthService(t, env)

	req := RegisterRequest{Name: "张三", Email: "zhangsan@test.local", Password: "secret123"}
	user, err := auth.Register(req)
	require.NoError(t, err)
	assert.Equal(t, model.Student, user.Role)
	assert.NotEqual(t, "secret123", user.Password)

	_, err = auth.Register(req)
	assert.ErrorIs(t, err, util.ErrEmailRegistered)
}

func TestLoginIssuesParsableToken(t *testing.T) {
	env := newTestEnv(t)
	auth := newAuthService(t, env)

	user, err := auth.Register(RegisterRequest{
		Name:     "李四",
		Email:    "lisi@test.local",
		Password: "secret123",
		Role:     model.Instructor,
	})
	require.NoError(t, err)

	token, logged, err := auth.Login("lisi@test.local", "secret123")
	require.NoError(t, err)
	assert.Equal(t, user.ID, logged.ID)

	claims, err := util.ParseJWT(token, "unit-test-secret")
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, model.Instructor, claims.Role)

	_, _, err = auth.Login("lisi@test.local", "wrong-password")
	assert.Error(t, err)
}

func TestLoginRejectsDisabledAccount(t *testing.T) {
	env := newTestEnv(t)
	auth := newAuthService(t, env)

	user, err := auth.Register(RegisterRequest{Name: "王五", Email: "wangwu@test.local", Password: "secret123"})
	require.NoError(t, err)
	require.NoError(t, env.db.Model(&model.User{}).Where("id = ?", user.ID).
		Update("disabled", true).Error)

	_, _, err = auth.Login("wangwu@test.local", "secret123")
	assert.Error(t, err)
}
