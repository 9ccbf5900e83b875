package bootstrap

import (
	"coachshare/backend/internal/api"
	"coachshare/backend/internal/mail"
	"coachshare/backend/internal/notify"
	"coachshare/backend/internal/service"
	"coachshare/backend/internal/storage"
	"context"
	"testing"

	"github.com/samber/do"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryEnv(t *testing.T) string {
	t.Helper()
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "container-secret")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("S3_BUCKET_NAME", "")
	return t.TempDir()
}

func TestBuildContainer_MemoryDriver(t *testing.T) {
	inj := BuildContainer(memoryEnv(t))
	defer func() { assert.NoError(t, inj.Shutdown()) }()

	svc, err := do.Invoke[api.Services](inj)
	require.NoError(t, err)
	assert.NotNil(t, svc.Auth)
	assert.NotNil(t, svc.Users)
	assert.NotNil(t, svc.Regimens)
	assert.NotNil(t, svc.WorkoutLogs)
	assert.NotNil(t, svc.Notifications)
	assert.NotNil(t, svc.Achievements)
	assert.NotNil(t, svc.Reconcile)

	_, isLog := do.MustInvoke[mail.Mailer](inj).(*mail.LogMailer)
	assert.True(t, isLog, "without rabbitmq the mailer only logs")
	assert.Nil(t, do.MustInvoke[storage.FileStorage](inj))
	assert.NotNil(t, do.MustInvoke[notify.Pusher](inj))
}

func TestBuildContainer_ServicesShareStore(t *testing.T) {
	inj := BuildContainer(memoryEnv(t))
	ctx := context.Background()

	auth := do.MustInvoke[service.AuthService](inj)
	coach, err := auth.Register(ctx, "Coach", "coach@example.com", "password1", "coach")
	require.NoError(t, err)

	users := do.MustInvoke[service.UserService](inj)
	athletes, err := users.ListAthletes(ctx, coach.ID)
	require.NoError(t, err)
	assert.Empty(t, athletes)
}

func TestBuildContainer_RequiresJWTSecret(t *testing.T) {
	dir := memoryEnv(t)
	t.Setenv("JWT_SECRET", "")
	inj := BuildContainer(dir)

	_, err := do.Invoke[service.AuthService](inj)
	assert.ErrorContains(t, err, "jwt.secret")
}

func TestBuildContainer_UnknownDriver(t *testing.T) {
	dir := memoryEnv(t)
	t.Setenv("DATABASE_DRIVER", "sqlite")
	inj := BuildContainer(dir)

	_, err := do.Invoke[*Store](inj)
	assert.ErrorContains(t, err, "sqlite")
}
