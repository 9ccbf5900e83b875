package service

import (
	"coachshare/backend/internal/domain"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newUsers(f *fixture) UserService {
	return NewUserService(f.users, f.regimens, f.logs, f.notifications, f.rel, f.regimen, f.notify, zap.NewNop())
}

func TestUserService_GetProfileVisibility(t *testing.T) {
	f := newWorkoutFixture(t)
	ctx := context.Background()
	svc := newUsers(f.fixture)
	stranger := f.addUser(t, "Oz", "o@x.com", domain.RoleCoach)

	got, err := svc.GetProfile(ctx, Actor{ID: f.coach, Role: domain.RoleCoach}, f.athlete)
	require.NoError(t, err)
	assert.Equal(t, f.athlete, got.ID)
	assert.Empty(t, got.PasswordHash)

	_, err = svc.GetProfile(ctx, Actor{ID: f.athlete, Role: domain.RoleAthlete}, f.coach)
	require.NoError(t, err)

	_, err = svc.GetProfile(ctx, Actor{ID: stranger, Role: domain.RoleCoach}, f.athlete)
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.GetProfile(ctx, Actor{ID: primitive.NewObjectID(), Role: domain.RoleAdmin}, f.athlete)
	require.NoError(t, err)
}

func TestUserService_ListAthletesAndCoaches(t *testing.T) {
	f := newWorkoutFixture(t)
	ctx := context.Background()
	svc := newUsers(f.fixture)
	second := f.addUser(t, "Dee", "d@x.com", domain.RoleCoach)
	f.link(t, f.athlete, second)

	athletes, err := svc.ListAthletes(ctx, f.coach)
	require.NoError(t, err)
	require.Len(t, athletes, 1)
	assert.Equal(t, f.athlete, athletes[0].ID)

	coaches, err := svc.ListCoaches(ctx, f.athlete)
	require.NoError(t, err)
	assert.Len(t, coaches, 2)

	empty, err := svc.ListAthletes(ctx, f.addUser(t, "New", "n@x.com", domain.RoleCoach))
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = svc.ListAthletes(ctx, f.athlete)
	assert.ErrorIs(t, err, ErrCoachNotFound)
}

func TestUserService_SetPrimaryCoach(t *testing.T) {
	f := newWorkoutFixture(t)
	ctx := context.Background()
	svc := newUsers(f.fixture)
	second := f.addUser(t, "Dee", "d@x.com", domain.RoleCoach)

	assert.ErrorIs(t, svc.SetPrimaryCoach(ctx, f.athlete, second), ErrNotLinked)

	f.link(t, f.athlete, second)
	require.NoError(t, svc.SetPrimaryCoach(ctx, f.athlete, second))
	a := f.user(t, f.athlete)
	assert.Equal(t, second, *a.PrimaryCoachID)
	assert.Equal(t, second, *a.CoachID)
}

func TestUserService_RemoveAthlete(t *testing.T) {
	f := newWorkoutFixture(t)
	ctx := context.Background()
	svc := newUsers(f.fixture)

	res, err := svc.RemoveAthlete(ctx, f.coach, f.athlete)
	require.NoError(t, err)
	assert.True(t, res.Changed)

	a := f.user(t, f.athlete)
	assert.Empty(t, a.Coaches)
	assert.Nil(t, a.PrimaryCoachID)
	assert.Empty(t, a.Regimens)
	assert.Empty(t, f.user(t, f.coach).Athletes)
	assert.Empty(t, f.regimenByID(t, f.regimen.ID).AssignedTo)

	notes, err := f.notifications.ListByUser(ctx, f.athlete)
	require.NoError(t, err)
	require.NotEmpty(t, notes)
	assert.Equal(t, domain.NotificationCoachRemoved, notes[0].Type)

	_, err = svc.RemoveAthlete(ctx, f.coach, f.athlete)
	assert.ErrorIs(t, err, ErrNotLinked)
}

func TestUserService_LeaveCoachNotifiesCoach(t *testing.T) {
	f := newWorkoutFixture(t)
	ctx := context.Background()

	res, err := newUsers(f.fixture).LeaveCoach(ctx, f.athlete, f.coach)
	require.NoError(t, err)
	assert.True(t, res.Changed)

	notes, err := f.notifications.ListByUser(ctx, f.coach)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Contains(t, notes[0].Message, "Ann")
}

func TestUserService_DeleteCoachCascades(t *testing.T) {
	f := newWorkoutFixture(t)
	ctx := context.Background()
	svc := newUsers(f.fixture)
	second := f.addUser(t, "Dee", "d@x.com", domain.RoleCoach)
	f.link(t, f.athlete, second)
	require.NoError(t, f.rel.SetPrimaryCoach(ctx, f.athlete, f.coach))

	log, err := f.workout.Create(ctx, f.athlete, WorkoutLogInput{
		RegimenID:  f.regimen.RegimenID,
		DayID:      "d1",
		Completed:  true,
		SharedWith: []primitive.ObjectID{f.coach, second},
	})
	require.NoError(t, err)
	other := f.newRegimen(t, second, "Second block")
	f.assign(t, other, f.athlete)
	otherLog, err := f.workout.Create(ctx, f.athlete, WorkoutLogInput{
		RegimenID:  other.RegimenID,
		DayID:      "d1",
		SharedWith: []primitive.ObjectID{f.coach},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteUser(ctx, Actor{ID: second, Role: domain.RoleCoach}, f.coach), ErrUserAccessDenied)
	require.NoError(t, svc.DeleteUser(ctx, Actor{ID: f.coach, Role: domain.RoleCoach}, f.coach))

	_, err = f.users.GetByID(ctx, f.coach)
	assert.Error(t, err)

	// The athlete keeps the other coach, who becomes primary.
	a := f.user(t, f.athlete)
	assert.Equal(t, []primitive.ObjectID{second}, a.Coaches)
	assert.Equal(t, second, *a.PrimaryCoachID)
	assert.Equal(t, []primitive.ObjectID{other.ID}, a.Regimens)

	// The deleted coach's regimen and its logs are gone.
	_, err = f.regimens.GetByID(ctx, f.regimen.ID)
	assert.Error(t, err)
	_, err = f.logs.GetByID(ctx, log.ID)
	assert.Error(t, err)

	// Surviving logs no longer list the deleted coach.
	kept, err := f.logs.GetByID(ctx, otherLog.ID)
	require.NoError(t, err)
	assert.Empty(t, kept.SharedWith)

	notes, err := f.notifications.ListByUser(ctx, f.coach)
	require.NoError(t, err)
	assert.Empty(t, notes)
}

func TestUserService_DeleteAthleteCascades(t *testing.T) {
	f := newWorkoutFixture(t)
	ctx := context.Background()
	svc := newUsers(f.fixture)
	_, err := f.workout.Create(ctx, f.athlete, WorkoutLogInput{RegimenID: f.regimen.RegimenID, DayID: "d1", Completed: true})
	require.NoError(t, err)

	admin := Actor{ID: primitive.NewObjectID(), Role: domain.RoleAdmin}
	require.NoError(t, svc.DeleteUser(ctx, admin, f.athlete))

	assert.Empty(t, f.user(t, f.coach).Athletes)
	assert.Empty(t, f.regimenByID(t, f.regimen.ID).AssignedTo)
	logs, err := f.logs.ListByAthlete(ctx, f.athlete)
	require.NoError(t, err)
	assert.Empty(t, logs)

	assert.ErrorIs(t, svc.DeleteUser(ctx, admin, f.athlete), ErrUserNotFound)
}
