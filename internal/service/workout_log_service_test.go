package service

import (
	"coachshare/backend/internal/domain"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type workoutFixture struct {
	*fixture
	athlete, coach primitive.ObjectID
	regimen        *domain.Regimen
}

func newWorkoutFixture(t *testing.T) *workoutFixture {
	f := newFixture(t)
	athlete := f.addUser(t, "Ann", "a@x.com", domain.RoleAthlete)
	coach := f.addUser(t, "Cal", "c@x.com", domain.RoleCoach)
	f.link(t, athlete, coach)
	r := f.newRegimen(t, coach, "Base block")
	f.assign(t, r, athlete)
	return &workoutFixture{fixture: f, athlete: athlete, coach: coach, regimen: r}
}

func TestWorkoutLogService_CreateStripsSelfShare(t *testing.T) {
	f := newWorkoutFixture(t)
	ctx := context.Background()

	log, err := f.workout.Create(ctx, f.athlete, WorkoutLogInput{
		RegimenID:  f.regimen.ID.Hex(),
		DayID:      "d1",
		Completed:  true,
		SharedWith: []primitive.ObjectID{f.athlete, f.coach, f.coach},
	})
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{f.coach}, log.SharedWith)
	assert.Equal(t, f.regimen.RegimenID, log.RegimenID)
	assert.NotNil(t, log.CompletedAt)

	stored, err := f.logs.GetByID(ctx, log.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.SharedWith, f.athlete)

	// The coach is told about the share.
	notes, err := f.notifications.ListByUser(ctx, f.coach)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotificationWorkoutShared, notes[0].Type)
}

func TestWorkoutLogService_UpdateAndShareStripSelf(t *testing.T) {
	f := newWorkoutFixture(t)
	ctx := context.Background()
	log, err := f.workout.Create(ctx, f.athlete, WorkoutLogInput{RegimenID: f.regimen.RegimenID, DayID: "d1"})
	require.NoError(t, err)

	notes := "felt strong"
	effort := 7
	updated, err := f.workout.Update(ctx, f.athlete, log.ID, WorkoutLogPatch{
		Notes:      &notes,
		Effort:     &effort,
		SharedWith: []primitive.ObjectID{f.athlete},
	})
	require.NoError(t, err)
	assert.Empty(t, updated.SharedWith)
	assert.Equal(t, "felt strong", updated.Notes)

	shared, err := f.workout.Share(ctx, f.athlete, log.ID, []primitive.ObjectID{f.athlete, f.coach})
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{f.coach}, shared.SharedWith)

	stored, err := f.logs.GetByID(ctx, log.ID)
	require.NoError(t, err)
	assert.Equal(t, []primitive.ObjectID{f.coach}, stored.SharedWith)
	assert.Equal(t, 7, *stored.Effort)
}

func TestWorkoutLogService_CreateErrors(t *testing.T) {
	f := newWorkoutFixture(t)
	ctx := context.Background()
	outsider := f.addUser(t, "Sam", "s@x.com", domain.RoleAthlete)
	badEffort := 11

	tests := []struct {
		name    string
		athlete primitive.ObjectID
		in      WorkoutLogInput
		wantErr error
	}{
		{"unknown regimen", f.athlete, WorkoutLogInput{RegimenID: "nope", DayID: "d1"}, ErrRegimenNotFound},
		{"not assigned", outsider, WorkoutLogInput{RegimenID: f.regimen.RegimenID, DayID: "d1"}, ErrRegimenNotAssigned},
		{"unknown day", f.athlete, WorkoutLogInput{RegimenID: f.regimen.RegimenID, DayID: "d9"}, ErrUnknownDay},
		{"effort out of range", f.athlete, WorkoutLogInput{RegimenID: f.regimen.RegimenID, DayID: "d1", Effort: &badEffort}, ErrInvalidEffort},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.workout.Create(ctx, tt.athlete, tt.in)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWorkoutLogService_Visibility(t *testing.T) {
	f := newWorkoutFixture(t)
	ctx := context.Background()
	other := f.addUser(t, "Oz", "o@x.com", domain.RoleCoach)
	admin := f.addUser(t, "Root", "root@x.com", domain.RoleAdmin)

	log, err := f.workout.Create(ctx, f.athlete, WorkoutLogInput{
		RegimenID:  f.regimen.RegimenID,
		DayID:      "d1",
		SharedWith: []primitive.ObjectID{f.coach},
	})
	require.NoError(t, err)

	for _, actor := range []Actor{
		{ID: f.athlete, Role: domain.RoleAthlete},
		{ID: f.coach, Role: domain.RoleCoach},
		{ID: admin, Role: domain.RoleAdmin},
	} {
		_, err := f.workout.Get(ctx, actor, log.ID)
		assert.NoError(t, err, actor.Role)
	}
	_, err = f.workout.Get(ctx, Actor{ID: other, Role: domain.RoleCoach}, log.ID)
	assert.ErrorIs(t, err, ErrWorkoutLogNotFound)

	shared, err := f.workout.ListSharedWithMe(ctx, f.coach)
	require.NoError(t, err)
	assert.Len(t, shared, 1)
	mine, err := f.workout.ListMine(ctx, f.athlete)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestWorkoutLogService_DeletePolicy(t *testing.T) {
	f := newWorkoutFixture(t)
	ctx := context.Background()
	admin := f.addUser(t, "Root", "root@x.com", domain.RoleAdmin)

	log, err := f.workout.Create(ctx, f.athlete, WorkoutLogInput{
		RegimenID:  f.regimen.RegimenID,
		DayID:      "d1",
		SharedWith: []primitive.ObjectID{f.coach},
	})
	require.NoError(t, err)

	// A coach it was shared with can read it but not delete it.
	err = f.workout.Delete(ctx, Actor{ID: f.coach, Role: domain.RoleCoach}, log.ID)
	assert.ErrorIs(t, err, ErrWorkoutLogAccessDenied)

	require.NoError(t, f.workout.Delete(ctx, Actor{ID: admin, Role: domain.RoleAdmin}, log.ID))
	_, err = f.logs.GetByID(ctx, log.ID)
	assert.Error(t, err)

	log2, err := f.workout.Create(ctx, f.athlete, WorkoutLogInput{RegimenID: f.regimen.RegimenID, DayID: "d1"})
	require.NoError(t, err)
	require.NoError(t, f.workout.Delete(ctx, Actor{ID: f.athlete, Role: domain.RoleAthlete}, log2.ID))
}

func TestWorkoutLogService_UpdateByNonOwner(t *testing.T) {
	f := newWorkoutFixture(t)
	ctx := context.Background()
	log, err := f.workout.Create(ctx, f.athlete, WorkoutLogInput{RegimenID: f.regimen.RegimenID, DayID: "d1"})
	require.NoError(t, err)

	done := true
	_, err = f.workout.Update(ctx, f.coach, log.ID, WorkoutLogPatch{Completed: &done})
	assert.ErrorIs(t, err, ErrWorkoutLogAccessDenied)

	at := time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)
	updated, err := f.workout.Update(ctx, f.athlete, log.ID, WorkoutLogPatch{Completed: &done, CompletedAt: &at})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, at, *updated.CompletedAt)
}

func TestWorkoutLogService_CompletedAtFollowsCompleted(t *testing.T) {
	f := newWorkoutFixture(t)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 7, 0, 0, 0, time.UTC)

	log, err := f.workout.Create(ctx, f.athlete, WorkoutLogInput{RegimenID: f.regimen.RegimenID, DayID: "d1", CompletedAt: &at})
	require.NoError(t, err)
	assert.False(t, log.Completed)
	assert.Nil(t, log.CompletedAt)

	done := true
	log, err = f.workout.Update(ctx, f.athlete, log.ID, WorkoutLogPatch{Completed: &done, CompletedAt: &at})
	require.NoError(t, err)
	require.NotNil(t, log.CompletedAt)

	undone := false
	later := at.Add(time.Hour)
	log, err = f.workout.Update(ctx, f.athlete, log.ID, WorkoutLogPatch{Completed: &undone, CompletedAt: &later})
	require.NoError(t, err)
	assert.False(t, log.Completed)
	assert.Nil(t, log.CompletedAt)

	stored, err := f.logs.GetByID(ctx, log.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.CompletedAt)

	// A time alone does not reopen or complete the log.
	log, err = f.workout.Update(ctx, f.athlete, log.ID, WorkoutLogPatch{CompletedAt: &later})
	require.NoError(t, err)
	assert.Nil(t, log.CompletedAt)
}
