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

var day0 = time.Date(2025, 3, 3, 8, 0, 0, 0, time.UTC)

func onDay(n int) time.Time { return day0.AddDate(0, 0, n-1) }

func byID(list []Achievement) map[string]Achievement {
	out := make(map[string]Achievement, len(list))
	for _, a := range list {
		out[a.ID] = a
	}
	return out
}

func TestEvaluateAchievements_Empty(t *testing.T) {
	assert.Empty(t, EvaluateAchievements(nil))
}

func TestEvaluateAchievements_ConsistentWeek(t *testing.T) {
	got := byID(EvaluateAchievements([]time.Time{onDay(1), onDay(3), onDay(5)}))

	require.Contains(t, got, AchievementConsistentWeek)
	// Earliest anchored window wins; its end is the anchor plus six days.
	assert.Equal(t, onDay(1).Add(6*24*time.Hour), got[AchievementConsistentWeek].AchievedDate)
	assert.Equal(t, onDay(1), got[AchievementFirstWorkout].AchievedDate)
	assert.NotContains(t, got, AchievementMilestone10)
}

func TestEvaluateAchievements_ConsistentWeekNeedsDistinctDays(t *testing.T) {
	sameDay := []time.Time{onDay(1), onDay(1).Add(time.Hour), onDay(1).Add(2 * time.Hour), onDay(2)}
	assert.NotContains(t, byID(EvaluateAchievements(sameDay)), AchievementConsistentWeek)

	spread := []time.Time{onDay(1), onDay(8), onDay(15)}
	assert.NotContains(t, byID(EvaluateAchievements(spread)), AchievementConsistentWeek)

	twoOnly := []time.Time{onDay(1), onDay(2)}
	assert.NotContains(t, byID(EvaluateAchievements(twoOnly)), AchievementConsistentWeek)
}

func TestEvaluateAchievements_LaterAnchor(t *testing.T) {
	// Day 1 window covers days 1 and 7 only; the day 7 window covers 7, 9, 10.
	got := byID(EvaluateAchievements([]time.Time{onDay(1), onDay(7), onDay(9), onDay(10)}))
	require.Contains(t, got, AchievementConsistentWeek)
	assert.Equal(t, onDay(7).Add(6*24*time.Hour), got[AchievementConsistentWeek].AchievedDate)
}

func TestEvaluateAchievements_Milestones(t *testing.T) {
	var times []time.Time
	for i := 0; i < 25; i++ {
		// Reverse order input is accepted.
		times = append(times, day0.Add(time.Duration(24-i)*96*time.Hour))
	}
	got := byID(EvaluateAchievements(times))

	require.Contains(t, got, AchievementMilestone10)
	require.Contains(t, got, AchievementMilestone25)
	assert.Equal(t, day0.Add(9*96*time.Hour), got[AchievementMilestone10].AchievedDate)
	assert.Equal(t, day0.Add(24*96*time.Hour), got[AchievementMilestone25].AchievedDate)
	// Workouts every fourth day never reach three days in one week.
	assert.NotContains(t, got, AchievementConsistentWeek)
}

// Adding workouts never takes a badge away.
func TestEvaluateAchievements_Monotonic(t *testing.T) {
	var times []time.Time
	earned := map[string]bool{}
	for n := 1; n <= 30; n++ {
		times = append(times, day0.Add(time.Duration(n*n)*7*time.Hour))
		got := byID(EvaluateAchievements(times))
		for id := range earned {
			assert.Contains(t, got, id, "badge %s lost at n=%d", id, n)
		}
		for id := range got {
			earned[id] = true
		}
	}
	assert.Len(t, earned, 4)
}

func TestAchievementService_ForAthlete(t *testing.T) {
	f := newWorkoutFixture(t)
	ctx := context.Background()
	svc := NewAchievementService(f.logs, f.users)

	for _, n := range []int{1, 3, 5} {
		at := onDay(n)
		_, err := f.workout.Create(ctx, f.athlete, WorkoutLogInput{
			RegimenID:   f.regimen.RegimenID,
			DayID:       "d1",
			Completed:   true,
			CompletedAt: &at,
		})
		require.NoError(t, err)
	}
	// Not completed: ignored.
	_, err := f.workout.Create(ctx, f.athlete, WorkoutLogInput{RegimenID: f.regimen.RegimenID, DayID: "d1"})
	require.NoError(t, err)

	got, err := svc.ForAthlete(ctx, Actor{ID: f.coach, Role: domain.RoleCoach}, f.athlete)
	require.NoError(t, err)
	ids := byID(got)
	assert.Contains(t, ids, AchievementFirstWorkout)
	assert.Contains(t, ids, AchievementConsistentWeek)

	stranger := f.addUser(t, "Oz", "o@x.com", domain.RoleCoach)
	_, err = svc.ForAthlete(ctx, Actor{ID: stranger, Role: domain.RoleCoach}, f.athlete)
	assert.ErrorIs(t, err, ErrAthleteNotFound)

	_, err = svc.ForAthlete(ctx, Actor{ID: f.athlete, Role: domain.RoleAthlete}, primitive.NewObjectID())
	assert.ErrorIs(t, err, ErrAthleteNotFound)
}
