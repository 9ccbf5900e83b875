package service

import (
	"coachshare/backend/internal/domain"
	"coachshare/backend/internal/repository"
	"context"
	"errors"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Achievement is an earned badge.
type Achievement struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	AchievedDate time.Time `json:"achievedDate"`
}

const (
	AchievementFirstWorkout   = "first-workout"
	AchievementMilestone10    = "milestone-10"
	AchievementMilestone25    = "milestone-25"
	AchievementConsistentWeek = "consistent-week"
)

// consistentWeekDays is the number of distinct days needed within one window.
const consistentWeekDays = 3

const consistentWeekSpan = 6 * 24 * time.Hour

type milestone struct {
	id, title, description string
	count                  int
}

var milestones = []milestone{
	{AchievementFirstWorkout, "First Workout", "Completed your first workout", 1},
	{AchievementMilestone10, "10 Workouts", "Completed 10 workouts", 10},
	{AchievementMilestone25, "25 Workouts", "Completed 25 workouts", 25},
}

// EvaluateAchievements derives earned badges from one athlete's completion
// timestamps. The input is sorted on a copy, so any order is accepted.
func EvaluateAchievements(completions []time.Time) []Achievement {
	out := []Achievement{}
	if len(completions) == 0 {
		return out
	}
	times := append([]time.Time(nil), completions...)
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	for _, m := range milestones {
		if len(times) >= m.count {
			out = append(out, Achievement{
				ID:           m.id,
				Title:        m.title,
				Description:  m.description,
				AchievedDate: times[m.count-1],
			})
		}
	}

	if end, ok := firstConsistentWeek(times); ok {
		out = append(out, Achievement{
			ID:           AchievementConsistentWeek,
			Title:        "Consistent Week",
			Description:  "Worked out on 3 different days within a week",
			AchievedDate: end,
		})
	}
	return out
}

// firstConsistentWeek scans windows [t, t+6 days] anchored at each completion
// in order and returns the end of the first window that covers at least three
// distinct calendar days (UTC).
func firstConsistentWeek(sorted []time.Time) (time.Time, bool) {
	if len(sorted) < consistentWeekDays {
		return time.Time{}, false
	}
	for i, anchor := range sorted {
		end := anchor.Add(consistentWeekSpan)
		days := make(map[[3]int]struct{}, consistentWeekDays)
		for _, t := range sorted[i:] {
			if t.After(end) {
				break
			}
			y, m, d := t.UTC().Date()
			days[[3]int{y, int(m), d}] = struct{}{}
		}
		if len(days) >= consistentWeekDays {
			return end, true
		}
	}
	return time.Time{}, false
}

// --- Service Interface ---
type AchievementService interface {
	// ForAthlete is visible to the athlete, their coaches and admins.
	ForAthlete(ctx context.Context, actor Actor, athleteID primitive.ObjectID) ([]Achievement, error)
}

type achievementService struct {
	logRepo  repository.WorkoutLogRepository
	userRepo repository.UserRepository
}

// NewAchievementService creates a new instance of achievementService.
func NewAchievementService(logRepo repository.WorkoutLogRepository, userRepo repository.UserRepository) AchievementService {
	return &achievementService{logRepo: logRepo, userRepo: userRepo}
}

func (s *achievementService) ForAthlete(ctx context.Context, actor Actor, athleteID primitive.ObjectID) ([]Achievement, error) {
	athlete, err := s.userRepo.GetByID(ctx, athleteID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAthleteNotFound
		}
		return nil, Internal("load athlete", err)
	}
	if athlete.Role != domain.RoleAthlete {
		return nil, ErrAthleteNotFound
	}
	if !actor.IsAdmin() && actor.ID != athleteID && !athlete.HasCoach(actor.ID) {
		return nil, ErrAthleteNotFound
	}

	logs, err := s.logRepo.ListCompletedByAthlete(ctx, athleteID)
	if err != nil {
		return nil, Internal("list completed workouts", err)
	}
	times := make([]time.Time, len(logs))
	for i := range logs {
		times[i] = logs[i].CompletionTime()
	}
	return EvaluateAchievements(times), nil
}
