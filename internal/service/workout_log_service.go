package service

import (
	"coachshare/backend/internal/domain"
	"coachshare/backend/internal/repository"
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// WorkoutLogInput is what an athlete submits when logging a workout.
type WorkoutLogInput struct {
	RegimenID   string
	DayID       string
	Completed   bool
	CompletedAt *time.Time
	Notes       string
	Effort      *int
	SharedWith  []primitive.ObjectID
}

// WorkoutLogPatch changes an existing log. Nil fields are left untouched.
type WorkoutLogPatch struct {
	Completed   *bool
	CompletedAt *time.Time
	Notes       *string
	Effort      *int
	SharedWith  []primitive.ObjectID
}

// --- Service Interface ---
type WorkoutLogService interface {
	Create(ctx context.Context, athleteID primitive.ObjectID, in WorkoutLogInput) (*domain.WorkoutLog, error)
	Update(ctx context.Context, athleteID, logID primitive.ObjectID, patch WorkoutLogPatch) (*domain.WorkoutLog, error)
	Share(ctx context.Context, athleteID, logID primitive.ObjectID, coachIDs []primitive.ObjectID) (*domain.WorkoutLog, error)
	// Delete is allowed for the owning athlete and admins only.
	Delete(ctx context.Context, actor Actor, logID primitive.ObjectID) error
	// Get returns the log to its owner, coaches it is shared with, and admins.
	Get(ctx context.Context, actor Actor, logID primitive.ObjectID) (*domain.WorkoutLog, error)
	ListMine(ctx context.Context, athleteID primitive.ObjectID) ([]domain.WorkoutLog, error)
	ListSharedWithMe(ctx context.Context, coachID primitive.ObjectID) ([]domain.WorkoutLog, error)
}

// --- Service Implementation ---

type workoutLogService struct {
	logRepo     repository.WorkoutLogRepository
	regimenRepo repository.RegimenRepository
	userRepo    repository.UserRepository
	notifier    NotificationService
	log         *zap.Logger
}

// NewWorkoutLogService creates a new instance of workoutLogService.
func NewWorkoutLogService(
	logRepo repository.WorkoutLogRepository,
	regimenRepo repository.RegimenRepository,
	userRepo repository.UserRepository,
	notifier NotificationService,
	log *zap.Logger,
) WorkoutLogService {
	return &workoutLogService{
		logRepo:     logRepo,
		regimenRepo: regimenRepo,
		userRepo:    userRepo,
		notifier:    notifier,
		log:         log,
	}
}

func validateEffort(effort *int) error {
	if effort != nil && (*effort < 1 || *effort > 10) {
		return ErrInvalidEffort
	}
	return nil
}

func (s *workoutLogService) Create(ctx context.Context, athleteID primitive.ObjectID, in WorkoutLogInput) (*domain.WorkoutLog, error) {
	// 1. Validate Input
	if strings.TrimSpace(in.RegimenID) == "" {
		return nil, InvalidInput("regimenId is required")
	}
	if err := validateEffort(in.Effort); err != nil {
		return nil, err
	}

	// 2. The regimen must exist and be assigned to this athlete
	regimen, err := s.regimenRepo.GetByRef(ctx, in.RegimenID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRegimenNotFound
		}
		return nil, Internal("load regimen", err)
	}
	if !regimen.IsAssignedTo(athleteID) {
		return nil, ErrRegimenNotAssigned
	}
	if len(regimen.Days) > 0 && !regimen.HasDay(in.DayID) {
		return nil, ErrUnknownDay
	}

	// 3. Build the log; sharedWith never contains the owner
	log := &domain.WorkoutLog{
		AthleteID:   athleteID,
		RegimenID:   regimen.RegimenID,
		DayID:       in.DayID,
		Completed:   in.Completed,
		CompletedAt: in.CompletedAt,
		Notes:       in.Notes,
		Effort:      in.Effort,
		SharedWith:  FilterSharedWith(athleteID, in.SharedWith),
	}
	settleCompletion(log)

	// 4. Save and tell the coaches it was shared with
	if _, err := s.logRepo.Create(ctx, log); err != nil {
		return nil, Internal("create workout log", err)
	}
	s.notifyShared(ctx, log, log.SharedWith)
	return log, nil
}

// loadOwned returns the log if athleteID owns it.
func (s *workoutLogService) loadOwned(ctx context.Context, athleteID, logID primitive.ObjectID) (*domain.WorkoutLog, error) {
	log, err := s.logRepo.GetByID(ctx, logID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutLogNotFound
		}
		return nil, Internal("load workout log", err)
	}
	if log.AthleteID != athleteID {
		return nil, ErrWorkoutLogAccessDenied
	}
	return log, nil
}

// settleCompletion keeps CompletedAt in step with Completed: an incomplete log
// has no completion time, a completed one defaults to now.
func settleCompletion(log *domain.WorkoutLog) {
	if !log.Completed {
		log.CompletedAt = nil
		return
	}
	if log.CompletedAt == nil {
		now := time.Now().UTC()
		log.CompletedAt = &now
	}
}

func (s *workoutLogService) Update(ctx context.Context, athleteID, logID primitive.ObjectID, patch WorkoutLogPatch) (*domain.WorkoutLog, error) {
	log, err := s.loadOwned(ctx, athleteID, logID)
	if err != nil {
		return nil, err
	}
	if err := validateEffort(patch.Effort); err != nil {
		return nil, err
	}

	previouslyShared := log.SharedWith
	if patch.Completed != nil {
		log.Completed = *patch.Completed
	}
	if patch.CompletedAt != nil {
		log.CompletedAt = patch.CompletedAt
	}
	settleCompletion(log)
	if patch.Notes != nil {
		log.Notes = *patch.Notes
	}
	if patch.Effort != nil {
		log.Effort = patch.Effort
	}
	if patch.SharedWith != nil {
		log.SharedWith = FilterSharedWith(athleteID, patch.SharedWith)
	}

	err = s.logRepo.Update(ctx, logID, athleteID, repository.WorkoutLogUpdate{
		Completed:   log.Completed,
		CompletedAt: log.CompletedAt,
		Notes:       log.Notes,
		Effort:      log.Effort,
		SharedWith:  log.SharedWith,
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutLogNotFound
		}
		return nil, Internal("update workout log", err)
	}
	s.notifyShared(ctx, log, newlyAdded(previouslyShared, log.SharedWith))
	return log, nil
}

func (s *workoutLogService) Share(ctx context.Context, athleteID, logID primitive.ObjectID, coachIDs []primitive.ObjectID) (*domain.WorkoutLog, error) {
	log, err := s.loadOwned(ctx, athleteID, logID)
	if err != nil {
		return nil, err
	}
	shared := FilterSharedWith(athleteID, coachIDs)
	if err := s.logRepo.SetSharedWith(ctx, logID, athleteID, shared); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutLogNotFound
		}
		return nil, Internal("share workout log", err)
	}
	added := newlyAdded(log.SharedWith, shared)
	log.SharedWith = shared
	s.notifyShared(ctx, log, added)
	return log, nil
}

func (s *workoutLogService) Delete(ctx context.Context, actor Actor, logID primitive.ObjectID) error {
	log, err := s.logRepo.GetByID(ctx, logID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrWorkoutLogNotFound
		}
		return Internal("load workout log", err)
	}
	if !actor.IsAdmin() && log.AthleteID != actor.ID {
		return ErrWorkoutLogAccessDenied
	}
	if err := s.logRepo.Delete(ctx, logID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return Internal("delete workout log", err)
	}
	return nil
}

func (s *workoutLogService) Get(ctx context.Context, actor Actor, logID primitive.ObjectID) (*domain.WorkoutLog, error) {
	log, err := s.logRepo.GetByID(ctx, logID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrWorkoutLogNotFound
		}
		return nil, Internal("load workout log", err)
	}
	if actor.IsAdmin() || log.AthleteID == actor.ID || log.IsSharedWith(actor.ID) {
		return log, nil
	}
	// Invisible logs look the same as missing ones
	return nil, ErrWorkoutLogNotFound
}

func (s *workoutLogService) ListMine(ctx context.Context, athleteID primitive.ObjectID) ([]domain.WorkoutLog, error) {
	logs, err := s.logRepo.ListByAthlete(ctx, athleteID)
	if err != nil {
		return nil, Internal("list workout logs", err)
	}
	return logs, nil
}

func (s *workoutLogService) ListSharedWithMe(ctx context.Context, coachID primitive.ObjectID) ([]domain.WorkoutLog, error) {
	logs, err := s.logRepo.ListSharedWith(ctx, coachID)
	if err != nil {
		return nil, Internal("list shared workout logs", err)
	}
	return logs, nil
}

// newlyAdded returns the ids in after that are not in before.
func newlyAdded(before, after []primitive.ObjectID) []primitive.ObjectID {
	var out []primitive.ObjectID
	for _, id := range after {
		if !domain.ContainsID(before, id) {
			out = append(out, id)
		}
	}
	return out
}

func (s *workoutLogService) notifyShared(ctx context.Context, log *domain.WorkoutLog, coachIDs []primitive.ObjectID) {
	if len(coachIDs) == 0 {
		return
	}
	name := "An athlete"
	if athlete, err := s.userRepo.GetByID(ctx, log.AthleteID); err == nil && athlete.Name != "" {
		name = athlete.Name
	}
	for _, coachID := range coachIDs {
		notifyQuietly(ctx, s.notifier, s.log, NotificationInput{
			User:      coachID,
			Title:     "Workout shared with you",
			Message:   name + " shared a workout log",
			Type:      domain.NotificationWorkoutShared,
			RelatedID: log.ID.Hex(),
		})
	}
}
