package service

import (
	"coachshare/backend/internal/domain"
	"coachshare/backend/internal/repository"
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// --- Service Interface ---
type UserService interface {
	// GetProfile is visible to the user, admins, and users linked to them.
	GetProfile(ctx context.Context, actor Actor, userID primitive.ObjectID) (*domain.User, error)
	ListAthletes(ctx context.Context, coachID primitive.ObjectID) ([]domain.User, error)
	ListCoaches(ctx context.Context, athleteID primitive.ObjectID) ([]domain.User, error)
	SetPrimaryCoach(ctx context.Context, athleteID, coachID primitive.ObjectID) error
	// RemoveAthlete unassigns the coach's regimens from the athlete, then unlinks them.
	RemoveAthlete(ctx context.Context, coachID, athleteID primitive.ObjectID) (*LinkResult, error)
	// LeaveCoach is RemoveAthlete initiated by the athlete.
	LeaveCoach(ctx context.Context, athleteID, coachID primitive.ObjectID) (*LinkResult, error)
	// DeleteUser removes the account and everything that references it. Allowed
	// for the user themself and admins.
	DeleteUser(ctx context.Context, actor Actor, userID primitive.ObjectID) error
}

// --- Service Implementation ---

type userService struct {
	userRepo         repository.UserRepository
	regimenRepo      repository.RegimenRepository
	logRepo          repository.WorkoutLogRepository
	notificationRepo repository.NotificationRepository
	rel              RelationshipService
	regimens         RegimenService
	notifier         NotificationService
	log              *zap.Logger
}

// NewUserService creates a new instance of userService.
func NewUserService(
	userRepo repository.UserRepository,
	regimenRepo repository.RegimenRepository,
	logRepo repository.WorkoutLogRepository,
	notificationRepo repository.NotificationRepository,
	rel RelationshipService,
	regimens RegimenService,
	notifier NotificationService,
	log *zap.Logger,
) UserService {
	return &userService{
		userRepo:         userRepo,
		regimenRepo:      regimenRepo,
		logRepo:          logRepo,
		notificationRepo: notificationRepo,
		rel:              rel,
		regimens:         regimens,
		notifier:         notifier,
		log:              log,
	}
}

func (s *userService) load(ctx context.Context, id primitive.ObjectID, role domain.Role, notFound error) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound
		}
		return nil, Internal("load user", err)
	}
	if role != "" && user.Role != role {
		return nil, notFound
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) GetProfile(ctx context.Context, actor Actor, userID primitive.ObjectID) (*domain.User, error) {
	user, err := s.load(ctx, userID, "", ErrUserNotFound)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || actor.ID == userID || user.HasCoach(actor.ID) || user.HasAthlete(actor.ID) {
		return user, nil
	}
	return nil, ErrUserNotFound
}

func (s *userService) listByIDs(ctx context.Context, ids []primitive.ObjectID) ([]domain.User, error) {
	if len(ids) == 0 {
		return []domain.User{}, nil
	}
	users, err := s.userRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, Internal("load users", err)
	}
	for i := range users {
		users[i].PasswordHash = ""
	}
	return users, nil
}

func (s *userService) ListAthletes(ctx context.Context, coachID primitive.ObjectID) ([]domain.User, error) {
	coach, err := s.load(ctx, coachID, domain.RoleCoach, ErrCoachNotFound)
	if err != nil {
		return nil, err
	}
	return s.listByIDs(ctx, coach.Athletes)
}

func (s *userService) ListCoaches(ctx context.Context, athleteID primitive.ObjectID) ([]domain.User, error) {
	athlete, err := s.load(ctx, athleteID, domain.RoleAthlete, ErrAthleteNotFound)
	if err != nil {
		return nil, err
	}
	return s.listByIDs(ctx, athlete.Coaches)
}

func (s *userService) SetPrimaryCoach(ctx context.Context, athleteID, coachID primitive.ObjectID) error {
	return s.rel.SetPrimaryCoach(ctx, athleteID, coachID)
}

func (s *userService) RemoveAthlete(ctx context.Context, coachID, athleteID primitive.ObjectID) (*LinkResult, error) {
	res, coach, err := s.detach(ctx, coachID, athleteID)
	if err != nil {
		return nil, err
	}
	if res.Changed {
		notifyQuietly(ctx, s.notifier, s.log, NotificationInput{
			User:      athleteID,
			Title:     "Coach removed",
			Message:   fmt.Sprintf("%s is no longer your coach", coach.Name),
			Type:      domain.NotificationCoachRemoved,
			RelatedID: coachID.Hex(),
		})
	}
	return res, nil
}

func (s *userService) LeaveCoach(ctx context.Context, athleteID, coachID primitive.ObjectID) (*LinkResult, error) {
	res, _, err := s.detach(ctx, coachID, athleteID)
	if err != nil {
		return nil, err
	}
	if res.Changed {
		name := "An athlete"
		if athlete, err := s.userRepo.GetByID(ctx, athleteID); err == nil && athlete.Name != "" {
			name = athlete.Name
		}
		notifyQuietly(ctx, s.notifier, s.log, NotificationInput{
			User:      coachID,
			Title:     "Athlete left",
			Message:   fmt.Sprintf("%s is no longer coached by you", name),
			Type:      domain.NotificationCoachRemoved,
			RelatedID: athleteID.Hex(),
		})
	}
	return res, nil
}

// detach unassigns every regimen coachID owns from the athlete, then unlinks
// the pair. A pair with no link on either side is ErrNotLinked.
func (s *userService) detach(ctx context.Context, coachID, athleteID primitive.ObjectID) (*LinkResult, *domain.User, error) {
	coach, err := s.load(ctx, coachID, domain.RoleCoach, ErrCoachNotFound)
	if err != nil {
		return nil, nil, err
	}
	athlete, err := s.load(ctx, athleteID, domain.RoleAthlete, ErrAthleteNotFound)
	if err != nil {
		return nil, nil, err
	}
	if !athlete.HasCoach(coachID) && !coach.HasAthlete(athleteID) {
		return nil, nil, ErrNotLinked
	}

	// 1. Unassign the coach's regimens
	owned, err := s.regimenRepo.ListByCreator(ctx, coachID)
	if err != nil {
		return nil, nil, Internal("list coach regimens", err)
	}
	for i := range owned {
		regimen := &owned[i]
		if !regimen.IsAssignedTo(athleteID) && !athlete.HasRegimen(regimen.ID) {
			continue
		}
		if _, err := s.rel.UnassignRegimenFromAthlete(ctx, regimen.ID.Hex(), athleteID, coachID); err != nil {
			return nil, nil, err
		}
	}

	// 2. Unlink
	res, err := s.rel.UnlinkCoachAthlete(ctx, athleteID, coachID)
	if err != nil {
		return nil, nil, err
	}
	return res, coach, nil
}

func (s *userService) DeleteUser(ctx context.Context, actor Actor, userID primitive.ObjectID) error {
	// 1. Access check
	if !actor.IsAdmin() && actor.ID != userID {
		return ErrUserAccessDenied
	}
	user, err := s.load(ctx, userID, "", ErrUserNotFound)
	if err != nil {
		return err
	}

	// 2. Role specific cascade
	switch user.Role {
	case domain.RoleCoach:
		err = s.deleteCoachData(ctx, user)
	case domain.RoleAthlete:
		err = s.deleteAthleteData(ctx, user)
	}
	if err != nil {
		return err
	}

	// 3. Notifications and the account itself
	if _, err := s.notificationRepo.DeleteByUser(ctx, userID); err != nil {
		return Internal("delete notifications", err)
	}
	if err := s.userRepo.Delete(ctx, userID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return Internal("delete user", err)
	}

	s.log.Info("user deleted",
		zap.String("userId", userID.Hex()),
		zap.String("role", string(user.Role)),
		zap.String("by", actor.ID.Hex()))
	return nil
}

func (s *userService) deleteCoachData(ctx context.Context, coach *domain.User) error {
	// Athletes linked on either side, including one-sided leftovers.
	athletes, err := s.userRepo.ListByRole(ctx, domain.RoleAthlete)
	if err != nil {
		return Internal("list athletes", err)
	}
	for i := range athletes {
		athlete := &athletes[i]
		primary := athlete.PrimaryCoachID != nil && *athlete.PrimaryCoachID == coach.ID
		if !athlete.HasCoach(coach.ID) && !coach.HasAthlete(athlete.ID) && !primary {
			continue
		}
		if _, err := s.rel.UnlinkCoachAthlete(ctx, athlete.ID, coach.ID); err != nil {
			return err
		}
	}

	owned, err := s.regimenRepo.ListByCreator(ctx, coach.ID)
	if err != nil {
		return Internal("list coach regimens", err)
	}
	owner := Actor{ID: coach.ID, Role: domain.RoleCoach}
	for i := range owned {
		if err := s.regimens.Delete(ctx, owner, owned[i].ID.Hex()); err != nil && !errors.Is(err, ErrRegimenNotFound) {
			return err
		}
	}

	if _, err := s.logRepo.RemoveCoachFromShared(ctx, coach.ID); err != nil {
		return Internal("unshare workout logs", err)
	}
	return nil
}

func (s *userService) deleteAthleteData(ctx context.Context, athlete *domain.User) error {
	coaches, err := s.userRepo.ListByRole(ctx, domain.RoleCoach)
	if err != nil {
		return Internal("list coaches", err)
	}
	for i := range coaches {
		coach := &coaches[i]
		if !coach.HasAthlete(athlete.ID) && !athlete.HasCoach(coach.ID) {
			continue
		}
		if _, err := s.rel.UnlinkCoachAthlete(ctx, athlete.ID, coach.ID); err != nil {
			return err
		}
	}

	if _, err := s.rel.DetachAthleteFromRegimens(ctx, athlete.ID); err != nil {
		return err
	}
	if _, err := s.logRepo.DeleteByAthlete(ctx, athlete.ID); err != nil {
		return Internal("delete workout logs", err)
	}
	return nil
}
