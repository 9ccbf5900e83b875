package service

import (
	"coachshare/backend/internal/domain"
	"coachshare/backend/internal/repository"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Actor is the authenticated user a request is made on behalf of.
type Actor struct {
	ID   primitive.ObjectID
	Role domain.Role
}

func (a Actor) IsAdmin() bool { return a.Role == domain.RoleAdmin }

// RegimenInput holds the coach-editable fields of a regimen.
type RegimenInput struct {
	Name        string
	Description string
	Days        []domain.RegimenDay
}

// --- Service Interface ---
type RegimenService interface {
	Create(ctx context.Context, coachID primitive.ObjectID, in RegimenInput) (*domain.Regimen, error)
	// Get resolves ref (UUID or store id). Only the owner, assignees and admins can see a regimen.
	Get(ctx context.Context, actor Actor, ref string) (*domain.Regimen, error)
	ListForCoach(ctx context.Context, coachID primitive.ObjectID) ([]domain.Regimen, error)
	ListForAthlete(ctx context.Context, athleteID primitive.ObjectID) ([]domain.Regimen, error)
	Update(ctx context.Context, coachID primitive.ObjectID, ref string, in RegimenInput) (*domain.Regimen, error)
	// Delete removes the regimen, pulls it from every athlete and deletes its workout logs.
	Delete(ctx context.Context, actor Actor, ref string) error

	Assign(ctx context.Context, coachID primitive.ObjectID, ref string, athleteID primitive.ObjectID) (*AssignResult, error)
	Unassign(ctx context.Context, coachID primitive.ObjectID, ref string, athleteID primitive.ObjectID) (*AssignResult, error)
}

// --- Service Implementation ---

type regimenService struct {
	regimenRepo repository.RegimenRepository
	logRepo     repository.WorkoutLogRepository
	rel         RelationshipService
	notifier    NotificationService
	log         *zap.Logger
}

// NewRegimenService creates a new instance of regimenService.
func NewRegimenService(
	regimenRepo repository.RegimenRepository,
	logRepo repository.WorkoutLogRepository,
	rel RelationshipService,
	notifier NotificationService,
	log *zap.Logger,
) RegimenService {
	return &regimenService{
		regimenRepo: regimenRepo,
		logRepo:     logRepo,
		rel:         rel,
		notifier:    notifier,
		log:         log,
	}
}

// normalize validates the input and fills in missing day ids.
func (in *RegimenInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return ErrRegimenNameRequired
	}
	seen := make(map[string]struct{}, len(in.Days))
	days := make([]domain.RegimenDay, len(in.Days))
	for i, d := range in.Days {
		d.ID = strings.TrimSpace(d.ID)
		if d.ID == "" {
			d.ID = uuid.NewString()
		}
		if _, dup := seen[d.ID]; dup {
			return InvalidInput("duplicate day id %q", d.ID)
		}
		seen[d.ID] = struct{}{}
		if d.Distance < 0 {
			return InvalidInput("day %q: distance cannot be negative", d.ID)
		}
		if d.TargetTime != "" {
			if _, err := ParseTargetTime(d.TargetTime); err != nil {
				return InvalidInput("day %q: %v", d.ID, err)
			}
		}
		days[i] = d
	}
	in.Days = days
	return nil
}

func (s *regimenService) Create(ctx context.Context, coachID primitive.ObjectID, in RegimenInput) (*domain.Regimen, error) {
	// 1. Validate Input
	if coachID.IsZero() {
		return nil, InvalidInput("coach id is required")
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	// 2. Build the regimen with a fresh external id
	regimen := &domain.Regimen{
		RegimenID:   uuid.NewString(),
		CreatedBy:   coachID,
		AssignedTo:  []primitive.ObjectID{},
		Name:        in.Name,
		Description: in.Description,
		Days:        in.Days,
	}

	// 3. Save
	if _, err := s.regimenRepo.Create(ctx, regimen); err != nil {
		return nil, Internal("create regimen", err)
	}
	return regimen, nil
}

func (s *regimenService) resolve(ctx context.Context, ref string) (*domain.Regimen, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, InvalidInput("regimen id is required")
	}
	regimen, err := s.regimenRepo.GetByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRegimenNotFound
		}
		return nil, Internal("load regimen", err)
	}
	return regimen, nil
}

func (s *regimenService) Get(ctx context.Context, actor Actor, ref string) (*domain.Regimen, error) {
	regimen, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || regimen.CreatedBy == actor.ID || regimen.IsAssignedTo(actor.ID) {
		return regimen, nil
	}
	return nil, ErrRegimenNotFound
}

func (s *regimenService) ListForCoach(ctx context.Context, coachID primitive.ObjectID) ([]domain.Regimen, error) {
	list, err := s.regimenRepo.ListByCreator(ctx, coachID)
	if err != nil {
		return nil, Internal("list regimens", err)
	}
	return list, nil
}

func (s *regimenService) ListForAthlete(ctx context.Context, athleteID primitive.ObjectID) ([]domain.Regimen, error) {
	list, err := s.regimenRepo.ListAssignedTo(ctx, athleteID)
	if err != nil {
		return nil, Internal("list regimens", err)
	}
	return list, nil
}

func (s *regimenService) Update(ctx context.Context, coachID primitive.ObjectID, ref string, in RegimenInput) (*domain.Regimen, error) {
	regimen, err := s.resolve(ctx, ref)
	if err != nil {
		return nil, err
	}
	if regimen.CreatedBy != coachID {
		return nil, ErrRegimenAccessDenied
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}

	patch := repository.RegimenUpdate{Name: in.Name, Description: in.Description, Days: in.Days}
	if err := s.regimenRepo.Update(ctx, regimen.ID, coachID, patch); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Deleted between the read and the write
			return nil, ErrRegimenNotFound
		}
		return nil, Internal("update regimen", err)
	}

	regimen.Name = in.Name
	regimen.Description = in.Description
	regimen.Days = in.Days
	return regimen, nil
}

func (s *regimenService) Delete(ctx context.Context, actor Actor, ref string) error {
	// 1. Resolve and check ownership
	regimen, err := s.resolve(ctx, ref)
	if err != nil {
		return err
	}
	if !actor.IsAdmin() && regimen.CreatedBy != actor.ID {
		return ErrRegimenAccessDenied
	}

	// 2. Pull from every athlete that still references it
	pulled, err := s.rel.DetachRegimen(ctx, regimen.ID)
	if err != nil {
		return err
	}

	// 3. Delete the logs that reference it by either id
	deletedLogs, err := s.logRepo.DeleteByRegimenRefs(ctx, regimen.RefIDs())
	if err != nil {
		return Internal("delete regimen workout logs", err)
	}

	// 4. Delete the regimen itself
	if err := s.regimenRepo.Delete(ctx, regimen.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return Internal("delete regimen", err)
	}

	s.log.Info("regimen deleted",
		zap.String("regimenId", regimen.RegimenID),
		zap.String("by", actor.ID.Hex()),
		zap.Int64("athletesUpdated", pulled),
		zap.Int64("logsDeleted", deletedLogs))
	return nil
}

func (s *regimenService) Assign(ctx context.Context, coachID primitive.ObjectID, ref string, athleteID primitive.ObjectID) (*AssignResult, error) {
	res, err := s.rel.AssignRegimenToAthlete(ctx, ref, athleteID, coachID)
	if err != nil {
		return nil, err
	}
	if res.Changed {
		s.notifyAthlete(ctx, ref, athleteID, domain.NotificationRegimenAssigned, "New regimen assigned", "%s was assigned to you")
	}
	return res, nil
}

func (s *regimenService) Unassign(ctx context.Context, coachID primitive.ObjectID, ref string, athleteID primitive.ObjectID) (*AssignResult, error) {
	res, err := s.rel.UnassignRegimenFromAthlete(ctx, ref, athleteID, coachID)
	if err != nil {
		return nil, err
	}
	if res.Changed {
		s.notifyAthlete(ctx, ref, athleteID, domain.NotificationRegimenRemoved, "Regimen removed", "%s is no longer assigned to you")
	}
	return res, nil
}

func (s *regimenService) notifyAthlete(ctx context.Context, ref string, athleteID primitive.ObjectID, typ domain.NotificationType, title, format string) {
	name := "A regimen"
	related := ref
	if regimen, err := s.regimenRepo.GetByRef(ctx, ref); err == nil {
		name = regimen.Name
		related = regimen.RegimenID
	}
	notifyQuietly(ctx, s.notifier, s.log, NotificationInput{
		User:      athleteID,
		Title:     title,
		Message:   fmt.Sprintf(format, name),
		Type:      typ,
		RelatedID: related,
	})
}
