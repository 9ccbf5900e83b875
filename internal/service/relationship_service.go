package service

import (
	"coachshare/backend/internal/domain"
	"coachshare/backend/internal/metrics"
	"coachshare/backend/internal/repository"
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// LinkResult reports what a link/unlink call did.
type LinkResult struct {
	// Changed is false when the relationship was already in the requested state.
	Changed bool `json:"changed"`
	// Partial is true when only one of the two documents could be written. The
	// remaining asymmetry is left for reconciliation.
	Partial bool `json:"partial,omitempty"`
}

// AssignResult reports what an assign/unassign call did.
type AssignResult struct {
	Changed         bool `json:"changed"`
	AlreadyAssigned bool `json:"alreadyAssigned,omitempty"`
	Partial         bool `json:"partial,omitempty"`
}

// --- Service Interface ---

// RelationshipService is the only writer of the coach-athlete and
// athlete-regimen link fields outside of ReconcileService repairs. Every write
// is a set-add or set-remove on a single document, so repeated or concurrent
// calls converge. The Detach calls clear one side in bulk when the other
// side's document is being deleted.
type RelationshipService interface {
	LinkCoachAthlete(ctx context.Context, athleteID, coachID primitive.ObjectID) (*LinkResult, error)
	UnlinkCoachAthlete(ctx context.Context, athleteID, coachID primitive.ObjectID) (*LinkResult, error)
	SetPrimaryCoach(ctx context.Context, athleteID, coachID primitive.ObjectID) error

	AssignRegimenToAthlete(ctx context.Context, regimenRef string, athleteID, requestingCoachID primitive.ObjectID) (*AssignResult, error)
	UnassignRegimenFromAthlete(ctx context.Context, regimenRef string, athleteID, requestingCoachID primitive.ObjectID) (*AssignResult, error)

	DetachRegimen(ctx context.Context, regimenID primitive.ObjectID) (int64, error)
	DetachAthleteFromRegimens(ctx context.Context, athleteID primitive.ObjectID) (int64, error)
}

// --- Service Implementation ---

type relationshipService struct {
	userRepo    repository.UserRepository
	regimenRepo repository.RegimenRepository
	log         *zap.Logger
}

// NewRelationshipService creates a new instance of relationshipService.
func NewRelationshipService(userRepo repository.UserRepository, regimenRepo repository.RegimenRepository, log *zap.Logger) RelationshipService {
	return &relationshipService{
		userRepo:    userRepo,
		regimenRepo: regimenRepo,
		log:         log,
	}
}

// getUserWithRole loads id and checks its role. A missing user and a user of
// another role both yield notFound.
func (s *relationshipService) getUserWithRole(ctx context.Context, id primitive.ObjectID, role domain.Role, notFound error) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, notFound
		}
		return nil, Internal("load user", err)
	}
	if user.Role != role {
		return nil, notFound
	}
	return user, nil
}

func (s *relationshipService) loadPair(ctx context.Context, athleteID, coachID primitive.ObjectID) (*domain.User, *domain.User, error) {
	if athleteID.IsZero() || coachID.IsZero() {
		return nil, nil, InvalidInput("athlete and coach ids are required")
	}
	athlete, err := s.getUserWithRole(ctx, athleteID, domain.RoleAthlete, ErrAthleteNotFound)
	if err != nil {
		return nil, nil, err
	}
	coach, err := s.getUserWithRole(ctx, coachID, domain.RoleCoach, ErrCoachNotFound)
	if err != nil {
		return nil, nil, err
	}
	return athlete, coach, nil
}

// LinkCoachAthlete adds the symmetric link and sets the primary coach when the
// athlete has none.
func (s *relationshipService) LinkCoachAthlete(ctx context.Context, athleteID, coachID primitive.ObjectID) (*LinkResult, error) {
	const op = "link"

	// 1. Both users must exist with the expected roles
	athlete, coach, err := s.loadPair(ctx, athleteID, coachID)
	if err != nil {
		return nil, err
	}

	// 2. Work out which sides are missing
	athleteHas := athlete.HasCoach(coachID)
	coachHas := coach.HasAthlete(athleteID)
	primary := primaryAfterLink(athlete, coachID)

	if athleteHas && coachHas && primary == nil {
		metrics.RelationshipWrites.WithLabelValues(op, "noop").Inc()
		return &LinkResult{}, nil
	}

	// 3. Write the missing sides together
	var athleteWrite, coachWrite func(context.Context) error
	if !athleteHas || primary != nil {
		link := repository.CoachLink{AthleteID: athleteID, CoachID: coachID, Primary: primary}
		athleteWrite = func(ctx context.Context) error { return s.userRepo.AddCoachToAthlete(ctx, link) }
	}
	if !coachHas {
		coachWrite = func(ctx context.Context) error { return s.userRepo.AddAthleteToCoach(ctx, coachID, athleteID) }
	}

	partial, err := s.writeBoth(ctx, op, athleteWrite, coachWrite,
		zap.String("athleteId", athleteID.Hex()), zap.String("coachId", coachID.Hex()))
	if err != nil {
		return nil, err
	}
	return &LinkResult{Changed: true, Partial: partial}, nil
}

// primaryAfterLink returns the primary coach to write after linking coachID,
// or nil when the athlete's primary fields are already consistent.
func primaryAfterLink(athlete *domain.User, coachID primitive.ObjectID) *primitive.ObjectID {
	coaches := domain.AddID(append([]primitive.ObjectID(nil), athlete.Coaches...), coachID)
	current := athlete.PrimaryCoachID
	if current == nil || !domain.ContainsID(coaches, *current) {
		return &coachID
	}
	if athlete.CoachID == nil || *athlete.CoachID != *current {
		// Legacy mirror drifted
		p := *current
		return &p
	}
	return nil
}

// UnlinkCoachAthlete removes the symmetric link. When the removed coach was the
// primary, the first remaining coach takes over, or the primary fields are
// cleared if none remain.
func (s *relationshipService) UnlinkCoachAthlete(ctx context.Context, athleteID, coachID primitive.ObjectID) (*LinkResult, error) {
	const op = "unlink"

	athlete, coach, err := s.loadPair(ctx, athleteID, coachID)
	if err != nil {
		return nil, err
	}

	athleteHas := athlete.HasCoach(coachID)
	coachHas := coach.HasAthlete(athleteID)
	wasPrimary := (athlete.PrimaryCoachID != nil && *athlete.PrimaryCoachID == coachID) ||
		(athlete.CoachID != nil && *athlete.CoachID == coachID)

	if !athleteHas && !coachHas && !wasPrimary {
		metrics.RelationshipWrites.WithLabelValues(op, "noop").Inc()
		return &LinkResult{}, nil
	}

	link := repository.CoachLink{AthleteID: athleteID, CoachID: coachID}
	remaining := domain.RemoveID(athlete.Coaches, coachID)
	switch {
	case len(remaining) == 0:
		link.ClearPrimary = true
	case wasPrimary:
		next := remaining[0]
		link.Primary = &next
	}

	var athleteWrite, coachWrite func(context.Context) error
	if athleteHas || wasPrimary || (link.ClearPrimary && athlete.PrimaryCoachID != nil) {
		athleteWrite = func(ctx context.Context) error { return s.userRepo.RemoveCoachFromAthlete(ctx, link) }
	}
	if coachHas {
		coachWrite = func(ctx context.Context) error { return s.userRepo.RemoveAthleteFromCoach(ctx, coachID, athleteID) }
	}

	partial, err := s.writeBoth(ctx, op, athleteWrite, coachWrite,
		zap.String("athleteId", athleteID.Hex()), zap.String("coachId", coachID.Hex()))
	if err != nil {
		return nil, err
	}
	return &LinkResult{Changed: true, Partial: partial}, nil
}

// SetPrimaryCoach makes an already linked coach the athlete's primary coach.
func (s *relationshipService) SetPrimaryCoach(ctx context.Context, athleteID, coachID primitive.ObjectID) error {
	athlete, _, err := s.loadPair(ctx, athleteID, coachID)
	if err != nil {
		return err
	}
	if !athlete.HasCoach(coachID) {
		return ErrNotLinked
	}
	if err := s.userRepo.SetPrimaryCoach(ctx, athleteID, &coachID); err != nil {
		return Internal("set primary coach", err)
	}
	metrics.RelationshipWrites.WithLabelValues("set_primary", "changed").Inc()
	return nil
}

// loadRegimenForCoach resolves ref and checks that requestingCoachID owns it.
func (s *relationshipService) loadRegimenForCoach(ctx context.Context, ref string, requestingCoachID primitive.ObjectID) (*domain.Regimen, error) {
	if ref == "" {
		return nil, InvalidInput("regimen id is required")
	}
	regimen, err := s.regimenRepo.GetByRef(ctx, ref)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRegimenNotFound
		}
		return nil, Internal("load regimen", err)
	}
	if regimen.CreatedBy != requestingCoachID {
		return nil, ErrRegimenAccessDenied
	}
	return regimen, nil
}

// AssignRegimenToAthlete assigns an owned regimen to an athlete the coach is linked to.
func (s *relationshipService) AssignRegimenToAthlete(ctx context.Context, regimenRef string, athleteID, requestingCoachID primitive.ObjectID) (*AssignResult, error) {
	const op = "assign"

	// 1. Ownership check comes before anything else is looked at
	regimen, err := s.loadRegimenForCoach(ctx, regimenRef, requestingCoachID)
	if err != nil {
		return nil, err
	}

	// 2. The athlete must exist and be coached by the requester
	athlete, err := s.getUserWithRole(ctx, athleteID, domain.RoleAthlete, ErrAthleteNotFound)
	if err != nil {
		return nil, err
	}
	if !athlete.HasCoach(requestingCoachID) {
		return nil, ErrNotLinked
	}

	// 3. Idempotency
	regimenHas := regimen.IsAssignedTo(athleteID)
	athleteHas := athlete.HasRegimen(regimen.ID)
	if regimenHas && athleteHas {
		metrics.RelationshipWrites.WithLabelValues(op, "noop").Inc()
		return &AssignResult{AlreadyAssigned: true}, nil
	}

	var regimenWrite, athleteWrite func(context.Context) error
	if !regimenHas {
		regimenWrite = func(ctx context.Context) error { return s.regimenRepo.AddAssignee(ctx, regimen.ID, athleteID) }
	}
	if !athleteHas {
		athleteWrite = func(ctx context.Context) error { return s.userRepo.AddRegimenToAthlete(ctx, athleteID, regimen.ID) }
	}

	partial, err := s.writeBoth(ctx, op, regimenWrite, athleteWrite,
		zap.String("regimenId", regimen.ID.Hex()), zap.String("athleteId", athleteID.Hex()))
	if err != nil {
		return nil, err
	}
	return &AssignResult{Changed: true, Partial: partial}, nil
}

// UnassignRegimenFromAthlete removes the assignment from both sides. The
// athlete does not need to still be linked to the coach.
func (s *relationshipService) UnassignRegimenFromAthlete(ctx context.Context, regimenRef string, athleteID, requestingCoachID primitive.ObjectID) (*AssignResult, error) {
	const op = "unassign"

	regimen, err := s.loadRegimenForCoach(ctx, regimenRef, requestingCoachID)
	if err != nil {
		return nil, err
	}
	athlete, err := s.getUserWithRole(ctx, athleteID, domain.RoleAthlete, ErrAthleteNotFound)
	if err != nil {
		return nil, err
	}

	regimenHas := regimen.IsAssignedTo(athleteID)
	athleteHas := athlete.HasRegimen(regimen.ID)
	if !regimenHas && !athleteHas {
		metrics.RelationshipWrites.WithLabelValues(op, "noop").Inc()
		return &AssignResult{}, nil
	}

	var regimenWrite, athleteWrite func(context.Context) error
	if regimenHas {
		regimenWrite = func(ctx context.Context) error { return s.regimenRepo.RemoveAssignee(ctx, regimen.ID, athleteID) }
	}
	if athleteHas {
		athleteWrite = func(ctx context.Context) error { return s.userRepo.RemoveRegimenFromAthlete(ctx, athleteID, regimen.ID) }
	}

	partial, err := s.writeBoth(ctx, op, regimenWrite, athleteWrite,
		zap.String("regimenId", regimen.ID.Hex()), zap.String("athleteId", athleteID.Hex()))
	if err != nil {
		return nil, err
	}
	return &AssignResult{Changed: true, Partial: partial}, nil
}

// DetachRegimen pulls regimenID from every athlete's regimen list and returns
// the number of athletes updated. The regimen document itself is untouched.
func (s *relationshipService) DetachRegimen(ctx context.Context, regimenID primitive.ObjectID) (int64, error) {
	const op = "detach_regimen"

	n, err := s.userRepo.RemoveRegimenFromAllAthletes(ctx, regimenID)
	if err != nil {
		metrics.RelationshipWrites.WithLabelValues(op, "failed").Inc()
		return 0, Internal("unassign regimen from athletes", err)
	}
	metrics.RelationshipWrites.WithLabelValues(op, detachOutcome(n)).Inc()
	return n, nil
}

// DetachAthleteFromRegimens pulls athleteID from every regimen's assignee set
// and returns the number of regimens updated.
func (s *relationshipService) DetachAthleteFromRegimens(ctx context.Context, athleteID primitive.ObjectID) (int64, error) {
	const op = "detach_athlete"

	n, err := s.regimenRepo.RemoveAssigneeFromAll(ctx, athleteID)
	if err != nil {
		metrics.RelationshipWrites.WithLabelValues(op, "failed").Inc()
		return 0, Internal("unassign regimens", err)
	}
	metrics.RelationshipWrites.WithLabelValues(op, detachOutcome(n)).Inc()
	return n, nil
}

func detachOutcome(n int64) string {
	if n == 0 {
		return "noop"
	}
	return "changed"
}

// writeBoth issues up to two single-document writes concurrently and waits for
// both. A nil write is skipped. If every attempted write fails the operation
// fails; if only one of two fails the result is partial and is not retried.
func (s *relationshipService) writeBoth(ctx context.Context, op string, first, second func(context.Context) error, fields ...zap.Field) (bool, error) {
	var firstErr, secondErr error
	var g errgroup.Group
	if first != nil {
		g.Go(func() error {
			firstErr = first(ctx)
			return firstErr
		})
	}
	if second != nil {
		g.Go(func() error {
			secondErr = second(ctx)
			return secondErr
		})
	}
	_ = g.Wait()

	attempted := 0
	failed := 0
	for _, w := range []struct {
		fn  func(context.Context) error
		err error
	}{{first, firstErr}, {second, secondErr}} {
		if w.fn == nil {
			continue
		}
		attempted++
		if w.err != nil {
			failed++
		}
	}

	switch {
	case failed == 0:
		metrics.RelationshipWrites.WithLabelValues(op, "changed").Inc()
		return false, nil
	case failed == attempted:
		metrics.RelationshipWrites.WithLabelValues(op, "failed").Inc()
		cause := firstErr
		if cause == nil {
			cause = secondErr
		}
		s.log.Error("relationship write failed", append(fields, zap.String("operation", op), zap.Error(cause))...)
		return false, &Error{Kind: KindInternal, Message: ErrRelationshipSave.Message, Err: errors.Join(firstErr, secondErr)}
	default:
		metrics.RelationshipWrites.WithLabelValues(op, "partial").Inc()
		metrics.PartialWrites.WithLabelValues(op).Inc()
		s.log.Warn("relationship left asymmetric, reconciliation will repair it",
			append(fields, zap.String("operation", op), zap.NamedError("firstErr", firstErr), zap.NamedError("secondErr", secondErr))...)
		return true, nil
	}
}

// FilterSharedWith removes the owner, zero ids and duplicates from a
// sharedWith list. An athlete can never share a log with themselves.
func FilterSharedWith(ownerID primitive.ObjectID, ids []primitive.ObjectID) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if id.IsZero() || id == ownerID {
			continue
		}
		out = domain.AddID(out, id)
	}
	return out
}
