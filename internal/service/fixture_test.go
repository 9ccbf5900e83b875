package service

import (
	"coachshare/backend/internal/domain"
	"coachshare/backend/internal/repository"
	"coachshare/backend/internal/repository/memory"
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// fixture wires every service against one in-memory store.
type fixture struct {
	store         *memory.Store
	users         repository.UserRepository
	regimens      repository.RegimenRepository
	logs          repository.WorkoutLogRepository
	notifications repository.NotificationRepository

	rel     RelationshipService
	notify  NotificationService
	regimen RegimenService
	workout WorkoutLogService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{
		store:         store,
		users:         store.Users(),
		regimens:      store.Regimens(),
		logs:          store.WorkoutLogs(),
		notifications: store.Notifications(),
	}
	log := zap.NewNop()
	f.rel = NewRelationshipService(f.users, f.regimens, log)
	f.notify = NewNotificationService(f.notifications, nil, log)
	f.regimen = NewRegimenService(f.regimens, f.logs, f.rel, f.notify, log)
	f.workout = NewWorkoutLogService(f.logs, f.regimens, f.users, f.notify, log)
	return f
}

func (f *fixture) addUser(t *testing.T, name, email string, role domain.Role) primitive.ObjectID {
	t.Helper()
	id, err := f.users.Create(context.Background(), &domain.User{Name: name, Email: email, Role: role})
	require.NoError(t, err)
	return id
}

func (f *fixture) user(t *testing.T, id primitive.ObjectID) *domain.User {
	t.Helper()
	u, err := f.users.GetByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (f *fixture) regimenByID(t *testing.T, id primitive.ObjectID) *domain.Regimen {
	t.Helper()
	r, err := f.regimens.GetByID(context.Background(), id)
	require.NoError(t, err)
	return r
}

// link writes a coach-athlete link through the relationship service.
func (f *fixture) link(t *testing.T, athleteID, coachID primitive.ObjectID) {
	t.Helper()
	_, err := f.rel.LinkCoachAthlete(context.Background(), athleteID, coachID)
	require.NoError(t, err)
}

// newRegimen creates a regimen owned by coachID with a single day "d1".
func (f *fixture) newRegimen(t *testing.T, coachID primitive.ObjectID, name string) *domain.Regimen {
	t.Helper()
	r, err := f.regimen.Create(context.Background(), coachID, RegimenInput{
		Name: name,
		Days: []domain.RegimenDay{{ID: "d1", Title: "Day 1"}},
	})
	require.NoError(t, err)
	return r
}

func (f *fixture) assign(t *testing.T, r *domain.Regimen, athleteID primitive.ObjectID) {
	t.Helper()
	_, err := f.rel.AssignRegimenToAthlete(context.Background(), r.RegimenID, athleteID, r.CreatedBy)
	require.NoError(t, err)
}

// flakyUsers fails selected writes of an underlying user repository.
type flakyUsers struct {
	repository.UserRepository
	failAddAthleteToCoach   bool
	failAddCoachToAthlete   bool
	failAddRegimenToAthlete bool
	failBulkRegimenRemoval  bool
}

var errStoreDown = repository.RepositoryError("store unavailable")

func (f *flakyUsers) AddAthleteToCoach(ctx context.Context, coachID, athleteID primitive.ObjectID) error {
	if f.failAddAthleteToCoach {
		return errStoreDown
	}
	return f.UserRepository.AddAthleteToCoach(ctx, coachID, athleteID)
}

func (f *flakyUsers) AddCoachToAthlete(ctx context.Context, link repository.CoachLink) error {
	if f.failAddCoachToAthlete {
		return errStoreDown
	}
	return f.UserRepository.AddCoachToAthlete(ctx, link)
}

func (f *flakyUsers) RemoveRegimenFromAllAthletes(ctx context.Context, regimenID primitive.ObjectID) (int64, error) {
	if f.failBulkRegimenRemoval {
		return 0, errStoreDown
	}
	return f.UserRepository.RemoveRegimenFromAllAthletes(ctx, regimenID)
}

func (f *flakyUsers) AddRegimenToAthlete(ctx context.Context, athleteID, regimenID primitive.ObjectID) error {
	if f.failAddRegimenToAthlete {
		return errStoreDown
	}
	return f.UserRepository.AddRegimenToAthlete(ctx, athleteID, regimenID)
}
