package service

import (
	"coachshare/backend/internal/domain"
	"coachshare/backend/internal/metrics"
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// fakeArchive records uploaded reports in memory.
type fakeArchive struct {
	objects map[string][]byte
	putErr  error
}

func (a *fakeArchive) PutObject(_ context.Context, key, _ string, body []byte) error {
	if a.putErr != nil {
		return a.putErr
	}
	if a.objects == nil {
		a.objects = map[string][]byte{}
	}
	a.objects[key] = body
	return nil
}

func (a *fakeArchive) GeneratePresignedDownloadURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://reports.example.com/" + key, nil
}

func newReconciler(f *fixture, archive *fakeArchive) ReconcileService {
	var svc ReconcileService
	if archive != nil {
		svc = NewReconcileService(f.users, f.regimens, f.logs, archive, zap.NewNop())
	} else {
		svc = NewReconcileService(f.users, f.regimens, f.logs, nil, zap.NewNop())
	}
	svc.(*reconcileService).now = func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return svc
}

// rawRegimen inserts a regimen without touching any relationship.
func (f *fixture) rawRegimen(t *testing.T, coachID primitive.ObjectID, assignedTo ...primitive.ObjectID) *domain.Regimen {
	t.Helper()
	r := &domain.Regimen{
		RegimenID:  uuid.NewString(),
		Name:       "Legacy",
		CreatedBy:  coachID,
		AssignedTo: assignedTo,
	}
	_, err := f.regimens.Create(context.Background(), r)
	require.NoError(t, err)
	return r
}

func (f *fixture) rawLog(t *testing.T, athleteID primitive.ObjectID, regimenRef string) primitive.ObjectID {
	t.Helper()
	id, err := f.logs.Create(context.Background(), &domain.WorkoutLog{
		AthleteID: athleteID,
		RegimenID: regimenRef,
		DayID:     "d1",
		Completed: true,
	})
	require.NoError(t, err)
	return id
}

func TestReconcile_RepairRelationships(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	athlete := f.addUser(t, "Ann", "a@x.com", domain.RoleAthlete)
	coach := f.addUser(t, "Cal", "c@x.com", domain.RoleCoach)
	r := f.rawRegimen(t, coach)

	// Two logs for the same broken pair, one by legacy hex id.
	f.rawLog(t, athlete, r.RegimenID)
	f.rawLog(t, athlete, r.ID.Hex())
	// Logs that cannot be repaired.
	f.rawLog(t, athlete, uuid.NewString())
	f.rawLog(t, primitive.NewObjectID(), r.RegimenID)

	svc := newReconciler(f, nil)

	// 1. Dry run counts without writing
	dry, err := svc.RepairRelationships(ctx, true)
	require.NoError(t, err)
	assert.True(t, dry.DryRun)
	assert.Equal(t, 4, dry.LogsScanned)
	assert.Equal(t, 1, dry.LogsNeedingFix)
	assert.Equal(t, 1, dry.CoachAthletesAdded)
	assert.Equal(t, 1, dry.AthleteCoachesAdded)
	assert.Equal(t, 1, dry.RegimenAssigneesAdded)
	assert.Equal(t, 1, dry.AthleteRegimensAdded)
	assert.Equal(t, 1, dry.SkippedMissingRegimen)
	assert.Equal(t, 1, dry.SkippedMissingAthlete)
	assert.Empty(t, f.user(t, coach).Athletes)

	// 2. Real run repairs every side
	report, err := svc.RepairRelationships(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.LogsNeedingFix)
	assert.Zero(t, report.WriteErrors)
	assert.Nil(t, report.Archive)

	a := f.user(t, athlete)
	assert.Equal(t, []primitive.ObjectID{coach}, a.Coaches)
	require.NotNil(t, a.PrimaryCoachID)
	assert.Equal(t, coach, *a.PrimaryCoachID)
	assert.Equal(t, a.PrimaryCoachID, a.CoachID)
	assert.Equal(t, []primitive.ObjectID{r.ID}, a.Regimens)
	assert.Equal(t, []primitive.ObjectID{athlete}, f.user(t, coach).Athletes)
	assert.Equal(t, []primitive.ObjectID{athlete}, f.regimenByID(t, r.ID).AssignedTo)

	// 3. Nothing left to do
	again, err := svc.RepairRelationships(ctx, false)
	require.NoError(t, err)
	assert.Zero(t, again.LogsNeedingFix)
}

func TestReconcile_RepairKeepsExistingPrimary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	athlete := f.addUser(t, "Ann", "a@x.com", domain.RoleAthlete)
	first := f.addUser(t, "Cal", "c@x.com", domain.RoleCoach)
	second := f.addUser(t, "Dee", "d@x.com", domain.RoleCoach)
	f.link(t, athlete, first)

	r := f.rawRegimen(t, second)
	f.rawLog(t, athlete, r.RegimenID)

	_, err := newReconciler(f, nil).RepairRelationships(ctx, false)
	require.NoError(t, err)

	a := f.user(t, athlete)
	assert.ElementsMatch(t, []primitive.ObjectID{first, second}, a.Coaches)
	assert.Equal(t, first, *a.PrimaryCoachID)
}

func TestReconcile_RepairSkipsMissingCoach(t *testing.T) {
	f := newFixture(t)
	athlete := f.addUser(t, "Ann", "a@x.com", domain.RoleAthlete)
	r := f.rawRegimen(t, primitive.NewObjectID())
	f.rawLog(t, athlete, r.RegimenID)

	report, err := newReconciler(f, nil).RepairRelationships(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SkippedMissingCoach)
	assert.Zero(t, report.LogsNeedingFix)
}

func TestReconcile_RepairCountsWriteErrors(t *testing.T) {
	f := newFixture(t)
	athlete := f.addUser(t, "Ann", "a@x.com", domain.RoleAthlete)
	coach := f.addUser(t, "Cal", "c@x.com", domain.RoleCoach)
	r := f.rawRegimen(t, coach)
	f.rawLog(t, athlete, r.RegimenID)

	flaky := &flakyUsers{UserRepository: f.users, failAddAthleteToCoach: true}
	svc := NewReconcileService(flaky, f.regimens, f.logs, nil, zap.NewNop())

	report, err := svc.RepairRelationships(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.WriteErrors)
	assert.Zero(t, report.CoachAthletesAdded)
	// The other sides are still repaired.
	assert.Equal(t, 1, report.AthleteCoachesAdded)
	assert.Equal(t, []primitive.ObjectID{coach}, f.user(t, athlete).Coaches)
}

func TestReconcile_Sweep(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ghostAthlete := primitive.NewObjectID()
	ghostCoach := primitive.NewObjectID()
	ghostRegimen := primitive.NewObjectID()

	mk := func(u *domain.User) primitive.ObjectID {
		id, err := f.users.Create(ctx, u)
		require.NoError(t, err)
		return id
	}
	a1 := mk(&domain.User{Name: "A1", Email: "a1@x.com", Role: domain.RoleAthlete, Regimens: []primitive.ObjectID{ghostRegimen}})
	a2 := mk(&domain.User{Name: "A2", Email: "a2@x.com", Role: domain.RoleAthlete,
		Coaches: []primitive.ObjectID{ghostCoach}, PrimaryCoachID: &ghostCoach, CoachID: &ghostCoach})
	c1 := mk(&domain.User{Name: "C1", Email: "c1@x.com", Role: domain.RoleCoach, Athletes: []primitive.ObjectID{a1, ghostAthlete}})
	a3 := mk(&domain.User{Name: "A3", Email: "a3@x.com", Role: domain.RoleAthlete,
		Coaches: []primitive.ObjectID{c1}, PrimaryCoachID: &c1})
	r := f.rawRegimen(t, c1, a1, ghostAthlete)

	svc := newReconciler(f, nil)

	report, err := svc.Sweep(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 4, report.UsersScanned)
	assert.Equal(t, 1, report.RegimensScanned)
	assert.Equal(t, 1, report.AthleteCoachesAdded)
	assert.Equal(t, 1, report.CoachAthletesAdded)
	assert.Equal(t, 2, report.PrimaryCoachFixed)
	assert.Equal(t, 1, report.LegacyCoachFixed)
	assert.Equal(t, 3, report.DanglingUserRefsRemoved)
	assert.Equal(t, 1, report.DanglingRegimenRefsRemoved)
	assert.Equal(t, 1, report.AthleteRegimensAdded)
	assert.Zero(t, report.RegimenAssigneesAdded)
	assert.Zero(t, report.WriteErrors)

	coach := f.user(t, c1)
	assert.ElementsMatch(t, []primitive.ObjectID{a1, a3}, coach.Athletes)

	athlete1 := f.user(t, a1)
	assert.Equal(t, []primitive.ObjectID{c1}, athlete1.Coaches)
	assert.Equal(t, c1, *athlete1.PrimaryCoachID)
	assert.Equal(t, []primitive.ObjectID{r.ID}, athlete1.Regimens)

	athlete2 := f.user(t, a2)
	assert.Empty(t, athlete2.Coaches)
	assert.Nil(t, athlete2.PrimaryCoachID)
	assert.Nil(t, athlete2.CoachID)

	athlete3 := f.user(t, a3)
	require.NotNil(t, athlete3.CoachID)
	assert.Equal(t, c1, *athlete3.CoachID)

	assert.Equal(t, []primitive.ObjectID{a1}, f.regimenByID(t, r.ID).AssignedTo)

	// A second sweep finds a consistent store.
	again, err := svc.Sweep(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, SweepReport{DryRun: false, UsersScanned: 4, RegimensScanned: 1}, *again)
}

func TestReconcile_SweepDryRunWritesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	athlete := f.addUser(t, "Ann", "a@x.com", domain.RoleAthlete)
	_, err := f.users.Create(ctx, &domain.User{Name: "Cal", Email: "c@x.com", Role: domain.RoleCoach, Athletes: []primitive.ObjectID{athlete}})
	require.NoError(t, err)

	report, err := newReconciler(f, nil).Sweep(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.AthleteCoachesAdded)
	assert.Equal(t, 1, report.PrimaryCoachFixed)
	assert.Empty(t, f.user(t, athlete).Coaches)
}

func TestReconcile_PurgeOrphans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	athlete := f.addUser(t, "Ann", "a@x.com", domain.RoleAthlete)
	coach := f.addUser(t, "Cal", "c@x.com", domain.RoleCoach)
	kept := f.rawRegimen(t, coach)

	keepByUUID := f.rawLog(t, athlete, kept.RegimenID)
	keepByHex := f.rawLog(t, athlete, kept.ID.Hex())
	goneUUID := uuid.NewString()
	goneHex := primitive.NewObjectID().Hex()
	f.rawLog(t, athlete, goneUUID)
	f.rawLog(t, athlete, goneHex)

	archive := &fakeArchive{}
	svc := newReconciler(f, archive)

	// 1. Dry run lists without deleting
	dry, err := svc.PurgeOrphans(ctx, true)
	require.NoError(t, err)
	want := []string{goneUUID, goneHex}
	sort.Strings(want)
	assert.Equal(t, want, dry.OrphanedRegimenIDs)
	assert.Equal(t, 4, dry.ReferencedRegimens)
	assert.Equal(t, 1, dry.ExistingRegimens)
	assert.Len(t, dry.Logs, 2)
	assert.Zero(t, dry.Deleted)
	all, err := f.logs.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	require.NotNil(t, dry.Archive)
	assert.Equal(t, "reports/orphans/20250601T120000Z.json", dry.Archive.Key)
	assert.Equal(t, "https://reports.example.com/reports/orphans/20250601T120000Z.json", dry.Archive.URL)
	assert.Contains(t, string(archive.objects[dry.Archive.Key]), goneUUID)

	// 2. Real run deletes exactly the orphans
	before := testutil.ToFloat64(metrics.OrphansPurged)
	report, err := svc.PurgeOrphans(ctx, false)
	require.NoError(t, err)
	assert.EqualValues(t, 2, report.Deleted)
	assert.Empty(t, report.Logs)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.OrphansPurged)-before, 1e-9)

	all, err = f.logs.ListAll(ctx)
	require.NoError(t, err)
	var ids []primitive.ObjectID
	for _, l := range all {
		ids = append(ids, l.ID)
	}
	assert.ElementsMatch(t, []primitive.ObjectID{keepByUUID, keepByHex}, ids)

	// 3. Clean store
	clean, err := svc.PurgeOrphans(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, clean.OrphanedRegimenIDs)
	assert.Zero(t, clean.Deleted)
}

func TestReconcile_PurgeAfterRegimenDelete(t *testing.T) {
	f := newWorkoutFixture(t)
	ctx := context.Background()
	_, err := f.workout.Create(ctx, f.athlete, WorkoutLogInput{RegimenID: f.regimen.RegimenID, DayID: "d1", Completed: true})
	require.NoError(t, err)

	// Removing the regimen from the store directly leaves its logs behind.
	require.NoError(t, f.regimens.Delete(ctx, f.regimen.ID))

	report, err := newReconciler(f.fixture, nil).PurgeOrphans(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, []string{f.regimen.RegimenID}, report.OrphanedRegimenIDs)
	assert.EqualValues(t, 1, report.Deleted)
}

func TestReconcile_ArchiveFailureDoesNotFailRun(t *testing.T) {
	f := newFixture(t)
	svc := newReconciler(f, &fakeArchive{putErr: errors.New("bucket gone")})

	report, err := svc.PurgeOrphans(context.Background(), true)
	require.NoError(t, err)
	assert.Nil(t, report.Archive)
}
