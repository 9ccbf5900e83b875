package service

import (
	"coachshare/backend/internal/domain"
	"coachshare/backend/internal/metrics"
	"coachshare/backend/internal/repository"
	"coachshare/backend/internal/storage"
	"context"
	"errors"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Report kinds, also used as the archive key prefix.
const (
	ReportRelationships = "relationships"
	ReportSweep         = "sweep"
	ReportOrphans       = "orphans"
)

// Archive locates a report stored in object storage.
type Archive struct {
	Key string `json:"key"`
	URL string `json:"url,omitempty"`
}

// RelationshipReport is the result of a per-log relationship repair run.
type RelationshipReport struct {
	DryRun         bool `json:"dryRun"`
	LogsScanned    int  `json:"logsScanned"`
	LogsNeedingFix int  `json:"logsNeedingFix"`

	CoachAthletesAdded    int `json:"coachAthletesAdded"`
	AthleteCoachesAdded   int `json:"athleteCoachesAdded"`
	RegimenAssigneesAdded int `json:"regimenAssigneesAdded"`
	AthleteRegimensAdded  int `json:"athleteRegimensAdded"`
	SkippedMissingRegimen int `json:"skippedMissingRegimen"`
	SkippedMissingAthlete int `json:"skippedMissingAthlete"`
	SkippedMissingCoach   int `json:"skippedMissingCoach"`
	WriteErrors           int `json:"writeErrors"`

	Archive *Archive `json:"archive,omitempty"`
}

// SweepReport is the result of a sweep over all users and regimens.
type SweepReport struct {
	DryRun          bool `json:"dryRun"`
	UsersScanned    int  `json:"usersScanned"`
	RegimensScanned int  `json:"regimensScanned"`

	CoachAthletesAdded         int `json:"coachAthletesAdded"`
	AthleteCoachesAdded        int `json:"athleteCoachesAdded"`
	RegimenAssigneesAdded      int `json:"regimenAssigneesAdded"`
	AthleteRegimensAdded       int `json:"athleteRegimensAdded"`
	PrimaryCoachFixed          int `json:"primaryCoachFixed"`
	LegacyCoachFixed           int `json:"legacyCoachFixed"`
	DanglingUserRefsRemoved    int `json:"danglingUserRefsRemoved"`
	DanglingRegimenRefsRemoved int `json:"danglingRegimenRefsRemoved"`
	RegimensWithoutOwner       int `json:"regimensWithoutOwner"`
	WriteErrors                int `json:"writeErrors"`

	Archive *Archive `json:"archive,omitempty"`
}

// OrphanReport is the result of an orphaned workout log purge.
type OrphanReport struct {
	DryRun             bool                `json:"dryRun"`
	ReferencedRegimens int                 `json:"referencedRegimens"`
	ExistingRegimens   int                 `json:"existingRegimens"`
	OrphanedRegimenIDs []string            `json:"orphanedRegimenIds"`
	Logs               []domain.WorkoutLog `json:"logs,omitempty"` // dry run only
	Deleted            int64               `json:"deleted"`

	Archive *Archive `json:"archive,omitempty"`
}

// --- Service Interface ---

// ReconcileService repairs relationship asymmetries left by partial writes or
// legacy data and purges workout logs whose regimen no longer exists. All
// repairs are additive set-inserts; dangling references are removed.
type ReconcileService interface {
	RepairRelationships(ctx context.Context, dryRun bool) (*RelationshipReport, error)
	Sweep(ctx context.Context, dryRun bool) (*SweepReport, error)
	PurgeOrphans(ctx context.Context, dryRun bool) (*OrphanReport, error)
}

// --- Service Implementation ---

type reconcileService struct {
	userRepo    repository.UserRepository
	regimenRepo repository.RegimenRepository
	logRepo     repository.WorkoutLogRepository
	archive     storage.FileStorage
	log         *zap.Logger
	now         func() time.Time
}

// NewReconcileService creates a new instance of reconcileService. archive may
// be nil, in which case reports are not stored.
func NewReconcileService(
	userRepo repository.UserRepository,
	regimenRepo repository.RegimenRepository,
	logRepo repository.WorkoutLogRepository,
	archive storage.FileStorage,
	log *zap.Logger,
) ReconcileService {
	return &reconcileService{
		userRepo:    userRepo,
		regimenRepo: regimenRepo,
		logRepo:     logRepo,
		archive:     archive,
		log:         log,
		now:         time.Now,
	}
}

// entityCache memoizes lookups during one run and is updated in place after
// each repair so later checks see the repaired state.
type entityCache struct {
	s        *reconcileService
	users    map[primitive.ObjectID]*domain.User
	regimens map[string]*domain.Regimen
	byID     map[primitive.ObjectID]*domain.Regimen
}

func (s *reconcileService) newCache() *entityCache {
	return &entityCache{
		s:        s,
		users:    map[primitive.ObjectID]*domain.User{},
		regimens: map[string]*domain.Regimen{},
		byID:     map[primitive.ObjectID]*domain.Regimen{},
	}
}

// user returns nil when the user does not exist or has another role.
func (c *entityCache) user(ctx context.Context, id primitive.ObjectID, role domain.Role) (*domain.User, error) {
	u, ok := c.users[id]
	if !ok {
		loaded, err := c.s.userRepo.GetByID(ctx, id)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		u = loaded
		c.users[id] = u
	}
	if u == nil || u.Role != role {
		return nil, nil
	}
	return u, nil
}

func (c *entityCache) regimen(ctx context.Context, ref string) (*domain.Regimen, error) {
	r, ok := c.regimens[ref]
	if !ok {
		loaded, err := c.s.regimenRepo.GetByRef(ctx, ref)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		r = loaded
		// Both refs of one regimen share a single cached copy.
		if r != nil {
			if seen, ok := c.byID[r.ID]; ok {
				r = seen
			} else {
				c.byID[r.ID] = r
			}
		}
		c.regimens[ref] = r
	}
	return r, nil
}

// apply runs write unless dryRun. It reports whether the repair should be
// counted and mirrored into the cache.
func (s *reconcileService) apply(ctx context.Context, dryRun bool, kind string, write func(context.Context) error, errCount *int, fields ...zap.Field) bool {
	if dryRun {
		return true
	}
	if err := write(ctx); err != nil {
		*errCount++
		s.log.Warn("reconcile write failed", append(fields, zap.String("repair", kind), zap.Error(err))...)
		return false
	}
	metrics.Repairs.WithLabelValues(kind).Inc()
	return true
}

// RepairRelationships walks every workout log and makes sure the log's
// athlete, the regimen and the regimen's coach are linked both ways.
func (s *reconcileService) RepairRelationships(ctx context.Context, dryRun bool) (*RelationshipReport, error) {
	logs, err := s.logRepo.ListAll(ctx)
	if err != nil {
		return nil, Internal("list workout logs", err)
	}

	report := &RelationshipReport{DryRun: dryRun, LogsScanned: len(logs)}
	cache := s.newCache()

	for _, wl := range logs {
		// 1. Resolve regimen and athlete
		regimen, err := cache.regimen(ctx, wl.RegimenID)
		if err != nil {
			return nil, Internal("load regimen", err)
		}
		if regimen == nil {
			report.SkippedMissingRegimen++
			continue
		}
		athlete, err := cache.user(ctx, wl.AthleteID, domain.RoleAthlete)
		if err != nil {
			return nil, Internal("load athlete", err)
		}
		if athlete == nil {
			report.SkippedMissingAthlete++
			continue
		}

		// 2. Resolve the owning coach
		coach, err := cache.user(ctx, regimen.CreatedBy, domain.RoleCoach)
		if err != nil {
			return nil, Internal("load coach", err)
		}
		if coach == nil {
			report.SkippedMissingCoach++
			continue
		}

		// 3. Repair each side independently
		fields := []zap.Field{zap.String("logId", wl.ID.Hex()), zap.String("athleteId", athlete.ID.Hex()), zap.String("coachId", coach.ID.Hex())}
		needsFix := false

		if !coach.HasAthlete(athlete.ID) {
			needsFix = true
			if s.apply(ctx, dryRun, "coach_athletes", func(ctx context.Context) error {
				return s.userRepo.AddAthleteToCoach(ctx, coach.ID, athlete.ID)
			}, &report.WriteErrors, fields...) {
				coach.Athletes = domain.AddID(coach.Athletes, athlete.ID)
				report.CoachAthletesAdded++
			}
		}
		if !athlete.HasCoach(coach.ID) {
			needsFix = true
			link := repository.CoachLink{AthleteID: athlete.ID, CoachID: coach.ID}
			if athlete.PrimaryCoachID == nil {
				link.Primary = &coach.ID
			}
			if s.apply(ctx, dryRun, "athlete_coaches", func(ctx context.Context) error {
				return s.userRepo.AddCoachToAthlete(ctx, link)
			}, &report.WriteErrors, fields...) {
				athlete.Coaches = domain.AddID(athlete.Coaches, coach.ID)
				if link.Primary != nil {
					athlete.PrimaryCoachID = link.Primary
					athlete.CoachID = link.Primary
				}
				report.AthleteCoachesAdded++
			}
		}
		if !regimen.IsAssignedTo(athlete.ID) {
			needsFix = true
			if s.apply(ctx, dryRun, "regimen_assignees", func(ctx context.Context) error {
				return s.regimenRepo.AddAssignee(ctx, regimen.ID, athlete.ID)
			}, &report.WriteErrors, fields...) {
				regimen.AssignedTo = domain.AddID(regimen.AssignedTo, athlete.ID)
				report.RegimenAssigneesAdded++
			}
		}
		if !athlete.HasRegimen(regimen.ID) {
			needsFix = true
			if s.apply(ctx, dryRun, "athlete_regimens", func(ctx context.Context) error {
				return s.userRepo.AddRegimenToAthlete(ctx, athlete.ID, regimen.ID)
			}, &report.WriteErrors, fields...) {
				athlete.Regimens = domain.AddID(athlete.Regimens, regimen.ID)
				report.AthleteRegimensAdded++
			}
		}

		// 4. Count
		if needsFix {
			report.LogsNeedingFix++
		}
	}

	s.log.Info("relationship repair finished",
		zap.Bool("dryRun", dryRun),
		zap.Int("logsScanned", report.LogsScanned),
		zap.Int("logsNeedingFix", report.LogsNeedingFix),
		zap.Int("writeErrors", report.WriteErrors))
	report.Archive = s.store(ctx, ReportRelationships, report)
	return report, nil
}

// Sweep checks every user and regimen for asymmetric links, a primary coach
// outside the coaches set, legacy coachId drift, and references to users or
// regimens that no longer exist.
func (s *reconcileService) Sweep(ctx context.Context, dryRun bool) (*SweepReport, error) {
	coaches, err := s.userRepo.ListByRole(ctx, domain.RoleCoach)
	if err != nil {
		return nil, Internal("list coaches", err)
	}
	athletes, err := s.userRepo.ListByRole(ctx, domain.RoleAthlete)
	if err != nil {
		return nil, Internal("list athletes", err)
	}
	regimens, err := s.regimenRepo.ListAll(ctx)
	if err != nil {
		return nil, Internal("list regimens", err)
	}

	report := &SweepReport{
		DryRun:          dryRun,
		UsersScanned:    len(coaches) + len(athletes),
		RegimensScanned: len(regimens),
	}

	coachByID := make(map[primitive.ObjectID]*domain.User, len(coaches))
	for i := range coaches {
		coachByID[coaches[i].ID] = &coaches[i]
	}
	athleteByID := make(map[primitive.ObjectID]*domain.User, len(athletes))
	for i := range athletes {
		athleteByID[athletes[i].ID] = &athletes[i]
	}
	regimenByID := make(map[primitive.ObjectID]*domain.Regimen, len(regimens))
	for i := range regimens {
		regimenByID[regimens[i].ID] = &regimens[i]
	}

	// 1. Coach side of coach links
	for i := range coaches {
		coach := &coaches[i]
		for _, athleteID := range append([]primitive.ObjectID(nil), coach.Athletes...) {
			fields := []zap.Field{zap.String("coachId", coach.ID.Hex()), zap.String("athleteId", athleteID.Hex())}
			athlete, ok := athleteByID[athleteID]
			if !ok {
				if s.apply(ctx, dryRun, "dangling_user_ref", func(ctx context.Context) error {
					return s.userRepo.RemoveAthleteFromCoach(ctx, coach.ID, athleteID)
				}, &report.WriteErrors, fields...) {
					coach.Athletes = domain.RemoveID(coach.Athletes, athleteID)
					report.DanglingUserRefsRemoved++
				}
				continue
			}
			if !athlete.HasCoach(coach.ID) {
				link := repository.CoachLink{AthleteID: athleteID, CoachID: coach.ID}
				if s.apply(ctx, dryRun, "athlete_coaches", func(ctx context.Context) error {
					return s.userRepo.AddCoachToAthlete(ctx, link)
				}, &report.WriteErrors, fields...) {
					athlete.Coaches = domain.AddID(athlete.Coaches, coach.ID)
					report.AthleteCoachesAdded++
				}
			}
		}
	}

	// 2. Athlete side: coach links, primary pointer and regimen links
	for i := range athletes {
		athlete := &athletes[i]
		for _, coachID := range append([]primitive.ObjectID(nil), athlete.Coaches...) {
			fields := []zap.Field{zap.String("athleteId", athlete.ID.Hex()), zap.String("coachId", coachID.Hex())}
			coach, ok := coachByID[coachID]
			if !ok {
				link := repository.CoachLink{AthleteID: athlete.ID, CoachID: coachID}
				if s.apply(ctx, dryRun, "dangling_user_ref", func(ctx context.Context) error {
					return s.userRepo.RemoveCoachFromAthlete(ctx, link)
				}, &report.WriteErrors, fields...) {
					athlete.Coaches = domain.RemoveID(athlete.Coaches, coachID)
					report.DanglingUserRefsRemoved++
				}
				continue
			}
			if !coach.HasAthlete(athlete.ID) {
				if s.apply(ctx, dryRun, "coach_athletes", func(ctx context.Context) error {
					return s.userRepo.AddAthleteToCoach(ctx, coachID, athlete.ID)
				}, &report.WriteErrors, fields...) {
					coach.Athletes = domain.AddID(coach.Athletes, athlete.ID)
					report.CoachAthletesAdded++
				}
			}
		}

		s.sweepPrimary(ctx, dryRun, athlete, report)

		for _, regimenID := range append([]primitive.ObjectID(nil), athlete.Regimens...) {
			fields := []zap.Field{zap.String("athleteId", athlete.ID.Hex()), zap.String("regimenId", regimenID.Hex())}
			regimen, ok := regimenByID[regimenID]
			if !ok {
				if s.apply(ctx, dryRun, "dangling_regimen_ref", func(ctx context.Context) error {
					return s.userRepo.RemoveRegimenFromAthlete(ctx, athlete.ID, regimenID)
				}, &report.WriteErrors, fields...) {
					athlete.Regimens = domain.RemoveID(athlete.Regimens, regimenID)
					report.DanglingRegimenRefsRemoved++
				}
				continue
			}
			if !regimen.IsAssignedTo(athlete.ID) {
				if s.apply(ctx, dryRun, "regimen_assignees", func(ctx context.Context) error {
					return s.regimenRepo.AddAssignee(ctx, regimenID, athlete.ID)
				}, &report.WriteErrors, fields...) {
					regimen.AssignedTo = domain.AddID(regimen.AssignedTo, athlete.ID)
					report.RegimenAssigneesAdded++
				}
			}
		}
	}

	// 3. Regimen side of assignments
	for i := range regimens {
		regimen := &regimens[i]
		if _, ok := coachByID[regimen.CreatedBy]; !ok {
			report.RegimensWithoutOwner++
		}
		for _, athleteID := range append([]primitive.ObjectID(nil), regimen.AssignedTo...) {
			fields := []zap.Field{zap.String("regimenId", regimen.ID.Hex()), zap.String("athleteId", athleteID.Hex())}
			athlete, ok := athleteByID[athleteID]
			if !ok {
				if s.apply(ctx, dryRun, "dangling_user_ref", func(ctx context.Context) error {
					return s.regimenRepo.RemoveAssignee(ctx, regimen.ID, athleteID)
				}, &report.WriteErrors, fields...) {
					regimen.AssignedTo = domain.RemoveID(regimen.AssignedTo, athleteID)
					report.DanglingUserRefsRemoved++
				}
				continue
			}
			if !athlete.HasRegimen(regimen.ID) {
				if s.apply(ctx, dryRun, "athlete_regimens", func(ctx context.Context) error {
					return s.userRepo.AddRegimenToAthlete(ctx, athleteID, regimen.ID)
				}, &report.WriteErrors, fields...) {
					athlete.Regimens = domain.AddID(athlete.Regimens, regimen.ID)
					report.AthleteRegimensAdded++
				}
			}
		}
	}

	s.log.Info("sweep finished",
		zap.Bool("dryRun", dryRun),
		zap.Int("usersScanned", report.UsersScanned),
		zap.Int("regimensScanned", report.RegimensScanned),
		zap.Int("writeErrors", report.WriteErrors))
	report.Archive = s.store(ctx, ReportSweep, report)
	return report, nil
}

// sweepPrimary keeps the primary pointer inside the coaches set and the legacy
// coachId equal to it.
func (s *reconcileService) sweepPrimary(ctx context.Context, dryRun bool, athlete *domain.User, report *SweepReport) {
	var want *primitive.ObjectID
	kind := ""
	switch {
	case len(athlete.Coaches) == 0:
		if athlete.PrimaryCoachID == nil && athlete.CoachID == nil {
			return
		}
		kind = "primary_coach"
	case athlete.PrimaryCoachID == nil || !athlete.HasCoach(*athlete.PrimaryCoachID):
		first := athlete.Coaches[0]
		want = &first
		kind = "primary_coach"
	case athlete.CoachID == nil || *athlete.CoachID != *athlete.PrimaryCoachID:
		p := *athlete.PrimaryCoachID
		want = &p
		kind = "legacy_coach"
	default:
		return
	}

	if !s.apply(ctx, dryRun, kind, func(ctx context.Context) error {
		return s.userRepo.SetPrimaryCoach(ctx, athlete.ID, want)
	}, &report.WriteErrors, zap.String("athleteId", athlete.ID.Hex())) {
		return
	}
	athlete.PrimaryCoachID = want
	athlete.CoachID = want
	if kind == "legacy_coach" {
		report.LegacyCoachFixed++
	} else {
		report.PrimaryCoachFixed++
	}
}

// PurgeOrphans deletes, or lists when dryRun, every workout log whose
// regimenId matches no existing regimen by either id.
func (s *reconcileService) PurgeOrphans(ctx context.Context, dryRun bool) (*OrphanReport, error) {
	// 1. Distinct referenced regimen ids
	referenced, err := s.logRepo.DistinctRegimenRefs(ctx)
	if err != nil {
		return nil, Internal("collect referenced regimen ids", err)
	}

	// 2. Ids of every regimen that exists
	regimens, err := s.regimenRepo.ListAll(ctx)
	if err != nil {
		return nil, Internal("list regimens", err)
	}
	existing := make(map[string]struct{}, len(regimens)*2)
	for i := range regimens {
		for _, ref := range regimens[i].RefIDs() {
			existing[ref] = struct{}{}
		}
	}

	// 3. Referenced minus existing
	orphaned := []string{}
	for _, ref := range referenced {
		if _, ok := existing[ref]; !ok && ref != "" {
			orphaned = append(orphaned, ref)
		}
	}
	sort.Strings(orphaned)

	report := &OrphanReport{
		DryRun:             dryRun,
		ReferencedRegimens: len(referenced),
		ExistingRegimens:   len(regimens),
		OrphanedRegimenIDs: orphaned,
	}

	// 4. List or delete
	if len(orphaned) > 0 {
		if dryRun {
			logs, err := s.logRepo.ListByRegimenRefs(ctx, orphaned)
			if err != nil {
				return nil, Internal("list orphaned workout logs", err)
			}
			report.Logs = logs
		} else {
			deleted, err := s.logRepo.DeleteByRegimenRefs(ctx, orphaned)
			if err != nil {
				return nil, Internal("delete orphaned workout logs", err)
			}
			report.Deleted = deleted
			metrics.OrphansPurged.Add(float64(deleted))
		}
	}

	s.log.Info("orphan purge finished",
		zap.Bool("dryRun", dryRun),
		zap.Int("orphanedRegimens", len(orphaned)),
		zap.Int("listed", len(report.Logs)),
		zap.Int64("deleted", report.Deleted))
	report.Archive = s.store(ctx, ReportOrphans, report)
	return report, nil
}

// store archives report as JSON when object storage is configured. Failures
// are logged; the run itself already succeeded.
func (s *reconcileService) store(ctx context.Context, kind string, report any) *Archive {
	if s.archive == nil {
		return nil
	}
	body, err := sonic.Marshal(report)
	if err != nil {
		s.log.Warn("encode reconcile report", zap.String("kind", kind), zap.Error(err))
		return nil
	}
	key := storage.ReportKey(kind, s.now())
	if err := s.archive.PutObject(ctx, key, "application/json", body); err != nil {
		s.log.Warn("archive reconcile report", zap.String("key", key), zap.Error(err))
		return nil
	}
	archive := &Archive{Key: key}
	if url, err := s.archive.GeneratePresignedDownloadURL(ctx, key, 0); err == nil {
		archive.URL = url
	} else {
		s.log.Warn("presign reconcile report", zap.String("key", key), zap.Error(err))
	}
	return archive
}
