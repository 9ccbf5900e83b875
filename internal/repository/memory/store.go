// Package memory provides an in-process implementation of every repository
// interface. It mirrors the MongoDB adapter's set semantics ($addToSet/$pull,
// owner filters, ErrNotFound on zero matches) and is used for local
// development (database.driver=memory) and by service tests.
package memory

import (
	"coachshare/backend/internal/domain"
	"coachshare/backend/internal/repository"
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store holds all collections behind a single lock. Every value handed out is
// a copy, so callers never observe later writes through a returned pointer.
type Store struct {
	mu            sync.RWMutex
	users         map[primitive.ObjectID]domain.User
	regimens      map[primitive.ObjectID]domain.Regimen
	logs          map[primitive.ObjectID]domain.WorkoutLog
	notifications map[primitive.ObjectID]domain.Notification
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		users:         map[primitive.ObjectID]domain.User{},
		regimens:      map[primitive.ObjectID]domain.Regimen{},
		logs:          map[primitive.ObjectID]domain.WorkoutLog{},
		notifications: map[primitive.ObjectID]domain.Notification{},
	}
}

func (s *Store) Users() repository.UserRepository                 { return &userRepo{s} }
func (s *Store) Regimens() repository.RegimenRepository           { return &regimenRepo{s} }
func (s *Store) WorkoutLogs() repository.WorkoutLogRepository     { return &workoutLogRepo{s} }
func (s *Store) Notifications() repository.NotificationRepository { return &notificationRepo{s} }

func cloneIDs(ids []primitive.ObjectID) []primitive.ObjectID {
	if ids == nil {
		return nil
	}
	out := make([]primitive.ObjectID, len(ids))
	copy(out, ids)
	return out
}

func cloneIDPtr(id *primitive.ObjectID) *primitive.ObjectID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func cloneTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneUser(u domain.User) domain.User {
	u.Athletes = cloneIDs(u.Athletes)
	u.Coaches = cloneIDs(u.Coaches)
	u.Regimens = cloneIDs(u.Regimens)
	u.CoachID = cloneIDPtr(u.CoachID)
	u.PrimaryCoachID = cloneIDPtr(u.PrimaryCoachID)
	u.InviteTokenExpires = cloneTimePtr(u.InviteTokenExpires)
	u.ResetTokenExpires = cloneTimePtr(u.ResetTokenExpires)
	return u
}

func cloneRegimen(r domain.Regimen) domain.Regimen {
	r.AssignedTo = cloneIDs(r.AssignedTo)
	if r.Days != nil {
		days := make([]domain.RegimenDay, len(r.Days))
		copy(days, r.Days)
		r.Days = days
	}
	return r
}

func cloneLog(l domain.WorkoutLog) domain.WorkoutLog {
	l.SharedWith = cloneIDs(l.SharedWith)
	l.CompletedAt = cloneTimePtr(l.CompletedAt)
	if l.Effort != nil {
		v := *l.Effort
		l.Effort = &v
	}
	return l
}

// ---- users ----

type userRepo struct{ s *Store }

func (r *userRepo) Create(_ context.Context, user *domain.User) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(user.Email))
	for _, existing := range r.s.users {
		if existing.Email == email {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	user.ID = primitive.NewObjectID()
	user.Email = email
	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now
	r.s.users[user.ID] = cloneUser(*user)
	return user.ID, nil
}

func (r *userRepo) first(match func(domain.User) bool) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if match(u) {
			c := cloneUser(u)
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.first(func(u domain.User) bool { return u.Email == email })
}

func (r *userRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := cloneUser(u)
	return &c, nil
}

func (r *userRepo) GetByIDs(_ context.Context, ids []primitive.ObjectID) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.User{}
	for _, id := range ids {
		if u, ok := r.s.users[id]; ok {
			out = append(out, cloneUser(u))
		}
	}
	return out, nil
}

func (r *userRepo) GetByInviteToken(_ context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, repository.ErrNotFound
	}
	return r.first(func(u domain.User) bool { return u.InviteToken == token })
}

func (r *userRepo) GetByResetToken(_ context.Context, token string) (*domain.User, error) {
	if token == "" {
		return nil, repository.ErrNotFound
	}
	return r.first(func(u domain.User) bool { return u.ResetToken == token })
}

func (r *userRepo) ListByRole(_ context.Context, role domain.Role) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.User{}
	for _, u := range r.s.users {
		if u.Role == role {
			out = append(out, cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out, nil
}

// mutate applies fn to the user with id when it has role (any role when empty).
func (r *userRepo) mutate(id primitive.ObjectID, role domain.Role, fn func(*domain.User)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok || (role != "" && u.Role != role) {
		return repository.ErrNotFound
	}
	fn(&u)
	u.UpdatedAt = time.Now().UTC()
	r.s.users[id] = u
	return nil
}

func applyPrimary(u *domain.User, link repository.CoachLink) {
	if link.Primary != nil {
		u.PrimaryCoachID = cloneIDPtr(link.Primary)
		u.CoachID = cloneIDPtr(link.Primary)
		return
	}
	if link.ClearPrimary {
		u.PrimaryCoachID = nil
		u.CoachID = nil
	}
}

func (r *userRepo) AddCoachToAthlete(_ context.Context, link repository.CoachLink) error {
	return r.mutate(link.AthleteID, domain.RoleAthlete, func(u *domain.User) {
		u.Coaches = domain.AddID(cloneIDs(u.Coaches), link.CoachID)
		applyPrimary(u, link)
	})
}

func (r *userRepo) RemoveCoachFromAthlete(_ context.Context, link repository.CoachLink) error {
	return r.mutate(link.AthleteID, domain.RoleAthlete, func(u *domain.User) {
		u.Coaches = domain.RemoveID(u.Coaches, link.CoachID)
		applyPrimary(u, link)
	})
}

func (r *userRepo) SetPrimaryCoach(_ context.Context, athleteID primitive.ObjectID, coachID *primitive.ObjectID) error {
	return r.mutate(athleteID, domain.RoleAthlete, func(u *domain.User) {
		u.PrimaryCoachID = cloneIDPtr(coachID)
		u.CoachID = cloneIDPtr(coachID)
	})
}

func (r *userRepo) AddAthleteToCoach(_ context.Context, coachID, athleteID primitive.ObjectID) error {
	return r.mutate(coachID, domain.RoleCoach, func(u *domain.User) {
		u.Athletes = domain.AddID(cloneIDs(u.Athletes), athleteID)
	})
}

func (r *userRepo) RemoveAthleteFromCoach(_ context.Context, coachID, athleteID primitive.ObjectID) error {
	return r.mutate(coachID, domain.RoleCoach, func(u *domain.User) {
		u.Athletes = domain.RemoveID(u.Athletes, athleteID)
	})
}

func (r *userRepo) AddRegimenToAthlete(_ context.Context, athleteID, regimenID primitive.ObjectID) error {
	return r.mutate(athleteID, domain.RoleAthlete, func(u *domain.User) {
		u.Regimens = domain.AddID(cloneIDs(u.Regimens), regimenID)
	})
}

func (r *userRepo) RemoveRegimenFromAthlete(_ context.Context, athleteID, regimenID primitive.ObjectID) error {
	return r.mutate(athleteID, domain.RoleAthlete, func(u *domain.User) {
		u.Regimens = domain.RemoveID(u.Regimens, regimenID)
	})
}

func (r *userRepo) RemoveRegimenFromAllAthletes(_ context.Context, regimenID primitive.ObjectID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, u := range r.s.users {
		if domain.ContainsID(u.Regimens, regimenID) {
			u.Regimens = domain.RemoveID(u.Regimens, regimenID)
			u.UpdatedAt = time.Now().UTC()
			r.s.users[id] = u
			n++
		}
	}
	return n, nil
}

func (r *userRepo) SetInviteToken(_ context.Context, id primitive.ObjectID, token string, expires *time.Time) error {
	return r.mutate(id, "", func(u *domain.User) {
		u.InviteToken = token
		u.InviteTokenExpires = nil
		if token != "" {
			u.InviteTokenExpires = cloneTimePtr(expires)
		}
	})
}

func (r *userRepo) SetResetToken(_ context.Context, id primitive.ObjectID, token string, expires *time.Time) error {
	return r.mutate(id, "", func(u *domain.User) {
		u.ResetToken = token
		u.ResetTokenExpires = nil
		if token != "" {
			u.ResetTokenExpires = cloneTimePtr(expires)
		}
	})
}

func (r *userRepo) CompleteInvitation(_ context.Context, id primitive.ObjectID, name, passwordHash string) error {
	return r.mutate(id, "", func(u *domain.User) {
		u.Name = name
		u.PasswordHash = passwordHash
		u.InviteToken = ""
		u.InviteTokenExpires = nil
		u.Pending = false
	})
}

func (r *userRepo) UpdatePassword(_ context.Context, id primitive.ObjectID, passwordHash string) error {
	return r.mutate(id, "", func(u *domain.User) {
		u.PasswordHash = passwordHash
		u.ResetToken = ""
		u.ResetTokenExpires = nil
	})
}

func (r *userRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.users, id)
	return nil
}

// ---- regimens ----

type regimenRepo struct{ s *Store }

func (r *regimenRepo) Create(_ context.Context, regimen *domain.Regimen) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.regimens {
		if existing.RegimenID == regimen.RegimenID {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	regimen.ID = primitive.NewObjectID()
	if regimen.AssignedTo == nil {
		regimen.AssignedTo = []primitive.ObjectID{}
	}
	now := time.Now().UTC()
	regimen.CreatedAt = now
	regimen.UpdatedAt = now
	r.s.regimens[regimen.ID] = cloneRegimen(*regimen)
	return regimen.ID, nil
}

func (r *regimenRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.Regimen, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	reg, ok := r.s.regimens[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := cloneRegimen(reg)
	return &c, nil
}

func (r *regimenRepo) GetByRef(ctx context.Context, ref string) (*domain.Regimen, error) {
	if ref == "" {
		return nil, repository.ErrNotFound
	}
	r.s.mu.RLock()
	for _, reg := range r.s.regimens {
		if reg.RegimenID == ref {
			c := cloneRegimen(reg)
			r.s.mu.RUnlock()
			return &c, nil
		}
	}
	r.s.mu.RUnlock()
	if oid, err := primitive.ObjectIDFromHex(ref); err == nil {
		return r.GetByID(ctx, oid)
	}
	return nil, repository.ErrNotFound
}

func (r *regimenRepo) list(match func(domain.Regimen) bool) []domain.Regimen {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Regimen{}
	for _, reg := range r.s.regimens {
		if match(reg) {
			out = append(out, cloneRegimen(reg))
		}
	}
	// Newest first, matching the Mongo adapter.
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() > out[j].ID.Hex() })
	return out
}

func (r *regimenRepo) ListByCreator(_ context.Context, coachID primitive.ObjectID) ([]domain.Regimen, error) {
	return r.list(func(reg domain.Regimen) bool { return reg.CreatedBy == coachID }), nil
}

func (r *regimenRepo) ListAssignedTo(_ context.Context, athleteID primitive.ObjectID) ([]domain.Regimen, error) {
	return r.list(func(reg domain.Regimen) bool { return reg.IsAssignedTo(athleteID) }), nil
}

func (r *regimenRepo) ListAll(_ context.Context) ([]domain.Regimen, error) {
	return r.list(func(domain.Regimen) bool { return true }), nil
}

func (r *regimenRepo) mutate(id primitive.ObjectID, fn func(*domain.Regimen) bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	reg, ok := r.s.regimens[id]
	if !ok || !fn(&reg) {
		return repository.ErrNotFound
	}
	reg.UpdatedAt = time.Now().UTC()
	r.s.regimens[id] = reg
	return nil
}

func (r *regimenRepo) Update(_ context.Context, id, coachID primitive.ObjectID, patch repository.RegimenUpdate) error {
	return r.mutate(id, func(reg *domain.Regimen) bool {
		if reg.CreatedBy != coachID {
			return false
		}
		reg.Name = patch.Name
		reg.Description = patch.Description
		reg.Days = append([]domain.RegimenDay(nil), patch.Days...)
		return true
	})
}

func (r *regimenRepo) AddAssignee(_ context.Context, id, athleteID primitive.ObjectID) error {
	return r.mutate(id, func(reg *domain.Regimen) bool {
		reg.AssignedTo = domain.AddID(cloneIDs(reg.AssignedTo), athleteID)
		return true
	})
}

func (r *regimenRepo) RemoveAssignee(_ context.Context, id, athleteID primitive.ObjectID) error {
	return r.mutate(id, func(reg *domain.Regimen) bool {
		reg.AssignedTo = domain.RemoveID(reg.AssignedTo, athleteID)
		return true
	})
}

func (r *regimenRepo) RemoveAssigneeFromAll(_ context.Context, athleteID primitive.ObjectID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, reg := range r.s.regimens {
		if reg.IsAssignedTo(athleteID) {
			reg.AssignedTo = domain.RemoveID(reg.AssignedTo, athleteID)
			reg.UpdatedAt = time.Now().UTC()
			r.s.regimens[id] = reg
			n++
		}
	}
	return n, nil
}

func (r *regimenRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.regimens[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.regimens, id)
	return nil
}

// ---- workout logs ----

type workoutLogRepo struct{ s *Store }

func (r *workoutLogRepo) Create(_ context.Context, log *domain.WorkoutLog) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	log.ID = primitive.NewObjectID()
	if log.SharedWith == nil {
		log.SharedWith = []primitive.ObjectID{}
	}
	now := time.Now().UTC()
	log.CreatedAt = now
	log.UpdatedAt = now
	r.s.logs[log.ID] = cloneLog(*log)
	return log.ID, nil
}

func (r *workoutLogRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.WorkoutLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	l, ok := r.s.logs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := cloneLog(l)
	return &c, nil
}

func (r *workoutLogRepo) filter(match func(domain.WorkoutLog) bool) []domain.WorkoutLog {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.WorkoutLog{}
	for _, l := range r.s.logs {
		if match(l) {
			out = append(out, cloneLog(l))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() < out[j].ID.Hex() })
	return out
}

func (r *workoutLogRepo) ListByAthlete(_ context.Context, athleteID primitive.ObjectID) ([]domain.WorkoutLog, error) {
	return r.filter(func(l domain.WorkoutLog) bool { return l.AthleteID == athleteID }), nil
}

func (r *workoutLogRepo) ListSharedWith(_ context.Context, coachID primitive.ObjectID) ([]domain.WorkoutLog, error) {
	return r.filter(func(l domain.WorkoutLog) bool { return l.IsSharedWith(coachID) }), nil
}

func (r *workoutLogRepo) ListAll(_ context.Context) ([]domain.WorkoutLog, error) {
	return r.filter(func(domain.WorkoutLog) bool { return true }), nil
}

func (r *workoutLogRepo) ListCompletedByAthlete(_ context.Context, athleteID primitive.ObjectID) ([]domain.WorkoutLog, error) {
	out := r.filter(func(l domain.WorkoutLog) bool { return l.AthleteID == athleteID && l.Completed })
	sort.SliceStable(out, func(i, j int) bool { return out[i].CompletionTime().Before(out[j].CompletionTime()) })
	return out, nil
}

func containsRef(refs []string, ref string) bool {
	for _, candidate := range refs {
		if candidate == ref {
			return true
		}
	}
	return false
}

func (r *workoutLogRepo) ListByRegimenRefs(_ context.Context, refs []string) ([]domain.WorkoutLog, error) {
	return r.filter(func(l domain.WorkoutLog) bool { return containsRef(refs, l.RegimenID) }), nil
}

func (r *workoutLogRepo) mutateOwned(id, athleteID primitive.ObjectID, fn func(*domain.WorkoutLog)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.logs[id]
	if !ok || l.AthleteID != athleteID {
		return repository.ErrNotFound
	}
	fn(&l)
	l.UpdatedAt = time.Now().UTC()
	r.s.logs[id] = l
	return nil
}

func (r *workoutLogRepo) Update(_ context.Context, id, athleteID primitive.ObjectID, patch repository.WorkoutLogUpdate) error {
	return r.mutateOwned(id, athleteID, func(l *domain.WorkoutLog) {
		l.Completed = patch.Completed
		l.CompletedAt = cloneTimePtr(patch.CompletedAt)
		l.Notes = patch.Notes
		l.Effort = nil
		if patch.Effort != nil {
			v := *patch.Effort
			l.Effort = &v
		}
		l.SharedWith = cloneIDs(patch.SharedWith)
	})
}

func (r *workoutLogRepo) SetSharedWith(_ context.Context, id, athleteID primitive.ObjectID, coachIDs []primitive.ObjectID) error {
	return r.mutateOwned(id, athleteID, func(l *domain.WorkoutLog) {
		l.SharedWith = cloneIDs(coachIDs)
	})
}

func (r *workoutLogRepo) RemoveCoachFromShared(_ context.Context, coachID primitive.ObjectID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, l := range r.s.logs {
		if l.IsSharedWith(coachID) {
			l.SharedWith = domain.RemoveID(l.SharedWith, coachID)
			r.s.logs[id] = l
			n++
		}
	}
	return n, nil
}

func (r *workoutLogRepo) DistinctRegimenRefs(_ context.Context) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	seen := map[string]struct{}{}
	out := []string{}
	for _, l := range r.s.logs {
		if l.RegimenID == "" {
			continue
		}
		if _, ok := seen[l.RegimenID]; !ok {
			seen[l.RegimenID] = struct{}{}
			out = append(out, l.RegimenID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (r *workoutLogRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.logs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.logs, id)
	return nil
}

func (r *workoutLogRepo) deleteWhere(match func(domain.WorkoutLog) bool) int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, l := range r.s.logs {
		if match(l) {
			delete(r.s.logs, id)
			n++
		}
	}
	return n
}

func (r *workoutLogRepo) DeleteByRegimenRefs(_ context.Context, refs []string) (int64, error) {
	if len(refs) == 0 {
		return 0, nil
	}
	return r.deleteWhere(func(l domain.WorkoutLog) bool { return containsRef(refs, l.RegimenID) }), nil
}

func (r *workoutLogRepo) DeleteByAthlete(_ context.Context, athleteID primitive.ObjectID) (int64, error) {
	return r.deleteWhere(func(l domain.WorkoutLog) bool { return l.AthleteID == athleteID }), nil
}

// ---- notifications ----

type notificationRepo struct{ s *Store }

func (r *notificationRepo) Create(_ context.Context, n *domain.Notification) (primitive.ObjectID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n.ID = primitive.NewObjectID()
	n.Read = false
	n.CreatedAt = time.Now().UTC()
	r.s.notifications[n.ID] = *n
	return n.ID, nil
}

func (r *notificationRepo) ListByUser(_ context.Context, userID primitive.ObjectID) ([]domain.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.Notification{}
	for _, n := range r.s.notifications {
		if n.User == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Hex() > out[j].ID.Hex() })
	return out, nil
}

func (r *notificationRepo) MarkRead(_ context.Context, id, userID primitive.ObjectID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n, ok := r.s.notifications[id]
	if !ok || n.User != userID {
		return repository.ErrNotFound
	}
	n.Read = true
	r.s.notifications[id] = n
	return nil
}

func (r *notificationRepo) MarkAllRead(_ context.Context, userID primitive.ObjectID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for id, n := range r.s.notifications {
		if n.User == userID && !n.Read {
			n.Read = true
			r.s.notifications[id] = n
			count++
		}
	}
	return count, nil
}

func (r *notificationRepo) DeleteByUser(_ context.Context, userID primitive.ObjectID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var count int64
	for id, n := range r.s.notifications {
		if n.User == userID {
			delete(r.s.notifications, id)
			count++
		}
	}
	return count, nil
}
