package service

import (
	"coachshare/backend/internal/domain"
	"coachshare/backend/internal/mail"
	"coachshare/backend/internal/repository"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength  = 8
	invitationLifetime = 7 * 24 * time.Hour
	resetLifetime      = time.Hour
	tokenIssuer        = "coachshare"
)

// InviteResult reports what InviteAthlete did.
type InviteResult struct {
	Athlete *domain.User `json:"athlete"`
	// Invited is true when a new pending account was created and emailed.
	Invited bool        `json:"invited"`
	Link    *LinkResult `json:"link"`
}

// --- Service Interface ---
type AuthService interface {
	Register(ctx context.Context, name, email, password string, role domain.Role) (*domain.User, error)
	// CreateAdmin is only reachable from the command line.
	CreateAdmin(ctx context.Context, name, email, password string) (*domain.User, error)
	Login(ctx context.Context, email, password string) (token string, user *domain.User, err error)
	InviteAthlete(ctx context.Context, coachID primitive.ObjectID, email string) (*InviteResult, error)
	AcceptInvitation(ctx context.Context, token, name, password string) (*domain.User, error)
	// RequestPasswordReset succeeds for unknown emails so callers cannot tell which accounts exist.
	RequestPasswordReset(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, password string) error
}

// --- Service Implementation ---

// authService implements the AuthService interface.
type authService struct {
	userRepo      repository.UserRepository
	rel           RelationshipService
	mailer        mail.Mailer
	notifier      NotificationService
	jwtSecret     string
	jwtExpiration time.Duration
	publicURL     string
	log           *zap.Logger
	now           func() time.Time
}

// NewAuthService creates a new instance of authService.
func NewAuthService(
	userRepo repository.UserRepository,
	rel RelationshipService,
	mailer mail.Mailer,
	notifier NotificationService,
	jwtSecret string,
	jwtExpiration time.Duration,
	publicURL string,
	log *zap.Logger,
) AuthService {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty") // Critical configuration
	}
	if jwtExpiration <= 0 {
		jwtExpiration = time.Hour * 1
	}
	return &authService{
		userRepo:      userRepo,
		rel:           rel,
		mailer:        mailer,
		notifier:      notifier,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
		publicURL:     strings.TrimRight(publicURL, "/"),
		log:           log,
		now:           time.Now,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", ErrPasswordTooShort
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", ErrHashingFailed
	}
	return string(hashed), nil
}

// Register handles new user registration.
func (s *authService) Register(ctx context.Context, name, email, password string, role domain.Role) (*domain.User, error) {
	if role != domain.RoleCoach && role != domain.RoleAthlete {
		return nil, ErrInvalidRole
	}
	return s.register(ctx, name, email, password, role)
}

func (s *authService) CreateAdmin(ctx context.Context, name, email, password string) (*domain.User, error) {
	return s.register(ctx, name, email, password, domain.RoleAdmin)
}

func (s *authService) register(ctx context.Context, name, email, password string, role domain.Role) (*domain.User, error) {
	// 1. Basic Input Validation
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" {
		return nil, InvalidInput("name and email cannot be empty")
	}

	// 2. Check if user already exists
	_, err := s.userRepo.GetByEmail(ctx, email)
	if err == nil {
		return nil, ErrUserAlreadyExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, Internal("look up email", err)
	}

	// 3. Hash the password
	hashed, err := hashPassword(password)
	if err != nil {
		return nil, err
	}

	// 4. Save the user
	user := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hashed,
		Role:         role,
	}
	if _, err := s.userRepo.Create(ctx, user); err != nil {
		// Lost a race with another registration for the same email.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, Internal("create user", err)
	}

	s.log.Info("user registered", zap.String("userId", user.ID.Hex()), zap.String("role", string(role)))
	user.PasswordHash = ""
	return user, nil
}

// Login handles user authentication and JWT generation.
func (s *authService) Login(ctx context.Context, email, password string) (token string, user *domain.User, err error) {
	// 1. Basic Input Validation
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return "", nil, InvalidInput("email and password cannot be empty")
	}

	// 2. Fetch user by email
	user, err = s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", nil, ErrAuthenticationFailed
		}
		return "", nil, Internal("look up email", err)
	}

	// 3. Pending invitees have no password yet
	if user.Pending || user.PasswordHash == "" {
		return "", nil, ErrAuthenticationFailed
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrAuthenticationFailed
	}

	// 4. Generate JWT
	token, err = s.generateJWT(user)
	if err != nil {
		return "", nil, ErrTokenGeneration
	}

	user.PasswordHash = ""
	return token, user, nil
}

// InviteAthlete links an existing athlete to the coach, or creates a pending
// athlete account, links it and emails an invitation.
func (s *authService) InviteAthlete(ctx context.Context, coachID primitive.ObjectID, email string) (*InviteResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, InvalidInput("email cannot be empty")
	}
	coach, err := s.userRepo.GetByID(ctx, coachID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCoachNotFound
		}
		return nil, Internal("load coach", err)
	}
	if !coach.IsCoach() {
		return nil, ErrCoachNotFound
	}

	// 1. Existing account
	existing, err := s.userRepo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if !existing.IsAthlete() {
			return nil, ErrNotAthlete
		}
		link, err := s.rel.LinkCoachAthlete(ctx, existing.ID, coachID)
		if err != nil {
			return nil, err
		}
		if link.Changed {
			notifyQuietly(ctx, s.notifier, s.log, NotificationInput{
				User:      existing.ID,
				Title:     "New coach",
				Message:   fmt.Sprintf("%s added you as an athlete", coach.Name),
				Type:      domain.NotificationCoachLinked,
				RelatedID: coachID.Hex(),
			})
		}
		existing.PasswordHash = ""

		// A pending invitee whose token was cleared or has lapsed gets a new one
		if existing.Pending && !s.invitationUsable(existing) {
			if err := s.reissueInvitation(ctx, coach, existing); err != nil {
				return nil, err
			}
			existing.InviteToken = ""
			existing.InviteTokenExpires = nil
			return &InviteResult{Athlete: existing, Invited: true, Link: link}, nil
		}
		return &InviteResult{Athlete: existing, Link: link}, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, Internal("look up email", err)
	}

	// 2. New pending athlete with an invitation token
	expires := s.now().Add(invitationLifetime).UTC()
	athlete := &domain.User{
		Email:              email,
		Role:               domain.RoleAthlete,
		Pending:            true,
		InviteToken:        uuid.NewString(),
		InviteTokenExpires: &expires,
	}
	if _, err := s.userRepo.Create(ctx, athlete); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrUserAlreadyExists
		}
		return nil, Internal("create invited athlete", err)
	}

	link, err := s.rel.LinkCoachAthlete(ctx, athlete.ID, coachID)
	if err != nil {
		return nil, err
	}

	// 3. Queue the invitation email
	if err := s.sendInvitation(ctx, coach, athlete); err != nil {
		return nil, err
	}

	s.log.Info("athlete invited", zap.String("userId", athlete.ID.Hex()), zap.String("coachId", coachID.Hex()))
	athlete.InviteToken = ""
	athlete.InviteTokenExpires = nil
	return &InviteResult{Athlete: athlete, Invited: true, Link: link}, nil
}

// invitationUsable reports whether the pending user still holds an unexpired token.
func (s *authService) invitationUsable(user *domain.User) bool {
	return user.InviteToken != "" && user.InviteTokenExpires != nil && s.now().Before(*user.InviteTokenExpires)
}

// reissueInvitation stores a fresh token on a pending athlete and emails it.
func (s *authService) reissueInvitation(ctx context.Context, coach, athlete *domain.User) error {
	expires := s.now().Add(invitationLifetime).UTC()
	token := uuid.NewString()
	if err := s.userRepo.SetInviteToken(ctx, athlete.ID, token, &expires); err != nil {
		return Internal("store invitation token", err)
	}
	athlete.InviteToken = token
	athlete.InviteTokenExpires = &expires
	if err := s.sendInvitation(ctx, coach, athlete); err != nil {
		return err
	}
	s.log.Info("invitation reissued", zap.String("userId", athlete.ID.Hex()), zap.String("coachId", coach.ID.Hex()))
	return nil
}

// sendInvitation queues the invitation email for athlete's current token. A
// failed publish clears the token so the next invite issues a fresh one.
func (s *authService) sendInvitation(ctx context.Context, coach, athlete *domain.User) error {
	msg := mail.Message{
		To:       athlete.Email,
		Subject:  fmt.Sprintf("%s invited you to CoachShare", coach.Name),
		Template: mail.TemplateInvitation,
		Data: map[string]string{
			"coachName": coach.Name,
			"link":      s.link("/invite", athlete.InviteToken),
		},
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Error("invitation email failed", zap.String("userId", athlete.ID.Hex()), zap.Error(err))
		if clearErr := s.userRepo.SetInviteToken(ctx, athlete.ID, "", nil); clearErr != nil {
			s.log.Error("clear invitation token", zap.String("userId", athlete.ID.Hex()), zap.Error(clearErr))
		}
		return ErrMailFailed
	}
	return nil
}

// AcceptInvitation sets the invitee's name and password and activates the account.
func (s *authService) AcceptInvitation(ctx context.Context, token, name, password string) (*domain.User, error) {
	user, err := s.userRepo.GetByInviteToken(ctx, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, Internal("look up invitation", err)
	}
	if user.InviteTokenExpires == nil || s.now().After(*user.InviteTokenExpires) {
		return nil, ErrInvalidToken
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, InvalidInput("name cannot be empty")
	}
	hashed, err := hashPassword(password)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.CompleteInvitation(ctx, user.ID, name, hashed); err != nil {
		return nil, Internal("complete invitation", err)
	}

	user.Name = name
	user.Pending = false
	user.InviteToken = ""
	user.InviteTokenExpires = nil
	user.PasswordHash = ""
	return user, nil
}

func (s *authService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return InvalidInput("email cannot be empty")
	}
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return Internal("look up email", err)
	}
	if user.Pending {
		return nil
	}

	token := uuid.NewString()
	expires := s.now().Add(resetLifetime).UTC()
	if err := s.userRepo.SetResetToken(ctx, user.ID, token, &expires); err != nil {
		return Internal("store reset token", err)
	}

	msg := mail.Message{
		To:       user.Email,
		Subject:  "Reset your CoachShare password",
		Template: mail.TemplatePasswordReset,
		Data: map[string]string{
			"name": user.Name,
			"link": s.link("/reset-password", token),
		},
	}
	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Error("password reset email failed", zap.String("userId", user.ID.Hex()), zap.Error(err))
		if clearErr := s.userRepo.SetResetToken(ctx, user.ID, "", nil); clearErr != nil {
			s.log.Error("clear reset token", zap.String("userId", user.ID.Hex()), zap.Error(clearErr))
		}
		return ErrMailFailed
	}
	return nil
}

func (s *authService) ResetPassword(ctx context.Context, token, password string) error {
	user, err := s.userRepo.GetByResetToken(ctx, strings.TrimSpace(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidToken
		}
		return Internal("look up reset token", err)
	}
	if user.ResetTokenExpires == nil || s.now().After(*user.ResetTokenExpires) {
		return ErrInvalidToken
	}
	hashed, err := hashPassword(password)
	if err != nil {
		return err
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hashed); err != nil {
		return Internal("update password", err)
	}
	s.log.Info("password reset", zap.String("userId", user.ID.Hex()))
	return nil
}

func (s *authService) link(path, token string) string {
	return s.publicURL + path + "?token=" + url.QueryEscape(token)
}

// --- JWT Helper ---

// jwtClaims defines the structure of the JWT payload.
type jwtClaims struct {
	UserID string      `json:"uid"`
	Role   domain.Role `json:"role"`
	jwt.RegisteredClaims
}

// generateJWT creates a new JWT token for the given user.
func (s *authService) generateJWT(user *domain.User) (string, error) {
	now := s.now()
	claims := &jwtClaims{
		UserID: user.ID.Hex(),
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.Hex(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.jwtExpiration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(s.jwtSecret))
	if err != nil {
		return "", err
	}
	return signedToken, nil
}
