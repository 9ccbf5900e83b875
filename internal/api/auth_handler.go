package api

import (
	"coachshare/backend/internal/config"
	"coachshare/backend/internal/domain"
	"coachshare/backend/internal/service"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// AuthHandler holds the authentication service dependency.
type AuthHandler struct {
	authService service.AuthService
	jwt         config.JWTConfig
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService service.AuthService, jwt config.JWTConfig) *AuthHandler {
	return &AuthHandler{authService: authService, jwt: jwt}
}

// --- Request/Response Structs ---

type RegisterRequest struct {
	Name     string      `json:"name" binding:"required"`
	Email    string      `json:"email" binding:"required,email"`
	Password string      `json:"password" binding:"required,min=8"`
	Role     domain.Role `json:"role" binding:"required,oneof=coach athlete"`
}

// UserResponse excludes sensitive info like password hash and tokens.
type UserResponse struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Email          string      `json:"email"`
	Role           domain.Role `json:"role"`
	Pending        bool        `json:"pending,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
	Athletes       []string    `json:"athletes,omitempty"`
	Coaches        []string    `json:"coaches,omitempty"`
	PrimaryCoachID *string     `json:"primaryCoachId,omitempty"`
	CoachID        *string     `json:"coachId,omitempty"` // legacy mirror of primaryCoachId
	Regimens       []string    `json:"regimens,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type AcceptInvitationRequest struct {
	Token    string `json:"token" binding:"required"`
	Name     string `json:"name" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type ResetPasswordRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// --- Handler Methods ---

// Register creates a coach or athlete account.
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.authService.Register(c.Request.Context(), req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, MapUserToResponse(user))
}

// Login authenticates a user, returns a JWT and sets it as an HttpOnly cookie.
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	token, user, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if service.KindOf(err) == service.KindInvalidInput {
			abortWithError(c, http.StatusUnauthorized, err.Error())
			return
		}
		respondError(c, err)
		return
	}

	h.setSessionCookie(c, token, int(h.jwt.Expiration.Seconds()))
	c.JSON(http.StatusOK, LoginResponse{
		Token: token,
		User:  MapUserToResponse(user),
	})
}

// Logout clears the session cookie. Bearer tokens simply expire.
func (h *AuthHandler) Logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	if h.jwt.CookieName == "" {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.jwt.CookieName, value, maxAge, "/", "", h.jwt.CookieSecure, true)
}

// AcceptInvitation activates an invited athlete account.
func (h *AuthHandler) AcceptInvitation(c *gin.Context) {
	var req AcceptInvitationRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.authService.AcceptInvitation(c.Request.Context(), req.Token, req.Name, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapUserToResponse(user))
}

// ForgotPassword always answers 202 for well-formed requests.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "If the address is registered, a reset link has been sent."})
}

func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MapUserToResponse converts a domain User to a UserResponse DTO.
func MapUserToResponse(user *domain.User) UserResponse {
	if user == nil {
		return UserResponse{}
	}

	resp := UserResponse{
		ID:        user.ID.Hex(),
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		Pending:   user.Pending,
		CreatedAt: user.CreatedAt,
		Athletes:  hexIDs(user.Athletes),
		Coaches:   hexIDs(user.Coaches),
		Regimens:  hexIDs(user.Regimens),
	}
	if user.PrimaryCoachID != nil && !user.PrimaryCoachID.IsZero() {
		primary := user.PrimaryCoachID.Hex()
		resp.PrimaryCoachID = &primary
	}
	if user.CoachID != nil && !user.CoachID.IsZero() {
		legacy := user.CoachID.Hex()
		resp.CoachID = &legacy
	}
	return resp
}

// MapUsersToResponse converts a slice of users, never returning nil.
func MapUsersToResponse(users []domain.User) []UserResponse {
	out := make([]UserResponse, len(users))
	for i := range users {
		out[i] = MapUserToResponse(&users[i])
	}
	return out
}
