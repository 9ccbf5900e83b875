package api

import (
	"coachshare/backend/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// UserHandler serves profile, roster and account endpoints.
type UserHandler struct {
	authService        service.AuthService
	userService        service.UserService
	achievementService service.AchievementService
}

func NewUserHandler(authService service.AuthService, userService service.UserService, achievementService service.AchievementService) *UserHandler {
	return &UserHandler{
		authService:        authService,
		userService:        userService,
		achievementService: achievementService,
	}
}

type InviteAthleteRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type InviteAthleteResponse struct {
	Athlete UserResponse `json:"athlete"`
	Invited bool         `json:"invited"`
	Changed bool         `json:"changed"`
	Partial bool         `json:"partial,omitempty"`
}

// Me returns the authenticated user's profile.
func (h *UserHandler) Me(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	user, err := h.userService.GetProfile(c.Request.Context(), actor, actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapUserToResponse(user))
}

// GetUser returns another user's profile when the caller may see it.
func (h *UserHandler) GetUser(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	userID, ok := pathObjectID(c, "userId")
	if !ok {
		return
	}
	user, err := h.userService.GetProfile(c.Request.Context(), actor, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapUserToResponse(user))
}

// DeleteUser deletes the caller's own account, or any account for admins.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	userID, ok := pathObjectID(c, "userId")
	if !ok {
		return
	}
	if err := h.userService.DeleteUser(c.Request.Context(), actor, userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// --- Coach roster ---

// InviteAthlete links an existing athlete or invites a new one by email.
func (h *UserHandler) InviteAthlete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req InviteAthleteRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.authService.InviteAthlete(c.Request.Context(), actor.ID, req.Email)
	if err != nil {
		respondError(c, err)
		return
	}
	status := http.StatusOK
	if res.Invited {
		status = http.StatusCreated
	}
	c.JSON(status, InviteAthleteResponse{
		Athlete: MapUserToResponse(res.Athlete),
		Invited: res.Invited,
		Changed: res.Link != nil && res.Link.Changed,
		Partial: res.Link != nil && res.Link.Partial,
	})
}

func (h *UserHandler) ListAthletes(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	athletes, err := h.userService.ListAthletes(c.Request.Context(), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapUsersToResponse(athletes))
}

// RemoveAthlete unassigns the coach's regimens and unlinks the athlete.
func (h *UserHandler) RemoveAthlete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	athleteID, ok := pathObjectID(c, "athleteId")
	if !ok {
		return
	}
	res, err := h.userService.RemoveAthlete(c.Request.Context(), actor.ID, athleteID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// --- Athlete side ---

func (h *UserHandler) ListCoaches(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	coaches, err := h.userService.ListCoaches(c.Request.Context(), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MapUsersToResponse(coaches))
}

func (h *UserHandler) SetPrimaryCoach(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	coachID, ok := pathObjectID(c, "coachId")
	if !ok {
		return
	}
	if err := h.userService.SetPrimaryCoach(c.Request.Context(), actor.ID, coachID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *UserHandler) LeaveCoach(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	coachID, ok := pathObjectID(c, "coachId")
	if !ok {
		return
	}
	res, err := h.userService.LeaveCoach(c.Request.Context(), actor.ID, coachID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Achievements returns the badges of the athlete in the path, visible to the
// athlete, their coaches and admins.
func (h *UserHandler) Achievements(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	athleteID, ok := pathObjectID(c, "athleteId")
	if !ok {
		return
	}
	achievements, err := h.achievementService.ForAthlete(c.Request.Context(), actor, athleteID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, achievements)
}
