package api

import (
	"coachshare/backend/internal/domain"
	"coachshare/backend/internal/service"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type WorkoutLogHandler struct {
	workoutLogService service.WorkoutLogService
}

func NewWorkoutLogHandler(workoutLogService service.WorkoutLogService) *WorkoutLogHandler {
	return &WorkoutLogHandler{workoutLogService: workoutLogService}
}

// --- DTOs ---

type CreateWorkoutLogRequest struct {
	RegimenID   string     `json:"regimenId" binding:"required"`
	DayID       string     `json:"dayId"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completedAt"`
	Notes       string     `json:"notes"`
	Effort      *int       `json:"effort" binding:"omitempty,min=1,max=10"`
	SharedWith  []string   `json:"sharedWith" binding:"omitempty,dive,objectid"`
}

type UpdateWorkoutLogRequest struct {
	Completed   *bool      `json:"completed"`
	CompletedAt *time.Time `json:"completedAt"`
	Notes       *string    `json:"notes"`
	Effort      *int       `json:"effort" binding:"omitempty,min=1,max=10"`
	// Absent leaves sharing unchanged; an empty list unshares.
	SharedWith []string `json:"sharedWith" binding:"omitempty,dive,objectid"`
}

type ShareWorkoutLogRequest struct {
	CoachIDs []string `json:"coachIds" binding:"required,dive,objectid"`
}

func optionalIDs(hexes []string) []primitive.ObjectID {
	if hexes == nil {
		return nil
	}
	return parseObjectIDs(hexes)
}

// --- Handler Methods ---

func (h *WorkoutLogHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req CreateWorkoutLogRequest
	if !bindJSON(c, &req) {
		return
	}
	log, err := h.workoutLogService.Create(c.Request.Context(), actor.ID, service.WorkoutLogInput{
		RegimenID:   req.RegimenID,
		DayID:       req.DayID,
		Completed:   req.Completed,
		CompletedAt: req.CompletedAt,
		Notes:       req.Notes,
		Effort:      req.Effort,
		SharedWith:  optionalIDs(req.SharedWith),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, log)
}

func (h *WorkoutLogHandler) ListMine(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	logs, err := h.workoutLogService.ListMine(c.Request.Context(), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNilLogs(logs))
}

// ListShared returns the logs athletes have shared with the calling coach.
func (h *WorkoutLogHandler) ListShared(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	logs, err := h.workoutLogService.ListSharedWithMe(c.Request.Context(), actor.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, nonNilLogs(logs))
}

func (h *WorkoutLogHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	logID, ok := pathObjectID(c, "logId")
	if !ok {
		return
	}
	log, err := h.workoutLogService.Get(c.Request.Context(), actor, logID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, log)
}

func (h *WorkoutLogHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	logID, ok := pathObjectID(c, "logId")
	if !ok {
		return
	}
	var req UpdateWorkoutLogRequest
	if !bindJSON(c, &req) {
		return
	}
	log, err := h.workoutLogService.Update(c.Request.Context(), actor.ID, logID, service.WorkoutLogPatch{
		Completed:   req.Completed,
		CompletedAt: req.CompletedAt,
		Notes:       req.Notes,
		Effort:      req.Effort,
		SharedWith:  optionalIDs(req.SharedWith),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, log)
}

// Share replaces the set of coaches the log is shared with.
func (h *WorkoutLogHandler) Share(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	logID, ok := pathObjectID(c, "logId")
	if !ok {
		return
	}
	var req ShareWorkoutLogRequest
	if !bindJSON(c, &req) {
		return
	}
	log, err := h.workoutLogService.Share(c.Request.Context(), actor.ID, logID, parseObjectIDs(req.CoachIDs))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, log)
}

func (h *WorkoutLogHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	logID, ok := pathObjectID(c, "logId")
	if !ok {
		return
	}
	if err := h.workoutLogService.Delete(c.Request.Context(), actor, logID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func nonNilLogs(logs []domain.WorkoutLog) []domain.WorkoutLog {
	if logs == nil {
		return []domain.WorkoutLog{}
	}
	return logs
}
