package api

import (
	"coachshare/backend/internal/domain"
	"coachshare/backend/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

type RegimenHandler struct {
	regimenService service.RegimenService
}

func NewRegimenHandler(regimenService service.RegimenService) *RegimenHandler {
	return &RegimenHandler{regimenService: regimenService}
}

// --- DTOs ---

type RegimenDayRequest struct {
	ID          string  `json:"id"`
	Title       string  `json:"title" binding:"required"`
	Description string  `json:"description"`
	Distance    float64 `json:"distance" binding:"gte=0"`
	TargetTime  string  `json:"targetTime"`
}

type RegimenRequest struct {
	Name        string              `json:"name" binding:"required"`
	Description string              `json:"description"`
	Days        []RegimenDayRequest `json:"days" binding:"dive"`
}

func (r RegimenRequest) toInput() service.RegimenInput {
	days := make([]domain.RegimenDay, len(r.Days))
	for i, d := range r.Days {
		days[i] = domain.RegimenDay{
			ID:          d.ID,
			Title:       d.Title,
			Description: d.Description,
			Distance:    d.Distance,
			TargetTime:  d.TargetTime,
		}
	}
	return service.RegimenInput{Name: r.Name, Description: r.Description, Days: days}
}

// --- Handler Methods ---

func (h *RegimenHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req RegimenRequest
	if !bindJSON(c, &req) {
		return
	}
	regimen, err := h.regimenService.Create(c.Request.Context(), actor.ID, req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, regimen)
}

// List returns the coach's own regimens, or the regimens assigned to an athlete.
func (h *RegimenHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var (
		regimens []domain.Regimen
		err      error
	)
	switch actor.Role {
	case domain.RoleCoach:
		regimens, err = h.regimenService.ListForCoach(c.Request.Context(), actor.ID)
	case domain.RoleAthlete:
		regimens, err = h.regimenService.ListForAthlete(c.Request.Context(), actor.ID)
	default:
		abortWithError(c, http.StatusForbidden, "Access denied: only coaches and athletes have regimens")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	if regimens == nil {
		regimens = []domain.Regimen{}
	}
	c.JSON(http.StatusOK, regimens)
}

// Get accepts either the regimen UUID or its store id.
func (h *RegimenHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	regimen, err := h.regimenService.Get(c.Request.Context(), actor, c.Param("regimenId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, regimen)
}

func (h *RegimenHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req RegimenRequest
	if !bindJSON(c, &req) {
		return
	}
	regimen, err := h.regimenService.Update(c.Request.Context(), actor.ID, c.Param("regimenId"), req.toInput())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, regimen)
}

func (h *RegimenHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.regimenService.Delete(c.Request.Context(), actor, c.Param("regimenId")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Assign is idempotent: a repeat call answers 200 with alreadyAssigned.
func (h *RegimenHandler) Assign(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	athleteID, ok := pathObjectID(c, "athleteId")
	if !ok {
		return
	}
	res, err := h.regimenService.Assign(c.Request.Context(), actor.ID, c.Param("regimenId"), athleteID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *RegimenHandler) Unassign(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	athleteID, ok := pathObjectID(c, "athleteId")
	if !ok {
		return
	}
	res, err := h.regimenService.Unassign(c.Request.Context(), actor.ID, c.Param("regimenId"), athleteID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
