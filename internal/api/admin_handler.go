package api

import (
	"coachshare/backend/internal/service"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// AdminHandler exposes the reconciliation procedures to admins.
type AdminHandler struct {
	reconcileService service.ReconcileService
}

func NewAdminHandler(reconcileService service.ReconcileService) *AdminHandler {
	return &AdminHandler{reconcileService: reconcileService}
}

// dryRunParam reads ?dryRun=. Absent means false.
func dryRunParam(c *gin.Context) (bool, bool) {
	raw := c.Query("dryRun")
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "dryRun must be true or false")
		return false, false
	}
	return v, true
}

func (h *AdminHandler) RepairRelationships(c *gin.Context) {
	dryRun, ok := dryRunParam(c)
	if !ok {
		return
	}
	report, err := h.reconcileService.RepairRelationships(c.Request.Context(), dryRun)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *AdminHandler) Sweep(c *gin.Context) {
	dryRun, ok := dryRunParam(c)
	if !ok {
		return
	}
	report, err := h.reconcileService.Sweep(c.Request.Context(), dryRun)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *AdminHandler) PurgeOrphans(c *gin.Context) {
	dryRun, ok := dryRunParam(c)
	if !ok {
		return
	}
	report, err := h.reconcileService.PurgeOrphans(c.Request.Context(), dryRun)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
