package api

import (
	"coachshare/backend/internal/service"
	"errors"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
)

// ToolsHandler serves stateless calculators.
type ToolsHandler struct{}

func NewToolsHandler() *ToolsHandler {
	return &ToolsHandler{}
}

// TargetTime accepts either a JSON number of seconds or a string ("75.5",
// "1:15.50").
type TargetTime struct {
	Text    string
	Seconds float64
	IsText  bool
}

func (t *TargetTime) UnmarshalJSON(data []byte) error {
	var raw any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		*t = TargetTime{Text: v, IsText: true}
	case float64:
		*t = TargetTime{Seconds: v}
	case nil:
		*t = TargetTime{}
	default:
		return errors.New("targetTime must be a number or a string")
	}
	return nil
}

type PaceRequest struct {
	TotalDistance float64    `json:"totalDistance"`
	TargetTime    TargetTime `json:"targetTime"`
	EffortPercent *float64   `json:"effortPercent"`
}

// CalculatePace returns training splits for a target time. Effort defaults to 100%.
func (h *ToolsHandler) CalculatePace(c *gin.Context) {
	var req PaceRequest
	if !bindJSON(c, &req) {
		return
	}
	effort := 100.0
	if req.EffortPercent != nil {
		effort = *req.EffortPercent
	}

	var (
		res *service.PaceResult
		err error
	)
	if req.TargetTime.IsText {
		res, err = service.CalculatePace(req.TotalDistance, req.TargetTime.Text, effort)
	} else {
		res, err = service.CalculatePaceSeconds(req.TotalDistance, req.TargetTime.Seconds, effort)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
