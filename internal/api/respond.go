package api

import (
	"coachshare/backend/internal/service"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// statusForKind maps a service error kind to an HTTP status code.
func statusForKind(kind service.Kind) int {
	switch kind {
	case service.KindInvalidInput:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError aborts with the status for err's kind. Internal errors expose a
// generic message; the cause is added only outside release mode.
func respondError(c *gin.Context, err error) {
	kind := service.KindOf(err)
	status := statusForKind(kind)
	body := gin.H{"error": err.Error(), "code": kind.String()}

	if kind == service.KindInternal {
		var se *service.Error
		if errors.As(err, &se) {
			body["error"] = se.Message
		} else {
			body["error"] = "internal error"
		}
		if gin.Mode() != gin.ReleaseMode {
			body["detail"] = fmt.Sprintf("%+v", err)
		}
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}

// bindJSON binds and validates the request body, aborting with 400 on failure.
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return false
	}
	return true
}

// pathObjectID parses the named path parameter as an ObjectID.
func pathObjectID(c *gin.Context, name string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(name))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, fmt.Sprintf("Invalid %s format.", name))
		return primitive.NilObjectID, false
	}
	return id, true
}

// parseObjectIDs converts validated hex strings into ObjectIDs.
func parseObjectIDs(hexes []string) []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(hexes))
	for _, h := range hexes {
		if id, err := primitive.ObjectIDFromHex(h); err == nil {
			ids = append(ids, id)
		}
	}
	return ids
}

// validObjectID is the "objectid" binding tag.
func validObjectID(fl validator.FieldLevel) bool {
	return primitive.IsValidObjectID(fl.Field().String())
}

// RegisterValidators adds the custom binding tags to gin's validator.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected binding validator engine")
	}
	return v.RegisterValidation("objectid", validObjectID)
}

func hexIDs(ids []primitive.ObjectID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}
