package controller

import (
	"errors"

	"placement_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// respondError maps service errors onto HTTP statuses. Anything unrecognised
// is logged and reported as a 500.
func respondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, util.ErrInvalidSubmission), errors.Is(err, util.ErrInvalidTest):
		util.BadRequest(ctx, err.Error())
	case errors.Is(err, util.ErrPermissionDenied):
		util.Forbidden(ctx)
	case errors.Is(err, util.ErrTestNotFound), errors.Is(err, util.ErrResultNotFound):
		util.NotFound(ctx, err.Error())
	case errors.Is(err, util.ErrDuplicateSubmission),
		errors.Is(err, util.ErrTestNotEditable),
		errors.Is(err, util.ErrInvalidTransition):
		util.Conflict(ctx, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}

func parseID(ctx *gin.Context) (uint, bool) {
	id := util.MustParseUint(ctx.Param("id"))
	if id == 0 {
		util.BadRequest(ctx, "invalid id")
		return 0, false
	}
	return id, true
}
