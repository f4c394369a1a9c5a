package controller

import (
	"placement_backend/internal/service"
	"placement_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type PlacementController struct {
	PlacementService *service.PlacementService
}

func NewPlacementController(placementService *service.PlacementService) *PlacementController {
	return &PlacementController{PlacementService: placementService}
}

// @Summary Get a published placement test
// @Tags placement
// @Produce json
// @Security BearerAuth
// @Param id path int true "test id"
// @Success 200 {object} util.Response{data=service.StudentTestView}
// @Router /api/placement-tests/{id} [get]
func (c *PlacementController) GetTest(ctx *gin.Context) {
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	view, err := c.PlacementService.GetStudentTest(ctx.Request.Context(), id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// @Summary Submit placement test answers
// @Description Scores the answers, stores the result and returns the recommended level. A student can submit each test once.
// @Tags placement
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param submission body service.SubmitRequest true "answers keyed by question index"
// @Success 201 {object} util.Response{data=service.SubmitResponse}
// @Failure 409 {object} util.Response
// @Router /api/placement-tests/submit [post]
func (c *PlacementController) Submit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.SubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	resp, err := c.PlacementService.Submit(ctx.Request.Context(), user.UserID, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, resp)
}

// @Summary Get my placement result
// @Tags placement
// @Produce json
// @Security BearerAuth
// @Param id path int true "test id"
// @Success 200 {object} util.Response{data=service.SubmitResponse}
// @Router /api/placement-tests/{id}/result [get]
func (c *PlacementController) GetMyResult(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	resp, err := c.PlacementService.GetMyResult(ctx.Request.Context(), user.UserID, id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, resp)
}
