package controller

import (
	"time"

	"placement_backend/internal/service"
	"placement_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type PlacementAdminController struct {
	AdminService *service.PlacementAdminService
}

func NewPlacementAdminController(adminService *service.PlacementAdminService) *PlacementAdminController {
	return &PlacementAdminController{AdminService: adminService}
}

func actorFrom(ctx *gin.Context) (service.Actor, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return service.Actor{}, false
	}
	return service.Actor{UserID: user.UserID, Role: user.Role}, true
}

// @Summary Create a placement test draft
// @Tags placement-admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param test body service.TestRequest true "test"
// @Success 201 {object} util.Response
// @Router /api/teacher/placement-tests [post]
func (c *PlacementAdminController) CreateTest(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	var req service.TestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	test, err := c.AdminService.CreateTest(ctx.Request.Context(), actor, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Created(ctx, test)
}

// @Summary List placement tests
// @Tags placement-admin
// @Produce json
// @Security BearerAuth
// @Param page query int false "page" default(1)
// @Param limit query int false "page size" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/teacher/placement-tests [get]
func (c *PlacementAdminController) ListTests(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	page, limit := util.PageParams(ctx.Query("page"), ctx.Query("limit"), util.DefaultPageLimit, util.MaxPageLimit)
	rows, total, err := c.AdminService.ListTests(ctx.Request.Context(), actor, page, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Paged(ctx, rows, total, page, limit)
}

// @Summary Get a placement test with answers
// @Tags placement-admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "test id"
// @Success 200 {object} util.Response{data=service.TestDetail}
// @Router /api/teacher/placement-tests/{id} [get]
func (c *PlacementAdminController) GetTest(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	detail, err := c.AdminService.GetTest(ctx.Request.Context(), actor, id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// @Summary Update a draft
// @Tags placement-admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "test id"
// @Param test body service.TestRequest true "test"
// @Success 200 {object} util.Response
// @Router /api/teacher/placement-tests/{id} [put]
func (c *PlacementAdminController) UpdateTest(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	var req service.TestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	test, err := c.AdminService.UpdateTest(ctx.Request.Context(), actor, id, req)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, test)
}

// @Summary Publish a draft
// @Tags placement-admin
// @Security BearerAuth
// @Param id path int true "test id"
// @Success 200 {object} util.Response
// @Router /api/teacher/placement-tests/{id}/publish [post]
func (c *PlacementAdminController) PublishTest(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	if err := c.AdminService.PublishTest(ctx.Request.Context(), actor, id); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": id, "status": "published"})
}

// @Summary Archive a published test
// @Tags placement-admin
// @Security BearerAuth
// @Param id path int true "test id"
// @Success 200 {object} util.Response
// @Router /api/teacher/placement-tests/{id}/archive [post]
func (c *PlacementAdminController) ArchiveTest(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	if err := c.AdminService.ArchiveTest(ctx.Request.Context(), actor, id); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": id, "status": "archived"})
}

type scheduleRequest struct {
	PublishAt *time.Time `json:"publish_at"`
}

// @Summary Schedule or cancel automatic publishing
// @Description publish_at in RFC 3339; null cancels the schedule.
// @Tags placement-admin
// @Accept json
// @Security BearerAuth
// @Param id path int true "test id"
// @Success 200 {object} util.Response
// @Router /api/teacher/placement-tests/{id}/schedule [post]
func (c *PlacementAdminController) SchedulePublish(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	var req scheduleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.AdminService.SchedulePublish(ctx.Request.Context(), actor, id, req.PublishAt); err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"id": id, "scheduled_publish_at": req.PublishAt})
}

// @Summary Get courses recommended per level
// @Tags placement-admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "test id"
// @Success 200 {object} util.Response
// @Router /api/teacher/placement-tests/{id}/module-assignments [get]
func (c *PlacementAdminController) GetModuleAssignments(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	assignments, err := c.AdminService.GetModuleAssignments(ctx.Request.Context(), actor, id)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Success(ctx, assignments)
}

// @Summary Replace courses recommended per level
// @Tags placement-admin
// @Accept json
// @Security BearerAuth
// @Param id path int true "test id"
// @Success 200 {object} util.Response
// @Router /api/teacher/placement-tests/{id}/module-assignments [put]
func (c *PlacementAdminController) SetModuleAssignments(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	var req map[string][]service.ModuleRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.AdminService.SetModuleAssignments(ctx.Request.Context(), actor, id, req); err != nil {
		respondError(ctx, err)
		return
	}
	c.GetModuleAssignments(ctx)
}

// @Summary List stored results of a test
// @Tags placement-admin
// @Produce json
// @Security BearerAuth
// @Param id path int true "test id"
// @Param page query int false "page" default(1)
// @Param limit query int false "page size" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/teacher/placement-tests/{id}/results [get]
func (c *PlacementAdminController) ListResults(ctx *gin.Context) {
	actor, ok := actorFrom(ctx)
	if !ok {
		return
	}
	id, ok := parseID(ctx)
	if !ok {
		return
	}
	page, limit := util.PageParams(ctx.Query("page"), ctx.Query("limit"), util.DefaultPageLimit, util.MaxPageLimit)
	results, total, err := c.AdminService.ListResults(ctx.Request.Context(), actor, id, page, limit)
	if err != nil {
		respondError(ctx, err)
		return
	}
	util.Paged(ctx, results, total, page, limit)
}
