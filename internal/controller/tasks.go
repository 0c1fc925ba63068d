package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"taskvault/internal/apierr"
	"taskvault/internal/middleware"
	"taskvault/internal/service"
)

// TaskController exposes the task CRUD and admin summary endpoints.
// Handlers stay thin: bind, call the service, record errors for the
// centralized formatter.
type TaskController struct {
	svc *service.TaskService
}

func NewTaskController(svc *service.TaskService) *TaskController {
	return &TaskController{svc: svc}
}

type createTaskRequest struct {
	Title       string `json:"title" binding:"required,min=2,max=200"`
	Description string `json:"description" binding:"max=1000"`
	Status      string `json:"status" binding:"omitempty,oneof=todo in_progress done"`
}

type updateTaskRequest struct {
	Title       *string `json:"title" binding:"omitempty,min=2,max=200"`
	Description *string `json:"description" binding:"omitempty,max=1000"`
	Status      *string `json:"status" binding:"omitempty,oneof=todo in_progress done"`
}

// List handles GET /api/v1/tasks. The service returns the serialized
// payload (possibly straight from cache), so it is written as raw JSON.
func (t *TaskController) List(c *gin.Context) {
	p, ok := middleware.Principal(c)
	if !ok {
		_ = c.Error(apierr.Unauthenticated("Authentication required"))
		return
	}
	b, err := t.svc.List(c.Request.Context(), p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Data(http.StatusOK, "application/json", b)
}

// Create handles POST /api/v1/tasks.
func (t *TaskController) Create(c *gin.Context) {
	p, ok := middleware.Principal(c)
	if !ok {
		_ = c.Error(apierr.Unauthenticated("Authentication required"))
		return
	}
	var body createTaskRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(bindError(err))
		return
	}
	task, err := t.svc.Create(c.Request.Context(), p, service.CreateTaskInput{
		Title:       body.Title,
		Description: body.Description,
		Status:      body.Status,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"task": task})
}

// Update handles PUT /api/v1/tasks/:id. Absent fields are left
// unchanged; an empty body is a valid no-op write.
func (t *TaskController) Update(c *gin.Context) {
	p, ok := middleware.Principal(c)
	if !ok {
		_ = c.Error(apierr.Unauthenticated("Authentication required"))
		return
	}
	var body updateTaskRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(bindError(err))
		return
	}
	task, err := t.svc.Update(c.Request.Context(), p, c.Param("id"), service.UpdateTaskInput{
		Title:       body.Title,
		Description: body.Description,
		Status:      body.Status,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task})
}

// Delete handles DELETE /api/v1/tasks/:id.
func (t *TaskController) Delete(c *gin.Context) {
	p, ok := middleware.Principal(c)
	if !ok {
		_ = c.Error(apierr.Unauthenticated("Authentication required"))
		return
	}
	if err := t.svc.Delete(c.Request.Context(), p, c.Param("id")); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task deleted"})
}

// Summary handles GET /api/v1/tasks/admin/summary. Always computed
// live; the role gate lives in the service.
func (t *TaskController) Summary(c *gin.Context) {
	p, ok := middleware.Principal(c)
	if !ok {
		_ = c.Error(apierr.Unauthenticated("Authentication required"))
		return
	}
	counts, err := t.svc.Summary(c.Request.Context(), p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summary": counts})
}
