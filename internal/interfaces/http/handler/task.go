package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/procurement/backend/internal/application/job"
)

// TaskHandler lets submitters poll background jobs
type TaskHandler struct {
	BaseHandler
	jobService *job.JobService
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(jobService *job.JobService) *TaskHandler {
	return &TaskHandler{jobService: jobService}
}

// Get returns the state of a job
// @Summary      Get a background job
// @Description  Polls an import job submitted by the caller
// @Tags         tasks
// @Produce      json
// @Param        id path string true "Job ID" format(uuid)
// @Success      200 {object} dto.Response{data=task.Result}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /tasks/{id} [get]
func (h *TaskHandler) Get(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	result, err := h.jobService.GetResult(c.Request.Context(), actor, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
