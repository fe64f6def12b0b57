package devserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/aristath/testscriptgen/internal/api"
)

func ownerOf(c *gin.Context) int64 {
	return c.GetInt64(ctxUserID)
}

// taskID parses the :id path parameter, answering 422 when it is not an integer.
func taskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": []api.ValidationError{{
			Loc:  []any{"path", "id"},
			Msg:  "value is not a valid integer",
			Type: "type_error.integer",
		}}})
		return 0, false
	}
	return id, true
}

// storeError maps a task store error onto the backend's status codes.
func storeError(c *gin.Context, err error) {
	switch errors.Cause(err) {
	case errTaskNotFound:
		abortDetail(c, http.StatusNotFound, "Task not found")
	case errResultNotFound:
		abortDetail(c, http.StatusNotFound, "Result not found")
	case errTaskRunning:
		abortDetail(c, http.StatusBadRequest, "Task is already running")
	default:
		abortDetail(c, http.StatusInternalServerError, err.Error())
	}
}

func badBody(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": []api.ValidationError{{
		Loc:  []any{"body"},
		Msg:  err.Error(),
		Type: "value_error.jsondecode",
	}}})
}

func (s *Server) handleListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, s.store.list(ownerOf(c)))
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req api.CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": []api.ValidationError{
			fieldRequired("body", "task_name"),
		}})
		return
	}

	task := s.store.create(ownerOf(c), req)
	s.log.WithField("task_id", task.ID).Info("task created")
	c.JSON(http.StatusCreated, task)
}

func (s *Server) handleGetTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	task, err := s.store.get(ownerOf(c), id)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	if err := s.store.delete(ownerOf(c), id); err != nil {
		storeError(c, err)
		return
	}
	s.mu.Lock()
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	s.mu.Unlock()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleAgentSettings(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var body api.AgentSettings
	if err := c.ShouldBindJSON(&body); err != nil {
		badBody(c, err)
		return
	}
	task, err := s.store.update(ownerOf(c), id, func(t *api.Task) { applyAgent(t, body) })
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleBrowserSettings(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var body api.BrowserSettings
	if err := c.ShouldBindJSON(&body); err != nil {
		badBody(c, err)
		return
	}
	task, err := s.store.update(ownerOf(c), id, func(t *api.Task) { applyBrowser(t, body) })
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleInitiate(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	var req api.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}
	if strings.TrimSpace(req.Instruction) == "" {
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"detail": []api.ValidationError{
			fieldRequired("body", "instruction"),
		}})
		return
	}

	task, err := s.store.start(ownerOf(c), id, req)
	if err != nil {
		storeError(c, err)
		return
	}
	s.schedule(task)
	s.log.WithField("task_id", id).Info("task initiated")
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleResult(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	result, err := s.store.result(ownerOf(c), id)
	if err != nil {
		storeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleStatic(c *gin.Context) {
	name := c.Param("name")
	body, err := s.store.artefact(name)
	if err != nil {
		abortDetail(c, http.StatusNotFound, "Not Found")
		return
	}
	contentType := "text/x-python; charset=utf-8"
	if strings.HasSuffix(name, ".gif") {
		contentType = "image/gif"
	}
	c.Data(http.StatusOK, contentType, body)
}
