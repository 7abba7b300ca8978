package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/dotcommander/sparkq/internal/core"
	"github.com/dotcommander/sparkq/internal/models"
	"github.com/dotcommander/sparkq/internal/store"
)

type enqueueTaskRequest struct {
	QueueID      string          `json:"queue_id"`
	ToolName     string          `json:"tool_name"`
	Payload      json.RawMessage `json:"payload"`
	Timeout      int             `json:"timeout"`
	AgentRoleKey string          `json:"agent_role_key"`
}

func (s *Server) handleEnqueueTask(c *gin.Context) {
	var req enqueueTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, models.Validationf("invalid request body: %v", err))
		return
	}

	task, err := s.core.Enqueue(core.EnqueueParams{
		QueueID:        req.QueueID,
		ToolName:       req.ToolName,
		Payload:        req.Payload,
		TimeoutSeconds: req.Timeout,
		AgentRoleKey:   req.AgentRoleKey,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) handleListTasks(c *gin.Context) {
	filters := store.TaskFilters{
		QueueID:   c.Query("queue_id"),
		Status:    models.TaskStatus(c.Query("status")),
		StaleOnly: c.Query("stale") == "true",
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(c, models.Validationf("invalid limit: %s", v))
			return
		}
		filters.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(c, models.Validationf("invalid offset: %s", v))
			return
		}
		filters.Offset = n
	}

	tasks, total, err := s.core.ListTasks(filters)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if tasks == nil {
		tasks = []*models.Task{}
	}
	c.JSON(http.StatusOK, gin.H{"tasks": tasks, "total": total})
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, err := s.core.GetTask(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleTaskEvents(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(c, models.Validationf("invalid limit: %s", v))
			return
		}
		limit = n
	}

	events, err := s.core.TaskEvents(c.Param("id"), limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	if events == nil {
		events = []*models.TaskEvent{}
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

type updateTaskRequest struct {
	Payload      json.RawMessage `json:"payload"`
	Timeout      *int            `json:"timeout"`
	AgentRoleKey *string         `json:"agent_role_key"`
}

func (s *Server) handleUpdateTask(c *gin.Context) {
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, models.Validationf("invalid request body: %v", err))
		return
	}

	task, err := s.core.UpdateTask(c.Param("id"), store.TaskUpdate{
		Payload:        req.Payload,
		TimeoutSeconds: req.Timeout,
		AgentRoleKey:   req.AgentRoleKey,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	if err := s.core.DeleteTask(c.Param("id")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

func (s *Server) handleClaimTask(c *gin.Context) {
	desc, err := s.core.Claim(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, desc)
}

type completeTaskRequest struct {
	ResultSummary string          `json:"result_summary"`
	ResultData    json.RawMessage `json:"result_data"`
}

func (s *Server) handleCompleteTask(c *gin.Context) {
	var req completeTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, models.Validationf("invalid request body: %v", err))
		return
	}

	task, err := s.core.Complete(c.Param("id"), req.ResultSummary, req.ResultData)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

type failTaskRequest struct {
	ErrorMessage string `json:"error_message"`
	ErrorType    string `json:"error_type"`
}

func (s *Server) handleFailTask(c *gin.Context) {
	var req failTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, models.Validationf("invalid request body: %v", err))
		return
	}

	msg := req.ErrorMessage
	if req.ErrorType != "" {
		msg = req.ErrorType + ": " + msg
	}
	task, err := s.core.Fail(c.Param("id"), msg)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleRequeueTask(c *gin.Context) {
	clone, err := s.core.Requeue(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, clone)
}
