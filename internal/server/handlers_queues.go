package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dotcommander/sparkq/internal/models"
	"github.com/dotcommander/sparkq/internal/store"
)

type createQueueRequest struct {
	SessionID    string `json:"session_id"`
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
}

func (s *Server) handleCreateQueue(c *gin.Context) {
	var req createQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, models.Validationf("invalid request body: %v", err))
		return
	}

	queue, err := s.core.CreateQueue(req.SessionID, req.Name, req.Instructions)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, queue)
}

func (s *Server) handleListQueues(c *gin.Context) {
	queues, err := s.core.ListQueues(c.Query("session_id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if queues == nil {
		queues = []*models.Queue{}
	}
	c.JSON(http.StatusOK, gin.H{"queues": queues})
}

func (s *Server) handleGetQueue(c *gin.Context) {
	queue, err := s.core.GetQueue(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, queue)
}

func (s *Server) handleGetQueueByName(c *gin.Context) {
	queue, err := s.core.GetQueueByName(c.Param("name"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, queue)
}

// handlePeekQueue returns the queue head without claiming it. 204 when
// the queue has nothing queued.
func (s *Server) handlePeekQueue(c *gin.Context) {
	task, err := s.core.Peek(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	if task == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, task)
}

type updateQueueRequest struct {
	Name                *string `json:"name"`
	Instructions        *string `json:"instructions"`
	Status              *string `json:"status"`
	DefaultAgentRoleKey *string `json:"default_agent_role_key"`
	CodexSessionID      *string `json:"codex_session_id"`
	ModelProfile        *string `json:"model_profile"`
}

func (s *Server) handleUpdateQueue(c *gin.Context) {
	var req updateQueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, models.Validationf("invalid request body: %v", err))
		return
	}

	upd := store.QueueUpdate{
		Name:                req.Name,
		Instructions:        req.Instructions,
		DefaultAgentRoleKey: req.DefaultAgentRoleKey,
		CodexSessionID:      req.CodexSessionID,
		ModelProfile:        req.ModelProfile,
	}
	if req.Status != nil {
		status := models.QueueStatus(*req.Status)
		upd.Status = &status
	}

	queue, err := s.core.UpdateQueue(c.Param("id"), upd)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, queue)
}

func (s *Server) handleArchiveQueue(c *gin.Context) {
	queue, err := s.core.ArchiveQueue(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, queue)
}

func (s *Server) handleUnarchiveQueue(c *gin.Context) {
	queue, err := s.core.UnarchiveQueue(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, queue)
}

func (s *Server) handleDeleteQueue(c *gin.Context) {
	cascade := c.Query("cascade") == "true"
	if err := s.core.DeleteQueue(c.Param("id"), cascade); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}

func (s *Server) handleQueuesWithQueued(c *gin.Context) {
	out, err := s.core.QueuesWithQueuedTasks()
	if err != nil {
		s.writeError(c, err)
		return
	}
	if out == nil {
		out = []*models.QueueQueuedCount{}
	}
	c.JSON(http.StatusOK, gin.H{"queues": out})
}
