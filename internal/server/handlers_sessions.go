package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dotcommander/sparkq/internal/core"
	"github.com/dotcommander/sparkq/internal/models"
)

type createSessionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleCreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, models.Validationf("invalid request body: %v", err))
		return
	}

	session, err := s.core.CreateSession(req.Name, req.Description)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (s *Server) handleListSessions(c *gin.Context) {
	sessions, err := s.core.ListSessions()
	if err != nil {
		s.writeError(c, err)
		return
	}
	if sessions == nil {
		sessions = []*models.Session{}
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (s *Server) handleGetSession(c *gin.Context) {
	session, err := s.core.GetSession(c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

type updateSessionRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	End         bool    `json:"end"`
}

func (s *Server) handleUpdateSession(c *gin.Context) {
	var req updateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, models.Validationf("invalid request body: %v", err))
		return
	}

	session, err := s.core.UpdateSession(c.Param("id"), core.SessionPatch{
		Name:        req.Name,
		Description: req.Description,
		End:         req.End,
	})
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	cascade := c.Query("cascade") == "true"
	if err := s.core.DeleteSession(c.Param("id"), cascade); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": c.Param("id")})
}
