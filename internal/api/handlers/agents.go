package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"sequential-trader/internal/agent"
	"sequential-trader/internal/api/models"
)

// ListAgents handles GET /api/v1/agents
func ListAgents(c *gin.Context) {
	c.JSON(http.StatusOK, models.AgentsResponse{Agents: agent.Catalog()})
}
