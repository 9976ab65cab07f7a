package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"market-clearing/internal/api/models"
	"market-clearing/internal/coordination"
)

// ListCoordinators handles GET /api/v1/coordinators
func ListCoordinators(c *gin.Context) {
	coordinators := []models.CoordinatorInfo{}
	coordinators = append(coordinators, coordination.Available()...)
	c.JSON(http.StatusOK, gin.H{"coordinators": coordinators})
}
