package handler

import (
	"member-core/internal/handler/response"

	"github.com/gin-gonic/gin"
)

func HealthCheck(c *gin.Context) {
	response.Success(c, gin.H{
		"status":  "UP",
		"service": "member-server",
	})
}
