package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"backend/internal/config"
	"backend/internal/handlers"
)

func RegisterRoutes(router *gin.Engine, tableHandler *handlers.TableHandler, auth config.AuthConfig) {
	api := router.Group("/api/v1")

	tableRoutes := NewTableRoutes(tableHandler, auth)
	tableRoutes.RegisterRoutes(api)

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
		})
	})
}
