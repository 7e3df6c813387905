package routes

import (
	"github.com/gin-gonic/gin"

	"backend/internal/config"
	"backend/internal/handlers"
	"backend/internal/middlewares"
)

type TableRoutes struct {
	tableHandler *handlers.TableHandler
	auth         config.AuthConfig
}

func NewTableRoutes(tableHandler *handlers.TableHandler, auth config.AuthConfig) *TableRoutes {
	return &TableRoutes{
		tableHandler: tableHandler,
		auth:         auth,
	}
}

func (r *TableRoutes) RegisterRoutes(router *gin.RouterGroup) {
	tables := router.Group("/tables")
	tables.Use(middlewares.Authenticate(r.auth), middlewares.RequireAdmin())
	{
		tables.GET("", r.tableHandler.ListTables)
		tables.GET("/:name", r.tableHandler.GetRows)
		tables.GET("/:name/schema", r.tableHandler.GetSchema)
		tables.POST("/:name", r.tableHandler.InsertRow)
		tables.PUT("/:name/:id", r.tableHandler.UpdateRow)
		tables.DELETE("/:name/:id", r.tableHandler.DeleteRow)
	}
}
