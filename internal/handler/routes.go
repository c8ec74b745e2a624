package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/cdrp/console-gateway/internal/middleware"
	"github.com/cdrp/console-gateway/internal/models"
)

// RegisterRoutes mounts the authenticated console API on api. auth must
// place a session on the context.
func RegisterRoutes(api *gin.RouterGroup, auth gin.HandlerFunc, screens *ScreenHandler, admin *AdminHandler) {
	api.Use(auth, middleware.WithResponseMeta())

	api.GET("/dashboard", screens.Dashboard)
	api.POST("/screens", screens.Open)

	screen := api.Group("/screens/:screenId")
	screen.GET("", screens.Get)
	screen.DELETE("", screens.Close)
	screen.POST("/refresh", screens.Refresh)
	screen.POST("/search", screens.Search)
	screen.POST("/filter", screens.Filter)
	screen.POST("/page", screens.Page)
	screen.POST("/next", screens.Next)
	screen.POST("/previous", screens.Previous)
	screen.POST("/rows/:entityId/:operation", screens.Mutate)
	screen.POST("/view/:entityId", screens.View)
	screen.POST("/back", screens.Back)
	screen.POST("/edit", screens.Edit)
	screen.POST("/create", screens.Create)
	screen.POST("/cancel", screens.Cancel)
	screen.PATCH("/draft", screens.UpdateDraft)
	screen.POST("/save", screens.Save)
	screen.POST("/export", screens.Export)

	api.GET("/exports/:token", screens.Download)

	if admin != nil {
		adminGroup := api.Group("/admin", middleware.RequireRoles(models.RoleAdmin))
		adminGroup.GET("/stats", admin.Stats)
		adminGroup.GET("/audit", admin.Audit)
		adminGroup.GET("/metrics", admin.Metrics)
	}
}
