package http

import "github.com/gin-gonic/gin"

// Register attaches project routes to the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("", h.list)
	rg.POST("", h.create)
	rg.GET("/stream", h.streamList)
	rg.GET("/exists", h.exists)

	rg.GET("/current", h.get)
	rg.PATCH("/current", h.update)
	rg.DELETE("/current", h.delete)
	rg.GET("/current/stream", h.streamOne)

	rg.GET("/:id", h.get)
	rg.DELETE("/:id", h.delete)
	rg.GET("/:id/stream", h.streamOne)
}
