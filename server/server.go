package server

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	gintrace "gopkg.in/DataDog/dd-trace-go.v1/contrib/gin-gonic/gin"
)

// NewRouter builds the control surface router with the default gin logging
// and recovery middlewares, permissive CORS and Datadog tracing.
func NewRouter(serviceName string, handler *ApiHandler) *gin.Engine {
	router := gin.Default()
	router.Use(cors.Default())
	router.Use(gintrace.Middleware(serviceName))

	RegisterRoutes(router, handler)
	return router
}

// RegisterRoutes attaches the API routes to the given router. Split from
// NewRouter so tests can mount the handlers on a bare gin engine.
func RegisterRoutes(router *gin.Engine, handler *ApiHandler) {
	api := router.Group("/api")

	api.POST("/run/start", handler.StartRun)
	api.GET("/run/status", handler.RunStatus)
	api.POST("/run/cancel", handler.CancelRun)
	api.GET("/run/history", handler.RunHistory)

	api.GET("/activity", handler.Activity)

	api.GET("/timer", handler.TimerState)
	api.POST("/timer", handler.ConfigureTimer)

	api.POST("/articles", handler.SubmitArticles)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
}
