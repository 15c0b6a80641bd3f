package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SetupRouter creates and configures the Gin router.
func SetupRouter(api *API) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	// Playback control endpoints
	playbackGroup := r.Group("/playback")
	{
		playbackGroup.GET("/status", api.Status)
		playbackGroup.POST("/stop", api.Stop)
		playbackGroup.POST("/next", api.Next)
		playbackGroup.POST("/previous", api.Previous)
		playbackGroup.POST("/volume", api.Volume)
		playbackGroup.POST("/backend", api.Backend)
	}

	// Per-entity endpoints
	entities := r.Group("/entities/:id")
	{
		entities.POST("/play", api.Play)
		entities.POST("/shuffle", api.Shuffle)
	}

	// Settings and credentials
	r.GET("/settings", api.GetSettings)
	r.PUT("/settings", api.PutSettings)
	r.PUT("/credentials/:provider", api.PutCredential)
	r.DELETE("/credentials/:provider", api.DeleteCredential)

	// Last.fm desktop authorization
	r.POST("/lastfm/auth", api.LastfmAuth)
	r.POST("/lastfm/session", api.LastfmSession)

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
