// Package routes assembles the gin engine of every service.
package routes

import (
	"log/slog"
	"net/http"
	"time"

	"socialhub/gateway"
	"socialhub/handlers"
	"socialhub/middleware"
	"socialhub/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Base is what every router shares. General applies to every route but
// /health, Sensitive only to endpoints that create data or burn CPU. Either
// may be nil.
type Base struct {
	Service        string
	Logger         *slog.Logger
	TrustedProxies []string
	General        gin.HandlerFunc
	Sensitive      gin.HandlerFunc
}

func newEngine(b Base, extra ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	if err := router.SetTrustedProxies(b.TrustedProxies); err != nil {
		b.Logger.Warn("ignoring trusted proxies", "error", err)
	}

	router.Use(
		gin.CustomRecovery(func(c *gin.Context, recovered any) {
			b.Logger.Error("panic recovered", "path", c.Request.URL.Path, "panic", recovered)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Internal server error"})
		}),
		middleware.RequestID(),
		middleware.RequestLogger(b.Logger),
	)
	router.Use(extra...)

	router.GET("/health", handlers.Health(b.Service))

	if b.General != nil {
		router.Use(b.General)
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Endpoint not found", "path": c.Request.URL.Path})
	})
	return router
}

func sensitive(b Base, h gin.HandlerFunc) []gin.HandlerFunc {
	if b.Sensitive == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{b.Sensitive, h}
}

func SetupIdentityRouter(b Base, auth *handlers.AuthHandler) *gin.Engine {
	router := newEngine(b)

	api := router.Group("/api/auth")
	api.POST("/register", sensitive(b, auth.Register)...)
	api.POST("/login", sensitive(b, auth.Login)...)
	api.POST("/refresh-token", auth.RefreshToken)
	api.POST("/logout", auth.Logout)

	return router
}

// SetupPostRouter wires the post API. hub may be nil when the live feed is
// disabled.
func SetupPostRouter(b Base, posts *handlers.PostHandler, hub *websocket.Hub) *gin.Engine {
	router := newEngine(b)

	api := router.Group("/api/posts")
	api.Use(middleware.RequireUser())
	api.POST("/create-post", sensitive(b, posts.CreatePost)...)
	api.GET("/get-all-posts", posts.GetAllPosts)
	api.GET("/get-post/:postId", posts.GetPost)
	api.DELETE("/delete-post/:postId", posts.DeletePost)
	if hub != nil {
		api.GET("/live", hub.ServeWS)
	}

	return router
}

func SetupMediaRouter(b Base, media *handlers.MediaHandler) *gin.Engine {
	router := newEngine(b)

	api := router.Group("/api/media")
	api.Use(middleware.RequireUser())
	api.POST("/upload", sensitive(b, media.Upload)...)
	api.GET("/get", media.List)

	return router
}

func SetupSearchRouter(b Base, search *handlers.SearchHandler) *gin.Engine {
	router := newEngine(b)

	api := router.Group("/api/search")
	api.Use(middleware.RequireUser())
	api.GET("/posts", sensitive(b, search.SearchPosts)...)

	return router
}

// SetupGatewayRouter puts CORS ahead of the rate limiter so rejected
// browser requests still carry CORS headers.
func SetupGatewayRouter(b Base, gw *gateway.Gateway, allowedOrigins []string) *gin.Engine {
	router := newEngine(b, cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Type", middleware.RequestIDHeader, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		AllowWebSockets:  true,
		MaxAge:           12 * time.Hour,
	}))

	router.Any("/v1/*path", gw.Dispatch)

	return router
}
