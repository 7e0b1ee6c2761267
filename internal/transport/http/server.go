package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"janus-rag/internal/bootstrap"
	"janus-rag/internal/transport/http/handler"
	"janus-rag/internal/transport/http/middleware"
)

type AuthService interface {
	handler.AuthService
	middleware.Authenticator
}

type Services struct {
	Auth      AuthService
	Documents handler.DocumentService
	Chat      handler.ChatService
}

type RouterOptions struct {
	ServiceName    string
	GinMode        string
	CORSOrigins    []string
	MaxUploadBytes int64
	Health         *handler.HealthHandler
}

func NewRouter(app *bootstrap.App) *gin.Engine {
	checks := make(map[string]handler.Check)
	for name, check := range app.HealthChecks() {
		checks[name] = check
	}
	return NewRouterWith(Services{
		Auth:      app.AuthService,
		Documents: app.DocumentService,
		Chat:      app.ChatService,
	}, RouterOptions{
		ServiceName:    app.Config.App.Name,
		GinMode:        app.Config.App.GinMode,
		CORSOrigins:    app.Config.App.CORSOrigins,
		MaxUploadBytes: app.Config.MaxUploadBytes(),
		Health:         handler.NewHealthHandler(app.Config.App.Name, app.Config.App.Env, app.StartedAt, checks),
	})
}

func NewRouterWith(svc Services, opts RouterOptions) *gin.Engine {
	if opts.GinMode != "" {
		gin.SetMode(opts.GinMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	if opts.ServiceName != "" {
		router.Use(otelgin.Middleware(opts.ServiceName))
	}
	if len(opts.CORSOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if opts.MaxUploadBytes > 0 {
		// leave room for the multipart envelope around the file
		router.MaxMultipartMemory = opts.MaxUploadBytes + 1<<20
	}

	if opts.Health != nil {
		router.GET("/healthz", opts.Health.Check)
	}

	authHandler := handler.NewAuthHandler(svc.Auth)
	documentHandler := handler.NewDocumentHandler(svc.Documents, opts.MaxUploadBytes)
	chatHandler := handler.NewChatHandler(svc.Chat)
	requireUser := middleware.AuthJWT(svc.Auth)

	api := router.Group("/api")
	authGroup := api.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", requireUser, authHandler.Me)

	documentGroup := api.Group("/documents")
	documentGroup.Use(requireUser)
	documentGroup.POST("/upload", documentHandler.Upload)
	documentGroup.GET("", documentHandler.List)
	documentGroup.GET("/:id", documentHandler.Get)
	documentGroup.DELETE("/:id", documentHandler.Delete)

	chatGroup := api.Group("/chat")
	chatGroup.Use(requireUser)
	chatGroup.POST("/message", chatHandler.SendMessage)
	chatGroup.GET("/sessions", chatHandler.ListSessions)
	chatGroup.GET("/sessions/:session_id/messages", chatHandler.ListSessionMessages)
	chatGroup.DELETE("/sessions/:session_id", chatHandler.DeleteSession)

	return router
}
