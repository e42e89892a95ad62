package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/ragbot/ragchat/internal/common"
	"github.com/ragbot/ragchat/internal/config"
	"github.com/ragbot/ragchat/internal/httpapi/handlers"
	"github.com/ragbot/ragchat/internal/httpapi/middleware"
	"github.com/ragbot/ragchat/internal/store/rabbitmq"
	"github.com/ragbot/ragchat/internal/store/redisstore"
)

func NewRouter(db *gorm.DB, cfg config.Config, rds *redisstore.Store, rabbit *rabbitmq.Publisher) *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())

	r.NoRoute(func(c *gin.Context) {
		common.Error(c, http.StatusNotFound, "route non trouvée")
	})
	r.NoMethod(func(c *gin.Context) {
		common.Error(c, http.StatusMethodNotAllowed, "méthode non autorisée")
	})

	h := handlers.NewHandler(db, cfg, rds, rabbit)

	r.GET("/ping", h.Ping)

	// auth (no session required)
	r.POST("/api/auth/signup", h.Signup)
	r.POST("/api/auth/login", h.Login)
	r.POST("/api/auth/logout", h.Logout)
	r.POST("/api/auth/check-email", h.CheckEmail)

	authGroup := r.Group("/")
	authGroup.Use(middleware.SessionRequired(h.Auth))

	authGroup.GET("/api/me", h.Me)
	authGroup.PUT("/api/user/update-profile", h.UpdateProfile)
	authGroup.POST("/api/user/change-password", h.ChangePassword)

	// conversation persistence
	authGroup.GET("/api/conversations", h.ListConversations)
	authGroup.POST("/api/conversations", h.CreateConversation)
	authGroup.GET("/api/conversations/:id", h.GetConversation)
	authGroup.PUT("/api/conversations/:id", h.AppendMessage)
	authGroup.DELETE("/api/conversations/:id", h.DeleteConversation)

	// chat orchestration
	authGroup.POST("/api/ask", h.Ask)
	authGroup.POST("/api/ask-async", h.AskAsync)
	authGroup.GET("/api/jobs/:job_id", h.GetAskJob)

	// context relevance rendering
	authGroup.GET("/api/conversations/:id/context/:message_id", h.MessageContext)
	authGroup.POST("/api/conversations/:id/context/:message_id/toggle", h.ToggleExcerpt)

	// document proxying
	authGroup.POST("/api/documents", h.UploadDocuments)
	authGroup.GET("/api/documents", h.ListDocuments)
	authGroup.DELETE("/api/documents/:filename", h.DeleteDocument)

	return r
}
