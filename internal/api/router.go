package api

import (
	"net/http"

	"go-share-portal/internal/middleware"
	"go-share-portal/internal/notify"
	"go-share-portal/internal/repository"
	"go-share-portal/internal/service"
	"go-share-portal/pkg/utils"

	"github.com/gin-gonic/gin"
)

// Deps 路由需要的服务
type Deps struct {
	Tokens    *utils.TokenManager
	Users     repository.UserRepository
	Auth      *service.AuthService
	Shares    *service.ShareManager
	Resolver  *service.PermissionResolver
	Links     *service.LinkManager
	Validator *service.LinkAccessValidator
	Effects   *service.EffectDispatcher
	Hub       *notify.Hub
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.GinZapLogger(), gin.Recovery())

	authHandler := NewAuthHandler(d.Auth)
	shareHandler := NewShareHandler(d.Shares, d.Resolver, d.Effects)
	linkHandler := NewLinkHandler(d.Links, d.Validator, d.Effects)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 公开路由
	r.POST("/api/auth/register", authHandler.Register)
	r.POST("/api/auth/login", authHandler.Login)

	// 公开链接：可匿名访问，登录用户满足 require_login
	public := r.Group("/s", middleware.OptionalAuth(d.Tokens, d.Users))
	{
		public.GET("/:token", linkHandler.AccessLink)
		public.POST("/:token", linkHandler.AccessLink)
	}

	// 受保护的路由
	protected := r.Group("/api", middleware.AuthMiddleware(d.Tokens, d.Users))
	{
		protected.GET("/user/profile", func(c *gin.Context) {
			user, _ := c.Get(middleware.ContextUser)
			c.JSON(http.StatusOK, gin.H{"user": user})
		})

		protected.GET("/users/search", shareHandler.SearchUsers)
		protected.GET("/access", shareHandler.CheckAccess)

		protected.POST("/shares", shareHandler.CreateShare)
		protected.GET("/shares", shareHandler.ListOwned)
		protected.GET("/shares/received", shareHandler.ListReceived)
		protected.PUT("/shares/:id", shareHandler.UpdateShare)
		protected.DELETE("/shares/:id", shareHandler.DeleteShare)

		protected.POST("/links", linkHandler.CreateLink)
		protected.GET("/links", linkHandler.ListLinks)
		protected.DELETE("/links/:id", linkHandler.DeleteLink)

		if d.Hub != nil {
			protected.GET("/ws", NewWSHandler(d.Hub).HandleConnection)
		}
	}

	return r
}
