package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"noe/internal/infra/config"
	"noe/internal/infra/obs"
)

type SessionHTTP interface {
	Login(c *gin.Context)
	Register(c *gin.Context)
	Logout(c *gin.Context)
	Me(c *gin.Context)
	Profile(c *gin.Context)
	CompleteRegistration(c *gin.Context)
}

type ChatHTTP interface {
	ListConversations(c *gin.Context)
	Open(c *gin.Context)
	Select(c *gin.Context)
	Back(c *gin.Context)
	ListMessages(c *gin.Context)
	SendMessage(c *gin.Context)
	Draft(c *gin.Context)
	SetDraft(c *gin.Context)
}

type ProposalHTTP interface {
	Create(c *gin.Context)
	Accept(c *gin.Context)
	Reject(c *gin.Context)
	Pay(c *gin.Context)
}

type NotificationHTTP interface {
	List(c *gin.Context)
	Open(c *gin.Context)
}

type CatalogHTTP interface {
	ListRoutes(c *gin.Context)
	MyRoutes(c *gin.Context)
	GetRoute(c *gin.Context)
	CreateRoute(c *gin.Context)
	UpdateRoute(c *gin.Context)
	ListOrders(c *gin.Context)
	GetOrder(c *gin.Context)
	ConfirmOrder(c *gin.Context)
}

type IdentityHTTP interface {
	CheckSelfie(c *gin.Context)
	Verify(c *gin.Context)
}

type Handlers struct {
	Session        SessionHTTP
	Chat           ChatHTTP
	Proposal       ProposalHTTP
	Notification   NotificationHTTP
	Catalog        CatalogHTTP
	Identity       IdentityHTTP
	RequireSession gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	return &http.Server{Addr: cfg.HTTPAddr, Handler: NewRouter(cfg, obsMW, health, h), ReadHeaderTimeout: 10 * time.Second}
}

func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	protected := api.Group("")
	if h.RequireSession != nil {
		protected.Use(h.RequireSession)
	}

	if h.Session != nil {
		api.POST("/session", h.Session.Login)
		api.POST("/session/register", h.Session.Register)
		api.DELETE("/session", h.Session.Logout)
		api.GET("/session", h.Session.Me)
		protected.GET("/profile", h.Session.Profile)
		protected.POST("/profile/complete", h.Session.CompleteRegistration)
	}
	if h.Chat != nil {
		conv := protected.Group("/conversations")
		conv.GET("", h.Chat.ListConversations)
		conv.POST("/open", h.Chat.Open)
		conv.POST("/back", h.Chat.Back)
		conv.GET("/draft", h.Chat.Draft)
		conv.PUT("/draft", h.Chat.SetDraft)
		conv.POST("/:id/select", h.Chat.Select)
		conv.GET("/:id/messages", h.Chat.ListMessages)
		conv.POST("/:id/messages", h.Chat.SendMessage)
	}
	if h.Proposal != nil {
		props := protected.Group("/proposals")
		props.POST("", h.Proposal.Create)
		props.POST("/:id/accept", h.Proposal.Accept)
		props.POST("/:id/reject", h.Proposal.Reject)
		props.POST("/:id/pay", h.Proposal.Pay)
	}
	if h.Notification != nil {
		protected.GET("/notifications", h.Notification.List)
		protected.POST("/notifications/:id/open", h.Notification.Open)
	}
	if h.Catalog != nil {
		api.GET("/routes", h.Catalog.ListRoutes)
		protected.GET("/routes/mine", h.Catalog.MyRoutes)
		api.GET("/routes/:id", h.Catalog.GetRoute)
		protected.POST("/routes", h.Catalog.CreateRoute)
		protected.PUT("/routes/:id", h.Catalog.UpdateRoute)
		protected.GET("/orders", h.Catalog.ListOrders)
		protected.GET("/orders/:id", h.Catalog.GetOrder)
		protected.POST("/orders/:id/confirm", h.Catalog.ConfirmOrder)
	}
	if h.Identity != nil {
		api.POST("/identity/selfie", h.Identity.CheckSelfie)
		api.POST("/identity/verify", h.Identity.Verify)
	}
	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
