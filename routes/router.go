package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/pacts/config"
	"github.com/cppla/pacts/controllers"
	"github.com/cppla/pacts/middleware"
	"github.com/cppla/pacts/services"
	"github.com/cppla/pacts/utils"
)

// Deps are the long-lived collaborators the HTTP layer is built from.
// Cache, Invalidator, States and Revoked may be left nil.
type Deps struct {
	Config      config.AppConfig
	DB          *gorm.DB
	Cache       *utils.Cache
	Invalidator services.Invalidator
	Issuer      *utils.TokenIssuer
	States      *utils.TTLStore
	Revoked     *utils.TTLStore
	Logger      *zap.Logger
	// AccessLogger receives gin access and panic logs. Defaults to Logger.
	AccessLogger *zap.Logger
}

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(d Deps) *gin.Engine {
	switch strings.ToLower(d.Config.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.AccessLogger == nil {
		d.AccessLogger = d.Logger
	}
	if d.Cache == nil {
		d.Cache = utils.NewCache(nil, 0)
	}
	if d.States == nil {
		d.States = utils.NewTTLStore(nil, "oauth:state:")
	}
	if d.Revoked == nil {
		d.Revoked = utils.NewTTLStore(nil, "jwt:blacklist:")
	}

	r := gin.New()
	r.Use(utils.Ginzap(d.AccessLogger))
	r.Use(utils.RecoveryWithZap(d.AccessLogger))
	r.Use(cors.New(corsConfig(d.Config.AllowedOrigins)))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	pages := services.NewPages(d.DB, d.Cache, d.Logger)
	kudos := services.NewKudoService(services.NewKudoStore(d.DB), d.Invalidator, d.Logger)
	pacts := services.NewPactService(d.DB, d.Cache, d.Invalidator, d.Logger)
	users := services.NewUserService(d.DB)

	authn := middleware.NewAuthenticator(d.Issuer, d.Revoked)
	authController := controllers.NewAuthController(d.Config, users, d.Issuer, d.States, d.Revoked)
	pactController := controllers.NewPactController(pacts, pages)
	kudoController := controllers.NewKudoController(kudos)
	userController := controllers.NewUserController(pages)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.GET("/oauth/:provider/login", authController.OAuthRedirect)
	authGroup.GET("/oauth/:provider/callback", authController.OAuthCallback)
	authGroup.POST("/logout", authn.AuthRequired(), authController.Logout)
	authGroup.GET("/me", authn.AuthRequired(), authController.Me)

	// Public reads; a valid token adds has_kudoed for the viewer
	public := api.Group("")
	public.Use(authn.OptionalAuth())
	public.GET("/feed", pactController.Feed)
	public.GET("/pacts/:id", pactController.GetPact)
	public.GET("/users/:key", userController.GetProfile)
	public.GET("/stats", userController.GetStats)

	protected := api.Group("")
	protected.Use(authn.AuthRequired())
	protected.POST("/pacts", pactController.CreatePact)
	protected.PATCH("/pacts/:id/complete", pactController.CompletePact)
	protected.POST("/pacts/:id/checkins", pactController.CreateCheckIn)
	protected.POST("/checkins/:id/kudo", kudoController.ToggleKudo)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
		// credentials cannot be combined with a wildcard origin
		c.AllowCredentials = false
	} else {
		c.AllowOrigins = origins
	}
	return c
}
