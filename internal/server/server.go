package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/nanolite/internal/accessscope"
	"github.com/smallbiznis/nanolite/internal/artifact"
	"github.com/smallbiznis/nanolite/internal/audit"
	auditdomain "github.com/smallbiznis/nanolite/internal/audit/domain"
	"github.com/smallbiznis/nanolite/internal/auth"
	authdomain "github.com/smallbiznis/nanolite/internal/auth/domain"
	"github.com/smallbiznis/nanolite/internal/auth/session"
	"github.com/smallbiznis/nanolite/internal/authorization"
	"github.com/smallbiznis/nanolite/internal/blobstore"
	"github.com/smallbiznis/nanolite/internal/cache"
	"github.com/smallbiznis/nanolite/internal/claim/pipeline"
	"github.com/smallbiznis/nanolite/internal/claim/validation"
	"github.com/smallbiznis/nanolite/internal/config"
	"github.com/smallbiznis/nanolite/internal/dashboard"
	dashboarddomain "github.com/smallbiznis/nanolite/internal/dashboard/domain"
	"github.com/smallbiznis/nanolite/internal/garansi"
	garansidomain "github.com/smallbiznis/nanolite/internal/garansi/domain"
	"github.com/smallbiznis/nanolite/internal/imageingest"
	"github.com/smallbiznis/nanolite/internal/observability"
	obsmiddleware "github.com/smallbiznis/nanolite/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/nanolite/internal/observability/metrics"
	obstracing "github.com/smallbiznis/nanolite/internal/observability/tracing"
	"github.com/smallbiznis/nanolite/internal/order"
	orderdomain "github.com/smallbiznis/nanolite/internal/order/domain"
	"github.com/smallbiznis/nanolite/internal/ratelimit"
	"github.com/smallbiznis/nanolite/internal/reference"
	refdomain "github.com/smallbiznis/nanolite/internal/reference/domain"
	"github.com/smallbiznis/nanolite/internal/render"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	authorization.Module,
	audit.Module,
	auth.Module,
	reference.Module,
	accessscope.Module,
	validation.Module,
	imageingest.Module,
	blobstore.Module,
	render.Module,
	artifact.Module,
	pipeline.Module,
	cache.Module,
	ratelimit.Module,
	garansi.Module,
	order.Module,
	dashboard.Module,
	fx.Provide(NewServer),
	fx.Invoke(registerRoutes),
	fx.Invoke(RunHTTP),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func RunHTTP(lc fx.Lifecycle, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	addr := cfg.HTTPAddr
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", addr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine   *gin.Engine
	cfg      config.Config
	log      *zap.Logger
	authsvc  authdomain.Service
	sessions *session.Manager
	authzSvc authorization.Service
	auditSvc auditdomain.Service
	refrepo  refdomain.Repository
	stages   *pipeline.Stages
	store    *blobstore.LocalStore
	limiter  *ratelimit.WriteLimiter
	metrics  *obsmetrics.Metrics

	garansiSvc   garansidomain.Service
	orderSvc     orderdomain.Service
	dashboardSvc dashboarddomain.Service
}

type ServerParams struct {
	fx.In

	Gin          *gin.Engine
	Cfg          config.Config
	Log          *zap.Logger
	Authsvc      authdomain.Service
	Sessions     *session.Manager
	AuthzSvc     authorization.Service
	AuditSvc     auditdomain.Service
	Refrepo      refdomain.Repository
	Stages       *pipeline.Stages
	Store        *blobstore.LocalStore
	GaransiSvc   garansidomain.Service
	OrderSvc     orderdomain.Service
	DashboardSvc dashboarddomain.Service
	Limiter      *ratelimit.WriteLimiter `optional:"true"`
	Metrics      *obsmetrics.Metrics     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	return &Server{
		engine:       p.Gin,
		cfg:          p.Cfg,
		log:          p.Log.Named("http.server"),
		authsvc:      p.Authsvc,
		sessions:     p.Sessions,
		authzSvc:     p.AuthzSvc,
		auditSvc:     p.AuditSvc,
		refrepo:      p.Refrepo,
		stages:       p.Stages,
		store:        p.Store,
		limiter:      p.Limiter,
		metrics:      p.Metrics,
		garansiSvc:   p.GaransiSvc,
		orderSvc:     p.OrderSvc,
		dashboardSvc: p.DashboardSvc,
	}
}

func registerRoutes(s *Server) {
	s.RegisterAuthRoutes()
	s.RegisterAPIRoutes()
	s.RegisterStorageRoutes()
	s.RegisterFallback()
}

func (s *Server) RegisterAuthRoutes() {
	group := s.engine.Group("/auth")
	group.POST("/login", s.LoginRateLimit(), s.Login)
	group.POST("/logout", s.Logout)
	group.GET("/me", s.AuthRequired(), s.Me)
	group.POST("/change-password", s.AuthRequired(), s.WriteRateLimit(), s.ChangePassword)
}

func (s *Server) RegisterAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	g := api.Group("/garansi")
	g.GET("/me", s.Me)
	g.GET("/customer-categories", s.authorize(authorization.ObjectGaransi, authorization.ActionView), s.ListCustomerCategories)
	g.GET("/customers", s.authorize(authorization.ObjectGaransi, authorization.ActionView), s.ListCustomers)
	g.GET("", s.ListGaransi)
	g.POST("", s.WriteRateLimit(), s.CreateGaransi)
	g.GET("/:id", s.GetGaransi)
	g.PUT("/:id", s.WriteRateLimit(), s.UpdateGaransi)
	g.GET("/:id/pdf", s.DownloadGaransiArtifact(artifact.KindPDF))
	g.GET("/:id/excel", s.DownloadGaransiArtifact(artifact.KindExcel))

	o := api.Group("/orders")
	o.GET("/export", s.ExportOrders)
	o.GET("", s.ListOrders)
	o.POST("", s.WriteRateLimit(), s.CreateOrder)
	o.GET("/:id", s.GetOrder)
	o.PUT("/:id", s.WriteRateLimit(), s.UpdateOrder)
	o.GET("/:id/pdf", s.DownloadOrderArtifact(artifact.KindPDF))
	o.GET("/:id/excel", s.DownloadOrderArtifact(artifact.KindExcel))

	ref := api.Group("/reference")
	ref.GET("/regions", s.ListRegions)
	ref.GET("/brands", s.ListBrands)
	ref.GET("/categories", s.ListCategories)
	ref.GET("/products", s.ListProducts)
	ref.GET("/customer-programs", s.ListCustomerPrograms)

	api.GET("/dashboard/overview", s.DashboardOverview)
	api.GET("/audit-logs", s.authorize(authorization.ObjectAuditLog, authorization.ActionView), s.ListAuditLogs)
}

func (s *Server) RegisterStorageRoutes() {
	s.engine.Static("/storage", s.store.Root())
}

func (s *Server) RegisterFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
