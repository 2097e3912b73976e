package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	billingdomain "github.com/stillpoint/sona/internal/billing/domain"
	"github.com/stillpoint/sona/internal/config"
	entitlementdomain "github.com/stillpoint/sona/internal/entitlement/domain"
	meditationdomain "github.com/stillpoint/sona/internal/meditation/domain"
	"github.com/stillpoint/sona/internal/observability"
	obsmiddleware "github.com/stillpoint/sona/internal/observability/logger"
	"github.com/stillpoint/sona/internal/observability/metrics"
	obstracing "github.com/stillpoint/sona/internal/observability/tracing"
	"github.com/stillpoint/sona/internal/providers/speech"
	"github.com/stillpoint/sona/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config) *gin.Engine {
	return NewEngine(obsCfg)
}

func run(lc fx.Lifecycle, r *gin.Engine) {
	srv := &http.Server{
		Addr:    ":8080",
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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
	engine *gin.Engine
	cfg    config.Config
	log    *zap.Logger

	meditationSvc  meditationdomain.Service
	entitlementSvc entitlementdomain.Service
	billingSvc     billingdomain.Service
	voices         speech.VoiceCatalog
	genLimiter     *ratelimit.GenerationLimiter
	metrics        *metrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin            *gin.Engine
	Cfg            config.Config
	Log            *zap.Logger
	MeditationSvc  meditationdomain.Service
	EntitlementSvc entitlementdomain.Service
	BillingSvc     billingdomain.Service
	Voices         speech.VoiceCatalog
	GenLimiter     *ratelimit.GenerationLimiter `optional:"true"`
	Metrics        *metrics.Metrics             `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:         p.Gin,
		cfg:            p.Cfg,
		log:            p.Log.Named("http.server"),
		meditationSvc:  p.MeditationSvc,
		entitlementSvc: p.EntitlementSvc,
		billingSvc:     p.BillingSvc,
		voices:         p.Voices,
		genLimiter:     p.GenLimiter,
		metrics:        p.Metrics,
	}

	svc.registerAPIRoutes()
	svc.registerWebhookRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1", s.UserRequired())

	v1.POST("/meditations/generate", s.GenerateMeditation)
	v1.GET("/meditations", s.ListMeditations)
	v1.GET("/entitlement", s.GetEntitlement)
	v1.GET("/voices", s.ListVoices)
}

func (s *Server) registerWebhookRoutes() {
	s.engine.POST("/webhooks/billing/stripe", s.HandleBillingWebhook)
}
