package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	apikeydomain "github.com/tollgate-ai/tollgate/internal/apikey/domain"
	"github.com/tollgate-ai/tollgate/internal/clock"
	"github.com/tollgate-ai/tollgate/internal/config"
	enginedomain "github.com/tollgate-ai/tollgate/internal/engine/domain"
	paymentdomain "github.com/tollgate-ai/tollgate/internal/payment/domain"
	treasurydomain "github.com/tollgate-ai/tollgate/internal/treasury/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server starting", zap.String("addr", cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
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
	engine      *gin.Engine
	cfg         config.Config
	db          *gorm.DB
	log         *zap.Logger
	clock       clock.Clock
	apiKeyRepo  apikeydomain.Repository
	engineSvc   enginedomain.Service
	paymentRepo paymentdomain.Repository
	treasurySvc treasurydomain.Service
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DB          *gorm.DB
	Log         *zap.Logger
	Clock       clock.Clock
	APIKeyRepo  apikeydomain.Repository
	EngineSvc   enginedomain.Service
	PaymentRepo paymentdomain.Repository
	TreasurySvc treasurydomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		db:          p.DB,
		log:         p.Log.Named("server"),
		clock:       p.Clock,
		apiKeyRepo:  p.APIKeyRepo,
		engineSvc:   p.EngineSvc,
		paymentRepo: p.PaymentRepo,
		treasurySvc: p.TreasurySvc,
	}

	svc.registerRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")

	// The proof token is the provider's credential, so verification never
	// requires an API key.
	v1.POST("/verify", s.Verify)

	v1.POST("/quote", s.APIKeyRequired(), s.Quote)
	v1.POST("/pay", s.APIKeyRequired(), s.Pay)

	v1.GET("/payments", s.APIKeyRequired(), s.ListPayments)
	v1.GET("/payments/:invoiceId/verify", s.APIKeyRequired(), s.VerifyPayment)

	v1.GET("/treasury/balance", s.APIKeyRequired(), s.GetBalance)
	if s.cfg.Environment != "production" {
		v1.POST("/treasury/deposit", s.APIKeyRequired(), s.Deposit)
	}

	internal := s.engine.Group("/internal")
	internal.POST("/reconcile", s.APIKeyRequired(), s.Reconcile)
}
