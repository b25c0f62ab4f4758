package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/Aidin1998/pincex_points/common/apiutil"
	apierrors "github.com/Aidin1998/pincex_points/common/errors"
	"github.com/Aidin1998/pincex_points/internal/config"
	"github.com/Aidin1998/pincex_points/internal/point"
)

// Server represents the API server
type Server struct {
	router    *gin.Engine
	logger    *zap.Logger
	points    point.PointService
	validator *apiutil.Validator
}

// NewServer creates a new API server on top of the point service
func NewServer(logger *zap.Logger, points point.PointService) *Server {
	server := &Server{
		logger:    logger,
		points:    points,
		validator: apiutil.NewValidator(),
	}

	router := gin.New()

	router.Use(traceIDMiddleware())
	router.Use(ginzap.Ginzap(logger, time.RFC3339, true))
	router.Use(ginzap.RecoveryWithZap(logger, true))
	router.Use(otelgin.Middleware("pointd"))
	router.Use(metricsMiddleware())
	router.Use(apierrors.UnifiedErrorMiddleware())

	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "PATCH", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Trace-ID"},
		ExposeHeaders: []string{"Content-Length", "X-Trace-ID"},
		MaxAge:        12 * time.Hour,
	}))

	server.router = router
	server.registerRoutes()
	return server
}

// Router returns the internal Gin engine for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Serve listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Serve(ctx context.Context, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting API server", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	s.logger.Info("Shutting down API server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	s.router.GET("/health", s.healthCheck)

	points := s.router.Group("/point")
	{
		points.GET("/:id", s.getPoint)
		points.GET("/:id/histories", s.getPointHistories)
		points.PATCH("/:id/charge", s.chargePoint)
		points.PATCH("/:id/use", s.usePoint)
	}

	s.router.NoRoute(func(c *gin.Context) {
		apierrors.HandleError(c, apierrors.NewNotFoundError("route not found", c.Request.URL.Path))
	})
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now(),
	})
}
