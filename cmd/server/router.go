package main

import (
	"time"

	"github.com/ZanzyTHEbar/belief-engine/internal/app"
	"github.com/ZanzyTHEbar/belief-engine/internal/errors"
	"github.com/ZanzyTHEbar/belief-engine/internal/middleware"
	"github.com/ZanzyTHEbar/belief-engine/internal/monitoring"
	"github.com/ZanzyTHEbar/belief-engine/internal/ratelimit"
	"github.com/ZanzyTHEbar/belief-engine/internal/security"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/ZanzyTHEbar/belief-engine/cmd/server/docs"
)

// setupRouter builds the gin engine. Mutating routes go through auth, which
// passes everything when no JWT secret is configured.
func setupRouter(a *app.App, limiter *ratelimit.RateLimiter, auth *security.Authenticator) *gin.Engine {
	r := gin.New()

	securityConfig := security.DefaultSecurityConfig()
	securityConfig.AllowedOrigins = a.Config.Server.CORSOrigins
	sm := security.NewSecurityMiddleware(securityConfig)

	// Monitoring first so every request is counted
	r.Use(monitoring.MonitoringMiddleware(a.Metrics, a.Logger))
	r.Use(errors.ErrorHandler())
	r.Use(errors.RecoveryHandler())
	r.Use(security.SecurityHeadersMiddleware(false))
	r.Use(sm.CORS())
	r.Use(sm.RequestTimeout)
	r.Use(sm.ValidateContentType)
	r.Use(sm.LimitBody)

	compression := middleware.NewCompression(middleware.DefaultCompressionConfig())
	r.Use(compression.Handler())

	s := &server{app: a, limiter: limiter, compression: compression, started: time.Now()}

	r.GET("/health", s.health)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	api := r.Group("/api/v1")
	api.Use(limiter.IPRateLimitMiddleware())
	{
		api.GET("/ratelimit", limiter.HandleStatus())

		api.GET("/forecasts", s.listForecasts)
		api.GET("/forecasts/:id", s.getForecast)
		api.GET("/forecasts/:id/history", s.forecastHistory)

		api.GET("/predictors", s.listPredictors)
		api.GET("/predictors/:name", s.getPredictor)
		api.GET("/predictors/:name/importance/:feature", s.importance)
		api.POST("/predictors/:name/predict", s.predict)

		api.POST("/sentiment/analyze", sm.ValidateTextBody, s.analyzeSentiment)

		api.GET("/articles", s.listArticles)
		api.GET("/report", s.getReport)
		api.GET("/trends", s.trends)
	}

	protected := api.Group("")
	protected.Use(auth.RequireAuth())
	{
		protected.POST("/forecasts", s.createForecast)
		protected.DELETE("/forecasts/:id", s.deleteForecast)
		protected.POST("/forecasts/:id/evidence", s.applyEvidence)
		protected.POST("/forecasts/:id/sentiment", sm.ValidateTextBody, s.applySentiment)
		protected.POST("/predictors/:name/records", s.recordFeature)
		protected.POST("/articles/analyze", s.analyzeArticles)
	}

	return r
}
