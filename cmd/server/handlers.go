package main

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ZanzyTHEbar/belief-engine/internal/analysis"
	"github.com/ZanzyTHEbar/belief-engine/internal/app"
	"github.com/ZanzyTHEbar/belief-engine/internal/bayes"
	apperrors "github.com/ZanzyTHEbar/belief-engine/internal/errors"
	"github.com/ZanzyTHEbar/belief-engine/internal/middleware"
	"github.com/ZanzyTHEbar/belief-engine/internal/ratelimit"
	"github.com/ZanzyTHEbar/belief-engine/internal/security"
	"github.com/ZanzyTHEbar/belief-engine/internal/sentiment"
	"github.com/ZanzyTHEbar/belief-engine/internal/service"
	"github.com/gin-gonic/gin"
)

const version = "1.0.0"

type server struct {
	app         *app.App
	limiter     *ratelimit.RateLimiter
	compression *middleware.Compression
	started     time.Time
}

type evidenceRequest struct {
	Description string    `json:"description"`
	Likelihoods []float64 `json:"likelihoods"`
}

type recordRequest struct {
	Feature  string      `json:"feature"`
	Value    bayes.Value `json:"value"`
	Positive int         `json:"positive"`
	Total    int         `json:"total"`
}

type predictRequest struct {
	Features []bayes.FeatureInput `json:"features"`
	Prior    *float64             `json:"prior,omitempty"`
}

func respondError(c *gin.Context, err error) {
	appErr := apperrors.ToAppError(err)
	apperrors.LogError(c, appErr)
	c.JSON(appErr.HTTPStatus, appErr)
}

func bindJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		appErr := apperrors.NewValidationError("invalid JSON format", err.Error())
		c.JSON(appErr.HTTPStatus, appErr)
		return false
	}
	return true
}

func queryInt(c *gin.Context, key string, def, lo, hi int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < lo || n > hi {
		appErr := apperrors.NewValidationError(key+" must be an integer between "+strconv.Itoa(lo)+" and "+strconv.Itoa(hi), key)
		c.JSON(appErr.HTTPStatus, appErr)
		return 0, false
	}
	return n, true
}

// health godoc
// @Summary Service health
// @Tags system
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (s *server) health(c *gin.Context) {
	status := "ok"
	if err := s.app.DB.PingContext(c.Request.Context()); err != nil {
		status = "degraded"
	}

	resp := gin.H{
		"status":           status,
		"version":          version,
		"timestamp":        time.Now().Format(time.RFC3339),
		"uptime":           time.Since(s.started).String(),
		"analyzer":         s.app.Analyzer.Name(),
		"database":         s.app.DB.GetPoolStats(),
		"redis":            s.app.Redis.GetPoolStats(),
		"circuit_breakers": s.app.Breakers.Stats(),
		"metrics":          s.app.Metrics.GetStats(),
		"compression":      s.compression.Stats(),
	}
	if status != "ok" {
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// createForecast godoc
// @Summary Create a forecast
// @Description Priors must sum to 1 unless normalize is set.
// @Tags forecasts
// @Accept json
// @Produce json
// @Param forecast body service.CreateForecast true "Scenarios and priors"
// @Success 201 {object} service.ForecastView
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/forecasts [post]
func (s *server) createForecast(c *gin.Context) {
	var req service.CreateForecast
	if !bindJSON(c, &req) {
		return
	}
	view, err := s.app.ForecastService.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// listForecasts godoc
// @Summary List forecasts
// @Tags forecasts
// @Produce json
// @Success 200 {array} service.ForecastView
// @Router /api/v1/forecasts [get]
func (s *server) listForecasts(c *gin.Context) {
	views, err := s.app.ForecastService.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"forecasts": views, "count": len(views)})
}

// getForecast godoc
// @Summary Current distribution of a forecast
// @Tags forecasts
// @Produce json
// @Param id path string true "Forecast ID"
// @Success 200 {object} service.ForecastView
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/forecasts/{id} [get]
func (s *server) getForecast(c *gin.Context) {
	view, err := s.app.ForecastService.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// deleteForecast godoc
// @Summary Delete a forecast and its evidence log
// @Tags forecasts
// @Param id path string true "Forecast ID"
// @Success 204
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/forecasts/{id} [delete]
func (s *server) deleteForecast(c *gin.Context) {
	if err := s.app.ForecastService.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// applyEvidence godoc
// @Summary Apply a likelihood vector
// @Description Likelihoods are given per scenario in creation order.
// @Tags forecasts
// @Accept json
// @Produce json
// @Param id path string true "Forecast ID"
// @Param evidence body evidenceRequest true "Evidence"
// @Success 200 {object} service.UpdateResult
// @Failure 400 {object} map[string]interface{}
// @Failure 422 {object} map[string]interface{}
// @Router /api/v1/forecasts/{id}/evidence [post]
func (s *server) applyEvidence(c *gin.Context) {
	var req evidenceRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := s.app.ForecastService.ApplyEvidence(c.Request.Context(), c.Param("id"), req.Description, req.Likelihoods)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// applySentiment godoc
// @Summary Update a forecast from analyzed text
// @Description The forecast's scenarios must be Positive, Neutral and Negative.
// @Tags forecasts
// @Accept json
// @Produce json
// @Param id path string true "Forecast ID"
// @Param text body security.TextRequest true "Text"
// @Success 200 {object} service.SentimentUpdate
// @Router /api/v1/forecasts/{id}/sentiment [post]
func (s *server) applySentiment(c *gin.Context) {
	text, _ := security.TextFromContext(c)
	res, err := s.app.ForecastService.ApplySentiment(c.Request.Context(), c.Param("id"), sentiment.Input{Title: text})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// forecastHistory godoc
// @Summary Evidence log of a forecast, newest first
// @Tags forecasts
// @Produce json
// @Param id path string true "Forecast ID"
// @Param limit query int false "Max entries" default(50)
// @Success 200 {array} database.EvidenceUpdate
// @Router /api/v1/forecasts/{id}/history [get]
func (s *server) forecastHistory(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 50, 1, 1000)
	if !ok {
		return
	}
	history, err := s.app.ForecastService.History(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": history, "count": len(history)})
}

// listPredictors godoc
// @Summary List predictors
// @Tags predictors
// @Produce json
// @Success 200 {array} string
// @Router /api/v1/predictors [get]
func (s *server) listPredictors(c *gin.Context) {
	names, err := s.app.PredictorService.Predictors(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"predictors": names})
}

// getPredictor godoc
// @Summary Likelihood table of a predictor
// @Tags predictors
// @Produce json
// @Param name path string true "Predictor"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/predictors/{name} [get]
func (s *server) getPredictor(c *gin.Context) {
	ctx := c.Request.Context()
	name := c.Param("name")
	features, err := s.app.PredictorService.Features(ctx, name)
	if err != nil {
		respondError(c, err)
		return
	}
	entries, err := s.app.PredictorService.Entries(ctx, name)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": name, "features": features, "entries": entries})
}

// recordFeature godoc
// @Summary Record positive/total counts for a feature value
// @Tags predictors
// @Accept json
// @Produce json
// @Param name path string true "Predictor"
// @Param record body recordRequest true "Counts"
// @Success 201 {object} bayes.Entry
// @Failure 400 {object} map[string]interface{}
// @Router /api/v1/predictors/{name}/records [post]
func (s *server) recordFeature(c *gin.Context) {
	var req recordRequest
	if !bindJSON(c, &req) {
		return
	}
	entry, err := s.app.PredictorService.Record(c.Request.Context(), c.Param("name"), req.Feature, req.Value, req.Positive, req.Total)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, entry)
}

// predict godoc
// @Summary Posterior for a set of observed features
// @Tags predictors
// @Accept json
// @Produce json
// @Param name path string true "Predictor"
// @Param request body predictRequest true "Features"
// @Success 200 {object} bayes.Estimate
// @Failure 404 {object} map[string]interface{}
// @Router /api/v1/predictors/{name}/predict [post]
func (s *server) predict(c *gin.Context) {
	var req predictRequest
	if !bindJSON(c, &req) {
		return
	}
	est, err := s.app.PredictorService.Predict(c.Request.Context(), c.Param("name"), req.Features, req.Prior)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, est)
}

// importance godoc
// @Summary Importance of each recorded value of a feature
// @Tags predictors
// @Produce json
// @Param name path string true "Predictor"
// @Param feature path string true "Feature"
// @Success 200 {array} bayes.Importance
// @Router /api/v1/predictors/{name}/importance/{feature} [get]
func (s *server) importance(c *gin.Context) {
	scores, err := s.app.PredictorService.Importance(c.Request.Context(), c.Param("name"), c.Param("feature"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"feature": c.Param("feature"), "importance": scores})
}

// analyzeSentiment godoc
// @Summary Analyze text
// @Tags sentiment
// @Accept json
// @Produce json
// @Param text body security.TextRequest true "Title and content, or text"
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/sentiment/analyze [post]
func (s *server) analyzeSentiment(c *gin.Context) {
	text, _ := security.TextFromContext(c)
	res, err := s.app.Analyzer.Analyze(c.Request.Context(), sentiment.Input{Title: text})
	if err != nil {
		respondError(c, err)
		return
	}
	likelihoods, err := sentiment.Likelihoods(res, sentiment.Scenarios)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"analyzer":    s.app.Analyzer.Name(),
		"label":       s.app.Thresholds.Label(res.Polarity),
		"sentiment":   res,
		"likelihoods": likelihoods,
	})
}

// listArticles godoc
// @Summary Recently analyzed articles
// @Tags news
// @Produce json
// @Param days query int false "Window in days" default(7)
// @Param limit query int false "Max articles" default(100)
// @Success 200 {array} database.AnalyzedArticle
// @Router /api/v1/articles [get]
func (s *server) listArticles(c *gin.Context) {
	days, ok := queryInt(c, "days", 7, 1, 365)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit", 100, 1, 1000)
	if !ok {
		return
	}
	since := time.Now().AddDate(0, 0, -days)
	articles, err := s.app.Articles.Analyzed(c.Request.Context(), since, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"articles": articles, "count": len(articles)})
}

// analyzeArticles godoc
// @Summary Run the sentiment pipeline over pending articles
// @Tags news
// @Produce json
// @Success 200 {object} sentiment.RunStats
// @Router /api/v1/articles/analyze [post]
func (s *server) analyzeArticles(c *gin.Context) {
	stats, err := s.app.Pipeline.Run(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// getReport godoc
// @Summary Markdown sentiment report
// @Tags news
// @Produce text/markdown
// @Success 200 {string} string
// @Router /api/v1/report [get]
func (s *server) getReport(c *gin.Context) {
	md, err := s.app.Reports.Generate(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(md))
}

// trends godoc
// @Summary Sentiment trends per category
// @Tags news
// @Produce json
// @Param period query string false "daily or weekly" default(daily)
// @Param days query int false "Window in days" default(30)
// @Success 200 {object} map[string]interface{}
// @Router /api/v1/trends [get]
func (s *server) trends(c *gin.Context) {
	period, err := analysis.ParsePeriod(c.Query("period"))
	if err != nil {
		appErr := apperrors.NewValidationError(err.Error(), "period")
		c.JSON(appErr.HTTPStatus, appErr)
		return
	}
	days, ok := queryInt(c, "days", 30, 1, 365)
	if !ok {
		return
	}

	since := time.Now().AddDate(0, 0, -days)
	articles, err := s.app.Articles.Analyzed(c.Request.Context(), since, 5000)
	if err != nil {
		respondError(c, err)
		return
	}
	trends := analysis.Trends(articles, period, s.app.Thresholds)
	c.JSON(http.StatusOK, gin.H{
		"period":    period,
		"days":      days,
		"trends":    trends,
		"anomalies": analysis.Anomalies(trends, 3, 4),
	})
}
