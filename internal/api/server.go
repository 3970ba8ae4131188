// Package api exposes the selection, dataset, and marker surfaces over
// HTTP. Selection changes trigger reconciliation passes; everything else
// is read-only.
package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/spatialplot/globeviz/internal/dataset"
	"github.com/spatialplot/globeviz/internal/extremum"
	"github.com/spatialplot/globeviz/internal/model"
	"github.com/spatialplot/globeviz/internal/render"
	"github.com/spatialplot/globeviz/internal/session"
	"github.com/spatialplot/globeviz/internal/stream"
)

// Dependencies holds everything the API serves from. Preview and
// Broadcaster are optional; their routes answer 404 when absent.
type Dependencies struct {
	Session     *session.Service
	Provider    dataset.Provider
	Extremum    *extremum.Cache
	Preview     *render.Preview
	Broadcaster *stream.Broadcaster
	Logger      *slog.Logger
}

// Server routes HTTP requests to the session and dataset surfaces.
type Server struct {
	deps   Dependencies
	engine *gin.Engine
}

// NewServer builds the router.
func NewServer(deps Dependencies) *Server {
	s := &Server{
		deps:   deps,
		engine: gin.New(),
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(corsMiddleware())

	s.engine.GET("/health", s.handleHealth)

	v1 := s.engine.Group("/api/v1")
	{
		v1.GET("/metrics", s.handleMetrics)
		v1.GET("/years", s.handleYears)
		v1.GET("/countries", s.handleCountries)

		v1.GET("/selection", s.handleGetSelection)
		v1.PUT("/selection", s.handlePutSelection)

		v1.GET("/markers", s.handleMarkers)
		v1.GET("/orientation", s.handleOrientation)
		v1.GET("/globalmax/:metric", s.handleGlobalMax)
		v1.GET("/preview.png", s.handlePreview)
		v1.GET("/stream", s.handleStream)
	}

	return s
}

// Engine returns the router for serving or testing.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, PUT, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	years, err := s.deps.Provider.Years()
	if err != nil {
		s.deps.Logger.Error("Error reading dataset years", "error", err)
		InternalError(c, "dataset unavailable")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"years":   len(years),
		"metrics": len(s.deps.Provider.Metrics()),
		"markers": s.deps.Session.MarkerCount(),
	})
}

func (s *Server) handleMetrics(c *gin.Context) {
	Success(c, s.deps.Provider.Metrics())
}

func (s *Server) handleYears(c *gin.Context) {
	years, err := s.deps.Provider.Years()
	if err != nil {
		s.deps.Logger.Error("Error reading dataset years", "error", err)
		InternalError(c, "error reading years")
		return
	}
	Success(c, years)
}

func (s *Server) handleCountries(c *gin.Context) {
	year, err := strconv.Atoi(c.Query("year"))
	if err != nil {
		BadRequest(c, "year must be an integer")
		return
	}
	rows, err := s.deps.Provider.Countries(year)
	if err != nil {
		s.deps.Logger.Error("Error reading countries", "year", year, "error", err)
		InternalError(c, "error reading countries")
		return
	}
	Success(c, rows)
}

func (s *Server) handleGetSelection(c *gin.Context) {
	Success(c, s.deps.Session.Context().Selection())
}

func (s *Server) handlePutSelection(c *gin.Context) {
	var sel model.Selection
	if err := c.ShouldBindJSON(&sel); err != nil {
		BadRequest(c, "invalid selection body: "+err.Error())
		return
	}
	if err := s.deps.Session.Validate(sel); err != nil {
		BadRequest(c, err.Error())
		return
	}

	res, err := s.deps.Session.Apply(sel)
	if err != nil {
		s.deps.Logger.Error("Error applying selection", "error", err)
		InternalError(c, "error applying selection")
		return
	}
	Success(c, gin.H{
		"selection": res.Selection,
		"stats":     res.Stats,
	})
}

func (s *Server) handleMarkers(c *gin.Context) {
	Success(c, s.deps.Session.Markers())
}

func (s *Server) handleOrientation(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		BadRequest(c, "lat must be a number")
		return
	}
	lon, err := strconv.ParseFloat(c.Query("lon"), 64)
	if err != nil {
		BadRequest(c, "lon must be a number")
		return
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		BadRequest(c, "coordinates out of range")
		return
	}

	q := s.deps.Session.Orientation(lat, lon)
	Success(c, gin.H{"w": q.W, "x": q.X, "y": q.Y, "z": q.Z})
}

func (s *Server) handleGlobalMax(c *gin.Context) {
	metric := model.Metric(c.Param("metric"))
	if !metric.Valid() {
		NotFound(c, "unknown metric")
		return
	}
	Success(c, gin.H{"metric": metric, "max": s.deps.Extremum.Max(metric)})
}

func (s *Server) handlePreview(c *gin.Context) {
	if s.deps.Preview == nil {
		NotFound(c, "preview rendering disabled")
		return
	}

	sel := s.deps.Session.Context().Selection()
	metric := sel.Metric
	year := sel.Year
	if q := c.Query("metric"); q != "" {
		metric = model.Metric(q)
	}
	if q := c.Query("year"); q != "" {
		y, err := strconv.Atoi(q)
		if err != nil {
			BadRequest(c, "year must be an integer")
			return
		}
		year = y
	}
	if !metric.Valid() {
		BadRequest(c, "unknown metric")
		return
	}

	samples, err := s.deps.Provider.SamplesForYear(metric, year)
	if err != nil {
		s.deps.Logger.Error("Error loading preview samples", "error", err)
		InternalError(c, "error loading samples")
		return
	}

	c.Header("Content-Type", "image/png")
	c.Status(http.StatusOK)
	if err := s.deps.Preview.WritePNG(c.Writer, samples, s.deps.Extremum.Max(metric), sel.Country); err != nil {
		s.deps.Logger.Error("Error encoding preview", "error", err)
	}
}

func (s *Server) handleStream(c *gin.Context) {
	if s.deps.Broadcaster == nil {
		NotFound(c, "streaming disabled")
		return
	}
	s.deps.Broadcaster.HandleUpgrade(c.Writer, c.Request)
}
