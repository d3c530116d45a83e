package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"goveg/domain/core"
	"goveg/domain/resilience"
	"goveg/internal/log"
	"goveg/ports"
)

// Server exposes completed runs and their artifacts over HTTP. It reads
// from the ledger only; runs are started from the CLI, and nothing on
// this surface mutates state.
type Server struct {
	router *gin.Engine
	reader ports.LedgerReaderPort
}

// NewServer creates a new results server instance
func NewServer(reader ports.LedgerReaderPort, mode string) *Server {
	if mode != "" {
		gin.SetMode(mode)
	}
	s := &Server{
		router: gin.Default(),
		reader: reader,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	// Run inventory
	s.router.GET("/api/runs", s.handleRunList)
	s.router.GET("/api/runs/:id", s.handleRunDetail)
	s.router.GET("/api/runs/:id/artifacts", s.handleRunArtifacts)
	s.router.GET("/api/runs/:id/result", s.handleRunResult)
	s.router.GET("/api/runs/:id/series/:variable", s.handleRunSeries)

	// Direct artifact access
	s.router.GET("/api/artifacts/:id", s.handleArtifact)
}

// Start starts the results server
func (s *Server) Start(addr string) error {
	log.Infof("[API] serving results on http://%s", addr)
	return s.router.Run(addr)
}

// Router returns the underlying engine for tests and embedding.
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleRunList returns the most recent run manifests, newest first.
func (s *Server) handleRunList(c *gin.Context) {
	limit := 50
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 500 {
			limit = l
		}
	}

	manifests, err := s.reader.ListRunManifests(c.Request.Context(), limit)
	if err != nil {
		s.replyError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  manifests,
		"count": len(manifests),
	})
}

// handleRunDetail returns a run's manifest plus a per-kind artifact tally.
func (s *Server) handleRunDetail(c *gin.Context) {
	runID := core.RunID(c.Param("id"))

	manifest, err := s.reader.GetRunManifest(c.Request.Context(), runID)
	if err != nil {
		s.replyError(c, err)
		return
	}

	artifacts, err := s.reader.GetArtifactsByRun(c.Request.Context(), runID)
	if err != nil {
		s.replyError(c, err)
		return
	}

	kinds := make(map[core.ArtifactKind]int)
	for _, artifact := range artifacts {
		kinds[artifact.Kind]++
	}

	c.JSON(http.StatusOK, gin.H{
		"manifest":       manifest,
		"artifact_count": len(artifacts),
		"kinds":          kinds,
	})
}

// handleRunArtifacts lists a run's artifacts, optionally filtered by kind.
func (s *Server) handleRunArtifacts(c *gin.Context) {
	runID := core.RunID(c.Param("id"))
	filters := ports.ArtifactFilters{RunID: &runID}

	if kindStr := c.Query("kind"); kindStr != "" {
		kind := core.ArtifactKind(kindStr)
		filters.Kind = &kind
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 500 {
			filters.Limit = l
		}
	}
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o > 0 {
			filters.Offset = o
		}
	}

	artifacts, err := s.reader.ListArtifacts(c.Request.Context(), filters)
	if err != nil {
		s.replyError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":    runID,
		"artifacts": artifacts,
		"count":     len(artifacts),
	})
}

// handleRunResult returns the run's analysis result payload. When a run
// was re-executed into the same ledger the latest result wins.
func (s *Server) handleRunResult(c *gin.Context) {
	runID := core.RunID(c.Param("id"))
	kind := core.ArtifactAnalysisResult

	artifacts, err := s.reader.ListArtifacts(c.Request.Context(), ports.ArtifactFilters{
		RunID: &runID,
		Kind:  &kind,
	})
	if err != nil {
		s.replyError(c, err)
		return
	}
	if len(artifacts) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no analysis result for run %s", runID)})
		return
	}

	c.JSON(http.StatusOK, artifacts[len(artifacts)-1].Payload)
}

// handleRunSeries returns one variable's processed series, including its
// rolling indicators, for a completed run.
func (s *Server) handleRunSeries(c *gin.Context) {
	runID := core.RunID(c.Param("id"))
	variable := core.VariableKey(c.Param("variable"))
	kind := core.ArtifactProcessedSeries

	artifacts, err := s.reader.ListArtifacts(c.Request.Context(), ports.ArtifactFilters{
		RunID: &runID,
		Kind:  &kind,
	})
	if err != nil {
		s.replyError(c, err)
		return
	}

	for i := len(artifacts) - 1; i >= 0; i-- {
		if v, ok := payloadVariable(artifacts[i].Payload); ok && v == variable {
			c.JSON(http.StatusOK, artifacts[i].Payload)
			return
		}
	}

	c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("no processed series for variable %s in run %s", variable, runID)})
}

// handleArtifact returns a single artifact by ID.
func (s *Server) handleArtifact(c *gin.Context) {
	artifactID, err := core.ParseArtifactID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	artifact, err := s.reader.GetArtifact(c.Request.Context(), artifactID)
	if err != nil {
		s.replyError(c, err)
		return
	}

	c.JSON(http.StatusOK, artifact)
}

// replyError maps ledger errors onto HTTP statuses.
func (s *Server) replyError(c *gin.Context, err error) {
	if core.IsNotFoundError(err) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	log.Errorw("request failed", "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

// payloadVariable extracts the variable key from a processed series
// payload. The payload is a live struct when served from memory and a
// decoded JSON map when read back from the database.
func payloadVariable(payload interface{}) (core.VariableKey, bool) {
	switch p := payload.(type) {
	case *resilience.VariableAnalysis:
		return p.Variable, true
	case resilience.VariableAnalysis:
		return p.Variable, true
	case map[string]interface{}:
		if v, ok := p["variable"].(string); ok {
			return core.VariableKey(v), true
		}
	}
	return "", false
}
