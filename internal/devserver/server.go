// Package devserver runs an in-memory backend that speaks the dashboard's
// report API, including the generation event stream. The end-to-end tests
// and `reportctl dev-server` use it.
package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/reportdash/reportctl/internal/metrics"
	"github.com/reportdash/reportctl/internal/status"
)

// DefaultResults is the CSV served for reports seeded without results.
const DefaultResults = "event,count\nsignup,42\nlogin,17\npurchase,5\n"

// progressTypes are cycled through as current_type frames.
var progressTypes = []string{"schema_analysis", "query_planning", "sql_generation"}

// Report is a stored report.
type Report struct {
	ID      string
	Name    string
	Prompt  string
	Query   string
	Status  string
	Results string

	// Empty serves an empty result payload instead of Results.
	Empty bool

	// FailGeneration closes the event stream before done and marks the
	// report as errored.
	FailGeneration bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Options configures the backend.
//
// Fields:
//   - Frames: Number of current_type frames per generation (default 3)
//   - FrameDelay: Pause before each frame
//   - Logger: Request logger (log.Default when nil)
//   - Registry: Registry for request counters, also served on /metrics
type Options struct {
	Frames     int
	FrameDelay time.Duration
	Logger     *log.Logger
	Registry   *prometheus.Registry
}

// Server is the in-memory backend.
type Server struct {
	mu      sync.Mutex
	reports map[string]*Report

	opts     Options
	logger   *log.Logger
	engine   *gin.Engine
	requests *prometheus.CounterVec
}

// New creates a backend and its routes.
func New(opts Options) *Server {
	if opts.Frames <= 0 {
		opts.Frames = len(progressTypes)
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}

	s := &Server{
		reports: make(map[string]*Report),
		opts:    opts,
		logger:  opts.Logger,
		requests: promauto.With(opts.Registry).NewCounterVec(prometheus.CounterOpts{
			Namespace: "reportctl",
			Subsystem: "devserver",
			Name:      "requests_total",
			Help:      "Requests served by the development backend",
		}, []string{"route", "code"}),
	}
	s.engine = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.loggerMiddleware())

	api := r.Group("/api/dynamic-queries")
	api.POST("", s.createReport)
	api.GET("/:id", s.getReport)
	api.PUT("/:id", s.updateReport)
	api.GET("/:id/generate", s.generate)
	api.GET("/:id/results", s.results)

	r.GET("/metrics", gin.WrapH(metrics.Handler(s.opts.Registry)))
	return r
}

// loggerMiddleware logs each request and counts it by route.
func (s *Server) loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		code := c.Writer.Status()
		s.requests.WithLabelValues(route, fmt.Sprint(code)).Inc()
		s.logger.Debug("request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status_code", code,
			"latency", time.Since(start),
		)
	}
}

// Handler returns the HTTP handler, for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Seed stores a report and returns its ID. Empty fields get defaults:
// a new uuid, status pending and DefaultResults.
func (s *Server) Seed(r Report) string {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Status == "" {
		r.Status = string(status.StatusPending)
	}
	if r.Results == "" && !r.Empty {
		r.Results = DefaultResults
	}
	if r.Name == "" {
		r.Name = r.Prompt
	}
	now := time.Now().UTC()
	r.CreatedAt, r.UpdatedAt = now, now

	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[r.ID] = &r
	return r.ID
}

// Get returns a copy of a stored report.
func (s *Server) Get(id string) (Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return Report{}, false
	}
	return *r, true
}

// Run serves on addr until ctx is cancelled.
//
// Parameters:
//   - ctx: Context whose cancellation shuts the server down
//   - addr: Listen address, e.g. "127.0.0.1:6173"
//
// Returns:
//   - error: Any error other than a clean shutdown
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting development backend", "address", "http://"+addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Debug("Shutting down development backend")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// --- handlers ---

func respondError(c *gin.Context, code int, msg, details string) {
	c.AbortWithStatusJSON(code, gin.H{"error": msg, "details": details})
}

func (s *Server) lookup(c *gin.Context) (*Report, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		respondError(c, http.StatusBadRequest, "invalid report id", id)
		return nil, false
	}
	s.mu.Lock()
	r, ok := s.reports[id]
	s.mu.Unlock()
	if !ok {
		respondError(c, http.StatusNotFound, "report not found", id)
		return nil, false
	}
	return r, true
}

type createRequest struct {
	Name   string `json:"name"`
	Prompt string `json:"prompt"`
}

func (s *Server) createReport(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		respondError(c, http.StatusBadRequest, "prompt is required", "")
		return
	}
	id := s.Seed(Report{Name: req.Name, Prompt: req.Prompt})
	c.JSON(http.StatusCreated, gin.H{"message": "Success", "data": id})
}

func nullString(s string) gin.H {
	return gin.H{"String": s, "Valid": s != ""}
}

func (s *Server) getReport(c *gin.Context) {
	r, ok := s.lookup(c)
	if !ok {
		return
	}
	s.mu.Lock()
	data := gin.H{
		"ID":        r.ID,
		"Name":      r.Name,
		"Prompt":    r.Prompt,
		"Query":     nullString(r.Query),
		"Status":    r.Status,
		"CreatedAt": r.CreatedAt.Format(time.RFC3339),
		"UpdatedAt": r.UpdatedAt.Format(time.RFC3339),
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"message": "Success", "data": data})
}

type updateRequest struct {
	Name   string `json:"name"`
	Prompt string `json:"Prompt"`
	Status string `json:"Status"`
}

func (s *Server) updateReport(c *gin.Context) {
	r, ok := s.lookup(c)
	if !ok {
		return
	}
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if req.Status != "" {
		if _, known := status.Parse(req.Status); !known {
			respondError(c, http.StatusBadRequest, "invalid status", req.Status)
			return
		}
	}

	s.mu.Lock()
	if req.Name != "" {
		r.Name = req.Name
	}
	if req.Prompt != "" && req.Prompt != r.Prompt {
		r.Prompt = req.Prompt
		r.Query = ""
	}
	if req.Status != "" {
		r.Status = req.Status
		if parsed, _ := status.Parse(req.Status); parsed == status.StatusInProgress {
			// A re-run starts a fresh generation.
			r.FailGeneration = false
		}
	}
	r.UpdatedAt = time.Now().UTC()
	s.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"message": "Success"})
}

func (s *Server) results(c *gin.Context) {
	r, ok := s.lookup(c)
	if !ok {
		return
	}
	s.mu.Lock()
	st, payload := r.Status, r.Results
	s.mu.Unlock()

	if parsed, _ := status.Parse(st); parsed != status.StatusComplete {
		respondError(c, http.StatusConflict, "report is not complete", st)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Success", "data": payload})
}
