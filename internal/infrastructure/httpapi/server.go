// Package httpapi exposes a read-only status API over processed reports.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"NewsConsensus/internal/domain"
	"NewsConsensus/internal/logging"
	"NewsConsensus/internal/ports"
)

const maxReportLimit = 200

// Deps are the read models the API serves.
type Deps struct {
	Reports ports.ReportRepository
	Usage   ports.UsageStore
	Logger  *slog.Logger
}

// NewRouter builds the gin engine with request logging through slog.
func NewRouter(deps Deps) *gin.Engine {
	logger := logging.OrDiscard(deps.Logger)

	g := gin.New()
	g.Use(requestLogger(logger), gin.Recovery())

	h := handlers{reports: deps.Reports, usage: deps.Usage}
	g.GET("/healthz", h.health)
	api := g.Group("/api")
	api.GET("/reports", h.listReports)
	api.GET("/rationale-usage", h.listUsage)
	return g
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

type handlers struct {
	reports ports.ReportRepository
	usage   ports.UsageStore
}

func (h handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h handlers) listReports(c *gin.Context) {
	if h.reports == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"err": "reports unavailable"})
		return
	}
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"err": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxReportLimit)
	}

	reports, err := h.reports.RecentReports(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	out := make([]reportView, 0, len(reports))
	for _, r := range reports {
		out = append(out, newReportView(r))
	}
	c.JSON(http.StatusOK, gin.H{"reports": out})
}

func (h handlers) listUsage(c *gin.Context) {
	if h.usage == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"err": "usage tracker unavailable"})
		return
	}
	table, err := h.usage.Load(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"err": err.Error()})
		return
	}
	if table == nil {
		table = domain.UsageTable{}
	}
	c.JSON(http.StatusOK, gin.H{"usage": table})
}

type scoreView struct {
	Evaluator string  `json:"evaluator"`
	Score     float64 `json:"score"`
	Weight    float64 `json:"weight"`
}

type reportView struct {
	RunID             string      `json:"run_id"`
	ArticleID         string      `json:"article_id"`
	Title             string      `json:"title"`
	URL               string      `json:"url"`
	Publisher         string      `json:"publisher,omitempty"`
	RawConsensus      int         `json:"raw_consensus"`
	VerifiedConsensus int         `json:"verified_consensus"`
	FinalConsensus    int         `json:"final_consensus"`
	Verified          bool        `json:"verified"`
	Summary           string      `json:"summary"`
	Penalty           float64     `json:"penalty,omitempty"`
	PenaltyReason     string      `json:"penalty_reason,omitempty"`
	Rationale         string      `json:"rationale,omitempty"`
	RationaleBy       string      `json:"rationale_by,omitempty"`
	Scores            []scoreView `json:"scores"`
	ProcessedAt       time.Time   `json:"processed_at"`
}

func newReportView(r domain.Report) reportView {
	v := reportView{
		RunID:             r.RunID,
		ArticleID:         r.Article.ID,
		Title:             r.Article.Title,
		URL:               r.Article.URL,
		Publisher:         r.Article.Publisher,
		RawConsensus:      r.Consensus.RawConsensus,
		VerifiedConsensus: r.Consensus.VerifiedConsensus,
		FinalConsensus:    r.Consensus.FinalConsensus,
		Verified:          r.Consensus.Verified,
		Summary:           r.Consensus.Summary(r.Roster),
		Penalty:           r.Consensus.Penalty,
		PenaltyReason:     r.Consensus.PenaltyReason,
		Rationale:         r.SelectedRationale,
		RationaleBy:       r.SelectedEvaluator,
		Scores:            []scoreView{},
		ProcessedAt:       r.ProcessedAt,
	}
	for _, res := range r.Results.Valid() {
		v.Scores = append(v.Scores, scoreView{Evaluator: res.Evaluator, Score: res.Score, Weight: res.Weight})
	}
	return v
}

// Server runs the router until its context ends.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewServer binds the router to addr.
func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logging.OrDiscard(logger),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status api listening", "addr", s.srv.Addr)
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
