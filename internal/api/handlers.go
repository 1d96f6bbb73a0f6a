package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"quantbrain/internal/backtest"
	"quantbrain/internal/domain"
	"quantbrain/internal/feed"
	"quantbrain/internal/reporting"
	"quantbrain/internal/runner"
	"quantbrain/internal/storage"
)

var errBadRequest = errors.New("bad request")

// BacktestRequest is the body of POST /v1/backtests. Without bars the
// stored bars of SeriesID are used. Config keys override the server defaults.
type BacktestRequest struct {
	SeriesID string            `json:"series_id" binding:"required"`
	Config   json.RawMessage   `json:"config"`
	Bars     []feed.BarMessage `json:"bars"`
}

// IngestRequest is the body of POST /v1/series/:id/bars.
type IngestRequest struct {
	Bars []feed.BarMessage `json:"bars" binding:"required,min=1"`
}

func (s *Server) handleBacktest(c *gin.Context) {
	var req BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	cfg, err := s.configFor(req.Config)
	if err != nil {
		s.fail(c, err)
		return
	}

	ctx := c.Request.Context()
	var outcome *runner.Outcome
	if len(req.Bars) > 0 {
		var bars []*domain.Bar
		bars, err = barsFromMessages(req.SeriesID, req.Bars)
		if err != nil {
			s.fail(c, err)
			return
		}
		frame := domain.FrameFromBars(bars, cfg.PriceColumn, cfg.SignalColumn)
		outcome, err = s.runner.RunFrame(ctx, req.SeriesID, frame, cfg)
	} else {
		outcome, err = s.runner.Run(ctx, req.SeriesID, cfg)
	}
	if err != nil {
		s.fail(c, err)
		return
	}

	status := http.StatusCreated
	if outcome.Existing {
		status = http.StatusOK
	}
	c.JSON(status, outcome)
}

func (s *Server) handleGetRun(c *gin.Context) {
	run, err := s.runStore.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

func (s *Server) handleGetEquity(c *gin.Context) {
	ctx := c.Request.Context()
	runID := c.Param("id")

	if _, err := s.runStore.GetByID(ctx, runID); err != nil {
		s.fail(c, err)
		return
	}

	points := []*domain.EquityPoint{}
	if s.equityStore != nil {
		stored, err := s.equityStore.GetByRunID(ctx, runID)
		if err != nil {
			s.fail(c, err)
			return
		}
		if stored != nil {
			points = stored
		}
	}

	c.JSON(http.StatusOK, gin.H{"run_id": runID, "points": points})
}

func (s *Server) handleGetReport(c *gin.Context) {
	report, err := s.reports.Generate(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	switch format := c.DefaultQuery("format", "md"); format {
	case "md", "markdown":
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(reporting.RenderMarkdown(report)))
	case "csv":
		c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(reporting.RenderCSV(report.Equity)))
	default:
		s.fail(c, fmt.Errorf("%w: unknown report format %q", errBadRequest, format))
	}
}

func (s *Server) handleIngestBars(c *gin.Context) {
	if s.barStore == nil {
		s.fail(c, runner.ErrNoBarStore)
		return
	}

	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, fmt.Errorf("%w: %v", errBadRequest, err))
		return
	}

	seriesID := c.Param("id")
	bars, err := barsFromMessages(seriesID, req.Bars)
	if err != nil {
		s.fail(c, err)
		return
	}

	start := time.Now()
	err = s.barStore.InsertBulk(c.Request.Context(), bars)
	s.metrics.RecordDBQuery("bar_store", "insert_bulk", time.Since(start), err)
	if err != nil {
		s.fail(c, err)
		return
	}

	s.metrics.RecordFeedBars("http", len(bars))
	c.JSON(http.StatusCreated, gin.H{"series_id": seriesID, "inserted": len(bars)})
}

func (s *Server) handleSeriesRuns(c *gin.Context) {
	seriesID := c.Param("id")
	runs, err := s.runStore.GetBySeries(c.Request.Context(), seriesID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if runs == nil {
		runs = []*domain.RunRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"series_id": seriesID, "runs": runs})
}

func (s *Server) handleHealth(c *gin.Context) {
	uptime := time.Since(s.started).Round(time.Second).String()
	if s.health != nil {
		if err := s.health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"error":  err.Error(),
				"uptime": uptime,
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "uptime": uptime})
}

// configFor overlays the request config on the server defaults.
func (s *Server) configFor(raw json.RawMessage) (domain.BacktestConfig, error) {
	cfg := s.defaults
	if len(raw) == 0 {
		return cfg, nil
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: config: %v", errBadRequest, err)
	}
	return cfg, nil
}

// barsFromMessages converts request bars, rejecting bars of another series.
func barsFromMessages(seriesID string, msgs []feed.BarMessage) ([]*domain.Bar, error) {
	bars := make([]*domain.Bar, 0, len(msgs))
	for i, m := range msgs {
		if m.SeriesID != "" && m.SeriesID != seriesID {
			return nil, fmt.Errorf("%w: bar %d belongs to series %q", errBadRequest, i, m.SeriesID)
		}
		bar, err := m.Bar(seriesID)
		if err != nil {
			return nil, fmt.Errorf("%w: bar %d: %v", errBadRequest, i, err)
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// fail aborts the request with the status mapped from err.
func (s *Server) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.AbortWithStatusJSON(statusFor(err), gin.H{
		"error":      err.Error(),
		"request_id": c.GetString(ctxRequestID),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, backtest.ErrConfiguration),
		errors.Is(err, backtest.ErrParameter),
		errors.Is(err, storage.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, runner.ErrNoBarStore):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
