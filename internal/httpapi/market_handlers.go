package httpapi

import (
	"net/http"
	"time"

	"marketgateway/internal/apperr"

	"github.com/gin-gonic/gin"
)

type batchRequest struct {
	Symbols []string `json:"symbols" binding:"required"`
}

// getQuote returns the latest quote for a symbol
// GET /api/market/quote/:symbol
func (s *server) getQuote(c *gin.Context) {
	q, err := s.market.GetQuote(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, q)
}

// POST /api/market/quotes/batch
func (s *server) getQuotes(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondError(c, bindError(err))
		return
	}

	entries, err := s.market.GetQuotes(c.Request.Context(), req.Symbols)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, entries)
}

// getHistorical returns bars for a lookback period
// GET /api/market/stock/:symbol?period=1y&interval=1d
func (s *server) getHistorical(c *gin.Context) {
	h, err := s.market.GetHistoricalBars(c.Request.Context(),
		c.Param("symbol"), c.DefaultQuery("period", "1y"), c.DefaultQuery("interval", "1d"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, h)
}

// getStoredHistory reads persisted bars back from the database
// GET /api/market/stock/:symbol/history?from=2024-01-01&to=2024-06-30
func (s *server) getStoredHistory(c *gin.Context) {
	from, err := parseDate(c.Query("from"))
	if err != nil {
		s.respondError(c, apperr.Validation("invalid from date %q", c.Query("from")))
		return
	}
	to, err := parseDate(c.Query("to"))
	if err != nil {
		s.respondError(c, apperr.Validation("invalid to date %q", c.Query("to")))
		return
	}
	// a bare date for "to" covers the whole day
	if !to.IsZero() && len(c.Query("to")) == len(time.DateOnly) {
		to = to.Add(24*time.Hour - time.Nanosecond)
	}

	bars, err := s.market.GetStoredBars(c.Request.Context(), c.Param("symbol"), from, to)
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, gin.H{
		"symbol":     bars[0].Symbol,
		"dataPoints": len(bars),
		"data":       bars,
	})
}

func parseDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, raw)
}

// GET /api/market/company/:symbol
func (s *server) getCompany(c *gin.Context) {
	info, err := s.market.GetCompanyInfo(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, info)
}

// GET /api/market/sectors
func (s *server) getSectors(c *gin.Context) {
	sectors, err := s.market.GetSectorPerformance(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, sectors)
}

// GET /api/market/overview
func (s *server) getOverview(c *gin.Context) {
	overview, err := s.market.GetMarketOverview(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, overview)
}

// GET /api/market/search?q=apple
func (s *server) search(c *gin.Context) {
	results, err := s.market.SearchStocks(c.Request.Context(), c.Query("q"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, results)
}

// GET /api/market/macro
func (s *server) getMacro(c *gin.Context) {
	macro, err := s.market.GetMacroIndicators(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	respondOK(c, http.StatusOK, macro)
}

// getStatus reports whether NYSE is in its regular session
// GET /api/market/status
func (s *server) getStatus(c *gin.Context) {
	respondOK(c, http.StatusOK, s.clock.Status(s.now()))
}
