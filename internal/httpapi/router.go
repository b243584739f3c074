package httpapi

import (
	"context"
	"net/http"
	"time"

	"marketgateway/internal/auth"
	"marketgateway/internal/market"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MarketService is the market data surface used by the handlers.
type MarketService interface {
	GetQuote(ctx context.Context, symbol string) (*market.Quote, error)
	GetQuotes(ctx context.Context, symbols []string) ([]market.BatchEntry, error)
	GetHistoricalBars(ctx context.Context, symbol, period, interval string) (*market.Historical, error)
	GetStoredBars(ctx context.Context, symbol string, from, to time.Time) ([]market.Bar, error)
	GetCompanyInfo(ctx context.Context, symbol string) (*market.Company, error)
	GetSectorPerformance(ctx context.Context) (map[string]market.SectorEntry, error)
	GetMarketOverview(ctx context.Context) (map[string]market.OverviewEntry, error)
	SearchStocks(ctx context.Context, query string) ([]market.SearchResult, error)
	GetMacroIndicators(ctx context.Context) (*market.Macro, error)
}

// AuthService is the account and session surface used by the handlers.
type AuthService interface {
	Register(ctx context.Context, email, password, firstName, lastName string) (*auth.Result, error)
	Login(ctx context.Context, email, password string) (*auth.Result, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.Tokens, error)
	ValidateAccessToken(ctx context.Context, token string) (*auth.Identity, error)
	Logout(ctx context.Context, sessionID, userID string) error
	Me(ctx context.Context, id *auth.Identity) (*auth.User, error)
	Tokens() *auth.TokenManager
}

// Pinger is anything /ready should check.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Market      MarketService
	Auth        AuthService
	Clock       *market.Clock
	Limiter     *auth.RateLimiter // nil disables auth throttling
	Stream      http.Handler      // nil leaves /stream unregistered
	Checks      map[string]Pinger
	Production  bool
	CORSOrigins []string
	Proxies     []string
	Logger      *zap.Logger
}

type server struct {
	market      MarketService
	auth        AuthService
	clock       *market.Clock
	limiter     *auth.RateLimiter
	checks      map[string]Pinger
	production  bool
	corsOrigins []string
	logger      *zap.Logger
	now         func() time.Time
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(d Deps) (*gin.Engine, error) {
	if d.Production {
		gin.SetMode(gin.ReleaseMode)
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Clock == nil {
		d.Clock = market.NewClock()
	}

	s := &server{
		market:      d.Market,
		auth:        d.Auth,
		clock:       d.Clock,
		limiter:     d.Limiter,
		checks:      d.Checks,
		production:  d.Production,
		corsOrigins: d.CORSOrigins,
		logger:      d.Logger.Named("http"),
		now:         time.Now,
	}

	r := gin.New()
	if err := r.SetTrustedProxies(d.Proxies); err != nil {
		return nil, err
	}
	r.Use(s.recovery(), s.accessLog(), s.cors())
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, envelope{
			Success:   false,
			Error:     "NotFoundError",
			Message:   "Route " + c.Request.Method + " " + c.Request.URL.Path + " not found",
			Timestamp: now(),
		})
	})

	r.GET("/health", s.health)
	r.GET("/ready", s.ready)

	api := r.Group("/api")
	{
		m := api.Group("/market")
		{
			m.GET("/quote/:symbol", s.getQuote)
			m.POST("/quotes/batch", s.getQuotes)
			m.GET("/stock/:symbol", s.getHistorical)
			m.GET("/stock/:symbol/history", s.getStoredHistory)
			m.GET("/company/:symbol", s.getCompany)
			m.GET("/sectors", s.getSectors)
			m.GET("/overview", s.getOverview)
			m.GET("/search", s.search)
			m.GET("/macro", s.getMacro)
			m.GET("/status", s.getStatus)
			if d.Stream != nil {
				m.GET("/stream", gin.WrapH(d.Stream))
			}
		}

		a := api.Group("/auth")
		{
			a.POST("/register", s.rateLimit(), s.register)
			a.POST("/login", s.rateLimit(), s.login)
			a.POST("/refresh", s.refresh)
			a.POST("/logout", s.logout)
			a.GET("/me", s.requireAuth(), s.me)
		}

		api.GET("/portfolio", s.requireAuth(), s.portfolio)
	}

	return r, nil
}
