package http

import (
	"net/http"

	"freight/internal/core/ports"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	echoSwagger "github.com/swaggo/echo-swagger"
	"go.uber.org/zap"
)

const (
	apiPrefix       = "/api/v1"
	actorContextKey = "actor"

	HeaderUserID     = "X-User-ID"
	HeaderUserRole   = "X-User-Role"
	HeaderClientType = "X-Client-Type"
)

// RouterConfig carries everything NewRouter mounts.
type RouterConfig struct {
	Server   *Server
	Logger   *zap.Logger
	Gatherer prometheus.Gatherer
	// WebSocket is mounted on GET /ws when set.
	WebSocket http.Handler
	Debug     bool
}

// NewRouter builds the echo instance with the API, the websocket endpoint and
// the ambient routes.
func NewRouter(cfg RouterConfig) (*echo.Echo, error) {
	doc, err := LoadOpenAPI()
	if err != nil {
		return nil, err
	}
	validator, err := RequestValidator(doc)
	if err != nil {
		return nil, err
	}
	if err = RegisterSwagger(doc); err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Debug = cfg.Debug
	if cfg.Debug {
		e.Logger.SetLevel(log.DEBUG)
	} else {
		e.Logger.SetLevel(log.WARN)
	}
	e.HTTPErrorHandler = ErrorHandler(cfg.Logger)

	e.Use(middleware.Recover())
	e.Use(requestLogger(cfg.Logger))

	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "Healthy")
	})
	if cfg.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	e.GET("/swagger/*", echoSwagger.WrapHandler)
	if cfg.WebSocket != nil {
		e.GET("/ws", echo.WrapHandler(cfg.WebSocket))
	}

	s := cfg.Server
	api := e.Group(apiPrefix, RequireIdentity, validator)

	api.POST("/orders", s.CreateMasterOrder)
	api.GET("/orders/:orderId/progress", s.GetProgress)
	api.GET("/orders/:orderId/progress/last-broadcast", s.GetLastBroadcast)
	api.GET("/orders/:orderId/recommendations", s.GetRecommendations)
	api.POST("/orders/:orderId/bids", s.PlaceBid)
	api.POST("/orders/:orderId/cancel", s.CancelMasterOrder)
	api.POST("/orders/:orderId/partials/:partialId/:action", s.ChangePartialOrder)

	api.GET("/oracle/fuel-surcharge", s.GetFuelSurcharge)
	api.POST("/oracle/validate-price", s.ValidatePrice)

	api.GET("/admin/providers", s.ListProviders)
	api.POST("/admin/providers", s.RegisterProvider)
	api.PUT("/admin/providers/:providerId", s.UpdateProvider)
	api.DELETE("/admin/providers/:providerId", s.DeleteProvider)
	api.POST("/admin/providers/:providerId/toggle", s.ToggleProvider)
	api.POST("/admin/providers/:providerId/consensus", s.ToggleProviderConsensus)
	api.POST("/admin/providers/:providerId/priority", s.SetProviderPriority)

	return e, nil
}

// RequireIdentity rejects requests without the caller identity headers and
// stores the caller as a ports.Actor on the context.
func RequireIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		userID := ctx.Request().Header.Get(HeaderUserID)
		role := ctx.Request().Header.Get(HeaderUserRole)
		if userID == "" || role == "" {
			return ctx.JSON(http.StatusUnauthorized, Error{
				Code:    http.StatusUnauthorized,
				Message: "missing caller identity",
			})
		}
		ctx.Set(actorContextKey, ports.Actor{UserID: userID, Role: role})
		return next(ctx)
	}
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				logger.Warn("request", append(fields, zap.Error(v.Error))...)
				return nil
			}
			logger.Debug("request", fields...)
			return nil
		},
	})
}
