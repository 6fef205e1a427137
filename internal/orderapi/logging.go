package orderapi

import (
	"io"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// NewLogger builds the order API's zerolog logger: JSON in prod, console
// output in dev.
func NewLogger(w io.Writer, env, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano

	var logger zerolog.Logger
	if env == "dev" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(w)
	}
	return logger.Level(lvl).With().Timestamp().Str("service", "orderapi").Logger()
}

// requestLogger stores a request-scoped logger in the request context and
// writes one access line per request.
func requestLogger(base zerolog.Logger) echo.MiddlewareFunc {
	attach := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			l := base.With().
				Str("request_id", c.Response().Header().Get(echo.HeaderXRequestID)).
				Str("method", req.Method).
				Str("path", req.URL.Path).
				Logger()
			c.SetRequest(req.WithContext(l.WithContext(req.Context())))
			return next(c)
		}
	}

	access := echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			l := zerolog.Ctx(c.Request().Context())
			ev := l.Info()
			switch {
			case v.Status >= 500:
				ev = l.Error().Err(v.Error)
			case c.Path() == "/health":
				ev = l.Debug()
			}
			ev.Int("status", v.Status).
				Dur("duration", v.Latency).
				Str("client_ip", v.RemoteIP).
				Msg("request completed")
			return nil
		},
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return attach(access(next))
	}
}
