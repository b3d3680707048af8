package server

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nfrund/accounts/internal/account"
	"github.com/nfrund/accounts/internal/config"
	"github.com/nfrund/accounts/internal/database"
	"github.com/nfrund/accounts/internal/handlers"
	appmiddleware "github.com/nfrund/accounts/internal/middleware"
	"github.com/nfrund/accounts/internal/notify"
	"github.com/nfrund/accounts/internal/pubsub"
	"github.com/samber/do/v2"
)

// bodyOverhead is the room left for multipart framing on top of the
// largest accepted avatar.
const bodyOverhead = 1 << 20

// Server holds the dependencies for the HTTP server.
type Server struct {
	E   *echo.Echo
	Cfg config.Provider

	accounts       *account.Service
	accountHandler *handlers.AccountHandler
	healthHandler  *handlers.HealthHandler
	bridge         *pubsub.WatermillBridge
	db             *database.Connection // nil on the memory store

	stopSubscribers context.CancelFunc
}

// New resolves the API's services from the injector, starts the event
// subscribers and registers every route.
func New(i do.Injector) (*Server, error) {
	cfg := do.MustInvoke[config.Provider](i)

	accounts, err := do.Invoke[*account.Service](i)
	if err != nil {
		return nil, fmt.Errorf("account service: %w", err)
	}
	accountHandler, err := do.Invoke[*handlers.AccountHandler](i)
	if err != nil {
		return nil, err
	}
	healthHandler, err := do.Invoke[*handlers.HealthHandler](i)
	if err != nil {
		return nil, err
	}
	mailer, err := do.Invoke[*notify.Mailer](i)
	if err != nil {
		return nil, fmt.Errorf("mailer: %w", err)
	}

	s := &Server{
		E:              echo.New(),
		Cfg:            cfg,
		accounts:       accounts,
		accountHandler: accountHandler,
		healthHandler:  healthHandler,
		bridge:         do.MustInvoke[*pubsub.WatermillBridge](i),
	}
	if cfg.GetStoreDriver() == config.StoreDriverSurreal {
		s.db = do.MustInvoke[*database.Connection](i)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stopSubscribers = cancel
	if err := mailer.Start(ctx, s.bridge); err != nil {
		cancel()
		return nil, fmt.Errorf("start mailer: %w", err)
	}

	s.setupMiddleware()
	s.RegisterRoutes()
	return s, nil
}

func (s *Server) setupMiddleware() {
	e := s.E
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handlers.NewValidator()
	e.HTTPErrorHandler = handlers.HTTPErrorHandler

	e.Use(middleware.RequestID())
	e.Use(appmiddleware.Logger)
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			logger := appmiddleware.FromContext(c.Request().Context())
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
			}
			level := slog.LevelInfo
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
				if v.Status >= 500 {
					level = slog.LevelError
				}
			}
			logger.LogAttrs(c.Request().Context(), level, "Request handled", attrs...)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(bodyLimit(s.Cfg.GetAvatarMaxBytes())))
}

// bodyLimit formats the request size cap in the unit syntax BodyLimit
// expects.
func bodyLimit(maxAvatarBytes int64) string {
	kb := (maxAvatarBytes + bodyOverhead + 1023) / 1024
	return fmt.Sprintf("%dK", kb)
}
