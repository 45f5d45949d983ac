package echoapi

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/aizadzidi/tasmik-windsurf-sub000/core"
	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam"
	"github.com/aizadzidi/tasmik-windsurf-sub000/core/exam/session"
)

type (
	ServerDeps struct {
		Conf       *core.Config
		Logger     core.Logger
		Repo       exam.Repository
		Validate   *validator.Validate
		Translator ut.Translator
		// Scheduler drives the autosave timers; session.SystemScheduler when nil.
		Scheduler      session.Scheduler
		DisableReqLogs bool
	}

	Server struct {
		deps     ServerDeps
		app      *echo.Echo
		sessions *sessionRegistry
		errors   chan error
		shutdown chan os.Signal
		stop     context.CancelFunc
	}
)

var _ http.Handler = (*Server)(nil)

func NewServer(deps ServerDeps) *Server {
	s := &Server{
		deps:     deps,
		app:      echo.New(),
		errors:   make(chan error, 1),
		shutdown: make(chan os.Signal, 1),
	}
	s.sessions = newSessionRegistry(session.Options{
		Repo:          deps.Repo,
		Logger:        deps.Logger,
		Scheduler:     deps.Scheduler,
		AutosaveDelay: deps.Conf.Exam.AutosaveDelay,
		FetchTimeout:  deps.Conf.Exam.FetchTimeout,
		SaveTimeout:   deps.Conf.Exam.SaveTimeout,
	}, deps.Conf.Exam.SessionIdleTimeout, deps.Logger)
	s.setup()
	return s
}

func (s *Server) setup() {
	conf := s.deps.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !s.deps.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.deps.Logger, s.deps.Translator, s.SignalShutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", home)

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf))

	registerGradingAPI(v1, jwt, s.sessions, exam.NewRosterResolver(s.deps.Repo), s.deps.Validate)
}

// Start listens on the configured address and evicts idle sessions until Shutdown.
// Listener failures are reported on Errors.
func (s *Server) Start() {
	signal.Notify(s.shutdown, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	go s.sessions.run(ctx, evictionPeriod(s.deps.Conf.Exam.SessionIdleTimeout))

	if err := s.app.Start(s.deps.Conf.Server.Address); err != nil && err != http.ErrServerClosed {
		s.errors <- err
	}
}

// Shutdown stops accepting requests then saves every open session.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.stop != nil {
		s.stop()
	}
	err := s.app.Shutdown(ctx)
	if n := s.sessions.closeAll(ctx); n > 0 {
		s.deps.Logger.Info("open sessions saved", map[string]interface{}{"count": n})
	}
	return err
}

func (s *Server) Close() error {
	return s.app.Close()
}

func (s *Server) Errors() <-chan error {
	return s.errors
}

func (s *Server) ShutdownSignal() <-chan os.Signal {
	return s.shutdown
}

// SignalShutdown asks the app to shut down gracefully.
func (s *Server) SignalShutdown() {
	select {
	case s.shutdown <- syscall.SIGTERM:
	default:
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func evictionPeriod(idle time.Duration) time.Duration {
	if every := idle / 4; every > time.Second {
		return every
	}
	return time.Second
}

func home(ctx echo.Context) error {
	return ctx.String(http.StatusOK, "Welcome to Tasmik exam API!")
}
