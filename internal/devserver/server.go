package devserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/aristath/testscriptgen/internal/logging"
)

// Server is the in-memory stub backend.
type Server struct {
	opts   Options
	engine *gin.Engine
	store  *taskStore
	user   *user
	log    *logrus.Entry

	mu     sync.Mutex
	timers map[int64]*time.Timer
	closed bool
}

// New builds a server with a single user. Zero-valued options fall back to
// DefaultOptions.
func New(opts Options) (*Server, error) {
	def := DefaultOptions()
	if opts.Username == "" {
		opts.Username = def.Username
	}
	if opts.Password == "" {
		opts.Password = def.Password
	}
	if opts.Email == "" {
		opts.Email = def.Email
	}
	if opts.JWTSecret == "" {
		opts.JWTSecret = def.JWTSecret
	}
	if opts.TokenTTL <= 0 {
		opts.TokenTTL = def.TokenTTL
	}
	if opts.RunDelay < 0 {
		opts.RunDelay = def.RunDelay
	}
	if opts.Log == nil {
		opts.Log = logging.Component("devserver")
	}

	u, err := newUser(1, opts.Username, opts.Password, opts.Email)
	if err != nil {
		return nil, err
	}

	s := &Server{
		opts:   opts,
		store:  newTaskStore(),
		user:   u,
		log:    opts.Log,
		timers: make(map[int64]*time.Timer),
	}
	s.engine = s.routes()
	return s, nil
}

// Handler returns the HTTP handler serving the REST surface.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(s.log))

	r.GET("/static/:name", s.handleStatic)

	v1 := r.Group("/api/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", s.handleToken)
			authGroup.GET("/me", s.authRequired(), s.handleMe)
		}

		protected := v1.Group("")
		protected.Use(s.authRequired())
		{
			tasks := protected.Group("/tasks")
			{
				tasks.GET("", s.handleListTasks)
				tasks.POST("", s.handleCreateTask)
				tasks.GET("/:id", s.handleGetTask)
				tasks.DELETE("/:id", s.handleDeleteTask)
				tasks.PATCH("/:id/agent-settings", s.handleAgentSettings)
				tasks.PATCH("/:id/browser-settings", s.handleBrowserSettings)
				tasks.PATCH("/:id/initiate", s.handleInitiate)
				tasks.POST("/:id/initiate", s.handleInitiate)
			}
			protected.GET("/results/:id", s.handleResult)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		abortDetail(c, http.StatusNotFound, "Not Found")
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and stops pending runs.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.WithField("addr", ln.Addr().String()).Info("stub server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	s.log.Info("stub server stopped")
	return nil
}

// Close stops every pending simulated run. Safe to call more than once.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request")
	}
}
