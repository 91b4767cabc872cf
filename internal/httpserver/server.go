// Package httpserver exposes the board over HTTP for the headless binary.
// Reads come from the published snapshot and the shared cache; writes are
// sent into the event loop as messages and answered on reply channels.
package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/tinytelemetry/opsdeck/internal/board"
	"github.com/tinytelemetry/opsdeck/internal/cache"
	"github.com/tinytelemetry/opsdeck/internal/countdown"
	"github.com/tinytelemetry/opsdeck/internal/jobs"
)

// DefaultReplyTimeout bounds how long a write waits for the event loop.
const DefaultReplyTimeout = 5 * time.Second

// Board is the read side the API needs. Both methods are safe to call off
// the event loop.
type Board interface {
	Snapshot() *board.Snapshot
	Cache() *cache.Cache
}

// Dispatcher delivers a message to the event loop. *tea.Program satisfies
// it.
type Dispatcher interface {
	Send(msg tea.Msg)
}

// Server provides the opsdeck control API.
type Server struct {
	addr      string
	board     Board
	loop      Dispatcher
	timeout   time.Duration
	log       zerolog.Logger
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, b Board, loop Dispatcher, log zerolog.Logger) *Server {
	if addr == "" {
		addr = "127.0.0.1:7070"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:    addr,
		board:   b,
		loop:    loop,
		timeout: DefaultReplyTimeout,
		log:     log.With().Str("component", "httpserver").Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	api := r.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/contexts", s.handleContexts)
	api.POST("/contexts/:id/activate", s.handleActivate)
	api.POST("/contexts/:id/refresh", s.handleRefresh)
	api.GET("/countdowns", s.handleCountdowns)
	api.GET("/cache", s.handleCache)
	api.GET("/cache/:key", s.handleCacheEntry)
	api.GET("/jobs", s.handleJobs)
	api.POST("/jobs/:kind", s.handleRequestJob)
	return r
}

// Start begins serving HTTP requests. It returns once the listener is bound.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)

	s.server = &http.Server{
		Handler:           s.Handler(),
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	s.startTime = time.Now()
	s.log.Info().Str("addr", listener.Addr().String()).Msg("api listening")

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("api server stopped")
		}
	}()
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	if s.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	snap := s.board.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"uptime":   time.Since(s.startTime).String(),
		"active":   snap.Active,
		"switches": snap.Switches,
		"cached":   s.board.Cache().Len(),
	})
}

func (s *Server) handleContexts(c *gin.Context) {
	snap := s.board.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"active":   snap.Active,
		"contexts": snap.Contexts,
		"sources":  snap.Sources,
	})
}

func (s *Server) handleActivate(c *gin.Context) {
	id := c.Param("id")
	reply := make(chan error, 1)
	err, ok := awaitReply(c, s, board.ActivateMsg{Context: id, Reply: reply}, reply)
	if !ok {
		return
	}
	if err != nil {
		s.contextError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": id})
}

func (s *Server) handleRefresh(c *gin.Context) {
	id := c.Param("id")
	reply := make(chan error, 1)
	err, ok := awaitReply(c, s, board.RefreshMsg{Context: id, Reply: reply}, reply)
	if !ok {
		return
	}
	if err != nil {
		s.contextError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"refreshing": id})
}

func (s *Server) contextError(c *gin.Context, err error) {
	if errors.Is(err, board.ErrUnknownContext) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (s *Server) handleCountdowns(c *gin.Context) {
	snap := s.board.Snapshot()
	owner, filter := c.GetQuery("owner")
	if !filter {
		c.JSON(http.StatusOK, snap.Countdowns)
		return
	}
	out := make([]countdown.Display, 0, len(snap.Countdowns))
	for _, d := range snap.Countdowns {
		if d.Owner == owner {
			out = append(out, d)
		}
	}
	c.JSON(http.StatusOK, out)
}

type cacheEntry struct {
	Key       string    `json:"key"`
	Seq       uint64    `json:"seq"`
	WrittenAt time.Time `json:"written_at"`
	Value     any       `json:"value,omitempty"`
}

func (s *Server) handleCache(c *gin.Context) {
	entries := s.board.Cache().Snapshot()
	out := make([]cacheEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, cacheEntry{Key: e.Key, Seq: e.Seq, WrittenAt: e.WrittenAt})
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleCacheEntry(c *gin.Context) {
	e, ok := s.board.Cache().Get(c.Param("key"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no cached value for " + c.Param("key")})
		return
	}
	c.JSON(http.StatusOK, cacheEntry{Key: e.Key, Seq: e.Seq, WrittenAt: e.WrittenAt, Value: e.Value})
}

func (s *Server) handleJobs(c *gin.Context) {
	c.JSON(http.StatusOK, s.board.Snapshot().Jobs)
}

func (s *Server) handleRequestJob(c *gin.Context) {
	var params map[string]any
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&params); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
			return
		}
	}

	reply := make(chan jobs.Result, 1)
	res, ok := awaitReply(c, s, board.RequestJobMsg{Kind: c.Param("kind"), Params: params, Reply: reply}, reply)
	if !ok {
		return
	}

	switch {
	case errors.Is(res.Err, jobs.ErrUnknownJob):
		c.JSON(http.StatusNotFound, res)
	case res.Err != nil:
		c.JSON(http.StatusInternalServerError, res)
	case res.Duplicate:
		c.JSON(http.StatusConflict, res)
	default:
		c.JSON(http.StatusAccepted, res)
	}
}

// awaitReply sends msg into the loop and waits for its answer. On timeout or
// client disconnect it writes the error response itself and reports false.
// Reply channels are buffered, so a late answer never blocks the loop.
func awaitReply[T any](c *gin.Context, s *Server, msg tea.Msg, reply <-chan T) (T, bool) {
	go s.loop.Send(msg)

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	var zero T
	select {
	case v := <-reply:
		return v, true
	case <-timer.C:
		s.log.Warn().Str("path", c.FullPath()).Msg("event loop did not answer in time")
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "event loop did not answer in time"})
		return zero, false
	case <-c.Request.Context().Done():
		c.Status(http.StatusServiceUnavailable)
		return zero, false
	}
}
