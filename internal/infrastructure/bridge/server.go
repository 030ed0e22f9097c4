package bridge

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"playgrid/internal/core/domain"
	"playgrid/internal/core/ports"
	"playgrid/pkg/utils"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Surfaces connect from locally hosted embed pages.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// EventSink receives ordered inbound surface events.
type EventSink interface {
	HandleSurfaceEvent(event domain.SurfaceEvent)
}

// Config tunes the bridge transport.
type Config struct {
	PingInterval   time.Duration
	PongTimeout    time.Duration
	WriteTimeout   time.Duration
	MessagesPerSec float64
	MessageBurst   int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		PingInterval:   30 * time.Second,
		PongTimeout:    60 * time.Second,
		WriteTimeout:   10 * time.Second,
		MessagesPerSec: 50,
		MessageBurst:   100,
	}
}

// Server accepts websocket connections from rendering surfaces. Each
// connection is paired to exactly one stream via a short-lived token, becomes
// that stream's RenderingSurface in the pool, and feeds inbound events into
// the engine. A misbehaving surface is rate limited per connection.
type Server struct {
	cfg    Config
	tokens *TokenIssuer
	pool   ports.SurfacePool
	sink   EventSink
	logger *zap.SugaredLogger
}

func NewServer(cfg Config, tokens *TokenIssuer, pool ports.SurfacePool, sink EventSink, logger *zap.SugaredLogger) *Server {
	return &Server{
		cfg:    cfg,
		tokens: tokens,
		pool:   pool,
		sink:   sink,
		logger: logger,
	}
}

// HandleWebSocket upgrades one surface connection and runs its read loop
// until the surface disconnects.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenString := r.URL.Query().Get("token")
	streamID, err := s.tokens.Validate(tokenString)
	if err != nil {
		s.logger.Warnw("surface pairing rejected", "error", err, "remote", r.RemoteAddr)
		http.Error(w, "invalid pairing token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}

	surfaceID := domain.SurfaceID(utils.GenerateSurfaceID())
	surface := newWSSurface(surfaceID, streamID, conn, s.cfg.WriteTimeout, s.cfg.PingInterval)
	defer surface.Close()

	// A reconnecting surface replaces the previous registration for the
	// same stream.
	if old, ok := s.pool.Lookup(streamID); ok {
		s.pool.Unregister(old.ID())
		old.Close()
		s.logger.Infow("replacing surface for reconnecting stream", "stream_id", streamID)
	}
	s.pool.Register(surface, streamID)
	defer s.pool.Unregister(surfaceID)

	s.logger.Infow("surface connected",
		"surface_id", surfaceID,
		"stream_id", streamID,
		"remote", r.RemoteAddr,
	)

	conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))
		return nil
	})

	limiter := rate.NewLimiter(rate.Limit(s.cfg.MessagesPerSec), s.cfg.MessageBurst)
	s.readLoop(surface, conn, limiter)

	s.logger.Infow("surface disconnected", "surface_id", surfaceID, "stream_id", streamID)
}

func (s *Server) readLoop(surface *wsSurface, conn *websocket.Conn, limiter *rate.Limiter) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warnw("surface read error", "surface_id", surface.ID(), "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.cfg.PongTimeout))

		if !limiter.Allow() {
			s.logger.Warnw("surface rate limited, dropping event", "surface_id", surface.ID())
			continue
		}

		var event domain.SurfaceEvent
		if err := json.Unmarshal(data, &event); err != nil {
			s.logger.Debugw("malformed surface event", "surface_id", surface.ID(), "error", err)
			continue
		}

		// The connection's pairing decides stream ownership, not the
		// payload.
		event.StreamID = surface.StreamID()
		if event.Timestamp.IsZero() {
			event.Timestamp = time.Now()
		}
		s.sink.HandleSurfaceEvent(event)
	}
}
