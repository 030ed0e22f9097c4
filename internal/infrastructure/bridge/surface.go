package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"playgrid/internal/core/domain"
	"playgrid/internal/core/ports"
)

// wsSurface is a rendering surface reachable over one websocket connection.
// Outbound commands and pings go through a single writer goroutine, since
// gorilla connections allow only one concurrent writer.
type wsSurface struct {
	id       domain.SurfaceID
	streamID domain.StreamID
	conn     *websocket.Conn

	writeTimeout time.Duration
	pingInterval time.Duration
	outbound     chan domain.SurfaceCommand

	closeOnce sync.Once
	done      chan struct{}
}

var _ ports.RenderingSurface = (*wsSurface)(nil)

func newWSSurface(id domain.SurfaceID, streamID domain.StreamID, conn *websocket.Conn, writeTimeout, pingInterval time.Duration) *wsSurface {
	s := &wsSurface{
		id:           id,
		streamID:     streamID,
		conn:         conn,
		writeTimeout: writeTimeout,
		pingInterval: pingInterval,
		outbound:     make(chan domain.SurfaceCommand, 32),
		done:         make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

func (s *wsSurface) ID() domain.SurfaceID {
	return s.id
}

func (s *wsSurface) StreamID() domain.StreamID {
	return s.streamID
}

func (s *wsSurface) Alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Send queues one command. A dead surface reports ErrSurfaceDead; a full
// queue drops the command rather than blocking the engine.
func (s *wsSurface) Send(ctx context.Context, cmd domain.SurfaceCommand) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-s.done:
		return domain.ErrSurfaceDead
	case s.outbound <- cmd:
		return nil
	default:
		// Queue full; commands are fire-and-forget so dropping is safe.
		return nil
	}
}

func (s *wsSurface) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.conn.Close()
	})
	return nil
}

func (s *wsSurface) writeLoop() {
	pings := time.NewTicker(s.pingInterval)
	defer pings.Stop()

	for {
		select {
		case <-s.done:
			return
		case cmd := <-s.outbound:
			data, err := json.Marshal(cmd)
			if err != nil {
				continue
			}
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.Close()
				return
			}
		case <-pings.C:
			s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		}
	}
}
