package netsync

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
)

// ServerConfig configures a Server.
type ServerConfig struct {
	// Compress zstd-compresses every frame.
	Compress bool
	// SendQueue is the number of frames buffered per client before the
	// client is considered too slow and dropped.
	SendQueue int
}

// Server fans frames out to every connected mirror client.
type Server struct {
	upgrader ws.Upgrader
	enc      *zstd.Encoder
	queue    int
	logger   *slog.Logger

	mu     sync.Mutex
	peers  map[*peer]struct{}
	latest []byte
	closed bool
}

// NewServer returns a server with no clients.
func NewServer(cfg ServerConfig, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		queue:  cfg.SendQueue,
		logger: logger,
		peers:  make(map[*peer]struct{}),
	}
	if s.queue <= 0 {
		s.queue = defaultQueue
	}
	if cfg.Compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		if err != nil {
			return nil, err
		}
		s.enc = enc
	}
	return s, nil
}

// Handler upgrades requests to websocket connections. A new client gets the
// latest frame right away.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveWS)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("WebSocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	p := newPeer(conn, s.queue, s.logger.With("remote", r.RemoteAddr))

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		p.stop(ws.CloseGoingAway, "session ended")
		return
	}
	s.peers[p] = struct{}{}
	latest := s.latest
	s.mu.Unlock()

	s.logger.Info("Mirror client connected", "remote", r.RemoteAddr)
	if latest != nil {
		p.send(latest)
	}

	go p.writeLoop()
	p.readLoop()

	s.remove(p)
	p.stop(ws.CloseNormalClosure, "")
	s.logger.Info("Mirror client disconnected", "remote", r.RemoteAddr)
}

func (s *Server) remove(p *peer) {
	s.mu.Lock()
	delete(s.peers, p)
	s.mu.Unlock()
}

// Broadcast queues frame for every client and returns how many accepted it.
// Clients whose queue is full are disconnected.
func (s *Server) Broadcast(frame []byte) int {
	msg := frame
	if s.enc != nil {
		msg = s.enc.EncodeAll(frame, make([]byte, 0, len(frame)))
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0
	}
	s.latest = msg
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()

	sent := 0
	for _, p := range peers {
		if p.send(msg) {
			sent++
			continue
		}
		s.logger.Warn("Dropping slow mirror client", "remote", p.conn.RemoteAddr().String())
		s.remove(p)
		p.stop(ws.ClosePolicyViolation, "client too slow")
	}
	return sent
}

// Clients returns the number of connected clients.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

// Close tells every client the session has ended and disconnects them.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	peers := s.peers
	s.peers = make(map[*peer]struct{})
	s.mu.Unlock()

	for p := range peers {
		p.stop(ws.CloseGoingAway, "session ended")
	}
	if s.enc != nil {
		return s.enc.Close()
	}
	return nil
}

// peer is one client connection with a single write goroutine.
type peer struct {
	conn   *ws.Conn
	sendCh chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func newPeer(conn *ws.Conn, queue int, logger *slog.Logger) *peer {
	conn.SetReadLimit(512)
	return &peer{
		conn:   conn,
		sendCh: make(chan []byte, queue),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// send pushes data to the write loop. Non-blocking; false if the queue is full.
func (p *peer) send(data []byte) bool {
	select {
	case <-p.done:
		return false
	default:
	}
	select {
	case p.sendCh <- data:
		return true
	default:
		return false
	}
}

func (p *peer) writeLoop() {
	for {
		select {
		case <-p.done:
			return
		case data := <-p.sendCh:
			if err := p.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				p.logger.Warn("WebSocket SetWriteDeadline error", "error", err)
				p.stop(ws.CloseInternalServerErr, "")
				return
			}
			if err := p.conn.WriteMessage(ws.BinaryMessage, data); err != nil {
				p.logger.Warn("WebSocket write error", "error", err)
				p.stop(ws.CloseInternalServerErr, "")
				return
			}
		}
	}
}

// readLoop discards client messages until the connection fails.
func (p *peer) readLoop() {
	for {
		if _, _, err := p.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// stop sends a close frame and closes the connection. Safe to call more
// than once.
func (p *peer) stop(code int, text string) {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.WriteControl(ws.CloseMessage, ws.FormatCloseMessage(code, text), time.Now().Add(closeWait))
		_ = p.conn.Close()
	})
}
