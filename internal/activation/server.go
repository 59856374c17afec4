package activation

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/soloctl/internal/observability"
)

const (
	// DefaultPollInterval bounds worst-case shutdown latency: the accept
	// loop re-checks its stop flag at least this often.
	DefaultPollInterval = 500 * time.Millisecond

	requestWord = "activate"
	replyWord   = "ok"

	maxRequestBytes = 64
	connIOTimeout   = 2 * time.Second
)

// ServerConfig configures the primary's activation listener.
type ServerConfig struct {
	// AppID labels logs and metrics only; it plays no wire role.
	AppID string
	// PollInterval is the accept-loop deadline granularity.
	// Zero means DefaultPollInterval.
	PollInterval time.Duration
	// OnActivate fires on the accept-loop goroutine for each valid request.
	// It must hand off to the application's own main-thread queue rather
	// than do long work inline. Set before Start, never mutated after.
	OnActivate func()
}

// Server listens on an OS-assigned loopback port and answers activation
// requests from duplicate launches.
type Server struct {
	cfg      ServerConfig
	listener *net.TCPListener
	port     int
	stopped  atomic.Bool
	done     chan struct{}
	served   atomic.Uint64
}

func NewServer(cfg ServerConfig) *Server {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Server{cfg: cfg}
}

// Start binds 127.0.0.1:0 and spawns the accept loop. It returns the
// OS-assigned port. A bind failure is returned to the caller so the
// coordinator can roll back; nothing is left running on error.
func (s *Server) Start() (int, error) {
	if s.listener != nil {
		return 0, fmt.Errorf("activation: server already started")
	}
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	if err != nil {
		return 0, fmt.Errorf("activation: bind loopback: %w", err)
	}
	s.listener = ln
	s.port = ln.Addr().(*net.TCPAddr).Port
	s.done = make(chan struct{})
	log.Info().Str("app_id", s.cfg.AppID).Int("port", s.port).Msg("activation.server listening")

	go s.acceptLoop()
	return s.port, nil
}

// Stop signals the accept loop, closes the listener, and waits for the loop
// to exit. Shutdown latency is bounded by one poll interval. Idempotent and
// safe to call while the loop is mid-poll.
func (s *Server) Stop() {
	if s.listener == nil || s.stopped.Swap(true) {
		return
	}
	_ = s.listener.Close()
	select {
	case <-s.done:
	case <-time.After(s.cfg.PollInterval + time.Second):
		log.Warn().Str("app_id", s.cfg.AppID).Msg("activation.server accept loop join timed out")
	}
	log.Info().Str("app_id", s.cfg.AppID).Int("port", s.port).Uint64("served", s.served.Load()).
		Msg("activation.server stopped")
}

// Port returns the bound port, valid after Start.
func (s *Server) Port() int {
	return s.port
}

// Served returns the number of activation requests answered so far.
func (s *Server) Served() uint64 {
	return s.served.Load()
}

// acceptLoop polls Accept with a short deadline so the stop flag is observed
// within one interval, instead of forcing a blocked Accept awake from
// another goroutine.
func (s *Server) acceptLoop() {
	defer close(s.done)
	for {
		if s.stopped.Load() {
			return
		}
		_ = s.listener.SetDeadline(time.Now().Add(s.cfg.PollInterval))
		conn, err := s.listener.Accept()
		if err != nil {
			if s.stopped.Load() {
				return
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if !isClosedErr(err) {
				log.Warn().Str("app_id", s.cfg.AppID).Err(err).Msg("activation.server accept failed")
			}
			continue
		}
		s.handleConn(conn)
	}
}

// handleConn reads one small request, matches it against the protocol word,
// and replies. Mismatches and read errors close silently: a duplicate launch
// that vanished mid-exchange is routine, not reportable.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(connIOTimeout))
	buf := make([]byte, maxRequestBytes)
	n, err := conn.Read(buf)
	if err != nil && n == 0 {
		observability.RecordActivationServed(s.cfg.AppID, observability.OutcomeRejected)
		return
	}
	if string(bytes.TrimSpace(buf[:n])) != requestWord {
		log.Debug().Str("app_id", s.cfg.AppID).Int("bytes", n).Msg("activation.server ignored unknown request")
		observability.RecordActivationServed(s.cfg.AppID, observability.OutcomeRejected)
		return
	}

	if s.cfg.OnActivate != nil {
		s.invokeCallback()
	}
	s.served.Add(1)
	observability.RecordActivationServed(s.cfg.AppID, observability.OutcomeOK)
	if _, err := conn.Write([]byte(replyWord)); err != nil {
		log.Warn().Str("app_id", s.cfg.AppID).Err(err).Msg("activation.server reply write failed")
	}
}

// invokeCallback shields the accept loop from a panicking embedder callback.
func (s *Server) invokeCallback() {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("app_id", s.cfg.AppID).Any("panic", r).Msg("activation.server callback panicked")
		}
	}()
	s.cfg.OnActivate()
}

func isClosedErr(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
