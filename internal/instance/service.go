package instance

import (
	"context"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/soloctl/internal/activation"
)

// ServiceConfig configures the soloctl daemon runtime defaults.
type ServiceConfig struct {
	AppID             string
	RuntimeDir        string
	PollInterval      time.Duration
	ActivateTimeout   time.Duration
	HeartbeatInterval time.Duration
	// DiagListenAddr exposes /health, /status, and /metrics when non-empty.
	DiagListenAddr string
	// OnActivate overrides the default log-and-count handler. It fires on
	// the accept-loop goroutine and must hand off long work.
	OnActivate func()
}

// Daemon defaults for standalone runtime configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		AppID:             "soloctl.demo",
		RuntimeDir:        "",
		PollInterval:      activation.DefaultPollInterval,
		ActivateTimeout:   activation.DefaultSendTimeout,
		HeartbeatInterval: 5 * time.Second,
		DiagListenAddr:    "",
	}
}

// Service runs the single-instance lifecycle as a standalone process: become
// primary and serve activations, or activate the existing primary and exit.
type Service struct {
	cfg         ServiceConfig
	coord       *Coordinator
	instanceID  string
	activations atomic.Uint64
	started     time.Time
}

// Daemon constructor using default runtime config.
func NewService() *Service {
	return NewServiceWithConfig(DefaultServiceConfig())
}

// Daemon constructor using explicit config.
func NewServiceWithConfig(cfg ServiceConfig) *Service {
	if strings.TrimSpace(cfg.AppID) == "" {
		cfg.AppID = "soloctl.demo"
	}
	return &Service{
		cfg: cfg,
		coord: NewCoordinator(CoordinatorConfig{
			AppID:           cfg.AppID,
			RuntimeDir:      cfg.RuntimeDir,
			PollInterval:    cfg.PollInterval,
			ActivateTimeout: cfg.ActivateTimeout,
		}),
		instanceID: uuid.NewString(),
	}
}

// Coordinator exposes the underlying façade for embedders and tests.
func (s *Service) Coordinator() *Coordinator {
	return s.coord
}

// Run blocks until signal-driven shutdown when primary. When another
// instance already runs, it forwards an activation request and returns nil:
// a duplicate launch is a routine outcome, not a failure.
func (s *Service) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return s.run(ctx)
}

func (s *Service) run(ctx context.Context) error {
	s.started = time.Now()
	primary, activated, err := s.coord.AcquireOrActivate(s.onActivate)
	if err != nil {
		return err
	}
	if !primary {
		if activated {
			log.Info().Str("app_id", s.cfg.AppID).Str("instance_id", s.instanceID).
				Msg("instance.Service.run activated existing primary, exiting")
			return nil
		}
		log.Warn().Str("app_id", s.cfg.AppID).Str("instance_id", s.instanceID).
			Msg("instance.Service.run lost acquisition race and activation failed, exiting")
		return nil
	}
	defer s.coord.Release()

	diagErr := make(chan error, 1)
	if strings.TrimSpace(s.cfg.DiagListenAddr) != "" {
		go func() {
			diagErr <- s.serveDiag(ctx, s.cfg.DiagListenAddr)
		}()
	}

	ticker := time.NewTicker(s.heartbeatInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("app_id", s.cfg.AppID).Str("instance_id", s.instanceID).
				Msg("instance.Service.run shutdown")
			return nil
		case err := <-diagErr:
			if err != nil {
				return err
			}
		case <-ticker.C:
			log.Info().Str("app_id", s.cfg.AppID).Str("instance_id", s.instanceID).
				Str("state", string(s.coord.State())).
				Int("port", s.coord.Port()).
				Uint64("activations", s.activations.Load()).
				Msg("instance.Service.heartbeat")
		}
	}
}

// Activations returns how many foreground requests this primary received.
func (s *Service) Activations() uint64 {
	return s.activations.Load()
}

// InstanceID returns the per-process identity used in logs and diagnostics.
func (s *Service) InstanceID() string {
	return s.instanceID
}

// onActivate runs on the activation accept-loop goroutine. It only bumps a
// counter and logs; the embedder's handler, if any, owns the real hand-off
// to its main-thread queue.
func (s *Service) onActivate() {
	n := s.activations.Add(1)
	log.Info().Str("app_id", s.cfg.AppID).Str("instance_id", s.instanceID).Uint64("total", n).
		Msg("instance.Service.activation requested")
	if s.cfg.OnActivate != nil {
		s.cfg.OnActivate()
	}
}

func (s *Service) heartbeatInterval() time.Duration {
	if s.cfg.HeartbeatInterval <= 0 {
		return 5 * time.Second
	}
	return s.cfg.HeartbeatInterval
}
