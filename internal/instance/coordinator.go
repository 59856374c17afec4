package instance

import (
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/danmuck/soloctl/internal/activation"
	"github.com/danmuck/soloctl/internal/applock"
	"github.com/danmuck/soloctl/internal/observability"
	"github.com/danmuck/soloctl/internal/portfile"
)

// State is the coordinator's in-process lifecycle position. It is not a
// cross-process singleton: each process owns exactly one progression.
type State string

const (
	StateIdle      State = "idle"
	StateAcquiring State = "acquiring"
	StatePrimary   State = "primary"
	StateReleasing State = "releasing"
	StateReleased  State = "released"
)

// CoordinatorConfig configures one coordination attempt scope.
type CoordinatorConfig struct {
	// AppID scopes the lock file, port file, and log/metric labels.
	AppID string
	// RuntimeDir holds the lock and port files. Empty means os.TempDir().
	RuntimeDir string
	// PollInterval is the activation accept-loop deadline granularity.
	PollInterval time.Duration
	// ActivateTimeout bounds one whole SendActivation exchange.
	ActivateTimeout time.Duration
}

// Coordinator defaults for a named app id.
func DefaultCoordinatorConfig(appID string) CoordinatorConfig {
	return CoordinatorConfig{
		AppID:           appID,
		RuntimeDir:      "",
		PollInterval:    activation.DefaultPollInterval,
		ActivateTimeout: activation.DefaultSendTimeout,
	}
}

// Coordinator is the façade over lock, port registry, and activation
// channel: try to become the primary instance, ask the primary to come to
// front, release on shutdown.
type Coordinator struct {
	cfg    CoordinatorConfig
	lock   *applock.Lock
	ports  *portfile.Registry
	server *activation.Server

	mu    sync.Mutex
	state State
}

func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	if strings.TrimSpace(cfg.AppID) == "" {
		cfg.AppID = "soloctl"
	}
	if strings.TrimSpace(cfg.RuntimeDir) == "" {
		cfg.RuntimeDir = os.TempDir()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = activation.DefaultPollInterval
	}
	if cfg.ActivateTimeout <= 0 {
		cfg.ActivateTimeout = activation.DefaultSendTimeout
	}
	return &Coordinator{
		cfg:   cfg,
		lock:  applock.New(cfg.RuntimeDir, cfg.AppID),
		ports: portfile.New(cfg.RuntimeDir, cfg.AppID),
		state: StateIdle,
	}
}

// Acquire attempts to become the primary instance. On success the activation
// listener is running, its port is published, and onActivate will fire on
// the accept-loop goroutine for each activation request. Contention returns
// (false, nil). A listener failure after the lock was granted rolls the lock
// back so no unreachable primary is left behind, and surfaces the error.
func (c *Coordinator) Acquire(onActivate func()) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StatePrimary {
		return true, nil
	}
	c.state = StateAcquiring

	held, err := c.lock.Acquire()
	if err != nil {
		c.state = StateIdle
		observability.RecordAcquireAttempt(c.cfg.AppID, observability.OutcomeError)
		return false, err
	}
	if !held {
		c.state = StateIdle
		observability.RecordAcquireAttempt(c.cfg.AppID, observability.OutcomeContended)
		log.Debug().Str("app_id", c.cfg.AppID).Msg("instance.acquire lock contended")
		return false, nil
	}

	server := activation.NewServer(activation.ServerConfig{
		AppID:        c.cfg.AppID,
		PollInterval: c.cfg.PollInterval,
		OnActivate:   onActivate,
	})
	port, err := server.Start()
	if err != nil {
		c.rollbackLock()
		observability.RecordAcquireAttempt(c.cfg.AppID, observability.OutcomeError)
		return false, err
	}
	if err := c.ports.Publish(port); err != nil {
		server.Stop()
		c.rollbackLock()
		observability.RecordAcquireAttempt(c.cfg.AppID, observability.OutcomeError)
		return false, err
	}

	c.server = server
	c.state = StatePrimary
	observability.RecordAcquireAttempt(c.cfg.AppID, observability.OutcomePrimary)
	log.Info().Str("app_id", c.cfg.AppID).Int("port", port).Str("lock", c.lock.Path()).
		Msg("instance.acquire primary")
	return true, nil
}

// ActivateExisting asks whichever process published the port file to come to
// the foreground. It is independent of this coordinator's state machine and
// has no side effects on failure: a stale port file from a crashed primary
// simply yields false.
func (c *Coordinator) ActivateExisting() bool {
	port, ok := c.ports.Read()
	if !ok {
		log.Debug().Str("app_id", c.cfg.AppID).Msg("instance.activate no primary detectable")
		return false
	}
	return activation.SendActivation(c.cfg.AppID, port, c.cfg.ActivateTimeout)
}

// Release stops the activation listener, clears the port file, and releases
// the lock, in that order, so the port file never outlives its listener.
// Idempotent; callable from any state.
func (c *Coordinator) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StatePrimary {
		c.state = StateReleased
		return
	}
	c.state = StateReleasing

	c.server.Stop()
	c.server = nil
	if err := c.ports.Clear(); err != nil {
		log.Warn().Str("app_id", c.cfg.AppID).Err(err).Msg("instance.release port file clear failed")
	}
	if err := c.lock.Release(); err != nil {
		log.Warn().Str("app_id", c.cfg.AppID).Err(err).Msg("instance.release lock release failed")
	}

	c.state = StateReleased
	log.Info().Str("app_id", c.cfg.AppID).Msg("instance.release done")
}

// AcquireOrActivate resolves a fresh launch end to end: become the primary,
// or activate the existing one. A stale port file left by a crashed primary
// is treated as "no primary": when activation fails, acquisition is retried
// once before giving up.
func (c *Coordinator) AcquireOrActivate(onActivate func()) (primary bool, activated bool, err error) {
	ok, err := c.Acquire(onActivate)
	if err != nil {
		return false, false, err
	}
	if ok {
		return true, false, nil
	}
	if c.ActivateExisting() {
		return false, true, nil
	}
	log.Warn().Str("app_id", c.cfg.AppID).Msg("instance.acquire_or_activate stale primary suspected, retrying acquire")
	ok, err = c.Acquire(onActivate)
	if err != nil {
		return false, false, err
	}
	return ok, false, nil
}

// State returns the coordinator's current lifecycle position.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Port returns the published listener port while primary, zero otherwise.
func (c *Coordinator) Port() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.server == nil {
		return 0
	}
	return c.server.Port()
}

// ActivationsServed returns how many activation requests the listener has
// answered while this coordinator was primary.
func (c *Coordinator) ActivationsServed() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.server == nil {
		return 0
	}
	return c.server.Served()
}

// rollbackLock undoes a granted lock after a later acquisition step failed.
func (c *Coordinator) rollbackLock() {
	if err := c.lock.Release(); err != nil {
		log.Warn().Str("app_id", c.cfg.AppID).Err(err).Msg("instance.acquire rollback lock release failed")
	}
	c.state = StateIdle
}
