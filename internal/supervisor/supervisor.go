// Package supervisor owns the lifecycle of every hosted bot: starting,
// deduplicating, reconnecting, and evicting session handles.
//
// The handle map is the single source of truth for "is this bot live".
// The tenant registry holds durable metadata and must not be consulted
// for liveness. At most one handle exists per bot name; a Start that
// loses the insert race is a no-op. Bots that fail terminally are flagged
// and refuse to start again until explicitly deleted.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/gluk-w/bothive/internal/engine"
	"github.com/gluk-w/bothive/internal/logutil"
	"github.com/gluk-w/bothive/internal/registry"
	"github.com/gluk-w/bothive/internal/session"
	"github.com/gluk-w/bothive/internal/store"
	"github.com/google/uuid"
)

// ErrTerminated rejects a Start for a bot whose credential was invalidated
// by a terminal disconnect. The flag sticks until the bot is deleted and
// re-enrolled.
var ErrTerminated = errors.New("bot terminally failed; delete and re-enroll")

// stopCloseTimeout bounds the graceful engine shutdown during Stop.
const stopCloseTimeout = 5 * time.Second

// Config tunes the reconnect policy.
type Config struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxRetries     int
}

// DefaultConfig returns the baseline reconnect policy: exponential backoff
// from 1s capped at 60s, giving up after 10 consecutive failed attempts.
func DefaultConfig() Config {
	return Config{
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     60 * time.Second,
		MaxRetries:     10,
	}
}

// Supervisor manages the in-memory map of bot name → live handle.
type Supervisor struct {
	dialer  engine.Dialer
	creds   store.Store
	tenants registry.Registry
	cfg     Config

	mu      sync.Mutex
	handles map[string]*handle
	failed  map[string]struct{}

	states *stateTracker
	events *eventLog
}

// handle is one bot's ephemeral, process-local connection entry. The ID
// distinguishes a stale dial goroutine from a newer handle for the same
// bot name.
type handle struct {
	id          string
	botName     string
	ownerNumber string
	seed        string
	cancel      context.CancelFunc

	mu   sync.Mutex
	conn engine.Conn
}

func (h *handle) setConn(conn engine.Conn) {
	h.mu.Lock()
	h.conn = conn
	h.mu.Unlock()
}

func (h *handle) connection() engine.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conn
}

// New creates a Supervisor. The dialer is the external engine seam; creds
// and tenants may be either backend.
func New(dialer engine.Dialer, creds store.Store, tenants registry.Registry, cfg Config) *Supervisor {
	return &Supervisor{
		dialer:  dialer,
		creds:   creds,
		tenants: tenants,
		cfg:     cfg,
		handles: make(map[string]*handle),
		failed:  make(map[string]struct{}),
		states:  newStateTracker(),
		events:  newEventLog(),
	}
}

// Start brings up a session for the bot. It is idempotent: a second Start
// while a handle exists is a nil no-op. Terminally failed bots are
// rejected with ErrTerminated. An undecodable seed fails with
// session.ErrInvalidSeed before any state is created.
//
// Credential precedence: state persisted by a previous session is
// strictly newer than the enrollment seed, so the seed is only decoded
// when the store has nothing for this bot.
//
// Connection establishment is asynchronous; Start returns once the handle
// is reserved.
func (s *Supervisor) Start(botName, ownerNumber, seed string) error {
	s.mu.Lock()
	if _, ok := s.handles[botName]; ok {
		s.mu.Unlock()
		return nil
	}
	if _, ok := s.failed[botName]; ok {
		s.mu.Unlock()
		return ErrTerminated
	}
	s.mu.Unlock()

	state, err := s.creds.Load(botName)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		if state, err = session.DecodeSeed(seed); err != nil {
			return err
		}
	default:
		return fmt.Errorf("load credentials for %s: %w", botName, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &handle{
		id:          uuid.NewString(),
		botName:     botName,
		ownerNumber: ownerNumber,
		seed:        seed,
		cancel:      cancel,
	}

	// Insert-if-absent under one lock: only one concurrent Start may win.
	s.mu.Lock()
	if _, ok := s.handles[botName]; ok {
		s.mu.Unlock()
		cancel()
		return nil
	}
	if _, ok := s.failed[botName]; ok {
		s.mu.Unlock()
		cancel()
		return ErrTerminated
	}
	s.handles[botName] = h
	s.mu.Unlock()

	s.states.setState(botName, StateConnecting, "start")
	go s.run(ctx, h, state)
	return nil
}

// Stop tears down the bot's session. Missing handle is a no-op. The
// graceful engine shutdown is best-effort; the handle and the
// terminal-failure flag are removed unconditionally. Safe to call while a
// Start for the same bot is still dialing: the dial goroutine observes
// the cancelled context or the missing handle and tears itself down.
func (s *Supervisor) Stop(botName string) {
	s.mu.Lock()
	h, ok := s.handles[botName]
	if ok {
		delete(s.handles, botName)
	}
	delete(s.failed, botName)
	s.mu.Unlock()
	if !ok {
		return
	}

	h.cancel()
	if conn := h.connection(); conn != nil {
		ctx, cancel := context.WithTimeout(context.Background(), stopCloseTimeout)
		if err := conn.Close(ctx); err != nil {
			log.Printf("[supervisor] bot %s: engine close: %v", logutil.SanitizeForLog(botName), err)
		}
		cancel()
	}

	s.states.setState(botName, StateDisconnected, "stopped")
	s.events.log(botName, EventStopped, "stop requested")
	log.Printf("[supervisor] bot %s stopped", logutil.SanitizeForLog(botName))
}

// StopAll stops every live bot. Used during shutdown.
func (s *Supervisor) StopAll() {
	for _, name := range s.Active() {
		s.Stop(name)
	}
}

// Forget drops all in-memory tracking for a bot (state and event history).
// Called after explicit deletion; Stop alone keeps the history around for
// debugging.
func (s *Supervisor) Forget(botName string) {
	s.Stop(botName)
	s.states.remove(botName)
	s.events.remove(botName)
}

// Active returns the names of all bots with a live or reconnecting
// handle, sorted. This, not the tenant registry, answers liveness.
func (s *Supervisor) Active() []string {
	s.mu.Lock()
	names := make([]string, 0, len(s.handles))
	for name := range s.handles {
		names = append(names, name)
	}
	s.mu.Unlock()
	sort.Strings(names)
	return names
}

// IsActive reports whether the bot has a handle.
func (s *Supervisor) IsActive(botName string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.handles[botName]
	return ok
}

// State returns the bot's in-memory connection state.
func (s *Supervisor) State(botName string) ConnState {
	return s.states.getState(botName)
}

// StateTransitions returns the bot's recent state transition history,
// oldest first.
func (s *Supervisor) StateTransitions(botName string) []StateTransition {
	return s.states.getTransitions(botName)
}

// EventHistory returns the bot's recent lifecycle events, oldest first.
func (s *Supervisor) EventHistory(botName string) []LifecycleEvent {
	return s.events.getEvents(botName)
}

// adopt attaches a freshly dialed connection to the handle, unless a Stop
// won the race and the handle is no longer registered.
func (s *Supervisor) adopt(h *handle, conn engine.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.handles[h.botName]
	if !ok || cur.id != h.id {
		return false
	}
	h.setConn(conn)
	return true
}

// release removes the handle from the map if it is still the registered
// one. Used on cancellation paths where no failure flag applies.
func (s *Supervisor) release(h *handle, reason string) {
	s.mu.Lock()
	if cur, ok := s.handles[h.botName]; ok && cur.id == h.id {
		delete(s.handles, h.botName)
	}
	s.mu.Unlock()
	s.states.setState(h.botName, StateDisconnected, reason)
}

// clearFailure drops the terminal-failure flag, called when a session
// reaches open.
func (s *Supervisor) clearFailure(botName string) {
	s.mu.Lock()
	delete(s.failed, botName)
	s.mu.Unlock()
}

// markFailed flags the bot and removes its handle. If a Stop already
// removed the handle, the flag is not set — Stop clears it by contract
// and this goroutine lost the race.
func (s *Supervisor) markFailed(h *handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.handles[h.botName]
	if !ok || cur.id != h.id {
		return false
	}
	delete(s.handles, h.botName)
	s.failed[h.botName] = struct{}{}
	return true
}
