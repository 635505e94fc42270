// reconnect.go is the per-bot lifecycle loop: dial the engine, consume
// its events, and on disconnect decide between resuming (transient cause,
// exponential backoff with a retry ceiling) and terminating (credential
// invalidated server-side).
//
// The terminal/transient classification is the semantic contract; the
// backoff and ceiling bound the retry amplification the policy would
// otherwise allow against an unstable engine.

package supervisor

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/gluk-w/bothive/internal/engine"
	"github.com/gluk-w/bothive/internal/logutil"
	"github.com/gluk-w/bothive/internal/registry"
	"github.com/gluk-w/bothive/internal/session"
)

const connectedGreeting = "Bot connected successfully ✅"

// sessionResult summarizes one engine session for the redial decision.
type sessionResult struct {
	opened bool
	cause  engine.CloseCause
	err    error
}

// run is the lifecycle loop for one handle. It exits when the session
// terminates, retries are exhausted, or the handle's context is
// cancelled by Stop.
func (s *Supervisor) run(ctx context.Context, h *handle, state *session.CredentialState) {
	name := logutil.SanitizeForLog(h.botName)
	backoff := s.cfg.InitialBackoff
	retries := 0

	for {
		conn, err := s.dialer.Dial(ctx, engine.Config{BotName: h.botName, State: state})
		if err != nil {
			if ctx.Err() != nil {
				s.release(h, "start cancelled")
				return
			}
			retries++
			log.Printf("[supervisor] bot %s: dial failed (attempt %d/%d): %v", name, retries, s.cfg.MaxRetries, err)
			if retries > s.cfg.MaxRetries {
				s.exhaust(h, err)
				return
			}
			s.states.setState(h.botName, StateReconnecting, fmt.Sprintf("dial failed: %v", err))
			s.events.log(h.botName, EventReconnecting, fmt.Sprintf("dial failed: %v", err))
			if !sleep(ctx, backoff) {
				s.release(h, "cancelled during backoff")
				return
			}
			backoff = s.nextBackoff(backoff)
			continue
		}

		// A Stop may have raced the dial; only the registered handle may
		// keep the connection.
		if !s.adopt(h, conn) {
			closeQuietly(conn)
			log.Printf("[supervisor] bot %s: stop arrived before registration, tearing down", name)
			return
		}

		res := s.consume(ctx, h, conn, &state)

		if ctx.Err() != nil {
			closeQuietly(conn)
			s.release(h, "stopped")
			return
		}

		if res.cause.Terminal() {
			closeQuietly(conn)
			s.terminate(h, res.cause)
			return
		}

		// Transient: drop the dead connection and resume with the
		// current credential state.
		closeQuietly(conn)
		if res.opened {
			retries = 0
			backoff = s.cfg.InitialBackoff
		}
		retries++
		detail := string(res.cause)
		if res.err != nil {
			detail = fmt.Sprintf("%s: %v", res.cause, res.err)
		}
		log.Printf("[supervisor] bot %s: disconnected (%s), resume attempt %d/%d", name, detail, retries, s.cfg.MaxRetries)
		if retries > s.cfg.MaxRetries {
			s.exhaust(h, res.err)
			return
		}
		s.states.setState(h.botName, StateReconnecting, detail)
		s.events.log(h.botName, EventReconnecting, detail)
		if !sleep(ctx, backoff) {
			s.release(h, "cancelled during backoff")
			return
		}
		backoff = s.nextBackoff(backoff)
	}
}

// consume processes events from one engine session until it closes or the
// context is cancelled. Credential rotations are persisted before the
// next event is consumed so a crash loses at most one rotation.
func (s *Supervisor) consume(ctx context.Context, h *handle, conn engine.Conn, state **session.CredentialState) sessionResult {
	name := logutil.SanitizeForLog(h.botName)
	res := sessionResult{cause: engine.CauseConnectionLost}

	for {
		select {
		case <-ctx.Done():
			return res
		case ev, ok := <-conn.Events():
			if !ok {
				// Channel closed without a close event: transient loss.
				return res
			}
			switch ev.Type {
			case engine.EventOpened:
				res.opened = true
				now := time.Now()
				if err := s.tenants.SetStatus(h.botName, registry.StatusConnected, now); err != nil {
					log.Printf("[supervisor] bot %s: persist connected status: %v", name, err)
				}
				s.clearFailure(h.botName)
				s.states.setState(h.botName, StateConnected, "session open")
				s.events.log(h.botName, EventConnected, "")
				log.Printf("[supervisor] bot %s connected", name)
				s.sendGreeting(ctx, h.botName, conn)

			case engine.EventCredentialsRotated:
				*state = ev.State
				s.persistCreds(ctx, h.botName, ev.State)
				s.events.log(h.botName, EventCredsRotated, "")

			case engine.EventClosed:
				res.cause = ev.Cause
				res.err = ev.Err
				s.events.log(h.botName, EventDisconnected, string(ev.Cause))
				return res
			}
		}
	}
}

// terminate evicts a bot whose credential was invalidated: persisted
// status disconnected, stored credential deleted, terminal-failure flag
// set so Start refuses until the bot is deleted and re-enrolled.
func (s *Supervisor) terminate(h *handle, cause engine.CloseCause) {
	name := logutil.SanitizeForLog(h.botName)
	if err := s.tenants.SetStatus(h.botName, registry.StatusDisconnected, time.Now()); err != nil {
		log.Printf("[supervisor] bot %s: persist disconnected status: %v", name, err)
	}
	if err := s.creds.Delete(h.botName); err != nil {
		log.Printf("[supervisor] bot %s: delete invalidated credentials: %v", name, err)
	}
	if !s.markFailed(h) {
		return
	}
	s.states.setState(h.botName, StateFailed, "terminal: "+string(cause))
	s.events.log(h.botName, EventTerminated, string(cause))
	log.Printf("[supervisor] bot %s terminated (%s); re-enrollment required", name, cause)
}

// exhaust gives up on a bot after the retry ceiling. The credential may
// still be valid, so unlike terminate it is kept; the bot is flagged
// failed with status error until deleted and re-enrolled.
func (s *Supervisor) exhaust(h *handle, lastErr error) {
	name := logutil.SanitizeForLog(h.botName)
	if err := s.tenants.SetStatus(h.botName, registry.StatusError, time.Now()); err != nil {
		log.Printf("[supervisor] bot %s: persist error status: %v", name, err)
	}
	if !s.markFailed(h) {
		return
	}
	detail := fmt.Sprintf("gave up after %d attempts", s.cfg.MaxRetries)
	if lastErr != nil {
		detail = fmt.Sprintf("%s: %v", detail, lastErr)
	}
	s.states.setState(h.botName, StateFailed, detail)
	s.events.log(h.botName, EventReconnectFailed, detail)
	log.Printf("[supervisor] bot %s: %s", name, detail)
}

// persistCreds writes rotated credential state, retrying with backoff
// until it succeeds or the bot is stopped. A dropped credential write
// corrupts every future reconnect, so it is never silently discarded.
func (s *Supervisor) persistCreds(ctx context.Context, botName string, state *session.CredentialState) {
	name := logutil.SanitizeForLog(botName)
	backoff := s.cfg.InitialBackoff
	for {
		err := s.creds.Save(botName, state)
		if err == nil {
			return
		}
		log.Printf("[supervisor] bot %s: credential save failed, retrying in %s: %v", name, backoff, err)
		if !sleep(ctx, backoff) {
			log.Printf("[supervisor] bot %s: credential save abandoned on shutdown", name)
			return
		}
		backoff = s.nextBackoff(backoff)
	}
}

// sendGreeting notifies the bot's own account that it is connected.
// Best-effort; delivery carries no guarantee.
func (s *Supervisor) sendGreeting(ctx context.Context, botName string, conn engine.Conn) {
	sendCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.Send(sendCtx, connectedGreeting); err != nil {
		log.Printf("[supervisor] bot %s: greeting send failed: %v", logutil.SanitizeForLog(botName), err)
	}
}

func (s *Supervisor) nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > s.cfg.MaxBackoff {
		next = s.cfg.MaxBackoff
	}
	return next
}

// sleep waits for d, returning false if the context was cancelled first.
func sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

func closeQuietly(conn engine.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), stopCloseTimeout)
	defer cancel()
	_ = conn.Close(ctx)
}
