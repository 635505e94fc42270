// Package sweeper evicts bots that have been inactive past the retention
// window: the live handle is stopped, then the tenant record and stored
// credentials are removed.
package sweeper

import (
	"log"
	"time"

	"github.com/gluk-w/bothive/internal/logutil"
	"github.com/gluk-w/bothive/internal/registry"
	"github.com/gluk-w/bothive/internal/store"
	"github.com/robfig/cron/v3"
)

// Sweeper runs the eviction pass on a cron schedule.
type Sweeper struct {
	sup       supervisor
	tenants   registry.Registry
	creds     store.Store
	retention time.Duration

	cron  *cron.Cron
	nowFn func() time.Time // injectable clock for testing
}

// supervisor is the slice of the connection supervisor the sweeper needs.
type supervisor interface {
	Stop(botName string)
}

func New(sup supervisor, tenants registry.Registry, creds store.Store, retention time.Duration) *Sweeper {
	return &Sweeper{
		sup:       sup,
		tenants:   tenants,
		creds:     creds,
		retention: retention,
		nowFn:     time.Now,
	}
}

// Start schedules the sweep. The schedule uses cron syntax, e.g. "@hourly".
func (s *Sweeper) Start(schedule string) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(schedule, s.Sweep); err != nil {
		return err
	}
	s.cron.Start()
	log.Printf("[sweeper] scheduled %q with retention %s", schedule, s.retention)
	return nil
}

func (s *Sweeper) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// Sweep evicts every bot whose last activity is older than the retention
// window. Bots are processed one at a time to bound resource usage, and
// one bot's failure never aborts the rest of the sweep.
func (s *Sweeper) Sweep() {
	recs, err := s.tenants.List()
	if err != nil {
		log.Printf("[sweeper] list bots: %v", err)
		return
	}

	cutoff := s.nowFn().Add(-s.retention)
	evicted := 0
	for _, rec := range recs {
		if rec.LastActivityAt.After(cutoff) {
			continue
		}
		name := logutil.SanitizeForLog(rec.BotName)
		s.sup.Stop(rec.BotName)
		if err := s.tenants.Remove(rec.BotName); err != nil {
			log.Printf("[sweeper] remove bot %s: %v", name, err)
			continue
		}
		if err := s.creds.Delete(rec.BotName); err != nil {
			log.Printf("[sweeper] delete credentials for %s: %v", name, err)
			continue
		}
		evicted++
		log.Printf("[sweeper] evicted bot %s (inactive since %s)", name, rec.LastActivityAt.Format(time.RFC3339))
	}
	if evicted > 0 {
		log.Printf("[sweeper] sweep complete: %d of %d bots evicted", evicted, len(recs))
	}
}
