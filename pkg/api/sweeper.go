package api

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/opencanvass/canvassd/pkg/audit"
	"github.com/opencanvass/canvassd/pkg/observability"
	"github.com/opencanvass/canvassd/pkg/schema"
	"github.com/opencanvass/canvassd/pkg/store"
)

// Audit events are kept this long before the sweeper prunes them.
const auditRetention = 90 * 24 * time.Hour

// Sweeper periodically removes canvass assignments whose expiry has passed
// and prunes audit events past their retention. Expiry is the assignment's
// expiresAt field, a unix timestamp in seconds; assignments without one
// never expire.
type Sweeper struct {
	store store.Store
	trail *audit.StoreTrail
	log   *observability.Logger
	cron  *cron.Cron
}

// NewSweeper creates a sweeper running on the given cron schedule
// (e.g. "@every 1m"). A nil trail disables audit pruning.
func NewSweeper(st store.Store, trail *audit.StoreTrail, log *observability.Logger, schedule string) (*Sweeper, error) {
	s := &Sweeper{
		store: st,
		trail: trail,
		log:   log,
		cron:  cron.New(),
	}
	if _, err := s.cron.AddFunc(schedule, s.sweep); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins the sweep schedule
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	filter := store.Filter{Conds: []store.Cond{{
		Field: "expiresAt",
		Op:    store.OpLt,
		Value: float64(time.Now().Unix()),
	}}}

	removed, err := s.store.Collection(schema.CollAssignments).Remove(ctx, filter)
	if err != nil {
		s.log.WithError(err).Error("assignment sweep failed")
		return
	}
	if removed > 0 {
		s.log.WithField("removed", removed).Info("swept expired assignments")
	}

	if s.trail == nil {
		return
	}
	pruned, err := s.trail.Prune(ctx, time.Now().Add(-auditRetention))
	if err != nil {
		s.log.WithError(err).Error("audit prune failed")
		return
	}
	if pruned > 0 {
		s.log.WithField("pruned", pruned).Info("pruned old audit events")
	}
}
