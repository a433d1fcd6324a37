package cooldown

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Janitor periodically evicts stale cooldown slots from a tracker. It is
// opt-in: without a janitor the tracker grows monotonically, which is fine
// when the set of (command, entity) pairs is bounded in practice.
type Janitor struct {
	cron    *cron.Cron
	tracker *Tracker
	logger  *slog.Logger
}

// NewJanitor schedules an eviction sweep on the given cron spec (e.g.
// "@every 10m"). Slots idle for longer than olderThan are removed; olderThan
// should exceed the longest configured cooldown duration or live cooldowns
// would be forgotten.
func NewJanitor(t *Tracker, spec string, olderThan time.Duration, logger *slog.Logger) (*Janitor, error) {
	if olderThan <= 0 {
		return nil, fmt.Errorf("cooldown: janitor olderThan must be positive, got %s", olderThan)
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "cooldown-janitor")

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		removed := t.Evict(olderThan)
		if removed > 0 {
			logger.Debug("evicted stale cooldown slots", "removed", removed, "remaining", t.Len())
		}
	})
	if err != nil {
		return nil, fmt.Errorf("cooldown: invalid janitor schedule %q: %w", spec, err)
	}

	return &Janitor{cron: c, tracker: t, logger: logger}, nil
}

// Start begins the sweep schedule in its own goroutine.
func (j *Janitor) Start() {
	j.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (j *Janitor) Stop() {
	<-j.cron.Stop().Done()
}
