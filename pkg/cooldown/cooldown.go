// Package cooldown tracks per-command invocation timestamps across several
// scopes (global, user, guild, channel, member) and answers whether an
// invocation is allowed right now, and if not, how long until it is.
package cooldown

import (
	"sync"
	"time"
)

// Scope is the entity granularity a cooldown is keyed on.
type Scope string

const (
	ScopeGlobal  Scope = "global"
	ScopeUser    Scope = "user"
	ScopeGuild   Scope = "guild"
	ScopeChannel Scope = "channel"
	ScopeMember  Scope = "member"
)

// Config holds one cooldown duration per scope. A zero duration disables
// that scope.
type Config struct {
	Global  time.Duration `yaml:"global"`
	User    time.Duration `yaml:"user"`
	Guild   time.Duration `yaml:"guild"`
	Channel time.Duration `yaml:"channel"`
	Member  time.Duration `yaml:"member"`
}

// Zero reports whether no scope has a cooldown configured.
func (c Config) Zero() bool {
	return c.Global == 0 && c.User == 0 && c.Guild == 0 && c.Channel == 0 && c.Member == 0
}

// Entity identifies the invoking user/guild/channel for scope keying.
// Empty fields disable the scopes that depend on them (e.g. a DM has no
// guild, so guild and member cooldowns do not apply).
type Entity struct {
	UserID    string
	GuildID   string
	ChannelID string
}

// key identifies one cooldown slot: command identity plus scope entity.
type key struct {
	command string
	scope   Scope
	entity  string
}

// Entry is an exported snapshot of one cooldown slot, used by the
// persistence store.
type Entry struct {
	Command   string
	Scope     Scope
	Entity    string
	StampedAt time.Time
}

// Tracker stores last-invocation timestamps. Entries are created lazily on
// first invocation per key and grow monotonically unless Evict or Reset is
// called. The check-and-stamp step is atomic per key: two concurrent Hit
// calls for the same key can never both pass.
type Tracker struct {
	mu     sync.Mutex
	stamps map[key]time.Time
	now    func() time.Time
}

// NewTracker creates an empty tracker using the wall clock.
func NewTracker() *Tracker {
	return &Tracker{
		stamps: make(map[key]time.Time),
		now:    time.Now,
	}
}

// scopes returns the (scope, entity, duration) triples that apply for the
// given config and entity. Scopes with a zero duration or a missing entity
// are skipped.
func scopes(cfg Config, e Entity) []struct {
	scope    Scope
	entity   string
	duration time.Duration
} {
	type sd = struct {
		scope    Scope
		entity   string
		duration time.Duration
	}
	var out []sd
	if cfg.Global > 0 {
		out = append(out, sd{ScopeGlobal, "", cfg.Global})
	}
	if cfg.User > 0 && e.UserID != "" {
		out = append(out, sd{ScopeUser, e.UserID, cfg.User})
	}
	if cfg.Guild > 0 && e.GuildID != "" {
		out = append(out, sd{ScopeGuild, e.GuildID, cfg.Guild})
	}
	if cfg.Channel > 0 && e.ChannelID != "" {
		out = append(out, sd{ScopeChannel, e.ChannelID, cfg.Channel})
	}
	if cfg.Member > 0 && e.GuildID != "" && e.UserID != "" {
		out = append(out, sd{ScopeMember, e.GuildID + ":" + e.UserID, cfg.Member})
	}
	return out
}

// remainingLocked computes the longest remaining wait across all applicable
// scopes. Zero means the invocation is allowed. Caller must hold t.mu.
func (t *Tracker) remainingLocked(command string, e Entity, cfg Config, now time.Time) time.Duration {
	var max time.Duration
	for _, s := range scopes(cfg, e) {
		stamp, ok := t.stamps[key{command, s.scope, s.entity}]
		if !ok {
			continue
		}
		if elapsed := now.Sub(stamp); elapsed < s.duration {
			if rem := s.duration - elapsed; rem > max {
				max = rem
			}
		}
	}
	return max
}

// Remaining probes whether the command is allowed for the entity without
// consuming a cooldown slot. Zero means allowed.
func (t *Tracker) Remaining(command string, e Entity, cfg Config) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.remainingLocked(command, e, cfg, t.now())
}

// Hit atomically checks and, if allowed, stamps every applicable scope with
// the current time. The stamp is committed only when the invocation is
// allowed; a rejected call leaves all slots untouched. Returns the remaining
// wait and whether the invocation may proceed.
func (t *Tracker) Hit(command string, e Entity, cfg Config) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if rem := t.remainingLocked(command, e, cfg, now); rem > 0 {
		return rem, false
	}
	for _, s := range scopes(cfg, e) {
		t.stamps[key{command, s.scope, s.entity}] = now
	}
	return 0, true
}

// Reset removes every slot recorded for the command and entity.
func (t *Tracker) Reset(command string, e Entity) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for k := range t.stamps {
		if k.command != command {
			continue
		}
		switch k.scope {
		case ScopeGlobal:
			delete(t.stamps, k)
		case ScopeUser:
			if k.entity == e.UserID {
				delete(t.stamps, k)
			}
		case ScopeGuild:
			if k.entity == e.GuildID {
				delete(t.stamps, k)
			}
		case ScopeChannel:
			if k.entity == e.ChannelID {
				delete(t.stamps, k)
			}
		case ScopeMember:
			if k.entity == e.GuildID+":"+e.UserID {
				delete(t.stamps, k)
			}
		}
	}
}

// Evict removes every slot last stamped longer than olderThan ago and
// returns the number of removed entries. Long-running processes with high
// entity churn should run this periodically (see Janitor); otherwise the
// map grows one entry per distinct (command, scope entity) pair seen.
func (t *Tracker) Evict(olderThan time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for k, stamp := range t.stamps {
		if now.Sub(stamp) >= olderThan {
			delete(t.stamps, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of live cooldown slots.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.stamps)
}

// Entries snapshots all live slots, for persistence.
func (t *Tracker) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, 0, len(t.stamps))
	for k, stamp := range t.stamps {
		out = append(out, Entry{Command: k.command, Scope: k.scope, Entity: k.entity, StampedAt: stamp})
	}
	return out
}

// Restore loads slots from a snapshot, overwriting existing entries with the
// same key.
func (t *Tracker) Restore(entries []Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, e := range entries {
		t.stamps[key{e.Command, e.Scope, e.Entity}] = e.StampedAt
	}
}
