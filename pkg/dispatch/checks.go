package dispatch

import (
	"github.com/crossroadbot/crossroad/pkg/cooldown"
)

// Pipeline stage names, used as metric labels.
const (
	stageGlobal      = "global"
	stageCommand     = "command"
	stageOwner       = "owner"
	stagePermissions = "permissions"
	stageCooldown    = "cooldown"
)

// runChecks runs the admission pipeline in fixed order: framework-global
// checks, the command-level predicate, owner/permission checks, cooldown.
// The first rejection short-circuits the rest.
//
// The interaction dispatch path invokes this twice on purpose: once before
// the deferred acknowledgement (fail fast, commit=false) and once
// immediately before handler execution (commit=true). The cooldown stamp is
// committed only on the second call, so an invocation aborted between the
// two checkpoints never consumes a cooldown slot, and two racing invocations
// cannot both pass the committing call.
func (d *Dispatcher[D]) runChecks(ctx *Context[D], commit bool) error {
	for _, check := range d.opts.Checks {
		if err := check(ctx); err != nil {
			return d.rejected(stageGlobal, rejectionOf(ctx.QualifiedName(), err))
		}
	}

	if ctx.Command.Check != nil {
		if err := ctx.Command.Check(ctx); err != nil {
			return d.rejected(stageCommand, rejectionOf(ctx.QualifiedName(), err))
		}
	}

	if ctx.Command.OwnerOnly && !d.isOwner(ctx) {
		return d.rejected(stageOwner, Reject("this command is reserved for the bot owner"))
	}

	if ctx.Command.GuildOnly && ctx.GuildID() == "" {
		return d.rejected(stagePermissions, Reject("this command only works in a server"))
	}

	if required := ctx.Command.RequiredPermissions; required != 0 {
		perms, known := ctx.memberPermissions()
		if !known || perms&required != required {
			return d.rejected(stagePermissions, Reject("you are missing the permissions required for this command"))
		}
	}

	if cfg := ctx.Command.Cooldowns; cfg != nil && !cfg.Zero() && d.opts.Cooldowns != nil {
		entity := cooldown.Entity{GuildID: ctx.GuildID(), ChannelID: ctx.ChannelID()}
		if u := ctx.User(); u != nil {
			entity.UserID = u.ID
		}
		name := ctx.QualifiedName()
		if commit {
			if remaining, ok := d.opts.Cooldowns.Hit(name, entity, *cfg); !ok {
				return d.rejected(stageCooldown, errCooldown(name, remaining))
			}
		} else if remaining := d.opts.Cooldowns.Remaining(name, entity, *cfg); remaining > 0 {
			return d.rejected(stageCooldown, errCooldown(name, remaining))
		}
	}

	return nil
}

// rejected records the rejection stage and passes the error through.
// Rejections are expected and user-facing; they are not logged as errors.
func (d *Dispatcher[D]) rejected(stage string, err *Error) *Error {
	d.metrics.RecordCheckRejection(stage)
	return err
}

// isOwner reports whether the invoking user is a configured bot owner.
func (d *Dispatcher[D]) isOwner(ctx *Context[D]) bool {
	u := ctx.User()
	if u == nil {
		return false
	}
	for _, owner := range d.opts.Owners {
		if owner == u.ID {
			return true
		}
	}
	return false
}
