package dispatch

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"

	"github.com/crossroadbot/crossroad/pkg/reply"
)

// Context carries the state of one invocation from resolution through the
// check pipeline, hooks and handler. It is created once per inbound event
// and never persisted.
type Context[D any] struct {
	context.Context

	// Session is the transport the invocation arrived on.
	Session reply.Session

	// Interaction is the inbound interaction; nil on the prefix path.
	Interaction *discordgo.InteractionCreate

	// TriggerMessage is the inbound text message; nil on the interaction
	// path.
	TriggerMessage *discordgo.Message

	// Command is the resolved leaf node.
	Command *Command[D]

	// Parents is the ancestor chain traversed to reach Command, outermost
	// first.
	Parents []*Command[D]

	// Options are the residual options belonging to the leaf (interaction
	// path).
	Options []*discordgo.ApplicationCommandInteractionDataOption

	// Args are the residual tokens belonging to the leaf (prefix path).
	Args []string

	// Data is the application data, fixed per deployment.
	Data D

	// ID correlates log lines and traces for this invocation.
	ID string

	// Responder sends the invocation's responses through the one-shot slot.
	// Nil on the prefix path, where Say falls back to a channel message.
	Responder *reply.Responder

	logger *slog.Logger

	localSet atomic.Bool
	local    atomic.Value
}

// Logger returns a logger annotated with the invocation ID and command.
func (c *Context[D]) Logger() *slog.Logger {
	return c.logger
}

// QualifiedName is the full invocation path of the resolved command
// ("config set").
func (c *Context[D]) QualifiedName() string {
	return qualifiedName(c.Parents, c.Command)
}

// SetLocal stores the per-invocation data slot. It is set-once: a second
// call is ignored and returns false. Checks typically set it, the handler
// reads it.
func (c *Context[D]) SetLocal(v any) bool {
	if !c.localSet.CompareAndSwap(false, true) {
		return false
	}
	c.local.Store(v)
	return true
}

// Local returns the per-invocation data slot, or nil when unset.
func (c *Context[D]) Local() any {
	return c.local.Load()
}

// Option returns the leaf option with the given name, or nil.
func (c *Context[D]) Option(name string) *discordgo.ApplicationCommandInteractionDataOption {
	for _, opt := range c.Options {
		if opt.Name == name {
			return opt
		}
	}
	return nil
}

// User returns the invoking user, from the member on guild interactions or
// the bare user in DMs and text messages.
func (c *Context[D]) User() *discordgo.User {
	if c.Interaction != nil {
		if c.Interaction.Member != nil && c.Interaction.Member.User != nil {
			return c.Interaction.Member.User
		}
		return c.Interaction.User
	}
	if c.TriggerMessage != nil {
		return c.TriggerMessage.Author
	}
	return nil
}

// GuildID returns the originating guild, or "" for DMs.
func (c *Context[D]) GuildID() string {
	if c.Interaction != nil {
		return c.Interaction.GuildID
	}
	if c.TriggerMessage != nil {
		return c.TriggerMessage.GuildID
	}
	return ""
}

// ChannelID returns the originating channel.
func (c *Context[D]) ChannelID() string {
	if c.Interaction != nil {
		return c.Interaction.ChannelID
	}
	if c.TriggerMessage != nil {
		return c.TriggerMessage.ChannelID
	}
	return ""
}

// memberPermissions returns the invoking member's computed permissions and
// whether they are known (they are not in DMs or on the prefix path without
// member data).
func (c *Context[D]) memberPermissions() (int64, bool) {
	if c.Interaction != nil && c.Interaction.Member != nil {
		return c.Interaction.Member.Permissions, true
	}
	return 0, false
}

// Say sends plain text: an interaction response (initial or follow-up) on
// the interaction path, a channel message on the prefix path.
func (c *Context[D]) Say(content string) error {
	if c.Responder != nil {
		return c.Responder.Say(content)
	}
	_, err := c.Session.ChannelMessageSend(c.ChannelID(), content)
	return err
}

// Send transmits a built message; see Say for path behavior.
func (c *Context[D]) Send(m *reply.Message) error {
	if c.Responder != nil {
		_, err := c.Responder.Send(m)
		return err
	}
	// Prefix-path messages carry content only; the richer fields need an
	// interaction token.
	return c.Say(m.Text())
}

// Defer acknowledges the interaction without content. No-op error on the
// prefix path, which needs no acknowledgement.
func (c *Context[D]) Defer() error {
	if c.Responder == nil {
		return nil
	}
	return c.Responder.Defer()
}
