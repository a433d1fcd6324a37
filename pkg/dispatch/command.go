// Package dispatch routes inbound Discord interactions and text commands
// onto a statically declared command tree, runs an admission pipeline
// (checks, permissions, cooldowns), and executes the matched handler exactly
// once with panic isolation.
//
// The type parameter D is the application data type shared by every
// invocation, fixed once per deployed bot.
package dispatch

import (
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/crossroadbot/crossroad/pkg/cooldown"
)

// Handler executes a chat-input (slash or prefix) command.
type Handler[D any] func(ctx *Context[D]) error

// UserHandler executes a user context-menu command against the resolved
// target user.
type UserHandler[D any] func(ctx *Context[D], user *discordgo.User) error

// MessageHandler executes a message context-menu command against the
// resolved target message.
type MessageHandler[D any] func(ctx *Context[D], message *discordgo.Message) error

// AutocompleteFunc generates suggestions for the partial input of a focused
// parameter.
type AutocompleteFunc[D any] func(ctx *Context[D], partial string) ([]Choice, error)

// CheckFunc admits or rejects an invocation before the handler runs.
// Returning nil allows; returning an error (typically from Reject) denies.
type CheckFunc[D any] func(ctx *Context[D]) error

// Choice is one autocomplete suggestion or static parameter choice.
type Choice struct {
	Name  string
	Value any
}

// Parameter declares one typed command parameter.
type Parameter[D any] struct {
	Name        string
	Description string

	// Type is the Discord option type (string, integer, user, ...).
	Type discordgo.ApplicationCommandOptionType

	Required bool

	// Choices are static suggestions registered with the command schema.
	Choices []Choice

	// Autocomplete, when set, marks the parameter autocompletable and
	// serves suggestion requests for it.
	Autocomplete AutocompleteFunc[D]
}

// Command is one node of the command tree. Nodes are immutable after
// registration. A node with subcommands routes strictly by child name before
// being considered a leaf; a node is a valid dispatch target only when it
// carries an action matching the interaction kind.
type Command[D any] struct {
	// Name is the slash/prefix name, lowercase.
	Name string

	// Aliases are alternative prefix-invocation names.
	Aliases []string

	Description string

	// ContextMenuName, when set, additionally registers the command as a
	// context-menu entry under that label.
	ContextMenuName string

	Parameters  []*Parameter[D]
	Subcommands []*Command[D]

	// Run handles chat-input invocations.
	Run Handler[D]

	// UserMenu handles user context-menu invocations.
	UserMenu UserHandler[D]

	// MessageMenu handles message context-menu invocations.
	MessageMenu MessageHandler[D]

	// Check is the command-level admission predicate.
	Check CheckFunc[D]

	// RequiredPermissions is a discordgo permission bit set the invoking
	// member must fully hold.
	RequiredPermissions int64

	// OwnerOnly restricts the command to the configured bot owners.
	OwnerOnly bool

	// GuildOnly rejects invocations outside a guild (DMs).
	GuildOnly bool

	// Ephemeral makes responses visible only to the invoker by default.
	Ephemeral bool

	// Cooldowns configures per-scope cooldown durations, nil for none.
	Cooldowns *cooldown.Config

	// Hidden excludes the command from help listings.
	Hidden bool

	// Category groups commands in help output.
	Category string
}

// executable reports whether the node can be dispatched to or routed
// through.
func (c *Command[D]) executable() bool {
	return c.Run != nil || c.UserMenu != nil || c.MessageMenu != nil || len(c.Subcommands) > 0
}

// parameter returns the declared parameter with the given name, or nil.
func (c *Command[D]) parameter(name string) *Parameter[D] {
	for _, p := range c.Parameters {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// matchesPrefixName reports whether name equals the command name or one of
// its aliases, ignoring case.
func (c *Command[D]) matchesPrefixName(name string) bool {
	if strings.EqualFold(name, c.Name) {
		return true
	}
	for _, alias := range c.Aliases {
		if strings.EqualFold(name, alias) {
			return true
		}
	}
	return false
}

// qualifiedName joins the ancestor chain and the leaf into the full
// invocation path ("config set").
func qualifiedName[D any](parents []*Command[D], leaf *Command[D]) string {
	if len(parents) == 0 {
		return leaf.Name
	}
	var b strings.Builder
	for _, p := range parents {
		b.WriteString(p.Name)
		b.WriteByte(' ')
	}
	b.WriteString(leaf.Name)
	return b.String()
}
