package dispatch

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Registry holds the top-level command tree. Declaration order is
// significant: the resolver breaks name ties in favor of the first
// registered sibling.
type Registry[D any] struct {
	mu       sync.RWMutex
	commands []*Command[D]
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry[D any](logger *slog.Logger) *Registry[D] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry[D]{
		logger: logger.With("component", "registry"),
	}
}

// Register validates and appends a top-level command. The command tree is
// treated as immutable afterwards.
func (r *Registry[D]) Register(cmd *Command[D]) error {
	if cmd == nil {
		return fmt.Errorf("command is nil")
	}
	if err := validate(cmd, nil); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := strings.ToLower(strings.TrimSpace(cmd.Name))
	cmd.Name = name

	// Duplicate names are kept (first registration wins at resolution time)
	// but flagged: they almost always indicate a wiring mistake.
	for _, existing := range r.commands {
		if existing.Name == name {
			r.logger.Warn("duplicate command name registered", "name", name)
		}
		if cmd.ContextMenuName != "" && existing.ContextMenuName == cmd.ContextMenuName {
			r.logger.Warn("duplicate context menu name registered", "name", cmd.ContextMenuName)
		}
	}

	r.commands = append(r.commands, cmd)
	r.logger.Debug("registered command",
		"name", name,
		"aliases", cmd.Aliases,
		"subcommands", len(cmd.Subcommands),
		"category", cmd.Category)
	return nil
}

// validate checks a command node and its subtree.
func validate[D any](cmd *Command[D], path []string) error {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return fmt.Errorf("command at %q has no name", strings.Join(path, " "))
	}
	if !cmd.executable() {
		return fmt.Errorf("command %q carries no action and no subcommands",
			strings.Join(append(path, name), " "))
	}
	if len(cmd.Subcommands) > 0 && (cmd.UserMenu != nil || cmd.MessageMenu != nil) {
		return fmt.Errorf("command %q mixes subcommands with context menu actions",
			strings.Join(append(path, name), " "))
	}
	for _, sub := range cmd.Subcommands {
		sub.Name = strings.ToLower(strings.TrimSpace(sub.Name))
		if err := validate(sub, append(path, name)); err != nil {
			return err
		}
	}
	return nil
}

// Commands returns the top-level commands in declaration order.
func (r *Registry[D]) Commands() []*Command[D] {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Command[D], len(r.commands))
	copy(out, r.commands)
	return out
}

// ListVisible returns commands that should appear in help listings.
func (r *Registry[D]) ListVisible() []*Command[D] {
	all := r.Commands()
	visible := make([]*Command[D], 0, len(all))
	for _, cmd := range all {
		if !cmd.Hidden {
			visible = append(visible, cmd)
		}
	}
	return visible
}

// ApplicationCommands converts the tree into the Discord registration
// payload: one chat-input entry per slash-invokable root, plus separate
// user/message entries for context menu actions.
func (r *Registry[D]) ApplicationCommands() []*discordgo.ApplicationCommand {
	var out []*discordgo.ApplicationCommand
	for _, cmd := range r.Commands() {
		if cmd.Run != nil || len(cmd.Subcommands) > 0 {
			out = append(out, &discordgo.ApplicationCommand{
				Type:        discordgo.ChatApplicationCommand,
				Name:        cmd.Name,
				Description: cmd.Description,
				Options:     commandOptions(cmd),
			})
		}
		if cmd.ContextMenuName == "" {
			continue
		}
		if cmd.UserMenu != nil {
			out = append(out, &discordgo.ApplicationCommand{
				Type: discordgo.UserApplicationCommand,
				Name: cmd.ContextMenuName,
			})
		}
		if cmd.MessageMenu != nil {
			out = append(out, &discordgo.ApplicationCommand{
				Type: discordgo.MessageApplicationCommand,
				Name: cmd.ContextMenuName,
			})
		}
	}
	return out
}

// commandOptions renders a node's subcommands and parameters as Discord
// options. Subcommand groups nest one level, per the protocol.
func commandOptions[D any](cmd *Command[D]) []*discordgo.ApplicationCommandOption {
	var out []*discordgo.ApplicationCommandOption
	for _, sub := range cmd.Subcommands {
		optType := discordgo.ApplicationCommandOptionSubCommand
		if len(sub.Subcommands) > 0 {
			optType = discordgo.ApplicationCommandOptionSubCommandGroup
		}
		out = append(out, &discordgo.ApplicationCommandOption{
			Type:        optType,
			Name:        sub.Name,
			Description: sub.Description,
			Options:     commandOptions(sub),
		})
	}
	for _, p := range cmd.Parameters {
		opt := &discordgo.ApplicationCommandOption{
			Type:         p.Type,
			Name:         p.Name,
			Description:  p.Description,
			Required:     p.Required,
			Autocomplete: p.Autocomplete != nil,
		}
		for _, c := range p.Choices {
			opt.Choices = append(opt.Choices, &discordgo.ApplicationCommandOptionChoice{
				Name:  c.Name,
				Value: c.Value,
			})
		}
		out = append(out, opt)
	}
	return out
}
