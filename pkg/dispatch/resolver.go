package dispatch

import (
	"slices"

	"github.com/bwmarrin/discordgo"
)

// resolution is the outcome of a successful tree walk: the deepest matching
// node, the ancestor chain traversed to reach it, and the residual options
// belonging to it.
type resolution[D any] struct {
	command *Command[D]
	parents []*Command[D]
	options []*discordgo.ApplicationCommandInteractionDataOption
}

// subOption returns the nested subcommand or subcommand-group option, if the
// option list carries one. The protocol sends at most one.
func subOption(options []*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	for _, opt := range options {
		switch opt.Type {
		case discordgo.ApplicationCommandOptionSubCommand,
			discordgo.ApplicationCommandOptionSubCommandGroup:
			return opt
		}
	}
	return nil
}

// findCommand walks siblings depth-first in declaration order: the first
// sibling whose name (or context menu name) equals the current token wins.
// When the matched node's options carry a subcommand option, the walk
// recurses into the node's subcommand list; otherwise the node is the leaf
// and the current options are returned untouched. Registration does not
// enforce name uniqueness, so a failed descent falls through to later
// siblings rather than aborting.
func findCommand[D any](
	name string,
	options []*discordgo.ApplicationCommandInteractionDataOption,
	commands []*Command[D],
	parents []*Command[D],
) (*resolution[D], bool) {
	for _, cmd := range commands {
		if name != cmd.Name && (cmd.ContextMenuName == "" || name != cmd.ContextMenuName) {
			continue
		}
		if sub := subOption(options); sub != nil {
			chain := append(slices.Clone(parents), cmd)
			if res, ok := findCommand(sub.Name, sub.Options, cmd.Subcommands, chain); ok {
				return res, true
			}
			continue
		}
		return &resolution[D]{command: cmd, parents: parents, options: options}, true
	}
	return nil, false
}

// findPrefixCommand is the token-stream variant of findCommand: matching is
// against name or alias (already case-folded by the parser), descent happens
// when the next token names a child, and residual tokens are threaded
// through instead of options.
func findPrefixCommand[D any](
	tokens []string,
	commands []*Command[D],
	parents []*Command[D],
) (*Command[D], []*Command[D], []string, bool) {
	if len(tokens) == 0 {
		return nil, nil, nil, false
	}
	for _, cmd := range commands {
		if !cmd.matchesPrefixName(tokens[0]) {
			continue
		}
		if len(cmd.Subcommands) > 0 && len(tokens) > 1 {
			chain := append(slices.Clone(parents), cmd)
			if leaf, p, rest, ok := findPrefixCommand(tokens[1:], cmd.Subcommands, chain); ok {
				return leaf, p, rest, true
			}
		}
		return cmd, parents, tokens[1:], true
	}
	return nil, nil, nil, false
}
