package dispatch

import (
	"context"

	"github.com/bwmarrin/discordgo"

	"github.com/crossroadbot/crossroad/pkg/reply"
)

// Discord caps an autocomplete response at 25 choices.
const maxAutocompleteChoices = 25

// dispatchAutocomplete resolves the target command, reruns the admission
// pipeline in probe mode, and forwards the focused partial input to the
// parameter's suggestion callback. Autocomplete fires on every keystroke, so
// failures here degrade to "no suggestions" instead of surfacing errors to
// the user; only a resolution failure is reported to the caller.
func (d *Dispatcher[D]) dispatchAutocomplete(ctx context.Context, session reply.Session, i *discordgo.InteractionCreate) error {
	data := i.ApplicationCommandData()

	res, ok := findCommand(data.Name, data.Options, d.registry.Commands(), nil)
	if !ok {
		err := errUnknownCommand(data.Name)
		d.logger.Warn("no command matched autocomplete", "name", data.Name)
		d.metrics.RecordAutocomplete("unknown_command")
		return err
	}

	ictx := d.newInteractionContext(ctx, session, i, res)
	span := d.startSpan(ictx, kindAutocomplete)
	defer span.End()

	err := d.runIsolated(ictx, func() error {
		return d.runAutocomplete(ictx)
	})
	if err != nil {
		d.metrics.RecordAutocomplete(outcomeLabel(err))
	}
	return d.finish(ictx, span, kindAutocomplete, err)
}

func (d *Dispatcher[D]) runAutocomplete(ctx *Context[D]) error {
	// Suggestions for a command the caller could not run are a leak, so the
	// pipeline runs here too. Probe mode only: typing is not an invocation
	// and must not stamp cooldowns.
	if err := d.runChecks(ctx, false); err != nil {
		return err
	}

	focused := focusedOption(ctx.Options)
	if focused == nil {
		ctx.Logger().Warn("autocomplete interaction carries no focused option")
		d.metrics.RecordAutocomplete("no_focus")
		return nil
	}

	param := ctx.Command.parameter(focused.Name)
	if param == nil {
		return errStructureMismatch(ctx.QualifiedName(), "focused option "+focused.Name+" matches no declared parameter")
	}
	if param.Autocomplete == nil {
		d.metrics.RecordAutocomplete("no_callback")
		return nil
	}

	partial, _ := focused.Value.(string)
	choices, err := param.Autocomplete(ctx, partial)
	if err != nil {
		ctx.Logger().Warn("autocomplete callback failed", "option", focused.Name, "error", err)
		d.metrics.RecordAutocomplete("callback_error")
		return nil
	}
	if len(choices) > maxAutocompleteChoices {
		choices = choices[:maxAutocompleteChoices]
	}

	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(choices))
	for _, c := range choices {
		out = append(out, &discordgo.ApplicationCommandOptionChoice{Name: c.Name, Value: c.Value})
	}
	if err := ctx.Responder.Autocomplete(out); err != nil {
		ctx.Logger().Warn("sending autocomplete choices failed", "error", err)
		d.metrics.RecordAutocomplete("send_error")
		return nil
	}
	d.metrics.RecordAutocomplete("ok")
	return nil
}

// focusedOption returns the option the user is currently typing in, if any.
func focusedOption(options []*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	for _, opt := range options {
		if opt.Focused {
			return opt
		}
	}
	return nil
}
