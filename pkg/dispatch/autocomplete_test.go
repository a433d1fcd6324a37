package dispatch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/crossroadbot/crossroad/pkg/cooldown"
)

func autocompleteInteraction(name string, options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type: discordgo.InteractionApplicationCommandAutocomplete,
			Data: discordgo.ApplicationCommandInteractionData{
				Name:        name,
				CommandType: discordgo.ChatApplicationCommand,
				Options:     options,
			},
			User:      &discordgo.User{ID: "user-1"},
			ChannelID: "chan-1",
		},
	}
}

func focusedOpt(name, partial string) *discordgo.ApplicationCommandInteractionDataOption {
	opt := strOpt(name, partial)
	opt.Focused = true
	return opt
}

func settingsCommand(complete AutocompleteFunc[*botState]) *Command[*botState] {
	return &Command[*botState]{
		Name: "settings",
		Run:  noopRun,
		Parameters: []*Parameter[*botState]{
			{Name: "key", Type: discordgo.ApplicationCommandOptionString, Autocomplete: complete},
			{Name: "value", Type: discordgo.ApplicationCommandOptionString},
		},
	}
}

func TestAutocomplete_SendsChoices(t *testing.T) {
	var gotPartial string
	cmd := settingsCommand(func(_ *Context[*botState], partial string) ([]Choice, error) {
		gotPartial = partial
		return []Choice{
			{Name: "volume", Value: "volume"},
			{Name: "voice", Value: "voice"},
		}, nil
	})
	d, s := newTestDispatcher(t, Options[*botState]{}, cmd)

	i := autocompleteInteraction("settings", focusedOpt("key", "vo"))
	if err := d.HandleInteractionCreate(context.Background(), s, i); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if gotPartial != "vo" {
		t.Errorf("partial = %q, want %q", gotPartial, "vo")
	}
	if len(s.responses) != 1 {
		t.Fatalf("responses = %d, want 1", len(s.responses))
	}
	resp := s.responses[0]
	if resp.Type != discordgo.InteractionApplicationCommandAutocompleteResult {
		t.Errorf("response type = %v", resp.Type)
	}
	if len(resp.Data.Choices) != 2 || resp.Data.Choices[0].Name != "volume" {
		t.Errorf("choices = %+v", resp.Data.Choices)
	}
}

func TestAutocomplete_CapsChoices(t *testing.T) {
	cmd := settingsCommand(func(*Context[*botState], string) ([]Choice, error) {
		out := make([]Choice, 40)
		for i := range out {
			out[i] = Choice{Name: fmt.Sprintf("key-%02d", i), Value: i}
		}
		return out, nil
	})
	d, s := newTestDispatcher(t, Options[*botState]{}, cmd)

	i := autocompleteInteraction("settings", focusedOpt("key", ""))
	if err := d.HandleInteractionCreate(context.Background(), s, i); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	choices := s.responses[0].Data.Choices
	if len(choices) != maxAutocompleteChoices {
		t.Fatalf("sent %d choices, want %d", len(choices), maxAutocompleteChoices)
	}
	// Order preserved, surplus truncated from the tail.
	if choices[0].Name != "key-00" || choices[24].Name != "key-24" {
		t.Errorf("choices out of order: first %q last %q", choices[0].Name, choices[24].Name)
	}
}

func TestAutocomplete_NoCallbackIsSilent(t *testing.T) {
	d, s := newTestDispatcher(t, Options[*botState]{}, settingsCommand(nil))

	i := autocompleteInteraction("settings", focusedOpt("key", "vo"))
	if err := d.HandleInteractionCreate(context.Background(), s, i); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
	if s.outboundCount() != 0 {
		t.Errorf("no-callback autocomplete sent %d responses", s.outboundCount())
	}
}

func TestAutocomplete_CallbackErrorIsSilent(t *testing.T) {
	cmd := settingsCommand(func(*Context[*botState], string) ([]Choice, error) {
		return nil, errors.New("backend down")
	})
	d, s := newTestDispatcher(t, Options[*botState]{}, cmd)

	i := autocompleteInteraction("settings", focusedOpt("key", "vo"))
	if err := d.HandleInteractionCreate(context.Background(), s, i); err != nil {
		t.Fatalf("callback error must not surface, got %v", err)
	}
	if s.outboundCount() != 0 {
		t.Errorf("failed autocomplete sent %d responses", s.outboundCount())
	}
}

func TestAutocomplete_NoFocusedOptionIsSilent(t *testing.T) {
	cmd := settingsCommand(func(*Context[*botState], string) ([]Choice, error) {
		t.Fatal("callback ran without a focused option")
		return nil, nil
	})
	d, s := newTestDispatcher(t, Options[*botState]{}, cmd)

	i := autocompleteInteraction("settings", strOpt("key", "vo"))
	if err := d.HandleInteractionCreate(context.Background(), s, i); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
	if s.outboundCount() != 0 {
		t.Errorf("sent %d responses", s.outboundCount())
	}
}

func TestAutocomplete_UndeclaredOptionIsMismatch(t *testing.T) {
	d, s := newTestDispatcher(t, Options[*botState]{}, settingsCommand(nil))

	i := autocompleteInteraction("settings", focusedOpt("bogus", "x"))
	err := d.HandleInteractionCreate(context.Background(), s, i)
	if CodeOf(err) != CodeStructureMismatch {
		t.Fatalf("code = %q, want %q", CodeOf(err), CodeStructureMismatch)
	}
}

func TestAutocomplete_UnknownCommand(t *testing.T) {
	d, s := newTestDispatcher(t, Options[*botState]{}, settingsCommand(nil))

	err := d.HandleInteractionCreate(context.Background(), s, autocompleteInteraction("nope", focusedOpt("key", "")))
	if CodeOf(err) != CodeUnknownCommand {
		t.Fatalf("code = %q, want %q", CodeOf(err), CodeUnknownCommand)
	}
}

func TestAutocomplete_NeverStampsCooldown(t *testing.T) {
	tracker := cooldown.NewTracker()
	cmd := settingsCommand(func(*Context[*botState], string) ([]Choice, error) {
		return []Choice{{Name: "volume", Value: "volume"}}, nil
	})
	cmd.Cooldowns = &cooldown.Config{User: time.Minute}
	d, s := newTestDispatcher(t, Options[*botState]{Cooldowns: tracker}, cmd)

	for range 3 {
		i := autocompleteInteraction("settings", focusedOpt("key", "vo"))
		if err := d.HandleInteractionCreate(context.Background(), s, i); err != nil {
			t.Fatalf("dispatch: %v", err)
		}
	}
	if tracker.Len() != 0 {
		t.Errorf("autocomplete stamped %d cooldown entries", tracker.Len())
	}
	if len(s.responses) != 3 {
		t.Errorf("responses = %d, want one per keystroke", len(s.responses))
	}
}

func TestAutocomplete_ChecksStillApply(t *testing.T) {
	cmd := settingsCommand(func(*Context[*botState], string) ([]Choice, error) {
		t.Fatal("callback ran for a rejected caller")
		return nil, nil
	})
	d, s := newTestDispatcher(t, Options[*botState]{
		Checks: []CheckFunc[*botState]{
			func(*Context[*botState]) error { return Reject("no access") },
		},
	}, cmd)

	i := autocompleteInteraction("settings", focusedOpt("key", "vo"))
	err := d.HandleInteractionCreate(context.Background(), s, i)
	if CodeOf(err) != CodeCheckRejected {
		t.Fatalf("code = %q, want %q", CodeOf(err), CodeCheckRejected)
	}
	if s.outboundCount() != 0 {
		t.Errorf("rejected autocomplete sent %d responses", s.outboundCount())
	}
}
