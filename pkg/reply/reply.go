// Package reply manages the request/response lifecycle of an interaction:
// exactly one initial response per invocation, unlimited follow-ups, edits,
// and the one-shot autocomplete suggestion response.
package reply

import (
	"errors"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
)

// ErrAlreadyAcknowledged is returned when a second initial response is
// attempted for the same invocation.
var ErrAlreadyAcknowledged = errors.New("reply: initial response already sent")

// Session is the subset of *discordgo.Session the framework talks to.
// Declaring it here keeps transports mockable in tests.
type Session interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
	InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ApplicationCommandBulkOverwrite(appID string, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

// Slot is the per-invocation "has an initial response been sent" flag. It is
// shared across the handler, the check pipeline's error path, and hook
// callbacks, so it must be atomically readable and writable.
type Slot struct {
	sent atomic.Bool
}

// Acknowledged reports whether the initial response has been sent.
func (s *Slot) Acknowledged() bool {
	return s.sent.Load()
}

// acquire claims the initial response. Exactly one caller wins.
func (s *Slot) acquire() bool {
	return s.sent.CompareAndSwap(false, true)
}

// release rolls the claim back after a failed transport call so a later
// error path can still respond.
func (s *Slot) release() {
	s.sent.Store(false)
}

// Responder sends responses for a single interaction through the slot.
type Responder struct {
	session     Session
	interaction *discordgo.Interaction
	slot        *Slot
	ephemeral   bool
}

// NewResponder wires a responder to an interaction. ephemeralDefault applies
// when a message does not set its own visibility.
func NewResponder(session Session, interaction *discordgo.Interaction, slot *Slot, ephemeralDefault bool) *Responder {
	return &Responder{
		session:     session,
		interaction: interaction,
		slot:        slot,
		ephemeral:   ephemeralDefault,
	}
}

// Acknowledged reports whether the initial response has been sent.
func (r *Responder) Acknowledged() bool {
	return r.slot.Acknowledged()
}

// Defer sends the initial deferred acknowledgement. Returns
// ErrAlreadyAcknowledged if the initial response was already sent.
func (r *Responder) Defer() error {
	if !r.slot.acquire() {
		return ErrAlreadyAcknowledged
	}
	resp := &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}
	if r.ephemeral {
		resp.Data = &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral}
	}
	if err := r.session.InteractionRespond(r.interaction, resp); err != nil {
		r.slot.release()
		return err
	}
	return nil
}

// Send transmits a message: the initial response when none was sent yet,
// a follow-up otherwise. The returned message is nil for initial responses
// (the protocol does not echo them back).
func (r *Responder) Send(m *Message) (*discordgo.Message, error) {
	if r.slot.acquire() {
		err := r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseChannelMessageWithSource,
			Data: m.responseData(r.ephemeral),
		})
		if err != nil {
			r.slot.release()
			return nil, err
		}
		return nil, nil
	}
	return r.session.FollowupMessageCreate(r.interaction, true, m.webhookParams(r.ephemeral))
}

// Say is shorthand for Send with plain content.
func (r *Responder) Say(content string) error {
	_, err := r.Send(New().Content(content))
	return err
}

// Edit rewrites the initial response. It requires an acknowledged slot.
func (r *Responder) Edit(m *Message) (*discordgo.Message, error) {
	if !r.slot.Acknowledged() {
		return nil, errors.New("reply: no initial response to edit")
	}
	return r.session.InteractionResponseEdit(r.interaction, m.webhookEdit())
}

// Autocomplete transmits the suggestion list. Like the initial response it
// is one-shot per invocation.
func (r *Responder) Autocomplete(choices []*discordgo.ApplicationCommandOptionChoice) error {
	if !r.slot.acquire() {
		return ErrAlreadyAcknowledged
	}
	err := r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	})
	if err != nil {
		r.slot.release()
		return err
	}
	return nil
}
