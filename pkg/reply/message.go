package reply

import (
	"io"

	"github.com/bwmarrin/discordgo"
)

// Message is a builder that abstracts over initial responses, follow-ups and
// edits: build once, send through whichever channel applies.
type Message struct {
	content         string
	embeds          []*discordgo.MessageEmbed
	components      []discordgo.MessageComponent
	files           []*discordgo.File
	allowedMentions *discordgo.MessageAllowedMentions
	ephemeral       *bool
}

// New creates a blank message.
func New() *Message {
	return &Message{}
}

// Content sets the message text.
func (m *Message) Content(content string) *Message {
	m.content = content
	return m
}

// Text returns the message content.
func (m *Message) Text() string {
	return m.content
}

// Embed appends an embed. Existing embeds are kept.
func (m *Message) Embed(embed *discordgo.MessageEmbed) *Message {
	m.embeds = append(m.embeds, embed)
	return m
}

// Components replaces the message components (buttons, select menus).
func (m *Message) Components(components ...discordgo.MessageComponent) *Message {
	m.components = components
	return m
}

// File attaches a file. Attachments have no effect on an initial response.
func (m *Message) File(name string, reader io.Reader) *Message {
	m.files = append(m.files, &discordgo.File{Name: name, Reader: reader})
	return m
}

// AllowedMentions sets the allowed mentions for the message.
func (m *Message) AllowedMentions(am *discordgo.MessageAllowedMentions) *Message {
	m.allowedMentions = am
	return m
}

// Ephemeral toggles whether only the invoking user sees the message,
// overriding the command's default.
func (m *Message) Ephemeral(ephemeral bool) *Message {
	m.ephemeral = &ephemeral
	return m
}

func (m *Message) isEphemeral(fallback bool) bool {
	if m.ephemeral != nil {
		return *m.ephemeral
	}
	return fallback
}

func (m *Message) responseData(ephemeralDefault bool) *discordgo.InteractionResponseData {
	data := &discordgo.InteractionResponseData{
		Content:         m.content,
		Embeds:          m.embeds,
		Components:      m.components,
		Files:           m.files,
		AllowedMentions: m.allowedMentions,
	}
	if m.isEphemeral(ephemeralDefault) {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return data
}

func (m *Message) webhookParams(ephemeralDefault bool) *discordgo.WebhookParams {
	params := &discordgo.WebhookParams{
		Content:         m.content,
		Embeds:          m.embeds,
		Components:      m.components,
		Files:           m.files,
		AllowedMentions: m.allowedMentions,
	}
	if m.isEphemeral(ephemeralDefault) {
		params.Flags = discordgo.MessageFlagsEphemeral
	}
	return params
}

func (m *Message) webhookEdit() *discordgo.WebhookEdit {
	edit := &discordgo.WebhookEdit{
		Content:         &m.content,
		AllowedMentions: m.allowedMentions,
	}
	if m.embeds != nil {
		edit.Embeds = &m.embeds
	}
	if m.components != nil {
		edit.Components = &m.components
	}
	if m.files != nil {
		edit.Files = m.files
	}
	return edit
}
