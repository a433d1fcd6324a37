package main

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/crossroadbot/crossroad/pkg/cooldown"
	"github.com/crossroadbot/crossroad/pkg/dispatch"
)

// app is the application state shared by all command handlers.
type app struct {
	startedAt time.Time
	settings  *settingsStore
}

func newApp() *app {
	return &app{
		startedAt: time.Now(),
		settings:  newSettingsStore(),
	}
}

// settingsStore is a per-guild key/value store backing the config commands.
type settingsStore struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

func newSettingsStore() *settingsStore {
	return &settingsStore{values: make(map[string]map[string]string)}
}

func (s *settingsStore) Set(guildID, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values[guildID] == nil {
		s.values[guildID] = make(map[string]string)
	}
	s.values[guildID][key] = value
}

func (s *settingsStore) Get(guildID, key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[guildID][key]
	return v, ok
}

func (s *settingsStore) Keys(guildID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.values[guildID]))
	for k := range s.values[guildID] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// registerCommands builds the command tree.
func registerCommands(registry *dispatch.Registry[*app]) error {
	for _, cmd := range []*dispatch.Command[*app]{
		pingCommand(),
		ageCommand(),
		uptimeCommand(),
		configCommand(),
		userInfoCommand(),
		quoteCommand(),
		shutdownNoticeCommand(),
	} {
		if err := registry.Register(cmd); err != nil {
			return err
		}
	}
	return nil
}

func pingCommand() *dispatch.Command[*app] {
	return &dispatch.Command[*app]{
		Name:        "ping",
		Description: "Check that the bot is alive",
		Category:    "general",
		Cooldowns:   &cooldown.Config{User: 3 * time.Second},
		Run: func(ctx *dispatch.Context[*app]) error {
			return ctx.Say("pong")
		},
	}
}

// ageCommand reports how old a Discord account is, read off the snowflake.
func ageCommand() *dispatch.Command[*app] {
	return &dispatch.Command[*app]{
		Name:        "age",
		Description: "Show how old an account is",
		Category:    "general",
		Run: func(ctx *dispatch.Context[*app]) error {
			id := ""
			if opt := ctx.Option("user"); opt != nil {
				id, _ = opt.Value.(string)
			} else if len(ctx.Args) > 0 {
				id = ctx.Args[0]
			} else if u := ctx.User(); u != nil {
				id = u.ID
			}
			created, err := discordgo.SnowflakeTimestamp(id)
			if err != nil {
				return dispatch.Reject("that does not look like a user ID")
			}
			days := int(time.Since(created).Hours() / 24)
			return ctx.Say(fmt.Sprintf("That account was created <t:%d:D>, %d days ago.", created.Unix(), days))
		},
		Parameters: []*dispatch.Parameter[*app]{
			{
				Name:        "user",
				Description: "Whose account (defaults to you)",
				Type:        discordgo.ApplicationCommandOptionUser,
			},
		},
	}
}

func uptimeCommand() *dispatch.Command[*app] {
	return &dispatch.Command[*app]{
		Name:        "uptime",
		Aliases:     []string{"up"},
		Description: "Show how long the bot has been running",
		Category:    "general",
		Run: func(ctx *dispatch.Context[*app]) error {
			up := time.Since(ctx.Data.startedAt).Round(time.Second)
			return ctx.Say(fmt.Sprintf("Up for %s.", up))
		},
	}
}

// configCommand demonstrates subcommand routing with autocomplete on the
// key parameter.
func configCommand() *dispatch.Command[*app] {
	completeKeys := func(ctx *dispatch.Context[*app], partial string) ([]dispatch.Choice, error) {
		var choices []dispatch.Choice
		for _, key := range ctx.Data.settings.Keys(ctx.GuildID()) {
			if strings.HasPrefix(key, strings.ToLower(partial)) {
				choices = append(choices, dispatch.Choice{Name: key, Value: key})
			}
		}
		return choices, nil
	}

	return &dispatch.Command[*app]{
		Name:        "config",
		Description: "Manage per-server settings",
		Category:    "admin",
		GuildOnly:   true,
		Subcommands: []*dispatch.Command[*app]{
			{
				Name:                "set",
				Description:         "Set a setting",
				RequiredPermissions: discordgo.PermissionManageServer,
				Parameters: []*dispatch.Parameter[*app]{
					{
						Name:         "key",
						Description:  "Setting name",
						Type:         discordgo.ApplicationCommandOptionString,
						Required:     true,
						Autocomplete: completeKeys,
					},
					{
						Name:        "value",
						Description: "New value",
						Type:        discordgo.ApplicationCommandOptionString,
						Required:    true,
					},
				},
				Run: func(ctx *dispatch.Context[*app]) error {
					key, value := optionString(ctx, "key"), optionString(ctx, "value")
					if key == "" || value == "" {
						return dispatch.Reject("both a key and a value are required")
					}
					ctx.Data.settings.Set(ctx.GuildID(), strings.ToLower(key), value)
					return ctx.Say(fmt.Sprintf("`%s` is now `%s`.", key, value))
				},
			},
			{
				Name:        "get",
				Description: "Show a setting",
				Parameters: []*dispatch.Parameter[*app]{
					{
						Name:         "key",
						Description:  "Setting name",
						Type:         discordgo.ApplicationCommandOptionString,
						Required:     true,
						Autocomplete: completeKeys,
					},
				},
				Run: func(ctx *dispatch.Context[*app]) error {
					key := optionString(ctx, "key")
					value, ok := ctx.Data.settings.Get(ctx.GuildID(), strings.ToLower(key))
					if !ok {
						return ctx.Say(fmt.Sprintf("`%s` is not set.", key))
					}
					return ctx.Say(fmt.Sprintf("`%s` = `%s`", key, value))
				},
			},
		},
	}
}

// userInfoCommand is registered both as a slash command and a user context
// menu entry.
func userInfoCommand() *dispatch.Command[*app] {
	describe := func(u *discordgo.User) string {
		return fmt.Sprintf("**%s** (ID %s)", u.Username, u.ID)
	}
	return &dispatch.Command[*app]{
		Name:            "whois",
		Description:     "Show information about yourself",
		ContextMenuName: "Who is this?",
		Category:        "general",
		Ephemeral:       true,
		Run: func(ctx *dispatch.Context[*app]) error {
			u := ctx.User()
			if u == nil {
				return fmt.Errorf("interaction carries no user")
			}
			return ctx.Say(describe(u))
		},
		UserMenu: func(ctx *dispatch.Context[*app], target *discordgo.User) error {
			return ctx.Say(describe(target))
		},
	}
}

// quoteCommand is a message context menu entry.
func quoteCommand() *dispatch.Command[*app] {
	return &dispatch.Command[*app]{
		Name:            "quote",
		ContextMenuName: "Quote",
		Category:        "fun",
		Cooldowns:       &cooldown.Config{Member: 10 * time.Second},
		MessageMenu: func(ctx *dispatch.Context[*app], target *discordgo.Message) error {
			if target.Content == "" {
				return dispatch.Reject("that message has no quotable text")
			}
			who := "someone"
			if target.Author != nil {
				who = target.Author.Username
			}
			return ctx.Say(fmt.Sprintf("> %s\n— %s", target.Content, who))
		},
	}
}

func shutdownNoticeCommand() *dispatch.Command[*app] {
	return &dispatch.Command[*app]{
		Name:        "notice",
		Description: "Broadcast a maintenance notice",
		Category:    "admin",
		OwnerOnly:   true,
		Hidden:      true,
		Parameters: []*dispatch.Parameter[*app]{
			{
				Name:        "text",
				Description: "Notice text",
				Type:        discordgo.ApplicationCommandOptionString,
				Required:    true,
			},
		},
		Run: func(ctx *dispatch.Context[*app]) error {
			text := optionString(ctx, "text")
			if text == "" {
				return dispatch.Reject("notice text is required")
			}
			return ctx.Say(":warning: " + text)
		},
	}
}

// optionString reads a string option from the interaction, or the
// positionally matching token on the prefix path.
func optionString(ctx *dispatch.Context[*app], name string) string {
	if opt := ctx.Option(name); opt != nil {
		if s, ok := opt.Value.(string); ok {
			return s
		}
	}
	if ctx.Interaction == nil {
		for i, p := range ctx.Command.Parameters {
			if p.Name == name && i < len(ctx.Args) {
				return ctx.Args[i]
			}
		}
	}
	return ""
}
