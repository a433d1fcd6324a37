package dispatch

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestRegistry_Register(t *testing.T) {
	t.Run("rejects empty name", func(t *testing.T) {
		r := NewRegistry[*botState](testLogger())
		if err := r.Register(&Command[*botState]{Name: "  ", Run: noopRun}); err == nil {
			t.Error("blank name accepted")
		}
	})

	t.Run("rejects node without action or children", func(t *testing.T) {
		r := NewRegistry[*botState](testLogger())
		if err := r.Register(&Command[*botState]{Name: "empty"}); err == nil {
			t.Error("inert command accepted")
		}
	})

	t.Run("rejects subcommands mixed with context menu actions", func(t *testing.T) {
		r := NewRegistry[*botState](testLogger())
		err := r.Register(&Command[*botState]{
			Name:     "weird",
			UserMenu: func(*Context[*botState], *discordgo.User) error { return nil },
			Subcommands: []*Command[*botState]{
				{Name: "sub", Run: noopRun},
			},
		})
		if err == nil {
			t.Error("mixed node accepted")
		}
	})

	t.Run("lowercases names", func(t *testing.T) {
		r := NewRegistry[*botState](testLogger())
		cmd := &Command[*botState]{Name: "Config", Subcommands: []*Command[*botState]{
			{Name: "Set", Run: noopRun},
		}}
		if err := r.Register(cmd); err != nil {
			t.Fatalf("Register: %v", err)
		}
		if cmd.Name != "config" || cmd.Subcommands[0].Name != "set" {
			t.Errorf("names not folded: %q / %q", cmd.Name, cmd.Subcommands[0].Name)
		}
	})

	t.Run("keeps duplicates in declaration order", func(t *testing.T) {
		r := NewRegistry[*botState](testLogger())
		for range 2 {
			if err := r.Register(&Command[*botState]{Name: "dup", Run: noopRun}); err != nil {
				t.Fatalf("Register: %v", err)
			}
		}
		if got := len(r.Commands()); got != 2 {
			t.Errorf("Commands() = %d entries, want 2", got)
		}
	})
}

func TestRegistry_ListVisible(t *testing.T) {
	r := NewRegistry[*botState](testLogger())
	for _, cmd := range []*Command[*botState]{
		{Name: "ping", Run: noopRun},
		{Name: "secret", Hidden: true, Run: noopRun},
	} {
		if err := r.Register(cmd); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	visible := r.ListVisible()
	if len(visible) != 1 || visible[0].Name != "ping" {
		t.Errorf("visible = %v", visible)
	}
}

func TestRegistry_ApplicationCommands(t *testing.T) {
	r := NewRegistry[*botState](testLogger())
	cmds := []*Command[*botState]{
		{
			Name:        "config",
			Description: "manage settings",
			Subcommands: []*Command[*botState]{
				{
					Name: "set",
					Run:  noopRun,
					Parameters: []*Parameter[*botState]{
						{
							Name:     "key",
							Type:     discordgo.ApplicationCommandOptionString,
							Required: true,
							Autocomplete: func(*Context[*botState], string) ([]Choice, error) {
								return nil, nil
							},
						},
					},
				},
				{
					Name: "alias",
					Subcommands: []*Command[*botState]{
						{Name: "show", Run: noopRun},
					},
				},
			},
		},
		{
			Name:            "report",
			ContextMenuName: "Report Message",
			MessageMenu:     func(*Context[*botState], *discordgo.Message) error { return nil },
		},
	}
	for _, cmd := range cmds {
		if err := r.Register(cmd); err != nil {
			t.Fatalf("Register(%q): %v", cmd.Name, err)
		}
	}

	out := r.ApplicationCommands()
	if len(out) != 2 {
		t.Fatalf("got %d entries, want chat-input config + message menu", len(out))
	}

	config := out[0]
	if config.Type != discordgo.ChatApplicationCommand || config.Name != "config" {
		t.Fatalf("first entry = %+v", config)
	}
	if len(config.Options) != 2 {
		t.Fatalf("config options = %d, want 2", len(config.Options))
	}
	set := config.Options[0]
	if set.Type != discordgo.ApplicationCommandOptionSubCommand {
		t.Errorf("set type = %v", set.Type)
	}
	if len(set.Options) != 1 || !set.Options[0].Autocomplete || !set.Options[0].Required {
		t.Errorf("set parameter rendered wrong: %+v", set.Options)
	}
	if group := config.Options[1]; group.Type != discordgo.ApplicationCommandOptionSubCommandGroup {
		t.Errorf("alias type = %v, want subcommand group", group.Type)
	}

	menu := out[1]
	if menu.Type != discordgo.MessageApplicationCommand || menu.Name != "Report Message" {
		t.Errorf("menu entry = %+v", menu)
	}
}
