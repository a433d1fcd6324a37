package dispatch

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestContext_SetLocalIsSetOnce(t *testing.T) {
	c := &Context[*botState]{}
	if !c.SetLocal("first") {
		t.Fatal("first SetLocal refused")
	}
	if c.SetLocal("second") {
		t.Error("second SetLocal succeeded")
	}
	if got := c.Local(); got != "first" {
		t.Errorf("Local() = %v, want first", got)
	}
}

func TestContext_Option(t *testing.T) {
	c := &Context[*botState]{
		Options: []*discordgo.ApplicationCommandInteractionDataOption{
			strOpt("key", "volume"),
			strOpt("value", "11"),
		},
	}
	if opt := c.Option("value"); opt == nil || opt.Value != "11" {
		t.Errorf("Option(value) = %+v", opt)
	}
	if opt := c.Option("missing"); opt != nil {
		t.Errorf("Option(missing) = %+v, want nil", opt)
	}
}

func TestContext_UserPrecedence(t *testing.T) {
	memberUser := &discordgo.User{ID: "member"}
	directUser := &discordgo.User{ID: "direct"}
	author := &discordgo.User{ID: "author"}

	t.Run("guild member wins", func(t *testing.T) {
		c := &Context[*botState]{Interaction: &discordgo.InteractionCreate{
			Interaction: &discordgo.Interaction{
				Member: &discordgo.Member{User: memberUser},
				User:   directUser,
			},
		}}
		if got := c.User(); got != memberUser {
			t.Errorf("User() = %v", got)
		}
	})

	t.Run("dm user", func(t *testing.T) {
		c := &Context[*botState]{Interaction: &discordgo.InteractionCreate{
			Interaction: &discordgo.Interaction{User: directUser},
		}}
		if got := c.User(); got != directUser {
			t.Errorf("User() = %v", got)
		}
	})

	t.Run("message author on prefix path", func(t *testing.T) {
		c := &Context[*botState]{TriggerMessage: &discordgo.Message{Author: author}}
		if got := c.User(); got != author {
			t.Errorf("User() = %v", got)
		}
	})
}

func TestQualifiedName(t *testing.T) {
	leaf := &Command[*botState]{Name: "show"}
	parents := []*Command[*botState]{{Name: "config"}, {Name: "alias"}}
	if got := qualifiedName(parents, leaf); got != "config alias show" {
		t.Errorf("qualifiedName = %q", got)
	}
	if got := qualifiedName[*botState](nil, leaf); got != "show" {
		t.Errorf("qualifiedName = %q", got)
	}
}
