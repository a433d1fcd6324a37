package main

import (
	"io"
	"log/slog"
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/crossroadbot/crossroad/pkg/dispatch"
)

func TestRegisterCommands(t *testing.T) {
	registry := dispatch.NewRegistry[*app](slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := registerCommands(registry); err != nil {
		t.Fatalf("registerCommands: %v", err)
	}

	payload := registry.ApplicationCommands()
	byName := make(map[string]*discordgo.ApplicationCommand, len(payload))
	for _, entry := range payload {
		byName[entry.Name] = entry
	}

	config, ok := byName["config"]
	if !ok {
		t.Fatal("config command missing from registration payload")
	}
	if len(config.Options) != 2 {
		t.Errorf("config subcommands = %d, want set and get", len(config.Options))
	}
	for _, sub := range config.Options {
		if sub.Type != discordgo.ApplicationCommandOptionSubCommand {
			t.Errorf("%s type = %v", sub.Name, sub.Type)
		}
		if len(sub.Options) == 0 || !sub.Options[0].Autocomplete {
			t.Errorf("%s key parameter not autocompletable", sub.Name)
		}
	}

	if menu, ok := byName["Who is this?"]; !ok || menu.Type != discordgo.UserApplicationCommand {
		t.Error("user context menu entry missing")
	}
	if menu, ok := byName["Quote"]; !ok || menu.Type != discordgo.MessageApplicationCommand {
		t.Error("message context menu entry missing")
	}

	// Hidden commands still register with Discord, they are only omitted
	// from help listings.
	if _, ok := byName["notice"]; !ok {
		t.Error("owner notice command missing")
	}
}

func TestSettingsStore(t *testing.T) {
	s := newSettingsStore()
	s.Set("g1", "volume", "11")
	s.Set("g1", "greeting", "hi")
	s.Set("g2", "volume", "3")

	if v, ok := s.Get("g1", "volume"); !ok || v != "11" {
		t.Errorf("Get(g1, volume) = %q, %v", v, ok)
	}
	if _, ok := s.Get("g1", "missing"); ok {
		t.Error("missing key reported present")
	}
	keys := s.Keys("g1")
	if len(keys) != 2 || keys[0] != "greeting" {
		t.Errorf("Keys(g1) = %v, want sorted [greeting volume]", keys)
	}
}

func TestBuildRootCmd(t *testing.T) {
	root := buildRootCmd()
	names := make(map[string]bool)
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"run", "sync", "version"} {
		if !names[want] {
			t.Errorf("missing %q subcommand", want)
		}
	}
}
