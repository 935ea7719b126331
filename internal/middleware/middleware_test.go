package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"guild-jukebox/internal/command"
	"guild-jukebox/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

type countingCommand struct {
	runs int
	err  error
}

func (c *countingCommand) Name() string        { return "play" }
func (c *countingCommand) Description() string { return "Start playing the queue" }

func (c *countingCommand) Run(ctx context.Context, inv *cmd.Invocation) error {
	c.runs++
	return c.err
}

func slashInvocation(guildID string) *cmd.Invocation {
	return &cmd.Invocation{Data: &command.SlashInteractionContext{
		Event: &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
			GuildID:   guildID,
			ChannelID: "text-1",
			Member:    &discordgo.Member{User: &discordgo.User{ID: "u1"}},
		}},
		Log: zerolog.Nop(),
	}}
}

func TestWithGuildOnly(t *testing.T) {
	inner := &countingCommand{}
	c := cmd.Apply(inner, WithGuildOnly())

	if err := c.Run(context.Background(), slashInvocation("")); err != nil {
		t.Fatal(err)
	}
	if inner.runs != 0 {
		t.Fatal("command ran outside a guild")
	}

	if err := c.Run(context.Background(), slashInvocation("g1")); err != nil {
		t.Fatal(err)
	}
	if inner.runs != 1 {
		t.Errorf("expected one run inside a guild, got %d", inner.runs)
	}
}

func TestWithCommandLogger(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)

	boom := errors.New("boom")
	c := cmd.Apply(&countingCommand{err: boom}, WithCommandLogger(log))
	if err := c.Run(context.Background(), slashInvocation("g1")); !errors.Is(err, boom) {
		t.Fatalf("expected command error to pass through, got %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected one JSON entry: %v (%q)", err, buf.String())
	}
	if entry["command"] != "play" || entry["guild_id"] != "g1" || entry["user_id"] != "u1" || entry["level"] != "warn" {
		t.Errorf("unexpected entry %v", entry)
	}
}
