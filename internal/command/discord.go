package command

import (
	"context"
	"errors"

	"guild-jukebox/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

var ErrWrongContext = errors.New("wrong context type")

// Discord-specific contexts (what the runtime passes when executing).

type SlashInteractionContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Log     zerolog.Logger
	// Deferred is set once the interaction has been acknowledged; later
	// answers must be followups.
	Deferred bool
}

// Providers: how a command is registered with Discord.

type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// DiscordMeta is exposed by the Discord adapter so middleware can read the
// category without depending on the concrete command type.
type DiscordMeta interface {
	Category() string
}

// DiscordCommand is what individual Discord commands implement. Run receives
// the transport context as data.
type DiscordCommand interface {
	Name() string
	Description() string
	Category() string
	Run(ctx context.Context, data any) error
}

// DiscordAdapter adapts a DiscordCommand to cmd.Command so it can live in the universal registry.
// It also implements SlashProvider and DiscordMeta by delegating to the inner command.
type DiscordAdapter struct {
	Cmd DiscordCommand
}

func (a *DiscordAdapter) Name() string        { return a.Cmd.Name() }
func (a *DiscordAdapter) Description() string { return a.Cmd.Description() }
func (a *DiscordAdapter) Category() string    { return a.Cmd.Category() }

func (a *DiscordAdapter) Run(ctx context.Context, inv *cmd.Invocation) error {
	return a.Cmd.Run(ctx, inv.Data)
}

func (a *DiscordAdapter) SlashDefinition() *discordgo.ApplicationCommand {
	if sp, ok := a.Cmd.(SlashProvider); ok {
		return sp.SlashDefinition()
	}
	return nil
}

// RegisterCommand registers a Discord command with reg and applies middlewares.
func RegisterCommand(reg *cmd.Registry, discordCmd DiscordCommand, mws ...cmd.Middleware) error {
	return reg.Register(cmd.Apply(&DiscordAdapter{Cmd: discordCmd}, mws...))
}

// StringOption returns the named string option of a slash command, or "".
func StringOption(e *discordgo.InteractionCreate, name string) string {
	if e.Type != discordgo.InteractionApplicationCommand {
		return ""
	}
	for _, opt := range e.ApplicationCommandData().Options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionString {
			return opt.StringValue()
		}
	}
	return ""
}

// UserID returns the invoking user, whether the command ran in a guild or a DM.
func UserID(e *discordgo.InteractionCreate) string {
	if e.Member != nil && e.Member.User != nil {
		return e.Member.User.ID
	}
	if e.User != nil {
		return e.User.ID
	}
	return ""
}
