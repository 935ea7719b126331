// Package music holds the slash commands of the music queue.
package music

import (
	"context"
	"errors"
	"fmt"

	"guild-jukebox/internal/command"
	"guild-jukebox/internal/discord"
	"guild-jukebox/internal/music/dispatch"
	"guild-jukebox/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

const category = "🎵 Music"

// VoiceLocator finds the voice channel a guild member is connected to.
type VoiceLocator interface {
	UserVoiceChannel(guildID, userID string) (string, error)
}

// Deps are shared by all music commands.
type Deps struct {
	Dispatcher *dispatch.Dispatcher
	Voice      VoiceLocator
}

// Commands returns every music command bound to deps.
func Commands(deps *Deps) []command.DiscordCommand {
	return []command.DiscordCommand{
		&JoinCommand{deps},
		&LeaveCommand{deps},
		&SearchCommand{deps},
		&AddCommand{deps},
		&PlayCommand{deps},
		&PauseCommand{deps},
		&ResumeCommand{deps},
		&SkipCommand{deps},
		&QueueCommand{deps},
	}
}

// Register adds every music command to reg.
func Register(reg *cmd.Registry, deps *Deps, mws ...cmd.Middleware) error {
	var errs []error
	for _, c := range Commands(deps) {
		if err := command.RegisterCommand(reg, c, mws...); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func slashContext(data any) (*command.SlashInteractionContext, error) {
	sc, ok := data.(*command.SlashInteractionContext)
	if !ok {
		return nil, command.ErrWrongContext
	}
	return sc, nil
}

// respond answers immediately. Rejections are only shown to the caller.
func respond(sc *command.SlashInteractionContext, r dispatch.Reply) error {
	embed := Render(r)
	if r.Kind == dispatch.KindRejected {
		return discord.RespondEmbedEphemeral(sc.Session, sc.Event, embed)
	}
	return discord.RespondEmbed(sc.Session, sc.Event, embed)
}

// respondDeferred acknowledges the interaction first, for commands that
// wait on a provider.
func respondDeferred(ctx context.Context, sc *command.SlashInteractionContext, run func(ctx context.Context) dispatch.Reply) error {
	if err := discord.RespondDeferred(sc.Session, sc.Event); err != nil {
		return fmt.Errorf("failed to defer response: %w", err)
	}
	sc.Deferred = true
	return discord.FollowupEmbed(sc.Session, sc.Event, Render(run(ctx)))
}

func definition(c command.DiscordCommand, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Type:        discordgo.ChatApplicationCommand,
		Options:     opts,
	}
}
