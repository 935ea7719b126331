package music

import (
	"context"

	"guild-jukebox/internal/command"
	"guild-jukebox/internal/music/dispatch"

	"github.com/bwmarrin/discordgo"
)

type JoinCommand struct{ deps *Deps }

func (c *JoinCommand) Name() string        { return dispatch.CmdJoin }
func (c *JoinCommand) Description() string { return "Join your voice channel" }
func (c *JoinCommand) Category() string    { return category }

func (c *JoinCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return definition(c)
}

func (c *JoinCommand) Run(ctx context.Context, data any) error {
	sc, err := slashContext(data)
	if err != nil {
		return err
	}

	guildID := sc.Event.GuildID
	channelID, err := c.deps.Voice.UserVoiceChannel(guildID, command.UserID(sc.Event))
	if err != nil {
		sc.Log.Debug().Err(err).Str("guild_id", guildID).Msg("caller voice channel not found")
		channelID = ""
	}

	return respondDeferred(ctx, sc, func(ctx context.Context) dispatch.Reply {
		return c.deps.Dispatcher.Join(ctx, guildID, channelID)
	})
}

type LeaveCommand struct{ deps *Deps }

func (c *LeaveCommand) Name() string        { return dispatch.CmdLeave }
func (c *LeaveCommand) Description() string { return "Leave the voice channel and drop the queue" }
func (c *LeaveCommand) Category() string    { return category }

func (c *LeaveCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return definition(c)
}

func (c *LeaveCommand) Run(ctx context.Context, data any) error {
	sc, err := slashContext(data)
	if err != nil {
		return err
	}
	return respond(sc, c.deps.Dispatcher.Leave(sc.Event.GuildID))
}
