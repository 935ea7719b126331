package music

import (
	"context"

	"guild-jukebox/internal/music/dispatch"

	"github.com/bwmarrin/discordgo"
)

type PlayCommand struct{ deps *Deps }

func (c *PlayCommand) Name() string        { return dispatch.CmdPlay }
func (c *PlayCommand) Description() string { return "Start playing the queue" }
func (c *PlayCommand) Category() string    { return category }

func (c *PlayCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return definition(c)
}

func (c *PlayCommand) Run(ctx context.Context, data any) error {
	sc, err := slashContext(data)
	if err != nil {
		return err
	}
	notify := Notifier(sc.Session, sc.Event.ChannelID, sc.Log)
	return respond(sc, c.deps.Dispatcher.Play(sc.Event.GuildID, notify))
}

type PauseCommand struct{ deps *Deps }

func (c *PauseCommand) Name() string        { return dispatch.CmdPause }
func (c *PauseCommand) Description() string { return "Pause the current track" }
func (c *PauseCommand) Category() string    { return category }

func (c *PauseCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return definition(c)
}

func (c *PauseCommand) Run(ctx context.Context, data any) error {
	sc, err := slashContext(data)
	if err != nil {
		return err
	}
	return respond(sc, c.deps.Dispatcher.Pause(sc.Event.GuildID))
}

type ResumeCommand struct{ deps *Deps }

func (c *ResumeCommand) Name() string        { return dispatch.CmdResume }
func (c *ResumeCommand) Description() string { return "Resume the paused track" }
func (c *ResumeCommand) Category() string    { return category }

func (c *ResumeCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return definition(c)
}

func (c *ResumeCommand) Run(ctx context.Context, data any) error {
	sc, err := slashContext(data)
	if err != nil {
		return err
	}
	return respond(sc, c.deps.Dispatcher.Resume(sc.Event.GuildID))
}

type SkipCommand struct{ deps *Deps }

func (c *SkipCommand) Name() string        { return dispatch.CmdSkip }
func (c *SkipCommand) Description() string { return "Skip to the next track" }
func (c *SkipCommand) Category() string    { return category }

func (c *SkipCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return definition(c)
}

func (c *SkipCommand) Run(ctx context.Context, data any) error {
	sc, err := slashContext(data)
	if err != nil {
		return err
	}
	return respond(sc, c.deps.Dispatcher.Skip(sc.Event.GuildID))
}
