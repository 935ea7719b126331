package music

import (
	"context"

	"guild-jukebox/internal/command"
	"guild-jukebox/internal/music/dispatch"

	"github.com/bwmarrin/discordgo"
)

type SearchCommand struct{ deps *Deps }

func (c *SearchCommand) Name() string        { return dispatch.CmdSearch }
func (c *SearchCommand) Description() string { return "Search for videos" }
func (c *SearchCommand) Category() string    { return category }

func (c *SearchCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return definition(c, &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "keyword",
		Description: "What to search for",
		Required:    true,
	})
}

func (c *SearchCommand) Run(ctx context.Context, data any) error {
	sc, err := slashContext(data)
	if err != nil {
		return err
	}
	keyword := command.StringOption(sc.Event, "keyword")
	return respondDeferred(ctx, sc, func(ctx context.Context) dispatch.Reply {
		return c.deps.Dispatcher.Search(ctx, keyword)
	})
}

type AddCommand struct{ deps *Deps }

func (c *AddCommand) Name() string        { return dispatch.CmdAdd }
func (c *AddCommand) Description() string { return "Add a video to the queue" }
func (c *AddCommand) Category() string    { return category }

func (c *AddCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return definition(c, &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "id",
		Description: "Video id, as listed by /search",
		Required:    true,
	})
}

func (c *AddCommand) Run(ctx context.Context, data any) error {
	sc, err := slashContext(data)
	if err != nil {
		return err
	}
	guildID := sc.Event.GuildID
	ref := command.StringOption(sc.Event, "id")
	return respondDeferred(ctx, sc, func(ctx context.Context) dispatch.Reply {
		return c.deps.Dispatcher.Add(ctx, guildID, ref)
	})
}

type QueueCommand struct{ deps *Deps }

func (c *QueueCommand) Name() string        { return dispatch.CmdQueue }
func (c *QueueCommand) Description() string { return "Show the queue" }
func (c *QueueCommand) Category() string    { return category }

func (c *QueueCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return definition(c)
}

func (c *QueueCommand) Run(ctx context.Context, data any) error {
	sc, err := slashContext(data)
	if err != nil {
		return err
	}
	return respond(sc, c.deps.Dispatcher.Queue(sc.Event.GuildID))
}
