package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"guild-jukebox/internal/command"
	"guild-jukebox/pkg/cmd"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

const commandTimeout = time.Minute

type Options struct {
	InitSlashCommands bool
}

// Bot is a Discord bot
type Bot struct {
	dg       *discordgo.Session
	opts     Options
	commands *cmd.Registry
	log      zerolog.Logger
	ctx      context.Context

	regMu  sync.Mutex
	hashes map[string]map[string]string // guild ID -> command name -> definition hash

	shutdown []func()
}

// New creates the gateway session. Nothing is opened until Run.
func New(token string, commands *cmd.Registry, opts Options, log zerolog.Logger) (*Bot, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	b := &Bot{
		dg:       dg,
		opts:     opts,
		commands: commands,
		log:      log.With().Str("component", "discord").Logger(),
		hashes:   make(map[string]map[string]string),
	}
	b.configureIntents()
	return b, nil
}

// Session returns the underlying gateway session.
func (b *Bot) Session() *discordgo.Session { return b.dg }

// OnShutdown registers fn to run after ctx is done and before the gateway
// closes, e.g. to leave voice channels.
func (b *Bot) OnShutdown(fn func()) {
	b.shutdown = append(b.shutdown, fn)
}

// Run opens the gateway and serves events until ctx is done.
func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx

	b.dg.AddHandler(b.onReady)
	b.dg.AddHandler(b.onGuildCreate)
	b.dg.AddHandler(b.onInteractionCreate)

	if err := b.dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer b.dg.Close()

	<-ctx.Done()
	b.log.Info().Msg("❎ Shutdown signal received. Cleaning up...")
	for _, fn := range b.shutdown {
		fn()
	}
	return nil
}

// configureIntents configures the Discord intents
func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates
}

// onReady is called when the bot is ready
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	for _, g := range r.Guilds {
		b.syncCommands(g.ID)
	}
	b.log.Info().Str("user", r.User.Username).Int("guilds", len(r.Guilds)).Msg("✅ Discord bot is running")
}

// onGuildCreate is called when a guild becomes available or the bot is added to one
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	b.log.Info().Str("guild_id", g.ID).Str("guild", g.Name).Msg("guild available")
	b.syncCommands(g.ID)
}

func (b *Bot) syncCommands(guildID string) {
	if !b.opts.InitSlashCommands {
		b.log.Debug().Str("guild_id", guildID).Msg("registering slash commands skipped")
		return
	}
	if err := b.registerCommands(guildID); err != nil {
		b.log.Error().Err(err).Str("guild_id", guildID).Msg("error registering slash commands")
	}
}

// onInteractionCreate is called when an interaction is created
func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		b.log.Debug().Stringer("type", i.Type).Msg("unhandled interaction type")
		return
	}

	data := i.ApplicationCommandData()
	c, ok := b.commands.Get(data.Name)
	if !ok {
		b.log.Warn().Str("command", data.Name).Msg("unknown command")
		return
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()

	sc := &command.SlashInteractionContext{Session: s, Event: i, Log: b.log}
	inv := &cmd.Invocation{
		Args: optionValues(data.Options),
		Data: sc,
	}
	if err := c.Run(ctx, inv); err != nil {
		b.log.Error().Err(err).Str("command", data.Name).Str("guild_id", i.GuildID).Msg("error running slash command")
		if rerr := respondError(s, i, sc.Deferred, err); rerr != nil {
			b.log.Debug().Err(rerr).Msg("error reply failed")
		}
	}
}

// interactionResponder is the part of *discordgo.Session used to report a
// failed command.
type interactionResponder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// respondError tells the caller a command failed. An interaction that was
// already deferred can only be answered with a followup.
func respondError(s interactionResponder, i *discordgo.InteractionCreate, deferred bool, err error) error {
	embed := &discordgo.MessageEmbed{
		Description: fmt.Sprintf("Error running slash command: %v", err),
		Color:       EmbedColor,
	}
	if deferred {
		_, ferr := s.FollowupMessageCreate(i.Interaction, false, &discordgo.WebhookParams{
			Flags:  discordgo.MessageFlagsEphemeral,
			Embeds: []*discordgo.MessageEmbed{embed},
		})
		return ferr
	}
	return s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags:  discordgo.MessageFlagsEphemeral,
			Embeds: []*discordgo.MessageEmbed{embed},
		},
	})
}

func optionValues(opts []*discordgo.ApplicationCommandInteractionDataOption) []string {
	args := make([]string, 0, len(opts))
	for _, o := range opts {
		args = append(args, fmt.Sprint(o.Value))
	}
	return args
}
