package music

import (
	"guild-jukebox/internal/music/session"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

// ChannelSender posts embeds to a text channel. *discordgo.Session
// implements it.
type ChannelSender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier posts session notices to the text channel where play was issued.
func Notifier(sender ChannelSender, channelID string, log zerolog.Logger) session.Notifier {
	return func(n session.Notice) {
		if _, err := sender.ChannelMessageSendEmbed(channelID, RenderNotice(n)); err != nil {
			log.Warn().Err(err).Str("channel_id", channelID).Str("notice", n.Kind.String()).Msg("failed to post notice")
		}
	}
}
