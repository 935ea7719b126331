package discord

import (
	"context"
	"errors"
	"fmt"

	"guild-jukebox/internal/music/session"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
)

var ErrNotInVoice = errors.New("user not in any voice channel")

// VoiceConnector opens voice connections through the gateway session.
type VoiceConnector struct {
	dg  *discordgo.Session
	log zerolog.Logger
}

// Connector returns a session.Connector bound to the bot's gateway.
func (b *Bot) Connector() *VoiceConnector {
	return &VoiceConnector{dg: b.dg, log: b.log}
}

// Connect joins channelID deafened and waits until the voice connection is
// ready.
func (v *VoiceConnector) Connect(ctx context.Context, guildID, channelID string) (session.Connection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vc, err := v.dg.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		if vc != nil {
			if derr := vc.Disconnect(); derr != nil {
				v.log.Debug().Err(derr).Str("guild_id", guildID).Msg("disconnect after failed join")
			}
		}
		return nil, fmt.Errorf("join voice channel %s: %w", channelID, err)
	}
	return &VoiceConn{vc: vc, channelID: channelID}, nil
}

// VoiceConn is an open voice connection. It carries Opus audio.
type VoiceConn struct {
	vc        *discordgo.VoiceConnection
	channelID string
}

func (c *VoiceConn) ChannelID() string { return c.channelID }

func (c *VoiceConn) Disconnect() error { return c.vc.Disconnect() }

func (c *VoiceConn) Speaking(speaking bool) error { return c.vc.Speaking(speaking) }

// SendOpus queues one Opus frame, waiting while the send buffer is full.
func (c *VoiceConn) SendOpus(ctx context.Context, frame []byte) error {
	select {
	case c.vc.OpusSend <- frame:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// UserVoiceChannel finds the voice channel of a guild member.
func (b *Bot) UserVoiceChannel(guildID, userID string) (string, error) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return "", fmt.Errorf("error retrieving guild: %w", err)
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID && vs.ChannelID != "" {
			return vs.ChannelID, nil
		}
	}
	return "", ErrNotInVoice
}
