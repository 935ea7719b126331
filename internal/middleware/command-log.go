package middleware

import (
	"context"
	"time"

	"guild-jukebox/internal/command"
	"guild-jukebox/pkg/cmd"

	"github.com/rs/zerolog"
)

// WithCommandLogger wraps a command to log its execution
func WithCommandLogger(log zerolog.Logger) cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			start := time.Now()
			err := c.Run(ctx, inv)

			ev := log.Info()
			if err != nil {
				ev = log.Warn().Err(err)
			}
			ev = ev.Str("command", c.Name()).Strs("args", inv.Args).Dur("took", time.Since(start))
			if v, ok := inv.Data.(*command.SlashInteractionContext); ok {
				ev = ev.Str("guild_id", v.Event.GuildID).
					Str("channel_id", v.Event.ChannelID).
					Str("user_id", command.UserID(v.Event))
			}
			ev.Msg("command executed")
			return err
		})
	}
}
