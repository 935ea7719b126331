package middleware

import (
	"context"

	"guild-jukebox/internal/command"
	"guild-jukebox/pkg/cmd"
)

// WithGuildOnly wraps a command to enforce guild-only access
func WithGuildOnly() cmd.Middleware {
	return func(c cmd.Command) cmd.Command {
		return cmd.Wrap(c, func(ctx context.Context, inv *cmd.Invocation) error {
			if v, ok := inv.Data.(*command.SlashInteractionContext); ok && v.Event.GuildID == "" {
				v.Log.Debug().Str("command", c.Name()).Msg("ignored outside a guild")
				return nil
			}
			return c.Run(ctx, inv)
		})
	}
}
