package discord

import (
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"time"

	"guild-jukebox/internal/command"
	"guild-jukebox/pkg/cmd"

	"github.com/bwmarrin/discordgo"
)

// registerCommands syncs slash commands for a guild with Discord:
// deletes obsolete ones, creates/updates commands whose definition has changed.
func (b *Bot) registerCommands(guildID string) error {
	b.regMu.Lock()
	defer b.regMu.Unlock()

	appID, err := b.appID()
	if err != nil {
		return err
	}

	remote, err := b.dg.ApplicationCommands(appID, guildID)
	if err != nil {
		return fmt.Errorf("failed to list commands: %w", err)
	}

	local := buildCommandDefinitions(b.commands)
	cached := b.hashes[guildID]
	if cached == nil {
		cached = make(map[string]string)
		for _, rc := range remote {
			cached[rc.Name] = hashCommand(rc)
		}
	}

	b.deleteObsoleteCommands(appID, guildID, remote, local, cached)
	b.upsertChangedCommands(appID, guildID, local, cached)
	b.hashes[guildID] = cached
	return nil
}

// buildCommandDefinitions returns ApplicationCommand definitions for all registered commands.
func buildCommandDefinitions(reg *cmd.Registry) []*discordgo.ApplicationCommand {
	var defs []*discordgo.ApplicationCommand
	for _, c := range reg.All() {
		if def := commandDefinition(c); def != nil {
			defs = append(defs, def)
		}
	}
	return defs
}

// deleteObsoleteCommands removes commands from Discord that are no longer in the local registry.
func (b *Bot) deleteObsoleteCommands(appID, guildID string, remote, local []*discordgo.ApplicationCommand, hashes map[string]string) {
	localNames := make(map[string]struct{}, len(local))
	for _, d := range local {
		localNames[d.Name] = struct{}{}
	}

	for _, rc := range remote {
		if _, exists := localNames[rc.Name]; exists {
			continue
		}
		log := b.log.With().Str("guild_id", guildID).Str("command", rc.Name).Logger()
		if err := b.dg.ApplicationCommandDelete(appID, guildID, rc.ID); err != nil {
			log.Error().Err(err).Msg("failed to delete obsolete command")
			continue
		}
		delete(hashes, rc.Name)
		log.Info().Msg("deleted obsolete command")
	}
}

// upsertChangedCommands creates or updates commands whose hash differs from the cached value.
func (b *Bot) upsertChangedCommands(appID, guildID string, defs []*discordgo.ApplicationCommand, hashes map[string]string) {
	newHashes := make(map[string]string, len(defs))
	var changed []*discordgo.ApplicationCommand
	for _, d := range defs {
		h := hashCommand(d)
		if hashes[d.Name] != h {
			changed = append(changed, d)
			newHashes[d.Name] = h
		}
	}
	if len(changed) == 0 {
		return
	}

	b.log.Info().Str("guild_id", guildID).Int("count", len(changed)).Msg("registering changed commands")
	for _, d := range changed {
		if _, err := b.dg.ApplicationCommandCreate(appID, guildID, d); err != nil {
			b.log.Error().Err(err).Str("guild_id", guildID).Str("command", d.Name).Msg("failed to register command")
			delete(newHashes, d.Name)
		}
		time.Sleep(25 * time.Millisecond) // stay well under Discord's rate limit
	}
	maps.Copy(hashes, newHashes)
}

// commandDefinition extracts the ApplicationCommand definition from a registered command,
// walking through middleware wrappers via cmd.Root.
func commandDefinition(c cmd.Command) *discordgo.ApplicationCommand {
	slash, ok := cmd.Root(c).(command.SlashProvider)
	if !ok {
		return nil
	}
	def := slash.SlashDefinition()
	if def != nil && def.Type == 0 {
		def.Type = discordgo.ChatApplicationCommand
	}
	return def
}

// appID returns the bot's application ID, fetching from Discord if not cached in State.
func (b *Bot) appID() (string, error) {
	if b.dg.State != nil && b.dg.State.User != nil && b.dg.State.User.ID != "" {
		return b.dg.State.User.ID, nil
	}
	u, err := b.dg.User("@me")
	if err != nil {
		return "", fmt.Errorf("failed to fetch bot user: %w", err)
	}
	return u.ID, nil
}

// hashCommand returns a deterministic SHA-1 of a command's stable fields.
// Used to skip re-registration when nothing has changed.
func hashCommand(c *discordgo.ApplicationCommand) string {
	stable := map[string]any{
		"name":        c.Name,
		"description": c.Description,
		"type":        c.Type,
	}
	if len(c.Options) > 0 {
		stable["options"] = normalizeOptions(c.Options)
	}
	data, _ := json.Marshal(stable)
	return fmt.Sprintf("%x", sha1.Sum(data))
}

func normalizeOptions(opts []*discordgo.ApplicationCommandOption) []map[string]any {
	out := make([]map[string]any, len(opts))
	for i, o := range opts {
		entry := map[string]any{
			"name":        o.Name,
			"description": o.Description,
			"type":        o.Type,
			"required":    o.Required,
		}
		if len(o.Options) > 0 {
			entry["options"] = normalizeOptions(o.Options)
		}
		out[i] = entry
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["name"].(string) < out[j]["name"].(string)
	})
	return out
}
