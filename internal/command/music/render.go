package music

import (
	"fmt"
	"strings"

	"guild-jukebox/internal/discord"
	"guild-jukebox/internal/music/dispatch"
	"guild-jukebox/internal/music/resolve"
	"guild-jukebox/internal/music/session"

	"github.com/bwmarrin/discordgo"
	"github.com/mattn/go-runewidth"
)

// Discord embed limits.
const (
	fieldNameWidth   = 200
	keywordWidth     = 200
	descriptionLimit = 4000
	queueTitleWidth  = 80
)

var okTitles = map[string]string{
	dispatch.CmdJoin:   "🔊 Joined",
	dispatch.CmdLeave:  "👋 Left",
	dispatch.CmdAdd:    "➕ Added",
	dispatch.CmdPlay:   "▶️ Playing",
	dispatch.CmdPause:  "⏸️ Paused",
	dispatch.CmdResume: "▶️ Resumed",
	dispatch.CmdSkip:   "⏭️ Skipped",
}

// Render turns a dispatcher reply into an embed.
func Render(r dispatch.Reply) *discordgo.MessageEmbed {
	switch r.Kind {
	case dispatch.KindRejected:
		return &discordgo.MessageEmbed{
			Title:       "🎵 Can't " + r.Command,
			Description: capitalize(string(r.Reason)) + ".",
		}
	case dispatch.KindFailed:
		desc := capitalize(r.Message) + "."
		if r.Err != nil {
			desc += fmt.Sprintf("\n\n**Error:** %v", r.Err)
		}
		return &discordgo.MessageEmbed{
			Title:       "⚠️ Error",
			Description: desc,
		}
	case dispatch.KindResults:
		return renderResults(r)
	case dispatch.KindQueue:
		return renderQueue(r.Queue)
	}

	title, ok := okTitles[r.Command]
	if !ok {
		title = "🎵 Done"
	}
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: capitalize(r.Message) + ".",
		Color:       discord.EmbedColor,
	}
}

func renderResults(r dispatch.Reply) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "🔎 Search results: " + runewidth.Truncate(r.Keyword, keywordWidth, "…"),
		Description: "Use `/add id` to queue one.",
		Color:       discord.EmbedColor,
	}
	for _, res := range r.Results {
		value := res.ID
		if res.Duration != "" {
			value = res.Duration + "  " + res.ID
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  runewidth.Truncate(res.Title, fieldNameWidth, "…"),
			Value: value,
		})
	}
	return embed
}

func renderQueue(queue []session.Track) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title: "📜 Queue",
		Color: discord.EmbedColor,
	}
	if len(queue) == 0 {
		embed.Description = "queue is empty"
		return embed
	}

	var b strings.Builder
	for i, t := range queue {
		line := fmt.Sprintf("`[%d]` %s\n", i+1, runewidth.Truncate(trackTitle(t), queueTitleWidth, "…"))
		if b.Len()+len(line) > descriptionLimit {
			fmt.Fprintf(&b, "… and %d more", len(queue)-i)
			break
		}
		b.WriteString(line)
	}
	embed.Description = strings.TrimRight(b.String(), "\n")
	return embed
}

// RenderNotice turns an asynchronous session notice into an embed.
func RenderNotice(n session.Notice) *discordgo.MessageEmbed {
	switch n.Kind {
	case session.NoticeNowPlaying:
		return &discordgo.MessageEmbed{
			Title:       "🎶 Now Playing",
			Description: fmt.Sprintf("[%s](%s)", trackTitle(n.Track), resolve.Metadata{Ref: n.Track.Ref}.URL()),
			Color:       discord.EmbedColor,
		}
	case session.NoticeTrackFailed:
		desc := "Failed to play " + trackTitle(n.Track)
		if n.Err != nil {
			desc += fmt.Sprintf("\n\n**Error:** %v", n.Err)
		}
		return &discordgo.MessageEmbed{
			Title:       "⚠️ Playback Error",
			Description: desc,
		}
	default:
		return &discordgo.MessageEmbed{
			Title:       "⏹️ Queue Empty",
			Description: "Nothing left to play.",
			Color:       discord.EmbedColor,
		}
	}
}

func trackTitle(t session.Track) string {
	if t.Title != "" {
		return t.Title
	}
	return t.Ref
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
