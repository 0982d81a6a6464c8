package music

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"

	"radio-vecher/internal/bot"
	"radio-vecher/internal/command"
	"radio-vecher/internal/config"
	"radio-vecher/internal/music/player"
)

const resolveTimeout = 30 * time.Second

type MusicCommand struct {
	Bot bot.MusicBot
}

func (c *MusicCommand) Name() string        { return "music" }
func (c *MusicCommand) Description() string { return "Control music playback" }
func (c *MusicCommand) Group() string       { return "music" }
func (c *MusicCommand) RequireAdmin() bool  { return false }

func (c *MusicCommand) SlashDefinition() *discordgo.ApplicationCommand {
	stationChoices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(config.Stations))
	keys := make([]string, 0, len(config.Stations))
	for key := range config.Stations {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		stationChoices = append(stationChoices, &discordgo.ApplicationCommandOptionChoice{
			Name:  config.Stations[key].Name,
			Value: key,
		})
	}

	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Queue a track by link or search query",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "input",
						Description: "Link or search query",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "radio",
				Description: "Switch to the radio stream",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "station",
						Description: "Pick a station preset",
						Choices:     stationChoices,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "skip",
				Description: "Skip the current track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "voteskip",
				Description: "Vote to skip the current track",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "pause",
				Description: "Pause playback",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "resume",
				Description: "Resume paused playback",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "stop",
				Description: "Stop playback, clear the queue and leave the voice channel",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "queue",
				Description: "Show the queued tracks",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Remove a track from the queue",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "position",
						Description: "Queue position as shown by /music queue",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "nowplaying",
				Description: "Show what is playing",
			},
		},
	}
}

func (c *MusicCommand) Run(ctx interface{}) error {
	sctx, ok := ctx.(*command.SlashContext)
	if !ok {
		return nil
	}

	s := sctx.Session
	e := sctx.Event

	switch sctx.Subcommand() {
	case "play":
		return c.runPlay(sctx, sctx.SubOption("input"))
	case "radio":
		return c.runRadio(sctx, sctx.SubOption("station"))
	case "skip":
		return c.runSkip(sctx)
	case "voteskip":
		return c.runVoteSkip(sctx)
	case "pause":
		return c.runPause(sctx)
	case "resume":
		return c.runResume(sctx)
	case "stop":
		return c.runStop(sctx)
	case "queue":
		return c.runQueue(sctx)
	case "remove":
		return c.runRemove(sctx)
	case "nowplaying":
		return c.runNowPlaying(sctx)
	default:
		return bot.RespondEmbedEphemeral(s, e, embed.NewEmbed().
			SetDescription("Unknown subcommand.").
			SetColor(bot.EmbedColor).MessageEmbed)
	}
}

// sessionForUser returns the guild's player joined to the caller's voice
// channel. The caller must be in a voice channel.
func (c *MusicCommand) sessionForUser(sctx *command.SlashContext) (*player.Player, error) {
	vs, err := c.Bot.FindUserVoiceState(sctx.Event.GuildID, sctx.UserID())
	if err != nil {
		return nil, err
	}
	p := c.Bot.Players().GetOrCreate(sctx.Event.GuildID)
	if err := p.Connect(vs.ChannelID); err != nil {
		return nil, err
	}
	return p, nil
}

func (c *MusicCommand) runPlay(sctx *command.SlashContext, input string) error {
	s, e := sctx.Session, sctx.Event
	if strings.TrimSpace(input) == "" {
		return bot.RespondEmbedEphemeral(s, e, embed.NewEmbed().
			SetTitle("🎵 Error").
			SetDescription("Input is required.").
			SetColor(bot.EmbedColor).MessageEmbed)
	}

	if err := bot.RespondDeferred(s, e); err != nil {
		return fmt.Errorf("failed to send deferred response: %w", err)
	}

	p, err := c.sessionForUser(sctx)
	if err != nil {
		return bot.FollowupEmbedEphemeral(s, e, embed.NewEmbed().
			SetTitle("🎵 Voice Error").
			SetDescription(err.Error()).
			SetColor(bot.EmbedColor).MessageEmbed)
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	titles, err := p.AddToQueue(ctx, input)
	if err != nil {
		return bot.FollowupEmbedEphemeral(s, e, embed.NewEmbed().
			SetTitle("🎵 Error").
			SetDescription(fmt.Sprintf("Failed to resolve track: %v", err)).
			SetColor(bot.EmbedColor).MessageEmbed)
	}

	desc := fmt.Sprintf("Queued **%s**", titles[0])
	if len(titles) > 1 {
		desc = fmt.Sprintf("Queued **%d** tracks, starting with **%s**", len(titles), titles[0])
	}
	return bot.FollowupEmbed(s, e, embed.NewEmbed().
		SetTitle("🎵 Added to queue").
		SetDescription(desc).
		SetColor(bot.EmbedColor).MessageEmbed)
}

func (c *MusicCommand) runRadio(sctx *command.SlashContext, stationKey string) error {
	s, e := sctx.Session, sctx.Event

	if err := bot.RespondDeferred(s, e); err != nil {
		return fmt.Errorf("failed to send deferred response: %w", err)
	}

	p, err := c.sessionForUser(sctx)
	if err != nil {
		return bot.FollowupEmbedEphemeral(s, e, embed.NewEmbed().
			SetTitle("📻 Voice Error").
			SetDescription(err.Error()).
			SetColor(bot.EmbedColor).MessageEmbed)
	}

	if stationKey != "" {
		station, ok := config.Stations[stationKey]
		if !ok {
			return bot.FollowupEmbedEphemeral(s, e, embed.NewEmbed().
				SetDescription(fmt.Sprintf("Unknown station %q.", stationKey)).
				SetColor(bot.EmbedColor).MessageEmbed)
		}
		p.SetRadio(player.RadioStation{
			Name:      station.Name,
			URL:       station.URL,
			Thumbnail: station.Thumbnail,
		})
	}

	if err := p.PlayDefaultRadio(); err != nil {
		return bot.FollowupEmbedEphemeral(s, e, embed.NewEmbed().
			SetTitle("📻 Error").
			SetDescription(fmt.Sprintf("Radio failed to start: %v", err)).
			SetColor(bot.EmbedColor).MessageEmbed)
	}

	station := p.Radio()
	msg := embed.NewEmbed().
		SetTitle("📻 Radio").
		SetDescription(fmt.Sprintf("Now streaming **%s**", station.Name)).
		SetColor(bot.EmbedColor)
	if station.Thumbnail != "" {
		msg.SetThumbnail(station.Thumbnail)
	}
	return bot.FollowupEmbed(s, e, msg.MessageEmbed)
}

func (c *MusicCommand) guildPlayer(sctx *command.SlashContext) (*player.Player, bool) {
	p, ok := c.Bot.Players().Get(sctx.Event.GuildID)
	return p, ok
}

func (c *MusicCommand) runSkip(sctx *command.SlashContext) error {
	s, e := sctx.Session, sctx.Event
	p, ok := c.guildPlayer(sctx)
	if !ok {
		return respondNothingPlaying(s, e)
	}
	if err := p.Skip(); err != nil {
		return bot.RespondEmbedEphemeral(s, e, embed.NewEmbed().
			SetDescription(err.Error()).
			SetColor(bot.EmbedColor).MessageEmbed)
	}
	return bot.RespondEmbed(s, e, embed.NewEmbed().
		SetTitle("⏭️ Skipped").
		SetColor(bot.EmbedColor).MessageEmbed)
}

func (c *MusicCommand) runVoteSkip(sctx *command.SlashContext) error {
	s, e := sctx.Session, sctx.Event
	p, ok := c.guildPlayer(sctx)
	if !ok {
		return respondNothingPlaying(s, e)
	}

	res, err := p.VoteSkip(sctx.UserID())
	if err != nil {
		return bot.RespondEmbedEphemeral(s, e, embed.NewEmbed().
			SetDescription(err.Error()).
			SetColor(bot.EmbedColor).MessageEmbed)
	}

	switch {
	case res.Skipped:
		return bot.RespondEmbed(s, e, embed.NewEmbed().
			SetTitle("⏭️ Vote passed").
			SetDescription("Skipping the current track.").
			SetColor(bot.EmbedColor).MessageEmbed)
	case res.Duplicate:
		return bot.RespondEmbedEphemeral(s, e, embed.NewEmbed().
			SetDescription(fmt.Sprintf("You already voted. %d/%d votes.", res.Votes, res.Required)).
			SetColor(bot.EmbedColor).MessageEmbed)
	default:
		return bot.RespondEmbed(s, e, embed.NewEmbed().
			SetTitle("🗳️ Skip vote").
			SetDescription(fmt.Sprintf("%d/%d votes to skip.", res.Votes, res.Required)).
			SetColor(bot.EmbedColor).MessageEmbed)
	}
}

func (c *MusicCommand) runPause(sctx *command.SlashContext) error {
	s, e := sctx.Session, sctx.Event
	p, ok := c.guildPlayer(sctx)
	if !ok {
		return respondNothingPlaying(s, e)
	}
	if err := p.Pause(); err != nil {
		return bot.RespondEmbedEphemeral(s, e, embed.NewEmbed().
			SetDescription(err.Error()).
			SetColor(bot.EmbedColor).MessageEmbed)
	}
	return bot.RespondEmbed(s, e, embed.NewEmbed().
		SetTitle("⏸️ Paused").
		SetColor(bot.EmbedColor).MessageEmbed)
}

func (c *MusicCommand) runResume(sctx *command.SlashContext) error {
	s, e := sctx.Session, sctx.Event
	p, ok := c.guildPlayer(sctx)
	if !ok {
		return respondNothingPlaying(s, e)
	}
	if err := p.Resume(); err != nil {
		return bot.RespondEmbedEphemeral(s, e, embed.NewEmbed().
			SetDescription(err.Error()).
			SetColor(bot.EmbedColor).MessageEmbed)
	}
	return bot.RespondEmbed(s, e, embed.NewEmbed().
		SetTitle("▶️ Resumed").
		SetColor(bot.EmbedColor).MessageEmbed)
}

func (c *MusicCommand) runStop(sctx *command.SlashContext) error {
	s, e := sctx.Session, sctx.Event
	p, ok := c.guildPlayer(sctx)
	if !ok {
		return respondNothingPlaying(s, e)
	}
	p.Disconnect()
	return bot.RespondEmbed(s, e, embed.NewEmbed().
		SetTitle("⏹️ Stopped").
		SetDescription("Playback stopped, queue cleared, left the voice channel.").
		SetColor(bot.EmbedColor).MessageEmbed)
}

func (c *MusicCommand) runRemove(sctx *command.SlashContext) error {
	s, e := sctx.Session, sctx.Event
	p, ok := c.guildPlayer(sctx)
	if !ok {
		return respondNothingPlaying(s, e)
	}

	pos, ok := sctx.SubOptionInt("position")
	if !ok || pos < 1 {
		return bot.RespondEmbedEphemeral(s, e, embed.NewEmbed().
			SetDescription("Position must be 1 or higher.").
			SetColor(bot.EmbedColor).MessageEmbed)
	}

	removed, ok := p.RemoveFromQueue(int(pos) - 1)
	if !ok {
		return bot.RespondEmbedEphemeral(s, e, embed.NewEmbed().
			SetDescription(fmt.Sprintf("No track at position %d.", pos)).
			SetColor(bot.EmbedColor).MessageEmbed)
	}
	return bot.RespondEmbed(s, e, embed.NewEmbed().
		SetTitle("🗑️ Removed").
		SetDescription(fmt.Sprintf("Removed **%s** from the queue.", removed.Title)).
		SetColor(bot.EmbedColor).MessageEmbed)
}

func (c *MusicCommand) runQueue(sctx *command.SlashContext) error {
	s, e := sctx.Session, sctx.Event
	p, ok := c.guildPlayer(sctx)
	if !ok {
		return respondNothingPlaying(s, e)
	}

	tracks := p.Queue()
	if len(tracks) == 0 {
		return bot.RespondEmbedEphemeral(s, e, embed.NewEmbed().
			SetDescription("The queue is empty.").
			SetColor(bot.EmbedColor).MessageEmbed)
	}

	var sb strings.Builder
	for i, t := range tracks {
		if i >= 15 {
			fmt.Fprintf(&sb, "...and %d more\n", len(tracks)-i)
			break
		}
		fmt.Fprintf(&sb, "%d. %s\n", i+1, t.Title)
	}
	return bot.RespondEmbed(s, e, embed.NewEmbed().
		SetTitle(fmt.Sprintf("🎶 Queue (%d)", len(tracks))).
		SetDescription(sb.String()).
		SetColor(bot.EmbedColor).MessageEmbed)
}

func (c *MusicCommand) runNowPlaying(sctx *command.SlashContext) error {
	s, e := sctx.Session, sctx.Event
	p, ok := c.guildPlayer(sctx)
	if !ok {
		return respondNothingPlaying(s, e)
	}

	current, state := p.Current()
	if current == nil {
		return respondNothingPlaying(s, e)
	}

	msg := embed.NewEmbed().
		SetTitle("🎧 Now playing").
		SetDescription(fmt.Sprintf("**%s** (%s)", current.Title, state)).
		SetColor(bot.EmbedColor)
	if current.Thumbnail != "" {
		msg.SetThumbnail(current.Thumbnail)
	}
	return bot.RespondEmbed(s, e, msg.MessageEmbed)
}

func respondNothingPlaying(s *discordgo.Session, e *discordgo.InteractionCreate) error {
	return bot.RespondEmbedEphemeral(s, e, embed.NewEmbed().
		SetDescription("Nothing is playing on this server.").
		SetColor(bot.EmbedColor).MessageEmbed)
}
