package playlist

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	embed "github.com/clinet/discordgo-embed"

	"radio-vecher/internal/bot"
	"radio-vecher/internal/command"
	"radio-vecher/internal/music/playlist"
	"radio-vecher/internal/music/voting"
)

const resolveTimeout = 60 * time.Second

type PlaylistCommand struct {
	Bot bot.MusicBot
}

func (c *PlaylistCommand) Name() string        { return "playlist" }
func (c *PlaylistCommand) Description() string { return "Manage shared playlists" }
func (c *PlaylistCommand) Group() string       { return "music" }
func (c *PlaylistCommand) RequireAdmin() bool  { return false }

func nameOption() *discordgo.ApplicationCommandOption {
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "name",
		Description: "Playlist name",
		Required:    true,
	}
}

func (c *PlaylistCommand) SlashDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        c.Name(),
		Description: c.Description(),
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "create",
				Description: "Create a new playlist",
				Options:     []*discordgo.ApplicationCommandOption{nameOption()},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "delete",
				Description: "Delete a playlist you own",
				Options:     []*discordgo.ApplicationCommandOption{nameOption()},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "add",
				Description: "Add a track to a playlist",
				Options: []*discordgo.ApplicationCommandOption{
					nameOption(),
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "url",
						Description: "Track link",
						Required:    true,
					},
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "title",
						Description: "Display title",
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "remove",
				Description: "Remove a track by its position",
				Options: []*discordgo.ApplicationCommandOption{
					nameOption(),
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "position",
						Description: "1-based track position",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "vote-start",
				Description: "Submit a playlist for community approval",
				Options: []*discordgo.ApplicationCommandOption{
					nameOption(),
					{
						Type:        discordgo.ApplicationCommandOptionInteger,
						Name:        "hours",
						Description: "How long voting stays open (default 24)",
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "vote",
				Description: "Vote on a submitted playlist",
				Options: []*discordgo.ApplicationCommandOption{
					nameOption(),
					{
						Type:        discordgo.ApplicationCommandOptionBoolean,
						Name:        "approve",
						Description: "true to vote for, false to vote against",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "status",
				Description: "Show a playlist's vote tally",
				Options:     []*discordgo.ApplicationCommandOption{nameOption()},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "play",
				Description: "Queue an approved playlist",
				Options:     []*discordgo.ApplicationCommandOption{nameOption()},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "list",
				Description: "List this server's playlists",
			},
		},
	}
}

func (c *PlaylistCommand) Run(ctx interface{}) error {
	sctx, ok := ctx.(*command.SlashContext)
	if !ok {
		return nil
	}

	name := sctx.SubOption("name")
	switch sctx.Subcommand() {
	case "create":
		return c.runCreate(sctx, name)
	case "delete":
		return c.runDelete(sctx, name)
	case "add":
		return c.runAdd(sctx, name)
	case "remove":
		return c.runRemove(sctx, name)
	case "vote-start":
		return c.runVoteStart(sctx, name)
	case "vote":
		return c.runVote(sctx, name)
	case "status":
		return c.runStatus(sctx, name)
	case "play":
		return c.runPlay(sctx, name)
	case "list":
		return c.runList(sctx)
	default:
		return respondError(sctx, errors.New("unknown subcommand"))
	}
}

func respondError(sctx *command.SlashContext, err error) error {
	return bot.RespondEmbedEphemeral(sctx.Session, sctx.Event, embed.NewEmbed().
		SetDescription(err.Error()).
		SetColor(bot.EmbedColor).MessageEmbed)
}

func respondOK(sctx *command.SlashContext, title, desc string) error {
	return bot.RespondEmbed(sctx.Session, sctx.Event, embed.NewEmbed().
		SetTitle(title).
		SetDescription(desc).
		SetColor(bot.EmbedColor).MessageEmbed)
}

func (c *PlaylistCommand) isAdmin(sctx *command.SlashContext) bool {
	return c.Bot.IsAdmin(sctx.Event.GuildID, sctx.UserID())
}

func (c *PlaylistCommand) runCreate(sctx *command.SlashContext, name string) error {
	if err := c.Bot.Playlists().Create(sctx.Event.GuildID, name, sctx.UserID()); err != nil {
		return respondError(sctx, err)
	}
	return respondOK(sctx, "📜 Playlist created", fmt.Sprintf("**%s** is ready. Add tracks, then submit it for a vote.", name))
}

func (c *PlaylistCommand) runDelete(sctx *command.SlashContext, name string) error {
	err := c.Bot.Playlists().Delete(sctx.Event.GuildID, name, sctx.UserID(), c.isAdmin(sctx))
	if err != nil {
		return respondError(sctx, err)
	}
	return respondOK(sctx, "🗑️ Playlist deleted", fmt.Sprintf("**%s** is gone.", name))
}

func (c *PlaylistCommand) runAdd(sctx *command.SlashContext, name string) error {
	ref := playlist.TrackRef{
		URL:    sctx.SubOption("url"),
		Title:  sctx.SubOption("title"),
		Author: sctx.UserID(),
	}
	if ref.Title == "" {
		ref.Title = ref.URL
	}
	err := c.Bot.Playlists().AddTrack(sctx.Event.GuildID, name, sctx.UserID(), c.isAdmin(sctx), ref)
	if err != nil {
		return respondError(sctx, err)
	}
	return respondOK(sctx, "➕ Track added", fmt.Sprintf("Added to **%s**.", name))
}

func (c *PlaylistCommand) runRemove(sctx *command.SlashContext, name string) error {
	pos, ok := sctx.SubOptionInt("position")
	if !ok || pos < 1 {
		return respondError(sctx, errors.New("position must be 1 or higher"))
	}
	removed, err := c.Bot.Playlists().RemoveTrack(sctx.Event.GuildID, name, sctx.UserID(), c.isAdmin(sctx), int(pos)-1)
	if err != nil {
		return respondError(sctx, err)
	}
	return respondOK(sctx, "➖ Track removed", fmt.Sprintf("Removed **%s** from **%s**.", removed.Title, name))
}

func (c *PlaylistCommand) runVoteStart(sctx *command.SlashContext, name string) error {
	duration := c.Bot.VoteDuration()
	if hours, ok := sctx.SubOptionInt("hours"); ok && hours > 0 {
		duration = time.Duration(hours) * time.Hour
	}
	err := c.Bot.Playlists().StartVoting(sctx.Event.GuildID, name, duration)
	if err != nil {
		return respondError(sctx, err)
	}
	return respondOK(sctx, "🗳️ Vote started",
		fmt.Sprintf("Voting on **%s** is open for %s. Use `/playlist vote` to have your say.", name, duration))
}

func (c *PlaylistCommand) runVote(sctx *command.SlashContext, name string) error {
	approve := false
	data := sctx.Event.ApplicationCommandData()
	if len(data.Options) > 0 {
		for _, opt := range data.Options[0].Options {
			if opt.Name == "approve" && opt.Type == discordgo.ApplicationCommandOptionBoolean {
				approve = opt.BoolValue()
			}
		}
	}

	outcome, err := c.Bot.Playlists().CastVote(sctx.Event.GuildID, name, sctx.UserID(), approve)
	if err != nil {
		if errors.Is(err, voting.ErrAlreadyVoted) {
			return respondError(sctx, errors.New("you already voted on this playlist"))
		}
		return respondError(sctx, err)
	}

	switch outcome {
	case voting.OutcomeApproved:
		return respondOK(sctx, "✅ Playlist approved", fmt.Sprintf("**%s** passed the vote and can now be played.", name))
	case voting.OutcomeRejected:
		return respondOK(sctx, "❌ Playlist rejected", fmt.Sprintf("**%s** did not pass. It can be resubmitted later.", name))
	default:
		return respondOK(sctx, "🗳️ Vote recorded", "Your vote is in.")
	}
}

func (c *PlaylistCommand) runStatus(sctx *command.SlashContext, name string) error {
	ballot, err := c.Bot.Playlists().VotingStatus(sctx.Event.GuildID, name)
	if err != nil {
		return respondError(sctx, err)
	}

	desc := fmt.Sprintf("👍 %d / 👎 %d", len(ballot.Up), len(ballot.Down))
	if ballot.Finished {
		desc += fmt.Sprintf("\nResult: **%s**", ballot.Outcome())
	} else {
		desc += fmt.Sprintf("\nVoting closes <t:%d:R>.", ballot.EndTime.Unix())
	}
	return respondOK(sctx, fmt.Sprintf("🗳️ Vote status: %s", name), desc)
}

func (c *PlaylistCommand) runPlay(sctx *command.SlashContext, name string) error {
	s, e := sctx.Session, sctx.Event

	if err := bot.RespondDeferred(s, e); err != nil {
		return fmt.Errorf("failed to send deferred response: %w", err)
	}

	followupError := func(err error) error {
		return bot.FollowupEmbedEphemeral(s, e, embed.NewEmbed().
			SetDescription(err.Error()).
			SetColor(bot.EmbedColor).MessageEmbed)
	}

	vs, err := c.Bot.FindUserVoiceState(e.GuildID, sctx.UserID())
	if err != nil {
		return followupError(err)
	}
	p := c.Bot.Players().GetOrCreate(e.GuildID)
	if err := p.Connect(vs.ChannelID); err != nil {
		return followupError(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
	defer cancel()

	tracks, total, err := c.Bot.Playlists().ResolveTracks(ctx, e.GuildID, name, c.isAdmin(sctx), p.Resolver())
	if err != nil {
		return followupError(err)
	}
	if _, err := p.EnqueueTracks(tracks); err != nil {
		return followupError(err)
	}

	desc := fmt.Sprintf("Queued **%d** tracks from **%s**.", len(tracks), name)
	if len(tracks) < total {
		desc += fmt.Sprintf(" %d entries could not be resolved and were skipped.", total-len(tracks))
	}
	return bot.FollowupEmbed(s, e, embed.NewEmbed().
		SetTitle("📜 Playlist queued").
		SetDescription(desc).
		SetColor(bot.EmbedColor).MessageEmbed)
}

func (c *PlaylistCommand) runList(sctx *command.SlashContext) error {
	lists, err := c.Bot.Playlists().List(sctx.Event.GuildID, true)
	if err != nil {
		return respondError(sctx, err)
	}
	if len(lists) == 0 {
		return respondError(sctx, errors.New("this server has no playlists yet"))
	}

	var sb strings.Builder
	for _, pl := range lists {
		status := "pending approval"
		if pl.Approved {
			status = "approved"
		}
		fmt.Fprintf(&sb, "**%s** - %d tracks, %s\n", pl.Name, len(pl.Tracks), status)
	}
	return respondOK(sctx, "📜 Playlists", sb.String())
}
