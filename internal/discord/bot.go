// Package discord wires the gateway session to the music core: it owns the
// per-guild player registry, the playlist store handle, the audio backend
// selection, and slash command registration and dispatch.
package discord

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/discordgo"

	"radio-vecher/internal/bot"
	"radio-vecher/internal/command"
	musiccmd "radio-vecher/internal/command/music"
	playlistcmd "radio-vecher/internal/command/playlist"
	"radio-vecher/internal/config"
	"radio-vecher/internal/music/backend"
	"radio-vecher/internal/music/backend/lavalink"
	"radio-vecher/internal/music/backend/local"
	"radio-vecher/internal/music/player"
	"radio-vecher/internal/music/playlist"
	"radio-vecher/internal/web"
)

// Bot is the Discord bot.
type Bot struct {
	dg        *discordgo.Session
	cfg       *config.Config
	playlists *playlist.Store
	players   *player.Registry
	node      *lavalink.Node
}

// StartBot runs the bot until the context is cancelled.
func StartBot(ctx context.Context, cfg *config.Config, store *playlist.Store) error {
	b := &Bot{
		cfg:       cfg,
		playlists: store,
	}
	if err := b.run(ctx, cfg.DiscordToken); err != nil {
		return fmt.Errorf("bot run error: %w", err)
	}
	return nil
}

func (b *Bot) run(ctx context.Context, token string) error {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	b.dg = dg

	b.configureIntents()
	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onInteractionCreate)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onVoiceServerUpdate)
	dg.AddHandler(b.onVoiceStateUpdate)

	if err := dg.Open(); err != nil {
		return fmt.Errorf("failed to open Discord session: %w", err)
	}
	defer dg.Close()

	if b.cfg.UseLavalink {
		if err := b.connectLavalink(ctx); err != nil {
			return err
		}
		defer b.node.Close()
	}

	b.players = player.NewRegistry(
		player.RadioStation{
			Name:      b.cfg.RadioName,
			URL:       b.cfg.RadioStreamURL,
			Thumbnail: b.cfg.RadioThumbnail,
		},
		b.backendFactory(),
		b,
		b.listenerCount,
	)
	defer b.players.Close()

	b.registerMusicCommands()

	go web.Serve(b.cfg.DashboardAddr, b.players, b.playlists)

	<-ctx.Done()
	log.Println("[INFO] ❎ Shutdown signal received. Cleaning up...")
	return nil
}

func (b *Bot) configureIntents() {
	b.dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages
}

func (b *Bot) connectLavalink(ctx context.Context) error {
	b.node = lavalink.NewNode(lavalink.NodeConfig{
		Host:     b.cfg.LavalinkHost,
		Port:     b.cfg.LavalinkPort,
		Password: b.cfg.LavalinkPassword,
		Secure:   b.cfg.LavalinkSecure,
		UserID:   b.dg.State.User.ID,
	})

	dialCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := b.node.Connect(dialCtx); err != nil {
		return err
	}
	log.Printf("[INFO] Lavalink node %s:%d connected", b.cfg.LavalinkHost, b.cfg.LavalinkPort)
	return nil
}

// backendFactory picks the audio implementation per guild.
func (b *Bot) backendFactory() player.BackendFactory {
	if b.cfg.UseLavalink {
		return func(guildID string) backend.Backend {
			return b.node.Player(guildID)
		}
	}
	return func(guildID string) backend.Backend {
		return local.New()
	}
}

func (b *Bot) registerMusicCommands() {
	command.Register(&musiccmd.MusicCommand{Bot: b},
		command.WithGuildOnly(),
		command.WithCommandLogger(),
	)
	command.Register(&playlistcmd.PlaylistCommand{Bot: b},
		command.WithGuildOnly(),
		command.WithCommandLogger(),
	)
}

// --- bot.MusicBot ---

func (b *Bot) Players() *player.Registry {
	return b.players
}

func (b *Bot) Playlists() *playlist.Store {
	return b.playlists
}

func (b *Bot) VoteDuration() time.Duration {
	return b.cfg.VoteDuration
}

// FindUserVoiceState finds the voice state of a user.
func (b *Bot) FindUserVoiceState(guildID, userID string) (*bot.VoiceState, error) {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("error retrieving guild: %w", err)
	}

	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return &bot.VoiceState{
				ChannelID: vs.ChannelID,
				UserID:    vs.UserID,
			}, nil
		}
	}
	return nil, fmt.Errorf("you must be in a voice channel")
}

// IsAdmin reports whether the member owns the guild or carries a role with
// the Administrator permission.
func (b *Bot) IsAdmin(guildID, userID string) bool {
	guild, err := b.dg.State.Guild(guildID)
	if err != nil {
		return false
	}
	if guild.OwnerID == userID {
		return true
	}

	member, err := b.dg.State.Member(guildID, userID)
	if err != nil {
		member, err = b.dg.GuildMember(guildID, userID)
		if err != nil {
			return false
		}
	}
	for _, roleID := range member.Roles {
		for _, role := range guild.Roles {
			if role.ID == roleID && role.Permissions&discordgo.PermissionAdministrator != 0 {
				return true
			}
		}
	}
	return false
}
