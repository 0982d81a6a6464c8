package discord

import (
	"fmt"
	"log"

	"github.com/bwmarrin/discordgo"

	"radio-vecher/internal/bot"
	"radio-vecher/internal/command"
)

// onReady registers slash commands for every known guild.
func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	botInfo, err := s.User("@me")
	if err != nil {
		log.Println("[WARN] Error retrieving bot user:", err)
		return
	}

	if b.cfg.InitSlashCommands {
		for _, g := range r.Guilds {
			if err := b.registerCommands(g.ID); err != nil {
				log.Println("[ERR] Error registering slash commands for guild", g.ID, ":", err)
			}
		}
	} else {
		log.Println("[INFO] Registering slash commands skipped")
	}

	log.Printf("[INFO] ✅ Discord bot %v is running.", botInfo.Username)
}

func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	log.Printf("[INFO] Bot added to guild: %s (%s)", g.Guild.ID, g.Guild.Name)

	if b.cfg.InitSlashCommands {
		if err := b.registerCommands(g.Guild.ID); err != nil {
			log.Printf("[ERR] Failed to register commands for new guild %s: %v", g.Guild.ID, err)
		}
	}
}

func (b *Bot) registerCommands(guildID string) error {
	for _, cmd := range command.All() {
		provider, ok := cmd.(command.SlashProvider)
		if !ok {
			continue
		}
		def := provider.SlashDefinition()
		if _, err := b.dg.ApplicationCommandCreate(b.dg.State.User.ID, guildID, def); err != nil {
			return fmt.Errorf("register %s: %w", def.Name, err)
		}
	}
	return nil
}

// onInteractionCreate dispatches slash interactions to registered commands.
func (b *Bot) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	cmdName := i.ApplicationCommandData().Name
	cmd, ok := command.Get(cmdName)
	if !ok {
		log.Printf("[WARN] Unknown command: %s", cmdName)
		return
	}

	ctx := &command.SlashContext{
		Session: s,
		Event:   i,
		Bot:     b,
	}
	if err := cmd.Run(ctx); err != nil {
		log.Println("[ERR] Error running slash command:", err)
		_ = bot.RespondEmbedEphemeral(s, i, &discordgo.MessageEmbed{
			Description: fmt.Sprintf("Error running command: %v", err),
		})
	}
}

// onVoiceServerUpdate forwards gateway voice credentials to the Lavalink
// node so it can join on the bot's behalf.
func (b *Bot) onVoiceServerUpdate(s *discordgo.Session, e *discordgo.VoiceServerUpdate) {
	if b.node == nil {
		return
	}
	b.node.HandleVoiceServerUpdate(e.GuildID, e.Token, e.Endpoint)
}

// onVoiceStateUpdate tracks the bot's own voice session for the node and
// tears the guild's session down once its channel has no listeners left.
func (b *Bot) onVoiceStateUpdate(s *discordgo.Session, e *discordgo.VoiceStateUpdate) {
	if b.node != nil && s.State.User != nil && e.UserID == s.State.User.ID {
		b.node.HandleVoiceStateUpdate(e.GuildID, e.SessionID)
	}
	b.reapIfAbandoned(e.GuildID)
}

// reapIfAbandoned destroys the guild's playback session when the voice
// channel it occupies has no non-bot listeners left.
func (b *Bot) reapIfAbandoned(guildID string) {
	if b.players == nil {
		return
	}
	p, ok := b.players.Get(guildID)
	if !ok {
		return
	}
	channelID := p.ChannelID()
	if channelID == "" {
		return
	}
	if b.listenerCount(guildID, channelID) > 0 {
		return
	}
	log.Printf("[INFO] Last listener left channel %s on guild %s, tearing down session", channelID, guildID)
	b.players.Remove(guildID)
}
