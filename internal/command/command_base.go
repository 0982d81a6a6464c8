// Package command defines the command contract and registry. Concrete
// commands live in subpackages and register themselves through Register.
package command

import (
	"github.com/bwmarrin/discordgo"

	"radio-vecher/internal/bot"
)

type Command interface {
	Name() string
	Description() string
	Group() string
	RequireAdmin() bool
	Run(ctx interface{}) error
}

type SlashProvider interface {
	SlashDefinition() *discordgo.ApplicationCommand
}

// SlashContext is handed to a command for a slash interaction.
type SlashContext struct {
	Session *discordgo.Session
	Event   *discordgo.InteractionCreate
	Bot     bot.MusicBot
}

// SubOption reads a string option of the interaction's first subcommand.
func (c *SlashContext) SubOption(name string) string {
	data := c.Event.ApplicationCommandData()
	if len(data.Options) == 0 {
		return ""
	}
	for _, opt := range data.Options[0].Options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionString {
			return opt.StringValue()
		}
	}
	return ""
}

// SubOptionInt reads an integer option of the interaction's first subcommand.
func (c *SlashContext) SubOptionInt(name string) (int64, bool) {
	data := c.Event.ApplicationCommandData()
	if len(data.Options) == 0 {
		return 0, false
	}
	for _, opt := range data.Options[0].Options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionInteger {
			return opt.IntValue(), true
		}
	}
	return 0, false
}

// Subcommand returns the first subcommand name, or "".
func (c *SlashContext) Subcommand() string {
	data := c.Event.ApplicationCommandData()
	if len(data.Options) == 0 {
		return ""
	}
	return data.Options[0].Name
}

// UserID returns the invoking user's ID for both guild and DM interactions.
func (c *SlashContext) UserID() string {
	if c.Event.Member != nil && c.Event.Member.User != nil {
		return c.Event.Member.User.ID
	}
	if c.Event.User != nil {
		return c.Event.User.ID
	}
	return ""
}
