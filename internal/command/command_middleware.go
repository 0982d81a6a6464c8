package command

import (
	"log"
	"time"

	"github.com/bwmarrin/discordgo"
)

type Middleware func(Command) Command

type wrappedCommand struct {
	Command
	wrap func(ctx interface{}) error
}

func (w *wrappedCommand) Run(ctx interface{}) error {
	return w.wrap(ctx)
}

// WithGuildOnly rejects DM invocations with an ephemeral notice.
func WithGuildOnly() Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx interface{}) error {
				if v, ok := ctx.(*SlashContext); ok && v.Event.GuildID == "" {
					return v.Session.InteractionRespond(v.Event.Interaction, &discordgo.InteractionResponse{
						Type: discordgo.InteractionResponseChannelMessageWithSource,
						Data: &discordgo.InteractionResponseData{
							Content: "You must be in a guild to use this command.",
							Flags:   discordgo.MessageFlagsEphemeral,
						},
					})
				}
				return cmd.Run(ctx)
			},
		}
	}
}

// WithCommandLogger logs every invocation and its duration.
func WithCommandLogger() Middleware {
	return func(cmd Command) Command {
		return &wrappedCommand{
			Command: cmd,
			wrap: func(ctx interface{}) error {
				start := time.Now()
				err := cmd.Run(ctx)
				if v, ok := ctx.(*SlashContext); ok {
					log.Printf("[CMD] /%s %s guild=%s user=%s took=%s err=%v",
						cmd.Name(), v.Subcommand(), v.Event.GuildID, v.UserID(), time.Since(start).Round(time.Millisecond), err)
				}
				return err
			},
		}
	}
}
