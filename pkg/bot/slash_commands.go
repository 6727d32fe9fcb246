package bot

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SlashCommands defines all available slash commands
var SlashCommands = []*discordgo.ApplicationCommand{
	{
		Name:        "prompt",
		Description: "Manage your custom system prompt",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "set",
				Description: "Replace Fyu-chan's default prompt for your session",
				Options: []*discordgo.ApplicationCommandOption{
					{
						Type:        discordgo.ApplicationCommandOptionString,
						Name:        "text",
						Description: "Prompt text. {readings}, {current_date} and {custom_prompt_block} are filled in.",
						Required:    true,
					},
				},
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "show",
				Description: "Show the prompt currently in use",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "clear",
				Description: "Go back to the default prompt",
			},
		},
	},
	{
		Name:        "reflection",
		Description: "Turn the self-check pass on or off",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionBoolean,
				Name:        "enabled",
				Description: "Whether replies are reviewed before they are sent",
				Required:    true,
			},
		},
	},
	{
		Name:        "new",
		Description: "Start a fresh conversation",
	},
	{
		Name:        "resent",
		Description: "Resend the last reply in this channel",
	},
}

type slashCommandHandler func(h *Handler, s Session, i *discordgo.InteractionCreate)

// SlashCommandHandlers maps command names to their handler functions
var SlashCommandHandlers = map[string]slashCommandHandler{
	"prompt":     handlePromptCommand,
	"reflection": handleReflectionCommand,
	"new":        handleNewCommand,
	"resent":     handleResentCommand,
}

func (h *Handler) respond(s Session, i *discordgo.InteractionCreate, data *discordgo.InteractionResponseData) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	})
	if err != nil {
		h.logger.Error("failed to respond to interaction", zap.String("command", i.ApplicationCommandData().Name), zap.Error(err))
	}
}

func (h *Handler) respondEphemeral(s Session, i *discordgo.InteractionCreate, content string) {
	h.respond(s, i, &discordgo.InteractionResponseData{
		Content: content,
		Flags:   discordgo.MessageFlagsEphemeral,
	})
}

func handlePromptCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	userID, _, err := getUserFromInteraction(i)
	if err != nil {
		h.logger.Warn("prompt command without user", zap.Error(err))
		return
	}

	options := i.ApplicationCommandData().Options
	if len(options) == 0 {
		return
	}
	sub := options[0]
	ctx := context.Background()

	switch sub.Name {
	case "set":
		text := ""
		for _, opt := range sub.Options {
			if opt.Name == "text" {
				text = strings.TrimSpace(opt.StringValue())
			}
		}
		_, err = h.updatePreferences(ctx, userID, func(p *Preferences) { p.CustomPrompt = text })
		if err != nil {
			h.logger.Error("failed to save custom prompt", zap.String("user", userID), zap.Error(err))
			h.respondEphemeral(s, i, "Couldn't save that prompt, try again later?")
			return
		}
		if text == "" {
			h.respondEphemeral(s, i, "That prompt was empty, so I'm back to my default self.")
			return
		}
		h.respondEphemeral(s, i, "Custom prompt saved! It replaces my default prompt from your next message.")

	case "clear":
		_, err = h.updatePreferences(ctx, userID, func(p *Preferences) { p.CustomPrompt = "" })
		if err != nil {
			h.logger.Error("failed to clear custom prompt", zap.String("user", userID), zap.Error(err))
			h.respondEphemeral(s, i, "Couldn't clear your prompt, try again later?")
			return
		}
		h.respondEphemeral(s, i, "Custom prompt cleared. Default Fyu-chan is back!")

	case "show":
		p := h.preferences(ctx, userID)
		label := "Default prompt in use"
		if strings.TrimSpace(p.CustomPrompt) != "" {
			label = "Custom prompt in use"
		}
		h.respond(s, i, &discordgo.InteractionResponseData{
			Content: "🧠 " + label + " (attached).",
			Flags:   discordgo.MessageFlagsEphemeral,
			Files: []*discordgo.File{{
				Name:        "prompt.txt",
				ContentType: "text/plain",
				Reader:      strings.NewReader(h.core.EffectivePrompt(p.CustomPrompt)),
			}},
		})
	}
}

func handleReflectionCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	userID, _, err := getUserFromInteraction(i)
	if err != nil {
		h.logger.Warn("reflection command without user", zap.Error(err))
		return
	}

	enabled := h.reflectByDefault
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == "enabled" {
			enabled = opt.BoolValue()
		}
	}

	_, err = h.updatePreferences(context.Background(), userID, func(p *Preferences) { p.Reflect = enabled })
	if err != nil {
		h.logger.Error("failed to save reflection toggle", zap.String("user", userID), zap.Error(err))
		h.respondEphemeral(s, i, "Couldn't change that setting, try again later?")
		return
	}

	if enabled {
		h.respondEphemeral(s, i, "Reflection on: I'll double-check my replies before sending them.")
	} else {
		h.respondEphemeral(s, i, "Reflection off: you'll get my first take, unfiltered.")
	}
}

func handleNewCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	userID, _, err := getUserFromInteraction(i)
	if err != nil {
		h.logger.Warn("new command without user", zap.Error(err))
		return
	}

	p, err := h.updatePreferences(context.Background(), userID, func(p *Preferences) { p.SessionID = uuid.NewString() })
	if err != nil {
		h.logger.Error("failed to start new session", zap.String("user", userID), zap.Error(err))
		h.respondEphemeral(s, i, "Ugh, something went wrong starting over... Try again later?")
		return
	}

	h.logger.Info("started session", zap.String("user", userID), zap.String("session", p.SessionID))
	h.respondEphemeral(s, i, "Fresh start! What's on your mind? ✨")
}

func handleResentCommand(h *Handler, s Session, i *discordgo.InteractionCreate) {
	parts := splitMessage(h.LastReply(i.ChannelID), h.maxMessageLength)
	if len(parts) == 0 {
		h.respondEphemeral(s, i, "I haven't said anything here recently to resend!")
		return
	}

	h.respond(s, i, &discordgo.InteractionResponseData{Content: parts[0]})
	for _, part := range parts[1:] {
		if _, err := s.ChannelMessageSend(i.ChannelID, part); err != nil {
			h.logger.Error("failed to resend message part", zap.String("channel", i.ChannelID), zap.Error(err))
		}
	}
}

// InteractionCreate handles all slash command interactions
func (h *Handler) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	h.HandleInteraction(&DiscordSession{s}, i)
}

func (h *Handler) HandleInteraction(s Session, i *discordgo.InteractionCreate) {
	// Only handle application commands (slash commands)
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	commandName := i.ApplicationCommandData().Name

	if handler, ok := SlashCommandHandlers[commandName]; ok {
		handler(h, s, i)
	} else {
		h.logger.Warn("unknown slash command", zap.String("command", commandName))
	}
}

// RegisterSlashCommands registers all slash commands with Discord
func RegisterSlashCommands(s *discordgo.Session, guildID string, logger *zap.Logger) ([]*discordgo.ApplicationCommand, error) {
	logger.Info("registering slash commands", zap.String("guild", guildID))

	registeredCommands := make([]*discordgo.ApplicationCommand, len(SlashCommands))

	for i, cmd := range SlashCommands {
		// Register globally (guildID = "") or for a specific guild
		registeredCmd, err := s.ApplicationCommandCreate(s.State.User.ID, guildID, cmd)
		if err != nil {
			logger.Error("cannot create command", zap.String("command", cmd.Name), zap.Error(err))
			return nil, err
		}
		registeredCommands[i] = registeredCmd
	}

	return registeredCommands, nil
}

// UnregisterSlashCommands removes all registered slash commands
func UnregisterSlashCommands(s *discordgo.Session, guildID string, commands []*discordgo.ApplicationCommand, logger *zap.Logger) error {
	logger.Info("unregistering slash commands", zap.Int("count", len(commands)))

	for _, cmd := range commands {
		err := s.ApplicationCommandDelete(s.State.User.ID, guildID, cmd.ID)
		if err != nil {
			logger.Error("cannot delete command", zap.String("command", cmd.Name), zap.Error(err))
			return err
		}
	}

	return nil
}
