package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fyuchan/pkg/bot"
	"fyuchan/pkg/cache"

	"github.com/bwmarrin/discordgo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var discordCmd = &cobra.Command{
	Use:   "discord",
	Short: "Run Fyu-chan as a Discord bot",
	RunE: func(cmd *cobra.Command, args []string) error {
		token := os.Getenv("DISCORD_TOKEN")
		if token == "" {
			return fmt.Errorf("missing required environment variable: DISCORD_TOKEN")
		}

		core, err := buildOrchestrator()
		if err != nil {
			return err
		}

		prefs, closePrefs := preferenceStore()
		defer closePrefs()

		handler := bot.NewHandler(core, prefs, bot.Options{
			ReflectByDefault: cfg.Reflection.Enabled,
			MaxMessageLength: cfg.Discord.MaxMessageLength,
			RecentReplies:    cfg.Sessions.RecentReplies,
		}, logger)

		dg, err := discordgo.New("Bot " + token)
		if err != nil {
			return fmt.Errorf("error creating Discord session: %w", err)
		}

		dg.AddHandler(handler.MessageCreate)
		dg.AddHandler(handler.InteractionCreate)
		dg.Identify.Intents = discordgo.IntentsGuildMessages | discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent

		if err := dg.Open(); err != nil {
			return fmt.Errorf("error opening connection: %w", err)
		}
		defer dg.Close()

		handler.SetBotID(dg.State.User.ID)

		guildID := os.Getenv("DISCORD_GUILD_ID")
		registered, err := bot.RegisterSlashCommands(dg, guildID, logger)
		if err != nil {
			logger.Warn("slash commands unavailable", zap.Error(err))
		}

		logger.Info("bot is running", zap.String("user", dg.State.User.Username))
		sc := make(chan os.Signal, 1)
		signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
		<-sc

		if len(registered) > 0 {
			if err := bot.UnregisterSlashCommands(dg, guildID, registered, logger); err != nil {
				logger.Warn("failed to unregister slash commands", zap.Error(err))
			}
		}
		return nil
	},
}

// preferenceStore uses Redis when REDIS_URL is set and reachable, and keeps
// preferences in memory otherwise.
func preferenceStore() (bot.PreferenceStore, func()) {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return bot.NewMemoryPreferenceStore(), func() {}
	}

	c, err := cache.NewRedisCache(redisURL, "fyu")
	if err != nil {
		logger.Warn("redis unavailable, keeping preferences in memory", zap.Error(err))
		return bot.NewMemoryPreferenceStore(), func() {}
	}

	logger.Info("preferences stored in redis")
	ttl := time.Duration(cfg.Sessions.PreferenceTTL * float64(time.Hour))
	return bot.NewCachedPreferenceStore(c, ttl), func() { _ = c.Close() }
}
