package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"fyuchan/pkg/fyu"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

const errorReply = "Oops, my brain glitched on that one. Mind asking again in a bit?"

type Options struct {
	// ReflectByDefault is the reflection toggle for users who never set it.
	ReflectByDefault bool
	MaxMessageLength int
	// RecentReplies bounds how many channels /resent remembers.
	RecentReplies int
}

type Handler struct {
	core             TurnHandler
	prefs            PreferenceStore
	lastReplies      *lru.Cache[string, string]
	botID            string
	reflectByDefault bool
	maxMessageLength int
	typingInterval   time.Duration
	processingUsers  map[string]bool
	processingMu     sync.Mutex
	logger           *zap.Logger
}

func NewHandler(core TurnHandler, prefs PreferenceStore, opts Options, logger *zap.Logger) *Handler {
	if opts.MaxMessageLength <= 0 {
		opts.MaxMessageLength = 2000
	}
	lastReplies, err := lru.New[string, string](opts.RecentReplies)
	if err != nil {
		// Only happens when RecentReplies <= 0
		logger.Warn("invalid recent reply cache size, using 256", zap.Int("size", opts.RecentReplies))
		lastReplies, _ = lru.New[string, string](256)
	}

	return &Handler{
		core:             core,
		prefs:            prefs,
		lastReplies:      lastReplies,
		reflectByDefault: opts.ReflectByDefault,
		maxMessageLength: opts.MaxMessageLength,
		typingInterval:   typingRefreshInterval,
		processingUsers:  make(map[string]bool),
		logger:           logger,
	}
}

func (h *Handler) SetBotID(id string) {
	h.botID = id
}

// preferences returns the user's preferences, starting a new session for
// users seen for the first time. When the store cannot be read, fresh
// preferences are used for this turn only and nothing is saved, so the stored
// record survives a transient failure.
func (h *Handler) preferences(ctx context.Context, userID string) Preferences {
	p, err := h.loadOrCreatePreferences(ctx, userID)
	if err != nil {
		h.logger.Error("failed to load preferences", zap.String("user", userID), zap.Error(err))
		return Preferences{SessionID: uuid.NewString(), Reflect: h.reflectByDefault}
	}
	return p
}

func (h *Handler) loadOrCreatePreferences(ctx context.Context, userID string) (Preferences, error) {
	p, ok, err := h.prefs.Load(ctx, userID)
	if err != nil {
		return Preferences{}, err
	}
	if ok {
		return p, nil
	}

	p = Preferences{SessionID: uuid.NewString(), Reflect: h.reflectByDefault}
	if err := h.prefs.Save(ctx, userID, p); err != nil {
		h.logger.Error("failed to save preferences", zap.String("user", userID), zap.Error(err))
	}
	h.logger.Info("started session", zap.String("user", userID), zap.String("session", p.SessionID))
	return p, nil
}

// updatePreferences applies update to the stored preferences. A load failure
// is returned without saving.
func (h *Handler) updatePreferences(ctx context.Context, userID string, update func(*Preferences)) (Preferences, error) {
	p, err := h.loadOrCreatePreferences(ctx, userID)
	if err != nil {
		return Preferences{}, fmt.Errorf("failed to load preferences: %w", err)
	}
	update(&p)
	return p, h.prefs.Save(ctx, userID, p)
}

// LastReply returns the last reply sent in a channel, if still remembered.
func (h *Handler) LastReply(channelID string) string {
	reply, _ := h.lastReplies.Get(channelID)
	return reply
}

func (h *Handler) MessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	h.HandleMessage(&DiscordSession{s}, m)
}

func (h *Handler) HandleMessage(s Session, m *discordgo.MessageCreate) {
	// Ignore own messages and other bots
	if m.Author == nil || m.Author.ID == h.botID || m.Author.Bot {
		return
	}

	channel, err := s.Channel(m.ChannelID)
	isDM := err == nil && channel.Type == discordgo.ChannelTypeDM

	isMentioned := false
	for _, user := range m.Mentions {
		if user.ID == h.botID {
			isMentioned = true
			break
		}
	}

	// Always reply in DMs, otherwise only when addressed
	if !isDM && !isMentioned {
		return
	}

	content := stripMention(m.Content, h.botID)
	if content == "" {
		return
	}

	// One turn per user at a time
	h.processingMu.Lock()
	if h.processingUsers[m.Author.ID] {
		h.processingMu.Unlock()
		return
	}
	h.processingUsers[m.Author.ID] = true
	h.processingMu.Unlock()

	defer func() {
		h.processingMu.Lock()
		delete(h.processingUsers, m.Author.ID)
		h.processingMu.Unlock()
	}()

	ctx := context.Background()
	prefs := h.preferences(ctx, m.Author.ID)

	stopTyping := h.keepTyping(s, m.ChannelID)
	reply, err := h.core.HandleTurn(ctx, fyu.Turn{
		SessionID:    prefs.SessionID,
		Input:        content,
		CustomPrompt: prefs.CustomPrompt,
		Reflect:      prefs.Reflect,
	})
	stopTyping()
	if err != nil {
		h.logger.Error("turn failed",
			zap.String("user", m.Author.ID),
			zap.String("session", prefs.SessionID),
			zap.Error(err),
		)
		h.sendSplitMessage(s, m.ChannelID, errorReply, m.Reference())
		return
	}

	h.sendSplitMessage(s, m.ChannelID, reply, m.Reference())
	h.lastReplies.Add(m.ChannelID, reply)
}

// stripMention removes the bot's own mention tags from a message.
func stripMention(content, botID string) string {
	if botID != "" {
		content = strings.ReplaceAll(content, "<@"+botID+">", "")
		content = strings.ReplaceAll(content, "<@!"+botID+">", "")
	}
	return strings.TrimSpace(content)
}
