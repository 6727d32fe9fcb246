package bot

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"fyuchan/pkg/fyu"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockSession implements Session for testing
type MockSession struct {
	SentMessages []string
	TypingCalls  int
	ChannelType  discordgo.ChannelType // Configurable channel type for testing
	Responses    []*discordgo.InteractionResponse
}

func (m *MockSession) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.SentMessages = append(m.SentMessages, content)
	return &discordgo.Message{
		ID:        "mock_msg_id",
		ChannelID: channelID,
		Content:   content,
	}, nil
}

func (m *MockSession) ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.SentMessages = append(m.SentMessages, content)
	return &discordgo.Message{
		ID:        "mock_msg_id",
		ChannelID: channelID,
		Content:   content,
	}, nil
}

func (m *MockSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.SentMessages = append(m.SentMessages, data.Content)
	return &discordgo.Message{
		ID:        "mock_msg_id",
		ChannelID: channelID,
		Content:   data.Content,
	}, nil
}

func (m *MockSession) ChannelTyping(channelID string, options ...discordgo.RequestOption) error {
	m.TypingCalls++
	return nil
}

func (m *MockSession) Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	channelType := m.ChannelType
	if channelType == 0 {
		channelType = discordgo.ChannelTypeGuildText // Default to guild text channel
	}
	return &discordgo.Channel{
		ID:   channelID,
		Type: channelType,
	}, nil
}

func (m *MockSession) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	m.Responses = append(m.Responses, resp)
	return nil
}

func (m *MockSession) lastResponse(t *testing.T) *discordgo.InteractionResponseData {
	t.Helper()
	require.NotEmpty(t, m.Responses)
	return m.Responses[len(m.Responses)-1].Data
}

// fakeCore records every turn it is asked to handle.
type fakeCore struct {
	mu    sync.Mutex
	turns []fyu.Turn
	reply string
	err   error
}

func (f *fakeCore) HandleTurn(ctx context.Context, turn fyu.Turn) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns = append(f.turns, turn)
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeCore) EffectivePrompt(customPrompt string) string {
	if customPrompt == "" {
		return "DEFAULT PERSONA"
	}
	return "CUSTOM: " + customPrompt
}

const testBotID = "bot_1"

func newTestHandler(core *fakeCore) *Handler {
	h := NewHandler(core, NewMemoryPreferenceStore(), Options{
		ReflectByDefault: true,
		MaxMessageLength: 2000,
		RecentReplies:    16,
	}, zap.NewNop())
	h.SetBotID(testBotID)
	return h
}

func dmMessage(userID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{
		Message: &discordgo.Message{
			ID:        "msg_1",
			ChannelID: "dm_channel",
			Content:   content,
			Author:    &discordgo.User{ID: userID, Username: "tester"},
		},
	}
}

func TestHandleMessage_RepliesInDM(t *testing.T) {
	core := &fakeCore{reply: "Hi there ✨"}
	h := newTestHandler(core)
	s := &MockSession{ChannelType: discordgo.ChannelTypeDM}

	h.HandleMessage(s, dmMessage("user_1", "hello"))

	require.Len(t, core.turns, 1)
	assert.Equal(t, "hello", core.turns[0].Input)
	assert.True(t, core.turns[0].Reflect)
	assert.Empty(t, core.turns[0].CustomPrompt)
	assert.NotEmpty(t, core.turns[0].SessionID)
	assert.Equal(t, []string{"Hi there ✨"}, s.SentMessages)
	assert.Equal(t, 1, s.TypingCalls)
	assert.Equal(t, "Hi there ✨", h.LastReply("dm_channel"))
}

func TestHandleMessage_GuildNeedsMention(t *testing.T) {
	core := &fakeCore{reply: "ok"}
	h := newTestHandler(core)
	s := &MockSession{}

	msg := &discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID: "guild_channel",
		Content:   "just chatting",
		Author:    &discordgo.User{ID: "user_1"},
	}}
	h.HandleMessage(s, msg)
	assert.Empty(t, core.turns)
	assert.Empty(t, s.SentMessages)

	msg.Content = "<@" + testBotID + "> what should I read?"
	msg.Mentions = []*discordgo.User{{ID: testBotID}}
	h.HandleMessage(s, msg)

	require.Len(t, core.turns, 1)
	assert.Equal(t, "what should I read?", core.turns[0].Input)
}

func TestHandleMessage_IgnoresBots(t *testing.T) {
	core := &fakeCore{reply: "ok"}
	h := newTestHandler(core)
	s := &MockSession{ChannelType: discordgo.ChannelTypeDM}

	h.HandleMessage(s, &discordgo.MessageCreate{Message: &discordgo.Message{
		ChannelID: "dm_channel",
		Content:   "beep",
		Author:    &discordgo.User{ID: "other_bot", Bot: true},
	}})
	h.HandleMessage(s, dmMessage(testBotID, "talking to myself"))

	assert.Empty(t, core.turns)
}

func TestHandleMessage_FailureSendsApology(t *testing.T) {
	core := &fakeCore{err: errors.New("completion failed: boom")}
	h := newTestHandler(core)
	s := &MockSession{ChannelType: discordgo.ChannelTypeDM}

	h.HandleMessage(s, dmMessage("user_1", "hello"))

	assert.Equal(t, []string{errorReply}, s.SentMessages)
	assert.Empty(t, h.LastReply("dm_channel"))
}

func TestHandleMessage_SessionStablePerUser(t *testing.T) {
	core := &fakeCore{reply: "ok"}
	h := newTestHandler(core)
	s := &MockSession{ChannelType: discordgo.ChannelTypeDM}

	h.HandleMessage(s, dmMessage("user_1", "one"))
	h.HandleMessage(s, dmMessage("user_1", "two"))
	h.HandleMessage(s, dmMessage("user_2", "three"))

	require.Len(t, core.turns, 3)
	assert.Equal(t, core.turns[0].SessionID, core.turns[1].SessionID)
	assert.NotEqual(t, core.turns[0].SessionID, core.turns[2].SessionID)
}

func TestHandleMessage_SplitsLongReplies(t *testing.T) {
	long := strings.Repeat("word ", 600)
	core := &fakeCore{reply: long}
	h := newTestHandler(core)
	s := &MockSession{ChannelType: discordgo.ChannelTypeDM}

	h.HandleMessage(s, dmMessage("user_1", "tell me everything"))

	require.Greater(t, len(s.SentMessages), 1)
	for _, part := range s.SentMessages {
		assert.LessOrEqual(t, len([]rune(part)), 2000)
	}
}

func TestSplitMessage(t *testing.T) {
	tests := []struct {
		name    string
		content string
		maxLen  int
		want    []string
	}{
		{
			name:    "short",
			content: "hello",
			maxLen:  10,
			want:    []string{"hello"},
		},
		{
			name:    "paragraphs",
			content: "first\n\nsecond",
			maxLen:  100,
			want:    []string{"first", "second"},
		},
		{
			name:    "cut at space",
			content: "aaaa bbbb cccc",
			maxLen:  10,
			want:    []string{"aaaa bbbb", "cccc"},
		},
		{
			name:    "no space to cut at",
			content: "abcdefghij",
			maxLen:  4,
			want:    []string{"abcd", "efgh", "ij"},
		},
		{
			name:    "counts runes",
			content: "ありがとう",
			maxLen:  5,
			want:    []string{"ありがとう"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, splitMessage(tt.content, tt.maxLen))
		})
	}
}

func TestStripMention(t *testing.T) {
	assert.Equal(t, "hi", stripMention("<@bot_1> hi", "bot_1"))
	assert.Equal(t, "hi", stripMention("<@!bot_1>hi", "bot_1"))
	assert.Equal(t, "<@other> hi", stripMention("<@other> hi", "bot_1"))
}

func commandInteraction(userID, name string, options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Type:      discordgo.InteractionApplicationCommand,
		ChannelID: "dm_channel",
		User:      &discordgo.User{ID: userID, Username: "tester"},
		Data: discordgo.ApplicationCommandInteractionData{
			Name:    name,
			Options: options,
		},
	}}
}

func subcommand(name string, options ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.ApplicationCommandInteractionDataOption {
	return &discordgo.ApplicationCommandInteractionDataOption{
		Name:    name,
		Type:    discordgo.ApplicationCommandOptionSubCommand,
		Options: options,
	}
}

func TestSlashPrompt_SetShowClear(t *testing.T) {
	core := &fakeCore{reply: "ok"}
	h := newTestHandler(core)
	s := &MockSession{ChannelType: discordgo.ChannelTypeDM}

	h.HandleInteraction(s, commandInteraction("user_1", "prompt", subcommand("set",
		&discordgo.ApplicationCommandInteractionDataOption{
			Name:  "text",
			Type:  discordgo.ApplicationCommandOptionString,
			Value: "  Talk like a pirate.  ",
		},
	)))
	assert.Equal(t, discordgo.MessageFlagsEphemeral, s.lastResponse(t).Flags)

	h.HandleMessage(s, dmMessage("user_1", "ahoy"))
	require.Len(t, core.turns, 1)
	assert.Equal(t, "Talk like a pirate.", core.turns[0].CustomPrompt)

	h.HandleInteraction(s, commandInteraction("user_1", "prompt", subcommand("show")))
	data := s.lastResponse(t)
	require.Len(t, data.Files, 1)
	assert.Equal(t, "prompt.txt", data.Files[0].Name)
	body, err := io.ReadAll(data.Files[0].Reader)
	require.NoError(t, err)
	assert.Equal(t, "CUSTOM: Talk like a pirate.", string(body))

	h.HandleInteraction(s, commandInteraction("user_1", "prompt", subcommand("clear")))
	h.HandleMessage(s, dmMessage("user_1", "hello again"))
	require.Len(t, core.turns, 2)
	assert.Empty(t, core.turns[1].CustomPrompt)
	assert.Equal(t, core.turns[0].SessionID, core.turns[1].SessionID)
}

func TestSlashReflection_Toggle(t *testing.T) {
	core := &fakeCore{reply: "ok"}
	h := newTestHandler(core)
	s := &MockSession{ChannelType: discordgo.ChannelTypeDM}

	h.HandleInteraction(s, commandInteraction("user_1", "reflection",
		&discordgo.ApplicationCommandInteractionDataOption{
			Name:  "enabled",
			Type:  discordgo.ApplicationCommandOptionBoolean,
			Value: false,
		},
	))
	h.HandleMessage(s, dmMessage("user_1", "hi"))

	require.Len(t, core.turns, 1)
	assert.False(t, core.turns[0].Reflect)
}

func TestSlashNew_StartsFreshSession(t *testing.T) {
	core := &fakeCore{reply: "ok"}
	h := newTestHandler(core)
	s := &MockSession{ChannelType: discordgo.ChannelTypeDM}

	h.HandleInteraction(s, commandInteraction("user_1", "prompt", subcommand("set",
		&discordgo.ApplicationCommandInteractionDataOption{
			Name:  "text",
			Type:  discordgo.ApplicationCommandOptionString,
			Value: "Be brief.",
		},
	)))
	h.HandleMessage(s, dmMessage("user_1", "one"))
	h.HandleInteraction(s, commandInteraction("user_1", "new"))
	h.HandleMessage(s, dmMessage("user_1", "two"))

	require.Len(t, core.turns, 2)
	assert.NotEqual(t, core.turns[0].SessionID, core.turns[1].SessionID)
	assert.Equal(t, "Be brief.", core.turns[1].CustomPrompt)
}

func TestSlashResent(t *testing.T) {
	core := &fakeCore{reply: "Read Dune."}
	h := newTestHandler(core)
	s := &MockSession{ChannelType: discordgo.ChannelTypeDM}

	h.HandleInteraction(s, commandInteraction("user_1", "resent"))
	assert.Equal(t, discordgo.MessageFlagsEphemeral, s.lastResponse(t).Flags)

	h.HandleMessage(s, dmMessage("user_1", "book?"))
	h.HandleInteraction(s, commandInteraction("user_1", "resent"))
	assert.Equal(t, "Read Dune.", s.lastResponse(t).Content)
}

func TestHandleInteraction_UnknownCommand(t *testing.T) {
	h := newTestHandler(&fakeCore{})
	s := &MockSession{}

	h.HandleInteraction(s, commandInteraction("user_1", "nope"))
	assert.Empty(t, s.Responses)
}

func TestGetUserFromInteraction(t *testing.T) {
	id, name, err := getUserFromInteraction(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		Member: &discordgo.Member{User: &discordgo.User{ID: "m1", Username: "member", GlobalName: "Member One"}},
	}})
	require.NoError(t, err)
	assert.Equal(t, "m1", id)
	assert.Equal(t, "Member One", name)

	id, name, err = getUserFromInteraction(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{
		User: &discordgo.User{ID: "u1", Username: "dm-user"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "u1", id)
	assert.Equal(t, "dm-user", name)

	_, _, err = getUserFromInteraction(&discordgo.InteractionCreate{Interaction: &discordgo.Interaction{}})
	assert.Error(t, err)
}

type slowCore struct {
	fakeCore
	delay time.Duration
}

func (c *slowCore) HandleTurn(ctx context.Context, turn fyu.Turn) (string, error) {
	time.Sleep(c.delay)
	return c.fakeCore.HandleTurn(ctx, turn)
}

func TestHandleMessage_KeepsTypingDuringSlowTurns(t *testing.T) {
	core := &slowCore{fakeCore: fakeCore{reply: "done"}, delay: 50 * time.Millisecond}
	h := NewHandler(core, NewMemoryPreferenceStore(), Options{RecentReplies: 4}, zap.NewNop())
	h.SetBotID(testBotID)
	h.typingInterval = 5 * time.Millisecond
	s := &MockSession{ChannelType: discordgo.ChannelTypeDM}

	h.HandleMessage(s, dmMessage("user_1", "take your time"))

	assert.Greater(t, s.TypingCalls, 1)
	assert.Equal(t, []string{"done"}, s.SentMessages)
}
