package bot

import (
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// splitMessage breaks content into Discord-sized parts. Paragraphs become
// separate messages; paragraphs longer than maxLen are cut at the last line
// break or space before the limit.
func splitMessage(content string, maxLen int) []string {
	var parts []string
	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		for para != "" {
			runes := []rune(para)
			if len(runes) <= maxLen {
				parts = append(parts, para)
				break
			}

			cut := maxLen
			head := string(runes[:maxLen])
			if i := strings.LastIndexAny(head, "\n "); i > 0 {
				cut = len([]rune(head[:i]))
			}
			parts = append(parts, strings.TrimSpace(string(runes[:cut])))
			para = strings.TrimSpace(string(runes[cut:]))
		}
	}
	return parts
}

func (h *Handler) sendSplitMessage(s Session, channelID, content string, reference *discordgo.MessageReference) {
	isFirstPart := true
	for _, part := range splitMessage(content, h.maxMessageLength) {
		var err error
		if reference == nil {
			_, err = s.ChannelMessageSend(channelID, part)
		} else if isFirstPart {
			// The first part of a reply pings the user by default
			_, err = s.ChannelMessageSendReply(channelID, part, reference)
			isFirstPart = false
		} else {
			_, err = s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
				Content:   part,
				Reference: reference,
				AllowedMentions: &discordgo.MessageAllowedMentions{
					RepliedUser: false,
				},
			})
		}

		if err != nil {
			h.logger.Error("failed to send message part", zap.String("channel", channelID), zap.Error(err))
		}
	}
}
