package bot

import (
	"time"

	"go.uber.org/zap"
)

// Discord typing indicator lasts ~10 seconds, so we refresh a bit before that
const typingRefreshInterval = 8 * time.Second

// keepTyping shows the typing indicator until the returned stop func is
// called. A reflected turn is two sequential completions, which regularly
// outlives a single indicator.
func (h *Handler) keepTyping(s Session, channelID string) (stop func()) {
	h.sendTyping(s, channelID)

	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		ticker := time.NewTicker(h.typingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				h.sendTyping(s, channelID)
			}
		}
	}()

	return func() {
		close(done)
		<-exited
	}
}

func (h *Handler) sendTyping(s Session, channelID string) {
	if err := s.ChannelTyping(channelID); err != nil {
		h.logger.Debug("typing indicator failed", zap.String("channel", channelID), zap.Error(err))
	}
}
