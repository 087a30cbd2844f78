package publisher

import (
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/griguv/pricewatch/logger"
	"github.com/griguv/pricewatch/pkg/errors"
)

// TelegramPublisher delivers notifications to one or more Telegram chats via
// the Bot API sendMessage endpoint. The routing key is ignored; every chat
// receives every message.
type TelegramPublisher struct {
	client  *http.Client
	apiBase string
	token   string
	chatIDs []string
	log     *logger.Logger
}

// NewTelegramPublisher creates a Telegram publisher. apiBase is the API root
// (normally https://api.telegram.org), overridable for tests.
func NewTelegramPublisher(apiBase, token string, chatIDs []string) *TelegramPublisher {
	return &TelegramPublisher{
		client:  &http.Client{Timeout: 15 * time.Second},
		apiBase: strings.TrimSuffix(apiBase, "/"),
		token:   token,
		chatIDs: chatIDs,
		log:     logger.ForPublisher(),
	}
}

// Publish sends the message text to every configured chat. A failure on one
// chat does not stop delivery to the rest; the first error is returned.
func (p *TelegramPublisher) Publish(_ string, message []byte) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", p.apiBase, p.token)

	var firstErr error
	for _, chatID := range p.chatIDs {
		form := url.Values{
			"chat_id":                  {chatID},
			"text":                     {string(message)},
			"disable_web_page_preview": {"true"},
		}
		resp, err := p.client.PostForm(endpoint, form)
		if err != nil {
			if firstErr == nil {
				firstErr = errors.NewPublisher("telegram", "sendMessage failed", err)
			}
			p.log.Warn().Err(err).Str("chat_id", chatID).Msg("Telegram delivery failed")
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			err := errors.NewHTTP("telegram", resp.StatusCode)
			if firstErr == nil {
				firstErr = err
			}
			p.log.Warn().Err(err).Str("chat_id", chatID).Msg("Telegram rejected message")
		}
	}
	return firstErr
}

// TrimStreams is a no-op; Telegram retains nothing on our side
func (p *TelegramPublisher) TrimStreams() error {
	return nil
}

// Close is a no-op
func (p *TelegramPublisher) Close() error {
	return nil
}
