package telegram

import (
	"context"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mega-relay/domain"
)

const pollTimeoutSeconds = 30

// Poller is the inbound side of the chat client: a worker pumping Bot API
// updates into the listener's inbox as reduced domain messages.
type Poller struct {
	log    *slog.Logger
	client *Client
	inbox  chan<- domain.InboundMessage
}

func NewPoller(log *slog.Logger, client *Client, inbox chan<- domain.InboundMessage) *Poller {
	return &Poller{log: log, client: client, inbox: inbox}
}

func (p *Poller) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = pollTimeoutSeconds

	updates := p.client.bot.GetUpdatesChan(cfg)
	defer p.client.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}

			msg := update.Message
			if msg == nil {
				// Channel posts have no From, only the chat itself.
				msg = update.ChannelPost
			}
			if msg == nil || msg.Text == "" {
				continue
			}

			inbound := p.reduce(msg)
			select {
			case p.inbox <- inbound:
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (p *Poller) reduce(msg *tgbotapi.Message) domain.InboundMessage {
	_, username := p.client.Self()

	inbound := domain.InboundMessage{
		ChatID:    msg.Chat.ID,
		ChatType:  domain.ChatType(msg.Chat.Type),
		MessageID: msg.MessageID,
		Text:      msg.Text,
		Mentioned: username != "" && strings.Contains(msg.Text, "@"+username),
	}
	if msg.From != nil {
		inbound.UserID = msg.From.ID
		inbound.Username = msg.From.UserName
		inbound.FirstName = msg.From.FirstName
	}
	if msg.IsCommand() {
		inbound.Command = msg.Command()
	}
	return inbound
}
