package workers

import (
	"context"
	"fmt"
	"log/slog"

	"mega-relay/contract"
	"mega-relay/domain"
)

// LinkRelayer is what the listener delegates detected links to.
// Relay blocks until the transfer resolves, so the listener runs it in
// its own goroutine and keeps draining the inbox.
type LinkRelayer interface {
	Relay(ctx context.Context, msg domain.InboundMessage, link domain.RemoteLink)
	StatusReport(ctx context.Context) string
}

// LinkListener consumes inbound chat messages, answers commands, and hands
// every detected MEGA link to the relay service. In groups and channels it
// first checks the bot's own membership before touching a link.
type LinkListener struct {
	log   *slog.Logger
	chat  contract.ChatClient
	relay LinkRelayer
	inbox <-chan domain.InboundMessage
}

func NewLinkListener(log *slog.Logger, chat contract.ChatClient, relay LinkRelayer, inbox <-chan domain.InboundMessage) *LinkListener {
	return &LinkListener{log: log, chat: chat, relay: relay, inbox: inbox}
}

func (l *LinkListener) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-l.inbox:
			if !ok {
				return nil
			}
			l.handle(ctx, msg)
		}
	}
}

func (l *LinkListener) handle(ctx context.Context, msg domain.InboundMessage) {
	if msg.Command != "" {
		l.handleCommand(ctx, msg)
		return
	}

	raw, found := domain.CleanLink(msg.Text)
	if !found {
		if !msg.ChatType.Private() && msg.Mentioned {
			l.reply(ctx, msg.ChatID, "🤖 Hi! Send me a MEGA link to download files.\n\nExample: https://mega.nz/file/ABC123#XYZ456")
		}
		return
	}

	l.log.Info("Detected MEGA link", "chat", msg.ChatID, "chat_type", msg.ChatType)

	if !msg.ChatType.Private() && !l.mayPostIn(ctx, msg) {
		return
	}

	link, err := domain.ParseLink(raw)
	if err != nil {
		l.reply(ctx, msg.ChatID, "❌ Invalid MEGA link.\n\nSupported formats:\n• https://mega.nz/file/ID#KEY\n• https://mega.nz/folder/ID#KEY")
		return
	}

	go l.relay.Relay(ctx, msg, link)
}

func (l *LinkListener) handleCommand(ctx context.Context, msg domain.InboundMessage) {
	switch msg.Command {
	case "start":
		l.reply(ctx, msg.ChatID, startText(msg.ChatType))
	case "help":
		l.reply(ctx, msg.ChatID, helpText(msg.ChatType))
	case "status":
		l.reply(ctx, msg.ChatID, l.relay.StatusReport(ctx))
	default:
		l.log.Info("Ignoring unknown command", "command", msg.Command)
	}
}

// mayPostIn gates link processing on the bot's own membership.
// A channel where the bot lacks admin rights gets a best-effort private
// note to the sender explaining what is missing.
func (l *LinkListener) mayPostIn(ctx context.Context, msg domain.InboundMessage) bool {
	member, err := l.chat.SelfMember(ctx, msg.ChatID)
	if err != nil {
		l.log.Error("Permission check failed", "chat", msg.ChatID, "error", err)
		return false
	}

	if member.MayPost(msg.ChatType) {
		return true
	}

	l.log.Warn("Not allowed to post here, skipping link",
		"chat", msg.ChatID, "chat_type", msg.ChatType, "status", member.Status)

	if msg.ChatType == domain.ChatChannel && msg.UserID != 0 {
		l.reply(ctx, msg.UserID,
			"❌ I cannot process MEGA links in this channel because I'm not an admin.\n\nPlease make me an admin with permission to read and post messages.")
	}
	return false
}

func (l *LinkListener) reply(ctx context.Context, chatID int64, text string) {
	if _, err := l.chat.SendMessage(ctx, chatID, text); err != nil {
		l.log.Error("Reply failed", "chat", chatID, "error", err)
	}
}

func startText(chatType domain.ChatType) string {
	where := "here"
	if !chatType.Private() {
		where = fmt.Sprintf("in this %s", chatType)
	}

	return fmt.Sprintf(`🤖 MEGA Downloader Bot

I can download MEGA files and folders %s!

Just send me any MEGA link and I'll download it.

Features:
• Works in private chats, groups, and channels
• Downloads files and folders
• Auto-detects file types
• Shows progress
• Automatic cleanup

Supported formats:
• https://mega.nz/file/ID#KEY
• https://mega.nz/folder/ID#KEY

Send me a MEGA link to get started!`, where)
}

func helpText(chatType domain.ChatType) string {
	if chatType.Private() {
		return `📖 Help

Just send me any MEGA link and I'll download it for you!

Valid link formats:
✅ https://mega.nz/file/ABC123#XYZ456
✅ https://mega.nz/folder/DEF789#UVW012

Requirements:
• Link must include #key at the end
• File size must be under 2GB for Telegram`
	}

	kind := "group"
	if chatType == domain.ChatChannel {
		kind = "channel"
	}

	return fmt.Sprintf(`📖 Help

I can download MEGA files here too!

IMPORTANT: for me to work in this %s:
1. I must be added as admin
2. I need permission to read messages
3. I need permission to send messages/media

How to use:
Just send any MEGA link in chat, I'll process it automatically.

Link formats:
• https://mega.nz/file/ID#KEY
• https://mega.nz/folder/ID#KEY`, kind)
}
