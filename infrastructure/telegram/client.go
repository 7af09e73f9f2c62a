package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mega-relay/domain"
)

// Client wraps the Bot API behind the chat capability. One instance is
// built at startup and injected everywhere a message or file goes out.
type Client struct {
	bot *tgbotapi.BotAPI
	log *slog.Logger
}

func NewClient(log *slog.Logger, token string) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("bot authorization failed: %w", err)
	}
	log.Info("Authorized on Telegram", "username", bot.Self.UserName)
	return &Client{bot: bot, log: log}, nil
}

// Self reports the bot's own identity, used for mention detection.
func (c *Client) Self() (id int64, username string) {
	return c.bot.Self.ID, c.bot.Self.UserName
}

func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) (domain.MessageRef, error) {
	if err := ctx.Err(); err != nil {
		return domain.MessageRef{}, err
	}
	sent, err := c.bot.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		return domain.MessageRef{}, err
	}
	return domain.MessageRef{ChatID: chatID, MessageID: sent.MessageID}, nil
}

func (c *Client) EditMessage(ctx context.Context, ref domain.MessageRef, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.bot.Send(tgbotapi.NewEditMessageText(ref.ChatID, ref.MessageID, text))
	return err
}

func (c *Client) DeleteMessage(ctx context.Context, ref domain.MessageRef) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.bot.Request(tgbotapi.NewDeleteMessage(ref.ChatID, ref.MessageID))
	return err
}

// SendFile streams the local file so Progress sees bytes as they leave.
// The Bot API buffers multipart uploads, so fractions reflect read progress
// rather than delivery, which is close enough for a status bar.
func (c *Client) SendFile(ctx context.Context, upload domain.FileUpload) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.Open(upload.Path)
	if err != nil {
		return err
	}
	defer f.Close()

	reader := &progressReader{
		ctx:    ctx,
		r:      f,
		total:  upload.Size,
		report: upload.Progress,
	}
	file := tgbotapi.FileReader{Name: upload.Name, Reader: reader}

	_, err = c.bot.Send(c.mediaConfig(upload, file))
	return err
}

// SendFileSimple hands the path to the library and gives up on progress.
func (c *Client) SendFileSimple(ctx context.Context, upload domain.FileUpload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.bot.Send(c.mediaConfig(upload, tgbotapi.FilePath(upload.Path)))
	return err
}

func (c *Client) SelfMember(ctx context.Context, chatID int64) (domain.MemberInfo, error) {
	if err := ctx.Err(); err != nil {
		return domain.MemberInfo{}, err
	}

	member, err := c.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: chatID,
			UserID: c.bot.Self.ID,
		},
	})
	if err != nil {
		return domain.MemberInfo{}, err
	}

	return domain.MemberInfo{
		Status:          member.Status,
		CanPostMessages: member.CanPostMessages,
		CanSendMessages: member.CanSendMessages,
	}, nil
}

// mediaConfig picks the upload method from the media class, mirroring how
// users expect videos and music to land as playable attachments.
func (c *Client) mediaConfig(upload domain.FileUpload, file tgbotapi.RequestFileData) tgbotapi.Chattable {
	switch upload.Class {
	case domain.MediaVideo:
		cfg := tgbotapi.NewVideo(upload.ChatID, file)
		cfg.Caption = upload.Caption
		cfg.SupportsStreaming = true
		return cfg
	case domain.MediaImage:
		cfg := tgbotapi.NewPhoto(upload.ChatID, file)
		cfg.Caption = upload.Caption
		return cfg
	case domain.MediaAudio:
		cfg := tgbotapi.NewAudio(upload.ChatID, file)
		cfg.Caption = upload.Caption
		return cfg
	default:
		cfg := tgbotapi.NewDocument(upload.ChatID, file)
		cfg.Caption = upload.Caption
		return cfg
	}
}

// progressReader reports read fractions and aborts when the upload
// deadline fires, since the underlying HTTP client reads to the end.
type progressReader struct {
	ctx    context.Context
	r      io.Reader
	total  int64
	read   int64
	report func(fraction float64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	if err := p.ctx.Err(); err != nil {
		return 0, err
	}
	n, err := p.r.Read(b)
	p.read += int64(n)
	if n > 0 && p.total > 0 && p.report != nil {
		p.report(float64(p.read) / float64(p.total))
	}
	return n, err
}
