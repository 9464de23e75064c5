package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/Szchiji/lunbo/internal/schedule"
	"github.com/Szchiji/lunbo/pkg/logx"
)

type Config struct {
	Token string
	// APITimeout bounds individual Bot API calls.
	APITimeout time.Duration
}

// Client wraps a telebot instance for outbound-only use: the broadcaster
// never consumes updates, so the bot is created but never started.
type Client struct {
	cfg Config
	log logx.Logger
	bot *tele.Bot
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.APITimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, log: log, bot: b}, nil
}

// SendText sends a plain text message, optionally with a single-row inline
// URL button.
func (c *Client) SendText(ctx context.Context, chatID int64, text string, btn *schedule.Button) (int, error) {
	opt := &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
		ReplyMarkup:           markup(btn),
	}
	msg, err := c.bot.Send(&tele.Chat{ID: chatID}, text, opt)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

// SendMedia sends one media payload as the given kind. The caller owns the
// fallback chain; this method makes exactly one attempt.
func (c *Client) SendMedia(ctx context.Context, chatID int64, kind schedule.MediaKind, ref, caption string, btn *schedule.Button) (int, error) {
	what, err := sendable(kind, ref, caption)
	if err != nil {
		return 0, err
	}
	opt := &tele.SendOptions{ReplyMarkup: markup(btn)}
	msg, err := c.bot.Send(&tele.Chat{ID: chatID}, what, opt)
	if err != nil {
		return 0, err
	}
	return msg.ID, nil
}

func (c *Client) Delete(ctx context.Context, chatID int64, messageID int) error {
	return c.bot.Delete(stored(chatID, messageID))
}

func (c *Client) Pin(ctx context.Context, chatID int64, messageID int) error {
	return c.bot.Pin(stored(chatID, messageID), tele.Silent)
}

// SendLog implements logx.Sender so warnings can be mirrored to an operator
// chat. No markup, no preview; errors are the sink's problem.
func (c *Client) SendLog(ctx context.Context, chatID int64, text string) error {
	_, err := c.bot.Send(&tele.Chat{ID: chatID}, text, &tele.SendOptions{DisableWebPagePreview: true})
	return err
}

func stored(chatID int64, messageID int) tele.Editable {
	return &tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
}

func markup(btn *schedule.Button) *tele.ReplyMarkup {
	if btn == nil {
		return nil
	}
	return &tele.ReplyMarkup{
		InlineKeyboard: [][]tele.InlineButton{{{Text: btn.Text, URL: btn.URL}}},
	}
}

// fileRef resolves a stored media reference: http(s) URLs are sent by URL,
// anything else is assumed to be a Telegram file_id.
func fileRef(ref string) tele.File {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return tele.FromURL(ref)
	}
	return tele.File{FileID: ref}
}

func sendable(kind schedule.MediaKind, ref, caption string) (any, error) {
	f := fileRef(ref)
	switch kind {
	case schedule.MediaPhoto:
		return &tele.Photo{File: f, Caption: caption}, nil
	case schedule.MediaVideo:
		return &tele.Video{File: f, Caption: caption}, nil
	case schedule.MediaAnimation:
		return &tele.Animation{File: f, Caption: caption}, nil
	case schedule.MediaDocument:
		return &tele.Document{File: f, Caption: caption}, nil
	default:
		return nil, fmt.Errorf("cannot send media as kind %q", kind)
	}
}
