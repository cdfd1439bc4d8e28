// Package telegram implements transport.Transport over the Telegram Bot API using long polling.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/and161185/lumen/internal/model"
)

const defaultPollTimeout = 30

// botAPI is the subset of *tgbotapi.BotAPI used by Client.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Client is a Telegram transport. Users are addressed by their private chat id.
type Client struct {
	api         botAPI
	log         *zap.Logger
	pollTimeout int
}

// New connects to the Bot API with token.
func New(token string, log *zap.Logger) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	log.Info("telegram connected", zap.String("bot", api.Self.UserName))
	return NewWithAPI(api, log), nil
}

// NewWithAPI builds a client around an existing API implementation.
func NewWithAPI(api botAPI, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{api: api, log: log, pollTimeout: defaultPollTimeout}
}

// SendMessage posts text with an optional inline keyboard.
func (c *Client) SendMessage(ctx context.Context, userID int64, text string, kb model.Keyboard) (model.MessageHandle, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewMessage(userID, text)
	if len(kb) > 0 {
		msg.ReplyMarkup = toMarkup(kb)
	}
	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("telegram: send: %w", err)
	}
	return model.MessageHandle(sent.MessageID), nil
}

// SendPhoto posts a previously uploaded photo with a caption and an optional inline keyboard.
func (c *Client) SendPhoto(ctx context.Context, userID int64, fileID, caption string, kb model.Keyboard) (model.MessageHandle, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	msg := tgbotapi.NewPhoto(userID, tgbotapi.FileID(fileID))
	msg.Caption = caption
	if len(kb) > 0 {
		msg.ReplyMarkup = toMarkup(kb)
	}
	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("telegram: send photo: %w", err)
	}
	return model.MessageHandle(sent.MessageID), nil
}

// DeleteMessage removes a message from the user's chat.
func (c *Client) DeleteMessage(ctx context.Context, userID int64, handle model.MessageHandle) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewDeleteMessage(userID, int(handle))); err != nil {
		return fmt.Errorf("telegram: delete: %w", err)
	}
	return nil
}

// AnswerCallback stops the loading indicator on a pressed button.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		return fmt.Errorf("telegram: answer callback: %w", err)
	}
	return nil
}

// Updates starts long polling and converts updates into events until ctx is done.
func (c *Client) Updates(ctx context.Context) <-chan model.Event {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = c.pollTimeout
	in := c.api.GetUpdatesChan(cfg)

	out := make(chan model.Event)
	go func() {
		defer close(out)
		defer c.api.StopReceivingUpdates()
		for {
			select {
			case <-ctx.Done():
				return
			case u, ok := <-in:
				if !ok {
					return
				}
				ev, ok := toEvent(u)
				if !ok {
					c.log.Debug("telegram update skipped", zap.Int("update_id", u.UpdateID))
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

func toMarkup(kb model.Keyboard) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(kb))
	for _, r := range kb {
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(r))
		for _, b := range r {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(row...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// toEvent maps private-chat messages and button presses; everything else is dropped.
func toEvent(u tgbotapi.Update) (model.Event, bool) {
	if q := u.CallbackQuery; q != nil {
		if q.From == nil {
			return model.Event{}, false
		}
		ev := model.Event{
			UserID:     q.From.ID,
			Username:   q.From.UserName,
			Kind:       model.EventButton,
			Payload:    q.Data,
			CallbackID: q.ID,
		}
		if q.Message != nil {
			ev.Message = model.MessageHandle(q.Message.MessageID)
		}
		return ev, true
	}

	m := u.Message
	if m == nil || m.From == nil || m.Chat == nil || !m.Chat.IsPrivate() {
		return model.Event{}, false
	}
	ev := model.Event{
		UserID:   m.From.ID,
		Username: m.From.UserName,
		Message:  model.MessageHandle(m.MessageID),
	}
	switch {
	case m.IsCommand():
		ev.Kind, ev.Payload = model.EventCommand, m.Command()
	case len(m.Photo) > 0:
		// sizes are ascending, the last one is the original
		ev.Kind, ev.Payload = model.EventPhoto, m.Photo[len(m.Photo)-1].FileID
	case m.Text != "":
		ev.Kind, ev.Payload = model.EventText, m.Text
	default:
		return model.Event{}, false
	}
	return ev, true
}
