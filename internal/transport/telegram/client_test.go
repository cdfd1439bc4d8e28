package telegram

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/and161185/lumen/internal/model"
)

type fakeAPI struct {
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	sendErr  error
	reqErr   error
	nextID   int
	updates  chan tgbotapi.Update
	stopped  bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.sendErr != nil {
		return tgbotapi.Message{}, f.sendErr
	}
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if f.reqErr != nil {
		return nil, f.reqErr
	}
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return f.updates }
func (f *fakeAPI) StopReceivingUpdates()                                        { f.stopped = true }

func TestSendMessage_WithKeyboard(t *testing.T) {
	api := &fakeAPI{}
	c := NewWithAPI(api, zaptest.NewLogger(t))

	kb := model.Keyboard{{{Text: "A", Data: "a"}, {Text: "B", Data: "b"}}, {{Text: "C", Data: "c"}}}
	h, err := c.SendMessage(context.Background(), 10, "hi", kb)
	require.NoError(t, err)
	require.Equal(t, model.MessageHandle(1), h)

	msg := api.sent[0].(tgbotapi.MessageConfig)
	require.Equal(t, int64(10), msg.ChatID)
	require.Equal(t, "hi", msg.Text)
	markup := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.Len(t, markup.InlineKeyboard, 2)
	require.Equal(t, "b", *markup.InlineKeyboard[0][1].CallbackData)
}

func TestSendMessage_Error(t *testing.T) {
	api := &fakeAPI{sendErr: errors.New("blocked")}
	_, err := NewWithAPI(api, nil).SendMessage(context.Background(), 10, "hi", nil)
	require.Error(t, err)
}

func TestSendPhoto(t *testing.T) {
	api := &fakeAPI{}
	c := NewWithAPI(api, nil)

	h, err := c.SendPhoto(context.Background(), 10, "file-1", "Ann, 30", model.Keyboard{{{Text: "Back", Data: "dialog:d1"}}})
	require.NoError(t, err)
	require.Equal(t, model.MessageHandle(1), h)

	photo := api.sent[0].(tgbotapi.PhotoConfig)
	require.Equal(t, int64(10), photo.ChatID)
	require.Equal(t, "Ann, 30", photo.Caption)
	require.Equal(t, tgbotapi.FileID("file-1"), photo.File)
	markup := photo.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.Equal(t, "dialog:d1", *markup.InlineKeyboard[0][0].CallbackData)

	api.sendErr = errors.New("wrong file id")
	_, err = c.SendPhoto(context.Background(), 10, "bad", "", nil)
	require.Error(t, err)
}

func TestDeleteAndAnswer(t *testing.T) {
	api := &fakeAPI{}
	c := NewWithAPI(api, nil)

	require.NoError(t, c.DeleteMessage(context.Background(), 10, 5))
	del := api.requests[0].(tgbotapi.DeleteMessageConfig)
	require.Equal(t, 5, del.MessageID)

	require.NoError(t, c.AnswerCallback(context.Background(), "cb1", ""))
	cb := api.requests[1].(tgbotapi.CallbackConfig)
	require.Equal(t, "cb1", cb.CallbackQueryID)

	api.reqErr = errors.New("gone")
	require.Error(t, c.DeleteMessage(context.Background(), 10, 5))
}

func TestToEvent(t *testing.T) {
	from := &tgbotapi.User{ID: 7, UserName: "ann"}
	private := &tgbotapi.Chat{ID: 7, Type: "private"}

	ev, ok := toEvent(tgbotapi.Update{Message: &tgbotapi.Message{MessageID: 3, From: from, Chat: private, Text: "hello"}})
	require.True(t, ok)
	require.Equal(t, model.Event{UserID: 7, Username: "ann", Kind: model.EventText, Payload: "hello", Message: 3}, ev)

	ev, ok = toEvent(tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 4, From: from, Chat: private, Text: "/start",
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: 6}},
	}})
	require.True(t, ok)
	require.Equal(t, model.EventCommand, ev.Kind)
	require.Equal(t, "start", ev.Payload)

	ev, ok = toEvent(tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 5, From: from, Chat: private,
		Photo: []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "big"}},
	}})
	require.True(t, ok)
	require.Equal(t, model.EventPhoto, ev.Kind)
	require.Equal(t, "big", ev.Payload)

	ev, ok = toEvent(tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID: "q", From: from, Data: "rec:next", Message: &tgbotapi.Message{MessageID: 9},
	}})
	require.True(t, ok)
	require.Equal(t, model.Event{UserID: 7, Username: "ann", Kind: model.EventButton, Payload: "rec:next", Message: 9, CallbackID: "q"}, ev)

	_, ok = toEvent(tgbotapi.Update{Message: &tgbotapi.Message{From: from, Chat: &tgbotapi.Chat{ID: -1, Type: "group"}, Text: "x"}})
	require.False(t, ok)
	_, ok = toEvent(tgbotapi.Update{})
	require.False(t, ok)
}

func TestUpdates_StopsOnCancel(t *testing.T) {
	api := &fakeAPI{updates: make(chan tgbotapi.Update, 2)}
	c := NewWithAPI(api, zaptest.NewLogger(t))

	api.updates <- tgbotapi.Update{UpdateID: 1}
	api.updates <- tgbotapi.Update{UpdateID: 2, CallbackQuery: &tgbotapi.CallbackQuery{ID: "q", From: &tgbotapi.User{ID: 1}, Data: "go:dialogs"}}

	ctx, cancel := context.WithCancel(context.Background())
	out := c.Updates(ctx)

	select {
	case ev := <-out:
		require.Equal(t, "go:dialogs", ev.Payload)
	case <-time.After(time.Second):
		t.Fatal("no event")
	}

	cancel()
	for range out {
	}
	require.True(t, api.stopped)
}
