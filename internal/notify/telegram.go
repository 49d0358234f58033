package notify

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram mirrors each fired reminder to a chat, for phones where the
// agent's desktop has no reach.
type Telegram struct {
	Bot    *tgbotapi.BotAPI
	ChatID int64
}

func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Telegram{Bot: bot, ChatID: chatID}, nil
}

func (t *Telegram) Render(title, body string) error {
	text := "🔔 *" + title + "*"
	if body != "" {
		text += "\n" + body
	}
	msg := tgbotapi.NewMessage(t.ChatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	_, err := t.Bot.Send(msg)
	return err
}

func (t *Telegram) Available() bool {
	return t.Bot != nil && t.ChatID != 0
}
