package telegram

import (
	"context"
	"fmt"

	"strangerchat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Sender is the part of *tgbotapi.BotAPI used by the adapter.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Client delivers payloads and notices to Telegram chats. A participant's
// Telegram user id doubles as the id of their private chat with the bot.
type Client struct {
	API    Sender
	logger *zap.Logger
}

func NewClient(api Sender, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{API: api, logger: logger}
}

// Deliver sends a relayed payload to recipient.
func (c *Client) Deliver(ctx context.Context, recipient int64, payload models.Payload) error {
	if err := ctx.Err(); err != nil {
		return &models.DeliveryError{Recipient: recipient, Err: err}
	}
	msg, err := BuildChattable(recipient, payload)
	if err != nil {
		return &models.DeliveryError{Recipient: recipient, Err: err}
	}
	if _, err := c.API.Send(msg); err != nil {
		c.logger.Debug("telegram send failed",
			zap.Int64("participant_id", recipient),
			zap.String("kind", string(payload.Kind)),
			zap.Error(err))
		return &models.DeliveryError{Recipient: recipient, Err: err}
	}
	return nil
}

// Notify sends a plain text notice.
func (c *Client) Notify(ctx context.Context, recipient int64, text string) error {
	if err := ctx.Err(); err != nil {
		return &models.DeliveryError{Recipient: recipient, Err: err}
	}
	if _, err := c.API.Send(tgbotapi.NewMessage(recipient, text)); err != nil {
		return &models.DeliveryError{Recipient: recipient, Err: err}
	}
	return nil
}

// BuildChattable maps a payload onto the matching Telegram send config.
// Media is re-sent by file id so the recipient never sees the sender.
func BuildChattable(chatID int64, p models.Payload) (tgbotapi.Chattable, error) {
	switch p.Kind {
	case models.KindText:
		return tgbotapi.NewMessage(chatID, p.Text), nil
	case models.KindPhoto:
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(p.FileID))
		photo.Caption = p.Text
		return photo, nil
	case models.KindVideo:
		video := tgbotapi.NewVideo(chatID, tgbotapi.FileID(p.FileID))
		video.Caption = p.Text
		return video, nil
	case models.KindAnimation:
		anim := tgbotapi.NewAnimation(chatID, tgbotapi.FileID(p.FileID))
		anim.Caption = p.Text
		return anim, nil
	case models.KindSticker:
		return tgbotapi.NewSticker(chatID, tgbotapi.FileID(p.FileID)), nil
	}
	return nil, fmt.Errorf("%w: %q", models.ErrUnsupportedPayload, p.Kind)
}

// ExtractPayload reads the relayable content of an incoming message. Only
// text, photo, video, animation and sticker messages are accepted.
func ExtractPayload(msg *tgbotapi.Message) (models.Payload, bool) {
	if msg == nil {
		return models.Payload{}, false
	}
	switch {
	case msg.Animation != nil:
		return models.Payload{Kind: models.KindAnimation, FileID: msg.Animation.FileID, Text: msg.Caption}, true
	case len(msg.Photo) > 0:
		// the last size is the largest
		largest := msg.Photo[len(msg.Photo)-1]
		return models.Payload{Kind: models.KindPhoto, FileID: largest.FileID, Text: msg.Caption}, true
	case msg.Video != nil:
		return models.Payload{Kind: models.KindVideo, FileID: msg.Video.FileID, Text: msg.Caption}, true
	case msg.Sticker != nil:
		return models.Payload{Kind: models.KindSticker, FileID: msg.Sticker.FileID}, true
	case msg.Text != "":
		return models.TextPayload(msg.Text), true
	}
	return models.Payload{}, false
}
