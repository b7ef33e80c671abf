package telegram

import (
	"context"
	"errors"
	"testing"

	"strangerchat/backend/internal/localization"
	"strangerchat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// mockSender is a mock implementation of the Sender interface
type mockSender struct {
	mock.Mock
}

func (m *mockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return args.Get(0).(tgbotapi.Message), args.Error(1)
}

func (m *mockSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	args := m.Called(c)
	resp, _ := args.Get(0).(*tgbotapi.APIResponse)
	return resp, args.Error(1)
}

func TestExtractPayload(t *testing.T) {
	tests := []struct {
		name   string
		msg    *tgbotapi.Message
		want   models.Payload
		wantOK bool
	}{
		{"nil", nil, models.Payload{}, false},
		{"text", &tgbotapi.Message{Text: "hello"}, models.TextPayload("hello"), true},
		{
			"largest photo with caption",
			&tgbotapi.Message{
				Photo:   []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "big"}},
				Caption: "look",
			},
			models.Payload{Kind: models.KindPhoto, FileID: "big", Text: "look"},
			true,
		},
		{
			"video",
			&tgbotapi.Message{Video: &tgbotapi.Video{FileID: "v1"}, Caption: "clip"},
			models.Payload{Kind: models.KindVideo, FileID: "v1", Text: "clip"},
			true,
		},
		{
			"animation wins over document",
			&tgbotapi.Message{Animation: &tgbotapi.Animation{FileID: "a1"}, Document: &tgbotapi.Document{FileID: "a1"}},
			models.Payload{Kind: models.KindAnimation, FileID: "a1"},
			true,
		},
		{
			"sticker",
			&tgbotapi.Message{Sticker: &tgbotapi.Sticker{FileID: "s1"}},
			models.Payload{Kind: models.KindSticker, FileID: "s1"},
			true,
		},
		{"voice is ignored", &tgbotapi.Message{Voice: &tgbotapi.Voice{FileID: "vo"}}, models.Payload{}, false},
		{"document is ignored", &tgbotapi.Message{Document: &tgbotapi.Document{FileID: "d"}}, models.Payload{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractPayload(tt.msg)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildChattable(t *testing.T) {
	msg, err := BuildChattable(1, models.TextPayload("hi"))
	require.NoError(t, err)
	text, ok := msg.(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, "hi", text.Text)

	msg, err = BuildChattable(1, models.Payload{Kind: models.KindPhoto, FileID: "p", Text: "cap"})
	require.NoError(t, err)
	photo, ok := msg.(tgbotapi.PhotoConfig)
	require.True(t, ok)
	assert.Equal(t, "cap", photo.Caption)

	msg, err = BuildChattable(1, models.Payload{Kind: models.KindVideo, FileID: "v"})
	require.NoError(t, err)
	assert.IsType(t, tgbotapi.VideoConfig{}, msg)

	msg, err = BuildChattable(1, models.Payload{Kind: models.KindAnimation, FileID: "a"})
	require.NoError(t, err)
	assert.IsType(t, tgbotapi.AnimationConfig{}, msg)

	msg, err = BuildChattable(1, models.Payload{Kind: models.KindSticker, FileID: "s"})
	require.NoError(t, err)
	assert.IsType(t, tgbotapi.StickerConfig{}, msg)

	_, err = BuildChattable(1, models.Payload{Kind: "voice", FileID: "x"})
	assert.ErrorIs(t, err, models.ErrUnsupportedPayload)
}

func TestClientDeliver_WrapsSendError(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("Forbidden: bot was blocked by the user")).Once()
	c := NewClient(sender, zap.NewNop())

	err := c.Deliver(context.Background(), 42, models.TextPayload("hi"))

	assert.ErrorIs(t, err, models.ErrDeliveryFailure)
	var de *models.DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, int64(42), de.Recipient)
	sender.AssertExpectations(t)
}

func TestClientNotify(t *testing.T) {
	sender := new(mockSender)
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.MessageConfig) bool {
		return c.Text == "Partner found"
	})).Return(tgbotapi.Message{}, nil).Once()
	c := NewClient(sender, nil)

	require.NoError(t, c.Notify(context.Background(), 7, "Partner found"))
	sender.AssertExpectations(t)
}

func TestClient_CancelledContext(t *testing.T) {
	sender := new(mockSender)
	c := NewClient(sender, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Notify(ctx, 7, "late")

	assert.ErrorIs(t, err, models.ErrDeliveryFailure)
	sender.AssertNotCalled(t, "Send", mock.Anything)
}

func TestAdminGroupPublishReport(t *testing.T) {
	loc, err := localization.NewLocalizer()
	require.NoError(t, err)

	sender := new(mockSender)
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, nil)
	group := NewAdminGroup(sender, -100, loc, "en", zap.NewNop())

	report := &models.Report{ID: 7, ReporterID: 1, ReportedID: 2, Reason: "spam"}
	report.SetSnapshot(models.Payload{Kind: models.KindPhoto, FileID: "evidence"})

	require.NoError(t, group.PublishReport(context.Background(), report, &models.Participant{ID: 1, Username: "alice"}))

	require.Len(t, sender.Calls, 2)
	summary, ok := sender.Calls[0].Arguments.Get(0).(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Contains(t, summary.Text, "New report #7")
	assert.Contains(t, summary.Text, "@alice")

	keyboard, ok := summary.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, keyboard.InlineKeyboard, 1)
	require.Len(t, keyboard.InlineKeyboard[0], 2)
	assert.Equal(t, "accept_report_7", *keyboard.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "reject_report_7", *keyboard.InlineKeyboard[0][1].CallbackData)

	assert.IsType(t, tgbotapi.PhotoConfig{}, sender.Calls[1].Arguments.Get(0))
}

func TestAdminGroupPublishReport_NoSnapshot(t *testing.T) {
	loc, err := localization.NewLocalizer()
	require.NoError(t, err)

	sender := new(mockSender)
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, nil)
	group := NewAdminGroup(sender, -100, loc, "en", nil)

	report := &models.Report{ID: 8, ReporterID: 1, ReportedID: 2, Reason: "spam"}
	require.NoError(t, group.PublishReport(context.Background(), report, nil))

	sender.AssertNumberOfCalls(t, "Send", 1)
}

func TestAdminGroupPublishReport_SendFails(t *testing.T) {
	loc, err := localization.NewLocalizer()
	require.NoError(t, err)

	sender := new(mockSender)
	sender.On("Send", mock.Anything).Return(tgbotapi.Message{}, errors.New("chat not found"))
	group := NewAdminGroup(sender, -100, loc, "en", nil)

	err = group.PublishReport(context.Background(), &models.Report{ID: 9, Reason: "x"}, nil)
	assert.Error(t, err)
}
