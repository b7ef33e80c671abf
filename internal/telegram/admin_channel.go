package telegram

import (
	"context"
	"fmt"

	"strangerchat/backend/internal/localization"
	"strangerchat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// AdminGroup publishes new reports to the administrators' Telegram group with
// Accept/Reject buttons. Button presses come back as callback queries handled
// by BotService.
type AdminGroup struct {
	API       Sender
	ChatID    int64
	localizer *localization.Localizer
	lang      string
	logger    *zap.Logger
}

func NewAdminGroup(api Sender, chatID int64, l *localization.Localizer, lang string, logger *zap.Logger) *AdminGroup {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminGroup{API: api, ChatID: chatID, localizer: l, lang: lang, logger: logger}
}

func (g *AdminGroup) PublishReport(ctx context.Context, report *models.Report, reporter *models.Participant) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	text := g.localizer.Render(g.lang, "admin_report_new",
		report.ID, report.ReporterID, reporter.Handle(), report.ReportedID, report.Reason)
	msg := tgbotapi.NewMessage(g.ChatID, text)
	msg.ReplyMarkup = decisionKeyboard(g.localizer, g.lang, report.ID)
	if _, err := g.API.Send(msg); err != nil {
		return fmt.Errorf("failed to publish report %d: %w", report.ID, err)
	}

	snapshot := report.Snapshot()
	if snapshot.Validate() != nil {
		return nil
	}
	evidence, err := BuildChattable(g.ChatID, snapshot)
	if err != nil {
		return nil
	}
	if _, err := g.API.Send(evidence); err != nil {
		g.logger.Warn("failed to send reported message to admin group",
			zap.Uint("report_id", report.ID), zap.Error(err))
	}
	return nil
}

func decisionKeyboard(l *localization.Localizer, lang string, reportID uint) tgbotapi.InlineKeyboardMarkup {
	accept := models.ModerationCommand{Action: models.ActionAccept, Subject: models.SubjectReport, ID: reportID}
	reject := models.ModerationCommand{Action: models.ActionReject, Subject: models.SubjectReport, ID: reportID}
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(l.Render(lang, "button_accept"), accept.String()),
			tgbotapi.NewInlineKeyboardButtonData(l.Render(lang, "button_reject"), reject.String()),
		),
	)
}
