// Package telegram handles the integration with the Telegram Bot API.
// It receives updates, routes commands and messages to the session manager,
// and delivers payloads and notices back to Telegram chats.
package telegram

import (
	"context"
	"strconv"
	"strings"
	"time"

	"strangerchat/backend/internal/chathub"
	"strangerchat/backend/internal/complaint"
	"strangerchat/backend/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

const updateTimeout = 30 * time.Second

// BotService receives Telegram updates and routes them to the hub.
type BotService struct {
	API    Sender
	Hub    *chathub.ManagerService
	logger *zap.Logger
}

// NewBotService creates a new BotService instance.
func NewBotService(api Sender, hub *chathub.ManagerService, logger *zap.Logger) *BotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BotService{API: api, Hub: hub, logger: logger}
}

// Run processes updates one at a time until ctx is done or the channel closes.
func (s *BotService) Run(ctx context.Context, updates <-chan tgbotapi.Update) {
	s.logger.Info("telegram update loop started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("telegram update loop stopped")
			return
		case update, ok := <-updates:
			if !ok {
				s.logger.Info("telegram update channel closed")
				return
			}
			uctx, cancel := context.WithTimeout(ctx, updateTimeout)
			s.HandleUpdate(uctx, update)
			cancel()
		}
	}
}

// HandleUpdate dispatches a single update.
func (s *BotService) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		s.handleDecision(ctx, decisionFromQuery(update.CallbackQuery))
	case update.Message != nil && update.Message.From != nil:
		s.handleMessage(ctx, inboundFromMessage(update.Message))
	}
}

// inbound is the part of a Telegram message the bot acts on.
type inbound struct {
	ChatID    int64
	UserID    int64
	Username  string
	FirstName string
	Private   bool

	Command string
	Args    string

	Payload    models.Payload
	HasPayload bool

	Reply *quoted
}

// quoted describes the message an inbound message replies to.
type quoted struct {
	FromBot bool
	Payload models.Payload
}

func inboundFromMessage(msg *tgbotapi.Message) inbound {
	in := inbound{
		ChatID:    msg.Chat.ID,
		UserID:    msg.From.ID,
		Username:  msg.From.UserName,
		FirstName: msg.From.FirstName,
		Private:   msg.Chat.IsPrivate(),
	}
	if msg.IsCommand() {
		in.Command = msg.Command()
		in.Args = strings.TrimSpace(msg.CommandArguments())
	} else {
		in.Payload, in.HasPayload = ExtractPayload(msg)
	}
	if r := msg.ReplyToMessage; r != nil {
		q := &quoted{FromBot: r.From != nil && r.From.IsBot}
		if p, ok := ExtractPayload(r); ok {
			q.Payload = p
		} else if r.Caption != "" {
			q.Payload = models.TextPayload(r.Caption)
		}
		in.Reply = q
	}
	return in
}

func (s *BotService) handleMessage(ctx context.Context, in inbound) {
	if _, err := s.Hub.EnsureParticipant(ctx, in.UserID, in.Username); err != nil {
		s.logger.Error("failed to register participant", zap.Int64("participant_id", in.UserID), zap.Error(err))
	}

	if in.Command != "" {
		s.handleCommand(ctx, in)
		return
	}
	// Group chatter, including the admin group, is never relayed.
	if !in.Private || !in.HasPayload {
		return
	}
	if _, err := s.Hub.RelayIncoming(ctx, in.UserID, in.Payload); err != nil {
		s.reply(ctx, in.ChatID, s.Hub.Describe(err))
	}
}

func (s *BotService) handleCommand(ctx context.Context, in inbound) {
	switch in.Command {
	case "help":
		s.handleHelp(ctx, in)
		return
	case "addsudo", "delsudo", "ban", "unban", "checkban":
		s.handleAdminCommand(ctx, in)
		return
	}

	if !in.Private {
		return
	}
	var err error
	switch in.Command {
	case "start":
		s.reply(ctx, in.ChatID, s.Hub.Render("welcome", in.FirstName))
	case "rules":
		s.reply(ctx, in.ChatID, s.Hub.Render("rules"))
	case "connect":
		_, err = s.Hub.Connect(ctx, in.UserID)
	case "disconnect":
		_, err = s.Hub.Disconnect(ctx, in.UserID, false)
	case "reconnect":
		_, err = s.Hub.Reconnect(ctx, in.UserID)
	case "report":
		err = s.handleReport(ctx, in)
	default:
		err = models.ErrInvalidCommand
	}
	if err != nil {
		s.reply(ctx, in.ChatID, s.Hub.Describe(err))
	}
}

func (s *BotService) handleHelp(ctx context.Context, in inbound) {
	text := s.Hub.Render("help_user")
	isAdmin, err := s.Hub.IsAdmin(ctx, in.UserID)
	if err != nil {
		s.logger.Warn("admin lookup failed", zap.Int64("participant_id", in.UserID), zap.Error(err))
	}
	if isAdmin {
		text += s.Hub.Render("help_admin")
	}
	s.reply(ctx, in.ChatID, text)
}

// handleReport files a report against the current partner. The reported
// message must be one the bot relayed, so the report is always made by
// replying to it.
func (s *BotService) handleReport(ctx context.Context, in inbound) error {
	if in.Reply == nil {
		s.reply(ctx, in.ChatID, s.Hub.Render("report_reply_required"))
		return nil
	}
	if !in.Reply.FromBot {
		s.reply(ctx, in.ChatID, s.Hub.Render("report_partner_only"))
		return nil
	}
	_, err := s.Hub.ReportPartner(ctx, in.UserID, in.Args, in.Reply.Payload)
	return err
}

func (s *BotService) handleAdminCommand(ctx context.Context, in inbound) {
	isAdmin, err := s.Hub.IsAdmin(ctx, in.UserID)
	if err != nil {
		s.reply(ctx, in.ChatID, s.Hub.Describe(err))
		return
	}
	if !isAdmin {
		s.reply(ctx, in.ChatID, s.Hub.Describe(models.ErrPermissionDenied))
		return
	}

	args := strings.Fields(in.Args)
	target, ok := int64(0), false
	if len(args) > 0 {
		target, ok = parseID(args[0])
	}
	if !ok {
		s.reply(ctx, in.ChatID, s.Hub.Render("usage_"+in.Command))
		return
	}

	var text string
	switch in.Command {
	case "addsudo":
		if len(args) < 2 {
			s.reply(ctx, in.ChatID, s.Hub.Render("usage_addsudo"))
			return
		}
		var admin *models.Administrator
		if admin, err = s.Hub.AddAdmin(ctx, in.UserID, target, args[1]); err == nil {
			text = s.Hub.Render("admin_added", "@"+admin.Username, target)
		}
	case "delsudo":
		if err = s.Hub.RemoveAdmin(ctx, in.UserID, target); err == nil {
			text = s.Hub.Render("admin_removed", target)
		}
	case "ban":
		reason := strings.Join(args[1:], " ")
		var out chathub.Outcome
		if out, err = s.Hub.Ban(ctx, in.UserID, target, reason); err == nil {
			text = s.Hub.Render("ban_done", target, out.Ban.Reason)
		}
	case "unban":
		if _, err = s.Hub.Unban(ctx, in.UserID, target); err == nil {
			text = s.Hub.Render("unban_done", target)
		}
	case "checkban":
		var st *complaint.BanStatus
		if st, err = s.Hub.CheckBan(ctx, in.UserID, target); err == nil {
			text = s.Hub.Render("ban_status", target,
				st.Ban.BannedAt.UTC().Format("2006-01-02 15:04 UTC"), s.issuer(st), st.Ban.Reason)
		}
	}
	if err != nil {
		text = s.Hub.Describe(err)
	}
	s.reply(ctx, in.ChatID, text)
}

func (s *BotService) issuer(st *complaint.BanStatus) string {
	switch {
	case st.Ban.IssuedBySystem():
		return s.Hub.Render("issuer_system")
	case st.IssuedByOwner:
		return s.Hub.Render("issuer_owner", *st.Ban.BannedBy)
	}
	admin := &models.Participant{Username: st.IssuerUsername}
	return s.Hub.Render("issuer_admin", admin.Handle(), *st.Ban.BannedBy)
}

// decision is an administrator's press of a report button.
type decision struct {
	QueryID   string
	AdminID   int64
	Admin     string
	ChatID    int64
	MessageID int
	Data      string
}

func decisionFromQuery(q *tgbotapi.CallbackQuery) decision {
	d := decision{QueryID: q.ID, Data: q.Data}
	if q.From != nil {
		d.AdminID = q.From.ID
		d.Admin = (&models.Participant{Username: q.From.UserName}).Handle()
	}
	if q.Message != nil {
		d.ChatID = q.Message.Chat.ID
		d.MessageID = q.Message.MessageID
	}
	return d
}

func (s *BotService) handleDecision(ctx context.Context, d decision) {
	cmd, err := models.ParseModerationCommand(d.Data)
	if err != nil {
		s.answer(d.QueryID, s.Hub.Describe(err))
		return
	}
	out, err := s.Hub.ResolveReport(ctx, d.AdminID, cmd)
	if err != nil {
		s.answer(d.QueryID, s.Hub.Describe(err))
		return
	}
	s.answer(d.QueryID, "")

	if d.MessageID == 0 {
		return
	}
	var text string
	if out.Report.Status == models.ReportAccepted {
		text = s.Hub.Render("admin_report_accepted", out.Report.ID, d.Admin, out.Report.ReportedID)
	} else {
		text = s.Hub.Render("admin_report_rejected", out.Report.ID, d.Admin)
	}
	if _, err := s.API.Request(tgbotapi.NewEditMessageText(d.ChatID, d.MessageID, text)); err != nil {
		s.logger.Warn("failed to update report message", zap.Uint("report_id", out.Report.ID), zap.Error(err))
	}
}

// answer clears the button's loading state, optionally showing text.
func (s *BotService) answer(queryID, text string) {
	if queryID == "" {
		return
	}
	if _, err := s.API.Request(tgbotapi.NewCallback(queryID, text)); err != nil {
		s.logger.Warn("failed to answer callback query", zap.Error(err))
	}
}

func (s *BotService) reply(ctx context.Context, chatID int64, text string) {
	if err := s.Hub.Router.Notify(ctx, chatID, text); err != nil {
		s.logger.Warn("failed to send reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func parseID(s string) (int64, bool) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}
