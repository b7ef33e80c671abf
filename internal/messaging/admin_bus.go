package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"strangerchat/backend/internal/complaint"
	"strangerchat/backend/internal/models"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const decisionTimeout = 15 * time.Second

// Bus is the publish/subscribe surface AdminBus needs. *NATSClient implements it.
type Bus interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(msg *nats.Msg)) error
}

// ReportEvent is published on SubjectModerationReport for every new report.
type ReportEvent struct {
	ID               uint           `json:"id"`
	ReporterID       int64          `json:"reporter_id"`
	ReporterUsername string         `json:"reporter_username,omitempty"`
	ReportedID       int64          `json:"reported_id"`
	PairingID        uint           `json:"pairing_id"`
	Reason           string         `json:"reason"`
	Snapshot         models.Payload `json:"snapshot"`
	CreatedAt        time.Time      `json:"created_at"`
	// Commands are the typed decisions a reviewer may send back.
	Commands []string `json:"commands"`
}

// DecisionEvent is consumed from SubjectModerationDecision.
type DecisionEvent struct {
	AdminID int64 `json:"admin_id"`
	models.ModerationCommand
}

// DecisionReply answers a decision sent as a NATS request.
type DecisionReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// AdminBus is an AdminChannel that publishes reports to NATS and feeds
// decisions arriving over NATS to a DecisionHandler.
type AdminBus struct {
	bus    Bus
	logger *zap.Logger
}

var _ complaint.AdminChannel = (*AdminBus)(nil)

func NewAdminBus(bus Bus, logger *zap.Logger) *AdminBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminBus{bus: bus, logger: logger}
}

func (a *AdminBus) PublishReport(ctx context.Context, report *models.Report, reporter *models.Participant) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev := ReportEvent{
		ID:         report.ID,
		ReporterID: report.ReporterID,
		ReportedID: report.ReportedID,
		PairingID:  report.PairingID,
		Reason:     report.Reason,
		Snapshot:   report.Snapshot(),
		CreatedAt:  report.CreatedAt,
	}
	if reporter != nil {
		ev.ReporterUsername = reporter.Username
	}
	for _, action := range []models.ModerationAction{models.ActionAccept, models.ActionReject} {
		cmd := models.ModerationCommand{Action: action, Subject: models.SubjectReport, ID: report.ID}
		ev.Commands = append(ev.Commands, cmd.String())
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode report %d: %w", report.ID, err)
	}
	if err := a.bus.Publish(SubjectModerationReport, data); err != nil {
		return fmt.Errorf("publish report %d: %w", report.ID, err)
	}
	return nil
}

// Listen subscribes handler to decisions. Malformed decisions are dropped;
// request-style messages get a DecisionReply.
func (a *AdminBus) Listen(handler complaint.DecisionHandler) error {
	return a.bus.Subscribe(SubjectModerationDecision, func(msg *nats.Msg) {
		err := a.decide(msg.Data, handler)
		if msg.Reply == "" {
			return
		}
		reply := DecisionReply{OK: err == nil}
		if err != nil {
			reply.Error = err.Error()
		}
		data, _ := json.Marshal(reply)
		if rerr := msg.Respond(data); rerr != nil {
			a.logger.Warn("failed to answer decision", zap.Error(rerr))
		}
	})
}

func (a *AdminBus) decide(data []byte, handler complaint.DecisionHandler) error {
	var ev DecisionEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		a.logger.Warn("malformed moderation decision", zap.Error(err))
		return fmt.Errorf("%w: %v", models.ErrInvalidCommand, err)
	}
	if err := ev.Validate(); err != nil {
		a.logger.Warn("invalid moderation decision", zap.Int64("admin_id", ev.AdminID), zap.Error(err))
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), decisionTimeout)
	defer cancel()
	if err := handler(ctx, ev.AdminID, ev.ModerationCommand); err != nil {
		a.logger.Info("moderation decision refused",
			zap.Int64("admin_id", ev.AdminID),
			zap.Uint("report_id", ev.ID),
			zap.Error(err))
		return err
	}
	a.logger.Info("moderation decision applied",
		zap.Int64("admin_id", ev.AdminID),
		zap.Uint("report_id", ev.ID),
		zap.String("action", string(ev.Action)))
	return nil
}
