package chathub

import (
	"context"
	"fmt"

	"strangerchat/backend/internal/models"
)

// Intent types accepted from live clients.
const (
	IntentConnect    = "connect"
	IntentDisconnect = "disconnect"
	IntentReconnect  = "reconnect"
	IntentMessage    = "message"
	IntentReport     = "report"
)

// Intent is a request sent by a live client.
type Intent struct {
	Type    string          `json:"type"`
	Payload *models.Payload `json:"payload,omitempty"`
	// Reason accompanies a report intent.
	Reason string `json:"reason,omitempty"`
}

// HandleIntent routes a client intent to the matching session operation.
// A report intent carries the flagged message as its payload.
func (m *ManagerService) HandleIntent(ctx context.Context, id int64, in Intent) error {
	var err error
	switch in.Type {
	case IntentConnect:
		_, err = m.Connect(ctx, id)
	case IntentDisconnect:
		_, err = m.Disconnect(ctx, id, false)
	case IntentReconnect:
		_, err = m.Reconnect(ctx, id)
	case IntentMessage:
		if in.Payload == nil {
			return fmt.Errorf("%w: message without payload", models.ErrUnsupportedPayload)
		}
		_, err = m.RelayIncoming(ctx, id, *in.Payload)
	case IntentReport:
		var snapshot models.Payload
		if in.Payload != nil {
			snapshot = *in.Payload
		}
		_, err = m.ReportPartner(ctx, id, in.Reason, snapshot)
	default:
		return fmt.Errorf("%w: unknown intent %q", models.ErrInvalidCommand, in.Type)
	}
	return err
}
