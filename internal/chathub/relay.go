package chathub

import (
	"context"
	"sync"
	"time"

	"strangerchat/backend/internal/metrics"
	"strangerchat/backend/internal/models"
	"strangerchat/backend/internal/storage"

	"go.uber.org/zap"
)

// Relay forwards payloads between the two sides of a pairing and keeps the
// log of what was delivered.
type Relay struct {
	transport Transport
	store     storage.Storage
	// commit serializes the log append with the rest of the session state.
	commit sync.Locker
	logger *zap.Logger
	now    func() time.Time
}

func NewRelay(t Transport, s storage.Storage, commit sync.Locker, logger *zap.Logger) *Relay {
	return &Relay{
		transport: t,
		store:     s,
		commit:    commit,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Forward delivers payload from sender to the other side of pairing and, once
// delivery succeeded, appends it to the pairing's log. Delivery runs without
// holding commit. A failed delivery returns a *models.DeliveryError and
// nothing is logged.
func (r *Relay) Forward(ctx context.Context, pairing models.Pairing, sender int64, payload models.Payload) (*models.RelayedMessage, error) {
	partner, ok := pairing.PartnerOf(sender)
	if !ok {
		return nil, models.ErrNotPaired
	}
	if err := payload.Validate(); err != nil {
		return nil, err
	}

	if err := r.transport.Deliver(ctx, partner, payload); err != nil {
		metrics.MessagesRelayed.WithLabelValues(string(payload.Kind), "failed").Inc()
		r.logger.Warn("relay delivery failed",
			zap.Uint("pairing_id", pairing.ID),
			zap.Int64("sender_id", sender),
			zap.Error(err))
		return nil, asDeliveryError(partner, err)
	}
	metrics.MessagesRelayed.WithLabelValues(string(payload.Kind), "delivered").Inc()

	msg := &models.RelayedMessage{
		PairingID: pairing.ID,
		SenderID:  sender,
		Kind:      payload.Kind,
		Text:      payload.Text,
		FileID:    payload.FileID,
		SentAt:    r.now(),
	}

	r.commit.Lock()
	err := r.store.SaveMessage(ctx, msg)
	r.commit.Unlock()
	if err != nil {
		// The partner already has the message; the log is what is missing.
		r.logger.Error("relayed message not logged",
			zap.Uint("pairing_id", pairing.ID),
			zap.Int64("sender_id", sender),
			zap.Error(err))
	}
	return msg, nil
}
