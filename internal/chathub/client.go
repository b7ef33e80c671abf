package chathub

import (
	"context"
	"errors"

	"strangerchat/backend/internal/models"
)

// Transport delivers content to a human over some chat network.
type Transport interface {
	// Deliver passes a relayed payload to recipient verbatim.
	Deliver(ctx context.Context, recipient int64, payload models.Payload) error
	// Notify sends a system message. It is best-effort.
	Notify(ctx context.Context, recipient int64, text string) error
}

// Frame types written to live clients.
const (
	FrameMessage = "message"
	FrameNotice  = "notice"
)

// Frame is one message written to a live client.
type Frame struct {
	Type    string          `json:"type"`
	Payload *models.Payload `json:"payload,omitempty"`
	Text    string          `json:"text,omitempty"`
}

// Client is a live connection of one participant (e.g., WebSocket).
// Participants without a live client are reached through the fallback Transport.
type Client interface {
	// GetUserID returns the participant the connection belongs to.
	GetUserID() int64
	// GetSendChannel returns the channel the Router writes frames to.
	GetSendChannel() chan<- Frame
	// Run starts the client's read and write pumps.
	Run()
	// Close shuts the connection down. The Router calls it exactly once.
	Close()
}

func asDeliveryError(recipient int64, err error) error {
	var de *models.DeliveryError
	if errors.As(err, &de) {
		return de
	}
	return &models.DeliveryError{Recipient: recipient, Err: err}
}
