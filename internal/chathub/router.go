package chathub

import (
	"context"
	"errors"
	"sync"

	"strangerchat/backend/internal/models"

	"go.uber.org/zap"
)

var (
	errNoRoute    = errors.New("no live client and no fallback transport")
	errClientBusy = errors.New("client send buffer is full")
)

// Router is the Transport the engine talks to. It writes to a participant's
// live client when one is registered and falls back to the configured
// transport otherwise.
type Router struct {
	mu       sync.RWMutex
	clients  map[int64]Client
	fallback Transport
	logger   *zap.Logger
}

// NewRouter creates a Router. fallback may be nil when only live clients are served.
func NewRouter(fallback Transport, logger *zap.Logger) *Router {
	return &Router{
		clients:  make(map[int64]Client),
		fallback: fallback,
		logger:   logger,
	}
}

// Register attaches a live client, replacing and closing any previous one
// of the same participant.
func (r *Router) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.clients[c.GetUserID()]; ok && old != c {
		old.Close()
	}
	r.clients[c.GetUserID()] = c
	r.logger.Debug("client registered", zap.Int64("participant_id", c.GetUserID()))
}

// Unregister detaches c and closes it. It reports false when c was already
// replaced or removed.
func (r *Router) Unregister(c Client) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.clients[c.GetUserID()]
	if !ok || current != c {
		return false
	}
	delete(r.clients, c.GetUserID())
	c.Close()
	r.logger.Debug("client unregistered", zap.Int64("participant_id", c.GetUserID()))
	return true
}

// Connected returns the number of live clients.
func (r *Router) Connected() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *Router) Deliver(ctx context.Context, recipient int64, payload models.Payload) error {
	p := payload
	if ok, err := r.sendFrame(recipient, Frame{Type: FrameMessage, Payload: &p}); ok {
		return err
	}
	if r.fallback == nil {
		return &models.DeliveryError{Recipient: recipient, Err: errNoRoute}
	}
	return r.fallback.Deliver(ctx, recipient, payload)
}

func (r *Router) Notify(ctx context.Context, recipient int64, text string) error {
	if ok, err := r.sendFrame(recipient, Frame{Type: FrameNotice, Text: text}); ok {
		return err
	}
	if r.fallback == nil {
		return &models.DeliveryError{Recipient: recipient, Err: errNoRoute}
	}
	return r.fallback.Notify(ctx, recipient, text)
}

// sendFrame reports whether recipient has a live client. The read lock is held
// during the send so that Unregister cannot close the channel underneath it.
func (r *Router) sendFrame(recipient int64, f Frame) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[recipient]
	if !ok {
		return false, nil
	}
	select {
	case c.GetSendChannel() <- f:
		return true, nil
	default:
		return true, &models.DeliveryError{Recipient: recipient, Err: errClientBusy}
	}
}
