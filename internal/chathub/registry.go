package chathub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"strangerchat/backend/internal/metrics"
	"strangerchat/backend/internal/models"
	"strangerchat/backend/internal/storage"

	"go.uber.org/zap"
)

// PairingRegistry is the authoritative answer to "who is X talking to".
// Open pairings are indexed by both participants in memory and every change
// is written to Storage before the index is updated.
type PairingRegistry struct {
	mu     sync.RWMutex
	byUser map[int64]*models.Pairing

	store  storage.Storage
	logger *zap.Logger
	now    func() time.Time
}

func NewPairingRegistry(s storage.Storage, logger *zap.Logger) *PairingRegistry {
	return &PairingRegistry{
		byUser: make(map[int64]*models.Pairing),
		store:  s,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Restore loads the open pairings left by a previous run. A participant found
// in more than one open pairing keeps the oldest; the others are closed.
func (r *PairingRegistry) Restore(ctx context.Context) (int, error) {
	open, err := r.store.GetOpenPairings(ctx)
	if err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	restored := 0
	for i := range open {
		p := open[i]
		if _, dup := r.byUser[p.User1ID]; dup || r.byUser[p.User2ID] != nil {
			r.logger.Error("closing conflicting open pairing",
				zap.Uint("pairing_id", p.ID),
				zap.Int64("user1_id", p.User1ID),
				zap.Int64("user2_id", p.User2ID))
			if err := r.store.ClosePairing(ctx, p.ID, r.now()); err != nil {
				return restored, err
			}
			continue
		}
		r.byUser[p.User1ID] = &p
		r.byUser[p.User2ID] = &p
		restored++
	}
	metrics.ActivePairings.Set(float64(restored))
	r.logger.Info("restored open pairings", zap.Int("count", restored))
	return restored, nil
}

// ActivePartnerOf returns the other side of id's open pairing.
func (r *PairingRegistry) ActivePartnerOf(id int64) (int64, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byUser[id]
	if !ok {
		return 0, false
	}
	return p.PartnerOf(id)
}

// ActivePairing returns a copy of id's open pairing.
func (r *PairingRegistry) ActivePairing(id int64) (*models.Pairing, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byUser[id]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

// CreatePairing opens a pairing between a and b. a is the participant whose
// connect completed the match.
func (r *PairingRegistry) CreatePairing(ctx context.Context, a, b int64) (*models.Pairing, error) {
	if a == b {
		return nil, fmt.Errorf("pair %d with itself: %w", a, models.ErrAlreadyPaired)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range []int64{a, b} {
		if existing, ok := r.byUser[id]; ok {
			r.logger.Error("refusing to pair an already paired participant",
				zap.Int64("participant_id", id),
				zap.Uint("pairing_id", existing.ID))
			return nil, fmt.Errorf("participant %d: %w", id, models.ErrAlreadyPaired)
		}
	}

	p := &models.Pairing{User1ID: a, User2ID: b, StartedAt: r.now()}
	if err := r.store.CreatePairing(ctx, p); err != nil {
		return nil, err
	}
	r.byUser[a] = p
	r.byUser[b] = p

	metrics.PairingsTotal.Inc()
	metrics.ActivePairings.Set(float64(len(r.byUser) / 2))
	cp := *p
	return &cp, nil
}

// EndPairing closes the open pairing between a and b, in either order.
func (r *PairingRegistry) EndPairing(ctx context.Context, a, b int64) (*models.Pairing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byUser[a]
	if !ok || !p.Between(a, b) {
		return nil, fmt.Errorf("end pairing %d-%d: %w", a, b, models.ErrNotPaired)
	}

	endedAt := r.now()
	err := r.store.ClosePairing(ctx, p.ID, endedAt)
	switch {
	case errors.Is(err, models.ErrNotPaired):
		// Already closed in storage; only the index was stale.
		r.logger.Warn("pairing was already closed in storage", zap.Uint("pairing_id", p.ID))
	case err != nil:
		return nil, err
	}

	delete(r.byUser, p.User1ID)
	delete(r.byUser, p.User2ID)
	metrics.ActivePairings.Set(float64(len(r.byUser) / 2))

	cp := *p
	cp.EndedAt = &endedAt
	return &cp, nil
}

// Count returns the number of open pairings.
func (r *PairingRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser) / 2
}
