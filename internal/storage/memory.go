package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"strangerchat/backend/internal/models"
)

// MemoryStorage keeps everything in process memory. It backs the development
// mode (STORAGE_DRIVER=memory) and the unit tests of the packages above storage.
type MemoryStorage struct {
	mu           sync.Mutex
	participants map[int64]models.Participant
	bans         map[int64]models.BanRecord
	admins       map[int64]models.Administrator
	pairings     map[uint]models.Pairing
	messages     []models.RelayedMessage
	reports      map[uint]models.Report

	nextPairingID uint
	nextMessageID uint
	nextReportID  uint
}

var _ Storage = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		participants: make(map[int64]models.Participant),
		bans:         make(map[int64]models.BanRecord),
		admins:       make(map[int64]models.Administrator),
		pairings:     make(map[uint]models.Pairing),
		reports:      make(map[uint]models.Report),
	}
}

func (m *MemoryStorage) SaveParticipantIfNotExists(_ context.Context, id int64, username string) (*models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[id]
	if !ok {
		p = models.Participant{ID: id, Username: username, JoinedAt: time.Now().UTC()}
		m.participants[id] = p
	}
	return &p, nil
}

func (m *MemoryStorage) GetParticipant(_ context.Context, id int64) (*models.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.participants[id]
	if !ok {
		return nil, fmt.Errorf("participant %d: %w", id, models.ErrNotFound)
	}
	return &p, nil
}

func (m *MemoryStorage) GetBan(_ context.Context, participantID int64) (*models.BanRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bans[participantID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (m *MemoryStorage) SaveBan(_ context.Context, ban *models.BanRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bans[ban.ParticipantID] = *ban
	return nil
}

func (m *MemoryStorage) DeleteBan(_ context.Context, participantID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.bans[participantID]
	delete(m.bans, participantID)
	return ok, nil
}

func (m *MemoryStorage) GetAdmin(_ context.Context, participantID int64) (*models.Administrator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admins[participantID]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *MemoryStorage) SaveAdmin(_ context.Context, admin *models.Administrator) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.admins[admin.ParticipantID] = *admin
	return nil
}

func (m *MemoryStorage) DeleteAdmin(_ context.Context, participantID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.admins[participantID]
	delete(m.admins, participantID)
	return ok, nil
}

func (m *MemoryStorage) CreatePairing(_ context.Context, pairing *models.Pairing) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextPairingID++
	pairing.ID = m.nextPairingID
	m.pairings[pairing.ID] = *pairing
	return nil
}

func (m *MemoryStorage) ClosePairing(_ context.Context, pairingID uint, endedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pairings[pairingID]
	if !ok || !p.IsOpen() {
		return fmt.Errorf("close pairing %d: %w", pairingID, models.ErrNotPaired)
	}
	p.EndedAt = &endedAt
	m.pairings[pairingID] = p
	return nil
}

func (m *MemoryStorage) FindOpenPairing(_ context.Context, participantID int64) (*models.Pairing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.pairings {
		if p.IsOpen() && p.Involves(participantID) {
			return &p, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) GetOpenPairings(_ context.Context) ([]models.Pairing, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var open []models.Pairing
	for _, p := range m.pairings {
		if p.IsOpen() {
			open = append(open, p)
		}
	}
	sort.Slice(open, func(i, j int) bool { return open[i].ID < open[j].ID })
	return open, nil
}

func (m *MemoryStorage) SaveMessage(_ context.Context, msg *models.RelayedMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextMessageID++
	msg.ID = m.nextMessageID
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *MemoryStorage) GetPairingMessages(_ context.Context, pairingID uint) ([]models.RelayedMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RelayedMessage
	for _, msg := range m.messages {
		if msg.PairingID == pairingID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *MemoryStorage) SaveReport(_ context.Context, report *models.Report) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if report.Status == "" {
		report.Status = models.ReportPending
	}
	m.nextReportID++
	report.ID = m.nextReportID
	m.reports[report.ID] = *report
	return nil
}

func (m *MemoryStorage) GetReport(_ context.Context, id uint) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, fmt.Errorf("report %d: %w", id, models.ErrNotFound)
	}
	return &r, nil
}

func (m *MemoryStorage) ResolveReport(_ context.Context, id uint, status models.ReportStatus, adminID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return fmt.Errorf("report %d: %w", id, models.ErrNotFound)
	}
	if !r.IsPending() {
		return fmt.Errorf("report %d: %w", id, models.ErrAlreadyResolved)
	}
	r.Status = status
	r.ResolvedAt = &at
	r.ResolvedBy = &adminID
	m.reports[id] = r
	return nil
}

func (m *MemoryStorage) CountReports(_ context.Context, status models.ReportStatus) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.reports {
		if r.Status == status {
			n++
		}
	}
	return n, nil
}
