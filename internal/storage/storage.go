// Package storage holds the durable record of participants, bans, pairings,
// relayed messages, reports and administrators.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"strangerchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Storage is the persistence capability the chat core depends on.
//
// Lookups that may legitimately find nothing (GetBan, GetAdmin, FindOpenPairing)
// return nil with a nil error. GetParticipant and GetReport return models.ErrNotFound.
type Storage interface {
	SaveParticipantIfNotExists(ctx context.Context, id int64, username string) (*models.Participant, error)
	GetParticipant(ctx context.Context, id int64) (*models.Participant, error)

	GetBan(ctx context.Context, participantID int64) (*models.BanRecord, error)
	SaveBan(ctx context.Context, ban *models.BanRecord) error
	DeleteBan(ctx context.Context, participantID int64) (bool, error)

	GetAdmin(ctx context.Context, participantID int64) (*models.Administrator, error)
	SaveAdmin(ctx context.Context, admin *models.Administrator) error
	DeleteAdmin(ctx context.Context, participantID int64) (bool, error)

	CreatePairing(ctx context.Context, pairing *models.Pairing) error
	ClosePairing(ctx context.Context, pairingID uint, endedAt time.Time) error
	FindOpenPairing(ctx context.Context, participantID int64) (*models.Pairing, error)
	GetOpenPairings(ctx context.Context) ([]models.Pairing, error)

	SaveMessage(ctx context.Context, msg *models.RelayedMessage) error
	GetPairingMessages(ctx context.Context, pairingID uint) ([]models.RelayedMessage, error)

	SaveReport(ctx context.Context, report *models.Report) error
	GetReport(ctx context.Context, id uint) (*models.Report, error)
	// ResolveReport moves a pending report to status. It fails with
	// models.ErrAlreadyResolved when the report has left the pending state.
	ResolveReport(ctx context.Context, id uint, status models.ReportStatus, adminID int64, at time.Time) error
	CountReports(ctx context.Context, status models.ReportStatus) (int64, error)
}

// Service is the PostgreSQL implementation of Storage. Ban lookups go through
// a Redis read-through cache when Redis is configured.
type Service struct {
	DB     *gorm.DB
	Redis  *redis.Client
	logger *zap.Logger
	banTTL time.Duration
}

// NewStorageService Constructor. rdb may be nil, in which case bans are read from PostgreSQL only.
func NewStorageService(db *gorm.DB, rdb *redis.Client, logger *zap.Logger, banCacheTTL time.Duration) *Service {
	if banCacheTTL <= 0 {
		banCacheTTL = 10 * time.Minute
	}
	return &Service{
		DB:     db,
		Redis:  rdb,
		logger: logger,
		banTTL: banCacheTTL,
	}
}

// SaveParticipantIfNotExists registers a participant on first contact.
// An existing record is returned unchanged.
func (s *Service) SaveParticipantIfNotExists(ctx context.Context, id int64, username string) (*models.Participant, error) {
	var p models.Participant
	result := s.DB.WithContext(ctx).
		Where(models.Participant{ID: id}).
		Attrs(models.Participant{Username: username, JoinedAt: time.Now().UTC()}).
		FirstOrCreate(&p)
	if result.Error != nil {
		return nil, fmt.Errorf("save participant %d: %w", id, result.Error)
	}
	if result.RowsAffected > 0 {
		s.logger.Info("new participant registered", zap.Int64("participant_id", id))
	}
	return &p, nil
}

func (s *Service) GetParticipant(ctx context.Context, id int64) (*models.Participant, error) {
	var p models.Participant
	err := s.DB.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("participant %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get participant %d: %w", id, err)
	}
	return &p, nil
}

func (s *Service) GetAdmin(ctx context.Context, participantID int64) (*models.Administrator, error) {
	var a models.Administrator
	err := s.DB.WithContext(ctx).First(&a, "participant_id = ?", participantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get admin %d: %w", participantID, err)
	}
	return &a, nil
}

// SaveAdmin inserts or replaces an administrator record.
func (s *Service) SaveAdmin(ctx context.Context, admin *models.Administrator) error {
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(admin).Error
	if err != nil {
		return fmt.Errorf("save admin %d: %w", admin.ParticipantID, err)
	}
	return nil
}

func (s *Service) DeleteAdmin(ctx context.Context, participantID int64) (bool, error) {
	res := s.DB.WithContext(ctx).Delete(&models.Administrator{}, "participant_id = ?", participantID)
	if res.Error != nil {
		return false, fmt.Errorf("delete admin %d: %w", participantID, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *Service) CreatePairing(ctx context.Context, pairing *models.Pairing) error {
	if err := s.DB.WithContext(ctx).Create(pairing).Error; err != nil {
		return fmt.Errorf("create pairing %d-%d: %w", pairing.User1ID, pairing.User2ID, err)
	}
	return nil
}

// ClosePairing sets ended_at on an open pairing. Closing a pairing that is
// already closed or unknown yields models.ErrNotPaired.
func (s *Service) ClosePairing(ctx context.Context, pairingID uint, endedAt time.Time) error {
	res := s.DB.WithContext(ctx).Model(&models.Pairing{}).
		Where("id = ? AND ended_at IS NULL", pairingID).
		Update("ended_at", endedAt)
	if res.Error != nil {
		return fmt.Errorf("close pairing %d: %w", pairingID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("close pairing %d: %w", pairingID, models.ErrNotPaired)
	}
	return nil
}

// FindOpenPairing finds the open pairing containing the participant.
func (s *Service) FindOpenPairing(ctx context.Context, participantID int64) (*models.Pairing, error) {
	var p models.Pairing
	err := s.DB.WithContext(ctx).
		Where("ended_at IS NULL").
		Where("user1_id = ? OR user2_id = ?", participantID, participantID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find open pairing for %d: %w", participantID, err)
	}
	return &p, nil
}

func (s *Service) GetOpenPairings(ctx context.Context) ([]models.Pairing, error) {
	var pairings []models.Pairing
	if err := s.DB.WithContext(ctx).Where("ended_at IS NULL").Order("id asc").Find(&pairings).Error; err != nil {
		return nil, fmt.Errorf("list open pairings: %w", err)
	}
	return pairings, nil
}

func (s *Service) SaveMessage(ctx context.Context, msg *models.RelayedMessage) error {
	if err := s.DB.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("save message for pairing %d: %w", msg.PairingID, err)
	}
	return nil
}

// GetPairingMessages returns the relay log of a pairing, oldest first.
func (s *Service) GetPairingMessages(ctx context.Context, pairingID uint) ([]models.RelayedMessage, error) {
	var msgs []models.RelayedMessage
	err := s.DB.WithContext(ctx).
		Where("pairing_id = ?", pairingID).
		Order("sent_at asc, id asc").
		Find(&msgs).Error
	if err != nil {
		return nil, fmt.Errorf("get messages for pairing %d: %w", pairingID, err)
	}
	return msgs, nil
}

func (s *Service) SaveReport(ctx context.Context, report *models.Report) error {
	if report.Status == "" {
		report.Status = models.ReportPending
	}
	if err := s.DB.WithContext(ctx).Create(report).Error; err != nil {
		return fmt.Errorf("save report against %d: %w", report.ReportedID, err)
	}
	return nil
}

func (s *Service) GetReport(ctx context.Context, id uint) (*models.Report, error) {
	var r models.Report
	err := s.DB.WithContext(ctx).First(&r, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("report %d: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get report %d: %w", id, err)
	}
	return &r, nil
}

func (s *Service) ResolveReport(ctx context.Context, id uint, status models.ReportStatus, adminID int64, at time.Time) error {
	res := s.DB.WithContext(ctx).Model(&models.Report{}).
		Where("id = ? AND status = ?", id, models.ReportPending).
		Updates(map[string]interface{}{
			"status":      status,
			"resolved_at": at,
			"resolved_by": adminID,
		})
	if res.Error != nil {
		return fmt.Errorf("resolve report %d: %w", id, res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}
	// Either the report does not exist or it was already decided.
	if _, err := s.GetReport(ctx, id); err != nil {
		return err
	}
	return fmt.Errorf("report %d: %w", id, models.ErrAlreadyResolved)
}

func (s *Service) CountReports(ctx context.Context, status models.ReportStatus) (int64, error) {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.Report{}).Where("status = ?", status).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s reports: %w", status, err)
	}
	return n, nil
}
