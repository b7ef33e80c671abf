package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"strangerchat/backend/internal/models"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	banKeyPrefix = "ban:"
	// banCacheMiss marks a participant known to have no ban record.
	banCacheMiss = "none"
)

func banKey(id int64) string {
	return banKeyPrefix + strconv.FormatInt(id, 10)
}

// GetBan returns the participant's ban record or nil. Redis is consulted first;
// a Redis failure falls back to PostgreSQL, never to "not banned".
func (s *Service) GetBan(ctx context.Context, participantID int64) (*models.BanRecord, error) {
	if ban, hit := s.cachedBan(ctx, participantID); hit {
		return ban, nil
	}

	var ban models.BanRecord
	err := s.DB.WithContext(ctx).First(&ban, "participant_id = ?", participantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.cacheBan(ctx, participantID, nil)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ban %d: %w", participantID, err)
	}
	s.cacheBan(ctx, participantID, &ban)
	return &ban, nil
}

// SaveBan creates or overwrites the participant's ban record.
func (s *Service) SaveBan(ctx context.Context, ban *models.BanRecord) error {
	err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(ban).Error
	if err != nil {
		return fmt.Errorf("save ban %d: %w", ban.ParticipantID, err)
	}
	s.cacheBan(ctx, ban.ParticipantID, ban)
	return nil
}

// DeleteBan removes the ban record. It reports whether a record existed.
func (s *Service) DeleteBan(ctx context.Context, participantID int64) (bool, error) {
	res := s.DB.WithContext(ctx).Delete(&models.BanRecord{}, "participant_id = ?", participantID)
	if res.Error != nil {
		return false, fmt.Errorf("delete ban %d: %w", participantID, res.Error)
	}
	s.cacheBan(ctx, participantID, nil)
	return res.RowsAffected > 0, nil
}

func (s *Service) cachedBan(ctx context.Context, participantID int64) (*models.BanRecord, bool) {
	if s.Redis == nil {
		return nil, false
	}
	val, err := s.Redis.Get(ctx, banKey(participantID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		s.logger.Warn("ban cache read failed", zap.Int64("participant_id", participantID), zap.Error(err))
		return nil, false
	}
	if val == banCacheMiss {
		return nil, true
	}
	var ban models.BanRecord
	if err := json.Unmarshal([]byte(val), &ban); err != nil {
		s.logger.Warn("ban cache entry is corrupt", zap.Int64("participant_id", participantID), zap.Error(err))
		return nil, false
	}
	return &ban, true
}

func (s *Service) cacheBan(ctx context.Context, participantID int64, ban *models.BanRecord) {
	if s.Redis == nil {
		return
	}
	val := banCacheMiss
	if ban != nil {
		data, err := json.Marshal(ban)
		if err != nil {
			s.logger.Warn("ban cache encode failed", zap.Int64("participant_id", participantID), zap.Error(err))
			s.Redis.Del(ctx, banKey(participantID))
			return
		}
		val = string(data)
	}
	if err := s.Redis.Set(ctx, banKey(participantID), val, s.banTTL).Err(); err != nil {
		// A stale entry would outlive the change, so try to drop it.
		s.logger.Warn("ban cache write failed", zap.Int64("participant_id", participantID), zap.Error(err))
		s.Redis.Del(ctx, banKey(participantID))
	}
}
