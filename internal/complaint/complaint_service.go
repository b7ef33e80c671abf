// Package complaint implements the moderation workflow: participant reports,
// their review by administrators, bans and the administrator list.
//
// Service does not lock. Callers serialize every mutating call with the
// session state it touches and deliver the returned notices afterwards.
package complaint

import (
	"context"
	"fmt"
	"strings"
	"time"

	"strangerchat/backend/internal/metrics"
	"strangerchat/backend/internal/models"
	"strangerchat/backend/internal/storage"

	"go.uber.org/zap"
)

// DefaultBanReason is recorded when an administrator bans without a reason.
const DefaultBanReason = "Manual ban by an administrator"

// Sessions is the view of live pairings and waiting entries the moderation
// workflow needs to force participants out.
type Sessions interface {
	ActivePairing(id int64) (*models.Pairing, bool)
	EndPairing(ctx context.Context, a, b int64) (*models.Pairing, error)
	RemoveWaiting(id int64) bool
}

// Service handles the business logic for reports and bans.
type Service struct {
	Storage  storage.Storage
	sessions Sessions
	channel  AdminChannel
	ownerID  int64
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new moderation service. channel may be nil.
func NewService(s storage.Storage, sessions Sessions, ownerID int64, channel AdminChannel, logger *zap.Logger) *Service {
	return &Service{
		Storage:  s,
		sessions: sessions,
		channel:  channel,
		ownerID:  ownerID,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// OwnerID returns the distinguished, non-revocable administrator.
func (s *Service) OwnerID() int64 { return s.ownerID }

// IsAdmin reports whether id holds administrator capability. The owner always does.
func (s *Service) IsAdmin(ctx context.Context, id int64) (bool, error) {
	if id == s.ownerID {
		return true, nil
	}
	admin, err := s.Storage.GetAdmin(ctx, id)
	if err != nil {
		return false, err
	}
	return admin != nil, nil
}

// requireAdmin guards every privileged entry point.
func (s *Service) requireAdmin(ctx context.Context, id int64) error {
	ok, err := s.IsAdmin(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return models.ErrPermissionDenied
	}
	return nil
}

func (s *Service) requireOwner(id int64) error {
	if id != s.ownerID {
		return models.ErrPermissionDenied
	}
	return nil
}

// IsBanned returns the participant's ban record, or nil.
func (s *Service) IsBanned(ctx context.Context, id int64) (*models.BanRecord, error) {
	return s.Storage.GetBan(ctx, id)
}

// FileReport records a report by reporter against their current partner.
func (s *Service) FileReport(ctx context.Context, reporter, reported int64, reason string, snapshot models.Payload) (*models.Report, []models.Notice, error) {
	pairing, ok := s.sessions.ActivePairing(reporter)
	if !ok {
		return nil, nil, models.ErrNotPaired
	}
	if partner, _ := pairing.PartnerOf(reporter); partner != reported {
		return nil, nil, models.ErrNotPaired
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, nil, models.ErrMissingReason
	}

	report := &models.Report{
		ReporterID: reporter,
		ReportedID: reported,
		PairingID:  pairing.ID,
		Reason:     reason,
		Status:     models.ReportPending,
		CreatedAt:  s.now(),
	}
	report.SetSnapshot(snapshot)
	if err := s.Storage.SaveReport(ctx, report); err != nil {
		return nil, nil, err
	}

	metrics.Reports.WithLabelValues("filed").Inc()
	s.logger.Info("report filed",
		zap.Uint("report_id", report.ID),
		zap.Int64("reporter_id", reporter),
		zap.Int64("reported_id", reported),
		zap.Uint("pairing_id", pairing.ID))

	return report, []models.Notice{models.NewNotice(reporter, models.NoticeReportSubmitted, report.ID)}, nil
}

// Publish hands a freshly filed report to the administrators for review.
// It performs network I/O and must be called outside the serialized section.
func (s *Service) Publish(ctx context.Context, report *models.Report) error {
	if s.channel == nil {
		return nil
	}
	reporter, err := s.Storage.GetParticipant(ctx, report.ReporterID)
	if err != nil {
		s.logger.Debug("reporter has no participant record", zap.Int64("reporter_id", report.ReporterID), zap.Error(err))
		reporter = nil
	}
	return s.channel.PublishReport(ctx, report, reporter)
}

// ResolveReport applies an administrator decision to a pending report.
func (s *Service) ResolveReport(ctx context.Context, adminID int64, cmd models.ModerationCommand) (*models.Report, []models.Notice, error) {
	if err := cmd.Validate(); err != nil {
		return nil, nil, err
	}
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, nil, err
	}
	report, err := s.Storage.GetReport(ctx, cmd.ID)
	if err != nil {
		return nil, nil, err
	}
	if !report.IsPending() {
		return nil, nil, fmt.Errorf("report %d: %w", report.ID, models.ErrAlreadyResolved)
	}

	var notices []models.Notice
	switch cmd.Action {
	case models.ActionAccept:
		notices, err = s.acceptReport(ctx, adminID, report)
	case models.ActionReject:
		notices, err = s.rejectReport(ctx, adminID, report)
	}
	if err != nil {
		return nil, nil, err
	}

	at := s.now()
	report.ResolvedAt = &at
	report.ResolvedBy = &adminID
	s.logger.Info("report resolved",
		zap.Uint("report_id", report.ID),
		zap.String("status", string(report.Status)),
		zap.Int64("admin_id", adminID))
	return report, notices, nil
}

// acceptReport bans the reported participant. The ban is written before the
// status so that a failed status update can be retried without losing the ban.
func (s *Service) acceptReport(ctx context.Context, adminID int64, report *models.Report) ([]models.Notice, error) {
	protected, err := s.IsAdmin(ctx, report.ReportedID)
	if err != nil {
		return nil, err
	}
	if protected {
		return nil, models.ErrProtectedParticipant
	}

	reason := fmt.Sprintf("Report #%d (%s)", report.ID, report.Reason)
	ban := &models.BanRecord{
		ParticipantID: report.ReportedID,
		Reason:        reason,
		BannedBy:      &adminID,
		BannedAt:      s.now(),
	}
	if err := s.Storage.SaveBan(ctx, ban); err != nil {
		return nil, err
	}
	if err := s.Storage.ResolveReport(ctx, report.ID, models.ReportAccepted, adminID, s.now()); err != nil {
		return nil, err
	}
	report.Status = models.ReportAccepted

	peer, hadPeer, err := s.expel(ctx, report.ReportedID)
	if err != nil {
		return nil, err
	}

	var notices []models.Notice
	switch {
	case hadPeer && peer == report.ReporterID:
		notices = append(notices, models.NewNotice(report.ReporterID, models.NoticeReportAcceptedEnded))
	case hadPeer:
		notices = append(notices,
			models.NewNotice(report.ReporterID, models.NoticeReportAccepted, report.ID),
			models.NewNotice(peer, models.NoticePartnerBanned))
	default:
		notices = append(notices, models.NewNotice(report.ReporterID, models.NoticeReportAccepted, report.ID))
	}
	notices = append(notices, models.NewNotice(report.ReportedID, models.NoticeBannedByReport, reason))

	metrics.Reports.WithLabelValues("accepted").Inc()
	metrics.Bans.WithLabelValues("report").Inc()
	return notices, nil
}

func (s *Service) rejectReport(ctx context.Context, adminID int64, report *models.Report) ([]models.Notice, error) {
	if err := s.Storage.ResolveReport(ctx, report.ID, models.ReportRejected, adminID, s.now()); err != nil {
		return nil, err
	}
	report.Status = models.ReportRejected
	metrics.Reports.WithLabelValues("rejected").Inc()
	return []models.Notice{models.NewNotice(report.ReporterID, models.NoticeReportRejected, report.ID)}, nil
}

// Ban excludes target directly, bypassing the report flow.
func (s *Service) Ban(ctx context.Context, adminID, target int64, reason string) (*models.BanRecord, []models.Notice, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, nil, err
	}
	protected, err := s.IsAdmin(ctx, target)
	if err != nil {
		return nil, nil, err
	}
	if protected {
		return nil, nil, models.ErrProtectedParticipant
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultBanReason
	}

	ban := &models.BanRecord{
		ParticipantID: target,
		Reason:        reason,
		BannedBy:      &adminID,
		BannedAt:      s.now(),
	}
	if err := s.Storage.SaveBan(ctx, ban); err != nil {
		return nil, nil, err
	}

	peer, hadPeer, err := s.expel(ctx, target)
	if err != nil {
		return nil, nil, err
	}

	var notices []models.Notice
	if hadPeer {
		notices = append(notices, models.NewNotice(peer, models.NoticePartnerBanned))
	}
	notices = append(notices, models.NewNotice(target, models.NoticeBannedByAdmin, reason))

	metrics.Bans.WithLabelValues("admin").Inc()
	s.logger.Info("participant banned",
		zap.Int64("participant_id", target),
		zap.Int64("admin_id", adminID),
		zap.String("reason", reason))
	return ban, notices, nil
}

// Unban lifts the ban on target.
func (s *Service) Unban(ctx context.Context, adminID, target int64) ([]models.Notice, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	existed, err := s.Storage.DeleteBan(ctx, target)
	if err != nil {
		return nil, err
	}
	if !existed {
		return nil, models.ErrNotBanned
	}
	s.logger.Info("participant unbanned", zap.Int64("participant_id", target), zap.Int64("admin_id", adminID))
	return []models.Notice{models.NewNotice(target, models.NoticeUnbanned)}, nil
}

// BanStatus describes a ban and who issued it.
type BanStatus struct {
	Ban *models.BanRecord
	// IssuerUsername is set when the issuing administrator is still on the admin list.
	IssuerUsername string
	IssuedByOwner  bool
}

// CheckBan looks up target's ban for an administrator.
func (s *Service) CheckBan(ctx context.Context, adminID, target int64) (*BanStatus, error) {
	if err := s.requireAdmin(ctx, adminID); err != nil {
		return nil, err
	}
	ban, err := s.Storage.GetBan(ctx, target)
	if err != nil {
		return nil, err
	}
	if ban == nil {
		return nil, models.ErrNotBanned
	}

	status := &BanStatus{Ban: ban}
	if ban.IssuedBySystem() {
		return status, nil
	}
	if *ban.BannedBy == s.ownerID {
		status.IssuedByOwner = true
		return status, nil
	}
	admin, err := s.Storage.GetAdmin(ctx, *ban.BannedBy)
	if err != nil {
		return nil, err
	}
	if admin != nil {
		status.IssuerUsername = admin.Username
	}
	return status, nil
}

// AddAdmin grants administrator capability. Owner only.
func (s *Service) AddAdmin(ctx context.Context, ownerID, target int64, username string) (*models.Administrator, error) {
	if err := s.requireOwner(ownerID); err != nil {
		return nil, err
	}
	if target == s.ownerID {
		return nil, models.ErrProtectedParticipant
	}
	admin := &models.Administrator{
		ParticipantID: target,
		Username:      strings.TrimPrefix(username, "@"),
		AddedBy:       ownerID,
		AddedAt:       s.now(),
	}
	if err := s.Storage.SaveAdmin(ctx, admin); err != nil {
		return nil, err
	}
	s.logger.Info("administrator added", zap.Int64("participant_id", target))
	return admin, nil
}

// RemoveAdmin revokes administrator capability. Owner only; the owner cannot be removed.
func (s *Service) RemoveAdmin(ctx context.Context, ownerID, target int64) error {
	if err := s.requireOwner(ownerID); err != nil {
		return err
	}
	if target == s.ownerID {
		return models.ErrProtectedParticipant
	}
	removed, err := s.Storage.DeleteAdmin(ctx, target)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("administrator %d: %w", target, models.ErrNotFound)
	}
	s.logger.Info("administrator removed", zap.Int64("participant_id", target))
	return nil
}

// expel ends target's open pairing, if any, and drops any waiting entry.
func (s *Service) expel(ctx context.Context, target int64) (peer int64, hadPeer bool, err error) {
	if pairing, ok := s.sessions.ActivePairing(target); ok {
		peer, _ = pairing.PartnerOf(target)
		if _, err := s.sessions.EndPairing(ctx, target, peer); err != nil {
			return 0, false, err
		}
		hadPeer = true
	}
	s.sessions.RemoveWaiting(target)
	return peer, hadPeer, nil
}
