package chathub

import (
	"context"
	"errors"
	"sync"
	"time"

	"strangerchat/backend/internal/complaint"
	"strangerchat/backend/internal/metrics"
	"strangerchat/backend/internal/models"
	"strangerchat/backend/internal/storage"

	"go.uber.org/zap"
)

// Renderer turns a message key into user-facing text.
type Renderer interface {
	Render(lang, key string, args ...any) string
}

// Options configures a ManagerService.
type Options struct {
	Storage storage.Storage
	// Transport reaches participants without a live client (Telegram). May be nil.
	Transport    Transport
	AdminChannel complaint.AdminChannel
	Renderer     Renderer
	Language     string
	OwnerID      int64
	Logger       *zap.Logger
}

// Outcome is the result of a session operation. Warnings lists notifications
// the transport failed to deliver; they never undo the state change.
type Outcome struct {
	Pairing  *models.Pairing
	Waiting  bool
	Message  *models.RelayedMessage
	Report   *models.Report
	Ban      *models.BanRecord
	Warnings []error
}

// ManagerService is the session controller. Every mutation of the queue, the
// pairing registry and the moderation state happens under mu; transport I/O
// happens after mu is released.
type ManagerService struct {
	mu sync.Mutex

	Storage    storage.Storage
	Queue      *MatchQueue
	Registry   *PairingRegistry
	Relay      *Relay
	Router     *Router
	Moderation *complaint.Service

	renderer Renderer
	language string
	logger   *zap.Logger
}

func NewManagerService(opts Options) *ManagerService {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &ManagerService{
		Storage:  opts.Storage,
		Queue:    NewMatchQueue(),
		Registry: NewPairingRegistry(opts.Storage, logger),
		Router:   NewRouter(opts.Transport, logger),
		renderer: opts.Renderer,
		language: opts.Language,
		logger:   logger,
	}
	m.Relay = NewRelay(m.Router, opts.Storage, &m.mu, logger)
	m.Moderation = complaint.NewService(opts.Storage, sessionState{m.Registry, m.Queue}, opts.OwnerID, opts.AdminChannel, logger)
	return m
}

// sessionState exposes the registry and the queue to the moderation service.
type sessionState struct {
	registry *PairingRegistry
	queue    *MatchQueue
}

func (s sessionState) ActivePairing(id int64) (*models.Pairing, bool) {
	return s.registry.ActivePairing(id)
}

func (s sessionState) EndPairing(ctx context.Context, a, b int64) (*models.Pairing, error) {
	return s.registry.EndPairing(ctx, a, b)
}

func (s sessionState) RemoveWaiting(id int64) bool {
	return s.queue.Remove(id)
}

// Restore reloads open pairings from storage. Waiting entries are not restored.
func (m *ManagerService) Restore(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.Registry.Restore(ctx)
	return err
}

// EnsureParticipant registers id on first contact.
func (m *ManagerService) EnsureParticipant(ctx context.Context, id int64, username string) (*models.Participant, error) {
	return m.Storage.SaveParticipantIfNotExists(ctx, id, username)
}

// Connect matches id with the longest-waiting participant, or queues id.
func (m *ManagerService) Connect(ctx context.Context, id int64) (Outcome, error) {
	m.mu.Lock()
	out, notices, err := m.connectLocked(ctx, id)
	m.observe()
	m.mu.Unlock()
	if err != nil {
		return Outcome{}, err
	}
	out.Warnings = m.dispatch(ctx, notices)
	return out, nil
}

func (m *ManagerService) connectLocked(ctx context.Context, id int64) (Outcome, []models.Notice, error) {
	if err := m.checkBan(ctx, id); err != nil {
		return Outcome{}, nil, err
	}
	if _, ok := m.Registry.ActivePartnerOf(id); ok {
		return Outcome{}, nil, models.ErrAlreadyPaired
	}
	if m.Queue.Contains(id) {
		return Outcome{}, nil, models.ErrAlreadyWaiting
	}

	if entry, ok := m.Queue.DequeueIfAvailable(); ok {
		pairing, err := m.Registry.CreatePairing(ctx, id, entry.ParticipantID)
		if err != nil {
			m.Queue.requeue(entry)
			return Outcome{}, nil, err
		}
		metrics.WaitDuration.Observe(time.Since(entry.Since).Seconds())
		m.logger.Info("participants paired",
			zap.Uint("pairing_id", pairing.ID),
			zap.Int64("user1_id", pairing.User1ID),
			zap.Int64("user2_id", pairing.User2ID))
		return Outcome{Pairing: pairing}, []models.Notice{
			models.NewNotice(id, models.NoticePartnerFound),
			models.NewNotice(entry.ParticipantID, models.NoticePartnerFound),
		}, nil
	}

	if err := m.Queue.Enqueue(id); err != nil {
		return Outcome{}, nil, err
	}
	m.logger.Debug("participant waiting", zap.Int64("participant_id", id))
	return Outcome{Waiting: true}, []models.Notice{models.NewNotice(id, models.NoticeSearching)}, nil
}

// Disconnect ends id's pairing or leaves the queue. The partner is always
// told; id is told unless silent.
func (m *ManagerService) Disconnect(ctx context.Context, id int64, silent bool) (Outcome, error) {
	m.mu.Lock()
	out, notices, err := m.disconnectLocked(ctx, id, silent)
	m.observe()
	m.mu.Unlock()
	if err != nil {
		return Outcome{}, err
	}
	out.Warnings = m.dispatch(ctx, notices)
	return out, nil
}

func (m *ManagerService) disconnectLocked(ctx context.Context, id int64, silent bool) (Outcome, []models.Notice, error) {
	var notices []models.Notice
	if partner, ok := m.Registry.ActivePartnerOf(id); ok {
		ended, err := m.Registry.EndPairing(ctx, id, partner)
		if err != nil {
			return Outcome{}, nil, err
		}
		notices = append(notices, models.NewNotice(partner, models.NoticePartnerDisconnected))
		if !silent {
			notices = append(notices, models.NewNotice(id, models.NoticeDisconnected))
		}
		m.logger.Info("pairing ended", zap.Uint("pairing_id", ended.ID), zap.Int64("participant_id", id))
		return Outcome{Pairing: ended}, notices, nil
	}

	if m.Queue.Remove(id) {
		if !silent {
			notices = append(notices, models.NewNotice(id, models.NoticeStoppedSearching))
		}
		return Outcome{}, notices, nil
	}

	if !silent {
		notices = append(notices, models.NewNotice(id, models.NoticeNotInChat))
	}
	return Outcome{}, notices, nil
}

// Reconnect is a silent disconnect immediately followed by a connect.
func (m *ManagerService) Reconnect(ctx context.Context, id int64) (Outcome, error) {
	m.mu.Lock()
	if err := m.checkBan(ctx, id); err != nil {
		m.mu.Unlock()
		return Outcome{}, err
	}
	notices := []models.Notice{models.NewNotice(id, models.NoticeReconnecting)}
	_, left, err := m.disconnectLocked(ctx, id, true)
	if err != nil {
		m.observe()
		m.mu.Unlock()
		return Outcome{}, err
	}
	notices = append(notices, left...)
	out, joined, err := m.connectLocked(ctx, id)
	m.observe()
	m.mu.Unlock()

	notices = append(notices, joined...)
	warnings := m.dispatch(ctx, notices)
	if err != nil {
		return Outcome{Warnings: warnings}, err
	}
	out.Warnings = warnings
	return out, nil
}

// RelayIncoming forwards payload from id to its partner.
func (m *ManagerService) RelayIncoming(ctx context.Context, id int64, payload models.Payload) (Outcome, error) {
	if err := payload.Validate(); err != nil {
		return Outcome{}, err
	}

	m.mu.Lock()
	if err := m.checkBan(ctx, id); err != nil {
		m.mu.Unlock()
		return Outcome{}, err
	}
	pairing, ok := m.Registry.ActivePairing(id)
	m.mu.Unlock()
	if !ok {
		return Outcome{}, models.ErrNotInChat
	}

	msg, err := m.Relay.Forward(ctx, *pairing, id, payload)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Pairing: pairing, Message: msg}, nil
}

// FileReport records a report by reporter against reported and hands it to the administrators.
func (m *ManagerService) FileReport(ctx context.Context, reporter, reported int64, reason string, snapshot models.Payload) (Outcome, error) {
	m.mu.Lock()
	if err := m.checkBan(ctx, reporter); err != nil {
		m.mu.Unlock()
		return Outcome{}, err
	}
	report, notices, err := m.Moderation.FileReport(ctx, reporter, reported, reason, snapshot)
	m.mu.Unlock()
	if err != nil {
		return Outcome{}, err
	}

	warnings := m.dispatch(ctx, notices)
	if err := m.Moderation.Publish(ctx, report); err != nil {
		m.logger.Warn("report not published to administrators", zap.Uint("report_id", report.ID), zap.Error(err))
		warnings = append(warnings, err)
	}
	return Outcome{Report: report, Warnings: warnings}, nil
}

// ReportPartner files a report against reporter's current partner.
func (m *ManagerService) ReportPartner(ctx context.Context, reporter int64, reason string, snapshot models.Payload) (Outcome, error) {
	partner, ok := m.Registry.ActivePartnerOf(reporter)
	if !ok {
		return Outcome{}, models.ErrNotInChat
	}
	return m.FileReport(ctx, reporter, partner, reason, snapshot)
}

// ResolveReport applies an administrator decision.
func (m *ManagerService) ResolveReport(ctx context.Context, adminID int64, cmd models.ModerationCommand) (Outcome, error) {
	m.mu.Lock()
	report, notices, err := m.Moderation.ResolveReport(ctx, adminID, cmd)
	m.observe()
	m.mu.Unlock()
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Report: report, Warnings: m.dispatch(ctx, notices)}, nil
}

func (m *ManagerService) Ban(ctx context.Context, adminID, target int64, reason string) (Outcome, error) {
	m.mu.Lock()
	ban, notices, err := m.Moderation.Ban(ctx, adminID, target, reason)
	m.observe()
	m.mu.Unlock()
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Ban: ban, Warnings: m.dispatch(ctx, notices)}, nil
}

func (m *ManagerService) Unban(ctx context.Context, adminID, target int64) (Outcome, error) {
	m.mu.Lock()
	notices, err := m.Moderation.Unban(ctx, adminID, target)
	m.mu.Unlock()
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Warnings: m.dispatch(ctx, notices)}, nil
}

// CheckBan is read-only and does not take the session lock.
func (m *ManagerService) CheckBan(ctx context.Context, adminID, target int64) (*complaint.BanStatus, error) {
	return m.Moderation.CheckBan(ctx, adminID, target)
}

func (m *ManagerService) AddAdmin(ctx context.Context, ownerID, target int64, username string) (*models.Administrator, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Moderation.AddAdmin(ctx, ownerID, target, username)
}

func (m *ManagerService) RemoveAdmin(ctx context.Context, ownerID, target int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Moderation.RemoveAdmin(ctx, ownerID, target)
}

func (m *ManagerService) IsAdmin(ctx context.Context, id int64) (bool, error) {
	return m.Moderation.IsAdmin(ctx, id)
}

// ActivePartnerOf is a read-only query served without the session lock.
func (m *ManagerService) ActivePartnerOf(id int64) (int64, bool) {
	return m.Registry.ActivePartnerOf(id)
}

// IsWaiting reports whether id sits in the queue.
func (m *ManagerService) IsWaiting(id int64) bool {
	return m.Queue.Contains(id)
}

// Stats is a point-in-time view of the service.
type Stats struct {
	Waiting        int   `json:"waiting"`
	ActivePairings int   `json:"active_pairings"`
	LiveClients    int   `json:"live_clients"`
	PendingReports int64 `json:"pending_reports"`
}

func (m *ManagerService) Stats(ctx context.Context) (Stats, error) {
	m.mu.Lock()
	st := Stats{
		Waiting:        m.Queue.Len(),
		ActivePairings: m.Registry.Count(),
	}
	m.mu.Unlock()
	st.LiveClients = m.Router.Connected()

	pending, err := m.Storage.CountReports(ctx, models.ReportPending)
	if err != nil {
		return st, err
	}
	st.PendingReports = pending
	return st, nil
}

// Leave detaches a live client whose connection went away and silently
// disconnects its participant.
func (m *ManagerService) Leave(ctx context.Context, c Client) {
	if !m.Router.Unregister(c) {
		return
	}
	if _, err := m.Disconnect(ctx, c.GetUserID(), true); err != nil {
		m.logger.Warn("disconnect on leave failed", zap.Int64("participant_id", c.GetUserID()), zap.Error(err))
	}
}

// Render renders a message key in the service language.
func (m *ManagerService) Render(key string, args ...any) string {
	if m.renderer == nil {
		return key
	}
	return m.renderer.Render(m.language, key, args...)
}

// Describe turns an operation error into user-facing text.
func (m *ManagerService) Describe(err error) string {
	key := models.ErrorKey(err)
	var banned *models.BannedError
	if errors.As(err, &banned) {
		return m.Render(key, banned.Reason)
	}
	if key == models.ErrorKeyGeneric {
		m.logger.Error("unexpected operation failure", zap.Error(err))
	}
	return m.Render(key)
}

func (m *ManagerService) checkBan(ctx context.Context, id int64) error {
	ban, err := m.Moderation.IsBanned(ctx, id)
	if err != nil {
		return err
	}
	if ban != nil {
		return &models.BannedError{Reason: ban.Reason}
	}
	return nil
}

// dispatch sends notices. Failures are logged and returned as warnings.
func (m *ManagerService) dispatch(ctx context.Context, notices []models.Notice) []error {
	var warnings []error
	for _, n := range notices {
		if err := m.Router.Notify(ctx, n.Recipient, m.Render(n.Key, n.Args...)); err != nil {
			metrics.NotificationFailures.Inc()
			m.logger.Warn("notification not delivered",
				zap.Int64("participant_id", n.Recipient),
				zap.String("notice", n.Key),
				zap.Error(err))
			warnings = append(warnings, asDeliveryError(n.Recipient, err))
		}
	}
	return warnings
}

func (m *ManagerService) observe() {
	metrics.QueueSize.Set(float64(m.Queue.Len()))
}
