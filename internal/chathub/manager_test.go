package chathub_test

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"strangerchat/backend/internal/chathub"
	"strangerchat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnect_WaitThenDuplicate(t *testing.T) {
	// Arrange
	ctx := context.Background()
	m, transport, _ := newTestManager()

	// Act
	out, err := m.Connect(ctx, 1)
	require.NoError(t, err)
	_, dupErr := m.Connect(ctx, 1)

	// Assert
	assert.True(t, out.Waiting)
	assert.ErrorIs(t, dupErr, models.ErrAlreadyWaiting)
	assert.Equal(t, []int64{1}, m.Queue.Snapshot())
	assert.Equal(t, []string{models.NoticeSearching}, transport.noticesFor(1))
}

func TestConnect_SecondConnectorIsMatched(t *testing.T) {
	ctx := context.Background()
	m, transport, store := newTestManager()

	out, err := m.Connect(ctx, 1)
	require.NoError(t, err)
	assert.True(t, out.Waiting)

	out, err = m.Connect(ctx, 2)
	require.NoError(t, err)

	require.NotNil(t, out.Pairing)
	assert.EqualValues(t, 2, out.Pairing.User1ID)
	assert.EqualValues(t, 1, out.Pairing.User2ID)
	assert.Equal(t, 0, m.Queue.Len())
	assert.Equal(t, []string{models.NoticeSearching, models.NoticePartnerFound}, transport.noticesFor(1))
	assert.Equal(t, []string{models.NoticePartnerFound}, transport.noticesFor(2))

	stored, err := store.FindOpenPairing(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, out.Pairing.ID, stored.ID)
}

func TestConnect_Errors(t *testing.T) {
	ctx := context.Background()
	m, _, store := newTestManager()

	_, err := m.Connect(ctx, 1)
	require.NoError(t, err)
	_, err = m.Connect(ctx, 1)
	assert.ErrorIs(t, err, models.ErrAlreadyWaiting)

	_, err = m.Connect(ctx, 2)
	require.NoError(t, err)
	_, err = m.Connect(ctx, 2)
	assert.ErrorIs(t, err, models.ErrAlreadyPaired)

	require.NoError(t, store.SaveBan(ctx, &models.BanRecord{ParticipantID: 3, Reason: "flood"}))
	_, err = m.Connect(ctx, 3)
	assert.ErrorIs(t, err, models.ErrBanned)
	var banned *models.BannedError
	require.ErrorAs(t, err, &banned)
	assert.Equal(t, "flood", banned.Reason)
	assert.False(t, m.IsWaiting(3))
}

func TestConnect_FIFO(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager()
	for _, id := range []int64{1, 2, 3} {
		require.NoError(t, m.Queue.Enqueue(id))
	}

	for _, want := range []int64{1, 2, 3} {
		out, err := m.Connect(ctx, 100+want)
		require.NoError(t, err)
		require.NotNil(t, out.Pairing)
		assert.Equal(t, want, out.Pairing.User2ID)
	}
	assert.Equal(t, 0, m.Queue.Len())
}

func TestDisconnect(t *testing.T) {
	ctx := context.Background()

	t.Run("paired", func(t *testing.T) {
		m, transport, _ := newTestManager()
		_, _ = m.Connect(ctx, 1)
		_, _ = m.Connect(ctx, 2)
		transport.reset()

		out, err := m.Disconnect(ctx, 1, false)

		require.NoError(t, err)
		require.NotNil(t, out.Pairing)
		assert.NotNil(t, out.Pairing.EndedAt)
		assert.Equal(t, []string{models.NoticeDisconnected}, transport.noticesFor(1))
		assert.Equal(t, []string{models.NoticePartnerDisconnected}, transport.noticesFor(2))
		_, ok := m.ActivePartnerOf(2)
		assert.False(t, ok)
	})

	t.Run("paired and silent still tells the partner", func(t *testing.T) {
		m, transport, _ := newTestManager()
		_, _ = m.Connect(ctx, 1)
		_, _ = m.Connect(ctx, 2)
		transport.reset()

		_, err := m.Disconnect(ctx, 2, true)

		require.NoError(t, err)
		assert.Empty(t, transport.noticesFor(2))
		assert.Equal(t, []string{models.NoticePartnerDisconnected}, transport.noticesFor(1))
	})

	t.Run("waiting", func(t *testing.T) {
		m, transport, _ := newTestManager()
		_, _ = m.Connect(ctx, 1)
		transport.reset()

		_, err := m.Disconnect(ctx, 1, false)

		require.NoError(t, err)
		assert.False(t, m.IsWaiting(1))
		assert.Equal(t, []string{models.NoticeStoppedSearching}, transport.noticesFor(1))
	})

	t.Run("neither", func(t *testing.T) {
		m, transport, _ := newTestManager()

		_, err := m.Disconnect(ctx, 1, false)
		require.NoError(t, err)
		_, err = m.Disconnect(ctx, 1, true)
		require.NoError(t, err)

		assert.Equal(t, []string{models.NoticeNotInChat}, transport.noticesFor(1))
	})
}

func TestReconnect(t *testing.T) {
	ctx := context.Background()
	m, transport, store := newTestManager()
	_, _ = m.Connect(ctx, 1)
	_, _ = m.Connect(ctx, 2)
	_, _ = m.Connect(ctx, 3)
	transport.reset()

	out, err := m.Reconnect(ctx, 1)

	require.NoError(t, err)
	require.NotNil(t, out.Pairing, "3 was waiting")
	assert.True(t, out.Pairing.Between(1, 3))
	assert.Equal(t, []string{models.NoticeReconnecting, models.NoticePartnerFound}, transport.noticesFor(1))
	assert.Equal(t, []string{models.NoticePartnerDisconnected}, transport.noticesFor(2))
	assert.Equal(t, []string{models.NoticePartnerFound}, transport.noticesFor(3))

	require.NoError(t, store.SaveBan(ctx, &models.BanRecord{ParticipantID: 2, Reason: "x"}))
	_, err = m.Reconnect(ctx, 2)
	assert.ErrorIs(t, err, models.ErrBanned)
}

func TestRelayIncoming(t *testing.T) {
	ctx := context.Background()
	m, transport, store := newTestManager()

	_, err := m.RelayIncoming(ctx, 1, models.TextPayload("hi"))
	assert.ErrorIs(t, err, models.ErrNotInChat)

	_, _ = m.Connect(ctx, 1)
	out, err := m.Connect(ctx, 2)
	require.NoError(t, err)
	pairingID := out.Pairing.ID

	out, err = m.RelayIncoming(ctx, 1, models.TextPayload("hi"))
	require.NoError(t, err)

	assert.Contains(t, transport.deliveries, delivery{Recipient: 2, Payload: models.TextPayload("hi")})
	logged, err := store.GetPairingMessages(ctx, pairingID)
	require.NoError(t, err)
	require.Len(t, logged, 1)
	assert.EqualValues(t, 1, logged[0].SenderID)
	assert.Equal(t, models.KindText, logged[0].Kind)
	assert.Equal(t, pairingID, out.Message.PairingID)

	_, err = m.RelayIncoming(ctx, 1, models.Payload{Kind: "voice", FileID: "v"})
	assert.ErrorIs(t, err, models.ErrUnsupportedPayload)

	transport.fail(2)
	_, err = m.RelayIncoming(ctx, 1, models.TextPayload("lost"))
	assert.ErrorIs(t, err, models.ErrDeliveryFailure)
	logged, err = store.GetPairingMessages(ctx, pairingID)
	require.NoError(t, err)
	assert.Len(t, logged, 1)
}

func TestReportAccepted_BansAndEndsPairing(t *testing.T) {
	ctx := context.Background()
	m, transport, _ := newTestManager()
	_, _ = m.Connect(ctx, 1)
	_, _ = m.Connect(ctx, 2)
	transport.reset()

	out, err := m.ReportPartner(ctx, 1, "spam", models.TextPayload("buy now"))
	require.NoError(t, err)
	report := out.Report
	assert.Equal(t, models.ReportPending, report.Status)
	assert.EqualValues(t, 2, report.ReportedID)
	assert.Equal(t, []string{fmt.Sprintf("%s:%d", models.NoticeReportSubmitted, report.ID)}, transport.noticesFor(1))

	cmd, err := models.ParseModerationCommand(fmt.Sprintf("accept_report_%d", report.ID))
	require.NoError(t, err)
	out, err = m.ResolveReport(ctx, testOwner, cmd)
	require.NoError(t, err)
	assert.Equal(t, models.ReportAccepted, out.Report.Status)

	ban, err := m.Moderation.IsBanned(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, ban)
	_, paired := m.ActivePartnerOf(1)
	assert.False(t, paired)
	assert.Contains(t, transport.noticesFor(1), models.NoticeReportAcceptedEnded)
	assert.Contains(t, transport.noticesFor(2), models.NoticeBannedByReport+":"+ban.Reason)

	_, err = m.Connect(ctx, 2)
	assert.ErrorIs(t, err, models.ErrBanned)

	// Second decision: no further side effects.
	transport.reset()
	_, err = m.ResolveReport(ctx, testOwner, cmd)
	assert.ErrorIs(t, err, models.ErrAlreadyResolved)
	assert.Empty(t, transport.notices)
}

func TestReportPartner_NotInChat(t *testing.T) {
	m, _, _ := newTestManager()

	_, err := m.ReportPartner(context.Background(), 1, "spam", models.Payload{})

	assert.ErrorIs(t, err, models.ErrNotInChat)
}

func TestBan_Owner(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager()
	_, err := m.AddAdmin(ctx, testOwner, 50, "mod")
	require.NoError(t, err)

	_, err = m.Ban(ctx, 50, testOwner, "coup")

	assert.ErrorIs(t, err, models.ErrProtectedParticipant)
}

func TestBan_RemovesWaitingAndPaired(t *testing.T) {
	ctx := context.Background()
	m, transport, _ := newTestManager()
	_, _ = m.Connect(ctx, 1)
	_, _ = m.Connect(ctx, 2)
	_, _ = m.Connect(ctx, 3)
	transport.reset()

	_, err := m.Ban(ctx, testOwner, 1, "abuse")
	require.NoError(t, err)
	_, err = m.Ban(ctx, testOwner, 3, "abuse")
	require.NoError(t, err)

	assert.False(t, m.IsWaiting(3))
	_, paired := m.ActivePartnerOf(2)
	assert.False(t, paired)
	assert.Equal(t, []string{models.NoticePartnerBanned}, transport.noticesFor(2))

	out, err := m.Unban(ctx, testOwner, 1)
	require.NoError(t, err)
	assert.Empty(t, out.Warnings)
	assert.Contains(t, transport.noticesFor(1), models.NoticeUnbanned)
}

func TestNotificationFailureIsAWarning(t *testing.T) {
	ctx := context.Background()
	m, transport, _ := newTestManager()
	_, _ = m.Connect(ctx, 1)
	transport.fail(1)

	out, err := m.Connect(ctx, 2)

	require.NoError(t, err, "state change must not be rolled back")
	require.NotNil(t, out.Pairing)
	require.Len(t, out.Warnings, 1)
	assert.ErrorIs(t, out.Warnings[0], models.ErrDeliveryFailure)
	partner, ok := m.ActivePartnerOf(2)
	require.True(t, ok)
	assert.EqualValues(t, 1, partner)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	m, _, store := newTestManager()
	_, _ = m.Connect(ctx, 1)
	_, _ = m.Connect(ctx, 2)
	_, _ = m.Connect(ctx, 3)

	restarted := chathub.NewManagerService(chathub.Options{Storage: store, OwnerID: testOwner})
	require.NoError(t, restarted.Restore(ctx))

	partner, ok := restarted.ActivePartnerOf(1)
	require.True(t, ok)
	assert.EqualValues(t, 2, partner)
	assert.False(t, restarted.IsWaiting(3), "waiting entries are not durable")
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager()
	_, _ = m.Connect(ctx, 1)
	_, _ = m.Connect(ctx, 2)
	_, _ = m.Connect(ctx, 3)
	_, err := m.ReportPartner(ctx, 1, "spam", models.TextPayload("x"))
	require.NoError(t, err)

	st, err := m.Stats(ctx)

	require.NoError(t, err)
	assert.Equal(t, chathub.Stats{Waiting: 1, ActivePairings: 1, PendingReports: 1}, st)
}

// TestConcurrentSessions drives random operations from many goroutines and
// checks that nobody ends up both paired and waiting, and that pairings stay symmetric.
func TestConcurrentSessions(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newTestManager()
	const participants = 20

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for i := 0; i < 200; i++ {
				id := int64(rng.Intn(participants) + 1)
				switch rng.Intn(4) {
				case 0:
					_, _ = m.Connect(ctx, id)
				case 1:
					_, _ = m.Disconnect(ctx, id, rng.Intn(2) == 0)
				case 2:
					_, _ = m.Reconnect(ctx, id)
				case 3:
					_, _ = m.RelayIncoming(ctx, id, models.TextPayload("ping"))
				}
			}
		}(int64(g))
	}
	wg.Wait()

	for id := int64(1); id <= participants; id++ {
		partner, paired := m.ActivePartnerOf(id)
		assert.False(t, paired && m.IsWaiting(id), "participant %d is paired and waiting", id)
		if paired {
			back, ok := m.ActivePartnerOf(partner)
			assert.True(t, ok)
			assert.Equal(t, id, back)
		}
	}
}

func TestHandleIntent(t *testing.T) {
	ctx := context.Background()
	m, transport, _ := newTestManager()

	require.NoError(t, m.HandleIntent(ctx, -1, chathub.Intent{Type: chathub.IntentConnect}))
	require.NoError(t, m.HandleIntent(ctx, -2, chathub.Intent{Type: chathub.IntentConnect}))

	payload := models.TextPayload("hello")
	require.NoError(t, m.HandleIntent(ctx, -1, chathub.Intent{Type: chathub.IntentMessage, Payload: &payload}))
	assert.Contains(t, transport.deliveries, delivery{Recipient: -2, Payload: payload})

	err := m.HandleIntent(ctx, -1, chathub.Intent{Type: chathub.IntentMessage})
	assert.ErrorIs(t, err, models.ErrUnsupportedPayload)

	err = m.HandleIntent(ctx, -1, chathub.Intent{Type: "dance"})
	assert.ErrorIs(t, err, models.ErrInvalidCommand)

	require.NoError(t, m.HandleIntent(ctx, -2, chathub.Intent{Type: chathub.IntentReport, Reason: "rude", Payload: &payload}))
	require.NoError(t, m.HandleIntent(ctx, -2, chathub.Intent{Type: chathub.IntentDisconnect}))
	_, paired := m.ActivePartnerOf(-1)
	assert.False(t, paired)
}

func TestLeave_DisconnectsLiveClient(t *testing.T) {
	ctx := context.Background()
	m, transport, _ := newTestManager()
	client := newFakeClient(-1, 8)
	m.Router.Register(client)
	_, _ = m.Connect(ctx, -1)
	_, _ = m.Connect(ctx, 2)

	m.Leave(ctx, client)

	assert.True(t, client.isClosed())
	_, paired := m.ActivePartnerOf(2)
	assert.False(t, paired)
	assert.Contains(t, transport.noticesFor(2), models.NoticePartnerDisconnected)
}

func TestDescribe(t *testing.T) {
	m, _, _ := newTestManager()

	assert.Equal(t, "error_banned:flood", m.Describe(&models.BannedError{Reason: "flood"}))
	assert.Equal(t, models.NoticeNotInChat, m.Describe(models.ErrNotInChat))
	assert.Equal(t, models.ErrorKeyGeneric, m.Describe(fmt.Errorf("boom")))
}
