package storage_test

import (
	"context"
	"os"
	"testing"
	"time"

	"strangerchat/backend/internal/models"
	"strangerchat/backend/internal/storage"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// runStorageContract checks the behavior every Storage implementation shares.
// Participant IDs are offset by base so runs against a shared database do not collide.
func runStorageContract(t *testing.T, s storage.Storage, base int64) {
	ctx := context.Background()
	alice, bob, carol := base+1, base+2, base+3

	t.Run("participant is created once", func(t *testing.T) {
		p, err := s.SaveParticipantIfNotExists(ctx, alice, "alice")
		require.NoError(t, err)
		assert.Equal(t, "alice", p.Username)

		p, err = s.SaveParticipantIfNotExists(ctx, alice, "renamed")
		require.NoError(t, err)
		assert.Equal(t, "alice", p.Username, "existing record must not change")

		_, err = s.GetParticipant(ctx, base+999)
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("ban overwrite and delete", func(t *testing.T) {
		ban, err := s.GetBan(ctx, bob)
		require.NoError(t, err)
		assert.Nil(t, ban)

		require.NoError(t, s.SaveBan(ctx, &models.BanRecord{ParticipantID: bob, Reason: "first", BannedAt: time.Now()}))
		admin := alice
		require.NoError(t, s.SaveBan(ctx, &models.BanRecord{ParticipantID: bob, Reason: "second", BannedBy: &admin, BannedAt: time.Now()}))

		ban, err = s.GetBan(ctx, bob)
		require.NoError(t, err)
		require.NotNil(t, ban)
		assert.Equal(t, "second", ban.Reason)
		require.NotNil(t, ban.BannedBy)
		assert.Equal(t, alice, *ban.BannedBy)

		existed, err := s.DeleteBan(ctx, bob)
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = s.DeleteBan(ctx, bob)
		require.NoError(t, err)
		assert.False(t, existed)

		ban, err = s.GetBan(ctx, bob)
		require.NoError(t, err)
		assert.Nil(t, ban)
	})

	t.Run("admins", func(t *testing.T) {
		require.NoError(t, s.SaveAdmin(ctx, &models.Administrator{ParticipantID: carol, Username: "carol", AddedBy: alice, AddedAt: time.Now()}))
		a, err := s.GetAdmin(ctx, carol)
		require.NoError(t, err)
		require.NotNil(t, a)
		assert.Equal(t, alice, a.AddedBy)

		removed, err := s.DeleteAdmin(ctx, carol)
		require.NoError(t, err)
		assert.True(t, removed)

		a, err = s.GetAdmin(ctx, carol)
		require.NoError(t, err)
		assert.Nil(t, a)
	})

	t.Run("pairing lifecycle and message log", func(t *testing.T) {
		p := &models.Pairing{User1ID: alice, User2ID: bob, StartedAt: time.Now()}
		require.NoError(t, s.CreatePairing(ctx, p))
		require.NotZero(t, p.ID)

		found, err := s.FindOpenPairing(ctx, bob)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, p.ID, found.ID)

		open, err := s.GetOpenPairings(ctx)
		require.NoError(t, err)
		assert.Contains(t, pairingIDs(open), p.ID)

		for _, text := range []string{"one", "two"} {
			require.NoError(t, s.SaveMessage(ctx, &models.RelayedMessage{
				PairingID: p.ID, SenderID: alice, Kind: models.KindText, Text: text, SentAt: time.Now(),
			}))
		}
		msgs, err := s.GetPairingMessages(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, "one", msgs[0].Text)
		assert.Equal(t, "two", msgs[1].Text)

		require.NoError(t, s.ClosePairing(ctx, p.ID, time.Now()))
		assert.ErrorIs(t, s.ClosePairing(ctx, p.ID, time.Now()), models.ErrNotPaired)

		found, err = s.FindOpenPairing(ctx, bob)
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("report leaves pending exactly once", func(t *testing.T) {
		r := &models.Report{ReporterID: alice, ReportedID: bob, PairingID: 1, Reason: "spam", CreatedAt: time.Now()}
		r.SetSnapshot(models.TextPayload("buy now"))
		require.NoError(t, s.SaveReport(ctx, r))
		require.NotZero(t, r.ID)
		assert.Equal(t, models.ReportPending, r.Status)

		require.NoError(t, s.ResolveReport(ctx, r.ID, models.ReportAccepted, carol, time.Now()))
		err := s.ResolveReport(ctx, r.ID, models.ReportRejected, carol, time.Now())
		assert.ErrorIs(t, err, models.ErrAlreadyResolved)

		got, err := s.GetReport(ctx, r.ID)
		require.NoError(t, err)
		assert.Equal(t, models.ReportAccepted, got.Status)
		require.NotNil(t, got.ResolvedBy)
		assert.Equal(t, carol, *got.ResolvedBy)
		assert.Equal(t, "buy now", got.Snapshot().Text)

		_, err = s.GetReport(ctx, r.ID+1000)
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.ErrorIs(t, s.ResolveReport(ctx, r.ID+1000, models.ReportAccepted, carol, time.Now()), models.ErrNotFound)
	})
}

func pairingIDs(ps []models.Pairing) []uint {
	ids := make([]uint, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestMemoryStorage(t *testing.T) {
	runStorageContract(t, storage.NewMemoryStorage(), 0)
}

func TestMemoryStorage_CountReports(t *testing.T) {
	ctx := context.Background()
	s := storage.NewMemoryStorage()
	for i := 0; i < 3; i++ {
		require.NoError(t, s.SaveReport(ctx, &models.Report{ReporterID: 1, ReportedID: 2, Reason: "x"}))
	}
	require.NoError(t, s.ResolveReport(ctx, 1, models.ReportRejected, 9, time.Now()))

	pending, err := s.CountReports(ctx, models.ReportPending)
	require.NoError(t, err)
	assert.EqualValues(t, 2, pending)

	rejected, err := s.CountReports(ctx, models.ReportRejected)
	require.NoError(t, err)
	assert.EqualValues(t, 1, rejected)
}

// TestPostgresStorage runs the contract against a real database.
// Set TEST_DATABASE_DSN (and optionally TEST_REDIS_ADDR) to enable it.
func TestPostgresStorage(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}
	logger := zap.NewNop()
	require.NoError(t, storage.Migrate(dsn, logger))

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	var rdb *redis.Client
	if addr := os.Getenv("TEST_REDIS_ADDR"); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr})
		t.Cleanup(func() { _ = rdb.Close() })
	}

	base := time.Now().UnixNano() % 1_000_000_000 * 10
	runStorageContract(t, storage.NewStorageService(db, rdb, logger, time.Minute), base)
}
