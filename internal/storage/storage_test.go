package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmasp-digital/triagem/internal/badge"
	"github.com/hmasp-digital/triagem/internal/common"
	"github.com/hmasp-digital/triagem/internal/conversation"
	"github.com/hmasp-digital/triagem/internal/inbound"
	"github.com/hmasp-digital/triagem/internal/model"
)

const testPhone = "+5511987654321"

// Helper function to create migrated test storage.
func createTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func testConversation(now time.Time) *conversation.Context {
	responded := now.Add(-time.Hour)
	return &conversation.Context{
		Phone:          testPhone,
		PacienteID:     42,
		Prontuario:     "A000111",
		Status:         conversation.StatusAwaitingResponse,
		FailedAttempts: 1,
		LastConfidence: 0.85,
		CreatedAt:      now.Add(-2 * time.Hour),
		UpdatedAt:      now,
		LastSystemMessage: &model.SystemMessage{
			ID:            "msg_2",
			Type:          model.ContextConfirmacao,
			ConsultaID:    200,
			Especialidade: "Cardiologia",
			Medico:        "Dra. Sousa",
			DataHora:      "20/12/2025 14:00",
			SentAt:        now.Add(-30 * time.Minute),
		},
		Pending: []model.SystemMessage{
			{
				ID:            "msg_1",
				Type:          model.ContextDesmarcacao,
				ConsultaID:    100,
				Especialidade: "Endocrinologia",
				DataHora:      "18/12/2025 09:00",
				SentAt:        now.Add(-90 * time.Minute),
			},
			{
				ID:            "msg_2",
				Type:          model.ContextConfirmacao,
				ConsultaID:    200,
				Especialidade: "Cardiologia",
				Medico:        "Dra. Sousa",
				DataHora:      "20/12/2025 14:00",
				SentAt:        now.Add(-30 * time.Minute),
			},
		},
		Reschedules: []conversation.RescheduleRequest{
			{
				ID:                 "resch_1",
				OriginalConsultaID: 100,
				Especialidade:      "Endocrinologia",
				Source:             "chat_response",
				Status:             conversation.ReschedulePending,
				CreatedAt:          now.Add(-time.Hour),
			},
			{
				ID:                 "resch_0",
				OriginalConsultaID: 50,
				NewConsultaID:      51,
				Especialidade:      "Dermatologia",
				Status:             conversation.RescheduleFulfilled,
				CreatedAt:          now.Add(-48 * time.Hour),
				FulfilledAt:        &responded,
			},
		},
	}
}

func TestSaveAndGetContext(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	now := time.Date(2025, 12, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveContext(ctx, testConversation(now)))

	loaded, err := store.GetContext(ctx, testPhone)
	require.NoError(t, err)

	assert.Equal(t, testPhone, loaded.Phone)
	assert.Equal(t, int64(42), loaded.PacienteID)
	assert.Equal(t, "A000111", loaded.Prontuario)
	assert.Equal(t, conversation.StatusAwaitingResponse, loaded.Status)
	assert.Equal(t, 1, loaded.FailedAttempts)
	assert.InDelta(t, 0.85, loaded.LastConfidence, 0.001)

	require.NotNil(t, loaded.LastSystemMessage)
	assert.Equal(t, int64(200), loaded.LastSystemMessage.ConsultaID)
	assert.Equal(t, "Dra. Sousa", loaded.LastSystemMessage.Medico)
	assert.Len(t, loaded.Pending, 2)

	require.Len(t, loaded.Reschedules, 2)
	assert.Equal(t, conversation.RescheduleFulfilled, loaded.Reschedules[0].Status)
	assert.Equal(t, int64(51), loaded.Reschedules[0].NewConsultaID)
	assert.Equal(t, conversation.ReschedulePending, loaded.Reschedules[1].Status)
}

func TestSaveContextUpsert(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	now := time.Date(2025, 12, 10, 12, 0, 0, 0, time.UTC)

	c := testConversation(now)
	require.NoError(t, store.SaveContext(ctx, c))

	c.FailedAttempts = 0
	c.Status = conversation.StatusIdle
	c.Pending = nil
	require.NoError(t, store.SaveContext(ctx, c))

	loaded, err := store.GetContext(ctx, testPhone)
	require.NoError(t, err)
	assert.Equal(t, conversation.StatusIdle, loaded.Status)
	assert.Equal(t, 0, loaded.FailedAttempts)
	// A message dropped from Pending is settled; the round-trip must not
	// resurrect it even when its Responded flag lagged behind.
	assert.Empty(t, loaded.Pending)
	require.NotNil(t, loaded.LastSystemMessage)
	assert.True(t, loaded.LastSystemMessage.Responded)

	memory := conversation.NewStore()
	memory.Restore(loaded)
	assert.False(t, memory.CheckAmbiguity(testPhone).HasAmbiguity())
	assert.Nil(t, memory.NextPending(testPhone))
}

func TestGetContextMissing(t *testing.T) {
	store := createTestStorage(t)

	_, err := store.GetContext(context.Background(), "+5511900000000")
	assert.ErrorIs(t, err, common.ErrContextNotFound)
}

func TestLoadContexts(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.SaveContext(ctx, testConversation(now)))
	other := testConversation(now)
	other.Phone = "+5521912345678"
	require.NoError(t, store.SaveContext(ctx, other))

	contexts, err := store.LoadContexts(ctx)
	require.NoError(t, err)
	require.Len(t, contexts, 2)

	// Both fixtures carry reschedule requests with identical IDs; requests
	// are keyed per phone, so the shared IDs must round-trip intact.
	for _, c := range contexts {
		assert.Len(t, c.Reschedules, 2)
	}
}

func TestDeleteContext(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveContext(ctx, testConversation(time.Now())))
	require.NoError(t, store.DeleteContext(ctx, testPhone))

	_, err := store.GetContext(ctx, testPhone)
	assert.ErrorIs(t, err, common.ErrContextNotFound)
}

func TestBadgeEventLifecycle(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	event, err := store.SaveBadgeEvent(ctx, BadgeEvent{
		ConsultaID: 300,
		Phone:      testPhone,
		Badge:      badge.Desmarcar,
		Card:       badge.CardNaoPoderaComparecer,
	})
	require.NoError(t, err)
	assert.NotZero(t, event.ID)

	open, err := store.OpenBadges(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, badge.Desmarcar.Label, open[0].Badge.Label)

	require.NoError(t, store.ResolveBadge(ctx, event.ID, badge.Desmarcada))

	open, err = store.OpenBadges(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestResolveBadgeRejectsInvalidTransition(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()

	event, err := store.SaveBadgeEvent(ctx, BadgeEvent{
		ConsultaID: 301,
		Phone:      testPhone,
		Badge:      badge.Desmarcar,
		Card:       badge.CardNaoPoderaComparecer,
	})
	require.NoError(t, err)

	err = store.ResolveBadge(ctx, event.ID, badge.Reagendada)
	assert.ErrorIs(t, err, ErrBadgeTransition)

	// Resolving twice is also rejected.
	require.NoError(t, store.ResolveBadge(ctx, event.ID, badge.Desmarcada))
	err = store.ResolveBadge(ctx, event.ID, badge.Desmarcada)
	assert.ErrorIs(t, err, ErrBadgeTransition)
}

func TestResolveBadgeMissing(t *testing.T) {
	store := createTestStorage(t)

	err := store.ResolveBadge(context.Background(), 9999, badge.Desmarcada)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestInboundAuditLog(t *testing.T) {
	store := createTestStorage(t)
	ctx := context.Background()
	base := time.Date(2025, 12, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		err := store.RecordInbound(ctx, inbound.AuditRecord{
			ReceivedAt: base.Add(time.Duration(i) * time.Minute),
			Phone:      testPhone,
			Body:       "1",
			Intent:     model.IntentConfirmed,
			Method:     model.MethodDirectNumber,
			Confidence: 1.0,
			Action:     inbound.ActionAutoProcess,
			Response:   "ok",
			Handled:    true,
		})
		require.NoError(t, err)
	}

	records, err := store.RecentInbound(ctx, testPhone, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	// Most recent first.
	assert.True(t, records[0].ReceivedAt.After(records[1].ReceivedAt))
	assert.Equal(t, model.IntentConfirmed, records[0].Intent)
	assert.Equal(t, inbound.ActionAutoProcess, records[0].Action)
}

func TestRecordInboundValidation(t *testing.T) {
	store := createTestStorage(t)

	err := store.RecordInbound(context.Background(), inbound.AuditRecord{Phone: testPhone})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestMigrateIsIdempotent(t *testing.T) {
	store := createTestStorage(t)
	require.NoError(t, store.Migrate(context.Background()))
}
