package conversation

import (
	"testing"
	"time"

	"github.com/hmasp-digital/triagem/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPhone = "+5511987654321"

// newTestStore returns a store with a controllable clock.
func newTestStore(start time.Time) (*Store, *time.Time) {
	now := start
	s := NewStore()
	s.clock = func() time.Time { return now }
	return s, &now
}

func testMessage(consultaID int64, typ model.ContextType, sentAt time.Time) model.SystemMessage {
	return model.SystemMessage{
		ID:            "msg_test",
		Type:          typ,
		ConsultaID:    consultaID,
		Especialidade: "Endocrinologia",
		DataHora:      "20/12/2025 14:00",
		SentAt:        sentAt,
	}
}

func TestStore_GetMissing(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.Get(testPhone))
}

func TestStore_UpsertNormalizesPhone(t *testing.T) {
	s := NewStore()

	c := s.Upsert("55 (11) 98765-4321", 42, "A000111")
	require.NotNil(t, c)
	assert.Equal(t, testPhone, c.Phone)
	assert.Equal(t, int64(42), c.PacienteID)
	assert.Equal(t, "A000111", c.Prontuario)
	assert.Equal(t, StatusIdle, c.Status)

	// Different spellings of the same number hit the same context.
	assert.NotNil(t, s.Get("11987654321"))
}

func TestStore_RegisterSystemMessage(t *testing.T) {
	start := time.Date(2025, 12, 8, 15, 30, 0, 0, time.UTC)
	s, _ := newTestStore(start)

	c := s.RegisterSystemMessage(testPhone, testMessage(111, model.ContextConfirmacao, start))
	require.NotNil(t, c)
	require.NotNil(t, c.LastSystemMessage)
	assert.Equal(t, int64(111), c.LastSystemMessage.ConsultaID)
	assert.Equal(t, StatusAwaitingResponse, c.Status)
	assert.Len(t, c.Pending, 1)
}

func TestStore_MarkResponded(t *testing.T) {
	start := time.Date(2025, 12, 8, 15, 30, 0, 0, time.UTC)
	s, _ := newTestStore(start)

	s.RegisterSystemMessage(testPhone, testMessage(111, model.ContextConfirmacao, start))
	s.IncrementFailedAttempts(testPhone)

	c := s.MarkResponded(testPhone, 111)
	require.NotNil(t, c)
	assert.True(t, c.LastSystemMessage.Responded)
	assert.Empty(t, c.Pending)
	assert.Equal(t, StatusIdle, c.Status)
	assert.Zero(t, c.FailedAttempts, "answering resets the failure counter")

	assert.Nil(t, s.MarkResponded("+5521999990000", 1), "unknown phone")
}

func TestStore_Ambiguity(t *testing.T) {
	start := time.Date(2025, 12, 8, 15, 30, 0, 0, time.UTC)
	s, now := newTestStore(start)

	assert.False(t, s.CheckAmbiguity(testPhone).HasAmbiguity())

	s.RegisterSystemMessage(testPhone, testMessage(111, model.ContextConfirmacao, start))
	assert.False(t, s.CheckAmbiguity(testPhone).HasAmbiguity(), "one pending message is unambiguous")

	*now = start.Add(time.Minute)
	second := testMessage(222, model.ContextDesmarcacao, *now)
	second.Especialidade = "Cardiologia"
	s.RegisterSystemMessage(testPhone, second)

	ambiguity := s.CheckAmbiguity(testPhone)
	assert.True(t, ambiguity.HasAmbiguity())
	assert.Equal(t, 2, ambiguity.Pending)

	clarification := s.AmbiguityClarification(testPhone)
	assert.Contains(t, clarification, "*2 mensagens pendentes*")
	assert.Contains(t, clarification, "📋 Confirmação - Endocrinologia")
	assert.Contains(t, clarification, "⚠️ Desmarcação - Cardiologia")

	// Oldest message is resent first.
	next := s.NextPending(testPhone)
	require.NotNil(t, next)
	assert.Equal(t, int64(111), next.ConsultaID)

	s.MarkResponded(testPhone, 111)
	assert.False(t, s.CheckAmbiguity(testPhone).HasAmbiguity())
	assert.Empty(t, s.AmbiguityClarification(testPhone))
}

func TestStore_FailedAttempts(t *testing.T) {
	s := NewStore()

	assert.Equal(t, 1, s.IncrementFailedAttempts(testPhone))
	assert.Equal(t, 2, s.IncrementFailedAttempts(testPhone))
	s.ResetFailedAttempts(testPhone)
	assert.Equal(t, 1, s.IncrementFailedAttempts(testPhone))
}

func TestStore_Reschedules(t *testing.T) {
	start := time.Date(2025, 12, 8, 15, 30, 0, 0, time.UTC)
	s, now := newTestStore(start)

	s.Upsert(testPhone, 42, "A000111")
	req := s.RegisterReschedule(testPhone, RescheduleRequest{
		OriginalConsultaID: 111,
		Especialidade:      "Endocrinologia",
		NomePaciente:       "Maria Silva",
		Source:             "chat_response",
	})
	require.NotEmpty(t, req.ID)
	assert.Equal(t, ReschedulePending, req.Status)
	assert.Equal(t, int64(42), req.PacienteID, "patient id copied from context")
	assert.Equal(t, "A000111", req.Prontuario)

	pending := s.PendingReschedules(testPhone, "Endocrinologia")
	require.Len(t, pending, 1)
	assert.Empty(t, s.PendingReschedules(testPhone, "Cardiologia"))

	// Requests age out of the linking window.
	*now = start.Add(RescheduleWindow + time.Hour)
	assert.Empty(t, s.PendingReschedules(testPhone, ""))

	// Fulfilling closes the request and guards the new appointment.
	*now = start.Add(time.Hour)
	fulfilled := s.FulfillReschedule(testPhone, req.ID, 999)
	require.NotNil(t, fulfilled)
	assert.Equal(t, RescheduleFulfilled, fulfilled.Status)
	assert.Equal(t, int64(999), fulfilled.NewConsultaID)
	assert.Empty(t, s.PendingReschedules(testPhone, ""))

	assert.True(t, s.IsRecentReschedule(testPhone, 999))
	assert.False(t, s.IsRecentReschedule(testPhone, 111))

	*now = now.Add(49 * time.Hour)
	assert.False(t, s.IsRecentReschedule(testPhone, 999), "guard expires")
}

func TestStore_RescheduleIDsUniqueWithinMillisecond(t *testing.T) {
	// The clock is frozen, so the timestamp component is identical for
	// every request; IDs must still come out distinct.
	s, _ := newTestStore(time.Date(2025, 12, 8, 15, 30, 0, 0, time.UTC))

	seen := make(map[string]bool)
	for i := int64(1); i <= 5; i++ {
		req := s.RegisterReschedule(testPhone, RescheduleRequest{OriginalConsultaID: i})
		assert.False(t, seen[req.ID], "duplicate reschedule ID %s", req.ID)
		seen[req.ID] = true
	}
}

func TestStore_CleanStale(t *testing.T) {
	start := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	s, now := newTestStore(start)

	s.Upsert(testPhone, 0, "")
	*now = start.Add(8 * 24 * time.Hour)
	s.Upsert("+5521988887777", 0, "")

	removed := s.CleanStale(7 * 24 * time.Hour)
	assert.Equal(t, 1, removed)
	assert.Nil(t, s.Get(testPhone))
	assert.NotNil(t, s.Get("+5521988887777"))
}

func TestStore_Stats(t *testing.T) {
	start := time.Date(2025, 12, 8, 15, 30, 0, 0, time.UTC)
	s, _ := newTestStore(start)

	s.Upsert("+5511911112222", 0, "")
	s.RegisterSystemMessage(testPhone, testMessage(111, model.ContextConfirmacao, start))
	s.RegisterSystemMessage(testPhone, testMessage(222, model.ContextDesmarcacao, start))
	s.RegisterReschedule("+5521988887777", RescheduleRequest{OriginalConsultaID: 333})

	st := s.Stats()
	assert.Equal(t, 3, st.Total)
	assert.Equal(t, 1, st.WithPending)
	assert.Equal(t, 1, st.WithAmbiguity)
	assert.Equal(t, 1, st.WithReschedules)
}

func TestStore_SnapshotsAreIsolated(t *testing.T) {
	start := time.Date(2025, 12, 8, 15, 30, 0, 0, time.UTC)
	s, _ := newTestStore(start)

	s.RegisterSystemMessage(testPhone, testMessage(111, model.ContextConfirmacao, start))

	c := s.Get(testPhone)
	c.Pending[0].Responded = true
	c.LastSystemMessage.Responded = true

	fresh := s.Get(testPhone)
	assert.False(t, fresh.Pending[0].Responded, "mutating a snapshot must not leak into the store")
	assert.False(t, fresh.LastSystemMessage.Responded)
}
