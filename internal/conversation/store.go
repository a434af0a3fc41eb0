// Package conversation tracks per-patient conversation state: the last
// notification the system sent, pending notifications still awaiting a reply,
// failed clarification attempts and open reschedule requests. The store is the
// classifier's source of context and the guard against crossed replies when a
// patient has more than one notification outstanding.
package conversation

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/hmasp-digital/triagem/internal/model"
	"github.com/hmasp-digital/triagem/internal/phone"
)

// Status describes where a conversation currently stands.
type Status string

// Conversation statuses.
const (
	StatusIdle             Status = "idle"
	StatusAwaitingResponse Status = "awaiting_response"
)

// RescheduleStatus tracks the lifecycle of a reschedule request.
type RescheduleStatus string

// Reschedule request statuses.
const (
	ReschedulePending   RescheduleStatus = "pending"
	RescheduleFulfilled RescheduleStatus = "fulfilled"
	RescheduleCancelled RescheduleStatus = "cancelled"
)

// RescheduleWindow bounds how long a pending reschedule request can be
// linked to a newly booked appointment.
const RescheduleWindow = 72 * time.Hour

// rescheduleGuard is how long a rescheduled appointment is protected against
// the cancel → reschedule → cancel loop.
const rescheduleGuard = 48 * time.Hour

// RescheduleRequest is a patient's ask to have a cancelled appointment
// rebooked. Patient identifiers are copied onto the request so fulfilling it
// later needs no lookup into the original cancellation.
type RescheduleRequest struct {
	CreatedAt          time.Time
	FulfilledAt        *time.Time
	ID                 string
	Especialidade      string
	Prontuario         string
	NomePaciente       string
	Source             string
	Status             RescheduleStatus
	OriginalConsultaID int64
	NewConsultaID      int64
	PacienteID         int64
}

// rescheduleMark shields a rebooked appointment from the anti-loop window.
type rescheduleMark struct {
	ExpiresAt          time.Time
	NewConsultaID      int64
	OriginalConsultaID int64
}

// Inbound is the last message received from the patient.
type Inbound struct {
	ReceivedAt time.Time
	Text       string
	Intent     model.Intent
	Confidence float64
}

// Context is the full conversation state for one phone number.
type Context struct {
	CreatedAt         time.Time
	UpdatedAt         time.Time
	LastSystemMessage *model.SystemMessage
	LastInbound       *Inbound
	Phone             string
	Prontuario        string
	Status            Status
	Pending           []model.SystemMessage
	Reschedules       []RescheduleRequest
	marks             []rescheduleMark
	PacienteID        int64
	LastConfidence    float64
	FailedAttempts    int
}

// Ambiguity reports whether a patient has more than one unanswered
// notification, which makes a bare reply impossible to attribute.
type Ambiguity struct {
	Messages []model.SystemMessage
	Pending  int
}

// HasAmbiguity reports whether attribution needs clarification.
func (a Ambiguity) HasAmbiguity() bool {
	return a.Pending > 1
}

// Stats summarizes the store for operator dashboards.
type Stats struct {
	Total           int
	WithPending     int
	WithAmbiguity   int
	WithReschedules int
}

// Store holds conversation contexts keyed by E.164 phone number. All methods
// are safe for concurrent use.
type Store struct {
	clock    func() time.Time
	contexts map[string]*Context
	seq      uint64
	mu       sync.RWMutex
}

// NewStore creates an empty conversation store.
func NewStore() *Store {
	return &Store{
		contexts: make(map[string]*Context),
		clock:    time.Now,
	}
}

// key canonicalizes a phone number for map lookup, falling back to the raw
// string when it does not normalize (test numbers, short codes).
func key(rawPhone string) string {
	if n := phone.Normalize(rawPhone); n.Valid {
		return n.E164
	}
	return rawPhone
}

// Get returns a snapshot of the context for a phone, or nil if none exists.
func (s *Store) Get(rawPhone string) *Context {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contexts[key(rawPhone)]
	if !ok {
		return nil
	}
	return c.snapshot()
}

// Upsert creates the context for a phone if needed and updates the patient
// identifiers when provided. It returns a snapshot of the result.
func (s *Store) Upsert(rawPhone string, pacienteID int64, prontuario string) *Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.getOrCreateLocked(rawPhone)
	if pacienteID != 0 {
		c.PacienteID = pacienteID
	}
	if prontuario != "" {
		c.Prontuario = prontuario
	}
	c.UpdatedAt = s.clock()
	return c.snapshot()
}

func (s *Store) getOrCreateLocked(rawPhone string) *Context {
	k := key(rawPhone)
	if c, ok := s.contexts[k]; ok {
		return c
	}
	now := s.clock()
	c := &Context{
		Phone:     k,
		Status:    StatusIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.contexts[k] = c
	return c
}

// RegisterSystemMessage records a notification sent to the patient. It
// becomes the last system message and joins the pending list until answered.
func (s *Store) RegisterSystemMessage(rawPhone string, msg model.SystemMessage) *Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.getOrCreateLocked(rawPhone)
	now := s.clock()

	if msg.ID == "" {
		msg.ID = fmt.Sprintf("msg_%d", now.UnixMilli())
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = now
	}
	msg.Responded = false

	copied := msg
	c.LastSystemMessage = &copied
	c.Pending = append(c.Pending, msg)
	c.Status = StatusAwaitingResponse
	c.UpdatedAt = now

	slog.Debug("system message registered",
		"phone", c.Phone,
		"type", msg.Type,
		"consulta_id", msg.ConsultaID)

	return c.snapshot()
}

// RegisterInbound records a message received from the patient along with its
// classification, when one was made.
func (s *Store) RegisterInbound(rawPhone, text string, result *model.Result) *Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.getOrCreateLocked(rawPhone)
	now := s.clock()

	inbound := &Inbound{Text: text, ReceivedAt: now}
	if result != nil {
		inbound.Intent = result.Intent
		inbound.Confidence = result.Confidence
		c.LastConfidence = result.Confidence
	}
	c.LastInbound = inbound
	c.UpdatedAt = now

	return c.snapshot()
}

// MarkResponded marks the notification for the given appointment as answered
// and removes it from the pending list. Answering the last pending message
// returns the conversation to idle and resets the failure counter.
func (s *Store) MarkResponded(rawPhone string, consultaID int64) *Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contexts[key(rawPhone)]
	if !ok {
		slog.Warn("context not found for response", "phone", rawPhone)
		return nil
	}
	now := s.clock()

	if c.LastSystemMessage != nil && c.LastSystemMessage.ConsultaID == consultaID {
		c.LastSystemMessage.Responded = true
		c.LastSystemMessage.RespondedAt = &now
	}

	remaining := c.Pending[:0]
	for _, msg := range c.Pending {
		if msg.ConsultaID != consultaID {
			remaining = append(remaining, msg)
		}
	}
	c.Pending = remaining

	if len(c.Pending) == 0 {
		c.Status = StatusIdle
	}
	c.FailedAttempts = 0
	c.UpdatedAt = now

	return c.snapshot()
}

// CheckAmbiguity reports the unanswered notifications for a phone.
func (s *Store) CheckAmbiguity(rawPhone string) Ambiguity {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contexts[key(rawPhone)]
	if !ok {
		return Ambiguity{}
	}

	var pending []model.SystemMessage
	for _, msg := range c.Pending {
		if !msg.Responded {
			pending = append(pending, msg)
		}
	}
	return Ambiguity{Pending: len(pending), Messages: pending}
}

// NextPending returns the oldest unanswered notification, or nil.
func (s *Store) NextPending(rawPhone string) *model.SystemMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contexts[key(rawPhone)]
	if !ok || len(c.Pending) == 0 {
		return nil
	}

	pending := make([]model.SystemMessage, 0, len(c.Pending))
	for _, msg := range c.Pending {
		if !msg.Responded {
			pending = append(pending, msg)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].SentAt.Before(pending[j].SentAt) })

	oldest := pending[0]
	return &oldest
}

// IncrementFailedAttempts bumps the clarification failure counter and returns
// the new value.
func (s *Store) IncrementFailedAttempts(rawPhone string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.getOrCreateLocked(rawPhone)
	c.FailedAttempts++
	c.UpdatedAt = s.clock()
	return c.FailedAttempts
}

// ResetFailedAttempts clears the clarification failure counter.
func (s *Store) ResetFailedAttempts(rawPhone string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c, ok := s.contexts[key(rawPhone)]; ok {
		c.FailedAttempts = 0
		c.UpdatedAt = s.clock()
	}
}

// RegisterReschedule opens a reschedule request for the patient. Identifiers
// missing from the request are filled from the context.
func (s *Store) RegisterReschedule(rawPhone string, req RescheduleRequest) RescheduleRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.getOrCreateLocked(rawPhone)
	now := s.clock()

	if req.ID == "" {
		// The timestamp alone is only millisecond-unique; the sequence keeps
		// back-to-back requests from colliding.
		s.seq++
		req.ID = fmt.Sprintf("reagend_%d_%d", now.UnixMilli(), s.seq)
	}
	if req.PacienteID == 0 {
		req.PacienteID = c.PacienteID
	}
	if req.Prontuario == "" {
		req.Prontuario = c.Prontuario
	}
	req.Status = ReschedulePending
	req.CreatedAt = now

	c.Reschedules = append(c.Reschedules, req)
	c.UpdatedAt = now

	slog.Info("reschedule request registered",
		"phone", c.Phone,
		"request_id", req.ID,
		"especialidade", req.Especialidade)

	return req
}

// PendingReschedules lists open requests inside the linking window,
// optionally filtered by specialty.
func (s *Store) PendingReschedules(rawPhone, especialidade string) []RescheduleRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contexts[key(rawPhone)]
	if !ok {
		return nil
	}

	cutoff := s.clock().Add(-RescheduleWindow)
	var result []RescheduleRequest
	for _, req := range c.Reschedules {
		if req.Status != ReschedulePending || req.CreatedAt.Before(cutoff) {
			continue
		}
		if especialidade != "" && req.Especialidade != especialidade {
			continue
		}
		result = append(result, req)
	}
	return result
}

// FulfillReschedule closes a request, linking it to the newly booked
// appointment. Fulfilling also marks the new appointment as a recent
// reschedule so an immediate decline does not trigger another cancellation.
func (s *Store) FulfillReschedule(rawPhone, requestID string, newConsultaID int64) *RescheduleRequest {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contexts[key(rawPhone)]
	if !ok {
		return nil
	}
	now := s.clock()

	for i := range c.Reschedules {
		req := &c.Reschedules[i]
		if req.ID != requestID {
			continue
		}
		req.Status = RescheduleFulfilled
		req.NewConsultaID = newConsultaID
		req.FulfilledAt = &now

		c.marks = append(c.marks, rescheduleMark{
			NewConsultaID:      newConsultaID,
			OriginalConsultaID: req.OriginalConsultaID,
			ExpiresAt:          now.Add(rescheduleGuard),
		})
		c.UpdatedAt = now

		fulfilled := *req
		return &fulfilled
	}
	return nil
}

// IsRecentReschedule reports whether the appointment was rebooked inside the
// anti-loop guard window.
func (s *Store) IsRecentReschedule(rawPhone string, consultaID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.contexts[key(rawPhone)]
	if !ok {
		return false
	}

	now := s.clock()
	for _, m := range c.marks {
		if m.NewConsultaID == consultaID && m.ExpiresAt.After(now) {
			return true
		}
	}
	return false
}

// CleanStale removes contexts idle for longer than maxAge and returns how
// many were dropped.
func (s *Store) CleanStale(maxAge time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.clock().Add(-maxAge)
	removed := 0
	for k, c := range s.contexts {
		if c.UpdatedAt.Before(cutoff) {
			delete(s.contexts, k)
			removed++
		}
	}

	if removed > 0 {
		slog.Info("stale conversation contexts removed", "count", removed)
	}
	return removed
}

// All returns snapshots of every context, for listings and persistence.
func (s *Store) All() []*Context {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*Context, 0, len(s.contexts))
	for _, c := range s.contexts {
		result = append(result, c.snapshot())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Phone < result[j].Phone })
	return result
}

// Restore loads a previously persisted context into the store, replacing any
// existing entry for the same phone.
func (s *Store) Restore(c *Context) {
	if c == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contexts[key(c.Phone)] = c.snapshot()
}

// Stats summarizes the live contexts.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Stats
	for _, c := range s.contexts {
		st.Total++

		pending := 0
		for _, msg := range c.Pending {
			if !msg.Responded {
				pending++
			}
		}
		if pending > 0 {
			st.WithPending++
		}
		if pending > 1 {
			st.WithAmbiguity++
		}
		for _, req := range c.Reschedules {
			if req.Status == ReschedulePending {
				st.WithReschedules++
				break
			}
		}
	}
	return st
}

// snapshot copies a context so callers cannot mutate store state.
func (c *Context) snapshot() *Context {
	cp := *c
	if c.LastSystemMessage != nil {
		msg := *c.LastSystemMessage
		cp.LastSystemMessage = &msg
	}
	if c.LastInbound != nil {
		in := *c.LastInbound
		cp.LastInbound = &in
	}
	cp.Pending = append([]model.SystemMessage(nil), c.Pending...)
	cp.Reschedules = append([]RescheduleRequest(nil), c.Reschedules...)
	cp.marks = append([]rescheduleMark(nil), c.marks...)
	return &cp
}
