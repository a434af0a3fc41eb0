// Package inbound processes patient replies end to end: phone normalization,
// context lookup, ambiguity detection, intent classification, compatibility
// validation, workflow updates and the automated response back to the patient.
package inbound

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hmasp-digital/triagem/internal/badge"
	"github.com/hmasp-digital/triagem/internal/classification"
	"github.com/hmasp-digital/triagem/internal/common"
	"github.com/hmasp-digital/triagem/internal/conversation"
	"github.com/hmasp-digital/triagem/internal/model"
	"github.com/hmasp-digital/triagem/internal/phone"
)

// maxFailedAttempts is how many clarification rounds a patient gets before
// the conversation is closed out politely.
const maxFailedAttempts = 3

// Sender delivers outbound messages to patients. The messaging transport
// (WhatsApp gateway or the in-house chat service) implements it.
type Sender interface {
	Send(ctx context.Context, phoneE164, text string) error
}

// Auditor records processed replies for later review. The persistence layer
// implements it; a nil auditor disables auditing.
type Auditor interface {
	RecordInbound(ctx context.Context, rec AuditRecord) error
}

// AuditRecord is one processed reply.
type AuditRecord struct {
	ReceivedAt time.Time
	Phone      string
	Body       string
	Intent     model.Intent
	Method     model.Method
	Action     Action
	Response   string
	Confidence float64
	Handled    bool
}

// Action describes how the pipeline resolved a reply.
type Action string

// Pipeline actions.
const (
	ActionAmbiguityClarification Action = "ambiguity_clarification"
	ActionPatientInitiated       Action = "patient_initiated"
	ActionIncompatibleIntent     Action = "incompatible_intent"
	ActionAutoProcess            Action = "auto_process"
	ActionRequestConfirmation    Action = "request_confirmation"
	ActionFallback               Action = "fallback"
	ActionConversationClosed     Action = "conversation_closed"
)

// Message is a raw inbound message from the transport. From may carry the
// transport's chat suffix (e.g. "5511999999999@c.us").
type Message struct {
	ReceivedAt time.Time
	From       string
	Body       string
}

// Result reports what the pipeline did with one message.
type Result struct {
	Classification *model.Result
	Outcome        *badge.Outcome
	ResendPending  *model.SystemMessage
	Phone          string
	Response       string
	Action         Action
	Handled        bool
}

// Handler wires the classifier, the conversation store, the badge rules and
// the outbound transport into the reply-processing pipeline.
type Handler struct {
	classifier *classification.Classifier
	contexts   *conversation.Store
	sender     Sender
	auditor    Auditor
	retryOpts  common.RetryOptions
}

// NewHandler creates a pipeline handler. The auditor may be nil.
func NewHandler(classifier *classification.Classifier, contexts *conversation.Store, sender Sender, auditor Auditor) *Handler {
	return &Handler{
		classifier: classifier,
		contexts:   contexts,
		sender:     sender,
		auditor:    auditor,
		retryOpts: common.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
		},
	}
}

const welcomeMessage = "✅ *Olá! Agradecemos o contato.*\n\n" +
	"Este é nosso sistema automatizado de confirmação de presença e desmarcação de consultas.\n\n" +
	"No momento, utilizamos este canal exclusivamente para:\n" +
	"• Confirmação de presença em consultas agendadas\n" +
	"• Desmarcação de consultas\n\n" +
	"Para outros assuntos, por favor entre em contato com a *Central de Marcação de Consultas* pelos nossos canais de atendimento.\n\n" +
	"Agradecemos a compreensão.\n\n" +
	"_HMASP - Central de Marcação de Consultas_"

const closingMessage = "🙏 *Agradecemos seu contato!*\n\n" +
	"Percebemos que houve dificuldade em processar sua resposta.\n\n" +
	"Se você possui dúvidas sobre sua consulta ou precisa de assistência, por favor entre em contato com a *Central de Marcação de Consultas* através dos nossos canais oficiais de atendimento.\n\n" +
	"_Estamos à disposição._\n\n" +
	"_HMASP - Central de Marcação de Consultas_"

// Process runs one inbound message through the pipeline. The returned Result
// always describes what happened; the error reports delivery or persistence
// failures, never classification ones.
func (h *Handler) Process(ctx context.Context, msg Message) (*Result, error) {
	raw := strings.TrimSuffix(msg.From, "@c.us")
	number := phone.Normalize(raw)
	if !number.Valid {
		return nil, fmt.Errorf("%w: unparseable sender %q", common.ErrInvalidPhone, msg.From)
	}

	result := &Result{Phone: number.E164}

	slog.Info("inbound message received",
		"phone", number.E164,
		"length", len(msg.Body))

	convo := h.contexts.Get(number.E164)
	if convo == nil {
		convo = h.contexts.Upsert(number.E164, 0, "")
	}

	// More than one unanswered notification: a bare reply cannot be
	// attributed, so ask and resend one at a time.
	if ambiguity := h.contexts.CheckAmbiguity(number.E164); ambiguity.HasAmbiguity() {
		clarification := h.contexts.AmbiguityClarification(number.E164)
		result.Action = ActionAmbiguityClarification
		result.Response = clarification
		result.ResendPending = h.contexts.NextPending(number.E164)
		result.Handled = true

		err := h.send(ctx, number.E164, clarification)
		return result, h.finish(ctx, msg, result, err)
	}

	last := convo.LastSystemMessage
	if last == nil {
		// Patient started the conversation; nothing to classify against.
		result.Action = ActionPatientInitiated
		result.Response = welcomeMessage
		result.Handled = true

		err := h.send(ctx, number.E164, welcomeMessage)
		return result, h.finish(ctx, msg, result, err)
	}

	cls := h.classifier.Classify(msg.Body, last.Type)
	result.Classification = &cls
	h.contexts.RegisterInbound(number.E164, msg.Body, &cls)

	slog.Info("intent classified",
		"phone", number.E164,
		"intent", cls.Intent,
		"confidence", cls.Confidence,
		"method", cls.Method)

	rules := h.classifier.Rules()

	switch {
	case cls.Confidence >= rules.HighConfidence:
		if !classification.IsIntentCompatibleWithContext(cls.Intent, last.Type) {
			return h.handleIncompatible(ctx, msg, result, last)
		}
		return h.handleHighConfidence(ctx, msg, result, last)

	case cls.Confidence >= rules.MediumConfidence:
		confirmation := h.classifier.ClarificationMessage(cls, last)
		h.contexts.IncrementFailedAttempts(number.E164)

		result.Action = ActionRequestConfirmation
		result.Response = confirmation
		result.Handled = true

		err := h.send(ctx, number.E164, confirmation)
		return result, h.finish(ctx, msg, result, err)

	default:
		return h.handleLowConfidence(ctx, msg, result, last)
	}
}

func (h *Handler) handleIncompatible(ctx context.Context, msg Message, result *Result, last *model.SystemMessage) (*Result, error) {
	slog.Warn("intent incompatible with context",
		"phone", result.Phone,
		"intent", result.Classification.Intent,
		"context", last.Type)

	response := fmt.Sprintf(
		"Desculpe, não entendi sua resposta. Por favor, responda à última mensagem que enviamos sobre %s em %s.",
		last.Especialidade, last.DataHora)

	result.Action = ActionIncompatibleIntent
	result.Response = response

	err := h.send(ctx, result.Phone, response)
	return result, h.finish(ctx, msg, result, err)
}

func (h *Handler) handleHighConfidence(ctx context.Context, msg Message, result *Result, last *model.SystemMessage) (*Result, error) {
	cls := result.Classification

	// A decline right after a reschedule we just fulfilled would cancel the
	// appointment the patient asked for; hand it to an operator instead.
	if cls.Intent == model.IntentDeclined && h.contexts.IsRecentReschedule(result.Phone, last.ConsultaID) {
		slog.Warn("decline on recently rescheduled appointment, deferring to operator",
			"phone", result.Phone,
			"consulta_id", last.ConsultaID)

		result.Action = ActionIncompatibleIntent
		result.Handled = false
		return result, h.finish(ctx, msg, result, nil)
	}

	outcome, err := badge.ForIntent(cls.Intent, last.Type, last.ConsultaID)
	if err != nil {
		// Compatible but unmapped (e.g. human_agent): no workflow change,
		// just keep the conversation open for an operator.
		result.Action = ActionFallback
		result.Handled = true
		return result, h.finish(ctx, msg, result, nil)
	}

	result.Outcome = &outcome
	result.Action = ActionAutoProcess
	result.Response = outcome.AutoResponse
	result.Handled = true

	if cls.Intent == model.IntentReagendamento {
		h.contexts.RegisterReschedule(result.Phone, conversation.RescheduleRequest{
			OriginalConsultaID: last.ConsultaID,
			Especialidade:      last.Especialidade,
			Source:             "chat_response",
		})
	}

	h.contexts.MarkResponded(result.Phone, last.ConsultaID)
	h.contexts.ResetFailedAttempts(result.Phone)

	sendErr := h.send(ctx, result.Phone, outcome.AutoResponse)
	return result, h.finish(ctx, msg, result, sendErr)
}

func (h *Handler) handleLowConfidence(ctx context.Context, msg Message, result *Result, last *model.SystemMessage) (*Result, error) {
	attempts := h.contexts.IncrementFailedAttempts(result.Phone)

	if attempts >= maxFailedAttempts {
		result.Action = ActionConversationClosed
		result.Response = closingMessage
		result.Handled = true

		err := h.send(ctx, result.Phone, closingMessage)
		return result, h.finish(ctx, msg, result, err)
	}

	clarification := h.classifier.ClarificationMessage(*result.Classification, last)

	result.Action = ActionFallback
	result.Response = clarification
	result.Handled = true

	err := h.send(ctx, result.Phone, clarification)
	return result, h.finish(ctx, msg, result, err)
}

// send delivers a message with retries; transient transport failures are the
// norm on the hospital network.
func (h *Handler) send(ctx context.Context, phoneE164, text string) error {
	if text == "" {
		return nil
	}
	return common.WithRetry(ctx, func() error {
		if err := h.sender.Send(ctx, phoneE164, text); err != nil {
			return fmt.Errorf("%w: %v", common.ErrSendFailed, err)
		}
		return nil
	}, h.retryOpts)
}

// finish records the audit trail and folds in any earlier pipeline error.
func (h *Handler) finish(ctx context.Context, msg Message, result *Result, pipelineErr error) error {
	if h.auditor != nil {
		rec := AuditRecord{
			ReceivedAt: msg.ReceivedAt,
			Phone:      result.Phone,
			Body:       msg.Body,
			Action:     result.Action,
			Response:   result.Response,
			Handled:    result.Handled,
		}
		if rec.ReceivedAt.IsZero() {
			rec.ReceivedAt = time.Now()
		}
		if result.Classification != nil {
			rec.Intent = result.Classification.Intent
			rec.Confidence = result.Classification.Confidence
			rec.Method = result.Classification.Method
		}
		if err := h.auditor.RecordInbound(ctx, rec); err != nil {
			slog.Error("failed to record inbound audit", "error", err, "phone", result.Phone)
		}
	}
	return pipelineErr
}
