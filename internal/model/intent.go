// Package model defines the core domain types shared across the triagem services.
package model

// Intent identifies the classified meaning of a patient reply.
type Intent string

// Business intents.
const (
	// IntentConfirmed means the patient confirmed attendance.
	IntentConfirmed Intent = "confirmed"
	// IntentDeclined means the patient cannot attend.
	IntentDeclined Intent = "declined"
	// IntentNotScheduled means the patient says they never booked the appointment.
	IntentNotScheduled Intent = "not_scheduled"
	// IntentReagendamento means the patient wants the cancelled appointment rescheduled.
	IntentReagendamento Intent = "reagendamento"
	// IntentPacienteSolicitou means the patient themselves requested the cancellation.
	IntentPacienteSolicitou Intent = "paciente_solicitou"
	// IntentSemReagendamento means the patient does not want a new appointment.
	IntentSemReagendamento Intent = "sem_reagendamento"
	// IntentHumanAgent means the patient asked for a human operator.
	IntentHumanAgent Intent = "human_agent"
	// IntentFreeTalk is the catch-all for unstructured conversation.
	IntentFreeTalk Intent = "free_talk"
	// IntentUnknown is returned for empty or unclassifiable input.
	IntentUnknown Intent = "unknown"
)

// Transitional intents emitted by the direct-number detector. They carry the
// digit the patient typed and are resolved into a business intent by the
// context mapper; without a known context they are returned as-is so the
// caller can resolve them later.
const (
	IntentNumber1 Intent = "number_1"
	IntentNumber2 Intent = "number_2"
	IntentNumber3 Intent = "number_3"
)

// IsRawNumber reports whether the intent is an unresolved numeric reply.
func (i Intent) IsRawNumber() bool {
	return i == IntentNumber1 || i == IntentNumber2 || i == IntentNumber3
}

// ContextType identifies which conversational flow a reply belongs to.
type ContextType string

const (
	// ContextConfirmacao is the confirmation flow for an upcoming appointment.
	ContextConfirmacao ContextType = "confirmacao"
	// ContextDesmarcacao is the follow-up flow after a cancellation.
	ContextDesmarcacao ContextType = "desmarcacao"
	// ContextNone means no conversational context is available.
	ContextNone ContextType = ""
)

// Known reports whether the context is one of the recognized flows.
func (c ContextType) Known() bool {
	return c == ContextConfirmacao || c == ContextDesmarcacao
}
