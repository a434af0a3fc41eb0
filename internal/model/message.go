package model

import "time"

// SystemMessage records a notification the system sent to a patient. The most
// recent one is the source of truth for interpreting the patient's next reply.
type SystemMessage struct {
	SentAt        time.Time
	RespondedAt   *time.Time
	ID            string
	Type          ContextType
	Especialidade string
	Medico        string
	// DataHora is the appointment date/time exactly as shown to the patient
	// (e.g. "20/12/2025 14:00").
	DataHora   string
	ConsultaID int64
	Responded  bool
}
