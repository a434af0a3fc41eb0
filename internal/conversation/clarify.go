package conversation

import (
	"fmt"
	"strings"

	"github.com/hmasp-digital/triagem/internal/model"
)

// AmbiguityClarification builds the message explaining to a patient with
// multiple unanswered notifications that each one will be resent for an
// individual reply. Returns the empty string when there is no ambiguity.
func (s *Store) AmbiguityClarification(rawPhone string) string {
	ambiguity := s.CheckAmbiguity(rawPhone)
	if !ambiguity.HasAmbiguity() {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Percebi que você tem *%d mensagens pendentes*. Vou reenviar cada uma para que confirme individualmente.\n\n", ambiguity.Pending)

	for i, msg := range ambiguity.Messages {
		tipo := "📋 Confirmação"
		if msg.Type == model.ContextDesmarcacao {
			tipo = "⚠️ Desmarcação"
		}
		fmt.Fprintf(&b, "%d. %s - %s em %s\n", i+1, tipo, msg.Especialidade, msg.DataHora)
	}

	b.WriteString("\nVou reenviar a primeira. Responda à primeira para começar.")
	return b.String()
}
