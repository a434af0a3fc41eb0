package classification

import (
	"fmt"

	"github.com/hmasp-digital/triagem/internal/model"
)

const messageSignature = "_HMASP - Central de Marcação de Consultas_"

var intentLabels = map[model.Intent]string{
	model.IntentConfirmed:         "Confirmo presença",
	model.IntentDeclined:          "Não poderei comparecer",
	model.IntentNotScheduled:      "Não agendei essa consulta",
	model.IntentReagendamento:     "Solicito reagendamento",
	model.IntentPacienteSolicitou: "Fui eu quem solicitei",
	model.IntentSemReagendamento:  "Não é necessário reagendar",
	model.IntentHumanAgent:        "Falar com atendente",
	model.IntentFreeTalk:          "Conversa livre",
}

// IntentLabel returns the patient-facing label for an intent. Unknown intents
// fall back to their raw tag.
func IntentLabel(intent model.Intent) string {
	if label, ok := intentLabels[intent]; ok {
		return label
	}
	return string(intent)
}

// ClarificationMessage builds the follow-up prompt to send when a
// classification is not confident enough to act on. It returns the empty
// string when no clarification is needed. Pure text generation; the caller
// sends it.
//
// Medium confidence gets a quick yes/no echo of the guessed intent. Low
// confidence gets the full numbered menu for the flow the last system message
// belonged to, or a generic "type 1, 2 or 3" prompt when no prior message is
// known.
func (c *Classifier) ClarificationMessage(result model.Result, last *model.SystemMessage) string {
	if result.Confidence >= c.rules.HighConfidence {
		return ""
	}

	if result.Confidence >= c.rules.MediumConfidence && last != nil {
		return fmt.Sprintf("Você quis dizer %q? Responda *1* para sim, *2* para não.", IntentLabel(result.Intent))
	}

	if last != nil {
		switch last.Type {
		case model.ContextConfirmacao:
			return "❓ *Desculpe, não entendi sua resposta.*\n\n" +
				"Por favor, escolha uma das opções abaixo respondendo apenas com o número:\n\n" +
				"1️⃣ - Confirmo minha presença\n" +
				"2️⃣ - Não poderei ir\n" +
				"3️⃣ - Não agendei essa consulta\n\n" +
				messageSignature
		case model.ContextDesmarcacao:
			return "❓ *Desculpe, não entendi sua resposta.*\n\n" +
				"Por favor, escolha uma das opções abaixo respondendo apenas com o número:\n\n" +
				"1️⃣ - Quero reagendar\n" +
				"2️⃣ - Eu que desmarcou\n" +
				"3️⃣ - Não quero reagendar\n\n" +
				messageSignature
		}
	}

	return "⚠️ *Por favor, digite apenas o número: 1, 2 ou 3*\n\n" +
		"Exemplo: digite apenas *1* para confirmar sua presença.\n\n" +
		messageSignature
}
