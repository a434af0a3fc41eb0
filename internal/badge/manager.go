package badge

import (
	"fmt"

	"github.com/hmasp-digital/triagem/internal/model"
)

// Card names the operator dashboard column an appointment lands on.
type Card string

// Operator cards.
const (
	CardConfirmados            Card = "confirmados"
	CardNaoPoderaComparecer    Card = "nao_podera_comparecer"
	CardNaoAgendou             Card = "nao_agendou"
	CardSolicitouReagendamento Card = "solicitou_reagendamento"
	CardPacienteSolicitou      Card = "paciente_solicitou"
	CardSemReagendamento       Card = "sem_reagendamento"
	CardSemResposta            Card = "sem_resposta"
)

// OperatorAction is a follow-up a human operator must perform.
type OperatorAction struct {
	Action      string
	Description string
	ConsultaID  int64
}

// Outcome is everything a confidently classified reply changes: the new
// appointment status, the destination card, the badge (if any), the automatic
// reply text and any pending operator action.
type Outcome struct {
	Status       model.Intent
	Card         Card
	AutoResponse string
	Badge        *Badge
	Action       *OperatorAction
}

const signature = "\n\n_HMASP - Central de Marcação de Consultas_"

// autoResponses are the acknowledgement messages sent back per intent.
var autoResponses = map[model.Intent]string{
	model.IntentConfirmed: "✅ *Presença confirmada!* Obrigado. Aguardamos você na data e horário marcados." +
		signature,
	model.IntentDeclined: "❌ *Entendido.* Sua consulta foi desmarcada. Em caso de dúvidas, entre em contato com a Central de Marcação de Consultas." +
		signature,
	model.IntentNotScheduled: "⚠️ *Obrigado pelo retorno.* Verificaremos o agendamento. Se necessário, entraremos em contato." +
		signature,
	model.IntentReagendamento: "✅ *Agradecemos o retorno!*\n\nSua consulta será reagendada e você será informado assim que tivermos uma nova data disponível. Contamos com a sua compreensão." +
		signature,
	model.IntentPacienteSolicitou: "✅ *Agradecemos o retorno!*\n\nCompreendemos sua solicitação. Ficamos à disposição caso precise reagendar. Desejamos saúde e bem-estar." +
		signature,
	model.IntentSemReagendamento: "✅ *Agradecemos pela informação!*\n\nCaso precise de um novo agendamento no futuro, estamos à disposição através dos nossos canais de atendimento. Desejamos saúde e bem-estar." +
		signature,
}

// ForIntent resolves the workflow outcome of a confidently classified reply.
// It fails when the intent does not belong to the given flow; callers are
// expected to have validated compatibility first.
func ForIntent(intent model.Intent, ctx model.ContextType, consultaID int64) (Outcome, error) {
	switch ctx {
	case model.ContextConfirmacao:
		return confirmacaoOutcome(intent, consultaID)
	case model.ContextDesmarcacao:
		return desmarcacaoOutcome(intent, consultaID)
	default:
		return Outcome{}, fmt.Errorf("no workflow outcome for context %q", ctx)
	}
}

func confirmacaoOutcome(intent model.Intent, consultaID int64) (Outcome, error) {
	switch intent {
	case model.IntentConfirmed:
		return Outcome{
			Status:       model.IntentConfirmed,
			Card:         CardConfirmados,
			AutoResponse: autoResponses[model.IntentConfirmed],
		}, nil
	case model.IntentDeclined:
		b := Desmarcar
		return Outcome{
			Status:       model.IntentDeclined,
			Card:         CardNaoPoderaComparecer,
			Badge:        &b,
			AutoResponse: autoResponses[model.IntentDeclined],
			Action: &OperatorAction{
				Action:      ActionDesmarcarAghuse,
				ConsultaID:  consultaID,
				Description: "Operador deve desmarcar esta consulta no AGHUse",
			},
		}, nil
	case model.IntentNotScheduled:
		return Outcome{
			Status:       model.IntentNotScheduled,
			Card:         CardNaoAgendou,
			AutoResponse: autoResponses[model.IntentNotScheduled],
		}, nil
	default:
		return Outcome{}, fmt.Errorf("invalid intent for confirmacao flow: %s", intent)
	}
}

func desmarcacaoOutcome(intent model.Intent, consultaID int64) (Outcome, error) {
	switch intent {
	case model.IntentReagendamento:
		b := Reagendar
		return Outcome{
			Status:       model.IntentReagendamento,
			Card:         CardSolicitouReagendamento,
			Badge:        &b,
			AutoResponse: autoResponses[model.IntentReagendamento],
			Action: &OperatorAction{
				Action:      ActionReagendarAghuse,
				ConsultaID:  consultaID,
				Description: "Paciente solicitou reagendamento - vincular nova consulta nas próximas 72h",
			},
		}, nil
	case model.IntentPacienteSolicitou:
		return Outcome{
			Status:       model.IntentPacienteSolicitou,
			Card:         CardPacienteSolicitou,
			AutoResponse: autoResponses[model.IntentPacienteSolicitou],
		}, nil
	case model.IntentSemReagendamento:
		return Outcome{
			Status:       model.IntentSemReagendamento,
			Card:         CardSemReagendamento,
			AutoResponse: autoResponses[model.IntentSemReagendamento],
		}, nil
	default:
		return Outcome{}, fmt.Errorf("invalid intent for desmarcacao flow: %s", intent)
	}
}

// cardMap backs CardForStatus.
var cardMap = map[model.ContextType]map[model.Intent]Card{
	model.ContextConfirmacao: {
		model.IntentConfirmed:    CardConfirmados,
		model.IntentDeclined:     CardNaoPoderaComparecer,
		model.IntentNotScheduled: CardNaoAgendou,
	},
	model.ContextDesmarcacao: {
		model.IntentReagendamento:     CardSolicitouReagendamento,
		model.IntentPacienteSolicitou: CardPacienteSolicitou,
		model.IntentSemReagendamento:  CardSemReagendamento,
	},
}

// CardForStatus returns the dashboard card for an appointment status, or
// CardSemResposta when the status does not belong to the flow.
func CardForStatus(status model.Intent, ctx model.ContextType) Card {
	if card, ok := cardMap[ctx][status]; ok {
		return card
	}
	return CardSemResposta
}

// MenuDigit returns the menu option a business intent corresponds to, for
// recording replies against the original numbered prompt.
func MenuDigit(intent model.Intent) string {
	switch intent {
	case model.IntentConfirmed, model.IntentReagendamento:
		return "1"
	case model.IntentDeclined, model.IntentPacienteSolicitou:
		return "2"
	case model.IntentNotScheduled, model.IntentSemReagendamento:
		return "3"
	default:
		return "1"
	}
}
