package classification

import (
	"slices"

	"github.com/hmasp-digital/triagem/internal/model"
)

// numberMappings resolves the digit the patient typed into the business
// intent it means under each conversational flow.
var numberMappings = map[model.ContextType]map[model.Intent]model.Intent{
	model.ContextConfirmacao: {
		model.IntentNumber1: model.IntentConfirmed,
		model.IntentNumber2: model.IntentDeclined,
		model.IntentNumber3: model.IntentNotScheduled,
	},
	model.ContextDesmarcacao: {
		model.IntentNumber1: model.IntentReagendamento,
		model.IntentNumber2: model.IntentPacienteSolicitou,
		model.IntentNumber3: model.IntentSemReagendamento,
	},
}

// compatibleIntents is the allow-list of resolved intents per context.
var compatibleIntents = map[model.ContextType][]model.Intent{
	model.ContextConfirmacao: {
		model.IntentConfirmed,
		model.IntentDeclined,
		model.IntentNotScheduled,
		model.IntentHumanAgent,
	},
	model.ContextDesmarcacao: {
		model.IntentReagendamento,
		model.IntentPacienteSolicitou,
		model.IntentSemReagendamento,
		model.IntentHumanAgent,
	},
}

// MapNumberToIntent resolves a transitional number intent under the given
// context. Without a recognized context the raw number is returned unchanged
// so the caller can resolve it later; an unmapped number under a known
// context yields IntentUnknown.
func MapNumberToIntent(raw model.Intent, ctx model.ContextType) model.Intent {
	mapping, ok := numberMappings[ctx]
	if !ok {
		return raw
	}
	resolved, ok := mapping[raw]
	if !ok {
		return model.IntentUnknown
	}
	return resolved
}

// IsIntentCompatibleWithContext reports whether a resolved intent makes sense
// for the active conversation. An absent or unrecognized context accepts
// everything.
func IsIntentCompatibleWithContext(intent model.Intent, ctx model.ContextType) bool {
	allowed, ok := compatibleIntents[ctx]
	if !ok {
		return true
	}
	return slices.Contains(allowed, intent)
}
