package classification

import "github.com/hmasp-digital/triagem/internal/model"

// Policy thresholds for the precedence cascade. These are the defaults used
// by DefaultRules; callers tune them through the Rules value.
const (
	// DefaultHighConfidence is the floor for acting on a result without
	// asking the patient to confirm.
	DefaultHighConfidence = 0.75
	// DefaultMediumConfidence is the floor for acting after a quick yes/no
	// confirmation prompt.
	DefaultMediumConfidence = 0.55
	// DefaultMaxKeywordConfidence caps keyword scores below certainty, which
	// is reserved for direct numeric replies.
	DefaultMaxKeywordConfidence = 0.98
	// DefaultKeywordMatchBonus is added per corroborating keyword.
	DefaultKeywordMatchBonus = 0.05
	// DefaultHeuristicConfidence is the flat score for NLP-lite matches.
	DefaultHeuristicConfidence = 0.75
	// DefaultFallbackConfidence is the score assigned to free talk.
	DefaultFallbackConfidence = 0.3
)

// Dictionary holds the keyword list and base confidence for one intent.
// Keywords must already be in normalized form (lowercase, no accents).
type Dictionary struct {
	Keywords       []string
	BaseConfidence float64
}

// Heuristic ties a set of regular expressions to the intent they imply.
// Patterns run against normalized text and are tried in declaration order.
type Heuristic struct {
	Intent   model.Intent
	Patterns []string
}

// Rules is the static classification configuration injected into a
// Classifier. It is read-only after construction, so a single Rules value can
// back any number of concurrent classifications.
type Rules struct {
	Dictionaries         map[model.Intent]Dictionary
	Heuristics           []Heuristic
	HighConfidence       float64
	MediumConfidence     float64
	MaxKeywordConfidence float64
	KeywordMatchBonus    float64
	HeuristicConfidence  float64
	FallbackConfidence   float64
}

// DefaultRules returns the production Portuguese rule set.
func DefaultRules() Rules {
	return Rules{
		HighConfidence:       DefaultHighConfidence,
		MediumConfidence:     DefaultMediumConfidence,
		MaxKeywordConfidence: DefaultMaxKeywordConfidence,
		KeywordMatchBonus:    DefaultKeywordMatchBonus,
		HeuristicConfidence:  DefaultHeuristicConfidence,
		FallbackConfidence:   DefaultFallbackConfidence,
		Dictionaries: map[model.Intent]Dictionary{
			model.IntentConfirmed: {
				Keywords: []string{
					"confirmo", "sim", "vou", "presenca", "confirmada",
					"ok", "confirmado", "estarei", "irei", "vou sim",
					"confirmar", "certo", "tranquilo", "pode ser",
					"com certeza", "claro",
				},
				BaseConfidence: 0.85,
			},
			model.IntentDeclined: {
				Keywords: []string{
					"nao", "naovou", "nao poderei", "nao vou", "faltarei",
					"desmarcar", "cancelar", "nao posso", "impossivel",
					"impedimento", "nao consigo", "nao conseguirei",
					"tenho compromisso", "nao da",
				},
				BaseConfidence: 0.85,
			},
			model.IntentNotScheduled: {
				Keywords: []string{
					"nao agendei", "nao solicitei", "nao marquei",
					"nao fui eu", "erro", "engano", "nao pedi",
					"nao era pra mim", "numero errado",
				},
				BaseConfidence: 0.90,
			},
			model.IntentReagendamento: {
				Keywords: []string{
					"reagendamento", "reagendar", "preciso",
					"por favor reagendar", "remarcar", "nova data",
					"outra data", "mudar data", "marcar novamente",
					"agendar de novo", "solicito reagendamento",
				},
				BaseConfidence: 0.85,
			},
			model.IntentPacienteSolicitou: {
				Keywords: []string{
					"fui eu", "foi eu", "eu pedi", "eu solicitei",
					"eu que desmarcou", "eu mesmo", "fui eu mesmo",
					"solicitei a desmarcacao", "eu desmarcou",
				},
				BaseConfidence: 0.90,
			},
			model.IntentSemReagendamento: {
				Keywords: []string{
					"nao e necessario", "nao precisa", "sem reagendamento",
					"nao quero", "nao preciso", "esta tudo bem",
					"tudo certo", "sem necessidade", "pode deixar",
				},
				BaseConfidence: 0.85,
			},
			model.IntentHumanAgent: {
				Keywords: []string{
					"humano", "atendente", "pessoa", "operador",
					"falar com alguem", "preciso falar", "quero falar",
					"atendimento humano", "nao entendi", "nao estou entendendo",
				},
				BaseConfidence: 0.95,
			},
		},
		Heuristics: []Heuristic{
			{
				Intent: model.IntentConfirmed,
				Patterns: []string{
					`\b(vou|irei|estarei)\s+(la|presente|ai)\b`,
					`\b(pode|podem)\s+confirmar\b`,
					`\b(esta|tudo)\s+confirmado\b`,
				},
			},
			{
				Intent: model.IntentDeclined,
				Patterns: []string{
					`\bnao\s+(vou|poderei|consigo|posso)\b`,
					`\b(impossivel|impedido|impedimento)\b`,
					`\btenho\s+compromisso\b`,
				},
			},
			{
				Intent: model.IntentNotScheduled,
				Patterns: []string{
					`\bnao\s+(agendei|marquei|solicitei)\b`,
					`\b(engano|erro)\b`,
				},
			},
		},
	}
}

// withDefaults fills in zero-valued thresholds so synthetic rule sets built by
// tests or localized deployments only need to specify what they change.
func (r Rules) withDefaults() Rules {
	if r.HighConfidence == 0 {
		r.HighConfidence = DefaultHighConfidence
	}
	if r.MediumConfidence == 0 {
		r.MediumConfidence = DefaultMediumConfidence
	}
	if r.MaxKeywordConfidence == 0 {
		r.MaxKeywordConfidence = DefaultMaxKeywordConfidence
	}
	if r.KeywordMatchBonus == 0 {
		r.KeywordMatchBonus = DefaultKeywordMatchBonus
	}
	if r.HeuristicConfidence == 0 {
		r.HeuristicConfidence = DefaultHeuristicConfidence
	}
	if r.FallbackConfidence == 0 {
		r.FallbackConfidence = DefaultFallbackConfidence
	}
	return r
}
